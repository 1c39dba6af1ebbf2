package policy

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samuelfneumann/portfolioa2c/a2c"
	"github.com/samuelfneumann/portfolioa2c/initwfn"
	"github.com/samuelfneumann/portfolioa2c/network"
	"github.com/samuelfneumann/portfolioa2c/solver"
)

const (
	testFeatures = 3
	testActions  = 2
)

func newTestLearner(t *testing.T, entropy float64) *Learner {
	c := DefaultConfig()
	c.Hidden = 4
	c.Gamma = 0.9
	c.EntropyCoef = entropy

	s, err := solver.NewDefaultAdam(1e-2, 1)
	require.NoError(t, err)
	init, err := initwfn.NewGlorotU(1.0)
	require.NoError(t, err)

	l, err := NewLearner(testFeatures, testActions, c, s, init)
	require.NoError(t, err)
	return l
}

func testSegment(terminal bool) *a2c.Segment {
	return &a2c.Segment{
		Observations: [][]float64{{0.1, -0.2, 0.3}, {0.5, 0.1, -0.4},
			{-0.3, 0.2, 0.2}},
		Actions:  [][]float64{{0.2, -0.1}, {1.0, 0.5}, {-0.7, 0.3}},
		Rewards:  []float64{1, -0.5, 2},
		Terminal: terminal,
		Next:     []float64{0.4, 0.4, -0.1},
	}
}

func TestComputeReturns(t *testing.T) {
	rewards := []float64{1, 1, 1}
	returns := ComputeReturns(rewards, 0.5, 8, false)

	// Closed form: G_i = Σ_k γ^k r_{i+k} + γ^(n-i) B
	for i := range rewards {
		var want float64
		for k := i; k < len(rewards); k++ {
			want += math.Pow(0.5, float64(k-i)) * rewards[k]
		}
		want += math.Pow(0.5, float64(len(rewards)-i)) * 8
		assert.InDelta(t, want, returns[i], 1e-12)
	}
	assert.InDeltaSlice(t, []float64{2.75, 3.5, 5}, returns, 1e-12)

	terminal := ComputeReturns(rewards, 0.5, 8, true)
	assert.InDeltaSlice(t, []float64{1.75, 1.5, 1}, terminal, 1e-12)

	assert.Empty(t, ComputeReturns(nil, 0.5, 8, false))
}

func TestForwardStdIsBounded(t *testing.T) {
	l := newTestLearner(t, 0)

	mean, std, value, err := l.Forward([]float64{100, -100, 50})
	require.NoError(t, err)
	assert.Len(t, mean, testActions)
	require.Len(t, std, testActions)
	assert.False(t, math.IsNaN(value))
	for _, s := range std {
		assert.GreaterOrEqual(t, s, network.StdOffset)
	}
}

func TestInvalidObservation(t *testing.T) {
	l := newTestLearner(t, 0)
	_, _, _, err := l.Forward([]float64{1, 2})
	assert.True(t, errors.Is(err, ErrInvalidObservation))

	actor, err := NewActor(l, 1)
	require.NoError(t, err)
	_, err = actor.SelectAction([]float64{1, 2, 3, 4})
	assert.True(t, errors.Is(err, ErrInvalidObservation))

	seg := testSegment(false)
	seg.Actions[1] = []float64{1}
	_, _, err = l.Gradient(seg)
	assert.True(t, errors.Is(err, ErrInvalidObservation))
}

func TestGradientLayout(t *testing.T) {
	l := newTestLearner(t, 0.01)
	params := l.Params()
	require.Len(t, params, 10)

	grad, loss, err := l.Gradient(testSegment(false))
	require.NoError(t, err)
	assert.False(t, math.IsNaN(loss))

	require.Len(t, grad, len(params))
	for i := range params {
		assert.Len(t, grad[i], len(params[i]), "parameter %d", i)
	}
	assert.Equal(t, params, l.Params(), "gradient changed the parameters")
}

func TestLossMatchesDirectComputation(t *testing.T) {
	l := newTestLearner(t, 0)
	seg := testSegment(false)
	returns, err := l.Returns(seg)
	require.NoError(t, err)

	var valueLoss, policyLoss float64
	for i, obs := range seg.Observations {
		mean, std, v, err := l.Forward(obs)
		require.NoError(t, err)

		adv := returns[i] - v
		valueLoss += adv * adv / float64(seg.Len())
		for j, a := range seg.Actions[i] {
			z := (a - mean[j]) / std[j]
			logProb := -0.5*z*z - math.Log(std[j]) - 0.5*math.Log(2*math.Pi)
			policyLoss -= logProb * adv / float64(seg.Len()*testActions)
		}
	}

	loss, err := l.Loss(seg, returns)
	require.NoError(t, err)
	assert.InDelta(t, valueLoss+policyLoss, loss, 1e-6)

	// The value head bias only affects the value loss, with gradient
	// -2 mean(G - v)
	grad, gradLoss, err := l.Gradient(seg)
	require.NoError(t, err)
	assert.InDelta(t, loss, gradLoss, 1e-9)

	var want float64
	for i, obs := range seg.Observations {
		_, _, v, err := l.Forward(obs)
		require.NoError(t, err)
		want -= 2 * (returns[i] - v) / float64(seg.Len())
	}
	assert.InDelta(t, want, grad[9][0], 1e-6)
}

func TestEntropyBonus(t *testing.T) {
	const coef = 0.5
	withEntropy := newTestLearner(t, coef)
	without := newTestLearner(t, 0)
	require.NoError(t, without.SetParams(withEntropy.Params()))

	seg := testSegment(false)
	returns, err := withEntropy.Returns(seg)
	require.NoError(t, err)

	// Mean entropy of the Gaussian policy over steps and actions
	var entropy float64
	for _, obs := range seg.Observations {
		_, std, _, err := withEntropy.Forward(obs)
		require.NoError(t, err)
		for _, s := range std {
			entropy += math.Log(s) + 0.5*math.Log(2*math.Pi*math.E)
		}
	}
	entropy /= float64(seg.Len() * testActions)

	bonus, err := withEntropy.Loss(seg, returns)
	require.NoError(t, err)
	plain, err := without.Loss(seg, returns)
	require.NoError(t, err)
	assert.InDelta(t, -coef*entropy, bonus-plain, 1e-9)

	_, gradLoss, err := withEntropy.Gradient(seg)
	require.NoError(t, err)
	assert.InDelta(t, bonus, gradLoss, 1e-9)
}

func TestGradientIsRepeatable(t *testing.T) {
	l := newTestLearner(t, 0)
	seg := testSegment(true)

	first, _, err := l.Gradient(seg)
	require.NoError(t, err)
	second, _, err := l.Gradient(seg)
	require.NoError(t, err)

	for i := range first {
		assert.InDeltaSlice(t, first[i], second[i], 1e-12)
	}
}

func TestStep(t *testing.T) {
	l := newTestLearner(t, 0)
	before := l.Params()

	grad, _, err := l.Gradient(testSegment(true))
	require.NoError(t, err)
	require.NoError(t, l.Step(grad))
	assert.NotEqual(t, before, l.Params())

	err = l.Step(a2c.Gradient{{1}})
	assert.True(t, errors.Is(err, a2c.ErrShapeMismatch))
}

func TestSetParams(t *testing.T) {
	l := newTestLearner(t, 0)
	params := l.Params()
	for i := range params {
		for j := range params[i] {
			params[i][j] = 0.01 * float64(i+j)
		}
	}
	require.NoError(t, l.SetParams(params))
	assert.Equal(t, params, l.Params())
	copied, err := l.params64()
	require.NoError(t, err)
	assert.Equal(t, params, copied)

	// Params are copied
	params[0][0] = 100
	assert.NotEqual(t, params, l.Params())

	err = l.SetParams(params[:3])
	assert.True(t, errors.Is(err, a2c.ErrShapeMismatch))
}

func TestActorFollowsParams(t *testing.T) {
	l := newTestLearner(t, 0)
	actor, err := NewActor(l, 42)
	require.NoError(t, err)

	obs := []float64{0.3, -0.1, 0.8}
	wantMean, wantStd, wantValue, err := l.Forward(obs)
	require.NoError(t, err)
	mean, std, value, err := actor.Forward(obs)
	require.NoError(t, err)
	assert.InDeltaSlice(t, wantMean, mean, 1e-12)
	assert.InDeltaSlice(t, wantStd, std, 1e-12)
	assert.InDelta(t, wantValue, value, 1e-12)

	grad, _, err := l.Gradient(testSegment(true))
	require.NoError(t, err)
	require.NoError(t, l.Step(grad))
	require.NoError(t, actor.SetParams(l.Params()))

	params, err := actor.Params()
	require.NoError(t, err)
	assert.Equal(t, l.Params(), params)
}

func TestActorIsReproducible(t *testing.T) {
	l := newTestLearner(t, 0)
	a1, err := NewActor(l, 7)
	require.NoError(t, err)
	a2, err := NewActor(l, 7)
	require.NoError(t, err)

	obs := []float64{0.1, 0.2, 0.3}
	for i := 0; i < 5; i++ {
		act1, err := a1.SelectAction(obs)
		require.NoError(t, err)
		act2, err := a2.SelectAction(obs)
		require.NoError(t, err)
		assert.Equal(t, act1, act2)
		assert.Len(t, act1, testActions)
	}
}
