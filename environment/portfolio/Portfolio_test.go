package portfolio

import (
	"math"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/portfolioa2c/environment"
)

func newTestPortfolio(t *testing.T, assets int) *Portfolio {
	t.Helper()

	c := DefaultConfig()
	c.Assets = assets
	p, err := New(c, 42)
	require.NoError(t, err)
	return p
}

func TestResetObservation(t *testing.T) {
	p := newTestPortfolio(t, 3)

	// Monday to the following Monday: 5 trading days
	start := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2021, 3, 8, 0, 0, 0, 0, time.UTC)

	step, err := p.Reset(start, end)
	require.NoError(t, err)

	assert.True(t, step.First())
	assert.Equal(t, p.StateShape(), step.Observation.Len())
	assert.Equal(t, 7, p.StateShape())
	assert.Equal(t, 3, p.ActionCount())
	assert.Equal(t, p.InitialCash, step.Observation.AtVec(0))
	assert.Equal(t, p.InitialCash, step.Wealth)
	for i := 0; i < 3; i++ {
		assert.Zero(t, step.Observation.AtVec(1+3+i))
	}
	assert.Len(t, p.BenchmarkSeries(), 1)
}

func TestEpisodeEndsOnLastTradingDay(t *testing.T) {
	p := newTestPortfolio(t, 2)

	start := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2021, 3, 8, 0, 0, 0, 0, time.UTC)
	want := environment.TradingDays(start, end) - 1

	_, err := p.Reset(start, end)
	require.NoError(t, err)

	action := mat.NewVecDense(2, nil)
	steps := 0
	for {
		step, err := p.Step(action)
		require.NoError(t, err)
		steps++
		if step.Last() {
			assert.Equal(t, time.Date(2021, 3, 5, 0, 0, 0, 0, time.UTC),
				step.Date)
			break
		}
		require.Less(t, steps, 100)
	}
	assert.Equal(t, want, steps)
	assert.Len(t, p.BenchmarkSeries(), want+1)

	_, err = p.Step(action)
	assert.True(t, errors.Is(err, ErrEpisodeOver))
}

func TestBuyThenSell(t *testing.T) {
	p := newTestPortfolio(t, 1)

	start := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2021, 4, 1, 0, 0, 0, 0, time.UTC)
	first, err := p.Reset(start, end)
	require.NoError(t, err)
	price := first.Observation.AtVec(1)

	step, err := p.Step(mat.NewVecDense(1, []float64{0.001}))
	require.NoError(t, err)
	assert.Equal(t, 1.0, step.Observation.AtVec(2))
	assert.InDelta(t, p.InitialCash-price*(1+p.TransactionCost),
		step.Observation.AtVec(0), 1e-6)

	// Selling more than is held only sells the held shares
	step, err = p.Step(mat.NewVecDense(1, []float64{-1}))
	require.NoError(t, err)
	assert.Zero(t, step.Observation.AtVec(2))
}

func TestIllegalAction(t *testing.T) {
	p := newTestPortfolio(t, 2)
	_, err := p.Reset(time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2021, 4, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	_, err = p.Step(mat.NewVecDense(3, nil))
	assert.Error(t, err)
}

func TestResetRejectsShortInterval(t *testing.T) {
	p := newTestPortfolio(t, 2)

	// Saturday to Monday contains no trading days
	_, err := p.Reset(time.Date(2021, 3, 6, 0, 0, 0, 0, time.UTC),
		time.Date(2021, 3, 8, 0, 0, 0, 0, time.UTC))
	assert.Error(t, err)
}

func TestNaNActionDoesNotTrade(t *testing.T) {
	p := newTestPortfolio(t, 1)
	first, err := p.Reset(time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2021, 4, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	step, err := p.Step(mat.NewVecDense(1, []float64{math.NaN()}))
	require.NoError(t, err)
	assert.Zero(t, step.Observation.AtVec(2))
	assert.Equal(t, first.Observation.AtVec(0), step.Observation.AtVec(0))
}
