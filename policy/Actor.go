package policy

import (
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"

	"github.com/samuelfneumann/portfolioa2c/a2c"
)

// Actor implements a worker's local copy of a Gaussian policy. Given
// the mean μ and standard deviation σ predicted by the network, each
// action dimension is sampled independently from N(μ, σ²).
//
// An Actor's weights only change through SetParams. Sampling is
// reproducible for a fixed seed and sequence of parameters.
type Actor struct {
	fwd      *forward
	features int
	actions  int
	source   rand.Source
}

// NewActor returns a new Actor with the same architecture as the
// argument Learner. The Actor's weights are a copy of the Learner's
// current parameters, and seed seeds its action sampler.
func NewActor(l *Learner, seed uint64) (*Actor, error) {
	fwd, err := newForward(l.features, l.cfg.Hidden, l.actions, 1, l.act,
		G.Zeroes())
	if err != nil {
		return nil, errors.Wrap(err, "newActor")
	}

	a := &Actor{
		fwd:      fwd,
		features: l.features,
		actions:  l.actions,
		source:   rand.NewSource(seed),
	}
	params, err := l.params64()
	if err != nil {
		return nil, errors.Wrap(err, "newActor")
	}
	if err := a.SetParams(params); err != nil {
		return nil, errors.Wrap(err, "newActor")
	}
	return a, nil
}

// SetParams replaces the Actor's weights with a copy of params
func (a *Actor) SetParams(params a2c.Params) error {
	if err := a.fwd.net.SetWeights(params); err != nil {
		return errors.Wrapf(a2c.ErrShapeMismatch, "setParams: %v", err)
	}
	return nil
}

// Params returns a copy of the Actor's weights
func (a *Actor) Params() (a2c.Params, error) {
	weights, err := a.fwd.net.Weights()
	if err != nil {
		return nil, errors.Wrap(err, "params")
	}
	return weights, nil
}

// Forward returns the mean and standard deviation of the policy and
// the state value in the argument observation
func (a *Actor) Forward(obs []float64) (mean, std []float64, value float64,
	err error) {
	if len(obs) != a.features {
		return nil, nil, 0, errors.Wrapf(ErrInvalidObservation, "forward: "+
			"observation has length %d, expected %d", len(obs), a.features)
	}

	input := append([]float64(nil), obs...)
	mean, std, values, err := a.fwd.run(input)
	if err != nil {
		return nil, nil, 0, errors.Wrap(err, "forward")
	}
	return mean, std, values[0], nil
}

// SelectAction samples an action in the argument observation
func (a *Actor) SelectAction(obs []float64) ([]float64, error) {
	mean, std, _, err := a.Forward(obs)
	if err != nil {
		return nil, errors.Wrap(err, "selectAction")
	}

	action := make([]float64, a.actions)
	for i := range action {
		normal := distuv.Normal{Mu: mean[i], Sigma: std[i], Src: a.source}
		action[i] = normal.Rand()
	}
	return action, nil
}
