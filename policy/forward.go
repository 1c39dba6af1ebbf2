package policy

import (
	"math"

	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"

	"github.com/samuelfneumann/portfolioa2c/network"
)

// forward runs the forward pass of an actor-critic at a fixed batch
// size without computing gradients
type forward struct {
	net *network.ActorCritic
	vm  G.VM
}

func newForward(features, hidden, actions, batch int, act *network.Activation,
	init G.InitWFn) (*forward, error) {
	net, err := network.NewActorCritic(features, hidden, actions, batch, act,
		init)
	if err != nil {
		return nil, err
	}
	return &forward{net: net, vm: G.NewTapeMachine(net.Graph())}, nil
}

// run computes the mean, standard deviation, and value of a batch of
// observations stored in row-major order
func (f *forward) run(obs []float64) (mean, std, value []float64,
	err error) {
	if err := f.net.SetInput(obs); err != nil {
		return nil, nil, nil, err
	}
	if err := f.vm.RunAll(); err != nil {
		return nil, nil, nil, errors.Wrap(err, "could not run policy VM")
	}
	defer f.vm.Reset()

	mean, std, value, err = f.net.Output()
	if err != nil {
		return nil, nil, nil, err
	}
	if err := checkStd(std); err != nil {
		return nil, nil, nil, err
	}
	return mean, std, value, nil
}

// checkStd returns ErrDegenerateDistribution if any standard deviation
// is not a positive finite number
func checkStd(std []float64) error {
	for i, s := range std {
		if s <= 0 || math.IsNaN(s) || math.IsInf(s, 0) {
			return errors.Wrapf(ErrDegenerateDistribution, "std[%d] = %v",
				i, s)
		}
	}
	return nil
}

// flatten validates that every row has length n and returns the rows
// concatenated
func flatten(rows [][]float64, n int) ([]float64, error) {
	flat := make([]float64, 0, len(rows)*n)
	for i, row := range rows {
		if len(row) != n {
			return nil, errors.Wrapf(ErrInvalidObservation, "row %d has "+
				"length %d, expected %d", i, len(row), n)
		}
		flat = append(flat, row...)
	}
	return flat, nil
}
