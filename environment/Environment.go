// Package environment outlines the interfaces and structs needed to
// implement concrete market environments
package environment

import (
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/portfolioa2c/timestep"
)

// Starter implements a distribution of starting states and samples
// starting states for environments
type Starter interface {
	Start() mat.Vector
}

// Ender determines when an episode should end. If the episode should
// end, End modifies the argument TimeStep so that its StepType is
// timestep.Last.
type Ender interface {
	End(t *timestep.TimeStep) bool
}

// Environment implements a simulated market in which a portfolio of
// assets is traded.
//
// Observations are laid out as the cash balance, followed by the price
// of each asset, followed by the number of shares held of each asset.
// Actions hold one value per tradable asset.
type Environment interface {
	// Reset starts a new episode which trades over the trading days
	// in [start, end)
	Reset(start, end time.Time) (timestep.TimeStep, error)

	// Step trades according to action and advances the market by one
	// trading day. The returned TimeStep holds the next observation,
	// the reward, whether the episode ended, the trading date, and the
	// current portfolio value.
	Step(action *mat.VecDense) (timestep.TimeStep, error)

	// StateShape returns the length of observation vectors
	StateShape() int

	// ActionCount returns the length of action vectors
	ActionCount() int

	// BenchmarkSeries returns the value of a passive benchmark index on
	// each trading day of the current episode seen so far
	BenchmarkSeries() []float64
}
