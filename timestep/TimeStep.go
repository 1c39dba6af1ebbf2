// Package timestep implements timesteps of the agent-environment interaction
package timestep

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"
)

// StepType denotes the type of step that a TimeStep can be, either  first
// environmental step, a middle step, or a last step
type StepType int

const (
	First StepType = iota
	Mid
	Last
)

func (s StepType) String() string {
	switch s {
	case First:
		return "First"
	case Last:
		return "Last"
	default:
		return "Mid"
	}
}

// TimeStep packages together a single timestep in a market environment.
//
// Besides the reward and observation an agent learns from, a TimeStep
// records the trading date it was produced on and the total value of
// the portfolio (cash plus holdings) after the step.
type TimeStep struct {
	StepType    StepType
	Reward      float64
	Observation *mat.VecDense
	Number      int
	Date        time.Time
	Wealth      float64
}

// New returns a new TimeStep
func New(t StepType, r float64, o *mat.VecDense, n int, date time.Time,
	wealth float64) TimeStep {
	return TimeStep{
		StepType:    t,
		Reward:      r,
		Observation: o,
		Number:      n,
		Date:        date,
		Wealth:      wealth,
	}
}

// First returns whether a TimeStep is the first in an environment
func (t *TimeStep) First() bool {
	return t.StepType == First
}

// Mid returns whether a TimeStep is a middle step in an environment
func (t *TimeStep) Mid() bool {
	return t.StepType == Mid
}

// Last returns whether a TimeStep is the last step in an environment
func (t *TimeStep) Last() bool {
	return t.StepType == Last
}

// RawObservation returns a copy of the observation's backing data
func (t *TimeStep) RawObservation() []float64 {
	if t.Observation == nil {
		return nil
	}
	obs := make([]float64, t.Observation.Len())
	copy(obs, t.Observation.RawVector().Data)
	return obs
}

func (t TimeStep) String() string {
	str := "TimeStep | Type: %v  |  Reward:  %.2f  |  Wealth: %.2f  |  " +
		"Date: %v  |  Step Number:  %v"

	return fmt.Sprintf(str, t.StepType, t.Reward, t.Wealth,
		t.Date.Format("2006-01-02"), t.Number)
}
