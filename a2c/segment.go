package a2c

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Segment is a bounded slice of one worker's rollout. Observations,
// Actions, and Rewards have equal length. Terminal is true if and only
// if the episode ended on the last step of the segment.
type Segment struct {
	Worker       int
	Observations [][]float64
	Actions      [][]float64
	Rewards      []float64
	Terminal     bool

	// Next is the observation following the last step, from which the
	// value of non-terminal segments is bootstrapped
	Next []float64

	// Wealth is the portfolio value after the last step
	Wealth float64
}

// Len returns the number of steps in the segment
func (s *Segment) Len() int {
	return len(s.Rewards)
}

// Validate returns an error if the segment's sequences have different
// lengths or if the segment is empty
func (s *Segment) Validate() error {
	n := len(s.Rewards)
	if n == 0 {
		return errors.Wrap(ErrInvalidSegment, "validate: empty segment")
	}
	if len(s.Observations) != n || len(s.Actions) != n {
		return errors.Wrapf(ErrInvalidSegment, "validate: have %d "+
			"observations, %d actions, %d rewards", len(s.Observations),
			len(s.Actions), n)
	}
	return nil
}

// Clone returns a deep copy of the segment
func (s *Segment) Clone() *Segment {
	return &Segment{
		Worker:       s.Worker,
		Observations: cloneRows(s.Observations),
		Actions:      cloneRows(s.Actions),
		Rewards:      append([]float64(nil), s.Rewards...),
		Terminal:     s.Terminal,
		Next:         append([]float64(nil), s.Next...),
		Wealth:       s.Wealth,
	}
}

func cloneRows(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// Params holds one flattened value slice per trainable parameter, in
// a fixed order
type Params [][]float64

// Clone returns a deep copy of the parameters
func (p Params) Clone() Params {
	return Params(cloneRows(p))
}

// Gradient holds one flattened gradient slice per trainable parameter,
// in the same order as Params
type Gradient [][]float64

// Clone returns a deep copy of the gradient
func (g Gradient) Clone() Gradient {
	return Gradient(cloneRows(g))
}

// SameShape returns whether two gradients have the same layout
func (g Gradient) SameShape(other Gradient) bool {
	if len(g) != len(other) {
		return false
	}
	for i := range g {
		if len(g[i]) != len(other[i]) {
			return false
		}
	}
	return true
}

// MeanGradient returns the elementwise mean of the argument gradients.
// The divisor is the number of gradients given, which is the number of
// workers that contributed to a round.
func MeanGradient(grads ...Gradient) (Gradient, error) {
	if len(grads) == 0 {
		return nil, errors.Wrap(ErrNoContributions, "meanGradient")
	}

	mean := grads[0].Clone()
	for i, g := range grads[1:] {
		if !mean.SameShape(g) {
			return nil, errors.Wrapf(ErrShapeMismatch, "meanGradient: "+
				"gradient %d", i+1)
		}
		for j := range mean {
			floats.Add(mean[j], g[j])
		}
	}

	scale := 1 / float64(len(grads))
	for j := range mean {
		floats.Scale(scale, mean[j])
	}
	return mean, nil
}

// buffer accumulates the transitions of a worker between two
// synchronisation points
type buffer struct {
	observations [][]float64
	actions      [][]float64
	rewards      []float64
}

func newBuffer(capacity int) *buffer {
	return &buffer{
		observations: make([][]float64, 0, capacity),
		actions:      make([][]float64, 0, capacity),
		rewards:      make([]float64, 0, capacity),
	}
}

func (b *buffer) remember(obs, action []float64, reward float64) {
	b.observations = append(b.observations, obs)
	b.actions = append(b.actions, action)
	b.rewards = append(b.rewards, reward)
}

func (b *buffer) len() int {
	return len(b.rewards)
}

// segment packages the buffered transitions. The returned segment
// does not alias the buffer.
func (b *buffer) segment(worker int, terminal bool, next []float64,
	wealth float64) *Segment {
	seg := &Segment{
		Worker:       worker,
		Observations: b.observations,
		Actions:      b.actions,
		Rewards:      b.rewards,
		Terminal:     terminal,
		Next:         next,
		Wealth:       wealth,
	}
	return seg.Clone()
}

func (b *buffer) clear() {
	b.observations = b.observations[:0]
	b.actions = b.actions[:0]
	b.rewards = b.rewards[:0]
}
