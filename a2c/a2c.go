// Package a2c implements synchronous advantage actor-critic training
// with parallel rollout workers.
//
// A Coordinator owns the authoritative policy and value function, a
// Learner. It runs one Worker per environment, each in its own
// goroutine with its own Actor, a local copy of the policy. Workers
// and the Coordinator share no memory: every Worker is connected to the
// Coordinator by a private Channel over which it sends trajectory
// Segments and receives Releases. A Release carries a copy of the
// Learner's parameters so that workers act on fresh weights.
//
// Training proceeds in synchronisation rounds. In each round the
// Coordinator waits for one Segment from every worker that has not yet
// finished its episode, computes the gradient of each Segment at the
// Learner's current parameters, averages the gradients over the
// workers that contributed to the round, takes one optimiser step, and
// then releases the workers. A worker never has more than one Segment
// outstanding, so segments are never carried over between rounds.
package a2c

// Learner is the authoritative policy and value function owned by the
// Coordinator.
type Learner interface {
	// Gradient computes the returns of a segment and the gradient of
	// the actor-critic loss with respect to each parameter, evaluated
	// at the current parameters. The loss value is also returned.
	Gradient(seg *Segment) (Gradient, float64, error)

	// Step applies one optimiser step using the argument gradient
	Step(Gradient) error

	// Params returns a copy of the current parameters
	Params() Params
}

// Actor is a worker's local copy of the policy
type Actor interface {
	// SelectAction samples an action in the argument observation
	SelectAction(obs []float64) ([]float64, error)

	// SetParams replaces the actor's parameters with a copy of the
	// argument parameters
	SetParams(Params) error
}
