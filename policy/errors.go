package policy

import "github.com/pkg/errors"

var (
	// ErrInvalidObservation is returned when an observation or action
	// has the wrong length
	ErrInvalidObservation = errors.New("invalid observation")

	// ErrDegenerateDistribution is returned when the policy predicts a
	// standard deviation which is not a positive finite number
	ErrDegenerateDistribution = errors.New("degenerate distribution")
)
