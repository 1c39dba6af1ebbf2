package a2c

import "github.com/pkg/errors"

var (
	// ErrChannelClosed is returned when the other end of a Channel
	// closed while a message was expected
	ErrChannelClosed = errors.New("channel closed")

	// ErrWorkerTimeout is returned when a worker does not deliver a
	// message within the configured timeout
	ErrWorkerTimeout = errors.New("worker timed out")

	// ErrSegmentOutstanding is returned when a worker tries to send a
	// segment before the previous one has been released
	ErrSegmentOutstanding = errors.New("segment already outstanding")

	// ErrNoContributions is returned when aggregating zero gradients
	ErrNoContributions = errors.New("no gradient contributions")

	// ErrShapeMismatch is returned when gradients or parameters with
	// different layouts are combined
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrInvalidSegment is returned for segments whose sequences have
	// different lengths or which are empty
	ErrInvalidSegment = errors.New("invalid segment")
)
