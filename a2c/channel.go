package a2c

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// MessageKind is the kind of a message sent from a worker
type MessageKind int

const (
	SegmentMessage MessageKind = iota
	SummaryMessage
)

// Summary is the last message a worker sends, after its terminal
// segment has been released
type Summary struct {
	Worker int
	Wealth float64
	Steps  int
}

// Message is sent from a worker to the coordinator. Exactly one of
// Segment and Summary is set, depending on Kind.
type Message struct {
	Kind    MessageKind
	Segment *Segment
	Summary *Summary
}

// Release is sent from the coordinator to a worker once the worker's
// segment has been used in an update
type Release struct {
	Round  int
	Params Params
}

// link holds the two directions of a Channel. Only the worker sends
// on and closes up; only the coordinator sends on and closes down.
type link struct {
	worker int
	up     chan Message
	down   chan Release
}

// NewChannel returns the two endpoints of a private channel between
// the coordinator and one worker. Both directions hold at most one
// message, which is all the protocol ever has in flight.
func NewChannel(worker int) (*CoordinatorConn, *WorkerConn) {
	l := &link{
		worker: worker,
		up:     make(chan Message, 1),
		down:   make(chan Release, 1),
	}
	return &CoordinatorConn{link: l}, &WorkerConn{link: l}
}

// WorkerConn is the worker's end of a Channel. It enforces that at
// most one segment is outstanding at a time.
type WorkerConn struct {
	*link
	outstanding bool
	closeOnce   sync.Once
}

// Send sends a copy of a segment to the coordinator. It fails with
// ErrSegmentOutstanding if the previous segment has not been released.
func (w *WorkerConn) Send(ctx context.Context, seg *Segment) error {
	if w.outstanding {
		return errors.Wrapf(ErrSegmentOutstanding, "send: worker %d",
			w.worker)
	}
	if err := seg.Validate(); err != nil {
		return errors.Wrapf(err, "send: worker %d", w.worker)
	}

	msg := Message{Kind: SegmentMessage, Segment: seg.Clone()}
	select {
	case w.up <- msg:
		w.outstanding = true
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendSummary sends the worker's final summary. It may only be sent
// once no segment is outstanding.
func (w *WorkerConn) SendSummary(ctx context.Context, s Summary) error {
	if w.outstanding {
		return errors.Wrapf(ErrSegmentOutstanding, "sendSummary: worker %d",
			w.worker)
	}

	select {
	case w.up <- Message{Kind: SummaryMessage, Summary: &s}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recv blocks until the coordinator releases the outstanding segment
func (w *WorkerConn) Recv(ctx context.Context) (Release, error) {
	select {
	case rel, ok := <-w.down:
		if !ok {
			return Release{}, errors.Wrapf(ErrChannelClosed, "recv: "+
				"worker %d", w.worker)
		}
		w.outstanding = false
		return rel, nil
	case <-ctx.Done():
		return Release{}, ctx.Err()
	}
}

// Outstanding returns whether a segment is waiting to be released
func (w *WorkerConn) Outstanding() bool {
	return w.outstanding
}

// Close closes the worker's sending direction. Messages already sent
// can still be received by the coordinator.
func (w *WorkerConn) Close() {
	w.closeOnce.Do(func() { close(w.up) })
}

// CoordinatorConn is the coordinator's end of a Channel
type CoordinatorConn struct {
	*link
	closeOnce sync.Once
}

// Worker returns the index of the worker at the other end
func (c *CoordinatorConn) Worker() int {
	return c.worker
}

// Recv blocks until the worker sends a message. A timeout of 0 waits
// until the context is done.
func (c *CoordinatorConn) Recv(ctx context.Context,
	timeout time.Duration) (Message, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case msg, ok := <-c.up:
		if !ok {
			return Message{}, errors.Wrapf(ErrChannelClosed, "recv: "+
				"worker %d", c.worker)
		}
		return msg, nil
	case <-expired:
		return Message{}, errors.Wrapf(ErrWorkerTimeout, "recv: worker %d "+
			"after %v", c.worker, timeout)
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// Release releases the worker, shipping a copy of the argument
// parameters along with the release
func (c *CoordinatorConn) Release(ctx context.Context, round int,
	params Params) error {
	select {
	case c.down <- Release{Round: round, Params: params.Clone()}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the coordinator's sending direction. A worker blocked
// in Recv then returns ErrChannelClosed.
func (c *CoordinatorConn) Close() {
	c.closeOnce.Do(func() { close(c.down) })
}
