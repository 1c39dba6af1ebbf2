package a2c

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Config configures a Coordinator
type Config struct {
	// WorkerTimeout bounds every wait on a worker. If 0, the
	// coordinator waits for as long as the context allows. When the
	// timeout expires the round is aborted, no update is made, and all
	// workers are stopped.
	WorkerTimeout time.Duration `yaml:"worker_timeout" json:"worker_timeout"`

	// AbortOnWorkerFailure determines what happens when a worker's
	// channel closes unexpectedly. If true, the run is aborted and all
	// workers are stopped. Otherwise the worker is excluded from the
	// current and all later rounds.
	AbortOnWorkerFailure bool `yaml:"abort_on_worker_failure" json:"abort_on_worker_failure"`
}

// DefaultConfig returns a Config without a timeout that aborts on
// worker failure
func DefaultConfig() Config {
	return Config{AbortOnWorkerFailure: true}
}

// RoundStats describes one synchronisation round
type RoundStats struct {
	Round int

	// Contributors is the number of segments, and the divisor of the
	// gradient average, of the round
	Contributors int

	// Steps is the number of environment steps in the round's segments
	Steps int

	// Loss is the mean loss of the round's segments
	Loss float64

	// Finished holds the workers whose episode ended this round and
	// which sent their summary
	Finished []int

	// Wealth maps each contributing worker to its portfolio value at the
	// end of its segment
	Wealth map[int]float64
}

// Result describes a completed run
type Result struct {
	Rounds int
	Steps  int

	// Wealth maps each finished worker to its final portfolio value
	Wealth map[int]float64

	// Failed holds the workers excluded after their channel closed
	Failed []int
}

// Coordinator owns the authoritative Learner and drives workers
// through synchronisation rounds, applying one update per round.
//
// The round counters and per-worker states are only touched by the
// goroutine calling Run.
type Coordinator struct {
	learner Learner
	cfg     Config
	logger  *slog.Logger
	hooks   []func(RoundStats) error

	conns  []*CoordinatorConn
	states []SyncState
	ready  int
	done   int
	failed int
}

// NewCoordinator returns a new Coordinator which trains learner
func NewCoordinator(learner Learner, cfg Config,
	logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		learner: learner,
		cfg:     cfg,
		logger:  logger,
	}
}

// OnRound registers a function called after every round. If it returns
// an error, the run is aborted.
func (c *Coordinator) OnRound(f func(RoundStats) error) {
	c.hooks = append(c.hooks, f)
}

// State returns the synchronisation state of a worker in the current
// or most recent run
func (c *Coordinator) State(worker int) SyncState {
	return c.states[worker]
}

// Run trains the learner using the argument workers until every
// worker's episode has finished. Each worker starts from the learner's
// current parameters and runs in its own goroutine.
func (c *Coordinator) Run(ctx context.Context, workers []*Worker) (Result,
	error) {
	if len(workers) == 0 {
		return Result{}, errors.New("run: no workers")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	n := len(workers)
	c.conns = make([]*CoordinatorConn, n)
	c.states = make([]SyncState, n)
	c.ready, c.done, c.failed = 0, 0, 0

	params := c.learner.Params()
	var group errgroup.Group
	for i, w := range workers {
		if err := w.actor.SetParams(params); err != nil {
			return Result{}, errors.Wrapf(err, "run: could not set initial "+
				"parameters of worker %d", w.ID())
		}

		coordConn, workerConn := NewChannel(i)
		c.conns[i] = coordConn
		c.states[i] = Collecting

		w := w
		group.Go(func() error {
			return w.Run(ctx, workerConn)
		})
	}

	result, err := c.loop(ctx)
	if err != nil {
		cancel()
	}
	for _, conn := range c.conns {
		conn.Close()
	}

	if werr := group.Wait(); werr != nil && err == nil {
		c.logger.Warn("worker returned an error after the run", "error",
			werr)
	}
	return result, err
}

// loop runs rounds until every worker has finished or failed
func (c *Coordinator) loop(ctx context.Context) (Result, error) {
	n := len(c.conns)
	result := Result{Wealth: make(map[int]float64, n)}

	for c.done+c.failed < n {
		round := result.Rounds + 1
		if err := ctx.Err(); err != nil {
			return result, errors.Wrapf(err, "run: round %d", round)
		}

		contributors, segments, err := c.collect(ctx, round)
		if err != nil {
			return result, err
		}
		if len(segments) == 0 {
			continue
		}
		if active := n - c.done - c.failed; c.ready != active {
			return result, errors.Errorf("run: round %d: %d of %d active "+
				"workers ready", round, c.ready, active)
		}

		stats, err := c.update(round, segments)
		if err != nil {
			return result, err
		}

		finished, err := c.release(ctx, round, contributors, segments)
		if err != nil {
			return result, err
		}
		var summarised []int
		for _, i := range finished {
			wealth, err := c.summary(ctx, i)
			if errors.Is(err, ErrChannelClosed) && !c.cfg.AbortOnWorkerFailure {
				c.logger.Warn("excluding worker", "worker", i, "round", round,
					"error", err)
				c.states[i] = Failed
				c.done--
				c.failed++
				continue
			} else if err != nil {
				return result, errors.Wrapf(err, "run: round %d", round)
			}
			result.Wealth[i] = wealth
			summarised = append(summarised, i)
		}

		result.Rounds = round
		result.Steps += stats.Steps
		stats.Finished = summarised

		c.logger.Debug("round complete", "round", round,
			"contributors", stats.Contributors, "loss", stats.Loss,
			"finished", c.done, "failed", c.failed)

		for _, hook := range c.hooks {
			if err := hook(stats); err != nil {
				return result, errors.Wrapf(err, "run: round %d hook", round)
			}
		}
	}

	for i, s := range c.states {
		if s == Failed {
			result.Failed = append(result.Failed, i)
		}
	}
	return result, nil
}

// collect waits for one segment from every worker which has neither
// finished nor failed. Segments are received in worker order, but
// workers may produce them in any order.
func (c *Coordinator) collect(ctx context.Context, round int) ([]int,
	[]*Segment, error) {
	var contributors []int
	var segments []*Segment

	for i, conn := range c.conns {
		if c.states[i] == Finished || c.states[i] == Failed {
			continue
		}

		msg, err := conn.Recv(ctx, c.cfg.WorkerTimeout)
		if errors.Is(err, ErrChannelClosed) && !c.cfg.AbortOnWorkerFailure {
			c.logger.Warn("excluding worker", "worker", i, "round", round,
				"error", err)
			c.states[i] = Failed
			c.failed++
			continue
		} else if err != nil {
			return nil, nil, errors.Wrapf(err, "run: round %d", round)
		}

		if msg.Kind != SegmentMessage || msg.Segment == nil {
			return nil, nil, errors.Errorf("run: round %d: worker %d sent "+
				"message of kind %d, expected a segment", round, i, msg.Kind)
		}
		if err := msg.Segment.Validate(); err != nil {
			return nil, nil, errors.Wrapf(err, "run: round %d: worker %d",
				round, i)
		}

		c.states[i] = AwaitingRelease
		c.ready++
		contributors = append(contributors, i)
		segments = append(segments, msg.Segment)
	}

	return contributors, segments, nil
}

// update computes the gradient of every segment at the learner's
// current parameters, averages them, and steps the learner once
func (c *Coordinator) update(round int, segments []*Segment) (RoundStats,
	error) {
	stats := RoundStats{
		Round:        round,
		Contributors: len(segments),
		Wealth:       make(map[int]float64, len(segments)),
	}

	grads := make([]Gradient, len(segments))
	for i, seg := range segments {
		grad, loss, err := c.learner.Gradient(seg)
		if err != nil {
			return stats, errors.Wrapf(err, "run: round %d: could not "+
				"compute gradient of worker %d", round, seg.Worker)
		}
		grads[i] = grad
		stats.Loss += loss / float64(len(segments))
		stats.Steps += seg.Len()
		stats.Wealth[seg.Worker] = seg.Wealth
	}

	mean, err := MeanGradient(grads...)
	if err != nil {
		return stats, errors.Wrapf(err, "run: round %d", round)
	}
	if err := c.learner.Step(mean); err != nil {
		return stats, errors.Wrapf(err, "run: round %d: could not step "+
			"learner", round)
	}
	return stats, nil
}

// release releases every waiting worker with the updated parameters
// and returns the workers whose episode ended
func (c *Coordinator) release(ctx context.Context, round int,
	contributors []int, segments []*Segment) ([]int, error) {
	params := c.learner.Params()

	var finished []int
	for k, i := range contributors {
		if err := c.conns[i].Release(ctx, round, params); err != nil {
			return finished, errors.Wrapf(err, "run: round %d: could not "+
				"release worker %d", round, i)
		}

		if segments[k].Terminal {
			c.states[i] = Finished
			c.done++
			finished = append(finished, i)
		} else {
			c.states[i] = Collecting
		}
	}
	c.ready = 0

	return finished, nil
}

// summary receives the final summary of a finished worker
func (c *Coordinator) summary(ctx context.Context, worker int) (float64,
	error) {
	msg, err := c.conns[worker].Recv(ctx, c.cfg.WorkerTimeout)
	if err != nil {
		return 0, err
	}
	if msg.Kind != SummaryMessage || msg.Summary == nil {
		return 0, errors.Errorf("worker %d sent message of kind %d, "+
			"expected a summary", worker, msg.Kind)
	}
	return msg.Summary.Wealth, nil
}
