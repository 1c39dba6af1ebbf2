package a2c

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/portfolioa2c/environment"
	ts "github.com/samuelfneumann/portfolioa2c/timestep"
)

// Worker runs one episode of an environment with a local copy of the
// policy, handing a Segment to the coordinator every TMax steps and at
// the end of the episode.
//
// The only way to interact with a running Worker is through the
// Channel passed to Run.
type Worker struct {
	id    int
	env   environment.Environment
	actor Actor
	tMax  int
	start time.Time
	end   time.Time

	logger      *slog.Logger
	verbose     bool
	startWealth float64
}

// NewWorker returns a new Worker with the given id which trades in env
// over the trading days in [start, end), sending a segment at least
// every tMax steps.
func NewWorker(id int, env environment.Environment, actor Actor, tMax int,
	start, end time.Time, logger *slog.Logger) (*Worker, error) {
	if tMax < 1 {
		return nil, errors.Errorf("newWorker: tMax must be positive, have %d",
			tMax)
	}
	if !start.Before(end) {
		return nil, errors.Errorf("newWorker: start %v must be before end %v",
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		id:     id,
		env:    env,
		actor:  actor,
		tMax:   tMax,
		start:  start,
		end:    end,
		logger: logger.With("worker", id),
	}, nil
}

// ID returns the worker's id
func (w *Worker) ID() int {
	return w.id
}

// SetVerbose sets whether every environment step is logged
func (w *Worker) SetVerbose(verbose bool) {
	w.verbose = verbose
}

// Run runs the worker's episode to completion. The worker closes its
// end of the channel when Run returns, so that any error is seen by the
// coordinator as ErrChannelClosed. Errors are never retried.
func (w *Worker) Run(ctx context.Context, conn *WorkerConn) (err error) {
	defer conn.Close()
	defer func() {
		if err != nil {
			w.logger.Error("worker stopped", "error", err)
		}
	}()

	step, err := w.env.Reset(w.start, w.end)
	if err != nil {
		return errors.Wrapf(err, "run: worker %d: could not reset "+
			"environment", w.id)
	}

	w.startWealth = step.Wealth
	buf := newBuffer(w.tMax)
	obs := step.RawObservation()
	steps := 0
	state := Collecting

	for state != Finished {
		switch state {
		case Collecting:
			action, err := w.actor.SelectAction(obs)
			if err != nil {
				return errors.Wrapf(err, "run: worker %d: could not select "+
					"action", w.id)
			}

			step, err = w.env.Step(mat.NewVecDense(len(action), action))
			if err != nil {
				return errors.Wrapf(err, "run: worker %d: could not step "+
					"environment", w.id)
			}
			steps++

			buf.remember(obs, action, step.Reward)
			obs = step.RawObservation()
			w.logStep(step)

			if buf.len() >= w.tMax || step.Last() {
				seg := buf.segment(w.id, step.Last(), obs, step.Wealth)
				if err := conn.Send(ctx, seg); err != nil {
					return errors.Wrapf(err, "run: worker %d", w.id)
				}
				state = AwaitingRelease
			}

		case AwaitingRelease:
			rel, err := conn.Recv(ctx)
			if err != nil {
				return errors.Wrapf(err, "run: worker %d", w.id)
			}
			if err := w.actor.SetParams(rel.Params); err != nil {
				return errors.Wrapf(err, "run: worker %d: could not load "+
					"parameters of round %d", w.id, rel.Round)
			}
			buf.clear()

			if !step.Last() {
				state = Collecting
				continue
			}

			summary := Summary{Worker: w.id, Wealth: step.Wealth, Steps: steps}
			if err := conn.SendSummary(ctx, summary); err != nil {
				return errors.Wrapf(err, "run: worker %d", w.id)
			}
			w.logger.Info("episode finished", "steps", steps,
				"wealth", step.Wealth)
			state = Finished
		}
	}

	return nil
}

func (w *Worker) logStep(step ts.TimeStep) {
	if !w.verbose {
		return
	}
	w.logger.Info("step",
		"date", step.Date.Format("2006-01-02"),
		"balance", int(step.Observation.AtVec(0)),
		"cumulative_return", int(step.Wealth-w.startWealth),
		"wealth", int(step.Wealth),
	)
}
