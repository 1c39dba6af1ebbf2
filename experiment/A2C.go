package experiment

import (
	"context"
	"io"
	"log/slog"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/portfolioa2c/a2c"
	"github.com/samuelfneumann/portfolioa2c/environment/portfolio"
	"github.com/samuelfneumann/portfolioa2c/experiment/checkpointer"
	"github.com/samuelfneumann/portfolioa2c/experiment/journal"
	"github.com/samuelfneumann/portfolioa2c/experiment/tracker"
	"github.com/samuelfneumann/portfolioa2c/policy"
	"github.com/samuelfneumann/portfolioa2c/utils/progressbar"
)

// actorSeedOffset separates the seeds of actors from those of the
// environments they trade in
const actorSeedOffset = 1 << 32

// progressWidth is the width of the progress bar in characters
const progressWidth = 40

// Evaluation is the result of trading one window with the current
// policy
type Evaluation struct {
	// Wealth is the value of the portfolio on each trading day
	Wealth []float64

	// Benchmark is the equal-share index on each trading day, scaled
	// so that it starts at the initial cash of the portfolio
	Benchmark []float64
}

// Final returns the value of the portfolio on the last trading day
func (e *Evaluation) Final() float64 {
	return e.Wealth[len(e.Wealth)-1]
}

// Report describes a completed training run
type Report struct {
	// RunID is the id of the run in the journal, empty if no journal is
	// configured
	RunID  string
	Result a2c.Result

	// Losses holds the mean segment loss of each round
	Losses []float64

	// Evaluation is the evaluation on the validation window, nil if no
	// validation window is configured
	Evaluation *Evaluation
}

// A2C trains a policy with synchronous advantage actor-critic. Each
// worker trades its own share of the training window with its own
// market and its own copy of the policy.
type A2C struct {
	cfg    Config
	logger *slog.Logger

	learner *policy.Learner
	workers []*a2c.Worker
	windows []Window
	store   checkpointer.Store

	// round is the number of rounds the learner's parameters have been
	// trained for, including rounds of resumed checkpoints
	round    int
	progress io.Writer
}

// NewA2C returns a new A2C experiment described by cfg
func NewA2C(cfg Config, logger *slog.Logger) (*A2C, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "newA2C")
	}
	if logger == nil {
		logger = slog.Default()
	}

	windows, err := cfg.Train.Windows(cfg.Workers)
	if err != nil {
		return nil, errors.Wrap(err, "newA2C")
	}

	envs := make([]*portfolio.Portfolio, cfg.Workers)
	for i := range envs {
		envs[i], err = portfolio.New(cfg.Market, cfg.Seed+uint64(2*i))
		if err != nil {
			return nil, errors.Wrapf(err, "newA2C: environment %d", i)
		}
	}

	learner, err := policy.NewLearner(envs[0].StateShape(),
		envs[0].ActionCount(), cfg.Policy, cfg.Solver, cfg.Init)
	if err != nil {
		return nil, errors.Wrap(err, "newA2C")
	}

	workers := make([]*a2c.Worker, cfg.Workers)
	for i, env := range envs {
		actor, err := policy.NewActor(learner,
			cfg.Seed+actorSeedOffset+uint64(i))
		if err != nil {
			return nil, errors.Wrapf(err, "newA2C: actor %d", i)
		}

		w := windows[i]
		workers[i], err = a2c.NewWorker(i, env, actor, cfg.TMax, w.Start.Time,
			w.End.Time, logger)
		if err != nil {
			return nil, errors.Wrap(err, "newA2C")
		}
		workers[i].SetVerbose(cfg.Verbose)
	}

	return &A2C{
		cfg:     cfg,
		logger:  logger,
		learner: learner,
		workers: workers,
		windows: windows,
		store:   checkpointer.Store{Dir: cfg.Checkpoint.Dir},
	}, nil
}

// Learner returns the authoritative learner of the experiment
func (e *A2C) Learner() *policy.Learner {
	return e.learner
}

// Windows returns the training window of each worker
func (e *A2C) Windows() []Window {
	return append([]Window(nil), e.windows...)
}

// SetProgress sets where a progress bar of completed rounds is
// displayed. A nil writer disables the progress bar.
func (e *A2C) SetProgress(w io.Writer) {
	e.progress = w
}

// Rounds returns the number of rounds the run will take: the number of
// segments in the longest episode of any worker
func (e *A2C) Rounds() int {
	rounds := 0
	for _, w := range e.windows {
		n := (w.Steps() + e.cfg.TMax - 1) / e.cfg.TMax
		if n > rounds {
			rounds = n
		}
	}
	return rounds
}

// Resume loads the learner's parameters from the configured checkpoint.
// If the checkpoint does not exist and freshOnMissing is true, training
// continues from the current parameters; otherwise the error is
// returned.
func (e *A2C) Resume(freshOnMissing bool) error {
	c, err := e.store.Load(e.cfg.Checkpoint.Name)
	if errors.Is(err, checkpointer.ErrCheckpointNotFound) && freshOnMissing {
		e.logger.Warn("no checkpoint to resume from, starting fresh",
			"path", e.store.Path(e.cfg.Checkpoint.Name))
		return nil
	} else if err != nil {
		return errors.Wrap(err, "resume")
	}

	if err := e.learner.SetParams(c.Params); err != nil {
		return errors.Wrapf(checkpointer.ErrCheckpointCorrupt, "resume: %v",
			err)
	}
	e.round = c.Round
	e.logger.Info("resumed from checkpoint", "path",
		e.store.Path(e.cfg.Checkpoint.Name), "round", c.Round)
	return nil
}

// Run trains the learner until every worker's episode has finished,
// then saves the final checkpoint and evaluates the trained policy on
// the validation window
func (e *A2C) Run(ctx context.Context) (Report, error) {
	var report Report

	var j *journal.SQLite
	if e.cfg.Output.Journal != "" {
		var err error
		j, err = journal.NewSQLite(e.cfg.Output.Journal)
		if err != nil {
			return report, errors.Wrap(err, "run")
		}
		defer j.Close()

		report.RunID, err = j.StartRun(ctx, e.cfg.Workers, e.cfg.TMax,
			e.cfg.JSON())
		if err != nil {
			return report, errors.Wrap(err, "run")
		}
	}

	logger := e.logger
	if report.RunID != "" {
		logger = logger.With("run", report.RunID)
	}
	logger.Info("starting training", "workers", e.cfg.Workers, "tMax",
		e.cfg.TMax, "rounds", e.Rounds(), "fromRound", e.round)

	coord := a2c.NewCoordinator(e.learner, e.cfg.Coordinator, logger)
	if err := e.register(ctx, coord, j, report.RunID); err != nil {
		return report, errors.Wrap(err, "run")
	}

	losses := tracker.NewLoss(e.cfg.Output.Loss)
	coord.OnRound(func(stats a2c.RoundStats) error {
		losses.Track(stats)
		return nil
	})

	var bar *progressbar.ManualProgressBar
	if e.progress != nil {
		bar = progressbar.NewManualProgressBar(e.progress, progressWidth,
			e.Rounds())
		coord.OnRound(func(a2c.RoundStats) error {
			bar.Increment()
			bar.Display()
			return nil
		})
	}

	result, err := coord.Run(ctx, e.workers)
	if bar != nil {
		bar.Finish()
	}
	report.Result = result
	report.Losses = losses.Data()
	e.round += result.Rounds

	if err != nil {
		if j != nil {
			// The run context may already be cancelled
			ferr := j.FinishRun(context.Background(), report.RunID,
				journal.Failed, result.Rounds)
			if ferr != nil {
				logger.Error("could not journal failed run", "error", ferr)
			}
		}
		return report, errors.Wrap(err, "run")
	}

	logger.Info("training finished", "rounds", result.Rounds, "steps",
		result.Steps, "failed", len(result.Failed))
	for worker, wealth := range result.Wealth {
		logger.Info("final wealth", "worker", worker, "wealth", wealth)
	}

	if err := e.checkpoint(); err != nil {
		return report, errors.Wrap(err, "run")
	}
	if e.cfg.Output.Loss != "" {
		if err := losses.Save(); err != nil {
			return report, errors.Wrap(err, "run: could not save losses")
		}
	}

	if e.cfg.Validation != nil {
		eval, err := e.Evaluate(*e.cfg.Validation)
		if err != nil {
			return report, errors.Wrap(err, "run")
		}
		report.Evaluation = eval
		logger.Info("validation finished", "wealth", eval.Final(),
			"benchmark", eval.Benchmark[len(eval.Benchmark)-1])

		if e.cfg.Output.Plot != "" {
			if err := e.plot(eval); err != nil {
				return report, errors.Wrap(err, "run")
			}
		}
	}

	if j != nil {
		for worker, wealth := range result.Wealth {
			if err := j.RecordWealth(ctx, report.RunID, worker,
				wealth); err != nil {
				return report, errors.Wrap(err, "run")
			}
		}
		err := j.FinishRun(ctx, report.RunID, journal.Completed,
			result.Rounds)
		if err != nil {
			return report, errors.Wrap(err, "run")
		}
	}

	return report, nil
}

// register registers the journal and periodic checkpoints with the
// coordinator
func (e *A2C) register(ctx context.Context, coord *a2c.Coordinator,
	j *journal.SQLite, runID string) error {
	if j != nil {
		coord.OnRound(func(stats a2c.RoundStats) error {
			return j.RecordRound(ctx, runID, stats)
		})
	}

	if e.cfg.Checkpoint.Every > 0 {
		name := e.cfg.Checkpoint.Name
		check, err := checkpointer.NewNStep(e.cfg.Checkpoint.Every, e.store,
			e.learner.Params, func() string { return name })
		if err != nil {
			return err
		}

		start := e.round
		coord.OnRound(func(stats a2c.RoundStats) error {
			stats.Round += start
			return check.Checkpoint(stats)
		})
	}
	return nil
}

// checkpoint saves the learner's current parameters
func (e *A2C) checkpoint() error {
	c := checkpointer.Checkpoint{Round: e.round, Params: e.learner.Params()}
	if err := e.store.Save(e.cfg.Checkpoint.Name, c); err != nil {
		return errors.Wrap(err, "checkpoint")
	}
	e.logger.Info("saved checkpoint", "path",
		e.store.Path(e.cfg.Checkpoint.Name), "round", e.round)
	return nil
}

// Evaluate trades the argument window once with a copy of the current
// policy in a market that no worker trades in
func (e *A2C) Evaluate(w Window) (*Evaluation, error) {
	seed := e.cfg.Seed + uint64(2*e.cfg.Workers)
	env, err := portfolio.New(e.cfg.Market, seed)
	if err != nil {
		return nil, errors.Wrap(err, "evaluate")
	}
	actor, err := policy.NewActor(e.learner, seed+actorSeedOffset)
	if err != nil {
		return nil, errors.Wrap(err, "evaluate")
	}
	if err := actor.SetParams(e.learner.Params()); err != nil {
		return nil, errors.Wrap(err, "evaluate")
	}

	step, err := env.Reset(w.Start.Time, w.End.Time)
	if err != nil {
		return nil, errors.Wrap(err, "evaluate")
	}
	wealth := []float64{step.Wealth}

	for !step.Last() {
		action, err := actor.SelectAction(step.RawObservation())
		if err != nil {
			return nil, errors.Wrapf(err, "evaluate: %v", step.Date.Format(
				DateLayout))
		}

		step, err = env.Step(mat.NewVecDense(len(action), action))
		if err != nil {
			return nil, errors.Wrap(err, "evaluate")
		}
		if e.cfg.Verbose {
			e.logger.Info("validation step", "step", step)
		}
		wealth = append(wealth, step.Wealth)
	}

	benchmark := env.BenchmarkSeries()
	floats.Scale(e.cfg.Market.InitialCash/benchmark[0], benchmark)

	return &Evaluation{Wealth: wealth, Benchmark: benchmark}, nil
}

// plot saves the wealth curve of an evaluation and its benchmark
func (e *A2C) plot(eval *Evaluation) error {
	series := tracker.NewSeries("Portfolio value", "Trading day", "Value")
	series.Record(eval.Wealth, "A2C")
	series.Record(eval.Benchmark, "Benchmark")

	if err := series.SavePlot(e.cfg.Output.Plot); err != nil {
		return errors.Wrap(err, "plot")
	}
	e.logger.Info("saved wealth plot", "path", e.cfg.Output.Plot)
	return nil
}
