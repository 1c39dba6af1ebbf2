package experiment

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samuelfneumann/portfolioa2c/experiment/checkpointer"
	"github.com/samuelfneumann/portfolioa2c/experiment/journal"
	"github.com/samuelfneumann/portfolioa2c/experiment/tracker"
	"github.com/samuelfneumann/portfolioa2c/solver"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// smallConfig returns a configuration of two workers trading two assets
// for five trading days each
func smallConfig(t *testing.T) Config {
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Workers = 2
	cfg.TMax = 3
	cfg.Train = Window{
		Start: NewDate(2024, time.January, 1),
		End:   NewDate(2024, time.January, 15),
	}
	cfg.Validation = &Window{
		Start: NewDate(2024, time.February, 1),
		End:   NewDate(2024, time.February, 8),
	}
	cfg.Policy.Hidden = 8
	cfg.Market.Assets = 2
	cfg.Market.InitialCash = 1000
	cfg.Market.ActionScale = 1
	cfg.Checkpoint = CheckpointConfig{
		Dir:   filepath.Join(dir, "checkpoints"),
		Name:  "test",
		Every: 1,
	}
	cfg.Output = OutputConfig{
		Journal: filepath.Join(dir, "runs.db"),
		Plot:    filepath.Join(dir, "wealth.png"),
		Loss:    filepath.Join(dir, "loss.gob"),
	}
	return cfg
}

func TestWindows(t *testing.T) {
	w := Window{
		Start: NewDate(2024, time.January, 1),
		End:   NewDate(2024, time.January, 15),
	}
	require.Equal(t, 10, w.TradingDays())

	windows, err := w.Windows(3)
	require.NoError(t, err)
	require.Len(t, windows, 3)

	assert.Equal(t, NewDate(2024, time.January, 1), windows[0].Start)
	assert.Equal(t, NewDate(2024, time.January, 5), windows[0].End)
	assert.Equal(t, NewDate(2024, time.January, 5), windows[1].Start)
	assert.Equal(t, NewDate(2024, time.January, 10), windows[1].End)
	assert.Equal(t, NewDate(2024, time.January, 10), windows[2].Start)
	assert.Equal(t, w.End, windows[2].End)

	days := 0
	for i, win := range windows {
		assert.GreaterOrEqual(t, win.TradingDays(), 2, "window %d", i)
		days += win.TradingDays()
	}
	assert.Equal(t, w.TradingDays(), days)
	assert.Equal(t, []int{4, 3, 3}, []int{windows[0].TradingDays(),
		windows[1].TradingDays(), windows[2].TradingDays()})
}

func TestWindowsTooShort(t *testing.T) {
	w := Window{
		Start: NewDate(2024, time.January, 1),
		End:   NewDate(2024, time.January, 4),
	}
	_, err := w.Windows(2)
	assert.Error(t, err)

	_, err = w.Windows(0)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cases := map[string]func(*Config){
		"no workers":    func(c *Config) { c.Workers = 0 },
		"no t_max":      func(c *Config) { c.TMax = 0 },
		"short train":   func(c *Config) { c.Workers = 10_000 },
		"no solver":     func(c *Config) { c.Solver = nil },
		"no init":       func(c *Config) { c.Init = nil },
		"bad gamma":     func(c *Config) { c.Policy.Gamma = 2 },
		"no assets":     func(c *Config) { c.Market.Assets = 0 },
		"no checkpoint": func(c *Config) { c.Checkpoint.Name = "" },
		"reversed train": func(c *Config) {
			c.Train.Start, c.Train.End = c.Train.End, c.Train.Start
		},
		"short validation": func(c *Config) {
			c.Validation.End = c.Validation.Start
		},
	}
	for name, modify := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadConfigYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
workers: 2
t_max: 3
train:
  start: 2024-01-01
  end: 2024-01-15
solver:
  type: RMSProp
  config:
    step_size: 0.01
    epsilon: 0.000001
    rho: 0.9
    batch: 1
coordinator:
  worker_timeout: 30s
  abort_on_worker_failure: false
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 3, cfg.TMax)
	assert.Equal(t, NewDate(2024, time.January, 1), cfg.Train.Start)
	assert.Equal(t, solver.RMSProp, cfg.Solver.Type)
	assert.Equal(t, 30*time.Second, cfg.Coordinator.WorkerTimeout)
	assert.False(t, cfg.Coordinator.AbortOnWorkerFailure)

	// Missing fields keep their defaults
	assert.Equal(t, DefaultConfig().Market, cfg.Market)
	assert.Equal(t, DefaultConfig().Policy, cfg.Policy)
}

func TestSaveThenLoadConfig(t *testing.T) {
	for _, name := range []string{"config.yaml", "config.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			cfg := smallConfig(t)
			require.NoError(t, cfg.SaveToFile(path))

			loaded, err := LoadConfig(path)
			require.NoError(t, err)

			assert.Equal(t, cfg.Workers, loaded.Workers)
			assert.Equal(t, cfg.Train, loaded.Train)
			assert.Equal(t, *cfg.Validation, *loaded.Validation)
			assert.Equal(t, cfg.Solver.Type, loaded.Solver.Type)
			assert.Equal(t, cfg.Solver.Config, loaded.Solver.Config)
			assert.Equal(t, cfg.Init.Type, loaded.Init.Type)
			assert.Equal(t, cfg.Init.Config, loaded.Init.Config)
			assert.Equal(t, cfg.Market, loaded.Market)
			assert.Equal(t, cfg.Policy, loaded.Policy)
			assert.Equal(t, cfg.Checkpoint, loaded.Checkpoint)
			assert.Equal(t, cfg.Output, loaded.Output)
		})
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 0\n"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	cfg := smallConfig(t)
	exp, err := NewA2C(cfg, quietLogger())
	require.NoError(t, err)

	var progress bytes.Buffer
	exp.SetProgress(&progress)
	assert.Equal(t, 2, exp.Rounds())

	report, err := exp.Run(context.Background())
	require.NoError(t, err)

	// Both workers trade 5 trading days, so 4 steps each in segments of
	// at most 3 steps
	assert.Equal(t, 2, report.Result.Rounds)
	assert.Equal(t, 8, report.Result.Steps)
	assert.Len(t, report.Result.Wealth, 2)
	assert.Empty(t, report.Result.Failed)
	assert.Len(t, report.Losses, 2)
	assert.Contains(t, progress.String(), "[2/2")

	// Journal
	j, err := journal.NewSQLite(cfg.Output.Journal)
	require.NoError(t, err)
	defer j.Close()
	runs, err := j.ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, report.RunID, runs[0].ID)
	assert.Equal(t, journal.Completed, runs[0].Status)
	assert.Equal(t, 2, runs[0].Rounds)
	rounds, err := j.Rounds(context.Background(), report.RunID)
	require.NoError(t, err)
	assert.Len(t, rounds, 2)
	wealth, err := j.Wealth(context.Background(), report.RunID)
	require.NoError(t, err)
	assert.Equal(t, report.Result.Wealth, wealth)

	// Checkpoint
	c, err := checkpointer.Store{Dir: cfg.Checkpoint.Dir}.Load(
		cfg.Checkpoint.Name)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Round)
	assert.Equal(t, exp.Learner().Params(), c.Params)

	// Losses
	losses, err := tracker.LoadData(cfg.Output.Loss)
	require.NoError(t, err)
	assert.Equal(t, report.Losses, losses)

	// Validation over 5 trading days
	require.NotNil(t, report.Evaluation)
	assert.Len(t, report.Evaluation.Wealth, 5)
	assert.Len(t, report.Evaluation.Benchmark, 5)
	assert.InDelta(t, cfg.Market.InitialCash, report.Evaluation.Wealth[0],
		1e-9)
	assert.InDelta(t, cfg.Market.InitialCash,
		report.Evaluation.Benchmark[0], 1e-9)
	_, err = os.Stat(cfg.Output.Plot)
	assert.NoError(t, err)
}

func TestResume(t *testing.T) {
	cfg := smallConfig(t)
	cfg.Validation = nil
	cfg.Output = OutputConfig{}

	exp, err := NewA2C(cfg, quietLogger())
	require.NoError(t, err)

	err = exp.Resume(false)
	assert.True(t, errors.Is(err, checkpointer.ErrCheckpointNotFound))
	require.NoError(t, exp.Resume(true))

	report, err := exp.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.RunID)
	assert.Nil(t, report.Evaluation)

	resumed, err := NewA2C(cfg, quietLogger())
	require.NoError(t, err)
	assert.NotEqual(t, exp.Learner().Params(), resumed.Learner().Params())
	require.NoError(t, resumed.Resume(false))
	assert.Equal(t, exp.Learner().Params(), resumed.Learner().Params())

	// Rounds continue from the checkpoint
	_, err = resumed.Run(context.Background())
	require.NoError(t, err)
	c, err := checkpointer.Store{Dir: cfg.Checkpoint.Dir}.Load(
		cfg.Checkpoint.Name)
	require.NoError(t, err)
	assert.Equal(t, 4, c.Round)
}

func TestRunCancelled(t *testing.T) {
	cfg := smallConfig(t)
	cfg.Output = OutputConfig{}

	exp, err := NewA2C(cfg, quietLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = exp.Run(ctx)
	assert.Error(t, err)

	_, err = checkpointer.Store{Dir: cfg.Checkpoint.Dir}.Load(
		cfg.Checkpoint.Name)
	assert.True(t, errors.Is(err, checkpointer.ErrCheckpointNotFound))
}
