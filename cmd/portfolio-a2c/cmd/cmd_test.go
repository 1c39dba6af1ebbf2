package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samuelfneumann/portfolioa2c/a2c"
	"github.com/samuelfneumann/portfolioa2c/experiment"
	"github.com/samuelfneumann/portfolioa2c/experiment/journal"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestConfigCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	out := execute(t, "config", "--out", path)
	assert.Contains(t, out, path)

	cfg, err := experiment.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, experiment.DefaultConfig().Workers, cfg.Workers)
	assert.Equal(t, experiment.DefaultConfig().Market, cfg.Market)
}

func TestRunsCommand(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.db")

	j, err := journal.NewSQLite(path)
	require.NoError(t, err)
	id, err := j.StartRun(ctx, 2, 5, "{}")
	require.NoError(t, err)
	require.NoError(t, j.RecordRound(ctx, id, a2c.RoundStats{
		Round: 1, Contributors: 2, Steps: 10, Loss: 0.25,
	}))
	require.NoError(t, j.RecordWealth(ctx, id, 1, 1234.5))
	require.NoError(t, j.FinishRun(ctx, id, journal.Completed, 1))
	require.NoError(t, j.Close())

	out := execute(t, "runs", "--journal", path)
	assert.Contains(t, out, id)
	assert.Contains(t, out, journal.Completed)

	out = execute(t, "runs", "--journal", path, "--rounds", id)
	assert.Contains(t, out, "0.25")
	assert.Contains(t, out, "1234.50")
}

func TestNewLogger(t *testing.T) {
	defer func() { logLevel, logJSON = "info", false }()

	logLevel = "warn"
	var buf bytes.Buffer
	logger, err := newLogger(&buf)
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	logLevel = "verbose"
	_, err = newLogger(&buf)
	assert.Error(t, err)
}
