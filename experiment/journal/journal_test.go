package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samuelfneumann/portfolioa2c/a2c"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()

	j, err := NewSQLite(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	j := newTestSQLite(t)

	id, err := j.StartRun(ctx, 2, 5, "workers: 2")
	require.NoError(t, err)
	assert.Len(t, id, 26)

	require.NoError(t, j.RecordRound(ctx, id, a2c.RoundStats{
		Round: 1, Contributors: 2, Steps: 10, Loss: 1.5, Finished: []int{1},
	}))
	require.NoError(t, j.RecordRound(ctx, id, a2c.RoundStats{
		Round: 2, Contributors: 1, Steps: 3, Loss: 0.5, Finished: []int{0},
	}))
	require.NoError(t, j.RecordWealth(ctx, id, 0, 1_010_000))
	require.NoError(t, j.RecordWealth(ctx, id, 1, 990_000))
	require.NoError(t, j.FinishRun(ctx, id, Completed, 2))

	runs, err := j.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)
	assert.Equal(t, Completed, runs[0].Status)
	assert.Equal(t, 2, runs[0].Rounds)
	assert.Equal(t, 5, runs[0].TMax)
	assert.True(t, runs[0].Finished.Valid)

	rounds, err := j.Rounds(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []Round{
		{Round: 1, Contributors: 2, Steps: 10, Loss: 1.5, Finished: 1},
		{Round: 2, Contributors: 1, Steps: 3, Loss: 0.5, Finished: 1},
	}, rounds)

	wealth, err := j.Wealth(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, map[int]float64{0: 1_010_000, 1: 990_000}, wealth)
}

func TestRunsAreOrdered(t *testing.T) {
	ctx := context.Background()
	j := newTestSQLite(t)

	first, err := j.StartRun(ctx, 1, 1, "")
	require.NoError(t, err)
	second, err := j.StartRun(ctx, 1, 1, "")
	require.NoError(t, err)

	runs, err := j.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, first, runs[0].ID)
	assert.Equal(t, second, runs[1].ID)
	assert.Equal(t, Running, runs[1].Status)
	assert.False(t, runs[1].Finished.Valid)
}

func TestFinishUnknownRun(t *testing.T) {
	j := newTestSQLite(t)
	assert.Error(t, j.FinishRun(context.Background(), "nope", Failed, 0))
}
