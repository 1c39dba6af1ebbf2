package checkpointer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samuelfneumann/portfolioa2c/a2c"
)

func TestSaveLoad(t *testing.T) {
	store := Store{Dir: filepath.Join(t.TempDir(), "checkpoints")}
	want := Checkpoint{Round: 12, Params: a2c.Params{{1, 2, 3}, {-0.5}}}

	require.NoError(t, store.Save("final", want))
	got, err := store.Load("final")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	entries, err := os.ReadDir(store.Dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files left behind")
}

func TestLoadMissing(t *testing.T) {
	store := Store{Dir: t.TempDir()}
	_, err := store.Load("final")
	assert.True(t, errors.Is(err, ErrCheckpointNotFound))
}

func TestLoadCorrupt(t *testing.T) {
	store := Store{Dir: t.TempDir()}
	require.NoError(t, os.WriteFile(store.Path("final"), []byte("not gob"),
		0o644))

	_, err := store.Load("final")
	assert.True(t, errors.Is(err, ErrCheckpointCorrupt))
}

func TestNStep(t *testing.T) {
	store := Store{Dir: t.TempDir()}
	calls := 0
	params := func() a2c.Params {
		calls++
		return a2c.Params{{float64(calls)}}
	}

	c, err := NewNStep(2, store, params, FilenameEnumerator(0, "round"))
	require.NoError(t, err)
	for round := 1; round <= 5; round++ {
		require.NoError(t, c.Checkpoint(a2c.RoundStats{Round: round}))
	}
	assert.Equal(t, 2, calls)

	first, err := store.Load("round1")
	require.NoError(t, err)
	assert.Equal(t, 2, first.Round)
	second, err := store.Load("round2")
	require.NoError(t, err)
	assert.Equal(t, 4, second.Round)
	assert.Equal(t, a2c.Params{{2}}, second.Params)

	_, err = store.Load("round3")
	assert.True(t, errors.Is(err, ErrCheckpointNotFound))

	_, err = NewNStep(0, store, params, FilenameEnumerator(0, "round"))
	assert.Error(t, err)
}
