// Package checkpointer implements saving and loading the parameters of
// a learner during and after training
package checkpointer

import (
	"encoding/gob"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/samuelfneumann/portfolioa2c/a2c"
)

var (
	// ErrCheckpointNotFound is returned when loading a checkpoint which
	// does not exist
	ErrCheckpointNotFound = errors.New("checkpoint not found")

	// ErrCheckpointCorrupt is returned when a checkpoint cannot be
	// decoded
	ErrCheckpointCorrupt = errors.New("checkpoint corrupt")
)

// extension of checkpoint files
const extension = ".gob"

// Checkpointer checkpoints parameters after synchronisation rounds
type Checkpointer interface {
	Checkpoint(a2c.RoundStats) error
}

// Checkpoint is the data saved in a checkpoint file
type Checkpoint struct {
	Round  int
	Params a2c.Params
}

// Store saves and loads checkpoints as gob files in a directory
type Store struct {
	Dir string
}

// Path returns the path of the checkpoint file with the argument name
func (s Store) Path(name string) string {
	return filepath.Join(s.Dir, name+extension)
}

// Save saves a checkpoint under the argument name, replacing any
// existing checkpoint of the same name. The file is written to a
// temporary file first so that an interrupted save never leaves a
// partial checkpoint behind.
func (s Store) Save(name string, c Checkpoint) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return errors.Wrap(err, "save: could not create checkpoint directory")
	}

	file, err := os.CreateTemp(s.Dir, name+"-*.tmp")
	if err != nil {
		return errors.Wrap(err, "save: could not create checkpoint file")
	}
	defer os.Remove(file.Name())

	if err := gob.NewEncoder(file).Encode(c); err != nil {
		file.Close()
		return errors.Wrap(err, "save: could not encode checkpoint")
	}
	if err := file.Close(); err != nil {
		return errors.Wrap(err, "save: could not write checkpoint")
	}

	if err := os.Rename(file.Name(), s.Path(name)); err != nil {
		return errors.Wrap(err, "save: could not move checkpoint")
	}
	return nil
}

// Load loads the checkpoint with the argument name
func (s Store) Load(name string) (Checkpoint, error) {
	file, err := os.Open(s.Path(name))
	if os.IsNotExist(err) {
		return Checkpoint{}, errors.Wrapf(ErrCheckpointNotFound, "load: %v",
			s.Path(name))
	} else if err != nil {
		return Checkpoint{}, errors.Wrap(err, "load")
	}
	defer file.Close()

	var c Checkpoint
	if err := gob.NewDecoder(file).Decode(&c); err != nil {
		return Checkpoint{}, errors.Wrapf(ErrCheckpointCorrupt, "load: %v: %v",
			s.Path(name), err)
	}
	if len(c.Params) == 0 {
		return Checkpoint{}, errors.Wrapf(ErrCheckpointCorrupt, "load: %v: "+
			"no parameters", s.Path(name))
	}
	return c, nil
}
