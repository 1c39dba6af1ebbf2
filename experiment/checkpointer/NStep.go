package checkpointer

import (
	"github.com/pkg/errors"

	"github.com/samuelfneumann/portfolioa2c/a2c"
)

// nStep implements checkpointing every N rounds
type nStep struct {
	interval int
	store    Store
	params   func() a2c.Params

	// filename returns the name to save the next checkpoint under.
	//
	// If each checkpoint should be saved in a separate file with
	// each file having an incremented number as a suffix (e.g.
	// round1.gob, round2.gob, ..., roundK.gob), then simply use the
	// static function FilenameEnumerator. To keep only the latest
	// checkpoint, return the same name on every call.
	filename func() string
}

// NewNStep returns a checkpointer that saves the parameters returned by
// params every n rounds.
func NewNStep(n int, store Store, params func() a2c.Params,
	filename func() string) (Checkpointer, error) {
	if n <= 0 {
		return nil, errors.Errorf("newNStep: interval must be positive, "+
			"have %d", n)
	}
	return &nStep{
		interval: n,
		store:    store,
		params:   params,
		filename: filename,
	}, nil
}

// Checkpoint saves a checkpoint if the round is a multiple of the
// checkpointing interval
func (n *nStep) Checkpoint(stats a2c.RoundStats) error {
	if stats.Round%n.interval != 0 {
		return nil
	}
	c := Checkpoint{Round: stats.Round, Params: n.params()}
	return n.store.Save(n.filename(), c)
}
