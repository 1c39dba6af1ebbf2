package tracker

import (
	"github.com/samuelfneumann/portfolioa2c/a2c"
)

// Loss tracks and saves the mean loss of the segments of each round
type Loss struct {
	losses   []float64
	filename string
}

// NewLoss creates and returns a new *Loss Tracker which saves to
// filename
func NewLoss(filename string) *Loss {
	return &Loss{filename: filename}
}

// Track records the loss of a round
func (l *Loss) Track(stats a2c.RoundStats) {
	l.losses = append(l.losses, stats.Loss)
}

// Data returns the losses tracked so far
func (l *Loss) Data() []float64 {
	return append([]float64(nil), l.losses...)
}

// Save saves the data tracked by the Loss Tracker to disk.
func (l *Loss) Save() error {
	return saveData(l.filename, l.losses)
}
