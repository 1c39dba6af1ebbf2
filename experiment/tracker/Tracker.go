// Package tracker implements Trackers, which track and save data in an
// experiment
package tracker

import (
	"encoding/gob"
	"os"

	"github.com/pkg/errors"

	"github.com/samuelfneumann/portfolioa2c/a2c"
)

// Tracker keeps track of data from each synchronisation round and
// saves the data after training has finished
type Tracker interface {
	Track(a2c.RoundStats)
	Save() error
}

// saveData gob encodes data into the file at filename
func saveData(filename string, data []float64) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "could not open save file")
	}

	if err := gob.NewEncoder(file).Encode(data); err != nil {
		file.Close()
		return errors.Wrap(err, "could not encode data")
	}
	return file.Close()
}

// LoadData loads and returns the data saved by a Tracker
func LoadData(filename string) ([]float64, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "loadData: could not open data file")
	}
	defer file.Close()

	var data []float64
	if err := gob.NewDecoder(file).Decode(&data); err != nil {
		return nil, errors.Wrap(err, "loadData: could not decode data")
	}

	return data, nil
}
