// Package trackers implements Trackers which record the metrics of a
// training run in memory, in logs, in SQLite databases, and in plots
package trackers

import (
	"github.com/samuelfneumann/onpolicy/experiment/tracker"
)

// Series tracks every metric of a run in memory and gob-encodes them
// to a file when saved. Saved data can be read back with
// tracker.LoadData.
type Series struct {
	data     tracker.Data
	filename string
}

// NewSeries returns a new Series which will save its data at the
// specified location filename. If filename is empty, the data is kept
// in memory only.
func NewSeries(filename string) *Series {
	return &Series{
		data:     make(tracker.Data),
		filename: filename,
	}
}

// Track caches a metric value
func (s *Series) Track(name string, value float64, step int) {
	s.data[name] = append(s.data[name], tracker.Point{Step: step,
		Value: value})
}

// Data returns the data tracked so far
func (s *Series) Data() tracker.Data {
	return s.data
}

// Save saves the data tracked by the Series to disk
func (s *Series) Save() error {
	if s.filename == "" {
		return nil
	}
	return s.data.Save(s.filename)
}
