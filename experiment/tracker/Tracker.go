// Package tracker defines Trackers, which record the scalar metrics
// of a training run and save them once the run has finished
package tracker

import (
	"encoding/gob"
	"fmt"
	"os"
)

// Tracker keeps track of scalar metrics generated during training and
// saves the data after training has finished
type Tracker interface {
	// Track records value as the value of metric name at the global
	// environment step
	Track(name string, value float64, step int)

	Save() error
}

// Point is a single tracked value
type Point struct {
	Step  int
	Value float64
}

// Data maps each metric name to its tracked values in order
type Data map[string][]Point

// Values returns the values of metric name without their steps
func (d Data) Values(name string) []float64 {
	points := d[name]
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	return values
}

// Save gob-encodes the data to filename
func (d Data) Save(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("save: could not open save file: %v", err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(d); err != nil {
		return fmt.Errorf("save: could not encode data: %v", err)
	}
	return nil
}

// LoadData loads and returns the data saved by Data.Save
func LoadData(filename string) (Data, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("loadData: could not open data file: %v", err)
	}
	defer file.Close()

	var data Data
	if err := gob.NewDecoder(file).Decode(&data); err != nil {
		return nil, fmt.Errorf("loadData: could not decode data: %v", err)
	}
	return data, nil
}
