// Package wrappers implements environment wrappers which transform the
// observations or rewards of an underlying environment.
package wrappers

import (
	"fmt"
	"math"
	"sync"

	env "github.com/samuelfneumann/onpolicy/environment"
	ts "github.com/samuelfneumann/onpolicy/timestep"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ObservationStats is a running estimate of the mean and population
// variance of each observation feature. It is safe for concurrent use,
// so the environments of a vector can share a single estimate.
type ObservationStats struct {
	mu    sync.RWMutex
	mean  []float64
	m2    []float64 // Sum of squared deviations from the mean
	count float64
}

// NewObservationStats returns empty statistics over dims features
func NewObservationStats(dims int) *ObservationStats {
	return &ObservationStats{
		mean: make([]float64, dims),
		m2:   make([]float64, dims),
	}
}

// Dims returns the number of features
func (s *ObservationStats) Dims() int {
	return len(s.mean)
}

// Count returns the number of observations seen
func (s *ObservationStats) Count() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Update performs one step of Welford's online algorithm
func (s *ObservationStats) Update(x []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.update(x)
}

func (s *ObservationStats) update(x []float64) {
	s.count++
	for i := range x {
		delta := x[i] - s.mean[i]
		s.mean[i] += delta / s.count
		s.m2[i] += delta * (x[i] - s.mean[i])
	}
}

// Mean returns a copy of the running mean
func (s *ObservationStats) Mean() []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]float64(nil), s.mean...)
}

// Variance returns the running population variance
func (s *ObservationStats) Variance() []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.variance()
}

func (s *ObservationStats) variance() []float64 {
	variance := make([]float64, len(s.m2))
	if s.count > 0 {
		floats.ScaleTo(variance, 1/s.count, s.m2)
	}
	return variance
}

// normalize optionally updates the statistics with x, then returns x
// standardized by the statistics
func (s *ObservationStats) normalize(x []float64, epsilon float64,
	update bool) []float64 {
	if update {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.update(x)
	} else {
		s.mu.RLock()
		defer s.mu.RUnlock()
	}

	variance := s.variance()
	out := make([]float64, len(x))
	for i := range x {
		out[i] = (x[i] - s.mean[i]) / math.Sqrt(variance[i]+epsilon)
	}
	return out
}

// NormalizeObservation wraps an environment and standardizes each
// observation feature using a running estimate of its mean and
// variance:
//
//	obs <- (obs - mean) / sqrt(variance + epsilon)
//
// Statistics are updated with every observation returned by the
// wrapped environment until Freeze is called. Wrappers constructed with
// the same ObservationStats share them.
type NormalizeObservation struct {
	env.Environment
	stats   *ObservationStats
	epsilon float64
	frozen  bool
}

// NewNormalizeObservation returns a new NormalizeObservation wrapper.
// If stats is nil, the wrapper keeps its own statistics.
func NewNormalizeObservation(e env.Environment, stats *ObservationStats,
	epsilon float64) (*NormalizeObservation, error) {
	if epsilon <= 0 {
		return nil, fmt.Errorf("newNormalizeObservation: epsilon must be "+
			"positive, have %v", epsilon)
	}
	dims := e.ObservationSpec().Dims()
	if stats == nil {
		stats = NewObservationStats(dims)
	} else if stats.Dims() != dims {
		return nil, fmt.Errorf("newNormalizeObservation: statistics over "+
			"%v features for %v observation features", stats.Dims(), dims)
	}

	return &NormalizeObservation{
		Environment: e,
		stats:       stats,
		epsilon:     epsilon,
	}, nil
}

// Reset resets the wrapped environment and returns the normalized
// starting observation
func (n *NormalizeObservation) Reset() (ts.TimeStep, error) {
	step, err := n.Environment.Reset()
	if err != nil {
		return step, err
	}
	step.Observation = n.normalize(step.Observation)
	return step, nil
}

// Step takes one environmental step and normalizes the next observation
func (n *NormalizeObservation) Step(a *mat.VecDense) (ts.TimeStep, bool,
	error) {
	step, done, err := n.Environment.Step(a)
	if err != nil {
		return step, done, err
	}
	step.Observation = n.normalize(step.Observation)
	return step, done, nil
}

// Freeze stops the wrapper from updating the running statistics. This
// is useful when evaluating a trained policy.
func (n *NormalizeObservation) Freeze() {
	n.frozen = true
}

// Stats returns the running statistics used by the wrapper
func (n *NormalizeObservation) Stats() *ObservationStats {
	return n.stats
}

// Mean returns a copy of the running mean of observations
func (n *NormalizeObservation) Mean() []float64 {
	return n.stats.Mean()
}

// Variance returns the running population variance of observations
func (n *NormalizeObservation) Variance() []float64 {
	return n.stats.Variance()
}

func (n *NormalizeObservation) normalize(obs *mat.VecDense) *mat.VecDense {
	out := n.stats.normalize(obs.RawVector().Data, n.epsilon, !n.frozen)
	return mat.NewVecDense(len(out), out)
}
