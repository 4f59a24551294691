package tracker

import (
	"errors"
	"strings"
)

// multi sends every metric to each of a number of Trackers
type multi []Tracker

// Multi returns a Tracker which tracks and saves data with each of
// trackers in order
func Multi(trackers ...Tracker) Tracker {
	return multi(trackers)
}

// Track calls Track on each Tracker
func (m multi) Track(name string, value float64, step int) {
	for _, t := range m {
		t.Track(name, value, step)
	}
}

// Save saves each Tracker, even if some of them fail. The returned
// error joins the errors of all failed Trackers.
func (m multi) Save() error {
	var errs []error
	for _, t := range m {
		if err := t.Save(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// registeredTracker registers a Tracker with a set of metric name
// prefixes so that it only tracks metrics with one of those prefixes.
// This is useful when an expensive Tracker, such as one which plots
// its data, should only see a subset of the metrics of a run.
type registeredTracker struct {
	Tracker
	prefixes []string
}

// Register returns a Tracker which passes to t only the metrics whose
// names begin with one of prefixes
func Register(t Tracker, prefixes ...string) Tracker {
	return &registeredTracker{t, prefixes}
}

// Track calls Track on the registered Tracker if name has one of the
// registered prefixes
func (r *registeredTracker) Track(name string, value float64, step int) {
	for _, prefix := range r.prefixes {
		if strings.HasPrefix(name, prefix) {
			r.Tracker.Track(name, value, step)
			return
		}
	}
}
