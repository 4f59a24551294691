package environment

import (
	"fmt"

	"github.com/samuelfneumann/onpolicy/timestep"
	"gonum.org/v1/gonum/spatial/r1"
)

// Bound is an interval which a single observation feature must stay
// within
type Bound struct {
	Feature  int
	Interval r1.Interval
}

// IntervalLimit implements the Ender interface to end episodes
// whenever an observation feature leaves its Bound
type IntervalLimit struct {
	bounds  []Bound
	endType timestep.EndType
}

// NewIntervalLimit returns an IntervalLimit for the given bounds.
// Episodes it ends have the given end type.
func NewIntervalLimit(endType timestep.EndType,
	bounds ...Bound) (*IntervalLimit, error) {
	if len(bounds) == 0 {
		return nil, fmt.Errorf("newIntervalLimit: at least one bound " +
			"required")
	}
	for _, b := range bounds {
		if b.Feature < 0 || b.Interval.Min > b.Interval.Max {
			return nil, fmt.Errorf("newIntervalLimit: illegal bound on "+
				"feature %v: [%v, %v]", b.Feature, b.Interval.Min,
				b.Interval.Max)
		}
	}
	return &IntervalLimit{append([]Bound(nil), bounds...), endType}, nil
}

// End returns whether the episode has ended. If so, t becomes the last
// step of its episode.
func (i *IntervalLimit) End(t *timestep.TimeStep) bool {
	for _, b := range i.bounds {
		x := t.Observation.AtVec(b.Feature)
		if x < b.Interval.Min || x > b.Interval.Max {
			t.StepType = timestep.Last
			t.SetEnd(i.endType)
			return true
		}
	}
	return false
}
