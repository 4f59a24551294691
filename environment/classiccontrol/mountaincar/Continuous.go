package mountaincar

import (
	"fmt"
	"math"

	env "github.com/samuelfneumann/onpolicy/environment"
	ts "github.com/samuelfneumann/onpolicy/timestep"
	"github.com/samuelfneumann/onpolicy/utils/floatutils"
	"gonum.org/v1/gonum/mat"
)

// Continuous implements the classic control Mountain Car environment
// with continuous actions. The dynamics are those of Discrete.
//
// Actions are 1-dimensional and continuous, determining the force
// to apply to the car and in which direction to apply this force.
// Actions outside of [MinContinuousAction, MaxContinuousAction] are
// clipped, so that unbounded Gaussian samples can be used directly.
//
// Continuous implements the environment.Environment interface
type Continuous struct {
	*base
}

// NewContinuous creates a new Continuous action Mountain Car
// environment with the argument task
func NewContinuous(t env.Task, discount float64) (*Continuous,
	ts.TimeStep, error) {
	baseEnv, firstStep, err := newBase(t, discount)
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("newContinuous: %v", err)
	}
	return &Continuous{baseEnv}, firstStep, nil
}

// ActionSpec returns the action specification of the environment
func (m *Continuous) ActionSpec() env.Spec {
	shape := mat.NewVecDense(ActionDims, nil)
	lowerBound := mat.NewVecDense(ActionDims,
		[]float64{MinContinuousAction})
	upperBound := mat.NewVecDense(ActionDims,
		[]float64{MaxContinuousAction})

	return env.NewSpec(shape, env.Action, lowerBound, upperBound,
		env.Continuous)
}

// Step takes one environmental step given action a and returns the next
// timestep as a timestep.TimeStep and a bool indicating whether or not
// the episode has ended.
func (m *Continuous) Step(a *mat.VecDense) (ts.TimeStep, bool, error) {
	if a.Len() != ActionDims {
		return ts.TimeStep{}, true, fmt.Errorf("step: actions should be "+
			"%v-dimensional, have %v", ActionDims, a.Len())
	}
	if math.IsNaN(a.AtVec(0)) {
		return ts.TimeStep{}, true, fmt.Errorf("step: NaN action")
	}

	force := floatutils.Clip(a.AtVec(0), MinContinuousAction,
		MaxContinuousAction)
	clipped := mat.NewVecDense(ActionDims, []float64{force})

	nextStep, last := m.update(clipped, m.nextState(force))
	return nextStep, last, nil
}
