// Package environment outlines the interfaces and structs needed to
// implement concrete environments which on-policy agents are trained
// on.
package environment

import (
	"github.com/samuelfneumann/onpolicy/timestep"
	"gonum.org/v1/gonum/mat"
)

// Starter implements a distribution of starting states and samples
// starting states for environments
type Starter interface {
	Start() *mat.VecDense
}

// Ender determines when episodes end. If End returns true, it must
// also have set the TimeStep's StepType to timestep.Last and its
// EndType to the appropriate ending.
type Ender interface {
	End(*timestep.TimeStep) bool
}

// Task implements the reward scheme for taking actions in some
// environment as well as the starting and ending conditions of
// episodes.
type Task interface {
	Starter
	Ender
	GetReward(state, action, nextState mat.Vector) float64
	AtGoal(state mat.Matrix) bool
	Min() float64 // Minimum attainable reward
	Max() float64 // Maximum attainable reward
	RewardSpec() Spec
}

// Environment implements a single simulated environment instance.
// Environments are not safe for concurrent use; a vector of
// environments should be used to step multiple instances in parallel.
type Environment interface {
	Reset() (timestep.TimeStep, error)
	Step(action *mat.VecDense) (timestep.TimeStep, bool, error)
	ObservationSpec() Spec
	ActionSpec() Spec
	DiscountSpec() Spec
	Close() error
}
