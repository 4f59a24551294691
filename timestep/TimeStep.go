// Package timestep implements timesteps of the agent-environment interaction
package timestep

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// StepType denotes the type of step that a TimeStep can be, either  first
// environmental step, a middle step, or a last step
type StepType int

const (
	First StepType = iota
	Mid
	Last
)

func (s StepType) String() string {
	switch s {
	case First:
		return "First"
	case Last:
		return "Last"
	default:
		return "Mid"
	}
}

// EndType describes how an episode ended. A Terminal ending means the
// environment reached an absorbing state, so no value should be
// bootstrapped past it. A Timeout ending means the episode was cut off
// by a step limit (truncation).
type EndType int

const (
	Unknown EndType = iota
	Terminal
	Timeout
)

func (e EndType) String() string {
	switch e {
	case Terminal:
		return "Terminal"
	case Timeout:
		return "Timeout"
	default:
		return "Unknown"
	}
}

// TimeStep packages together a single timestep in an environment
type TimeStep struct {
	StepType    StepType
	Reward      float64
	Discount    float64
	Observation *mat.VecDense
	Number      int
	end         EndType
}

// New returns a new TimeStep
func New(t StepType, r, d float64, o *mat.VecDense, n int) TimeStep {
	return TimeStep{StepType: t, Reward: r, Discount: d, Observation: o,
		Number: n}
}

// First returns whether a TimeStep is the first in an environment
func (t TimeStep) First() bool {
	return t.StepType == First
}

// Mid returns whether a TimeStep is a middle step in an environment
func (t TimeStep) Mid() bool {
	return t.StepType == Mid
}

// Last returns whether a TimeStep is the last step in an environment
func (t TimeStep) Last() bool {
	return t.StepType == Last
}

// SetEnd sets the way the episode ended. SetEnd has no effect unless
// the TimeStep is the last in its episode.
func (t *TimeStep) SetEnd(e EndType) {
	if t.Last() {
		t.end = e
	}
}

// EndType returns how the episode ended
func (t TimeStep) EndType() EndType {
	return t.end
}

// Terminated returns whether the episode ended in an absorbing state
func (t TimeStep) Terminated() bool {
	return t.Last() && t.end != Timeout
}

// Truncated returns whether the episode was cut off by a time limit
func (t TimeStep) Truncated() bool {
	return t.Last() && t.end == Timeout
}

func (t TimeStep) String() string {
	str := "TimeStep | Type: %v  |  Reward:  %.2f  |  Discount: %.2f  |  " +
		"Step Number:  %v"

	return fmt.Sprintf(str, t.StepType, t.Reward, t.Discount, t.Number)
}
