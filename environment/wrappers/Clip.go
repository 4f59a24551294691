package wrappers

import (
	"fmt"

	env "github.com/samuelfneumann/onpolicy/environment"
	ts "github.com/samuelfneumann/onpolicy/timestep"
	"github.com/samuelfneumann/onpolicy/utils/floatutils"
	"gonum.org/v1/gonum/mat"
)

// Clip wraps an environment and clips each observation feature to
// [-obsBound, obsBound] and each reward to [-rewardBound, rewardBound].
// A non-positive bound disables clipping of the corresponding quantity.
type Clip struct {
	env.Environment
	obsBound    float64
	rewardBound float64
}

// NewClip returns a new Clip wrapper
func NewClip(e env.Environment, obsBound, rewardBound float64) (*Clip,
	error) {
	if obsBound <= 0 && rewardBound <= 0 {
		return nil, fmt.Errorf("newClip: at least one bound must be positive")
	}
	return &Clip{e, obsBound, rewardBound}, nil
}

// Reset resets the wrapped environment
func (c *Clip) Reset() (ts.TimeStep, error) {
	step, err := c.Environment.Reset()
	if err != nil {
		return step, err
	}
	step.Observation = c.clipObs(step.Observation)
	return step, nil
}

// Step takes one environmental step, clipping the resulting observation
// and reward
func (c *Clip) Step(a *mat.VecDense) (ts.TimeStep, bool, error) {
	step, done, err := c.Environment.Step(a)
	if err != nil {
		return step, done, err
	}
	step.Observation = c.clipObs(step.Observation)
	if c.rewardBound > 0 {
		step.Reward = floatutils.Clip(step.Reward, -c.rewardBound,
			c.rewardBound)
	}
	return step, done, nil
}

func (c *Clip) clipObs(obs *mat.VecDense) *mat.VecDense {
	if c.obsBound <= 0 {
		return obs
	}
	x := obs.RawVector().Data
	out := make([]float64, len(x))
	for i := range x {
		out[i] = floatutils.Clip(x[i], -c.obsBound, c.obsBound)
	}
	return mat.NewVecDense(len(out), out)
}
