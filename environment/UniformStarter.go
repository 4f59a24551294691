package environment

import (
	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
	"gonum.org/v1/gonum/stat/distmv"
)

// UniformStarter samples starting states uniformly within a box. A
// dimension whose interval has Min == Max always starts at that value.
type UniformStarter struct {
	dist *distmv.Uniform
}

// NewUniformStarter returns a new UniformStarter which samples
// dimension i of starting states uniformly from bounds[i]. It panics
// if bounds is empty or some interval has Max < Min.
func NewUniformStarter(bounds []r1.Interval, seed uint64) *UniformStarter {
	return &UniformStarter{distmv.NewUniform(bounds, rand.NewSource(seed))}
}

// Start returns a new starting state
func (u *UniformStarter) Start() *mat.VecDense {
	x := u.dist.Rand(nil)
	return mat.NewVecDense(len(x), x)
}

// Bounds returns the box which starting states are sampled from
func (u *UniformStarter) Bounds() []r1.Interval {
	return u.dist.Bounds(nil)
}
