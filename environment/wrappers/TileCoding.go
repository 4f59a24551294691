package wrappers

import (
	"fmt"

	env "github.com/samuelfneumann/onpolicy/environment"
	ts "github.com/samuelfneumann/onpolicy/timestep"
	"github.com/samuelfneumann/onpolicy/utils/matutils/tilecoder"
	"gonum.org/v1/gonum/mat"
)

// TileCoding wraps an environment and replaces each observation with
// its tile-coded representation, including a bias feature. Tilings
// cover the bounds of the wrapped environment's observation spec,
// which must be finite.
type TileCoding struct {
	env.Environment
	coder *tilecoder.TileCoder
}

// NewTileCoding returns a new TileCoding wrapper using the given
// number of tilings, each with tiles tiles along every observation
// dimension. Environments wrapped with the same arguments, including
// seed, produce identical features.
func NewTileCoding(e env.Environment, tilings, tiles int,
	seed uint64) (*TileCoding, error) {
	if tilings < 1 || tiles < 1 {
		return nil, fmt.Errorf("newTileCoding: tilings and tiles must be "+
			"positive, have %v and %v", tilings, tiles)
	}

	spec := e.ObservationSpec()
	dims := spec.Dims()
	bins := make([][]int, tilings)
	for i := range bins {
		bins[i] = make([]int, dims)
		for j := range bins[i] {
			bins[i][j] = tiles
		}
	}

	coder, err := tilecoder.New(spec.LowerBound.RawVector().Data,
		spec.UpperBound.RawVector().Data, bins, seed, true)
	if err != nil {
		return nil, fmt.Errorf("newTileCoding: %v", err)
	}
	return &TileCoding{e, coder}, nil
}

// Reset resets the wrapped environment
func (t *TileCoding) Reset() (ts.TimeStep, error) {
	step, err := t.Environment.Reset()
	if err != nil {
		return step, err
	}
	step.Observation, err = t.coder.Encode(step.Observation.RawVector().Data)
	return step, err
}

// Step takes one environmental step and tile codes the next observation
func (t *TileCoding) Step(a *mat.VecDense) (ts.TimeStep, bool, error) {
	step, done, err := t.Environment.Step(a)
	if err != nil {
		return step, done, err
	}
	step.Observation, err = t.coder.Encode(step.Observation.RawVector().Data)
	return step, done, err
}

// ObservationSpec returns the specification of tile-coded observations
func (t *TileCoding) ObservationSpec() env.Spec {
	n := t.coder.Features()
	upper := make([]float64, n)
	for i := range upper {
		upper[i] = 1
	}
	return env.NewSpec(mat.NewVecDense(n, nil), env.Observation,
		mat.NewVecDense(n, nil), mat.NewVecDense(n, upper), env.Discrete)
}
