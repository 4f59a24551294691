// Package vector implements vectors of environments which are stepped
// in lock-step. Environments in a vector are automatically reset when
// their episodes end, so that a vector can be stepped indefinitely.
package vector

import (
	"fmt"

	env "github.com/samuelfneumann/onpolicy/environment"
	"gonum.org/v1/gonum/mat"
)

// Episode holds the statistics of a finished episode
type Episode struct {
	Return float64
	Length int
}

// Info holds auxiliary information about a single environment's step.
// Episode and FinalObservation are only set when the step ended an
// episode.
type Info struct {
	Episode          *Episode
	FinalObservation *mat.VecDense
}

// Result is the outcome of stepping each environment in a vector once.
// Row i of Observations is the next observation of environment i, or
// its reset observation if the step ended an episode.
type Result struct {
	Observations *mat.Dense
	Rewards      []float64
	Terminated   []bool
	Truncated    []bool
	Infos        []Info
}

// Done returns whether the episode of environment i ended on this step,
// either by termination or truncation.
func (r Result) Done(i int) bool {
	return r.Terminated[i] || r.Truncated[i]
}

// Env is a vector of environments
type Env interface {
	NumEnvs() int
	ObservationSpec() env.Spec
	ActionSpec() env.Spec

	// Reset resets every environment and returns the starting
	// observations, one row per environment.
	Reset() (*mat.Dense, error)

	// Step steps each environment with the action in the corresponding
	// row of actions.
	Step(actions *mat.Dense) (Result, error)

	Close() error
}

// base holds the state shared by the vectorized environment
// implementations.
type base struct {
	envs    []env.Environment
	obsDims int
	actDims int
	returns []float64
	lengths []int
	obsSpec env.Spec
	actSpec env.Spec
}

// newBase returns a new base over envs, ensuring that all environments
// share the same observation and action layouts.
func newBase(envs []env.Environment) (*base, error) {
	if len(envs) == 0 {
		return nil, fmt.Errorf("newBase: at least one environment required")
	}

	obsSpec := envs[0].ObservationSpec()
	actSpec := envs[0].ActionSpec()
	for i := 1; i < len(envs); i++ {
		o, a := envs[i].ObservationSpec(), envs[i].ActionSpec()
		if o.Dims() != obsSpec.Dims() || a.Dims() != actSpec.Dims() ||
			a.Cardinality != actSpec.Cardinality {
			return nil, fmt.Errorf("newBase: environment %v has a "+
				"different layout than environment 0", i)
		}
	}

	return &base{
		envs:    envs,
		obsDims: obsSpec.Dims(),
		actDims: actSpec.Dims(),
		returns: make([]float64, len(envs)),
		lengths: make([]int, len(envs)),
		obsSpec: obsSpec,
		actSpec: actSpec,
	}, nil
}

// NumEnvs returns the number of environments in the vector
func (b *base) NumEnvs() int {
	return len(b.envs)
}

// ObservationSpec returns the observation specification of a single
// environment in the vector
func (b *base) ObservationSpec() env.Spec {
	return b.obsSpec
}

// ActionSpec returns the action specification of a single environment
// in the vector
func (b *base) ActionSpec() env.Spec {
	return b.actSpec
}

// resetOne resets environment i and writes its starting observation
// into row i of obs.
func (b *base) resetOne(i int, obs *mat.Dense) error {
	step, err := b.envs[i].Reset()
	if err != nil {
		return fmt.Errorf("environment %v: could not reset: %v", i, err)
	}
	b.returns[i] = 0
	b.lengths[i] = 0
	obs.SetRow(i, step.Observation.RawVector().Data)
	return nil
}

// stepOne steps environment i with its action, writing the outcome into
// index i of result. Environments whose episodes end are reset.
func (b *base) stepOne(i int, actions *mat.Dense, result *Result) error {
	action := mat.NewVecDense(b.actDims, nil)
	action.CopyVec(actions.RowView(i))

	step, done, err := b.envs[i].Step(action)
	if err != nil {
		return fmt.Errorf("environment %v: could not step: %v", i, err)
	}

	b.returns[i] += step.Reward
	b.lengths[i]++

	result.Rewards[i] = step.Reward
	if !done {
		result.Observations.SetRow(i, step.Observation.RawVector().Data)
		return nil
	}

	result.Terminated[i] = step.Terminated()
	result.Truncated[i] = step.Truncated()
	result.Infos[i] = Info{
		Episode:          &Episode{Return: b.returns[i], Length: b.lengths[i]},
		FinalObservation: step.Observation,
	}
	return b.resetOne(i, result.Observations)
}

// newResult allocates a Result for the vector
func (b *base) newResult() Result {
	n := len(b.envs)
	return Result{
		Observations: mat.NewDense(n, b.obsDims, nil),
		Rewards:      make([]float64, n),
		Terminated:   make([]bool, n),
		Truncated:    make([]bool, n),
		Infos:        make([]Info, n),
	}
}

// checkActions ensures a batch of actions has one row per environment
func (b *base) checkActions(actions *mat.Dense) error {
	r, c := actions.Dims()
	if r != len(b.envs) || c != b.actDims {
		return fmt.Errorf("actions should have shape (%v, %v), have "+
			"(%v, %v)", len(b.envs), b.actDims, r, c)
	}
	return nil
}

// Close closes all environments in the vector, returning the first
// error encountered.
func (b *base) Close() error {
	var first error
	for i := range b.envs {
		if err := b.envs[i].Close(); err != nil && first == nil {
			first = fmt.Errorf("close: environment %v: %v", i, err)
		}
	}
	return first
}
