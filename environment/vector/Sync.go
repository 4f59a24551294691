package vector

import (
	"fmt"

	env "github.com/samuelfneumann/onpolicy/environment"
	"gonum.org/v1/gonum/mat"
)

// Sync steps each environment in the vector sequentially
type Sync struct {
	*base
}

// NewSync returns a new Sync vector over envs
func NewSync(envs []env.Environment) (*Sync, error) {
	b, err := newBase(envs)
	if err != nil {
		return nil, fmt.Errorf("newSync: %v", err)
	}
	return &Sync{b}, nil
}

// Reset resets every environment and returns the starting observations
func (s *Sync) Reset() (*mat.Dense, error) {
	obs := mat.NewDense(s.NumEnvs(), s.obsDims, nil)
	for i := range s.envs {
		if err := s.resetOne(i, obs); err != nil {
			return nil, fmt.Errorf("reset: %v", err)
		}
	}
	return obs, nil
}

// Step steps each environment once
func (s *Sync) Step(actions *mat.Dense) (Result, error) {
	if err := s.checkActions(actions); err != nil {
		return Result{}, fmt.Errorf("step: %v", err)
	}

	result := s.newResult()
	for i := range s.envs {
		if err := s.stepOne(i, actions, &result); err != nil {
			return Result{}, fmt.Errorf("step: %v", err)
		}
	}
	return result, nil
}
