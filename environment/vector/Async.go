package vector

import (
	"fmt"
	"sync"

	env "github.com/samuelfneumann/onpolicy/environment"
	"gonum.org/v1/gonum/mat"
)

// Async steps each environment in the vector in its own goroutine and
// waits for all of them to finish before returning. Each goroutine only
// touches the state of its own environment, so environments need not
// be safe for concurrent use.
type Async struct {
	*base
}

// NewAsync returns a new Async vector over envs
func NewAsync(envs []env.Environment) (*Async, error) {
	b, err := newBase(envs)
	if err != nil {
		return nil, fmt.Errorf("newAsync: %v", err)
	}
	return &Async{b}, nil
}

// Reset resets every environment and returns the starting observations
func (a *Async) Reset() (*mat.Dense, error) {
	obs := mat.NewDense(a.NumEnvs(), a.obsDims, nil)
	err := a.parallel(func(i int) error {
		return a.resetOne(i, obs)
	})
	if err != nil {
		return nil, fmt.Errorf("reset: %v", err)
	}
	return obs, nil
}

// Step steps each environment once
func (a *Async) Step(actions *mat.Dense) (Result, error) {
	if err := a.checkActions(actions); err != nil {
		return Result{}, fmt.Errorf("step: %v", err)
	}

	result := a.newResult()
	err := a.parallel(func(i int) error {
		return a.stepOne(i, actions, &result)
	})
	if err != nil {
		return Result{}, fmt.Errorf("step: %v", err)
	}
	return result, nil
}

// parallel runs f for each environment index concurrently and returns
// the error of the lowest-indexed failing environment.
func (a *Async) parallel(f func(int) error) error {
	errs := make([]error, a.NumEnvs())

	var wg sync.WaitGroup
	wg.Add(a.NumEnvs())
	for i := 0; i < a.NumEnvs(); i++ {
		go func(i int) {
			defer wg.Done()
			errs[i] = f(i)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
