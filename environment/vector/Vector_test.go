package vector

import (
	"testing"

	env "github.com/samuelfneumann/onpolicy/environment"
	ts "github.com/samuelfneumann/onpolicy/timestep"
	"gonum.org/v1/gonum/mat"
)

// counter is an environment whose observation is the number of steps
// taken in the current episode. Rewards equal the action taken.
type counter struct {
	limit    int
	terminal bool
	last     ts.TimeStep
	resets   int
}

func (c *counter) Reset() (ts.TimeStep, error) {
	c.resets++
	c.last = ts.New(ts.First, 0, 1, mat.NewVecDense(1, []float64{0}), 0)
	return c.last, nil
}

func (c *counter) Step(a *mat.VecDense) (ts.TimeStep, bool, error) {
	n := c.last.Number + 1
	step := ts.New(ts.Mid, a.AtVec(0), 1,
		mat.NewVecDense(1, []float64{float64(n)}), n)
	if n >= c.limit {
		step.StepType = ts.Last
		if c.terminal {
			step.SetEnd(ts.Terminal)
		} else {
			step.SetEnd(ts.Timeout)
		}
	}
	c.last = step
	return step, step.Last(), nil
}

func (c *counter) ObservationSpec() env.Spec {
	v := mat.NewVecDense(1, nil)
	return env.NewSpec(v, env.Observation, v, v, env.Continuous)
}

func (c *counter) ActionSpec() env.Spec {
	v := mat.NewVecDense(1, nil)
	return env.NewSpec(v, env.Action, v, v, env.Continuous)
}

func (c *counter) DiscountSpec() env.Spec {
	v := mat.NewVecDense(1, []float64{1})
	return env.NewSpec(v, env.Discount, v, v, env.Continuous)
}

func (c *counter) Close() error { return nil }

func TestAutoReset(t *testing.T) {
	constructors := map[string]func([]env.Environment) (Env, error){
		"Sync": func(e []env.Environment) (Env, error) {
			return NewSync(e)
		},
		"Async": func(e []env.Environment) (Env, error) {
			return NewAsync(e)
		},
	}

	for name, newVec := range constructors {
		t.Run(name, func(t *testing.T) {
			short := &counter{limit: 2, terminal: true}
			long := &counter{limit: 3}
			v, err := newVec([]env.Environment{short, long})
			if err != nil {
				t.Fatal(err)
			}

			obs, err := v.Reset()
			if err != nil {
				t.Fatal(err)
			}
			if obs.At(0, 0) != 0 || obs.At(1, 0) != 0 {
				t.Fatalf("reset: expected zero observations, got %v",
					mat.Formatted(obs))
			}

			actions := mat.NewDense(2, 1, []float64{1, 2})

			// Step 1: no episode ends
			res, err := v.Step(actions)
			if err != nil {
				t.Fatal(err)
			}
			if res.Done(0) || res.Done(1) {
				t.Fatalf("step 1: no episode should have ended")
			}

			// Step 2: the short episode terminates and is reset
			res, err = v.Step(actions)
			if err != nil {
				t.Fatal(err)
			}
			if !res.Terminated[0] || res.Truncated[0] {
				t.Errorf("step 2: expected termination of env 0, got "+
					"terminated=%v truncated=%v", res.Terminated[0],
					res.Truncated[0])
			}
			if res.Observations.At(0, 0) != 0 {
				t.Errorf("step 2: expected reset observation, got %v",
					res.Observations.At(0, 0))
			}
			if res.Infos[0].FinalObservation.AtVec(0) != 2 {
				t.Errorf("step 2: expected final observation 2, got %v",
					res.Infos[0].FinalObservation.AtVec(0))
			}
			ep := res.Infos[0].Episode
			if ep == nil || ep.Return != 2 || ep.Length != 2 {
				t.Errorf("step 2: expected episode {2 2}, got %+v", ep)
			}
			if res.Infos[1].Episode != nil {
				t.Errorf("step 2: env 1 should not report an episode")
			}

			// Step 3: the long episode is truncated
			res, err = v.Step(actions)
			if err != nil {
				t.Fatal(err)
			}
			if !res.Truncated[1] || res.Terminated[1] {
				t.Errorf("step 3: expected truncation of env 1")
			}
			ep = res.Infos[1].Episode
			if ep == nil || ep.Return != 6 || ep.Length != 3 {
				t.Errorf("step 3: expected episode {6 3}, got %+v", ep)
			}
			if short.resets != 2 || long.resets != 2 {
				t.Errorf("expected 2 resets each, got %v and %v",
					short.resets, long.resets)
			}
		})
	}
}

func TestStepShape(t *testing.T) {
	v, err := NewSync([]env.Environment{&counter{limit: 5}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := v.Reset(); err != nil {
		t.Fatal(err)
	}
	if _, err := v.Step(mat.NewDense(2, 1, nil)); err == nil {
		t.Error("expected an error for a mis-shaped action batch")
	}
}
