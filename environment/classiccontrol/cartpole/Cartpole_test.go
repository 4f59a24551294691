package cartpole

import (
	"testing"

	env "github.com/samuelfneumann/onpolicy/environment"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
)

func newCartpole(t *testing.T, bound float64, steps int) *Cartpole {
	bounds := make([]r1.Interval, ObservationDims)
	for i := range bounds {
		bounds[i] = r1.Interval{Min: -bound, Max: bound}
	}
	s := env.NewUniformStarter(bounds, 1)
	task, err := NewBalance(s, steps, FailAngle)
	if err != nil {
		t.Fatal(err)
	}
	c, _, err := New(task, 0.99)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestBalanceTruncation(t *testing.T) {
	c := newCartpole(t, 0, 5)

	// Starting exactly upright and at rest, doing nothing keeps the
	// pole balanced until the step limit
	noop := mat.NewVecDense(1, []float64{1})
	for i := 1; i <= 5; i++ {
		step, done, err := c.Step(noop)
		if err != nil {
			t.Fatal(err)
		}
		if step.Reward != 1 {
			t.Errorf("step %v: expected reward 1, have %v", i, step.Reward)
		}
		if done != (i == 5) {
			t.Fatalf("step %v: unexpected done=%v", i, done)
		}
		if done && !step.Truncated() {
			t.Errorf("step %v: expected a truncated episode", i)
		}
	}
}

func TestBalanceTermination(t *testing.T) {
	c := newCartpole(t, 0.05, 1000)

	right := mat.NewVecDense(1, []float64{2})
	for i := 0; i < 1000; i++ {
		step, done, err := c.Step(right)
		if err != nil {
			t.Fatal(err)
		}
		if done {
			if !step.Terminated() {
				t.Errorf("expected the pole to fall, got end type %v",
					step.EndType())
			}
			return
		}
	}
	t.Error("pushing right forever should end the episode")
}

func TestIllegalAction(t *testing.T) {
	c := newCartpole(t, 0.05, 10)
	for _, a := range []float64{-1, 3, 0.5} {
		if _, _, err := c.Step(mat.NewVecDense(1, []float64{a})); err == nil {
			t.Errorf("expected an error for action %v", a)
		}
	}
}

func TestSpecs(t *testing.T) {
	c := newCartpole(t, 0.05, 10)
	n, err := c.ActionSpec().NumActions()
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("expected 3 actions, have %v", n)
	}
	if d := c.ObservationSpec().Dims(); d != ObservationDims {
		t.Errorf("expected %v observation dimensions, have %v",
			ObservationDims, d)
	}
}
