package environment

import (
	"testing"

	"github.com/samuelfneumann/onpolicy/timestep"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
)

func TestIntervalLimit(t *testing.T) {
	limit, err := NewIntervalLimit(timestep.Terminal,
		Bound{Feature: 1, Interval: r1.Interval{Min: -1, Max: 1}})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		obs  []float64
		want bool
	}{
		{[]float64{5, 0}, false},
		{[]float64{5, 1}, false},
		{[]float64{0, 1.1}, true},
		{[]float64{0, -2}, true},
	}
	for _, test := range tests {
		step := timestep.New(timestep.Mid, 0, 1, mat.NewVecDense(2, test.obs),
			3)
		if got := limit.End(&step); got != test.want {
			t.Errorf("%v: want end %v, have %v", test.obs, test.want, got)
		}
		if test.want && !step.Terminated() {
			t.Errorf("%v: episode should be terminated", test.obs)
		}
		if !test.want && step.Last() {
			t.Errorf("%v: step should not be last", test.obs)
		}
	}

	if _, err := NewIntervalLimit(timestep.Terminal); err == nil {
		t.Error("expected an error without bounds")
	}
	if _, err := NewIntervalLimit(timestep.Terminal,
		Bound{Feature: 0, Interval: r1.Interval{Min: 1, Max: -1}}); err == nil {
		t.Error("expected an error for an empty interval")
	}
}

func TestStepLimit(t *testing.T) {
	limit := NewStepLimit(3)
	for n := 1; n <= 3; n++ {
		step := timestep.New(timestep.Mid, 0, 1, mat.NewVecDense(1, nil), n)
		if got := limit.End(&step); got != (n == 3) {
			t.Errorf("step %v: unexpected end %v", n, got)
		}
		if n == 3 && !step.Truncated() {
			t.Error("step limit should truncate episodes")
		}
	}
}

func TestUniformStarter(t *testing.T) {
	bounds := []r1.Interval{{Min: -1, Max: 1}, {Min: 2, Max: 2}}
	a := NewUniformStarter(bounds, 4)
	b := NewUniformStarter(bounds, 4)

	for i := 0; i < 10; i++ {
		x, y := a.Start(), b.Start()
		if !mat.Equal(x, y) {
			t.Fatal("equal seeds gave different starting states")
		}
		if v := x.AtVec(0); v < -1 || v > 1 {
			t.Errorf("feature 0 = %v outside [-1, 1]", v)
		}
		if v := x.AtVec(1); v != 2 {
			t.Errorf("feature 1 = %v, want 2", v)
		}
	}
}
