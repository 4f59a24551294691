package pendulum

import (
	"math"
	"testing"

	env "github.com/samuelfneumann/onpolicy/environment"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
)

func newPendulum(t *testing.T, steps int) *Pendulum {
	bounds := []r1.Interval{{Min: -math.Pi, Max: math.Pi}, {Min: -1, Max: 1}}
	s := env.NewUniformStarter(bounds, 7)
	p, _, err := New(NewSwingUp(s, steps), 0.99)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestSwingUp(t *testing.T) {
	p := newPendulum(t, 3)

	torque := mat.NewVecDense(1, []float64{1})
	prev := p.lastStep.Observation
	for i := 1; i <= 3; i++ {
		th, thdot := prev.AtVec(0), prev.AtVec(1)
		want := -(th*th + 0.1*thdot*thdot + 0.001)

		step, done, err := p.Step(torque)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(want-step.Reward) > 1e-12 {
			t.Errorf("step %v: reward %v, want %v", i, step.Reward, want)
		}
		if step.Reward > 0 || step.Reward < p.Task.(*SwingUp).Min() {
			t.Errorf("step %v: reward %v out of bounds", i, step.Reward)
		}
		prev = step.Observation
		if math.Abs(step.Observation.AtVec(1)) > SpeedBound {
			t.Errorf("step %v: speed out of bounds", i)
		}
		if done != (i == 3) {
			t.Fatalf("step %v: unexpected done=%v", i, done)
		}
		if done && !step.Truncated() {
			t.Errorf("expected a truncated episode")
		}
	}
}

func TestActionClipping(t *testing.T) {
	a := newPendulum(t, 10)
	b := newPendulum(t, 10)

	stepA, _, err := a.Step(mat.NewVecDense(1, []float64{100}))
	if err != nil {
		t.Fatal(err)
	}
	stepB, _, err := b.Step(mat.NewVecDense(1, []float64{TorqueBound}))
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(stepA.Observation, stepB.Observation) {
		t.Errorf("out of bounds torque should be clipped")
	}

	if _, _, err := a.Step(mat.NewVecDense(1, []float64{math.NaN()})); err == nil {
		t.Error("expected an error for a NaN action")
	}
}
