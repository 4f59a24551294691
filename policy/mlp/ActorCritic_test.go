package mlp

import (
	"bytes"
	"math"
	"testing"

	"github.com/samuelfneumann/onpolicy/environment"
	"github.com/samuelfneumann/onpolicy/network"
	"github.com/samuelfneumann/onpolicy/policy"
	"github.com/samuelfneumann/onpolicy/solver"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
)

const features = 3

func specs(discrete bool) (environment.Spec, environment.Spec) {
	obs := environment.NewSpec(
		mat.NewVecDense(features, nil),
		environment.Observation,
		mat.NewVecDense(features, []float64{-1, -1, -1}),
		mat.NewVecDense(features, []float64{1, 1, 1}),
		environment.Continuous,
	)

	if discrete {
		act := environment.NewSpec(
			mat.NewVecDense(1, nil),
			environment.Action,
			mat.NewVecDense(1, []float64{0}),
			mat.NewVecDense(1, []float64{2}),
			environment.Discrete,
		)
		return obs, act
	}

	act := environment.NewSpec(
		mat.NewVecDense(2, nil),
		environment.Action,
		mat.NewVecDense(2, []float64{-2, -2}),
		mat.NewVecDense(2, []float64{2, 2}),
		environment.Continuous,
	)
	return obs, act
}

func config() Config {
	return Config{
		ActorHidden:       []int{5},
		ActorActivations:  []*network.Activation{network.TanH()},
		CriticHidden:      []int{4},
		CriticActivations: []*network.Activation{network.TanH()},
		InitLogStd:        -0.5,
	}
}

func newActorCritic(t *testing.T, discrete bool) *ActorCritic {
	obs, act := specs(discrete)
	s, err := solver.NewVanilla(0.05, 0)
	if err != nil {
		t.Fatal(err)
	}
	a, err := New(obs, act, config(), G.GlorotU(1.0), s, 1)
	if err != nil {
		t.Fatal(err)
	}

	// Non-zero biases so that their gradients are exercised
	for _, w := range [][][]float64{a.actorWeights, a.criticWeights} {
		for i := 1; i < len(w); i += 2 {
			for j := range w[i] {
				w[i][j] = 0.05 * float64(j+1)
			}
		}
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func batch(discrete bool) (*mat.Dense, *mat.Dense) {
	states := mat.NewDense(4, features, []float64{
		0.1, -0.4, 0.9,
		-0.7, 0.2, 0.3,
		0.5, 0.5, -0.5,
		0.0, -1.0, 0.8,
	})
	if discrete {
		return states, mat.NewDense(4, 1, []float64{0, 2, 1, 2})
	}
	return states, mat.NewDense(4, 2, []float64{
		0.3, -1.2,
		1.1, 0.4,
		-0.6, 0.0,
		0.2, 1.7,
	})
}

// surrogate returns the scalar whose gradient Backward computes
func surrogate(t *testing.T, a *ActorCritic, states, actions *mat.Dense,
	g policy.Gradients) float64 {
	ev, err := a.Evaluate(states, actions)
	if err != nil {
		t.Fatal(err)
	}
	return floats.Dot(ev.LogProbs, g.LogProbs) +
		floats.Dot(ev.Values, g.Values) +
		floats.Dot(ev.Entropies, g.Entropies)
}

func TestGradients(t *testing.T) {
	for _, discrete := range []bool{true, false} {
		a := newActorCritic(t, discrete)
		states, actions := batch(discrete)
		g := policy.Gradients{
			LogProbs:  []float64{0.5, -1.0, 0.25, 2.0},
			Values:    []float64{1.0, 0.3, -0.7, 0.1},
			Entropies: []float64{-0.1, -0.1, -0.1, -0.1},
		}

		if _, err := a.Evaluate(states, actions); err != nil {
			t.Fatal(err)
		}
		if err := a.Backward(g); err != nil {
			t.Fatal(err)
		}

		const h = 1e-6
		for p, param := range a.Params() {
			analytic := append([]float64(nil), param.Grad...)
			for i := range param.Value {
				orig := param.Value[i]
				param.Value[i] = orig + h
				plus := surrogate(t, a, states, actions, g)
				param.Value[i] = orig - h
				minus := surrogate(t, a, states, actions, g)
				param.Value[i] = orig

				numeric := (plus - minus) / (2 * h)
				if math.Abs(numeric-analytic[i]) > 1e-5 {
					t.Errorf("discrete=%v param %v[%v]: numeric %v, "+
						"analytic %v", discrete, p, i, numeric, analytic[i])
				}
			}
		}
	}
}

func TestBackwardAccumulates(t *testing.T) {
	a := newActorCritic(t, true)
	states, actions := batch(true)
	g := policy.Gradients{
		LogProbs:  make([]float64, 4),
		Values:    []float64{1, 1, 1, 1},
		Entropies: make([]float64, 4),
	}

	for i := 0; i < 2; i++ {
		if _, err := a.Evaluate(states, actions); err != nil {
			t.Fatal(err)
		}
		if err := a.Backward(g); err != nil {
			t.Fatal(err)
		}
	}

	// The output bias of the critic receives the sum of the value
	// gradients on each call
	bias := a.criticGrads[len(a.criticGrads)-1]
	if math.Abs(bias[0]-8) > 1e-10 {
		t.Errorf("critic output bias gradient: have %v, want 8", bias[0])
	}
	for _, grad := range a.actorGrads {
		for _, v := range grad {
			if v != 0 {
				t.Fatal("actor gradient should be zero")
			}
		}
	}

	if err := a.Backward(g); err == nil {
		t.Error("expected error for Backward without Evaluate")
	}
}

func TestStepUpdatesActingGraph(t *testing.T) {
	for _, discrete := range []bool{true, false} {
		a := newActorCritic(t, discrete)
		states, actions := batch(discrete)

		// Acting graph with a different batch size than training
		acting := mat.DenseCopyOf(states.Slice(0, 2, 0, features))
		before, err := a.Value(acting)
		if err != nil {
			t.Fatal(err)
		}

		initialEv, err := a.Evaluate(states, actions)
		if err != nil {
			t.Fatal(err)
		}
		initial := initialEv.Values
		g := policy.Gradients{
			LogProbs:  []float64{1, 1, 1, 1},
			Values:    []float64{1, 1, 1, 1},
			Entropies: make([]float64, 4),
		}
		if err := a.Backward(g); err != nil {
			t.Fatal(err)
		}
		norm, err := a.Step(math.Inf(1))
		if err != nil {
			t.Fatal(err)
		}
		if norm <= 0 {
			t.Errorf("gradient norm: have %v, want > 0", norm)
		}
		for _, p := range a.Params() {
			for _, v := range p.Grad {
				if v != 0 {
					t.Fatal("gradients not cleared after step")
				}
			}
		}

		after, err := a.Value(acting)
		if err != nil {
			t.Fatal(err)
		}
		if floats.Equal(before, after) {
			t.Errorf("discrete=%v: acting graph did not see the update",
				discrete)
		}

		// Descending on the sum of values lowers it
		ev, err := a.Evaluate(states, actions)
		if err != nil {
			t.Fatal(err)
		}
		if floats.Sum(ev.Values) >= floats.Sum(initial) {
			t.Errorf("discrete=%v: sum of values %v, want < %v", discrete,
				floats.Sum(ev.Values), floats.Sum(initial))
		}
	}
}

func TestActMatchesEvaluate(t *testing.T) {
	for _, discrete := range []bool{true, false} {
		a := newActorCritic(t, discrete)
		states, _ := batch(discrete)

		act, err := a.Act(states)
		if err != nil {
			t.Fatal(err)
		}
		ev, err := a.Evaluate(states, act.Actions)
		if err != nil {
			t.Fatal(err)
		}
		for i := range ev.LogProbs {
			if math.Abs(ev.LogProbs[i]-act.LogProbs[i]) > 1e-10 {
				t.Errorf("log prob %v: act %v, evaluate %v", i,
					act.LogProbs[i], ev.LogProbs[i])
			}
			if math.Abs(ev.Values[i]-act.Values[i]) > 1e-10 {
				t.Errorf("value %v: act %v, evaluate %v", i,
					act.Values[i], ev.Values[i])
			}
		}
	}
}

func TestIllegalInput(t *testing.T) {
	a := newActorCritic(t, true)
	states, _ := batch(true)

	if _, err := a.Act(mat.NewDense(2, features+1, nil)); err == nil {
		t.Error("expected error for wrong number of features")
	}
	if _, err := a.Evaluate(states, mat.NewDense(4, 1,
		[]float64{0, 3, 1, 1})); err == nil {
		t.Error("expected error for out of range action")
	}
	if _, err := a.Evaluate(states, mat.NewDense(4, 1,
		[]float64{0, 0.5, 1, 1})); err == nil {
		t.Error("expected error for non-integer action")
	}
	if _, err := a.Evaluate(states, mat.NewDense(3, 1, nil)); err == nil {
		t.Error("expected error for mismatched batch sizes")
	}
}

func TestSaveLoad(t *testing.T) {
	for _, discrete := range []bool{true, false} {
		a := newActorCritic(t, discrete)
		b := newActorCritic(t, discrete)
		states, _ := batch(discrete)

		var buf bytes.Buffer
		if err := a.Save(&buf); err != nil {
			t.Fatal(err)
		}
		if err := b.Load(&buf); err != nil {
			t.Fatal(err)
		}

		va, err := a.Value(states)
		if err != nil {
			t.Fatal(err)
		}
		vb, err := b.Value(states)
		if err != nil {
			t.Fatal(err)
		}
		if !floats.EqualApprox(va, vb, 1e-12) {
			t.Errorf("discrete=%v: values differ after load: %v, %v",
				discrete, va, vb)
		}
	}

	a := newActorCritic(t, true)
	c := newActorCritic(t, false)
	var buf bytes.Buffer
	if err := a.Save(&buf); err != nil {
		t.Fatal(err)
	}
	if err := c.Load(&buf); err == nil {
		t.Error("expected error loading mismatched architecture")
	}
}
