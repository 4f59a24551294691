package loss

import (
	"errors"
	"math"
	"testing"

	"github.com/samuelfneumann/onpolicy/policy"
	"gonum.org/v1/gonum/floats"
)

func evaluation() policy.Evaluation {
	return policy.Evaluation{
		LogProbs:  []float64{-0.5, -1.2, -0.1, -2.0, -0.7},
		Values:    []float64{0.3, -0.4, 1.1, 0.0, 0.5},
		Entropies: []float64{1.0, 0.8, 0.6, 1.3, 0.9},
	}
}

func batch() Batch {
	return Batch{
		OldLogProbs: []float64{-0.6, -0.9, -0.1, -2.5, -0.2},
		Advantages:  []float64{1.0, -0.5, 2.0, 0.7, -1.5},
		Targets:     []float64{0.5, -0.1, 1.0, 0.4, 0.2},
	}
}

// numericGradients differentiates the total loss with respect to each
// output of the evaluation by central differences
func numericGradients(t *testing.T, o Objective, ev policy.Evaluation,
	b Batch) policy.Gradients {
	const h = 1e-6
	total := func() float64 {
		terms, _, err := o.Loss(ev, b)
		if err != nil {
			t.Fatal(err)
		}
		return terms.Total
	}

	g := newGradients(len(ev.LogProbs))
	for _, pair := range [][2][]float64{
		{ev.LogProbs, g.LogProbs},
		{ev.Values, g.Values},
		{ev.Entropies, g.Entropies},
	} {
		x, dx := pair[0], pair[1]
		for i := range x {
			orig := x[i]
			x[i] = orig + h
			plus := total()
			x[i] = orig - h
			minus := total()
			x[i] = orig
			dx[i] = (plus - minus) / (2 * h)
		}
	}
	return g
}

func TestGradients(t *testing.T) {
	objectives := map[string]Objective{
		"ClippedSurrogate": ClippedSurrogate{
			EpsClip:     0.2,
			ValueCoef:   0.5,
			EntropyCoef: 0.01,
		},
		"PolicyGradient": PolicyGradient{ValueCoef: 0.5, EntropyCoef: 0.01},
	}

	for name, o := range objectives {
		ev, b := evaluation(), batch()
		_, analytic, err := o.Loss(ev, b)
		if err != nil {
			t.Fatal(err)
		}
		numeric := numericGradients(t, o, ev, b)

		for _, c := range []struct {
			name              string
			analytic, numeric []float64
		}{
			{"log-probabilities", analytic.LogProbs, numeric.LogProbs},
			{"values", analytic.Values, numeric.Values},
			{"entropies", analytic.Entropies, numeric.Entropies},
		} {
			if !floats.EqualApprox(c.analytic, c.numeric, 1e-6) {
				t.Errorf("%v %v: analytic %v, numeric %v", name, c.name,
					c.analytic, c.numeric)
			}
		}
	}
}

func TestClippedSurrogateTerms(t *testing.T) {
	o := ClippedSurrogate{EpsClip: 0.1, ValueCoef: 0.5, EntropyCoef: 0.01}
	ev := policy.Evaluation{
		LogProbs:  []float64{math.Log(1.5), math.Log(0.5)},
		Values:    []float64{1, 0},
		Entropies: []float64{2, 4},
	}
	b := Batch{
		OldLogProbs: []float64{0, 0},
		Advantages:  []float64{1, 1},
		Targets:     []float64{0, 2},
	}

	terms, g, err := o.Loss(ev, b)
	if err != nil {
		t.Fatal(err)
	}

	// ratios 1.5 and 0.5: the first is capped at 1.1, the second is
	// below the clip range so the unclipped term is the minimum
	wantPolicy := -(1.1 + 0.5) / 2
	if math.Abs(terms.Policy-wantPolicy) > 1e-12 {
		t.Errorf("policy: want %v, have %v", wantPolicy, terms.Policy)
	}
	if terms.Value != 2.5 {
		t.Errorf("value: want 2.5, have %v", terms.Value)
	}
	if terms.Entropy != 3 {
		t.Errorf("entropy: want 3, have %v", terms.Entropy)
	}
	wantTotal := wantPolicy + 0.5*2.5 - 0.01*3
	if math.Abs(terms.Total-wantTotal) > 1e-12 {
		t.Errorf("total: want %v, have %v", wantTotal, terms.Total)
	}

	// The capped sample contributes no policy gradient
	if g.LogProbs[0] != 0 {
		t.Errorf("capped sample has gradient %v", g.LogProbs[0])
	}
	if math.Abs(g.LogProbs[1]-(-0.25)) > 1e-12 {
		t.Errorf("gradient: want -0.25, have %v", g.LogProbs[1])
	}

	// Both ratios deviate from 1 by more than 0.2
	if terms.ClipFrac != 1 {
		t.Errorf("clip fraction: want 1, have %v", terms.ClipFrac)
	}
	wantOld := -(math.Log(1.5) + math.Log(0.5)) / 2
	if math.Abs(terms.OldApproxKL-wantOld) > 1e-12 {
		t.Errorf("old approx kl: want %v, have %v", wantOld,
			terms.OldApproxKL)
	}
	wantKL := ((0.5 - math.Log(1.5)) + (-0.5 - math.Log(0.5))) / 2
	if math.Abs(terms.ApproxKL-wantKL) > 1e-12 {
		t.Errorf("approx kl: want %v, have %v", wantKL, terms.ApproxKL)
	}
}

func TestClipFracThreshold(t *testing.T) {
	ev := policy.Evaluation{
		LogProbs:  []float64{math.Log(1.15), math.Log(1.05)},
		Values:    []float64{0, 0},
		Entropies: []float64{0, 0},
	}
	b := Batch{
		OldLogProbs: []float64{0, 0},
		Advantages:  []float64{1, 1},
		Targets:     []float64{0, 0},
	}

	// The default threshold is independent of the clip range
	terms, _, _ := ClippedSurrogate{EpsClip: 0.1}.Loss(ev, b)
	if terms.ClipFrac != 0 {
		t.Errorf("clip fraction: want 0, have %v", terms.ClipFrac)
	}

	terms, _, _ = ClippedSurrogate{EpsClip: 0.1, ClipFracThreshold: 0.1}.
		Loss(ev, b)
	if terms.ClipFrac != 0.5 {
		t.Errorf("clip fraction: want 0.5, have %v", terms.ClipFrac)
	}
}

func TestClipContinuity(t *testing.T) {
	const eps = 0.2
	o := ClippedSurrogate{EpsClip: eps}
	objective := func(ratio, adv float64) float64 {
		ev := policy.Evaluation{
			LogProbs:  []float64{math.Log(ratio)},
			Values:    []float64{0},
			Entropies: []float64{0},
		}
		b := Batch{
			OldLogProbs: []float64{0},
			Advantages:  []float64{adv},
			Targets:     []float64{0},
		}
		terms, _, err := o.Loss(ev, b)
		if err != nil {
			t.Fatal(err)
		}
		return -terms.Policy
	}

	const h = 1e-9
	for _, adv := range []float64{-2, 0.5, 3} {
		for _, edge := range []float64{1 - eps, 1 + eps} {
			below := objective(edge-h, adv)
			above := objective(edge+h, adv)
			if math.Abs(below-above) > 1e-6 {
				t.Errorf("objective discontinuous at ratio %v for "+
					"advantage %v: %v vs %v", edge, adv, below, above)
			}
		}

		// The clipped objective never exceeds the unclipped one and
		// positive advantages cannot gain from ratios above 1+ε
		for ratio := 0.1; ratio < 3; ratio += 0.05 {
			if have := objective(ratio, adv); have > ratio*adv+1e-12 {
				t.Errorf("clipped objective %v exceeds unclipped %v",
					have, ratio*adv)
			}
			if adv > 0 && ratio > 1+eps {
				if have := objective(ratio, adv); math.Abs(
					have-(1+eps)*adv) > 1e-12 {
					t.Errorf("objective not capped at ratio %v: %v", ratio,
						have)
				}
			}
		}
	}
}

func TestPolicyGradientTerms(t *testing.T) {
	ev := policy.Evaluation{
		LogProbs:  []float64{-1, -2},
		Values:    []float64{0, 0},
		Entropies: []float64{0, 0},
	}
	b := Batch{Advantages: []float64{2, -1}, Targets: []float64{1, 1}}

	terms, g, err := PolicyGradient{}.Loss(ev, b)
	if err != nil {
		t.Fatal(err)
	}
	if terms.Policy != 0 {
		t.Errorf("policy: want 0, have %v", terms.Policy)
	}
	if terms.Total != 0 {
		t.Errorf("total with zero coefficients: want 0, have %v",
			terms.Total)
	}
	if !floats.Equal(g.LogProbs, []float64{-1, 0.5}) {
		t.Errorf("gradient: want [-1 0.5], have %v", g.LogProbs)
	}
	if !floats.Equal(g.Values, []float64{0, 0}) {
		t.Errorf("value gradient should vanish with a zero coefficient")
	}
}

func TestLossShapes(t *testing.T) {
	ev := evaluation()
	b := batch()
	b.Targets = b.Targets[:2]
	if _, _, err := (PolicyGradient{}).Loss(ev, b); err == nil {
		t.Error("expected an error for mismatched targets")
	}

	b = batch()
	b.OldLogProbs = nil
	if _, _, err := (PolicyGradient{}).Loss(ev, b); err != nil {
		t.Errorf("policy gradient should not need old log-probabilities: "+
			"%v", err)
	}
	if _, _, err := (ClippedSurrogate{EpsClip: 0.2}).Loss(ev, b); err == nil {
		t.Error("expected an error for missing old log-probabilities")
	}
	if _, _, err := (PolicyGradient{}).Loss(policy.Evaluation{},
		Batch{}); err == nil {
		t.Error("expected an error for an empty minibatch")
	}
}

func TestExplainedVariance(t *testing.T) {
	targets := []float64{1, 2, 3, 4}

	ev, err := ExplainedVariance(targets, targets)
	if err != nil || ev != 1 {
		t.Errorf("perfect predictions: want 1, have %v (%v)", ev, err)
	}

	ev, err = ExplainedVariance([]float64{2.5, 2.5, 2.5, 2.5}, targets)
	if err != nil || math.Abs(ev) > 1e-12 {
		t.Errorf("mean predictions: want 0, have %v (%v)", ev, err)
	}

	_, err = ExplainedVariance([]float64{1, 2}, []float64{3, 3})
	if !errors.Is(err, ErrUndefined) {
		t.Errorf("constant targets: want ErrUndefined, have %v", err)
	}
}
