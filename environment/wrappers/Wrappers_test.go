package wrappers

import (
	"math"
	"testing"

	env "github.com/samuelfneumann/onpolicy/environment"
	ts "github.com/samuelfneumann/onpolicy/timestep"
	"gonum.org/v1/gonum/mat"
)

// sequence returns pre-determined observations and rewards
type sequence struct {
	obs       [][]float64
	rewards   []float64
	low, high []float64 // Observation bounds, zero if nil
	i         int
}

func (s *sequence) Reset() (ts.TimeStep, error) {
	s.i = 0
	return ts.New(ts.First, 0, 1, mat.NewVecDense(len(s.obs[0]), s.obs[0]),
		0), nil
}

func (s *sequence) Step(*mat.VecDense) (ts.TimeStep, bool, error) {
	s.i++
	o := s.obs[s.i]
	return ts.New(ts.Mid, s.rewards[s.i], 1, mat.NewVecDense(len(o), o),
		s.i), false, nil
}

func (s *sequence) ObservationSpec() env.Spec {
	n := len(s.obs[0])
	v := mat.NewVecDense(n, nil)
	if s.low == nil {
		return env.NewSpec(v, env.Observation, v, v, env.Continuous)
	}
	return env.NewSpec(v, env.Observation, mat.NewVecDense(n, s.low),
		mat.NewVecDense(n, s.high), env.Continuous)
}

func (s *sequence) ActionSpec() env.Spec {
	v := mat.NewVecDense(1, nil)
	return env.NewSpec(v, env.Action, v, v, env.Continuous)
}

func (s *sequence) DiscountSpec() env.Spec {
	v := mat.NewVecDense(1, []float64{1})
	return env.NewSpec(v, env.Discount, v, v, env.Continuous)
}

func (s *sequence) Close() error { return nil }

func TestNormalizeObservation(t *testing.T) {
	e := &sequence{
		obs:     [][]float64{{1, 10}, {3, 10}, {5, 10}},
		rewards: []float64{0, 0, 0},
	}
	n, err := NewNormalizeObservation(e, nil, 1e-8)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := n.Reset(); err != nil {
		t.Fatal(err)
	}
	n.Step(nil)
	step, _, _ := n.Step(nil)

	// Running mean is (3, 10) and variance (8/3, 0)
	wantMean := []float64{3, 10}
	for i, m := range n.Mean() {
		if math.Abs(m-wantMean[i]) > 1e-12 {
			t.Errorf("mean[%v]: want %v, have %v", i, wantMean[i], m)
		}
	}
	want := 2 / math.Sqrt(8.0/3.0+1e-8)
	if got := step.Observation.AtVec(0); math.Abs(got-want) > 1e-9 {
		t.Errorf("normalized feature 0: want %v, have %v", want, got)
	}
	if got := step.Observation.AtVec(1); got != 0 {
		t.Errorf("constant feature should normalize to 0, have %v", got)
	}

	n.Freeze()
	n.Reset()
	if got := n.Mean()[0]; got != 3 {
		t.Errorf("frozen statistics changed: mean %v", got)
	}
}

func TestSharedObservationStats(t *testing.T) {
	stats := NewObservationStats(1)
	a, err := NewNormalizeObservation(&sequence{obs: [][]float64{{2}, {4}},
		rewards: []float64{0, 0}}, stats, 1e-8)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewNormalizeObservation(&sequence{obs: [][]float64{{6}, {8}},
		rewards: []float64{0, 0}}, stats, 1e-8)
	if err != nil {
		t.Fatal(err)
	}

	a.Reset()
	b.Reset()
	a.Step(nil)
	b.Step(nil)

	// Observations 2, 4, 6, 8 from both environments
	if c := stats.Count(); c != 4 {
		t.Errorf("count: want 4, have %v", c)
	}
	if m := b.Mean()[0]; m != 5 {
		t.Errorf("mean: want 5, have %v", m)
	}
	if v := a.Variance()[0]; math.Abs(v-5) > 1e-12 {
		t.Errorf("variance: want 5, have %v", v)
	}

	// A frozen wrapper normalizes with the shared statistics without
	// changing them
	frozen, err := NewNormalizeObservation(&sequence{
		obs: [][]float64{{5}, {10}}, rewards: []float64{0, 0}}, stats, 1e-8)
	if err != nil {
		t.Fatal(err)
	}
	frozen.Freeze()
	step, _ := frozen.Reset()
	if got := step.Observation.AtVec(0); got != 0 {
		t.Errorf("normalized mean: want 0, have %v", got)
	}
	step, _, _ = frozen.Step(nil)
	want := 5 / math.Sqrt(5+1e-8)
	if got := step.Observation.AtVec(0); math.Abs(got-want) > 1e-9 {
		t.Errorf("normalized observation: want %v, have %v", want, got)
	}
	if c := stats.Count(); c != 4 {
		t.Errorf("frozen wrapper updated the statistics: count %v", c)
	}

	if _, err := NewNormalizeObservation(&sequence{
		obs: [][]float64{{1, 2}}}, stats, 1e-8); err == nil {
		t.Error("expected an error for statistics of the wrong size")
	}
}

func TestClip(t *testing.T) {
	e := &sequence{
		obs:     [][]float64{{-20, 3}, {15, -0.5}},
		rewards: []float64{0, -50},
	}
	c, err := NewClip(e, 10, 1)
	if err != nil {
		t.Fatal(err)
	}

	step, _ := c.Reset()
	if step.Observation.AtVec(0) != -10 || step.Observation.AtVec(1) != 3 {
		t.Errorf("reset: unexpected clipped observation %v",
			mat.Formatted(step.Observation.T()))
	}

	step, _, _ = c.Step(nil)
	if step.Observation.AtVec(0) != 10 || step.Observation.AtVec(1) != -0.5 {
		t.Errorf("step: unexpected clipped observation %v",
			mat.Formatted(step.Observation.T()))
	}
	if step.Reward != -1 {
		t.Errorf("step: expected clipped reward -1, have %v", step.Reward)
	}

	if _, err := NewClip(e, 0, 0); err == nil {
		t.Error("expected an error when both bounds are disabled")
	}
}

func TestTileCoding(t *testing.T) {
	e := &sequence{
		obs:     [][]float64{{0, 0}, {0.5, 0.5}, {0.5, 0.5}},
		rewards: []float64{0, 1, 1},
		low:     []float64{0, 0},
		high:    []float64{1, 1},
	}
	tc, err := NewTileCoding(e, 3, 4, 11)
	if err != nil {
		t.Fatal(err)
	}

	// Bias plus 3 tilings of 4 x 4 tiles
	if dims := tc.ObservationSpec().Dims(); dims != 49 {
		t.Fatalf("observation dimensions: want 49, have %v", dims)
	}

	step, err := tc.Reset()
	if err != nil {
		t.Fatal(err)
	}
	if step.Observation.Len() != 49 || mat.Sum(step.Observation) != 4 {
		t.Errorf("reset: expected 4 active features of 49, have %v",
			mat.Formatted(step.Observation.T()))
	}
	if step.Observation.AtVec(0) != 1 {
		t.Errorf("reset: bias feature not active")
	}

	first, _, _ := tc.Step(nil)
	second, _, _ := tc.Step(nil)
	if !mat.Equal(first.Observation, second.Observation) {
		t.Errorf("equal observations coded differently")
	}
	if first.Reward != 1 {
		t.Errorf("reward changed by tile coding: %v", first.Reward)
	}

	// Features are shared between wrappers with the same seed
	other, err := NewTileCoding(&sequence{
		obs:     e.obs,
		rewards: e.rewards,
		low:     e.low,
		high:    e.high,
	}, 3, 4, 11)
	if err != nil {
		t.Fatal(err)
	}
	other.Reset()
	step, _, _ = other.Step(nil)
	if !mat.Equal(first.Observation, step.Observation) {
		t.Errorf("wrappers with equal seeds coded differently")
	}

	// Zero-width bounds cannot be tile coded
	if _, err := NewTileCoding(&sequence{obs: e.obs, rewards: e.rewards},
		1, 2, 0); err == nil {
		t.Errorf("expected error for unbounded observations")
	}
	if _, err := NewTileCoding(e, 0, 4, 0); err == nil {
		t.Errorf("expected error for zero tilings")
	}
}
