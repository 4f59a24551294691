package advantage

import (
	"errors"
	"math"
	"testing"

	"github.com/samuelfneumann/onpolicy/buffer/rollout"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// column builds a (len(x), 1) window column from x
func column(x ...float64) [][]float64 {
	out := make([][]float64, len(x))
	for i := range x {
		out[i] = []float64{x[i]}
	}
	return out
}

func boolColumn(x ...bool) [][]bool {
	out := make([][]bool, len(x))
	for i := range x {
		out[i] = []bool{x[i]}
	}
	return out
}

func TestGAEReference(t *testing.T) {
	rewards := column(1, 1, 1, 1)
	values := column(0.5, 0.5, 0.5, 0.5)
	dones := boolColumn(false, false, false, false)

	adv, targets, err := GAE(rewards, dones, values, []float64{0.5}, 0.99,
		0.95)
	if err != nil {
		t.Fatal(err)
	}

	wantAdv := []float64{3.6386656033, 2.8109150488, 1.9307975, 0.995}
	for i := range wantAdv {
		if math.Abs(adv[i][0]-wantAdv[i]) > 1e-5 {
			t.Errorf("adv[%v]: want %v, have %v", i, wantAdv[i], adv[i][0])
		}
		if math.Abs(targets[i][0]-(wantAdv[i]+0.5)) > 1e-5 {
			t.Errorf("target[%v]: want %v, have %v", i, wantAdv[i]+0.5,
				targets[i][0])
		}
	}
}

func TestGAEEpisodeBoundary(t *testing.T) {
	dones := boolColumn(false, true, false, false)
	values := column(0.1, 0.2, 0.3, 0.4)

	base := column(1, 2, 3, 4)
	adv, _, err := GAE(base, dones, values, []float64{0.7}, 0.9, 0.8)
	if err != nil {
		t.Fatal(err)
	}

	// Changing rewards or the bootstrap after the episode boundary must
	// not change advantages before it
	later := column(1, 2, 30, -40)
	advLater, _, err := GAE(later, dones, values, []float64{100}, 0.9, 0.8)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i <= 1; i++ {
		if adv[i][0] != advLater[i][0] {
			t.Errorf("adv[%v] leaked across the episode boundary: %v != %v",
				i, adv[i][0], advLater[i][0])
		}
	}

	// At the boundary the advantage is the one-step reward minus value
	if want := 2 - 0.2; math.Abs(adv[1][0]-want) > 1e-12 {
		t.Errorf("adv[1]: want %v, have %v", want, adv[1][0])
	}
}

func TestGAEColumnsIndependent(t *testing.T) {
	rewards := [][]float64{{1, 5}, {1, 5}}
	dones := [][]bool{{false, true}, {false, false}}
	values := [][]float64{{0, 1}, {0, 1}}

	adv, _, err := GAE(rewards, dones, values, []float64{0, 2}, 0.5, 1)
	if err != nil {
		t.Fatal(err)
	}

	single, _, _ := GAE(column(1, 1), boolColumn(false, false),
		column(0, 0), []float64{0}, 0.5, 1)
	for i := range single {
		if adv[i][0] != single[i][0] {
			t.Errorf("column 0 depends on column 1 at step %v", i)
		}
	}
}

func TestDiscountedReturns(t *testing.T) {
	const gamma = 0.9
	rewards := column(1, 2, 3, 4)
	dones := boolColumn(false, false, false, false)

	returns, err := DiscountedReturns(rewards, dones, nil, gamma)
	if err != nil {
		t.Fatal(err)
	}

	// With no episode ends, G[t] = Σ_k γ^k r[t+k]
	for t0 := range rewards {
		var want float64
		for k := t0; k < len(rewards); k++ {
			want += math.Pow(gamma, float64(k-t0)) * rewards[k][0]
		}
		if math.Abs(returns[t0][0]-want) > 1e-12 {
			t.Errorf("G[%v]: want %v, have %v", t0, want, returns[t0][0])
		}
	}

	// The bootstrap value is discounted into every return
	boot, _ := DiscountedReturns(rewards, dones, []float64{10}, gamma)
	if want := returns[0][0] + math.Pow(gamma, 4)*10; math.Abs(boot[0][0]-want) > 1e-12 {
		t.Errorf("bootstrapped G[0]: want %v, have %v", want, boot[0][0])
	}

	// An episode end stops the recursion
	ended, _ := DiscountedReturns(rewards, boolColumn(false, true, false,
		false), []float64{10}, gamma)
	if want := 1 + gamma*2; math.Abs(ended[0][0]-want) > 1e-12 {
		t.Errorf("G[0] across a done: want %v, have %v", want, ended[0][0])
	}
}

func TestShapeErrors(t *testing.T) {
	if _, err := DiscountedReturns(column(1, 2), boolColumn(false), nil,
		0.9); err == nil {
		t.Error("expected an error for mismatched dones")
	}
	if _, _, err := GAE(column(1), boolColumn(false), column(1),
		[]float64{1, 2}, 0.9, 0.9); err == nil {
		t.Error("expected an error for a mis-sized bootstrap")
	}
}

func TestStandardize(t *testing.T) {
	x := []float64{3, -1, 7, 2.5, 0, 11, -4}
	out := Standardize(x, DefaultEpsilon)

	mean, std := stat.PopMeanStdDev(out, nil)
	if math.Abs(mean) > 1e-10 {
		t.Errorf("mean: want 0, have %v", mean)
	}
	if math.Abs(std-1) > 1e-6 {
		t.Errorf("std: want 1, have %v", std)
	}
	if x[0] != 3 {
		t.Error("input modified")
	}

	// Constant input must not divide by zero
	constant := Standardize([]float64{2, 2, 2}, DefaultEpsilon)
	for _, v := range constant {
		if v != 0 {
			t.Errorf("constant input: want 0, have %v", v)
		}
	}
}

func window(rewards, values [][]float64, dones [][]bool) rollout.Window {
	return rollout.Window{
		NumSteps: len(rewards),
		NumEnvs:  len(rewards[0]),
		Rewards:  rewards,
		Dones:    dones,
		Values:   values,
	}
}

func TestEstimators(t *testing.T) {
	rewards := [][]float64{{1, 0}, {0, 1}, {1, 1}}
	values := [][]float64{{0.5, 0.1}, {0.2, 0.3}, {0.4, 0.6}}
	dones := [][]bool{{false, false}, {true, false}, {false, false}}
	w := window(rewards, values, dones)
	bootstrap := []float64{1, 2}

	gae, err := GAEEstimator{Gamma: 0.9, Lambda: 0.95}.Estimate(w, bootstrap)
	if err != nil {
		t.Fatal(err)
	}
	adv, targets, _ := GAE(rewards, dones, values, bootstrap, 0.9, 0.95)
	if !floats.Equal(gae.Advantages, rollout.FlattenColumns(adv)) ||
		!floats.Equal(gae.Targets, rollout.FlattenColumns(targets)) {
		t.Error("GAEEstimator should flatten GAE in step-major order")
	}

	norm, _ := GAEEstimator{Gamma: 0.9, Lambda: 0.95, Normalize: true}.
		Estimate(w, bootstrap)
	if !floats.Equal(norm.Targets, gae.Targets) {
		t.Error("targets must not be standardized")
	}
	if math.Abs(stat.Mean(norm.Advantages, nil)) > 1e-10 {
		t.Error("advantages should be standardized")
	}

	ret, err := ReturnEstimator{Gamma: 0.9, Baseline: true}.Estimate(w,
		bootstrap)
	if err != nil {
		t.Fatal(err)
	}
	returns, _ := DiscountedReturns(rewards, dones, nil, 0.9)
	flatValues := rollout.FlattenColumns(values)
	for i, g := range rollout.FlattenColumns(returns) {
		if ret.Targets[i] != g {
			t.Errorf("target %v: want %v, have %v", i, g, ret.Targets[i])
		}
		if math.Abs(ret.Advantages[i]-(g-flatValues[i])) > 1e-12 {
			t.Errorf("advantage %v: want %v, have %v", i,
				g-flatValues[i], ret.Advantages[i])
		}
	}

	reinforce, _ := ReturnEstimator{Gamma: 0.9}.Estimate(w, bootstrap)
	if !floats.Equal(reinforce.Advantages, reinforce.Targets) {
		t.Error("without a baseline advantages should equal returns")
	}
}

func TestEstimateNonFinite(t *testing.T) {
	w := window([][]float64{{math.NaN()}}, [][]float64{{0}},
		[][]bool{{false}})
	_, err := GAEEstimator{Gamma: 0.9, Lambda: 0.9}.Estimate(w,
		[]float64{0})
	if !errors.Is(err, ErrNonFinite) {
		t.Errorf("expected ErrNonFinite, have %v", err)
	}
}
