package update

import (
	"io"
	"reflect"
	"sort"
	"testing"

	"github.com/samuelfneumann/onpolicy/policy"
	"gonum.org/v1/gonum/mat"
)

// recorder is a Learner which records how it is called
type recorder struct {
	evaluated [][]float64 // First state feature of each evaluated sample
	backwards int
	norms     []float64
}

func (r *recorder) Act(states *mat.Dense) (policy.Action, error) {
	return policy.Action{}, nil
}

func (r *recorder) Value(states *mat.Dense) ([]float64, error) {
	n, _ := states.Dims()
	return make([]float64, n), nil
}

func (r *recorder) Evaluate(states, actions *mat.Dense) (policy.Evaluation,
	error) {
	n, _ := states.Dims()
	r.evaluated = append(r.evaluated, mat.Col(nil, 0, states))
	return policy.Evaluation{
		LogProbs:  make([]float64, n),
		Values:    make([]float64, n),
		Entropies: make([]float64, n),
	}, nil
}

func (r *recorder) Backward(g policy.Gradients) error {
	r.backwards++
	return nil
}

func (r *recorder) Step(maxGradNorm float64) (float64, error) {
	r.norms = append(r.norms, maxGradNorm)
	return 1, nil
}

func (r *recorder) SetStepSize(float64)  {}
func (r *recorder) StepSize() float64    { return 0 }
func (r *recorder) Save(io.Writer) error { return nil }
func (r *recorder) Load(io.Reader) error { return nil }

func ppoConfig() Config {
	return Config{
		Algorithm:   PPO,
		Epochs:      3,
		Minibatches: 4,
		EpsClip:     0.1,
		ValueCoef:   0.5,
		EntropyCoef: 0.01,
		MaxGradNorm: 0.5,
	}
}

// newBatch returns a batch whose i-th state is i
func newBatch(n int) Batch {
	states := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		states.Set(i, 0, float64(i))
	}
	return Batch{
		States:     states,
		Actions:    mat.NewDense(n, 1, nil),
		LogProbs:   make([]float64, n),
		Values:     make([]float64, n),
		Advantages: make([]float64, n),
		Targets:    make([]float64, n),
	}
}

func TestMinibatches(t *testing.T) {
	const batchSize = 16
	e, err := New(ppoConfig(), &recorder{}, batchSize, 1)
	if err != nil {
		t.Fatal(err)
	}

	var epochs [][]int
	for epoch := 0; epoch < 3; epoch++ {
		minibatches := e.Minibatches()
		if len(minibatches) != 4 {
			t.Fatalf("want 4 minibatches, have %v", len(minibatches))
		}

		var all []int
		for _, mb := range minibatches {
			if len(mb) != batchSize/4 {
				t.Errorf("minibatch size: want %v, have %v", batchSize/4,
					len(mb))
			}
			all = append(all, mb...)
		}
		epochs = append(epochs, append([]int(nil), all...))

		// Every index appears exactly once per epoch
		sort.Ints(all)
		for i, idx := range all {
			if i != idx {
				t.Fatalf("epoch %v is not a partition of the batch: %v",
					epoch, all)
			}
		}
	}

	if reflect.DeepEqual(epochs[0], epochs[1]) &&
		reflect.DeepEqual(epochs[1], epochs[2]) {
		t.Error("minibatch order did not change between epochs")
	}

	// The same seed gives the same order
	other, _ := New(ppoConfig(), &recorder{}, batchSize, 1)
	var first []int
	for _, mb := range other.Minibatches() {
		first = append(first, mb...)
	}
	if !reflect.DeepEqual(first, epochs[0]) {
		t.Error("minibatch order not determined by the seed")
	}
}

func TestUpdatePPO(t *testing.T) {
	const batchSize = 16
	r := &recorder{}
	e, err := New(ppoConfig(), r, batchSize, 2)
	if err != nil {
		t.Fatal(err)
	}

	stats, err := e.Update(newBatch(batchSize))
	if err != nil {
		t.Fatal(err)
	}

	if stats.Steps != 12 || r.backwards != 12 || len(r.norms) != 12 {
		t.Errorf("want 12 steps, have %v steps, %v backward calls, %v "+
			"optimizer steps", stats.Steps, r.backwards, len(r.norms))
	}
	for _, norm := range r.norms {
		if norm != 0.5 {
			t.Errorf("steps should clip to 0.5, have %v", norm)
		}
	}
	if stats.GradNorm != 1 {
		t.Errorf("mean grad norm: want 1, have %v", stats.GradNorm)
	}

	// Each epoch sees every sample once
	for epoch := 0; epoch < 3; epoch++ {
		var seen []float64
		for _, mb := range r.evaluated[epoch*4 : (epoch+1)*4] {
			seen = append(seen, mb...)
		}
		sort.Float64s(seen)
		for i, s := range seen {
			if s != float64(i) {
				t.Fatalf("epoch %v did not see every sample once", epoch)
			}
		}
	}

	if _, err := e.Update(newBatch(8)); err == nil {
		t.Error("expected an error for a batch of the wrong size")
	}
}

func TestUpdatePolicyGradient(t *testing.T) {
	for _, alg := range []Algorithm{A2C, REINFORCE} {
		r := &recorder{}
		c := Config{Algorithm: alg, ValueCoef: 0.5, MaxGradNorm: 0.8}
		e, err := New(c, r, 10, 3)
		if err != nil {
			t.Fatal(err)
		}

		stats, err := e.Update(newBatch(10))
		if err != nil {
			t.Fatal(err)
		}
		if stats.Steps != 1 {
			t.Errorf("%v: want a single step, have %v", alg, stats.Steps)
		}

		want := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
		if !reflect.DeepEqual(r.evaluated[0], want) {
			t.Errorf("%v: full batch should be used in order, have %v",
				alg, r.evaluated[0])
		}
	}
}

func TestValidate(t *testing.T) {
	c := ppoConfig()
	if err := c.Validate(16); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	for name, modify := range map[string]func(*Config){
		"indivisible":   func(c *Config) { c.Minibatches = 5 },
		"no epochs":     func(c *Config) { c.Epochs = 0 },
		"no clip":       func(c *Config) { c.EpsClip = 0 },
		"no grad norm":  func(c *Config) { c.MaxGradNorm = 0 },
		"negative coef": func(c *Config) { c.EntropyCoef = -1 },
		"algorithm":     func(c *Config) { c.Algorithm = "dqn" },
	} {
		c := ppoConfig()
		modify(&c)
		if err := c.Validate(16); err == nil {
			t.Errorf("%v: expected an error", name)
		}
		if _, err := New(c, &recorder{}, 16, 0); err == nil {
			t.Errorf("%v: New should validate the config", name)
		}
	}

	// Minibatches are irrelevant to policy gradient algorithms
	a2c := Config{Algorithm: A2C, MaxGradNorm: 1, Minibatches: 7}
	if err := a2c.Validate(10); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
