// Package update implements the update engine which turns a batch of
// experience into gradient steps on a policy.
//
// PPO takes several epochs over the batch, each split into shuffled
// minibatches. REINFORCE and A2C take a single step on the full batch.
// Every step clips the global gradient norm.
package update

import (
	"fmt"

	"github.com/samuelfneumann/onpolicy/advantage"
	"github.com/samuelfneumann/onpolicy/buffer/rollout"
	"github.com/samuelfneumann/onpolicy/policy"
	"github.com/samuelfneumann/onpolicy/update/loss"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// Batch is a flattened window of experience with its advantages and
// critic targets
type Batch struct {
	States     *mat.Dense
	Actions    *mat.Dense
	LogProbs   []float64
	Values     []float64
	Advantages []float64
	Targets    []float64
}

// NewBatch combines a flattened window with its estimate
func NewBatch(f rollout.Flat, e advantage.Estimate) (Batch, error) {
	n := f.Len()
	if len(e.Advantages) != n || len(e.Targets) != n {
		return Batch{}, fmt.Errorf("newBatch: have %v samples but %v "+
			"advantages and %v targets", n, len(e.Advantages),
			len(e.Targets))
	}
	return Batch{
		States:     f.States,
		Actions:    f.Actions,
		LogProbs:   f.LogProbs,
		Values:     f.Values,
		Advantages: e.Advantages,
		Targets:    e.Targets,
	}, nil
}

// Len returns the number of samples in the batch
func (b Batch) Len() int {
	return len(b.Advantages)
}

// Stats summarizes an update. The loss terms and KL estimates are
// those of the final minibatch; ClipFrac and GradNorm are averaged over
// all minibatches.
type Stats struct {
	loss.Terms
	GradNorm float64
	Steps    int
}

// Engine performs updates of a Learner
type Engine struct {
	config    Config
	objective loss.Objective
	learner   policy.Learner
	batchSize int
	rng       *rand.Rand
}

// New returns a new Engine which updates learner using batches of
// batchSize samples. Minibatch shuffling is seeded with seed.
func New(c Config, learner policy.Learner, batchSize int,
	seed uint64) (*Engine, error) {
	if learner == nil {
		return nil, fmt.Errorf("new: learner cannot be nil")
	}
	if err := c.Validate(batchSize); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	return &Engine{
		config:    c,
		objective: c.Objective(),
		learner:   learner,
		batchSize: batchSize,
		rng:       rand.New(rand.NewSource(seed)),
	}, nil
}

// Minibatches returns the sample indices of each minibatch of one
// epoch. For PPO, the indices are a fresh random permutation of
// [0, batchSize) split into contiguous minibatches of equal size.
// Otherwise there is a single minibatch holding every index in order.
func (e *Engine) Minibatches() [][]int {
	if !e.config.Algorithm.Shuffled() {
		indices := make([]int, e.batchSize)
		for i := range indices {
			indices[i] = i
		}
		return [][]int{indices}
	}

	perm := e.rng.Perm(e.batchSize)
	size := e.batchSize / e.config.Minibatches
	minibatches := make([][]int, e.config.Minibatches)
	for i := range minibatches {
		minibatches[i] = perm[i*size : (i+1)*size]
	}
	return minibatches
}

// Update takes gradient steps on the learner using b
func (e *Engine) Update(b Batch) (Stats, error) {
	if b.Len() != e.batchSize {
		return Stats{}, fmt.Errorf("update: expected batch of %v samples, "+
			"have %v", e.batchSize, b.Len())
	}

	epochs := 1
	if e.config.Algorithm.Shuffled() {
		epochs = e.config.Epochs
	}

	var stats Stats
	var clipFrac, gradNorm float64
	for epoch := 0; epoch < epochs; epoch++ {
		for _, indices := range e.Minibatches() {
			terms, norm, err := e.step(b, indices)
			if err != nil {
				return stats, fmt.Errorf("update: epoch %v: %v", epoch, err)
			}
			stats.Terms = terms
			clipFrac += terms.ClipFrac
			gradNorm += norm
			stats.Steps++
		}
	}

	stats.ClipFrac = clipFrac / float64(stats.Steps)
	stats.GradNorm = gradNorm / float64(stats.Steps)
	return stats, nil
}

// step takes a single gradient step on the samples at indices
func (e *Engine) step(b Batch, indices []int) (loss.Terms, float64, error) {
	states := gatherRows(b.States, indices)
	actions := gatherRows(b.Actions, indices)

	ev, err := e.learner.Evaluate(states, actions)
	if err != nil {
		return loss.Terms{}, 0, err
	}

	terms, grads, err := e.objective.Loss(ev, loss.Batch{
		OldLogProbs: gather(b.LogProbs, indices),
		Advantages:  gather(b.Advantages, indices),
		Targets:     gather(b.Targets, indices),
	})
	if err != nil {
		return loss.Terms{}, 0, err
	}

	if err := e.learner.Backward(grads); err != nil {
		return loss.Terms{}, 0, err
	}
	norm, err := e.learner.Step(e.config.MaxGradNorm)
	if err != nil {
		return loss.Terms{}, 0, err
	}
	return terms, norm, nil
}

func gather(x []float64, indices []int) []float64 {
	out := make([]float64, len(indices))
	for i, j := range indices {
		out[i] = x[j]
	}
	return out
}

func gatherRows(m *mat.Dense, indices []int) *mat.Dense {
	_, c := m.Dims()
	out := mat.NewDense(len(indices), c, nil)
	for i, j := range indices {
		out.SetRow(i, m.RawRowView(j))
	}
	return out
}
