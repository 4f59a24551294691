// Package loss implements the objectives minimized by on-policy
// algorithms.
//
// An Objective computes the value of its loss terms over a minibatch
// of policy evaluations, together with the gradient of the total loss
// with respect to each per-sample log-probability, value, and entropy.
// Learners chain these gradients into their parameters, so each
// objective is written once for every function approximator.
package loss

import (
	"errors"
	"fmt"

	"github.com/samuelfneumann/onpolicy/policy"
)

// DefaultClipFracThreshold is the deviation of the probability ratio
// from 1 above which a sample counts as clipped in the clip fraction
// diagnostic
const DefaultClipFracThreshold = 0.2

// ErrUndefined is returned when a diagnostic is undefined for its
// inputs
var ErrUndefined = errors.New("undefined")

// Batch holds the per-sample quantities an Objective needs in addition
// to a policy evaluation
type Batch struct {
	OldLogProbs []float64
	Advantages  []float64
	Targets     []float64
}

// Len returns the number of samples in the batch
func (b Batch) Len() int {
	return len(b.Advantages)
}

// Terms holds the value of each loss term and diagnostic over a
// minibatch. Value is the unscaled mean squared error of the critic
// and Entropy is the mean entropy, so that
//
//	Total = Policy + ValueCoef*Value - EntropyCoef*Entropy
//
// The KL and clip fraction diagnostics are only computed by objectives
// which use a probability ratio.
type Terms struct {
	Policy  float64
	Value   float64
	Entropy float64
	Total   float64

	ApproxKL    float64
	OldApproxKL float64
	ClipFrac    float64
}

// Objective is a differentiable loss over a minibatch
type Objective interface {
	Loss(ev policy.Evaluation, b Batch) (Terms, policy.Gradients, error)
}

// check ensures that all per-sample slices have the same length
func check(ev policy.Evaluation, b Batch, needOld bool) (int, error) {
	n := len(ev.LogProbs)
	if n == 0 {
		return 0, fmt.Errorf("empty minibatch")
	}
	if len(ev.Values) != n || len(ev.Entropies) != n {
		return 0, fmt.Errorf("evaluation has %v log-probabilities, %v "+
			"values, %v entropies", n, len(ev.Values), len(ev.Entropies))
	}
	if len(b.Advantages) != n || len(b.Targets) != n {
		return 0, fmt.Errorf("batch has %v advantages and %v targets for "+
			"%v samples", len(b.Advantages), len(b.Targets), n)
	}
	if needOld && len(b.OldLogProbs) != n {
		return 0, fmt.Errorf("batch has %v old log-probabilities for %v "+
			"samples", len(b.OldLogProbs), n)
	}
	return n, nil
}

// critic computes the value and entropy terms shared by all
// objectives, writing their gradients into g
func critic(ev policy.Evaluation, b Batch, valueCoef, entropyCoef float64,
	g policy.Gradients) (value, entropy float64) {
	n := float64(len(ev.Values))
	for i := range ev.Values {
		diff := ev.Values[i] - b.Targets[i]
		value += diff * diff
		entropy += ev.Entropies[i]

		g.Values[i] = 2 * valueCoef * diff / n
		g.Entropies[i] = -entropyCoef / n
	}
	return value / n, entropy / n
}

func newGradients(n int) policy.Gradients {
	return policy.Gradients{
		LogProbs:  make([]float64, n),
		Values:    make([]float64, n),
		Entropies: make([]float64, n),
	}
}
