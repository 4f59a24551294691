// Package policy defines the interface between the on-policy training
// core and the function approximators which represent an actor-critic
// policy.
//
// A Policy maps batches of states to action distributions and value
// estimates. A Learner additionally accepts the gradient of a scalar
// loss with respect to its per-sample outputs (log-probabilities,
// values, and entropies) and propagates it to its parameters, so that
// the loss itself can be expressed once, independent of the backend.
package policy

import (
	"io"

	"gonum.org/v1/gonum/mat"
)

// Action is the outcome of acting in a batch of states. Row i of
// Actions was sampled in state i, with log-probability LogProbs[i]
// under the policy at the time of acting, and Values[i] is the
// critic's estimate of state i.
type Action struct {
	Actions  *mat.Dense
	LogProbs []float64
	Values   []float64
}

// Evaluation holds the log-probabilities of given actions, the value
// estimates of the states they were taken in, and the entropies of the
// action distributions in those states, under the current parameters.
type Evaluation struct {
	LogProbs  []float64
	Values    []float64
	Entropies []float64
}

// Gradients holds the derivative of a scalar loss with respect to each
// per-sample output of the most recent Evaluate call
type Gradients struct {
	LogProbs  []float64
	Values    []float64
	Entropies []float64
}

// Policy is an actor-critic policy
type Policy interface {
	// Act samples actions in a batch of states. No gradient
	// information is retained.
	Act(states *mat.Dense) (Action, error)

	// Value returns the critic's estimates of a batch of states
	Value(states *mat.Dense) ([]float64, error)

	// Evaluate re-scores previously taken actions under the current
	// parameters
	Evaluate(states, actions *mat.Dense) (Evaluation, error)
}

// Learner is a Policy whose parameters can be updated by gradient
// descent
type Learner interface {
	Policy

	// Backward accumulates the gradient of the loss with respect to
	// the parameters, given the gradient with respect to the outputs
	// of the last Evaluate call.
	Backward(g Gradients) error

	// Step rescales the accumulated gradient so that its global L2
	// norm is at most maxGradNorm, takes one optimizer step, and clears
	// the accumulated gradient. The returned value is the gradient norm
	// before clipping.
	Step(maxGradNorm float64) (float64, error)

	SetStepSize(float64)
	StepSize() float64

	Save(io.Writer) error
	Load(io.Reader) error
}

// Validate ensures the gradients have one entry per sample
func (g Gradients) Validate(n int) error {
	if len(g.LogProbs) != n || len(g.Values) != n || len(g.Entropies) != n {
		return errGradientShape(n, len(g.LogProbs), len(g.Values),
			len(g.Entropies))
	}
	return nil
}
