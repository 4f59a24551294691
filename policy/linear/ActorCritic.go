// Package linear implements a linear actor-critic policy using gonum.
//
// The actor computes the logits of a categorical distribution (discrete
// actions) or the mean of a diagonal Gaussian (continuous actions) as a
// linear function of the state. The Gaussian's log standard deviation
// is a state-independent learned vector. The critic is a linear state
// value function. Gradients are computed analytically.
package linear

import (
	"encoding/gob"
	"fmt"
	"io"

	"github.com/samuelfneumann/onpolicy/environment"
	"github.com/samuelfneumann/onpolicy/policy"
	"github.com/samuelfneumann/onpolicy/solver"
	"github.com/samuelfneumann/onpolicy/utils/floatutils"
	"github.com/samuelfneumann/onpolicy/utils/matutils/initializers/weights"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	// Keys for the weights map: map[string]*mat.Dense
	ActorWeightsKey  string = "actor weights"
	ActorBiasKey     string = "actor bias"
	LogStdKey        string = "log standard deviation"
	CriticWeightsKey string = "critic weights"
	CriticBiasKey    string = "critic bias"
)

// ActorCritic is a linear actor-critic policy which can be trained
// with a solver.Solver
type ActorCritic struct {
	discrete   bool
	features   int
	actionDims int // Columns of the action matrix
	outputs    int // Number of logits or action dimensions

	keys    []string
	weights map[string]*mat.Dense
	grads   map[string]*mat.Dense

	categorical *policy.Categorical
	gaussian    *policy.Gaussian
	solver      *solver.Solver

	// Inputs and outputs of the last Evaluate call
	states  *mat.Dense
	actions *mat.Dense
	out     *mat.Dense
}

// New returns a new linear ActorCritic for an environment with the
// given observation and action specifications. The actor and critic
// weights are initialized with init, biases and the log standard
// deviation are initialized to 0.
func New(obsSpec, actionSpec environment.Spec, init weights.Initializer,
	s *solver.Solver, seed uint64) (*ActorCritic, error) {
	if s == nil {
		return nil, fmt.Errorf("new: solver cannot be nil")
	}
	features := obsSpec.Dims()
	if features < 1 {
		return nil, fmt.Errorf("new: observations must have at least one "+
			"dimension, have %v", features)
	}

	a := &ActorCritic{
		features: features,
		solver:   s,
		weights:  make(map[string]*mat.Dense),
		grads:    make(map[string]*mat.Dense),
	}

	src := rand.NewSource(seed)
	switch actionSpec.Cardinality {
	case environment.Discrete:
		n, err := actionSpec.NumActions()
		if err != nil {
			return nil, fmt.Errorf("new: %v", err)
		}
		a.discrete = true
		a.actionDims = 1
		a.outputs = n
		a.categorical = policy.NewCategorical(src)

	case environment.Continuous:
		a.actionDims = actionSpec.Dims()
		a.outputs = a.actionDims
		a.gaussian = policy.NewGaussian(src)

	default:
		return nil, fmt.Errorf("new: unknown action cardinality %v",
			actionSpec.Cardinality)
	}

	a.addParam(ActorWeightsKey, features, a.outputs)
	a.addParam(ActorBiasKey, 1, a.outputs)
	if !a.discrete {
		a.addParam(LogStdKey, 1, a.outputs)
	}
	a.addParam(CriticWeightsKey, features, 1)
	a.addParam(CriticBiasKey, 1, 1)

	if init != nil {
		init.Initialize(a.weights[ActorWeightsKey])
		init.Initialize(a.weights[CriticWeightsKey])
	}

	return a, nil
}

// addParam adds a zeroed r x c parameter and its gradient
func (a *ActorCritic) addParam(key string, r, c int) {
	a.keys = append(a.keys, key)
	a.weights[key] = mat.NewDense(r, c, nil)
	a.grads[key] = mat.NewDense(r, c, nil)
}

// Discrete returns whether the policy selects discrete actions
func (a *ActorCritic) Discrete() bool {
	return a.discrete
}

// forward computes the actor outputs and critic values of states
func (a *ActorCritic) forward(states *mat.Dense) (*mat.Dense, []float64,
	error) {
	n, c := states.Dims()
	if n < 1 {
		return nil, nil, fmt.Errorf("forward: empty batch of states")
	}
	if c != a.features {
		return nil, nil, fmt.Errorf("forward: states should have %v "+
			"columns, have %v", a.features, c)
	}

	out := mat.NewDense(n, a.outputs, nil)
	out.Mul(states, a.weights[ActorWeightsKey])
	bias := a.weights[ActorBiasKey].RawRowView(0)
	for i := 0; i < n; i++ {
		floats.Add(out.RawRowView(i), bias)
	}

	values := make([]float64, n)
	v := mat.NewVecDense(n, values)
	v.MulVec(states, a.weights[CriticWeightsKey].ColView(0))
	floats.AddConst(a.weights[CriticBiasKey].At(0, 0), values)

	return out, values, nil
}

// Act samples actions in a batch of states
func (a *ActorCritic) Act(states *mat.Dense) (policy.Action, error) {
	out, values, err := a.forward(states)
	if err != nil {
		return policy.Action{}, fmt.Errorf("act: %v", err)
	}

	n, _ := states.Dims()
	actions := mat.NewDense(n, a.actionDims, nil)
	logProbs := make([]float64, n)

	for i := 0; i < n; i++ {
		if a.discrete {
			action, logProb := a.categorical.Sample(out.RawRowView(i))
			actions.Set(i, 0, float64(action))
			logProbs[i] = logProb
		} else {
			logProbs[i] = a.gaussian.Sample(out.RawRowView(i), a.logStd(),
				actions.RawRowView(i))
		}
	}

	return policy.Action{Actions: actions, LogProbs: logProbs,
		Values: values}, nil
}

// Value returns the critic's estimates of a batch of states
func (a *ActorCritic) Value(states *mat.Dense) ([]float64, error) {
	_, values, err := a.forward(states)
	if err != nil {
		return nil, fmt.Errorf("value: %v", err)
	}
	return values, nil
}

// Evaluate returns the log-probabilities of actions, the values of
// states, and the entropies of the action distributions in states.
// The inputs are retained until the next call to Backward.
func (a *ActorCritic) Evaluate(states, actions *mat.Dense) (
	policy.Evaluation, error) {
	out, values, err := a.forward(states)
	if err != nil {
		return policy.Evaluation{}, fmt.Errorf("evaluate: %v", err)
	}
	n, _ := states.Dims()
	if r, c := actions.Dims(); r != n || c != a.actionDims {
		return policy.Evaluation{}, fmt.Errorf("evaluate: actions should "+
			"be (%v x %v), have (%v x %v)", n, a.actionDims, r, c)
	}

	logProbs := make([]float64, n)
	entropies := make([]float64, n)
	for i := 0; i < n; i++ {
		if a.discrete {
			action, err := a.discreteAction(actions, i)
			if err != nil {
				return policy.Evaluation{}, fmt.Errorf("evaluate: %v", err)
			}
			logProbs[i] = a.categorical.LogProb(out.RawRowView(i), action)
			entropies[i] = a.categorical.Entropy(out.RawRowView(i))
		} else {
			logProbs[i] = a.gaussian.LogProb(out.RawRowView(i), a.logStd(),
				actions.RawRowView(i))
			entropies[i] = a.gaussian.Entropy(a.logStd())
		}
	}

	a.states, a.actions, a.out = states, actions, out
	return policy.Evaluation{LogProbs: logProbs, Values: values,
		Entropies: entropies}, nil
}

// discreteAction returns the discrete action in row i of actions
func (a *ActorCritic) discreteAction(actions *mat.Dense, i int) (int,
	error) {
	f := actions.At(i, 0)
	action := int(f)
	if float64(action) != f || action < 0 || action >= a.outputs {
		return 0, fmt.Errorf("illegal action %v, actions must be integers "+
			"in [0, %v)", f, a.outputs)
	}
	return action, nil
}

// Backward accumulates the gradient of the loss with respect to the
// weights, given the gradient with respect to the outputs of the last
// Evaluate call
func (a *ActorCritic) Backward(g policy.Gradients) error {
	if a.states == nil {
		return fmt.Errorf("backward: no evaluation to differentiate")
	}
	n, _ := a.states.Dims()
	if err := g.Validate(n); err != nil {
		return fmt.Errorf("backward: %v", err)
	}

	// Gradient with respect to the actor outputs
	dOut := mat.NewDense(n, a.outputs, nil)
	var dLogStd []float64
	if !a.discrete {
		dLogStd = make([]float64, a.outputs)
	}
	rowLogStd := make([]float64, a.outputs)
	for i := 0; i < n; i++ {
		if a.discrete {
			action, _ := a.discreteAction(a.actions, i)
			a.categorical.Backward(a.out.RawRowView(i), action,
				g.LogProbs[i], g.Entropies[i], dOut.RawRowView(i))
		} else {
			a.gaussian.Backward(a.out.RawRowView(i), a.logStd(),
				a.actions.RawRowView(i), g.LogProbs[i], g.Entropies[i],
				dOut.RawRowView(i), rowLogStd)
			floats.Add(dLogStd, rowLogStd)
		}
	}

	// Actor weights and bias
	dW := mat.NewDense(a.features, a.outputs, nil)
	dW.Mul(a.states.T(), dOut)
	a.grads[ActorWeightsKey].Add(a.grads[ActorWeightsKey], dW)
	biasGrad := a.grads[ActorBiasKey].RawRowView(0)
	for i := 0; i < n; i++ {
		floats.Add(biasGrad, dOut.RawRowView(i))
	}
	if !a.discrete {
		floats.Add(a.grads[LogStdKey].RawRowView(0), dLogStd)
	}

	// Critic weights and bias
	dV := mat.NewVecDense(n, g.Values)
	dWc := mat.NewVecDense(a.features, nil)
	dWc.MulVec(a.states.T(), dV)
	criticGrad := a.grads[CriticWeightsKey]
	for j := 0; j < a.features; j++ {
		criticGrad.Set(j, 0, criticGrad.At(j, 0)+dWc.AtVec(j))
	}
	a.grads[CriticBiasKey].Set(0, 0,
		a.grads[CriticBiasKey].At(0, 0)+floats.Sum(g.Values))

	a.states, a.actions, a.out = nil, nil, nil
	return nil
}

// Params returns the weights and accumulated gradients of the policy
// in a fixed order
func (a *ActorCritic) Params() []solver.Param {
	params := make([]solver.Param, len(a.keys))
	for i, key := range a.keys {
		params[i] = solver.Param{
			Value: a.weights[key].RawMatrix().Data,
			Grad:  a.grads[key].RawMatrix().Data,
		}
	}
	return params
}

// Step takes one solver step using the accumulated gradients
func (a *ActorCritic) Step(maxGradNorm float64) (float64, error) {
	norm, err := a.solver.Step(a.Params(), maxGradNorm)
	if err != nil {
		return norm, fmt.Errorf("step: %v", err)
	}
	for _, key := range a.keys {
		if !floatutils.AllFinite(a.weights[key].RawMatrix().Data) {
			return norm, fmt.Errorf("step: non-finite %v after update", key)
		}
	}
	return norm, nil
}

// SetStepSize sets the learning rate of the solver
func (a *ActorCritic) SetStepSize(stepSize float64) {
	a.solver.SetStepSize(stepSize)
}

// StepSize returns the learning rate of the solver
func (a *ActorCritic) StepSize() float64 {
	return a.solver.StepSize()
}

// Weights gets and returns the weights of the policy
func (a *ActorCritic) Weights() map[string]*mat.Dense {
	weights := make(map[string]*mat.Dense, len(a.weights))
	for key, w := range a.weights {
		weights[key] = w
	}
	return weights
}

// SetWeights copies weights into the policy. Every weight of the
// policy must be present with its shape.
func (a *ActorCritic) SetWeights(weights map[string]*mat.Dense) error {
	for _, key := range a.keys {
		w, ok := weights[key]
		if !ok {
			return fmt.Errorf("setWeights: no weights named \"%v\"", key)
		}
		r, c := a.weights[key].Dims()
		if wr, wc := w.Dims(); wr != r || wc != c {
			return fmt.Errorf("setWeights: \"%v\" should be (%v x %v), "+
				"have (%v x %v)", key, r, c, wr, wc)
		}
	}
	for _, key := range a.keys {
		a.weights[key].Copy(weights[key])
	}
	return nil
}

// Save writes the weights of the policy to w
func (a *ActorCritic) Save(w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(a.weights); err != nil {
		return fmt.Errorf("save: %v", err)
	}
	return nil
}

// Load reads weights written by Save from r
func (a *ActorCritic) Load(r io.Reader) error {
	var weights map[string]*mat.Dense
	if err := gob.NewDecoder(r).Decode(&weights); err != nil {
		return fmt.Errorf("load: %v", err)
	}
	if err := a.SetWeights(weights); err != nil {
		return fmt.Errorf("load: %v", err)
	}
	return nil
}

func (a *ActorCritic) logStd() []float64 {
	return a.weights[LogStdKey].RawRowView(0)
}
