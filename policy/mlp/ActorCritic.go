// Package mlp implements a neural network actor-critic policy using
// Gorgonia.
//
// The actor and critic are separate multi-layered perceptrons sharing
// an input. The actor outputs the logits of a categorical distribution
// (discrete actions) or the mean of a diagonal Gaussian with a learned
// state-independent log standard deviation (continuous actions).
//
// A computational graph is built for each batch size the policy is
// used with: acting graphs compute only the forward pass and training
// graphs also compute gradients. All graphs bind the same weight
// slices before they are run, so a solver step on the training graph
// is seen by the acting graph immediately.
package mlp

import (
	"encoding/gob"
	"fmt"
	"io"

	"github.com/samuelfneumann/onpolicy/environment"
	"github.com/samuelfneumann/onpolicy/network"
	"github.com/samuelfneumann/onpolicy/policy"
	"github.com/samuelfneumann/onpolicy/solver"
	"github.com/samuelfneumann/onpolicy/utils/floatutils"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
)

// Config describes the hidden layers of the actor and critic networks
type Config struct {
	ActorHidden       []int
	ActorActivations  []*network.Activation
	CriticHidden      []int
	CriticActivations []*network.Activation

	// InitLogStd is the initial log standard deviation of the Gaussian
	// policy. It is unused for discrete actions.
	InitLogStd float64
}

// ActorCritic is an MLP actor-critic policy which can be trained with a
// solver.Solver
type ActorCritic struct {
	discrete   bool
	features   int
	actionDims int // Columns of the action matrix
	outputs    int // Number of logits or action dimensions

	actorArch  network.Arch
	criticArch network.Arch

	actorWeights  [][]float64
	actorGrads    [][]float64
	criticWeights [][]float64
	criticGrads   [][]float64
	logStd        []float64
	logStdGrad    []float64

	graphs map[graphKey]*graph

	categorical *policy.Categorical
	gaussian    *policy.Gaussian
	solver      *solver.Solver

	// Inputs and actor outputs of the last Evaluate call
	states  *mat.Dense
	actions *mat.Dense
	out     []float64
}

// New returns a new MLP ActorCritic for an environment with the given
// observation and action specifications. Weights are initialized with
// init and biases with 0.
func New(obsSpec, actionSpec environment.Spec, c Config, init G.InitWFn,
	s *solver.Solver, seed uint64) (*ActorCritic, error) {
	if s == nil {
		return nil, fmt.Errorf("new: solver cannot be nil")
	}

	a := &ActorCritic{
		features: obsSpec.Dims(),
		solver:   s,
		graphs:   make(map[graphKey]*graph),
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
		a.logStd = make([]float64, a.outputs)
		floats.AddConst(c.InitLogStd, a.logStd)
		a.logStdGrad = make([]float64, a.outputs)

	default:
		return nil, fmt.Errorf("new: unknown action cardinality %v",
			actionSpec.Cardinality)
	}

	a.actorArch = network.Arch{
		Features:    a.features,
		Outputs:     a.outputs,
		Hidden:      c.ActorHidden,
		Activations: c.ActorActivations,
	}
	a.criticArch = network.Arch{
		Features:    a.features,
		Outputs:     1,
		Hidden:      c.CriticHidden,
		Activations: c.CriticActivations,
	}

	var err error
	if a.actorWeights, err = a.actorArch.NewWeights(init); err != nil {
		return nil, fmt.Errorf("new: actor: %v", err)
	}
	if a.criticWeights, err = a.criticArch.NewWeights(init); err != nil {
		return nil, fmt.Errorf("new: critic: %v", err)
	}
	a.actorGrads = zerosLike(a.actorWeights)
	a.criticGrads = zerosLike(a.criticWeights)

	return a, nil
}

// Discrete returns whether the policy selects discrete actions
func (a *ActorCritic) Discrete() bool {
	return a.discrete
}

// graph returns the graph for a batch of states, building it if needed
func (a *ActorCritic) graph(states *mat.Dense, train bool) (*graph,
	error) {
	n, c := states.Dims()
	if c != a.features {
		return nil, fmt.Errorf("graph: states should have %v columns, "+
			"have %v", a.features, c)
	}

	key := graphKey{batch: n, train: train}
	if gr, ok := a.graphs[key]; ok {
		return gr, nil
	}
	gr, err := newGraph(a.actorArch, a.criticArch, n, train)
	if err != nil {
		return nil, fmt.Errorf("graph: %v", err)
	}
	a.graphs[key] = gr
	return gr, nil
}

// forward computes the actor outputs and critic values of states
func (a *ActorCritic) forward(states *mat.Dense) ([]float64, []float64,
	error) {
	if n, _ := states.Dims(); n < 1 {
		return nil, nil, fmt.Errorf("forward: empty batch of states")
	}
	gr, err := a.graph(states, false)
	if err != nil {
		return nil, nil, fmt.Errorf("forward: %v", err)
	}
	return gr.run(a, states, nil, nil)
}

// row returns the actor outputs of sample i
func (a *ActorCritic) row(out []float64, i int) []float64 {
	return out[i*a.outputs : (i+1)*a.outputs]
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
			action, logProb := a.categorical.Sample(a.row(out, i))
			actions.Set(i, 0, float64(action))
			logProbs[i] = logProb
		} else {
			logProbs[i] = a.gaussian.Sample(a.row(out, i), a.logStd,
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
			logProbs[i] = a.categorical.LogProb(a.row(out, i), action)
			entropies[i] = a.categorical.Entropy(a.row(out, i))
		} else {
			logProbs[i] = a.gaussian.LogProb(a.row(out, i), a.logStd,
				actions.RawRowView(i))
			entropies[i] = a.gaussian.Entropy(a.logStd)
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

	dOut := make([]float64, n*a.outputs)
	rowLogStd := make([]float64, a.outputs)
	for i := 0; i < n; i++ {
		if a.discrete {
			action, _ := a.discreteAction(a.actions, i)
			a.categorical.Backward(a.row(a.out, i), action, g.LogProbs[i],
				g.Entropies[i], a.row(dOut, i))
		} else {
			a.gaussian.Backward(a.row(a.out, i), a.logStd,
				a.actions.RawRowView(i), g.LogProbs[i], g.Entropies[i],
				a.row(dOut, i), rowLogStd)
			floats.Add(a.logStdGrad, rowLogStd)
		}
	}

	gr, err := a.graph(a.states, true)
	if err != nil {
		return fmt.Errorf("backward: %v", err)
	}
	dValues := append([]float64(nil), g.Values...)
	if _, _, err := gr.run(a, a.states, dOut, dValues); err != nil {
		return fmt.Errorf("backward: %v", err)
	}

	a.states, a.actions, a.out = nil, nil, nil
	return nil
}

// Params returns the weights and accumulated gradients of the policy:
// the actor learnables, then the critic learnables, then the log
// standard deviation if actions are continuous
func (a *ActorCritic) Params() []solver.Param {
	params := make([]solver.Param, 0, len(a.actorWeights)+
		len(a.criticWeights)+1)
	for i := range a.actorWeights {
		params = append(params, solver.Param{Value: a.actorWeights[i],
			Grad: a.actorGrads[i]})
	}
	for i := range a.criticWeights {
		params = append(params, solver.Param{Value: a.criticWeights[i],
			Grad: a.criticGrads[i]})
	}
	if !a.discrete {
		params = append(params, solver.Param{Value: a.logStd,
			Grad: a.logStdGrad})
	}
	return params
}

// Step takes one solver step using the accumulated gradients
func (a *ActorCritic) Step(maxGradNorm float64) (float64, error) {
	params := a.Params()
	norm, err := a.solver.Step(params, maxGradNorm)
	if err != nil {
		return norm, fmt.Errorf("step: %v", err)
	}
	for i, p := range params {
		if !floatutils.AllFinite(p.Value) {
			return norm, fmt.Errorf("step: non-finite parameter %v after "+
				"update", i)
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

// Close releases the computational graphs of the policy
func (a *ActorCritic) Close() error {
	var firstErr error
	for key, gr := range a.graphs {
		if err := gr.close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close: %v", err)
		}
		delete(a.graphs, key)
	}
	return firstErr
}

// weights is the serialized form of an ActorCritic
type weights struct {
	Actor  [][]float64
	Critic [][]float64
	LogStd []float64
}

// Save writes the weights of the policy to w
func (a *ActorCritic) Save(w io.Writer) error {
	ws := weights{Actor: a.actorWeights, Critic: a.criticWeights,
		LogStd: a.logStd}
	if err := gob.NewEncoder(w).Encode(ws); err != nil {
		return fmt.Errorf("save: %v", err)
	}
	return nil
}

// Load reads weights written by Save from r. The architecture of the
// saved policy must match that of a.
func (a *ActorCritic) Load(r io.Reader) error {
	var ws weights
	if err := gob.NewDecoder(r).Decode(&ws); err != nil {
		return fmt.Errorf("load: %v", err)
	}
	if err := sameShape(a.actorWeights, ws.Actor); err != nil {
		return fmt.Errorf("load: actor: %v", err)
	}
	if err := sameShape(a.criticWeights, ws.Critic); err != nil {
		return fmt.Errorf("load: critic: %v", err)
	}
	if len(ws.LogStd) != len(a.logStd) {
		return fmt.Errorf("load: log standard deviation should have %v "+
			"elements, have %v", len(a.logStd), len(ws.LogStd))
	}

	for i := range ws.Actor {
		copy(a.actorWeights[i], ws.Actor[i])
	}
	for i := range ws.Critic {
		copy(a.criticWeights[i], ws.Critic[i])
	}
	copy(a.logStd, ws.LogStd)
	return nil
}

// sameShape checks that have is sized like want
func sameShape(want, have [][]float64) error {
	if len(want) != len(have) {
		return fmt.Errorf("should have %v learnables, have %v", len(want),
			len(have))
	}
	for i := range want {
		if len(want[i]) != len(have[i]) {
			return fmt.Errorf("learnable %v should have %v elements, "+
				"have %v", i, len(want[i]), len(have[i]))
		}
	}
	return nil
}

func zerosLike(x [][]float64) [][]float64 {
	zeros := make([][]float64, len(x))
	for i := range x {
		zeros[i] = make([]float64, len(x[i]))
	}
	return zeros
}
