package mlp

import (
	"fmt"

	"github.com/samuelfneumann/onpolicy/network"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// graphKey identifies a computational graph by its batch size and
// whether it computes gradients
type graphKey struct {
	batch int
	train bool
}

// graph holds the actor and critic networks built on a single input
// node. A training graph additionally differentiates
//
//	sum(actor ⊙ dActor) + sum(critic ⊙ dCritic)
//
// with respect to the learnables, where dActor and dCritic hold the
// gradient of the loss with respect to the network outputs.
type graph struct {
	g     *G.ExprGraph
	vm    G.VM
	batch int
	train bool

	input   *G.Node
	actor   *network.MLP
	critic  *network.MLP
	dActor  *G.Node
	dCritic *G.Node
}

// newGraph builds the networks described by actor and critic for
// inputs of batch rows
func newGraph(actor, critic network.Arch, batch int, train bool) (*graph,
	error) {
	g := G.NewGraph()
	input := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(batch, actor.Features),
		G.WithName("input"),
		G.WithInit(G.Zeroes()),
	)

	actorNet, err := network.NewMLP(input, actor, "actor")
	if err != nil {
		return nil, fmt.Errorf("newGraph: could not create actor: %v", err)
	}
	criticNet, err := network.NewMLP(input, critic, "critic")
	if err != nil {
		return nil, fmt.Errorf("newGraph: could not create critic: %v", err)
	}

	gr := &graph{
		g:      g,
		batch:  batch,
		train:  train,
		input:  input,
		actor:  actorNet,
		critic: criticNet,
	}

	if !train {
		gr.vm = G.NewTapeMachine(g)
		return gr, nil
	}

	gr.dActor = G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(batch, actor.Outputs),
		G.WithName("actorUpstream"),
		G.WithInit(G.Zeroes()),
	)
	gr.dCritic = G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(batch, critic.Outputs),
		G.WithName("criticUpstream"),
		G.WithInit(G.Zeroes()),
	)

	actorTerm := G.Must(G.Sum(G.Must(G.HadamardProd(actorNet.Prediction(),
		gr.dActor))))
	criticTerm := G.Must(G.Sum(G.Must(G.HadamardProd(
		criticNet.Prediction(), gr.dCritic))))
	cost := G.Must(G.Add(actorTerm, criticTerm))

	learnables := gr.learnables()
	if _, err := G.Grad(cost, learnables...); err != nil {
		return nil, fmt.Errorf("newGraph: could not compute gradient: %v",
			err)
	}
	gr.vm = G.NewTapeMachine(g, G.BindDualValues(learnables...))
	return gr, nil
}

// learnables returns the actor learnables followed by the critic
// learnables
func (gr *graph) learnables() G.Nodes {
	learnables := make(G.Nodes, 0, len(gr.actor.Learnables())+
		len(gr.critic.Learnables()))
	learnables = append(learnables, gr.actor.Learnables()...)
	return append(learnables, gr.critic.Learnables()...)
}

// run binds the weights and states, then runs the graph and returns
// the row-major actor outputs and the critic values. On a training
// graph, the gradients of the learnables are added to actorGrads and
// criticGrads.
func (gr *graph) run(p *ActorCritic, states *mat.Dense, dActor,
	dCritic []float64) ([]float64, []float64, error) {
	defer gr.vm.Reset()

	if err := gr.actor.Bind(p.actorWeights); err != nil {
		return nil, nil, fmt.Errorf("run: %v", err)
	}
	if err := gr.critic.Bind(p.criticWeights); err != nil {
		return nil, nil, fmt.Errorf("run: %v", err)
	}
	if err := let(gr.input, flatten(states), gr.batch,
		gr.input.Shape()[1]); err != nil {
		return nil, nil, fmt.Errorf("run: %v", err)
	}
	if gr.train {
		if err := let(gr.dActor, dActor, gr.batch,
			gr.dActor.Shape()[1]); err != nil {
			return nil, nil, fmt.Errorf("run: %v", err)
		}
		if err := let(gr.dCritic, dCritic, gr.batch, 1); err != nil {
			return nil, nil, fmt.Errorf("run: %v", err)
		}
	}

	if err := gr.vm.RunAll(); err != nil {
		return nil, nil, fmt.Errorf("run: %v", err)
	}

	out, err := gr.actor.Output()
	if err != nil {
		return nil, nil, fmt.Errorf("run: %v", err)
	}
	values, err := gr.critic.Output()
	if err != nil {
		return nil, nil, fmt.Errorf("run: %v", err)
	}

	if gr.train {
		if err := accumulate(gr.actor.Learnables(), p.actorGrads); err != nil {
			return nil, nil, fmt.Errorf("run: %v", err)
		}
		if err := accumulate(gr.critic.Learnables(),
			p.criticGrads); err != nil {
			return nil, nil, fmt.Errorf("run: %v", err)
		}
	}
	return out, values, nil
}

// close releases the resources of the tape machine
func (gr *graph) close() error {
	return gr.vm.Close()
}

// let binds an (r x c) tensor backed by data to node
func let(node *G.Node, data []float64, r, c int) error {
	if len(data) != r*c {
		return fmt.Errorf("let: %v should have %v elements, have %v",
			node.Name(), r*c, len(data))
	}
	return G.Let(node, tensor.New(tensor.WithBacking(data),
		tensor.WithShape(r, c)))
}

// accumulate adds the gradient of each node to the matching slice in
// grads
func accumulate(nodes G.Nodes, grads [][]float64) error {
	for i, node := range nodes {
		grad, err := node.Grad()
		if err != nil {
			return fmt.Errorf("accumulate: %v: %v", node.Name(), err)
		}
		data, ok := grad.Data().([]float64)
		if !ok || len(data) != len(grads[i]) {
			return fmt.Errorf("accumulate: invalid gradient for %v",
				node.Name())
		}
		floats.Add(grads[i], data)
	}
	return nil
}

// flatten returns the row-major elements of m
func flatten(m *mat.Dense) []float64 {
	r, c := m.Dims()
	data := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		data = append(data, m.RawRowView(i)...)
	}
	return data
}
