// Package network implements feed forward neural networks as Gorgonia
// computational graphs.
//
// The learnable weights of a network are owned by the caller as flat
// row-major slices, one per learnable node (see Arch.Shapes), and are
// bound to the graph with Bind before each run. Networks of the same
// Arch built on different graphs, for example with different batch
// sizes, can therefore share a single set of weights.
package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Arch describes the architecture of a multi-layered perceptron. The
// network has len(Hidden)+1 fully connected layers, each with a bias.
// Activations[i] is applied after hidden layer i, and the final layer,
// which has Outputs units, has no activation.
type Arch struct {
	Features    int
	Outputs     int
	Hidden      []int
	Activations []*Activation
}

// Validate checks that the architecture can be constructed
func (a Arch) Validate() error {
	if a.Features < 1 {
		return fmt.Errorf("validate: features must be positive, have %v",
			a.Features)
	}
	if a.Outputs < 1 {
		return fmt.Errorf("validate: outputs must be positive, have %v",
			a.Outputs)
	}
	if len(a.Hidden) != len(a.Activations) {
		return fmt.Errorf("validate: invalid number of activations"+
			"\n\twant(%d)\n\thave(%d)", len(a.Hidden), len(a.Activations))
	}
	for i, h := range a.Hidden {
		if h < 1 {
			return fmt.Errorf("validate: hidden layer %v must have a "+
				"positive number of units, have %v", i, h)
		}
		if a.Activations[i] == nil {
			return fmt.Errorf("validate: hidden layer %v has no "+
				"activation", i)
		}
	}
	return nil
}

// Shapes returns the (rows, cols) shape of each learnable in order:
// the weights of layer 0, the bias of layer 0, the weights of layer 1,
// and so on.
func (a Arch) Shapes() [][2]int {
	sizes := append(append([]int{a.Features}, a.Hidden...), a.Outputs)
	shapes := make([][2]int, 0, 2*(len(sizes)-1))
	for i := 1; i < len(sizes); i++ {
		shapes = append(shapes, [2]int{sizes[i-1], sizes[i]})
		shapes = append(shapes, [2]int{1, sizes[i]})
	}
	return shapes
}

// NewWeights allocates the learnables described by Shapes. Weights are
// drawn from init and biases are zero.
func (a Arch) NewWeights(init G.InitWFn) ([][]float64, error) {
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("newWeights: %v", err)
	}
	shapes := a.Shapes()
	weights := make([][]float64, len(shapes))
	for i, shape := range shapes {
		if i%2 == 1 || init == nil {
			weights[i] = make([]float64, shape[0]*shape[1])
			continue
		}
		w, ok := init(tensor.Float64, shape[0], shape[1]).([]float64)
		if !ok || len(w) != shape[0]*shape[1] {
			return nil, fmt.Errorf("newWeights: initializer did not " +
				"return a float64 backing")
		}
		weights[i] = w
	}
	return weights, nil
}

// MLP is a multi-layered perceptron added to a computational graph
type MLP struct {
	g      *G.ExprGraph
	arch   Arch
	input  *G.Node
	layers []*fcLayer

	learnables G.Nodes

	prediction *G.Node
	predVal    G.Value
}

// NewMLP adds an MLP with the given architecture to the graph of
// input, which must be a (batch x arch.Features) matrix node. The name
// prefixes the names of the learnable nodes and must be unique within
// the graph.
func NewMLP(input *G.Node, arch Arch, name string) (*MLP, error) {
	if err := arch.Validate(); err != nil {
		return nil, fmt.Errorf("newMLP: %v", err)
	}
	if !input.IsMatrix() {
		return nil, fmt.Errorf("newMLP: input must be a matrix")
	}
	if cols := input.Shape()[1]; cols != arch.Features {
		return nil, fmt.Errorf("newMLP: invalid shape for input to neural "+
			"net: \n\twant(%v) \n\thave(%v)", arch.Features, cols)
	}

	g := input.Graph()
	shapes := arch.Shapes()
	layers := make([]*fcLayer, 0, len(shapes)/2)
	for i := 0; i < len(shapes); i += 2 {
		act := Identity()
		if l := i / 2; l < len(arch.Activations) {
			act = arch.Activations[l]
		}
		layer := newFCLayer(g, shapes[i][0], shapes[i][1], act,
			fmt.Sprintf("%v_%v", name, i/2))
		layers = append(layers, layer)
	}

	net := &MLP{
		g:      g,
		arch:   arch,
		input:  input,
		layers: layers,
	}
	if err := net.fwd(); err != nil {
		return nil, fmt.Errorf("newMLP: could not compute forward pass: %v",
			err)
	}
	return net, nil
}

// fwd adds the forward pass of the MLP to the graph
func (m *MLP) fwd() error {
	pred := m.input
	var err error
	for i, l := range m.layers {
		if pred, err = l.fwd(pred); err != nil {
			return fmt.Errorf("fwd: could not compute forward pass of "+
				"layer %v: %v", i, err)
		}
	}

	m.prediction = pred
	G.Read(m.prediction, &m.predVal)
	return nil
}

// Graph returns the computational graph of the MLP
func (m *MLP) Graph() *G.ExprGraph {
	return m.g
}

// Arch returns the architecture of the MLP
func (m *MLP) Arch() Arch {
	return m.arch
}

// BatchSize returns the batch size of inputs to the MLP
func (m *MLP) BatchSize() int {
	return m.input.Shape()[0]
}

// Learnables returns the learnable nodes of the MLP in the order given
// by Arch.Shapes
func (m *MLP) Learnables() G.Nodes {
	// Lazy instantiation
	if m.learnables == nil {
		m.learnables = make(G.Nodes, 0, 2*len(m.layers))
		for _, l := range m.layers {
			m.learnables = append(m.learnables, l.Weights(), l.Bias())
		}
	}
	return m.learnables
}

// Bind binds the learnable nodes to tensors backed by weights, which
// must be ordered and sized as Arch.Shapes describes. The slices are
// not copied.
func (m *MLP) Bind(weights [][]float64) error {
	shapes := m.arch.Shapes()
	if len(weights) != len(shapes) {
		return fmt.Errorf("bind: invalid number of weights\n\twant(%v)"+
			"\n\thave(%v)", len(shapes), len(weights))
	}
	for i, node := range m.Learnables() {
		r, c := shapes[i][0], shapes[i][1]
		if len(weights[i]) != r*c {
			return fmt.Errorf("bind: learnable %v should have %v "+
				"elements, have %v", i, r*c, len(weights[i]))
		}
		t := tensor.New(tensor.WithBacking(weights[i]),
			tensor.WithShape(r, c))
		if err := G.Let(node, t); err != nil {
			return fmt.Errorf("bind: %v", err)
		}
	}
	return nil
}

// Prediction returns the node of the computational graph that stores
// the output of the MLP
func (m *MLP) Prediction() *G.Node {
	return m.prediction
}

// Output returns a copy of the (batch x Outputs) output of the last
// run of the graph in row-major order
func (m *MLP) Output() ([]float64, error) {
	if m.predVal == nil {
		return nil, fmt.Errorf("output: graph has not been run")
	}
	data, ok := m.predVal.Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("output: expected float64 output, have %T",
			m.predVal.Data())
	}
	out := make([]float64, len(data))
	copy(out, data)
	return out, nil
}
