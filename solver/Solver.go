// Package solver wraps Gorgonia Solvers so that they can be JSON
// serialized into configuration files.
//
// Solvers operate on Params, which alias the parameter and gradient
// storage of a function approximator. Each Param is handed to the
// Gorgonia Solver as a tensor backed by that storage, so the same
// solver updates both gonum and Gorgonia backed policies in place.
// The step size can be changed between updates for learning rate
// annealing.
package solver

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"

	"gonum.org/v1/gonum/floats"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Type describes different types of solvers that are available
type Type string

// Available solver types
const (
	Adam    Type = "Adam"
	Vanilla Type = "Vanilla"
	RMSProp Type = "RMSProp"
)

// Param is a single parameter tensor together with its accumulated
// gradient. Both slices alias the storage of the function approximator
// and must have the same length.
type Param struct {
	Value []float64
	Grad  []float64
}

// valueGrad adapts a Param to a Gorgonia ValueGrad. The tensors share
// the backing slices of the Param.
type valueGrad struct {
	value *tensor.Dense
	grad  *tensor.Dense
}

func newValueGrad(p Param) valueGrad {
	return valueGrad{
		value: tensor.New(tensor.WithShape(len(p.Value)),
			tensor.WithBacking(p.Value)),
		grad: tensor.New(tensor.WithShape(len(p.Grad)),
			tensor.WithBacking(p.Grad)),
	}
}

// Value implements the gorgonia.Valuer interface
func (v valueGrad) Value() G.Value { return v.value }

// Grad implements the gorgonia.ValueGrad interface
func (v valueGrad) Grad() (G.Value, error) { return v.grad, nil }

// Solver wraps Gorgonia Solvers so that they can be JSON marshalled and
// unmarshalled.
type Solver struct {
	G.Solver `json:"-"`
	Type
	Config

	stepSize float64
}

// newSolver returns a new solver with the given type and configuration.
func newSolver(t Type, c Config) (*Solver, error) {
	if !c.ValidType(t) {
		return nil, fmt.Errorf("newSolver: invalid solver type %v for "+
			"configuration %T", t, c)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("newSolver: %v", err)
	}
	solver := Solver{Type: t, Config: c, stepSize: c.initialStepSize()}
	solver.Solver = solver.Config.Create()

	return &solver, nil
}

// Step rescales the gradients of params so that their global L2 norm
// is at most maxGradNorm, updates params, and zeroes their gradients.
// The gradient norm before clipping is returned. A non-positive
// maxGradNorm is an error.
func (s *Solver) Step(params []Param, maxGradNorm float64) (float64, error) {
	if s.Solver == nil {
		return 0, fmt.Errorf("step: solver not initialized")
	}
	if maxGradNorm <= 0 {
		return 0, fmt.Errorf("step: maximum gradient norm must be "+
			"positive, have %v", maxGradNorm)
	}

	norm := ClipByGlobalNorm(params, maxGradNorm)
	if math.IsNaN(norm) || math.IsInf(norm, 0) {
		ZeroGrad(params)
		return norm, fmt.Errorf("step: non-finite gradient norm %v", norm)
	}

	model := make([]G.ValueGrad, 0, len(params))
	for _, p := range params {
		if len(p.Value) != len(p.Grad) {
			return norm, fmt.Errorf("step: parameter and gradient "+
				"lengths differ: %v != %v", len(p.Value), len(p.Grad))
		}
		if len(p.Value) > 0 {
			model = append(model, newValueGrad(p))
		}
	}
	if err := s.Solver.Step(model); err != nil {
		return norm, fmt.Errorf("step: %v", err)
	}
	ZeroGrad(params)
	return norm, nil
}

// SetStepSize sets the learning rate of the solver. The solver keeps
// its accumulated moments.
func (s *Solver) SetStepSize(stepSize float64) {
	G.WithLearnRate(stepSize)(s.Solver)
	s.stepSize = stepSize
}

// StepSize returns the current learning rate of the solver
func (s *Solver) StepSize() float64 {
	return s.stepSize
}

// GlobalNorm returns the L2 norm of all gradients in params taken
// together
func GlobalNorm(params []Param) float64 {
	var sumSquares float64
	for _, p := range params {
		sumSquares += floats.Dot(p.Grad, p.Grad)
	}
	return math.Sqrt(sumSquares)
}

// ClipByGlobalNorm scales all gradients in params by the same factor
// so that their global L2 norm is at most maxNorm, and returns the norm
// before scaling.
func ClipByGlobalNorm(params []Param, maxNorm float64) float64 {
	norm := GlobalNorm(params)
	if norm > maxNorm {
		scale := maxNorm / (norm + 1e-6)
		for _, p := range params {
			floats.Scale(scale, p.Grad)
		}
	}
	return norm
}

// ZeroGrad zeroes the gradients of params
func ZeroGrad(params []Param) {
	for _, p := range params {
		for i := range p.Grad {
			p.Grad[i] = 0
		}
	}
}

// UnmarshalJSON implements the json.Unmarshaller interface
func (s *Solver) UnmarshalJSON(data []byte) error {
	config, typeName, err := unmarshalConfig(
		data,
		"Type",
		"Config",
		map[string]reflect.Type{
			string(Vanilla): reflect.TypeOf(VanillaConfig{}),
			string(Adam):    reflect.TypeOf(AdamConfig{}),
			string(RMSProp): reflect.TypeOf(RMSPropConfig{}),
		})
	if err != nil {
		return err
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("unmarshalJSON: %v", err)
	}

	s.Type = typeName
	s.Config = config
	s.Solver = s.Config.Create()
	s.stepSize = config.initialStepSize()

	return nil
}

// unmarshalConfig uses reflection to unmarshall a Config into its
// concrete type. Both the Config and its Type are returned.
func unmarshalConfig(data []byte, typeJsonField, valueJsonField string,
	customTypes map[string]reflect.Type) (Config, Type, error) {
	m := map[string]interface{}{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, "", err
	}

	typeName, ok := m[typeJsonField].(string)
	if !ok {
		return nil, "", fmt.Errorf("unmarshalConfig: missing field %v",
			typeJsonField)
	}
	ty, found := customTypes[typeName]
	if !found {
		return nil, "", fmt.Errorf("unmarshalConfig: unknown solver type "+
			"%v", typeName)
	}
	value := reflect.New(ty)

	valueBytes, err := json.Marshal(m[valueJsonField])
	if err != nil {
		return nil, "", err
	}

	if err = json.Unmarshal(valueBytes, value.Interface()); err != nil {
		return nil, "", err
	}
	concreteValue := value.Elem().Interface().(Config)

	return concreteValue, Type(typeName), nil
}

// Config implements a Gorgonia Solver configuration and can be used to
// create Gorgonia Solvers they describe.
type Config interface {
	Create() G.Solver

	// ValidType returns whether a specific Solver type can be created
	// with the Config
	ValidType(Type) bool

	Validate() error

	initialStepSize() float64
}
