package environment

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// SpecType determines what kind of specification a Spec is. A Spec can
// specify the layout of an acion, an observation, a discount, or a reward
type SpecType int

const (
	Action SpecType = iota
	Observation
	Discount
	Reward
)

// Cardinality determines the cardinality of a number (discrete or continuous)
type Cardinality string

const (
	Continuous Cardinality = "Continuous"
	Discrete   Cardinality = "Discrete"
)

// Spec implements an environment specification, which tells the type,
// shape, and bounds of an action, observation, discount, or reward in
// an environment
type Spec struct {
	Shape      *mat.VecDense
	Type       SpecType
	LowerBound *mat.VecDense
	UpperBound *mat.VecDense
	Cardinality
}

// NewSpec constructs a new environment specification
// The shape argument outlines the shape of the data described by the
// specification. The argument t outlines what the specification is
// describing (e.g. actions, observations, etc.). The cardinality
// arguments describes whether the values that the spec describes are
// continuous or discrete.
func NewSpec(shape *mat.VecDense, t SpecType, lowerBound,
	upperBound *mat.VecDense, cardinality Cardinality) Spec {
	if shape.Len() != lowerBound.Len() {
		panic(fmt.Sprintf("newSpec: shape length %v must match lower "+
			"bounds length %v", shape.Len(), lowerBound.Len()))
	}
	if shape.Len() != upperBound.Len() {
		panic(fmt.Sprintf("newSpec: shape length %v must match upper "+
			"bounds length %v", shape.Len(), upperBound.Len()))
	}
	return Spec{shape, t, lowerBound, upperBound, cardinality}
}

// Dims returns the dimensionality of the data described by the Spec
func (s Spec) Dims() int {
	return s.Shape.Len()
}

// NumActions returns the number of discrete values the first dimension
// of a Discrete Spec can take on. Discrete values are assumed to be
// consecutive integers between the lower and upper bounds inclusive.
func (s Spec) NumActions() (int, error) {
	if s.Cardinality != Discrete {
		return 0, fmt.Errorf("numActions: cannot count actions of %v spec",
			s.Cardinality)
	}
	if s.Dims() != 1 {
		return 0, fmt.Errorf("numActions: only 1-dimensional discrete "+
			"specs supported, have %v dimensions", s.Dims())
	}
	n := int(s.UpperBound.AtVec(0)-s.LowerBound.AtVec(0)) + 1
	if n < 1 {
		return 0, fmt.Errorf("numActions: invalid bounds [%v, %v]",
			s.LowerBound.AtVec(0), s.UpperBound.AtVec(0))
	}
	return n, nil
}
