// Package weights implements initializers for the weight matrices of
// linear function approximators
package weights

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Initializer initializes weights in place
type Initializer interface {
	Initialize(weights *mat.Dense)
}

// Constant sets every weight to the same value
type Constant float64

// NewZero returns an Initializer which sets all weights to zero
func NewZero() Constant {
	return Constant(0)
}

// Initialize sets each weight to c
func (c Constant) Initialize(weights *mat.Dense) {
	if weights == nil || weights.IsEmpty() {
		return
	}
	r, cols := weights.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < cols; j++ {
			weights.Set(i, j, float64(c))
		}
	}
}

// Random draws each weight independently from a univariate
// distribution
type Random struct {
	distuv.Rander
}

// NewRandom returns a Random initializer drawing weights from rand
func NewRandom(rand distuv.Rander) (Random, error) {
	if rand == nil {
		return Random{}, fmt.Errorf("newRandom: rand cannot be nil")
	}
	return Random{rand}, nil
}

// Initialize draws each weight from the distribution
func (r Random) Initialize(weights *mat.Dense) {
	if weights == nil || weights.IsEmpty() {
		return
	}
	rows, cols := weights.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			weights.Set(i, j, r.Rand())
		}
	}
}

// GlorotUniform draws weights from U(-a, a) with
//
//	a = gain * sqrt(6 / (rows + cols))
//
// where rows and cols are the dimensions of the initialized matrix.
type GlorotUniform struct {
	gain float64
	rnd  *rand.Rand
}

// NewGlorotUniform returns a new GlorotUniform initializer
func NewGlorotUniform(gain float64, seed uint64) (*GlorotUniform, error) {
	if gain <= 0 {
		return nil, fmt.Errorf("newGlorotUniform: gain must be positive, "+
			"have %v", gain)
	}
	return &GlorotUniform{gain, rand.New(rand.NewSource(seed))}, nil
}

// Initialize draws each weight uniformly from the Glorot interval of
// the matrix
func (g *GlorotUniform) Initialize(weights *mat.Dense) {
	if weights == nil || weights.IsEmpty() {
		return
	}
	rows, cols := weights.Dims()
	bound := g.gain * math.Sqrt(6/float64(rows+cols))
	u := distuv.Uniform{Min: -bound, Max: bound, Src: g.rnd}

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			weights.Set(i, j, u.Rand())
		}
	}
}
