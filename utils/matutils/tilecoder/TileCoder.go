// Package tilecoder implements tile coding of vectors
package tilecoder

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/samplemv"

	"github.com/samuelfneumann/onpolicy/utils/floatutils"
)

// Controls tiling offsets. For each dimension, tilings are offset by
// randomly sampling from a uniform distribution with support
// [- tile width/OffsetDiv, tile width/OffsetDiv]
const OffsetDiv float64 = 1.5

// TileCoder implements functionality for tile coding a vector. Tile
// coding takes a low-dimensional vector and changes it into a large,
// sparse vector consisting of only 0's and 1's. Each 1 represents the
// tile of some tiling which the original vector falls in. For example:
//
//	[0.5, 0.1] -> [0, 0, 0, 1, 0, 0, 1, 0]
//
// The number of nonzero elements in the tile-coded representation equals
// the number of tilings used to encode the vector, plus one if a bias
// unit is used. Tile coding requires that the space to be tiled be
// bounded. Values outside the bounds are coded in the closest tile.
//
// Tilings are dense over the entire space, hashing is not used.
type TileCoder struct {
	min      []float64
	tiles    [][]int     // Tiles along each dimension, per tiling
	widths   [][]float64 // Width of tiles along each dimension
	offsets  [][]float64
	starts   []int // Index of the first feature of each tiling
	bias     bool
	features int
}

// New returns a new TileCoder over the box with corners min and max.
//
// The tiles argument determines both the number of tilings to use and
// the number of tiles in each tiling. The number of elements in the
// outer slice is the number of tilings. The sub-slices determine how
// many tiles are placed along each dimension for the respective
// tiling. For example, if tiles := [][]int{{2, 2}, {4, 3}}, then the
// TileCoder uses two tilings. The first tiling is a 2x2 tiling, the
// second uses 4 tiles along the first dimension and 3 tiles along the
// second dimension.
//
// If bias is true, a feature which is always 1 is kept as the first
// feature of the tile-coded representation.
func New(min, max []float64, tiles [][]int, seed uint64,
	bias bool) (*TileCoder, error) {
	if len(min) != len(max) {
		return nil, fmt.Errorf("new: minimum has %v dimensions but maximum "+
			"has %v", len(min), len(max))
	}
	if len(min) == 0 {
		return nil, fmt.Errorf("new: cannot tile code 0 dimensions")
	}
	if len(tiles) == 0 {
		return nil, fmt.Errorf("new: at least one tiling required")
	}
	for i := range min {
		if !(max[i] > min[i]) || math.IsInf(max[i]-min[i], 0) {
			return nil, fmt.Errorf("new: dimension %v must have finite "+
				"bounds with min < max, have [%v, %v]", i, min[i], max[i])
		}
	}

	t := &TileCoder{
		min:     append([]float64(nil), min...),
		tiles:   make([][]int, len(tiles)),
		widths:  make([][]float64, len(tiles)),
		offsets: make([][]float64, len(tiles)),
		starts:  make([]int, len(tiles)),
		bias:    bias,
	}
	if bias {
		t.features = 1
	}

	var bounds []r1.Interval
	for j, tiling := range tiles {
		if len(tiling) != len(min) {
			return nil, fmt.Errorf("new: tiling %v has %v dimensions, "+
				"want %v", j, len(tiling), len(min))
		}
		t.tiles[j] = append([]int(nil), tiling...)
		t.widths[j] = make([]float64, len(min))

		size := 1
		for i, n := range tiling {
			if n < 1 {
				return nil, fmt.Errorf("new: tiling %v must have at least "+
					"one tile along dimension %v, have %v", j, i, n)
			}
			size *= n
			width := (max[i] - min[i]) / float64(n)
			t.widths[j][i] = width
			bounds = append(bounds, r1.Interval{
				Min: -width / OffsetDiv,
				Max: width / OffsetDiv,
			})
		}
		t.starts[j] = t.features
		t.features += size
	}

	// Sample all offsets at once
	u := distmv.NewUniform(bounds, rand.NewSource(seed))
	sampler := samplemv.IID{Dist: u}
	samples := mat.NewDense(1, len(bounds), nil)
	sampler.Sample(samples)
	offsets := samples.RawRowView(0)
	for j := range tiles {
		t.offsets[j] = offsets[:len(min):len(min)]
		offsets = offsets[len(min):]
	}

	return t, nil
}

// Features returns the number of features in a tile-coded vector
func (t *TileCoder) Features() int {
	return t.features
}

// NumTilings returns the number of tilings the tile coder uses for
// encoding vectors
func (t *TileCoder) NumTilings() int {
	return len(t.tiles)
}

// Dims returns the dimension of vectors which can be tile coded
func (t *TileCoder) Dims() int {
	return len(t.min)
}

// Indices returns the indices of the nonzero features of v when tile
// coded. If a bias unit is used, its index 0 is the first element.
func (t *TileCoder) Indices(v []float64) ([]int, error) {
	if len(v) != len(t.min) {
		return nil, fmt.Errorf("indices: expected vector with %v "+
			"dimensions, have %v", len(t.min), len(v))
	}

	indices := make([]int, 0, len(t.tiles)+1)
	if t.bias {
		indices = append(indices, 0)
	}
	for j := range t.tiles {
		indices = append(indices, t.index(v, j))
	}
	return indices, nil
}

// index returns the index of the tile of tiling j which v falls in
func (t *TileCoder) index(v []float64, j int) int {
	index, stride := 0, 1
	for i := len(v) - 1; i >= 0; i-- {
		tile := math.Floor((v[i] + t.offsets[j][i] - t.min[i]) /
			t.widths[j][i])
		tile = floatutils.Clip(tile, 0, float64(t.tiles[j][i]-1))

		index += int(tile) * stride
		stride *= t.tiles[j][i]
	}
	return t.starts[j] + index
}

// Encode returns the tile-coded representation of v
func (t *TileCoder) Encode(v []float64) (*mat.VecDense, error) {
	indices, err := t.Indices(v)
	if err != nil {
		return nil, fmt.Errorf("encode: %v", err)
	}

	coded := mat.NewVecDense(t.features, nil)
	for _, i := range indices {
		coded.SetVec(i, 1.0)
	}
	return coded, nil
}

// EncodeBatch tile codes each row of b. The returned matrix has one
// row per row of b and Features columns.
func (t *TileCoder) EncodeBatch(b *mat.Dense) (*mat.Dense, error) {
	rows, cols := b.Dims()
	if cols != len(t.min) {
		return nil, fmt.Errorf("encodeBatch: expected %v columns, have %v",
			len(t.min), cols)
	}

	coded := mat.NewDense(rows, t.features, nil)
	v := make([]float64, cols)
	for r := 0; r < rows; r++ {
		mat.Row(v, r, b)
		indices, _ := t.Indices(v)
		for _, i := range indices {
			coded.Set(r, i, 1.0)
		}
	}
	return coded, nil
}

// String returns a string representation of a *TileCoder
func (t *TileCoder) String() string {
	return fmt.Sprintf("Tilings %d  |  Tiles: %v  |  Bias: %v",
		len(t.tiles), t.tiles, t.bias)
}
