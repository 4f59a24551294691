package advantage

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultEpsilon is added to the standard deviation when standardizing
const DefaultEpsilon = 1e-8

// Standardize returns (x - mean(x)) / (std(x) + eps), where std is the
// population standard deviation of x. The input is not modified.
func Standardize(x []float64, eps float64) []float64 {
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}

	mean, variance := stat.PopMeanVariance(x, nil)
	std := math.Sqrt(variance) + eps

	copy(out, x)
	floats.AddConst(-mean, out)
	floats.Scale(1/std, out)
	return out
}
