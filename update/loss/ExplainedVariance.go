package loss

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ExplainedVariance returns 1 - Var[targets - values] / Var[targets],
// using population variances. If the targets have zero variance the
// result is undefined and ErrUndefined is returned.
func ExplainedVariance(values, targets []float64) (float64, error) {
	if len(values) != len(targets) || len(values) == 0 {
		return 0, fmt.Errorf("explainedVariance: have %v values and %v "+
			"targets", len(values), len(targets))
	}

	_, varTargets := stat.PopMeanVariance(targets, nil)
	if varTargets == 0 {
		return 0, fmt.Errorf("explainedVariance: %w: targets have zero "+
			"variance", ErrUndefined)
	}

	residuals := make([]float64, len(targets))
	floats.SubTo(residuals, targets, values)
	_, varResiduals := stat.PopMeanVariance(residuals, nil)

	return 1 - varResiduals/varTargets, nil
}
