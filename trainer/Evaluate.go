package trainer

import (
	"context"
	"fmt"

	"github.com/samuelfneumann/onpolicy/environment/vector"
	"github.com/samuelfneumann/onpolicy/policy"
	"gonum.org/v1/gonum/stat"
)

// Evaluate runs p on env without updating it until episodes episodes
// have finished, and returns the returns of those episodes with their
// mean. Episodes finishing on the same step are counted in environment
// order, and any beyond the requested number are discarded.
func Evaluate(ctx context.Context, env vector.Env, p policy.Policy,
	episodes int) ([]float64, float64, error) {
	if episodes < 1 {
		return nil, 0, fmt.Errorf("evaluate: episodes must be positive, "+
			"have %v", episodes)
	}

	obs, err := env.Reset()
	if err != nil {
		return nil, 0, fmt.Errorf("evaluate: %v", err)
	}

	returns := make([]float64, 0, episodes)
	for len(returns) < episodes {
		if err := ctx.Err(); err != nil {
			return returns, 0, fmt.Errorf("evaluate: %w", err)
		}

		act, err := p.Act(obs)
		if err != nil {
			return returns, 0, fmt.Errorf("evaluate: %v", err)
		}
		result, err := env.Step(act.Actions)
		if err != nil {
			return returns, 0, fmt.Errorf("evaluate: %v", err)
		}

		for _, info := range result.Infos {
			if info.Episode != nil && len(returns) < episodes {
				returns = append(returns, info.Episode.Return)
			}
		}
		obs = result.Observations
	}

	return returns, stat.Mean(returns, nil), nil
}
