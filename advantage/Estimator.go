package advantage

import (
	"errors"
	"fmt"

	"github.com/samuelfneumann/onpolicy/buffer/rollout"
	"github.com/samuelfneumann/onpolicy/utils/floatutils"
)

// ErrNonFinite is returned when a window contains NaN or infinite
// rewards or values
var ErrNonFinite = errors.New("non-finite rewards or values")

// Estimate holds the advantages and critic regression targets of a
// window, flattened in the same step-major order as rollout.Flat.
type Estimate struct {
	Advantages []float64
	Targets    []float64
}

// Estimator computes advantages and targets for a window of experience
// given the value of the states following the window.
type Estimator interface {
	Estimate(w rollout.Window, bootstrap []float64) (Estimate, error)
}

// GAEEstimator estimates advantages with GAE(λ). If Normalize is set,
// advantages are standardized over the flattened batch. Targets are
// never standardized.
type GAEEstimator struct {
	Gamma     float64
	Lambda    float64
	Normalize bool
}

// Estimate implements the Estimator interface
func (g GAEEstimator) Estimate(w rollout.Window,
	bootstrap []float64) (Estimate, error) {
	if err := checkFinite(w, bootstrap); err != nil {
		return Estimate{}, fmt.Errorf("estimate: %w", err)
	}

	adv, targets, err := GAE(w.Rewards, w.Dones, w.Values, bootstrap,
		g.Gamma, g.Lambda)
	if err != nil {
		return Estimate{}, fmt.Errorf("estimate: %v", err)
	}

	est := Estimate{
		Advantages: rollout.FlattenColumns(adv),
		Targets:    rollout.FlattenColumns(targets),
	}
	if g.Normalize {
		est.Advantages = Standardize(est.Advantages, DefaultEpsilon)
	}
	return est, nil
}

// ReturnEstimator uses discounted returns as the critic targets. If
// Baseline is set, advantages are the returns minus the values stored
// in the window; otherwise the returns themselves are used as
// advantages. If Bootstrap is not set, the bootstrap values passed to
// Estimate are ignored and returns of unfinished episodes are cut at
// the window boundary.
type ReturnEstimator struct {
	Gamma     float64
	Baseline  bool
	Bootstrap bool
	Normalize bool
}

// Estimate implements the Estimator interface
func (r ReturnEstimator) Estimate(w rollout.Window,
	bootstrap []float64) (Estimate, error) {
	if !r.Bootstrap {
		bootstrap = nil
	}
	if err := checkFinite(w, bootstrap); err != nil {
		return Estimate{}, fmt.Errorf("estimate: %w", err)
	}

	returns, err := DiscountedReturns(w.Rewards, w.Dones, bootstrap,
		r.Gamma)
	if err != nil {
		return Estimate{}, fmt.Errorf("estimate: %v", err)
	}

	targets := rollout.FlattenColumns(returns)
	adv := append([]float64(nil), targets...)
	if r.Baseline {
		values := rollout.FlattenColumns(w.Values)
		for i := range adv {
			adv[i] -= values[i]
		}
	}
	if r.Normalize {
		adv = Standardize(adv, DefaultEpsilon)
	}

	return Estimate{Advantages: adv, Targets: targets}, nil
}

// checkFinite ensures the rewards, values, and bootstrap of a window
// are finite
func checkFinite(w rollout.Window, bootstrap []float64) error {
	if !floatutils.AllFinite(bootstrap) {
		return ErrNonFinite
	}
	for t := range w.Rewards {
		if !floatutils.AllFinite(w.Rewards[t]) {
			return ErrNonFinite
		}
		if t < len(w.Values) && !floatutils.AllFinite(w.Values[t]) {
			return ErrNonFinite
		}
	}
	return nil
}
