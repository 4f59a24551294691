package solver

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// VanillaConfig describes a configuration of the vanilla gradient
// descent solver, optionally with momentum.
type VanillaConfig struct {
	StepSize float64
	Momentum float64 // 0 if no momentum
}

// NewVanilla returns a new Vanilla Solver
func NewVanilla(stepSize, momentum float64) (*Solver, error) {
	vanilla := VanillaConfig{
		StepSize: stepSize,
		Momentum: momentum,
	}

	return newSolver(Vanilla, vanilla)
}

// Create returns a Gorgonia Vanilla Solver as described by the
// VanillaConfig, or a Gorgonia Momentum Solver if the configuration
// uses momentum.
func (v VanillaConfig) Create() G.Solver {
	if v.Momentum == 0 {
		return G.NewVanillaSolver(G.WithLearnRate(v.StepSize))
	}
	return G.NewMomentum(
		G.WithLearnRate(v.StepSize),
		G.WithMomentum(v.Momentum),
	)
}

// ValidType returns if the given Solver type is a valid type to be
// created with this config.
func (v VanillaConfig) ValidType(t Type) bool {
	return t == Vanilla
}

// Validate ensures the hyperparameters are legal
func (v VanillaConfig) Validate() error {
	if v.StepSize < 0 || v.Momentum < 0 || v.Momentum >= 1 {
		return fmt.Errorf("vanilla: illegal hyperparameters %+v", v)
	}
	return nil
}

func (v VanillaConfig) initialStepSize() float64 { return v.StepSize }
