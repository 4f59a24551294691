package update

import (
	"fmt"

	"github.com/samuelfneumann/onpolicy/update/loss"
)

// Algorithm is an on-policy algorithm
type Algorithm string

// Available algorithms
const (
	PPO       Algorithm = "ppo"
	A2C       Algorithm = "a2c"
	REINFORCE Algorithm = "reinforce"
)

// Config configures an Engine. Epochs, Minibatches, EpsClip, and
// ClipFracThreshold are only used by PPO; the policy gradient
// algorithms take a single step on the full batch.
type Config struct {
	Algorithm   Algorithm `yaml:"algorithm" json:"algorithm"`
	Epochs      int       `yaml:"epochs" json:"epochs"`
	Minibatches int       `yaml:"minibatches" json:"minibatches"`
	EpsClip     float64   `yaml:"eps_clip" json:"eps_clip"`
	ValueCoef   float64   `yaml:"value_coef" json:"value_coef"`
	EntropyCoef float64   `yaml:"entropy_coef" json:"entropy_coef"`
	MaxGradNorm float64   `yaml:"max_grad_norm" json:"max_grad_norm"`

	// 0 selects loss.DefaultClipFracThreshold
	ClipFracThreshold float64 `yaml:"clip_frac_threshold" json:"clip_frac_threshold"`
}

// Shuffled returns whether the algorithm takes multiple epochs of
// shuffled minibatch steps per batch
func (a Algorithm) Shuffled() bool {
	return a == PPO
}

// Valid returns whether a is a known algorithm
func (a Algorithm) Valid() bool {
	switch a {
	case PPO, A2C, REINFORCE:
		return true
	}
	return false
}

// Validate checks the configuration for a batch of batchSize samples
func (c Config) Validate(batchSize int) error {
	if !c.Algorithm.Valid() {
		return fmt.Errorf("validate: unknown algorithm %q", c.Algorithm)
	}
	if batchSize < 1 {
		return fmt.Errorf("validate: batch size must be positive, have %v",
			batchSize)
	}
	if c.MaxGradNorm <= 0 {
		return fmt.Errorf("validate: max gradient norm must be positive, "+
			"have %v", c.MaxGradNorm)
	}
	if c.ValueCoef < 0 || c.EntropyCoef < 0 {
		return fmt.Errorf("validate: loss coefficients must be "+
			"non-negative, have value %v and entropy %v", c.ValueCoef,
			c.EntropyCoef)
	}

	if !c.Algorithm.Shuffled() {
		return nil
	}
	if c.Epochs < 1 {
		return fmt.Errorf("validate: epochs must be positive, have %v",
			c.Epochs)
	}
	if c.Minibatches < 1 {
		return fmt.Errorf("validate: minibatches must be positive, have %v",
			c.Minibatches)
	}
	if batchSize%c.Minibatches != 0 {
		return fmt.Errorf("validate: batch size %v not divisible into %v "+
			"minibatches", batchSize, c.Minibatches)
	}
	if c.EpsClip <= 0 || c.EpsClip >= 1 {
		return fmt.Errorf("validate: clip range must be in (0, 1), have %v",
			c.EpsClip)
	}
	if c.ClipFracThreshold < 0 {
		return fmt.Errorf("validate: clip fraction threshold must be "+
			"non-negative, have %v", c.ClipFracThreshold)
	}
	return nil
}

// Objective returns the loss minimized by the algorithm
func (c Config) Objective() loss.Objective {
	if c.Algorithm.Shuffled() {
		return loss.ClippedSurrogate{
			EpsClip:           c.EpsClip,
			ValueCoef:         c.ValueCoef,
			EntropyCoef:       c.EntropyCoef,
			ClipFracThreshold: c.ClipFracThreshold,
		}
	}
	return loss.PolicyGradient{
		ValueCoef:   c.ValueCoef,
		EntropyCoef: c.EntropyCoef,
	}
}
