package trainer

import (
	"fmt"

	"github.com/samuelfneumann/onpolicy/advantage"
	"github.com/samuelfneumann/onpolicy/update"
)

// Config configures a Trainer
type Config struct {
	TotalTimesteps int `yaml:"total_timesteps" json:"total_timesteps"`

	// NumSteps is the number of ticks of every environment collected
	// between updates
	NumSteps int `yaml:"num_steps" json:"num_steps"`

	Gamma  float64 `yaml:"gamma" json:"gamma"`
	Lambda float64 `yaml:"lambda" json:"lambda"` // GAE(λ), PPO only

	// NormalizeAdvantages standardizes the advantages of each batch
	NormalizeAdvantages bool `yaml:"normalize_advantages" json:"normalize_advantages"`

	// BootstrapReturns bootstraps the discounted returns of unfinished
	// episodes from the critic at the end of each window. Only used by
	// A2C and REINFORCE; PPO always bootstraps.
	BootstrapReturns bool `yaml:"bootstrap_returns" json:"bootstrap_returns"`

	// AnnealLR linearly decays the learning rate towards 0 over the
	// course of training
	AnnealLR bool `yaml:"anneal_lr" json:"anneal_lr"`

	Update update.Config `yaml:"update" json:"update"`

	Seed uint64 `yaml:"seed" json:"seed"`
}

// BatchSize returns the number of samples collected between updates
func (c Config) BatchSize(numEnvs int) int {
	return c.NumSteps * numEnvs
}

// Cycles returns the number of collect-then-update cycles
func (c Config) Cycles(numEnvs int) int {
	batch := c.BatchSize(numEnvs)
	if batch <= 0 {
		return 0
	}
	return c.TotalTimesteps / batch
}

// Validate checks the configuration for a vector of numEnvs
// environments
func (c Config) Validate(numEnvs int) error {
	if numEnvs < 1 {
		return fmt.Errorf("validate: at least one environment required")
	}
	if c.NumSteps < 1 {
		return fmt.Errorf("validate: steps per window must be positive, "+
			"have %v", c.NumSteps)
	}
	if c.Cycles(numEnvs) < 1 {
		return fmt.Errorf("validate: total timesteps %v less than one "+
			"batch of %v", c.TotalTimesteps, c.BatchSize(numEnvs))
	}
	if c.Gamma < 0 || c.Gamma > 1 {
		return fmt.Errorf("validate: discount must be in [0, 1], have %v",
			c.Gamma)
	}
	if c.Update.Algorithm == update.PPO && (c.Lambda < 0 || c.Lambda > 1) {
		return fmt.Errorf("validate: GAE λ must be in [0, 1], have %v",
			c.Lambda)
	}
	if err := c.Update.Validate(c.BatchSize(numEnvs)); err != nil {
		return fmt.Errorf("validate: %v", err)
	}
	return nil
}

// Estimator returns the return and advantage estimator of the
// algorithm
func (c Config) Estimator() advantage.Estimator {
	switch c.Update.Algorithm {
	case update.PPO:
		return advantage.GAEEstimator{
			Gamma:     c.Gamma,
			Lambda:    c.Lambda,
			Normalize: c.NormalizeAdvantages,
		}

	case update.REINFORCE:
		return advantage.ReturnEstimator{
			Gamma:     c.Gamma,
			Baseline:  false,
			Bootstrap: c.BootstrapReturns,
			Normalize: c.NormalizeAdvantages,
		}

	default:
		return advantage.ReturnEstimator{
			Gamma:     c.Gamma,
			Baseline:  true,
			Bootstrap: c.BootstrapReturns,
			Normalize: c.NormalizeAdvantages,
		}
	}
}
