package config

import (
	"fmt"

	"github.com/samuelfneumann/onpolicy/environment/envconfig"
	"github.com/samuelfneumann/onpolicy/network"
	"github.com/samuelfneumann/onpolicy/solver"
	"github.com/samuelfneumann/onpolicy/update"
)

// common holds the defaults shared by all algorithms
var common = map[string]interface{}{
	"env.episode_cutoff":         0,
	"env.async":                  false,
	"env.normalize_observations": false,
	"env.clip_observations":      0.0,
	"env.clip_rewards":           0.0,

	"trainer.total_timesteps":     1_000_000,
	"trainer.gamma":               0.99,
	"trainer.seed":                0,
	"trainer.update.value_coef":   0.5,
	"trainer.update.entropy_coef": 0.01,

	"policy.backend":      MLP,
	"policy.hidden":       []int{64, 64},
	"policy.activation":   "tanh",
	"policy.init.type":    network.GlorotU,
	"policy.init.gain":    1.0,
	"policy.init_log_std": 0.0,

	"solver.type":    string(solver.Adam),
	"solver.epsilon": 1e-8,
	"solver.beta1":   0.9,
	"solver.beta2":   0.999,
	"solver.rho":     0.99,

	"run.out_dir":          "runs",
	"run.checkpoint_every": 0,
	"run.eval_episodes":    0,
	"run.log_level":        "info",
	"run.progress":         false,
	"run.plot":             true,
	"run.sqlite":           true,
	"run.process_metrics":  true,
}

// algorithmDefaults holds the defaults particular to each algorithm
var algorithmDefaults = map[update.Algorithm]map[string]interface{}{
	update.PPO: {
		"env.name":     envconfig.Cartpole,
		"env.num_envs": 8,

		"trainer.num_steps":            128,
		"trainer.lambda":               0.95,
		"trainer.normalize_advantages": true,
		"trainer.bootstrap_returns":    true,
		"trainer.anneal_lr":            true,

		"trainer.update.epochs": 4,

		// Minibatches of 256 samples from batches of 8 x 128
		"trainer.update.minibatches":         4,
		"trainer.update.eps_clip":            0.1,
		"trainer.update.max_grad_norm":       0.5,
		"trainer.update.clip_frac_threshold": 0.2,

		"solver.step_size": 2.5e-4,
		"solver.epsilon":   1e-5,
	},

	update.A2C: {
		"env.name":     envconfig.Pendulum,
		"env.num_envs": 1,

		"trainer.num_steps":            256,
		"trainer.normalize_advantages": false,
		"trainer.bootstrap_returns":    false,
		"trainer.anneal_lr":            false,

		"trainer.update.max_grad_norm": 0.8,

		"solver.step_size": 1e-3,
	},

	update.REINFORCE: {
		"env.name":     envconfig.Pendulum,
		"env.num_envs": 1,

		"trainer.num_steps":            256,
		"trainer.normalize_advantages": false,
		"trainer.bootstrap_returns":    false,
		"trainer.anneal_lr":            false,

		// The objective is the policy gradient term alone
		"trainer.update.value_coef":    0.0,
		"trainer.update.entropy_coef":  0.0,
		"trainer.update.max_grad_norm": 0.8,

		"solver.step_size": 1e-3,
	},
}

// Defaults returns the default value of each configuration key for an
// algorithm. Keys are dotted paths into Config using the yaml tags.
func Defaults(a update.Algorithm) (map[string]interface{}, error) {
	specific, ok := algorithmDefaults[a]
	if !ok {
		return nil, fmt.Errorf("defaults: unknown algorithm %q", a)
	}

	defaults := make(map[string]interface{}, len(common)+len(specific))
	for key, value := range common {
		defaults[key] = value
	}
	for key, value := range specific {
		defaults[key] = value
	}
	return defaults, nil
}
