package config

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeys maps command line flags to the configuration keys they
// override
var flagKeys = map[string]string{
	"algorithm":        "trainer.update.algorithm",
	"env":              "env.name",
	"num-envs":         "env.num_envs",
	"num-steps":        "trainer.num_steps",
	"total-timesteps":  "trainer.total_timesteps",
	"seed":             "trainer.seed",
	"lr":               "solver.step_size",
	"backend":          "policy.backend",
	"hidden":           "policy.hidden",
	"name":             "run.name",
	"out-dir":          "run.out_dir",
	"log-level":        "run.log_level",
	"progress":         "run.progress",
	"checkpoint-every": "run.checkpoint_every",
	"eval-episodes":    "run.eval_episodes",
}

// Flags returns the command line flags of a training run. The "config"
// flag names the configuration file; every other flag overrides a
// configuration key when it is set.
func Flags(name string) *pflag.FlagSet {
	f := pflag.NewFlagSet(name, pflag.ContinueOnError)
	f.StringP("config", "c", "", "YAML configuration file")

	f.StringP("algorithm", "a", "", "algorithm: ppo, a2c, or reinforce")
	f.StringP("env", "e", "", "environment name, e.g. cartpole, "+
		"pendulum, mountaincar, or gym:<ID>")
	f.Int("num-envs", 0, "number of environments stepped in lock-step")
	f.Int("num-steps", 0, "steps of each environment per update")
	f.Int("total-timesteps", 0, "total environment steps")
	f.Uint64("seed", 0, "random seed")
	f.Float64("lr", 0, "initial step size of the solver")
	f.String("backend", "", "policy backend: linear or mlp")
	f.IntSlice("hidden", nil, "hidden layer sizes of the mlp backend")

	f.String("name", "", "run name, a random ID if empty")
	f.StringP("out-dir", "o", "", "directory in which runs are saved")
	f.String("log-level", "", "log level: debug, info, warn, or error")
	f.Bool("progress", false, "display a progress bar")
	f.Int("checkpoint-every", 0, "checkpoint the policy every this "+
		"many updates")
	f.Int("eval-episodes", 0, "episodes to evaluate the final policy on")

	return f
}

// Bind binds the flags of f to the configuration keys they override
func Bind(v *viper.Viper, f *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := f.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind: %v: %v", name, err)
		}
	}
	return nil
}
