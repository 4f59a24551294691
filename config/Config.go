// Package config loads the configuration of a training run from a YAML
// file and command line flags.
//
// Values are resolved in order of precedence: flags that were set on
// the command line, then the configuration file, then the defaults of
// the configured algorithm (see Defaults).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samuelfneumann/onpolicy/environment/envconfig"
	"github.com/samuelfneumann/onpolicy/network"
	"github.com/samuelfneumann/onpolicy/solver"
	"github.com/samuelfneumann/onpolicy/trainer"
	"github.com/samuelfneumann/onpolicy/update"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned, wrapped, when a configuration cannot be used
var ErrInvalid = errors.New("invalid configuration")

// Available policy backends
const (
	Linear = "linear"
	MLP    = "mlp"
)

// Config is the configuration of a training run
type Config struct {
	Env     envconfig.Config `yaml:"env" json:"env"`
	Trainer trainer.Config   `yaml:"trainer" json:"trainer"`
	Policy  Policy           `yaml:"policy" json:"policy"`
	Solver  Solver           `yaml:"solver" json:"solver"`
	Run     Run              `yaml:"run" json:"run"`
}

// Policy configures the function approximator of the policy
type Policy struct {
	Backend string `yaml:"backend" json:"backend"`

	// Hidden layer sizes and activation of the actor and critic MLPs
	Hidden     []int  `yaml:"hidden" json:"hidden"`
	Activation string `yaml:"activation" json:"activation"`

	Init       network.InitWFn `yaml:"init" json:"init"`
	InitLogStd float64         `yaml:"init_log_std" json:"init_log_std"`
}

// Solver configures the gradient descent solver
type Solver struct {
	Type     solver.Type `yaml:"type" json:"type"`
	StepSize float64     `yaml:"step_size" json:"step_size"`
	Epsilon  float64     `yaml:"epsilon" json:"epsilon"`
	Beta1    float64     `yaml:"beta1" json:"beta1"`
	Beta2    float64     `yaml:"beta2" json:"beta2"`
	Rho      float64     `yaml:"rho" json:"rho"`
	Momentum float64     `yaml:"momentum" json:"momentum"`
}

// Create returns the solver described by s
func (s Solver) Create() (*solver.Solver, error) {
	switch {
	case s.is(solver.Adam):
		return solver.NewAdam(s.StepSize, s.Epsilon, s.Beta1, s.Beta2)
	case s.is(solver.RMSProp):
		return solver.NewRMSProp(s.StepSize, s.Epsilon, s.Rho)
	case s.is(solver.Vanilla):
		return solver.NewVanilla(s.StepSize, s.Momentum)
	default:
		return nil, fmt.Errorf("create: unknown solver type %q", s.Type)
	}
}

// is returns whether s has type t, ignoring case
func (s Solver) is(t solver.Type) bool {
	return strings.EqualFold(string(s.Type), string(t))
}

// Run configures the outputs of a training run
type Run struct {
	// Name of the run, a random ID is used if empty
	Name string `yaml:"name" json:"name"`

	// OutDir is the directory in which the run directory is created
	OutDir string `yaml:"out_dir" json:"out_dir"`

	// CheckpointEvery saves the policy every this many cycles, 0
	// disables checkpointing
	CheckpointEvery int `yaml:"checkpoint_every" json:"checkpoint_every"`

	// EvalEpisodes episodes are run with the final policy after
	// training
	EvalEpisodes int `yaml:"eval_episodes" json:"eval_episodes"`

	LogLevel       string `yaml:"log_level" json:"log_level"`
	Progress       bool   `yaml:"progress" json:"progress"`
	Plot           bool   `yaml:"plot" json:"plot"`
	SQLite         bool   `yaml:"sqlite" json:"sqlite"`
	ProcessMetrics bool   `yaml:"process_metrics" json:"process_metrics"`
}

// Load reads the configuration file at path, which may be empty, and
// overrides it with the flags bound to v. The returned error wraps
// ErrInvalid if the configuration cannot be used.
func Load(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType(strings.TrimPrefix(filepath.Ext(path), "."))
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("load: could not read %v: %v",
				path, err)
		}
	}

	algorithm := update.Algorithm(strings.ToLower(
		v.GetString("trainer.update.algorithm")))
	if algorithm == "" {
		algorithm = update.PPO
	}
	defaults, err := Defaults(algorithm)
	if err != nil {
		return Config{}, fmt.Errorf("load: %w: %v", ErrInvalid, err)
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.Set("trainer.update.algorithm", string(algorithm))

	// Viper resolves nested keys, the YAML round trip decodes them
	// using the yaml struct tags
	settings, err := yaml.Marshal(v.AllSettings())
	if err != nil {
		return Config{}, fmt.Errorf("load: %v", err)
	}
	var c Config
	if err := yaml.Unmarshal(settings, &c); err != nil {
		return Config{}, fmt.Errorf("load: %w: %v", ErrInvalid, err)
	}
	if c.Env.Discount == 0 {
		c.Env.Discount = c.Trainer.Gamma
	}

	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("load: %w", err)
	}
	return c, nil
}

// Validate checks that a run can be started with the configuration.
// The returned error wraps ErrInvalid.
func (c Config) Validate() error {
	if err := c.Env.Validate(); err != nil {
		return fmt.Errorf("%w: env: %v", ErrInvalid, err)
	}
	if err := c.Trainer.Validate(c.Env.NumEnvs); err != nil {
		return fmt.Errorf("%w: trainer: %v", ErrInvalid, err)
	}
	if c.Env.Discount != c.Trainer.Gamma {
		return fmt.Errorf("%w: environment discount %v differs from "+
			"γ %v", ErrInvalid, c.Env.Discount, c.Trainer.Gamma)
	}

	switch c.Policy.Backend {
	case Linear:
	case MLP:
		if _, err := c.Policy.Activations(); err != nil {
			return fmt.Errorf("%w: policy: %v", ErrInvalid, err)
		}
		if _, err := c.Policy.Init.Create(); err != nil {
			return fmt.Errorf("%w: policy: %v", ErrInvalid, err)
		}
	default:
		return fmt.Errorf("%w: unknown policy backend %q", ErrInvalid,
			c.Policy.Backend)
	}

	if _, err := c.Solver.Create(); err != nil {
		return fmt.Errorf("%w: solver: %v", ErrInvalid, err)
	}
	if c.Run.CheckpointEvery < 0 || c.Run.EvalEpisodes < 0 {
		return fmt.Errorf("%w: checkpoint interval and evaluation "+
			"episodes must be non-negative", ErrInvalid)
	}
	return nil
}

// Activations returns one activation per hidden layer of the policy
func (p Policy) Activations() ([]*network.Activation, error) {
	acts := make([]*network.Activation, len(p.Hidden))
	for i := range acts {
		act, err := network.ActivationByName(p.Activation)
		if err != nil {
			return nil, fmt.Errorf("activations: %v", err)
		}
		acts[i] = act
	}
	return acts, nil
}

// Write writes the configuration as YAML to the file at path
func Write(c Config, path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("write: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write: %v", err)
	}
	return nil
}
