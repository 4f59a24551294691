// Package envconfig provides configuration structs for creating
// vectors of environments with default physical parameters and tasks.
// Environment configurations in this package are YAML and JSON
// serializable.
package envconfig

import (
	"fmt"
	"strings"

	env "github.com/samuelfneumann/onpolicy/environment"
	"github.com/samuelfneumann/onpolicy/environment/classiccontrol/cartpole"
	"github.com/samuelfneumann/onpolicy/environment/classiccontrol/mountaincar"
	"github.com/samuelfneumann/onpolicy/environment/classiccontrol/pendulum"
	"github.com/samuelfneumann/onpolicy/environment/vector"
	"github.com/samuelfneumann/onpolicy/environment/wrappers"
	"gonum.org/v1/gonum/spatial/r1"
)

// Environments available for configuration. Gym environments are named
// with the GymPrefix followed by the Gym environment ID, for example
// "gym:CartPole-v1", and are only available in binaries built with the
// gym build tag.
const (
	Cartpole              = "cartpole"
	Pendulum              = "pendulum"
	MountainCar           = "mountaincar"
	MountainCarContinuous = "mountaincar-continuous"

	GymPrefix = "gym:"
)

// Default episode cutoffs
var defaultCutoffs = map[string]int{
	Cartpole:              500,
	Pendulum:              200,
	MountainCar:           200,
	MountainCarContinuous: 999,
}

// gymMaker creates a Gym environment, it is nil unless the gym build
// tag is set
var gymMaker func(name string, discount float64, seed uint64) (
	env.Environment, error)

// Config describes a vector of environments of a single kind
type Config struct {
	Name          string  `yaml:"name" json:"name"`
	NumEnvs       int     `yaml:"num_envs" json:"num_envs"`
	EpisodeCutoff int     `yaml:"episode_cutoff" json:"episode_cutoff"`
	Discount      float64 `yaml:"discount" json:"discount"`

	// Async steps the environments of the vector in parallel
	Async bool `yaml:"async" json:"async"`

	// NormalizeObservations standardizes observations with running
	// statistics
	NormalizeObservations bool `yaml:"normalize_observations" json:"normalize_observations"`

	// Observations and rewards are clipped to +/- these bounds after
	// normalization, 0 disables clipping
	ClipObservations float64 `yaml:"clip_observations" json:"clip_observations"`
	ClipRewards      float64 `yaml:"clip_rewards" json:"clip_rewards"`

	TileCoding TileCoding `yaml:"tile_coding" json:"tile_coding"`
}

// TileCoding configures tile coding of observations. Every environment
// of a vector uses the same tilings.
type TileCoding struct {
	// Tilings is the number of tilings, 0 disables tile coding
	Tilings int `yaml:"tilings" json:"tilings"`

	// Tiles along each observation dimension of a tiling
	Tiles int    `yaml:"tiles" json:"tiles"`
	Seed  uint64 `yaml:"seed" json:"seed"`
}

// Enabled returns whether observations are tile coded
func (t TileCoding) Enabled() bool {
	return t.Tilings > 0
}

// Validate checks that the configured environment can be created
func (c Config) Validate() error {
	if c.NumEnvs < 1 {
		return fmt.Errorf("validate: at least one environment required, "+
			"have %v", c.NumEnvs)
	}
	if c.EpisodeCutoff < 0 {
		return fmt.Errorf("validate: episode cutoff must be non-negative, "+
			"have %v", c.EpisodeCutoff)
	}
	if c.ClipObservations < 0 || c.ClipRewards < 0 {
		return fmt.Errorf("validate: clipping bounds must be non-negative")
	}
	if c.TileCoding.Tilings < 0 {
		return fmt.Errorf("validate: tilings must be non-negative, have %v",
			c.TileCoding.Tilings)
	}
	if c.TileCoding.Enabled() {
		if c.TileCoding.Tiles < 1 {
			return fmt.Errorf("validate: tiles must be positive, have %v",
				c.TileCoding.Tiles)
		}
		if c.NormalizeObservations || c.ClipObservations > 0 {
			return fmt.Errorf("validate: tile-coded observations cannot " +
				"be normalized or clipped")
		}
	}

	name := strings.ToLower(c.Name)
	if strings.HasPrefix(name, GymPrefix) {
		// Gym environments share one Python interpreter, which must not
		// be entered from concurrent goroutines
		if c.Async && c.NumEnvs > 1 {
			return fmt.Errorf("validate: %v cannot be stepped "+
				"asynchronously", c.Name)
		}
		if gymMaker == nil {
			return fmt.Errorf("validate: %v requires a binary built with "+
				"the gym tag", c.Name)
		}
		return nil
	}
	if _, ok := defaultCutoffs[name]; !ok {
		return fmt.Errorf("validate: no such environment %q", c.Name)
	}
	return nil
}

// cutoff returns the episode cutoff, using the environment default
// if none is configured
func (c Config) cutoff(name string) int {
	if c.EpisodeCutoff > 0 {
		return c.EpisodeCutoff
	}
	return defaultCutoffs[name]
}

// normalization holds the running observation statistics shared by
// the environments of a vector. The statistics are created by the first
// environment that normalizes observations.
type normalization struct {
	stats  *wrappers.ObservationStats
	frozen bool
}

// Create returns a single wrapped environment described by the Config
func (c Config) Create(seed uint64) (env.Environment, error) {
	return c.create(seed, &normalization{})
}

func (c Config) create(seed uint64, norm *normalization) (env.Environment,
	error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("create: %v", err)
	}

	var e env.Environment
	var err error
	name := strings.ToLower(c.Name)
	switch {
	case strings.HasPrefix(name, GymPrefix):
		e, err = gymMaker(c.Name[len(GymPrefix):], c.Discount, seed)

	case name == Cartpole:
		e, err = CreateCartpole(c.cutoff(name), seed, c.Discount)

	case name == Pendulum:
		e, err = CreatePendulum(c.cutoff(name), seed, c.Discount)

	case name == MountainCar:
		e, err = CreateMountainCar(false, c.cutoff(name), seed, c.Discount)

	case name == MountainCarContinuous:
		e, err = CreateMountainCar(true, c.cutoff(name), seed, c.Discount)
	}
	if err != nil {
		return nil, fmt.Errorf("create: %v", err)
	}

	return c.wrap(e, norm)
}

// wrap applies the configured observation and reward wrappers
func (c Config) wrap(e env.Environment, norm *normalization) (
	env.Environment, error) {
	if c.TileCoding.Enabled() {
		coded, err := wrappers.NewTileCoding(e, c.TileCoding.Tilings,
			c.TileCoding.Tiles, c.TileCoding.Seed)
		if err != nil {
			return nil, fmt.Errorf("wrap: %v", err)
		}
		e = coded
	}
	if c.NormalizeObservations {
		normalized, err := wrappers.NewNormalizeObservation(e, norm.stats,
			1e-8)
		if err != nil {
			return nil, fmt.Errorf("wrap: %v", err)
		}
		if norm.frozen {
			normalized.Freeze()
		}
		norm.stats = normalized.Stats()
		e = normalized
	}
	if c.ClipObservations > 0 || c.ClipRewards > 0 {
		clipped, err := wrappers.NewClip(e, c.ClipObservations,
			c.ClipRewards)
		if err != nil {
			return nil, fmt.Errorf("wrap: %v", err)
		}
		e = clipped
	}
	return e, nil
}

// Vector returns a vector of NumEnvs environments. Environment i is
// seeded with seed + i. If observations are normalized, all
// environments of the vector update and use the same running
// statistics, which are returned. Otherwise the returned statistics are
// nil.
func (c Config) Vector(seed uint64) (vector.Env, *wrappers.ObservationStats,
	error) {
	norm := &normalization{}
	v, err := c.vector(seed, norm)
	if err != nil {
		return nil, nil, fmt.Errorf("vector: %v", err)
	}
	return v, norm.stats, nil
}

// EvalVector returns a vector of NumEnvs environments like Vector, but
// observations are normalized with the given statistics, which the
// environments never update. Statistics are required if observations
// are normalized and ignored otherwise.
func (c Config) EvalVector(seed uint64,
	stats *wrappers.ObservationStats) (vector.Env, error) {
	if c.NormalizeObservations && stats == nil {
		return nil, fmt.Errorf("evalVector: normalized observations " +
			"require observation statistics")
	}
	v, err := c.vector(seed, &normalization{stats: stats, frozen: true})
	if err != nil {
		return nil, fmt.Errorf("evalVector: %v", err)
	}
	return v, nil
}

func (c Config) vector(seed uint64, norm *normalization) (vector.Env,
	error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	envs := make([]env.Environment, 0, c.NumEnvs)
	for i := 0; i < c.NumEnvs; i++ {
		e, err := c.create(seed+uint64(i), norm)
		if err != nil {
			for _, created := range envs {
				created.Close()
			}
			return nil, fmt.Errorf("environment %v: %v", i, err)
		}
		envs = append(envs, e)
	}

	if c.Async {
		return vector.NewAsync(envs)
	}
	return vector.NewSync(envs)
}

// CreateCartpole is a factory for creating the Cartpole environment
// with default physical parameters and the Balance task
func CreateCartpole(cutoff int, seed uint64, discount float64) (
	env.Environment, error) {
	bounds := r1.Interval{Min: -0.05, Max: 0.05}
	s := env.NewUniformStarter([]r1.Interval{
		bounds,
		bounds,
		bounds,
		bounds,
	}, seed)

	task, err := cartpole.NewBalance(s, cutoff, cartpole.FailAngle)
	if err != nil {
		return nil, err
	}
	c, _, err := cartpole.New(task, discount)
	return c, err
}

// CreatePendulum is a factory for creating the Pendulum environment
// with default physical parameters and the SwingUp task
func CreatePendulum(cutoff int, seed uint64, discount float64) (
	env.Environment, error) {
	angle := r1.Interval{Min: -pendulum.AngleBound, Max: pendulum.AngleBound}
	speed := r1.Interval{Min: -1.0, Max: 1.0}
	s := env.NewUniformStarter([]r1.Interval{angle, speed}, seed)

	p, _, err := pendulum.New(pendulum.NewSwingUp(s, cutoff), discount)
	return p, err
}

// CreateMountainCar is a factory for creating the MountainCar
// environment with default physical parameters and the Goal task
func CreateMountainCar(continuousActions bool, cutoff int, seed uint64,
	discount float64) (env.Environment, error) {
	position := r1.Interval{Min: -0.6, Max: -0.4}
	velocity := r1.Interval{Min: 0.0, Max: 0.0}
	s := env.NewUniformStarter([]r1.Interval{position, velocity}, seed)

	task := mountaincar.NewGoal(s, cutoff, mountaincar.GoalPosition)
	if continuousActions {
		m, _, err := mountaincar.NewContinuous(task, discount)
		return m, err
	}
	m, _, err := mountaincar.NewDiscrete(task, discount)
	return m, err
}
