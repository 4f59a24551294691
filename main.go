// Command onpolicy trains an actor-critic policy with PPO, A2C, or
// REINFORCE on a vector of environments.
//
// Usage:
//
//	onpolicy [--config run.yaml] [flags]
//
// Each run is saved to its own directory under the output directory,
// named by the run name or a random ID. The directory holds the
// resolved configuration, the tracked metrics (a gob series file, a
// SQLite database, and PNG plots), policy checkpoints, and the final
// policy.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samuelfneumann/onpolicy/config"
	"github.com/samuelfneumann/onpolicy/environment/wrappers"
	"github.com/samuelfneumann/onpolicy/experiment/checkpointer"
	"github.com/samuelfneumann/onpolicy/experiment/tracker"
	"github.com/samuelfneumann/onpolicy/experiment/trackers"
	"github.com/samuelfneumann/onpolicy/trainer"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// evalSeedOffset separates the seeds of evaluation environments from
// those of training environments
const evalSeedOffset = 1 << 20

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt,
		syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "onpolicy: %v\n", err)
		os.Exit(1)
	}
}

// run parses args, then trains and saves a policy
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	flags := config.Flags("onpolicy")
	flags.SetOutput(stderr)
	if err := flags.Parse(args); err != nil {
		return err
	}
	path, err := flags.GetString("config")
	if err != nil {
		return err
	}

	v := viper.New()
	if err := config.Bind(v, flags); err != nil {
		return err
	}
	cfg, err := config.Load(v, path)
	if err != nil {
		return err
	}

	name := cfg.Run.Name
	if name == "" {
		name = uuid.NewString()
	}
	dir := filepath.Join(cfg.Run.OutDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("could not create run directory: %v", err)
	}
	if err := config.Write(cfg, filepath.Join(dir, "config.yaml")); err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(cfg.Run.LogLevel)
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}
	logger := zerolog.New(zerolog.ConsoleWriter{
		Out:        stderr,
		TimeFormat: time.RFC3339,
	}).Level(level).With().Timestamp().Str("run", name).Logger()

	envs, obsStats, err := cfg.Env.Vector(cfg.Trainer.Seed)
	if err != nil {
		return err
	}
	defer envs.Close()

	learner, err := newLearner(cfg, envs.ObservationSpec(),
		envs.ActionSpec())
	if err != nil {
		return err
	}
	defer learner.Close()
	if err := writeSolver(cfg, filepath.Join(dir, "solver.json")); err != nil {
		return err
	}

	tr, closeTrackers, err := newTracker(cfg, dir, name, logger)
	if err != nil {
		return err
	}
	defer closeTrackers()

	opts := []trainer.Option{
		trainer.WithLogger(logger),
		trainer.WithTracker(tr),
	}
	if cfg.Run.CheckpointEvery > 0 {
		c, err := checkpointer.NewNStep(cfg.Run.CheckpointEvery, learner,
			checkpointer.FilenameEnumerator(0,
				filepath.Join(dir, "checkpoint"), ".bin"))
		if err != nil {
			return err
		}
		opts = append(opts, trainer.WithCheckpointer(c))
	}
	if cfg.Run.Progress {
		opts = append(opts, trainer.WithProgress(stdout))
	}
	if cfg.Run.ProcessMetrics {
		opts = append(opts, trainer.WithProcessMetrics())
	}

	t, err := trainer.New(cfg.Trainer, envs, learner, opts...)
	if err != nil {
		return err
	}

	summary, runErr := t.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	if runErr != nil {
		logger.Warn().Int("global_step", summary.GlobalStep).
			Msg("training interrupted, saving policy")
	}

	policyPath := filepath.Join(dir, "policy.bin")
	if err := saveLearner(learner, policyPath); err != nil {
		return err
	}
	logger.Info().
		Int("global_step", summary.GlobalStep).
		Int("episodes", summary.Episodes).
		Float64("mean_train_return", summary.MeanTrainReturn).
		Str("policy", policyPath).
		Msg("saved policy")

	if cfg.Run.EvalEpisodes > 0 && runErr == nil {
		if err := evaluate(ctx, cfg, learner, obsStats, logger); err != nil {
			return err
		}
	}
	return nil
}

// newTracker returns the trackers configured for a run and a function
// which closes them
func newTracker(cfg config.Config, dir, name string,
	logger zerolog.Logger) (tracker.Tracker, func(), error) {
	closers := []func() error{}
	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Error().Err(err).Msg("could not close tracker")
			}
		}
	}

	trs := []tracker.Tracker{
		trackers.NewSeries(filepath.Join(dir, "data.bin")),
		trackers.NewLog(logger, zerolog.DebugLevel),
	}
	if cfg.Run.SQLite {
		db, err := trackers.NewSQLite(filepath.Join(dir, "metrics.db"), name)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, db.Close)
		trs = append(trs, db)
	}
	if cfg.Run.Plot {
		plots := trackers.NewPlot(filepath.Join(dir, "plots"))
		trs = append(trs, tracker.Register(plots, "rollout/", "train/"))
	}

	return tracker.Multi(trs...), closeAll, nil
}

// writeSolver writes the configured solver as JSON to path
func writeSolver(cfg config.Config, path string) error {
	s, err := cfg.Solver.Create()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("could not encode solver: %v", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// saveLearner writes the weights of learner to path
func saveLearner(learner learner, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not save policy: %v", err)
	}
	if err := learner.Save(f); err != nil {
		f.Close()
		return fmt.Errorf("could not save policy: %v", err)
	}
	return f.Close()
}

// evaluate runs the trained policy on freshly seeded environments.
// Normalized observations use the final training statistics.
func evaluate(ctx context.Context, cfg config.Config, learner learner,
	obsStats *wrappers.ObservationStats, logger zerolog.Logger) error {
	envs, err := cfg.Env.EvalVector(cfg.Trainer.Seed+evalSeedOffset,
		obsStats)
	if err != nil {
		return err
	}
	defer envs.Close()

	returns, mean, err := trainer.Evaluate(ctx, envs, learner,
		cfg.Run.EvalEpisodes)
	if err != nil {
		return err
	}
	logger.Info().
		Int("episodes", len(returns)).
		Float64("mean_return", mean).
		Msg("evaluation finished")
	return nil
}
