// Package trainer implements the training loop shared by REINFORCE,
// A2C, and PPO.
//
// Each cycle, a Trainer collects a window of experience from a vector
// of environments into a rollout buffer, estimates advantages and
// critic targets, and hands the flattened batch to an update engine
// which takes gradient steps on the policy. Metrics are sent to
// Trackers after every cycle.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/samuelfneumann/onpolicy/advantage"
	"github.com/samuelfneumann/onpolicy/buffer/rollout"
	"github.com/samuelfneumann/onpolicy/environment/vector"
	"github.com/samuelfneumann/onpolicy/experiment/checkpointer"
	"github.com/samuelfneumann/onpolicy/experiment/tracker"
	"github.com/samuelfneumann/onpolicy/policy"
	"github.com/samuelfneumann/onpolicy/update"
	"github.com/samuelfneumann/onpolicy/update/loss"
	"github.com/samuelfneumann/onpolicy/utils/progressbar"
	"github.com/shirou/gopsutil/v3/process"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Summary summarizes a training run
type Summary struct {
	GlobalStep int
	Cycles     int
	Episodes   int

	// MeanTrainReturn is the mean return of the final 5% of episodes,
	// or NaN if no episode finished
	MeanTrainReturn float64
}

// Trainer trains a policy.Learner on a vector of environments
type Trainer struct {
	config    Config
	env       vector.Env
	learner   policy.Learner
	buffer    *rollout.Buffer
	estimator advantage.Estimator
	engine    *update.Engine

	logger         zerolog.Logger
	trackers       []tracker.Tracker
	tracker        tracker.Tracker
	checkpointers  []checkpointer.Checkpointer
	progressOut    io.Writer
	progress       *progressbar.ManualProgressBar
	processMetrics bool
	proc           *process.Process

	cycles       int
	initialLR    float64
	globalStep   int
	cycle        int
	returns      []float64
	observations *mat.Dense
}

// New returns a new Trainer. Configuration errors are reported before
// any environment is stepped.
func New(c Config, env vector.Env, learner policy.Learner,
	opts ...Option) (*Trainer, error) {
	if env == nil || learner == nil {
		return nil, fmt.Errorf("new: environment and learner required")
	}
	numEnvs := env.NumEnvs()
	if err := c.Validate(numEnvs); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	obsDims := env.ObservationSpec().Dims()
	actDims := env.ActionSpec().Dims()
	buffer, err := rollout.New(c.NumSteps, numEnvs, obsDims, actDims)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	engine, err := update.New(c.Update, learner, c.BatchSize(numEnvs),
		c.Seed)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	t := &Trainer{
		config:    c,
		env:       env,
		learner:   learner,
		buffer:    buffer,
		estimator: c.Estimator(),
		engine:    engine,
		logger:    zerolog.Nop(),
		cycles:    c.Cycles(numEnvs),
		initialLR: learner.StepSize(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.tracker = tracker.Multi(t.trackers...)

	if t.progressOut != nil {
		t.progress = progressbar.NewManualProgressBar(t.progressOut, 40,
			t.cycles*c.BatchSize(numEnvs))
	}
	if t.processMetrics {
		proc, err := process.NewProcess(int32(os.Getpid()))
		if err != nil {
			return nil, fmt.Errorf("new: could not inspect process: %v", err)
		}
		t.proc = proc
	}

	return t, nil
}

// GlobalStep returns the number of environment steps taken so far
func (t *Trainer) GlobalStep() int {
	return t.globalStep
}

// Cycles returns the number of cycles the Trainer runs for
func (t *Trainer) Cycles() int {
	return t.cycles
}

// Run trains the learner until the timestep budget is used up or ctx
// is cancelled. All tracked data is saved before Run returns.
func (t *Trainer) Run(ctx context.Context) (Summary, error) {
	summary, err := t.run(ctx)
	if saveErr := t.tracker.Save(); saveErr != nil {
		t.logger.Error().Err(saveErr).Msg("could not save tracked data")
		if err == nil {
			err = fmt.Errorf("run: %v", saveErr)
		}
	}
	return summary, err
}

func (t *Trainer) run(ctx context.Context) (Summary, error) {
	obs, err := t.env.Reset()
	if err != nil {
		return t.summary(), fmt.Errorf("run: %v", err)
	}
	t.observations = obs

	t.logger.Info().
		Str("algorithm", string(t.config.Update.Algorithm)).
		Int("num_envs", t.env.NumEnvs()).
		Int("num_steps", t.config.NumSteps).
		Int("cycles", t.cycles).
		Msg("starting training")

	start := time.Now()
	for t.cycle < t.cycles {
		t.cycle++

		if t.config.AnnealLR {
			frac := 1 - float64(t.cycle-1)/float64(t.cycles)
			t.learner.SetStepSize(frac * t.initialLR)
		}

		if err := t.collect(ctx); err != nil {
			return t.summary(), fmt.Errorf("run: cycle %v: %w", t.cycle, err)
		}
		if err := t.update(); err != nil {
			return t.summary(), fmt.Errorf("run: cycle %v: %v", t.cycle, err)
		}

		sps := float64(t.globalStep) / time.Since(start).Seconds()
		t.track(SPS, math.Floor(sps))
		t.trackProcess()

		for _, c := range t.checkpointers {
			if err := c.Checkpoint(t.cycle); err != nil {
				return t.summary(), fmt.Errorf("run: cycle %v: %v", t.cycle,
					err)
			}
		}

		if t.progress != nil {
			t.progress.Add(t.config.BatchSize(t.env.NumEnvs()))
			t.progress.Display()
		}
	}
	if t.progress != nil {
		t.progress.Close()
	}

	summary := t.summary()
	if len(t.returns) == 0 {
		t.logger.Warn().Msg("no episode finished during training")
	} else {
		t.track(MeanTrainReturn, summary.MeanTrainReturn)
	}
	t.logger.Info().
		Int("global_step", summary.GlobalStep).
		Int("episodes", summary.Episodes).
		Float64("mean_train_return", summary.MeanTrainReturn).
		Msg("training finished")

	return summary, nil
}

// collect fills the rollout buffer with one window of experience
func (t *Trainer) collect(ctx context.Context) error {
	numEnvs := t.env.NumEnvs()
	dones := make([]bool, numEnvs)

	for tick := 0; tick < t.config.NumSteps; tick++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		t.globalStep += numEnvs

		act, err := t.learner.Act(t.observations)
		if err != nil {
			return fmt.Errorf("collect: %v", err)
		}
		result, err := t.env.Step(act.Actions)
		if err != nil {
			return fmt.Errorf("collect: %v", err)
		}

		for i := range dones {
			dones[i] = result.Done(i)
		}
		err = t.buffer.Push(t.observations, act.Actions, result.Rewards,
			dones, act.LogProbs, act.Values)
		if err != nil {
			return fmt.Errorf("collect: %v", err)
		}

		for i, info := range result.Infos {
			if info.Episode == nil {
				continue
			}
			t.returns = append(t.returns, info.Episode.Return)
			t.track(EpisodicReturn, info.Episode.Return)
			t.track(EpisodicLength, float64(info.Episode.Length))
			t.logger.Debug().
				Int("env", i).
				Int("global_step", t.globalStep).
				Float64("return", info.Episode.Return).
				Int("length", info.Episode.Length).
				Bool("truncated", result.Truncated[i]).
				Msg("episode finished")
		}

		t.observations = result.Observations
	}
	return nil
}

// update estimates advantages for the collected window and updates the
// learner
func (t *Trainer) update() error {
	window, err := t.buffer.Get()
	if err != nil {
		return fmt.Errorf("update: %v", err)
	}
	bootstrap, err := t.learner.Value(t.observations)
	if err != nil {
		return fmt.Errorf("update: %v", err)
	}

	est, err := t.estimator.Estimate(window, bootstrap)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}
	flat := window.Flatten()
	batch, err := update.NewBatch(flat, est)
	if err != nil {
		return fmt.Errorf("update: %v", err)
	}

	stats, err := t.engine.Update(batch)
	if err != nil {
		return fmt.Errorf("update: %v", err)
	}

	t.track(ActorLoss, stats.Policy)
	t.track(CriticLoss, stats.Value)
	t.track(Entropy, stats.Entropy)
	t.track(GradNorm, stats.GradNorm)
	t.track(LearningRate, t.learner.StepSize())
	if t.config.Update.Algorithm.Shuffled() {
		t.track(OldApproxKL, stats.OldApproxKL)
		t.track(ApproxKL, stats.ApproxKL)
		t.track(ClipFrac, stats.ClipFrac)
	}

	explained, err := loss.ExplainedVariance(flat.Values, est.Targets)
	switch {
	case errors.Is(err, loss.ErrUndefined):
		t.logger.Warn().Int("cycle", t.cycle).Err(err).
			Msg("explained variance undefined")
	case err != nil:
		return fmt.Errorf("update: %v", err)
	default:
		t.track(ExplainedVar, explained)
	}

	t.logger.Info().
		Int("cycle", t.cycle).
		Int("global_step", t.globalStep).
		Float64("actor_loss", stats.Policy).
		Float64("critic_loss", stats.Value).
		Float64("entropy", stats.Entropy).
		Float64("lr", t.learner.StepSize()).
		Msg("update")
	return nil
}

func (t *Trainer) track(name string, value float64) {
	t.tracker.Track(name, value, t.globalStep)
}

// trackProcess tracks the memory and CPU usage of the process
func (t *Trainer) trackProcess() {
	if t.proc == nil {
		return
	}
	if mem, err := t.proc.MemoryInfo(); err == nil {
		t.track(RSS, float64(mem.RSS)/(1024*1024))
	} else {
		t.logger.Debug().Err(err).Msg("could not read memory usage")
	}
	if cpu, err := t.proc.CPUPercent(); err == nil {
		t.track(CPUPercent, cpu)
	}
}

func (t *Trainer) summary() Summary {
	return Summary{
		GlobalStep:      t.globalStep,
		Cycles:          t.cycle,
		Episodes:        len(t.returns),
		MeanTrainReturn: meanFinal(t.returns, finalFraction),
	}
}

// meanFinal returns the mean of the final fraction of x. If that
// fraction holds no elements, the mean of all of x is returned.
func meanFinal(x []float64, fraction float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	n := int(float64(len(x)) * fraction)
	if n == 0 {
		n = len(x)
	}
	return stat.Mean(x[len(x)-n:], nil)
}
