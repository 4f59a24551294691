package main

import (
	"fmt"
	"strings"

	"github.com/samuelfneumann/onpolicy/config"
	"github.com/samuelfneumann/onpolicy/environment"
	"github.com/samuelfneumann/onpolicy/network"
	"github.com/samuelfneumann/onpolicy/policy"
	"github.com/samuelfneumann/onpolicy/policy/linear"
	"github.com/samuelfneumann/onpolicy/policy/mlp"
	"github.com/samuelfneumann/onpolicy/utils/matutils/initializers/weights"
)

// learner is a policy.Learner holding resources which must be released
type learner interface {
	policy.Learner
	Close() error
}

// nopCloser adapts a policy.Learner with nothing to release
type nopCloser struct {
	policy.Learner
}

func (nopCloser) Close() error { return nil }

// newLearner returns the policy configured by cfg
func newLearner(cfg config.Config, obsSpec,
	actionSpec environment.Spec) (learner, error) {
	s, err := cfg.Solver.Create()
	if err != nil {
		return nil, err
	}
	seed := cfg.Trainer.Seed

	switch cfg.Policy.Backend {
	case config.Linear:
		init, err := linearInit(cfg.Policy.Init, seed)
		if err != nil {
			return nil, err
		}
		l, err := linear.New(obsSpec, actionSpec, init, s, seed)
		if err != nil {
			return nil, err
		}
		return nopCloser{l}, nil

	case config.MLP:
		acts, err := cfg.Policy.Activations()
		if err != nil {
			return nil, err
		}
		init, err := cfg.Policy.Init.Create()
		if err != nil {
			return nil, err
		}
		c := mlp.Config{
			ActorHidden:       cfg.Policy.Hidden,
			ActorActivations:  acts,
			CriticHidden:      cfg.Policy.Hidden,
			CriticActivations: acts,
			InitLogStd:        cfg.Policy.InitLogStd,
		}
		return mlp.New(obsSpec, actionSpec, c, init, s, seed)

	default:
		return nil, fmt.Errorf("newLearner: %w: unknown backend %q",
			config.ErrInvalid, cfg.Policy.Backend)
	}
}

// linearInit returns the weight initializer of the linear backend,
// which supports zero and Glorot uniform initialization
func linearInit(i network.InitWFn, seed uint64) (weights.Initializer,
	error) {
	switch strings.ToLower(i.Type) {
	case network.Zeroes:
		return weights.NewZero(), nil
	case network.GlorotU:
		gain := i.Gain
		if gain == 0 {
			gain = 1
		}
		return weights.NewGlorotUniform(gain, seed)
	default:
		return nil, fmt.Errorf("linearInit: %w: linear backend cannot use "+
			"%q initialization", config.ErrInvalid, i.Type)
	}
}
