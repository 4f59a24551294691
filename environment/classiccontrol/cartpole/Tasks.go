package cartpole

import (
	"fmt"
	"math"

	env "github.com/samuelfneumann/onpolicy/environment"
	ts "github.com/samuelfneumann/onpolicy/timestep"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
)

const (
	FailAngle    float64 = 12 * 2 * math.Pi / 360
	FailPosition float64 = 2.4
)

// Balance implements the classic control Cartpole Balance task. In this
// Task, the goal of the agent is to balance the pole on the cart in
// an upright position for as long as possible.
//
// The rewards are +1 for every timestep the pole stays within the
// fail angle and -1 when the pole has fallen past it.
//
// Episodes terminate when the pole falls past the fail angle or the
// cart leaves [-FailPosition, FailPosition], and are truncated after
// a step limit.
type Balance struct {
	env.Starter
	stepLimiter *env.StepLimit
	failLimiter *env.IntervalLimit
	failAngle   float64
}

// NewBalance creates and returns a new Balance task
func NewBalance(s env.Starter, episodeSteps int, failAngle float64) (
	*Balance, error) {
	if failAngle <= 0 {
		return nil, fmt.Errorf("newBalance: fail angle must be positive, "+
			"have %v", failAngle)
	}

	failLimiter, err := env.NewIntervalLimit(ts.Terminal,
		env.Bound{
			Feature:  2,
			Interval: r1.Interval{Min: -failAngle, Max: failAngle},
		},
		env.Bound{
			Feature:  0,
			Interval: r1.Interval{Min: -FailPosition, Max: FailPosition},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("newBalance: %v", err)
	}

	return &Balance{
		Starter:     s,
		stepLimiter: env.NewStepLimit(episodeSteps),
		failLimiter: failLimiter,
		failAngle:   failAngle,
	}, nil
}

// End checks if a TimeStep is the last in an episode. If so, it adjusts
// the TimeStep's StepType to timestep.Last and returns true. Otherwise,
// the function does not adjust the TimeStep and returns false.
func (b *Balance) End(t *ts.TimeStep) bool {
	if b.failLimiter.End(t) {
		return true
	}
	return b.stepLimiter.End(t)
}

// GetReward returns the reward for an action taken in some state,
// resulting in a transition to the next state nextState.
func (b *Balance) GetReward(_, _, nextState mat.Vector) float64 {
	// Angle of 0 is pointing straight up
	if math.Abs(nextState.AtVec(2)) <= b.failAngle {
		return 1.0
	}
	return -1.0
}

// AtGoal returns whether or not the pole is still balanced
func (b *Balance) AtGoal(state mat.Matrix) bool {
	return math.Abs(state.At(2, 0)) <= b.failAngle
}

// Min returns the minimum possible reward that can be received in the
// environment
func (b *Balance) Min() float64 {
	return -1.0
}

// Max returns the maximum possible reward that can be received in the
// environment
func (b *Balance) Max() float64 {
	return 1.0
}

// RewardSpec returns the reward specification for the environment
func (b *Balance) RewardSpec() env.Spec {
	shape := mat.NewVecDense(1, nil)
	lowerBound := mat.NewVecDense(1, []float64{b.Min()})
	upperBound := mat.NewVecDense(1, []float64{b.Max()})

	return env.NewSpec(shape, env.Reward, lowerBound, upperBound,
		env.Continuous)
}
