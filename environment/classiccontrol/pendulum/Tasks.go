package pendulum

import (
	"github.com/samuelfneumann/onpolicy/environment"
	"gonum.org/v1/gonum/mat"
)

// Coefficients of the SwingUp cost
const (
	SpeedCost  float64 = 0.1
	TorqueCost float64 = 0.001
)

// SwingUp implements a task where the agent must swing the pendulum up
// and hold it in a vertical position. The reward of a transition is the
// negative quadratic cost of the state it leaves and the torque
// applied:
//
//	r = -(θ² + 0.1 θ̇² + 0.001 u²)
//
// where θ is the angle from the positive y-axis. The best reward of 0
// is earned when the pendulum is upright, at rest, and no torque is
// applied. Episodes are only ever truncated.
type SwingUp struct {
	environment.Starter
	environment.Ender
}

// NewSwingUp creates and returns a new SwingUp task
func NewSwingUp(s environment.Starter, maxSteps int) *SwingUp {
	return &SwingUp{s, environment.NewStepLimit(maxSteps)}
}

// GetReward returns the reward of taking action in state
func (s *SwingUp) GetReward(state, action, _ mat.Vector) float64 {
	th, thdot := state.AtVec(0), state.AtVec(1)
	u := action.AtVec(0)
	return -(th*th + SpeedCost*thdot*thdot + TorqueCost*u*u)
}

// AtGoal determines whether or not the current state is the goal state
func (s *SwingUp) AtGoal(state mat.Matrix) bool {
	return state.At(0, 0) == 0
}

// Min returns the minimum possible reward
func (s *SwingUp) Min() float64 {
	return -(AngleBound*AngleBound + SpeedCost*SpeedBound*SpeedBound +
		TorqueCost*TorqueBound*TorqueBound)
}

// Max returns the maximum possible reward
func (s *SwingUp) Max() float64 {
	return 0.0
}

// RewardSpec returns the reward specification of the Task
func (s *SwingUp) RewardSpec() environment.Spec {
	shape := mat.NewVecDense(1, nil)
	lowerBound := mat.NewVecDense(1, []float64{s.Min()})
	upperBound := mat.NewVecDense(1, []float64{s.Max()})

	return environment.NewSpec(shape, environment.Reward, lowerBound,
		upperBound, environment.Continuous)
}
