// Package rollout implements a fixed-capacity buffer which stores one
// window of on-policy experience collected from a vector of
// environments.
//
// A window consists of NumSteps consecutive ticks of NumEnvs parallel
// environments. For each tick the buffer stores the observed states,
// the actions taken, the rewards received, whether the episode ended,
// the log-probabilities of the actions under the behaviour policy, and
// the value estimates of the states.
package rollout

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Buffer stores a single window of experience. Storage is allocated
// once on construction and reused for every window.
type Buffer struct {
	numSteps int
	numEnvs  int
	obsDims  int
	actDims  int

	cursor int // Row of the next push
	pushes int // Pushes since the last read

	states   []*mat.Dense // numSteps × (numEnvs × obsDims)
	actions  []*mat.Dense // numSteps × (numEnvs × actDims)
	rewards  [][]float64
	dones    [][]bool
	logProbs [][]float64
	values   [][]float64
}

// New returns a new Buffer holding numSteps ticks of numEnvs
// environments with obsDims-dimensional states and actDims-dimensional
// actions.
func New(numSteps, numEnvs, obsDims, actDims int) (*Buffer, error) {
	if numSteps <= 0 || numEnvs <= 0 || obsDims <= 0 || actDims <= 0 {
		return nil, fmt.Errorf("new: all sizes must be positive, have "+
			"numSteps=%v numEnvs=%v obsDims=%v actDims=%v", numSteps,
			numEnvs, obsDims, actDims)
	}

	b := &Buffer{
		numSteps: numSteps,
		numEnvs:  numEnvs,
		obsDims:  obsDims,
		actDims:  actDims,
		states:   make([]*mat.Dense, numSteps),
		actions:  make([]*mat.Dense, numSteps),
		rewards:  make([][]float64, numSteps),
		dones:    make([][]bool, numSteps),
		logProbs: make([][]float64, numSteps),
		values:   make([][]float64, numSteps),
	}
	for t := 0; t < numSteps; t++ {
		b.states[t] = mat.NewDense(numEnvs, obsDims, nil)
		b.actions[t] = mat.NewDense(numEnvs, actDims, nil)
		b.rewards[t] = make([]float64, numEnvs)
		b.dones[t] = make([]bool, numEnvs)
		b.logProbs[t] = make([]float64, numEnvs)
		b.values[t] = make([]float64, numEnvs)
	}

	return b, nil
}

// NumSteps returns the number of ticks in a window
func (b *Buffer) NumSteps() int { return b.numSteps }

// NumEnvs returns the number of parallel environments
func (b *Buffer) NumEnvs() int { return b.numEnvs }

// Len returns the number of ticks pushed since the last read
func (b *Buffer) Len() int { return b.pushes }

// Push stores one tick of experience for all environments at the
// current cursor and advances the cursor. Row i of states and actions,
// and index i of the slices, belong to environment i. The done flag of
// a tick is set when the episode ended on that tick, by termination or
// truncation.
func (b *Buffer) Push(states, actions mat.Matrix, rewards []float64,
	dones []bool, logProbs, values []float64) error {
	if b.pushes >= b.numSteps {
		return &Error{Op: "push", Err: ErrFull}
	}
	if err := b.checkShapes(states, actions, rewards, dones, logProbs,
		values); err != nil {
		return fmt.Errorf("push: %v", err)
	}

	t := b.cursor
	b.states[t].Copy(states)
	b.actions[t].Copy(actions)
	copy(b.rewards[t], rewards)
	copy(b.dones[t], dones)
	copy(b.logProbs[t], logProbs)
	copy(b.values[t], values)

	b.cursor = (b.cursor + 1) % b.numSteps
	b.pushes++
	return nil
}

// Get returns the stored window and resets the push counter so that the
// next window can be collected. Get returns an error unless exactly
// NumSteps ticks were pushed since the last read.
//
// The returned Window aliases the buffer's storage and is only valid
// until the next Push.
func (b *Buffer) Get() (Window, error) {
	if b.pushes != b.numSteps {
		return Window{}, &Error{
			Op: "get",
			Err: fmt.Errorf("%w: have %v of %v ticks", ErrNotFull,
				b.pushes, b.numSteps),
		}
	}
	b.pushes = 0

	return Window{
		NumSteps: b.numSteps,
		NumEnvs:  b.numEnvs,
		States:   b.states,
		Actions:  b.actions,
		Rewards:  b.rewards,
		Dones:    b.dones,
		LogProbs: b.logProbs,
		Values:   b.values,
	}, nil
}

// checkShapes ensures one tick of experience has the shape expected by
// the buffer
func (b *Buffer) checkShapes(states, actions mat.Matrix, rewards []float64,
	dones []bool, logProbs, values []float64) error {
	if r, c := states.Dims(); r != b.numEnvs || c != b.obsDims {
		return fmt.Errorf("illegal states shape \n\twant(%v, %v)"+
			"\n\thave(%v, %v)", b.numEnvs, b.obsDims, r, c)
	}
	if r, c := actions.Dims(); r != b.numEnvs || c != b.actDims {
		return fmt.Errorf("illegal actions shape \n\twant(%v, %v)"+
			"\n\thave(%v, %v)", b.numEnvs, b.actDims, r, c)
	}

	lengths := map[string]int{
		"rewards":  len(rewards),
		"dones":    len(dones),
		"logProbs": len(logProbs),
		"values":   len(values),
	}
	for name, l := range lengths {
		if l != b.numEnvs {
			return fmt.Errorf("illegal %v length \n\twant(%v)\n\thave(%v)",
				name, b.numEnvs, l)
		}
	}
	return nil
}
