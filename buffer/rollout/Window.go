package rollout

import "gonum.org/v1/gonum/mat"

// Window is one complete window of experience. Index [t][i] (or row i
// of the matrix at index t) holds the data of environment i at tick t.
type Window struct {
	NumSteps int
	NumEnvs  int
	States   []*mat.Dense
	Actions  []*mat.Dense
	Rewards  [][]float64
	Dones    [][]bool
	LogProbs [][]float64
	Values   [][]float64
}

// Flat is a Window flattened along its step and environment axes into
// a single batch dimension. Sample t*NumEnvs+i holds the data of
// environment i at tick t.
type Flat struct {
	States   *mat.Dense
	Actions  *mat.Dense
	Rewards  []float64
	Dones    []bool
	LogProbs []float64
	Values   []float64
}

// Len returns the number of samples in the batch
func (f Flat) Len() int {
	return len(f.Rewards)
}

// Flatten returns a copy of the Window flattened into a batch of
// NumSteps*NumEnvs samples in step-major order.
func (w Window) Flatten() Flat {
	n := w.NumSteps * w.NumEnvs
	_, obsDims := w.States[0].Dims()
	_, actDims := w.Actions[0].Dims()

	flat := Flat{
		States:   mat.NewDense(n, obsDims, nil),
		Actions:  mat.NewDense(n, actDims, nil),
		Rewards:  make([]float64, 0, n),
		Dones:    make([]bool, 0, n),
		LogProbs: make([]float64, 0, n),
		Values:   make([]float64, 0, n),
	}

	for t := 0; t < w.NumSteps; t++ {
		start := t * w.NumEnvs
		flat.States.Slice(start, start+w.NumEnvs, 0, obsDims).(*mat.Dense).
			Copy(w.States[t])
		flat.Actions.Slice(start, start+w.NumEnvs, 0, actDims).(*mat.Dense).
			Copy(w.Actions[t])

		flat.Rewards = append(flat.Rewards, w.Rewards[t]...)
		flat.Dones = append(flat.Dones, w.Dones[t]...)
		flat.LogProbs = append(flat.LogProbs, w.LogProbs[t]...)
		flat.Values = append(flat.Values, w.Values[t]...)
	}

	return flat
}

// FlattenColumns flattens a (NumSteps, NumEnvs) array in step-major
// order, matching the sample order of Flatten.
func FlattenColumns(x [][]float64) []float64 {
	if len(x) == 0 {
		return nil
	}
	out := make([]float64, 0, len(x)*len(x[0]))
	for t := range x {
		out = append(out, x[t]...)
	}
	return out
}
