// Package advantage implements return and advantage estimation over a
// window of on-policy experience.
//
// All estimators operate on (NumSteps, NumEnvs) arrays, where index
// [t][i] holds data for environment i at tick t. Each environment
// column is processed independently and episode boundaries inside the
// window stop any reward or value from propagating across episodes.
package advantage

import (
	"fmt"
)

// DiscountedReturns computes the discounted return of every tick by the
// backward recursion
//
//	G[t] = r[t] + γ G[t+1] (1 - done[t])
//
// where G[NumSteps] is the bootstrap value of the state following the
// window. A nil bootstrap is treated as all zeros, which truncates the
// returns of unfinished episodes at the window boundary.
func DiscountedReturns(rewards [][]float64, dones [][]bool,
	bootstrap []float64, gamma float64) ([][]float64, error) {
	numEnvs, err := checkWindow(rewards, dones, nil, bootstrap)
	if err != nil {
		return nil, fmt.Errorf("discountedReturns: %v", err)
	}

	returns := make([][]float64, len(rewards))
	gain := make([]float64, numEnvs)
	if bootstrap != nil {
		copy(gain, bootstrap)
	}

	for t := len(rewards) - 1; t >= 0; t-- {
		returns[t] = make([]float64, numEnvs)
		for i := 0; i < numEnvs; i++ {
			gain[i] = rewards[t][i] + gamma*gain[i]*notDone(dones[t][i])
			returns[t][i] = gain[i]
		}
	}

	return returns, nil
}

// notDone returns 0 if done and 1 otherwise
func notDone(done bool) float64 {
	if done {
		return 0
	}
	return 1
}

// checkWindow ensures all arrays describe the same window and returns
// the number of environments in the window. The values and bootstrap
// arguments may be nil.
func checkWindow(rewards [][]float64, dones [][]bool, values [][]float64,
	bootstrap []float64) (int, error) {
	if len(rewards) == 0 {
		return 0, fmt.Errorf("empty window")
	}
	numEnvs := len(rewards[0])

	if len(dones) != len(rewards) {
		return 0, fmt.Errorf("dones have %v steps but rewards have %v",
			len(dones), len(rewards))
	}
	if values != nil && len(values) != len(rewards) {
		return 0, fmt.Errorf("values have %v steps but rewards have %v",
			len(values), len(rewards))
	}
	if bootstrap != nil && len(bootstrap) != numEnvs {
		return 0, fmt.Errorf("bootstrap has %v environments, want %v",
			len(bootstrap), numEnvs)
	}

	for t := range rewards {
		if len(rewards[t]) != numEnvs || len(dones[t]) != numEnvs ||
			(values != nil && len(values[t]) != numEnvs) {
			return 0, fmt.Errorf("step %v does not have %v environments",
				t, numEnvs)
		}
	}
	return numEnvs, nil
}
