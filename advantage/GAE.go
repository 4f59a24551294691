package advantage

import "fmt"

// GAE computes generalized advantage estimates, GAE(λ), following
// https://arxiv.org/abs/1506.02438, by the backward recursion
//
//	δ[t]   = r[t] + γ v[t+1] (1 - done[t]) - v[t]
//	adv[t] = δ[t] + γ λ (1 - done[t]) adv[t+1]
//
// with v[NumSteps] the bootstrap value of the state following the
// window and adv[NumSteps] = 0. The returned targets are adv + v and
// serve as regression targets for the critic.
func GAE(rewards [][]float64, dones [][]bool, values [][]float64,
	bootstrap []float64, gamma, lambda float64) (adv, targets [][]float64,
	err error) {
	if values == nil || bootstrap == nil {
		return nil, nil, fmt.Errorf("gae: values and bootstrap required")
	}
	numEnvs, err := checkWindow(rewards, dones, values, bootstrap)
	if err != nil {
		return nil, nil, fmt.Errorf("gae: %v", err)
	}

	numSteps := len(rewards)
	adv = make([][]float64, numSteps)
	targets = make([][]float64, numSteps)

	nextValue := append([]float64(nil), bootstrap...)
	nextAdv := make([]float64, numEnvs)

	for t := numSteps - 1; t >= 0; t-- {
		adv[t] = make([]float64, numEnvs)
		targets[t] = make([]float64, numEnvs)

		for i := 0; i < numEnvs; i++ {
			terminal := notDone(dones[t][i])
			delta := rewards[t][i] + gamma*nextValue[i]*terminal -
				values[t][i]
			nextAdv[i] = delta + gamma*lambda*terminal*nextAdv[i]
			nextValue[i] = values[t][i]

			adv[t][i] = nextAdv[i]
			targets[t][i] = nextAdv[i] + values[t][i]
		}
	}

	return adv, targets, nil
}
