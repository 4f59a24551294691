package policy

import "fmt"

func errGradientShape(n, logProbs, values, entropies int) error {
	return fmt.Errorf("gradients should have %v samples, have %v "+
		"log-probabilities, %v values, %v entropies", n, logProbs, values,
		entropies)
}
