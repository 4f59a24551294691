package policy

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// Categorical implements a categorical distribution over actions
// {0, 1, ..., N-1} parameterized by unnormalized log-probabilities
// (logits).
type Categorical struct {
	src rand.Source
}

// NewCategorical returns a new Categorical which samples using src
func NewCategorical(src rand.Source) *Categorical {
	return &Categorical{src}
}

// LogSoftmax returns the normalized log-probabilities of logits
func LogSoftmax(logits []float64) []float64 {
	out := make([]float64, len(logits))
	lse := floats.LogSumExp(logits)
	for i := range logits {
		out[i] = logits[i] - lse
	}
	return out
}

// dist returns the distribution with the given logits along with the
// normalized log-probabilities
func (c *Categorical) dist(logits []float64) (distuv.Categorical,
	[]float64) {
	logProbs := LogSoftmax(logits)
	probs := make([]float64, len(logProbs))
	for i := range logProbs {
		probs[i] = math.Exp(logProbs[i])
	}
	return distuv.NewCategorical(probs, c.src), logProbs
}

// Sample samples an action from the distribution with the given logits
// and returns the action with its log-probability
func (c *Categorical) Sample(logits []float64) (int, float64) {
	dist, logProbs := c.dist(logits)
	action := int(dist.Rand())
	return action, logProbs[action]
}

// LogProb returns the log-probability of action under logits
func (c *Categorical) LogProb(logits []float64, action int) float64 {
	return LogSoftmax(logits)[action]
}

// Entropy returns the entropy of the distribution with the given logits
func (c *Categorical) Entropy(logits []float64) float64 {
	dist, _ := c.dist(logits)
	return dist.Entropy()
}

// Backward writes into dst the gradient with respect to logits of
//
//	gLogProb * log π(action) + gEntropy * H(π)
//
// using ∂log π(a)/∂z_k = 1[k=a] - p_k and ∂H/∂z_k = -p_k (log p_k + H).
func (c *Categorical) Backward(logits []float64, action int, gLogProb,
	gEntropy float64, dst []float64) {
	dist, logProbs := c.dist(logits)
	h := dist.Entropy()

	for k, lp := range logProbs {
		p := math.Exp(lp)
		grad := -gLogProb * p
		if k == action {
			grad += gLogProb
		}
		grad -= gEntropy * p * (lp + h)
		dst[k] = grad
	}
}
