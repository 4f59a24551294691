package policy

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Gaussian implements a diagonal Gaussian distribution over continuous
// actions, parameterized by a mean and the log of the standard
// deviation of each action dimension. Log-probabilities and entropies
// are summed over action dimensions.
type Gaussian struct {
	normal distuv.Normal
}

// NewGaussian returns a new Gaussian which samples using src
func NewGaussian(src rand.Source) *Gaussian {
	return &Gaussian{distuv.Normal{Mu: 0, Sigma: 1, Src: src}}
}

// Sample samples an action from the distribution, writing it into dst,
// and returns its log-probability
func (g *Gaussian) Sample(mean, logStd, dst []float64) float64 {
	for j := range mean {
		dst[j] = mean[j] + math.Exp(logStd[j])*g.normal.Rand()
	}
	return g.LogProb(mean, logStd, dst)
}

// LogProb returns the log-density of action
func (g *Gaussian) LogProb(mean, logStd, action []float64) float64 {
	var lp float64
	for j := range mean {
		n := distuv.Normal{Mu: mean[j], Sigma: math.Exp(logStd[j])}
		lp += n.LogProb(action[j])
	}
	return lp
}

// Entropy returns the entropy of the distribution
func (g *Gaussian) Entropy(logStd []float64) float64 {
	var h float64
	for j := range logStd {
		h += distuv.Normal{Mu: 0, Sigma: math.Exp(logStd[j])}.Entropy()
	}
	return h
}

// Backward writes into dMean and dLogStd the gradient with respect to
// the mean and log standard deviation of
//
//	gLogProb * log π(action) + gEntropy * H(π)
//
// using ∂log π/∂μ = z/σ, ∂log π/∂log σ = z² - 1, and ∂H/∂log σ = 1,
// where z = (a - μ)/σ.
func (g *Gaussian) Backward(mean, logStd, action []float64, gLogProb,
	gEntropy float64, dMean, dLogStd []float64) {
	for j := range mean {
		std := math.Exp(logStd[j])
		z := (action[j] - mean[j]) / std
		dMean[j] = gLogProb * z / std
		dLogStd[j] = gLogProb*(z*z-1) + gEntropy
	}
}
