package loss

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/onpolicy/policy"
)

// ClippedSurrogate implements the PPO clipped surrogate objective
//
//	ratio = exp(logπ(a|s) - logπ_old(a|s))
//	policy = -mean(min(A * ratio, A * clip(ratio, 1-ε, 1+ε)))
//
// together with a squared error critic loss and an entropy bonus.
type ClippedSurrogate struct {
	EpsClip     float64
	ValueCoef   float64
	EntropyCoef float64

	// ClipFracThreshold is the deviation of the ratio from 1 above
	// which a sample is counted as clipped. If 0,
	// DefaultClipFracThreshold is used.
	ClipFracThreshold float64
}

// Loss computes the loss terms and their gradients
func (c ClippedSurrogate) Loss(ev policy.Evaluation, b Batch) (Terms,
	policy.Gradients, error) {
	n, err := check(ev, b, true)
	if err != nil {
		return Terms{}, policy.Gradients{}, fmt.Errorf("loss: %v", err)
	}
	threshold := c.ClipFracThreshold
	if threshold == 0 {
		threshold = DefaultClipFracThreshold
	}

	g := newGradients(n)
	var terms Terms
	var clipped int
	for i := 0; i < n; i++ {
		logRatio := ev.LogProbs[i] - b.OldLogProbs[i]
		ratio := math.Exp(logRatio)
		adv := b.Advantages[i]

		s1 := adv * ratio
		s2 := adv * Clip(ratio, 1-c.EpsClip, 1+c.EpsClip)
		if s1 <= s2 {
			terms.Policy -= s1
			g.LogProbs[i] = -s1 / float64(n)
		} else {
			terms.Policy -= s2
		}

		terms.OldApproxKL -= logRatio
		terms.ApproxKL += (ratio - 1) - logRatio
		if math.Abs(ratio-1) > threshold {
			clipped++
		}
	}

	fn := float64(n)
	terms.Policy /= fn
	terms.OldApproxKL /= fn
	terms.ApproxKL /= fn
	terms.ClipFrac = float64(clipped) / fn

	terms.Value, terms.Entropy = critic(ev, b, c.ValueCoef, c.EntropyCoef, g)
	terms.Total = terms.Policy + c.ValueCoef*terms.Value -
		c.EntropyCoef*terms.Entropy

	return terms, g, nil
}

// Clip clamps the probability ratio r to [min, max]
func Clip(r, min, max float64) float64 {
	return math.Max(min, math.Min(r, max))
}
