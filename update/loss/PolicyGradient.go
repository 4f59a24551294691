package loss

import (
	"fmt"

	"github.com/samuelfneumann/onpolicy/policy"
)

// PolicyGradient implements the vanilla policy gradient objective
//
//	policy = -mean(logπ(a|s) * A)
//
// used by REINFORCE and A2C, together with a squared error critic loss
// and an entropy bonus. REINFORCE without a baseline uses a ValueCoef
// of 0.
type PolicyGradient struct {
	ValueCoef   float64
	EntropyCoef float64
}

// Loss computes the loss terms and their gradients
func (p PolicyGradient) Loss(ev policy.Evaluation, b Batch) (Terms,
	policy.Gradients, error) {
	n, err := check(ev, b, false)
	if err != nil {
		return Terms{}, policy.Gradients{}, fmt.Errorf("loss: %v", err)
	}

	g := newGradients(n)
	var terms Terms
	fn := float64(n)
	for i := 0; i < n; i++ {
		terms.Policy -= ev.LogProbs[i] * b.Advantages[i]
		g.LogProbs[i] = -b.Advantages[i] / fn
	}
	terms.Policy /= fn

	terms.Value, terms.Entropy = critic(ev, b, p.ValueCoef, p.EntropyCoef, g)
	terms.Total = terms.Policy + p.ValueCoef*terms.Value -
		p.EntropyCoef*terms.Entropy

	return terms, g, nil
}
