// Package decision implements C4: choosing a Bayes-optimal action for a candidate under
// policy-supplied loss semantics (spec §4.4). Modeled on the teacher's engine/actions.go +
// engine/patterns.go ordered-evaluation idiom, generalized from RCA-narrative suggestion to a
// genuine expected-loss minimization over six actions.
package decision

import (
	"github.com/proctriage/triage/config"
	"github.com/proctriage/triage/model"
)

// candidateActions lists every action the loss matrix might offer, in the spec's tie-break
// preference order (keep > pause > throttle > renice > restart > kill).
var candidateActions = model.ActionPreference

// ExpectedLosses computes Σ_class P(class) · L[class][a] for every action the loss matrix
// configures (spec §4.4). Actions the preset leaves unconfigured (a nil LossRow field) are
// omitted from the result rather than treated as free.
func ExpectedLosses(post model.Posterior, matrix config.LossMatrix) map[model.Action]float64 {
	losses := make(map[model.Action]float64, len(candidateActions))
	for _, a := range candidateActions {
		var total float64
		offered := true
		for _, c := range model.Classes {
			cost, ok := matrix.Row(c).Cost(a)
			if !ok {
				offered = false
				break
			}
			total += post.Prob(c) * cost
		}
		if offered {
			losses[a] = total
		}
	}
	return losses
}

// SelectAction picks the action minimizing expected loss, breaking ties by the fixed preference
// order keep > pause > throttle > renice > restart > kill (spec §4.4).
func SelectAction(losses map[model.Action]float64) (model.Action, float64) {
	best := model.ActionKeep
	bestLoss, ok := losses[best]
	if !ok {
		// Keep is always offered in practice (LossRow.Keep has no Option wrapper), but guard
		// against a pathological matrix that somehow omits it.
		bestLoss = 0
	}
	for _, a := range candidateActions {
		loss, ok := losses[a]
		if !ok {
			continue
		}
		if loss < bestLoss-tieEpsilon {
			best, bestLoss = a, loss
		}
	}
	return best, bestLoss
}

// tieEpsilon absorbs floating-point noise so two actions whose expected losses differ only in
// the last few bits of a float64 are treated as a genuine tie and resolved by preference order,
// not by whichever rounding happened to land lower.
const tieEpsilon = 1e-12
