// Package inference implements C3: computing a calibrated posterior over the four lifecycle
// classes from an evidence ledger (spec §4.3). Modeled on the teacher's engine/evidence.go +
// engine/scoring.go evidence-aggregation idiom, generalized from a 0-100 score to a genuine
// Bayesian posterior with a reproducible explanation path.
package inference

import (
	"math"

	"github.com/proctriage/triage/model"
)

// minProbability floors any posterior component before renormalizing, so the posterior never
// emits an exact zero or NaN (spec §4.3 failure semantics).
const minProbability = 1e-9

// Prior returns a normalized prior over the four classes from configured per-category base
// rates. If category is unknown (zero map or missing entry), a uniform prior is used
// (spec §4.3).
func Prior(baseRates map[string][4]float64, category string) [4]float64 {
	rates, ok := baseRates[category]
	if !ok {
		return [4]float64{0.25, 0.25, 0.25, 0.25}
	}
	sum := rates[0] + rates[1] + rates[2] + rates[3]
	if sum <= 0 {
		return [4]float64{0.25, 0.25, 0.25, 0.25}
	}
	var out [4]float64
	for i := range out {
		out[i] = rates[i] / sum
	}
	return out
}

// Update computes the posterior from a prior and an evidence ledger (spec §4.3): each evidence
// item's signed log-odds is added to its Target class's log-odds; the posterior is
// softmax(log(prior) + sum of per-class log-odds). If evidence is empty, the prior is returned
// with confidence "low" (i.e. a near-zero Confidence scalar).
func Update(prior [4]float64, ledger []model.Evidence) model.Posterior {
	var logPrior [4]float64
	for i, p := range prior {
		if p <= 0 {
			p = minProbability
		}
		logPrior[i] = math.Log(p)
	}

	if len(ledger) == 0 {
		post := model.Posterior{Probs: prior}
		post.Confidence = 0.05
		post.Cards = append(post.Cards, model.GalaxyBrainCard{
			Symbolic:    "P(c) = prior(c)",
			Substituted: "no evidence; posterior = prior",
			Value:       0,
			Precision:   6,
		})
		return post
	}

	var logOdds [4]float64
	copy(logOdds[:], logPrior[:])

	var cards []model.GalaxyBrainCard
	for _, ev := range ledger {
		lo := ev.LogOdds()
		logOdds[ev.Target] += lo
		cards = append(cards, model.GalaxyBrainCard{
			Symbolic:    "log_odds[" + ev.Target.String() + "] += ell(" + string(ev.Kind) + ")",
			Substituted: ev.Explanation,
			Value:       lo,
			Precision:   6,
		})
	}

	probs := softmax(logOdds)
	probs, renormalized := floorAndRenormalize(probs)
	if renormalized {
		cards = append(cards, model.GalaxyBrainCard{
			Symbolic:    "p(c) = max(p(c), floor) / sum",
			Substituted: "probability underflow corrected by flooring and renormalizing",
			Value:       minProbability,
			Precision:   9,
		})
	}

	post := model.Posterior{Probs: probs, LogOdds: logOdds, Cards: cards}
	post.Confidence = confidence(post, ledger)
	return post
}

func softmax(logOdds [4]float64) [4]float64 {
	max := logOdds[0]
	for _, v := range logOdds[1:] {
		if v > max {
			max = v
		}
	}
	var exps [4]float64
	var sum float64
	for i, v := range logOdds {
		exps[i] = math.Exp(v - max)
		sum += exps[i]
	}
	var out [4]float64
	for i := range out {
		out[i] = exps[i] / sum
	}
	return out
}

// floorAndRenormalize floors every component at minProbability and renormalizes if any
// flooring occurred, guaranteeing the probabilities sum to 1 within 1e-9 and contain no NaN/Inf
// (spec §4.3, §8).
func floorAndRenormalize(probs [4]float64) ([4]float64, bool) {
	floored := false
	for i, p := range probs {
		if math.IsNaN(p) || p < minProbability {
			probs[i] = minProbability
			floored = true
		}
	}
	if !floored {
		return probs, false
	}
	var sum float64
	for _, p := range probs {
		sum += p
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs, true
}

// confidence composites (max class probability, number of high-confidence evidence items,
// presence of at least one decisive — non-neutral-direction — item) into a single scalar
// (spec §4.3). The exact combination weights are not specified by spec.md; this implementation
// uses the max probability as the base signal, boosted by evidence strength and decisiveness,
// capped at 0.98 to always leave residual uncertainty (the same ceiling the teacher's
// engine/scoring.go::domainConfidence uses for its analogous composite).
func confidence(post model.Posterior, ledger []model.Evidence) float64 {
	_, maxP := post.MAP()

	highCount := 0
	hasDecisive := false
	for _, ev := range ledger {
		if ev.Confidence == model.ConfidenceHigh {
			highCount++
		}
		if ev.Direction != model.DirectionNeutral {
			hasDecisive = true
		}
	}

	c := maxP
	if highCount > 0 {
		c += 0.05 * float64(min(highCount, 3))
	}
	if hasDecisive {
		c += 0.05
	}
	if c > 0.98 {
		c = 0.98
	}
	if c < 0 {
		c = 0
	}
	return c
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
