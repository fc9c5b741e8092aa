package inference

import (
	"fmt"
	"math"
	"strings"

	"github.com/proctriage/triage/model"
)

// classByName resolves a Class.String() value back to its Class, the inverse of the name baked
// into each card's Symbolic form.
var classByName = map[string]model.Class{
	model.ClassUseful.String():    model.ClassUseful,
	model.ClassUsefulBad.String(): model.ClassUsefulBad,
	model.ClassAbandoned.String(): model.ClassAbandoned,
	model.ClassZombie.String():    model.ClassZombie,
}

// Recompute independently re-evaluates a stored galaxy-brain card stack against the prior the
// posterior was computed from, reproducing the posterior to stored precision (spec §4.3's
// "galaxy-brain ledger" auditability requirement, SPEC_FULL §3.3's Recompute method). This is the
// verifiable explanation path: an auditor with only the prior and the card stack — not the
// original evidence ledger — can confirm the posterior.
func Recompute(prior [4]float64, cards []model.GalaxyBrainCard) (model.Posterior, error) {
	var logOdds [4]float64
	for i, p := range prior {
		if p <= 0 {
			p = minProbability
		}
		logOdds[i] = math.Log(p)
	}

	for _, card := range cards {
		target, ok := cardTarget(card.Symbolic)
		if !ok {
			continue // a non-contribution card (e.g. the flooring note)
		}
		logOdds[target] += card.Value
	}

	probs := softmax(logOdds)
	probs, _ = floorAndRenormalize(probs)
	return model.Posterior{Probs: probs, LogOdds: logOdds, Cards: cards}, nil
}

// cardTarget extracts the Class a contribution card targets from its Symbolic form
// ("log_odds[<Class>] += ..."), matching the encoding Update produces.
func cardTarget(symbolic string) (model.Class, bool) {
	start := strings.Index(symbolic, "[")
	end := strings.Index(symbolic, "]")
	if start < 0 || end < 0 || end < start {
		return 0, false
	}
	name := symbolic[start+1 : end]
	c, ok := classByName[name]
	return c, ok
}

// VerifyReproducible checks that Recompute(prior, posterior.Cards) equals posterior to
// posterior's stored card precision, the round-trip law from spec §8.
func VerifyReproducible(prior [4]float64, post model.Posterior) error {
	recomputed, err := Recompute(prior, post.Cards)
	if err != nil {
		return err
	}
	for i := range post.Probs {
		if math.Abs(recomputed.Probs[i]-post.Probs[i]) > 1e-6 {
			return fmt.Errorf("class %d: recomputed %v != stored %v", i, recomputed.Probs[i], post.Probs[i])
		}
	}
	return nil
}
