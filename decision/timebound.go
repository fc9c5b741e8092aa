package decision

import (
	"math"

	"github.com/proctriage/triage/config"
	"github.com/proctriage/triage/model"
)

// TimeBoundVerdict is the outcome of checking a candidate's decision-time-bound (spec §4.4).
type TimeBoundVerdict struct {
	// MustWait is true if min_seconds has not yet elapsed -- the caller must not commit to any
	// action yet, regardless of how confident the posterior already is.
	MustWait bool
	// Forced is true if the time bound is overriding whatever the loss-minimizing action would
	// be: either the value-of-information has decayed below the floor, or max_seconds has been
	// reached. ForcedAction is the fallback action to use in that case.
	Forced       bool
	ForcedAction model.Action
	Reason       string
	VOI          float64
}

// InitialVOI estimates the value of waiting for more evidence as the normalized Shannon entropy
// of the posterior (spec §4.4 "entropy-weighted"): a near-certain posterior has little left to
// learn (VOI near 0), a near-uniform posterior has the most (VOI near 1).
func InitialVOI(post model.Posterior) float64 {
	maxEntropy := math.Log(float64(len(model.Classes)))
	if maxEntropy <= 0 {
		return 0
	}
	var h float64
	for _, c := range model.Classes {
		p := post.Prob(c)
		if p <= 0 {
			continue
		}
		h -= p * math.Log(p)
	}
	return clamp01(h / maxEntropy)
}

// DecayedVOI applies exponential decay with the configured half-life to an initial VOI estimate
// over elapsedSeconds of additional observation time.
func DecayedVOI(initial float64, elapsedSeconds int, halfLifeSeconds int) float64 {
	if halfLifeSeconds <= 0 {
		return initial
	}
	return initial * math.Pow(0.5, float64(elapsedSeconds)/float64(halfLifeSeconds))
}

// EvaluateTimeBound checks whether the decision-time-bound forces a wait or a fallback action
// (spec §4.4). Disabled bounds never force anything. Before min_seconds, the caller must keep
// waiting no matter how confident the posterior is. After min_seconds, if VOI has decayed below
// the floor, or max_seconds has been reached as a hard ceiling, the bound forces FallbackAction.
// Otherwise the caller proceeds with the ordinary loss-minimizing decision.
func EvaluateTimeBound(post model.Posterior, elapsedSeconds int, cfg config.DecisionTimeBound) TimeBoundVerdict {
	if !cfg.Enabled {
		return TimeBoundVerdict{}
	}
	if elapsedSeconds < cfg.MinSeconds {
		return TimeBoundVerdict{MustWait: true, Reason: "minimum decision window not yet elapsed"}
	}

	voi := DecayedVOI(InitialVOI(post), elapsedSeconds, cfg.VoiDecayHalfLifeSeconds)
	if voi < cfg.VoiFloor {
		return TimeBoundVerdict{
			Forced:       true,
			ForcedAction: cfg.FallbackAction,
			Reason:       "value of information decayed below floor",
			VOI:          voi,
		}
	}
	if elapsedSeconds >= cfg.MaxSeconds {
		return TimeBoundVerdict{
			Forced:       true,
			ForcedAction: cfg.FallbackAction,
			Reason:       "reached maximum decision window",
			VOI:          voi,
		}
	}
	return TimeBoundVerdict{Reason: "value of information still above floor", VOI: voi}
}
