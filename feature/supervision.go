package feature

import "github.com/proctriage/triage/model"

// supervisionWeights are the per-signal confidence weights feeding the "confidence is the
// maximum weight among matched evidence items" rule (spec §4.2.3).
const (
	envWeight      = 0.8
	ancestryWeight = 0.6
	bothCap        = 0.95
)

// DetectSupervision computes confidence for each raw SupervisorHint surfaced by the collector
// (spec §4.2.3): confidence is the maximum weight among matched signals, and when both
// environment and ancestry agree on the same supervisor the sum is capped at 0.95 to preserve
// residual uncertainty.
func DetectSupervision(hints []model.SupervisorHint) []model.SupervisorHint {
	out := make([]model.SupervisorHint, len(hints))
	for i, h := range hints {
		conf := 0.0
		switch {
		case h.FromEnv && h.FromAncestry:
			conf = envWeight + ancestryWeight
			if conf > bothCap {
				conf = bothCap
			}
		case h.FromEnv:
			conf = envWeight
		case h.FromAncestry:
			conf = ancestryWeight
		}
		h.Confidence = conf
		out[i] = h
	}
	return out
}

// BestSupervision returns the highest-confidence supervisor hint, if any.
func BestSupervision(hints []model.SupervisorHint) (model.SupervisorHint, bool) {
	scored := DetectSupervision(hints)
	if len(scored) == 0 {
		return model.SupervisorHint{}, false
	}
	best := scored[0]
	for _, h := range scored[1:] {
		if h.Confidence > best.Confidence {
			best = h
		}
	}
	return best, true
}

// Evidence converts the best-matched supervision hint into an Evidence item leaning toward
// Useful (a supervised process is less likely to be abandoned).
func Evidence(hints []model.SupervisorHint) (model.Evidence, bool) {
	best, ok := BestSupervision(hints)
	if !ok || best.Confidence == 0 {
		return model.Evidence{}, false
	}
	conf := model.ConfidenceLow
	switch {
	case best.Confidence >= 0.8:
		conf = model.ConfidenceHigh
	case best.Confidence >= 0.5:
		conf = model.ConfidenceMedium
	}
	return model.Evidence{
		Kind:        model.KindSupervisionHint,
		Target:      model.ClassUseful,
		Direction:   model.DirectionTowardReference,
		Confidence:  conf,
		Explanation: "managed by " + best.Kind.String(),
	}, true
}
