package decision

import (
	"github.com/proctriage/triage/config"
	"github.com/proctriage/triage/model"
)

// Pressure is the snapshot of host-wide load signals load-aware modulation reacts to (spec §4.4:
// runqueue length, per-core load, memory fraction, PSI).
type Pressure struct {
	QueueLength        int
	LoadPerCore        float64
	MemoryUsedFraction float64
	PSIAvg10           float64
}

// PressureScore combines the four signals into a single [0,1] engagement level: 0 means no
// signal exceeds its configured high, 1 means every weighted signal is at or past double its
// high. Signals at or below their high contribute 0; above it a signal's contribution grows
// linearly and reaches its full weight at double its high. The weights need not sum to 1 -- PressureScore normalizes by the configured weight
// total so a preset can omit a signal by zeroing its weight without rescaling the others.
func PressureScore(p Pressure, cfg config.LoadAwareDecision) float64 {
	if !cfg.Enabled {
		return 0
	}
	w := cfg.Weights
	totalWeight := w.Queue + w.LoadPerCore + w.MemoryFraction + w.PSI
	if totalWeight <= 0 {
		return 0
	}

	var sum float64
	sum += w.Queue * excessRatio(float64(p.QueueLength), float64(cfg.QueueHigh))
	sum += w.LoadPerCore * excessRatio(p.LoadPerCore, cfg.LoadPerCoreHigh)
	sum += w.MemoryFraction * excessRatio(p.MemoryUsedFraction, cfg.MemoryUsedFractionHigh)
	sum += w.PSI * excessRatio(p.PSIAvg10, cfg.PSIAvg10High)

	score := sum / totalWeight
	return clamp01(score)
}

// excessRatio returns how far value is past high, as a [0,1]-clamped fraction where 0 = at or
// below high and 1 = at or beyond 2x high.
func excessRatio(value, high float64) float64 {
	if high <= 0 || value <= high {
		return 0
	}
	return clamp01((value - high) / high)
}

// ModulateLosses applies load-aware modulation to an expected-loss map (spec §4.4): as
// PressureScore rises from 0 to 1, Keep's loss is scaled up toward Multipliers.KeepMax (making
// doing nothing look worse under pressure) and the reversible actions' (pause/throttle/renice)
// loss is scaled down toward Multipliers.ReversibleMin (making mitigation look cheaper). Kill and
// restart are scaled up toward Multipliers.RiskyMax -- a destructive action should not become
// more attractive purely because the host is under load; this extends spec §4.4's explicit
// keep/reversible rule to the RiskyMax field the preset already configures but the prose does not
// spell out a use for (documented as a spec-silent decision in DESIGN.md).
func ModulateLosses(losses map[model.Action]float64, score float64, cfg config.LoadAwareDecision) map[model.Action]float64 {
	if !cfg.Enabled || score <= 0 {
		return losses
	}
	score = clamp01(score)
	keepFactor := lerp(1, cfg.Multipliers.KeepMax, score)
	reversibleFactor := lerp(1, cfg.Multipliers.ReversibleMin, score)
	riskyFactor := lerp(1, cfg.Multipliers.RiskyMax, score)

	out := make(map[model.Action]float64, len(losses))
	for a, loss := range losses {
		switch a {
		case model.ActionKeep:
			out[a] = loss * keepFactor
		case model.ActionPause, model.ActionThrottle, model.ActionRenice:
			out[a] = loss * reversibleFactor
		case model.ActionKill, model.ActionRestart:
			out[a] = loss * riskyFactor
		default:
			out[a] = loss
		}
	}
	return out
}

func lerp(from, to, t float64) float64 { return from + (to-from)*t }

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
