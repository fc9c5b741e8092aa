// Package feature implements C2: deriving evidence features from raw snapshot time series —
// the compound-Poisson CPU-burst analyzer, the HSMM regime estimator, and the supervision
// detector (spec §4.2). Numeric routines follow the teacher's small-pure-function-over-floats
// style (engine/scoring.go, engine/rates.go); no statistics library exists anywhere in the
// retrieval pack, so Gamma/Poisson math is implemented directly on stdlib math, matching the
// pack's own idiom for numeric code.
package feature

import (
	"math"

	"github.com/proctriage/triage/model"
)

// BurstEvent is one observed CPU-burst event: an arrival time (seconds since analyzer start) and
// a magnitude (CPU-seconds consumed in the burst), per spec §4.2.1.
type BurstEvent struct {
	ArrivalSec float64
	Magnitude  float64
}

// BurstClassification is the compound-Poisson analyzer's local 3-way classification, distinct
// from the 4-class process classification (spec §4.2.1).
type BurstClassification int

const (
	BurstBenign BurstClassification = iota
	BurstSuspicious
	BurstMalign
)

func (c BurstClassification) String() string {
	switch c {
	case BurstSuspicious:
		return "Suspicious"
	case BurstMalign:
		return "Malign"
	}
	return "Benign"
}

// GammaPrior is a weak Gamma(shape, rate) conjugate prior shared by both the event-rate (κ) and
// burst-scale (β) posteriors (spec §4.2.1's "posterior means under weak Gamma priors").
type GammaPrior struct {
	Shape float64
	Rate  float64
}

// DefaultBurstPrior is a weakly-informative Gamma(1, 1) prior used when no per-category prior is
// configured.
var DefaultBurstPrior = GammaPrior{Shape: 1, Rate: 1}

// BurstResult is the compound-Poisson analyzer's output for one observation window.
type BurstResult struct {
	EventCount      int
	DurationSec     float64
	KappaMLE        float64 // event-rate MLE: N/T
	BetaMLE         float64 // magnitude-rate MLE: N/sum(magnitudes)
	KappaPosterior  float64 // Gamma-Poisson conjugate posterior mean
	BetaPosterior   float64 // Gamma-Exponential conjugate posterior mean
	FanoFactor      float64 // variance/mean of sub-window counts
	DispersionIndex float64 // variance/mean^2 of inter-arrival times
	RateRatio       float64 // KappaMLE / baseline rate
	Classification  BurstClassification
	Confidence      model.ConfidenceLevel
}

// AnalyzeBurst computes the compound-Poisson summary for a window of events against a baseline
// rate, using weak Gamma priors on κ and β (spec §4.2.1).
func AnalyzeBurst(events []BurstEvent, durationSec, baselineRate float64, kappaPrior, betaPrior GammaPrior) BurstResult {
	n := len(events)
	r := BurstResult{EventCount: n, DurationSec: durationSec}
	if durationSec <= 0 {
		return r
	}

	var sumMag float64
	for _, e := range events {
		sumMag += e.Magnitude
	}

	r.KappaMLE = float64(n) / durationSec
	if sumMag > 0 {
		r.BetaMLE = float64(n) / sumMag
	}

	// Gamma-Poisson conjugacy: prior Gamma(a0, b0) on kappa, likelihood Poisson(kappa*T) ->
	// posterior Gamma(a0+N, b0+T), mean (a0+N)/(b0+T).
	r.KappaPosterior = (kappaPrior.Shape + float64(n)) / (kappaPrior.Rate + durationSec)

	// Gamma-Exponential conjugacy: prior Gamma(a0, b0) on beta, likelihood Exp(beta) over N iid
	// magnitudes -> posterior Gamma(a0+N, b0+sumMag), mean (a0+N)/(b0+sumMag).
	r.BetaPosterior = (betaPrior.Shape + float64(n)) / (betaPrior.Rate + sumMag)

	r.FanoFactor = fanoFactor(events, durationSec)
	r.DispersionIndex = dispersionIndex(events)

	if baselineRate > 0 {
		r.RateRatio = r.KappaMLE / baselineRate
	}

	r.Classification = classifyBurst(r.FanoFactor, r.RateRatio)
	r.Confidence = burstConfidence(n)
	return r
}

// classifyBurst maps (rate ratio, Fano factor) to {Benign, Suspicious, Malign} per spec §4.2.1:
// Suspicious when Fano > 1.5 or rate ratio > 1.5; Malign when rate ratio < 0.3 (severely quiet —
// abandonment candidate). Suspicious is checked first, matching
// original_source/pt-core/src/inference/compound_poisson.rs::classify_result, which tests
// is_bursty/rate_ratio before falling through to the rate_ratio < 0.3 Malign case -- a process
// that is simultaneously bursty and quiet (fano > 1.5 with rate_ratio < 0.3) is Suspicious, not
// Malign.
func classifyBurst(fano, rateRatio float64) BurstClassification {
	if fano > 1.5 || rateRatio > 1.5 {
		return BurstSuspicious
	}
	if rateRatio < 0.3 {
		return BurstMalign
	}
	return BurstBenign
}

// burstConfidence scales with event count: >=100 high, >=30 medium, else low (spec §4.2.1).
func burstConfidence(n int) model.ConfidenceLevel {
	switch {
	case n >= 100:
		return model.ConfidenceHigh
	case n >= 30:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

// subWindowCount picks the number of sub-windows for the Fano-factor computation, clamped to
// spec §4.2.1's [4, 20] range.
func subWindowCount(n int) int {
	w := n / 10
	if w < 4 {
		w = 4
	}
	if w > 20 {
		w = 20
	}
	return w
}

// fanoFactor computes variance/mean of event counts over 4-20 sub-windows spanning duration
// (spec §4.2.1).
func fanoFactor(events []BurstEvent, duration float64) float64 {
	if len(events) == 0 || duration <= 0 {
		return 0
	}
	windows := subWindowCount(len(events))
	width := duration / float64(windows)
	counts := make([]float64, windows)
	for _, e := range events {
		idx := int(e.ArrivalSec / width)
		if idx >= windows {
			idx = windows - 1
		}
		if idx < 0 {
			idx = 0
		}
		counts[idx]++
	}
	mean, variance := meanVariance(counts)
	if mean == 0 {
		return 0
	}
	return variance / mean
}

// dispersionIndex computes variance/mean^2 of inter-arrival times (spec §4.2.1).
func dispersionIndex(events []BurstEvent) float64 {
	if len(events) < 2 {
		return 0
	}
	gaps := make([]float64, 0, len(events)-1)
	for i := 1; i < len(events); i++ {
		gaps = append(gaps, events[i].ArrivalSec-events[i-1].ArrivalSec)
	}
	mean, variance := meanVariance(gaps)
	if mean == 0 {
		return 0
	}
	return variance / (mean * mean)
}

func meanVariance(xs []float64) (mean, variance float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean = sum / float64(len(xs))
	var sq float64
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}
	variance = sq / float64(len(xs))
	return mean, variance
}

// LogBFBursty returns the log Bayes factor toward UsefulBad/Malign contributed by an observed
// rate deviating from baseline, grounded on
// original_source/pt-core/src/inference/compound_poisson.rs::log_bf_bursty (log of the rate
// ratio).
func LogBFBursty(observedRate, baselineRate float64) float64 {
	if baselineRate > 0 && observedRate > 0 {
		return math.Log(observedRate / baselineRate)
	}
	return 0
}

// Evidence converts a BurstResult into an Evidence item for the inference core (spec §4.3).
func (r BurstResult) Evidence(baselineRate float64) model.Evidence {
	lbf := LogBFBursty(r.KappaMLE, baselineRate)
	target := model.ClassUseful
	dir := model.DirectionNeutral
	switch r.Classification {
	case BurstSuspicious:
		target, dir = model.ClassUsefulBad, model.DirectionTowardPredicted
	case BurstMalign:
		target, dir = model.ClassAbandoned, model.DirectionTowardPredicted
	}
	return model.Evidence{
		Kind:        model.KindBurstRate,
		Target:      target,
		Direction:   dir,
		Confidence:  r.Confidence,
		LogBF:       &lbf,
		Explanation: "CPU-burst rate " + r.Classification.String(),
	}
}
