package validation

import (
	"math"
	"sort"

	"github.com/proctriage/triage/model"
)

// BiasResult is one process-category's mean-predicted-vs-actual comparison (spec §4.7: "Bias per
// category (mean predicted vs. actual rate; significance on N >= 30)").
type BiasResult struct {
	Stratum       string  `json:"stratum"`
	MeanPredicted float64 `json:"mean_predicted"`
	ActualRate    float64 `json:"actual_rate"`
	Bias          float64 `json:"bias"` // MeanPredicted - ActualRate; positive = overestimates abandonment
	SampleCount   int     `json:"sample_count"`
	Significant   bool    `json:"significant"`
}

// BiasAnalysis groups BiasResult by process category.
type BiasAnalysis struct {
	ByProcType []BiasResult `json:"by_proc_type"`
}

// minBiasSignificantGap is the minimum |bias| magnitude required, on top of minBiasN samples,
// before a stratum's bias is flagged significant. original_source/.../validation.rs's sibling
// calibrate::bias module wasn't in the retrieval pack; the gate combines the N>=30 threshold named
// in spec.md §4.7 with a one-sample z-test against the null hypothesis of zero bias, a standard
// approach for a proportion-vs-proportion comparison of this shape.
const minBiasSignificantGap = 0.05

// AnalyzeBias computes per-category (proc_type) bias from resolved calibration data, gated on
// minBiasN per category (spec §4.7).
func AnalyzeBias(data []model.CalibrationDatum) (BiasAnalysis, error) {
	if len(data) == 0 {
		return BiasAnalysis{}, ErrInsufficientData
	}

	byCat := map[string][]model.CalibrationDatum{}
	for _, d := range data {
		cat := d.ProcType
		if cat == "" {
			cat = "unknown"
		}
		byCat[cat] = append(byCat[cat], d)
	}

	var results []BiasResult
	for cat, points := range byCat {
		var sumPredicted float64
		var positives int
		for _, p := range points {
			sumPredicted += p.Predicted
			if p.Actual {
				positives++
			}
		}
		n := len(points)
		meanPredicted := sumPredicted / float64(n)
		actualRate := float64(positives) / float64(n)
		bias := meanPredicted - actualRate

		significant := false
		if n >= minBiasN {
			// Standard error of a proportion under the null that the true abandonment rate
			// equals meanPredicted; a crude but standard-library-only significance check.
			se := math.Sqrt(meanPredicted * (1 - meanPredicted) / float64(n))
			if se > 0 {
				z := math.Abs(bias) / se
				significant = z >= 1.96 && math.Abs(bias) >= minBiasSignificantGap
			}
		}

		results = append(results, BiasResult{
			Stratum:       cat,
			MeanPredicted: meanPredicted,
			ActualRate:    actualRate,
			Bias:          bias,
			SampleCount:   n,
			Significant:   significant,
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].SampleCount > results[j].SampleCount })
	return BiasAnalysis{ByProcType: results}, nil
}
