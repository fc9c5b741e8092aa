package validation

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/proctriage/triage/model"
)

// topFalseOutcomeLimit caps the false-positive/false-negative pattern lists reported, matching
// original_source/.../validation.rs's compute_false_outcomes truncation to 10.
const topFalseOutcomeLimit = 10

// CategoryValidation is one process category's confusion-matrix counts and derived rates at the
// ledger's classification threshold.
type CategoryValidation struct {
	Category       string  `json:"category"`
	Total          int     `json:"total"`
	Resolved       int     `json:"resolved"`
	TruePositives  int     `json:"true_positives"`
	FalsePositives int     `json:"false_positives"`
	TrueNegatives  int     `json:"true_negatives"`
	FalseNegatives int     `json:"false_negatives"`
	Accuracy       float64 `json:"accuracy"`
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
}

// FalseOutcome is one misclassified command pattern, aggregated by command basename.
type FalseOutcome struct {
	Pattern       string  `json:"pattern"`
	Count         int     `json:"count"`
	MeanPredicted float64 `json:"mean_predicted"`
	Category      string  `json:"category,omitempty"`
}

// PriorAdjustment is a recommended change to a category prior or the classification threshold,
// with a confidence scaled by the sample size it is drawn from (spec §4.7).
type PriorAdjustment struct {
	Target     string  `json:"target"`
	Current    float64 `json:"current"`
	Suggested  float64 `json:"suggested"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

// Report is the full validation ledger report: calibration metrics, bias, per-category breakdown,
// top misclassifications, and recommended adjustments.
type Report struct {
	From                time.Time             `json:"from"`
	To                  time.Time             `json:"to"`
	TotalPredictions    int                   `json:"total_predictions"`
	ResolvedPredictions int                   `json:"resolved_predictions"`
	PendingPredictions  int                   `json:"pending_predictions"`
	Metrics             *CalibrationMetrics    `json:"metrics,omitempty"`
	Bias                *BiasAnalysis          `json:"bias,omitempty"`
	ByCategory          []CategoryValidation   `json:"by_category"`
	TopFalsePositives   []FalseOutcome         `json:"top_false_positives"`
	TopFalseNegatives   []FalseOutcome         `json:"top_false_negatives"`
	Recommendations     []PriorAdjustment      `json:"recommendations"`
}

// Engine computes Reports over a Store at a fixed classification threshold (spec §4.7). Grounded
// on original_source/.../validation.rs's ValidationEngine::compute_report.
type Engine struct {
	store     *Store
	threshold float64
}

// NewEngine builds an Engine over store classifying predicted_abandoned >= threshold as a kill
// recommendation.
func NewEngine(store *Store, threshold float64) *Engine {
	return &Engine{store: store, threshold: threshold}
}

// ComputeReport builds the full Report from the store's current records.
func (e *Engine) ComputeReport() (Report, error) {
	records, err := e.store.Records()
	if err != nil {
		return Report{}, fmt.Errorf("compute report: %w", err)
	}

	var calData []model.CalibrationDatum
	var resolved, pending []model.ValidationRecord
	for _, r := range records {
		if r.GroundTruth != nil && r.GroundTruth.IsResolved() {
			resolved = append(resolved, r)
			if d, ok := r.ToCalibrationData(); ok {
				calData = append(calData, d)
			}
		} else if r.GroundTruth == nil {
			pending = append(pending, r)
		}
	}

	from, to := time.Now(), time.Now()
	if len(records) > 0 {
		from, to = records[0].PredictedAt, records[0].PredictedAt
		for _, r := range records[1:] {
			if r.PredictedAt.Before(from) {
				from = r.PredictedAt
			}
			if r.PredictedAt.After(to) {
				to = r.PredictedAt
			}
		}
	}

	rep := Report{
		From:                from,
		To:                  to,
		TotalPredictions:    len(records),
		ResolvedPredictions: len(resolved),
		PendingPredictions:  len(pending),
	}

	if m, err := ComputeMetrics(calData, e.threshold); err == nil {
		rep.Metrics = &m
	}
	if len(calData) >= minBiasN {
		if b, err := AnalyzeBias(calData); err == nil {
			rep.Bias = &b
		}
	}

	rep.ByCategory = e.computeCategoryValidation(records, resolved)
	rep.TopFalsePositives, rep.TopFalseNegatives = e.computeFalseOutcomes(resolved)
	rep.Recommendations = e.computePriorAdjustments(rep.Bias, rep.ByCategory)

	return rep, nil
}

func (e *Engine) computeCategoryValidation(all, resolved []model.ValidationRecord) []CategoryValidation {
	byCat := map[string][]model.ValidationRecord{}
	for _, r := range resolved {
		cat := r.ProcType
		if cat == "" {
			cat = "unknown"
		}
		byCat[cat] = append(byCat[cat], r)
	}

	var results []CategoryValidation
	for cat, recs := range byCat {
		total := 0
		for _, r := range all {
			rc := r.ProcType
			if rc == "" {
				rc = "unknown"
			}
			if rc == cat {
				total++
			}
		}

		var tp, fp, tn, fn int
		for _, r := range recs {
			predictedKill := r.PredictedAbandoned >= e.threshold
			actuallyAbandoned := r.GroundTruth != nil && r.GroundTruth.IsAbandoned()
			switch {
			case predictedKill && actuallyAbandoned:
				tp++
			case predictedKill && !actuallyAbandoned:
				fp++
			case !predictedKill && !actuallyAbandoned:
				tn++
			default:
				fn++
			}
		}

		classified := tp + fp + tn + fn
		accuracy, precision, recall := 0.0, 0.0, 0.0
		if classified > 0 {
			accuracy = float64(tp+tn) / float64(classified)
		}
		if tp+fp > 0 {
			precision = float64(tp) / float64(tp+fp)
		}
		if tp+fn > 0 {
			recall = float64(tp) / float64(tp+fn)
		}

		results = append(results, CategoryValidation{
			Category: cat, Total: total, Resolved: len(recs),
			TruePositives: tp, FalsePositives: fp, TrueNegatives: tn, FalseNegatives: fn,
			Accuracy: accuracy, Precision: precision, Recall: recall,
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Resolved > results[j].Resolved })
	return results
}

func (e *Engine) computeFalseOutcomes(resolved []model.ValidationRecord) (fps, fns []FalseOutcome) {
	fpAgg := map[string]*agg{}
	fnAgg := map[string]*agg{}

	for _, r := range resolved {
		predictedKill := r.PredictedAbandoned >= e.threshold
		actuallyAbandoned := r.GroundTruth != nil && r.GroundTruth.IsAbandoned()

		var target map[string]*agg
		switch {
		case predictedKill && !actuallyAbandoned:
			target = fpAgg
		case !predictedKill && actuallyAbandoned:
			target = fnAgg
		default:
			continue
		}

		a, ok := target[r.Comm]
		if !ok {
			a = &agg{category: r.ProcType}
			target[r.Comm] = a
		}
		a.count++
		a.sumPred += r.PredictedAbandoned
	}

	fps = collapseAgg(fpAgg)
	fns = collapseAgg(fnAgg)
	return fps, fns
}

func collapseAgg(m map[string]*agg) []FalseOutcome {
	var out []FalseOutcome
	for pattern, a := range m {
		out = append(out, FalseOutcome{
			Pattern:       pattern,
			Count:         a.count,
			MeanPredicted: a.sumPred / float64(a.count),
			Category:      a.category,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > topFalseOutcomeLimit {
		out = out[:topFalseOutcomeLimit]
	}
	return out
}

type agg struct {
	count    int
	sumPred  float64
	category string
}

func (e *Engine) computePriorAdjustments(bias *BiasAnalysis, categories []CategoryValidation) []PriorAdjustment {
	var adjustments []PriorAdjustment

	if bias != nil {
		for _, r := range bias.ByProcType {
			if r.Significant && r.SampleCount >= minBiasN {
				confidence := 1.0 - 1.0/math.Sqrt(float64(r.SampleCount))
				direction := "overestimates abandonment in"
				if r.Bias <= 0 {
					direction = "underestimates abandonment in"
				}
				adjustments = append(adjustments, PriorAdjustment{
					Target:    fmt.Sprintf("prior.%s.abandoned", r.Stratum),
					Current:   r.MeanPredicted,
					Suggested: r.ActualRate,
					Reason: fmt.Sprintf("Bias of %+.3f detected for '%s' (n=%d). Model %s this category.",
						r.Bias, r.Stratum, r.SampleCount, direction),
					Confidence: confidence,
				})
			}
		}
	}

	for _, cat := range categories {
		if cat.Resolved >= 20 && cat.Precision < 0.5 && cat.FalsePositives > 0 {
			confidence := 1.0 - 1.0/math.Sqrt(float64(cat.Resolved))
			adjustments = append(adjustments, PriorAdjustment{
				Target:    fmt.Sprintf("threshold.%s", cat.Category),
				Current:   e.threshold,
				Suggested: e.threshold + 0.1,
				Reason: fmt.Sprintf("Low precision (%.2f) for '%s' (FP=%d, TP=%d). Consider raising threshold.",
					cat.Precision, cat.Category, cat.FalsePositives, cat.TruePositives),
				Confidence: confidence,
			})
		}
	}

	sort.Slice(adjustments, func(i, j int) bool { return adjustments[i].Confidence > adjustments[j].Confidence })
	return adjustments
}
