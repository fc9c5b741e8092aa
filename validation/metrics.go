package validation

import (
	"errors"
	"sort"

	"github.com/proctriage/triage/model"
)

// ErrInsufficientData is returned when a metric requires more resolved records than are available.
var ErrInsufficientData = errors.New("validation: insufficient resolved data")

// minMetricsN is the minimum resolved-record count before Brier/ECE are computed at all, and the
// separate minAUCN gate controls ROC-AUC specifically (spec §4.7: "ROC-AUC (when N >= 10)").
// original_source/.../validation.rs gates its whole metrics/bias/report computation on cal_data
// len thresholds (10 for metrics, 20 for bias) computed by a sibling calibrate::metrics module not
// present in the retrieval pack; the formulas below are implemented directly from spec.md's prose
// and standard definitions, since no Rust source for compute_metrics was retrieved.
const (
	minMetricsN    = 10
	minAUCN        = 10
	minBiasN       = 30
	calibrationBins = 10
)

// CalibrationMetrics summarizes how well predicted probabilities track actual outcomes.
type CalibrationMetrics struct {
	N                       int      `json:"n"`
	BrierScore              float64  `json:"brier_score"`
	ExpectedCalibrationError float64 `json:"expected_calibration_error"`
	ROCAUC                  *float64 `json:"roc_auc,omitempty"`
}

// ComputeMetrics computes Brier score and expected calibration error over resolved data, gated on
// minMetricsN. ROC-AUC is additionally gated on minAUCN and omitted below that (spec §4.7).
func ComputeMetrics(data []model.CalibrationDatum, threshold float64) (CalibrationMetrics, error) {
	if len(data) < minMetricsN {
		return CalibrationMetrics{}, ErrInsufficientData
	}

	m := CalibrationMetrics{N: len(data)}
	m.BrierScore = brierScore(data)
	m.ExpectedCalibrationError = expectedCalibrationError(data, calibrationBins)
	if len(data) >= minAUCN {
		if auc, ok := rocAUC(data); ok {
			m.ROCAUC = &auc
		}
	}
	_ = threshold // threshold only affects per-category confusion counts, computed in report.go
	return m, nil
}

// brierScore is the mean squared error between predicted probability and the binary outcome.
// Lower is better; 0 is perfect, 0.25 is the score of a model that always predicts 0.5.
func brierScore(data []model.CalibrationDatum) float64 {
	var sum float64
	for _, d := range data {
		actual := 0.0
		if d.Actual {
			actual = 1.0
		}
		diff := d.Predicted - actual
		sum += diff * diff
	}
	return sum / float64(len(data))
}

// expectedCalibrationError buckets predictions into `bins` equal-width probability buckets and
// averages, weighted by bucket population, the gap between each bucket's mean prediction and its
// observed positive rate.
func expectedCalibrationError(data []model.CalibrationDatum, bins int) float64 {
	type bucket struct {
		sumPredicted float64
		positives    int
		count        int
	}
	buckets := make([]bucket, bins)

	for _, d := range data {
		idx := int(d.Predicted * float64(bins))
		if idx >= bins {
			idx = bins - 1
		}
		if idx < 0 {
			idx = 0
		}
		b := &buckets[idx]
		b.sumPredicted += d.Predicted
		b.count++
		if d.Actual {
			b.positives++
		}
	}

	var ece float64
	n := float64(len(data))
	for _, b := range buckets {
		if b.count == 0 {
			continue
		}
		meanPredicted := b.sumPredicted / float64(b.count)
		actualRate := float64(b.positives) / float64(b.count)
		weight := float64(b.count) / n
		gap := meanPredicted - actualRate
		if gap < 0 {
			gap = -gap
		}
		ece += weight * gap
	}
	return ece
}

// rocAUC computes the area under the ROC curve via the Mann-Whitney U statistic: the probability
// that a randomly chosen positive scores higher than a randomly chosen negative. Returns
// (0, false) if the data has no positives or no negatives (AUC is undefined).
func rocAUC(data []model.CalibrationDatum) (float64, bool) {
	type scored struct {
		score    float64
		positive bool
	}
	scores := make([]scored, len(data))
	for i, d := range data {
		scores[i] = scored{score: d.Predicted, positive: d.Actual}
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].score < scores[j].score })

	var nPos, nNeg int
	for _, s := range scores {
		if s.positive {
			nPos++
		} else {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		return 0, false
	}

	// Assign mid-ranks (1-indexed), averaging ranks across ties.
	ranks := make([]float64, len(scores))
	i := 0
	for i < len(scores) {
		j := i
		for j < len(scores) && scores[j].score == scores[i].score {
			j++
		}
		avgRank := float64(i+j+1) / 2.0
		for k := i; k < j; k++ {
			ranks[k] = avgRank
		}
		i = j
	}

	var rankSumPos float64
	for i, s := range scores {
		if s.positive {
			rankSumPos += ranks[i]
		}
	}

	u := rankSumPos - float64(nPos)*float64(nPos+1)/2.0
	auc := u / (float64(nPos) * float64(nNeg))
	return auc, true
}
