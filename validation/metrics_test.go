package validation

import (
	"math"
	"testing"

	"github.com/proctriage/triage/model"
)

func mkDatum(predicted float64, actual bool) model.CalibrationDatum {
	return model.CalibrationDatum{Predicted: predicted, Actual: actual}
}

func TestComputeMetricsRequiresMinimumN(t *testing.T) {
	data := []model.CalibrationDatum{mkDatum(0.9, true), mkDatum(0.1, false)}
	if _, err := ComputeMetrics(data, 0.5); err != ErrInsufficientData {
		t.Fatalf("expected ErrInsufficientData below minMetricsN, got %v", err)
	}
}

func TestBrierScorePerfectPredictions(t *testing.T) {
	var data []model.CalibrationDatum
	for i := 0; i < 5; i++ {
		data = append(data, mkDatum(1.0, true), mkDatum(0.0, false))
	}
	m, err := ComputeMetrics(data, 0.5)
	if err != nil {
		t.Fatalf("ComputeMetrics: %v", err)
	}
	if m.BrierScore != 0 {
		t.Errorf("BrierScore = %v, want 0 for perfect predictions", m.BrierScore)
	}
}

func TestBrierScoreWorstCase(t *testing.T) {
	var data []model.CalibrationDatum
	for i := 0; i < 5; i++ {
		data = append(data, mkDatum(0.0, true), mkDatum(1.0, false))
	}
	m, err := ComputeMetrics(data, 0.5)
	if err != nil {
		t.Fatalf("ComputeMetrics: %v", err)
	}
	if math.Abs(m.BrierScore-1.0) > 1e-9 {
		t.Errorf("BrierScore = %v, want 1.0 for maximally wrong predictions", m.BrierScore)
	}
}

func TestROCAUCOmittedWhenAllLabelsPositive(t *testing.T) {
	// Exactly minMetricsN but crafted so we can't reach minAUCN independently in this package;
	// minMetricsN == minAUCN here, so test the undefined case instead: all-positive data.
	var data []model.CalibrationDatum
	for i := 0; i < minAUCN; i++ {
		data = append(data, mkDatum(float64(i)/10, true))
	}
	m, err := ComputeMetrics(data, 0.5)
	if err != nil {
		t.Fatalf("ComputeMetrics: %v", err)
	}
	if m.ROCAUC != nil {
		t.Errorf("expected nil ROCAUC when all labels are positive, got %v", *m.ROCAUC)
	}
}

func TestROCAUCPerfectSeparation(t *testing.T) {
	var data []model.CalibrationDatum
	for i := 0; i < 10; i++ {
		data = append(data, mkDatum(0.9, true), mkDatum(0.1, false))
	}
	m, err := ComputeMetrics(data, 0.5)
	if err != nil {
		t.Fatalf("ComputeMetrics: %v", err)
	}
	if m.ROCAUC == nil {
		t.Fatal("expected a computed ROC-AUC")
	}
	if math.Abs(*m.ROCAUC-1.0) > 1e-9 {
		t.Errorf("ROCAUC = %v, want 1.0 for perfectly separated scores", *m.ROCAUC)
	}
}

func TestExpectedCalibrationErrorWellCalibrated(t *testing.T) {
	var data []model.CalibrationDatum
	for i := 0; i < 10; i++ {
		data = append(data, mkDatum(0.5, i%2 == 0))
	}
	ece := expectedCalibrationError(data, calibrationBins)
	if ece > 0.01 {
		t.Errorf("ECE = %v, want near 0 for a 50%% predicted / 50%% actual bucket", ece)
	}
}
