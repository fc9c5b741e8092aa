package validation

import (
	"testing"

	"github.com/proctriage/triage/model"
)

func TestAnalyzeBiasGroupsByCategory(t *testing.T) {
	var data []model.CalibrationDatum
	for i := 0; i < 5; i++ {
		data = append(data, model.CalibrationDatum{Predicted: 0.8, Actual: true, ProcType: "test_runner"})
	}
	for i := 0; i < 5; i++ {
		data = append(data, model.CalibrationDatum{Predicted: 0.2, Actual: false, ProcType: "dev_server"})
	}

	bias, err := AnalyzeBias(data)
	if err != nil {
		t.Fatalf("AnalyzeBias: %v", err)
	}
	if len(bias.ByProcType) != 2 {
		t.Fatalf("expected 2 strata, got %d", len(bias.ByProcType))
	}
}

func TestAnalyzeBiasNotSignificantBelowMinN(t *testing.T) {
	var data []model.CalibrationDatum
	for i := 0; i < 10; i++ {
		data = append(data, model.CalibrationDatum{Predicted: 0.9, Actual: false, ProcType: "x"})
	}
	bias, err := AnalyzeBias(data)
	if err != nil {
		t.Fatalf("AnalyzeBias: %v", err)
	}
	for _, r := range bias.ByProcType {
		if r.Significant {
			t.Errorf("stratum %q marked significant below minBiasN, sample_count=%d", r.Stratum, r.SampleCount)
		}
	}
}

func TestAnalyzeBiasSignificantLargeConsistentGap(t *testing.T) {
	var data []model.CalibrationDatum
	for i := 0; i < 40; i++ {
		data = append(data, model.CalibrationDatum{Predicted: 0.9, Actual: false, ProcType: "overconfident"})
	}
	bias, err := AnalyzeBias(data)
	if err != nil {
		t.Fatalf("AnalyzeBias: %v", err)
	}
	found := false
	for _, r := range bias.ByProcType {
		if r.Stratum == "overconfident" {
			found = true
			if !r.Significant {
				t.Errorf("expected a large systematic gap at n=40 to be significant, got %+v", r)
			}
			if r.Bias <= 0 {
				t.Errorf("expected positive bias (overestimates abandonment), got %v", r.Bias)
			}
		}
	}
	if !found {
		t.Fatal("expected 'overconfident' stratum in results")
	}
}

func TestAnalyzeBiasEmptyDataIsInsufficientData(t *testing.T) {
	if _, err := AnalyzeBias(nil); err != ErrInsufficientData {
		t.Fatalf("expected ErrInsufficientData for empty input, got %v", err)
	}
}
