package validation

import (
	"testing"
	"time"

	"github.com/proctriage/triage/model"
)

func seedEngineFixture(t *testing.T) *Engine {
	t.Helper()
	store, err := Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	records := []struct {
		hash      string
		pid       int
		predicted float64
		action    model.Action
		procType  string
		comm      string
		gt        model.GroundTruth
	}{
		{"hash_a", 100, 0.9, model.ActionKill, "test_runner", "jest", model.GroundTruthUserKilled},
		{"hash_b", 200, 0.3, model.ActionKeep, "dev_server", "next", model.GroundTruthNormalExit},
		{"hash_c", 300, 0.8, model.ActionKill, "test_runner", "pytest", model.GroundTruthNormalExit}, // false positive
		{"hash_d", 400, 0.2, model.ActionKeep, "dev_server", "vite", model.GroundTruthExternalKill},  // false negative
	}

	for _, r := range records {
		if err := store.Track(model.ValidationRecord{
			IdentityHash: r.hash, PID: r.pid, PredictedAbandoned: r.predicted,
			RecommendedAction: r.action, ProcType: r.procType, Comm: r.comm, PredictedAt: time.Now(),
		}); err != nil {
			t.Fatalf("Track: %v", err)
		}
		if _, err := store.ResolveByIdentity(r.hash, r.gt, nil, nil, ""); err != nil {
			t.Fatalf("ResolveByIdentity: %v", err)
		}
	}
	// hash_e left unresolved, mirroring the original fixture.
	if err := store.Track(model.ValidationRecord{
		IdentityHash: "hash_e", PID: 500, PredictedAbandoned: 0.7, RecommendedAction: model.ActionKill,
		ProcType: "test_runner", Comm: "bun", PredictedAt: time.Now(),
	}); err != nil {
		t.Fatalf("Track: %v", err)
	}

	return NewEngine(store, 0.5)
}

func TestComputeReportCounts(t *testing.T) {
	eng := seedEngineFixture(t)
	rep, err := eng.ComputeReport()
	if err != nil {
		t.Fatalf("ComputeReport: %v", err)
	}
	if rep.TotalPredictions != 5 {
		t.Errorf("TotalPredictions = %d, want 5", rep.TotalPredictions)
	}
	if rep.ResolvedPredictions != 4 {
		t.Errorf("ResolvedPredictions = %d, want 4", rep.ResolvedPredictions)
	}
	if rep.PendingPredictions != 1 {
		t.Errorf("PendingPredictions = %d, want 1", rep.PendingPredictions)
	}
}

func TestComputeReportCategoryConfusionMatrix(t *testing.T) {
	eng := seedEngineFixture(t)
	rep, err := eng.ComputeReport()
	if err != nil {
		t.Fatalf("ComputeReport: %v", err)
	}

	var testRunner *CategoryValidation
	for i := range rep.ByCategory {
		if rep.ByCategory[i].Category == "test_runner" {
			testRunner = &rep.ByCategory[i]
		}
	}
	if testRunner == nil {
		t.Fatal("expected a test_runner category breakdown")
	}
	if testRunner.TruePositives != 1 || testRunner.FalsePositives != 1 {
		t.Errorf("test_runner TP/FP = %d/%d, want 1/1", testRunner.TruePositives, testRunner.FalsePositives)
	}
}

func TestComputeReportFalseOutcomes(t *testing.T) {
	eng := seedEngineFixture(t)
	rep, err := eng.ComputeReport()
	if err != nil {
		t.Fatalf("ComputeReport: %v", err)
	}
	if len(rep.TopFalsePositives) != 1 || rep.TopFalsePositives[0].Pattern != "pytest" {
		t.Errorf("expected pytest as the sole false positive, got %+v", rep.TopFalsePositives)
	}
	if len(rep.TopFalseNegatives) != 1 || rep.TopFalseNegatives[0].Pattern != "vite" {
		t.Errorf("expected vite as the sole false negative, got %+v", rep.TopFalseNegatives)
	}
}

func TestComputeReportMetricsOmittedBelowN(t *testing.T) {
	eng := seedEngineFixture(t)
	rep, err := eng.ComputeReport()
	if err != nil {
		t.Fatalf("ComputeReport: %v", err)
	}
	if rep.Metrics != nil {
		t.Error("expected nil Metrics with only 4 resolved records (< minMetricsN)")
	}
	if rep.Bias != nil {
		t.Error("expected nil Bias with only 4 resolved records (< minBiasN)")
	}
}
