package validation

import (
	"encoding/json"
	"testing"

	"github.com/proctriage/triage/model"
)

func detailsJSON(t *testing.T, v map[string]any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal details: %v", err)
	}
	return b
}

func TestFromShadowObservationsExplicitHintWins(t *testing.T) {
	obs := []ShadowObservation{
		{
			IdentityHash: "hash_a", PID: 100, Timestamp: 1000, PAbandoned: 0.9, Recommendation: model.ActionKill,
			Events: []ShadowEvent{
				{Type: ShadowEventEvidenceSnapshot, Details: detailsJSON(t, map[string]any{"comm": "jest"})},
				{Type: ShadowEventProcessExit, Details: detailsJSON(t, map[string]any{"outcome_hint": "user_killed", "exit_code": 0})},
			},
		},
	}

	store, err := FromShadowObservations(obs, 0.5, "")
	if err != nil {
		t.Fatalf("FromShadowObservations: %v", err)
	}
	defer store.Close()

	recs, err := store.Resolved()
	if err != nil {
		t.Fatalf("Resolved: %v", err)
	}
	if len(recs) != 1 || recs[0].GroundTruth == nil || *recs[0].GroundTruth != model.GroundTruthUserKilled {
		t.Fatalf("expected UserKilled from explicit hint, got %+v", recs)
	}
	if recs[0].Comm != "jest" {
		t.Errorf("Comm = %q, want jest", recs[0].Comm)
	}
}

func TestFromShadowObservationsNonzeroExitMapsToCrash(t *testing.T) {
	obs := []ShadowObservation{
		{
			IdentityHash: "hash_b", PID: 200, Timestamp: 1000, PAbandoned: 0.4,
			Events: []ShadowEvent{
				{Type: ShadowEventProcessExit, Details: detailsJSON(t, map[string]any{"exit_code": 1})},
			},
		},
	}
	store, err := FromShadowObservations(obs, 0.5, "")
	if err != nil {
		t.Fatalf("FromShadowObservations: %v", err)
	}
	defer store.Close()

	recs, _ := store.Resolved()
	if len(recs) != 1 || *recs[0].GroundTruth != model.GroundTruthCrash {
		t.Fatalf("expected Crash for nonzero exit, got %+v", recs)
	}
}

func TestFromShadowObservationsZeroExitMapsToNormalExit(t *testing.T) {
	obs := []ShadowObservation{
		{
			IdentityHash: "hash_c", PID: 300, Timestamp: 1000, PAbandoned: 0.2,
			Events: []ShadowEvent{
				{Type: ShadowEventProcessExit, Details: detailsJSON(t, map[string]any{"exit_code": 0})},
			},
		},
	}
	store, err := FromShadowObservations(obs, 0.5, "")
	if err != nil {
		t.Fatalf("FromShadowObservations: %v", err)
	}
	defer store.Close()

	recs, _ := store.Resolved()
	if len(recs) != 1 || *recs[0].GroundTruth != model.GroundTruthNormalExit {
		t.Fatalf("expected NormalExit for zero exit code, got %+v", recs)
	}
}

func TestFromShadowObservationsSignalMapsToCrash(t *testing.T) {
	obs := []ShadowObservation{
		{
			IdentityHash: "hash_d", PID: 400, Timestamp: 1000, PAbandoned: 0.2,
			Events: []ShadowEvent{
				{Type: ShadowEventProcessExit, Details: detailsJSON(t, map[string]any{"exit_signal": 9})},
			},
		},
	}
	store, err := FromShadowObservations(obs, 0.5, "")
	if err != nil {
		t.Fatalf("FromShadowObservations: %v", err)
	}
	defer store.Close()

	recs, _ := store.Resolved()
	if len(recs) != 1 || *recs[0].GroundTruth != model.GroundTruthCrash {
		t.Fatalf("expected Crash when terminated by a signal, got %+v", recs)
	}
}

func TestFromShadowObservationsSkipsObservationsWithoutExit(t *testing.T) {
	obs := []ShadowObservation{
		{IdentityHash: "hash_e", PID: 500, Timestamp: 1000, PAbandoned: 0.5, Events: []ShadowEvent{
			{Type: ShadowEventEvidenceSnapshot, Details: detailsJSON(t, map[string]any{"comm": "bun"})},
		}},
	}
	store, err := FromShadowObservations(obs, 0.5, "")
	if err != nil {
		t.Fatalf("FromShadowObservations: %v", err)
	}
	defer store.Close()

	recs, err := store.Records()
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("expected no prediction synthesized without an exit event, got %+v", recs)
	}
}
