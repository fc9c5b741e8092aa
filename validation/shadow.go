package validation

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/proctriage/triage/model"
)

// ShadowEventType is the kind of lifecycle event a shadow observation carries. Shadow mode logs
// what the decision pipeline *would have* recommended without ever executing an action, so the
// only way ground truth reaches the ledger is by replaying a process's own exit.
type ShadowEventType int

const (
	ShadowEventEvidenceSnapshot ShadowEventType = iota
	ShadowEventProcessExit
)

// ShadowEvent is one point-in-time event within a ShadowObservation's lifecycle, carrying a
// loosely-typed details payload (mirrors original_source/.../validation.rs's ProcessEvent, whose
// `details` field is an opaque JSON string parsed ad hoc by map_exit_event).
type ShadowEvent struct {
	Type    ShadowEventType
	Details json.RawMessage
}

// ShadowObservation is one historical process's full recorded lifecycle: the prediction the model
// made at evidence-collection time, plus whatever events (including, eventually, its exit) were
// logged for it. Grounded on original_source/.../pt-telemetry/src/shadow.rs's Observation type
// (referenced by validation.rs but not itself present in the retrieval pack, so its shape here is
// inferred from validation.rs's usage: obs.identity_hash, obs.pid, obs.timestamp,
// obs.belief.p_abandoned, obs.belief.recommendation, obs.events).
type ShadowObservation struct {
	IdentityHash string
	PID          int
	Timestamp    int64 // unix seconds; observations are replayed in timestamp order
	PAbandoned   float64
	Recommendation model.Action
	Events       []ShadowEvent
}

type shadowExitDetails struct {
	ExitCode    *int    `json:"exit_code,omitempty"`
	ExitSignal  *int    `json:"exit_signal,omitempty"`
	OutcomeHint string  `json:"outcome_hint,omitempty"`
	Reason      string  `json:"reason,omitempty"`
}

type shadowSnapshotDetails struct {
	Comm string `json:"comm,omitempty"`
}

// FromShadowObservations replays historical shadow-mode observations, in timestamp order, into a
// fresh ledger at dbPath ("" for in-memory). Each observation's ProcessExit event resolves (or
// first synthesizes, then resolves) the prediction for its identity. Grounded on
// ValidationEngine::from_shadow_observations.
func FromShadowObservations(observations []ShadowObservation, threshold float64, dbPath string) (*Store, error) {
	store, err := Open(dbPath)
	if err != nil {
		return nil, err
	}

	ordered := append([]ShadowObservation(nil), observations...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Timestamp < ordered[j].Timestamp })

	for _, obs := range ordered {
		exitEvent, hasExit := findExitEvent(obs.Events)
		if !hasExit {
			continue
		}

		hadUnresolved, err := store.HasUnresolvedIdentity(obs.IdentityHash)
		if err != nil {
			return nil, err
		}
		if !hadUnresolved {
			comm := extractComm(obs.Events)
			if err := store.Upsert(model.ValidationRecord{
				IdentityHash:       obs.IdentityHash,
				PID:                obs.PID,
				PredictedAbandoned: obs.PAbandoned,
				RecommendedAction:  obs.Recommendation,
				Comm:               comm,
				PredictedAt:        time.Unix(obs.Timestamp, 0).UTC(),
			}); err != nil {
				return nil, err
			}
		}

		gt, exitCode, exitSignal, source := mapExitEvent(exitEvent)
		if _, err := store.ResolveByIdentity(obs.IdentityHash, gt, exitCode, exitSignal, source); err != nil {
			return nil, err
		}
	}

	return store, nil
}

func findExitEvent(events []ShadowEvent) (ShadowEvent, bool) {
	for _, e := range events {
		if e.Type == ShadowEventProcessExit {
			return e, true
		}
	}
	return ShadowEvent{}, false
}

// extractComm prefers the comm reported by an EvidenceSnapshot event over whatever an earlier
// event might carry, matching validation.rs's extract_comm_from_events tie-break.
func extractComm(events []ShadowEvent) string {
	preferred := "unknown"
	for _, e := range events {
		var snap shadowSnapshotDetails
		if err := json.Unmarshal(e.Details, &snap); err != nil || snap.Comm == "" {
			continue
		}
		if e.Type == ShadowEventEvidenceSnapshot {
			return snap.Comm
		}
		preferred = snap.Comm
	}
	return preferred
}

// mapExitEvent resolves a ProcessExit event to a ground truth, per spec §4.7: an explicit
// outcome_hint wins; otherwise a nonzero exit code or any signal means Crash, and a clean zero
// exit means NormalExit.
func mapExitEvent(event ShadowEvent) (model.GroundTruth, *int, *int, string) {
	var details shadowExitDetails
	_ = json.Unmarshal(event.Details, &details)

	var source string
	if details.OutcomeHint != "" {
		if gt, ok := mapOutcomeHint(details.OutcomeHint); ok {
			return gt, details.ExitCode, details.ExitSignal, "shadow:hint:" + details.OutcomeHint
		}
	}
	if details.Reason != "" {
		source = "shadow:" + details.Reason
	}

	if details.ExitSignal != nil || (details.ExitCode != nil && *details.ExitCode != 0) {
		if source == "" {
			source = "shadow:exit_status"
		}
		return model.GroundTruthCrash, details.ExitCode, details.ExitSignal, source
	}
	return model.GroundTruthNormalExit, details.ExitCode, details.ExitSignal, source
}

func mapOutcomeHint(hint string) (model.GroundTruth, bool) {
	switch hint {
	case "user_killed", "user_kill":
		return model.GroundTruthUserKilled, true
	case "user_spared", "user_spare":
		return model.GroundTruthUserSpared, true
	case "normal_exit":
		return model.GroundTruthNormalExit, true
	case "external_kill":
		return model.GroundTruthExternalKill, true
	case "system_shutdown":
		return model.GroundTruthSystemShutdown, true
	case "crash":
		return model.GroundTruthCrash, true
	case "still_running":
		return model.GroundTruthStillRunning, true
	case "expired":
		return model.GroundTruthExpired, true
	}
	return 0, false
}
