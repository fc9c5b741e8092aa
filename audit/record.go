// Package audit implements the append-only per-run audit trail shared across the pipeline: C3's
// posterior, C5's policy violations, and C6's executor attempts are all recorded into it, and C7
// reads it back later for validation (spec §2, §6). Modeled on engine/eventlog.go and
// engine/recorder.go's JSON-lines recording idiom.
package audit

import (
	"time"

	"github.com/proctriage/triage/model"
	"github.com/proctriage/triage/policy"
)

// Record is one audit entry for a single target within a run (spec §6: "Audit log: append-only
// structured records per run `{run_id, timestamp, identity, posterior, action, violations,
// attempts, outcome}`. JSON lines."). Within one run, records for a single target appear in
// attempt order (spec §5); across targets and runs, no ordering is guaranteed.
type Record struct {
	RunID      string                 `json:"run_id"`
	Timestamp  time.Time              `json:"timestamp"`
	Identity   model.Identity         `json:"identity"`
	Posterior  model.Posterior        `json:"posterior"`
	Action     model.Action           `json:"action"`
	Violations []policy.Violation     `json:"violations,omitempty"`
	Attempts   []model.AttemptResult  `json:"attempts,omitempty"`
	Outcome    string                 `json:"outcome"`
}
