package main

import (
	"time"

	"github.com/proctriage/triage/decision"
	"github.com/proctriage/triage/model"
	"github.com/proctriage/triage/policy"
)

// Row is one target's full outcome for a single host pass, the JSON unit cmd/triage emits --
// mirroring the teacher's runJSON's "one map per snapshot" idiom (cmd/root.go) but shaped around
// a process decision instead of a host metrics snapshot.
type Row struct {
	Identity  model.Identity        `json:"identity"`
	Comm      string                `json:"comm"`
	Category  string                `json:"category"`
	Posterior model.Posterior       `json:"posterior"`
	Decision  decision.Decision     `json:"decision"`
	Violation *policy.Violation     `json:"violation,omitempty"`
	Warnings  []string              `json:"warnings,omitempty"`
	Executed  bool                  `json:"executed"`
	Attempt   *model.AttemptResult  `json:"attempt,omitempty"`
	Hint      string                `json:"recovery_hint,omitempty"`
}

// Report is the top-level JSON document for one invocation of cmd/triage.
type Report struct {
	RunID      string    `json:"run_id"`
	HostID     string    `json:"host_id"`
	Timestamp  time.Time `json:"timestamp"`
	Preset     string    `json:"preset,omitempty"`
	Rows       []Row     `json:"rows"`
	Warnings   []string  `json:"collector_warnings,omitempty"`
	Blocked    int       `json:"blocked_count"`
	Executed   int       `json:"executed_count"`
	FailedExec int       `json:"failed_execution_count"`
}
