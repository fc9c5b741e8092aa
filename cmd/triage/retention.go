package main

import (
	"path/filepath"

	"github.com/proctriage/triage/validation"
)

// runRetention enforces the default retention policy over root, logging events to
// <dataDir>/retention.jsonl. It runs after the main pass, never blocking it -- retention is
// housekeeping for telemetry already on disk, not a gate on this run's decisions.
func runRetention(root, dataDir string) error {
	cfg := validation.DefaultRetentionConfig()
	enforcer := validation.NewEnforcer(root, cfg, "", filepath.Join(dataDir, "retention.jsonl"))
	_, err := enforcer.Enforce()
	return err
}
