package validation

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeAgedFile(t *testing.T, root, table, name string, age time.Duration, size int) {
	t.Helper()
	dir := filepath.Join(root, table)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	modTime := time.Now().Add(-age)
	if err := os.Chtimes(path, modTime, modTime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

func TestEnforceTTLExpiredIsPruned(t *testing.T) {
	root := t.TempDir()
	writeAgedFile(t, root, RetentionTableProcSamples, "old.json", 10*24*time.Hour, 100)
	writeAgedFile(t, root, RetentionTableProcSamples, "fresh.json", time.Hour, 100)

	cfg := DefaultRetentionConfig()
	enf := NewEnforcer(root, cfg, "host1", "")

	events, err := enf.Enforce()
	if err != nil {
		t.Fatalf("Enforce: %v", err)
	}
	if len(events) != 1 || events[0].FilePath != filepath.Join(RetentionTableProcSamples, "old.json") {
		t.Fatalf("expected exactly one TTL-expired event for old.json, got %+v", events)
	}
	if events[0].Reason.Kind != ReasonTTLExpired {
		t.Errorf("Reason.Kind = %v, want ReasonTTLExpired", events[0].Reason.Kind)
	}
	if _, err := os.Stat(filepath.Join(root, RetentionTableProcSamples, "old.json")); !os.IsNotExist(err) {
		t.Error("expected old.json to be deleted")
	}
	if _, err := os.Stat(filepath.Join(root, RetentionTableProcSamples, "fresh.json")); err != nil {
		t.Error("expected fresh.json to survive")
	}
}

func TestEnforceDryRunDoesNotDelete(t *testing.T) {
	root := t.TempDir()
	writeAgedFile(t, root, RetentionTableProcSamples, "old.json", 10*24*time.Hour, 100)

	cfg := DefaultRetentionConfig()
	cfg.DryRun = true
	enf := NewEnforcer(root, cfg, "host1", "")

	events, err := enf.Enforce()
	if err != nil {
		t.Fatalf("Enforce: %v", err)
	}
	if len(events) != 1 || !events[0].DryRun {
		t.Fatalf("expected one dry-run event, got %+v", events)
	}
	if _, err := os.Stat(filepath.Join(root, RetentionTableProcSamples, "old.json")); err != nil {
		t.Error("expected old.json to survive a dry run")
	}
}

func TestEnforceKeepEverythingSkipsAllPruning(t *testing.T) {
	root := t.TempDir()
	writeAgedFile(t, root, RetentionTableProcSamples, "old.json", 365*24*time.Hour, 100)

	cfg := DefaultRetentionConfig()
	cfg.KeepEverything = true
	enf := NewEnforcer(root, cfg, "host1", "")

	events, err := enf.Enforce()
	if err != nil {
		t.Fatalf("Enforce: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected no events when keep_everything is set, got %+v", events)
	}
}

func TestEnforceTableBudgetEvictsOldestFirst(t *testing.T) {
	root := t.TempDir()
	writeAgedFile(t, root, RetentionTableRuns, "oldest.json", 3*time.Hour, 1000)
	writeAgedFile(t, root, RetentionTableRuns, "newest.json", time.Hour, 1000)

	cfg := DefaultRetentionConfig()
	cfg.TableBudgetBytes = map[string]int64{RetentionTableRuns: 1500}
	enf := NewEnforcer(root, cfg, "host1", "")

	events, err := enf.Enforce()
	if err != nil {
		t.Fatalf("Enforce: %v", err)
	}
	if len(events) != 1 || events[0].FilePath != filepath.Join(RetentionTableRuns, "oldest.json") {
		t.Fatalf("expected oldest.json evicted for the table budget, got %+v", events)
	}
	if events[0].Reason.Kind != ReasonTableBudgetExceeded {
		t.Errorf("Reason.Kind = %v, want ReasonTableBudgetExceeded", events[0].Reason.Kind)
	}
}

func TestEnforcePersistsEventLog(t *testing.T) {
	root := t.TempDir()
	writeAgedFile(t, root, RetentionTableAudit, "old.json", 200*24*time.Hour, 100)
	logPath := filepath.Join(t.TempDir(), "retention.jsonl")

	cfg := DefaultRetentionConfig()
	enf := NewEnforcer(root, cfg, "host1", logPath)
	if _, err := enf.Enforce(); err != nil {
		t.Fatalf("Enforce: %v", err)
	}

	f, err := os.Open(logPath)
	if err != nil {
		t.Fatalf("open event log: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var count int
	for scanner.Scan() {
		var ev RetentionEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		if ev.HostID != "host1" {
			t.Errorf("HostID = %q, want host1", ev.HostID)
		}
		count++
	}
	if count != 1 {
		t.Errorf("expected 1 persisted event, got %d", count)
	}
}
