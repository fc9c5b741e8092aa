package audit

import (
	"bytes"
	"testing"
	"time"

	"github.com/proctriage/triage/model"
	"github.com/proctriage/triage/policy"
)

func sampleRecord() Record {
	return Record{
		RunID:     "run-1",
		Timestamp: time.Unix(1000, 0).UTC(),
		Identity:  model.Identity{PID: 42, StartTimeTicks: 9, HostID: "h1"},
		Action:    model.ActionKill,
		Outcome:   "executed",
		Violations: []policy.Violation{
			{Kind: policy.ViolationMinAgeBreach, Message: "too young", Rule: "min_age_seconds"},
		},
		Attempts: []model.AttemptResult{
			{Action: model.ActionKill, Succeeded: true, AttemptNumber: 1},
		},
	}
}

func TestWriteThenReadRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	rec := sampleRecord()
	if err := w.Write(rec); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := ReadFrom(&buf)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	if got[0].RunID != rec.RunID || got[0].Identity != rec.Identity || got[0].Action != rec.Action {
		t.Errorf("round trip mismatch: got %+v, want %+v", got[0], rec)
	}
	if len(got[0].Violations) != 1 || got[0].Violations[0].Kind != policy.ViolationMinAgeBreach {
		t.Errorf("violations did not round-trip: %+v", got[0].Violations)
	}
}

func TestWriteAppendsMultipleRecordsInOrder(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	for i := 1; i <= 3; i++ {
		rec := sampleRecord()
		rec.Attempts[0].AttemptNumber = i
		if err := w.Write(rec); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	got, err := ReadFrom(&buf)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	for i, r := range got {
		if r.Attempts[0].AttemptNumber != i+1 {
			t.Errorf("record %d out of order: AttemptNumber=%d", i, r.Attempts[0].AttemptNumber)
		}
	}
}

func TestReadAllRoundTripsThroughFile(t *testing.T) {
	path := t.TempDir() + "/audit.jsonl"
	w, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := w.Write(sampleRecord()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	recs, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(recs) != 1 || recs[0].RunID != "run-1" {
		t.Fatalf("unexpected records: %+v", recs)
	}
}

func TestForTargetFiltersByIdentity(t *testing.T) {
	a := sampleRecord()
	b := sampleRecord()
	b.Identity.PID = 99

	out := ForTarget([]Record{a, b}, func(r Record) bool { return r.Identity.PID == 42 })
	if len(out) != 1 || out[0].Identity.PID != 42 {
		t.Fatalf("expected only pid 42, got %+v", out)
	}
}
