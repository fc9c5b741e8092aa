package audit

import (
	"testing"
)

func TestIndexAndFindByRun(t *testing.T) {
	store, err := OpenStore("")
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer store.Close()

	rec := sampleRecord()
	if err := store.Index(rec); err != nil {
		t.Fatalf("Index: %v", err)
	}

	got, err := store.FindByRun("run-1")
	if err != nil {
		t.Fatalf("FindByRun: %v", err)
	}
	if len(got) != 1 || got[0].RunID != "run-1" {
		t.Fatalf("unexpected results: %+v", got)
	}
}

func TestFindByIdentityAcrossRuns(t *testing.T) {
	store, err := OpenStore("")
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer store.Close()

	for _, runID := range []string{"run-1", "run-2"} {
		rec := sampleRecord()
		rec.RunID = runID
		if err := store.Index(rec); err != nil {
			t.Fatalf("Index: %v", err)
		}
	}

	got, err := store.FindByIdentity(42, 9, "h1")
	if err != nil {
		t.Fatalf("FindByIdentity: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records across runs for the same identity, got %d", len(got))
	}
}

func TestFindByIdentityExcludesOtherProcesses(t *testing.T) {
	store, err := OpenStore("")
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer store.Close()

	rec := sampleRecord()
	if err := store.Index(rec); err != nil {
		t.Fatalf("Index: %v", err)
	}

	got, err := store.FindByIdentity(43, 9, "h1")
	if err != nil {
		t.Fatalf("FindByIdentity: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no records for a different pid, got %d", len(got))
	}
}
