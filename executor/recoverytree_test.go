package executor

import (
	"testing"

	"github.com/proctriage/triage/model"
)

func TestGetBranchFallsBackToDefault(t *testing.T) {
	tree := killTree()
	branch := tree.GetBranch(model.FailureResourceConflict) // kill_tree does not define this category
	if branch.Diagnosis != tree.DefaultBranch.Diagnosis {
		t.Errorf("expected default branch for unmapped category, got %q", branch.Diagnosis)
	}
}

func TestGetBranchReturnsMappedCategory(t *testing.T) {
	tree := killTree()
	branch := tree.GetBranch(model.FailureTimeout)
	if branch.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", branch.MaxAttempts)
	}
	if len(branch.Alternatives) == 0 {
		t.Fatal("expected timeout branch to carry alternatives")
	}
}

func TestBudgetMapCoversAllCategories(t *testing.T) {
	tree := pauseTree()
	budgets := tree.BudgetMap()
	for _, cat := range allFailureCategories {
		if _, ok := budgets[cat]; !ok {
			t.Errorf("budget map missing category %v", cat)
		}
	}
	if budgets[model.FailureTimeout] != 3 {
		t.Errorf("timeout budget = %d, want 3", budgets[model.FailureTimeout])
	}
	if budgets[model.FailureResourceConflict] != tree.DefaultBranch.MaxAttempts {
		t.Errorf("unmapped category should fall back to default branch's MaxAttempts")
	}
}

func TestDatabaseLookupUnknownAction(t *testing.T) {
	db := NewRecoveryTreeDatabase()
	if _, ok := db.Lookup(model.ActionKeep, model.FailureTimeout); ok {
		t.Error("expected no recovery tree for ActionKeep")
	}
	if _, ok := db.Lookup(model.ActionKill, model.FailureTimeout); !ok {
		t.Error("expected a recovery tree for ActionKill")
	}
}

func TestIdentityMismatchBranchSkipsUnconditionally(t *testing.T) {
	tree := killTree()
	branch := tree.GetBranch(model.FailureIdentityMismatch)
	if len(branch.Alternatives) != 1 || branch.Alternatives[0].Action != RecoverySkip {
		t.Fatalf("expected identity-mismatch branch to offer exactly Skip, got %+v", branch.Alternatives)
	}
}
