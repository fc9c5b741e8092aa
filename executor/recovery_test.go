package executor

import (
	"testing"
	"time"

	"github.com/proctriage/triage/model"
)

func TestFindAlternativesFiltersOnRequirements(t *testing.T) {
	db := NewRecoveryTreeDatabase()
	checker := NoopRequirementChecker{Default: RequirementContext{SudoAvailable: false}}
	exec := NewRecoveryExecutor(db, checker)
	session := model.NewRecoverySession(model.Identity{PID: 1}, killTree().BudgetMap(), 5)

	alts := exec.FindAlternatives(model.ActionKill, model.FailurePermissionDenied, 1, session)
	if len(alts) != 1 || alts[0].Action != RecoveryEscalateToUser {
		t.Fatalf("expected only EscalateToUser to be viable without sudo, got %+v", alts)
	}
}

func TestFindAlternativesRespectsBudget(t *testing.T) {
	db := NewRecoveryTreeDatabase()
	checker := NoopRequirementChecker{Default: RequirementContext{}}
	exec := NewRecoveryExecutor(db, checker)
	session := model.NewRecoverySession(model.Identity{PID: 1}, killTree().BudgetMap(), 5)

	// identity_mismatch branch allows 1 attempt
	session.Record(model.ActionKill, false, model.FailureIdentityMismatch, time.Now(), "")
	alts := exec.FindAlternatives(model.ActionKill, model.FailureIdentityMismatch, 1, session)
	if alts != nil {
		t.Errorf("expected no alternatives once budget is exhausted, got %+v", alts)
	}
}

func TestGetBestAlternativeReturnsFirstViable(t *testing.T) {
	db := NewRecoveryTreeDatabase()
	checker := NoopRequirementChecker{Default: RequirementContext{ProcessExists: true}}
	exec := NewRecoveryExecutor(db, checker)
	session := model.NewRecoverySession(model.Identity{PID: 1}, killTree().BudgetMap(), 5)

	alt, ok := exec.GetBestAlternative(model.ActionKill, model.FailureTimeout, 1, session)
	if !ok || alt.Action != RecoveryEscalate || alt.EscalateTo != model.ActionKill {
		t.Fatalf("expected escalate-to-kill alternative, got %+v ok=%v", alt, ok)
	}
}

func TestGenerateHintNoTreeForKeep(t *testing.T) {
	db := NewRecoveryTreeDatabase()
	checker := NoopRequirementChecker{}
	exec := NewRecoveryExecutor(db, checker)
	session := model.NewRecoverySession(model.Identity{PID: 1}, nil, 5)

	if _, ok := exec.GenerateHint(model.ActionKeep, model.FailureTimeout, 1, session); ok {
		t.Error("ActionKeep has no recovery tree; expected no hint")
	}
}

func TestGenerateHintMarksIrreversibleActions(t *testing.T) {
	db := NewRecoveryTreeDatabase()
	checker := NoopRequirementChecker{Default: RequirementContext{SudoAvailable: true}}
	exec := NewRecoveryExecutor(db, checker)
	session := model.NewRecoverySession(model.Identity{PID: 1}, killTree().BudgetMap(), 5)

	hint, ok := exec.GenerateHint(model.ActionKill, model.FailurePermissionDenied, 1, session)
	if !ok {
		t.Fatal("expected a hint")
	}
	if hint.Reversibility != "this action is not reversible" {
		t.Errorf("expected irreversibility note for retry_with_sudo, got %q", hint.Reversibility)
	}
}
