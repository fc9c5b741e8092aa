package executor

import (
	"testing"

	"github.com/proctriage/triage/model"
)

type fakeIdentityChecker struct {
	snap *model.Snapshot
	err  error
}

func (f fakeIdentityChecker) Snapshot(model.Identity) (*model.Snapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.snap, nil
}

func TestExecuteKeepAlwaysSucceeds(t *testing.T) {
	ex := New(fakeIdentityChecker{}, NoopRequirementChecker{})
	candidate := model.Candidate{Identity: model.Identity{PID: 1}}
	session := model.NewRecoverySession(candidate.Identity, nil, 5)

	result := ex.Execute(candidate, model.ActionKeep, session)
	if !result.Attempt.Succeeded {
		t.Fatalf("expected ActionKeep to succeed, got %+v", result.Attempt)
	}
	if result.Hint != nil {
		t.Error("expected no recovery hint on success")
	}
}

func TestExecuteRestartWithoutSupervisorFails(t *testing.T) {
	ex := New(fakeIdentityChecker{}, NoopRequirementChecker{})
	candidate := model.Candidate{Identity: model.Identity{PID: 1}}
	session := model.NewRecoverySession(candidate.Identity, restartTree().BudgetMap(), 5)

	result := ex.Execute(candidate, model.ActionRestart, session)
	if result.Attempt.Succeeded {
		t.Fatal("expected restart without a supervisor hint to fail")
	}
}

func TestExecuteKillIdentityMismatchRecordsFailure(t *testing.T) {
	id := model.Identity{PID: 1, StartTimeTicks: 100, HostID: "h1"}
	mismatched := &model.Snapshot{Identity: model.Identity{PID: 1, StartTimeTicks: 200, HostID: "h1"}}
	ex := New(fakeIdentityChecker{snap: mismatched}, NoopRequirementChecker{})
	candidate := model.Candidate{Identity: id}
	session := model.NewRecoverySession(id, killTree().BudgetMap(), 5)

	result := ex.Execute(candidate, model.ActionKill, session)
	if result.Attempt.Succeeded {
		t.Fatal("expected identity mismatch to fail the kill")
	}
	if result.Attempt.FailureReason != model.FailureIdentityMismatch {
		t.Errorf("FailureReason = %v, want IdentityMismatch", result.Attempt.FailureReason)
	}
	if result.Hint == nil {
		t.Error("expected a recovery hint (skip) for identity mismatch")
	}
}

func TestPrimarySupervisorPicksHighestConfidence(t *testing.T) {
	candidate := model.Candidate{Supervisor: []model.SupervisorHint{
		{Kind: model.SupervisorSystemd, Unit: "a.service", Confidence: 0.4},
		{Kind: model.SupervisorPM2, Unit: "b", Confidence: 0.9},
	}}
	hint, ok := primarySupervisor(candidate)
	if !ok || hint.Unit != "b" {
		t.Fatalf("expected pm2 hint with highest confidence, got %+v ok=%v", hint, ok)
	}
}

func TestPrimarySupervisorNoneWhenUnsupervised(t *testing.T) {
	candidate := model.Candidate{Supervisor: []model.SupervisorHint{{Kind: model.SupervisorNone}}}
	if _, ok := primarySupervisor(candidate); ok {
		t.Error("expected no supervisor for an unsupervised candidate")
	}
}
