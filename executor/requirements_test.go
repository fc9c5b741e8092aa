package executor

import "testing"

func TestRequirementContextAllMet(t *testing.T) {
	ctx := RequirementContext{SudoAvailable: true, RetryBudget: 2}
	if !ctx.AllMet([]Requirement{RequireSudoAvailable, RequireRetryBudgetAvailable}) {
		t.Error("expected both requirements to be met")
	}
}

func TestRequirementContextPartialMet(t *testing.T) {
	ctx := RequirementContext{SudoAvailable: true, RetryBudget: 0}
	if ctx.AllMet([]Requirement{RequireSudoAvailable, RequireRetryBudgetAvailable}) {
		t.Error("expected RetryBudgetAvailable to fail with zero budget")
	}
}

func TestNoopRequirementCheckerReturnsFixedContext(t *testing.T) {
	checker := NoopRequirementChecker{Default: RequirementContext{ProcessExists: true, InDState: true}}
	ctx := checker.BuildContext(1234)
	if !ctx.ProcessExists || !ctx.InDState {
		t.Errorf("expected fixed context to be returned verbatim, got %+v", ctx)
	}
}

func TestEmptyRequirementsAlwaysMet(t *testing.T) {
	ctx := RequirementContext{}
	if !ctx.AllMet(nil) {
		t.Error("no requirements should always be met")
	}
}
