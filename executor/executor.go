package executor

import (
	"fmt"
	"time"

	"github.com/proctriage/triage/model"
)

// Result is the outcome of one Execute call: whether the action succeeded, the failure category
// if not, and the recovery hint offered for the caller's next attempt.
type Result struct {
	Attempt model.AttemptResult
	Hint    *RecoveryHint
	Output  string
}

// Executor carries out sanctioned actions (direct signal or supervisor-delegated), detects
// supervisor-driven respawn, and consults the recovery-tree database on failure (spec §4.6).
type Executor struct {
	identity identityChecker
	database *RecoveryTreeDatabase
	recovery *RecoveryExecutor
	checker  RequirementChecker
}

// New builds an Executor. identity is typically a *collector.Collector; checker is typically a
// *LiveRequirementChecker.
func New(identity identityChecker, checker RequirementChecker) *Executor {
	db := NewRecoveryTreeDatabase()
	return &Executor{
		identity: identity,
		database: db,
		recovery: NewRecoveryExecutor(db, checker),
		checker:  checker,
	}
}

// RecoveryTreeFor exposes the fixed recovery tree for action, so a caller building a
// RecoverySession up front (to size its per-category budgets) doesn't need its own database
// handle alongside the Executor's.
func (e *Executor) RecoveryTreeFor(action model.Action) (RecoveryTree, bool) {
	return e.database.GetTree(action)
}

// Execute carries out action against candidate, recording the attempt in session and returning
// the outcome plus (on failure) a recovery hint computed against the current live system.
func (e *Executor) Execute(candidate model.Candidate, action model.Action, session *model.RecoverySession) Result {
	started := time.Now()

	cat, output, err := e.perform(candidate, action)
	if err == nil {
		attempt := session.Record(action, true, "", started, "")
		return Result{Attempt: attempt, Output: output}
	}

	// The hint is computed before this failure is charged to the session's budget.
	hint, hasHint := e.recovery.GenerateHint(action, cat, candidate.Identity.PID, session)
	attempt := session.Record(action, false, cat, started, err.Error())
	result := Result{Attempt: attempt, Output: output}
	if hasHint {
		result.Hint = &hint
	}
	return result
}

// perform dispatches to the direct-signal, local-syscall, or supervisor-delegated path
// appropriate for action, per spec §4.6's two execution modes (local syscalls for renice/
// throttle are a third path the spec's action list requires but does not name a mode for).
func (e *Executor) perform(candidate model.Candidate, action model.Action) (model.FailureCategory, string, error) {
	switch action {
	case model.ActionKill, model.ActionPause:
		if sup, ok := primarySupervisor(candidate); ok && action == model.ActionKill {
			return e.performSupervisorDelegated(candidate, sup, IntentStop)
		}
		sig, ok := signalForAction(action, false)
		if !ok {
			return model.FailureUnexpectedError, "", fmt.Errorf("no direct signal for action %s", action)
		}
		cat, err := sendDirectSignal(e.identity, candidate.Identity, sig)
		return cat, "", err

	case model.ActionRenice:
		cat, err := sendRenice(e.identity, candidate.Identity)
		return cat, "", err

	case model.ActionThrottle:
		cat, err := sendThrottle(e.identity, candidate.Identity)
		return cat, "", err

	case model.ActionRestart:
		sup, ok := primarySupervisor(candidate)
		if !ok {
			return model.FailureUnexpectedError, "", fmt.Errorf("restart requires a supervised process")
		}
		return e.performSupervisorDelegated(candidate, sup, IntentRestart)

	case model.ActionKeep:
		return "", "", nil
	}
	return model.FailureUnexpectedError, "", fmt.Errorf("unhandled action %s", action)
}

// performSupervisorDelegated runs the supervisor-specific command for intent, then polls for
// respawn once the command completes without error (spec §4.6's respawn-detection step runs
// "after a stop command completes").
func (e *Executor) performSupervisorDelegated(candidate model.Candidate, hint model.SupervisorHint, intent SupervisorIntent) (model.FailureCategory, string, error) {
	cmd, err := commandFor(hint, intent, candidate.PPID)
	if err != nil {
		return model.FailureProcessProtected, "", err
	}
	cat, out, err := runSupervisorCommand(cmd, defaultCommandTimeout)
	if err != nil {
		return cat, out, err
	}
	if intent == IntentStop && DetectRespawn(hint) {
		return model.FailureSupervisorConflict, out, fmt.Errorf("%s respawned %s after stop", hint.Kind, hint.Unit)
	}
	return "", out, nil
}

// primarySupervisor returns the highest-confidence supervisor hint for a candidate, if any.
func primarySupervisor(candidate model.Candidate) (model.SupervisorHint, bool) {
	best := model.SupervisorHint{}
	found := false
	for _, h := range candidate.Supervisor {
		if h.Kind == model.SupervisorNone {
			continue
		}
		if !found || h.Confidence > best.Confidence {
			best, found = h, true
		}
	}
	return best, found
}
