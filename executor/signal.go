package executor

import (
	"fmt"
	"os"
	"syscall"

	"github.com/proctriage/triage/model"
)

// identityChecker re-reads a process's current identity for the pre-signal TOCTOU guard.
// collector.Collector satisfies this via its Snapshot method.
type identityChecker interface {
	Snapshot(id model.Identity) (*model.Snapshot, error)
}

// signalForAction maps a decision action onto the direct signal used to carry it out
// (spec §4.6: "send SIGTERM/SIGKILL/SIGSTOP/SIGCONT/SIGINT"). force selects the escalated
// signal for actions that have one (SIGKILL over SIGTERM).
func signalForAction(action model.Action, force bool) (syscall.Signal, bool) {
	switch action {
	case model.ActionKill:
		if force {
			return syscall.SIGKILL, true
		}
		return syscall.SIGTERM, true
	case model.ActionPause:
		return syscall.SIGSTOP, true
	}
	return 0, false
}

// sendDirectSignal re-checks the target's identity immediately before delivery, then sends sig.
// A start-time mismatch aborts with FailureIdentityMismatch before any signal is sent
// (spec §4.6: "TOCTOU guard against PID reuse").
func sendDirectSignal(checker identityChecker, id model.Identity, sig syscall.Signal) (model.FailureCategory, error) {
	current, err := checker.Snapshot(id)
	if err != nil {
		return model.FailureProcessNotFound, err
	}
	if !current.Identity.Equal(id) {
		return model.FailureIdentityMismatch, fmt.Errorf("pid %d start time changed: process identity no longer matches", id.PID)
	}

	proc, err := os.FindProcess(id.PID)
	if err != nil {
		return model.FailureProcessNotFound, err
	}
	if err := proc.Signal(sig); err != nil {
		if err == os.ErrProcessDone {
			return model.FailureProcessNotFound, err
		}
		if err == syscall.EPERM {
			return model.FailurePermissionDenied, err
		}
		return model.FailureUnexpectedError, err
	}
	return "", nil
}
