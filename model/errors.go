package model

import "fmt"

// ErrorKind is the closed, stable-named error taxonomy from spec §7. Kind strings are used
// verbatim in audit records, so they must never be renamed once recorded.
type ErrorKind string

const (
	ErrProcessGone        ErrorKind = "ProcessGone"
	ErrIdentityMismatch   ErrorKind = "IdentityMismatch"
	ErrPermissionDenied   ErrorKind = "PermissionDenied"
	ErrProcessProtected   ErrorKind = "ProcessProtected"
	ErrTimeout            ErrorKind = "Timeout"
	ErrSupervisorConflict ErrorKind = "SupervisorConflict"
	ErrResourceConflict   ErrorKind = "ResourceConflict"
	ErrPreCheckBlocked    ErrorKind = "PreCheckBlocked"
	ErrUnexpectedError    ErrorKind = "UnexpectedError"
)

// TriageError wraps an underlying error with one of the stable ErrorKinds plus operator-facing
// diagnosis text (spec §7: "every failed action carries a diagnosis string, a suggested next
// step, and a reversibility note").
type TriageError struct {
	Kind         ErrorKind
	Diagnosis    string
	NextStep     string
	Reversible   bool
	Err          error
}

func (e *TriageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Diagnosis, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Diagnosis)
}

func (e *TriageError) Unwrap() error { return e.Err }

// NewTriageError constructs a TriageError wrapping err under the given kind.
func NewTriageError(kind ErrorKind, diagnosis, nextStep string, reversible bool, err error) *TriageError {
	return &TriageError{Kind: kind, Diagnosis: diagnosis, NextStep: nextStep, Reversible: reversible, Err: err}
}

// FailureCategory is the recovery-tree key from spec §4.6 and §9 ("implement as a map
// (Action, FailureCategory) -> Branch"). Grounded verbatim on
// original_source/pt-core/src/action/recovery_tree.rs's FailureCategory enum.
type FailureCategory string

const (
	FailurePermissionDenied   FailureCategory = "PermissionDenied"
	FailureProcessNotFound    FailureCategory = "ProcessNotFound"
	FailureProcessProtected   FailureCategory = "ProcessProtected"
	FailureTimeout            FailureCategory = "Timeout"
	FailureSupervisorConflict FailureCategory = "SupervisorConflict"
	FailureResourceConflict   FailureCategory = "ResourceConflict"
	FailureIdentityMismatch   FailureCategory = "IdentityMismatch"
	FailurePreCheckBlocked    FailureCategory = "PreCheckBlocked"
	FailureUnexpectedError    FailureCategory = "UnexpectedError"
)

// CategoryFromKind maps an ErrorKind onto its corresponding recovery-tree FailureCategory.
// ErrProcessGone has no recovery-tree analog (collector-level vanish is reclassified as
// success-or-skip per spec §7, never retried) and maps to FailureProcessNotFound only for the
// executor path, where a vanished target during execution is a genuine recovery case.
func CategoryFromKind(k ErrorKind) FailureCategory {
	switch k {
	case ErrProcessGone:
		return FailureProcessNotFound
	case ErrIdentityMismatch:
		return FailureIdentityMismatch
	case ErrPermissionDenied:
		return FailurePermissionDenied
	case ErrProcessProtected:
		return FailureProcessProtected
	case ErrTimeout:
		return FailureTimeout
	case ErrSupervisorConflict:
		return FailureSupervisorConflict
	case ErrResourceConflict:
		return FailureResourceConflict
	case ErrPreCheckBlocked:
		return FailurePreCheckBlocked
	}
	return FailureUnexpectedError
}
