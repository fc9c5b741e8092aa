// Package policy implements the C5 policy enforcer: the gate between a decision and its
// execution (spec §4.5). Every action recommendation passes through CheckAction before an
// executor ever sees it.
package policy

// ViolationKind categorizes why an action was blocked (spec §4.5).
type ViolationKind int

const (
	ViolationProtectedPattern ViolationKind = iota
	ViolationProtectedPid
	ViolationProtectedPpid
	ViolationProtectedUser
	ViolationProtectedGroup
	ViolationProtectedCategory
	ViolationMinAgeBreach
	ViolationRateLimitExceeded
	ViolationRobotModeGate
	ViolationDataLossGate
	ViolationForceReview
	ViolationProcessStateInvalid
)

func (k ViolationKind) String() string {
	switch k {
	case ViolationProtectedPattern:
		return "protected_pattern"
	case ViolationProtectedPid:
		return "protected_pid"
	case ViolationProtectedPpid:
		return "protected_ppid"
	case ViolationProtectedUser:
		return "protected_user"
	case ViolationProtectedGroup:
		return "protected_group"
	case ViolationProtectedCategory:
		return "protected_category"
	case ViolationMinAgeBreach:
		return "min_age_breach"
	case ViolationRateLimitExceeded:
		return "rate_limit_exceeded"
	case ViolationRobotModeGate:
		return "robot_mode_gate"
	case ViolationDataLossGate:
		return "data_loss_gate"
	case ViolationForceReview:
		return "force_review"
	case ViolationProcessStateInvalid:
		return "process_state_invalid"
	}
	return "unknown"
}

// Violation explains why check_action blocked an action (spec §4.5).
type Violation struct {
	Kind    ViolationKind `json:"kind"`
	Message string        `json:"message"`
	Rule    string        `json:"rule"`
	Context string        `json:"context,omitempty"`
}

// CheckResult is the outcome of one CheckAction call: allowed or blocked, plus any non-blocking
// warnings accumulated along the way (e.g. a force-review pattern match outside robot mode).
type CheckResult struct {
	Allowed   bool       `json:"allowed"`
	Violation *Violation `json:"violation,omitempty"`
	Warnings  []string   `json:"warnings,omitempty"`
}

func allowed() CheckResult {
	return CheckResult{Allowed: true}
}

func blocked(v Violation) CheckResult {
	return CheckResult{Allowed: false, Violation: &v}
}

func (r CheckResult) withWarning(w string) CheckResult {
	r.Warnings = append(r.Warnings, w)
	return r
}

// CriticalFilesSummary summarizes a candidate's critical-file detections for reporting.
type CriticalFilesSummary struct {
	HardCount        int      `json:"hard_count"`
	SoftCount        int      `json:"soft_count"`
	Rules            []string `json:"rules"`
	RemediationHints []string `json:"remediation_hints"`
}
