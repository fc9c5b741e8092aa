// Package executor implements C6: carrying out a sanctioned action, detecting supervisor-driven
// respawn, and invoking structured recovery on failure (spec §4.6).
package executor

import "github.com/proctriage/triage/model"

// RecoveryAction is the alternative an executor may attempt after a failed action. Grounded
// verbatim on original_source/pt-core/src/action/recovery_tree.rs's RecoveryAction enum.
type RecoveryAction int

const (
	RecoveryRetry RecoveryAction = iota
	RecoveryRetryWithSudo
	RecoveryEscalate // carries an EscalateTo model.Action
	RecoveryStopSupervisor
	RecoveryMaskAndStop
	RecoveryVerifyGoal
	RecoveryCheckRespawn
	RecoveryInvestigate
	RecoveryEscalateToUser
	RecoveryWaitAndRetry // carries a DelayMS
	RecoverySkip
	RecoveryCustom // carries a Command
)

func (a RecoveryAction) String() string {
	switch a {
	case RecoveryRetry:
		return "retry"
	case RecoveryRetryWithSudo:
		return "retry_with_sudo"
	case RecoveryEscalate:
		return "escalate"
	case RecoveryStopSupervisor:
		return "stop_supervisor"
	case RecoveryMaskAndStop:
		return "mask_and_stop"
	case RecoveryVerifyGoal:
		return "verify_goal"
	case RecoveryCheckRespawn:
		return "check_respawn"
	case RecoveryInvestigate:
		return "investigate"
	case RecoveryEscalateToUser:
		return "escalate_to_user"
	case RecoveryWaitAndRetry:
		return "wait_and_retry"
	case RecoverySkip:
		return "skip"
	case RecoveryCustom:
		return "custom"
	}
	return "unknown"
}

// Requirement is a live-system precondition an alternative may demand before it is offered.
type Requirement int

const (
	RequireSudoAvailable Requirement = iota
	RequireProcessExists
	RequireSystemdSupervised
	RequireDockerSupervised
	RequirePm2Supervised
	RequireInDState
	RequireRetryBudgetAvailable
	RequireUserConfirmation
	RequireCgroupV2Available
)

// RecoveryAlternative is one candidate response to a failure, with the requirements that gate it.
type RecoveryAlternative struct {
	Action       RecoveryAction
	EscalateTo   model.Action // valid only when Action == RecoveryEscalate
	DelayMS      uint64       // valid only when Action == RecoveryWaitAndRetry
	Command      string       // valid only when Action == RecoveryCustom
	Explanation  string
	Requirements []Requirement
	Reversible   bool
	CommandHint  string
	Notes        string
}

// RecoveryBranch is the ordered list of alternatives offered for one failure category, plus a
// description of the failure and the attempt budget allotted to this branch.
type RecoveryBranch struct {
	Diagnosis    string
	Alternatives []RecoveryAlternative
	Verification string
	MaxAttempts  int
}

// RecoveryTree maps failure categories to branches for one action kind, falling back to a
// default branch for any category it does not explicitly list.
type RecoveryTree struct {
	Action        model.Action
	Branches      map[model.FailureCategory]RecoveryBranch
	DefaultBranch RecoveryBranch
}

// GetBranch returns the branch for category, or the tree's default branch if unmapped.
func (t RecoveryTree) GetBranch(category model.FailureCategory) RecoveryBranch {
	if b, ok := t.Branches[category]; ok {
		return b
	}
	return t.DefaultBranch
}

// BudgetMap builds a per-category attempt-budget map covering every branch this tree defines,
// falling back to the default branch's budget for any category it does not mention. Used to seed
// a model.RecoverySession for a target about to undergo this action.
func (t RecoveryTree) BudgetMap() map[model.FailureCategory]int {
	m := make(map[model.FailureCategory]int, len(t.Branches)+1)
	for _, cat := range allFailureCategories {
		if b, ok := t.Branches[cat]; ok {
			m[cat] = b.MaxAttempts
		} else {
			m[cat] = t.DefaultBranch.MaxAttempts
		}
	}
	return m
}

var allFailureCategories = []model.FailureCategory{
	model.FailurePermissionDenied,
	model.FailureProcessNotFound,
	model.FailureProcessProtected,
	model.FailureTimeout,
	model.FailureSupervisorConflict,
	model.FailureResourceConflict,
	model.FailureIdentityMismatch,
	model.FailurePreCheckBlocked,
	model.FailureUnexpectedError,
}

func killTree() RecoveryTree {
	return RecoveryTree{
		Action: model.ActionKill,
		Branches: map[model.FailureCategory]RecoveryBranch{
			model.FailurePermissionDenied: {
				Diagnosis: "current user lacks permission to signal this process",
				Alternatives: []RecoveryAlternative{
					{Action: RecoveryRetryWithSudo, Explanation: "retry with elevated privileges",
						Requirements: []Requirement{RequireSudoAvailable}, Reversible: false,
						CommandHint: "sudo kill -TERM <pid>"},
					{Action: RecoveryEscalateToUser, Explanation: "process owned by another user; requires elevated privileges",
						Reversible: true, Notes: "manual intervention required"},
				},
				MaxAttempts: 2,
			},
			model.FailureProcessNotFound: {
				Diagnosis: "process no longer exists",
				Alternatives: []RecoveryAlternative{
					{Action: RecoveryVerifyGoal, Explanation: "check if goal achieved (process may have exited naturally)",
						Reversible: true, CommandHint: "triage verify --session <id>"},
					{Action: RecoveryCheckRespawn, Explanation: "if supervised, check if a replacement spawned",
						Reversible: true, Notes: "look for a new PID with the same command pattern"},
				},
				Verification: "confirm no matching process exists",
				MaxAttempts:  1,
			},
			model.FailureTimeout: {
				Diagnosis: "process did not terminate within the grace period",
				Alternatives: []RecoveryAlternative{
					{Action: RecoveryEscalate, EscalateTo: model.ActionKill, Explanation: "escalate to SIGKILL",
						Requirements: []Requirement{RequireProcessExists}, Reversible: false,
						CommandHint: "kill -9 <pid>", Notes: "SIGKILL cannot be caught or ignored"},
					{Action: RecoveryInvestigate, Explanation: "process may be in uninterruptible sleep",
						Requirements: []Requirement{RequireInDState}, Reversible: true,
						Notes: "D-state processes are waiting on I/O; check device/mount status"},
				},
				Verification: "verify process state changed",
				MaxAttempts:  3,
			},
			model.FailureSupervisorConflict: {
				Diagnosis: "process was killed but immediately respawned by its supervisor",
				Alternatives: []RecoveryAlternative{
					{Action: RecoveryStopSupervisor, Explanation: "stop the supervisor service",
						Requirements: []Requirement{RequireSystemdSupervised}, Reversible: true,
						CommandHint: "systemctl stop <service>"},
					{Action: RecoveryMaskAndStop, Explanation: "mask the unit to prevent auto-restart, then stop",
						Requirements: []Requirement{RequireSystemdSupervised}, Reversible: true,
						CommandHint: "systemctl mask <service> && systemctl stop <service>",
						Notes:       "unmask with: systemctl unmask <service>"},
					{Action: RecoveryCustom, Command: "docker stop <container>", Explanation: "stop the docker container",
						Requirements: []Requirement{RequireDockerSupervised}, Reversible: true,
						CommandHint: "docker stop <container>"},
					{Action: RecoveryCustom, Command: "pm2 stop <app>", Explanation: "stop the pm2 managed application",
						Requirements: []Requirement{RequirePm2Supervised}, Reversible: true,
						CommandHint: "pm2 stop <app>"},
				},
				Verification: "verify process does not respawn",
				MaxAttempts:  3,
			},
			model.FailureIdentityMismatch: {
				Diagnosis: "process identity changed (possible PID reuse)",
				Alternatives: []RecoveryAlternative{
					{Action: RecoverySkip, Explanation: "target process is no longer the intended process; skip action",
						Reversible: true, Notes: "PID may have been recycled to a different process; verify target"},
				},
				MaxAttempts: 1,
			},
			model.FailurePreCheckBlocked: {
				Diagnosis: "action blocked by a safety pre-check",
				Alternatives: []RecoveryAlternative{
					{Action: RecoveryEscalateToUser, Explanation: "safety check prevented action; user override required",
						Requirements: []Requirement{RequireUserConfirmation}, Reversible: true,
						Notes: "review the pre-check reason before overriding"},
				},
				MaxAttempts: 1,
			},
		},
		DefaultBranch: RecoveryBranch{
			Diagnosis: "unexpected failure during action execution",
			Alternatives: []RecoveryAlternative{
				{Action: RecoveryWaitAndRetry, DelayMS: 1000, Explanation: "wait and retry the action",
					Requirements: []Requirement{RequireRetryBudgetAvailable}, Reversible: true},
				{Action: RecoveryEscalateToUser, Explanation: "report failure to user for investigation", Reversible: true},
			},
			MaxAttempts: 2,
		},
	}
}

func pauseTree() RecoveryTree {
	return RecoveryTree{
		Action: model.ActionPause,
		Branches: map[model.FailureCategory]RecoveryBranch{
			model.FailurePermissionDenied: {
				Diagnosis: "current user lacks permission to pause this process",
				Alternatives: []RecoveryAlternative{
					{Action: RecoveryRetryWithSudo, Explanation: "retry with elevated privileges",
						Requirements: []Requirement{RequireSudoAvailable}, Reversible: true,
						CommandHint: "sudo kill -STOP <pid>"},
					{Action: RecoveryEscalateToUser, Explanation: "process owned by another user", Reversible: true},
				},
				MaxAttempts: 2,
			},
			model.FailureProcessNotFound: {
				Diagnosis: "process no longer exists",
				Alternatives: []RecoveryAlternative{
					{Action: RecoveryVerifyGoal, Explanation: "process may have already terminated", Reversible: true},
				},
				MaxAttempts: 1,
			},
			model.FailureTimeout: {
				Diagnosis: "pause signal did not take effect in time",
				Alternatives: []RecoveryAlternative{
					{Action: RecoveryRetry, Explanation: "retry the pause operation",
						Requirements: []Requirement{RequireProcessExists, RequireRetryBudgetAvailable}, Reversible: true,
						Notes: "process may be in a critical section"},
				},
				Verification: "verify process state is 'T' (stopped)",
				MaxAttempts:  3,
			},
			model.FailureIdentityMismatch: {
				Diagnosis: "process identity changed",
				Alternatives: []RecoveryAlternative{
					{Action: RecoverySkip, Explanation: "skip to avoid pausing the wrong process", Reversible: true},
				},
				MaxAttempts: 1,
			},
		},
		DefaultBranch: RecoveryBranch{
			Diagnosis: "unexpected failure during pause",
			Alternatives: []RecoveryAlternative{
				{Action: RecoveryWaitAndRetry, DelayMS: 500, Explanation: "wait and retry",
					Requirements: []Requirement{RequireRetryBudgetAvailable}, Reversible: true},
			},
			MaxAttempts: 2,
		},
	}
}

func reniceTree() RecoveryTree {
	return RecoveryTree{
		Action: model.ActionRenice,
		Branches: map[model.FailureCategory]RecoveryBranch{
			model.FailurePermissionDenied: {
				Diagnosis: "insufficient privileges to change process priority",
				Alternatives: []RecoveryAlternative{
					{Action: RecoveryRetryWithSudo, Explanation: "retry with elevated privileges",
						Requirements: []Requirement{RequireSudoAvailable}, Reversible: true,
						CommandHint: "sudo renice <priority> -p <pid>", Notes: "only root can lower nice values"},
					{Action: RecoveryEscalate, EscalateTo: model.ActionPause, Explanation: "fall back to pausing the process instead",
						Requirements: []Requirement{RequireProcessExists}, Reversible: true,
						Notes: "pause is more aggressive than renice"},
				},
				MaxAttempts: 2,
			},
			model.FailureResourceConflict: {
				Diagnosis: "process priority constrained by cgroup limits",
				Alternatives: []RecoveryAlternative{
					{Action: RecoveryEscalateToUser, Explanation: "cgroup configuration prevents priority change",
						Reversible: true, Notes: "may need to modify cgroup cpu.weight settings"},
				},
				MaxAttempts: 1,
			},
			model.FailureProcessNotFound: {
				Diagnosis: "process no longer exists",
				Alternatives: []RecoveryAlternative{
					{Action: RecoveryVerifyGoal, Explanation: "process may have already terminated", Reversible: true},
				},
				MaxAttempts: 1,
			},
		},
		DefaultBranch: RecoveryBranch{
			Diagnosis: "unexpected failure during renice",
			Alternatives: []RecoveryAlternative{
				{Action: RecoveryWaitAndRetry, DelayMS: 250, Explanation: "wait and retry",
					Requirements: []Requirement{RequireRetryBudgetAvailable}, Reversible: true},
			},
			MaxAttempts: 2,
		},
	}
}

func throttleTree() RecoveryTree {
	return RecoveryTree{
		Action: model.ActionThrottle,
		Branches: map[model.FailureCategory]RecoveryBranch{
			model.FailurePermissionDenied: {
				Diagnosis: "insufficient privileges to modify cgroup settings",
				Alternatives: []RecoveryAlternative{
					{Action: RecoveryRetryWithSudo, Explanation: "retry with elevated privileges",
						Requirements: []Requirement{RequireSudoAvailable}, Reversible: true,
						Notes: "cgroup operations typically require root"},
					{Action: RecoveryEscalate, EscalateTo: model.ActionRenice, Explanation: "fall back to renice (less effective but lower privilege)",
						Requirements: []Requirement{RequireProcessExists}, Reversible: true},
				},
				MaxAttempts: 2,
			},
			model.FailureResourceConflict: {
				Diagnosis: "cgroup v2 not available or hierarchy conflict",
				Alternatives: []RecoveryAlternative{
					{Action: RecoveryEscalate, EscalateTo: model.ActionRenice, Explanation: "fall back to renice",
						Requirements: []Requirement{RequireProcessExists}, Reversible: true},
					{Action: RecoveryEscalate, EscalateTo: model.ActionPause, Explanation: "fall back to pause",
						Requirements: []Requirement{RequireProcessExists}, Reversible: true},
				},
				MaxAttempts: 2,
			},
		},
		DefaultBranch: RecoveryBranch{
			Diagnosis: "unexpected failure during throttle",
			Alternatives: []RecoveryAlternative{
				{Action: RecoveryEscalate, EscalateTo: model.ActionRenice, Explanation: "fall back to renice",
					Requirements: []Requirement{RequireProcessExists}, Reversible: true},
			},
			MaxAttempts: 2,
		},
	}
}

func restartTree() RecoveryTree {
	return RecoveryTree{
		Action: model.ActionRestart,
		Branches: map[model.FailureCategory]RecoveryBranch{
			model.FailurePermissionDenied: {
				Diagnosis: "insufficient privileges to restart service",
				Alternatives: []RecoveryAlternative{
					{Action: RecoveryRetryWithSudo, Explanation: "retry with elevated privileges",
						Requirements: []Requirement{RequireSudoAvailable}, Reversible: true,
						CommandHint: "sudo systemctl restart <service>"},
				},
				MaxAttempts: 2,
			},
			model.FailureSupervisorConflict: {
				Diagnosis: "service is in a conflicting state (starting/stopping)",
				Alternatives: []RecoveryAlternative{
					{Action: RecoveryWaitAndRetry, DelayMS: 5000, Explanation: "wait for service state to stabilize",
						Requirements: []Requirement{RequireRetryBudgetAvailable}, Reversible: true,
						Notes: "service may be in StartPre/StopPost phases"},
				},
				Verification: "verify service reached active state",
				MaxAttempts:  3,
			},
			model.FailureProcessNotFound: {
				Diagnosis: "service unit not found",
				Alternatives: []RecoveryAlternative{
					{Action: RecoveryEscalateToUser, Explanation: "service may need to be created or installed", Reversible: true},
				},
				MaxAttempts: 1,
			},
		},
		DefaultBranch: RecoveryBranch{
			Diagnosis: "unexpected failure during restart",
			Alternatives: []RecoveryAlternative{
				{Action: RecoveryWaitAndRetry, DelayMS: 2000, Explanation: "wait and retry",
					Requirements: []Requirement{RequireRetryBudgetAvailable}, Reversible: true},
			},
			MaxAttempts: 3,
		},
	}
}

// RecoveryTreeDatabase holds the fixed per-action recovery trees (spec §4.6, §9 "implement as a
// map (Action, FailureCategory) -> Branch").
type RecoveryTreeDatabase struct {
	trees map[model.Action]RecoveryTree
}

// NewRecoveryTreeDatabase builds the database with the five built-in trees.
func NewRecoveryTreeDatabase() *RecoveryTreeDatabase {
	return &RecoveryTreeDatabase{
		trees: map[model.Action]RecoveryTree{
			model.ActionKill:     killTree(),
			model.ActionPause:    pauseTree(),
			model.ActionRenice:   reniceTree(),
			model.ActionThrottle: throttleTree(),
			model.ActionRestart:  restartTree(),
		},
	}
}

// GetTree returns the recovery tree for an action, or false if the action has none (Keep never
// fails, so it carries no tree).
func (d *RecoveryTreeDatabase) GetTree(action model.Action) (RecoveryTree, bool) {
	t, ok := d.trees[action]
	return t, ok
}

// Lookup returns the branch for (action, category), or false if the action has no tree at all.
func (d *RecoveryTreeDatabase) Lookup(action model.Action, category model.FailureCategory) (RecoveryBranch, bool) {
	t, ok := d.trees[action]
	if !ok {
		return RecoveryBranch{}, false
	}
	return t.GetBranch(category), true
}
