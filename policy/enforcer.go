package policy

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/proctriage/triage/config"
	"github.com/proctriage/triage/model"
)

// Enforcer is the policy enforcement engine (spec §4.5). It compiles a Policy's patterns once
// at construction and is safe for concurrent use across a daemon's lifetime. It has no in-place
// reload: a changed policy takes effect only through a new Enforcer.
type Enforcer struct {
	protectedPatterns   []compiledPattern
	forceReviewPatterns []compiledPattern

	protectedUsers      map[string]struct{}
	protectedGroups     map[string]struct{}
	protectedCategories map[string]struct{}
	neverKillPID        map[int]struct{}
	neverKillPPID       map[int]struct{}

	minAgeSeconds       int64
	requireConfirmation bool

	robotMode     config.RobotMode
	dataLossGates config.DataLossGates

	rateLimiter *rateLimiter
	loadedAt    time.Time
}

// NewEnforcer compiles a Policy into an Enforcer. dbPath selects the rate limiter's sqlite store;
// an empty path uses an in-memory store (no cross-restart budget persistence).
func NewEnforcer(p config.Policy, dbPath string) (*Enforcer, error) {
	protectedPatterns, err := compilePatterns(p.Guardrails.ProtectedPatterns, "guardrails.protected_patterns")
	if err != nil {
		return nil, err
	}
	forceReviewPatterns, err := compilePatterns(p.Guardrails.ForceReviewPatterns, "guardrails.force_review_patterns")
	if err != nil {
		return nil, err
	}

	rl, err := newRateLimiter(p.Guardrails, dbPath)
	if err != nil {
		return nil, err
	}

	return &Enforcer{
		protectedPatterns:   protectedPatterns,
		forceReviewPatterns: forceReviewPatterns,
		protectedUsers:      toLowerSet(p.Guardrails.ProtectedUsers),
		protectedGroups:     toLowerSet(p.Guardrails.ProtectedGroups),
		protectedCategories: toLowerSet(p.Guardrails.ProtectedCategories),
		neverKillPID:        toIntSet(p.Guardrails.NeverKillPID),
		neverKillPPID:       toIntSet(p.Guardrails.NeverKillPPID),
		minAgeSeconds:       int64(p.Guardrails.MinProcessAgeSeconds),
		requireConfirmation: p.Guardrails.RequireConfirmation,
		robotMode:           p.RobotMode,
		dataLossGates:       p.DataLossGates,
		rateLimiter:         rl,
		loadedAt:            time.Now(),
	}, nil
}

func toLowerSet(vals []string) map[string]struct{} {
	m := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		m[strings.ToLower(v)] = struct{}{}
	}
	return m
}

func toIntSet(vals []int) map[int]struct{} {
	m := make(map[int]struct{}, len(vals))
	for _, v := range vals {
		m[v] = struct{}{}
	}
	return m
}

// Close releases the enforcer's rate limiter store.
func (e *Enforcer) Close() error {
	return e.rateLimiter.close()
}

func isDestructive(a model.Action) bool {
	return a == model.ActionKill || a == model.ActionRestart
}

func isSignalAction(a model.Action) bool {
	return a == model.ActionKill || a == model.ActionPause
}

// CheckAction runs the full ordered guardrail pipeline against one candidate and a proposed
// action, in the exact order spec §4.5 specifies: never-kill pid/ppid, process-state constraints,
// protected patterns, protected user/group/category, force-review patterns, minimum age, robot
// mode gates, data-loss gates, then rate limits. The first hard violation short-circuits the rest;
// non-blocking findings accumulate as warnings on an otherwise-allowed result.
func (e *Enforcer) CheckAction(candidate model.Candidate, action model.Action, robotMode bool) CheckResult {
	var warnings []string
	destructive := isDestructive(action)

	if _, blocked := e.neverKillPID[candidate.Identity.PID]; blocked {
		return CheckResult{Allowed: false, Violation: &Violation{
			Kind:    ViolationProtectedPid,
			Message: fmt.Sprintf("PID %d is in the never_kill_pid list", candidate.Identity.PID),
			Rule:    "guardrails.never_kill_pid",
		}}
	}

	if _, blocked := e.neverKillPPID[candidate.PPID]; blocked {
		return CheckResult{Allowed: false, Violation: &Violation{
			Kind:    ViolationProtectedPpid,
			Message: fmt.Sprintf("PID %d has parent %d which is in never_kill_ppid list", candidate.Identity.PID, candidate.PPID),
			Rule:    "guardrails.never_kill_ppid",
		}}
	}

	if v := e.checkProcessStateConstraints(candidate, action); v != nil {
		return CheckResult{Allowed: false, Violation: v}
	}

	cmdline := strings.Join(candidate.Cmdline, " ")
	for _, pat := range e.protectedPatterns {
		if pat.matches(cmdline) {
			return CheckResult{Allowed: false, Violation: &Violation{
				Kind:    ViolationProtectedPattern,
				Message: fmt.Sprintf("command matches protected pattern: %s", pat.original),
				Rule:    "guardrails.protected_patterns",
				Context: pat.notes,
			}}
		}
	}

	if candidate.User != "" {
		if _, blocked := e.protectedUsers[strings.ToLower(candidate.User)]; blocked {
			return CheckResult{Allowed: false, Violation: &Violation{
				Kind:    ViolationProtectedUser,
				Message: fmt.Sprintf("user '%s' is protected", candidate.User),
				Rule:    "guardrails.protected_users",
			}}
		}
	}

	if candidate.Group != "" {
		if _, blocked := e.protectedGroups[strings.ToLower(candidate.Group)]; blocked {
			return CheckResult{Allowed: false, Violation: &Violation{
				Kind:    ViolationProtectedGroup,
				Message: fmt.Sprintf("group '%s' is protected", candidate.Group),
				Rule:    "guardrails.protected_groups",
			}}
		}
	}

	if candidate.Category != "" {
		if _, blocked := e.protectedCategories[strings.ToLower(candidate.Category)]; blocked {
			return CheckResult{Allowed: false, Violation: &Violation{
				Kind:    ViolationProtectedCategory,
				Message: fmt.Sprintf("category '%s' is protected", candidate.Category),
				Rule:    "guardrails.protected_categories",
			}}
		}
	}

	for _, pat := range e.forceReviewPatterns {
		if !pat.matches(cmdline) {
			continue
		}
		if robotMode {
			return CheckResult{Allowed: false, Violation: &Violation{
				Kind:    ViolationForceReview,
				Message: fmt.Sprintf("command matches force_review pattern (robot mode): %s", pat.original),
				Rule:    "guardrails.force_review_patterns",
				Context: pat.notes,
			}}
		}
		note := pat.notes
		if note == "" {
			note = "requires manual review"
		}
		warnings = append(warnings, fmt.Sprintf("matches force_review pattern: %s (%s)", pat.original, note))
		break
	}

	if destructive && candidate.AgeSeconds < e.minAgeSeconds {
		return CheckResult{Allowed: false, Violation: &Violation{
			Kind:    ViolationMinAgeBreach,
			Message: fmt.Sprintf("process age %ds is below minimum %ds", candidate.AgeSeconds, e.minAgeSeconds),
			Rule:    "guardrails.min_process_age_seconds",
		}}
	}

	if robotMode {
		if v := e.checkRobotModeGates(candidate); v != nil {
			return CheckResult{Allowed: false, Violation: v}
		}
	}

	if destructive {
		if v := e.checkDataLossGates(candidate); v != nil {
			return CheckResult{Allowed: false, Violation: v}
		}
	}

	if action == model.ActionKill {
		var overrideMax *int
		if robotMode {
			m := e.robotMode.MaxKills
			overrideMax = &m
		}
		if _, err := e.rateLimiter.check(time.Now(), overrideMax); err != nil {
			return CheckResult{Allowed: false, Violation: &Violation{
				Kind:    ViolationRateLimitExceeded,
				Message: err.Error(),
				Rule:    "guardrails.max_kills_per_run",
			}}
		}
	}

	result := allowed()
	for _, w := range warnings {
		result = result.withWarning(w)
	}
	return result
}

func (e *Enforcer) checkProcessStateConstraints(candidate model.Candidate, action model.Action) *Violation {
	if !isSignalAction(action) {
		return nil
	}

	if candidate.State == model.StateZombie {
		return &Violation{
			Kind: ViolationProcessStateInvalid,
			Message: fmt.Sprintf(
				"PID %d is a zombie (Z state): process is already dead, only its parent (PPID %d) can reap it",
				candidate.Identity.PID, candidate.PPID),
			Rule: "process_state.zombie",
			Context: "Zombie processes cannot be killed. Consider restarting the parent " +
				"process or its supervisor to clean up the zombie.",
		}
	}

	if candidate.State == model.StateDiskSleep && action == model.ActionKill {
		wchanInfo := ""
		if candidate.Wchan != "" {
			wchanInfo = fmt.Sprintf(" (blocked in kernel: %s)", candidate.Wchan)
		}
		return &Violation{
			Kind: ViolationProcessStateInvalid,
			Message: fmt.Sprintf(
				"PID %d is in uninterruptible sleep (D state)%s: kill action is unreliable and may fail",
				candidate.Identity.PID, wchanInfo),
			Rule: "process_state.disksleep",
			Context: "D-state processes are blocked in kernel I/O and may ignore SIGKILL. " +
				"Consider investigating the underlying I/O issue (check mounts, disk health, " +
				"NFS locks) instead of killing.",
		}
	}

	return nil
}

func (e *Enforcer) checkRobotModeGates(candidate model.Candidate) *Violation {
	if !e.robotMode.Enabled {
		return &Violation{
			Kind:    ViolationRobotModeGate,
			Message: "robot_mode.enabled is false",
			Rule:    "robot_mode.enabled",
		}
	}

	_, posterior := candidate.Posterior.MAP()
	if posterior < e.robotMode.MinPosterior {
		return &Violation{
			Kind:    ViolationRobotModeGate,
			Message: fmt.Sprintf("posterior %.4f is below robot_mode.min_posterior %.4f", posterior, e.robotMode.MinPosterior),
			Rule:    "robot_mode.min_posterior",
		}
	}

	if candidate.MemoryMB > e.robotMode.MaxBlastRadiusMB {
		return &Violation{
			Kind: ViolationRobotModeGate,
			Message: fmt.Sprintf("memory usage %s exceeds robot_mode.max_blast_radius_mb %s",
				humanize.Bytes(uint64(candidate.MemoryMB*1024*1024)),
				humanize.Bytes(uint64(e.robotMode.MaxBlastRadiusMB*1024*1024))),
			Rule: "robot_mode.max_blast_radius_mb",
		}
	}

	if e.robotMode.RequireKnownSignature && !candidate.SignatureKnown {
		return &Violation{
			Kind:    ViolationRobotModeGate,
			Message: "robot_mode.require_known_signature is true but process has no known signature",
			Rule:    "robot_mode.require_known_signature",
		}
	}

	if candidate.Category != "" {
		catLower := strings.ToLower(candidate.Category)
		for _, c := range e.robotMode.ExcludeCategories {
			if strings.ToLower(c) == catLower {
				return &Violation{
					Kind:    ViolationRobotModeGate,
					Message: fmt.Sprintf("category '%s' is in robot_mode.exclude_categories", candidate.Category),
					Rule:    "robot_mode.exclude_categories",
				}
			}
		}
		if len(e.robotMode.AllowCategories) > 0 {
			allowed := false
			for _, c := range e.robotMode.AllowCategories {
				if strings.ToLower(c) == catLower {
					allowed = true
					break
				}
			}
			if !allowed {
				return &Violation{
					Kind:    ViolationRobotModeGate,
					Message: fmt.Sprintf("category '%s' is not in robot_mode.allow_categories", candidate.Category),
					Rule:    "robot_mode.allow_categories",
				}
			}
		}
	}

	if e.HasHardCriticalFiles(candidate) {
		for _, cf := range candidate.CriticalFiles {
			if cf.Strength == model.StrengthHard {
				return &Violation{
					Kind: ViolationRobotModeGate,
					Message: fmt.Sprintf("robot mode blocked: process has hard critical file '%s' (rule: %s)",
						cf.Path, cf.RuleID),
					Rule: "robot_mode.data_loss_gate",
					Context: fmt.Sprintf("Detected %s lock. Remediation: %s", cf.Category, cf.Category.RemediationHint()),
				}
			}
		}
	}

	return nil
}

func (e *Enforcer) checkDataLossGates(candidate model.Candidate) *Violation {
	for _, cf := range candidate.CriticalFiles {
		if cf.Strength == model.StrengthHard {
			return &Violation{
				Kind:    ViolationDataLossGate,
				Message: fmt.Sprintf("process has critical lock: %s (%s)", cf.Path, cf.Category.RemediationHint()),
				Rule:    fmt.Sprintf("data_loss_gates.critical_file.%s", cf.RuleID),
				Context: fmt.Sprintf("Detected %s with rule '%s'. Remediation: %s", cf.Category, cf.RuleID, cf.Category.RemediationHint()),
			}
		}
	}

	if e.dataLossGates.BlockIfOpenWriteFDs {
		maxFDs := 0
		if e.dataLossGates.MaxOpenWriteFDs != nil {
			maxFDs = *e.dataLossGates.MaxOpenWriteFDs
		}
		if candidate.OpenWriteFDCount > maxFDs {
			var softHints []string
			for _, cf := range candidate.CriticalFiles {
				if cf.Strength == model.StrengthSoft {
					softHints = append(softHints, fmt.Sprintf("%s: %s", cf.Path, cf.Category.RemediationHint()))
				}
			}
			context := "killing may cause data loss"
			if len(softHints) > 0 {
				context = fmt.Sprintf("killing may cause data loss. Detected files:\n%s", strings.Join(softHints, "\n"))
			}
			return &Violation{
				Kind:    ViolationDataLossGate,
				Message: fmt.Sprintf("process has %d open write FDs (max allowed: %d)", candidate.OpenWriteFDCount, maxFDs),
				Rule:    "data_loss_gates.block_if_open_write_fds",
				Context: context,
			}
		}
	}

	if e.dataLossGates.BlockIfLockedFiles && candidate.HasLockedFiles {
		return &Violation{
			Kind:    ViolationDataLossGate,
			Message: "process has locked files",
			Rule:    "data_loss_gates.block_if_locked_files",
			Context: "killing may corrupt locked files",
		}
	}

	if e.dataLossGates.BlockIfActiveTTY && candidate.TTYAttached {
		return &Violation{
			Kind:    ViolationDataLossGate,
			Message: "process has active TTY",
			Rule:    "data_loss_gates.block_if_active_tty",
			Context: "process may be interactive",
		}
	}

	if e.dataLossGates.BlockIfDeletedCWD && candidate.CWDDeleted {
		return &Violation{
			Kind:    ViolationDataLossGate,
			Message: "process CWD is deleted",
			Rule:    "data_loss_gates.block_if_deleted_cwd",
			Context: "process may be orphaned or stale",
		}
	}

	if e.dataLossGates.BlockIfRecentIOSeconds != nil && candidate.SecondsSinceIO != nil {
		threshold := int64(*e.dataLossGates.BlockIfRecentIOSeconds)
		if *candidate.SecondsSinceIO < threshold {
			return &Violation{
				Kind:    ViolationDataLossGate,
				Message: fmt.Sprintf("process had I/O %ds ago (threshold: %ds)", *candidate.SecondsSinceIO, threshold),
				Rule:    "data_loss_gates.block_if_recent_io_seconds",
				Context: "process may be actively writing",
			}
		}
	}

	return nil
}

// HasHardCriticalFiles reports whether any critical file on the candidate is a hard match.
func (e *Enforcer) HasHardCriticalFiles(candidate model.Candidate) bool {
	for _, cf := range candidate.CriticalFiles {
		if cf.Strength == model.StrengthHard {
			return true
		}
	}
	return false
}

// CriticalFilesSummary builds a reporting summary of a candidate's critical-file detections, or
// nil if it has none.
func (e *Enforcer) CriticalFilesSummary(candidate model.Candidate) *CriticalFilesSummary {
	if len(candidate.CriticalFiles) == 0 {
		return nil
	}
	var hard, soft int
	var rules, hints []string
	for _, cf := range candidate.CriticalFiles {
		if cf.Strength == model.StrengthHard {
			hard++
		} else {
			soft++
		}
		rules = append(rules, cf.RuleID)
		hints = append(hints, cf.Category.RemediationHint())
	}
	return &CriticalFilesSummary{HardCount: hard, SoftCount: soft, Rules: rules, RemediationHints: hints}
}

// RequiresConfirmation reports whether the policy requires human confirmation before acting.
func (e *Enforcer) RequiresConfirmation() bool {
	return e.requireConfirmation
}

// PolicyAge returns how long this Enforcer has been in effect since construction, for daemon
// hot-reload staleness checks (spec §9).
func (e *Enforcer) PolicyAge() time.Duration {
	return time.Since(e.loadedAt)
}

// ShouldReload reports whether the enforcer's policy has been active longer than maxAge.
func (e *Enforcer) ShouldReload(maxAge time.Duration) bool {
	return e.PolicyAge() > maxAge
}

// ResetRunCounters resets the rate limiter's per-run counter; call at the start of a new run.
func (e *Enforcer) ResetRunCounters() error {
	return e.rateLimiter.resetRunCounter()
}

// CurrentRunKillCount returns the number of kills recorded since the last ResetRunCounters.
func (e *Enforcer) CurrentRunKillCount() int {
	n, err := e.rateLimiter.currentRunCount()
	if err != nil {
		return 0
	}
	return n
}

// RecordKill commits a kill against the rate-limit budget. Call this only once the executor has
// actually sent the signal; CheckAction's rate-limit check never mutates state on its own.
func (e *Enforcer) RecordKill() (RateLimitCounts, error) {
	return e.rateLimiter.recordKill(time.Now())
}
