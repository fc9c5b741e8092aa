package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/proctriage/triage/model"
)

// reniceDelta is the nice-value increment applied when the executor carries out a Renice action.
// The spec names renice as a remediation but leaves the exact delta to the implementation; +10 is
// a conservative deprioritization that rarely starves a process outright.
const reniceDelta = 10

// throttleCPUMaxMicros is the cpu.max quota (in microseconds per 100ms period) applied to a
// cgroup v2 hierarchy when the executor carries out a Throttle action — roughly a 20% CPU cap.
const throttleCPUMaxMicros = 20000
const cgroupPeriodMicros = 100000

// sendRenice re-checks identity, then lowers the target's scheduling priority by reniceDelta via
// setpriority(2). Grounded in the same TOCTOU discipline as sendDirectSignal; renice has no
// equivalent in original_source's recovery_tree.rs beyond its PermissionDenied/ResourceConflict
// branches, so the syscall itself is designed directly from spec §4.6's action list.
func sendRenice(checker identityChecker, id model.Identity) (model.FailureCategory, error) {
	current, err := checker.Snapshot(id)
	if err != nil {
		return model.FailureProcessNotFound, err
	}
	if !current.Identity.Equal(id) {
		return model.FailureIdentityMismatch, fmt.Errorf("pid %d start time changed: process identity no longer matches", id.PID)
	}

	prio, err := syscall.Getpriority(syscall.PRIO_PROCESS, id.PID)
	if err != nil {
		return model.FailureUnexpectedError, err
	}
	// Getpriority returns 20-nice; Setpriority takes nice directly.
	niceNow := 20 - prio
	if err := syscall.Setpriority(syscall.PRIO_PROCESS, id.PID, niceNow+reniceDelta); err != nil {
		if err == syscall.EPERM {
			return model.FailurePermissionDenied, err
		}
		if err == syscall.ESRCH {
			return model.FailureProcessNotFound, err
		}
		return model.FailureUnexpectedError, err
	}
	return "", nil
}

// sendThrottle re-checks identity, then writes a reduced cpu.max quota to the process's cgroup v2
// directory. Falls back to FailureResourceConflict if the process has no cgroup v2 membership
// (spec §4.6's renice/throttle recovery branches both name this as the expected failure mode on
// systems without cgroup v2).
func sendThrottle(checker identityChecker, id model.Identity) (model.FailureCategory, error) {
	current, err := checker.Snapshot(id)
	if err != nil {
		return model.FailureProcessNotFound, err
	}
	if !current.Identity.Equal(id) {
		return model.FailureIdentityMismatch, fmt.Errorf("pid %d start time changed: process identity no longer matches", id.PID)
	}

	cgroupDir, err := cgroupV2Dir(current)
	if err != nil {
		return model.FailureResourceConflict, err
	}
	quota := fmt.Sprintf("%d %d", throttleCPUMaxMicros, cgroupPeriodMicros)
	if err := os.WriteFile(filepath.Join(cgroupDir, "cpu.max"), []byte(quota), 0644); err != nil {
		if os.IsPermission(err) {
			return model.FailurePermissionDenied, err
		}
		return model.FailureResourceConflict, err
	}
	return "", nil
}

// cgroupV2Dir resolves the absolute cgroup v2 directory for a snapshot: the first path in
// CgroupPaths that is neither empty nor "/", rooted at /sys/fs/cgroup. CgroupPaths does not record
// which hierarchy a path came from, so v1 controller paths are not told apart from the v2 one.
func cgroupV2Dir(snap *model.Snapshot) (string, error) {
	for _, p := range snap.CgroupPaths {
		if p == "" || p == "/" {
			continue
		}
		return filepath.Join("/sys/fs/cgroup", p), nil
	}
	return "", fmt.Errorf("process has no cgroup v2 membership")
}
