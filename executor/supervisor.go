package executor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/proctriage/triage/model"
)

// SupervisorIntent is the abstract control operation requested of a supervisor, translated into
// a supervisor-specific command by commandFor (spec §4.6).
type SupervisorIntent int

const (
	IntentStop SupervisorIntent = iota
	IntentRestart
	IntentKill
	IntentDelete
)

// defaultCommandTimeout and maxCommandTimeout bound every supervisor-delegated subprocess
// (spec §4.6: "enforced wall-clock timeout (default 30s, hard cap 120s)").
const (
	defaultCommandTimeout = 30 * time.Second
	maxCommandTimeout     = 120 * time.Second
)

// protectedUnits is the second-line defense independent of policy: these units/services must
// never be stopped, restarted, killed, or deleted by this tool regardless of caller privilege
// (spec §4.6 "some units ... must never be stoppable by this tool regardless of caller
// privilege").
var protectedUnits = map[string]struct{}{
	"systemd-journald.service": {},
	"systemd-logind.service":   {},
	"systemd-udevd.service":    {},
	"dbus.service":             {},
	"docker.service":           {},
	"containerd.service":       {},
	"sshd.service":             {},
	"ssh.service":              {},
	"init.scope":               {},
}

// IsProtectedUnit reports whether unit must never be targeted by a supervisor-delegated command,
// independent of anything the policy enforcer allows.
func IsProtectedUnit(unit string) bool {
	_, ok := protectedUnits[unit]
	return ok
}

// commandHint is a supervisor-specific subprocess spec: either an argv command to run, or (for
// nodemon, which has no CLI control surface) a direct signal to the supervising parent instead.
type commandHint struct {
	argv        []string // empty when signal is used instead
	signalPID   int
	signalValue syscall.Signal
}

// commandFor translates intent into the supervisor-specific control command for hint, per
// spec §4.6: "service manager stop/restart, container-runtime stop/kill/rm, process-manager
// stop/restart/delete, launchd bootout/kickstart/kill in the appropriate domain target, nodemon
// via SIGINT to parent, forever via stop <uid>".
func commandFor(hint model.SupervisorHint, intent SupervisorIntent, ppid int) (commandHint, error) {
	if IsProtectedUnit(hint.Unit) {
		return commandHint{}, fmt.Errorf("unit %q is on the protected-unit list", hint.Unit)
	}

	switch hint.Kind {
	case model.SupervisorSystemd:
		switch intent {
		case IntentStop, IntentDelete:
			return commandHint{argv: []string{"systemctl", "stop", hint.Unit}}, nil
		case IntentRestart:
			return commandHint{argv: []string{"systemctl", "restart", hint.Unit}}, nil
		case IntentKill:
			return commandHint{argv: []string{"systemctl", "kill", hint.Unit}}, nil
		}

	case model.SupervisorContainer:
		switch intent {
		case IntentStop:
			return commandHint{argv: []string{"docker", "stop", hint.Unit}}, nil
		case IntentKill:
			return commandHint{argv: []string{"docker", "kill", hint.Unit}}, nil
		case IntentDelete:
			return commandHint{argv: []string{"docker", "rm", "-f", hint.Unit}}, nil
		case IntentRestart:
			return commandHint{argv: []string{"docker", "restart", hint.Unit}}, nil
		}

	case model.SupervisorPM2:
		switch intent {
		case IntentStop:
			return commandHint{argv: []string{"pm2", "stop", hint.Unit}}, nil
		case IntentRestart:
			return commandHint{argv: []string{"pm2", "restart", hint.Unit}}, nil
		case IntentDelete, IntentKill:
			return commandHint{argv: []string{"pm2", "delete", hint.Unit}}, nil
		}

	case model.SupervisorForever:
		switch intent {
		case IntentStop, IntentDelete, IntentKill:
			return commandHint{argv: []string{"forever", "stop", hint.Unit}}, nil
		case IntentRestart:
			return commandHint{argv: []string{"forever", "restart", hint.Unit}}, nil
		}

	case model.SupervisorLaunchd:
		domainTarget := hint.Unit
		if !strings.Contains(domainTarget, "/") {
			domainTarget = "system/" + domainTarget
		}
		switch intent {
		case IntentStop, IntentDelete:
			return commandHint{argv: []string{"launchctl", "bootout", domainTarget}}, nil
		case IntentRestart:
			return commandHint{argv: []string{"launchctl", "kickstart", "-k", domainTarget}}, nil
		case IntentKill:
			return commandHint{argv: []string{"launchctl", "kill", "SIGTERM", domainTarget}}, nil
		}

	case model.SupervisorNodemon:
		// nodemon has no CLI control surface; stop/restart/kill/delete all resolve to SIGINT
		// delivered to the supervising parent, which nodemon treats as a restart request.
		if ppid <= 0 {
			return commandHint{}, fmt.Errorf("nodemon parent pid unknown")
		}
		return commandHint{signalPID: ppid, signalValue: syscall.SIGINT}, nil
	}

	return commandHint{}, fmt.Errorf("no supervisor-delegated command for kind %s intent %d", hint.Kind, intent)
}

// runSupervisorCommand executes hint's argv under a wall-clock timeout (clamped to
// maxCommandTimeout), mirroring collector/diag.go::runCmd's CommandContext + CombinedOutput
// pattern. A signal-only hint (nodemon) delivers the signal directly instead of spawning a
// subprocess.
func runSupervisorCommand(hint commandHint, timeout time.Duration) (model.FailureCategory, string, error) {
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	} else if timeout > maxCommandTimeout {
		timeout = maxCommandTimeout
	}

	if len(hint.argv) == 0 {
		proc, err := os.FindProcess(hint.signalPID)
		if err != nil {
			return model.FailureProcessNotFound, "", err
		}
		if err := proc.Signal(hint.signalValue); err != nil {
			return model.FailureUnexpectedError, "", err
		}
		return "", "", nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, hint.argv[0], hint.argv[1:]...)
	out, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return model.FailureTimeout, string(out), fmt.Errorf("%s timed out after %s", strings.Join(hint.argv, " "), timeout)
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return model.FailureUnexpectedError, string(out), fmt.Errorf("%s: exit %d: %s", strings.Join(hint.argv, " "), exitErr.ExitCode(), strings.TrimSpace(string(out)))
		}
		return model.FailurePermissionDenied, string(out), err
	}
	return "", string(out), nil
}
