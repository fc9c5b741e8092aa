package executor

import (
	"testing"

	"github.com/proctriage/triage/model"
)

func TestCommandForSystemdStop(t *testing.T) {
	hint := model.SupervisorHint{Kind: model.SupervisorSystemd, Unit: "myapp.service"}
	cmd, err := commandFor(hint, IntentStop, 0)
	if err != nil {
		t.Fatalf("commandFor: %v", err)
	}
	want := []string{"systemctl", "stop", "myapp.service"}
	if len(cmd.argv) != len(want) {
		t.Fatalf("argv = %v, want %v", cmd.argv, want)
	}
	for i := range want {
		if cmd.argv[i] != want[i] {
			t.Fatalf("argv = %v, want %v", cmd.argv, want)
		}
	}
}

func TestCommandForRejectsProtectedUnit(t *testing.T) {
	hint := model.SupervisorHint{Kind: model.SupervisorSystemd, Unit: "sshd.service"}
	if _, err := commandFor(hint, IntentStop, 0); err == nil {
		t.Fatal("expected an error for a protected unit")
	}
}

func TestCommandForNodemonUsesSignal(t *testing.T) {
	hint := model.SupervisorHint{Kind: model.SupervisorNodemon, Unit: "app.js"}
	cmd, err := commandFor(hint, IntentRestart, 4242)
	if err != nil {
		t.Fatalf("commandFor: %v", err)
	}
	if cmd.signalPID != 4242 || len(cmd.argv) != 0 {
		t.Fatalf("expected signal-only command targeting ppid 4242, got %+v", cmd)
	}
}

func TestCommandForLaunchdQualifiesDomainTarget(t *testing.T) {
	hint := model.SupervisorHint{Kind: model.SupervisorLaunchd, Unit: "com.example.app"}
	cmd, err := commandFor(hint, IntentStop, 0)
	if err != nil {
		t.Fatalf("commandFor: %v", err)
	}
	if cmd.argv[len(cmd.argv)-1] != "system/com.example.app" {
		t.Fatalf("expected domain-qualified target, got %v", cmd.argv)
	}
}

func TestIsProtectedUnit(t *testing.T) {
	if !IsProtectedUnit("docker.service") {
		t.Error("docker.service should be protected")
	}
	if IsProtectedUnit("myapp.service") {
		t.Error("myapp.service should not be protected")
	}
}

func TestSignalForActionKillEscalation(t *testing.T) {
	sig, ok := signalForAction(model.ActionKill, false)
	if !ok {
		t.Fatal("expected a signal for ActionKill")
	}
	if sig.String() != "terminated" {
		t.Errorf("expected SIGTERM for non-forced kill, got %v", sig)
	}

	sig, ok = signalForAction(model.ActionKill, true)
	if !ok || sig.String() != "killed" {
		t.Errorf("expected SIGKILL for forced kill, got %v ok=%v", sig, ok)
	}
}

func TestSignalForActionRestartHasNoDirectSignal(t *testing.T) {
	if _, ok := signalForAction(model.ActionRestart, false); ok {
		t.Error("restart should have no direct signal; it is supervisor-delegated or local-syscall only")
	}
}
