package executor

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/proctriage/triage/collector"
	"github.com/proctriage/triage/model"
)

// respawnCheckDelay and respawnCheckCount are the default poll cadence after a stop command
// completes (spec §4.6: "poll the target at respawn_check_delay (default 2s) intervals up to
// respawn_check_count (default 3)").
const (
	respawnCheckDelay = 2 * time.Second
	respawnCheckCount = 3
)

// respawnProbeTimeout bounds each individual respawn-poll subprocess, matching
// collector/supervisor_probe.go's probeTimeout.
const respawnProbeTimeout = 3 * time.Second

// pollAlive queries whether hint's managed unit is alive right now, per its supervisor kind
// (spec §4.6's per-poll semantics). ok is false when the supervisor kind cannot be probed.
func pollAlive(hint model.SupervisorHint) (alive bool, ok bool) {
	switch hint.Kind {
	case model.SupervisorSystemd:
		state := collector.SystemdUnitState(hint.Unit)
		if state == "unknown" {
			return false, false
		}
		return state == "active", true
	case model.SupervisorLaunchd:
		return collector.LaunchdLabelState(hint.Unit)
	case model.SupervisorContainer:
		return collector.ContainerRunning("docker", hint.Unit)
	case model.SupervisorPM2:
		return pm2Alive(hint.Unit)
	case model.SupervisorForever:
		return foreverAlive(hint.Unit)
	}
	return false, false
}

// DetectRespawn polls hint up to respawnCheckCount times, respawnCheckDelay apart, returning true
// the moment any poll reports the unit alive (spec §4.6: "if any poll reports alive, the attempt
// fails with SupervisorConflict").
func DetectRespawn(hint model.SupervisorHint) bool {
	for i := 0; i < respawnCheckCount; i++ {
		time.Sleep(respawnCheckDelay)
		if alive, ok := pollAlive(hint); ok && alive {
			return true
		}
	}
	return false
}

func pm2Alive(name string) (bool, bool) {
	if _, err := exec.LookPath("pm2"); err != nil {
		return false, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), respawnProbeTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, "pm2", "jlist").CombinedOutput()
	if err != nil {
		return false, false
	}
	s := string(out)
	// pm2 jlist is JSON; a coarse substring check avoids a JSON dependency for a single field and
	// matches the "name":"<app>" ... "status":"online" pattern pm2 emits per process entry.
	idx := strings.Index(s, `"name":"`+name+`"`)
	if idx < 0 {
		return false, true
	}
	rest := s[idx:]
	return strings.Contains(rest[:min(len(rest), 400)], `"status":"online"`), true
}

func foreverAlive(uid string) (bool, bool) {
	if _, err := exec.LookPath("forever"); err != nil {
		return false, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), respawnProbeTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, "forever", "list").CombinedOutput()
	if err != nil {
		return false, false
	}
	return strings.Contains(string(out), uid), true
}
