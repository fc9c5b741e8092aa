package config

import (
	"fmt"
	"strings"

	"github.com/proctriage/triage/model"
)

// PresetName identifies one of the four built-in policy presets (spec §8 scenario 6).
type PresetName int

const (
	PresetDeveloper PresetName = iota
	PresetServer
	PresetCI
	PresetParanoid
)

// AllPresets lists every built-in preset in a stable order, used by ListPresets.
var AllPresets = [4]PresetName{PresetDeveloper, PresetServer, PresetCI, PresetParanoid}

func (p PresetName) String() string {
	switch p {
	case PresetDeveloper:
		return "developer"
	case PresetServer:
		return "server"
	case PresetCI:
		return "ci"
	case PresetParanoid:
		return "paranoid"
	}
	return "unknown"
}

func (p PresetName) description() string {
	switch p {
	case PresetDeveloper:
		return "Developer preset: aggressive detection for dev environments"
	case PresetServer:
		return "Server preset: conservative detection for production environments"
	case PresetCI:
		return "CI preset: headless operation for CI/CD pipelines"
	case PresetParanoid:
		return "Paranoid preset: maximum safety for critical systems"
	}
	return ""
}

// ParsePresetName accepts a preset name or its common aliases (e.g. "dev" for developer).
func ParsePresetName(s string) (PresetName, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "developer", "dev":
		return PresetDeveloper, true
	case "server", "prod", "production":
		return PresetServer, true
	case "ci", "cicd":
		return PresetCI, true
	case "paranoid":
		return PresetParanoid, true
	}
	return 0, false
}

func intp(v int) *int         { return &v }
func f64p(v float64) *float64 { return &v }

// GetPreset returns the frozen Policy for a built-in preset name (spec §8 scenario 6). Numeric
// values are grounded verbatim on original_source/crates/pt-config/src/preset.rs's four preset
// functions.
func GetPreset(name PresetName) Policy {
	switch name {
	case PresetDeveloper:
		return developerPreset()
	case PresetServer:
		return serverPreset()
	case PresetCI:
		return ciPreset()
	case PresetParanoid:
		return paranoidPreset()
	}
	return developerPreset()
}

func lit(pattern, notes string) PatternEntry {
	return PatternEntry{Pattern: pattern, Kind: PatternLiteral, CaseInsensitive: true, Notes: notes}
}

func rex(pattern, notes string) PatternEntry {
	return PatternEntry{Pattern: pattern, Kind: PatternRegex, CaseInsensitive: true, Notes: notes}
}

// developerPreset: aggressive detection for dev environments. Shorter minimum process age,
// lower kill penalties, and a higher per-run kill budget than every other preset.
func developerPreset() Policy {
	return Policy{
		SchemaVersion: "1.0.0",
		PolicyID:      "preset:developer",
		Description:   PresetDeveloper.description(),
		Notes:         "Optimized for catching stuck test runners, dev servers, and build tools",

		LossMatrix: LossMatrix{
			Useful:    LossRow{Keep: 0, Pause: f64p(0.3), Throttle: f64p(0.5), Kill: 50, Restart: f64p(5), Renice: f64p(0.1)},
			UsefulBad: LossRow{Keep: 0, Pause: f64p(0.2), Throttle: f64p(0.3), Kill: 20, Restart: f64p(3), Renice: f64p(0.05)},
			Abandoned: LossRow{Keep: 10, Pause: f64p(0.1), Throttle: f64p(0.2), Kill: 0.05, Restart: f64p(0.5), Renice: f64p(0.05)},
			Zombie:    LossRow{Keep: 5, Pause: f64p(0.05), Throttle: f64p(0.05), Kill: 0.01, Restart: f64p(0.05), Renice: f64p(0.01)},
		},

		Guardrails: Guardrails{
			ProtectedPatterns: []PatternEntry{
				rex("^systemd$", "Init system"),
				rex("^sshd$", "SSH daemon"),
			},
			ProtectedUsers:       []string{"root"},
			ProtectedCategories:  []string{"database"},
			NeverKillPPID:        []int{1},
			MaxKillsPerRun:       20,
			MaxKillsPerMinute:    intp(10),
			MaxKillsPerHour:      intp(50),
			MaxKillsPerDay:       intp(200),
			MinProcessAgeSeconds: 1800,
			RequireConfirmation:  true,
		},

		RobotMode: RobotMode{
			Enabled:          false,
			MinPosterior:     0.90,
			MinConfidence:    model.ConfidenceMedium,
			MaxBlastRadiusMB: 8192,
			MaxKills:         15,
			AllowCategories:  []string{"test_runner", "dev_server", "build_tool"},
		},

		FdrControl: FdrControl{
			Enabled: true,
			Method:  FdrBH,
			Alpha:   0.10,
		},

		DataLossGates: DataLossGates{
			BlockIfOpenWriteFDs:    true,
			MaxOpenWriteFDs:        intp(5),
			BlockIfLockedFiles:     true,
			BlockIfActiveTTY:       false,
			BlockIfRecentIOSeconds: intp(30),
		},

		LoadAware:         DefaultLoadAwareDecision(),
		DecisionTimeBound: DefaultDecisionTimeBound(),
	}
}

// serverPreset: conservative detection, strict protection, shadow-mode-appropriate defaults.
func serverPreset() Policy {
	return Policy{
		SchemaVersion: "1.0.0",
		PolicyID:      "preset:server",
		Description:   PresetServer.description(),
		Notes:         "Recommended for production servers - prioritizes safety over cleanup",

		LossMatrix: LossMatrix{
			Useful:    LossRow{Keep: 0, Pause: f64p(1.0), Throttle: f64p(2.0), Kill: 1000, Restart: f64p(50), Renice: f64p(0.5)},
			UsefulBad: LossRow{Keep: 0, Pause: f64p(0.5), Throttle: f64p(1.0), Kill: 200, Restart: f64p(20), Renice: f64p(0.3)},
			Abandoned: LossRow{Keep: 3, Pause: f64p(0.3), Throttle: f64p(0.5), Kill: 0.5, Restart: f64p(2), Renice: f64p(0.2)},
			Zombie:    LossRow{Keep: 2, Pause: f64p(0.2), Throttle: f64p(0.2), Kill: 0.2, Restart: f64p(0.5), Renice: f64p(0.1)},
		},

		Guardrails: Guardrails{
			ProtectedPatterns: []PatternEntry{
				rex("^systemd", "Init system and services"),
				rex("^sshd$", "SSH daemon"),
				rex("^nginx$", "Web server"),
				rex("^postgres", "PostgreSQL"),
				rex("^mysql", "MySQL"),
				rex("^redis", "Redis"),
				rex("^docker", "Docker daemon"),
				rex("^containerd", "Container runtime"),
				rex("^kubelet", "Kubernetes node agent"),
				rex("^cron", "Cron scheduler"),
			},
			ForceReviewPatterns: []PatternEntry{
				lit("worker", "Background workers"),
				lit("queue", "Queue processors"),
			},
			ProtectedUsers:       []string{"root"},
			ProtectedCategories:  []string{"database", "webserver", "container", "init"},
			NeverKillPPID:        []int{1},
			MaxKillsPerRun:       5,
			MaxKillsPerMinute:    intp(2),
			MaxKillsPerHour:      intp(10),
			MaxKillsPerDay:       intp(30),
			MinProcessAgeSeconds: 14400,
			RequireConfirmation:  true,
		},

		RobotMode: RobotMode{
			Enabled:               false,
			MinPosterior:          0.99,
			MinConfidence:         model.ConfidenceHigh,
			MaxBlastRadiusMB:      2048,
			MaxKills:              3,
			RequireKnownSignature: true,
			RequirePolicySnapshot: true,
			ExcludeCategories:     []string{"database", "webserver", "container"},
			RequireHumanForSupervised: true,
		},

		FdrControl: FdrControl{
			Enabled:       true,
			Method:        FdrBY,
			Alpha:         0.01,
			MinCandidates: 3,
			AlphaInvesting: &AlphaInvesting{W0: 0.01, AlphaSpend: 0.001, AlphaEarn: 0.005},
		},

		DataLossGates: DataLossGates{
			BlockIfOpenWriteFDs:    true,
			BlockIfLockedFiles:     true,
			BlockIfDeletedCWD:      true,
			BlockIfActiveTTY:       true,
			BlockIfRecentIOSeconds: intp(300),
		},

		LoadAware: LoadAwareDecision{
			Enabled:                true,
			QueueHigh:              100,
			LoadPerCoreHigh:        0.8,
			MemoryUsedFractionHigh: 0.90,
			PSIAvg10High:           30.0,
			Weights:                DefaultLoadWeights(),
			Multipliers:            DefaultLoadMultipliers(),
		},

		DecisionTimeBound: DecisionTimeBound{
			Enabled:                 true,
			MinSeconds:              120,
			MaxSeconds:              900,
			VoiDecayHalfLifeSeconds: 180,
			VoiFloor:                0.02,
			OverheadBudgetSeconds:   600,
			FallbackAction:          model.ActionKeep,
		},
	}
}

// ciPreset: headless automation. Robot mode is on by default (the preset's one counterintuitive
// characteristic relative to server).
func ciPreset() Policy {
	return Policy{
		SchemaVersion: "1.0.0",
		PolicyID:      "preset:ci",
		Description:   PresetCI.description(),
		Notes:         "Designed for CI/CD automation - no interactive prompts, specific exit codes",

		LossMatrix: LossMatrix{
			Useful:    LossRow{Keep: 0, Pause: f64p(0.5), Throttle: f64p(1.0), Kill: 500, Restart: f64p(30), Renice: f64p(0.3)},
			UsefulBad: LossRow{Keep: 0, Pause: f64p(0.3), Throttle: f64p(0.5), Kill: 100, Restart: f64p(15), Renice: f64p(0.2)},
			Abandoned: LossRow{Keep: 5, Pause: f64p(0.2), Throttle: f64p(0.3), Kill: 0.2, Restart: f64p(1), Renice: f64p(0.1)},
			Zombie:    LossRow{Keep: 3, Pause: f64p(0.1), Throttle: f64p(0.1), Kill: 0.1, Restart: f64p(0.2), Renice: f64p(0.05)},
		},

		Guardrails: Guardrails{
			ProtectedPatterns: []PatternEntry{
				rex("^systemd$", "Init system"),
				rex("^docker$", "Docker daemon"),
				lit("gitlab-runner", "GitLab CI runner"),
				lit("actions-runner", "GitHub Actions runner"),
				lit("jenkins", "Jenkins"),
			},
			ProtectedUsers:       []string{"root"},
			ProtectedCategories:  []string{"ci_runner", "container"},
			NeverKillPPID:        []int{1},
			MaxKillsPerRun:       10,
			MaxKillsPerMinute:    intp(5),
			MaxKillsPerHour:      intp(30),
			MaxKillsPerDay:       intp(100),
			MinProcessAgeSeconds: 3600,
			RequireConfirmation:  false,
		},

		RobotMode: RobotMode{
			Enabled:          true,
			MinPosterior:     0.95,
			MinConfidence:    model.ConfidenceHigh,
			MaxBlastRadiusMB: 4096,
			MaxKills:         10,
			AllowCategories:  []string{"test_runner", "build_tool"},
			ExcludeCategories: []string{"ci_runner"},
		},

		FdrControl: FdrControl{
			Enabled: true,
			Method:  FdrBH,
			Alpha:   0.05,
		},

		DataLossGates: DataLossGates{
			BlockIfOpenWriteFDs:    true,
			MaxOpenWriteFDs:        intp(3),
			BlockIfLockedFiles:     true,
			BlockIfActiveTTY:       false,
			BlockIfRecentIOSeconds: intp(60),
		},

		LoadAware: DefaultLoadAwareDecision(),
		DecisionTimeBound: DecisionTimeBound{
			Enabled:                 true,
			MinSeconds:              30,
			MaxSeconds:              300,
			VoiDecayHalfLifeSeconds: 60,
			VoiFloor:                0.01,
			OverheadBudgetSeconds:   120,
			FallbackAction:          model.ActionKeep,
		},
	}
}

// paranoidPreset: maximum safety. Every threshold is the strictest of the four presets.
func paranoidPreset() Policy {
	return Policy{
		SchemaVersion: "1.0.0",
		PolicyID:      "preset:paranoid",
		Description:   PresetParanoid.description(),
		Notes:         "For critical systems where any false positive is unacceptable",

		LossMatrix: LossMatrix{
			Useful:    LossRow{Keep: 0, Pause: f64p(5.0), Throttle: f64p(10.0), Kill: 10000, Restart: f64p(500), Renice: f64p(2.0)},
			UsefulBad: LossRow{Keep: 0, Pause: f64p(2.0), Throttle: f64p(5.0), Kill: 1000, Restart: f64p(100), Renice: f64p(1.0)},
			Abandoned: LossRow{Keep: 1, Pause: f64p(0.5), Throttle: f64p(1.0), Kill: 2.0, Restart: f64p(5), Renice: f64p(0.5)},
			Zombie:    LossRow{Keep: 0.5, Pause: f64p(0.3), Throttle: f64p(0.3), Kill: 0.5, Restart: f64p(1), Renice: f64p(0.2)},
		},

		Guardrails: Guardrails{
			ProtectedPatterns: []PatternEntry{
				lit("systemd", "Init system and services"),
				lit("dbus", "D-Bus"),
				lit("sshd", "SSH daemon"),
				lit("nginx", "Nginx"),
				lit("apache", "Apache"),
				lit("postgres", "PostgreSQL"),
				lit("mysql", "MySQL"),
				lit("mariadb", "MariaDB"),
				lit("redis", "Redis"),
				lit("memcached", "Memcached"),
				lit("docker", "Docker"),
				lit("containerd", "containerd"),
				lit("kubelet", "Kubernetes"),
				lit("etcd", "etcd"),
				lit("vault", "HashiCorp Vault"),
				lit("consul", "HashiCorp Consul"),
				lit("elasticsearch", "Elasticsearch"),
				lit("kafka", "Kafka"),
				lit("zookeeper", "ZooKeeper"),
				lit("pulseaudio", "PulseAudio"),
				lit("pipewire", "PipeWire"),
			},
			ForceReviewPatterns: []PatternEntry{
				rex(".*", "Force review all"),
			},
			ProtectedUsers: []string{"root"},
			ProtectedCategories: []string{
				"database", "webserver", "container", "init", "message_queue", "cache",
			},
			NeverKillPPID:        []int{1},
			MaxKillsPerRun:       3,
			MaxKillsPerMinute:    intp(1),
			MaxKillsPerHour:      intp(5),
			MaxKillsPerDay:       intp(10),
			MinProcessAgeSeconds: 86400,
			RequireConfirmation:  true,
		},

		RobotMode: RobotMode{
			Enabled:               false,
			MinPosterior:          0.999,
			MinConfidence:         model.ConfidenceHigh,
			MaxBlastRadiusMB:      512,
			MaxKills:              1,
			RequireKnownSignature: true,
			RequirePolicySnapshot: true,
			ExcludeCategories:     []string{"database", "webserver", "container", "init"},
			RequireHumanForSupervised: true,
		},

		FdrControl: FdrControl{
			Enabled:       true,
			Method:        FdrBY,
			Alpha:         0.001,
			MinCandidates: 5,
			AlphaInvesting: &AlphaInvesting{W0: 0.001, AlphaSpend: 0.0001, AlphaEarn: 0.0005},
		},

		DataLossGates: DataLossGates{
			BlockIfOpenWriteFDs:    true,
			BlockIfLockedFiles:     true,
			BlockIfDeletedCWD:      true,
			BlockIfActiveTTY:       true,
			BlockIfRecentIOSeconds: intp(3600),
		},

		LoadAware: LoadAwareDecision{
			Enabled:                true,
			QueueHigh:              200,
			LoadPerCoreHigh:        0.5,
			MemoryUsedFractionHigh: 0.95,
			PSIAvg10High:           50.0,
			Weights:                DefaultLoadWeights(),
			Multipliers:            LoadMultipliers{KeepMax: 2.0, ReversibleMin: 0.3, RiskyMax: 3.0},
		},

		DecisionTimeBound: DecisionTimeBound{
			Enabled:                 true,
			MinSeconds:              300,
			MaxSeconds:              1800,
			VoiDecayHalfLifeSeconds: 600,
			VoiFloor:                0.05,
			OverheadBudgetSeconds:   1200,
			FallbackAction:          model.ActionKeep,
		},
	}
}

// DefaultDecisionTimeBound mirrors DecisionTimeBound::default(), used by the developer preset
// which the original leaves unset relative to its other fields -- fast iteration, short bounds.
func DefaultDecisionTimeBound() DecisionTimeBound {
	return DecisionTimeBound{
		Enabled:                 true,
		MinSeconds:              15,
		MaxSeconds:              120,
		VoiDecayHalfLifeSeconds: 30,
		VoiFloor:                0.01,
		OverheadBudgetSeconds:   60,
		FallbackAction:          model.ActionKeep,
	}
}

// PresetInfo is a summary view of a preset for display (spec §6 CLI/API surface).
type PresetInfo struct {
	Name                string  `json:"name"`
	Description         string  `json:"description"`
	MinProcessAgeSeconds uint64 `json:"min_process_age_seconds"`
	MaxKillsPerRun      int     `json:"max_kills_per_run"`
	RobotModeEnabled    bool    `json:"robot_mode_enabled"`
	MinPosterior        float64 `json:"min_posterior"`
	FdrAlpha            float64 `json:"fdr_alpha"`
}

// PresetInfoFrom summarizes a built-in preset.
func PresetInfoFrom(name PresetName) PresetInfo {
	p := GetPreset(name)
	return PresetInfo{
		Name:                 name.String(),
		Description:          name.description(),
		MinProcessAgeSeconds: p.Guardrails.MinProcessAgeSeconds,
		MaxKillsPerRun:       p.Guardrails.MaxKillsPerRun,
		RobotModeEnabled:     p.RobotMode.Enabled,
		MinPosterior:         p.RobotMode.MinPosterior,
		FdrAlpha:             p.FdrControl.Alpha,
	}
}

// ListPresets returns summary info for all four built-in presets.
func ListPresets() []PresetInfo {
	out := make([]PresetInfo, 0, len(AllPresets))
	for _, name := range AllPresets {
		out = append(out, PresetInfoFrom(name))
	}
	return out
}

// MustParsePresetName is a convenience for CLI flag defaults; panics on an invalid name.
func MustParsePresetName(s string) PresetName {
	n, ok := ParsePresetName(s)
	if !ok {
		panic(fmt.Sprintf("config: invalid preset name %q", s))
	}
	return n
}
