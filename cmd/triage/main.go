// Command triage wires the process-triage pipeline -- collect, derive evidence, infer a
// posterior, decide an action, enforce policy, execute, and record -- end to end for one pass
// over the host's processes, emitting the outcome as JSON. It is the collector-to-JSON tool a
// richer front end (a TUI, a fleet dashboard) would consume, mirroring the teacher's `-json`
// snapshot mode in cmd/root.go rather than building that front end itself.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/proctriage/triage/audit"
	"github.com/proctriage/triage/collector"
	"github.com/proctriage/triage/config"
	"github.com/proctriage/triage/executor"
	"github.com/proctriage/triage/policy"
	"github.com/proctriage/triage/validation"
)

// defaultClassificationThreshold is the predicted_abandoned cutoff the validation report and
// calibration metrics use to frame a prediction as "would recommend a kill" for confusion-count
// purposes (spec §4.7). Actual decisions never compare against a flat threshold -- decision.Decide
// minimizes expected loss over the full posterior -- this constant exists only for retrospective
// reporting.
const defaultClassificationThreshold = 0.7

func main() {
	os.Exit(run())
}

func run() int {
	var (
		presetName       string
		dataDir          string
		dryRun           bool
		robotMode        bool
		retentionDir     string
		metricsPath      string
		validationReport string
	)
	flag.StringVar(&presetName, "preset", "", "Policy preset to use instead of the saved policy.json (developer, server, ci, paranoid)")
	flag.StringVar(&dataDir, "data-dir", "", "Directory for the rate-limiter, validation, and audit stores (default: alongside policy.json)")
	flag.BoolVar(&dryRun, "dry-run", false, "Compute decisions and enforce policy but never execute an action")
	flag.BoolVar(&robotMode, "robot", false, "Force robot_mode.enabled on for this run, regardless of the loaded policy")
	flag.StringVar(&retentionDir, "retention-root", "", "If set, run retention enforcement over this telemetry directory after the pass")
	flag.StringVar(&metricsPath, "metrics-file", "", "If set, write Prometheus text-exposition metrics to this path after the pass")
	flag.StringVar(&validationReport, "validation-report", "", "If set, compute a validation.Report over the ledger and write it as JSON to this path")
	flag.Parse()

	pol, err := loadPolicy(presetName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "triage: %v\n", err)
		return exitConfigError
	}
	if robotMode {
		pol.RobotMode.Enabled = true
	}

	dir, err := resolveDataDir(dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "triage: %v\n", err)
		return exitConfigError
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "triage: create data dir: %v\n", err)
		return exitConfigError
	}

	coll, err := collector.NewCollector()
	if err != nil {
		// NewCollector fails only on an unreadable boot time -- an environment the process can
		// never run correctly on, not a transient per-pid enumeration failure (exitCollectorEnumerate
		// is reserved for that narrower case inside runOnce).
		fmt.Fprintf(os.Stderr, "triage: %v\n", err)
		return exitConfigError
	}

	enforcer, err := policy.NewEnforcer(pol, filepath.Join(dir, "ratelimiter.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "triage: %v\n", err)
		return exitConfigError
	}
	defer enforcer.Close()

	checker := executor.NewLiveRequirementChecker()
	exec := executor.New(coll, checker)

	registry := prometheus.NewRegistry()
	execMetrics := executor.NewMetrics(registry)

	auditWriter, err := audit.Open(filepath.Join(dir, "audit.jsonl"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "triage: %v\n", err)
		return exitConfigError
	}
	defer auditWriter.Close()

	auditStore, err := audit.OpenStore(filepath.Join(dir, "audit.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "triage: %v\n", err)
		return exitConfigError
	}
	defer auditStore.Close()

	validationStore, err := validation.Open(filepath.Join(dir, "validation.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "triage: %v\n", err)
		return exitConfigError
	}
	defer validationStore.Close()
	registry.MustRegister(validation.NewCollector(validationStore, defaultClassificationThreshold))

	d := &deps{
		coll:        coll,
		enforcer:    enforcer,
		exec:        exec,
		execMetrics: execMetrics,
		auditWriter: auditWriter,
		auditStore:  auditStore,
		validation:  validationStore,
		policy:      pol,
		dryRun:      dryRun,
	}

	report, code := runOnce(d)
	report.Preset = presetName

	if retentionDir != "" {
		if err := runRetention(retentionDir, dir); err != nil {
			fmt.Fprintf(os.Stderr, "triage: retention: %v\n", err)
		}
	}

	if validationReport != "" {
		if err := writeValidationReport(validationStore, defaultClassificationThreshold, validationReport); err != nil {
			fmt.Fprintf(os.Stderr, "triage: validation report: %v\n", err)
		}
	}

	if metricsPath != "" {
		if err := writeMetrics(registry, metricsPath); err != nil {
			fmt.Fprintf(os.Stderr, "triage: write metrics: %v\n", err)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		fmt.Fprintf(os.Stderr, "triage: encode report: %v\n", err)
		return exitConfigError
	}
	return code
}

func loadPolicy(presetName string) (config.Policy, error) {
	if presetName == "" {
		return config.Load(), nil
	}
	name, ok := config.ParsePresetName(presetName)
	if !ok {
		return config.Policy{}, fmt.Errorf("unknown preset %q", presetName)
	}
	return config.GetPreset(name), nil
}

// resolveDataDir places the rate-limiter/validation/audit stores next to policy.json, under
// ~/.config/triage/data (or explicit override), matching the teacher's habit of keeping all of
// one tool's state under a single directory (config/config.go's Path()).
func resolveDataDir(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	p := config.Path()
	if p == "" {
		return "", fmt.Errorf("cannot determine data directory (use -data-dir to specify)")
	}
	return filepath.Join(filepath.Dir(p), "data"), nil
}
