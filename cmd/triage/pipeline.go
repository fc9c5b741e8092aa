package main

import (
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/proctriage/triage/audit"
	"github.com/proctriage/triage/collector"
	"github.com/proctriage/triage/config"
	"github.com/proctriage/triage/decision"
	"github.com/proctriage/triage/executor"
	"github.com/proctriage/triage/feature"
	"github.com/proctriage/triage/inference"
	"github.com/proctriage/triage/model"
	"github.com/proctriage/triage/policy"
	"github.com/proctriage/triage/validation"
)

// Exit codes from spec §6 ("when invoked as a tool").
const (
	exitSuccess            = 0
	exitPartialFailure     = 2
	exitPolicyViolation    = 3
	exitCollectorEnumerate = 4
	exitConfigError        = 5
)

// deps bundles the wiring a single host pass needs -- one of each C1-C7 component, constructed
// once by run and threaded through runOnce explicitly (spec §9: no package-level globals except
// config's intentional active-policy pointer).
type deps struct {
	coll        *collector.Collector
	enforcer    *policy.Enforcer
	exec        *executor.Executor
	execMetrics *executor.Metrics
	auditWriter *audit.Writer
	auditStore  *audit.Store
	validation  *validation.Store
	policy      config.Policy
	dryRun      bool
}

// runOnce performs one full host pass: enumerate, classify, decide, enforce, execute, record.
// It returns the JSON report and the process exit code spec §6 assigns to the outcome.
func runOnce(d *deps) (Report, int) {
	runID := uuid.NewString()
	report := Report{RunID: runID, HostID: d.coll.HostID, Timestamp: time.Now()}

	snaps, warnings := d.coll.Enumerate()
	report.Warnings = warnings
	if len(snaps) == 0 && len(warnings) > 0 {
		// Enumerate only returns zero snapshots alongside warnings when /proc itself could not be
		// read (every other failure mode skips one pid and keeps going).
		return report, exitCollectorEnumerate
	}

	candidates := make([]model.Candidate, 0, len(snaps))
	snapByIdentity := make(map[model.Identity]*model.Snapshot, len(snaps))
	for _, snap := range snaps {
		category := guessCategory(snap.Comm)
		ledger := buildLedger(snap)
		prior := inference.Prior(nil, category)
		posterior := inference.Update(prior, ledger)
		candidates = append(candidates, model.CandidateFrom(snap, posterior, category, false))
		snapByIdentity[snap.Identity] = snap
	}

	pressure := readPressure()
	pressures := make([]decision.Pressure, len(candidates))
	elapsed := make([]int, len(candidates))
	for i, c := range candidates {
		pressures[i] = pressure
		elapsed[i] = int(c.AgeSeconds)
	}
	decisions := decision.DecideBatch(candidates, d.policy, pressures, elapsed)

	rows := make([]Row, 0, len(candidates))
	blocked, executed, failedExec := 0, 0, 0
	for i, c := range candidates {
		dec := decisions[i]
		snap := snapByIdentity[c.Identity]
		row := Row{
			Identity:  c.Identity,
			Comm:      snap.Comm,
			Category:  c.Category,
			Posterior: c.Posterior,
			Decision:  dec,
		}

		if err := trackPrediction(d.validation, c, dec, snap); err != nil {
			log.Printf("triage: track prediction for %s: %v", c.Identity, err)
		}

		if dec.Pending || dec.Action == model.ActionKeep {
			rows = append(rows, row)
			continue
		}

		check := d.enforcer.CheckAction(c, dec.Action, d.policy.RobotMode.Enabled)
		row.Warnings = check.Warnings
		if !check.Allowed {
			row.Violation = check.Violation
			blocked++
			rows = append(rows, row)
			writeAudit(d, runID, c, dec, check, nil, "blocked")
			continue
		}

		if d.dryRun {
			row.Warnings = append(row.Warnings, "dry-run: action not executed")
			rows = append(rows, row)
			writeAudit(d, runID, c, dec, check, nil, "dry_run")
			continue
		}

		session := model.NewRecoverySession(c.Identity, budgetsFor(d.exec, dec.Action), maxTotalAttempts)
		result := d.exec.Execute(c, dec.Action, session)
		d.execMetrics.Observe(dec.Action, result.Attempt)
		row.Executed = true
		row.Attempt = &result.Attempt
		if result.Hint != nil {
			row.Hint = result.Hint.Explanation
		}
		if result.Attempt.Succeeded {
			executed++
		} else {
			failedExec++
		}
		rows = append(rows, row)
		writeAudit(d, runID, c, dec, check, &result, "executed")
	}

	report.Rows = rows
	report.Blocked = blocked
	report.Executed = executed
	report.FailedExec = failedExec

	return report, exitCodeFor(blocked, executed, failedExec)
}

// exitCodeFor derives spec §6's process exit code from one pass's outcome counts: a policy
// violation with nothing executed takes priority over a partial failure, which in turn takes
// priority over success.
func exitCodeFor(blocked, executed, failedExec int) int {
	attempted := executed + failedExec
	switch {
	case attempted == 0 && blocked > 0:
		return exitPolicyViolation
	case blocked > 0 || failedExec > 0:
		return exitPartialFailure
	}
	return exitSuccess
}

// maxTotalAttempts caps the total recovery attempts per target for one pass; the same fixed
// ceiling the executor's own tests use (executor/executor_test.go).
const maxTotalAttempts = 5

func budgetsFor(exec *executor.Executor, action model.Action) map[model.FailureCategory]int {
	tree, ok := exec.RecoveryTreeFor(action)
	if !ok {
		return nil
	}
	return tree.BudgetMap()
}

// buildLedger assembles the evidence this single pass can derive without a history of prior
// samples: supervision hints and the snapshot-only evidence kinds. The compound-Poisson burst
// analyzer and the HSMM regime estimator (feature/burst.go, feature/hsmm.go) both require a time
// series across multiple passes and are therefore a daemon-mode concern outside a one-shot CLI's
// scope, not wired here.
func buildLedger(snap *model.Snapshot) []model.Evidence {
	ledger := feature.SnapshotEvidence(snap)
	if ev, ok := feature.Evidence(snap.Supervisor); ok {
		ledger = append(ledger, ev)
	}
	return ledger
}

// trackPrediction records this candidate's prediction in the validation ledger regardless of
// which action was chosen, so later outcome resolution (spec §4.7) can score the full population,
// not just the processes that were actually acted on.
func trackPrediction(store *validation.Store, c model.Candidate, dec decision.Decision, snap *model.Snapshot) error {
	if store == nil {
		return nil
	}
	if has, err := store.HasUnresolvedIdentity(c.Identity.Hash()); err != nil {
		return err
	} else if has {
		return nil
	}
	return store.Track(model.ValidationRecord{
		IdentityHash:        c.Identity.Hash(),
		PID:                 c.Identity.PID,
		PredictedAbandoned:  c.Posterior.Prob(model.ClassAbandoned),
		RecommendedAction:   dec.Action,
		ProcType:            c.Category,
		Comm:                snap.Comm,
		PredictedAt:         time.Now(),
		HostID:              c.Identity.HostID,
	})
}

func writeAudit(d *deps, runID string, c model.Candidate, dec decision.Decision, check policy.CheckResult, result *executor.Result, outcome string) {
	rec := audit.Record{
		RunID:     runID,
		Timestamp: time.Now(),
		Identity:  c.Identity,
		Posterior: c.Posterior,
		Action:    dec.Action,
		Outcome:   outcome,
	}
	if check.Violation != nil {
		rec.Violations = []policy.Violation{*check.Violation}
	}
	if result != nil {
		rec.Attempts = []model.AttemptResult{result.Attempt}
	}
	if d.auditWriter != nil {
		if err := d.auditWriter.Write(rec); err != nil {
			log.Printf("triage: write audit record for %s: %v", c.Identity, err)
		}
	}
	if d.auditStore != nil {
		if err := d.auditStore.Index(rec); err != nil {
			log.Printf("triage: index audit record for %s: %v", c.Identity, err)
		}
	}
}
