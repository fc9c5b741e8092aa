package decision

import (
	"github.com/proctriage/triage/config"
	"github.com/proctriage/triage/model"
)

// Decision is the C4 output for one candidate (spec §4.4): the selected action, its expected
// loss, and enough of the intermediate state (pressure score, time-bound verdict, FDR outcome)
// for an auditor to see why.
type Decision struct {
	Identity      model.Identity         `json:"identity"`
	Action        model.Action           `json:"action"`
	ExpectedLoss  float64                `json:"expected_loss"`
	Losses        map[model.Action]float64 `json:"losses"`
	PressureScore float64                `json:"pressure_score"`
	TimeBound     TimeBoundVerdict       `json:"time_bound"`
	Pending       bool                   `json:"pending"`
	FDRReverted   bool                   `json:"fdr_reverted"`
}

// Decide computes the Bayes-optimal action for a single candidate: expected loss per action,
// load-aware modulation, then the decision-time-bound's override (spec §4.4). FDR control is
// batch-scoped and is applied separately by DecideBatch to the candidates whose final action
// here (after modulation and the time-bound override) is Kill.
func Decide(candidate model.Candidate, policy config.Policy, pressure Pressure, elapsedSeconds int) Decision {
	losses := ExpectedLosses(candidate.Posterior, policy.LossMatrix)
	score := PressureScore(pressure, policy.LoadAware)
	losses = ModulateLosses(losses, score, policy.LoadAware)
	action, loss := SelectAction(losses)

	tb := EvaluateTimeBound(candidate.Posterior, elapsedSeconds, policy.DecisionTimeBound)
	d := Decision{
		Identity:      candidate.Identity,
		Action:        action,
		ExpectedLoss:  loss,
		Losses:        losses,
		PressureScore: score,
		TimeBound:     tb,
	}
	if tb.MustWait {
		d.Pending = true
		return d
	}
	if tb.Forced {
		d.Action = tb.ForcedAction
		d.ExpectedLoss = losses[tb.ForcedAction]
	}
	return d
}

// DecideBatch runs Decide over every candidate, then applies FDR control (spec §4.4) to the
// subset recommended for Kill: any candidate whose kill recommendation fails the BH/BY step-up
// test at the configured alpha reverts to Keep. candidates, pressures, and elapsedSeconds must be
// parallel slices of equal length.
func DecideBatch(candidates []model.Candidate, policy config.Policy, pressures []Pressure, elapsedSeconds []int) []Decision {
	decisions := make([]Decision, len(candidates))
	for i, c := range candidates {
		decisions[i] = Decide(c, policy, pressures[i], elapsedSeconds[i])
	}

	var killIdx []int
	var pValues []float64
	for i, d := range decisions {
		if d.Pending || d.Action != model.ActionKill {
			continue
		}
		killIdx = append(killIdx, i)
		pValues = append(pValues, 1-candidates[i].Posterior.Prob(model.ClassAbandoned))
	}
	if len(killIdx) == 0 {
		return decisions
	}

	pass := ApplyFDR(pValues, policy.FdrControl)
	for j, idx := range killIdx {
		if !pass[j] {
			decisions[idx].Action = model.ActionKeep
			decisions[idx].ExpectedLoss = decisions[idx].Losses[model.ActionKeep]
			decisions[idx].FDRReverted = true
		}
	}
	return decisions
}
