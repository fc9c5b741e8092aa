package decision

import (
	"math"
	"testing"

	"github.com/proctriage/triage/config"
	"github.com/proctriage/triage/model"
)

func uniformPosterior() model.Posterior {
	return model.Posterior{Probs: [4]float64{0.25, 0.25, 0.25, 0.25}}
}

func TestExpectedLossesOmitsUnofferedActions(t *testing.T) {
	matrix := config.LossMatrix{
		Useful:    config.LossRow{Keep: 0, Kill: 50},
		UsefulBad: config.LossRow{Keep: 0, Kill: 20},
		Abandoned: config.LossRow{Keep: 10, Kill: 0.05},
		Zombie:    config.LossRow{Keep: 5, Kill: 0.01},
	}
	losses := ExpectedLosses(uniformPosterior(), matrix)
	if _, ok := losses[model.ActionPause]; ok {
		t.Errorf("pause should be omitted when every class leaves it nil")
	}
	if _, ok := losses[model.ActionKeep]; !ok {
		t.Errorf("keep should always be offered")
	}
	if _, ok := losses[model.ActionKill]; !ok {
		t.Errorf("kill should be offered when every class configures it")
	}
}

func TestSelectActionPrefersKeepOnTie(t *testing.T) {
	losses := map[model.Action]float64{
		model.ActionKeep: 1.0,
		model.ActionKill: 1.0,
	}
	action, loss := SelectAction(losses)
	if action != model.ActionKeep {
		t.Errorf("SelectAction tie = %v, want ActionKeep", action)
	}
	if loss != 1.0 {
		t.Errorf("loss = %v, want 1.0", loss)
	}
}

func TestSelectActionPicksLowestLoss(t *testing.T) {
	losses := map[model.Action]float64{
		model.ActionKeep: 10,
		model.ActionPause: 3,
		model.ActionKill: 0.05,
	}
	action, _ := SelectAction(losses)
	if action != model.ActionKill {
		t.Errorf("SelectAction = %v, want ActionKill", action)
	}
}

func TestExpectedLossStronglyAbandonedFavorsKill(t *testing.T) {
	dev := config.GetPreset(config.PresetDeveloper)
	post := model.Posterior{Probs: [4]float64{0.01, 0.01, 0.97, 0.01}}
	losses := ExpectedLosses(post, dev.LossMatrix)
	action, _ := SelectAction(losses)
	if action != model.ActionKill {
		t.Errorf("strongly abandoned posterior selected %v, want ActionKill", action)
	}
}

func TestExpectedLossStronglyUsefulFavorsKeep(t *testing.T) {
	para := config.GetPreset(config.PresetParanoid)
	post := model.Posterior{Probs: [4]float64{0.97, 0.01, 0.01, 0.01}}
	losses := ExpectedLosses(post, para.LossMatrix)
	action, _ := SelectAction(losses)
	if action != model.ActionKeep {
		t.Errorf("strongly useful posterior under paranoid preset selected %v, want ActionKeep", action)
	}
}

func TestFDRRevertsFailingCandidates(t *testing.T) {
	cfg := config.FdrControl{Enabled: true, Method: config.FdrBH, Alpha: 0.05}
	// One strong candidate (tiny p-value) and several weak ones (p-values near 1).
	pValues := []float64{0.001, 0.6, 0.7, 0.8, 0.9}
	pass := ApplyFDR(pValues, cfg)
	if !pass[0] {
		t.Errorf("strongest candidate should pass BH at alpha=0.05")
	}
	for i := 1; i < len(pass); i++ {
		if pass[i] {
			t.Errorf("weak candidate %d should not pass BH at alpha=0.05", i)
		}
	}
}

func TestFDRInactiveBelowMinCandidates(t *testing.T) {
	cfg := config.FdrControl{Enabled: true, Method: config.FdrBH, Alpha: 0.01, MinCandidates: 3}
	pValues := []float64{0.9, 0.95}
	pass := ApplyFDR(pValues, cfg)
	for i, p := range pass {
		if !p {
			t.Errorf("pass[%d] = false, want true (below min_candidates, FDR inactive)", i)
		}
	}
}

func TestPressureScoreZeroBelowHighs(t *testing.T) {
	cfg := config.DefaultLoadAwareDecision()
	cfg.Enabled = true
	p := Pressure{QueueLength: 1, LoadPerCore: 0.1, MemoryUsedFraction: 0.1, PSIAvg10: 1}
	if got := PressureScore(p, cfg); got != 0 {
		t.Errorf("PressureScore = %v, want 0 when every signal is below its high", got)
	}
}

func TestPressureScoreSaturatesAtDoubleHigh(t *testing.T) {
	cfg := config.DefaultLoadAwareDecision()
	cfg.Enabled = true
	p := Pressure{
		QueueLength:        cfg.QueueHigh * 2,
		LoadPerCore:        cfg.LoadPerCoreHigh * 2,
		MemoryUsedFraction: cfg.MemoryUsedFractionHigh * 2,
		PSIAvg10:           cfg.PSIAvg10High * 2,
	}
	if got := PressureScore(p, cfg); math.Abs(got-1) > 1e-9 {
		t.Errorf("PressureScore = %v, want 1 at double every high", got)
	}
}

func TestModulateLossesShiftsTowardMitigation(t *testing.T) {
	cfg := config.DefaultLoadAwareDecision()
	cfg.Enabled = true
	losses := map[model.Action]float64{
		model.ActionKeep:  1.0,
		model.ActionPause: 1.0,
		model.ActionKill:  1.0,
	}
	out := ModulateLosses(losses, 1.0, cfg)
	if out[model.ActionKeep] <= losses[model.ActionKeep] {
		t.Errorf("keep loss should increase under full pressure: got %v", out[model.ActionKeep])
	}
	if out[model.ActionPause] >= losses[model.ActionPause] {
		t.Errorf("pause loss should decrease under full pressure: got %v", out[model.ActionPause])
	}
}

func TestEvaluateTimeBoundMustWaitBeforeMin(t *testing.T) {
	cfg := config.DecisionTimeBound{Enabled: true, MinSeconds: 60, MaxSeconds: 300, VoiDecayHalfLifeSeconds: 30, VoiFloor: 0.01, FallbackAction: model.ActionKeep}
	verdict := EvaluateTimeBound(uniformPosterior(), 10, cfg)
	if !verdict.MustWait {
		t.Errorf("expected MustWait before min_seconds elapsed")
	}
}

func TestEvaluateTimeBoundForcesFallbackAtMax(t *testing.T) {
	cfg := config.DecisionTimeBound{Enabled: true, MinSeconds: 10, MaxSeconds: 60, VoiDecayHalfLifeSeconds: 1000000, VoiFloor: 0.0, FallbackAction: model.ActionKeep}
	verdict := EvaluateTimeBound(uniformPosterior(), 60, cfg)
	if !verdict.Forced {
		t.Errorf("expected Forced at max_seconds ceiling")
	}
	if verdict.ForcedAction != model.ActionKeep {
		t.Errorf("ForcedAction = %v, want ActionKeep", verdict.ForcedAction)
	}
}

func TestEvaluateTimeBoundDisabledNeverForces(t *testing.T) {
	cfg := config.DecisionTimeBound{Enabled: false}
	verdict := EvaluateTimeBound(uniformPosterior(), 99999, cfg)
	if verdict.MustWait || verdict.Forced {
		t.Errorf("disabled time bound should never wait or force")
	}
}

func TestInitialVOIUniformIsOne(t *testing.T) {
	voi := InitialVOI(uniformPosterior())
	if math.Abs(voi-1) > 1e-9 {
		t.Errorf("InitialVOI(uniform) = %v, want 1", voi)
	}
}

func TestInitialVOICertainIsZero(t *testing.T) {
	post := model.Posterior{Probs: [4]float64{1, 0, 0, 0}}
	voi := InitialVOI(post)
	if voi > 1e-9 {
		t.Errorf("InitialVOI(certain) = %v, want ~0", voi)
	}
}
