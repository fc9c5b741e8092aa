package inference

import (
	"math"
	"testing"

	"github.com/proctriage/triage/model"
)

func logBF(v float64) *float64 { return &v }

func TestUpdateSumsToOneNoNaN(t *testing.T) {
	tests := []struct {
		name   string
		ledger []model.Evidence
	}{
		{"empty ledger", nil},
		{"single high-confidence item", []model.Evidence{
			{Kind: model.KindBurstRate, Target: model.ClassAbandoned, Confidence: model.ConfidenceHigh, Direction: model.DirectionTowardPredicted},
		}},
		{"multiple items, explicit log BF", []model.Evidence{
			{Kind: model.KindBurstRate, Target: model.ClassUsefulBad, LogBF: logBF(3.5)},
			{Kind: model.KindHSMMRegime, Target: model.ClassZombie, LogBF: logBF(-2.0)},
			{Kind: model.KindSupervisionHint, Target: model.ClassUseful, LogBF: logBF(1.2)},
		}},
		{"extreme log BF does not overflow", []model.Evidence{
			{Kind: model.KindBurstRate, Target: model.ClassAbandoned, LogBF: logBF(500)},
		}},
	}

	prior := Prior(nil, "")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			post := Update(prior, tt.ledger)
			var sum float64
			for _, p := range post.Probs {
				if math.IsNaN(p) || math.IsInf(p, 0) {
					t.Fatalf("probability is NaN/Inf: %v", p)
				}
				sum += p
			}
			if math.Abs(sum-1) > 1e-9 {
				t.Errorf("probs sum = %v, want 1", sum)
			}
		})
	}
}

func TestUpdateEmptyLedgerReturnsPriorLowConfidence(t *testing.T) {
	prior := Prior(nil, "")
	post := Update(prior, nil)
	for i, p := range post.Probs {
		if math.Abs(p-prior[i]) > 1e-12 {
			t.Errorf("probs[%d] = %v, want prior %v", i, p, prior[i])
		}
	}
	if post.Confidence > 0.2 {
		t.Errorf("confidence = %v, want low", post.Confidence)
	}
}

func TestPriorUniformWhenUnknownCategory(t *testing.T) {
	p := Prior(map[string][4]float64{"known": {0.7, 0.1, 0.1, 0.1}}, "unknown")
	for _, v := range p {
		if math.Abs(v-0.25) > 1e-12 {
			t.Errorf("prior = %v, want uniform 0.25", v)
		}
	}
}

func TestPriorNormalizes(t *testing.T) {
	p := Prior(map[string][4]float64{"cat": {2, 1, 1, 0}}, "cat")
	var sum float64
	for _, v := range p {
		sum += v
	}
	if math.Abs(sum-1) > 1e-12 {
		t.Errorf("prior sums to %v, want 1", sum)
	}
	if math.Abs(p[0]-0.5) > 1e-12 {
		t.Errorf("p[0] = %v, want 0.5", p[0])
	}
}

func TestGalaxyBrainCardStackReproducesPosterior(t *testing.T) {
	prior := Prior(nil, "")
	ledger := []model.Evidence{
		{Kind: model.KindBurstRate, Target: model.ClassUsefulBad, LogBF: logBF(2.1)},
		{Kind: model.KindHSMMRegime, Target: model.ClassAbandoned, Confidence: model.ConfidenceHigh, Direction: model.DirectionTowardPredicted},
	}
	post := Update(prior, ledger)
	if err := VerifyReproducible(prior, post); err != nil {
		t.Errorf("card stack did not reproduce posterior: %v", err)
	}
}
