package feature

import (
	"math"
	"testing"
)

func defaultHsmmAnalyzer() *HsmmAnalyzer {
	emission := EmissionParams{}
	for s := 0; s < numStates; s++ {
		emission.Means[s] = []float64{float64(s) * 10}
		emission.Vars[s] = []float64{5}
	}
	var transition [numStates][numStates]float64
	for i := 0; i < numStates; i++ {
		for j := 0; j < numStates; j++ {
			if i != j {
				transition[i][j] = 1.0 / 3
			}
		}
	}
	var durations [numStates]GammaDuration
	for s := range durations {
		durations[s] = GammaDuration{Shape: 2, Rate: 0.02}
	}
	return NewHsmmAnalyzer(emission, transition, durations)
}

func TestHsmmUpdateSumsToOne(t *testing.T) {
	a := defaultHsmmAnalyzer()
	for i := 0; i < 10; i++ {
		probs := a.Update([]float64{5})
		sum := 0.0
		for _, p := range probs {
			sum += p
			if p < MinProbability {
				t.Errorf("component below floor: %v", p)
			}
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("probs sum = %v, want 1", sum)
		}
	}
}

func TestHsmmInitialStateUniform(t *testing.T) {
	a := defaultHsmmAnalyzer()
	sum := 0.0
	for _, p := range a.StateProbs {
		sum += p
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("initial probs sum = %v, want 1", sum)
	}
}

func TestTransitionDiagonalZero(t *testing.T) {
	a := defaultHsmmAnalyzer()
	for i := 0; i < numStates; i++ {
		if a.Transition[i][i] != 0 {
			t.Errorf("Transition[%d][%d] = %v, want 0 (self-transitions are dwell continuation)", i, i, a.Transition[i][i])
		}
	}
}

func TestGammaHazardAsymptoticCutover(t *testing.T) {
	g := GammaDuration{Shape: 2, Rate: 1}
	// x = rate*duration = 25 > 20 -> asymptotic
	if got := g.HazardRate(25); got != g.Rate {
		t.Errorf("HazardRate(25) = %v, want asymptotic rate %v", got, g.Rate)
	}
}

func TestUpdateWithDurationIncreasesShape(t *testing.T) {
	g := GammaDuration{Shape: 2, Rate: 0.02}
	updated := g.UpdateWithDuration(100)
	if updated.Shape != g.Shape+1 {
		t.Errorf("Shape = %v, want %v", updated.Shape, g.Shape+1)
	}
}
