package feature

import (
	"math"

	"github.com/proctriage/triage/model"
)

// numStates mirrors the 4 classification targets (spec §4.2.2: "four hidden states mirror the
// classification").
const numStates = 4

// GammaDuration is a Gamma(shape, rate) dwell-time distribution for one hidden state, grounded
// verbatim on original_source/pt-core/src/inference/hsmm.rs's GammaDuration.
type GammaDuration struct {
	Shape float64
	Rate  float64
}

// Mean, Variance mirror the original's accessors.
func (g GammaDuration) Mean() float64     { return g.Shape / g.Rate }
func (g GammaDuration) Variance() float64 { return g.Shape / (g.Rate * g.Rate) }

// HazardRate computes the Gamma hazard at dwell time d. For x = rate*d > 20, the asymptotic rate
// β is used directly; below that, a ratio-of-gammas approximation is used. This exact cutover
// (x > 20) is carried verbatim from the original since spec.md is silent on it (spec §4.2.2 only
// specifies "exact Gamma hazard ... asymptotic rate as a surrogate", not the crossover point).
func (g GammaDuration) HazardRate(duration float64) float64 {
	if duration <= 0 {
		if g.Shape <= 1 {
			return math.Inf(1)
		}
		return 0
	}
	x := g.Rate * duration
	if x > 20 {
		return g.Rate
	}
	gammaRatio := g.Shape / (1 + x/g.Shape)
	return g.Rate * gammaRatio
}

// UpdateWithDuration performs the moment-matched conjugate update from spec §4.2.2 step 5,
// grounded verbatim on the original's update_with_duration: a pseudo-observation weighted
// average of the prior mean and the observed duration, with shape incremented by one.
func (g GammaDuration) UpdateWithDuration(observedDuration float64) GammaDuration {
	priorWeight := g.Shape
	obsWeight := 1.0
	totalWeight := priorWeight + obsWeight

	newMean := (priorWeight*g.Mean() + obsWeight*observedDuration) / totalWeight
	newShape := g.Shape + 1
	newRate := newShape / newMean
	return GammaDuration{Shape: newShape, Rate: newRate}
}

// LogPDF evaluates the Gamma log-density at d.
func (g GammaDuration) LogPDF(d float64) float64 {
	if d <= 0 {
		return math.Inf(-1)
	}
	logGammaShape, _ := math.Lgamma(g.Shape)
	return g.Shape*math.Log(g.Rate) - logGammaShape + (g.Shape-1)*math.Log(d) - g.Rate*d
}

// Survival evaluates S(d) = P(D > d) via the regularized upper incomplete gamma function.
func (g GammaDuration) Survival(d float64) float64 {
	if d <= 0 {
		return 1
	}
	return upperIncompleteGammaRatio(g.Shape, g.Rate*d)
}

// upperIncompleteGammaRatio computes Q(a, x) = Gamma(a, x)/Gamma(a) via the regularized lower
// incomplete gamma function's complement, using a continued-fraction expansion for x >= a+1 and
// a series expansion otherwise (standard numerical-recipes split).
func upperIncompleteGammaRatio(a, x float64) float64 {
	if x < 0 || a <= 0 {
		return 1
	}
	if x == 0 {
		return 1
	}
	if x < a+1 {
		return 1 - lowerRegularizedGammaSeries(a, x)
	}
	return upperRegularizedGammaCF(a, x)
}

func lowerRegularizedGammaSeries(a, x float64) float64 {
	if x <= 0 {
		return 0
	}
	logGammaA, _ := math.Lgamma(a)
	ap := a
	sum := 1.0 / a
	del := sum
	for n := 0; n < 200; n++ {
		ap++
		del *= x / ap
		sum += del
		if math.Abs(del) < math.Abs(sum)*1e-14 {
			break
		}
	}
	return sum * math.Exp(-x+a*math.Log(x)-logGammaA)
}

func upperRegularizedGammaCF(a, x float64) float64 {
	logGammaA, _ := math.Lgamma(a)
	tiny := 1e-300
	b := x + 1 - a
	c := 1 / tiny
	d := 1 / b
	h := d
	for i := 1; i < 200; i++ {
		an := -float64(i) * (float64(i) - a)
		b += 2
		d = an*d + b
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = b + an/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		del := d * c
		h *= del
		if math.Abs(del-1) < 1e-14 {
			break
		}
	}
	return math.Exp(-x+a*math.Log(x)-logGammaA) * h
}

// EmissionParams gives the per-state, per-feature Gaussian emission mean/variance used by
// emission_prob in the original source.
type EmissionParams struct {
	Means [numStates][]float64
	Vars  [numStates][]float64
}

// MinProbability floors any posterior component to avoid starving a state to exactly zero
// (spec §4.2.2 step 4).
const MinProbability = 1e-6

// HsmmAnalyzer tracks the rolling HSMM state posterior for one process (spec §4.2.2).
type HsmmAnalyzer struct {
	Emission   EmissionParams
	Transition [numStates][numStates]float64 // Transition[i][j] = P(next=j | leaving i); diagonal must be 0
	Durations  [numStates]GammaDuration

	StateProbs      [numStates]float64
	CurrentState    int
	CurrentDuration int
	Switches        []StateSwitch
}

// StateSwitch records a MAP-state transition.
type StateSwitch struct {
	TimeIndex        int
	FromState        int
	ToState          int
	Confidence       float64
	PreviousDuration int
}

// NewHsmmAnalyzer builds an analyzer with a uniform initial state posterior (spec §4.2.2
// invariant: "initial probabilities sum to 1").
func NewHsmmAnalyzer(emission EmissionParams, transition [numStates][numStates]float64, durations [numStates]GammaDuration) *HsmmAnalyzer {
	a := &HsmmAnalyzer{Emission: emission, Transition: transition, Durations: durations}
	for i := range a.StateProbs {
		a.StateProbs[i] = 1.0 / numStates
	}
	return a
}

func (a *HsmmAnalyzer) emissionProb(obs []float64, state int) float64 {
	logProb := 0.0
	n := len(obs)
	if len(a.Emission.Means[state]) < n {
		n = len(a.Emission.Means[state])
	}
	for f := 0; f < n; f++ {
		mean := a.Emission.Means[state][f]
		variance := a.Emission.Vars[state][f]
		diff := obs[f] - mean
		logProb += -0.5 * (diff*diff/variance + math.Log(variance) + math.Ln2 + math.Log(math.Pi))
	}
	p := math.Exp(logProb)
	if p < MinProbability {
		return MinProbability
	}
	return p
}

func (a *HsmmAnalyzer) durationProb(duration float64, state int) float64 {
	p := a.Durations[state].Survival(duration)
	if p < MinProbability {
		return MinProbability
	}
	return p
}

// Update processes one observation vector, implementing spec §4.2.2 steps 1-5 verbatim
// (grounded line-for-line on original_source/.../hsmm.rs::update).
func (a *HsmmAnalyzer) Update(observation []float64) [numStates]float64 {
	prevState := a.CurrentState
	a.CurrentDuration++

	var emissions [numStates]float64
	for s := 0; s < numStates; s++ {
		emissions[s] = a.emissionProb(observation, s)
	}

	var stayFactors, leaveMass [numStates]float64
	currentDuration := float64(a.CurrentDuration)
	if currentDuration < 1 {
		currentDuration = 1
	}
	for s := 0; s < numStates; s++ {
		var leaveHazard float64
		if s == prevState {
			leaveHazard = clamp01(a.Durations[s].HazardRate(currentDuration))
		} else {
			leaveHazard = clamp01(a.Durations[s].Rate)
		}
		if s == prevState {
			stayFactors[s] = a.durationProb(currentDuration, s)
		} else {
			sf := 1 - leaveHazard
			if sf < MinProbability {
				sf = MinProbability
			}
			stayFactors[s] = sf
		}
		leaveMass[s] = a.StateProbs[s] * leaveHazard
	}

	var newProbs [numStates]float64
	for s := 0; s < numStates; s++ {
		inbound := a.StateProbs[s] * stayFactors[s]
		for i := 0; i < numStates; i++ {
			if i != s {
				inbound += leaveMass[i] * a.Transition[i][s]
			}
		}
		newProbs[s] = emissions[s] * inbound
	}

	sum := 0.0
	for _, p := range newProbs {
		sum += p
	}
	if sum > MinProbability {
		for s := range newProbs {
			newProbs[s] /= sum
		}
	} else {
		for s := range newProbs {
			newProbs[s] = 1.0 / numStates
		}
	}

	var floored [numStates]bool
	free := 0.0
	nFloored := 0
	for s := range newProbs {
		if newProbs[s] < MinProbability {
			newProbs[s] = MinProbability
			floored[s] = true
			nFloored++
		} else {
			free += newProbs[s]
		}
	}
	scale := (1 - float64(nFloored)*MinProbability) / free
	for s := range newProbs {
		if !floored[s] {
			newProbs[s] *= scale
		}
	}

	a.StateProbs = newProbs
	newState := argmaxState(newProbs)

	if newState != prevState {
		a.Switches = append(a.Switches, StateSwitch{
			ToState:          newState,
			FromState:        prevState,
			Confidence:       newProbs[newState],
			PreviousDuration: a.CurrentDuration,
		})
		a.Durations[prevState] = a.Durations[prevState].UpdateWithDuration(float64(a.CurrentDuration))
		a.CurrentDuration = 0
	}
	a.CurrentState = newState
	return newProbs
}

func argmaxState(probs [numStates]float64) int {
	best, bestP := 0, probs[0]
	for s := 1; s < numStates; s++ {
		if probs[s] > bestP {
			best, bestP = s, probs[s]
		}
	}
	return best
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// Evidence converts the current state posterior into an Evidence item for the inference core
// (spec §4.3), targeting the MAP state with confidence derived from its posterior mass.
func (a *HsmmAnalyzer) Evidence() model.Evidence {
	state := argmaxState(a.StateProbs)
	p := a.StateProbs[state]
	conf := model.ConfidenceLow
	switch {
	case p >= 0.8:
		conf = model.ConfidenceHigh
	case p >= 0.5:
		conf = model.ConfidenceMedium
	}
	return model.Evidence{
		Kind:        model.KindHSMMRegime,
		Target:      model.Classes[state],
		Direction:   model.DirectionTowardPredicted,
		Confidence:  conf,
		Explanation: "HSMM regime posterior favors " + model.Classes[state].String(),
	}
}
