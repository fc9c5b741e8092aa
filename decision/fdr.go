package decision

import (
	"sort"

	"github.com/proctriage/triage/config"
)

// ApplyFDR runs the Benjamini-Hochberg or Benjamini-Yekutieli step-up test over a batch of
// per-candidate p-values (1 - P(Abandoned), spec §4.4) at the configured alpha, returning which
// candidates survive in the same order as pValues. If FDR control is disabled or the batch is
// smaller than MinCandidates, every candidate passes untouched (FDR never activates below the
// configured floor).
func ApplyFDR(pValues []float64, cfg config.FdrControl) []bool {
	n := len(pValues)
	pass := make([]bool, n)
	if !cfg.Enabled || n < cfg.MinCandidates {
		for i := range pass {
			pass[i] = true
		}
		return pass
	}

	alpha := cfg.Alpha
	if cfg.Method == config.FdrBY {
		alpha = cfg.Alpha / harmonicNumber(n)
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return pValues[order[i]] < pValues[order[j]] })

	// Largest k such that the k-th smallest (1-indexed) p-value <= (k/n)*alpha; every candidate
	// at or below that rank passes the step-up test.
	largestK := 0
	for k := 1; k <= n; k++ {
		threshold := float64(k) / float64(n) * alpha
		if pValues[order[k-1]] <= threshold {
			largestK = k
		}
	}
	for i := 0; i < largestK; i++ {
		pass[order[i]] = true
	}
	return pass
}

// harmonicNumber returns H(n) = Σ 1/i for i=1..n, the correction factor Benjamini-Yekutieli
// applies to stay valid under arbitrary dependence between candidates.
func harmonicNumber(n int) float64 {
	var h float64
	for i := 1; i <= n; i++ {
		h += 1.0 / float64(i)
	}
	return h
}
