package feature

import "github.com/proctriage/triage/model"

// SnapshotEvidence derives the evidence kinds that need no time series -- zombie state, critical
// file locks, and open write handles -- directly from a single Snapshot (spec §3's KindZombieState,
// KindCriticalFile, KindOpenWriteFD). BurstResult.Evidence and HsmmAnalyzer.Evidence require a
// history of samples and are built separately by a caller that retains state across passes.
func SnapshotEvidence(s *model.Snapshot) []model.Evidence {
	var out []model.Evidence

	if s.State == model.StateZombie {
		out = append(out, model.Evidence{
			Kind:        model.KindZombieState,
			Target:      model.ClassZombie,
			Direction:   model.DirectionTowardPredicted,
			Confidence:  model.ConfidenceHigh,
			Explanation: "process is in zombie state (exited, awaiting parent reap)",
		})
	}

	for _, cf := range s.CriticalFiles {
		conf := model.ConfidenceLow
		if cf.Strength == model.StrengthHard {
			conf = model.ConfidenceHigh
		}
		out = append(out, model.Evidence{
			Kind:        model.KindCriticalFile,
			Target:      model.ClassUseful,
			Direction:   model.DirectionTowardPredicted,
			Confidence:  conf,
			Explanation: "holds " + cf.Category.String() + " (" + cf.Strength.String() + "): " + cf.Path,
		})
	}

	if n := s.OpenWriteFDCount(); n > 0 {
		out = append(out, model.Evidence{
			Kind:        model.KindOpenWriteFD,
			Target:      model.ClassUseful,
			Direction:   model.DirectionTowardPredicted,
			Confidence:  model.ConfidenceMedium,
			Explanation: "holds open write file descriptors, suggesting active output",
		})
	}

	return out
}
