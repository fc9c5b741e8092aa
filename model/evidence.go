package model

// Class is one of the four lifecycle classes the inference core classifies a process into
// (spec §3, GLOSSARY).
type Class int

const (
	ClassUseful Class = iota
	ClassUsefulBad
	ClassAbandoned
	ClassZombie
	numClasses = int(ClassZombie) + 1
)

func (c Class) String() string {
	switch c {
	case ClassUseful:
		return "Useful"
	case ClassUsefulBad:
		return "UsefulBad"
	case ClassAbandoned:
		return "Abandoned"
	case ClassZombie:
		return "Zombie"
	}
	return "Unknown"
}

// Classes lists all four classes in fixed order, matching the index order of Posterior.Probs.
var Classes = [numClasses]Class{ClassUseful, ClassUsefulBad, ClassAbandoned, ClassZombie}

// Direction is the sense in which one piece of evidence pushes the posterior (spec §3).
type Direction int

const (
	DirectionNeutral Direction = iota
	DirectionTowardPredicted
	DirectionTowardReference
)

// ConfidenceLevel is a coarse confidence bucket used when evidence carries no explicit log
// Bayes factor (spec §4.3).
type ConfidenceLevel int

const (
	ConfidenceLow ConfidenceLevel = iota
	ConfidenceMedium
	ConfidenceHigh
)

func (c ConfidenceLevel) String() string {
	switch c {
	case ConfidenceHigh:
		return "high"
	case ConfidenceMedium:
		return "medium"
	}
	return "low"
}

// confidenceLogOdds is the confidence-to-log-odds table from spec §4.3: high ±2.0, medium ±1.0,
// low ±0.3, sign determined by direction.
var confidenceLogOdds = map[ConfidenceLevel]float64{
	ConfidenceHigh:   2.0,
	ConfidenceMedium: 1.0,
	ConfidenceLow:    0.3,
}

// EvidenceKind is a closed tag for the kind of feature that produced one evidence item
// (spec §9 "duck-typed evidence is closed"). New kinds extend this set; there is no dynamic
// dispatch over arbitrary types.
type EvidenceKind string

const (
	KindBurstRate        EvidenceKind = "burst_rate"
	KindBurstFano        EvidenceKind = "burst_fano"
	KindHSMMRegime        EvidenceKind = "hsmm_regime"
	KindSupervisionHint   EvidenceKind = "supervision_hint"
	KindCriticalFile      EvidenceKind = "critical_file"
	KindOpenWriteFD       EvidenceKind = "open_write_fd"
	KindZombieState       EvidenceKind = "zombie_state"
	KindCategoryPrior     EvidenceKind = "category_prior"
)

// Evidence is one typed, explainable contribution to the posterior (spec §3, §9). Target is the
// class this item's contribution is evaluated against; for items with an explicit LogBF, LogBF is
// the additive log-odds contribution toward Target. Items without LogBF contribute via
// LogOdds(), which maps their confidence through the confidenceLogOdds table.
type Evidence struct {
	Kind        EvidenceKind    `json:"kind"`
	Target      Class           `json:"target"`
	Direction   Direction       `json:"direction"`
	Confidence  ConfidenceLevel `json:"confidence"`
	LogBF       *float64        `json:"log_bf,omitempty"`
	Explanation string          `json:"explanation"`
}

// Contribution returns (direction, log Bayes factor if explicit, confidence) — the closed
// evidence-variant contract from spec §9.
func (e Evidence) Contribution() (Direction, *float64, ConfidenceLevel) {
	return e.Direction, e.LogBF, e.Confidence
}

// LogOdds returns the signed log-odds contribution of this item: its explicit LogBF if present,
// otherwise the confidence-to-log-odds table value signed by Direction.
func (e Evidence) LogOdds() float64 {
	if e.LogBF != nil {
		return *e.LogBF
	}
	v := confidenceLogOdds[e.Confidence]
	if e.Direction == DirectionTowardReference {
		return -v
	}
	return v
}

// GalaxyBrainCard is one step of the reproducible explanation path for a posterior (spec §4.3,
// GLOSSARY "Galaxy-brain ledger"). Re-evaluating every card's Substituted form against its
// Symbolic form reproduces Value to Precision.
type GalaxyBrainCard struct {
	Symbolic    string  `json:"symbolic"`
	Substituted string  `json:"substituted"`
	Value       float64 `json:"value"`
	Precision   int     `json:"precision"`
}

// Posterior is a probability vector over the four classes, plus a scalar confidence and the
// per-class log-odds breakdown that produced it (spec §3).
type Posterior struct {
	Probs      [numClasses]float64 `json:"probs"`
	LogOdds    [numClasses]float64 `json:"log_odds"`
	Confidence float64             `json:"confidence"`
	Cards      []GalaxyBrainCard   `json:"cards,omitempty"`
}

// Prob returns the posterior probability of one class.
func (p Posterior) Prob(c Class) float64 { return p.Probs[c] }

// MAP returns the maximum-a-posteriori class and its probability.
func (p Posterior) MAP() (Class, float64) {
	best, bestP := ClassUseful, p.Probs[ClassUseful]
	for _, c := range Classes {
		if p.Probs[c] > bestP {
			best, bestP = c, p.Probs[c]
		}
	}
	return best, bestP
}

// Action is a recommended or executed remediation (spec §1, §4.4).
type Action int

const (
	ActionKeep Action = iota
	ActionPause
	ActionThrottle
	ActionRenice
	ActionRestart
	ActionKill
)

func (a Action) String() string {
	switch a {
	case ActionKeep:
		return "keep"
	case ActionPause:
		return "pause"
	case ActionThrottle:
		return "throttle"
	case ActionRenice:
		return "renice"
	case ActionRestart:
		return "restart"
	case ActionKill:
		return "kill"
	}
	return "unknown"
}

// ActionPreference is the fixed tie-break order from spec §4.4: keep > pause > throttle > renice
// > restart > kill. Lower index wins a tie in expected loss.
var ActionPreference = [6]Action{ActionKeep, ActionPause, ActionThrottle, ActionRenice, ActionRestart, ActionKill}

// Candidate is the C5 input: a projection of a Snapshot plus Posterior carrying exactly the
// fields the policy enforcer's rules consume (spec §3).
type Candidate struct {
	Identity         Identity  `json:"identity"`
	Cmdline          []string  `json:"cmdline"`
	User             string    `json:"user"`
	Group            string    `json:"group"`
	Category         string    `json:"category"`
	AgeSeconds       int64     `json:"age_seconds"`
	Posterior        Posterior `json:"posterior"`
	MemoryMB         float64   `json:"memory_mb"`
	SignatureKnown   bool      `json:"signature_known"`
	OpenWriteFDCount int       `json:"open_write_fd_count"`
	CriticalFiles    []CriticalFile `json:"critical_files"`
	HasLockedFiles   bool      `json:"has_locked_files"`
	State            ProcState `json:"state"`
	Wchan            string    `json:"wchan"`
	CWDDeleted       bool      `json:"cwd_deleted"`
	RecentIOBytes    uint64    `json:"recent_io_bytes"`
	SecondsSinceIO   *int64    `json:"seconds_since_io,omitempty"` // nil when unknown (single-pass snapshot, no prior sample to diff against)
	TTYAttached      bool      `json:"tty_attached"`
	PPID             int       `json:"ppid"`
	Supervisor       []SupervisorHint `json:"supervisor_hints"`
}

// CandidateFrom projects a Snapshot and Posterior into a Candidate for enforcement.
func CandidateFrom(s *Snapshot, p Posterior, category string, signatureKnown bool) Candidate {
	return Candidate{
		Identity:         s.Identity,
		Cmdline:          s.Cmdline,
		User:             s.User,
		Group:            s.Group,
		Category:         category,
		AgeSeconds:       s.AgeSeconds,
		Posterior:        p,
		MemoryMB:         float64(s.RSSBytes) / (1024 * 1024),
		SignatureKnown:   signatureKnown,
		OpenWriteFDCount: s.OpenWriteFDCount(),
		CriticalFiles:    s.CriticalFiles,
		State:            s.State,
		Wchan:            s.Wchan,
		CWDDeleted:       s.CWDDeleted,
		RecentIOBytes:    s.IOWriteBytes,
		TTYAttached:      s.TTY > 0,
		PPID:             s.PPID,
		Supervisor:       s.Supervisor,
	}
}
