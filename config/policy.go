package config

import (
	"time"

	"github.com/proctriage/triage/model"
)

// LossRow is one row of the loss matrix: the cost of taking each action given a true class
// (spec §4.4). Keep is always configured but need not cost zero; the optional fields mirror the original's
// per-action Option<f64> (an action a preset doesn't configure simply isn't offered).
type LossRow struct {
	Keep      float64  `json:"keep"`
	Pause     *float64 `json:"pause,omitempty"`
	Throttle  *float64 `json:"throttle,omitempty"`
	Kill      float64  `json:"kill"`
	Restart   *float64 `json:"restart,omitempty"`
	Renice    *float64 `json:"renice,omitempty"`
}

// Cost returns the configured loss for taking action a (r.Keep for Keep), or 0 for an action the
// preset leaves unconfigured (spec §4.4 treats an absent action as never worth recommending,
// not as free — decision/ must check presence before selecting, not just read this blindly).
func (r LossRow) Cost(a model.Action) (float64, bool) {
	switch a {
	case model.ActionKeep:
		return r.Keep, true
	case model.ActionPause:
		return deref(r.Pause)
	case model.ActionThrottle:
		return deref(r.Throttle)
	case model.ActionKill:
		return r.Kill, true
	case model.ActionRestart:
		return deref(r.Restart)
	case model.ActionRenice:
		return deref(r.Renice)
	}
	return 0, false
}

func deref(p *float64) (float64, bool) {
	if p == nil {
		return 0, false
	}
	return *p, true
}

// LossMatrix is L[class][action], one LossRow per lifecycle class (spec §4.4).
type LossMatrix struct {
	Useful     LossRow `json:"useful"`
	UsefulBad  LossRow `json:"useful_bad"`
	Abandoned  LossRow `json:"abandoned"`
	Zombie     LossRow `json:"zombie"`
}

// Row returns the LossRow for a class.
func (m LossMatrix) Row(c model.Class) LossRow {
	switch c {
	case model.ClassUseful:
		return m.Useful
	case model.ClassUsefulBad:
		return m.UsefulBad
	case model.ClassAbandoned:
		return m.Abandoned
	case model.ClassZombie:
		return m.Zombie
	}
	return LossRow{}
}

// PatternKind distinguishes a literal substring match from a regular expression (spec §4.5).
type PatternKind int

const (
	PatternLiteral PatternKind = iota
	PatternRegex
	PatternGlob
)

// PatternEntry is one guardrail pattern: protected-process or force-review (spec §4.5).
type PatternEntry struct {
	Pattern         string      `json:"pattern"`
	Kind            PatternKind `json:"kind"`
	CaseInsensitive bool        `json:"case_insensitive"`
	Notes           string      `json:"notes,omitempty"`
}

// Guardrails are the hard and soft checks the policy enforcer runs before any action (spec §4.5).
type Guardrails struct {
	ProtectedPatterns    []PatternEntry `json:"protected_patterns"`
	ForceReviewPatterns  []PatternEntry `json:"force_review_patterns"`
	ProtectedUsers       []string       `json:"protected_users"`
	ProtectedGroups      []string       `json:"protected_groups"`
	ProtectedCategories  []string       `json:"protected_categories"`
	NeverKillPPID        []int          `json:"never_kill_ppid"`
	NeverKillPID         []int          `json:"never_kill_pid"`
	MaxKillsPerRun       int            `json:"max_kills_per_run"`
	MaxKillsPerMinute    *int           `json:"max_kills_per_minute,omitempty"`
	MaxKillsPerHour      *int           `json:"max_kills_per_hour,omitempty"`
	MaxKillsPerDay       *int           `json:"max_kills_per_day,omitempty"`
	MinProcessAgeSeconds uint64         `json:"min_process_age_seconds"`
	RequireConfirmation  bool           `json:"require_confirmation"`
}

// RobotMode gates fully unattended action (spec §4.5, §6).
type RobotMode struct {
	Enabled                  bool                  `json:"enabled"`
	MinPosterior             float64               `json:"min_posterior"`
	MinConfidence            model.ConfidenceLevel `json:"min_confidence"`
	MaxBlastRadiusMB         float64               `json:"max_blast_radius_mb"`
	MaxKills                 int                   `json:"max_kills"`
	RequireKnownSignature    bool                  `json:"require_known_signature"`
	RequirePolicySnapshot    bool                  `json:"require_policy_snapshot"`
	AllowCategories          []string              `json:"allow_categories"`
	ExcludeCategories        []string              `json:"exclude_categories"`
	RequireHumanForSupervised bool                 `json:"require_human_for_supervised"`
}

// FdrMethod selects the step-up procedure used for multi-candidate kill batches (spec §4.4).
type FdrMethod int

const (
	FdrBH FdrMethod = iota // Benjamini-Hochberg
	FdrBY                  // Benjamini-Yekutieli, valid under arbitrary dependence
)

func (m FdrMethod) String() string {
	if m == FdrBY {
		return "benjamini-yekutieli"
	}
	return "benjamini-hochberg"
}

// AlphaInvesting optionally adapts alpha across sequential batches (spec §4.4 is silent on this;
// carried from the original's FdrControl so a preset that sets it is not silently dropped).
type AlphaInvesting struct {
	W0          float64 `json:"w0"`
	AlphaSpend  float64 `json:"alpha_spend"`
	AlphaEarn   float64 `json:"alpha_earn"`
}

// FdrControl configures multi-candidate false-discovery-rate control for kill batches (spec §4.4).
type FdrControl struct {
	Enabled        bool            `json:"enabled"`
	Method         FdrMethod       `json:"method"`
	Alpha          float64         `json:"alpha"`
	MinCandidates  int             `json:"min_candidates"`
	AlphaInvesting *AlphaInvesting `json:"alpha_investing,omitempty"`
}

// DataLossGates block actions that would plausibly lose unflushed data (spec §4.5).
type DataLossGates struct {
	BlockIfOpenWriteFDs      bool `json:"block_if_open_write_fds"`
	MaxOpenWriteFDs          *int `json:"max_open_write_fds,omitempty"`
	BlockIfLockedFiles       bool `json:"block_if_locked_files"`
	BlockIfDeletedCWD        bool `json:"block_if_deleted_cwd"`
	BlockIfActiveTTY         bool `json:"block_if_active_tty"`
	BlockIfRecentIOSeconds   *int `json:"block_if_recent_io_seconds,omitempty"`
}

// LoadWeights tunes how heavily each pressure signal contributes to the load-aware modulation
// factor (spec §4.4). The original source's policy.rs (the struct's true default values) was not
// present in the retrieval pack; these weight the four signals evenly, a deliberate spec-silent
// default documented in DESIGN.md.
type LoadWeights struct {
	Queue      float64 `json:"queue"`
	LoadPerCore float64 `json:"load_per_core"`
	MemoryFraction float64 `json:"memory_fraction"`
	PSI        float64 `json:"psi"`
}

// DefaultLoadWeights mirrors LoadWeights::default() -- equal weighting across the four signals.
func DefaultLoadWeights() LoadWeights {
	return LoadWeights{Queue: 0.25, LoadPerCore: 0.25, MemoryFraction: 0.25, PSI: 0.25}
}

// LoadMultipliers bound how far load-aware modulation may shift expected loss (spec §4.4).
type LoadMultipliers struct {
	KeepMax       float64 `json:"keep_max"`
	ReversibleMin float64 `json:"reversible_min"`
	RiskyMax      float64 `json:"risky_max"`
}

// DefaultLoadMultipliers mirrors LoadMultipliers::default() as used by every preset but
// paranoid (which overrides it explicitly).
func DefaultLoadMultipliers() LoadMultipliers {
	return LoadMultipliers{KeepMax: 1.5, ReversibleMin: 0.5, RiskyMax: 2.0}
}

// LoadAwareDecision configures pressure-aware modulation of expected loss (spec §4.4).
type LoadAwareDecision struct {
	Enabled                bool            `json:"enabled"`
	QueueHigh              int             `json:"queue_high"`
	LoadPerCoreHigh        float64         `json:"load_per_core_high"`
	MemoryUsedFractionHigh float64         `json:"memory_used_fraction_high"`
	PSIAvg10High           float64         `json:"psi_avg10_high"`
	Weights                LoadWeights     `json:"weights"`
	Multipliers            LoadMultipliers `json:"multipliers"`
}

// DefaultLoadAwareDecision mirrors LoadAwareDecision::default() (disabled, used by presets that
// do not override it).
func DefaultLoadAwareDecision() LoadAwareDecision {
	return LoadAwareDecision{
		Enabled:                false,
		QueueHigh:              100,
		LoadPerCoreHigh:        1.0,
		MemoryUsedFractionHigh: 0.9,
		PSIAvg10High:           30.0,
		Weights:                DefaultLoadWeights(),
		Multipliers:            DefaultLoadMultipliers(),
	}
}

// DecisionTimeBound bounds how long the decision engine waits for more evidence before it must
// commit to fallback_action (spec §4.4, the value-of-information stopping rule).
type DecisionTimeBound struct {
	Enabled                 bool    `json:"enabled"`
	MinSeconds              int     `json:"min_seconds"`
	MaxSeconds              int     `json:"max_seconds"`
	VoiDecayHalfLifeSeconds int     `json:"voi_decay_half_life_seconds"`
	VoiFloor                float64 `json:"voi_floor"`
	OverheadBudgetSeconds   int     `json:"overhead_budget_seconds"`
	FallbackAction          model.Action `json:"fallback_action"`
}

// SignatureFastPath would let a process signature bypass full inference; spec.md never exercises
// it and every preset uses the zero value, so it is carried as an empty placeholder rather than
// built out.
type SignatureFastPath struct {
	Enabled bool `json:"enabled"`
}

// Policy is the frozen, versioned configuration threaded through decision/, policy/, and
// executor/ (spec §9's "config is a frozen input struct to the core"). Mirrors config/config.go's
// Config shape, generalized to the process-triage domain.
type Policy struct {
	SchemaVersion string     `json:"schema_version"`
	PolicyID      string     `json:"policy_id,omitempty"`
	Description   string     `json:"description,omitempty"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
	Inherits      []string   `json:"inherits,omitempty"`
	Notes         string     `json:"notes,omitempty"`

	LossMatrix         LossMatrix         `json:"loss_matrix"`
	Guardrails         Guardrails         `json:"guardrails"`
	RobotMode          RobotMode          `json:"robot_mode"`
	SignatureFastPath  SignatureFastPath  `json:"signature_fast_path"`
	FdrControl         FdrControl         `json:"fdr_control"`
	DataLossGates      DataLossGates      `json:"data_loss_gates"`
	LoadAware          LoadAwareDecision  `json:"load_aware"`
	DecisionTimeBound  DecisionTimeBound  `json:"decision_time_bound"`
}
