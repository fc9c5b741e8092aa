package model

import "time"

// AttemptResult records one executor attempt for audit (spec §4.6 "session bookkeeping").
type AttemptResult struct {
	Action        Action          `json:"action"`
	Succeeded     bool            `json:"succeeded"`
	FailureReason FailureCategory `json:"failure_reason,omitempty"`
	DurationMS    int64           `json:"duration_ms"`
	AttemptNumber int             `json:"attempt_number"`
	Detail        string          `json:"detail,omitempty"`
}

// RecoverySession is created when execution begins for a target, mutated only by the executor,
// and terminates when an attempt succeeds, a budget is exhausted, or the target vanishes
// (spec §3).
type RecoverySession struct {
	TargetIdentity Identity                  `json:"target_identity"`
	Attempts       []AttemptResult           `json:"attempts"`
	Budgets        map[FailureCategory]int   `json:"budgets"`
	spent          map[FailureCategory]int
	TotalAttempts  int `json:"total_attempts"`
	MaxTotal       int `json:"max_total"`
}

// NewRecoverySession constructs a session with per-category budgets and a total-attempt cap.
func NewRecoverySession(target Identity, budgets map[FailureCategory]int, maxTotal int) *RecoverySession {
	b := make(map[FailureCategory]int, len(budgets))
	for k, v := range budgets {
		b[k] = v
	}
	return &RecoverySession{
		TargetIdentity: target,
		Budgets:        b,
		spent:          make(map[FailureCategory]int),
		MaxTotal:       maxTotal,
	}
}

// CanAttempt reports whether another attempt is allowed for the given failure category without
// exceeding either the category budget or the total-attempt cap (spec §8 "total attempts <=
// max_total_attempts, and per-category attempts <= the category's max_attempts").
func (s *RecoverySession) CanAttempt(cat FailureCategory) bool {
	if s.TotalAttempts >= s.MaxTotal {
		return false
	}
	if budget, ok := s.Budgets[cat]; ok && s.spent[cat] >= budget {
		return false
	}
	return true
}

// Record appends an attempt and consumes the relevant budgets. started is used to derive
// DurationMS.
func (s *RecoverySession) Record(action Action, succeeded bool, cat FailureCategory, started time.Time, detail string) AttemptResult {
	s.TotalAttempts++
	s.spent[cat]++
	a := AttemptResult{
		Action:        action,
		Succeeded:     succeeded,
		FailureReason: cat,
		DurationMS:    time.Since(started).Milliseconds(),
		AttemptNumber: s.TotalAttempts,
		Detail:        detail,
	}
	s.Attempts = append(s.Attempts, a)
	return a
}

// Done reports whether the session has terminated: the last attempt succeeded or the total budget
// is exhausted. Per-category budgets are not considered here.
func (s *RecoverySession) Done() bool {
	if len(s.Attempts) > 0 && s.Attempts[len(s.Attempts)-1].Succeeded {
		return true
	}
	return s.TotalAttempts >= s.MaxTotal
}
