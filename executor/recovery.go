package executor

import (
	"fmt"

	"github.com/proctriage/triage/model"
)

// RecoveryHint is the agent-facing recommendation surfaced alongside a failed attempt.
type RecoveryHint struct {
	RecommendedAction RecoveryAction `json:"recommended_action"`
	Explanation       string         `json:"explanation"`
	Reversibility     string         `json:"reversibility,omitempty"`
	AgentNextStep     string         `json:"agent_next_step"`
}

// RecoveryExecutor walks the recovery-tree database and finds viable alternatives for a failed
// attempt, filtering on which alternatives' requirements the live system currently satisfies.
type RecoveryExecutor struct {
	database *RecoveryTreeDatabase
	checker  RequirementChecker
}

// NewRecoveryExecutor builds a RecoveryExecutor over db, consulting checker for requirement
// facts.
func NewRecoveryExecutor(db *RecoveryTreeDatabase, checker RequirementChecker) *RecoveryExecutor {
	return &RecoveryExecutor{database: db, checker: checker}
}

// FindAlternatives returns every alternative in the (action, category) branch whose requirements
// are currently met, provided the session still has budget for this category. Returns nil if the
// action has no tree, or if the branch's attempt budget is exhausted.
func (r *RecoveryExecutor) FindAlternatives(action model.Action, category model.FailureCategory, pid int, session *model.RecoverySession) []RecoveryAlternative {
	branch, ok := r.database.Lookup(action, category)
	if !ok {
		return nil
	}
	if !session.CanAttempt(category) {
		return nil
	}
	ctx := r.checker.BuildContext(pid)
	var viable []RecoveryAlternative
	for _, alt := range branch.Alternatives {
		if ctx.AllMet(alt.Requirements) {
			viable = append(viable, alt)
		}
	}
	return viable
}

// GetBestAlternative returns the first viable alternative for a failure, or false if none apply.
func (r *RecoveryExecutor) GetBestAlternative(action model.Action, category model.FailureCategory, pid int, session *model.RecoverySession) (RecoveryAlternative, bool) {
	alts := r.FindAlternatives(action, category, pid, session)
	if len(alts) == 0 {
		return RecoveryAlternative{}, false
	}
	return alts[0], true
}

// GenerateHint produces the agent-facing RecoveryHint for a failure, or false if the action has
// no tree or no alternative currently applies.
func (r *RecoveryExecutor) GenerateHint(action model.Action, category model.FailureCategory, pid int, session *model.RecoverySession) (RecoveryHint, bool) {
	branch, ok := r.database.Lookup(action, category)
	if !ok {
		return RecoveryHint{}, false
	}
	alt, ok := r.GetBestAlternative(action, category, pid, session)
	if !ok {
		return RecoveryHint{}, false
	}
	reversibility := alt.Notes
	if !alt.Reversible {
		reversibility = "this action is not reversible"
	}
	hint := alt.CommandHint
	if hint == "" {
		hint = "investigate further"
	}
	return RecoveryHint{
		RecommendedAction: alt.Action,
		Explanation:       alt.Explanation,
		Reversibility:     reversibility,
		AgentNextStep:     fmt.Sprintf("%s; diagnosis: %s", hint, branch.Diagnosis),
	}, true
}
