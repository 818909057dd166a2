package clarify

import (
	"strings"
	"time"

	"github.com/dwizi/intent-arbiter/internal/intent"
)

type ContinuityReason string

const (
	ContinuityResolved       ContinuityReason = "resolved"
	ContinuityNoOptionSet    ContinuityReason = "no_option_set"
	ContinuityStaleOptionSet ContinuityReason = "stale_option_set"
	ContinuityScopeMismatch  ContinuityReason = "scope_mismatch"
	ContinuityAmbiguous      ContinuityReason = "ambiguous"
	ContinuityAllRejected    ContinuityReason = "all_rejected"
	ContinuityReplayGuard    ContinuityReason = "replay_guard"
)

type ContinuityResolution struct {
	Resolved bool
	Option   Option
	Reason   ContinuityReason
	Eligible []Option
}

// ResolveContinuity looks for a unique safe winner among the options of the
// active clarification. It never returns an option outside that list.
func ResolveContinuity(clarification *LastClarification, state ContinuityState, scope intent.Scope) ContinuityResolution {
	if !clarification.Active() || strings.TrimSpace(state.ActiveOptionSetID) == "" {
		return ContinuityResolution{Reason: ContinuityNoOptionSet}
	}
	if state.ActiveOptionSetID != clarification.MessageID {
		return ContinuityResolution{Reason: ContinuityStaleOptionSet}
	}
	if state.ActiveScope != scope {
		return ContinuityResolution{Reason: ContinuityScopeMismatch}
	}

	eligible := EligibleOptions(clarification.Options, state.RecentRejectedChoiceIDs)
	switch {
	case len(eligible) == 0:
		return ContinuityResolution{Reason: ContinuityAllRejected}
	case len(eligible) > 1:
		return ContinuityResolution{Reason: ContinuityAmbiguous, Eligible: eligible}
	}

	winner := eligible[0]
	if last := state.LastResolvedAction; last != nil {
		if last.TargetRef == winner.Label && last.OptionSetID == state.ActiveOptionSetID {
			return ContinuityResolution{Reason: ContinuityReplayGuard, Eligible: eligible}
		}
	}
	return ContinuityResolution{Resolved: true, Option: winner, Reason: ContinuityResolved, Eligible: eligible}
}

// EligibleOptions filters out rejected option ids, preserving order.
func EligibleOptions(options []Option, rejected []string) []Option {
	if len(rejected) == 0 {
		return append([]Option(nil), options...)
	}
	blocked := make(map[string]struct{}, len(rejected))
	for _, id := range rejected {
		blocked[id] = struct{}{}
	}
	eligible := make([]Option, 0, len(options))
	for _, option := range options {
		if _, ok := blocked[option.ID]; ok {
			continue
		}
		eligible = append(eligible, option)
	}
	return eligible
}

// ResetContinuity is the state after an explicit stop.
func ResetContinuity() ContinuityState {
	return ContinuityState{ActiveScope: intent.ScopeNone}
}

// ContinuityForOptionSet binds continuity to a newly shown clarifier. When the
// option ids are unchanged from previous the rejected ids and last action
// carry over; a different option set resets them.
func ContinuityForOptionSet(state ContinuityState, previous, next *LastClarification) ContinuityState {
	updated := ContinuityState{
		ActiveOptionSetID:    next.MessageID,
		ActiveScope:          next.Scope,
		PendingClarifierType: next.ClarifierType,
	}
	if !sameOptionIDs(previous, next) {
		return updated
	}
	for _, id := range state.RecentRejectedChoiceIDs {
		if _, ok := next.Option(id); ok {
			updated.RecentRejectedChoiceIDs = append(updated.RecentRejectedChoiceIDs, id)
		}
	}
	updated.LastResolvedAction = state.LastResolvedAction
	return updated
}

// WithRejected appends ids to the rejected list without duplicates.
func WithRejected(state ContinuityState, ids ...string) ContinuityState {
	seen := make(map[string]struct{}, len(state.RecentRejectedChoiceIDs)+len(ids))
	merged := make([]string, 0, len(state.RecentRejectedChoiceIDs)+len(ids))
	for _, id := range append(append([]string(nil), state.RecentRejectedChoiceIDs...), ids...) {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		merged = append(merged, id)
	}
	state.RecentRejectedChoiceIDs = merged
	return state
}

// WithResolved records the action taken from the active option set.
func WithResolved(state ContinuityState, option Option, optionSetID string, source ResolutionSource, now time.Time) ContinuityState {
	state.LastResolvedAction = &SelectionActionTrace{
		Type:        option.Type,
		TargetRef:   option.Label,
		OptionID:    option.ID,
		OptionSetID: optionSetID,
		Source:      source,
		ResolvedAt:  now.UTC(),
	}
	state.PendingClarifierType = ""
	return state
}

func sameOptionIDs(previous, next *LastClarification) bool {
	if previous == nil || next == nil || len(previous.Options) != len(next.Options) {
		return false
	}
	ids := make(map[string]struct{}, len(previous.Options))
	for _, option := range previous.Options {
		ids[option.ID] = struct{}{}
	}
	for _, option := range next.Options {
		if _, ok := ids[option.ID]; !ok {
			return false
		}
	}
	return true
}
