// Package friction decides whether a turn is answered with hints or with a
// direct explanation.
package friction

import (
	"strings"

	"github.com/ashureev/horizon-coach/internal/domain"
)

// Gate unlocks guidance after Threshold qualifying turns.
type Gate struct {
	Threshold int
	MinWords  int
}

// NewGate returns a gate, clamping both limits to at least 1.
func NewGate(threshold, minWords int) Gate {
	return Gate{Threshold: max(threshold, 1), MinWords: max(minWords, 1)}
}

// Initial returns the state of a fresh session.
func (g Gate) Initial() domain.FrictionState {
	return domain.FrictionState{Threshold: g.Threshold, Mode: domain.ModeFriction}
}

// Qualifies reports whether a learner turn counts toward unlocking guidance.
func (g Gate) Qualifies(text, label string) bool {
	return CountWords(text) >= g.MinWords || label == domain.LabelGood
}

// Evaluate applies one learner turn to the state. The returned state's Mode
// is the prompt selected for this turn; callers revert it with EndTurn once
// the turn completes.
//
// Reaching the threshold only unlocks guidance. It is granted on a later
// turn that asks for it explicitly, and consuming it starts the count over.
func (g Gate) Evaluate(state domain.FrictionState, qualifies, explicit bool) (domain.FrictionState, bool) {
	next := state
	next.Threshold = g.Threshold
	if next.Progress > next.Threshold {
		next.Progress = next.Threshold
	}

	if state.Mode == domain.ModeGuidance || (state.GuidanceReady && explicit) {
		next.GuidanceReady = false
		next.Progress = 0
		next.Mode = domain.ModeGuidance
		return next, true
	}

	if !state.GuidanceReady && qualifies {
		next.Progress = min(next.Progress+1, next.Threshold)
		if next.Progress == next.Threshold {
			next.GuidanceReady = true
		}
	}
	next.Mode = domain.ModeFriction
	return next, false
}

// EndTurn reverts the transient per-turn mode to the friction baseline.
func EndTurn(state domain.FrictionState) domain.FrictionState {
	state.Mode = domain.ModeFriction
	return state
}

// NextPrompt reports the prompt an explicit guidance request would get now.
func NextPrompt(state domain.FrictionState) domain.Mode {
	if state.GuidanceReady || state.Mode == domain.ModeGuidance {
		return domain.ModeGuidance
	}
	return domain.ModeFriction
}

// ResponsesNeeded is the number of qualifying turns left before guidance unlocks.
func ResponsesNeeded(state domain.FrictionState) int {
	if state.GuidanceReady {
		return 0
	}
	return max(state.Threshold-state.Progress, 0)
}

// CountWords counts whitespace-separated non-empty tokens.
func CountWords(text string) int {
	return len(strings.Fields(text))
}
