// Package rectify implements birth-time rectification: a confidence engine
// that advances a user's rectification state per answered elimination
// question, and a deterministic selector over the static question bank.
package rectify

import (
	"github.com/rotisserie/eris"

	"github.com/synastry-app/synastry-api/internal/apperr"
	"github.com/synastry-app/synastry-api/internal/model"
)

// confidenceStep is the flat per-answer confidence increment. Each answered
// question eliminates part of the remaining time window; the flat step stands
// in for a real posterior update over the elimination sets.
const confidenceStep = 0.10

// Outcome is the result of applying one answer to a rectification state.
type Outcome struct {
	NewConfidence float64
	NewStatus     model.RectificationStatus
	Locked        bool
	TierUpgraded  bool
}

// ApplyAnswer advances the confidence state machine by one answered question.
// The confidence never decreases and never leaves [0, 1]. It validates the
// selected option before anything else, so a rejected answer leaves the
// caller's state untouched.
func ApplyAnswer(state model.RectificationState, selectedOption string) (Outcome, error) {
	if selectedOption != "A" && selectedOption != "B" {
		return Outcome{}, eris.Wrapf(apperr.ErrInvalidArgument, "selected_option must be A or B, got %q", selectedOption)
	}

	newConfidence := state.CurrentConfidence + confidenceStep
	if newConfidence > 1.0 {
		newConfidence = 1.0
	}

	newStatus := state.Status
	switch {
	case newConfidence >= model.LockThreshold:
		newStatus = model.StatusLocked
	case newConfidence >= 0.5:
		newStatus = model.StatusNarrowedTo2hr
	case state.Status == model.StatusUnrectified:
		newStatus = model.StatusCollectingSignals
	}

	return Outcome{
		NewConfidence: newConfidence,
		NewStatus:     newStatus,
		Locked:        newStatus == model.StatusLocked,
		TierUpgraded:  newStatus == model.StatusLocked && state.Status != model.StatusLocked,
	}, nil
}
