package rectify

import (
	"strings"

	"github.com/synastry-app/synastry-api/internal/model"
)

// boundaryDiscriminant marks fine questions that disambiguate an ascendant
// sign change, the boundary case the selector prioritizes.
const boundaryDiscriminant = "asc"

// coarseWindowMinutes is the window size at or above which coarse-phase
// questions are still useful.
const coarseWindowMinutes = 360

// NextQuestion returns the next elimination question for the given state, or
// nil when rectification is finished. answered holds question ids the user
// has already consumed (from the event log) and is skipped during the scan.
//
// Selection is a first-match scan over the ordered bank:
//  1. boundary cases get the first fine question naming the boundary
//     discriminant in its id,
//  2. wide windows (>= 6h) get a coarse question,
//  3. everything else gets a fine question.
func NextQuestion(state model.RectificationState, answered map[string]bool) *model.Question {
	if state.AccuracyType == model.TierPrecise ||
		state.Status == model.StatusLocked ||
		state.CurrentConfidence >= model.LockThreshold {
		return nil
	}

	if state.IsBoundaryCase {
		if q := scan(model.PhaseFine, boundaryDiscriminant, answered); q != nil {
			return q
		}
	}

	if state.WindowSizeMinutes >= coarseWindowMinutes {
		if q := scan(model.PhaseCoarse, "", answered); q != nil {
			return q
		}
	}

	return scan(model.PhaseFine, "", answered)
}

// scan returns the first unanswered bank question in the given phase whose id
// contains idSubstring (empty matches all). The bank is ordered by priority,
// so first match wins.
func scan(phase model.QuestionPhase, idSubstring string, answered map[string]bool) *model.Question {
	for i := range questionBank {
		q := &questionBank[i]
		if q.Phase != phase {
			continue
		}
		if idSubstring != "" && !strings.Contains(q.ID, idSubstring) {
			continue
		}
		if answered[q.ID] {
			continue
		}
		return q
	}
	return nil
}
