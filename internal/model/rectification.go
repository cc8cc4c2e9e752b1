package model

import "time"

// AccuracyTier is the declared precision of a user's birth time.
type AccuracyTier string

const (
	TierPrecise     AccuracyTier = "PRECISE"
	TierTwoHourSlot AccuracyTier = "TWO_HOUR_SLOT"
	TierFuzzyDay    AccuracyTier = "FUZZY_DAY"
)

// Valid reports whether t is one of the known accuracy tiers.
func (t AccuracyTier) Valid() bool {
	switch t {
	case TierPrecise, TierTwoHourSlot, TierFuzzyDay:
		return true
	}
	return false
}

// RectificationStatus tracks how far a user's birth time has been narrowed.
type RectificationStatus string

const (
	StatusUnrectified       RectificationStatus = "unrectified"
	StatusCollectingSignals RectificationStatus = "collecting_signals"
	StatusNarrowedTo2hr     RectificationStatus = "narrowed_to_2hr"
	StatusNarrowedToD9      RectificationStatus = "narrowed_to_d9"
	StatusLocked            RectificationStatus = "locked"
	StatusNeedsReview       RectificationStatus = "needs_review"
)

// LockThreshold is the confidence at which rectification is considered final.
const LockThreshold = 0.8

// RectificationState holds the per-user birth-time narrowing fields.
//
// CurrentConfidence is monotonically non-decreasing while questions are
// answered; StatusLocked is terminal and implies CurrentConfidence >= 0.8.
type RectificationState struct {
	UserID            string              `json:"user_id"`
	AccuracyType      AccuracyTier        `json:"accuracy_type"`
	Status            RectificationStatus `json:"rectification_status"`
	CurrentConfidence float64             `json:"current_confidence"`
	WindowStart       string              `json:"window_start"` // time of day, "HH:MM"
	WindowEnd         string              `json:"window_end"`
	WindowSizeMinutes int                 `json:"window_size_minutes"`
	IsBoundaryCase    bool                `json:"is_boundary_case"`
}

// NewRectificationState returns the onboarding defaults for a declared tier.
func NewRectificationState(userID string, tier AccuracyTier) RectificationState {
	s := RectificationState{UserID: userID, AccuracyType: tier}
	switch tier {
	case TierPrecise:
		s.CurrentConfidence = 1.0
		s.Status = StatusLocked
		s.WindowSizeMinutes = 0
	case TierTwoHourSlot:
		s.CurrentConfidence = 0.5
		s.Status = StatusNarrowedTo2hr
		s.WindowSizeMinutes = 120
	default:
		s.CurrentConfidence = 0.1
		s.Status = StatusUnrectified
		s.WindowSizeMinutes = 1440
	}
	return s
}

// RectificationEventType labels entries in the append-only audit log.
type RectificationEventType string

const (
	EventCandidateEliminated RectificationEventType = "candidate_eliminated"
	EventLocked              RectificationEventType = "locked"
)

// RectificationEvent is one row of the append-only rectification audit log.
// Events are never mutated or deleted; one row is written per state transition.
type RectificationEvent struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"user_id"`
	Source    string                 `json:"source"`
	EventType RectificationEventType `json:"event_type"`
	Payload   map[string]any         `json:"payload,omitempty"`
	CreatedAt time.Time              `json:"ts"`
}

// QuestionPhase partitions the elimination question bank.
type QuestionPhase string

const (
	PhaseCoarse QuestionPhase = "coarse"
	PhaseFine   QuestionPhase = "fine"
)

// QuestionOption is one of the two answers of an elimination question.
type QuestionOption struct {
	ID         string   `json:"id"` // "A" or "B"
	Label      string   `json:"label"`
	Eliminates []string `json:"eliminates,omitempty"`
}

// Question is a single entry of the static elimination question bank.
// Context tells the user why the question is being asked; it ships with
// every next-question response.
type Question struct {
	ID       string           `json:"question_id"`
	Phase    QuestionPhase    `json:"phase"`
	Priority int              `json:"priority"`
	Text     string           `json:"question_text"`
	Context  string           `json:"context"`
	Options  []QuestionOption `json:"options"`
}
