package model

import "time"

// MatchType is the relationship-dynamic category used to diversify daily picks.
type MatchType string

const (
	MatchComplementary MatchType = "complementary"
	MatchSimilar       MatchType = "similar"
	MatchTension       MatchType = "tension"
)

// MatchAction is the user's response to a daily match candidate.
type MatchAction string

const (
	ActionPending MatchAction = "pending"
	ActionAccept  MatchAction = "accept"
	ActionPass    MatchAction = "pass"
)

// MatchScores holds the sub-scores returned by the compute-match endpoint.
type MatchScores struct {
	Kernel float64 `json:"kernel"`
	Power  float64 `json:"power"`
	Glitch float64 `json:"glitch"`
	Total  float64 `json:"total"`
}

// DailyMatchCandidate is one proposed match for a user on a given date.
// Unique per (user_id, matched_user_id, match_date). Read-only after the
// daily batch job creates it, except for UserAction which is set once.
type DailyMatchCandidate struct {
	ID            string      `json:"id"`
	UserID        string      `json:"user_id"`
	MatchedUserID string      `json:"matched_user_id"`
	MatchDate     string      `json:"match_date"` // "2006-01-02"
	Scores        MatchScores `json:"scores"`
	MatchType     MatchType   `json:"match_type"`
	Tags          []string    `json:"tags,omitempty"`
	UserAction    MatchAction `json:"user_action"`
	CreatedAt     time.Time   `json:"created_at"`
}

// ConnectionStatus is the lifecycle state of a mutual connection.
type ConnectionStatus string

const (
	ConnIcebreaker ConnectionStatus = "icebreaker"
	ConnActive     ConnectionStatus = "active"
	ConnExpired    ConnectionStatus = "expired"
)

// Connection links two users who mutually accepted on the same match date.
// UserAID/UserBID are stored normalized (UserAID < UserBID) so the pair is
// unique regardless of who accepted last.
type Connection struct {
	ID         string           `json:"id"`
	UserAID    string           `json:"user_a_id"`
	UserBID    string           `json:"user_b_id"`
	Status     ConnectionStatus `json:"status"`
	SyncLevel  int              `json:"sync_level"`
	Icebreaker string           `json:"icebreaker,omitempty"`
	MatchDate  string           `json:"match_date"`
	CreatedAt  time.Time        `json:"created_at"`
}

// NormalizePair orders two user ids so (a, b) and (b, a) map to one pair.
func NormalizePair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}
