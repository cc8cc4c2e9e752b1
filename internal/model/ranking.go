package model

import "time"

// RankingTTL is how long a cached compatibility score stays fresh.
const RankingTTL = 24 * time.Hour

// RankingEntry is one cached quick-score result between two profile cards.
// Unique per (card_a_id, card_b_id); card_a is the card the ranking belongs to.
type RankingEntry struct {
	CardAID      string             `json:"card_a_id"`
	CardBID      string             `json:"card_b_id"`
	Harmony      float64            `json:"harmony"`
	Lust         float64            `json:"lust"`
	Soul         float64            `json:"soul"`
	PrimaryTrack string             `json:"primary_track"`
	Quadrant     string             `json:"quadrant"`
	Labels       []string           `json:"labels,omitempty"`
	Tracks       map[string]float64 `json:"tracks,omitempty"`
	ComputedAt   time.Time          `json:"computed_at"`
}

// Card is a user profile card eligible for the compatibility ranking.
type Card struct {
	ID      string `json:"id"`
	UserID  string `json:"user_id"`
	OptedIn bool   `json:"opted_in"`
}
