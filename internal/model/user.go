package model

import "time"

// User is the slice of the user record the matching core reads and writes.
// Auth, profile media and the rest of the account live with the platform.
type User struct {
	ID                  string     `json:"id"`
	DisplayName         string     `json:"display_name"`
	BirthDate           string     `json:"birth_date"` // "2006-01-02"
	BirthTime           string     `json:"birth_time,omitempty"`
	BirthLat            float64    `json:"birth_lat"`
	BirthLon            float64    `json:"birth_lon"`
	Timezone            string     `json:"timezone"`
	OnboardingComplete  bool       `json:"onboarding_complete"`
	SunSign             string     `json:"sun_sign,omitempty"`
	MoonSign            string     `json:"moon_sign,omitempty"`
	AscendantSign       string     `json:"ascendant_sign,omitempty"`
	ChartComputedAt     *time.Time `json:"chart_computed_at,omitempty"`

	Rectification RectificationState `json:"rectification"`
}

// BirthData is the onboarding payload that seeds chart and rectification state.
type BirthData struct {
	BirthDate    string       `json:"birth_date"`
	BirthTime    string       `json:"birth_time,omitempty"`
	BirthLat     float64      `json:"birth_lat"`
	BirthLon     float64      `json:"birth_lon"`
	Timezone     string       `json:"timezone"`
	AccuracyType AccuracyTier `json:"accuracy_type"`
}
