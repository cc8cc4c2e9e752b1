package rectify

import "github.com/synastry-app/synastry-api/internal/model"

// questionBank is the static ordered list of elimination questions. Selection
// is a priority scan over this slice, so order is load-bearing: within a
// phase, earlier entries win. Determinism here keeps answer flows reproducible.
var questionBank = []model.Question{
	{
		ID:       "coarse_morning_evening",
		Phase:    model.PhaseCoarse,
		Priority: 10,
		Text:     "As a child, were you more alert in the early morning or late at night?",
		Context:  "Chronotype helps split the day into a morning or evening birth window.",
		Options: []model.QuestionOption{
			{ID: "A", Label: "Early morning", Eliminates: []string{"window_pm"}},
			{ID: "B", Label: "Late at night", Eliminates: []string{"window_am"}},
		},
	},
	{
		ID:       "coarse_first_impression",
		Phase:    model.PhaseCoarse,
		Priority: 20,
		Text:     "Do strangers usually read you as reserved or as expressive when you first meet?",
		Context:  "First impressions track the rising sign, which changes roughly every two hours.",
		Options: []model.QuestionOption{
			{ID: "A", Label: "Reserved", Eliminates: []string{"asc_fire", "asc_air"}},
			{ID: "B", Label: "Expressive", Eliminates: []string{"asc_earth", "asc_water"}},
		},
	},
	{
		ID:       "coarse_sleep_anchor",
		Phase:    model.PhaseCoarse,
		Priority: 30,
		Text:     "Left to your own rhythm, does your energy peak before or after midday?",
		Context:  "Energy rhythm narrows which half of the remaining window fits your chart.",
		Options: []model.QuestionOption{
			{ID: "A", Label: "Before midday", Eliminates: []string{"window_pm_late"}},
			{ID: "B", Label: "After midday", Eliminates: []string{"window_am_early"}},
		},
	},
	{
		ID:       "fine_asc_adjacent_sign",
		Phase:    model.PhaseFine,
		Priority: 10,
		Text:     "In a new group, do you tend to take charge immediately or observe first?",
		Context:  "Group behavior separates two adjacent rising-sign candidates inside your window.",
		Options: []model.QuestionOption{
			{ID: "A", Label: "Take charge", Eliminates: []string{"asc_later_sign"}},
			{ID: "B", Label: "Observe first", Eliminates: []string{"asc_earlier_sign"}},
		},
	},
	{
		ID:       "fine_asc_presentation",
		Phase:    model.PhaseFine,
		Priority: 20,
		Text:     "Which compliment lands closer to home: \"magnetic\" or \"grounded\"?",
		Context:  "Self-presentation disambiguates the boundary between neighboring rising signs.",
		Options: []model.QuestionOption{
			{ID: "A", Label: "Magnetic", Eliminates: []string{"asc_earlier_sign"}},
			{ID: "B", Label: "Grounded", Eliminates: []string{"asc_later_sign"}},
		},
	},
	{
		ID:       "fine_moon_house",
		Phase:    model.PhaseFine,
		Priority: 30,
		Text:     "Under stress, do you retreat into routine or reach out to people?",
		Context:  "Stress response places the moon above or below the horizon at birth.",
		Options: []model.QuestionOption{
			{ID: "A", Label: "Retreat into routine", Eliminates: []string{"moon_upper_house"}},
			{ID: "B", Label: "Reach out to people", Eliminates: []string{"moon_lower_house"}},
		},
	},
	{
		ID:       "fine_mc_direction",
		Phase:    model.PhaseFine,
		Priority: 40,
		Text:     "Is your public reputation built more on competence or on warmth?",
		Context:  "Reputation style pins down the midheaven within the remaining minutes.",
		Options: []model.QuestionOption{
			{ID: "A", Label: "Competence", Eliminates: []string{"mc_late"}},
			{ID: "B", Label: "Warmth", Eliminates: []string{"mc_early"}},
		},
	},
}

// QuestionBank returns the full ordered bank. Exposed for handlers that need
// to resolve a question id submitted with an answer.
func QuestionBank() []model.Question {
	return questionBank
}

// FindQuestion looks up a bank entry by id.
func FindQuestion(id string) (model.Question, bool) {
	for _, q := range questionBank {
		if q.ID == id {
			return q, true
		}
	}
	return model.Question{}, false
}
