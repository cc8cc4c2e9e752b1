package rectify

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/synastry-app/synastry-api/internal/apperr"
	"github.com/synastry-app/synastry-api/internal/model"
	"github.com/synastry-app/synastry-api/pkg/astro"
)

// Store is the persistence surface the rectification service depends on.
type Store interface {
	GetUser(ctx context.Context, userID string) (*model.User, error)
	SetBirthData(ctx context.Context, userID string, data model.BirthData, chart *astro.Chart, state model.RectificationState) error
	UpdateRectificationState(ctx context.Context, userID string, confidence float64, status model.RectificationStatus) error
	AppendRectificationEvent(ctx context.Context, event model.RectificationEvent) error
	ListAnsweredQuestionIDs(ctx context.Context, userID string) (map[string]bool, error)
}

// Service orchestrates the confidence engine and question selector against
// the user record store and the chart service.
type Service struct {
	store Store
	astro astro.Client
}

// NewService creates a rectification service.
func NewService(store Store, astroClient astro.Client) *Service {
	return &Service{store: store, astro: astroClient}
}

// AnswerResult is returned to the answer route.
type AnswerResult struct {
	Status                model.RectificationStatus `json:"rectification_status"`
	CurrentConfidence     float64                   `json:"current_confidence"`
	TierUpgraded          bool                      `json:"tier_upgraded"`
	NextQuestionAvailable bool                      `json:"next_question_available"`
}

// SubmitBirthData stores birth data, initializes rectification state from the
// declared accuracy tier and computes natal chart fields. A chart service
// failure is swallowed: onboarding continues with null chart fields.
func (s *Service) SubmitBirthData(ctx context.Context, userID string, data model.BirthData) (*model.RectificationState, error) {
	if !data.AccuracyType.Valid() {
		return nil, eris.Wrapf(apperr.ErrInvalidArgument, "unknown accuracy_type %q", data.AccuracyType)
	}
	if data.BirthDate == "" {
		return nil, eris.Wrap(apperr.ErrInvalidArgument, "birth_date is required")
	}

	state := model.NewRectificationState(userID, data.AccuracyType)

	chart, err := s.astro.CalculateChart(ctx, astro.ChartRequest{
		BirthDate: data.BirthDate,
		BirthTime: data.BirthTime,
		Lat:       data.BirthLat,
		Lon:       data.BirthLon,
		Timezone:  data.Timezone,
	})
	if err != nil {
		zap.L().Warn("chart calculation failed, continuing without chart fields",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		chart = nil
	} else if chart.BoundaryCase {
		state.IsBoundaryCase = true
	}

	if err := s.store.SetBirthData(ctx, userID, data, chart, state); err != nil {
		return nil, eris.Wrap(err, "rectify: set birth data")
	}
	return &state, nil
}

// Answer applies one answered question to the user's rectification state,
// persists the new confidence and status and appends one audit event.
func (s *Service) Answer(ctx context.Context, userID, questionID, selectedOption, source string) (*AnswerResult, error) {
	if _, ok := FindQuestion(questionID); !ok {
		return nil, eris.Wrapf(apperr.ErrInvalidArgument, "unknown question_id %q", questionID)
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, eris.Wrap(err, "rectify: load user")
	}
	if user == nil {
		return nil, eris.Wrapf(apperr.ErrNotFound, "user %s", userID)
	}

	outcome, err := ApplyAnswer(user.Rectification, selectedOption)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdateRectificationState(ctx, userID, outcome.NewConfidence, outcome.NewStatus); err != nil {
		return nil, eris.Wrap(err, "rectify: persist state")
	}

	eventType := model.EventCandidateEliminated
	if outcome.TierUpgraded {
		eventType = model.EventLocked
	}
	event := model.RectificationEvent{
		UserID:    userID,
		Source:    source,
		EventType: eventType,
		Payload: map[string]any{
			"question_id":     questionID,
			"selected_option": selectedOption,
			"new_confidence":  outcome.NewConfidence,
			"new_status":      string(outcome.NewStatus),
		},
	}
	if err := s.store.AppendRectificationEvent(ctx, event); err != nil {
		return nil, eris.Wrap(err, "rectify: append event")
	}

	next := user.Rectification
	next.CurrentConfidence = outcome.NewConfidence
	next.Status = outcome.NewStatus
	answered, err := s.store.ListAnsweredQuestionIDs(ctx, userID)
	if err != nil {
		return nil, eris.Wrap(err, "rectify: list answered questions")
	}

	return &AnswerResult{
		Status:                outcome.NewStatus,
		CurrentConfidence:     outcome.NewConfidence,
		TierUpgraded:          outcome.TierUpgraded,
		NextQuestionAvailable: NextQuestion(next, answered) != nil,
	}, nil
}

// Next returns the next question for the user, or nil when rectification is
// done (precise tier, locked, or confidence past the lock threshold).
func (s *Service) Next(ctx context.Context, userID string) (*model.Question, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, eris.Wrap(err, "rectify: load user")
	}
	if user == nil {
		return nil, eris.Wrapf(apperr.ErrNotFound, "user %s", userID)
	}

	answered, err := s.store.ListAnsweredQuestionIDs(ctx, userID)
	if err != nil {
		return nil, eris.Wrap(err, "rectify: list answered questions")
	}

	return NextQuestion(user.Rectification, answered), nil
}
