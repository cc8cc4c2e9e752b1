package rectify

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synastry-app/synastry-api/internal/apperr"
	"github.com/synastry-app/synastry-api/internal/model"
	"github.com/synastry-app/synastry-api/pkg/astro"
)

type fakeStore struct {
	users    map[string]*model.User
	events   []model.RectificationEvent
	answered map[string]bool

	birthData  *model.BirthData
	birthChart *astro.Chart
	birthState *model.RectificationState
}

func newFakeStore(users ...*model.User) *fakeStore {
	fs := &fakeStore{users: map[string]*model.User{}, answered: map[string]bool{}}
	for _, u := range users {
		fs.users[u.ID] = u
	}
	return fs
}

func (f *fakeStore) GetUser(ctx context.Context, userID string) (*model.User, error) {
	return f.users[userID], nil
}

func (f *fakeStore) SetBirthData(ctx context.Context, userID string, data model.BirthData, chart *astro.Chart, state model.RectificationState) error {
	f.birthData = &data
	f.birthChart = chart
	f.birthState = &state
	return nil
}

func (f *fakeStore) UpdateRectificationState(ctx context.Context, userID string, confidence float64, status model.RectificationStatus) error {
	u, ok := f.users[userID]
	if !ok {
		return eris.Wrapf(apperr.ErrNotFound, "user %s", userID)
	}
	u.Rectification.CurrentConfidence = confidence
	u.Rectification.Status = status
	return nil
}

func (f *fakeStore) AppendRectificationEvent(ctx context.Context, event model.RectificationEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeStore) ListAnsweredQuestionIDs(ctx context.Context, userID string) (map[string]bool, error) {
	return f.answered, nil
}

type fakeAstro struct {
	chart    *astro.Chart
	chartErr error
}

func (f *fakeAstro) ComputeMatch(ctx context.Context, a, b astro.Subject) (*astro.MatchResult, error) {
	return nil, eris.New("not implemented")
}

func (f *fakeAstro) QuickScore(ctx context.Context, a, b astro.Subject) (*astro.QuickScoreResult, error) {
	return nil, eris.New("not implemented")
}

func (f *fakeAstro) CalculateChart(ctx context.Context, req astro.ChartRequest) (*astro.Chart, error) {
	return f.chart, f.chartErr
}

func fuzzyUser(id string) *model.User {
	return &model.User{
		ID:            id,
		BirthDate:     "1994-03-12",
		Rectification: model.NewRectificationState(id, model.TierFuzzyDay),
	}
}

func TestSubmitBirthData_InvalidTier(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeStore(), &fakeAstro{})
	_, err := svc.SubmitBirthData(context.Background(), "u1", model.BirthData{
		BirthDate:    "1994-03-12",
		AccuracyType: "SOMEWHAT_SURE",
	})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestSubmitBirthData_MissingBirthDate(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeStore(), &fakeAstro{})
	_, err := svc.SubmitBirthData(context.Background(), "u1", model.BirthData{
		AccuracyType: model.TierPrecise,
	})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestSubmitBirthData_PreciseLocksImmediately(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := NewService(store, &fakeAstro{chart: &astro.Chart{SunSign: "pisces", MoonSign: "leo", AscendantSign: "virgo"}})

	state, err := svc.SubmitBirthData(context.Background(), "u1", model.BirthData{
		BirthDate:    "1994-03-12",
		BirthTime:    "08:45",
		AccuracyType: model.TierPrecise,
	})
	require.NoError(t, err)

	assert.Equal(t, model.StatusLocked, state.Status)
	assert.InDelta(t, 1.0, state.CurrentConfidence, 1e-9)
	assert.Equal(t, 0, state.WindowSizeMinutes)
	require.NotNil(t, store.birthChart)
	assert.Equal(t, "virgo", store.birthChart.AscendantSign)
}

func TestSubmitBirthData_ChartFailureIsSwallowed(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := NewService(store, &fakeAstro{chartErr: eris.New("service down")})

	state, err := svc.SubmitBirthData(context.Background(), "u1", model.BirthData{
		BirthDate:    "1994-03-12",
		AccuracyType: model.TierFuzzyDay,
	})
	require.NoError(t, err)

	assert.Equal(t, model.StatusUnrectified, state.Status)
	assert.Nil(t, store.birthChart, "chart fields stay null when the service fails")
}

func TestSubmitBirthData_BoundaryCaseFlagged(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := NewService(store, &fakeAstro{chart: &astro.Chart{AscendantSign: "aries", BoundaryCase: true}})

	state, err := svc.SubmitBirthData(context.Background(), "u1", model.BirthData{
		BirthDate:    "1994-03-12",
		AccuracyType: model.TierTwoHourSlot,
	})
	require.NoError(t, err)
	assert.True(t, state.IsBoundaryCase)
}

func TestAnswer_UnknownQuestion(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeStore(fuzzyUser("u1")), &fakeAstro{})
	_, err := svc.Answer(context.Background(), "u1", "not_in_bank", "A", "questionnaire")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestAnswer_UserNotFound(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeStore(), &fakeAstro{})
	_, err := svc.Answer(context.Background(), "ghost", "coarse_morning_evening", "A", "questionnaire")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAnswer_PersistsStateAndEvent(t *testing.T) {
	t.Parallel()

	store := newFakeStore(fuzzyUser("u1"))
	svc := NewService(store, &fakeAstro{})

	result, err := svc.Answer(context.Background(), "u1", "coarse_morning_evening", "A", "questionnaire")
	require.NoError(t, err)

	assert.Equal(t, model.StatusCollectingSignals, result.Status)
	assert.InDelta(t, 0.2, result.CurrentConfidence, 1e-9)
	assert.False(t, result.TierUpgraded)
	assert.True(t, result.NextQuestionAvailable)

	assert.InDelta(t, 0.2, store.users["u1"].Rectification.CurrentConfidence, 1e-9)

	require.Len(t, store.events, 1)
	ev := store.events[0]
	assert.Equal(t, "u1", ev.UserID)
	assert.Equal(t, model.EventCandidateEliminated, ev.EventType)
	assert.Equal(t, "coarse_morning_evening", ev.Payload["question_id"])
	assert.Equal(t, "A", ev.Payload["selected_option"])
}

func TestAnswer_LockWritesLockedEvent(t *testing.T) {
	t.Parallel()

	u := fuzzyUser("u1")
	u.Rectification.CurrentConfidence = 0.75
	u.Rectification.Status = model.StatusNarrowedTo2hr
	store := newFakeStore(u)
	svc := NewService(store, &fakeAstro{})

	result, err := svc.Answer(context.Background(), "u1", "fine_moon_house", "B", "questionnaire")
	require.NoError(t, err)

	assert.Equal(t, model.StatusLocked, result.Status)
	assert.InDelta(t, 0.85, result.CurrentConfidence, 1e-9)
	assert.True(t, result.TierUpgraded)
	assert.False(t, result.NextQuestionAvailable, "locked users get no further questions")

	require.Len(t, store.events, 1)
	assert.Equal(t, model.EventLocked, store.events[0].EventType)
}

func TestNext_ReturnsBankQuestion(t *testing.T) {
	t.Parallel()

	store := newFakeStore(fuzzyUser("u1"))
	svc := NewService(store, &fakeAstro{})

	q, err := svc.Next(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, "coarse_morning_evening", q.ID)
}

func TestNext_UserNotFound(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeStore(), &fakeAstro{})
	_, err := svc.Next(context.Background(), "ghost")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestNext_ExcludesAnsweredQuestions(t *testing.T) {
	t.Parallel()

	store := newFakeStore(fuzzyUser("u1"))
	store.answered = map[string]bool{
		"coarse_morning_evening":  true,
		"coarse_first_impression": true,
	}
	svc := NewService(store, &fakeAstro{})

	q, err := svc.Next(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, "coarse_sleep_anchor", q.ID)
}
