package match

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synastry-app/synastry-api/internal/apperr"
	"github.com/synastry-app/synastry-api/internal/icebreaker"
	"github.com/synastry-app/synastry-api/internal/model"
)

type fakeMatchStore struct {
	users       map[string]*model.User
	matches     map[string]*model.DailyMatchCandidate
	connections []model.Connection
	icebreakers map[string]string
	inserted    []model.DailyMatchCandidate

	pairExists bool
}

func newFakeMatchStore() *fakeMatchStore {
	return &fakeMatchStore{
		users:       map[string]*model.User{},
		matches:     map[string]*model.DailyMatchCandidate{},
		icebreakers: map[string]string{},
	}
}

func (f *fakeMatchStore) ListCompletedUsers(ctx context.Context) ([]model.User, error) {
	var out []model.User
	for _, u := range f.users {
		if u.OnboardingComplete {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeMatchStore) InsertDailyMatches(ctx context.Context, candidates []model.DailyMatchCandidate) (int, error) {
	f.inserted = append(f.inserted, candidates...)
	return len(candidates), nil
}

func (f *fakeMatchStore) GetDailyMatch(ctx context.Context, matchID string) (*model.DailyMatchCandidate, error) {
	return f.matches[matchID], nil
}

func (f *fakeMatchStore) ListDailyMatches(ctx context.Context, userID, matchDate string) ([]model.DailyMatchCandidate, error) {
	var out []model.DailyMatchCandidate
	for _, m := range f.matches {
		if m.UserID == userID && m.MatchDate == matchDate {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeMatchStore) SetMatchAction(ctx context.Context, matchID string, action model.MatchAction) error {
	m, ok := f.matches[matchID]
	if !ok || m.UserAction != model.ActionPending {
		return eris.Wrapf(apperr.ErrInvalidArgument, "match %s", matchID)
	}
	m.UserAction = action
	return nil
}

func (f *fakeMatchStore) GetMirrorMatch(ctx context.Context, userID, matchedUserID, matchDate string) (*model.DailyMatchCandidate, error) {
	for _, m := range f.matches {
		if m.UserID == userID && m.MatchedUserID == matchedUserID && m.MatchDate == matchDate {
			return m, nil
		}
	}
	return nil, nil
}

func (f *fakeMatchStore) GetUser(ctx context.Context, userID string) (*model.User, error) {
	return f.users[userID], nil
}

func (f *fakeMatchStore) CreateConnection(ctx context.Context, conn model.Connection) (*model.Connection, error) {
	if f.pairExists {
		return nil, nil
	}
	conn.ID = "conn-1"
	f.connections = append(f.connections, conn)
	return &conn, nil
}

func (f *fakeMatchStore) SetConnectionIcebreaker(ctx context.Context, connID, text string) error {
	f.icebreakers[connID] = text
	return nil
}

type fakeOpener struct {
	text string
	err  error
}

func (f *fakeOpener) Generate(ctx context.Context, a, b model.User) (string, error) {
	return f.text, f.err
}

func seedPair(store *fakeMatchStore, actionB model.MatchAction) {
	store.users["alice"] = &model.User{ID: "alice", DisplayName: "Alice", OnboardingComplete: true}
	store.users["bob"] = &model.User{ID: "bob", DisplayName: "Bob", OnboardingComplete: true}
	store.matches["m1"] = &model.DailyMatchCandidate{
		ID: "m1", UserID: "alice", MatchedUserID: "bob",
		MatchDate: "2026-08-27", UserAction: model.ActionPending,
	}
	store.matches["m2"] = &model.DailyMatchCandidate{
		ID: "m2", UserID: "bob", MatchedUserID: "alice",
		MatchDate: "2026-08-27", UserAction: actionB,
	}
}

func TestApply_InvalidAction(t *testing.T) {
	t.Parallel()

	actions := NewActions(newFakeMatchStore(), nil)
	_, err := actions.Apply(context.Background(), "alice", "m1", "superlike")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestApply_MatchNotFound(t *testing.T) {
	t.Parallel()

	actions := NewActions(newFakeMatchStore(), nil)
	_, err := actions.Apply(context.Background(), "alice", "ghost", model.ActionAccept)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestApply_ForbiddenForForeignMatch(t *testing.T) {
	t.Parallel()

	store := newFakeMatchStore()
	seedPair(store, model.ActionPending)
	actions := NewActions(store, nil)

	_, err := actions.Apply(context.Background(), "bob", "m1", model.ActionAccept)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestApply_ActionIsWriteOnce(t *testing.T) {
	t.Parallel()

	store := newFakeMatchStore()
	seedPair(store, model.ActionPending)
	store.matches["m1"].UserAction = model.ActionPass
	actions := NewActions(store, nil)

	_, err := actions.Apply(context.Background(), "alice", "m1", model.ActionAccept)
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestApply_PassNeverMatches(t *testing.T) {
	t.Parallel()

	store := newFakeMatchStore()
	seedPair(store, model.ActionAccept) // bob already accepted
	actions := NewActions(store, nil)

	result, err := actions.Apply(context.Background(), "alice", "m1", model.ActionPass)
	require.NoError(t, err)
	assert.False(t, result.Matched)
	assert.Empty(t, store.connections)
}

func TestApply_AcceptWithoutMirrorAccept(t *testing.T) {
	t.Parallel()

	store := newFakeMatchStore()
	seedPair(store, model.ActionPending)
	actions := NewActions(store, nil)

	result, err := actions.Apply(context.Background(), "alice", "m1", model.ActionAccept)
	require.NoError(t, err)
	assert.False(t, result.Matched)
	assert.Empty(t, store.connections)
}

func TestApply_MutualAcceptCreatesConnection(t *testing.T) {
	t.Parallel()

	store := newFakeMatchStore()
	seedPair(store, model.ActionAccept)
	actions := NewActions(store, &fakeOpener{text: "You both peak after midnight. Coincidence?"})

	result, err := actions.Apply(context.Background(), "alice", "m1", model.ActionAccept)
	require.NoError(t, err)
	assert.True(t, result.Matched)

	require.Len(t, store.connections, 1)
	conn := store.connections[0]
	assert.Equal(t, "alice", conn.UserAID, "pair is stored normalized")
	assert.Equal(t, "bob", conn.UserBID)
	assert.Equal(t, model.ConnIcebreaker, conn.Status)
	assert.Equal(t, 1, conn.SyncLevel)
	assert.Equal(t, "2026-08-27", conn.MatchDate)

	assert.Equal(t, "You both peak after midnight. Coincidence?", store.icebreakers["conn-1"])
}

func TestApply_ConcurrentAcceptCreatesOneConnection(t *testing.T) {
	t.Parallel()

	store := newFakeMatchStore()
	seedPair(store, model.ActionAccept)
	store.pairExists = true // the other side's accept already inserted the pair
	actions := NewActions(store, &fakeOpener{text: "opener"})

	result, err := actions.Apply(context.Background(), "alice", "m1", model.ActionAccept)
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.Empty(t, store.connections)
	assert.Empty(t, store.icebreakers, "no second icebreaker for the duplicate insert")
}

func TestApply_IcebreakerFailureFallsBack(t *testing.T) {
	t.Parallel()

	store := newFakeMatchStore()
	seedPair(store, model.ActionAccept)
	actions := NewActions(store, &fakeOpener{err: eris.New("model unavailable")})

	result, err := actions.Apply(context.Background(), "alice", "m1", model.ActionAccept)
	require.NoError(t, err)
	assert.True(t, result.Matched)
	require.Len(t, store.connections, 1)
	assert.Equal(t, icebreaker.Fallback(), store.icebreakers[store.connections[0].ID])
}

func TestListToday(t *testing.T) {
	t.Parallel()

	store := newFakeMatchStore()
	seedPair(store, model.ActionPending)
	actions := NewActions(store, nil)

	now, err := time.Parse("2006-01-02", "2026-08-27")
	require.NoError(t, err)

	matches, err := actions.ListToday(context.Background(), "alice", now)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "m1", matches[0].ID)

	empty, err := actions.ListToday(context.Background(), "nobody", now)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
