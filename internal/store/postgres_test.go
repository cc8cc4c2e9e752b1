package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synastry-app/synastry-api/internal/apperr"
	"github.com/synastry-app/synastry-api/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetUser_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM users WHERE id = \$1`).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	u, err := s.GetUser(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, u)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetUser_ScansRectification(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	birthDate := "1994-03-12"
	birthTime := "08:45"
	sun, moon, asc := "pisces", "leo", "virgo"
	chartAt := time.Now().UTC()
	winStart, winEnd := "08:00", "10:00"

	rows := pgxmock.NewRows([]string{
		"id", "display_name", "birth_date", "birth_time", "birth_lat", "birth_lon", "timezone",
		"onboarding_complete", "sun_sign", "moon_sign", "ascendant_sign", "chart_computed_at",
		"accuracy_type", "rectification_status", "current_confidence", "window_start", "window_end",
		"window_size_minutes", "is_boundary_case",
	}).AddRow(
		"u1", "Alice", &birthDate, &birthTime, 52.52, 13.405, "Europe/Berlin",
		true, &sun, &moon, &asc, &chartAt,
		model.TierTwoHourSlot, model.StatusNarrowedTo2hr, 0.5, &winStart, &winEnd,
		120, true,
	)

	mock.ExpectQuery(`FROM users WHERE id = \$1`).
		WithArgs("u1").
		WillReturnRows(rows)

	u, err := s.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "Alice", u.DisplayName)
	assert.Equal(t, "1994-03-12", u.BirthDate)
	assert.Equal(t, "virgo", u.AscendantSign)
	assert.Equal(t, model.StatusNarrowedTo2hr, u.Rectification.Status)
	assert.Equal(t, "08:00", u.Rectification.WindowStart)
	assert.True(t, u.Rectification.IsBoundaryCase)
	assert.Equal(t, "u1", u.Rectification.UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRectificationState_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE users SET rectification_status = \$1, current_confidence = \$2 WHERE id = \$3`).
		WithArgs("locked", 0.85, "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateRectificationState(context.Background(), "ghost", 0.85, model.StatusLocked)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetMatchAction_AlreadyRecorded(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE daily_matches SET user_action = \$1 WHERE id = \$2 AND user_action = \$3`).
		WithArgs("accept", "m1", "pending").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.SetMatchAction(context.Background(), "m1", model.ActionAccept)
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateConnection_DuplicateIsNil(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO connections`).
		WithArgs(pgxmock.AnyArg(), "alice", "bob", "icebreaker", 1, "2026-08-27", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	conn, err := s.CreateConnection(context.Background(), model.Connection{
		UserAID: "bob", UserBID: "alice",
		Status: model.ConnIcebreaker, SyncLevel: 1, MatchDate: "2026-08-27",
	})
	require.NoError(t, err)
	assert.Nil(t, conn)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetSessionUserID_Expired(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT user_id FROM sessions`).
		WithArgs("tok").
		WillReturnError(pgx.ErrNoRows)

	userID, err := s.GetSessionUserID(context.Background(), "tok")
	require.NoError(t, err)
	assert.Empty(t, userID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountFreshRankings(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	since := time.Now().Add(-24 * time.Hour)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM ranking_cache WHERE card_a_id = \$1 AND computed_at >= \$2`).
		WithArgs("c1", since).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))

	n, err := s.CountFreshRankings(context.Background(), "c1", since)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertDailyMatches_CountsOnlyInserted(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	anyArgs := make([]any, 12)
	for i := range anyArgs {
		anyArgs[i] = pgxmock.AnyArg()
	}
	mock.ExpectExec(`INSERT INTO daily_matches`).
		WithArgs(anyArgs...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO daily_matches`).
		WithArgs(anyArgs...).
		WillReturnResult(pgxmock.NewResult("INSERT", 0)) // conflict, already inserted today

	n, err := s.InsertDailyMatches(context.Background(), []model.DailyMatchCandidate{
		{UserID: "a", MatchedUserID: "b", MatchDate: "2026-08-27", MatchType: model.MatchSimilar},
		{UserID: "a", MatchedUserID: "c", MatchDate: "2026-08-27", MatchType: model.MatchTension},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountMatchesByAction(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT user_action, COUNT\(\*\) FROM daily_matches WHERE match_date = \$1 GROUP BY user_action`).
		WithArgs("2026-08-27").
		WillReturnRows(pgxmock.NewRows([]string{"user_action", "count"}).
			AddRow("pending", 4).
			AddRow("accept", 2))

	counts, err := s.CountMatchesByAction(context.Background(), "2026-08-27")
	require.NoError(t, err)
	assert.Equal(t, 4, counts[model.ActionPending])
	assert.Equal(t, 2, counts[model.ActionAccept])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RankingCacheStats(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	since := time.Now().Add(-24 * time.Hour)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FILTER \(WHERE computed_at >= \$1\), COUNT\(\*\) FROM ranking_cache`).
		WithArgs(since).
		WillReturnRows(pgxmock.NewRows([]string{"fresh", "total"}).AddRow(3, 9))

	fresh, total, err := s.RankingCacheStats(context.Background(), since)
	require.NoError(t, err)
	assert.Equal(t, 3, fresh)
	assert.Equal(t, 9, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
