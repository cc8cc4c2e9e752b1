package store

import (
	"context"
	"time"

	"github.com/synastry-app/synastry-api/internal/model"
	"github.com/synastry-app/synastry-api/pkg/astro"
)

// Store defines the persistence interface for the matching core. It is the
// union of the narrow interfaces the rectify, match and ranking packages
// declare for themselves.
type Store interface {
	// Users and rectification
	GetUser(ctx context.Context, userID string) (*model.User, error)
	SetBirthData(ctx context.Context, userID string, data model.BirthData, chart *astro.Chart, state model.RectificationState) error
	UpdateRectificationState(ctx context.Context, userID string, confidence float64, status model.RectificationStatus) error
	AppendRectificationEvent(ctx context.Context, event model.RectificationEvent) error
	ListAnsweredQuestionIDs(ctx context.Context, userID string) (map[string]bool, error)
	ListCompletedUsers(ctx context.Context) ([]model.User, error)

	// Daily matches and connections
	InsertDailyMatches(ctx context.Context, candidates []model.DailyMatchCandidate) (int, error)
	GetDailyMatch(ctx context.Context, matchID string) (*model.DailyMatchCandidate, error)
	ListDailyMatches(ctx context.Context, userID, matchDate string) ([]model.DailyMatchCandidate, error)
	SetMatchAction(ctx context.Context, matchID string, action model.MatchAction) error
	GetMirrorMatch(ctx context.Context, userID, matchedUserID, matchDate string) (*model.DailyMatchCandidate, error)
	CreateConnection(ctx context.Context, conn model.Connection) (*model.Connection, error)
	SetConnectionIcebreaker(ctx context.Context, connID, text string) error

	// Ranking cache
	CountFreshRankings(ctx context.Context, cardID string, since time.Time) (int, error)
	ListRankings(ctx context.Context, cardID string, offset, limit int) ([]model.RankingEntry, int, error)
	ListOptedInCards(ctx context.Context, excludeCardID string) ([]model.Card, error)
	ListFreshPartnerIDs(ctx context.Context, cardID string, since time.Time) (map[string]bool, error)
	UpsertRankings(ctx context.Context, entries []model.RankingEntry) error
	GetCard(ctx context.Context, cardID string) (*model.Card, error)
	CardSubject(ctx context.Context, cardID string) (*astro.Subject, error)
	LastRecomputeAt(ctx context.Context, cardID string) (*time.Time, error)
	RecordRecompute(ctx context.Context, cardID string, at time.Time) error

	// Monitoring stats
	CountMatchesByAction(ctx context.Context, matchDate string) (map[model.MatchAction]int, error)
	CountConnectionsByDate(ctx context.Context, matchDate string) (int, error)
	RankingCacheStats(ctx context.Context, since time.Time) (fresh, total int, err error)

	// Sessions
	GetSessionUserID(ctx context.Context, token string) (string, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
