// Package monitoring watches the daily match job and the ranking cache and
// raises webhook alerts when either looks unhealthy.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/synastry-app/synastry-api/internal/model"
)

// Snapshot holds a point-in-time view of matching health.
type Snapshot struct {
	MatchDate string `json:"match_date"`

	// Today's daily match candidates, by recorded action.
	MatchesTotal    int `json:"matches_total"`
	MatchesAccepted int `json:"matches_accepted"`
	MatchesPassed   int `json:"matches_passed"`
	MatchesPending  int `json:"matches_pending"`

	// Connections formed on the match date.
	Connections int `json:"connections"`

	// Ranking cache freshness across all cards.
	RankingFresh int `json:"ranking_fresh"`
	RankingTotal int `json:"ranking_total"`

	CollectedAt time.Time `json:"collected_at"`
}

// StatsStore is the slice of the store the collector reads.
type StatsStore interface {
	CountMatchesByAction(ctx context.Context, matchDate string) (map[model.MatchAction]int, error)
	CountConnectionsByDate(ctx context.Context, matchDate string) (int, error)
	RankingCacheStats(ctx context.Context, since time.Time) (fresh, total int, err error)
}

// Collector gathers health metrics from the store.
type Collector struct {
	store StatsStore
}

// NewCollector creates a metrics collector.
func NewCollector(st StatsStore) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot for the given moment: today's match activity and
// ranking cache freshness over the given TTL.
func (c *Collector) Collect(ctx context.Context, now time.Time, ttl time.Duration) (*Snapshot, error) {
	matchDate := now.UTC().Format("2006-01-02")
	snap := &Snapshot{
		MatchDate:   matchDate,
		CollectedAt: now.UTC(),
	}

	actions, err := c.store.CountMatchesByAction(ctx, matchDate)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count matches")
	}
	snap.MatchesAccepted = actions[model.ActionAccept]
	snap.MatchesPassed = actions[model.ActionPass]
	snap.MatchesPending = actions[model.ActionPending]
	snap.MatchesTotal = snap.MatchesAccepted + snap.MatchesPassed + snap.MatchesPending

	snap.Connections, err = c.store.CountConnectionsByDate(ctx, matchDate)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count connections")
	}

	snap.RankingFresh, snap.RankingTotal, err = c.store.RankingCacheStats(ctx, now.Add(-ttl))
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: ranking cache stats")
	}

	return snap, nil
}
