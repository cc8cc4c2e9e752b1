// Package ranking maintains the compatibility ranking cache: TTL-gated
// incremental recomputes against the quick-score endpoint, bounded fan-out,
// and a cooldown-guarded manual recompute path.
package ranking

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/synastry-app/synastry-api/internal/apperr"
	"github.com/synastry-app/synastry-api/internal/model"
	"github.com/synastry-app/synastry-api/pkg/astro"
)

// Store is the persistence surface the refresher depends on.
type Store interface {
	CountFreshRankings(ctx context.Context, cardID string, since time.Time) (int, error)
	ListRankings(ctx context.Context, cardID string, offset, limit int) ([]model.RankingEntry, int, error)
	ListOptedInCards(ctx context.Context, excludeCardID string) ([]model.Card, error)
	ListFreshPartnerIDs(ctx context.Context, cardID string, since time.Time) (map[string]bool, error)
	UpsertRankings(ctx context.Context, entries []model.RankingEntry) error
	GetCard(ctx context.Context, cardID string) (*model.Card, error)
	CardSubject(ctx context.Context, cardID string) (*astro.Subject, error)
	LastRecomputeAt(ctx context.Context, cardID string) (*time.Time, error)
	RecordRecompute(ctx context.Context, cardID string, at time.Time) error
}

// Options tunes the refresher. Zero values fall back to the spec'd defaults.
type Options struct {
	TTL               time.Duration // freshness window, default 24h
	BatchSize         int           // concurrent quick-score calls, default 5
	CallTimeout       time.Duration // per-call timeout, default 5s
	RecomputeCooldown time.Duration // manual recompute cooldown, default 1h
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = model.RankingTTL
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 5
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 5 * time.Second
	}
	if o.RecomputeCooldown <= 0 {
		o.RecomputeCooldown = time.Hour
	}
	return o
}

// Refresher serves ranked compatibility lists, refreshing stale cache entries
// inline before reading.
type Refresher struct {
	store Store
	astro astro.Client
	opts  Options
	now   func() time.Time
}

// NewRefresher creates a ranking refresher.
func NewRefresher(store Store, astroClient astro.Client, opts Options) *Refresher {
	return &Refresher{
		store: store,
		astro: astroClient,
		opts:  opts.withDefaults(),
		now:   time.Now,
	}
}

// Page is one page of ranked results.
type Page struct {
	Rankings []model.RankingEntry `json:"rankings"`
	Total    int                  `json:"total"`
}

// GetRankings returns cache rows for cardID ordered by harmony descending.
// When the card has no fresh rows at all, the whole cache for that card is
// treated as stale and recomputed synchronously before the read — the caller
// always sees post-refresh data, never eventually-consistent output.
func (r *Refresher) GetRankings(ctx context.Context, ownerID, cardID string, offset, limit int) (*Page, error) {
	if err := r.checkOwner(ctx, ownerID, cardID); err != nil {
		return nil, err
	}

	since := r.now().Add(-r.opts.TTL)
	fresh, err := r.store.CountFreshRankings(ctx, cardID, since)
	if err != nil {
		return nil, eris.Wrap(err, "ranking: freshness check")
	}
	if fresh == 0 {
		if err := r.refresh(ctx, cardID, since); err != nil {
			return nil, err
		}
	}

	if limit <= 0 {
		limit = 50
	}
	entries, total, err := r.store.ListRankings(ctx, cardID, offset, limit)
	if err != nil {
		return nil, eris.Wrap(err, "ranking: read")
	}
	if entries == nil {
		entries = []model.RankingEntry{}
	}
	return &Page{Rankings: entries, Total: total}, nil
}

// Recompute is the manual refresh path. It enforces a per-card cooldown and
// otherwise recomputes every stale pair for the card.
func (r *Refresher) Recompute(ctx context.Context, ownerID, cardID string) error {
	if err := r.checkOwner(ctx, ownerID, cardID); err != nil {
		return err
	}

	last, err := r.store.LastRecomputeAt(ctx, cardID)
	if err != nil {
		return eris.Wrap(err, "ranking: load last recompute")
	}
	now := r.now()
	if last != nil && now.Sub(*last) < r.opts.RecomputeCooldown {
		return eris.Wrapf(apperr.ErrRateLimited, "recompute for card %s ran %s ago", cardID, now.Sub(*last).Round(time.Second))
	}
	if err := r.store.RecordRecompute(ctx, cardID, now); err != nil {
		return eris.Wrap(err, "ranking: record recompute")
	}

	return r.refresh(ctx, cardID, now.Add(-r.opts.TTL))
}

// checkOwner verifies the card exists and belongs to ownerID.
func (r *Refresher) checkOwner(ctx context.Context, ownerID, cardID string) error {
	card, err := r.store.GetCard(ctx, cardID)
	if err != nil {
		return eris.Wrap(err, "ranking: load card")
	}
	if card == nil {
		return eris.Wrapf(apperr.ErrNotFound, "card %s", cardID)
	}
	if card.UserID != ownerID {
		return eris.Wrapf(apperr.ErrForbidden, "card %s does not belong to caller", cardID)
	}
	return nil
}

// refresh scores every opted-in card lacking a fresh entry against cardID and
// upserts the results. Calls run at most BatchSize at a time, each under its
// own CallTimeout; a failed or timed-out call drops that pair from the batch
// and is not retried.
func (r *Refresher) refresh(ctx context.Context, cardID string, since time.Time) error {
	log := zap.L().With(zap.String("card_id", cardID))

	self, err := r.store.CardSubject(ctx, cardID)
	if err != nil {
		return eris.Wrap(err, "ranking: load card subject")
	}

	candidates, err := r.store.ListOptedInCards(ctx, cardID)
	if err != nil {
		return eris.Wrap(err, "ranking: list candidates")
	}
	freshPartners, err := r.store.ListFreshPartnerIDs(ctx, cardID, since)
	if err != nil {
		return eris.Wrap(err, "ranking: list fresh partners")
	}

	var stale []model.Card
	for _, c := range candidates {
		if !freshPartners[c.ID] {
			stale = append(stale, c)
		}
	}
	if len(stale) == 0 {
		return nil
	}
	log.Info("refreshing ranking cache", zap.Int("stale_pairs", len(stale)))

	var (
		mu      sync.Mutex
		entries []model.RankingEntry
		dropped int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.BatchSize)

	for _, candidate := range stale {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, r.opts.CallTimeout)
			defer cancel()

			other, err := r.store.CardSubject(callCtx, candidate.ID)
			if err != nil || other == nil {
				mu.Lock()
				dropped++
				mu.Unlock()
				return nil
			}

			result, err := r.astro.QuickScore(callCtx, *self, *other)
			if err != nil {
				// Drop the pair; a slow or failing peer never aborts siblings.
				log.Debug("quick-score failed, dropping pair",
					zap.String("card_b_id", candidate.ID),
					zap.Error(err),
				)
				mu.Lock()
				dropped++
				mu.Unlock()
				return nil
			}

			entry := model.RankingEntry{
				CardAID:      cardID,
				CardBID:      candidate.ID,
				Harmony:      result.Harmony,
				Lust:         result.Lust,
				Soul:         result.Soul,
				PrimaryTrack: result.PrimaryTrack,
				Quadrant:     result.Quadrant,
				Labels:       result.Labels,
				Tracks:       result.Tracks,
				ComputedAt:   r.now(),
			}
			mu.Lock()
			entries = append(entries, entry)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "ranking: score fan-out")
	}
	if dropped > 0 {
		log.Warn("pairs dropped during refresh", zap.Int("dropped", dropped))
	}
	if len(entries) == 0 {
		return nil
	}

	if err := r.store.UpsertRankings(ctx, entries); err != nil {
		return eris.Wrap(err, "ranking: upsert")
	}
	return nil
}
