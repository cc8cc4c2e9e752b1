package match

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/synastry-app/synastry-api/internal/model"
	"github.com/synastry-app/synastry-api/pkg/astro"
)

// Store is the persistence surface the match subsystem depends on.
type Store interface {
	ListCompletedUsers(ctx context.Context) ([]model.User, error)
	InsertDailyMatches(ctx context.Context, candidates []model.DailyMatchCandidate) (int, error)
	GetDailyMatch(ctx context.Context, matchID string) (*model.DailyMatchCandidate, error)
	ListDailyMatches(ctx context.Context, userID, matchDate string) ([]model.DailyMatchCandidate, error)
	SetMatchAction(ctx context.Context, matchID string, action model.MatchAction) error
	GetMirrorMatch(ctx context.Context, userID, matchedUserID, matchDate string) (*model.DailyMatchCandidate, error)
	GetUser(ctx context.Context, userID string) (*model.User, error)
	CreateConnection(ctx context.Context, conn model.Connection) (*model.Connection, error)
	SetConnectionIcebreaker(ctx context.Context, connID, text string) error
}

// Icebreaker generates an opening line for a fresh connection. Implementations
// must be best effort; a failure never blocks connection creation.
type Icebreaker interface {
	Generate(ctx context.Context, userA, userB model.User) (string, error)
}

// Runner executes the daily match job.
type Runner struct {
	store Store
	astro astro.Client
	topK  int
}

// NewRunner creates a daily match job runner. topK caps the picks per user;
// values <= 0 fall back to DefaultTopK.
func NewRunner(store Store, astroClient astro.Client, topK int) *Runner {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Runner{store: store, astro: astroClient, topK: topK}
}

// RunResult reports the outcome of one daily run.
type RunResult struct {
	Inserted int    `json:"inserted"`
	Date     string `json:"date"`
}

// RunDaily scores every pair of completed-onboarding users and inserts up to
// topK diversified picks per user for today. Scoring goes through the astro
// service one call at a time; a failed call drops the pair and the run
// continues. Re-running on the same date is a no-op thanks to the
// (user_id, matched_user_id, match_date) uniqueness.
func (r *Runner) RunDaily(ctx context.Context, now time.Time) (*RunResult, error) {
	matchDate := now.UTC().Format("2006-01-02")
	log := zap.L().With(zap.String("match_date", matchDate))

	users, err := r.store.ListCompletedUsers(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "match: list users")
	}
	log.Info("daily match run starting", zap.Int("users", len(users)))

	inserted := 0
	for _, user := range users {
		scored := r.scoreCandidates(ctx, log, user, users)
		picks := SelectTop(scored, r.topK)
		if len(picks) == 0 {
			continue
		}

		candidates := make([]model.DailyMatchCandidate, 0, len(picks))
		for _, p := range picks {
			candidates = append(candidates, model.DailyMatchCandidate{
				UserID:        user.ID,
				MatchedUserID: p.MatchedUserID,
				MatchDate:     matchDate,
				Scores: model.MatchScores{
					Kernel: p.Result.KernelScore,
					Power:  p.Result.PowerScore,
					Glitch: p.Result.GlitchScore,
					Total:  p.Result.TotalScore,
				},
				MatchType:  model.MatchType(p.Result.MatchType),
				Tags:       p.Result.Tags,
				UserAction: model.ActionPending,
			})
		}

		n, err := r.store.InsertDailyMatches(ctx, candidates)
		if err != nil {
			return nil, eris.Wrapf(err, "match: insert candidates for %s", user.ID)
		}
		inserted += n
	}

	log.Info("daily match run complete", zap.Int("inserted", inserted))
	return &RunResult{Inserted: inserted, Date: matchDate}, nil
}

// scoreCandidates calls compute-match against every other user, sequentially.
// Failed calls are logged and dropped; the remaining candidates still compete.
func (r *Runner) scoreCandidates(ctx context.Context, log *zap.Logger, user model.User, pool []model.User) []Scored {
	var scored []Scored
	for _, other := range pool {
		if other.ID == user.ID {
			continue
		}
		result, err := r.astro.ComputeMatch(ctx, subject(user), subject(other))
		if err != nil {
			log.Warn("pairwise scoring failed, dropping pair",
				zap.String("user_id", user.ID),
				zap.String("matched_user_id", other.ID),
				zap.Error(err),
			)
			continue
		}
		scored = append(scored, Scored{MatchedUserID: other.ID, Result: *result})
	}
	return scored
}

func subject(u model.User) astro.Subject {
	return astro.Subject{
		UserID:    u.ID,
		BirthDate: u.BirthDate,
		BirthTime: u.BirthTime,
		Lat:       u.BirthLat,
		Lon:       u.BirthLon,
		Timezone:  u.Timezone,
	}
}
