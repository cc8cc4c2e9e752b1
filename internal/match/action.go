package match

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/synastry-app/synastry-api/internal/apperr"
	"github.com/synastry-app/synastry-api/internal/icebreaker"
	"github.com/synastry-app/synastry-api/internal/model"
)

// Actions handles accept/pass on daily match candidates and connection
// creation on mutual accept.
type Actions struct {
	store      Store
	icebreaker Icebreaker // optional
}

// NewActions creates a match action handler. icebreaker may be nil.
func NewActions(store Store, icebreaker Icebreaker) *Actions {
	return &Actions{store: store, icebreaker: icebreaker}
}

// ListToday returns the user's candidates for the given day, best first.
func (a *Actions) ListToday(ctx context.Context, userID string, now time.Time) ([]model.DailyMatchCandidate, error) {
	matchDate := now.UTC().Format("2006-01-02")
	matches, err := a.store.ListDailyMatches(ctx, userID, matchDate)
	if err != nil {
		return nil, eris.Wrap(err, "match: list today")
	}
	if matches == nil {
		matches = []model.DailyMatchCandidate{}
	}
	return matches, nil
}

// ActionResult is returned to the match action route.
type ActionResult struct {
	Action  model.MatchAction `json:"action"`
	Matched bool              `json:"matched"`
}

// Apply records the user's action on a match candidate. The action can be set
// once; the caller must be the candidate's owner. When both sides of the pair
// have accepted on the same match date, exactly one connection is created —
// the unique constraint on the normalized pair absorbs concurrent accepts.
func (a *Actions) Apply(ctx context.Context, userID, matchID string, action model.MatchAction) (*ActionResult, error) {
	if action != model.ActionAccept && action != model.ActionPass {
		return nil, eris.Wrapf(apperr.ErrInvalidArgument, "action must be accept or pass, got %q", action)
	}

	candidate, err := a.store.GetDailyMatch(ctx, matchID)
	if err != nil {
		return nil, eris.Wrap(err, "match: load candidate")
	}
	if candidate == nil {
		return nil, eris.Wrapf(apperr.ErrNotFound, "match %s", matchID)
	}
	if candidate.UserID != userID {
		return nil, eris.Wrapf(apperr.ErrForbidden, "match %s does not belong to caller", matchID)
	}
	if candidate.UserAction != model.ActionPending {
		return nil, eris.Wrapf(apperr.ErrInvalidArgument, "action already recorded for match %s", matchID)
	}

	if err := a.store.SetMatchAction(ctx, matchID, action); err != nil {
		return nil, eris.Wrap(err, "match: set action")
	}

	if action == model.ActionPass {
		return &ActionResult{Action: action}, nil
	}

	mirror, err := a.store.GetMirrorMatch(ctx, candidate.MatchedUserID, candidate.UserID, candidate.MatchDate)
	if err != nil {
		return nil, eris.Wrap(err, "match: load mirror candidate")
	}
	if mirror == nil || mirror.UserAction != model.ActionAccept {
		return &ActionResult{Action: action}, nil
	}

	userA, userB := model.NormalizePair(candidate.UserID, candidate.MatchedUserID)
	conn := model.Connection{
		UserAID:   userA,
		UserBID:   userB,
		Status:    model.ConnIcebreaker,
		SyncLevel: 1,
		MatchDate: candidate.MatchDate,
	}
	created, err := a.store.CreateConnection(ctx, conn)
	if err != nil {
		return nil, eris.Wrap(err, "match: create connection")
	}

	// created is nil when a concurrent accept already inserted the pair.
	if created != nil {
		a.generateIcebreaker(ctx, *created)
	}

	return &ActionResult{Action: action, Matched: true}, nil
}

// generateIcebreaker asks the generator for an opener and stores it on the
// connection. Best effort all the way down.
func (a *Actions) generateIcebreaker(ctx context.Context, conn model.Connection) {
	if a.icebreaker == nil {
		return
	}
	log := zap.L().With(
		zap.String("user_a", conn.UserAID),
		zap.String("user_b", conn.UserBID),
	)

	userA, errA := a.store.GetUser(ctx, conn.UserAID)
	userB, errB := a.store.GetUser(ctx, conn.UserBID)
	if errA != nil || errB != nil || userA == nil || userB == nil {
		log.Warn("icebreaker skipped, could not load users")
		return
	}

	text, err := a.icebreaker.Generate(ctx, *userA, *userB)
	if err != nil {
		log.Warn("icebreaker generation failed, using fallback", zap.Error(err))
		text = icebreaker.Fallback()
	}
	if err := a.store.SetConnectionIcebreaker(ctx, conn.ID, text); err != nil {
		log.Warn("storing icebreaker failed", zap.Error(err))
	}
}
