package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/synastry-app/synastry-api/internal/apperr"
	"github.com/synastry-app/synastry-api/internal/db"
	"github.com/synastry-app/synastry-api/internal/model"
	"github.com/synastry-app/synastry-api/pkg/astro"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for the
// hottest store operations.
var preparedStatements = map[string]string{
	"get_user_rectification": `SELECT accuracy_type, rectification_status, current_confidence, window_start, window_end, window_size_minutes, is_boundary_case FROM users WHERE id = $1`,
	"update_rectification":   `UPDATE users SET rectification_status = $1, current_confidence = $2 WHERE id = $3`,
	"get_daily_match":        `SELECT id, user_id, matched_user_id, match_date, kernel_score, power_score, glitch_score, total_score, match_type, tags, user_action, created_at FROM daily_matches WHERE id = $1`,
	"get_session":            `SELECT user_id FROM sessions WHERE token = $1 AND expires_at > now()`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS users (
	id                   TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	display_name         TEXT NOT NULL DEFAULT '',
	birth_date           TEXT,
	birth_time           TEXT,
	birth_lat            DOUBLE PRECISION NOT NULL DEFAULT 0,
	birth_lon            DOUBLE PRECISION NOT NULL DEFAULT 0,
	timezone             TEXT NOT NULL DEFAULT '',
	onboarding_complete  BOOLEAN NOT NULL DEFAULT false,
	sun_sign             TEXT,
	moon_sign            TEXT,
	ascendant_sign       TEXT,
	chart_computed_at    TIMESTAMPTZ,
	accuracy_type        TEXT NOT NULL DEFAULT 'FUZZY_DAY',
	rectification_status TEXT NOT NULL DEFAULT 'unrectified',
	current_confidence   DOUBLE PRECISION NOT NULL DEFAULT 0,
	window_start         TEXT,
	window_end           TEXT,
	window_size_minutes  INTEGER NOT NULL DEFAULT 1440,
	is_boundary_case     BOOLEAN NOT NULL DEFAULT false,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS rectification_events (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id    TEXT NOT NULL REFERENCES users(id),
	source     TEXT NOT NULL DEFAULT '',
	event_type TEXT NOT NULL,
	payload    JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_rectification_events_user ON rectification_events(user_id);

CREATE TABLE IF NOT EXISTS daily_matches (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id         TEXT NOT NULL REFERENCES users(id),
	matched_user_id TEXT NOT NULL REFERENCES users(id),
	match_date      TEXT NOT NULL,
	kernel_score    DOUBLE PRECISION NOT NULL DEFAULT 0,
	power_score     DOUBLE PRECISION NOT NULL DEFAULT 0,
	glitch_score    DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_score     DOUBLE PRECISION NOT NULL DEFAULT 0,
	match_type      TEXT NOT NULL,
	tags            JSONB,
	user_action     TEXT NOT NULL DEFAULT 'pending',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (user_id, matched_user_id, match_date)
);

CREATE INDEX IF NOT EXISTS idx_daily_matches_user_date ON daily_matches(user_id, match_date);

CREATE TABLE IF NOT EXISTS connections (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_a_id  TEXT NOT NULL REFERENCES users(id),
	user_b_id  TEXT NOT NULL REFERENCES users(id),
	status     TEXT NOT NULL DEFAULT 'icebreaker',
	sync_level INTEGER NOT NULL DEFAULT 1,
	icebreaker TEXT,
	match_date TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (user_a_id, user_b_id)
);

CREATE TABLE IF NOT EXISTS cards (
	id       TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id  TEXT NOT NULL REFERENCES users(id),
	opted_in BOOLEAN NOT NULL DEFAULT false
);

CREATE INDEX IF NOT EXISTS idx_cards_opted_in ON cards(opted_in);

CREATE TABLE IF NOT EXISTS ranking_cache (
	card_a_id     TEXT NOT NULL,
	card_b_id     TEXT NOT NULL,
	harmony       DOUBLE PRECISION NOT NULL DEFAULT 0,
	lust          DOUBLE PRECISION NOT NULL DEFAULT 0,
	soul          DOUBLE PRECISION NOT NULL DEFAULT 0,
	primary_track TEXT NOT NULL DEFAULT '',
	quadrant      TEXT NOT NULL DEFAULT '',
	labels        JSONB,
	tracks        JSONB,
	computed_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (card_a_id, card_b_id)
);

CREATE INDEX IF NOT EXISTS idx_ranking_cache_card_harmony ON ranking_cache(card_a_id, harmony DESC);
CREATE INDEX IF NOT EXISTS idx_ranking_cache_computed_at ON ranking_cache(computed_at);

CREATE TABLE IF NOT EXISTS ranking_recomputes (
	card_id      TEXT PRIMARY KEY,
	requested_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	token      TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users(id),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const userColumns = `id, display_name, birth_date, birth_time, birth_lat, birth_lon, timezone,
	onboarding_complete, sun_sign, moon_sign, ascendant_sign, chart_computed_at,
	accuracy_type, rectification_status, current_confidence, window_start, window_end,
	window_size_minutes, is_boundary_case`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	var birthDate, birthTime, sunSign, moonSign, ascSign, windowStart, windowEnd *string
	err := row.Scan(
		&u.ID, &u.DisplayName, &birthDate, &birthTime, &u.BirthLat, &u.BirthLon, &u.Timezone,
		&u.OnboardingComplete, &sunSign, &moonSign, &ascSign, &u.ChartComputedAt,
		&u.Rectification.AccuracyType, &u.Rectification.Status, &u.Rectification.CurrentConfidence,
		&windowStart, &windowEnd, &u.Rectification.WindowSizeMinutes, &u.Rectification.IsBoundaryCase,
	)
	if err != nil {
		return nil, err
	}
	setIf := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setIf(&u.BirthDate, birthDate)
	setIf(&u.BirthTime, birthTime)
	setIf(&u.SunSign, sunSign)
	setIf(&u.MoonSign, moonSign)
	setIf(&u.AscendantSign, ascSign)
	setIf(&u.Rectification.WindowStart, windowStart)
	setIf(&u.Rectification.WindowEnd, windowEnd)
	u.Rectification.UserID = u.ID
	return &u, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, userID string) (*model.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get user %s", userID)
	}
	return u, nil
}

func (s *PostgresStore) SetBirthData(ctx context.Context, userID string, data model.BirthData, chart *astro.Chart, state model.RectificationState) error {
	var sunSign, moonSign, ascSign *string
	var chartAt *time.Time
	if chart != nil {
		now := time.Now().UTC()
		sunSign, moonSign, ascSign = &chart.SunSign, &chart.MoonSign, &chart.AscendantSign
		chartAt = &now
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET
			birth_date = $1, birth_time = $2, birth_lat = $3, birth_lon = $4, timezone = $5,
			sun_sign = $6, moon_sign = $7, ascendant_sign = $8, chart_computed_at = $9,
			accuracy_type = $10, rectification_status = $11, current_confidence = $12,
			window_size_minutes = $13, is_boundary_case = $14, onboarding_complete = true
		 WHERE id = $15`,
		data.BirthDate, data.BirthTime, data.BirthLat, data.BirthLon, data.Timezone,
		sunSign, moonSign, ascSign, chartAt,
		string(state.AccuracyType), string(state.Status), state.CurrentConfidence,
		state.WindowSizeMinutes, state.IsBoundaryCase, userID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set birth data for %s", userID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(apperr.ErrNotFound, "user %s", userID)
	}
	return nil
}

func (s *PostgresStore) UpdateRectificationState(ctx context.Context, userID string, confidence float64, status model.RectificationStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET rectification_status = $1, current_confidence = $2 WHERE id = $3`,
		string(status), confidence, userID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update rectification state %s", userID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(apperr.ErrNotFound, "user %s", userID)
	}
	return nil
}

func (s *PostgresStore) AppendRectificationEvent(ctx context.Context, event model.RectificationEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	payloadJSON, err := json.Marshal(event.Payload)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal event payload")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO rectification_events (id, user_id, source, event_type, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, event.UserID, event.Source, string(event.EventType), payloadJSON, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: append rectification event")
}

func (s *PostgresStore) ListAnsweredQuestionIDs(ctx context.Context, userID string) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT payload->>'question_id' FROM rectification_events
		 WHERE user_id = $1 AND payload ? 'question_id'`,
		userID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list answered questions")
	}
	defer rows.Close()

	answered := make(map[string]bool)
	for rows.Next() {
		var qid *string
		if err := rows.Scan(&qid); err != nil {
			return nil, eris.Wrap(err, "postgres: scan answered question")
		}
		if qid != nil {
			answered[*qid] = true
		}
	}
	return answered, eris.Wrap(rows.Err(), "postgres: list answered questions iterate")
}

func (s *PostgresStore) ListCompletedUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE onboarding_complete = true ORDER BY created_at`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list completed users")
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan user")
		}
		users = append(users, *u)
	}
	return users, eris.Wrap(rows.Err(), "postgres: list completed users iterate")
}

// Daily matches

func (s *PostgresStore) InsertDailyMatches(ctx context.Context, candidates []model.DailyMatchCandidate) (int, error) {
	inserted := 0
	for _, c := range candidates {
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		tagsJSON, err := json.Marshal(c.Tags)
		if err != nil {
			return inserted, eris.Wrap(err, "postgres: marshal match tags")
		}
		tag, err := s.pool.Exec(ctx,
			`INSERT INTO daily_matches
			 (id, user_id, matched_user_id, match_date, kernel_score, power_score, glitch_score, total_score, match_type, tags, user_action, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			 ON CONFLICT (user_id, matched_user_id, match_date) DO NOTHING`,
			c.ID, c.UserID, c.MatchedUserID, c.MatchDate,
			c.Scores.Kernel, c.Scores.Power, c.Scores.Glitch, c.Scores.Total,
			string(c.MatchType), tagsJSON, string(model.ActionPending), time.Now().UTC(),
		)
		if err != nil {
			return inserted, eris.Wrap(err, "postgres: insert daily match")
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

const dailyMatchColumns = `id, user_id, matched_user_id, match_date, kernel_score, power_score, glitch_score, total_score, match_type, tags, user_action, created_at`

func scanDailyMatch(row pgx.Row) (*model.DailyMatchCandidate, error) {
	var c model.DailyMatchCandidate
	var tagsJSON []byte
	err := row.Scan(
		&c.ID, &c.UserID, &c.MatchedUserID, &c.MatchDate,
		&c.Scores.Kernel, &c.Scores.Power, &c.Scores.Glitch, &c.Scores.Total,
		&c.MatchType, &tagsJSON, &c.UserAction, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &c.Tags); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal match tags")
		}
	}
	return &c, nil
}

func (s *PostgresStore) GetDailyMatch(ctx context.Context, matchID string) (*model.DailyMatchCandidate, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+dailyMatchColumns+` FROM daily_matches WHERE id = $1`, matchID)
	c, err := scanDailyMatch(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get daily match %s", matchID)
	}
	return c, nil
}

func (s *PostgresStore) ListDailyMatches(ctx context.Context, userID, matchDate string) ([]model.DailyMatchCandidate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+dailyMatchColumns+` FROM daily_matches
		 WHERE user_id = $1 AND match_date = $2 ORDER BY total_score DESC`,
		userID, matchDate,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list daily matches")
	}
	defer rows.Close()

	var matches []model.DailyMatchCandidate
	for rows.Next() {
		c, err := scanDailyMatch(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan daily match")
		}
		matches = append(matches, *c)
	}
	return matches, eris.Wrap(rows.Err(), "postgres: list daily matches iterate")
}

func (s *PostgresStore) SetMatchAction(ctx context.Context, matchID string, action model.MatchAction) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE daily_matches SET user_action = $1 WHERE id = $2 AND user_action = $3`,
		string(action), matchID, string(model.ActionPending),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set match action %s", matchID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(apperr.ErrInvalidArgument, "match %s action already recorded", matchID)
	}
	return nil
}

func (s *PostgresStore) GetMirrorMatch(ctx context.Context, userID, matchedUserID, matchDate string) (*model.DailyMatchCandidate, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+dailyMatchColumns+` FROM daily_matches
		 WHERE user_id = $1 AND matched_user_id = $2 AND match_date = $3`,
		userID, matchedUserID, matchDate,
	)
	c, err := scanDailyMatch(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get mirror match")
	}
	return c, nil
}

// Connections

func (s *PostgresStore) CreateConnection(ctx context.Context, conn model.Connection) (*model.Connection, error) {
	if conn.ID == "" {
		conn.ID = uuid.New().String()
	}
	conn.UserAID, conn.UserBID = model.NormalizePair(conn.UserAID, conn.UserBID)
	conn.CreatedAt = time.Now().UTC()

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO connections (id, user_a_id, user_b_id, status, sync_level, match_date, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (user_a_id, user_b_id) DO NOTHING`,
		conn.ID, conn.UserAID, conn.UserBID, string(conn.Status), conn.SyncLevel, conn.MatchDate, conn.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create connection")
	}
	if tag.RowsAffected() == 0 {
		// Pair already connected; a concurrent accept won the insert.
		return nil, nil
	}
	return &conn, nil
}

func (s *PostgresStore) SetConnectionIcebreaker(ctx context.Context, connID, text string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE connections SET icebreaker = $1 WHERE id = $2`, text, connID)
	return eris.Wrapf(err, "postgres: set connection icebreaker %s", connID)
}

// Ranking cache

func (s *PostgresStore) CountFreshRankings(ctx context.Context, cardID string, since time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM ranking_cache WHERE card_a_id = $1 AND computed_at >= $2`,
		cardID, since,
	).Scan(&count)
	return count, eris.Wrap(err, "postgres: count fresh rankings")
}

func (s *PostgresStore) ListRankings(ctx context.Context, cardID string, offset, limit int) ([]model.RankingEntry, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM ranking_cache WHERE card_a_id = $1`, cardID,
	).Scan(&total); err != nil {
		return nil, 0, eris.Wrap(err, "postgres: count rankings")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT card_a_id, card_b_id, harmony, lust, soul, primary_track, quadrant, labels, tracks, computed_at
		 FROM ranking_cache WHERE card_a_id = $1
		 ORDER BY harmony DESC LIMIT $2 OFFSET $3`,
		cardID, limit, offset,
	)
	if err != nil {
		return nil, 0, eris.Wrap(err, "postgres: list rankings")
	}
	defer rows.Close()

	var entries []model.RankingEntry
	for rows.Next() {
		var e model.RankingEntry
		var labelsJSON, tracksJSON []byte
		if err := rows.Scan(&e.CardAID, &e.CardBID, &e.Harmony, &e.Lust, &e.Soul,
			&e.PrimaryTrack, &e.Quadrant, &labelsJSON, &tracksJSON, &e.ComputedAt); err != nil {
			return nil, 0, eris.Wrap(err, "postgres: scan ranking entry")
		}
		if len(labelsJSON) > 0 {
			if err := json.Unmarshal(labelsJSON, &e.Labels); err != nil {
				return nil, 0, eris.Wrap(err, "postgres: unmarshal ranking labels")
			}
		}
		if len(tracksJSON) > 0 {
			if err := json.Unmarshal(tracksJSON, &e.Tracks); err != nil {
				return nil, 0, eris.Wrap(err, "postgres: unmarshal ranking tracks")
			}
		}
		entries = append(entries, e)
	}
	return entries, total, eris.Wrap(rows.Err(), "postgres: list rankings iterate")
}

func (s *PostgresStore) ListOptedInCards(ctx context.Context, excludeCardID string) ([]model.Card, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, opted_in FROM cards WHERE opted_in = true AND id <> $1`,
		excludeCardID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list opted-in cards")
	}
	defer rows.Close()

	var cards []model.Card
	for rows.Next() {
		var c model.Card
		if err := rows.Scan(&c.ID, &c.UserID, &c.OptedIn); err != nil {
			return nil, eris.Wrap(err, "postgres: scan card")
		}
		cards = append(cards, c)
	}
	return cards, eris.Wrap(rows.Err(), "postgres: list opted-in cards iterate")
}

func (s *PostgresStore) ListFreshPartnerIDs(ctx context.Context, cardID string, since time.Time) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT card_b_id FROM ranking_cache WHERE card_a_id = $1 AND computed_at >= $2`,
		cardID, since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list fresh partners")
	}
	defer rows.Close()

	fresh := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan fresh partner")
		}
		fresh[id] = true
	}
	return fresh, eris.Wrap(rows.Err(), "postgres: list fresh partners iterate")
}

// rankingColumns matches the ranking_cache column order used by UpsertRankings.
var rankingColumns = []string{
	"card_a_id", "card_b_id", "harmony", "lust", "soul",
	"primary_track", "quadrant", "labels", "tracks", "computed_at",
}

func (s *PostgresStore) UpsertRankings(ctx context.Context, entries []model.RankingEntry) error {
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		labelsJSON, err := json.Marshal(e.Labels)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal ranking labels")
		}
		tracksJSON, err := json.Marshal(e.Tracks)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal ranking tracks")
		}
		rows = append(rows, []any{
			e.CardAID, e.CardBID, e.Harmony, e.Lust, e.Soul,
			e.PrimaryTrack, e.Quadrant, labelsJSON, tracksJSON, e.ComputedAt,
		})
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "ranking_cache",
		Columns:      rankingColumns,
		ConflictKeys: []string{"card_a_id", "card_b_id"},
	}, rows)
	return eris.Wrap(err, "postgres: upsert rankings")
}

func (s *PostgresStore) GetCard(ctx context.Context, cardID string) (*model.Card, error) {
	var c model.Card
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, opted_in FROM cards WHERE id = $1`, cardID,
	).Scan(&c.ID, &c.UserID, &c.OptedIn)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get card %s", cardID)
	}
	return &c, nil
}

func (s *PostgresStore) CardSubject(ctx context.Context, cardID string) (*astro.Subject, error) {
	var sub astro.Subject
	var birthTime *string
	err := s.pool.QueryRow(ctx,
		`SELECT u.id, u.birth_date, u.birth_time, u.birth_lat, u.birth_lon, u.timezone
		 FROM cards c JOIN users u ON u.id = c.user_id
		 WHERE c.id = $1`,
		cardID,
	).Scan(&sub.UserID, &sub.BirthDate, &birthTime, &sub.Lat, &sub.Lon, &sub.Timezone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: card subject %s", cardID)
	}
	if birthTime != nil {
		sub.BirthTime = *birthTime
	}
	return &sub, nil
}

func (s *PostgresStore) LastRecomputeAt(ctx context.Context, cardID string) (*time.Time, error) {
	var at time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT requested_at FROM ranking_recomputes WHERE card_id = $1`, cardID,
	).Scan(&at)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: last recompute")
	}
	return &at, nil
}

func (s *PostgresStore) RecordRecompute(ctx context.Context, cardID string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ranking_recomputes (card_id, requested_at) VALUES ($1, $2)
		 ON CONFLICT (card_id) DO UPDATE SET requested_at = $2`,
		cardID, at,
	)
	return eris.Wrap(err, "postgres: record recompute")
}

// Sessions

func (s *PostgresStore) GetSessionUserID(ctx context.Context, token string) (string, error) {
	var userID string
	err := s.pool.QueryRow(ctx,
		`SELECT user_id FROM sessions WHERE token = $1 AND expires_at > now()`, token,
	).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", eris.Wrap(err, "postgres: get session")
	}
	return userID, nil
}

// Monitoring stats

func (s *PostgresStore) CountMatchesByAction(ctx context.Context, matchDate string) (map[model.MatchAction]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_action, COUNT(*) FROM daily_matches WHERE match_date = $1 GROUP BY user_action`,
		matchDate,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count matches by action")
	}
	defer rows.Close()

	counts := make(map[model.MatchAction]int)
	for rows.Next() {
		var action string
		var n int
		if err := rows.Scan(&action, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan match action count")
		}
		counts[model.MatchAction(action)] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: count matches by action iterate")
}

func (s *PostgresStore) CountConnectionsByDate(ctx context.Context, matchDate string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM connections WHERE match_date = $1`, matchDate,
	).Scan(&count)
	return count, eris.Wrap(err, "postgres: count connections")
}

func (s *PostgresStore) RankingCacheStats(ctx context.Context, since time.Time) (int, int, error) {
	var fresh, total int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FILTER (WHERE computed_at >= $1), COUNT(*) FROM ranking_cache`, since,
	).Scan(&fresh, &total)
	return fresh, total, eris.Wrap(err, "postgres: ranking cache stats")
}
