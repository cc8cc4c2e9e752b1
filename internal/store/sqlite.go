package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/synastry-app/synastry-api/internal/apperr"
	"github.com/synastry-app/synastry-api/internal/model"
	"github.com/synastry-app/synastry-api/pkg/astro"
)

// SQLiteStore implements Store using modernc.org/sqlite. Used for local
// development; production runs on Postgres.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: sqlDB}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS users (
	id                   TEXT PRIMARY KEY,
	display_name         TEXT NOT NULL DEFAULT '',
	birth_date           TEXT,
	birth_time           TEXT,
	birth_lat            REAL NOT NULL DEFAULT 0,
	birth_lon            REAL NOT NULL DEFAULT 0,
	timezone             TEXT NOT NULL DEFAULT '',
	onboarding_complete  INTEGER NOT NULL DEFAULT 0,
	sun_sign             TEXT,
	moon_sign            TEXT,
	ascendant_sign       TEXT,
	chart_computed_at    DATETIME,
	accuracy_type        TEXT NOT NULL DEFAULT 'FUZZY_DAY',
	rectification_status TEXT NOT NULL DEFAULT 'unrectified',
	current_confidence   REAL NOT NULL DEFAULT 0,
	window_start         TEXT,
	window_end           TEXT,
	window_size_minutes  INTEGER NOT NULL DEFAULT 1440,
	is_boundary_case     INTEGER NOT NULL DEFAULT 0,
	created_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS rectification_events (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users(id),
	source     TEXT NOT NULL DEFAULT '',
	event_type TEXT NOT NULL,
	payload    TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_rectification_events_user ON rectification_events(user_id);

CREATE TABLE IF NOT EXISTS daily_matches (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL REFERENCES users(id),
	matched_user_id TEXT NOT NULL REFERENCES users(id),
	match_date      TEXT NOT NULL,
	kernel_score    REAL NOT NULL DEFAULT 0,
	power_score     REAL NOT NULL DEFAULT 0,
	glitch_score    REAL NOT NULL DEFAULT 0,
	total_score     REAL NOT NULL DEFAULT 0,
	match_type      TEXT NOT NULL,
	tags            TEXT,
	user_action     TEXT NOT NULL DEFAULT 'pending',
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (user_id, matched_user_id, match_date)
);

CREATE INDEX IF NOT EXISTS idx_daily_matches_user_date ON daily_matches(user_id, match_date);

CREATE TABLE IF NOT EXISTS connections (
	id         TEXT PRIMARY KEY,
	user_a_id  TEXT NOT NULL REFERENCES users(id),
	user_b_id  TEXT NOT NULL REFERENCES users(id),
	status     TEXT NOT NULL DEFAULT 'icebreaker',
	sync_level INTEGER NOT NULL DEFAULT 1,
	icebreaker TEXT,
	match_date TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (user_a_id, user_b_id)
);

CREATE TABLE IF NOT EXISTS cards (
	id       TEXT PRIMARY KEY,
	user_id  TEXT NOT NULL REFERENCES users(id),
	opted_in INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS ranking_cache (
	card_a_id     TEXT NOT NULL,
	card_b_id     TEXT NOT NULL,
	harmony       REAL NOT NULL DEFAULT 0,
	lust          REAL NOT NULL DEFAULT 0,
	soul          REAL NOT NULL DEFAULT 0,
	primary_track TEXT NOT NULL DEFAULT '',
	quadrant      TEXT NOT NULL DEFAULT '',
	labels        TEXT,
	tracks        TEXT,
	computed_at   DATETIME NOT NULL,
	PRIMARY KEY (card_a_id, card_b_id)
);

CREATE INDEX IF NOT EXISTS idx_ranking_cache_card_harmony ON ranking_cache(card_a_id, harmony DESC);

CREATE TABLE IF NOT EXISTS ranking_recomputes (
	card_id      TEXT PRIMARY KEY,
	requested_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	token      TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users(id),
	expires_at DATETIME NOT NULL
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// sqlRow lets scan helpers work for both QueryRow and Rows.
type sqlRow interface {
	Scan(dest ...any) error
}

func scanUserSQL(row sqlRow) (*model.User, error) {
	var u model.User
	var birthDate, birthTime, sunSign, moonSign, ascSign, windowStart, windowEnd sql.NullString
	var chartAt sql.NullTime
	err := row.Scan(
		&u.ID, &u.DisplayName, &birthDate, &birthTime, &u.BirthLat, &u.BirthLon, &u.Timezone,
		&u.OnboardingComplete, &sunSign, &moonSign, &ascSign, &chartAt,
		&u.Rectification.AccuracyType, &u.Rectification.Status, &u.Rectification.CurrentConfidence,
		&windowStart, &windowEnd, &u.Rectification.WindowSizeMinutes, &u.Rectification.IsBoundaryCase,
	)
	if err != nil {
		return nil, err
	}
	u.BirthDate = birthDate.String
	u.BirthTime = birthTime.String
	u.SunSign = sunSign.String
	u.MoonSign = moonSign.String
	u.AscendantSign = ascSign.String
	u.Rectification.WindowStart = windowStart.String
	u.Rectification.WindowEnd = windowEnd.String
	if chartAt.Valid {
		t := chartAt.Time
		u.ChartComputedAt = &t
	}
	u.Rectification.UserID = u.ID
	return &u, nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, userID)
	u, err := scanUserSQL(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get user %s", userID)
	}
	return u, nil
}

func (s *SQLiteStore) SetBirthData(ctx context.Context, userID string, data model.BirthData, chart *astro.Chart, state model.RectificationState) error {
	var sunSign, moonSign, ascSign any
	var chartAt any
	if chart != nil {
		sunSign, moonSign, ascSign = chart.SunSign, chart.MoonSign, chart.AscendantSign
		chartAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET
			birth_date = ?, birth_time = ?, birth_lat = ?, birth_lon = ?, timezone = ?,
			sun_sign = ?, moon_sign = ?, ascendant_sign = ?, chart_computed_at = ?,
			accuracy_type = ?, rectification_status = ?, current_confidence = ?,
			window_size_minutes = ?, is_boundary_case = ?, onboarding_complete = 1
		 WHERE id = ?`,
		data.BirthDate, data.BirthTime, data.BirthLat, data.BirthLon, data.Timezone,
		sunSign, moonSign, ascSign, chartAt,
		string(state.AccuracyType), string(state.Status), state.CurrentConfidence,
		state.WindowSizeMinutes, state.IsBoundaryCase, userID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set birth data for %s", userID)
	}
	return checkRowsAffected(res, userID)
}

func (s *SQLiteStore) UpdateRectificationState(ctx context.Context, userID string, confidence float64, status model.RectificationStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET rectification_status = ?, current_confidence = ? WHERE id = ?`,
		string(status), confidence, userID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update rectification state %s", userID)
	}
	return checkRowsAffected(res, userID)
}

// checkRowsAffected maps a zero-row update to NotFound.
func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(apperr.ErrNotFound, "record %s", id)
	}
	return nil
}

func (s *SQLiteStore) AppendRectificationEvent(ctx context.Context, event model.RectificationEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	payloadJSON, err := json.Marshal(event.Payload)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal event payload")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO rectification_events (id, user_id, source, event_type, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		event.ID, event.UserID, event.Source, string(event.EventType), string(payloadJSON), time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: append rectification event")
}

func (s *SQLiteStore) ListAnsweredQuestionIDs(ctx context.Context, userID string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT json_extract(payload, '$.question_id') FROM rectification_events WHERE user_id = ?`,
		userID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list answered questions")
	}
	defer rows.Close()

	answered := make(map[string]bool)
	for rows.Next() {
		var qid sql.NullString
		if err := rows.Scan(&qid); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan answered question")
		}
		if qid.Valid {
			answered[qid.String] = true
		}
	}
	return answered, eris.Wrap(rows.Err(), "sqlite: list answered questions iterate")
}

func (s *SQLiteStore) ListCompletedUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE onboarding_complete = 1 ORDER BY created_at`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list completed users")
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUserSQL(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan user")
		}
		users = append(users, *u)
	}
	return users, eris.Wrap(rows.Err(), "sqlite: list completed users iterate")
}

// Daily matches

func (s *SQLiteStore) InsertDailyMatches(ctx context.Context, candidates []model.DailyMatchCandidate) (int, error) {
	inserted := 0
	for _, c := range candidates {
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		tagsJSON, err := json.Marshal(c.Tags)
		if err != nil {
			return inserted, eris.Wrap(err, "sqlite: marshal match tags")
		}
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO daily_matches
			 (id, user_id, matched_user_id, match_date, kernel_score, power_score, glitch_score, total_score, match_type, tags, user_action, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (user_id, matched_user_id, match_date) DO NOTHING`,
			c.ID, c.UserID, c.MatchedUserID, c.MatchDate,
			c.Scores.Kernel, c.Scores.Power, c.Scores.Glitch, c.Scores.Total,
			string(c.MatchType), string(tagsJSON), string(model.ActionPending), time.Now().UTC(),
		)
		if err != nil {
			return inserted, eris.Wrap(err, "sqlite: insert daily match")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return inserted, eris.Wrap(err, "sqlite: rows affected")
		}
		inserted += int(n)
	}
	return inserted, nil
}

func scanDailyMatchSQL(row sqlRow) (*model.DailyMatchCandidate, error) {
	var c model.DailyMatchCandidate
	var tagsJSON sql.NullString
	err := row.Scan(
		&c.ID, &c.UserID, &c.MatchedUserID, &c.MatchDate,
		&c.Scores.Kernel, &c.Scores.Power, &c.Scores.Glitch, &c.Scores.Total,
		&c.MatchType, &tagsJSON, &c.UserAction, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &c.Tags); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal match tags")
		}
	}
	return &c, nil
}

func (s *SQLiteStore) GetDailyMatch(ctx context.Context, matchID string) (*model.DailyMatchCandidate, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+dailyMatchColumns+` FROM daily_matches WHERE id = ?`, matchID)
	c, err := scanDailyMatchSQL(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get daily match %s", matchID)
	}
	return c, nil
}

func (s *SQLiteStore) ListDailyMatches(ctx context.Context, userID, matchDate string) ([]model.DailyMatchCandidate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+dailyMatchColumns+` FROM daily_matches
		 WHERE user_id = ? AND match_date = ? ORDER BY total_score DESC`,
		userID, matchDate,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list daily matches")
	}
	defer rows.Close()

	var matches []model.DailyMatchCandidate
	for rows.Next() {
		c, err := scanDailyMatchSQL(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan daily match")
		}
		matches = append(matches, *c)
	}
	return matches, eris.Wrap(rows.Err(), "sqlite: list daily matches iterate")
}

func (s *SQLiteStore) SetMatchAction(ctx context.Context, matchID string, action model.MatchAction) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE daily_matches SET user_action = ? WHERE id = ? AND user_action = ?`,
		string(action), matchID, string(model.ActionPending),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set match action %s", matchID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(apperr.ErrInvalidArgument, "match %s action already recorded", matchID)
	}
	return nil
}

func (s *SQLiteStore) GetMirrorMatch(ctx context.Context, userID, matchedUserID, matchDate string) (*model.DailyMatchCandidate, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+dailyMatchColumns+` FROM daily_matches
		 WHERE user_id = ? AND matched_user_id = ? AND match_date = ?`,
		userID, matchedUserID, matchDate,
	)
	c, err := scanDailyMatchSQL(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: get mirror match")
	}
	return c, nil
}

// Connections

func (s *SQLiteStore) CreateConnection(ctx context.Context, conn model.Connection) (*model.Connection, error) {
	if conn.ID == "" {
		conn.ID = uuid.New().String()
	}
	conn.UserAID, conn.UserBID = model.NormalizePair(conn.UserAID, conn.UserBID)
	conn.CreatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO connections (id, user_a_id, user_b_id, status, sync_level, match_date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_a_id, user_b_id) DO NOTHING`,
		conn.ID, conn.UserAID, conn.UserBID, string(conn.Status), conn.SyncLevel, conn.MatchDate, conn.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: create connection")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return nil, nil
	}
	return &conn, nil
}

func (s *SQLiteStore) SetConnectionIcebreaker(ctx context.Context, connID, text string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE connections SET icebreaker = ? WHERE id = ?`, text, connID)
	return eris.Wrapf(err, "sqlite: set connection icebreaker %s", connID)
}

// Ranking cache

func (s *SQLiteStore) CountFreshRankings(ctx context.Context, cardID string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ranking_cache WHERE card_a_id = ? AND computed_at >= ?`,
		cardID, since,
	).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count fresh rankings")
}

func (s *SQLiteStore) ListRankings(ctx context.Context, cardID string, offset, limit int) ([]model.RankingEntry, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ranking_cache WHERE card_a_id = ?`, cardID,
	).Scan(&total); err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: count rankings")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT card_a_id, card_b_id, harmony, lust, soul, primary_track, quadrant, labels, tracks, computed_at
		 FROM ranking_cache WHERE card_a_id = ?
		 ORDER BY harmony DESC LIMIT ? OFFSET ?`,
		cardID, limit, offset,
	)
	if err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: list rankings")
	}
	defer rows.Close()

	var entries []model.RankingEntry
	for rows.Next() {
		var e model.RankingEntry
		var labelsJSON, tracksJSON sql.NullString
		if err := rows.Scan(&e.CardAID, &e.CardBID, &e.Harmony, &e.Lust, &e.Soul,
			&e.PrimaryTrack, &e.Quadrant, &labelsJSON, &tracksJSON, &e.ComputedAt); err != nil {
			return nil, 0, eris.Wrap(err, "sqlite: scan ranking entry")
		}
		if labelsJSON.Valid && labelsJSON.String != "" {
			if err := json.Unmarshal([]byte(labelsJSON.String), &e.Labels); err != nil {
				return nil, 0, eris.Wrap(err, "sqlite: unmarshal ranking labels")
			}
		}
		if tracksJSON.Valid && tracksJSON.String != "" {
			if err := json.Unmarshal([]byte(tracksJSON.String), &e.Tracks); err != nil {
				return nil, 0, eris.Wrap(err, "sqlite: unmarshal ranking tracks")
			}
		}
		entries = append(entries, e)
	}
	return entries, total, eris.Wrap(rows.Err(), "sqlite: list rankings iterate")
}

func (s *SQLiteStore) ListOptedInCards(ctx context.Context, excludeCardID string) ([]model.Card, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, opted_in FROM cards WHERE opted_in = 1 AND id <> ?`,
		excludeCardID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list opted-in cards")
	}
	defer rows.Close()

	var cards []model.Card
	for rows.Next() {
		var c model.Card
		if err := rows.Scan(&c.ID, &c.UserID, &c.OptedIn); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan card")
		}
		cards = append(cards, c)
	}
	return cards, eris.Wrap(rows.Err(), "sqlite: list opted-in cards iterate")
}

func (s *SQLiteStore) ListFreshPartnerIDs(ctx context.Context, cardID string, since time.Time) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT card_b_id FROM ranking_cache WHERE card_a_id = ? AND computed_at >= ?`,
		cardID, since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list fresh partners")
	}
	defer rows.Close()

	fresh := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan fresh partner")
		}
		fresh[id] = true
	}
	return fresh, eris.Wrap(rows.Err(), "sqlite: list fresh partners iterate")
}

func (s *SQLiteStore) UpsertRankings(ctx context.Context, entries []model.RankingEntry) error {
	for _, e := range entries {
		labelsJSON, err := json.Marshal(e.Labels)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal ranking labels")
		}
		tracksJSON, err := json.Marshal(e.Tracks)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal ranking tracks")
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO ranking_cache
			 (card_a_id, card_b_id, harmony, lust, soul, primary_track, quadrant, labels, tracks, computed_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (card_a_id, card_b_id) DO UPDATE SET
			   harmony = excluded.harmony, lust = excluded.lust, soul = excluded.soul,
			   primary_track = excluded.primary_track, quadrant = excluded.quadrant,
			   labels = excluded.labels, tracks = excluded.tracks, computed_at = excluded.computed_at`,
			e.CardAID, e.CardBID, e.Harmony, e.Lust, e.Soul,
			e.PrimaryTrack, e.Quadrant, string(labelsJSON), string(tracksJSON), e.ComputedAt,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: upsert ranking")
		}
	}
	return nil
}

func (s *SQLiteStore) GetCard(ctx context.Context, cardID string) (*model.Card, error) {
	var c model.Card
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, opted_in FROM cards WHERE id = ?`, cardID,
	).Scan(&c.ID, &c.UserID, &c.OptedIn)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get card %s", cardID)
	}
	return &c, nil
}

func (s *SQLiteStore) CardSubject(ctx context.Context, cardID string) (*astro.Subject, error) {
	var sub astro.Subject
	var birthDate, birthTime sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT u.id, u.birth_date, u.birth_time, u.birth_lat, u.birth_lon, u.timezone
		 FROM cards c JOIN users u ON u.id = c.user_id
		 WHERE c.id = ?`,
		cardID,
	).Scan(&sub.UserID, &birthDate, &birthTime, &sub.Lat, &sub.Lon, &sub.Timezone)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: card subject %s", cardID)
	}
	sub.BirthDate = birthDate.String
	sub.BirthTime = birthTime.String
	return &sub, nil
}

func (s *SQLiteStore) LastRecomputeAt(ctx context.Context, cardID string) (*time.Time, error) {
	var at time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT requested_at FROM ranking_recomputes WHERE card_id = ?`, cardID,
	).Scan(&at)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: last recompute")
	}
	return &at, nil
}

func (s *SQLiteStore) RecordRecompute(ctx context.Context, cardID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ranking_recomputes (card_id, requested_at) VALUES (?, ?)
		 ON CONFLICT (card_id) DO UPDATE SET requested_at = excluded.requested_at`,
		cardID, at,
	)
	return eris.Wrap(err, "sqlite: record recompute")
}

// Sessions

func (s *SQLiteStore) GetSessionUserID(ctx context.Context, token string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id FROM sessions WHERE token = ? AND expires_at > ?`,
		token, time.Now().UTC(),
	).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", eris.Wrap(err, "sqlite: get session")
	}
	return userID, nil
}

// Monitoring stats

func (s *SQLiteStore) CountMatchesByAction(ctx context.Context, matchDate string) (map[model.MatchAction]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_action, COUNT(*) FROM daily_matches WHERE match_date = ? GROUP BY user_action`,
		matchDate,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count matches by action")
	}
	defer rows.Close()

	counts := make(map[model.MatchAction]int)
	for rows.Next() {
		var action string
		var n int
		if err := rows.Scan(&action, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan match action count")
		}
		counts[model.MatchAction(action)] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: count matches by action iterate")
}

func (s *SQLiteStore) CountConnectionsByDate(ctx context.Context, matchDate string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM connections WHERE match_date = ?`, matchDate,
	).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count connections")
}

func (s *SQLiteStore) RankingCacheStats(ctx context.Context, since time.Time) (int, int, error) {
	var fresh, total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(CASE WHEN computed_at >= ? THEN 1 ELSE 0 END), 0), COUNT(*) FROM ranking_cache`,
		since,
	).Scan(&fresh, &total)
	return fresh, total, eris.Wrap(err, "sqlite: ranking cache stats")
}
