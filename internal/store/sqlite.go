package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	user_id TEXT,
	created_at INTEGER NOT NULL,
	duration_sec INTEGER,
	level_label TEXT,
	goal TEXT,
	client_id TEXT
);

CREATE TABLE IF NOT EXISTS feedback (
	id TEXT PRIMARY KEY,
	user_id TEXT,
	created_at INTEGER NOT NULL,
	name TEXT,
	email TEXT,
	rating INTEGER CHECK (rating IS NULL OR rating BETWEEN 1 AND 5),
	text TEXT
);

CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
`

// SQLite implements Store on a local database file.
type SQLite struct {
	db *sql.DB
}

// Open opens (and migrates) the database at path.
func Open(path string) (*SQLite, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) RecordSession(ctx context.Context, rec SessionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, created_at, duration_sec, level_label, goal, client_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), nullable(rec.UserID), time.Now().Unix(),
		rec.DurationSec, nullable(rec.LevelLabel), nullable(rec.Goal), nullable(rec.ClientID))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SQLite) RecordFeedback(ctx context.Context, rec FeedbackRecord) error {
	var rating any
	if rec.Rating >= 1 && rec.Rating <= 5 {
		rating = rec.Rating
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (id, user_id, created_at, name, email, rating, text)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), nullable(rec.UserID), time.Now().Unix(),
		nullable(rec.Name), nullable(rec.Email), rating, nullable(rec.Text))
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

func (s *SQLite) TopUsersBySessions(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, COUNT(*) AS sessions, MAX(created_at) AS last_seen
		FROM sessions
		WHERE user_id IS NOT NULL
		GROUP BY user_id
		ORDER BY sessions DESC, last_seen DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	var out []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		var lastSeen int64
		if err := rows.Scan(&e.UserID, &e.Sessions, &lastSeen); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		e.LastSeen = time.Unix(lastSeen, 0)
		out = append(out, e)
	}
	return out, rows.Err()
}

// nullable maps empty strings to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
