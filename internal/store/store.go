// Package store persists session and feedback records. Writes are
// best-effort from the caller's point of view: a storage failure must
// never fail the analysis flow.
package store

import (
	"context"
	"time"
)

// SessionRecord is one completed analysis, optionally tied to a user.
type SessionRecord struct {
	UserID      string // empty for anonymous
	DurationSec int
	LevelLabel  string
	Goal        string
	ClientID    string
}

// FeedbackRecord is one solicitation response.
type FeedbackRecord struct {
	UserID string
	Name   string
	Email  string
	Rating int // 0 means no rating given
	Text   string
}

// LeaderboardEntry summarizes one signed-in user's session count.
type LeaderboardEntry struct {
	UserID   string    `json:"user_id"`
	Sessions int       `json:"sessions"`
	LastSeen time.Time `json:"last_seen"`
}

// Store is the persistence collaborator.
type Store interface {
	RecordSession(ctx context.Context, rec SessionRecord) error
	RecordFeedback(ctx context.Context, rec FeedbackRecord) error
	TopUsersBySessions(ctx context.Context, limit int) ([]LeaderboardEntry, error)
	Close() error
}
