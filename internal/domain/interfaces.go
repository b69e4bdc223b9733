package domain

import (
	"context"
	"time"
)

// ─── Repository Interfaces ──────────────────────────────────────────────────
// One narrow interface per aggregate. Infrastructure implements them on top of
// a document store; the engine depends only on these.
//
// Update methods are atomic read-modify-write: fn sees the current value and
// whether it exists, and whatever it returns is written. An error from fn
// aborts the write and is returned unchanged.

// WeeklyStateRepo persists per-(user, week) challenge flags.
type WeeklyStateRepo interface {
	// Ensure creates the week record if absent and returns it. Idempotent.
	Ensure(ctx context.Context, userID, weekID string, now time.Time) (WeeklyState, error)

	// Get returns ErrWeekNotFound if the record was never created.
	Get(ctx context.Context, userID, weekID string) (WeeklyState, error)

	// RecordUnlock marks a challenge opened and stamps the unlock time the
	// first time only. Completed is never touched. Reports whether the
	// challenge was newly opened.
	RecordUnlock(ctx context.Context, userID, weekID, challengeID string, tier Tier, at time.Time) (bool, error)

	// SetCompleted sets only the completed flag and reports whether it
	// changed. now stamps a record created by this call.
	SetCompleted(ctx context.Context, userID, weekID, challengeID string, completed bool, now time.Time) (bool, error)

	// MarkAwarded flags a challenge as credited for the week and reports
	// whether this call set the flag. The flag is never cleared.
	MarkAwarded(ctx context.Context, userID, weekID, challengeID string, now time.Time) (bool, error)
}

// StreakRepo persists per-user daily streaks.
type StreakRepo interface {
	Get(ctx context.Context, userID string) (StreakDoc, bool, error)
	Update(ctx context.Context, userID string, fn func(cur StreakDoc, exists bool) (StreakDoc, error)) (StreakDoc, error)
}

// PairWeeklyRepo persists the live weekly summary per pair and its history.
type PairWeeklyRepo interface {
	// GetWeekly returns ErrWeekNotFound if ensureWeekly never ran for the pair.
	GetWeekly(ctx context.Context, pairID string) (Weekly, error)
	UpdateWeekly(ctx context.Context, pairID string, fn func(cur Weekly, exists bool) (Weekly, error)) (Weekly, error)

	// GetHistory returns ErrWeekNotFound if the week has no entry.
	GetHistory(ctx context.Context, pairID, weekKey string) (WeeklyHistoryEntry, error)
	UpdateHistory(ctx context.Context, pairID, weekKey string, fn func(cur WeeklyHistoryEntry, exists bool) (WeeklyHistoryEntry, error)) (WeeklyHistoryEntry, error)

	// ListHistory returns entries newest week first. limit <= 0 means all.
	ListHistory(ctx context.Context, pairID string, limit int) ([]WeeklyHistoryEntry, error)
}

// PointsRepo is the append-only points event stream.
type PointsRepo interface {
	Append(ctx context.Context, ev PointsEvent) error

	// ListRange returns the pair's events with CreatedAt in [start, end).
	ListRange(ctx context.Context, pairID string, start, end time.Time) ([]PointsEvent, error)
}

// EventPublisher fans engine events out to collaborators (notifications,
// analytics). Publishing is best-effort.
type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// EventType names an engine event.
type EventType string

const (
	EventStreakUpdated      EventType = "streak.updated"
	EventWeeklyCompleted    EventType = "weekly.completed"
	EventWeeklyClaimed      EventType = "weekly.claimed"
	EventChallengeUnlocked  EventType = "challenge.unlocked"
	EventChallengeCompleted EventType = "challenge.completed"
)

// Event is a notification-worthy state change.
type Event struct {
	Type    EventType      `json:"type"`
	UserID  string         `json:"user_id,omitempty"`
	PairID  string         `json:"pair_id,omitempty"`
	WeekID  string         `json:"week_id,omitempty"`
	At      time.Time      `json:"at"`
	Payload map[string]any `json:"payload,omitempty"`
}
