package repo

import (
	"context"

	"github.com/promotebya/sunbird-client-sub002/internal/domain"
	"github.com/promotebya/sunbird-client-sub002/internal/infra/docstore"
)

type streakRecord struct {
	UserID              string `json:"userId"`
	Current             int    `json:"current"`
	Longest             int    `json:"longest"`
	LastActiveDay       string `json:"lastActiveDay,omitempty"`
	TodayCount          int    `json:"todayCount"`
	CountDay            string `json:"countDay,omitempty"`
	CatchupPending      bool   `json:"catchupPending"`
	CatchupBaseCurrent  int    `json:"catchupBaseCurrent"`
	CatchupWeekID       string `json:"catchupWeekId,omitempty"`
	CatchupIntentWeekID string `json:"catchupIntentWeekId,omitempty"`
}

func streakFromDomain(d domain.StreakDoc) streakRecord {
	return streakRecord(d)
}

func (r streakRecord) toDomain() domain.StreakDoc {
	return domain.StreakDoc(r)
}

// Streaks stores one document per user at streaks/{userId}.
type Streaks struct {
	store docstore.Store
}

// NewStreaks creates the repository.
func NewStreaks(s docstore.Store) *Streaks {
	return &Streaks{store: s}
}

func (r *Streaks) Get(ctx context.Context, userID string) (domain.StreakDoc, bool, error) {
	rec, found, err := load[streakRecord](ctx, r.store, CollStreaks, userID)
	return rec.toDomain(), found, err
}

func (r *Streaks) Update(ctx context.Context, userID string, fn func(cur domain.StreakDoc, exists bool) (domain.StreakDoc, error)) (domain.StreakDoc, error) {
	rec, err := mutate(ctx, r.store, CollStreaks, userID, func(rec *streakRecord, exists bool) (bool, error) {
		next, err := fn(rec.toDomain(), exists)
		if err != nil {
			return false, err
		}
		*rec = streakFromDomain(next)
		return true, nil
	})
	if err != nil {
		return domain.StreakDoc{}, err
	}
	return rec.toDomain(), nil
}
