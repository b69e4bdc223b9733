package repo

import (
	"context"
	"time"

	"github.com/promotebya/sunbird-client-sub002/internal/domain"
	"github.com/promotebya/sunbird-client-sub002/internal/infra/docstore"
)

type weeklyStateRecord struct {
	UserID      string                          `json:"userId"`
	WeekID      string                          `json:"weekId"`
	CreatedAtMs int64                           `json:"createdAtMs"`
	Items       map[string]challengeStateRecord `json:"items"`
}

type challengeStateRecord struct {
	Opened       bool   `json:"opened"`
	Completed    bool   `json:"completed"`
	Awarded      bool   `json:"awarded,omitempty"`
	UnlockedAtMs int64  `json:"unlockedAtMs,omitempty"`
	Tier         string `json:"tier,omitempty"`
}

func (r weeklyStateRecord) toDomain() domain.WeeklyState {
	ws := domain.WeeklyState{
		UserID:    r.UserID,
		WeekID:    r.WeekID,
		CreatedAt: fromMillis(r.CreatedAtMs),
		Items:     make(map[string]domain.ChallengeState, len(r.Items)),
	}
	for id, it := range r.Items {
		ws.Items[id] = domain.ChallengeState{
			Opened:     it.Opened,
			Completed:  it.Completed,
			Awarded:    it.Awarded,
			UnlockedAt: fromMillis(it.UnlockedAtMs),
			Tier:       domain.Tier(it.Tier),
		}
	}
	return ws
}

// WeeklyStates stores one document per (user, week) at
// weeklyChallenges/{userId}_{weekId}.
type WeeklyStates struct {
	store docstore.Store
}

// NewWeeklyStates creates the repository.
func NewWeeklyStates(s docstore.Store) *WeeklyStates {
	return &WeeklyStates{store: s}
}

func weeklyStateKey(userID, weekID string) string {
	return userID + "_" + weekID
}

// init fills a fresh record. Callers hold the document's update.
func (rec *weeklyStateRecord) init(userID, weekID string, now time.Time) {
	rec.UserID = userID
	rec.WeekID = weekID
	rec.CreatedAtMs = toMillis(now)
}

func (w *WeeklyStates) Ensure(ctx context.Context, userID, weekID string, now time.Time) (domain.WeeklyState, error) {
	rec, err := mutate(ctx, w.store, CollWeeklyChallenges, weeklyStateKey(userID, weekID),
		func(rec *weeklyStateRecord, exists bool) (bool, error) {
			if exists {
				return false, nil
			}
			rec.init(userID, weekID, now)
			rec.Items = map[string]challengeStateRecord{}
			return true, nil
		})
	if err != nil {
		return domain.WeeklyState{}, err
	}
	return rec.toDomain(), nil
}

func (w *WeeklyStates) Get(ctx context.Context, userID, weekID string) (domain.WeeklyState, error) {
	rec, found, err := load[weeklyStateRecord](ctx, w.store, CollWeeklyChallenges, weeklyStateKey(userID, weekID))
	if err != nil {
		return domain.WeeklyState{}, err
	}
	if !found {
		return domain.WeeklyState{}, domain.ErrWeekNotFound
	}
	return rec.toDomain(), nil
}

func (w *WeeklyStates) RecordUnlock(ctx context.Context, userID, weekID, challengeID string, tier domain.Tier, at time.Time) (bool, error) {
	var opened bool
	_, err := mutate(ctx, w.store, CollWeeklyChallenges, weeklyStateKey(userID, weekID),
		func(rec *weeklyStateRecord, exists bool) (bool, error) {
			if !exists {
				rec.init(userID, weekID, at)
			}
			if rec.Items == nil {
				rec.Items = map[string]challengeStateRecord{}
			}
			it := rec.Items[challengeID]
			opened = !it.Opened
			it.Opened = true
			if it.UnlockedAtMs == 0 {
				it.UnlockedAtMs = toMillis(at)
			}
			if it.Tier == "" {
				it.Tier = string(tier)
			}
			rec.Items[challengeID] = it
			return opened || !exists, nil
		})
	return opened, err
}

func (w *WeeklyStates) SetCompleted(ctx context.Context, userID, weekID, challengeID string, completed bool, now time.Time) (bool, error) {
	var changed bool
	_, err := mutate(ctx, w.store, CollWeeklyChallenges, weeklyStateKey(userID, weekID),
		func(rec *weeklyStateRecord, exists bool) (bool, error) {
			if !exists {
				rec.init(userID, weekID, now)
			}
			if rec.Items == nil {
				rec.Items = map[string]challengeStateRecord{}
			}
			it := rec.Items[challengeID]
			changed = it.Completed != completed
			it.Completed = completed
			rec.Items[challengeID] = it
			return changed || !exists, nil
		})
	return changed, err
}

func (w *WeeklyStates) MarkAwarded(ctx context.Context, userID, weekID, challengeID string, now time.Time) (bool, error) {
	var awarded bool
	_, err := mutate(ctx, w.store, CollWeeklyChallenges, weeklyStateKey(userID, weekID),
		func(rec *weeklyStateRecord, exists bool) (bool, error) {
			if !exists {
				rec.init(userID, weekID, now)
			}
			if rec.Items == nil {
				rec.Items = map[string]challengeStateRecord{}
			}
			it := rec.Items[challengeID]
			awarded = !it.Awarded
			it.Awarded = true
			rec.Items[challengeID] = it
			return awarded || !exists, nil
		})
	return awarded, err
}
