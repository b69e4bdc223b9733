package repo

import (
	"context"
	"fmt"

	"github.com/promotebya/sunbird-client-sub002/internal/domain"
	"github.com/promotebya/sunbird-client-sub002/internal/infra/docstore"
)

type weeklyRecord struct {
	PairID              string `json:"pairId"`
	WeekKey             string `json:"weekKey"`
	WeekStartMs         int64  `json:"weekStartMs"`
	Target              int    `json:"target"`
	Status              string `json:"status"`
	Progress            int    `json:"progress"`
	WeeklyStreak        int    `json:"weeklyStreak"`
	LongestWeeklyStreak int    `json:"longestWeeklyStreak"`
	SelectedRewardID    string `json:"selectedRewardId,omitempty"`
}

func weeklyFromDomain(w domain.Weekly) weeklyRecord {
	return weeklyRecord{
		PairID:              w.PairID,
		WeekKey:             w.WeekKey,
		WeekStartMs:         toMillis(w.WeekStart),
		Target:              w.Target,
		Status:              string(w.Status),
		Progress:            w.Progress,
		WeeklyStreak:        w.WeeklyStreak,
		LongestWeeklyStreak: w.LongestWeeklyStreak,
		SelectedRewardID:    w.SelectedRewardID,
	}
}

func (r weeklyRecord) toDomain() domain.Weekly {
	return domain.Weekly{
		PairID:              r.PairID,
		WeekKey:             r.WeekKey,
		WeekStart:           fromMillis(r.WeekStartMs),
		Target:              r.Target,
		Status:              domain.WeeklyStatus(r.Status),
		Progress:            r.Progress,
		WeeklyStreak:        r.WeeklyStreak,
		LongestWeeklyStreak: r.LongestWeeklyStreak,
		SelectedRewardID:    r.SelectedRewardID,
	}
}

type historyRecord struct {
	PairID        string `json:"pairId"`
	WeekKey       string `json:"weekKey"`
	WeekStartMs   int64  `json:"weekStartMs"`
	Target        int    `json:"target"`
	Earned        int    `json:"earned"`
	Completed     bool   `json:"completed"`
	CompletedAtMs int64  `json:"completedAtMs,omitempty"`
	RewardID      string `json:"rewardId,omitempty"`
	ClaimedAtMs   int64  `json:"claimedAtMs,omitempty"`
}

func historyFromDomain(h domain.WeeklyHistoryEntry) historyRecord {
	return historyRecord{
		PairID:        h.PairID,
		WeekKey:       h.WeekKey,
		WeekStartMs:   toMillis(h.WeekStart),
		Target:        h.Target,
		Earned:        h.Earned,
		Completed:     h.Completed,
		CompletedAtMs: toMillis(h.CompletedAt),
		RewardID:      h.RewardID,
		ClaimedAtMs:   toMillis(h.ClaimedAt),
	}
}

func (r historyRecord) toDomain() domain.WeeklyHistoryEntry {
	return domain.WeeklyHistoryEntry{
		PairID:      r.PairID,
		WeekKey:     r.WeekKey,
		WeekStart:   fromMillis(r.WeekStartMs),
		Target:      r.Target,
		Earned:      r.Earned,
		Completed:   r.Completed,
		CompletedAt: fromMillis(r.CompletedAtMs),
		RewardID:    r.RewardID,
		ClaimedAt:   fromMillis(r.ClaimedAtMs),
	}
}

// PairWeekly stores the live summary at pairWeekly/{pairId} and history at
// pairWeeklyHistory/{pairId}_{weekKey}.
type PairWeekly struct {
	store docstore.Store
}

// NewPairWeekly creates the repository.
func NewPairWeekly(s docstore.Store) *PairWeekly {
	return &PairWeekly{store: s}
}

func historyKey(pairID, weekKey string) string {
	return pairID + "_" + weekKey
}

func (p *PairWeekly) GetWeekly(ctx context.Context, pairID string) (domain.Weekly, error) {
	rec, found, err := load[weeklyRecord](ctx, p.store, CollPairWeekly, pairID)
	if err != nil {
		return domain.Weekly{}, err
	}
	if !found {
		return domain.Weekly{}, domain.ErrWeekNotFound
	}
	return rec.toDomain(), nil
}

func (p *PairWeekly) UpdateWeekly(ctx context.Context, pairID string, fn func(cur domain.Weekly, exists bool) (domain.Weekly, error)) (domain.Weekly, error) {
	rec, err := mutate(ctx, p.store, CollPairWeekly, pairID, func(rec *weeklyRecord, exists bool) (bool, error) {
		next, err := fn(rec.toDomain(), exists)
		if err != nil {
			return false, err
		}
		*rec = weeklyFromDomain(next)
		return true, nil
	})
	if err != nil {
		return domain.Weekly{}, err
	}
	return rec.toDomain(), nil
}

func (p *PairWeekly) GetHistory(ctx context.Context, pairID, weekKey string) (domain.WeeklyHistoryEntry, error) {
	rec, found, err := load[historyRecord](ctx, p.store, CollPairWeeklyHistory, historyKey(pairID, weekKey))
	if err != nil {
		return domain.WeeklyHistoryEntry{}, err
	}
	if !found {
		return domain.WeeklyHistoryEntry{}, domain.ErrWeekNotFound
	}
	return rec.toDomain(), nil
}

func (p *PairWeekly) UpdateHistory(ctx context.Context, pairID, weekKey string, fn func(cur domain.WeeklyHistoryEntry, exists bool) (domain.WeeklyHistoryEntry, error)) (domain.WeeklyHistoryEntry, error) {
	rec, err := mutate(ctx, p.store, CollPairWeeklyHistory, historyKey(pairID, weekKey), func(rec *historyRecord, exists bool) (bool, error) {
		next, err := fn(rec.toDomain(), exists)
		if err != nil {
			return false, err
		}
		*rec = historyFromDomain(next)
		return true, nil
	})
	if err != nil {
		return domain.WeeklyHistoryEntry{}, err
	}
	return rec.toDomain(), nil
}

func (p *PairWeekly) ListHistory(ctx context.Context, pairID string, limit int) ([]domain.WeeklyHistoryEntry, error) {
	q := docstore.Query{OrderBy: "weekKey", Desc: true, Limit: max(limit, 0)}.
		Where("pairId", docstore.OpEq, pairID)
	docs, err := p.store.Query(ctx, CollPairWeeklyHistory, q)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}

	out := make([]domain.WeeklyHistoryEntry, 0, len(docs))
	for _, d := range docs {
		var rec historyRecord
		if err := docstore.Decode(d, &rec); err != nil {
			return nil, err
		}
		out = append(out, rec.toDomain())
	}
	return out, nil
}
