package engagement

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/promotebya/sunbird-client-sub002/internal/domain"
	"github.com/promotebya/sunbird-client-sub002/internal/infra/metrics"
)

// PointsAggregator sums a pair's point events per week and drives the weekly
// goal: progress, completion, history and reward claims.
//
// Completion is monotonic within a week: once a week's history says
// completed it stays completed, even if a later correction lowers the sum.
// Progress always reflects the live sum.
type PointsAggregator struct {
	events domain.PointsRepo
	weekly domain.PairWeeklyRepo
	strict bool
	pub    domain.EventPublisher
	now    Clock
	logger *slog.Logger
}

// NewPointsAggregator creates an aggregator.
func NewPointsAggregator(events domain.PointsRepo, weekly domain.PairWeeklyRepo, opts Options) *PointsAggregator {
	opts = opts.withDefaults()
	return &PointsAggregator{
		events: events,
		weekly: weekly,
		strict: opts.StrictClaims,
		pub:    opts.Publisher,
		now:    opts.Now,
		logger: opts.Logger,
	}
}

// AddPoints appends a point event for the pair. Negative values are stored
// but never count toward weekly totals.
func (a *PointsAggregator) AddPoints(ctx context.Context, pairID, userID string, value int, reason string) (domain.PointsEvent, error) {
	if pairID == "" {
		return domain.PointsEvent{}, domain.ErrMissingPairID
	}

	ev := domain.PointsEvent{
		ID:        uuid.NewString(),
		PairID:    pairID,
		UserID:    userID,
		Value:     value,
		Reason:    reason,
		CreatedAt: a.now(),
	}
	if err := a.events.Append(ctx, ev); err != nil {
		return domain.PointsEvent{}, recordErr("add_points", err)
	}
	metrics.PointsAppended.Add(float64(max(value, 0)))
	return ev, nil
}

// SumForWeek sums the pair's positive event values with CreatedAt in
// [start, end).
func (a *PointsAggregator) SumForWeek(ctx context.Context, pairID string, start, end time.Time) (int, error) {
	if pairID == "" {
		return 0, domain.ErrMissingPairID
	}

	evs, err := a.events.ListRange(ctx, pairID, start, end)
	if err != nil {
		return 0, recordErr("sum_for_week", err)
	}

	total := 0
	for _, ev := range evs {
		if ev.PairID != pairID || ev.Value <= 0 {
			continue
		}
		if ev.CreatedAt.Before(start) || !ev.CreatedAt.Before(end) {
			continue
		}
		total += ev.Value
	}
	return total, nil
}

// CurrentWeekPoints sums the pair's points for the week containing now.
func (a *PointsAggregator) CurrentWeekPoints(ctx context.Context, pairID string, tzOffsetMinutes int) (int, error) {
	start, end := WeekRange(a.now(), tzOffsetMinutes)
	return a.SumForWeek(ctx, pairID, start, end)
}

// EnsureWeekly recomputes the current week's sum, upserts that week's history
// entry and merges progress and status into the pair's live summary. Calling
// it again without new events yields the same summary.
//
// When the stored summary belongs to an earlier week, that week's history is
// finalised first and the weekly streak resets unless the summary was for the
// immediately preceding week and that week was completed. Partners may call
// with different offsets; a caller whose week is behind the stored one gets
// the stored summary back unchanged.
func (a *PointsAggregator) EnsureWeekly(ctx context.Context, pairID string, target, tzOffsetMinutes int) (domain.Weekly, error) {
	if pairID == "" {
		return domain.Weekly{}, domain.ErrMissingPairID
	}
	if target <= 0 {
		return domain.Weekly{}, domain.ErrInvalidTarget
	}
	defer observe("ensure_weekly")()

	now := a.now()
	weekKey := WeekIdentifier(now, tzOffsetMinutes)
	prevKey := PreviousWeekIdentifier(now, tzOffsetMinutes)
	start, end := WeekRange(now, tzOffsetMinutes)

	prior, err := a.weekly.GetWeekly(ctx, pairID)
	hasPrior := err == nil
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.Weekly{}, recordErr("ensure_weekly", err)
	}

	// Week keys are zero padded, so string order is calendar order.
	if hasPrior && prior.WeekKey > weekKey {
		return prior, nil
	}

	var priorCompleted bool
	if hasPrior && prior.WeekKey < weekKey {
		priorCompleted, err = a.finalize(ctx, prior, now)
		if err != nil {
			return domain.Weekly{}, recordErr("ensure_weekly", err)
		}
	}

	sum, err := a.SumForWeek(ctx, pairID, start, end)
	if err != nil {
		return domain.Weekly{}, err
	}

	var newlyCompleted bool
	hist, err := a.weekly.UpdateHistory(ctx, pairID, weekKey, func(cur domain.WeeklyHistoryEntry, exists bool) (domain.WeeklyHistoryEntry, error) {
		newlyCompleted = false // fn may be retried
		cur.PairID = pairID
		cur.WeekKey = weekKey
		cur.WeekStart = start
		cur.Target = target
		cur.Earned = sum
		if sum >= target && !cur.Completed {
			cur.Completed = true
			cur.CompletedAt = now
			newlyCompleted = true
		}
		return cur, nil
	})
	if err != nil {
		return domain.Weekly{}, recordErr("ensure_weekly", err)
	}

	var ahead bool
	weekly, err := a.weekly.UpdateWeekly(ctx, pairID, func(cur domain.Weekly, exists bool) (domain.Weekly, error) {
		// A partner in a later offset rolled the summary over meanwhile.
		if ahead = exists && cur.WeekKey > weekKey; ahead {
			return cur, nil
		}
		if exists && cur.WeekKey < weekKey {
			carried := cur.WeekKey == prevKey &&
				(cur.Status == domain.WeeklyCompleted || (cur.WeekKey == prior.WeekKey && priorCompleted))
			if !carried {
				cur.WeeklyStreak = 0
			}
		}
		cur.PairID = pairID
		cur.WeekKey = weekKey
		cur.WeekStart = start
		cur.Target = target
		cur.Progress = sum
		cur.Status = domain.WeeklyActive
		if hist.Completed {
			cur.Status = domain.WeeklyCompleted
		}
		return cur, nil
	})
	if err != nil {
		return domain.Weekly{}, recordErr("ensure_weekly", err)
	}

	if ahead {
		return weekly, nil
	}
	if newlyCompleted {
		metrics.WeeklyCompletions.Inc()
		a.logger.Info("weekly goal completed", "pair_id", pairID, "week", weekKey, "earned", sum, "target", target)
		publish(ctx, a.pub, a.logger, domain.Event{
			Type:    domain.EventWeeklyCompleted,
			PairID:  pairID,
			WeekID:  weekKey,
			At:      now,
			Payload: map[string]any{"earned": sum, "target": target},
		})
	}
	return weekly, nil
}

// finalize settles the history entry of a summary left over from an earlier
// week and reports whether that week ended completed.
func (a *PointsAggregator) finalize(ctx context.Context, prior domain.Weekly, now time.Time) (bool, error) {
	start := prior.WeekStart
	sum, err := a.SumForWeek(ctx, prior.PairID, start, start.Add(7*24*time.Hour))
	if err != nil {
		return false, err
	}

	hist, err := a.weekly.UpdateHistory(ctx, prior.PairID, prior.WeekKey, func(cur domain.WeeklyHistoryEntry, exists bool) (domain.WeeklyHistoryEntry, error) {
		cur.PairID = prior.PairID
		cur.WeekKey = prior.WeekKey
		cur.WeekStart = start
		if cur.Target == 0 {
			cur.Target = prior.Target
		}
		cur.Earned = sum
		if sum >= cur.Target && !cur.Completed {
			cur.Completed = true
			cur.CompletedAt = now
		}
		return cur, nil
	})
	if err != nil {
		return false, err
	}
	return hist.Completed, nil
}

// ClaimWeeklyReward records rewardID on this week's history and bumps the
// pair's weekly streak. The week must be completed.
//
// By default claiming twice in one week increments the streak twice. With
// StrictClaims the second claim fails with ErrAlreadyClaimed.
func (a *PointsAggregator) ClaimWeeklyReward(ctx context.Context, pairID, rewardID string, tzOffsetMinutes int) (domain.Weekly, error) {
	if pairID == "" {
		return domain.Weekly{}, domain.ErrMissingPairID
	}
	if rewardID == "" {
		return domain.Weekly{}, domain.ErrMissingRewardID
	}
	defer observe("claim_weekly_reward")()

	now := a.now()
	weekKey := WeekIdentifier(now, tzOffsetMinutes)

	if _, err := a.weekly.GetWeekly(ctx, pairID); err != nil {
		return domain.Weekly{}, recordErr("claim_weekly_reward", err)
	}

	_, err := a.weekly.UpdateHistory(ctx, pairID, weekKey, func(cur domain.WeeklyHistoryEntry, exists bool) (domain.WeeklyHistoryEntry, error) {
		switch {
		case !exists:
			return cur, domain.ErrWeekNotFound
		case !cur.Completed:
			return cur, domain.ErrTargetNotMet
		case a.strict && cur.RewardID != "":
			return cur, domain.ErrAlreadyClaimed
		}
		cur.RewardID = rewardID
		cur.ClaimedAt = now
		return cur, nil
	})
	if err != nil {
		return domain.Weekly{}, recordErr("claim_weekly_reward", err)
	}

	weekly, err := a.weekly.UpdateWeekly(ctx, pairID, func(cur domain.Weekly, exists bool) (domain.Weekly, error) {
		if !exists {
			return cur, domain.ErrWeekNotFound
		}
		cur.WeeklyStreak++
		cur.LongestWeeklyStreak = max(cur.LongestWeeklyStreak, cur.WeeklyStreak)
		cur.SelectedRewardID = rewardID
		return cur, nil
	})
	if err != nil {
		return domain.Weekly{}, recordErr("claim_weekly_reward", err)
	}

	metrics.WeeklyClaims.Inc()
	publish(ctx, a.pub, a.logger, domain.Event{
		Type:    domain.EventWeeklyClaimed,
		PairID:  pairID,
		WeekID:  weekKey,
		At:      now,
		Payload: map[string]any{"reward_id": rewardID, "weekly_streak": weekly.WeeklyStreak},
	})
	return weekly, nil
}

// Weekly returns the pair's live summary as last written by EnsureWeekly.
func (a *PointsAggregator) Weekly(ctx context.Context, pairID string) (domain.Weekly, error) {
	if pairID == "" {
		return domain.Weekly{}, domain.ErrMissingPairID
	}
	return a.weekly.GetWeekly(ctx, pairID)
}

// History lists the pair's weekly history newest first with a derived
// status: completed, active for the current week, missed otherwise.
func (a *PointsAggregator) History(ctx context.Context, pairID string, limit, tzOffsetMinutes int) ([]domain.WeeklyHistoryEntry, error) {
	if pairID == "" {
		return nil, domain.ErrMissingPairID
	}

	entries, err := a.weekly.ListHistory(ctx, pairID, limit)
	if err != nil {
		return nil, recordErr("weekly_history", err)
	}

	current := WeekIdentifier(a.now(), tzOffsetMinutes)
	for i := range entries {
		switch {
		case entries[i].Completed:
			entries[i].Status = domain.WeeklyCompleted
		case entries[i].WeekKey < current:
			entries[i].Status = domain.WeeklyMissed
		default:
			entries[i].Status = domain.WeeklyActive
		}
	}
	return entries, nil
}
