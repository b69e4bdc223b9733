package engagement

import (
	"context"
	"log/slog"

	"github.com/promotebya/sunbird-client-sub002/internal/domain"
	"github.com/promotebya/sunbird-client-sub002/internal/infra/metrics"
)

// StreakTransition names the branch a completion took through the streak
// state machine.
type StreakTransition string

const (
	TransitionFresh           StreakTransition = "fresh"
	TransitionSameDay         StreakTransition = "same_day"
	TransitionConsecutive     StreakTransition = "consecutive"
	TransitionCatchupArmed    StreakTransition = "catchup_armed"
	TransitionCatchupWaiting  StreakTransition = "catchup_waiting"
	TransitionCatchupConsumed StreakTransition = "catchup_consumed"
	TransitionReset           StreakTransition = "reset"
)

// StreakEngine manages per-user daily streaks.
// Several completions on one day count once. After a gap the user may arm a
// catch-up once per ISO week: two completions on a later day restore the
// streak to its pre-gap length plus one.
type StreakEngine struct {
	repo   domain.StreakRepo
	pub    domain.EventPublisher
	now    Clock
	logger *slog.Logger
}

// NewStreakEngine creates a streak engine.
func NewStreakEngine(repo domain.StreakRepo, opts Options) *StreakEngine {
	opts = opts.withDefaults()
	return &StreakEngine{repo: repo, pub: opts.Publisher, now: opts.Now, logger: opts.Logger}
}

// AdvanceStreak applies one completion made on local day today (ISO week
// week) to doc. exists is false when the user has no streak record yet.
func AdvanceStreak(doc domain.StreakDoc, exists bool, today, week string) (domain.StreakDoc, StreakTransition) {
	countDay := doc.CountDay
	if countDay == "" {
		countDay = doc.LastActiveDay
	}
	count := 1
	if countDay == today {
		count = doc.TodayCount + 1
	}

	// A record created by ActivateCatchup has no active day yet.
	if !exists || doc.LastActiveDay == "" {
		doc.Current = 1
		doc.Longest = max(doc.Longest, 1)
		doc.LastActiveDay = today
		doc.TodayCount = 1
		doc.CountDay = today
		doc.CatchupPending = false
		return doc, TransitionFresh
	}

	switch {
	case doc.LastActiveDay == today:
		doc.TodayCount = count
		doc.CountDay = today
		return doc, TransitionSameDay

	case doc.LastActiveDay == previousDay(today):
		doc.Current++
		doc.Longest = max(doc.Longest, doc.Current)
		doc.LastActiveDay = today
		doc.TodayCount = 1
		doc.CountDay = today
		doc.CatchupPending = false
		return doc, TransitionConsecutive

	case doc.CatchupIntentWeekID == week && doc.CatchupWeekID != week:
		doc.TodayCount = count
		doc.CountDay = today
		if !doc.CatchupPending {
			doc.CatchupPending = true
			doc.CatchupBaseCurrent = doc.Current
			return doc, TransitionCatchupArmed
		}
		if count < 2 {
			return doc, TransitionCatchupWaiting
		}
		doc.Current = doc.CatchupBaseCurrent + 1
		doc.Longest = max(doc.Longest, doc.Current)
		doc.LastActiveDay = today
		doc.CatchupPending = false
		doc.CatchupWeekID = week
		return doc, TransitionCatchupConsumed

	default:
		doc.Current = 1
		doc.Longest = max(doc.Longest, 1)
		doc.LastActiveDay = today
		doc.TodayCount = 1
		doc.CountDay = today
		doc.CatchupPending = false
		return doc, TransitionReset
	}
}

// NotifyCompletion records one streak-worthy action for the user.
func (s *StreakEngine) NotifyCompletion(ctx context.Context, userID string, tzOffsetMinutes int) (domain.StreakDoc, error) {
	if userID == "" {
		return domain.StreakDoc{}, domain.ErrMissingUserID
	}
	defer observe("notify_completion")()

	now := s.now()
	today := DayKey(now, tzOffsetMinutes)
	week := WeekIdentifier(now, tzOffsetMinutes)

	var transition StreakTransition
	doc, err := s.repo.Update(ctx, userID, func(cur domain.StreakDoc, exists bool) (domain.StreakDoc, error) {
		cur.UserID = userID
		var next domain.StreakDoc
		next, transition = AdvanceStreak(cur, exists, today, week)
		return next, nil
	})
	if err != nil {
		return domain.StreakDoc{}, recordErr("notify_completion", err)
	}

	metrics.StreakTransitions.WithLabelValues(string(transition)).Inc()
	s.logger.Debug("streak advanced",
		"user_id", userID, "day", today, "transition", transition,
		"current", doc.Current, "longest", doc.Longest)

	if transition != TransitionSameDay && transition != TransitionCatchupWaiting {
		publish(ctx, s.pub, s.logger, domain.Event{
			Type:   domain.EventStreakUpdated,
			UserID: userID,
			WeekID: week,
			At:     now,
			Payload: map[string]any{
				"transition": string(transition),
				"current":    doc.Current,
				"longest":    doc.Longest,
			},
		})
	}
	return doc, nil
}

// ActivateCatchup arms catch-up for the current ISO week. Arming twice is a
// no-op; arming after catch-up was consumed this week fails with
// ErrCatchupConsumed and leaves the record untouched.
func (s *StreakEngine) ActivateCatchup(ctx context.Context, userID string, tzOffsetMinutes int) (domain.StreakDoc, error) {
	if userID == "" {
		return domain.StreakDoc{}, domain.ErrMissingUserID
	}
	defer observe("activate_catchup")()

	week := WeekIdentifier(s.now(), tzOffsetMinutes)
	doc, err := s.repo.Update(ctx, userID, func(cur domain.StreakDoc, exists bool) (domain.StreakDoc, error) {
		if cur.CatchupWeekID == week {
			return cur, domain.ErrCatchupConsumed
		}
		cur.UserID = userID
		cur.CatchupIntentWeekID = week
		return cur, nil
	})
	if err != nil {
		return domain.StreakDoc{}, recordErr("activate_catchup", err)
	}

	s.logger.Debug("catch-up armed", "user_id", userID, "week", week)
	return doc, nil
}

// View returns the user's streak with flags derived for today. Users without
// a record get a zero view.
func (s *StreakEngine) View(ctx context.Context, userID string, tzOffsetMinutes int) (domain.StreakView, error) {
	if userID == "" {
		return domain.StreakView{}, domain.ErrMissingUserID
	}

	doc, exists, err := s.repo.Get(ctx, userID)
	if err != nil {
		return domain.StreakView{}, recordErr("streak_view", err)
	}
	if !exists {
		return domain.StreakView{StreakDoc: domain.StreakDoc{UserID: userID}}, nil
	}

	now := s.now()
	today := DayKey(now, tzOffsetMinutes)
	week := WeekIdentifier(now, tzOffsetMinutes)

	alive := doc.LastActiveDay == today || doc.LastActiveDay == previousDay(today)
	unused := doc.CatchupWeekID != week
	return domain.StreakView{
		StreakDoc:        doc,
		Alive:            alive,
		CatchupAvailable: !alive && doc.Current > 0 && unused,
		CatchupArmed:     doc.CatchupIntentWeekID == week && unused,
	}, nil
}
