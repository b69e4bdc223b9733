package engagement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/promotebya/sunbird-client-sub002/internal/domain"
	"github.com/promotebya/sunbird-client-sub002/internal/infra/metrics"
)

// ChallengeService serves a user's weekly challenges: the planned rotation
// merged with persisted opened/completed flags, unlocks gated on the pair's
// weekly points, and completions that feed points and streaks.
type ChallengeService struct {
	planner *Planner
	state   domain.WeeklyStateRepo
	points  *PointsAggregator
	streaks *StreakEngine
	pub     domain.EventPublisher
	now     Clock
	logger  *slog.Logger
}

// NewChallengeService creates a challenge service.
func NewChallengeService(planner *Planner, state domain.WeeklyStateRepo, points *PointsAggregator, streaks *StreakEngine, opts Options) *ChallengeService {
	opts = opts.withDefaults()
	return &ChallengeService{
		planner: planner,
		state:   state,
		points:  points,
		streaks: streaks,
		pub:     opts.Publisher,
		now:     opts.Now,
		logger:  opts.Logger,
	}
}

// WeekRequest identifies whose week is being read and how to plan it.
type WeekRequest struct {
	UserID          string
	PairID          string // needed to unlock or score; optional for reads
	Premium         bool
	Category        domain.Category
	TZOffsetMinutes int
}

// WeekPlan is a user's merged challenge list for one week.
type WeekPlan struct {
	WeekID string              `json:"week_id"`
	Items  []domain.WeeklyItem `json:"items"`
}

// WeekItems plans the current week, makes sure the week record exists and
// overlays its flags.
func (s *ChallengeService) WeekItems(ctx context.Context, req WeekRequest) (WeekPlan, error) {
	defer observe("week_items")()
	plan, _, err := s.load(ctx, req, s.now())
	if err != nil {
		return WeekPlan{}, recordErr("week_items", err)
	}
	return plan, nil
}

// UnlockChallenge opens a locked slot once the pair's weekly points reach the
// tier requirement. Unlocking an opened item is a no-op.
func (s *ChallengeService) UnlockChallenge(ctx context.Context, req WeekRequest, challengeID string) (domain.WeeklyItem, error) {
	defer observe("unlock_challenge")()
	item, err := s.unlock(ctx, req, challengeID)
	return item, recordErr("unlock_challenge", err)
}

func (s *ChallengeService) unlock(ctx context.Context, req WeekRequest, challengeID string) (domain.WeeklyItem, error) {
	if challengeID == "" {
		return domain.WeeklyItem{}, domain.ErrMissingChallengeID
	}

	now := s.now()
	plan, idx, err := s.loadItem(ctx, req, now, challengeID)
	if err != nil {
		return domain.WeeklyItem{}, err
	}
	item := plan.Items[idx]
	if item.Opened {
		return item, nil
	}

	if need := s.planner.Catalog().Requirement(item.Tier); need > 0 {
		if req.PairID == "" {
			return domain.WeeklyItem{}, domain.ErrMissingPairID
		}
		have, err := s.points.CurrentWeekPoints(ctx, req.PairID, req.TZOffsetMinutes)
		if err != nil {
			return domain.WeeklyItem{}, err
		}
		if have < need {
			return domain.WeeklyItem{}, fmt.Errorf("%w: have %d of %d", domain.ErrChallengeLocked, have, need)
		}
	}

	opened, err := s.state.RecordUnlock(ctx, req.UserID, plan.WeekID, item.ID, item.Tier, now)
	if err != nil {
		return domain.WeeklyItem{}, fmt.Errorf("record unlock: %w", err)
	}
	item.Opened = true
	item.LockedReason = ""

	if opened {
		metrics.ChallengeUnlocks.WithLabelValues(string(item.Tier)).Inc()
		publish(ctx, s.pub, s.logger, domain.Event{
			Type:    domain.EventChallengeUnlocked,
			UserID:  req.UserID,
			PairID:  req.PairID,
			WeekID:  plan.WeekID,
			At:      now,
			Payload: map[string]any{"challenge_id": item.ID, "tier": string(item.Tier)},
		})
	}
	return item, nil
}

// CompleteChallenge marks an opened challenge completed. The first time a
// challenge is completed in a week it credits the pair with the tier's points
// and counts toward the user's daily streak. Completing it again after a
// reset only sets the flag.
func (s *ChallengeService) CompleteChallenge(ctx context.Context, req WeekRequest, challengeID string) (domain.WeeklyItem, error) {
	defer observe("complete_challenge")()
	item, err := s.complete(ctx, req, challengeID)
	return item, recordErr("complete_challenge", err)
}

func (s *ChallengeService) complete(ctx context.Context, req WeekRequest, challengeID string) (domain.WeeklyItem, error) {
	if challengeID == "" {
		return domain.WeeklyItem{}, domain.ErrMissingChallengeID
	}

	now := s.now()
	plan, idx, err := s.loadItem(ctx, req, now, challengeID)
	if err != nil {
		return domain.WeeklyItem{}, err
	}
	item := plan.Items[idx]
	if !item.Opened {
		return domain.WeeklyItem{}, domain.ErrChallengeNotOpen
	}

	changed, err := s.state.SetCompleted(ctx, req.UserID, plan.WeekID, item.ID, true, now)
	if err != nil {
		return domain.WeeklyItem{}, fmt.Errorf("set completed: %w", err)
	}
	item.Completed = true
	if !changed {
		return item, nil
	}

	// Points and streak credit go out once per challenge and week, however
	// often the completed flag is toggled.
	awarded, err := s.state.MarkAwarded(ctx, req.UserID, plan.WeekID, item.ID, now)
	if err != nil {
		return item, fmt.Errorf("mark awarded: %w", err)
	}
	if !awarded {
		return item, nil
	}

	if pts := s.planner.Catalog().Points(item.Tier); pts > 0 && req.PairID != "" {
		if _, err := s.points.AddPoints(ctx, req.PairID, req.UserID, pts, "challenge:"+item.ID); err != nil {
			return item, err
		}
	}
	if _, err := s.streaks.NotifyCompletion(ctx, req.UserID, req.TZOffsetMinutes); err != nil {
		return item, err
	}

	metrics.ChallengeCompletions.WithLabelValues(string(item.Tier)).Inc()
	publish(ctx, s.pub, s.logger, domain.Event{
		Type:    domain.EventChallengeCompleted,
		UserID:  req.UserID,
		PairID:  req.PairID,
		WeekID:  plan.WeekID,
		At:      now,
		Payload: map[string]any{"challenge_id": item.ID, "tier": string(item.Tier)},
	})
	return item, nil
}

// SetCompleted sets only the completed flag of a challenge in a given week.
// No points or streaks are touched.
func (s *ChallengeService) SetCompleted(ctx context.Context, userID, weekID, challengeID string, completed bool) error {
	if userID == "" {
		return domain.ErrMissingUserID
	}
	if challengeID == "" {
		return domain.ErrMissingChallengeID
	}
	if !ValidWeekIdentifier(weekID) {
		return domain.ErrInvalidWeekID
	}
	_, err := s.state.SetCompleted(ctx, userID, weekID, challengeID, completed, s.now())
	return err
}

// EnsureWeekDoc creates the user's week record if it does not exist.
func (s *ChallengeService) EnsureWeekDoc(ctx context.Context, userID, weekID string) (domain.WeeklyState, error) {
	if userID == "" {
		return domain.WeeklyState{}, domain.ErrMissingUserID
	}
	if !ValidWeekIdentifier(weekID) {
		return domain.WeeklyState{}, domain.ErrInvalidWeekID
	}
	return s.state.Ensure(ctx, userID, weekID, s.now())
}

func (s *ChallengeService) load(ctx context.Context, req WeekRequest, now time.Time) (WeekPlan, domain.WeeklyState, error) {
	weekID := WeekIdentifier(now, req.TZOffsetMinutes)
	items, err := s.planner.PlanWeek(req.UserID, req.Premium, req.Category, weekID)
	if err != nil {
		return WeekPlan{}, domain.WeeklyState{}, err
	}

	state, err := s.state.Ensure(ctx, req.UserID, weekID, now)
	if err != nil {
		return WeekPlan{}, domain.WeeklyState{}, fmt.Errorf("ensure week: %w", err)
	}
	return WeekPlan{WeekID: weekID, Items: Overlay(items, state)}, state, nil
}

func (s *ChallengeService) loadItem(ctx context.Context, req WeekRequest, now time.Time, challengeID string) (WeekPlan, int, error) {
	plan, _, err := s.load(ctx, req, now)
	if err != nil {
		return WeekPlan{}, -1, err
	}
	for i, item := range plan.Items {
		if item.ID == challengeID {
			return plan, i, nil
		}
	}
	return WeekPlan{}, -1, fmt.Errorf("%w: %s", domain.ErrUnknownChallenge, challengeID)
}
