package engagement_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/promotebya/sunbird-client-sub002/internal/app/engagement"
	"github.com/promotebya/sunbird-client-sub002/internal/domain"
)

// ═══════════════════════════════════════════════════════════════════════════
// Points Aggregation Tests
// ═══════════════════════════════════════════════════════════════════════════

// addAt appends a point event stamped at instant when.
func addAt(t *testing.T, e *testEngine, when time.Time, pairID string, value int) {
	t.Helper()
	saved := e.clock.Now()
	e.clock.Set(when)
	defer e.clock.Set(saved)
	if _, err := e.Points.AddPoints(context.Background(), pairID, "alice", value, "test"); err != nil {
		t.Fatalf("add points: %v", err)
	}
}

func TestSumForWeek_HalfOpenRange(t *testing.T) {
	e := newTestEngine(t, engagement.Options{})
	start, end := engagement.WeekRange(e.clock.Now(), 0)

	addAt(t, e, start, "p1", 10)                       // first instant: counted
	addAt(t, e, start.Add(-time.Millisecond), "p1", 1) // previous week
	addAt(t, e, end.Add(-time.Millisecond), "p1", 20)  // last millisecond: counted
	addAt(t, e, end, "p1", 100)                        // next week
	addAt(t, e, start.Add(time.Hour), "p1", -50)       // negatives never count
	addAt(t, e, start.Add(time.Hour), "p2", 1000)      // other pair

	sum, err := e.Points.SumForWeek(context.Background(), "p1", start, end)
	if err != nil {
		t.Fatal(err)
	}
	if sum != 30 {
		t.Errorf("sum = %d, want 30", sum)
	}
}

func TestCurrentWeekPoints_Offset(t *testing.T) {
	e := newTestEngine(t, engagement.Options{})
	// Sunday 23:30 UTC is Monday of W11 at UTC+1.
	addAt(t, e, time.Date(2025, 3, 9, 23, 30, 0, 0, time.UTC), "p1", 7)

	e.clock.Set(at(time.March, 10, 12))
	if sum, _ := e.Points.CurrentWeekPoints(context.Background(), "p1", 60); sum != 7 {
		t.Errorf("UTC+1 week sum = %d, want 7", sum)
	}
	if sum, _ := e.Points.CurrentWeekPoints(context.Background(), "p1", 0); sum != 0 {
		t.Errorf("UTC week sum = %d, want 0", sum)
	}
}

func TestAddPoints_Validation(t *testing.T) {
	e := newTestEngine(t, engagement.Options{})
	if _, err := e.Points.AddPoints(context.Background(), "", "alice", 5, ""); !errors.Is(err, domain.ErrMissingPairID) {
		t.Errorf("missing pair: %v", err)
	}
	ev, err := e.Points.AddPoints(context.Background(), "p1", "alice", 5, "gift")
	if err != nil {
		t.Fatal(err)
	}
	if ev.ID == "" || !ev.CreatedAt.Equal(e.clock.Now()) {
		t.Errorf("event = %+v", ev)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Weekly Goal Tests
// ═══════════════════════════════════════════════════════════════════════════

func TestEnsureWeekly_Progress(t *testing.T) {
	e := newTestEngine(t, engagement.Options{})
	ctx := context.Background()

	addAt(t, e, e.clock.Now(), "p1", 20)
	w, err := e.Points.EnsureWeekly(ctx, "p1", 50, 0)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if w.WeekKey != "2025-W10" || w.Progress != 20 || w.Status != domain.WeeklyActive || w.Target != 50 {
		t.Errorf("weekly = %+v", w)
	}

	again, _ := e.Points.EnsureWeekly(ctx, "p1", 50, 0)
	if again != w {
		t.Errorf("ensure not idempotent: %+v vs %+v", again, w)
	}

	addAt(t, e, e.clock.Now(), "p1", 35)
	w, _ = e.Points.EnsureWeekly(ctx, "p1", 50, 0)
	if w.Status != domain.WeeklyCompleted || w.Progress != 55 {
		t.Errorf("weekly = %+v", w)
	}
	if got := len(e.events.OfType(domain.EventWeeklyCompleted)); got != 1 {
		t.Errorf("completion events = %d", got)
	}

	e.Points.EnsureWeekly(ctx, "p1", 50, 0)
	if got := len(e.events.OfType(domain.EventWeeklyCompleted)); got != 1 {
		t.Errorf("completion published again: %d", got)
	}
}

func TestEnsureWeekly_CompletionIsMonotonic(t *testing.T) {
	e := newTestEngine(t, engagement.Options{})
	ctx := context.Background()

	addAt(t, e, e.clock.Now(), "p1", 50)
	e.Points.EnsureWeekly(ctx, "p1", 50, 0)

	// Raising the target after completion does not undo it.
	w, err := e.Points.EnsureWeekly(ctx, "p1", 500, 0)
	if err != nil {
		t.Fatal(err)
	}
	if w.Status != domain.WeeklyCompleted || w.Target != 500 || w.Progress != 50 {
		t.Errorf("weekly = %+v", w)
	}
}

func TestEnsureWeekly_Validation(t *testing.T) {
	e := newTestEngine(t, engagement.Options{})
	if _, err := e.Points.EnsureWeekly(context.Background(), "p1", 0, 0); !errors.Is(err, domain.ErrInvalidTarget) {
		t.Errorf("zero target: %v", err)
	}
	if _, err := e.Points.EnsureWeekly(context.Background(), "", 10, 0); !errors.Is(err, domain.ErrMissingPairID) {
		t.Errorf("missing pair: %v", err)
	}
}

func TestClaimWeeklyReward(t *testing.T) {
	e := newTestEngine(t, engagement.Options{})
	ctx := context.Background()

	if _, err := e.Points.ClaimWeeklyReward(ctx, "p1", "r1", 0); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("claim before ensure: %v", err)
	}

	e.Points.EnsureWeekly(ctx, "p1", 50, 0)
	if _, err := e.Points.ClaimWeeklyReward(ctx, "p1", "r1", 0); !errors.Is(err, domain.ErrTargetNotMet) {
		t.Errorf("claim before target: %v", err)
	}
	if _, err := e.Points.ClaimWeeklyReward(ctx, "p1", "", 0); !errors.Is(err, domain.ErrMissingRewardID) {
		t.Errorf("claim without reward: %v", err)
	}

	addAt(t, e, e.clock.Now(), "p1", 60)
	e.Points.EnsureWeekly(ctx, "p1", 50, 0)

	w, err := e.Points.ClaimWeeklyReward(ctx, "p1", "r1", 0)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if w.WeeklyStreak != 1 || w.LongestWeeklyStreak != 1 || w.SelectedRewardID != "r1" {
		t.Errorf("weekly = %+v", w)
	}

	// Default mode counts every claim.
	w, err = e.Points.ClaimWeeklyReward(ctx, "p1", "r2", 0)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if w.WeeklyStreak != 2 || w.SelectedRewardID != "r2" {
		t.Errorf("weekly = %+v", w)
	}

	hist, _ := e.Points.History(ctx, "p1", 10, 0)
	if len(hist) != 1 || hist[0].RewardID != "r2" || hist[0].ClaimedAt.IsZero() {
		t.Errorf("history = %+v", hist)
	}
	if got := len(e.events.OfType(domain.EventWeeklyClaimed)); got != 2 {
		t.Errorf("claim events = %d", got)
	}
}

func TestClaimWeeklyReward_Strict(t *testing.T) {
	e := newTestEngine(t, engagement.Options{StrictClaims: true})
	ctx := context.Background()

	addAt(t, e, e.clock.Now(), "p1", 60)
	e.Points.EnsureWeekly(ctx, "p1", 50, 0)

	if _, err := e.Points.ClaimWeeklyReward(ctx, "p1", "r1", 0); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	_, err := e.Points.ClaimWeeklyReward(ctx, "p1", "r2", 0)
	if !errors.Is(err, domain.ErrAlreadyClaimed) {
		t.Fatalf("second claim: %v", err)
	}
	if domain.KindOf(err) != domain.KindPreconditionFailed {
		t.Errorf("kind = %s", domain.KindOf(err))
	}

	w, _ := e.Points.Weekly(ctx, "p1")
	if w.WeeklyStreak != 1 || w.SelectedRewardID != "r1" {
		t.Errorf("rejected claim changed summary: %+v", w)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Weekly Rollover Tests
// ═══════════════════════════════════════════════════════════════════════════

// completeAndClaim meets a 50-point target in the clock's current week and
// claims it.
func completeAndClaim(t *testing.T, e *testEngine, pairID string) domain.Weekly {
	t.Helper()
	ctx := context.Background()
	addAt(t, e, e.clock.Now(), pairID, 50)
	if _, err := e.Points.EnsureWeekly(ctx, pairID, 50, 0); err != nil {
		t.Fatal(err)
	}
	w, err := e.Points.ClaimWeeklyReward(ctx, pairID, "r", 0)
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func TestRollover_ConsecutiveWeeksKeepStreak(t *testing.T) {
	e := newTestEngine(t, engagement.Options{})
	ctx := context.Background()

	completeAndClaim(t, e, "p1")
	e.clock.Advance(7 * 24 * time.Hour)

	w, err := e.Points.EnsureWeekly(ctx, "p1", 50, 0)
	if err != nil {
		t.Fatal(err)
	}
	if w.WeekKey != "2025-W11" || w.Status != domain.WeeklyActive || w.Progress != 0 {
		t.Errorf("new week = %+v", w)
	}
	if w.WeeklyStreak != 1 || w.SelectedRewardID != "r" {
		t.Errorf("streak and reward should carry: %+v", w)
	}

	w = completeAndClaim(t, e, "p1")
	if w.WeeklyStreak != 2 || w.LongestWeeklyStreak != 2 {
		t.Errorf("weekly = %+v", w)
	}
}

func TestRollover_PartnersInDifferentOffsets(t *testing.T) {
	e := newTestEngine(t, engagement.Options{})
	ctx := context.Background()
	completeAndClaim(t, e, "p1")

	// Sunday 20:00 UTC is already Monday of W11 at UTC+10.
	e.clock.Set(at(time.March, 9, 20))
	w, err := e.Points.EnsureWeekly(ctx, "p1", 50, 600)
	if err != nil {
		t.Fatal(err)
	}
	if w.WeekKey != "2025-W11" || w.WeeklyStreak != 1 {
		t.Fatalf("east partner: %+v", w)
	}

	// The UTC partner is still in W10 and must not flip the summary back.
	w, err = e.Points.EnsureWeekly(ctx, "p1", 50, 0)
	if err != nil {
		t.Fatal(err)
	}
	if w.WeekKey != "2025-W11" || w.WeeklyStreak != 1 || w.SelectedRewardID != "r" {
		t.Errorf("west partner mid-overlap: %+v", w)
	}

	e.clock.Set(at(time.March, 10, 9))
	w, err = e.Points.EnsureWeekly(ctx, "p1", 50, 0)
	if err != nil {
		t.Fatal(err)
	}
	if w.WeekKey != "2025-W11" || w.WeeklyStreak != 1 {
		t.Errorf("weekly streak = %d after no missed week, want 1 (%+v)", w.WeeklyStreak, w)
	}

	hist, _ := e.Points.History(ctx, "p1", 10, 0)
	for _, h := range hist {
		if h.WeekKey == "2025-W10" && h.Status != domain.WeeklyCompleted {
			t.Errorf("W10 status = %s, want completed", h.Status)
		}
	}
}

func TestRollover_SkippedWeekResets(t *testing.T) {
	e := newTestEngine(t, engagement.Options{})
	completeAndClaim(t, e, "p1")

	e.clock.Advance(14 * 24 * time.Hour)
	w, _ := e.Points.EnsureWeekly(context.Background(), "p1", 50, 0)
	if w.WeeklyStreak != 0 || w.LongestWeeklyStreak != 1 {
		t.Errorf("weekly = %+v", w)
	}
}

func TestRollover_MissedWeekResets(t *testing.T) {
	e := newTestEngine(t, engagement.Options{})
	ctx := context.Background()
	completeAndClaim(t, e, "p1")

	// W11 is touched but never completed.
	e.clock.Advance(7 * 24 * time.Hour)
	addAt(t, e, e.clock.Now(), "p1", 10)
	e.Points.EnsureWeekly(ctx, "p1", 50, 0)

	e.clock.Advance(7 * 24 * time.Hour)
	w, _ := e.Points.EnsureWeekly(ctx, "p1", 50, 0)
	if w.WeekKey != "2025-W12" || w.WeeklyStreak != 0 {
		t.Errorf("weekly = %+v", w)
	}

	hist, err := e.Points.History(ctx, "p1", 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := []struct {
		week   string
		status domain.WeeklyStatus
	}{
		{"2025-W12", domain.WeeklyActive},
		{"2025-W11", domain.WeeklyMissed},
		{"2025-W10", domain.WeeklyCompleted},
	}
	if len(hist) != len(want) {
		t.Fatalf("history has %d entries, want %d", len(hist), len(want))
	}
	for i, w := range want {
		if hist[i].WeekKey != w.week || hist[i].Status != w.status {
			t.Errorf("entry %d = %s/%s, want %s/%s", i, hist[i].WeekKey, hist[i].Status, w.week, w.status)
		}
	}
	if hist[1].Earned != 10 {
		t.Errorf("W11 earned = %d", hist[1].Earned)
	}
}

func TestRollover_LateEventsFinalisePriorWeek(t *testing.T) {
	e := newTestEngine(t, engagement.Options{})
	ctx := context.Background()

	addAt(t, e, e.clock.Now(), "p1", 30)
	e.Points.EnsureWeekly(ctx, "p1", 50, 0)

	// Points land in W10 after the last ensure; the rollover sees them.
	addAt(t, e, at(time.March, 9, 20), "p1", 25)
	e.clock.Set(at(time.March, 11, 9))

	w, _ := e.Points.EnsureWeekly(ctx, "p1", 50, 0)
	if w.WeeklyStreak != 0 {
		t.Errorf("streak = %d (never claimed)", w.WeeklyStreak)
	}
	hist, _ := e.Points.History(ctx, "p1", 10, 0)
	if len(hist) != 2 || hist[1].Status != domain.WeeklyCompleted || hist[1].Earned != 55 {
		t.Errorf("history = %+v", hist)
	}
}

func TestHistory_Limit(t *testing.T) {
	e := newTestEngine(t, engagement.Options{})
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		e.Points.EnsureWeekly(ctx, "p1", 50, 0)
		e.clock.Advance(7 * 24 * time.Hour)
	}
	hist, _ := e.Points.History(ctx, "p1", 2, 0)
	if len(hist) != 2 || hist[0].WeekKey != "2025-W13" {
		t.Errorf("history = %+v", hist)
	}
}
