// Package domain holds the pure types of the weekly engagement engine.
// Nothing in here touches storage, the clock or the network.
package domain

import "time"

// ─── Challenge Catalog ──────────────────────────────────────────────────────

// Tier is the difficulty/reward class of a challenge.
type Tier string

const (
	TierEasy   Tier = "easy"
	TierMedium Tier = "medium"
	TierHard   Tier = "hard"
	TierSuper  Tier = "super"
)

// Tiers lists every tier in planning order. The planner draws tiers in this
// order, so changing it changes every user's weekly picks.
var Tiers = []Tier{TierEasy, TierMedium, TierHard, TierSuper}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierEasy, TierMedium, TierHard, TierSuper:
		return true
	}
	return false
}

// Category groups challenges by theme.
type Category string

const (
	CategoryDates    Category = "dates"
	CategoryKindness Category = "kindness"
	CategoryTalk     Category = "talk"
	CategorySurprise Category = "surprise"
	CategoryPlay     Category = "play"

	// CategoryAll disables category filtering.
	CategoryAll Category = "all"
)

// Valid reports whether c is a known category or CategoryAll.
func (c Category) Valid() bool {
	switch c {
	case CategoryDates, CategoryKindness, CategoryTalk, CategorySurprise, CategoryPlay, CategoryAll:
		return true
	}
	return false
}

// ChallengeDef is an immutable catalog entry.
type ChallengeDef struct {
	ID       string   `json:"id" toml:"id"`
	Title    string   `json:"title" toml:"title"`
	Tier     Tier     `json:"tier" toml:"tier"`
	Category Category `json:"category" toml:"category"`
}

// Plan is a subscription plan.
type Plan string

const (
	PlanFree    Plan = "free"
	PlanPremium Plan = "premium"
)

// PlanFor maps the premium flag to a plan.
func PlanFor(premium bool) Plan {
	if premium {
		return PlanPremium
	}
	return PlanFree
}

// PlanQuota says how many slots per tier start opened and how many are
// presented locked (unlockable with weekly points).
type PlanQuota struct {
	Open       map[Tier]int `json:"open" toml:"open"`
	Unlockable map[Tier]int `json:"unlockable" toml:"unlockable"`
}

// Present returns the number of slots shown for a tier.
func (q PlanQuota) Present(t Tier) int {
	return max(0, q.Open[t]) + max(0, q.Unlockable[t])
}

// UnlockRequirements maps a tier to the weekly point total needed to unlock
// a locked slot of that tier.
type UnlockRequirements map[Tier]int

// ─── Weekly Challenges ──────────────────────────────────────────────────────

// WeeklyItem is a challenge as one user sees it in one week. It is derived on
// every read; only Opened/Completed come from storage.
type WeeklyItem struct {
	ChallengeDef
	Opened       bool   `json:"opened"`
	Completed    bool   `json:"completed"`
	LockedReason string `json:"locked_reason,omitempty"`
}

// ChallengeState is the persisted per-challenge flag set inside a WeeklyState.
type ChallengeState struct {
	Opened     bool      `json:"opened"`
	Completed  bool      `json:"completed"`
	Awarded    bool      `json:"awarded,omitempty"` // points credited this week
	UnlockedAt time.Time `json:"unlocked_at,omitzero"`
	Tier       Tier      `json:"tier,omitempty"`
}

// WeeklyState is the persisted per-(user, week) record.
type WeeklyState struct {
	UserID    string                    `json:"user_id"`
	WeekID    string                    `json:"week_id"`
	CreatedAt time.Time                 `json:"created_at"`
	Items     map[string]ChallengeState `json:"items"`
}

// ─── Pair Weekly Goal ───────────────────────────────────────────────────────

// WeeklyStatus is the state of a pair's weekly goal.
type WeeklyStatus string

const (
	WeeklyActive    WeeklyStatus = "active"
	WeeklyCompleted WeeklyStatus = "completed"
	WeeklyMissed    WeeklyStatus = "missed"
)

// Weekly is the live per-pair summary for the current week. Progress is a
// cache of the aggregated point sum.
type Weekly struct {
	PairID              string       `json:"pair_id"`
	WeekKey             string       `json:"week_key"`
	WeekStart           time.Time    `json:"week_start"`
	Target              int          `json:"target"`
	Status              WeeklyStatus `json:"status"`
	Progress            int          `json:"progress"`
	WeeklyStreak        int          `json:"weekly_streak"`
	LongestWeeklyStreak int          `json:"longest_weekly_streak"`
	SelectedRewardID    string       `json:"selected_reward_id,omitempty"`
}

// WeeklyHistoryEntry is the per-(pair, week) audit record.
type WeeklyHistoryEntry struct {
	PairID      string       `json:"pair_id"`
	WeekKey     string       `json:"week_key"`
	WeekStart   time.Time    `json:"week_start"`
	Target      int          `json:"target"`
	Earned      int          `json:"earned"`
	Completed   bool         `json:"completed"`
	CompletedAt time.Time    `json:"completed_at,omitzero"`
	RewardID    string       `json:"reward_id,omitempty"`
	ClaimedAt   time.Time    `json:"claimed_at,omitzero"`
	Status      WeeklyStatus `json:"status,omitempty"` // derived on read, never stored
}

// PointsEvent is an append-only point contribution for a pair.
type PointsEvent struct {
	ID        string    `json:"id"`
	PairID    string    `json:"pair_id"`
	UserID    string    `json:"user_id,omitempty"`
	Value     int       `json:"value"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ─── Daily Streak ───────────────────────────────────────────────────────────

// StreakDoc is the persisted per-user daily streak. Day fields are local
// calendar dates ("2006-01-02"); week fields are ISO week labels.
type StreakDoc struct {
	UserID              string `json:"user_id"`
	Current             int    `json:"current"`
	Longest             int    `json:"longest"`
	LastActiveDay       string `json:"last_active_day"`
	TodayCount          int    `json:"today_count"`
	CountDay            string `json:"count_day,omitempty"` // day TodayCount refers to
	CatchupPending      bool   `json:"catchup_pending"`
	CatchupBaseCurrent  int    `json:"catchup_base_current"`
	CatchupWeekID       string `json:"catchup_week_id,omitempty"`
	CatchupIntentWeekID string `json:"catchup_intent_week_id,omitempty"`
}

// StreakView is a StreakDoc plus flags derived for the current local day.
type StreakView struct {
	StreakDoc
	Alive            bool `json:"alive"`
	CatchupAvailable bool `json:"catchup_available"`
	CatchupArmed     bool `json:"catchup_armed"`
}
