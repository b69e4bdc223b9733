package engagement_test

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/promotebya/sunbird-client-sub002/internal/app/engagement"
	"github.com/promotebya/sunbird-client-sub002/internal/domain"
)

// ═══════════════════════════════════════════════════════════════════════════
// Rotation Planner Tests
// ═══════════════════════════════════════════════════════════════════════════

func tierCounts(items []domain.WeeklyItem) (open, locked map[domain.Tier]int) {
	open, locked = map[domain.Tier]int{}, map[domain.Tier]int{}
	for _, it := range items {
		if it.Opened {
			open[it.Tier]++
		} else {
			locked[it.Tier]++
		}
	}
	return open, locked
}

func TestPlanWeek_Deterministic(t *testing.T) {
	p := engagement.NewPlanner(engagement.DefaultCatalog(), engagement.SeedCharSum)

	a, err := p.PlanWeek("alice", false, domain.CategoryAll, "2025-W10")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	b, _ := p.PlanWeek("alice", false, domain.CategoryAll, "2025-W10")
	if !reflect.DeepEqual(a, b) {
		t.Error("same user and week produced different plans")
	}

	// A fresh planner over a fresh catalog must agree too.
	c, _ := engagement.NewPlanner(engagement.DefaultCatalog(), engagement.SeedCharSum).
		PlanWeek("alice", false, domain.CategoryAll, "2025-W10")
	if !reflect.DeepEqual(a, c) {
		t.Error("plan depends on planner instance")
	}
}

func TestPlanWeek_FreeQuota(t *testing.T) {
	p := engagement.NewPlanner(engagement.DefaultCatalog(), engagement.SeedCharSum)
	items, err := p.PlanWeek("alice", false, domain.CategoryAll, "2025-W10")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}

	if len(items) != 4 {
		t.Fatalf("expected 4 items, got %d", len(items))
	}
	open, locked := tierCounts(items)
	if open[domain.TierEasy] != 2 || open[domain.TierMedium] != 1 || locked[domain.TierHard] != 1 {
		t.Errorf("open=%v locked=%v", open, locked)
	}

	// Tiers come out in planning order.
	wantOrder := []domain.Tier{domain.TierEasy, domain.TierEasy, domain.TierMedium, domain.TierHard}
	for i, it := range items {
		if it.Tier != wantOrder[i] {
			t.Errorf("item %d tier = %s, want %s", i, it.Tier, wantOrder[i])
		}
	}
	if items[3].LockedReason != "Need 40 weekly points" {
		t.Errorf("locked reason = %q", items[3].LockedReason)
	}
}

func TestPlanWeek_PremiumQuota(t *testing.T) {
	p := engagement.NewPlanner(engagement.DefaultCatalog(), engagement.SeedCharSum)
	items, err := p.PlanWeek("alice", true, domain.CategoryAll, "2025-W10")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}

	open, locked := tierCounts(items)
	want := map[domain.Tier][2]int{
		domain.TierEasy:   {2, 0},
		domain.TierMedium: {2, 1},
		domain.TierHard:   {1, 1},
		domain.TierSuper:  {0, 1},
	}
	for tier, w := range want {
		if open[tier] != w[0] || locked[tier] != w[1] {
			t.Errorf("%s: open %d locked %d, want %d/%d", tier, open[tier], locked[tier], w[0], w[1])
		}
	}
	for _, it := range items {
		if it.Tier == domain.TierSuper && it.LockedReason != "Need 80 weekly points" {
			t.Errorf("super locked reason = %q", it.LockedReason)
		}
	}
}

func TestPlanWeek_NoDuplicates(t *testing.T) {
	p := engagement.NewPlanner(engagement.DefaultCatalog(), engagement.SeedFNV1a)
	for _, user := range []string{"alice", "bob", "carol", "dave"} {
		items, err := p.PlanWeek(user, true, domain.CategoryAll, "2025-W10")
		if err != nil {
			t.Fatalf("plan %s: %v", user, err)
		}
		seen := map[string]bool{}
		for _, it := range items {
			if seen[it.ID] {
				t.Errorf("%s: duplicate challenge %s", user, it.ID)
			}
			seen[it.ID] = true
		}
	}
}

func TestPlanWeek_CategoryShortPool(t *testing.T) {
	// talk has 2 easy, 1 medium, 1 hard, 1 super.
	p := engagement.NewPlanner(engagement.DefaultCatalog(), engagement.SeedCharSum)
	items, err := p.PlanWeek("alice", true, domain.CategoryTalk, "2025-W10")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(items) != 5 {
		t.Fatalf("expected 5 items, got %d", len(items))
	}
	for _, it := range items {
		if it.Category != domain.CategoryTalk {
			t.Errorf("%s has category %s", it.ID, it.Category)
		}
	}
	open, locked := tierCounts(items)
	// Opened slots are filled first when the pool is short.
	if open[domain.TierMedium] != 1 || open[domain.TierHard] != 1 || locked[domain.TierSuper] != 1 {
		t.Errorf("open=%v locked=%v", open, locked)
	}
}

func TestPlanWeek_WeeksDiffer(t *testing.T) {
	p := engagement.NewPlanner(engagement.DefaultCatalog(), engagement.SeedCharSum)
	differs := false
	base, _ := p.PlanWeek("alice", true, domain.CategoryAll, "2025-W10")
	for _, week := range []string{"2025-W11", "2025-W12", "2025-W13", "2025-W14"} {
		next, _ := p.PlanWeek("alice", true, domain.CategoryAll, week)
		if !reflect.DeepEqual(base, next) {
			differs = true
		}
	}
	if !differs {
		t.Error("rotation never changed across five weeks")
	}
}

func TestPlanWeek_Errors(t *testing.T) {
	p := engagement.NewPlanner(engagement.DefaultCatalog(), engagement.SeedCharSum)

	if _, err := p.PlanWeek("", false, domain.CategoryAll, "2025-W10"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("missing user: %v", err)
	}
	if _, err := p.PlanWeek("alice", false, "cooking", "2025-W10"); !errors.Is(err, domain.ErrInvalidCategory) {
		t.Errorf("bad category: %v", err)
	}
	if items, err := p.PlanWeek("alice", false, "", "2025-W10"); err != nil || len(items) != 4 {
		t.Errorf("empty category should mean all: %d items, %v", len(items), err)
	}
}

func TestOverlay(t *testing.T) {
	items := []domain.WeeklyItem{
		{ChallengeDef: domain.ChallengeDef{ID: "a", Tier: domain.TierEasy}, Opened: true},
		{ChallengeDef: domain.ChallengeDef{ID: "b", Tier: domain.TierHard}, LockedReason: "Need 40 weekly points"},
		{ChallengeDef: domain.ChallengeDef{ID: "c", Tier: domain.TierHard}, LockedReason: "Need 40 weekly points"},
	}
	state := domain.WeeklyState{Items: map[string]domain.ChallengeState{
		"a":     {Opened: false, Completed: true},
		"b":     {Opened: true},
		"stale": {Opened: true, Completed: true},
	}}

	got := engagement.Overlay(items, state)
	if !got[0].Opened || !got[0].Completed {
		t.Errorf("a = %+v", got[0])
	}
	if !got[1].Opened || got[1].LockedReason != "" {
		t.Errorf("b = %+v", got[1])
	}
	if got[2].Opened {
		t.Errorf("c = %+v", got[2])
	}
	if len(got) != 3 {
		t.Errorf("stale state leaked into plan: %d items", len(got))
	}
	if items[1].Opened {
		t.Error("input modified")
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Catalog Tests
// ═══════════════════════════════════════════════════════════════════════════

func TestDefaultCatalog_Valid(t *testing.T) {
	c := engagement.DefaultCatalog()
	if err := c.Validate(); err != nil {
		t.Fatalf("built-in catalog invalid: %v", err)
	}
	if _, ok := c.Lookup("talk-highlight"); !ok {
		t.Error("lookup by id failed")
	}
	if got := c.Requirement(domain.TierEasy); got != 0 {
		t.Errorf("easy requirement = %d", got)
	}
}

func TestLoadCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.toml")
	data := `
[[challenges]]
id = "x1"
title = "Cook together"
tier = "easy"
category = "dates"

[[challenges]]
id = "x2"
title = "Plan a trip"
tier = "hard"
category = "dates"

[unlock]
hard = 15
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	c, err := engagement.LoadCatalogFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Challenges) != 2 {
		t.Errorf("challenges = %d, want 2", len(c.Challenges))
	}
	if c.Requirement(domain.TierHard) != 15 {
		t.Errorf("hard requirement = %d", c.Requirement(domain.TierHard))
	}
	if c.Points(domain.TierEasy) != 5 {
		t.Errorf("tier points should keep built-in values, easy = %d", c.Points(domain.TierEasy))
	}
	if _, ok := c.Lookup("x2"); !ok {
		t.Error("file challenge not indexed")
	}
}

func TestLoadCatalogFile_Invalid(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"dup.toml":      "[[challenges]]\nid=\"a\"\ntier=\"easy\"\ncategory=\"talk\"\n[[challenges]]\nid=\"a\"\ntier=\"easy\"\ncategory=\"talk\"\n",
		"tier.toml":     "[[challenges]]\nid=\"a\"\ntier=\"epic\"\ncategory=\"talk\"\n",
		"category.toml": "[[challenges]]\nid=\"a\"\ntier=\"easy\"\ncategory=\"chores\"\n",
		"syntax.toml":   "[[challenges]\n",
	}
	for name, data := range cases {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(data), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := engagement.LoadCatalogFile(path); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestOverridePoints(t *testing.T) {
	c := engagement.DefaultCatalog()
	if err := c.OverridePoints(map[string]int{"hard": 30}); err != nil {
		t.Fatalf("override: %v", err)
	}
	if c.Points(domain.TierHard) != 30 || c.Points(domain.TierMedium) != 10 {
		t.Errorf("hard=%d medium=%d", c.Points(domain.TierHard), c.Points(domain.TierMedium))
	}
	if err := c.OverridePoints(map[string]int{"hard": -1}); err == nil {
		t.Error("negative points accepted")
	}
	if c.Points(domain.TierHard) != 30 {
		t.Error("failed override changed the catalog")
	}

	// The built-in defaults are not shared between catalogs.
	if engagement.DefaultCatalog().Points(domain.TierHard) != 20 {
		t.Error("override leaked into DefaultCatalog")
	}
}
