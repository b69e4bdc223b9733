package engagement

import (
	"fmt"
	"maps"

	"github.com/BurntSushi/toml"

	"github.com/promotebya/sunbird-client-sub002/internal/domain"
)

// Catalog is the pool of challenge definitions plus the per-plan quota and
// gating tables. It is read-only once built.
//
// Challenge order matters: the planner draws from the filtered pool in
// catalog order, so reordering entries reshuffles everyone's picks. Append
// new challenges at the end.
type Catalog struct {
	Challenges []domain.ChallengeDef            `json:"challenges" toml:"challenges"`
	Quotas     map[domain.Plan]domain.PlanQuota `json:"quotas" toml:"quotas"`
	Unlock     domain.UnlockRequirements        `json:"unlock" toml:"unlock"`
	TierPoints map[domain.Tier]int              `json:"tier_points" toml:"tier_points"`

	byID map[string]domain.ChallengeDef
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *Catalog {
	c := &Catalog{
		Challenges: builtinChallenges,
		Quotas: map[domain.Plan]domain.PlanQuota{
			domain.PlanFree: {
				Open:       map[domain.Tier]int{domain.TierEasy: 2, domain.TierMedium: 1},
				Unlockable: map[domain.Tier]int{domain.TierHard: 1},
			},
			domain.PlanPremium: {
				Open:       map[domain.Tier]int{domain.TierEasy: 2, domain.TierMedium: 2, domain.TierHard: 1},
				Unlockable: map[domain.Tier]int{domain.TierMedium: 1, domain.TierHard: 1, domain.TierSuper: 1},
			},
		},
		Unlock: domain.UnlockRequirements{
			domain.TierEasy:   0,
			domain.TierMedium: 20,
			domain.TierHard:   40,
			domain.TierSuper:  80,
		},
		TierPoints: map[domain.Tier]int{
			domain.TierEasy:   5,
			domain.TierMedium: 10,
			domain.TierHard:   20,
			domain.TierSuper:  40,
		},
	}
	c.index()
	return c
}

// LoadCatalogFile reads a TOML catalog. Tables missing from the file keep the
// built-in values; a [[challenges]] list replaces the built-in pool entirely.
func LoadCatalogFile(path string) (*Catalog, error) {
	c := DefaultCatalog()
	var file Catalog
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	if len(file.Challenges) > 0 {
		c.Challenges = file.Challenges
	}
	if len(file.Quotas) > 0 {
		c.Quotas = file.Quotas
	}
	if len(file.Unlock) > 0 {
		c.Unlock = file.Unlock
	}
	if len(file.TierPoints) > 0 {
		c.TierPoints = file.TierPoints
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.index()
	return c, nil
}

// Validate checks ids are unique and every tier and category is known.
func (c *Catalog) Validate() error {
	seen := make(map[string]bool, len(c.Challenges))
	for _, def := range c.Challenges {
		if def.ID == "" {
			return fmt.Errorf("catalog: challenge %q has no id", def.Title)
		}
		if seen[def.ID] {
			return fmt.Errorf("catalog: duplicate challenge id %q", def.ID)
		}
		seen[def.ID] = true
		if !def.Tier.Valid() {
			return fmt.Errorf("catalog: challenge %q has unknown tier %q", def.ID, def.Tier)
		}
		if !def.Category.Valid() || def.Category == domain.CategoryAll {
			return fmt.Errorf("catalog: challenge %q has unknown category %q", def.ID, def.Category)
		}
	}
	for plan, q := range c.Quotas {
		for t := range q.Open {
			if !t.Valid() {
				return fmt.Errorf("catalog: plan %q opens unknown tier %q", plan, t)
			}
		}
		for t := range q.Unlockable {
			if !t.Valid() {
				return fmt.Errorf("catalog: plan %q unlocks unknown tier %q", plan, t)
			}
		}
	}
	return nil
}

func (c *Catalog) index() {
	c.byID = make(map[string]domain.ChallengeDef, len(c.Challenges))
	for _, def := range c.Challenges {
		c.byID[def.ID] = def
	}
}

// Lookup finds a challenge by id.
func (c *Catalog) Lookup(id string) (domain.ChallengeDef, bool) {
	def, ok := c.byID[id]
	return def, ok
}

// Filter returns the challenges in category, in catalog order. CategoryAll
// (or "") returns the whole pool.
func (c *Catalog) Filter(category domain.Category) []domain.ChallengeDef {
	if category == "" || category == domain.CategoryAll {
		return c.Challenges
	}
	var out []domain.ChallengeDef
	for _, def := range c.Challenges {
		if def.Category == category {
			out = append(out, def)
		}
	}
	return out
}

// Quota returns the plan's quota. Unknown plans get an empty quota.
func (c *Catalog) Quota(plan domain.Plan) domain.PlanQuota {
	return c.Quotas[plan]
}

// Requirement returns the weekly points needed to unlock a locked slot.
func (c *Catalog) Requirement(t domain.Tier) int {
	return c.Unlock[t]
}

// OverridePoints replaces the points of the tiers named in points. Unknown
// tiers are rejected.
func (c *Catalog) OverridePoints(points map[string]int) error {
	next := maps.Clone(c.TierPoints)
	if next == nil {
		next = make(map[domain.Tier]int, len(points))
	}
	for name, v := range points {
		t := domain.Tier(name)
		if !t.Valid() {
			return fmt.Errorf("catalog: tier_points names unknown tier %q", name)
		}
		if v < 0 {
			return fmt.Errorf("catalog: tier_points for %q is negative", name)
		}
		next[t] = v
	}
	c.TierPoints = next
	return nil
}

// Points returns the points a completed challenge of tier t is worth.
func (c *Catalog) Points(t domain.Tier) int {
	return c.TierPoints[t]
}

var builtinChallenges = []domain.ChallengeDef{
	// dates
	{ID: "dates-coffee-walk", Title: "Take a coffee walk together", Tier: domain.TierEasy, Category: domain.CategoryDates},
	{ID: "dates-cook-new", Title: "Cook a recipe neither of you has tried", Tier: domain.TierMedium, Category: domain.CategoryDates},
	{ID: "dates-picnic", Title: "Plan a picnic somewhere new", Tier: domain.TierMedium, Category: domain.CategoryDates},
	{ID: "dates-recreate-first", Title: "Recreate your first date", Tier: domain.TierHard, Category: domain.CategoryDates},
	{ID: "dates-day-trip", Title: "Take a day trip with no phones", Tier: domain.TierSuper, Category: domain.CategoryDates},

	// kindness
	{ID: "kindness-note", Title: "Leave a handwritten note", Tier: domain.TierEasy, Category: domain.CategoryKindness},
	{ID: "kindness-chore-swap", Title: "Do one of their chores unasked", Tier: domain.TierEasy, Category: domain.CategoryKindness},
	{ID: "kindness-breakfast", Title: "Make breakfast in bed", Tier: domain.TierMedium, Category: domain.CategoryKindness},
	{ID: "kindness-errand-day", Title: "Run all their errands for a day", Tier: domain.TierHard, Category: domain.CategoryKindness},
	{ID: "kindness-spa-night", Title: "Host a spa night at home", Tier: domain.TierSuper, Category: domain.CategoryKindness},

	// talk
	{ID: "talk-highlight", Title: "Share the highlight of your day", Tier: domain.TierEasy, Category: domain.CategoryTalk},
	{ID: "talk-three-things", Title: "Name three things you appreciate", Tier: domain.TierEasy, Category: domain.CategoryTalk},
	{ID: "talk-dreams", Title: "Talk about a dream you have not shared", Tier: domain.TierMedium, Category: domain.CategoryTalk},
	{ID: "talk-36-questions", Title: "Answer ten of the 36 questions", Tier: domain.TierHard, Category: domain.CategoryTalk},
	{ID: "talk-letter", Title: "Write each other a long letter", Tier: domain.TierSuper, Category: domain.CategoryTalk},

	// surprise
	{ID: "surprise-song", Title: "Send a song that reminds you of them", Tier: domain.TierEasy, Category: domain.CategorySurprise},
	{ID: "surprise-snack", Title: "Bring home their favourite snack", Tier: domain.TierEasy, Category: domain.CategorySurprise},
	{ID: "surprise-playlist", Title: "Make a playlist for the two of you", Tier: domain.TierMedium, Category: domain.CategorySurprise},
	{ID: "surprise-mystery-date", Title: "Plan a mystery date", Tier: domain.TierHard, Category: domain.CategorySurprise},
	{ID: "surprise-weekend", Title: "Organise a surprise weekend away", Tier: domain.TierSuper, Category: domain.CategorySurprise},

	// play
	{ID: "play-board-game", Title: "Play a board game", Tier: domain.TierEasy, Category: domain.CategoryPlay},
	{ID: "play-dance", Title: "Dance in the kitchen", Tier: domain.TierEasy, Category: domain.CategoryPlay},
	{ID: "play-puzzle", Title: "Finish a puzzle together", Tier: domain.TierMedium, Category: domain.CategoryPlay},
	{ID: "play-new-sport", Title: "Try a sport neither of you plays", Tier: domain.TierHard, Category: domain.CategoryPlay},
	{ID: "play-escape-room", Title: "Beat an escape room", Tier: domain.TierSuper, Category: domain.CategoryPlay},
}
