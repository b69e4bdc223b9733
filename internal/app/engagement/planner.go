package engagement

import (
	"fmt"

	"github.com/promotebya/sunbird-client-sub002/internal/domain"
)

// Planner builds a user's visible challenge set for a week. It is a pure
// function of catalog, plan quota and seed; persisted flags are overlaid by
// the caller.
type Planner struct {
	catalog *Catalog
	seed    SeedAlgorithm
}

// NewPlanner creates a planner over catalog.
func NewPlanner(catalog *Catalog, seed SeedAlgorithm) *Planner {
	return &Planner{catalog: catalog, seed: seed}
}

// Catalog returns the planner's catalog.
func (p *Planner) Catalog() *Catalog { return p.catalog }

// PlanWeek returns this week's items for the user.
//
// The whole plan is one draw sequence from a single generator seeded by
// (userID, weekID): tiers are visited in domain.Tiers order and each tier
// continues the stream where the previous one stopped. Within a tier the first
// quota.Open draws are opened and the rest are locked.
func (p *Planner) PlanWeek(userID string, premium bool, category domain.Category, weekID string) ([]domain.WeeklyItem, error) {
	if userID == "" {
		return nil, domain.ErrMissingUserID
	}
	if category == "" {
		category = domain.CategoryAll
	}
	if !category.Valid() {
		return nil, fmt.Errorf("%w %q", domain.ErrInvalidCategory, category)
	}

	quota := p.catalog.Quota(domain.PlanFor(premium))
	byTier := make(map[domain.Tier][]domain.ChallengeDef)
	for _, def := range p.catalog.Filter(category) {
		byTier[def.Tier] = append(byTier[def.Tier], def)
	}

	rng := NewMulberry32(p.seed.Seed(userID, weekID))

	var items []domain.WeeklyItem
	for _, tier := range domain.Tiers {
		present := quota.Present(tier)
		if present == 0 {
			continue
		}

		openBudget := quota.Open[tier]
		for _, def := range PickWithoutReplacement(byTier[tier], present, rng) {
			item := domain.WeeklyItem{ChallengeDef: def}
			if openBudget > 0 {
				item.Opened = true
				openBudget--
			} else if req := p.catalog.Requirement(tier); req > 0 {
				item.LockedReason = fmt.Sprintf("Need %d weekly points", req)
			}
			items = append(items, item)
		}
	}
	return items, nil
}

// Overlay merges persisted flags into planned items. A persisted opened flag
// unlocks a planned-locked item; planned-opened items stay opened.
func Overlay(items []domain.WeeklyItem, state domain.WeeklyState) []domain.WeeklyItem {
	out := make([]domain.WeeklyItem, len(items))
	for i, item := range items {
		if st, ok := state.Items[item.ID]; ok {
			if st.Opened && !item.Opened {
				item.Opened = true
				item.LockedReason = ""
			}
			item.Completed = st.Completed
		}
		out[i] = item
	}
	return out
}
