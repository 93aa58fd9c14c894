// Package achievements holds the achievement catalog. The catalog is a fixed
// table: it is built once and only ever read.
package achievements

import (
	"fmt"
	"slices"

	"github.com/ironcrew/ironcrew-server/internal/domain"
)

// Catalog is an immutable, ordered set of achievement definitions.
type Catalog struct {
	defs []domain.AchievementDefinition
	byID map[string]int
}

// NewCatalog validates defs and returns a catalog sorted by SortOrder.
// IDs must be unique and stat-based requirements must have a positive target.
func NewCatalog(defs []domain.AchievementDefinition) (*Catalog, error) {
	sorted := slices.Clone(defs)
	slices.SortStableFunc(sorted, func(a, b domain.AchievementDefinition) int {
		return a.SortOrder - b.SortOrder
	})

	byID := make(map[string]int, len(sorted))
	for i, d := range sorted {
		if d.ID == "" {
			return nil, fmt.Errorf("achievement at position %d has no id", i)
		}
		if _, dup := byID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate achievement id %q", d.ID)
		}
		if d.RequirementType == "" {
			return nil, fmt.Errorf("achievement %q has no requirement type", d.ID)
		}
		if d.RequirementType.IsStatKey() && d.RequirementValue <= 0 {
			return nil, fmt.Errorf("achievement %q needs a positive requirement value", d.ID)
		}
		byID[d.ID] = i
	}

	return &Catalog{defs: sorted, byID: byID}, nil
}

// MustCatalog is NewCatalog that panics on an invalid table.
func MustCatalog(defs []domain.AchievementDefinition) *Catalog {
	c, err := NewCatalog(defs)
	if err != nil {
		panic(err)
	}
	return c
}

// Default returns the built-in catalog.
func Default() *Catalog {
	return MustCatalog(defaultDefinitions)
}

// All returns a copy of every definition in display order.
func (c *Catalog) All() []domain.AchievementDefinition {
	return slices.Clone(c.defs)
}

// Get looks up a definition by ID.
func (c *Catalog) Get(id string) (domain.AchievementDefinition, bool) {
	i, ok := c.byID[id]
	if !ok {
		return domain.AchievementDefinition{}, false
	}
	return c.defs[i], true
}

// Len returns the number of definitions.
func (c *Catalog) Len() int {
	return len(c.defs)
}

var defaultDefinitions = []domain.AchievementDefinition{
	{ID: "first-sweat", Title: "First Sweat", Description: "Log your first workout", RequirementType: domain.RequirementWorkoutsCount, RequirementValue: 1, SortOrder: 10},
	{ID: "ten-down", Title: "Ten Down", Description: "Log 10 workouts", RequirementType: domain.RequirementWorkoutsCount, RequirementValue: 10, SortOrder: 20},
	{ID: "half-century", Title: "Half Century", Description: "Log 50 workouts", RequirementType: domain.RequirementWorkoutsCount, RequirementValue: 50, SortOrder: 30},
	{ID: "centurion", Title: "Centurion", Description: "Log 100 workouts", RequirementType: domain.RequirementWorkoutsCount, RequirementValue: 100, SortOrder: 40},
	{ID: "warming-up", Title: "Warming Up", Description: "Reach a 3 day streak", RequirementType: domain.RequirementStreak, RequirementValue: 3, SortOrder: 50},
	{ID: "full-week", Title: "Full Week", Description: "Reach a 7 day streak", RequirementType: domain.RequirementStreak, RequirementValue: 7, SortOrder: 60},
	{ID: "iron-month", Title: "Iron Month", Description: "Reach a 30 day streak", RequirementType: domain.RequirementStreak, RequirementValue: 30, SortOrder: 70},
	{ID: "crew-up", Title: "Crew Up", Description: "Have 3 friends", RequirementType: domain.RequirementFriendsCount, RequirementValue: 3, SortOrder: 80},
	{ID: "squad-goals", Title: "Squad Goals", Description: "Have 10 friends", RequirementType: domain.RequirementFriendsCount, RequirementValue: 10, SortOrder: 90},
	{ID: "crowd-pleaser", Title: "Crowd Pleaser", Description: "Receive 25 reactions on your workouts", RequirementType: domain.RequirementReactionsReceived, RequirementValue: 25, SortOrder: 100},
	{ID: "conversation-starter", Title: "Conversation Starter", Description: "Receive 10 comments on your workouts", RequirementType: domain.RequirementCommentsReceived, RequirementValue: 10, SortOrder: 110},
	{ID: "team-victory", Title: "Team Victory", Description: "Win a group competition", RequirementType: domain.RequirementCompetitionGoal, RequirementValue: 1, SortOrder: 120},
	{ID: "triple-crown", Title: "Triple Crown", Description: "Finish every stage of the season challenge", RequirementType: domain.RequirementMultiStage, RequirementValue: 3, SortOrder: 130},
}
