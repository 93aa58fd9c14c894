package achievements

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironcrew/ironcrew-server/internal/domain"
)

func TestDefault_IsValidAndOrdered(t *testing.T) {
	c := Default()
	require.Positive(t, c.Len())

	all := c.All()
	for i := 1; i < len(all); i++ {
		assert.LessOrEqual(t, all[i-1].SortOrder, all[i].SortOrder)
	}

	def, ok := c.Get("first-sweat")
	require.True(t, ok)
	assert.Equal(t, domain.RequirementWorkoutsCount, def.RequirementType)
	assert.Equal(t, int64(1), def.RequirementValue)
}

func TestCatalog_AllReturnsCopy(t *testing.T) {
	c := Default()
	all := c.All()
	all[0].Title = "changed"

	def, ok := c.Get(all[0].ID)
	require.True(t, ok)
	assert.NotEqual(t, "changed", def.Title)
}

func TestNewCatalog_Rejects(t *testing.T) {
	tests := []struct {
		name string
		defs []domain.AchievementDefinition
	}{
		{
			name: "missing id",
			defs: []domain.AchievementDefinition{{RequirementType: domain.RequirementStreak, RequirementValue: 1}},
		},
		{
			name: "duplicate id",
			defs: []domain.AchievementDefinition{
				{ID: "a", RequirementType: domain.RequirementStreak, RequirementValue: 1},
				{ID: "a", RequirementType: domain.RequirementWorkoutsCount, RequirementValue: 2},
			},
		},
		{
			name: "missing requirement type",
			defs: []domain.AchievementDefinition{{ID: "a", RequirementValue: 1}},
		},
		{
			name: "zero target for stat key",
			defs: []domain.AchievementDefinition{{ID: "a", RequirementType: domain.RequirementStreak}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCatalog(tt.defs)
			assert.Error(t, err)
		})
	}
}

func TestNewCatalog_SortsBySortOrder(t *testing.T) {
	c, err := NewCatalog([]domain.AchievementDefinition{
		{ID: "b", RequirementType: domain.RequirementStreak, RequirementValue: 2, SortOrder: 2},
		{ID: "a", RequirementType: domain.RequirementStreak, RequirementValue: 1, SortOrder: 1},
	})
	require.NoError(t, err)

	all := c.All()
	assert.Equal(t, "a", all[0].ID)
	assert.Equal(t, "b", all[1].ID)

	_, ok := c.Get("missing")
	assert.False(t, ok)
}
