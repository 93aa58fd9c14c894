package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironcrew/ironcrew-server/internal/domain"
)

func TestDefaultTiersAreValid(t *testing.T) {
	require.NoError(t, ValidateTiers(DefaultTiers))
}

func TestValidateTiers(t *testing.T) {
	assert.Error(t, ValidateTiers(nil))
	assert.Error(t, ValidateTiers([]domain.LevelTier{{Tier: 1, MinXP: 10}}))
	assert.Error(t, ValidateTiers([]domain.LevelTier{
		{Tier: 1, MinXP: 0},
		{Tier: 2, MinXP: 100},
		{Tier: 3, MinXP: 100},
	}))
}

func TestXP(t *testing.T) {
	stats := domain.UserStats{
		WorkoutsCount:   12,
		Streak:          3,
		GroupsCount:     2,
		FriendsCount:    5,
		CompetitionWins: 1,
	}

	// 120 + 15 + 10 + 10 + 25 + 2*50
	assert.Equal(t, int64(280), XP(stats, 2, DefaultXPWeights()))
	assert.Equal(t, int64(0), XP(domain.UserStats{}, 0, DefaultXPWeights()))
}

func TestLevelFromXP(t *testing.T) {
	tests := []struct {
		name         string
		xp           int64
		wantTier     int
		wantName     string
		wantProgress float64
		wantToNext   int64
	}{
		{"zero", 0, 1, "Rookie", 0, 100},
		{"halfway through first tier", 50, 1, "Rookie", 0.5, 50},
		{"exactly on a threshold", 100, 2, "Regular", 0, 200},
		{"quarter of second tier", 150, 2, "Regular", 0.25, 150},
		{"just below third tier", 299, 2, "Regular", 0.995, 1},
		{"top tier threshold", 6000, 7, "Legend", 1, 0},
		{"beyond top tier", 100000, 7, "Legend", 1, 0},
		{"negative clamps to zero progress", -20, 1, "Rookie", 0, 120},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lvl := LevelFromXP(tt.xp, DefaultTiers)
			assert.Equal(t, tt.wantTier, lvl.Tier)
			assert.Equal(t, tt.wantName, lvl.Name)
			assert.Equal(t, tt.xp, lvl.XP)
			assert.InDelta(t, tt.wantProgress, lvl.Progress, 1e-9)
			assert.Equal(t, tt.wantToNext, lvl.XPToNext)
		})
	}
}

func TestLevelFromXP_TopTier(t *testing.T) {
	lvl := LevelFromXP(7500, DefaultTiers)
	assert.True(t, lvl.IsMaxTier())
	assert.Zero(t, lvl.NextMinXP)

	assert.False(t, LevelFromXP(10, DefaultTiers).IsMaxTier())
}

func TestLeveledUp(t *testing.T) {
	before := LevelFromXP(90, DefaultTiers)
	after := LevelFromXP(110, DefaultTiers)

	assert.True(t, LeveledUp(before, after))
	assert.False(t, LeveledUp(after, after))
	assert.False(t, LeveledUp(after, before))
}
