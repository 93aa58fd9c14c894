package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironcrew/ironcrew-server/internal/achievements"
	"github.com/ironcrew/ironcrew-server/internal/domain"
	domainerrors "github.com/ironcrew/ironcrew-server/internal/errors"
	"github.com/ironcrew/ironcrew-server/internal/scoring"
)

func TestNewLevelService_RejectsBadTable(t *testing.T) {
	s := setupStore(t)

	_, err := NewLevelService(s, scoring.DefaultXPWeights(), nil, testLogger())
	assert.Error(t, err)

	_, err = NewLevelService(s, scoring.DefaultXPWeights(), []domain.LevelTier{
		{Tier: 1, Name: "A", MinXP: 0},
		{Tier: 2, Name: "B", MinXP: 0},
	}, testLogger())
	assert.Error(t, err)
}

func TestLevelService_LevelFromStats(t *testing.T) {
	svc, err := NewLevelService(setupStore(t), scoring.DefaultXPWeights(), scoring.DefaultTiers, testLogger())
	require.NoError(t, err)

	tests := []struct {
		name     string
		stats    domain.UserStats
		unlocked int
		wantTier int
		wantXP   int64
	}{
		{"new user", domain.UserStats{}, 0, 1, 0},
		{"exactly on a threshold", domain.UserStats{WorkoutsCount: 10}, 0, 2, 100},
		{"achievements count", domain.UserStats{WorkoutsCount: 5}, 5, 2, 250},
		{"top tier", domain.UserStats{WorkoutsCount: 1000}, 0, 7, 10000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level := svc.LevelFromStats(tt.stats, tt.unlocked)
			assert.Equal(t, tt.wantXP, level.XP)
			assert.Equal(t, tt.wantTier, level.Tier)
		})
	}
}

func TestLevelService_LevelForUser(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	createGroup(t, s, "g1", "alice")
	logDays(t, s, "alice", "2026-03-01", "2026-03-02")

	ach := NewAchievementService(s, achievements.Default(), nil, testLogger())
	_, err := ach.Evaluate(ctx, "alice")
	require.NoError(t, err)

	svc, err := NewLevelService(s, scoring.DefaultXPWeights(), scoring.DefaultTiers, testLogger())
	require.NoError(t, err)

	level, err := svc.LevelForUser(ctx, "alice")
	require.NoError(t, err)

	// 2 workouts*10 + streak 2*5 + 1 group*5 + 1 achievement*50
	assert.Equal(t, int64(85), level.XP)
	assert.Equal(t, 1, level.Tier)
	assert.Equal(t, "Rookie", level.Name)
	assert.Equal(t, int64(100), level.NextMinXP)
	assert.Equal(t, int64(15), level.XPToNext)

	_, err = svc.LevelForUser(ctx, "nobody")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}
