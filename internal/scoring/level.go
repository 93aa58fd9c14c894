package scoring

import (
	"fmt"

	"github.com/ironcrew/ironcrew-server/internal/domain"
)

// XPWeights are the per-stat multipliers that make up XP.
type XPWeights struct {
	Workout        int64
	Streak         int64
	Group          int64
	Friend         int64
	CompetitionWin int64
	Achievement    int64
}

// DefaultXPWeights returns the standard weights.
func DefaultXPWeights() XPWeights {
	return XPWeights{
		Workout:        10,
		Streak:         5,
		Group:          5,
		Friend:         2,
		CompetitionWin: 25,
		Achievement:    50,
	}
}

// DefaultTiers is the standard level table.
var DefaultTiers = []domain.LevelTier{
	{Tier: 1, Name: "Rookie", MinXP: 0},
	{Tier: 2, Name: "Regular", MinXP: 100},
	{Tier: 3, Name: "Committed", MinXP: 300},
	{Tier: 4, Name: "Athlete", MinXP: 700},
	{Tier: 5, Name: "Elite", MinXP: 1500},
	{Tier: 6, Name: "Champion", MinXP: 3000},
	{Tier: 7, Name: "Legend", MinXP: 6000},
}

// XP sums weighted stats and unlocked achievements.
func XP(stats domain.UserStats, unlockedAchievements int, w XPWeights) int64 {
	return stats.WorkoutsCount*w.Workout +
		stats.Streak*w.Streak +
		stats.GroupsCount*w.Group +
		stats.FriendsCount*w.Friend +
		stats.CompetitionWins*w.CompetitionWin +
		int64(unlockedAchievements)*w.Achievement
}

// ValidateTiers checks a level table: non-empty, first tier at zero XP and
// strictly ascending thresholds.
func ValidateTiers(tiers []domain.LevelTier) error {
	if len(tiers) == 0 {
		return fmt.Errorf("level table is empty")
	}
	if tiers[0].MinXP != 0 {
		return fmt.Errorf("first tier must start at 0 XP, got %d", tiers[0].MinXP)
	}
	for i := 1; i < len(tiers); i++ {
		if tiers[i].MinXP <= tiers[i-1].MinXP {
			return fmt.Errorf("tier %d threshold %d does not exceed tier %d threshold %d",
				tiers[i].Tier, tiers[i].MinXP, tiers[i-1].Tier, tiers[i-1].MinXP)
		}
	}
	return nil
}

// LevelFromXP finds the highest tier whose threshold xp reaches and reports
// progress towards the next one. tiers must satisfy ValidateTiers.
func LevelFromXP(xp int64, tiers []domain.LevelTier) domain.UserLevel {
	idx := 0
	for i := len(tiers) - 1; i >= 0; i-- {
		if tiers[i].MinXP <= xp {
			idx = i
			break
		}
	}

	current := tiers[idx]
	level := domain.UserLevel{
		Tier:  current.Tier,
		Name:  current.Name,
		XP:    xp,
		MinXP: current.MinXP,
	}

	if idx == len(tiers)-1 {
		level.Progress = 1
		return level
	}

	next := tiers[idx+1]
	level.NextMinXP = next.MinXP
	level.XPToNext = max(0, next.MinXP-xp)
	progress := float64(xp-current.MinXP) / float64(next.MinXP-current.MinXP)
	level.Progress = min(max(progress, 0), 1)
	return level
}

// LeveledUp reports whether after sits on a higher tier than before.
func LeveledUp(before, after domain.UserLevel) bool {
	return after.Tier > before.Tier
}
