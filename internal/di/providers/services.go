package providers

import (
	"github.com/samber/do/v2"

	"github.com/ironcrew/ironcrew-server/internal/achievements"
	"github.com/ironcrew/ironcrew-server/internal/config"
	"github.com/ironcrew/ironcrew-server/internal/logger"
	"github.com/ironcrew/ironcrew-server/internal/metrics"
	"github.com/ironcrew/ironcrew-server/internal/scoring"
	"github.com/ironcrew/ironcrew-server/internal/service"
)

func pointsEngine(cfg *config.Config) scoring.PointsEngine {
	return scoring.PointsEngine{
		WorkoutWeight:        cfg.Scoring.WorkoutWeight,
		CompetitionWinWeight: cfg.Scoring.WinWeight,
		StreakMultiplier:     cfg.Scoring.StreakMultiplier,
	}
}

// ProvideAnnouncementService provides the announcement feed service.
func ProvideAnnouncementService(i do.Injector) (*service.AnnouncementService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAnnouncementService(storeHandle.Store, sseHandle.Manager, log.Component("announcements")), nil
}

// ProvideLeaderboardService provides the leaderboard service.
func ProvideLeaderboardService(i do.Injector) (*service.LeaderboardService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	cacheHandle := do.MustInvoke[*CacheHandle](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewLeaderboardService(storeHandle.Store, service.LeaderboardOptions{
		Points:    pointsEngine(cfg),
		Snapshots: cfg.Leaderboard.Snapshots,
		Cache:     cacheHandle.LeaderboardCache,
		Metrics:   m,
	}, log.Component("leaderboard")), nil
}

// ProvideCompetitionService provides the group competition service.
func ProvideCompetitionService(i do.Injector) (*service.CompetitionService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	announcer := do.MustInvoke[*service.AnnouncementService](i)
	leaderboard := do.MustInvoke[*service.LeaderboardService](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewCompetitionService(storeHandle.Store, service.CompetitionOptions{
		MaxDurationDays: cfg.Competition.MaxDurationDays,
		Announcer:       announcer,
		Leaderboard:     leaderboard,
		Metrics:         m,
	}, log.Component("competitions")), nil
}

// ProvideDuelService provides the 1:1 duel service.
func ProvideDuelService(i do.Injector) (*service.DuelService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	announcer := do.MustInvoke[*service.AnnouncementService](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewDuelService(storeHandle.Store, service.DuelOptions{
		MaxDurationDays: cfg.Competition.MaxDurationDays,
		Announcer:       announcer,
		Metrics:         m,
	}, log.Component("duels")), nil
}

// ProvideMatchmakingService provides the matchmaking queue service.
func ProvideMatchmakingService(i do.Injector) (*service.MatchmakingService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	announcer := do.MustInvoke[*service.AnnouncementService](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewMatchmakingService(storeHandle.Store, service.MatchmakingOptions{
		DurationDays: cfg.Competition.MatchmakingDays,
		Announcer:    announcer,
		Metrics:      m,
	}, log.Component("matchmaking")), nil
}

// ProvideAchievementService provides the achievement evaluator with the
// built-in catalog.
func ProvideAchievementService(i do.Injector) (*service.AchievementService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAchievementService(storeHandle.Store, achievements.Default(), m, log.Component("achievements")), nil
}

// ProvideLevelService provides the XP and level service.
func ProvideLevelService(i do.Injector) (*service.LevelService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewLevelService(storeHandle.Store, scoring.DefaultXPWeights(), scoring.DefaultTiers, log.Component("levels"))
}

// ProvideActivityService provides the workout pipeline.
func ProvideActivityService(i do.Injector) (*service.ActivityService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewActivityService(storeHandle.Store, service.ActivityDeps{
		Leaderboard:   do.MustInvoke[*service.LeaderboardService](i),
		Competitions:  do.MustInvoke[*service.CompetitionService](i),
		Duels:         do.MustInvoke[*service.DuelService](i),
		Achievements:  do.MustInvoke[*service.AchievementService](i),
		Levels:        do.MustInvoke[*service.LevelService](i),
		Announcer:     do.MustInvoke[*service.AnnouncementService](i),
		Metrics:       m,
		WorkoutPoints: cfg.Scoring.WorkoutWeight,
	}, log.Component("activity")), nil
}
