package api

import "github.com/ironcrew/ironcrew-server/internal/service"

// Services groups the engine services used by the API server.
type Services struct {
	Leaderboard   *service.LeaderboardService
	Levels        *service.LevelService
	Achievements  *service.AchievementService
	Announcements *service.AnnouncementService
	Activity      *service.ActivityService
	Matchmaking   *service.MatchmakingService
	Competitions  *service.CompetitionService
	Duels         *service.DuelService
}
