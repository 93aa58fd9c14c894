// Package di provides dependency injection configuration for the IronCrew server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/ironcrew/ironcrew-server/internal/auth"
	"github.com/ironcrew/ironcrew-server/internal/config"
	"github.com/ironcrew/ironcrew-server/internal/di/providers"
	"github.com/ironcrew/ironcrew-server/internal/logger"
	"github.com/ironcrew/ironcrew-server/internal/metrics"
	"github.com/ironcrew/ironcrew-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideMetrics)
	do.Provide(injector, providers.ProvideAuthKey)

	// Storage layer
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideLeaderboardCache)
	do.Provide(injector, providers.ProvideLocker)

	// Auth layer
	do.Provide(injector, providers.ProvideTokenService)

	// Business services
	do.Provide(injector, providers.ProvideAnnouncementService)
	do.Provide(injector, providers.ProvideLeaderboardService)
	do.Provide(injector, providers.ProvideCompetitionService)
	do.Provide(injector, providers.ProvideDuelService)
	do.Provide(injector, providers.ProvideMatchmakingService)
	do.Provide(injector, providers.ProvideAchievementService)
	do.Provide(injector, providers.ProvideLevelService)
	do.Provide(injector, providers.ProvideActivityService)

	// Workers
	do.Provide(injector, providers.ProvideScheduler)

	// Server
	do.Provide(injector, providers.ProvideRateLimiter)
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services eagerly so startup fails fast on bad
// configuration instead of on the first request.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*metrics.Metrics](injector)
	_ = do.MustInvoke[providers.AuthKey](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*providers.CacheHandle](injector)
	_ = do.MustInvoke[*auth.TokenService](injector)

	// Business services
	_ = do.MustInvoke[*service.AnnouncementService](injector)
	_ = do.MustInvoke[*service.LeaderboardService](injector)
	_ = do.MustInvoke[*service.CompetitionService](injector)
	_ = do.MustInvoke[*service.DuelService](injector)
	_ = do.MustInvoke[*service.MatchmakingService](injector)
	_ = do.MustInvoke[*service.AchievementService](injector)
	_ = do.MustInvoke[*service.LevelService](injector)
	_ = do.MustInvoke[*service.ActivityService](injector)

	// Workers
	_ = do.MustInvoke[*providers.SchedulerHandle](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
