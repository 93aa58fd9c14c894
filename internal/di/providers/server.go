package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/ironcrew/ironcrew-server/internal/api"
	"github.com/ironcrew/ironcrew-server/internal/auth"
	"github.com/ironcrew/ironcrew-server/internal/config"
	"github.com/ironcrew/ironcrew-server/internal/logger"
	"github.com/ironcrew/ironcrew-server/internal/metrics"
	"github.com/ironcrew/ironcrew-server/internal/ratelimit"
	"github.com/ironcrew/ironcrew-server/internal/service"
)

// RateLimiterHandle wraps the per-user limiter for mutating routes.
type RateLimiterHandle struct {
	*ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *RateLimiterHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideRateLimiter provides the limiter for mutating API routes.
func ProvideRateLimiter(i do.Injector) (*RateLimiterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return &RateLimiterHandle{
		KeyedRateLimiter: ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst, limiterIdleTTL),
	}, nil
}

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	limiterHandle := do.MustInvoke[*RateLimiterHandle](i)
	tokens := do.MustInvoke[*auth.TokenService](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	log := do.MustInvoke[*logger.Logger](i)
	cacheHandle := do.MustInvoke[*CacheHandle](i)
	lockerHandle := do.MustInvoke[*LockerHandle](i)

	checks := map[string]api.Pinger{"leaderboard_cache": cacheHandle.LeaderboardCache}
	if lockerHandle.redis != nil {
		checks["redis"] = lockerHandle.redis
	}

	services := &api.Services{
		Leaderboard:   do.MustInvoke[*service.LeaderboardService](i),
		Levels:        do.MustInvoke[*service.LevelService](i),
		Achievements:  do.MustInvoke[*service.AchievementService](i),
		Announcements: do.MustInvoke[*service.AnnouncementService](i),
		Activity:      do.MustInvoke[*service.ActivityService](i),
		Matchmaking:   do.MustInvoke[*service.MatchmakingService](i),
		Competitions:  do.MustInvoke[*service.CompetitionService](i),
		Duels:         do.MustInvoke[*service.DuelService](i),
	}

	handler := api.NewServer(api.Options{
		Services:    services,
		Tokens:      tokens,
		Database:    storeHandle.Store,
		SSEManager:  sseHandle.Manager,
		Metrics:     m,
		Limiter:     limiterHandle.KeyedRateLimiter,
		Logger:      log.Component("api"),
		Checks:      checks,
		CORSOrigins: cfg.Server.CORSOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv}, nil
}
