package providers

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/samber/do/v2"

	"github.com/ironcrew/ironcrew-server/internal/cache"
	"github.com/ironcrew/ironcrew-server/internal/config"
	"github.com/ironcrew/ironcrew-server/internal/lock"
	"github.com/ironcrew/ironcrew-server/internal/logger"
	"github.com/ironcrew/ironcrew-server/internal/metrics"
	"github.com/ironcrew/ironcrew-server/internal/sse"
	"github.com/ironcrew/ironcrew-server/internal/store/sqlite"
)

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	m := do.MustInvoke[*metrics.Metrics](i)

	manager := sse.NewManager(log.Component("sse"),
		sse.WithMetrics(m),
		sse.WithMaxStreamsPerUser(cfg.Events.MaxStreamsPerUser),
		sse.WithHeartbeat(cfg.Events.Heartbeat),
	)

	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*sqlite.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the database store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	db, err := sqlite.Open(cfg.Database.Path, log.Component("store"))
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", "path", cfg.Database.Path)

	return &StoreHandle{Store: db}, nil
}

// CacheHandle wraps the leaderboard cache with shutdown capability.
type CacheHandle struct {
	*cache.LeaderboardCache
}

// Shutdown implements do.Shutdownable.
func (h *CacheHandle) Shutdown() error {
	return h.Close()
}

// ProvideLeaderboardCache provides the period activity cache. An empty cache
// directory keeps it in memory.
func ProvideLeaderboardCache(i do.Injector) (*CacheHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	c, err := cache.Open(cache.Config{
		Dir:      cfg.Leaderboard.CacheDir,
		InMemory: cfg.Leaderboard.CacheDir == "",
		TTL:      cfg.Leaderboard.CacheTTL,
	}, log.Component("cache"))
	if err != nil {
		return nil, fmt.Errorf("open leaderboard cache: %w", err)
	}

	log.Info("Leaderboard cache opened",
		"dir", cfg.Leaderboard.CacheDir,
		"ttl", cfg.Leaderboard.CacheTTL,
	)

	return &CacheHandle{LeaderboardCache: c}, nil
}

// ProvideMetrics provides the Prometheus collectors on a private registry.
func ProvideMetrics(i do.Injector) (*metrics.Metrics, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return metrics.New(reg), nil
}

// LockerHandle wraps the job lock backend. Redis is used when an address is
// configured, otherwise locks are process-local.
type LockerHandle struct {
	lock.Locker
	redis *lock.Redis
}

// Shutdown implements do.Shutdownable.
func (h *LockerHandle) Shutdown() error {
	if h.redis != nil {
		return h.redis.Close()
	}
	return nil
}

// ProvideLocker provides the distributed lock used by background jobs.
func ProvideLocker(i do.Injector) (*LockerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Redis.Addr == "" {
		log.Info("Using in-process job locks")
		return &LockerHandle{Locker: lock.NewLocal()}, nil
	}

	r := lock.NewRedis(lock.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := r.Ping(ctx); err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
	}

	log.Info("Using redis job locks", "addr", cfg.Redis.Addr)

	return &LockerHandle{Locker: r, redis: r}, nil
}
