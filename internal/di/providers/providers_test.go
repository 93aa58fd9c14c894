package providers

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/samber/do/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironcrew/ironcrew-server/internal/config"
	"github.com/ironcrew/ironcrew-server/internal/lock"
	"github.com/ironcrew/ironcrew-server/internal/logger"
	"github.com/ironcrew/ironcrew-server/internal/service"
	"github.com/ironcrew/ironcrew-server/internal/sse"
)

func testInjector(t *testing.T, mutate func(*config.Config)) *do.RootScope {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		App:         config.AppConfig{Environment: "development", DataDir: dir},
		Logger:      config.LoggerConfig{Level: "info"},
		Database:    config.DatabaseConfig{Path: filepath.Join(dir, "ironcrew.db")},
		Auth:        config.AuthConfig{KeyPath: filepath.Join(dir, "auth.key"), AccessTokenDuration: time.Hour},
		Scoring:     config.ScoringConfig{WorkoutWeight: 10, WinWeight: 50, StreakMultiplier: 1.1},
		Leaderboard: config.LeaderboardConfig{CacheTTL: time.Minute, Snapshots: true},
		Competition: config.CompetitionConfig{MatchmakingDays: 7, MaxDurationDays: 30},
		Jobs:        config.JobsConfig{Enabled: true, FinalizeInterval: time.Hour, PairingInterval: time.Hour},
		RateLimit:   config.RateLimitConfig{RPS: 5, Burst: 20},
		Events:      config.EventsConfig{MaxStreamsPerUser: 2, Heartbeat: time.Minute},
	}
	if mutate != nil {
		mutate(cfg)
	}

	i := do.New()
	do.ProvideValue(i, cfg)
	do.ProvideValue(i, logger.New(logger.Config{Writer: io.Discard}))
	do.Provide(i, ProvideMetrics)
	do.Provide(i, ProvideAuthKey)
	do.Provide(i, ProvideTokenService)
	do.Provide(i, ProvideSSEManager)
	do.Provide(i, ProvideStore)
	do.Provide(i, ProvideLeaderboardCache)
	do.Provide(i, ProvideLocker)
	do.Provide(i, ProvideAnnouncementService)
	do.Provide(i, ProvideLeaderboardService)
	do.Provide(i, ProvideCompetitionService)
	do.Provide(i, ProvideDuelService)
	do.Provide(i, ProvideMatchmakingService)
	do.Provide(i, ProvideAchievementService)
	do.Provide(i, ProvideLevelService)
	do.Provide(i, ProvideActivityService)
	do.Provide(i, ProvideScheduler)
	t.Cleanup(func() { _ = i.Shutdown() })
	return i
}

func TestProvideActivityService_WiresPipeline(t *testing.T) {
	i := testInjector(t, nil)

	activity, err := do.Invoke[*service.ActivityService](i)
	require.NoError(t, err)
	require.NotNil(t, activity)

	storeHandle := do.MustInvoke[*StoreHandle](i)
	require.NoError(t, storeHandle.Ping(context.Background()))
}

func TestProvideLocker_LocalByDefault(t *testing.T) {
	i := testInjector(t, nil)

	h, err := do.Invoke[*LockerHandle](i)
	require.NoError(t, err)
	assert.IsType(t, &lock.Local{}, h.Locker)
}

func TestProvideLocker_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	i := testInjector(t, func(c *config.Config) { c.Redis.Addr = mr.Addr() })

	h, err := do.Invoke[*LockerHandle](i)
	require.NoError(t, err)
	assert.IsType(t, &lock.Redis{}, h.Locker)

	lease, ok, err := h.TryAcquire(context.Background(), "finalize", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists("finalize"))
	require.NoError(t, lease.Release(context.Background()))
	assert.False(t, mr.Exists("finalize"))
}

func TestProvideLocker_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	i := testInjector(t, func(c *config.Config) { c.Redis.Addr = addr })
	_, err := do.Invoke[*LockerHandle](i)
	assert.Error(t, err)
}

func TestProvideScheduler_Disabled(t *testing.T) {
	i := testInjector(t, func(c *config.Config) { c.Jobs.Enabled = false })

	h, err := do.Invoke[*SchedulerHandle](i)
	require.NoError(t, err)
	assert.Nil(t, h.Scheduler)
	assert.NoError(t, h.Shutdown())
}

func TestProvideScheduler_Enabled(t *testing.T) {
	i := testInjector(t, nil)

	h, err := do.Invoke[*SchedulerHandle](i)
	require.NoError(t, err)
	require.NotNil(t, h.Scheduler)
}

func TestProvideSSEManager_AppliesStreamCap(t *testing.T) {
	i := testInjector(t, nil)

	h, err := do.Invoke[*SSEManagerHandle](i)
	require.NoError(t, err)

	for range 2 {
		_, err := h.Connect("usr-1")
		require.NoError(t, err)
	}
	_, err = h.Connect("usr-1")
	assert.ErrorIs(t, err, sse.ErrTooManyStreams)
}
