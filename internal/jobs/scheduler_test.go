package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironcrew/ironcrew-server/internal/domain"
	"github.com/ironcrew/ironcrew-server/internal/lock"
	"github.com/ironcrew/ironcrew-server/internal/metrics"
	"github.com/ironcrew/ironcrew-server/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestScheduler(t *testing.T, locker lock.Locker) (*Scheduler, *metrics.Metrics) {
	t.Helper()
	m := metrics.New(prometheus.NewRegistry())
	return New(locker, m, testLogger()), m
}

func countingJob(name string, n *atomic.Int32, err error) Job {
	return Job{
		Name:     name,
		Interval: time.Minute,
		Run: func(context.Context, *slog.Logger) error {
			n.Add(1)
			return err
		},
	}
}

func TestScheduler_RunOnce(t *testing.T) {
	s, m := newTestScheduler(t, lock.NewLocal())
	var n atomic.Int32

	outcome := s.RunOnce(context.Background(), countingJob("tick", &n, nil))
	assert.Equal(t, OutcomeOK, outcome)
	assert.Equal(t, int32(1), n.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobRuns.WithLabelValues("tick", OutcomeOK)))

	// The lease is released after the run.
	outcome = s.RunOnce(context.Background(), countingJob("tick", &n, nil))
	assert.Equal(t, OutcomeOK, outcome)
	assert.Equal(t, int32(2), n.Load())
}

func TestScheduler_RunOnce_Error(t *testing.T) {
	s, m := newTestScheduler(t, lock.NewLocal())
	var n atomic.Int32

	outcome := s.RunOnce(context.Background(), countingJob("broken", &n, errors.New("boom")))
	assert.Equal(t, OutcomeError, outcome)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobRuns.WithLabelValues("broken", OutcomeError)))
}

func TestScheduler_RunOnce_SkipsWhenLockHeld(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	// Two instances sharing one Redis.
	r1 := lock.NewRedis(lock.RedisConfig{Addr: mr.Addr()})
	r2 := lock.NewRedis(lock.RedisConfig{Addr: mr.Addr()})
	t.Cleanup(func() { _ = r1.Close(); _ = r2.Close() })

	s1, _ := newTestScheduler(t, r1)
	s2, m2 := newTestScheduler(t, r2)

	var n atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{})
	slow := Job{
		Name:     "finalize",
		Interval: time.Minute,
		Run: func(context.Context, *slog.Logger) error {
			n.Add(1)
			close(started)
			<-release
			return nil
		},
	}

	done := make(chan string)
	go func() { done <- s1.RunOnce(context.Background(), slow) }()
	<-started

	assert.True(t, mr.Exists(lockPrefix+"finalize"))
	assert.Equal(t, OutcomeSkipped, s2.RunOnce(context.Background(), slow))
	assert.Equal(t, 1.0, testutil.ToFloat64(m2.JobRuns.WithLabelValues("finalize", OutcomeSkipped)))

	close(release)
	assert.Equal(t, OutcomeOK, <-done)
	assert.Equal(t, int32(1), n.Load())
	assert.False(t, mr.Exists(lockPrefix+"finalize"))
}

func TestScheduler_StartStop(t *testing.T) {
	s, _ := newTestScheduler(t, lock.NewLocal())
	var fast, slow atomic.Int32

	s.Add(Job{Name: "fast", Interval: 10 * time.Millisecond, Run: func(context.Context, *slog.Logger) error {
		fast.Add(1)
		return nil
	}})
	s.Add(countingJob("slow", &slow, nil))

	s.Start(context.Background())
	require.Eventually(t, func() bool { return fast.Load() >= 3 }, time.Second, 5*time.Millisecond)
	s.Stop()

	assert.Equal(t, int32(1), slow.Load(), "every job runs once at start")

	after := fast.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, fast.Load(), "no runs after stop")

	s.Stop()
}

type fakeFinalizer struct {
	calls   atomic.Int32
	at      time.Time
	summary service.FinalizeSummary
	err     error
}

func (f *fakeFinalizer) FinalizeExpired(_ context.Context, now time.Time) (service.FinalizeSummary, error) {
	f.calls.Add(1)
	f.at = now
	return f.summary, f.err
}

func TestFinalizeJob(t *testing.T) {
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	comps := &fakeFinalizer{err: errors.New("db down")}
	duels := &fakeFinalizer{summary: service.FinalizeSummary{Expired: 2, Finalized: 2}}

	job := FinalizeJob(comps, duels, time.Minute, func() time.Time { return now })
	assert.Equal(t, "finalize", job.Name)

	err := job.Run(context.Background(), testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "competitions: db down")

	// The duel batch still ran.
	assert.Equal(t, int32(1), duels.calls.Load())
	assert.Equal(t, now, duels.at)
	assert.Equal(t, now, comps.at)
}

type fakePairer struct {
	created []*domain.GroupCompetition
}

func (f *fakePairer) PairWaitingGroups(context.Context) ([]*domain.GroupCompetition, error) {
	return f.created, nil
}

func TestPairingJob(t *testing.T) {
	p := &fakePairer{created: []*domain.GroupCompetition{{ID: "comp-1"}}}
	job := PairingJob(p, 5*time.Minute)

	assert.Equal(t, "pairing", job.Name)
	assert.Equal(t, 5*time.Minute, job.Interval)
	assert.NoError(t, job.Run(context.Background(), testLogger()))
}
