// Package jobs runs the periodic contest maintenance: finalizing expired
// competitions and duels, and pairing groups waiting in the matchmaking queue.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ironcrew/ironcrew-server/internal/domain"
	"github.com/ironcrew/ironcrew-server/internal/lock"
	"github.com/ironcrew/ironcrew-server/internal/metrics"
	"github.com/ironcrew/ironcrew-server/internal/service"
)

const lockPrefix = "ironcrew:job:"

// Job is a named task run every Interval.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context, log *slog.Logger) error
}

// Outcome of a single run.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

// Scheduler runs jobs on tickers. Each run takes a named lock first, so when
// several server instances share a Redis lock only one of them does the work.
type Scheduler struct {
	locker  lock.Locker
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu      sync.Mutex
	jobs    []Job
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// New creates a scheduler.
func New(locker lock.Locker, m *metrics.Metrics, logger *slog.Logger) *Scheduler {
	if m == nil {
		m = metrics.NewNoop()
	}
	return &Scheduler{
		locker:  locker,
		metrics: m,
		logger:  logger,
	}
}

// Add registers a job. Jobs added after Start are ignored.
func (s *Scheduler) Add(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		s.logger.Warn("job added after start, ignoring", "job", job.Name)
		return
	}
	s.jobs = append(s.jobs, job)
}

// Start launches one goroutine per job. Each job runs once immediately, then
// on every tick until Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	for _, job := range s.jobs {
		s.wg.Go(func() { s.loop(ctx, job) })
	}
	s.logger.Info("job scheduler started", "jobs", len(s.jobs))
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.logger.Info("job scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	s.RunOnce(ctx, job)
	for {
		select {
		case <-ticker.C:
			s.RunOnce(ctx, job)
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce runs job now if its lock is free and returns the outcome.
func (s *Scheduler) RunOnce(ctx context.Context, job Job) string {
	runID := uuid.NewString()
	log := s.logger.With("job", job.Name, "run_id", runID)

	lease, ok, err := s.locker.TryAcquire(ctx, lockPrefix+job.Name, job.Interval)
	if err != nil {
		log.Error("failed to acquire job lock", "error", err)
		s.metrics.JobRuns.WithLabelValues(job.Name, OutcomeError).Inc()
		return OutcomeError
	}
	if !ok {
		log.Debug("job lock held elsewhere, skipping")
		s.metrics.JobRuns.WithLabelValues(job.Name, OutcomeSkipped).Inc()
		return OutcomeSkipped
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, lock.ErrNotHeld) {
			log.Warn("failed to release job lock", "error", err)
		}
	}()

	start := time.Now()
	err = job.Run(ctx, log)
	s.metrics.JobDuration.WithLabelValues(job.Name).Observe(time.Since(start).Seconds())

	if err != nil {
		log.Error("job failed", "error", err, "duration", time.Since(start))
		s.metrics.JobRuns.WithLabelValues(job.Name, OutcomeError).Inc()
		return OutcomeError
	}
	s.metrics.JobRuns.WithLabelValues(job.Name, OutcomeOK).Inc()
	return OutcomeOK
}

// Finalizer completes contests whose window has ended.
type Finalizer interface {
	FinalizeExpired(ctx context.Context, now time.Time) (service.FinalizeSummary, error)
}

// Pairer pairs waiting matchmaking groups.
type Pairer interface {
	PairWaitingGroups(ctx context.Context) ([]*domain.GroupCompetition, error)
}

// FinalizeJob finalizes expired competitions, then expired duels. A failure
// of the first batch does not stop the second.
func FinalizeJob(competitions, duels Finalizer, interval time.Duration, now func() time.Time) Job {
	return Job{
		Name:     "finalize",
		Interval: interval,
		Run: func(ctx context.Context, log *slog.Logger) error {
			at := now()
			var errs []error

			cs, err := competitions.FinalizeExpired(ctx, at)
			if err != nil {
				errs = append(errs, fmt.Errorf("competitions: %w", err))
			}
			ds, err := duels.FinalizeExpired(ctx, at)
			if err != nil {
				errs = append(errs, fmt.Errorf("duels: %w", err))
			}

			if cs.Expired > 0 || ds.Expired > 0 {
				log.Info("finalized expired contests",
					"competitions_finalized", cs.Finalized,
					"competitions_failed", cs.Failed,
					"duels_finalized", ds.Finalized,
					"duels_failed", ds.Failed,
				)
			}
			return errors.Join(errs...)
		},
	}
}

// PairingJob runs a matchmaking pass.
func PairingJob(p Pairer, interval time.Duration) Job {
	return Job{
		Name:     "pairing",
		Interval: interval,
		Run: func(ctx context.Context, log *slog.Logger) error {
			created, err := p.PairWaitingGroups(ctx)
			if len(created) > 0 {
				log.Info("paired waiting groups", "competitions", len(created))
			}
			return err
		},
	}
}
