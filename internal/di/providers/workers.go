package providers

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/ironcrew/ironcrew-server/internal/config"
	"github.com/ironcrew/ironcrew-server/internal/jobs"
	"github.com/ironcrew/ironcrew-server/internal/logger"
	"github.com/ironcrew/ironcrew-server/internal/metrics"
	"github.com/ironcrew/ironcrew-server/internal/service"
)

// SchedulerHandle wraps the job scheduler with shutdown capability.
// Scheduler is nil when background jobs are disabled.
type SchedulerHandle struct {
	*jobs.Scheduler
}

// Shutdown implements do.Shutdownable.
func (h *SchedulerHandle) Shutdown() error {
	if h.Scheduler != nil {
		h.Stop()
	}
	return nil
}

// ProvideScheduler provides the background job scheduler running expiry
// finalization and matchmaking pairing.
func ProvideScheduler(i do.Injector) (*SchedulerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Jobs.Enabled {
		log.Info("Background jobs disabled")
		return &SchedulerHandle{}, nil
	}

	lockerHandle := do.MustInvoke[*LockerHandle](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	competitions := do.MustInvoke[*service.CompetitionService](i)
	duels := do.MustInvoke[*service.DuelService](i)
	matchmaking := do.MustInvoke[*service.MatchmakingService](i)

	scheduler := jobs.New(lockerHandle.Locker, m, log.Component("jobs"))
	scheduler.Add(jobs.FinalizeJob(competitions, duels, cfg.Jobs.FinalizeInterval, time.Now))
	scheduler.Add(jobs.PairingJob(matchmaking, cfg.Jobs.PairingInterval))
	scheduler.Start(context.Background())

	log.Info("Background jobs started",
		"finalize_interval", cfg.Jobs.FinalizeInterval,
		"pairing_interval", cfg.Jobs.PairingInterval,
	)

	return &SchedulerHandle{Scheduler: scheduler}, nil
}
