package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ironcrew/ironcrew-server/internal/domain"
	domainerrors "github.com/ironcrew/ironcrew-server/internal/errors"
	"github.com/ironcrew/ironcrew-server/internal/id"
	"github.com/ironcrew/ironcrew-server/internal/metrics"
	"github.com/ironcrew/ironcrew-server/internal/sse"
	"github.com/ironcrew/ironcrew-server/internal/store"
)

// DuelStore is the data the duel state machine reads and writes.
type DuelStore interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	CountWorkoutDays(ctx context.Context, userID string, from, to time.Time) (int64, error)
	CreateDuel(ctx context.Context, d *domain.Duel) error
	GetDuel(ctx context.Context, id string) (*domain.Duel, error)
	GetOpenDuelBetween(ctx context.Context, userA, userB string) (*domain.Duel, error)
	ListDuelsForUser(ctx context.Context, userID string) ([]*domain.Duel, error)
	ListActiveDuelsForUser(ctx context.Context, userID string) ([]*domain.Duel, error)
	ListExpiredDuels(ctx context.Context, now time.Time) ([]*domain.Duel, error)
	ActivateDuel(ctx context.Context, id string, startedAt, endsAt time.Time) error
	ClosePendingDuel(ctx context.Context, id string, to domain.DuelStatus, now time.Time) error
	SetDuelScore(ctx context.Context, id, userID string, score int64, now time.Time) error
	FinalizeDuel(ctx context.Context, id string, now time.Time) (*domain.Duel, error)
}

// DuelOptions configures a DuelService.
type DuelOptions struct {
	MaxDurationDays int
	Announcer       Announcer
	Metrics         *metrics.Metrics
}

// DuelService runs the 1:1 duel lifecycle:
//
//	pending -> active -> completed
//	pending -> declined (by the opponent)
//	pending -> cancelled (by the challenger)
type DuelService struct {
	store     DuelStore
	announcer Announcer
	metrics   *metrics.Metrics
	maxDays   int
	logger    *slog.Logger
	now       func() time.Time
}

// NewDuelService creates a new duel service.
func NewDuelService(store DuelStore, opts DuelOptions, logger *slog.Logger) *DuelService {
	maxDays := opts.MaxDurationDays
	if maxDays <= 0 {
		maxDays = DefaultMaxDurationDays
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.NewNoop()
	}
	return &DuelService{
		store:     store,
		announcer: opts.Announcer,
		metrics:   m,
		maxDays:   maxDays,
		logger:    logger,
		now:       time.Now,
	}
}

// Create challenges opponentID to a duel. Only one pending or active duel may
// exist per pair of users, whoever challenged whom.
func (s *DuelService) Create(ctx context.Context, challengerID, opponentID string, typ domain.DuelType, durationDays int) (*domain.Duel, error) {
	if challengerID == "" || opponentID == "" {
		return nil, domainerrors.Validation("challenger and opponent are required")
	}
	if challengerID == opponentID {
		return nil, domainerrors.Validation("you cannot duel yourself")
	}
	if !typ.Valid() {
		return nil, domainerrors.Validationf("unknown duel type %q", typ)
	}
	if durationDays < 1 || durationDays > s.maxDays {
		return nil, domainerrors.Validationf("duration must be between 1 and %d days", s.maxDays)
	}

	for _, userID := range []string{challengerID, opponentID} {
		if _, err := s.store.GetUser(ctx, userID); err != nil {
			return nil, translate(err, "user "+userID)
		}
	}

	if open, err := s.store.GetOpenDuelBetween(ctx, challengerID, opponentID); err == nil {
		return nil, domainerrors.Conflictf("a %s duel between these users already exists", open.Status)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("checking open duels: %w", err)
	}

	duelID, err := id.Generate(id.PrefixDuel)
	if err != nil {
		return nil, fmt.Errorf("generate duel ID: %w", err)
	}

	now := s.now()
	d := &domain.Duel{
		ID:           duelID,
		ChallengerID: challengerID,
		OpponentID:   opponentID,
		Type:         typ,
		DurationDays: durationDays,
		Status:       domain.DuelPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateDuel(ctx, d); err != nil {
		return nil, translate(err, "duel")
	}

	s.logger.Info("duel created",
		"duel_id", d.ID,
		"challenger_id", challengerID,
		"opponent_id", opponentID,
		"type", typ,
		"duration_days", durationDays,
	)
	s.publish(d)
	return d, nil
}

// Accept starts a pending duel. Only the opponent may accept. The window runs
// durationDays from now.
func (s *DuelService) Accept(ctx context.Context, actorID, duelID string) (*domain.Duel, error) {
	d, err := s.pendingFor(ctx, duelID, actorID, func(d *domain.Duel) string { return d.OpponentID }, "only the opponent can accept")
	if err != nil {
		return nil, err
	}

	startedAt := s.now()
	endsAt := startedAt.AddDate(0, 0, d.DurationDays)
	if err := s.store.ActivateDuel(ctx, d.ID, startedAt, endsAt); err != nil {
		return nil, translate(err, "duel")
	}

	for _, userID := range []string{d.ChallengerID, d.OpponentID} {
		if err := s.refreshScore(ctx, d.ID, d.Type, userID, startedAt, endsAt); err != nil {
			s.logger.Warn("failed to seed duel score", "duel_id", d.ID, "user_id", userID, "error", err)
		}
	}

	d, err = s.Get(ctx, duelID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("duel accepted", "duel_id", d.ID, "ends_at", endsAt)
	s.publish(d)
	return d, nil
}

// Decline refuses a pending duel. Only the opponent may decline.
func (s *DuelService) Decline(ctx context.Context, actorID, duelID string) (*domain.Duel, error) {
	return s.close(ctx, actorID, duelID, domain.DuelDeclined,
		func(d *domain.Duel) string { return d.OpponentID }, "only the opponent can decline")
}

// Cancel withdraws a pending duel. Only the challenger may cancel.
func (s *DuelService) Cancel(ctx context.Context, actorID, duelID string) (*domain.Duel, error) {
	return s.close(ctx, actorID, duelID, domain.DuelCancelled,
		func(d *domain.Duel) string { return d.ChallengerID }, "only the challenger can cancel")
}

func (s *DuelService) close(ctx context.Context, actorID, duelID string, to domain.DuelStatus, allowed func(*domain.Duel) string, denied string) (*domain.Duel, error) {
	d, err := s.pendingFor(ctx, duelID, actorID, allowed, denied)
	if err != nil {
		return nil, err
	}
	if err := s.store.ClosePendingDuel(ctx, d.ID, to, s.now()); err != nil {
		return nil, translate(err, "duel")
	}

	d, err = s.Get(ctx, duelID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("duel closed", "duel_id", d.ID, "status", d.Status, "by", actorID)
	s.publish(d)
	return d, nil
}

// pendingFor loads a duel and checks the actor before the state, so a
// stranger gets Forbidden rather than learning the duel's status.
func (s *DuelService) pendingFor(ctx context.Context, duelID, actorID string, allowed func(*domain.Duel) string, denied string) (*domain.Duel, error) {
	if actorID == "" {
		return nil, domainerrors.Validation("actor is required")
	}
	d, err := s.Get(ctx, duelID)
	if err != nil {
		return nil, err
	}
	if allowed(d) != actorID {
		return nil, domainerrors.Forbidden(denied)
	}
	if d.Status != domain.DuelPending {
		return nil, domainerrors.Conflictf("duel is %s, not pending", d.Status)
	}
	return d, nil
}

// Finalize completes an expired active duel with the same tie rule as
// competitions. Finalizing a completed duel returns it unchanged.
func (s *DuelService) Finalize(ctx context.Context, duelID string, now time.Time) (*domain.Duel, error) {
	d, err := s.Get(ctx, duelID)
	if err != nil {
		return nil, err
	}
	switch {
	case d.Status == domain.DuelCompleted:
		return d, nil
	case d.Status != domain.DuelActive:
		return nil, domainerrors.Conflictf("duel is %s, not active", d.Status)
	case d.EndsAt == nil || d.EndsAt.After(now):
		return nil, domainerrors.Conflict("duel has not ended yet")
	}

	done, err := s.store.FinalizeDuel(ctx, duelID, now)
	if errors.Is(err, store.ErrStateChanged) {
		current, getErr := s.Get(ctx, duelID)
		if getErr == nil && current.Status == domain.DuelCompleted {
			return current, nil
		}
		return nil, translate(err, "duel")
	}
	if err != nil {
		return nil, translate(err, "duel")
	}

	s.metrics.DuelsFinalized.WithLabelValues(metrics.Result(done.WinnerID)).Inc()
	s.logger.Info("duel finalized",
		"duel_id", done.ID,
		"challenger_score", done.ChallengerScore,
		"opponent_score", done.OpponentScore,
		"tie", done.WinnerID == nil,
	)
	s.announceResult(ctx, done)
	return done, nil
}

// FinalizeExpired finalizes every active duel whose end has passed, logging
// and counting failures.
func (s *DuelService) FinalizeExpired(ctx context.Context, now time.Time) (FinalizeSummary, error) {
	expired, err := s.store.ListExpiredDuels(ctx, now)
	if err != nil {
		return FinalizeSummary{}, fmt.Errorf("listing expired duels: %w", err)
	}

	summary := FinalizeSummary{Expired: len(expired)}
	for _, d := range expired {
		if _, err := s.Finalize(ctx, d.ID, now); err != nil {
			summary.Failed++
			s.logger.Error("failed to finalize duel", "duel_id", d.ID, "error", err)
			continue
		}
		summary.Finalized++
	}
	return summary, nil
}

// RefreshScores recomputes userID's score in each of their active duels.
// A duel that closed in the meantime is skipped.
func (s *DuelService) RefreshScores(ctx context.Context, userID string) error {
	duels, err := s.store.ListActiveDuelsForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("listing active duels: %w", err)
	}

	var errs []error
	for _, d := range duels {
		if d.StartedAt == nil || d.EndsAt == nil {
			continue
		}
		if err := s.refreshScore(ctx, d.ID, d.Type, userID, *d.StartedAt, *d.EndsAt); err != nil {
			errs = append(errs, fmt.Errorf("duel %s: %w", d.ID, err))
		}
	}
	return errors.Join(errs...)
}

// refreshScore writes one participant's score: workout days inside the duel
// window for workout_count duels, the running streak for streak duels.
func (s *DuelService) refreshScore(ctx context.Context, duelID string, typ domain.DuelType, userID string, startedAt, endsAt time.Time) error {
	var score int64
	switch typ {
	case domain.DuelWorkoutCount:
		n, err := s.store.CountWorkoutDays(ctx, userID, startedAt, endsAt)
		if err != nil {
			return err
		}
		score = n
	case domain.DuelStreak:
		u, err := s.store.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		score = int64(u.CurrentStreak)
	}

	err := s.store.SetDuelScore(ctx, duelID, userID, score, s.now())
	if errors.Is(err, store.ErrStateChanged) {
		return nil
	}
	return err
}

// Get returns a duel by ID.
func (s *DuelService) Get(ctx context.Context, duelID string) (*domain.Duel, error) {
	if duelID == "" {
		return nil, domainerrors.Validation("duel id is required")
	}
	d, err := s.store.GetDuel(ctx, duelID)
	if err != nil {
		return nil, translate(err, "duel")
	}
	return d, nil
}

// ListForUser returns every duel the user takes part in, newest first.
func (s *DuelService) ListForUser(ctx context.Context, userID string) ([]*domain.Duel, error) {
	if userID == "" {
		return nil, domainerrors.Validation("user id is required")
	}
	list, err := s.store.ListDuelsForUser(ctx, userID)
	if err != nil {
		return nil, translate(err, "duels")
	}
	return list, nil
}

func (s *DuelService) publish(d *domain.Duel) {
	if s.announcer == nil {
		return
	}
	s.announcer.Publish(sse.NewDuelEvent(d.ChallengerID, d))
	s.announcer.Publish(sse.NewDuelEvent(d.OpponentID, d))
}

func (s *DuelService) announceResult(ctx context.Context, d *domain.Duel) {
	if s.announcer == nil {
		return
	}
	for _, userID := range []string{d.ChallengerID, d.OpponentID} {
		title := "Your duel ended in a tie"
		if d.WinnerID != nil {
			title = "You lost your duel"
			if *d.WinnerID == userID {
				title = "You won your duel"
			}
		}
		a := newAnnouncement(userID, domain.AnnouncementDuelCompleted, title, map[string]any{
			"duel_id":          d.ID,
			"type":             d.Type,
			"challenger_id":    d.ChallengerID,
			"opponent_id":      d.OpponentID,
			"challenger_score": d.ChallengerScore,
			"opponent_score":   d.OpponentScore,
			"winner_id":        d.WinnerID,
		})
		if err := s.announcer.Announce(ctx, a); err != nil {
			s.logger.Warn("failed to announce duel result", "duel_id", d.ID, "user_id", userID, "error", err)
		}
	}
	s.publish(d)
}
