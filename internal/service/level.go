package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ironcrew/ironcrew-server/internal/domain"
	domainerrors "github.com/ironcrew/ironcrew-server/internal/errors"
	"github.com/ironcrew/ironcrew-server/internal/scoring"
)

// LevelStore is the data levels are derived from.
type LevelStore interface {
	GetLifetimeStats(ctx context.Context, userID string) (*domain.UserStats, error)
	CountUnlockedAchievements(ctx context.Context, userID string) (int, error)
}

// LevelService derives a user's level from lifetime stats and unlocked
// achievements. Nothing is persisted.
type LevelService struct {
	store   LevelStore
	weights scoring.XPWeights
	tiers   []domain.LevelTier
	logger  *slog.Logger
}

// NewLevelService creates a level service. tiers must be a valid level table.
func NewLevelService(store LevelStore, weights scoring.XPWeights, tiers []domain.LevelTier, logger *slog.Logger) (*LevelService, error) {
	if err := scoring.ValidateTiers(tiers); err != nil {
		return nil, fmt.Errorf("invalid level table: %w", err)
	}
	return &LevelService{
		store:   store,
		weights: weights,
		tiers:   tiers,
		logger:  logger,
	}, nil
}

// LevelForUser returns the user's current level.
func (s *LevelService) LevelForUser(ctx context.Context, userID string) (domain.UserLevel, error) {
	if userID == "" {
		return domain.UserLevel{}, domainerrors.Validation("user id is required")
	}

	stats, err := s.store.GetLifetimeStats(ctx, userID)
	if err != nil {
		return domain.UserLevel{}, translate(err, "user")
	}
	unlocked, err := s.store.CountUnlockedAchievements(ctx, userID)
	if err != nil {
		return domain.UserLevel{}, translate(err, "unlocked achievements")
	}

	return s.LevelFromStats(*stats, unlocked), nil
}

// LevelFromStats derives a level without touching the store.
func (s *LevelService) LevelFromStats(stats domain.UserStats, unlockedAchievements int) domain.UserLevel {
	return scoring.LevelFromXP(scoring.XP(stats, unlockedAchievements, s.weights), s.tiers)
}
