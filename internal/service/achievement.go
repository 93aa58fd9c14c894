package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ironcrew/ironcrew-server/internal/achievements"
	"github.com/ironcrew/ironcrew-server/internal/domain"
	domainerrors "github.com/ironcrew/ironcrew-server/internal/errors"
	"github.com/ironcrew/ironcrew-server/internal/metrics"
	"github.com/ironcrew/ironcrew-server/internal/store"
)

// AchievementStore is the data the achievement rule engine reads and writes.
type AchievementStore interface {
	StatsReader
	GetUserAchievement(ctx context.Context, userID, achievementID string) (*domain.UserAchievement, error)
	ListUserAchievements(ctx context.Context, userID string) ([]*domain.UserAchievement, error)
	ListUnnotifiedAchievements(ctx context.Context, userID string) ([]*domain.UserAchievement, error)
	InsertUserAchievement(ctx context.Context, ua *domain.UserAchievement) (bool, error)
	UnlockUserAchievement(ctx context.Context, userID, achievementID string, progress int64, now time.Time) (bool, error)
	UpdateAchievementProgress(ctx context.Context, userID, achievementID string, progress int64, now time.Time) error
	MarkAchievementNotified(ctx context.Context, userID, achievementID string, now time.Time) (bool, error)
}

// UnlockedAchievement is an achievement unlocked by one Evaluate call.
type UnlockedAchievement struct {
	Definition domain.AchievementDefinition `json:"definition"`
	Progress   int64                        `json:"progress"`
	UnlockedAt time.Time                    `json:"unlocked_at"`
}

// AchievementService evaluates the achievement catalog against user stats.
//
// Evaluate is idempotent and safe to run concurrently for the same user: the
// store only flips a row to unlocked once, and only the caller whose write
// did the flip reports the unlock.
type AchievementService struct {
	store   AchievementStore
	catalog *achievements.Catalog
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewAchievementService creates a new achievement service.
func NewAchievementService(store AchievementStore, catalog *achievements.Catalog, m *metrics.Metrics, logger *slog.Logger) *AchievementService {
	if m == nil {
		m = metrics.NewNoop()
	}
	return &AchievementService{
		store:   store,
		catalog: catalog,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Evaluate recomputes progress for every stat-keyed achievement and returns
// the ones this call unlocked. Achievements measured on anything other than
// a stat key are skipped.
func (s *AchievementService) Evaluate(ctx context.Context, userID string) ([]UnlockedAchievement, error) {
	if userID == "" {
		return nil, domainerrors.Validation("user id is required")
	}

	values, err := s.statValues(ctx, userID)
	if err != nil {
		return nil, err
	}

	rows, err := s.store.ListUserAchievements(ctx, userID)
	if err != nil {
		return nil, translate(err, "user achievements")
	}
	existing := make(map[string]*domain.UserAchievement, len(rows))
	for _, r := range rows {
		existing[r.AchievementID] = r
	}

	now := s.now()
	var unlocked []UnlockedAchievement

	for _, def := range s.catalog.All() {
		if !def.RequirementType.IsStatKey() {
			continue
		}
		progress := values[def.RequirementType]
		reached := progress >= def.RequirementValue

		row, ok := existing[def.ID]
		if !ok {
			ua := &domain.UserAchievement{
				UserID:        userID,
				AchievementID: def.ID,
				ProgressValue: progress,
				Unlocked:      reached,
				UpdatedAt:     now,
			}
			if reached {
				ua.UnlockedAt = &now
			}
			inserted, err := s.store.InsertUserAchievement(ctx, ua)
			if err != nil {
				return nil, translate(err, "user achievement")
			}
			if inserted {
				if reached {
					unlocked = append(unlocked, s.unlocked(userID, def, progress, now))
				}
				continue
			}
			// A concurrent evaluation inserted first; continue from its row.
			row, err = s.store.GetUserAchievement(ctx, userID, def.ID)
			if err != nil {
				return nil, translate(err, "user achievement")
			}
		}

		if !row.Unlocked && reached {
			flipped, err := s.store.UnlockUserAchievement(ctx, userID, def.ID, progress, now)
			if err != nil {
				return nil, translate(err, "user achievement")
			}
			if flipped {
				unlocked = append(unlocked, s.unlocked(userID, def, progress, now))
			}
			continue
		}

		if row.ProgressValue != progress {
			if err := s.store.UpdateAchievementProgress(ctx, userID, def.ID, progress, now); err != nil {
				return nil, translate(err, "user achievement")
			}
		}
	}

	return unlocked, nil
}

func (s *AchievementService) unlocked(userID string, def domain.AchievementDefinition, progress int64, at time.Time) UnlockedAchievement {
	s.metrics.AchievementsUnlocked.WithLabelValues(def.ID).Inc()
	s.logger.Info("achievement unlocked",
		"user_id", userID,
		"achievement_id", def.ID,
		"progress", progress,
	)
	return UnlockedAchievement{Definition: def, Progress: progress, UnlockedAt: at}
}

func (s *AchievementService) statValues(ctx context.Context, userID string) (map[domain.RequirementType]int64, error) {
	stats, err := s.store.GetLifetimeStats(ctx, userID)
	if err != nil {
		return nil, translate(err, "user")
	}
	social, err := s.store.GetSocialStats(ctx, userID)
	if err != nil {
		return nil, translate(err, "social stats")
	}
	return map[domain.RequirementType]int64{
		domain.RequirementStreak:            stats.Streak,
		domain.RequirementWorkoutsCount:     stats.WorkoutsCount,
		domain.RequirementFriendsCount:      stats.FriendsCount,
		domain.RequirementReactionsReceived: social.ReactionsReceived,
		domain.RequirementCommentsReceived:  social.CommentsReceived,
	}, nil
}

// MarkNotified records that an unlock was celebrated. Calling it again is a
// no-op. Returns NotFound when the achievement is unknown or not unlocked.
func (s *AchievementService) MarkNotified(ctx context.Context, userID, achievementID string) error {
	if userID == "" || achievementID == "" {
		return domainerrors.Validation("user id and achievement id are required")
	}
	if _, ok := s.catalog.Get(achievementID); !ok {
		return domainerrors.NotFoundf("achievement %s not found", achievementID)
	}

	flipped, err := s.store.MarkAchievementNotified(ctx, userID, achievementID, s.now())
	if err != nil {
		return translate(err, "user achievement")
	}
	if flipped {
		return nil
	}

	row, err := s.store.GetUserAchievement(ctx, userID, achievementID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !row.Unlocked) {
		return domainerrors.NotFoundf("achievement %s is not unlocked", achievementID)
	}
	if err != nil {
		return translate(err, "user achievement")
	}
	return nil
}

// ListUnnotified returns achievements that are unlocked but not yet celebrated.
func (s *AchievementService) ListUnnotified(ctx context.Context, userID string) ([]domain.AchievementProgress, error) {
	if userID == "" {
		return nil, domainerrors.Validation("user id is required")
	}
	rows, err := s.store.ListUnnotifiedAchievements(ctx, userID)
	if err != nil {
		return nil, translate(err, "user achievements")
	}

	out := make([]domain.AchievementProgress, 0, len(rows))
	for _, r := range rows {
		def, ok := s.catalog.Get(r.AchievementID)
		if !ok {
			s.logger.Warn("achievement row without definition", "user_id", userID, "achievement_id", r.AchievementID)
			continue
		}
		out = append(out, progressOf(def, r))
	}
	return out, nil
}

// ListForUser returns the whole catalog with the user's progress, in catalog
// order. Achievements the user has no row for show zero progress.
func (s *AchievementService) ListForUser(ctx context.Context, userID string) ([]domain.AchievementProgress, error) {
	if userID == "" {
		return nil, domainerrors.Validation("user id is required")
	}
	rows, err := s.store.ListUserAchievements(ctx, userID)
	if err != nil {
		return nil, translate(err, "user achievements")
	}
	byID := make(map[string]*domain.UserAchievement, len(rows))
	for _, r := range rows {
		byID[r.AchievementID] = r
	}

	defs := s.catalog.All()
	out := make([]domain.AchievementProgress, 0, len(defs))
	for _, def := range defs {
		out = append(out, progressOf(def, byID[def.ID]))
	}
	return out, nil
}

func progressOf(def domain.AchievementDefinition, row *domain.UserAchievement) domain.AchievementProgress {
	p := domain.AchievementProgress{Definition: def}
	if row != nil {
		p.Progress = row.ProgressValue
		p.Unlocked = row.Unlocked
		p.UnlockedAt = row.UnlockedAt
		p.Notified = row.Notified
	}
	return p
}
