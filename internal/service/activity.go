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
	"github.com/ironcrew/ironcrew-server/internal/scoring"
)

// ActivityStore is the data the workout-logging pipeline reads and writes.
type ActivityStore interface {
	CreateWorkout(ctx context.Context, w *domain.Workout) (int, error)
	GetWorkoutDates(ctx context.Context, userID string, from, to time.Time) ([]time.Time, error)
	ListUserGroupIDs(ctx context.Context, userID string) ([]string, error)
	ListActiveCompetitionsForGroups(ctx context.Context, groupIDs []string) ([]*domain.GroupCompetition, error)
}

// ActivityDeps are the engines a logged workout feeds.
type ActivityDeps struct {
	Leaderboard  ActivityInvalidator
	Competitions *CompetitionService
	Duels        *DuelService
	Achievements *AchievementService
	Levels       *LevelService
	Announcer    Announcer
	Metrics      *metrics.Metrics
	// WorkoutPoints is credited to competitions per logged workout.
	WorkoutPoints int64
}

// LogWorkoutResult is everything a workout triggered.
type LogWorkoutResult struct {
	Workout       *domain.Workout       `json:"workout"`
	Streak        int                   `json:"streak"`
	NewlyUnlocked []UnlockedAchievement `json:"newly_unlocked"`
	Level         domain.UserLevel      `json:"level"`
	LeveledUp     bool                  `json:"leveled_up"`
}

// ActivityService is the entry point for activity events. Logging a workout
// runs the whole gamification pipeline; only the workout insert itself can
// fail the call.
type ActivityService struct {
	store  ActivityStore
	deps   ActivityDeps
	logger *slog.Logger
	now    func() time.Time
}

// NewActivityService creates a new activity service.
func NewActivityService(store ActivityStore, deps ActivityDeps, logger *slog.Logger) *ActivityService {
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNoop()
	}
	if deps.WorkoutPoints <= 0 {
		deps.WorkoutPoints = scoring.DefaultPointsEngine().WorkoutWeight
	}
	return &ActivityService{
		store:  store,
		deps:   deps,
		logger: logger,
		now:    time.Now,
	}
}

// LogWorkout records a workout for day (today when zero) and feeds it to
// leaderboards, competitions, duels, achievements and levels.
func (s *ActivityService) LogWorkout(ctx context.Context, userID string, day time.Time) (*LogWorkoutResult, error) {
	if userID == "" {
		return nil, domainerrors.Validation("user id is required")
	}
	now := s.now()
	if day.IsZero() {
		day = now
	}
	day = domain.Day(day)
	if day.After(domain.Day(now)) {
		return nil, domainerrors.Validation("cannot log a workout in the future")
	}

	// An unknown user is the only level failure that stops the workout.
	before, err := s.deps.Levels.LevelForUser(ctx, userID)
	levelKnown := err == nil
	if errors.Is(err, domainerrors.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		s.logger.Warn("failed to derive level before workout, skipping level-up check",
			"user_id", userID, "error", err)
	}

	workoutID, err := id.Generate(id.PrefixWorkout)
	if err != nil {
		return nil, fmt.Errorf("generate workout ID: %w", err)
	}
	w := &domain.Workout{ID: workoutID, UserID: userID, Date: day, CreatedAt: now}

	streak, err := s.store.CreateWorkout(ctx, w)
	if err != nil {
		return nil, translate(err, "workout")
	}
	s.deps.Metrics.WorkoutsLogged.Inc()
	s.logger.Info("workout logged", "user_id", userID, "day", domain.FormatDay(day), "streak", streak)

	if s.deps.Leaderboard != nil {
		s.deps.Leaderboard.InvalidateActivity()
	}

	s.creditCompetitions(ctx, userID, day)

	if err := s.deps.Duels.RefreshScores(ctx, userID); err != nil {
		s.logger.Warn("failed to refresh duel scores", "user_id", userID, "error", err)
	}

	result := &LogWorkoutResult{Workout: w, Streak: streak, Level: before}

	// Achievement bookkeeping never fails the workout.
	unlocked, err := s.deps.Achievements.Evaluate(ctx, userID)
	if err != nil {
		s.logger.Error("achievement evaluation failed", "user_id", userID, "error", err)
	}
	result.NewlyUnlocked = unlocked
	for _, u := range unlocked {
		s.celebrate(ctx, userID, u)
	}

	after, err := s.deps.Levels.LevelForUser(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to derive level after workout", "user_id", userID, "error", err)
		return result, nil
	}
	result.Level = after
	result.LeveledUp = levelKnown && scoring.LeveledUp(before, after)
	if result.LeveledUp {
		s.announce(ctx, newAnnouncement(userID, domain.AnnouncementLevelUp,
			"You reached "+after.Name, map[string]any{
				"from_tier": before.Tier,
				"to_tier":   after.Tier,
				"name":      after.Name,
				"xp":        after.XP,
			}))
	}

	return result, nil
}

// MaxHistoryDays bounds a workout history window.
const MaxHistoryDays = 366

// WorkoutHistory is the days a user logged a workout inside [From, To].
type WorkoutHistory struct {
	From string   `json:"from" example:"2026-10-01"`
	To   string   `json:"to" example:"2026-10-19"`
	Days []string `json:"days"`
}

// WorkoutHistory lists userID's workout days between from and to, inclusive.
// A zero to means today; a zero from means the first day of to's month.
func (s *ActivityService) WorkoutHistory(ctx context.Context, userID string, from, to time.Time) (*WorkoutHistory, error) {
	if userID == "" {
		return nil, domainerrors.Validation("user id is required")
	}
	if to.IsZero() {
		to = s.now()
	}
	to = domain.Day(to)
	if from.IsZero() {
		from = domain.MonthPeriod(to).FirstDay()
	}
	from = domain.Day(from)

	if from.After(to) {
		return nil, domainerrors.Validation("from must not be after to")
	}
	if to.Sub(from) >= MaxHistoryDays*24*time.Hour {
		return nil, domainerrors.Validationf("history window is limited to %d days", MaxHistoryDays)
	}

	dates, err := s.store.GetWorkoutDates(ctx, userID, from, to)
	if err != nil {
		return nil, translate(err, "workout dates")
	}

	h := &WorkoutHistory{
		From: domain.FormatDay(from),
		To:   domain.FormatDay(to),
		Days: make([]string, len(dates)),
	}
	for i, d := range dates {
		h.Days[i] = domain.FormatDay(d)
	}
	return h, nil
}

// creditCompetitions adds one workout's points to every active competition of
// the user's groups whose window contains day. A user in both competing
// groups is credited to the first group.
func (s *ActivityService) creditCompetitions(ctx context.Context, userID string, day time.Time) {
	groupIDs, err := s.store.ListUserGroupIDs(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to list user groups", "user_id", userID, "error", err)
		return
	}
	comps, err := s.store.ListActiveCompetitionsForGroups(ctx, groupIDs)
	if err != nil {
		s.logger.Warn("failed to list active competitions", "user_id", userID, "error", err)
		return
	}

	mine := make(map[string]bool, len(groupIDs))
	for _, g := range groupIDs {
		mine[g] = true
	}

	for _, c := range comps {
		if c.StartedAt != nil && day.Before(domain.Day(*c.StartedAt)) {
			continue
		}
		if !day.Before(c.EndsAt) {
			continue
		}
		groupID := c.Group2ID
		if mine[c.Group1ID] {
			groupID = c.Group1ID
		}
		err := s.deps.Competitions.RecordContribution(ctx, c.ID, userID, groupID, s.deps.WorkoutPoints, 1)
		if err != nil {
			s.logger.Warn("failed to record contribution",
				"competition_id", c.ID,
				"user_id", userID,
				"group_id", groupID,
				"error", err,
			)
		}
	}
}

// celebrate announces an unlock and only then marks it notified, so a crash
// in between leaves it listed as unnotified.
func (s *ActivityService) celebrate(ctx context.Context, userID string, u UnlockedAchievement) {
	a := newAnnouncement(userID, domain.AnnouncementAchievementUnlocked,
		"Achievement unlocked: "+u.Definition.Title, map[string]any{
			"achievement_id": u.Definition.ID,
			"title":          u.Definition.Title,
			"progress":       u.Progress,
		})
	if !s.announce(ctx, a) {
		return
	}
	if err := s.deps.Achievements.MarkNotified(ctx, userID, u.Definition.ID); err != nil {
		s.logger.Warn("failed to mark achievement notified",
			"user_id", userID,
			"achievement_id", u.Definition.ID,
			"error", err,
		)
	}
}

func (s *ActivityService) announce(ctx context.Context, a *domain.Announcement) bool {
	if s.deps.Announcer == nil {
		return false
	}
	if err := s.deps.Announcer.Announce(ctx, a); err != nil {
		s.logger.Warn("failed to deliver announcement", "user_id", a.UserID, "kind", a.Kind, "error", err)
		return false
	}
	return true
}
