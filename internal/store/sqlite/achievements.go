package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ironcrew/ironcrew-server/internal/domain"
)

const userAchievementColumns = `user_id, achievement_id, progress_value, unlocked, unlocked_at, notified, updated_at`

func scanUserAchievement(sc scanner) (*domain.UserAchievement, error) {
	var (
		ua         domain.UserAchievement
		unlocked   int
		unlockedAt sql.NullString
		notified   int
		updatedAt  string
	)
	err := sc.Scan(&ua.UserID, &ua.AchievementID, &ua.ProgressValue, &unlocked, &unlockedAt, &notified, &updatedAt)
	if err != nil {
		return nil, err
	}
	ua.Unlocked = unlocked != 0
	ua.Notified = notified != 0
	if ua.UnlockedAt, err = parseNullableTime(unlockedAt); err != nil {
		return nil, err
	}
	if ua.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &ua, nil
}

// GetUserAchievement returns one achievement row.
// Returns store.ErrNotFound if the row has not been created yet.
func (s *Store) GetUserAchievement(ctx context.Context, userID, achievementID string) (*domain.UserAchievement, error) {
	ua, err := scanUserAchievement(s.db.QueryRowContext(ctx, `
		SELECT `+userAchievementColumns+` FROM user_achievements
		WHERE user_id = ? AND achievement_id = ?`, userID, achievementID))
	if err != nil {
		return nil, notFound(err, "achievement progress not found")
	}
	return ua, nil
}

// ListUserAchievements returns every achievement row of a user.
func (s *Store) ListUserAchievements(ctx context.Context, userID string) ([]*domain.UserAchievement, error) {
	return s.queryUserAchievements(ctx, `
		SELECT `+userAchievementColumns+` FROM user_achievements
		WHERE user_id = ? ORDER BY achievement_id`, userID)
}

// ListUnnotifiedAchievements returns the unlocked rows not yet celebrated.
func (s *Store) ListUnnotifiedAchievements(ctx context.Context, userID string) ([]*domain.UserAchievement, error) {
	return s.queryUserAchievements(ctx, `
		SELECT `+userAchievementColumns+` FROM user_achievements
		WHERE user_id = ? AND unlocked = 1 AND notified = 0
		ORDER BY unlocked_at, achievement_id`, userID)
}

// CountUnlockedAchievements counts a user's unlocked achievements.
func (s *Store) CountUnlockedAchievements(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_achievements WHERE user_id = ? AND unlocked = 1`, userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unlocked achievements: %w", err)
	}
	return n, nil
}

func (s *Store) queryUserAchievements(ctx context.Context, query string, args ...any) ([]*domain.UserAchievement, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query user achievements: %w", err)
	}
	defer rows.Close()

	var out []*domain.UserAchievement
	for rows.Next() {
		ua, err := scanUserAchievement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ua)
	}
	return out, rows.Err()
}

// InsertUserAchievement creates a row if none exists yet. It reports false
// when another writer created the row first.
func (s *Store) InsertUserAchievement(ctx context.Context, ua *domain.UserAchievement) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO user_achievements (`+userAchievementColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, achievement_id) DO NOTHING`,
		ua.UserID,
		ua.AchievementID,
		ua.ProgressValue,
		boolToInt(ua.Unlocked),
		nullTimeString(ua.UnlockedAt),
		boolToInt(ua.Notified),
		formatTime(ua.UpdatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("insert user achievement: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// UnlockUserAchievement flips a locked row to unlocked. It reports true only
// for the caller whose update actually unlocked the row.
func (s *Store) UnlockUserAchievement(ctx context.Context, userID, achievementID string, progress int64, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE user_achievements
		SET unlocked = 1, unlocked_at = ?, progress_value = ?, updated_at = ?
		WHERE user_id = ? AND achievement_id = ? AND unlocked = 0`,
		formatTime(now), progress, formatTime(now), userID, achievementID)
	if err != nil {
		return false, fmt.Errorf("unlock user achievement: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// UpdateAchievementProgress refreshes progress_value only.
func (s *Store) UpdateAchievementProgress(ctx context.Context, userID, achievementID string, progress int64, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE user_achievements
		SET progress_value = ?, updated_at = ?
		WHERE user_id = ? AND achievement_id = ?`,
		progress, formatTime(now), userID, achievementID)
	if err != nil {
		return fmt.Errorf("update achievement progress: %w", err)
	}
	return nil
}

// MarkAchievementNotified flips notified on an unlocked row. It reports true
// only the first time.
func (s *Store) MarkAchievementNotified(ctx context.Context, userID, achievementID string, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE user_achievements
		SET notified = 1, updated_at = ?
		WHERE user_id = ? AND achievement_id = ? AND unlocked = 1 AND notified = 0`,
		formatTime(now), userID, achievementID)
	if err != nil {
		return false, fmt.Errorf("mark achievement notified: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
