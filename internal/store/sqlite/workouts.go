package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ironcrew/ironcrew-server/internal/domain"
	"github.com/ironcrew/ironcrew-server/internal/scoring"
)

// CreateWorkout logs a workout and advances the user's running streak in the
// same transaction. It returns the streak after the update.
// Returns store.ErrAlreadyExists if the user already logged that day and
// store.ErrNotFound if the user does not exist.
func (s *Store) CreateWorkout(ctx context.Context, w *domain.Workout) (int, error) {
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now()
	}
	w.Date = domain.Day(w.Date)
	day := domain.FormatDay(w.Date)

	var streak int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var (
			current int
			lastDay sql.NullString
		)
		err := tx.QueryRowContext(ctx,
			`SELECT current_streak, last_workout_date FROM users WHERE id = ?`, w.UserID,
		).Scan(&current, &lastDay)
		if err != nil {
			return notFound(err, "user not found")
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO workouts (id, user_id, workout_date, created_at)
			VALUES (?, ?, ?, ?)`,
			w.ID, w.UserID, day, formatTime(w.CreatedAt))
		if err != nil {
			return uniqueOr(err, "workout already logged for this day")
		}

		var last *time.Time
		if lastDay.Valid {
			d, err := domain.ParseDay(lastDay.String)
			if err != nil {
				return fmt.Errorf("parse last_workout_date: %w", err)
			}
			last = &d
		}

		// A backfilled day older than the last workout leaves the streak alone.
		if last != nil && w.Date.Before(*last) {
			streak = current
			return nil
		}

		streak = scoring.NextRunningStreak(current, last, w.Date)
		_, err = tx.ExecContext(ctx,
			`UPDATE users SET current_streak = ?, last_workout_date = ? WHERE id = ?`,
			streak, day, w.UserID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return streak, nil
}

// GetWorkoutDates returns the distinct days userID logged a workout in
// [from, to], ascending.
func (s *Store) GetWorkoutDates(ctx context.Context, userID string, from, to time.Time) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT workout_date FROM workouts
		WHERE user_id = ? AND workout_date >= ? AND workout_date <= ?
		ORDER BY workout_date`,
		userID, domain.FormatDay(from), domain.FormatDay(to))
	if err != nil {
		return nil, fmt.Errorf("query workout dates: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var day string
		if err := rows.Scan(&day); err != nil {
			return nil, err
		}
		d, err := domain.ParseDay(day)
		if err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// ListWorkoutDays returns, per user, the distinct days logged inside period.
func (s *Store) ListWorkoutDays(ctx context.Context, period domain.Period) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, workout_date FROM workouts
		WHERE workout_date >= ? AND workout_date <= ?
		ORDER BY user_id, workout_date`,
		domain.FormatDay(period.FirstDay()), domain.FormatDay(period.LastDay()))
	if err != nil {
		return nil, fmt.Errorf("query workout days: %w", err)
	}
	defer rows.Close()

	days := make(map[string][]string)
	for rows.Next() {
		var userID, day string
		if err := rows.Scan(&userID, &day); err != nil {
			return nil, err
		}
		days[userID] = append(days[userID], day)
	}
	return days, rows.Err()
}

// CountWorkoutDays counts the days userID logged in [from, to).
func (s *Store) CountWorkoutDays(ctx context.Context, userID string, from, to time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM workouts
		WHERE user_id = ? AND workout_date >= ? AND workout_date < ?`,
		userID, domain.FormatDay(from), domain.FormatDay(to),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count workout days: %w", err)
	}
	return n, nil
}

// AddReaction records userID reacting to a workout.
// Returns store.ErrAlreadyExists if the user already reacted.
func (s *Store) AddReaction(ctx context.Context, id, workoutID, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reactions (id, workout_id, user_id, created_at)
		VALUES (?, ?, ?, ?)`,
		id, workoutID, userID, formatTime(time.Now()))
	return uniqueOr(err, "already reacted")
}

// AddComment records a comment on a workout.
func (s *Store) AddComment(ctx context.Context, id, workoutID, userID, body string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (id, workout_id, user_id, body, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		id, workoutID, userID, body, formatTime(time.Now()))
	return err
}
