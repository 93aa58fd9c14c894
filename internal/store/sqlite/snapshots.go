package sqlite

import (
	"context"
	"fmt"

	"github.com/ironcrew/ironcrew-server/internal/domain"
)

// GetSnapshot returns the last recorded rank of a user for (scope, period).
// Returns store.ErrNotFound if none was recorded.
func (s *Store) GetSnapshot(ctx context.Context, userID, scope, period string) (*domain.LeaderboardSnapshot, error) {
	var (
		snap      domain.LeaderboardSnapshot
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, scope, period, rank, points, updated_at
		FROM leaderboard_snapshots
		WHERE user_id = ? AND scope = ? AND period = ?`,
		userID, scope, period,
	).Scan(&snap.UserID, &snap.Scope, &snap.Period, &snap.Rank, &snap.Points, &updatedAt)
	if err != nil {
		return nil, notFound(err, "snapshot not found")
	}
	if snap.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &snap, nil
}

// UpsertSnapshot records a user's current rank for (scope, period).
func (s *Store) UpsertSnapshot(ctx context.Context, snap *domain.LeaderboardSnapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leaderboard_snapshots (user_id, scope, period, rank, points, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, scope, period) DO UPDATE SET
			rank = excluded.rank,
			points = excluded.points,
			updated_at = excluded.updated_at`,
		snap.UserID, snap.Scope, snap.Period, snap.Rank, snap.Points, formatTime(snap.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}
