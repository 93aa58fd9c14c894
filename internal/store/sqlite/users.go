package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ironcrew/ironcrew-server/internal/domain"
)

// userColumns is the ordered list of columns selected in user queries.
// Must match the scan order in scanUser.
const userColumns = `id, display_name, avatar_url, current_streak, last_workout_date, created_at`

func scanUser(sc scanner) (*domain.User, error) {
	var (
		u         domain.User
		avatarURL sql.NullString
		lastDay   sql.NullString
		createdAt string
	)
	if err := sc.Scan(&u.ID, &u.DisplayName, &avatarURL, &u.CurrentStreak, &lastDay, &createdAt); err != nil {
		return nil, err
	}

	u.AvatarURL = stringPtr(avatarURL)
	if lastDay.Valid {
		d, err := domain.ParseDay(lastDay.String)
		if err != nil {
			return nil, fmt.Errorf("parse last_workout_date: %w", err)
		}
		u.LastWorkoutDate = &d
	}

	var err error
	u.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a user profile.
// Returns store.ErrAlreadyExists if the ID is taken.
func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}

	var lastDay sql.NullString
	if u.LastWorkoutDate != nil {
		lastDay = sql.NullString{String: domain.FormatDay(*u.LastWorkoutDate), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.DisplayName, nullableString(u.AvatarURL), u.CurrentStreak, lastDay, formatTime(u.CreatedAt))
	return uniqueOr(err, "user already exists")
}

// GetUser retrieves a user by ID.
// Returns store.ErrNotFound if the user does not exist.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFound(err, "user not found")
	}
	return u, nil
}

// GetUsersByIDs returns the users with the given IDs keyed by ID.
// Unknown IDs are absent from the map.
func (s *Store) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	out := make(map[string]*domain.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out[u.ID] = u
	}
	return out, rows.Err()
}

// ListUserIDs returns every user ID in ascending order.
func (s *Store) ListUserIDs(ctx context.Context) ([]string, error) {
	return s.queryIDs(ctx, `SELECT id FROM users ORDER BY id`)
}

// CreateFriendship records a friendship between two users.
func (s *Store) CreateFriendship(ctx context.Context, requesterID, addresseeID string, status domain.FriendshipStatus) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO friendships (requester_id, addressee_id, status, created_at)
		VALUES (?, ?, ?, ?)`,
		requesterID, addresseeID, string(status), formatTime(time.Now()))
	return uniqueOr(err, "friendship already exists")
}

// GetFriendIDs returns the IDs of users with an accepted friendship with
// userID, in either direction.
func (s *Store) GetFriendIDs(ctx context.Context, userID string) ([]string, error) {
	return s.queryIDs(ctx, `
		SELECT addressee_id FROM friendships WHERE requester_id = ? AND status = 'accepted'
		UNION
		SELECT requester_id FROM friendships WHERE addressee_id = ? AND status = 'accepted'
		ORDER BY 1`, userID, userID)
}

// GetLifetimeStats derives the counters used by XP and achievements.
// Returns store.ErrNotFound if the user does not exist.
func (s *Store) GetLifetimeStats(ctx context.Context, userID string) (*domain.UserStats, error) {
	stats := &domain.UserStats{UserID: userID}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			u.current_streak,
			(SELECT COUNT(*) FROM workouts w WHERE w.user_id = u.id),
			(SELECT COUNT(*) FROM group_members gm WHERE gm.user_id = u.id),
			(SELECT COUNT(*) FROM friendships f
				WHERE f.status = 'accepted' AND (f.requester_id = u.id OR f.addressee_id = u.id)),
			(SELECT COUNT(*) FROM group_competitions c
				WHERE c.status = 'completed'
				  AND c.winner_group_id IN (SELECT group_id FROM group_members WHERE user_id = u.id))
		FROM users u
		WHERE u.id = ?`, userID).Scan(
		&stats.Streak,
		&stats.WorkoutsCount,
		&stats.GroupsCount,
		&stats.FriendsCount,
		&stats.CompetitionWins,
	)
	if err != nil {
		return nil, notFound(err, "user not found")
	}
	return stats, nil
}

// GetSocialStats counts reactions and comments received on userID's workouts.
func (s *Store) GetSocialStats(ctx context.Context, userID string) (*domain.SocialStats, error) {
	var stats domain.SocialStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM reactions r JOIN workouts w ON w.id = r.workout_id WHERE w.user_id = ?),
			(SELECT COUNT(*) FROM comments c JOIN workouts w ON w.id = c.workout_id WHERE w.user_id = ?)`,
		userID, userID).Scan(&stats.ReactionsReceived, &stats.CommentsReceived)
	if err != nil {
		return nil, fmt.Errorf("query social stats: %w", err)
	}
	return &stats, nil
}

// queryIDs runs a single-column query and collects the values.
func (s *Store) queryIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
