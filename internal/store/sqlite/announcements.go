package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ironcrew/ironcrew-server/internal/domain"
)

// CreateAnnouncement persists a feed announcement.
func (s *Store) CreateAnnouncement(ctx context.Context, a *domain.Announcement) error {
	var payload sql.NullString
	if len(a.Payload) > 0 {
		payload = sql.NullString{String: string(a.Payload), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO announcements (id, user_id, kind, title, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, string(a.Kind), a.Title, payload, formatTime(a.CreatedAt))
	return uniqueOr(err, "announcement already exists")
}

// ListAnnouncements returns a user's most recent announcements, newest first.
func (s *Store) ListAnnouncements(ctx context.Context, userID string, limit int) ([]*domain.Announcement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, kind, title, payload, created_at
		FROM announcements
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query announcements: %w", err)
	}
	defer rows.Close()

	var out []*domain.Announcement
	for rows.Next() {
		var (
			a         domain.Announcement
			kind      string
			payload   sql.NullString
			createdAt string
		)
		if err := rows.Scan(&a.ID, &a.UserID, &kind, &a.Title, &payload, &createdAt); err != nil {
			return nil, err
		}
		a.Kind = domain.AnnouncementKind(kind)
		if payload.Valid {
			a.Payload = []byte(payload.String)
		}
		if a.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
