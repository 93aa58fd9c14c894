package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ironcrew/ironcrew-server/internal/domain"
)

// CreateGroup inserts a group and makes its owner a member with the owner role.
func (s *Store) CreateGroup(ctx context.Context, g *domain.Group) error {
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now()
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO user_groups (id, name, owner_id, created_at)
			VALUES (?, ?, ?, ?)`,
			g.ID, g.Name, g.OwnerID, formatTime(g.CreatedAt))
		if err != nil {
			return uniqueOr(err, "group already exists")
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO group_members (group_id, user_id, role, joined_at)
			VALUES (?, ?, ?, ?)`,
			g.ID, g.OwnerID, string(domain.GroupRoleOwner), formatTime(g.CreatedAt))
		return err
	})
}

// GetGroup retrieves a group by ID.
// Returns store.ErrNotFound if the group does not exist.
func (s *Store) GetGroup(ctx context.Context, id string) (*domain.Group, error) {
	var (
		g         domain.Group
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, owner_id, created_at FROM user_groups WHERE id = ?`, id,
	).Scan(&g.ID, &g.Name, &g.OwnerID, &createdAt)
	if err != nil {
		return nil, notFound(err, "group not found")
	}

	g.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// AddGroupMember adds userID to a group with the given role.
// Returns store.ErrAlreadyExists if the user is already a member.
func (s *Store) AddGroupMember(ctx context.Context, groupID, userID string, role domain.GroupRole) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO group_members (group_id, user_id, role, joined_at)
		VALUES (?, ?, ?, ?)`,
		groupID, userID, string(role), formatTime(time.Now()))
	return uniqueOr(err, "already a member")
}

// GetGroupMembers lists a group's members ordered by user ID.
func (s *Store) GetGroupMembers(ctx context.Context, groupID string) ([]*domain.GroupMember, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT group_id, user_id, role, joined_at
		FROM group_members
		WHERE group_id = ?
		ORDER BY user_id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("query group members: %w", err)
	}
	defer rows.Close()

	var members []*domain.GroupMember
	for rows.Next() {
		var (
			m        domain.GroupMember
			role     string
			joinedAt string
		)
		if err := rows.Scan(&m.GroupID, &m.UserID, &role, &joinedAt); err != nil {
			return nil, err
		}
		m.Role = domain.GroupRole(role)
		if m.JoinedAt, err = parseTime(joinedAt); err != nil {
			return nil, err
		}
		members = append(members, &m)
	}
	return members, rows.Err()
}

// GetMemberRole returns userID's role in a group.
// Returns store.ErrNotFound if the user is not a member.
func (s *Store) GetMemberRole(ctx context.Context, groupID, userID string) (domain.GroupRole, error) {
	var role string
	err := s.db.QueryRowContext(ctx,
		`SELECT role FROM group_members WHERE group_id = ? AND user_id = ?`, groupID, userID,
	).Scan(&role)
	if err != nil {
		return "", notFound(err, "not a group member")
	}
	return domain.GroupRole(role), nil
}

// ListUserGroupIDs returns the groups userID belongs to.
func (s *Store) ListUserGroupIDs(ctx context.Context, userID string) ([]string, error) {
	return s.queryIDs(ctx,
		`SELECT group_id FROM group_members WHERE user_id = ? ORDER BY group_id`, userID)
}

// ListGroupmateIDs returns every user sharing at least one group with userID,
// including userID itself when it belongs to any group.
func (s *Store) ListGroupmateIDs(ctx context.Context, userID string) ([]string, error) {
	return s.queryIDs(ctx, `
		SELECT DISTINCT other.user_id
		FROM group_members mine
		JOIN group_members other ON other.group_id = mine.group_id
		WHERE mine.user_id = ?
		ORDER BY other.user_id`, userID)
}
