package domain

import "time"

// GroupRole is a member's role inside a group.
type GroupRole string

// Group roles.
const (
	GroupRoleOwner  GroupRole = "owner"
	GroupRoleAdmin  GroupRole = "admin"
	GroupRoleMember GroupRole = "member"
)

// CanManage reports whether the role may act on behalf of the group
// (challenge, accept, cancel, queue and dequeue).
func (r GroupRole) CanManage() bool {
	return r == GroupRoleOwner || r == GroupRoleAdmin
}

// Group is a team of users that competes against other groups.
type Group struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// GroupMember links a user to a group with a role.
type GroupMember struct {
	GroupID  string    `json:"group_id"`
	UserID   string    `json:"user_id"`
	Role     GroupRole `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}
