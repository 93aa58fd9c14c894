package domain

import "time"

// LeaderboardScope restricts the candidate users of a leaderboard.
type LeaderboardScope string

// Leaderboard scopes.
const (
	ScopeGlobal  LeaderboardScope = "global"
	ScopeFriends LeaderboardScope = "friends"
	ScopeGroups  LeaderboardScope = "groups"
)

// Valid returns true if the scope is a recognized value.
func (s LeaderboardScope) Valid() bool {
	switch s {
	case ScopeGlobal, ScopeFriends, ScopeGroups:
		return true
	default:
		return false
	}
}

// SnapshotKey names the scope in snapshot storage. A groups leaderboard for
// one named group gets its own key so movement is tracked per group.
func (s LeaderboardScope) SnapshotKey(groupID string) string {
	if s == ScopeGroups && groupID != "" {
		return string(s) + ":" + groupID
	}
	return string(s)
}

// LeaderboardRow is one ranked user for a (scope, period).
type LeaderboardRow struct {
	Rank            int     `json:"rank"`
	UserID          string  `json:"user_id"`
	DisplayName     string  `json:"display_name"`
	AvatarURL       *string `json:"avatar_url,omitempty"`
	WorkoutsCount   int64   `json:"workouts_count"`
	Streak          int64   `json:"streak"`
	CompetitionWins int64   `json:"competition_wins"`
	Points          int64   `json:"points"`
	PointsLabel     string  `json:"points_label"`
	IsCurrentUser   bool    `json:"is_current_user"`
	// RankChange is positive when the user climbed since their last view.
	// Nil when there is nothing to compare against.
	RankChange *int `json:"rank_change,omitempty"`
}

// Leaderboard is the result of a leaderboard query. MyRow is set only when the
// caller ranked outside the returned rows.
type Leaderboard struct {
	Scope     LeaderboardScope  `json:"scope"`
	GroupID   string            `json:"group_id,omitempty"`
	Period    string            `json:"period"`
	Rows      []*LeaderboardRow `json:"rows"`
	MyRow     *LeaderboardRow   `json:"my_row,omitempty"`
	TotalRows int               `json:"total_rows"`
}

// LeaderboardSnapshot remembers a user's rank for a (scope, period) so the
// next view can show movement. One row per (user, scope, period).
type LeaderboardSnapshot struct {
	UserID    string    `json:"user_id"`
	Scope     string    `json:"scope"`
	Period    string    `json:"period"`
	Rank      int       `json:"rank"`
	Points    int64     `json:"points"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PeriodActivity is the raw aggregation a leaderboard is built from.
type PeriodActivity struct {
	Period string `json:"period"`
	// WorkoutDays maps user ID to the distinct in-period days they logged.
	WorkoutDays map[string][]string `json:"workout_days"`
	// Wins maps user ID to completed competitions won by their current groups.
	Wins map[string]int64 `json:"wins"`
}
