package domain

// UserStats are the lifetime counters the scoring engines read.
// Streak is the running counter kept by the workout-logging path; leaderboards
// recompute their own period-bounded streak instead.
type UserStats struct {
	UserID          string `json:"user_id"`
	WorkoutsCount   int64  `json:"workouts_count"`
	Streak          int64  `json:"streak"`
	GroupsCount     int64  `json:"groups_count"`
	FriendsCount    int64  `json:"friends_count"`
	CompetitionWins int64  `json:"competition_wins"`
}

// SocialStats counts engagement received on a user's own workouts.
type SocialStats struct {
	ReactionsReceived int64 `json:"reactions_received"`
	CommentsReceived  int64 `json:"comments_received"`
}
