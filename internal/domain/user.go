package domain

import "time"

// User is the slice of a user profile the engine reads. Profiles are owned by
// the account service; only the running streak is written here.
type User struct {
	ID              string     `json:"id"`
	DisplayName     string     `json:"display_name"`
	AvatarURL       *string    `json:"avatar_url,omitempty"`
	CurrentStreak   int        `json:"current_streak"`
	LastWorkoutDate *time.Time `json:"last_workout_date,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Workout is one logged workout. A user logs at most one per calendar day.
type Workout struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Date      time.Time `json:"date"` // UTC calendar day
	CreatedAt time.Time `json:"created_at"`
}

// FriendshipStatus is the state of a friend request.
type FriendshipStatus string

// Friendship statuses.
const (
	FriendshipPending  FriendshipStatus = "pending"
	FriendshipAccepted FriendshipStatus = "accepted"
)
