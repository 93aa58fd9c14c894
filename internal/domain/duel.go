package domain

import "time"

// DuelType is what a duel is scored on.
type DuelType string

// Duel types.
const (
	DuelStreak       DuelType = "streak"
	DuelWorkoutCount DuelType = "workout_count"
)

// Valid returns true if the duel type is a recognized value.
func (t DuelType) Valid() bool {
	return t == DuelStreak || t == DuelWorkoutCount
}

// DuelStatus is a state of the duel lifecycle:
//
//	pending -> active -> completed
//	pending -> declined
//	pending -> cancelled
type DuelStatus string

// Duel statuses.
const (
	DuelPending   DuelStatus = "pending"
	DuelActive    DuelStatus = "active"
	DuelCompleted DuelStatus = "completed"
	DuelDeclined  DuelStatus = "declined"
	DuelCancelled DuelStatus = "cancelled"
)

// IsOpen reports whether the duel still blocks a new duel for the same pair.
func (s DuelStatus) IsOpen() bool {
	return s == DuelPending || s == DuelActive
}

// Duel is a 1:1 contest between two users.
type Duel struct {
	ID              string     `json:"id"`
	ChallengerID    string     `json:"challenger_id"`
	OpponentID      string     `json:"opponent_id"`
	Type            DuelType   `json:"type"`
	DurationDays    int        `json:"duration_days"`
	Status          DuelStatus `json:"status"`
	ChallengerScore int64      `json:"challenger_score"`
	OpponentScore   int64      `json:"opponent_score"`
	WinnerID        *string    `json:"winner_id,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	EndsAt          *time.Time `json:"ends_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// PairKey normalizes an unordered user pair so A-B and B-A collide.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

// IsParticipant reports whether userID is one of the two duelists.
func (d *Duel) IsParticipant(userID string) bool {
	return d.ChallengerID == userID || d.OpponentID == userID
}
