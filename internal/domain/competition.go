package domain

import "time"

// CompetitionType says how a competition came to be.
type CompetitionType string

// Competition types.
const (
	CompetitionMatchmaking CompetitionType = "matchmaking"
	CompetitionChallenge   CompetitionType = "challenge"
)

// CompetitionStatus is a state of the competition lifecycle:
//
//	pending -> active -> completed
//	pending -> cancelled
//
// Matchmaking competitions are created active.
type CompetitionStatus string

// Competition statuses.
const (
	CompetitionPending   CompetitionStatus = "pending"
	CompetitionActive    CompetitionStatus = "active"
	CompetitionCompleted CompetitionStatus = "completed"
	CompetitionCancelled CompetitionStatus = "cancelled"
)

// IsOpen reports whether the competition still holds its groups' slots.
func (s CompetitionStatus) IsOpen() bool {
	return s == CompetitionPending || s == CompetitionActive
}

// GroupCompetition is a group-vs-group contest. Group1 is the challenger (or the
// first group out of the queue), Group2 the invited group.
type GroupCompetition struct {
	ID            string            `json:"id"`
	Group1ID      string            `json:"group1_id"`
	Group2ID      string            `json:"group2_id"`
	Type          CompetitionType   `json:"type"`
	Status        CompetitionStatus `json:"status"`
	DurationDays  int               `json:"duration_days"`
	StartedAt     *time.Time        `json:"started_at,omitempty"`
	EndsAt        time.Time         `json:"ends_at"`
	Group1Score   int64             `json:"group1_score"`
	Group2Score   int64             `json:"group2_score"`
	WinnerGroupID *string           `json:"winner_group_id,omitempty"`
	CreatedBy     string            `json:"created_by"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Involves reports whether groupID takes part in the competition.
func (c *GroupCompetition) Involves(groupID string) bool {
	return c.Group1ID == groupID || c.Group2ID == groupID
}

// Opponent returns the other group's ID.
func (c *GroupCompetition) Opponent(groupID string) string {
	if c.Group1ID == groupID {
		return c.Group2ID
	}
	return c.Group1ID
}

// CompetitionContribution is one member's scoring inside a competition.
type CompetitionContribution struct {
	CompetitionID string    `json:"competition_id"`
	UserID        string    `json:"user_id"`
	GroupID       string    `json:"group_id"`
	Points        int64     `json:"points"`
	WorkoutsCount int64     `json:"workouts_count"`
	Rank          int       `json:"rank"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// MatchmakingQueueEntry is a group waiting for an opponent.
type MatchmakingQueueEntry struct {
	GroupID  string    `json:"group_id"`
	QueuedBy string    `json:"queued_by"`
	QueuedAt time.Time `json:"queued_at"`
}

// Winner picks the winner of a two-sided contest: the higher score wins and an
// exact tie has no winner. Competitions and duels share this rule.
func Winner(aID string, aScore int64, bID string, bScore int64) *string {
	switch {
	case aScore > bScore:
		return &aID
	case bScore > aScore:
		return &bID
	default:
		return nil
	}
}
