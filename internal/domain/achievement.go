package domain

import "time"

// RequirementType names the stat an achievement is measured against.
type RequirementType string

// Requirement types. Only the stat keys are evaluated by the rule engine; the
// remaining types are defined in the catalog but scored elsewhere.
const (
	RequirementStreak            RequirementType = "streak"
	RequirementWorkoutsCount     RequirementType = "workouts_count"
	RequirementFriendsCount      RequirementType = "friends_count"
	RequirementReactionsReceived RequirementType = "reactions_received"
	RequirementCommentsReceived  RequirementType = "comments_received"

	RequirementCompetitionGoal RequirementType = "competition_goal"
	RequirementMultiStage      RequirementType = "multi_stage"
)

// IsStatKey reports whether the engine can evaluate this requirement from stats.
func (r RequirementType) IsStatKey() bool {
	switch r {
	case RequirementStreak, RequirementWorkoutsCount, RequirementFriendsCount,
		RequirementReactionsReceived, RequirementCommentsReceived:
		return true
	default:
		return false
	}
}

// AchievementDefinition is a catalog entry. Definitions never change at runtime.
type AchievementDefinition struct {
	ID               string          `json:"id"`
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	RequirementType  RequirementType `json:"requirement_type"`
	RequirementValue int64           `json:"requirement_value"`
	SortOrder        int             `json:"sort_order"`
}

// UserAchievement is a user's progress on one achievement.
// Unlocked never goes back to false and UnlockedAt never changes once set.
type UserAchievement struct {
	UserID        string     `json:"user_id"`
	AchievementID string     `json:"achievement_id"`
	ProgressValue int64      `json:"progress_value"`
	Unlocked      bool       `json:"unlocked"`
	UnlockedAt    *time.Time `json:"unlocked_at,omitempty"`
	Notified      bool       `json:"notified"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// AchievementProgress joins a definition with the user's row for display.
type AchievementProgress struct {
	Definition AchievementDefinition `json:"definition"`
	Progress   int64                 `json:"progress"`
	Unlocked   bool                  `json:"unlocked"`
	UnlockedAt *time.Time            `json:"unlocked_at,omitempty"`
	Notified   bool                  `json:"notified"`
}
