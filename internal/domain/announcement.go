package domain

import (
	"encoding/json"
	"time"
)

// AnnouncementKind classifies a feed announcement.
type AnnouncementKind string

// Announcement kinds.
const (
	AnnouncementAchievementUnlocked  AnnouncementKind = "achievement_unlocked"
	AnnouncementLevelUp              AnnouncementKind = "level_up"
	AnnouncementCompetitionStarted   AnnouncementKind = "competition_started"
	AnnouncementCompetitionCompleted AnnouncementKind = "competition_completed"
	AnnouncementDuelCompleted        AnnouncementKind = "duel_completed"
)

// Announcement is a feed entry addressed to one user.
type Announcement struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Kind      AnnouncementKind `json:"kind"`
	Title     string           `json:"title"`
	Payload   json.RawMessage  `json:"payload,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}
