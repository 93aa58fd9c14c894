// Package sse streams announcements and contest updates to connected clients
// as Server-Sent Events.
package sse

import (
	"time"

	"github.com/ironcrew/ironcrew-server/internal/domain"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventConnected opens every stream and carries the client ID.
	EventConnected EventType = "connected"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"

	// EventAnnouncement carries a persisted feed announcement.
	EventAnnouncement EventType = "announcement"

	// EventCompetitionUpdated is sent to members of both groups when a
	// competition changes state.
	EventCompetitionUpdated EventType = "competition.updated"

	// EventDuelUpdated is sent to both duelists when a duel changes state.
	EventDuelUpdated EventType = "duel.updated"
)

// Event represents an SSE event to be sent to clients.
// The Data field contains the event payload as a JSON object for direct deserialization.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`

	// UserID restricts delivery to one user's clients. Empty means everyone.
	UserID string `json:"-"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// AnnouncementEventData is the data payload for announcement events.
type AnnouncementEventData struct {
	Announcement *domain.Announcement `json:"announcement"`
}

// CompetitionEventData is the data payload for competition events.
type CompetitionEventData struct {
	Competition *domain.GroupCompetition `json:"competition"`
}

// DuelEventData is the data payload for duel events.
type DuelEventData struct {
	Duel *domain.Duel `json:"duel"`
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	now := time.Now()
	return Event{
		Type:      EventHeartbeat,
		Data:      HeartbeatEventData{ServerTime: now},
		Timestamp: now,
	}
}

// NewAnnouncementEvent creates an event for the announcement's recipient.
func NewAnnouncementEvent(a *domain.Announcement) Event {
	return Event{
		Type:      EventAnnouncement,
		Data:      AnnouncementEventData{Announcement: a},
		Timestamp: time.Now(),
		UserID:    a.UserID,
	}
}

// NewCompetitionEvent creates a competition update for one user.
func NewCompetitionEvent(userID string, c *domain.GroupCompetition) Event {
	return Event{
		Type:      EventCompetitionUpdated,
		Data:      CompetitionEventData{Competition: c},
		Timestamp: time.Now(),
		UserID:    userID,
	}
}

// NewDuelEvent creates a duel update for one user.
func NewDuelEvent(userID string, d *domain.Duel) Event {
	return Event{
		Type:      EventDuelUpdated,
		Data:      DuelEventData{Duel: d},
		Timestamp: time.Now(),
		UserID:    userID,
	}
}
