package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ironcrew/ironcrew-server/internal/domain"
	domainerrors "github.com/ironcrew/ironcrew-server/internal/errors"
	"github.com/ironcrew/ironcrew-server/internal/id"
	"github.com/ironcrew/ironcrew-server/internal/sse"
)

const (
	defaultFeedLimit = 20
	maxFeedLimit     = 100
)

// Announcer delivers feed announcements and live updates to users.
type Announcer interface {
	// Announce persists a and pushes it to the user's connected clients.
	Announce(ctx context.Context, a *domain.Announcement) error
	// Publish pushes a transient event without persisting it.
	Publish(evt sse.Event)
}

// AnnouncementStore persists the feed.
type AnnouncementStore interface {
	CreateAnnouncement(ctx context.Context, a *domain.Announcement) error
	ListAnnouncements(ctx context.Context, userID string, limit int) ([]*domain.Announcement, error)
}

// EventEmitter queues SSE events. *sse.Manager implements it.
type EventEmitter interface {
	Emit(evt sse.Event)
}

// AnnouncementService is the notification sink: it writes the feed and
// forwards each entry over SSE.
type AnnouncementService struct {
	store  AnnouncementStore
	events EventEmitter
	logger *slog.Logger
	now    func() time.Time
}

// NewAnnouncementService creates a new announcement service. events may be nil.
func NewAnnouncementService(store AnnouncementStore, events EventEmitter, logger *slog.Logger) *AnnouncementService {
	return &AnnouncementService{
		store:  store,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// Announce implements Announcer.
func (s *AnnouncementService) Announce(ctx context.Context, a *domain.Announcement) error {
	if a.UserID == "" || a.Kind == "" {
		return domainerrors.Validation("announcement needs a user and a kind")
	}
	if a.ID == "" {
		annID, err := id.Generate(id.PrefixAnnouncement)
		if err != nil {
			return fmt.Errorf("generate announcement ID: %w", err)
		}
		a.ID = annID
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}

	if err := s.store.CreateAnnouncement(ctx, a); err != nil {
		return translate(err, "announcement")
	}

	s.Publish(sse.NewAnnouncementEvent(a))

	s.logger.Debug("announcement delivered",
		"announcement_id", a.ID,
		"user_id", a.UserID,
		"kind", a.Kind,
	)
	return nil
}

// Publish implements Announcer.
func (s *AnnouncementService) Publish(evt sse.Event) {
	if s.events == nil {
		return
	}
	s.events.Emit(evt)
}

// ListForUser returns the user's feed, newest first.
func (s *AnnouncementService) ListForUser(ctx context.Context, userID string, limit int) ([]*domain.Announcement, error) {
	if userID == "" {
		return nil, domainerrors.Validation("user id is required")
	}
	if limit <= 0 {
		limit = defaultFeedLimit
	}
	limit = min(limit, maxFeedLimit)

	list, err := s.store.ListAnnouncements(ctx, userID, limit)
	if err != nil {
		return nil, translate(err, "announcements")
	}
	return list, nil
}

// newAnnouncement builds an announcement with a JSON payload.
func newAnnouncement(userID string, kind domain.AnnouncementKind, title string, payload any) *domain.Announcement {
	a := &domain.Announcement{UserID: userID, Kind: kind, Title: title}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			a.Payload = raw
		}
	}
	return a
}
