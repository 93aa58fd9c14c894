package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ironcrew/ironcrew-server/internal/domain"
	domainerrors "github.com/ironcrew/ironcrew-server/internal/errors"
	"github.com/ironcrew/ironcrew-server/internal/id"
	"github.com/ironcrew/ironcrew-server/internal/metrics"
	"github.com/ironcrew/ironcrew-server/internal/store"
)

// DefaultMatchmakingDays is how long a matchmaking competition runs.
const DefaultMatchmakingDays = 7

// MatchmakingStore is the data the matchmaking queue reads and writes.
type MatchmakingStore interface {
	GroupReader
	groupMemberLister
	GetOpenCompetitionForGroup(ctx context.Context, groupID string) (*domain.GroupCompetition, error)
	EnqueueGroup(ctx context.Context, e *domain.MatchmakingQueueEntry) error
	DequeueGroup(ctx context.Context, groupID string) error
	ListQueue(ctx context.Context) ([]*domain.MatchmakingQueueEntry, error)
	PairGroups(ctx context.Context, c *domain.GroupCompetition) error
}

// EnqueueResult is the queue entry plus the competition the synchronous
// pairing attempt created for the group, if any.
type EnqueueResult struct {
	Entry       *domain.MatchmakingQueueEntry `json:"entry"`
	Competition *domain.GroupCompetition      `json:"competition,omitempty"`
}

// MatchmakingOptions configures a MatchmakingService.
type MatchmakingOptions struct {
	DurationDays int
	Announcer    Announcer
	Metrics      *metrics.Metrics
}

// MatchmakingService pairs waiting groups into active competitions.
// The store's primary key on the queue's group_id and the competition slots
// are the race guards; the checks here only fail fast.
type MatchmakingService struct {
	store        MatchmakingStore
	notify       competitionNotifier
	metrics      *metrics.Metrics
	durationDays int
	logger       *slog.Logger
	now          func() time.Time
}

// NewMatchmakingService creates a new matchmaking service.
func NewMatchmakingService(store MatchmakingStore, opts MatchmakingOptions, logger *slog.Logger) *MatchmakingService {
	days := opts.DurationDays
	if days <= 0 {
		days = DefaultMatchmakingDays
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.NewNoop()
	}
	return &MatchmakingService{
		store:        store,
		notify:       competitionNotifier{members: store, announcer: opts.Announcer, logger: logger},
		metrics:      m,
		durationDays: days,
		logger:       logger,
		now:          time.Now,
	}
}

// Enqueue puts a group in the queue and immediately tries to pair it.
// Any member of the group may queue it.
func (s *MatchmakingService) Enqueue(ctx context.Context, groupID, userID string) (*EnqueueResult, error) {
	if groupID == "" || userID == "" {
		return nil, domainerrors.Validation("group and user are required")
	}
	if err := requireMember(ctx, s.store, groupID, userID); err != nil {
		return nil, err
	}

	if open, err := s.store.GetOpenCompetitionForGroup(ctx, groupID); err == nil {
		return nil, domainerrors.Conflictf("group already has a %s competition", open.Status)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("checking open competitions: %w", err)
	}

	entry := &domain.MatchmakingQueueEntry{
		GroupID:  groupID,
		QueuedBy: userID,
		QueuedAt: s.now(),
	}
	if err := s.store.EnqueueGroup(ctx, entry); err != nil {
		return nil, translate(err, "queue entry")
	}
	s.logger.Info("group queued for matchmaking", "group_id", groupID, "queued_by", userID)

	result := &EnqueueResult{Entry: entry}

	created, err := s.PairWaitingGroups(ctx)
	if err != nil {
		// The entry stays queued; the scheduled pairing retries.
		s.logger.Error("pairing after enqueue failed", "group_id", groupID, "error", err)
		return result, nil
	}
	for _, c := range created {
		if c.Involves(groupID) {
			result.Competition = c
			break
		}
	}
	return result, nil
}

// PairWaitingGroups scans the queue oldest first and pairs entries two at a
// time. Groups that gained an open competition while waiting are dropped from
// the queue. When a pair loses a race, the side still queued and free waits
// for the next entry.
func (s *MatchmakingService) PairWaitingGroups(ctx context.Context) ([]*domain.GroupCompetition, error) {
	queue, err := s.store.ListQueue(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing queue: %w", err)
	}

	var (
		created []*domain.GroupCompetition
		waiting *domain.MatchmakingQueueEntry
	)
	for _, entry := range queue {
		busy, err := s.hasOpenCompetition(ctx, entry.GroupID)
		if err != nil {
			return created, err
		}
		if busy {
			s.drop(ctx, entry.GroupID)
			continue
		}

		if waiting == nil {
			waiting = entry
			continue
		}

		c, err := s.pair(ctx, waiting, entry)
		if errors.Is(err, domainerrors.ErrConflict) {
			s.logger.Warn("matchmaking pair skipped",
				"group1_id", waiting.GroupID,
				"group2_id", entry.GroupID,
				"error", err,
			)
			if waiting, err = s.survivor(ctx, waiting, entry); err != nil {
				return created, err
			}
			continue
		}
		waiting = nil
		if err != nil {
			return created, err
		}
		created = append(created, c)
	}

	if len(created) > 0 {
		s.logger.Info("matchmaking paired groups", "competitions", len(created))
	}
	return created, nil
}

// survivor returns the side of a failed pair that can still be matched, so it
// waits for the next entry in this pass. When both or neither can, the pass
// moves on without a waiting group.
func (s *MatchmakingService) survivor(ctx context.Context, first, second *domain.MatchmakingQueueEntry) (*domain.MatchmakingQueueEntry, error) {
	queue, err := s.store.ListQueue(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing queue: %w", err)
	}
	queued := make(map[string]bool, len(queue))
	for _, e := range queue {
		queued[e.GroupID] = true
	}

	pairable := func(e *domain.MatchmakingQueueEntry) (bool, error) {
		if !queued[e.GroupID] {
			return false, nil
		}
		busy, err := s.hasOpenCompetition(ctx, e.GroupID)
		return !busy, err
	}
	firstOK, err := pairable(first)
	if err != nil {
		return nil, err
	}
	secondOK, err := pairable(second)
	if err != nil {
		return nil, err
	}

	switch {
	case firstOK && !secondOK:
		return first, nil
	case secondOK && !firstOK:
		return second, nil
	default:
		return nil, nil
	}
}

func (s *MatchmakingService) hasOpenCompetition(ctx context.Context, groupID string) (bool, error) {
	_, err := s.store.GetOpenCompetitionForGroup(ctx, groupID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("checking open competitions: %w", err)
	}
}

func (s *MatchmakingService) drop(ctx context.Context, groupID string) {
	err := s.store.DequeueGroup(ctx, groupID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("failed to drop busy group from queue", "group_id", groupID, "error", err)
		return
	}
	s.logger.Info("dropped busy group from queue", "group_id", groupID)
}

// pair creates an active matchmaking competition between two queued groups.
func (s *MatchmakingService) pair(ctx context.Context, first, second *domain.MatchmakingQueueEntry) (*domain.GroupCompetition, error) {
	compID, err := id.Generate(id.PrefixCompetition)
	if err != nil {
		return nil, fmt.Errorf("generate competition ID: %w", err)
	}

	now := s.now()
	c := &domain.GroupCompetition{
		ID:           compID,
		Group1ID:     first.GroupID,
		Group2ID:     second.GroupID,
		Type:         domain.CompetitionMatchmaking,
		Status:       domain.CompetitionActive,
		DurationDays: s.durationDays,
		StartedAt:    &now,
		EndsAt:       now.AddDate(0, 0, s.durationDays),
		CreatedBy:    first.QueuedBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.PairGroups(ctx, c); err != nil {
		return nil, translate(err, "matchmaking pair")
	}

	s.metrics.MatchmakingPairs.Inc()
	s.logger.Info("matchmaking competition created",
		"competition_id", c.ID,
		"group1_id", c.Group1ID,
		"group2_id", c.Group2ID,
		"ends_at", c.EndsAt,
	)
	s.notify.announce(ctx, c, domain.AnnouncementCompetitionStarted, "Your group was matched for a competition")
	return c, nil
}

// Dequeue removes a group from the queue. Only an owner or admin may do it.
func (s *MatchmakingService) Dequeue(ctx context.Context, groupID, userID string) error {
	if groupID == "" || userID == "" {
		return domainerrors.Validation("group and user are required")
	}
	if err := requireManager(ctx, s.store, groupID, userID); err != nil {
		return err
	}
	if err := s.store.DequeueGroup(ctx, groupID); err != nil {
		return translate(err, "queue entry")
	}
	s.logger.Info("group left matchmaking", "group_id", groupID, "removed_by", userID)
	return nil
}

// ListQueue returns the waiting groups, oldest first.
func (s *MatchmakingService) ListQueue(ctx context.Context) ([]*domain.MatchmakingQueueEntry, error) {
	queue, err := s.store.ListQueue(ctx)
	if err != nil {
		return nil, translate(err, "queue")
	}
	return queue, nil
}
