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
	"github.com/ironcrew/ironcrew-server/internal/sse"
	"github.com/ironcrew/ironcrew-server/internal/store"
)

// DefaultMaxDurationDays bounds challenge and duel lengths.
const DefaultMaxDurationDays = 30

// CompetitionStore is the data the competition state machine reads and writes.
type CompetitionStore interface {
	GroupReader
	GetGroupMembers(ctx context.Context, groupID string) ([]*domain.GroupMember, error)
	CreateCompetition(ctx context.Context, c *domain.GroupCompetition) error
	GetCompetition(ctx context.Context, id string) (*domain.GroupCompetition, error)
	ListCompetitionsForGroup(ctx context.Context, groupID string) ([]*domain.GroupCompetition, error)
	GetOpenCompetitionForGroup(ctx context.Context, groupID string) (*domain.GroupCompetition, error)
	HasPendingChallengeBetween(ctx context.Context, groupA, groupB string) (bool, error)
	ListExpiredCompetitions(ctx context.Context, now time.Time) ([]*domain.GroupCompetition, error)
	AcceptCompetition(ctx context.Context, id string, now time.Time) error
	CancelCompetition(ctx context.Context, id string, now time.Time) error
	FinalizeCompetition(ctx context.Context, id string, now time.Time) (*domain.GroupCompetition, error)
	RecordContribution(ctx context.Context, competitionID, userID, groupID string, points, workouts int64, now time.Time) error
	ListContributions(ctx context.Context, competitionID string) ([]*domain.CompetitionContribution, error)
}

// ActivityInvalidator drops cached leaderboard aggregations.
// *LeaderboardService implements it.
type ActivityInvalidator interface {
	InvalidateActivity()
}

// FinalizeSummary counts the outcome of a finalization batch.
type FinalizeSummary struct {
	Expired   int `json:"expired"`
	Finalized int `json:"finalized"`
	Failed    int `json:"failed"`
}

// CompetitionOptions configures a CompetitionService.
type CompetitionOptions struct {
	MaxDurationDays int
	Announcer       Announcer
	Leaderboard     ActivityInvalidator
	Metrics         *metrics.Metrics
}

// CompetitionService runs the group competition lifecycle:
//
//	pending -> active -> completed
//	pending -> cancelled
//
// Only expiry completes an active competition. Score columns are written by
// RecordContribution alone; lifecycle transitions never touch them.
type CompetitionService struct {
	store       CompetitionStore
	notify      competitionNotifier
	leaderboard ActivityInvalidator
	metrics     *metrics.Metrics
	maxDays     int
	logger      *slog.Logger
	now         func() time.Time
}

// NewCompetitionService creates a new competition service.
func NewCompetitionService(store CompetitionStore, opts CompetitionOptions, logger *slog.Logger) *CompetitionService {
	maxDays := opts.MaxDurationDays
	if maxDays <= 0 {
		maxDays = DefaultMaxDurationDays
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.NewNoop()
	}
	return &CompetitionService{
		store:       store,
		notify:      competitionNotifier{members: store, announcer: opts.Announcer, logger: logger},
		leaderboard: opts.Leaderboard,
		metrics:     m,
		maxDays:     maxDays,
		logger:      logger,
		now:         time.Now,
	}
}

// CreateChallenge opens a pending challenge from challengerGroupID to
// targetGroupID. The actor must be an owner or admin of the challenger group.
func (s *CompetitionService) CreateChallenge(ctx context.Context, actorID, challengerGroupID, targetGroupID string, durationDays int) (*domain.GroupCompetition, error) {
	if actorID == "" || challengerGroupID == "" || targetGroupID == "" {
		return nil, domainerrors.Validation("actor, challenger group and target group are required")
	}
	if challengerGroupID == targetGroupID {
		return nil, domainerrors.Validation("a group cannot challenge itself")
	}
	if durationDays < 1 || durationDays > s.maxDays {
		return nil, domainerrors.Validationf("duration must be between 1 and %d days", s.maxDays)
	}

	if err := requireManager(ctx, s.store, challengerGroupID, actorID); err != nil {
		return nil, err
	}
	if _, err := s.store.GetGroup(ctx, targetGroupID); err != nil {
		return nil, translate(err, "target group")
	}

	for _, groupID := range []string{challengerGroupID, targetGroupID} {
		if err := s.ensureFree(ctx, groupID); err != nil {
			return nil, err
		}
	}
	pending, err := s.store.HasPendingChallengeBetween(ctx, challengerGroupID, targetGroupID)
	if err != nil {
		return nil, fmt.Errorf("checking pending challenges: %w", err)
	}
	if pending {
		return nil, domainerrors.Conflict("a challenge between these groups is already pending")
	}

	compID, err := id.Generate(id.PrefixCompetition)
	if err != nil {
		return nil, fmt.Errorf("generate competition ID: %w", err)
	}

	now := s.now()
	c := &domain.GroupCompetition{
		ID:           compID,
		Group1ID:     challengerGroupID,
		Group2ID:     targetGroupID,
		Type:         domain.CompetitionChallenge,
		Status:       domain.CompetitionPending,
		DurationDays: durationDays,
		EndsAt:       now.AddDate(0, 0, durationDays),
		CreatedBy:    actorID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateCompetition(ctx, c); err != nil {
		return nil, translate(err, "competition")
	}

	s.logger.Info("challenge created",
		"competition_id", c.ID,
		"group1_id", c.Group1ID,
		"group2_id", c.Group2ID,
		"duration_days", durationDays,
		"created_by", actorID,
	)
	s.notify.publish(ctx, c)
	return c, nil
}

// ensureFree fails with Conflict when the group holds an open competition.
func (s *CompetitionService) ensureFree(ctx context.Context, groupID string) error {
	open, err := s.store.GetOpenCompetitionForGroup(ctx, groupID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("checking open competitions: %w", err)
	}
	return domainerrors.Conflictf("group %s already has a %s competition", groupID, open.Status)
}

// Accept starts a pending challenge. Only an owner or admin of the target
// group may accept.
func (s *CompetitionService) Accept(ctx context.Context, actorID, competitionID string) (*domain.GroupCompetition, error) {
	c, err := s.Get(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	if err := requireManager(ctx, s.store, c.Group2ID, actorID); err != nil {
		return nil, err
	}
	if c.Status != domain.CompetitionPending {
		return nil, domainerrors.Conflictf("competition is %s, not pending", c.Status)
	}

	if err := s.store.AcceptCompetition(ctx, c.ID, s.now()); err != nil {
		return nil, translate(err, "competition")
	}

	c, err = s.Get(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("challenge accepted", "competition_id", c.ID, "accepted_by", actorID)
	s.notify.announce(ctx, c, domain.AnnouncementCompetitionStarted, "Your group's competition has started")
	return c, nil
}

// Cancel withdraws a pending challenge. An owner or admin of either group
// may cancel; active competitions cannot be cancelled.
func (s *CompetitionService) Cancel(ctx context.Context, actorID, competitionID string) (*domain.GroupCompetition, error) {
	c, err := s.Get(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	if err := s.requireEitherManager(ctx, c, actorID); err != nil {
		return nil, err
	}
	if c.Status != domain.CompetitionPending {
		return nil, domainerrors.Conflictf("competition is %s, not pending", c.Status)
	}

	if err := s.store.CancelCompetition(ctx, c.ID, s.now()); err != nil {
		return nil, translate(err, "competition")
	}

	c, err = s.Get(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("challenge cancelled", "competition_id", c.ID, "cancelled_by", actorID)
	s.notify.publish(ctx, c)
	return c, nil
}

func (s *CompetitionService) requireEitherManager(ctx context.Context, c *domain.GroupCompetition, actorID string) error {
	for _, groupID := range []string{c.Group1ID, c.Group2ID} {
		role, err := s.store.GetMemberRole(ctx, groupID, actorID)
		if err == nil && role.CanManage() {
			return nil
		}
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return translate(err, "member role")
		}
	}
	return domainerrors.Forbidden("only an owner or admin of either group can cancel")
}

// Finalize completes an expired active competition: the higher score wins
// and an exact tie has no winner. Finalizing a completed competition returns
// it unchanged, so concurrent finalizers are safe.
func (s *CompetitionService) Finalize(ctx context.Context, competitionID string, now time.Time) (*domain.GroupCompetition, error) {
	c, err := s.Get(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	switch {
	case c.Status == domain.CompetitionCompleted:
		return c, nil
	case c.Status != domain.CompetitionActive:
		return nil, domainerrors.Conflictf("competition is %s, not active", c.Status)
	case c.EndsAt.After(now):
		return nil, domainerrors.Conflictf("competition runs until %s", c.EndsAt.Format(time.RFC3339))
	}

	done, err := s.store.FinalizeCompetition(ctx, competitionID, now)
	if errors.Is(err, store.ErrStateChanged) {
		// Another finalizer got there first.
		c, getErr := s.Get(ctx, competitionID)
		if getErr == nil && c.Status == domain.CompetitionCompleted {
			return c, nil
		}
		return nil, translate(err, "competition")
	}
	if err != nil {
		return nil, translate(err, "competition")
	}

	s.metrics.CompetitionsFinalized.WithLabelValues(metrics.Result(done.WinnerGroupID)).Inc()
	if s.leaderboard != nil {
		s.leaderboard.InvalidateActivity()
	}

	winner := "tie"
	if done.WinnerGroupID != nil {
		winner = *done.WinnerGroupID
	}
	s.logger.Info("competition finalized",
		"competition_id", done.ID,
		"group1_score", done.Group1Score,
		"group2_score", done.Group2Score,
		"winner", winner,
	)
	s.notify.announce(ctx, done, domain.AnnouncementCompetitionCompleted, "Your group's competition has ended")
	return done, nil
}

// FinalizeExpired finalizes every active competition whose end has passed.
// Failures are logged and counted; the batch always runs to the end.
func (s *CompetitionService) FinalizeExpired(ctx context.Context, now time.Time) (FinalizeSummary, error) {
	expired, err := s.store.ListExpiredCompetitions(ctx, now)
	if err != nil {
		return FinalizeSummary{}, fmt.Errorf("listing expired competitions: %w", err)
	}

	summary := FinalizeSummary{Expired: len(expired)}
	for _, c := range expired {
		if _, err := s.Finalize(ctx, c.ID, now); err != nil {
			summary.Failed++
			s.logger.Error("failed to finalize competition", "competition_id", c.ID, "error", err)
			continue
		}
		summary.Finalized++
	}
	return summary, nil
}

// RecordContribution credits points and workouts to a member's contribution
// and to their group's score. Allowed only while the competition is active.
func (s *CompetitionService) RecordContribution(ctx context.Context, competitionID, userID, groupID string, points, workouts int64) error {
	if competitionID == "" || userID == "" || groupID == "" {
		return domainerrors.Validation("competition, user and group are required")
	}
	if points < 0 || workouts < 0 {
		return domainerrors.Validation("contributions only add to a score")
	}

	err := s.store.RecordContribution(ctx, competitionID, userID, groupID, points, workouts, s.now())
	if errors.Is(err, store.ErrStateChanged) {
		return domainerrors.Conflict("competition is not active").WithCause(err)
	}
	return translate(err, "competition")
}

// Get returns a competition by ID.
func (s *CompetitionService) Get(ctx context.Context, competitionID string) (*domain.GroupCompetition, error) {
	if competitionID == "" {
		return nil, domainerrors.Validation("competition id is required")
	}
	c, err := s.store.GetCompetition(ctx, competitionID)
	if err != nil {
		return nil, translate(err, "competition")
	}
	return c, nil
}

// ListForGroup returns a group's competitions, newest first.
func (s *CompetitionService) ListForGroup(ctx context.Context, groupID string) ([]*domain.GroupCompetition, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, translate(err, "group")
	}
	list, err := s.store.ListCompetitionsForGroup(ctx, groupID)
	if err != nil {
		return nil, translate(err, "competitions")
	}
	return list, nil
}

// Contributions returns members' contributions ranked by points descending,
// then user ID.
func (s *CompetitionService) Contributions(ctx context.Context, competitionID string) ([]*domain.CompetitionContribution, error) {
	if _, err := s.Get(ctx, competitionID); err != nil {
		return nil, err
	}
	list, err := s.store.ListContributions(ctx, competitionID)
	if err != nil {
		return nil, translate(err, "contributions")
	}
	return list, nil
}

// competitionNotifier tells the members of both groups about a competition.
// Delivery failures are logged only.
type competitionNotifier struct {
	members   groupMemberLister
	announcer Announcer
	logger    *slog.Logger
}

type groupMemberLister interface {
	GetGroupMembers(ctx context.Context, groupID string) ([]*domain.GroupMember, error)
}

func (n competitionNotifier) memberIDs(ctx context.Context, c *domain.GroupCompetition) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, groupID := range []string{c.Group1ID, c.Group2ID} {
		members, err := n.members.GetGroupMembers(ctx, groupID)
		if err != nil {
			n.logger.Warn("failed to load group members", "group_id", groupID, "error", err)
			continue
		}
		for _, m := range members {
			if !seen[m.UserID] {
				seen[m.UserID] = true
				ids = append(ids, m.UserID)
			}
		}
	}
	return ids
}

// publish pushes a live update without a feed entry.
func (n competitionNotifier) publish(ctx context.Context, c *domain.GroupCompetition) {
	if n.announcer == nil {
		return
	}
	for _, userID := range n.memberIDs(ctx, c) {
		n.announcer.Publish(sse.NewCompetitionEvent(userID, c))
	}
}

func (n competitionNotifier) announce(ctx context.Context, c *domain.GroupCompetition, kind domain.AnnouncementKind, title string) {
	if n.announcer == nil {
		return
	}
	for _, userID := range n.memberIDs(ctx, c) {
		a := newAnnouncement(userID, kind, title, map[string]any{
			"competition_id":  c.ID,
			"type":            c.Type,
			"group1_id":       c.Group1ID,
			"group2_id":       c.Group2ID,
			"group1_score":    c.Group1Score,
			"group2_score":    c.Group2Score,
			"winner_group_id": c.WinnerGroupID,
		})
		if err := n.announcer.Announce(ctx, a); err != nil {
			n.logger.Warn("failed to announce competition", "competition_id", c.ID, "user_id", userID, "error", err)
		}
		n.announcer.Publish(sse.NewCompetitionEvent(userID, c))
	}
}
