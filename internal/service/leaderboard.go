package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ironcrew/ironcrew-server/internal/domain"
	domainerrors "github.com/ironcrew/ironcrew-server/internal/errors"
	"github.com/ironcrew/ironcrew-server/internal/metrics"
	"github.com/ironcrew/ironcrew-server/internal/scoring"
	"github.com/ironcrew/ironcrew-server/internal/store"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

// LeaderboardStore is the data the leaderboard aggregator reads.
type LeaderboardStore interface {
	ListWorkoutDays(ctx context.Context, period domain.Period) (map[string][]string, error)
	CompetitionWinsByUser(ctx context.Context) (map[string]int64, error)
	GetFriendIDs(ctx context.Context, userID string) ([]string, error)
	GetGroup(ctx context.Context, id string) (*domain.Group, error)
	GetGroupMembers(ctx context.Context, groupID string) ([]*domain.GroupMember, error)
	ListGroupmateIDs(ctx context.Context, userID string) ([]string, error)
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error)
	GetSnapshot(ctx context.Context, userID, scope, period string) (*domain.LeaderboardSnapshot, error)
	UpsertSnapshot(ctx context.Context, snap *domain.LeaderboardSnapshot) error
}

// ActivityCache holds period aggregations between leaderboard reads.
type ActivityCache interface {
	GetActivity(period string) (*domain.PeriodActivity, bool, error)
	SetActivity(act *domain.PeriodActivity) error
	Invalidate() error
}

// LeaderboardQuery selects a leaderboard. PeriodRef defaults to now and only
// picks the calendar month; callers never pass arbitrary ranges.
type LeaderboardQuery struct {
	Scope         domain.LeaderboardScope
	GroupID       string
	PeriodRef     time.Time
	Limit         int
	CurrentUserID string
}

// LeaderboardOptions configures a LeaderboardService.
type LeaderboardOptions struct {
	Points    scoring.PointsEngine
	Snapshots bool
	// Cache may be nil, in which case every query aggregates from the store.
	Cache   ActivityCache
	Metrics *metrics.Metrics
}

// LeaderboardService ranks users by points for a scope and calendar month.
type LeaderboardService struct {
	store     LeaderboardStore
	cache     ActivityCache
	points    scoring.PointsEngine
	snapshots bool
	metrics   *metrics.Metrics
	printer   *message.Printer
	logger    *slog.Logger
	now       func() time.Time
}

// NewLeaderboardService creates a new leaderboard service.
func NewLeaderboardService(store LeaderboardStore, opts LeaderboardOptions, logger *slog.Logger) *LeaderboardService {
	m := opts.Metrics
	if m == nil {
		m = metrics.NewNoop()
	}
	return &LeaderboardService{
		store:     store,
		cache:     opts.Cache,
		points:    opts.Points,
		snapshots: opts.Snapshots,
		metrics:   m,
		printer:   message.NewPrinter(language.English),
		logger:    logger,
		now:       time.Now,
	}
}

// GetLeaderboard aggregates the period, filters it to the scope, ranks the
// remaining users and truncates to the limit. The caller's row is returned in
// MyRow when it was cut off.
func (s *LeaderboardService) GetLeaderboard(ctx context.Context, q LeaderboardQuery) (*domain.Leaderboard, error) {
	scope := q.Scope
	if scope == "" {
		scope = domain.ScopeGlobal
	}
	if !scope.Valid() {
		return nil, domainerrors.Validationf("unknown leaderboard scope %q", scope)
	}
	if q.GroupID != "" && scope != domain.ScopeGroups {
		return nil, domainerrors.Validation("group_id is only valid for the groups scope")
	}
	needsCaller := scope == domain.ScopeFriends || (scope == domain.ScopeGroups && q.GroupID == "")
	if needsCaller && q.CurrentUserID == "" {
		return nil, domainerrors.Validationf("the %s leaderboard needs a current user", scope)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	limit = min(limit, maxLeaderboardLimit)

	// PeriodRef only picks the month; streaks always count back from today,
	// clamped to the period's last day.
	today := s.now()
	ref := q.PeriodRef
	if ref.IsZero() {
		ref = today
	}
	period := domain.MonthPeriod(ref)

	inScope, err := s.scopeMembers(ctx, scope, q.GroupID, q.CurrentUserID)
	if err != nil {
		return nil, err
	}

	act, err := s.activity(ctx, period)
	if err != nil {
		return nil, err
	}

	ranked := s.rank(act, inScope, today, period)

	board := &domain.Leaderboard{
		Scope:     scope,
		GroupID:   q.GroupID,
		Period:    period.Key(),
		Rows:      ranked[:min(limit, len(ranked))],
		TotalRows: len(ranked),
	}

	var mine *domain.LeaderboardRow
	if q.CurrentUserID != "" {
		for _, row := range ranked {
			if row.UserID == q.CurrentUserID {
				row.IsCurrentUser = true
				mine = row
				break
			}
		}
		if mine != nil && mine.Rank > limit {
			board.MyRow = mine
		}
	}

	if err := s.decorate(ctx, board); err != nil {
		return nil, err
	}

	if mine != nil && s.snapshots {
		s.trackMovement(ctx, mine, scope.SnapshotKey(q.GroupID), period.Key())
	}

	s.logger.Debug("leaderboard computed",
		"scope", scope,
		"group_id", q.GroupID,
		"period", board.Period,
		"rows", len(board.Rows),
		"total", board.TotalRows,
	)
	return board, nil
}

// InvalidateActivity drops cached aggregations. Called after a workout is
// logged or a competition is finalized.
func (s *LeaderboardService) InvalidateActivity() {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(); err != nil {
		s.logger.Warn("failed to invalidate leaderboard cache", "error", err)
	}
}

// scopeMembers returns the set of users the scope admits, or nil for global.
func (s *LeaderboardService) scopeMembers(ctx context.Context, scope domain.LeaderboardScope, groupID, userID string) (map[string]bool, error) {
	var ids []string
	switch scope {
	case domain.ScopeGlobal:
		return nil, nil

	case domain.ScopeFriends:
		friends, err := s.store.GetFriendIDs(ctx, userID)
		if err != nil {
			return nil, translate(err, "friends")
		}
		ids = append(friends, userID)

	case domain.ScopeGroups:
		if groupID != "" {
			if _, err := s.store.GetGroup(ctx, groupID); err != nil {
				return nil, translate(err, "group")
			}
			members, err := s.store.GetGroupMembers(ctx, groupID)
			if err != nil {
				return nil, translate(err, "group members")
			}
			for _, m := range members {
				ids = append(ids, m.UserID)
			}
			break
		}
		mates, err := s.store.ListGroupmateIDs(ctx, userID)
		if err != nil {
			return nil, translate(err, "groupmates")
		}
		ids = append(mates, userID)
	}

	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

// activity returns the period aggregation, from cache when possible.
func (s *LeaderboardService) activity(ctx context.Context, period domain.Period) (*domain.PeriodActivity, error) {
	key := period.Key()

	if s.cache != nil {
		act, ok, err := s.cache.GetActivity(key)
		switch {
		case err != nil:
			s.logger.Warn("leaderboard cache read failed", "period", key, "error", err)
		case ok:
			s.metrics.LeaderboardCache.WithLabelValues("hit").Inc()
			return act, nil
		}
		s.metrics.LeaderboardCache.WithLabelValues("miss").Inc()
	}

	days, err := s.store.ListWorkoutDays(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("aggregating workout days: %w", err)
	}
	wins, err := s.store.CompetitionWinsByUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("aggregating competition wins: %w", err)
	}
	act := &domain.PeriodActivity{Period: key, WorkoutDays: days, Wins: wins}

	if s.cache != nil {
		if err := s.cache.SetActivity(act); err != nil {
			s.logger.Warn("leaderboard cache write failed", "period", key, "error", err)
		}
	}
	return act, nil
}

// rank scores every in-scope user with in-period workouts and orders them by
// points descending, user ID ascending. Ranks are sequential even on ties.
func (s *LeaderboardService) rank(act *domain.PeriodActivity, inScope map[string]bool, today time.Time, period domain.Period) []*domain.LeaderboardRow {
	rows := make([]*domain.LeaderboardRow, 0, len(act.WorkoutDays))
	for userID, days := range act.WorkoutDays {
		if inScope != nil && !inScope[userID] {
			continue
		}
		set := scoring.DaySetFromKeys(days)
		if len(set) == 0 {
			continue
		}
		workouts := int64(len(set))
		streak := int64(scoring.Streak(set, today, period))
		wins := act.Wins[userID]

		rows = append(rows, &domain.LeaderboardRow{
			UserID:          userID,
			WorkoutsCount:   workouts,
			Streak:          streak,
			CompetitionWins: wins,
			Points:          s.points.Points(workouts, streak, wins),
		})
	}

	slices.SortFunc(rows, func(a, b *domain.LeaderboardRow) int {
		if c := cmp.Compare(b.Points, a.Points); c != 0 {
			return c
		}
		return cmp.Compare(a.UserID, b.UserID)
	})
	for i, row := range rows {
		row.Rank = i + 1
	}
	return rows
}

// decorate fills display fields of the returned rows.
func (s *LeaderboardService) decorate(ctx context.Context, board *domain.Leaderboard) error {
	rows := board.Rows
	if board.MyRow != nil {
		rows = append(slices.Clip(rows), board.MyRow)
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.UserID
	}
	users, err := s.store.GetUsersByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("loading leaderboard users: %w", err)
	}

	for _, row := range rows {
		if u, ok := users[row.UserID]; ok {
			row.DisplayName = u.DisplayName
			row.AvatarURL = u.AvatarURL
		}
		row.PointsLabel = s.printer.Sprintf("%d pts", row.Points)
	}
	return nil
}

// trackMovement compares the caller's rank with the last view and stores the
// new one. Failures are logged and never fail the query.
func (s *LeaderboardService) trackMovement(ctx context.Context, row *domain.LeaderboardRow, scopeKey, period string) {
	prev, err := s.store.GetSnapshot(ctx, row.UserID, scopeKey, period)
	switch {
	case err == nil:
		change := prev.Rank - row.Rank
		row.RankChange = &change
	case errors.Is(err, store.ErrNotFound):
	default:
		s.logger.Warn("failed to read leaderboard snapshot", "user_id", row.UserID, "scope", scopeKey, "error", err)
	}

	err = s.store.UpsertSnapshot(ctx, &domain.LeaderboardSnapshot{
		UserID:    row.UserID,
		Scope:     scopeKey,
		Period:    period,
		Rank:      row.Rank,
		Points:    row.Points,
		UpdatedAt: s.now(),
	})
	if err != nil {
		s.logger.Warn("failed to save leaderboard snapshot", "user_id", row.UserID, "scope", scopeKey, "error", err)
	}
}
