package service

import (
	"context"
	"maps"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironcrew/ironcrew-server/internal/domain"
	domainerrors "github.com/ironcrew/ironcrew-server/internal/errors"
	"github.com/ironcrew/ironcrew-server/internal/metrics"
	"github.com/ironcrew/ironcrew-server/internal/scoring"
	"github.com/ironcrew/ironcrew-server/internal/store/sqlite"
)

var leaderboardRef = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

// setupLeaderboardTest seeds three users in March 2026:
//
//	u1: 13th-15th, friends with u2   -> 3 workouts, streak 3, 40 pts
//	u2: 1st                          -> 1 workout, 10 pts
//	u3: 5th-9th                      -> 5 workouts, streak 0, 50 pts
func setupLeaderboardTest(t *testing.T, opts LeaderboardOptions) (*LeaderboardService, *sqlite.Store) {
	t.Helper()
	s := setupStore(t)
	for _, u := range []string{"u1", "u2", "u3"} {
		createUser(t, s, u)
	}
	befriend(t, s, "u1", "u2")
	logDays(t, s, "u1", "2026-03-13", "2026-03-14", "2026-03-15")
	logDays(t, s, "u2", "2026-03-01")
	logDays(t, s, "u3", "2026-03-05", "2026-03-06", "2026-03-07", "2026-03-08", "2026-03-09")
	// Outside the period.
	logDays(t, s, "u2", "2026-02-27")

	if opts.Points == (scoring.PointsEngine{}) {
		opts.Points = scoring.DefaultPointsEngine()
	}
	svc := NewLeaderboardService(s, opts, testLogger())
	svc.now = fixedClock(leaderboardRef)
	return svc, s
}

func userIDs(rows []*domain.LeaderboardRow) []string {
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.UserID
	}
	return ids
}

func TestLeaderboardService_Global(t *testing.T) {
	svc, _ := setupLeaderboardTest(t, LeaderboardOptions{})

	board, err := svc.GetLeaderboard(context.Background(), LeaderboardQuery{})
	require.NoError(t, err)

	assert.Equal(t, domain.ScopeGlobal, board.Scope)
	assert.Equal(t, "2026-03", board.Period)
	assert.Equal(t, []string{"u3", "u1", "u2"}, userIDs(board.Rows))
	assert.Equal(t, 3, board.TotalRows)
	assert.Nil(t, board.MyRow)

	u1 := board.Rows[1]
	assert.Equal(t, 2, u1.Rank)
	assert.Equal(t, int64(3), u1.WorkoutsCount)
	assert.Equal(t, int64(3), u1.Streak)
	assert.Equal(t, int64(40), u1.Points)
	assert.Equal(t, "40 pts", u1.PointsLabel)
	assert.Equal(t, "User u1", u1.DisplayName)

	// The February workout is outside the period.
	assert.Equal(t, int64(1), board.Rows[2].WorkoutsCount)
}

func TestLeaderboardService_PeriodRefOnlyPicksMonth(t *testing.T) {
	svc, s := setupLeaderboardTest(t, LeaderboardOptions{})
	ctx := context.Background()

	t.Run("earlier day in the current month", func(t *testing.T) {
		board, err := svc.GetLeaderboard(ctx, LeaderboardQuery{
			PeriodRef: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
		require.Equal(t, "2026-03", board.Period)
		require.Equal(t, "u1", board.Rows[1].UserID)

		u1 := board.Rows[1]
		assert.Equal(t, int64(3), u1.WorkoutsCount)
		assert.Equal(t, int64(3), u1.Streak)
		assert.Equal(t, int64(40), u1.Points)
	})

	t.Run("past month counts back from its last day", func(t *testing.T) {
		logDays(t, s, "u2", "2026-02-28")

		board, err := svc.GetLeaderboard(ctx, LeaderboardQuery{
			PeriodRef: time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
		require.Equal(t, "2026-02", board.Period)
		require.Len(t, board.Rows, 1)

		u2 := board.Rows[0]
		assert.Equal(t, int64(2), u2.WorkoutsCount)
		assert.Equal(t, int64(2), u2.Streak)
		// 20 * 1.1^2
		assert.Equal(t, int64(24), u2.Points)
	})
}

func TestLeaderboardService_FriendsScope(t *testing.T) {
	svc, _ := setupLeaderboardTest(t, LeaderboardOptions{})

	board, err := svc.GetLeaderboard(context.Background(), LeaderboardQuery{
		Scope:         domain.ScopeFriends,
		CurrentUserID: "u1",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"u1", "u2"}, userIDs(board.Rows))
	assert.Equal(t, []int{1, 2}, []int{board.Rows[0].Rank, board.Rows[1].Rank})
	assert.True(t, board.Rows[0].IsCurrentUser)
	assert.False(t, board.Rows[1].IsCurrentUser)
}

func TestLeaderboardService_FriendsWithoutActivityAreOmitted(t *testing.T) {
	svc, s := setupLeaderboardTest(t, LeaderboardOptions{})
	createUser(t, s, "idle")
	befriend(t, s, "idle", "u1")

	board, err := svc.GetLeaderboard(context.Background(), LeaderboardQuery{
		Scope:         domain.ScopeFriends,
		CurrentUserID: "u1",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, userIDs(board.Rows))
}

func TestLeaderboardService_GroupsScope(t *testing.T) {
	svc, s := setupLeaderboardTest(t, LeaderboardOptions{})
	createGroup(t, s, "g1", "u2", "u3")
	ctx := context.Background()

	t.Run("named group", func(t *testing.T) {
		board, err := svc.GetLeaderboard(ctx, LeaderboardQuery{Scope: domain.ScopeGroups, GroupID: "g1"})
		require.NoError(t, err)
		assert.Equal(t, []string{"u3", "u2"}, userIDs(board.Rows))
		assert.Equal(t, "g1", board.GroupID)
	})

	t.Run("groupmates of the caller", func(t *testing.T) {
		board, err := svc.GetLeaderboard(ctx, LeaderboardQuery{Scope: domain.ScopeGroups, CurrentUserID: "u2"})
		require.NoError(t, err)
		assert.Equal(t, []string{"u3", "u2"}, userIDs(board.Rows))
	})

	t.Run("caller without groups sees only themselves", func(t *testing.T) {
		board, err := svc.GetLeaderboard(ctx, LeaderboardQuery{Scope: domain.ScopeGroups, CurrentUserID: "u1"})
		require.NoError(t, err)
		assert.Equal(t, []string{"u1"}, userIDs(board.Rows))
	})

	t.Run("unknown group", func(t *testing.T) {
		_, err := svc.GetLeaderboard(ctx, LeaderboardQuery{Scope: domain.ScopeGroups, GroupID: "missing"})
		assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	})
}

func TestLeaderboardService_MyRowBeyondLimit(t *testing.T) {
	svc, _ := setupLeaderboardTest(t, LeaderboardOptions{})

	board, err := svc.GetLeaderboard(context.Background(), LeaderboardQuery{Limit: 1, CurrentUserID: "u2"})
	require.NoError(t, err)

	assert.Equal(t, []string{"u3"}, userIDs(board.Rows))
	assert.Equal(t, 3, board.TotalRows)
	require.NotNil(t, board.MyRow)
	assert.Equal(t, "u2", board.MyRow.UserID)
	assert.Equal(t, 3, board.MyRow.Rank)
	assert.True(t, board.MyRow.IsCurrentUser)
	assert.Equal(t, "User u2", board.MyRow.DisplayName)

	// Inside the limit the row is not repeated.
	board, err = svc.GetLeaderboard(context.Background(), LeaderboardQuery{Limit: 1, CurrentUserID: "u3"})
	require.NoError(t, err)
	assert.Nil(t, board.MyRow)
	assert.True(t, board.Rows[0].IsCurrentUser)
}

func TestLeaderboardService_TiesBreakOnUserID(t *testing.T) {
	s := setupStore(t)
	for _, u := range []string{"b", "a", "c"} {
		createUser(t, s, u)
		logDays(t, s, u, "2026-03-02")
	}
	svc := NewLeaderboardService(s, LeaderboardOptions{Points: scoring.DefaultPointsEngine()}, testLogger())
	svc.now = fixedClock(leaderboardRef)

	board, err := svc.GetLeaderboard(context.Background(), LeaderboardQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, userIDs(board.Rows))
	assert.Equal(t, []int{1, 2, 3}, []int{board.Rows[0].Rank, board.Rows[1].Rank, board.Rows[2].Rank})
}

func TestLeaderboardService_CompetitionWinsAddPoints(t *testing.T) {
	svc, s := setupLeaderboardTest(t, LeaderboardOptions{})
	ctx := context.Background()

	createGroup(t, s, "winners", "u2")
	createGroup(t, s, "losers", "u4")
	c := &domain.GroupCompetition{
		ID:           "comp-1",
		Group1ID:     "winners",
		Group2ID:     "losers",
		Type:         domain.CompetitionChallenge,
		Status:       domain.CompetitionActive,
		DurationDays: 1,
		EndsAt:       leaderboardRef.AddDate(0, 0, -1),
		CreatedBy:    "u2",
		CreatedAt:    leaderboardRef.AddDate(0, 0, -2),
	}
	require.NoError(t, s.CreateCompetition(ctx, c))
	require.NoError(t, s.RecordContribution(ctx, c.ID, "u2", "winners", 10, 1, leaderboardRef))
	_, err := s.FinalizeCompetition(ctx, c.ID, leaderboardRef)
	require.NoError(t, err)

	board, err := svc.GetLeaderboard(ctx, LeaderboardQuery{})
	require.NoError(t, err)

	// u2: 1 workout + 1 win = 60 pts, now first.
	assert.Equal(t, []string{"u2", "u3", "u1"}, userIDs(board.Rows))
	assert.Equal(t, int64(1), board.Rows[0].CompetitionWins)
	assert.Equal(t, int64(60), board.Rows[0].Points)
}

func TestLeaderboardService_RankChange(t *testing.T) {
	svc, s := setupLeaderboardTest(t, LeaderboardOptions{Snapshots: true})
	ctx := context.Background()
	q := LeaderboardQuery{CurrentUserID: "u2"}

	board, err := svc.GetLeaderboard(ctx, q)
	require.NoError(t, err)
	require.Len(t, board.Rows, 3)
	assert.Nil(t, board.Rows[2].RankChange, "first view has nothing to compare against")

	logDays(t, s, "u2", "2026-03-10", "2026-03-11", "2026-03-12", "2026-03-13", "2026-03-14", "2026-03-15")

	board, err = svc.GetLeaderboard(ctx, q)
	require.NoError(t, err)
	require.Equal(t, "u2", board.Rows[0].UserID)
	require.NotNil(t, board.Rows[0].RankChange)
	assert.Equal(t, 2, *board.Rows[0].RankChange)

	// Only the caller's row carries movement.
	assert.Nil(t, board.Rows[1].RankChange)

	snap, err := s.GetSnapshot(ctx, "u2", "global", "2026-03")
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Rank)
}

func TestLeaderboardService_Validation(t *testing.T) {
	svc, _ := setupLeaderboardTest(t, LeaderboardOptions{})
	ctx := context.Background()

	tests := []struct {
		name  string
		query LeaderboardQuery
	}{
		{"unknown scope", LeaderboardQuery{Scope: "weekly"}},
		{"group id outside groups scope", LeaderboardQuery{Scope: domain.ScopeGlobal, GroupID: "g1"}},
		{"friends without caller", LeaderboardQuery{Scope: domain.ScopeFriends}},
		{"groups without caller or group", LeaderboardQuery{Scope: domain.ScopeGroups}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.GetLeaderboard(ctx, tt.query)
			assert.ErrorIs(t, err, domainerrors.ErrValidation)
		})
	}
}

func TestLeaderboardService_LimitIsClamped(t *testing.T) {
	s := setupStore(t)
	for i := range 120 {
		u := "user-" + string(rune('a'+i/26)) + string(rune('a'+i%26))
		createUser(t, s, u)
		logDays(t, s, u, "2026-03-03")
	}
	svc := NewLeaderboardService(s, LeaderboardOptions{Points: scoring.DefaultPointsEngine()}, testLogger())
	svc.now = fixedClock(leaderboardRef)

	board, err := svc.GetLeaderboard(context.Background(), LeaderboardQuery{Limit: 500})
	require.NoError(t, err)
	assert.Len(t, board.Rows, 100)
	assert.Equal(t, 120, board.TotalRows)

	board, err = svc.GetLeaderboard(context.Background(), LeaderboardQuery{})
	require.NoError(t, err)
	assert.Len(t, board.Rows, 10)
}

// memoryCache is an ActivityCache backed by a map.
type memoryCache struct {
	mu   sync.Mutex
	data map[string]*domain.PeriodActivity
}

func (c *memoryCache) GetActivity(period string) (*domain.PeriodActivity, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	act, ok := c.data[period]
	if !ok {
		return nil, false, nil
	}
	cp := *act
	cp.WorkoutDays = maps.Clone(act.WorkoutDays)
	return &cp, true, nil
}

func (c *memoryCache) SetActivity(act *domain.PeriodActivity) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = make(map[string]*domain.PeriodActivity)
	}
	c.data[act.Period] = act
	return nil
}

func (c *memoryCache) Invalidate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = nil
	return nil
}

func TestLeaderboardService_Cache(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	cache := &memoryCache{}
	svc, s := setupLeaderboardTest(t, LeaderboardOptions{Cache: cache, Metrics: m})
	ctx := context.Background()

	_, err := svc.GetLeaderboard(ctx, LeaderboardQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LeaderboardCache.WithLabelValues("miss")))

	// A workout written behind the cache's back is not seen until invalidation.
	logDays(t, s, "u2", "2026-03-02")
	board, err := svc.GetLeaderboard(ctx, LeaderboardQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LeaderboardCache.WithLabelValues("hit")))
	assert.Equal(t, int64(1), board.Rows[2].WorkoutsCount)

	svc.InvalidateActivity()
	board, err = svc.GetLeaderboard(ctx, LeaderboardQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LeaderboardCache.WithLabelValues("miss")))
	assert.Equal(t, int64(2), board.Rows[2].WorkoutsCount)
}
