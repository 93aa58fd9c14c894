package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironcrew/ironcrew-server/internal/domain"
	"github.com/ironcrew/ironcrew-server/internal/store"
)

func TestCreateWorkout_RunningStreak(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1")

	steps := []struct {
		id   string
		day  string
		want int
	}{
		{"w1", "2026-10-01", 1},
		{"w2", "2026-10-02", 2},
		{"w3", "2026-10-03", 3},
		{"w4", "2026-10-05", 1}, // gap resets
		{"w5", "2026-10-06", 2},
		{"w6", "2026-09-20", 2}, // backfill keeps the current streak
	}
	for _, step := range steps {
		streak, err := s.CreateWorkout(ctx, &domain.Workout{ID: step.id, UserID: "u1", Date: day(step.day)})
		require.NoError(t, err, step.id)
		assert.Equal(t, step.want, streak, step.id)
	}

	u, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, u.CurrentStreak)
	require.NotNil(t, u.LastWorkoutDate)
	assert.Equal(t, "2026-10-06", domain.FormatDay(*u.LastWorkoutDate))
}

func TestCreateWorkout_OnePerDay(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1")

	_, err := s.CreateWorkout(ctx, &domain.Workout{ID: "w1", UserID: "u1", Date: day("2026-10-01")})
	require.NoError(t, err)

	// Same day, different time of day.
	later := day("2026-10-01").Add(20 * time.Hour)
	_, err = s.CreateWorkout(ctx, &domain.Workout{ID: "w2", UserID: "u1", Date: later})
	assert.ErrorIs(t, err, store.ErrAlreadyExists)

	u, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, u.CurrentStreak)
}

func TestCreateWorkout_UnknownUser(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateWorkout(context.Background(), &domain.Workout{ID: "w1", UserID: "ghost", Date: day("2026-10-01")})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestWorkoutDayQueries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1")
	seedUser(t, s, "u2")

	logs := map[string][]string{
		"u1": {"2026-09-30", "2026-10-01", "2026-10-15", "2026-10-31", "2026-11-01"},
		"u2": {"2026-10-10"},
	}
	n := 0
	for user, days := range logs {
		for _, d := range days {
			n++
			_, err := s.CreateWorkout(ctx, &domain.Workout{ID: user + d, UserID: user, Date: day(d)})
			require.NoError(t, err)
		}
	}

	period := domain.MonthPeriod(day("2026-10-19"))
	byUser, err := s.ListWorkoutDays(ctx, period)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-10-01", "2026-10-15", "2026-10-31"}, byUser["u1"])
	assert.Equal(t, []string{"2026-10-10"}, byUser["u2"])

	dates, err := s.GetWorkoutDates(ctx, "u1", day("2026-10-01"), day("2026-10-31"))
	require.NoError(t, err)
	assert.Len(t, dates, 3)

	count, err := s.CountWorkoutDays(ctx, "u1", day("2026-10-01"), day("2026-10-31"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count, "upper bound is exclusive")
}
