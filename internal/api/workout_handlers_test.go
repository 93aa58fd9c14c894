package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironcrew/ironcrew-server/internal/achievements"
	"github.com/ironcrew/ironcrew-server/internal/domain"
	"github.com/ironcrew/ironcrew-server/internal/service"
)

func TestLogWorkout(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.authHeader(t, "alice")

	yesterday := domain.FormatDay(time.Now().AddDate(0, 0, -1))
	resp := ts.api.Post("/api/v1/workouts", alice, map[string]any{"date": yesterday})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	result := decode[service.LogWorkoutResult](t, resp)
	assert.Equal(t, yesterday, domain.FormatDay(result.Workout.Date))
	assert.Equal(t, 1, result.Streak)
	require.Len(t, result.NewlyUnlocked, 1)
	assert.Equal(t, "first-sweat", result.NewlyUnlocked[0].Definition.ID)

	// No body logs today.
	resp = ts.api.Post("/api/v1/workouts", alice)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	result = decode[service.LogWorkoutResult](t, resp)
	assert.Equal(t, domain.FormatDay(time.Now()), domain.FormatDay(result.Workout.Date))
	assert.Equal(t, 2, result.Streak)
	assert.Empty(t, result.NewlyUnlocked)
}

func TestLogWorkout_Errors(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.authHeader(t, "alice")
	today := domain.FormatDay(time.Now())

	resp := ts.api.Post("/api/v1/workouts", alice, map[string]any{"date": today})
	require.Equal(t, http.StatusCreated, resp.Code)

	tests := []struct {
		name   string
		body   map[string]any
		status int
		code   string
	}{
		{"duplicate day", map[string]any{"date": today}, http.StatusConflict, "CONFLICT"},
		{"future day", map[string]any{"date": domain.FormatDay(time.Now().AddDate(0, 0, 2))}, http.StatusBadRequest, "VALIDATION"},
		{"bad format", map[string]any{"date": "10/07/2026"}, http.StatusBadRequest, "VALIDATION"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.api.Post("/api/v1/workouts", alice, tt.body)
			require.Equal(t, tt.status, resp.Code, resp.Body.String())
			assert.Equal(t, tt.code, decode[errorBody](t, resp).Code)
		})
	}

	resp = ts.api.Post("/api/v1/workouts", alice, map[string]any{"date": "yesterday"})
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "must be a date in YYYY-MM-DD format", decode[errorBody](t, resp).Details["date"])
}

func TestWorkoutHistory(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.authHeader(t, "alice")

	today := time.Now().UTC()
	yesterday := domain.FormatDay(today.AddDate(0, 0, -1))
	require.Equal(t, http.StatusCreated, ts.api.Post("/api/v1/workouts", alice, map[string]any{"date": yesterday}).Code)
	require.Equal(t, http.StatusCreated, ts.api.Post("/api/v1/workouts", alice).Code)

	resp := ts.api.Get("/api/v1/me/workouts?from="+yesterday, alice)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	history := decode[service.WorkoutHistory](t, resp)
	assert.Equal(t, yesterday, history.From)
	assert.Equal(t, domain.FormatDay(today), history.To)
	assert.Equal(t, []string{yesterday, domain.FormatDay(today)}, history.Days)

	resp = ts.api.Get("/api/v1/me/workouts?to="+yesterday+"&from="+yesterday, ts.authHeader(t, "bob"))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, decode[service.WorkoutHistory](t, resp).Days, "only the caller's days")

	resp = ts.api.Get("/api/v1/me/workouts?from=2026-13-01", alice)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, decode[errorBody](t, resp).Details, "from")

	resp = ts.api.Get("/api/v1/me/workouts?from="+domain.FormatDay(today)+"&to="+yesterday, alice)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "VALIDATION", decode[errorBody](t, resp).Code)
}

func TestLeaderboard(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.authHeader(t, "alice")
	bob := ts.authHeader(t, "bob")

	require.Equal(t, http.StatusCreated, ts.api.Post("/api/v1/workouts", bob).Code)
	require.Equal(t, http.StatusCreated, ts.api.Post("/api/v1/workouts", alice).Code)

	resp := ts.api.Get("/api/v1/leaderboard", alice)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	board := decode[domain.Leaderboard](t, resp)
	assert.Equal(t, domain.ScopeGlobal, board.Scope)
	assert.Equal(t, domain.MonthPeriod(time.Now()).Key(), board.Period)
	require.Len(t, board.Rows, 2)
	// Equal points break on user ID.
	assert.Equal(t, "alice", board.Rows[0].UserID)
	assert.Equal(t, "bob", board.Rows[1].UserID)
	assert.Equal(t, board.Rows[0].Points, board.Rows[1].Points)
	assert.True(t, board.Rows[0].IsCurrentUser)
	assert.Equal(t, "User bob", board.Rows[1].DisplayName)

	resp = ts.api.Get("/api/v1/leaderboard?scope=friends", alice)
	require.Equal(t, http.StatusOK, resp.Code)
	friends := decode[domain.Leaderboard](t, resp)
	require.Len(t, friends.Rows, 1, "alice has no friends yet")
	assert.Equal(t, "alice", friends.Rows[0].UserID)

	resp = ts.api.Get("/api/v1/leaderboard?limit=1", bob)
	require.Equal(t, http.StatusOK, resp.Code)
	limited := decode[domain.Leaderboard](t, resp)
	require.Len(t, limited.Rows, 1)
	require.NotNil(t, limited.MyRow)
	assert.Equal(t, "bob", limited.MyRow.UserID)
	assert.Equal(t, 2, limited.MyRow.Rank)
}

func TestLeaderboard_Validation(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.authHeader(t, "alice")

	resp := ts.api.Get("/api/v1/leaderboard?scope=galaxy", alice)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	body := decode[errorBody](t, resp)
	assert.Equal(t, "VALIDATION", body.Code)
	assert.Contains(t, body.Details, "scope")

	resp = ts.api.Get("/api/v1/leaderboard?scope=groups&group_id=missing", alice)
	require.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "NOT_FOUND", decode[errorBody](t, resp).Code)
}

func TestProgression(t *testing.T) {
	ts := setupTestServer(t)
	alice := ts.authHeader(t, "alice")

	resp := ts.api.Get("/api/v1/me/level", alice)
	require.Equal(t, http.StatusOK, resp.Code)
	level := decode[domain.UserLevel](t, resp)
	assert.Equal(t, 1, level.Tier)
	assert.Zero(t, level.XP)

	require.Equal(t, http.StatusCreated, ts.api.Post("/api/v1/workouts", alice).Code)

	resp = ts.api.Get("/api/v1/me/achievements", alice)
	require.Equal(t, http.StatusOK, resp.Code)
	list := decode[AchievementListResponse](t, resp)
	assert.Len(t, list.Achievements, achievements.Default().Len())

	var unlocked []string
	for _, a := range list.Achievements {
		if a.Unlocked {
			unlocked = append(unlocked, a.Definition.ID)
			assert.True(t, a.Notified, "the workout pipeline celebrates unlocks")
		}
	}
	assert.Equal(t, []string{"first-sweat"}, unlocked)

	// Nothing new to unlock.
	resp = ts.api.Post("/api/v1/me/achievements/evaluate", alice)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, decode[EvaluateResponse](t, resp).NewlyUnlocked)

	resp = ts.api.Post("/api/v1/me/achievements/first-sweat/notified", alice)
	assert.Equal(t, http.StatusNoContent, resp.Code, "repeat is a no-op")

	resp = ts.api.Post("/api/v1/me/achievements/warming-up/notified", alice)
	assert.Equal(t, http.StatusNotFound, resp.Code, "not unlocked yet")

	resp = ts.api.Post("/api/v1/me/achievements/no-such-thing/notified", alice)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = ts.api.Get("/api/v1/me/announcements", alice)
	require.Equal(t, http.StatusOK, resp.Code)
	feed := decode[AnnouncementListResponse](t, resp)
	require.Len(t, feed.Announcements, 1)
	assert.Equal(t, domain.AnnouncementAchievementUnlocked, feed.Announcements[0].Kind)

	resp = ts.api.Get("/api/v1/me/announcements", ts.authHeader(t, "bob"))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, []any{}, decode[map[string]any](t, resp)["announcements"])
}
