package service

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ironcrew/ironcrew-server/internal/domain"
	"github.com/ironcrew/ironcrew-server/internal/id"
	"github.com/ironcrew/ironcrew-server/internal/sse"
	"github.com/ironcrew/ironcrew-server/internal/store/sqlite"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupStore opens a fresh database in a temp directory.
func setupStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func mustDay(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := domain.ParseDay(s)
	require.NoError(t, err)
	return d
}

func createUser(t *testing.T, s *sqlite.Store, userID string) {
	t.Helper()
	require.NoError(t, s.CreateUser(context.Background(), &domain.User{ID: userID, DisplayName: "User " + userID}))
}

// createGroup creates a group owned by ownerID with extra plain members.
// Users are created on demand.
func createGroup(t *testing.T, s *sqlite.Store, groupID, ownerID string, members ...string) {
	t.Helper()
	ctx := context.Background()
	for _, u := range append([]string{ownerID}, members...) {
		if _, err := s.GetUser(ctx, u); err != nil {
			createUser(t, s, u)
		}
	}
	require.NoError(t, s.CreateGroup(ctx, &domain.Group{ID: groupID, Name: groupID, OwnerID: ownerID}))
	for _, m := range members {
		require.NoError(t, s.AddGroupMember(ctx, groupID, m, domain.GroupRoleMember))
	}
}

func befriend(t *testing.T, s *sqlite.Store, a, b string) {
	t.Helper()
	require.NoError(t, s.CreateFriendship(context.Background(), a, b, domain.FriendshipAccepted))
}

// logDays inserts workouts straight into the store, in order.
func logDays(t *testing.T, s *sqlite.Store, userID string, days ...string) {
	t.Helper()
	for _, d := range days {
		_, err := s.CreateWorkout(context.Background(), &domain.Workout{
			ID:     id.MustGenerate(id.PrefixWorkout),
			UserID: userID,
			Date:   mustDay(t, d),
		})
		require.NoError(t, err)
	}
}

// recordingAnnouncer captures announcements and events in memory.
type recordingAnnouncer struct {
	mu            sync.Mutex
	announcements []*domain.Announcement
	events        []sse.Event
	fail          error
}

func (r *recordingAnnouncer) Announce(_ context.Context, a *domain.Announcement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.announcements = append(r.announcements, a)
	return nil
}

func (r *recordingAnnouncer) Publish(evt sse.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

// kinds returns the kinds announced to userID, in order.
func (r *recordingAnnouncer) kinds(userID string) []domain.AnnouncementKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.AnnouncementKind
	for _, a := range r.announcements {
		if a.UserID == userID {
			out = append(out, a.Kind)
		}
	}
	return out
}

func (r *recordingAnnouncer) eventCount(eventType sse.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}
