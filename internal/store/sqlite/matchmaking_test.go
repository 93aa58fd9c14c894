package sqlite

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironcrew/ironcrew-server/internal/domain"
	"github.com/ironcrew/ironcrew-server/internal/store"
)

func TestQueue_EnqueueDequeue(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()
	seedGroup(t, s, "g1", "o1")
	seedGroup(t, s, "g2", "o2")

	require.NoError(t, s.EnqueueGroup(ctx, &domain.MatchmakingQueueEntry{GroupID: "g2", QueuedBy: "o2", QueuedAt: now}))
	require.NoError(t, s.EnqueueGroup(ctx, &domain.MatchmakingQueueEntry{GroupID: "g1", QueuedBy: "o1", QueuedAt: now.Add(time.Second)}))

	err := s.EnqueueGroup(ctx, &domain.MatchmakingQueueEntry{GroupID: "g1", QueuedBy: "o1", QueuedAt: now})
	assert.ErrorIs(t, err, store.ErrAlreadyExists)

	queue, err := s.ListQueue(ctx)
	require.NoError(t, err)
	require.Len(t, queue, 2)
	assert.Equal(t, "g2", queue[0].GroupID, "oldest first")

	entry, err := s.GetQueueEntry(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "o1", entry.QueuedBy)

	require.NoError(t, s.DequeueGroup(ctx, "g1"))
	assert.ErrorIs(t, s.DequeueGroup(ctx, "g1"), store.ErrNotFound)
	_, err = s.GetQueueEntry(ctx, "g1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestQueue_ConcurrentEnqueueOneRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedGroup(t, s, "g1", "o1")

	var (
		wg sync.WaitGroup
		ok atomic.Int32
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.EnqueueGroup(ctx, &domain.MatchmakingQueueEntry{GroupID: "g1", QueuedBy: "o1", QueuedAt: time.Now()})
			if err == nil {
				ok.Add(1)
			} else {
				assert.ErrorIs(t, err, store.ErrAlreadyExists)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	queue, err := s.ListQueue(ctx)
	require.NoError(t, err)
	assert.Len(t, queue, 1)
}

func TestPairGroups(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()
	seedGroup(t, s, "g1", "o1")
	seedGroup(t, s, "g2", "o2")
	seedGroup(t, s, "g3", "o3")

	for _, g := range []string{"g1", "g2"} {
		require.NoError(t, s.EnqueueGroup(ctx, &domain.MatchmakingQueueEntry{GroupID: g, QueuedBy: "o1", QueuedAt: now}))
	}

	c := newCompetition("m1", "g1", "g2", domain.CompetitionActive, now)
	c.Type = domain.CompetitionMatchmaking
	require.NoError(t, s.PairGroups(ctx, c))

	queue, err := s.ListQueue(ctx)
	require.NoError(t, err)
	assert.Empty(t, queue)

	open, err := s.GetOpenCompetitionForGroup(ctx, "g2")
	require.NoError(t, err)
	assert.Equal(t, "m1", open.ID)

	// A group that is not queued cannot be paired; nothing is written.
	c2 := newCompetition("m2", "g3", "g1", domain.CompetitionActive, now)
	require.NoError(t, s.EnqueueGroup(ctx, &domain.MatchmakingQueueEntry{GroupID: "g3", QueuedBy: "o3", QueuedAt: now}))
	assert.ErrorIs(t, s.PairGroups(ctx, c2), store.ErrStateChanged)

	_, err = s.GetQueueEntry(ctx, "g3")
	assert.NoError(t, err, "rolled back dequeue of g3")
	_, err = s.GetCompetition(ctx, "m2")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
