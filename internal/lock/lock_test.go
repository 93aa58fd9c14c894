package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	r := NewRedis(RedisConfig{Addr: mr.Addr()})
	t.Cleanup(func() { r.Close() })
	return r, mr
}

func TestLockers_Exclusive(t *testing.T) {
	r, _ := newTestRedis(t)
	lockers := map[string]Locker{
		"local": NewLocal(),
		"redis": r,
	}

	for name, l := range lockers {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			lease, ok, err := l.TryAcquire(ctx, "job:"+name, time.Minute)
			require.NoError(t, err)
			require.True(t, ok)

			_, ok, err = l.TryAcquire(ctx, "job:"+name, time.Minute)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, lease.Release(ctx))
			assert.ErrorIs(t, lease.Release(ctx), ErrNotHeld)

			again, ok, err := l.TryAcquire(ctx, "job:"+name, time.Minute)
			require.NoError(t, err)
			require.True(t, ok)
			require.NoError(t, again.Release(ctx))
		})
	}
}

func TestLockers_ConcurrentSingleWinner(t *testing.T) {
	r, _ := newTestRedis(t)
	lockers := map[string]Locker{
		"local": NewLocal(),
		"redis": r,
	}

	for name, l := range lockers {
		t.Run(name, func(t *testing.T) {
			var (
				wg   sync.WaitGroup
				wins atomic.Int32
			)
			for range 16 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, ok, err := l.TryAcquire(context.Background(), "contended", time.Minute)
					assert.NoError(t, err)
					if ok {
						wins.Add(1)
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, int32(1), wins.Load())
		})
	}
}

func TestRedis_ExpiredLeaseCannotReleaseNewHolder(t *testing.T) {
	r, mr := newTestRedis(t)
	ctx := context.Background()

	first, ok, err := r.TryAcquire(ctx, "finalize", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	second, ok, err := r.TryAcquire(ctx, "finalize", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	assert.ErrorIs(t, first.Release(ctx), ErrNotHeld)
	assert.True(t, mr.Exists("finalize"))
	require.NoError(t, second.Release(ctx))
	assert.False(t, mr.Exists("finalize"))
}

func TestLocal_Expiry(t *testing.T) {
	l := NewLocal()
	now := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	first, ok, err := l.TryAcquire(ctx, "pairing", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, err = l.TryAcquire(ctx, "pairing", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "expired lease is taken over")
	assert.ErrorIs(t, first.Release(ctx), ErrNotHeld)
}
