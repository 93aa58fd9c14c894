// Package lock provides named, expiring locks for periodic jobs that may run
// on more than one server instance at a time.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotHeld is returned by Release when the lock expired or was taken over.
var ErrNotHeld = errors.New("lock not held")

// Locker hands out named locks. TryAcquire never blocks: a false result means
// another holder has the lock.
type Locker interface {
	TryAcquire(ctx context.Context, name string, ttl time.Duration) (Lease, bool, error)
}

// Lease is a held lock.
type Lease interface {
	Release(ctx context.Context) error
}

// Local is an in-process Locker for single-instance deployments.
type Local struct {
	mu    sync.Mutex
	held  map[string]localEntry
	now   func() time.Time
	nextN uint64
}

type localEntry struct {
	token     uint64
	expiresAt time.Time
}

// NewLocal creates an in-process locker.
func NewLocal() *Local {
	return &Local{held: make(map[string]localEntry), now: time.Now}
}

// TryAcquire takes name for ttl unless an unexpired holder exists.
func (l *Local) TryAcquire(_ context.Context, name string, ttl time.Duration) (Lease, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, ok := l.held[name]; ok && now.Before(e.expiresAt) {
		return nil, false, nil
	}

	l.nextN++
	l.held[name] = localEntry{token: l.nextN, expiresAt: now.Add(ttl)}
	return &localLease{locker: l, name: name, token: l.nextN}, true, nil
}

type localLease struct {
	locker *Local
	name   string
	token  uint64
}

func (ll *localLease) Release(_ context.Context) error {
	l := ll.locker
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.held[ll.name]
	if !ok || e.token != ll.token {
		return ErrNotHeld
	}
	delete(l.held, ll.name)
	return nil
}
