// Package cache keeps short-lived leaderboard aggregations in Badger so
// repeated leaderboard reads within a period do not rescan the workout log.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/ironcrew/ironcrew-server/internal/domain"
)

const activityPrefix = "leaderboard:activity:"

// Config controls where and how long aggregations are kept.
type Config struct {
	// Dir is the Badger directory. Ignored when InMemory is set.
	Dir      string
	InMemory bool
	// ReadOnly opens an existing directory without taking the write lock.
	ReadOnly bool
	TTL      time.Duration
}

// LeaderboardCache stores domain.PeriodActivity keyed by period.
type LeaderboardCache struct {
	db     *badger.DB
	ttl    time.Duration
	logger *slog.Logger
}

// Open opens the cache.
func Open(cfg Config, logger *slog.Logger) (*LeaderboardCache, error) {
	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else if cfg.ReadOnly {
		opts = opts.WithReadOnly(true)
	}
	opts.Logger = nil // Disable Badger's internal logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger cache: %w", err)
	}

	if logger != nil {
		logger.Info("Leaderboard cache opened", "dir", cfg.Dir, "in_memory", cfg.InMemory, "ttl", cfg.TTL)
	}
	return &LeaderboardCache{db: db, ttl: cfg.TTL, logger: logger}, nil
}

// Close closes the underlying Badger database.
func (c *LeaderboardCache) Close() error {
	return c.db.Close()
}

func activityKey(period string) []byte {
	return []byte(activityPrefix + period)
}

// GetActivity returns the cached aggregation for period. The bool is false on
// a miss or after the entry expired.
func (c *LeaderboardCache) GetActivity(period string) (*domain.PeriodActivity, bool, error) {
	var act domain.PeriodActivity
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(activityKey(period))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &act)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cached activity: %w", err)
	}
	return &act, true, nil
}

// SetActivity stores an aggregation under its period with the configured TTL.
// A zero TTL disables caching.
func (c *LeaderboardCache) SetActivity(act *domain.PeriodActivity) error {
	if c.ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(act)
	if err != nil {
		return fmt.Errorf("failed to marshal activity: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(activityKey(act.Period), data).WithTTL(c.ttl))
	})
}

// Ping reports whether the cache can still serve reads.
func (c *LeaderboardCache) Ping(context.Context) error {
	if c.db.IsClosed() {
		return errors.New("leaderboard cache is closed")
	}
	return c.db.View(func(*badger.Txn) error { return nil })
}

// Invalidate drops every cached aggregation. Wins are counted across all
// history, so a finalized competition changes every period at once.
func (c *LeaderboardCache) Invalidate() error {
	return c.db.DropPrefix([]byte(activityPrefix))
}

// InvalidatePeriod drops the aggregation of one period.
func (c *LeaderboardCache) InvalidatePeriod(period string) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(activityKey(period))
	})
	if err != nil {
		return fmt.Errorf("invalidate period %s: %w", period, err)
	}
	return nil
}

// CachedPeriod describes one cached aggregation.
type CachedPeriod struct {
	Period    string
	Users     int
	ExpiresAt time.Time // zero when the entry never expires
}

// Periods lists the cached aggregations in key order.
func (c *LeaderboardCache) Periods() ([]CachedPeriod, error) {
	var out []CachedPeriod
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(activityPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var act domain.PeriodActivity
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &act)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", item.Key(), err)
			}

			cp := CachedPeriod{Period: act.Period, Users: len(act.WorkoutDays)}
			if exp := item.ExpiresAt(); exp > 0 {
				cp.ExpiresAt = time.Unix(int64(exp), 0)
			}
			out = append(out, cp)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list cached periods: %w", err)
	}
	return out, nil
}
