package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ironcrew/ironcrew-server/internal/domain"
	"github.com/ironcrew/ironcrew-server/internal/store"
)

// EnqueueGroup adds a group to the matchmaking queue.
// Returns store.ErrAlreadyExists if the group is already queued.
func (s *Store) EnqueueGroup(ctx context.Context, e *domain.MatchmakingQueueEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO matchmaking_queue (group_id, queued_by, queued_at)
		VALUES (?, ?, ?)`,
		e.GroupID, e.QueuedBy, formatTime(e.QueuedAt))
	return uniqueOr(err, "group is already queued")
}

// DequeueGroup removes a group from the queue.
// Returns store.ErrNotFound if the group was not queued.
func (s *Store) DequeueGroup(ctx context.Context, groupID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM matchmaking_queue WHERE group_id = ?`, groupID)
	if err != nil {
		return fmt.Errorf("dequeue group: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound.WithMessage("group is not queued")
	}
	return nil
}

func scanQueueEntry(sc scanner) (*domain.MatchmakingQueueEntry, error) {
	var (
		e        domain.MatchmakingQueueEntry
		queuedAt string
	)
	if err := sc.Scan(&e.GroupID, &e.QueuedBy, &queuedAt); err != nil {
		return nil, err
	}
	var err error
	if e.QueuedAt, err = parseTime(queuedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

// GetQueueEntry returns a group's queue entry.
// Returns store.ErrNotFound if the group is not queued.
func (s *Store) GetQueueEntry(ctx context.Context, groupID string) (*domain.MatchmakingQueueEntry, error) {
	e, err := scanQueueEntry(s.db.QueryRowContext(ctx,
		`SELECT group_id, queued_by, queued_at FROM matchmaking_queue WHERE group_id = ?`, groupID))
	if err != nil {
		return nil, notFound(err, "group is not queued")
	}
	return e, nil
}

// ListQueue returns the queue oldest first.
func (s *Store) ListQueue(ctx context.Context) ([]*domain.MatchmakingQueueEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT group_id, queued_by, queued_at FROM matchmaking_queue
		ORDER BY queued_at, group_id`)
	if err != nil {
		return nil, fmt.Errorf("query queue: %w", err)
	}
	defer rows.Close()

	var out []*domain.MatchmakingQueueEntry
	for rows.Next() {
		e, err := scanQueueEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// PairGroups turns two queue entries into a competition in one transaction:
// both queue rows are removed, both slots claimed and the competition
// inserted. Returns store.ErrStateChanged if either group left the queue and
// store.ErrAlreadyExists if either group already holds an open competition.
func (s *Store) PairGroups(ctx context.Context, c *domain.GroupCompetition) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, groupID := range []string{c.Group1ID, c.Group2ID} {
			res, err := tx.ExecContext(ctx,
				`DELETE FROM matchmaking_queue WHERE group_id = ?`, groupID)
			if err != nil {
				return fmt.Errorf("dequeue group: %w", err)
			}
			if err := expectOne(res, "group left the queue"); err != nil {
				return err
			}
		}
		return insertCompetition(ctx, tx, c)
	})
}
