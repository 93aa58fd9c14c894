package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ironcrew/ironcrew-server/internal/domain"
)

// duelColumns is the ordered list of columns selected in duel queries.
// Must match the scan order in scanDuel.
const duelColumns = `id, challenger_id, opponent_id, type, duration_days, status,
	challenger_score, opponent_score, winner_id, started_at, ends_at,
	created_at, updated_at`

func scanDuel(sc scanner) (*domain.Duel, error) {
	var (
		d         domain.Duel
		typ       string
		status    string
		winner    sql.NullString
		startedAt sql.NullString
		endsAt    sql.NullString
		createdAt string
		updatedAt string
	)
	err := sc.Scan(
		&d.ID,
		&d.ChallengerID,
		&d.OpponentID,
		&typ,
		&d.DurationDays,
		&status,
		&d.ChallengerScore,
		&d.OpponentScore,
		&winner,
		&startedAt,
		&endsAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Type = domain.DuelType(typ)
	d.Status = domain.DuelStatus(status)
	d.WinnerID = stringPtr(winner)

	if d.StartedAt, err = parseNullableTime(startedAt); err != nil {
		return nil, err
	}
	if d.EndsAt, err = parseNullableTime(endsAt); err != nil {
		return nil, err
	}
	if d.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if d.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateDuel inserts a duel. Returns store.ErrAlreadyExists if the pair
// already has a pending or active duel, in either direction.
func (s *Store) CreateDuel(ctx context.Context, d *domain.Duel) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO duels (`+duelColumns+`, pair_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID,
		d.ChallengerID,
		d.OpponentID,
		string(d.Type),
		d.DurationDays,
		string(d.Status),
		d.ChallengerScore,
		d.OpponentScore,
		nullableString(d.WinnerID),
		nullTimeString(d.StartedAt),
		nullTimeString(d.EndsAt),
		formatTime(d.CreatedAt),
		formatTime(d.UpdatedAt),
		domain.PairKey(d.ChallengerID, d.OpponentID),
	)
	return uniqueOr(err, "an open duel already exists between these users")
}

// GetDuel retrieves a duel by ID.
// Returns store.ErrNotFound if the duel does not exist.
func (s *Store) GetDuel(ctx context.Context, id string) (*domain.Duel, error) {
	d, err := scanDuel(s.db.QueryRowContext(ctx,
		`SELECT `+duelColumns+` FROM duels WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "duel not found")
	}
	return d, nil
}

// GetOpenDuelBetween returns the pending or active duel between two users.
// Returns store.ErrNotFound if there is none.
func (s *Store) GetOpenDuelBetween(ctx context.Context, userA, userB string) (*domain.Duel, error) {
	d, err := scanDuel(s.db.QueryRowContext(ctx, `
		SELECT `+duelColumns+` FROM duels
		WHERE pair_key = ? AND status IN ('pending', 'active')`,
		domain.PairKey(userA, userB)))
	if err != nil {
		return nil, notFound(err, "no open duel")
	}
	return d, nil
}

func (s *Store) queryDuels(ctx context.Context, query string, args ...any) ([]*domain.Duel, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query duels: %w", err)
	}
	defer rows.Close()

	var out []*domain.Duel
	for rows.Next() {
		d, err := scanDuel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan duel: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListDuelsForUser lists every duel userID took part in, newest first.
func (s *Store) ListDuelsForUser(ctx context.Context, userID string) ([]*domain.Duel, error) {
	return s.queryDuels(ctx, `
		SELECT `+duelColumns+` FROM duels
		WHERE challenger_id = ? OR opponent_id = ?
		ORDER BY created_at DESC, id`, userID, userID)
}

// ListActiveDuelsForUser lists the active duels userID takes part in.
func (s *Store) ListActiveDuelsForUser(ctx context.Context, userID string) ([]*domain.Duel, error) {
	return s.queryDuels(ctx, `
		SELECT `+duelColumns+` FROM duels
		WHERE status = 'active' AND (challenger_id = ? OR opponent_id = ?)
		ORDER BY created_at, id`, userID, userID)
}

// ListExpiredDuels returns active duels whose end has passed.
func (s *Store) ListExpiredDuels(ctx context.Context, now time.Time) ([]*domain.Duel, error) {
	return s.queryDuels(ctx, `
		SELECT `+duelColumns+` FROM duels
		WHERE status = 'active' AND ends_at <= ?
		ORDER BY ends_at, id`, formatTime(now))
}

// ActivateDuel moves a pending duel to active with its window set.
// Returns store.ErrStateChanged if it is no longer pending.
func (s *Store) ActivateDuel(ctx context.Context, id string, startedAt, endsAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE duels
		SET status = 'active', started_at = ?, ends_at = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'`,
		formatTime(startedAt), formatTime(endsAt), formatTime(startedAt), id)
	if err != nil {
		return fmt.Errorf("activate duel: %w", err)
	}
	return expectOne(res, "duel is no longer pending")
}

// ClosePendingDuel moves a pending duel to declined or cancelled.
// Returns store.ErrStateChanged if it is no longer pending.
func (s *Store) ClosePendingDuel(ctx context.Context, id string, to domain.DuelStatus, now time.Time) error {
	if to != domain.DuelDeclined && to != domain.DuelCancelled {
		return fmt.Errorf("invalid duel transition to %q", to)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE duels SET status = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'`,
		string(to), formatTime(now), id)
	if err != nil {
		return fmt.Errorf("close duel: %w", err)
	}
	return expectOne(res, "duel is no longer pending")
}

// SetDuelScore writes one participant's score on an active duel.
// Returns store.ErrStateChanged if the duel is not active.
func (s *Store) SetDuelScore(ctx context.Context, id, userID string, score int64, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE duels SET
			challenger_score = CASE WHEN challenger_id = ? THEN ? ELSE challenger_score END,
			opponent_score   = CASE WHEN opponent_id = ? THEN ? ELSE opponent_score END,
			updated_at = ?
		WHERE id = ? AND status = 'active'`,
		userID, score, userID, score, formatTime(now), id)
	if err != nil {
		return fmt.Errorf("set duel score: %w", err)
	}
	return expectOne(res, "duel is not active")
}

// FinalizeDuel completes an expired active duel and records the winner from
// the scores read inside the transaction. Returns store.ErrStateChanged if the
// duel is not active or has not ended by now.
func (s *Store) FinalizeDuel(ctx context.Context, id string, now time.Time) (*domain.Duel, error) {
	var out *domain.Duel
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		d, err := scanDuel(tx.QueryRowContext(ctx,
			`SELECT `+duelColumns+` FROM duels WHERE id = ?`, id))
		if err != nil {
			return notFound(err, "duel not found")
		}

		winner := domain.Winner(d.ChallengerID, d.ChallengerScore, d.OpponentID, d.OpponentScore)
		res, err := tx.ExecContext(ctx, `
			UPDATE duels
			SET status = 'completed', winner_id = ?, updated_at = ?
			WHERE id = ? AND status = 'active' AND ends_at <= ?`,
			nullableString(winner), formatTime(now), id, formatTime(now))
		if err != nil {
			return fmt.Errorf("finalize duel: %w", err)
		}
		if err := expectOne(res, "duel is not an expired active duel"); err != nil {
			return err
		}

		d.Status = domain.DuelCompleted
		d.WinnerID = winner
		d.UpdatedAt = now
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
