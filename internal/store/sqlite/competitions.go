package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ironcrew/ironcrew-server/internal/domain"
	"github.com/ironcrew/ironcrew-server/internal/store"
)

// competitionColumns is the ordered list of columns selected in competition
// queries. Must match the scan order in scanCompetition.
const competitionColumns = `id, group1_id, group2_id, type, status, duration_days,
	started_at, ends_at, group1_score, group2_score, winner_group_id,
	created_by, created_at, updated_at`

func scanCompetition(sc scanner) (*domain.GroupCompetition, error) {
	var (
		c         domain.GroupCompetition
		typ       string
		status    string
		startedAt sql.NullString
		endsAt    string
		winner    sql.NullString
		createdAt string
		updatedAt string
	)
	err := sc.Scan(
		&c.ID,
		&c.Group1ID,
		&c.Group2ID,
		&typ,
		&status,
		&c.DurationDays,
		&startedAt,
		&endsAt,
		&c.Group1Score,
		&c.Group2Score,
		&winner,
		&c.CreatedBy,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Type = domain.CompetitionType(typ)
	c.Status = domain.CompetitionStatus(status)
	c.WinnerGroupID = stringPtr(winner)

	if c.StartedAt, err = parseNullableTime(startedAt); err != nil {
		return nil, err
	}
	if c.EndsAt, err = parseTime(endsAt); err != nil {
		return nil, err
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// insertCompetition writes the competition row and claims both groups'
// competition slots. A slot already held by another open competition fails
// with store.ErrAlreadyExists.
func insertCompetition(ctx context.Context, tx *sql.Tx, c *domain.GroupCompetition) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO group_competitions (`+competitionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		c.Group1ID,
		c.Group2ID,
		string(c.Type),
		string(c.Status),
		c.DurationDays,
		nullTimeString(c.StartedAt),
		formatTime(c.EndsAt),
		c.Group1Score,
		c.Group2Score,
		nullableString(c.WinnerGroupID),
		c.CreatedBy,
		formatTime(c.CreatedAt),
		formatTime(c.UpdatedAt),
	)
	if err != nil {
		return uniqueOr(err, "competition already exists")
	}

	for _, groupID := range []string{c.Group1ID, c.Group2ID} {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO competition_slots (group_id, competition_id) VALUES (?, ?)`,
			groupID, c.ID)
		if err != nil {
			return uniqueOr(err, "group already has an open competition")
		}
	}
	return nil
}

// releaseSlots frees the groups held by a competition that left pending/active.
func releaseSlots(ctx context.Context, tx *sql.Tx, competitionID string) error {
	_, err := tx.ExecContext(ctx,
		`DELETE FROM competition_slots WHERE competition_id = ?`, competitionID)
	return err
}

// CreateCompetition inserts a competition and claims both groups' slots in one
// transaction. Returns store.ErrAlreadyExists if either group already holds a
// pending or active competition.
func (s *Store) CreateCompetition(ctx context.Context, c *domain.GroupCompetition) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return insertCompetition(ctx, tx, c)
	})
}

// GetCompetition retrieves a competition by ID.
// Returns store.ErrNotFound if the competition does not exist.
func (s *Store) GetCompetition(ctx context.Context, id string) (*domain.GroupCompetition, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+competitionColumns+` FROM group_competitions WHERE id = ?`, id)
	c, err := scanCompetition(row)
	if err != nil {
		return nil, notFound(err, "competition not found")
	}
	return c, nil
}

func (s *Store) queryCompetitions(ctx context.Context, query string, args ...any) ([]*domain.GroupCompetition, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query competitions: %w", err)
	}
	defer rows.Close()

	var out []*domain.GroupCompetition
	for rows.Next() {
		c, err := scanCompetition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan competition: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListCompetitionsForGroup lists every competition a group took part in,
// newest first.
func (s *Store) ListCompetitionsForGroup(ctx context.Context, groupID string) ([]*domain.GroupCompetition, error) {
	return s.queryCompetitions(ctx, `
		SELECT `+competitionColumns+` FROM group_competitions
		WHERE group1_id = ? OR group2_id = ?
		ORDER BY created_at DESC, id`, groupID, groupID)
}

// GetOpenCompetitionForGroup returns the pending or active competition a
// group holds. Returns store.ErrNotFound if the group is free.
func (s *Store) GetOpenCompetitionForGroup(ctx context.Context, groupID string) (*domain.GroupCompetition, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+prefixed("c", competitionColumns)+`
		FROM competition_slots cs
		JOIN group_competitions c ON c.id = cs.competition_id
		WHERE cs.group_id = ?`, groupID)
	c, err := scanCompetition(row)
	if err != nil {
		return nil, notFound(err, "no open competition")
	}
	return c, nil
}

// HasPendingChallengeBetween reports whether a pending challenge exists
// between the two groups in either direction.
func (s *Store) HasPendingChallengeBetween(ctx context.Context, groupA, groupB string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM group_competitions
			WHERE type = 'challenge' AND status = 'pending'
			  AND ((group1_id = ? AND group2_id = ?) OR (group1_id = ? AND group2_id = ?))
		)`, groupA, groupB, groupB, groupA).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query pending challenge: %w", err)
	}
	return exists, nil
}

// ListActiveCompetitionsForGroups returns the active competitions involving
// any of the given groups.
func (s *Store) ListActiveCompetitionsForGroups(ctx context.Context, groupIDs []string) ([]*domain.GroupCompetition, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(groupIDs))
	for _, id := range groupIDs {
		args = append(args, id)
	}
	return s.queryCompetitions(ctx, `
		SELECT `+prefixed("c", competitionColumns)+`
		FROM group_competitions c
		WHERE c.status = 'active'
		  AND c.id IN (SELECT competition_id FROM competition_slots WHERE group_id IN (`+placeholders(len(groupIDs))+`))
		ORDER BY c.created_at, c.id`, args...)
}

// ListExpiredCompetitions returns active competitions whose end has passed.
func (s *Store) ListExpiredCompetitions(ctx context.Context, now time.Time) ([]*domain.GroupCompetition, error) {
	return s.queryCompetitions(ctx, `
		SELECT `+competitionColumns+` FROM group_competitions
		WHERE status = 'active' AND ends_at <= ?
		ORDER BY ends_at, id`, formatTime(now))
}

// AcceptCompetition moves a pending competition to active.
// Returns store.ErrStateChanged if it is no longer pending.
func (s *Store) AcceptCompetition(ctx context.Context, id string, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE group_competitions
		SET status = 'active', started_at = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'`,
		formatTime(now), formatTime(now), id)
	if err != nil {
		return fmt.Errorf("accept competition: %w", err)
	}
	return expectOne(res, "competition is no longer pending")
}

// CancelCompetition moves a pending competition to cancelled and releases
// its slots. Returns store.ErrStateChanged if it is no longer pending.
func (s *Store) CancelCompetition(ctx context.Context, id string, now time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE group_competitions
			SET status = 'cancelled', updated_at = ?
			WHERE id = ? AND status = 'pending'`,
			formatTime(now), id)
		if err != nil {
			return fmt.Errorf("cancel competition: %w", err)
		}
		if err := expectOne(res, "competition is no longer pending"); err != nil {
			return err
		}
		return releaseSlots(ctx, tx, id)
	})
}

// FinalizeCompetition completes an expired active competition, records the
// winner and releases the slots. The winner is decided from the scores read
// inside the transaction. Returns store.ErrStateChanged if the competition is
// not active or has not ended by now.
func (s *Store) FinalizeCompetition(ctx context.Context, id string, now time.Time) (*domain.GroupCompetition, error) {
	var out *domain.GroupCompetition
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		c, err := scanCompetition(tx.QueryRowContext(ctx,
			`SELECT `+competitionColumns+` FROM group_competitions WHERE id = ?`, id))
		if err != nil {
			return notFound(err, "competition not found")
		}

		winner := domain.Winner(c.Group1ID, c.Group1Score, c.Group2ID, c.Group2Score)
		res, err := tx.ExecContext(ctx, `
			UPDATE group_competitions
			SET status = 'completed', winner_group_id = ?, updated_at = ?
			WHERE id = ? AND status = 'active' AND ends_at <= ?`,
			nullableString(winner), formatTime(now), id, formatTime(now))
		if err != nil {
			return fmt.Errorf("finalize competition: %w", err)
		}
		if err := expectOne(res, "competition is not an expired active competition"); err != nil {
			return err
		}
		if err := releaseSlots(ctx, tx, id); err != nil {
			return err
		}

		c.Status = domain.CompetitionCompleted
		c.WinnerGroupID = winner
		c.UpdatedAt = now
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CompetitionWinsByUser counts, per user, the completed competitions won by
// groups the user currently belongs to.
func (s *Store) CompetitionWinsByUser(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT gm.user_id, COUNT(*)
		FROM group_competitions c
		JOIN group_members gm ON gm.group_id = c.winner_group_id
		WHERE c.status = 'completed' AND c.winner_group_id IS NOT NULL
		GROUP BY gm.user_id`)
	if err != nil {
		return nil, fmt.Errorf("query competition wins: %w", err)
	}
	defer rows.Close()

	wins := make(map[string]int64)
	for rows.Next() {
		var (
			userID string
			n      int64
		)
		if err := rows.Scan(&userID, &n); err != nil {
			return nil, err
		}
		wins[userID] = n
	}
	return wins, rows.Err()
}

// RecordContribution adds points and workouts to a member's contribution and
// to their group's score. Only active competitions accept contributions;
// otherwise store.ErrStateChanged is returned.
func (s *Store) RecordContribution(ctx context.Context, competitionID, userID, groupID string, points, workouts int64, now time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var status, group1, group2 string
		err := tx.QueryRowContext(ctx,
			`SELECT status, group1_id, group2_id FROM group_competitions WHERE id = ?`, competitionID,
		).Scan(&status, &group1, &group2)
		if err != nil {
			return notFound(err, "competition not found")
		}
		if domain.CompetitionStatus(status) != domain.CompetitionActive {
			return store.ErrStateChanged.WithMessage("competition is not active")
		}

		scoreColumn := ""
		switch groupID {
		case group1:
			scoreColumn = "group1_score"
		case group2:
			scoreColumn = "group2_score"
		default:
			return store.ErrNotFound.WithMessage("group is not part of this competition")
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO competition_contributions
				(competition_id, user_id, group_id, points, workouts_count, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (competition_id, user_id) DO UPDATE SET
				points = points + excluded.points,
				workouts_count = workouts_count + excluded.workouts_count,
				updated_at = excluded.updated_at`,
			competitionID, userID, groupID, points, workouts, formatTime(now))
		if err != nil {
			return fmt.Errorf("upsert contribution: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE group_competitions
			SET `+scoreColumn+` = `+scoreColumn+` + ?, updated_at = ?
			WHERE id = ?`,
			points, formatTime(now), competitionID)
		return err
	})
}

// ListContributions returns a competition's contributions ranked by points
// descending, then user ID.
func (s *Store) ListContributions(ctx context.Context, competitionID string) ([]*domain.CompetitionContribution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT competition_id, user_id, group_id, points, workouts_count, updated_at
		FROM competition_contributions
		WHERE competition_id = ?
		ORDER BY points DESC, user_id`, competitionID)
	if err != nil {
		return nil, fmt.Errorf("query contributions: %w", err)
	}
	defer rows.Close()

	var out []*domain.CompetitionContribution
	for rows.Next() {
		var (
			c         domain.CompetitionContribution
			updatedAt string
		)
		if err := rows.Scan(&c.CompetitionID, &c.UserID, &c.GroupID, &c.Points, &c.WorkoutsCount, &updatedAt); err != nil {
			return nil, err
		}
		if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		c.Rank = len(out) + 1
		out = append(out, &c)
	}
	return out, rows.Err()
}

// prefixed qualifies every column in a column list with a table alias.
func prefixed(alias, columns string) string {
	fields := strings.Split(columns, ",")
	for i, f := range fields {
		fields[i] = alias + "." + strings.TrimSpace(f)
	}
	return strings.Join(fields, ", ")
}
