package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fabriziosalmi/checkmate/internal/check"
)

// ErrVersionConflict is returned when a version-guarded user update observes
// a stale version. Callers re-read and retry; the conflict is expected under
// concurrent awards.
var ErrVersionConflict = errors.New("user version conflict")

// UserFields holds the mutable user columns for a version-guarded update.
type UserFields struct {
	Score         int
	SentToday     int
	LastResetDate string
}

// InsertUser provisions a user with a zero score. Idempotent: inserting an
// existing id is a no-op and reports inserted=false.
func (s *Store) InsertUser(ctx context.Context, id string) (inserted bool, err error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id) VALUES (?)
		ON CONFLICT(id) DO NOTHING
	`, id)
	if err != nil {
		return false, check.StoreUnavailableError("insert user", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, check.StoreUnavailableError("insert user", err)
	}
	return n > 0, nil
}

// GetUser returns the user record for id.
func (s *Store) GetUser(ctx context.Context, id string) (check.User, error) {
	var u check.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, score, sent_today, last_reset_date, version
		FROM users WHERE id = ?
	`, id).Scan(&u.ID, &u.Score, &u.SentToday, &u.LastResetDate, &u.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return check.User{}, check.NotFoundError("user", id)
	}
	if err != nil {
		return check.User{}, check.StoreUnavailableError("get user", err)
	}
	return u, nil
}

// ListUsers returns all users ordered by id.
func (s *Store) ListUsers(ctx context.Context) ([]check.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, score, sent_today, last_reset_date, version
		FROM users ORDER BY id ASC
	`)
	if err != nil {
		return nil, check.StoreUnavailableError("list users", err)
	}
	defer rows.Close()

	users := []check.User{}
	for rows.Next() {
		var u check.User
		if err := rows.Scan(&u.ID, &u.Score, &u.SentToday, &u.LastResetDate, &u.Version); err != nil {
			return nil, check.StoreUnavailableError("scan user", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, check.StoreUnavailableError("iterate users", err)
	}
	return users, nil
}

// CompareAndSwapUser applies fields to the user iff its version still equals
// expectedVersion, bumping the version. Returns ErrVersionConflict when the
// guard fails and NotFound when the user does not exist at all.
func (s *Store) CompareAndSwapUser(ctx context.Context, id string, expectedVersion int64, fields UserFields) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET score = ?, sent_today = ?, last_reset_date = ?, version = version + 1
		WHERE id = ? AND version = ?
	`, fields.Score, fields.SentToday, fields.LastResetDate, id, expectedVersion)
	if err != nil {
		return check.StoreUnavailableError("cas user", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return check.StoreUnavailableError("cas user", err)
	}
	if n > 0 {
		return nil
	}

	// Distinguish a stale version from a missing row.
	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return check.NotFoundError("user", id)
	}
	if err != nil {
		return check.StoreUnavailableError("cas user", err)
	}
	return fmt.Errorf("cas user %q at version %d: %w", id, expectedVersion, ErrVersionConflict)
}
