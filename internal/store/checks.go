package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fabriziosalmi/checkmate/internal/check"
)

// SenderUpdate carries the version-guarded quota bump applied alongside a
// check insert: the incremented sent_today counter and the (possibly
// rolled-over) reset date.
type SenderUpdate struct {
	ExpectedVersion int64
	Fields          UserFields
}

// ScoreEffect is one user's award applied with a committed transition.
type ScoreEffect struct {
	UserID string
	Points int
}

// InsertCheckIfAbsentPendingPair atomically creates a pending check and
// applies the sender's quota update in one transaction.
//
// The pairwise-exclusivity precondition is the partial unique index on
// pending pair keys: the guarded insert affects zero rows when a pending
// check already exists between the pair in either direction, in which case
// nothing is persisted and ok=false is returned.
//
// A stale sender version returns ErrVersionConflict with nothing persisted.
func (s *Store) InsertCheckIfAbsentPendingPair(ctx context.Context, c check.Check, sender SenderUpdate) (ok bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, check.StoreUnavailableError("insert check: begin tx", err)
	}
	defer tx.Rollback() // No-op if committed

	res, err := tx.ExecContext(ctx, `
		UPDATE users
		SET sent_today = ?, last_reset_date = ?, version = version + 1
		WHERE id = ? AND version = ?
	`, sender.Fields.SentToday, sender.Fields.LastResetDate, c.Sender, sender.ExpectedVersion)
	if err != nil {
		return false, check.StoreUnavailableError("insert check: bump quota", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, check.StoreUnavailableError("insert check: bump quota", err)
	}
	if n == 0 {
		return false, fmt.Errorf("insert check: sender %q at version %d: %w",
			c.Sender, sender.ExpectedVersion, ErrVersionConflict)
	}

	res, err = tx.ExecContext(ctx, `
		INSERT INTO checks (id, sender, receiver, message, sent_at, deadline, status, pair_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		c.ID,
		c.Sender,
		c.Receiver,
		c.Message,
		toMillis(c.SentAt),
		toMillis(c.Deadline),
		string(check.StatusPending),
		check.PairKey(c.Sender, c.Receiver),
	)
	if err != nil {
		return false, check.StoreUnavailableError("insert check", err)
	}
	n, err = res.RowsAffected()
	if err != nil {
		return false, check.StoreUnavailableError("insert check", err)
	}
	if n == 0 {
		// Pending pair already exists; the rollback also undoes the quota bump.
		return false, nil
	}

	if err := tx.Commit(); err != nil {
		return false, check.StoreUnavailableError("insert check: commit", err)
	}
	return true, nil
}

// GetCheck returns the check record for id.
func (s *Store) GetCheck(ctx context.Context, id string) (check.Check, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, sender, receiver, message, sent_at, deadline, status, COALESCE(resolved_at, 0)
		FROM checks WHERE id = ?
	`, id)
	c, err := scanCheck(row)
	if errors.Is(err, sql.ErrNoRows) {
		return check.Check{}, check.NotFoundError("check", id)
	}
	if err != nil {
		return check.Check{}, check.StoreUnavailableError("get check", err)
	}
	return c, nil
}

// CompareAndSwapCheckStatus transitions the check out of Pending and applies
// the score effects in the same transaction.
//
// The transition is a conditional write on (id, status=pending): a check
// already resolved by a concurrent caller affects zero rows, the transaction
// rolls back, and ok=false is returned with no score applied. This is what
// makes confirm/snooze/expire races and repeated sweeps safe.
func (s *Store) CompareAndSwapCheckStatus(ctx context.Context, id string, newStatus check.Status, resolvedAt time.Time, effects []ScoreEffect) (ok bool, err error) {
	if !newStatus.Terminal() {
		return false, fmt.Errorf("cas check status: %q is not a terminal status", newStatus)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, check.StoreUnavailableError("cas check status: begin tx", err)
	}
	defer tx.Rollback() // No-op if committed

	res, err := tx.ExecContext(ctx, `
		UPDATE checks
		SET status = ?, resolved_at = ?
		WHERE id = ? AND status = ?
	`, string(newStatus), toMillis(resolvedAt), id, string(check.StatusPending))
	if err != nil {
		return false, check.StoreUnavailableError("cas check status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, check.StoreUnavailableError("cas check status", err)
	}
	if n == 0 {
		return false, nil
	}

	for _, effect := range effects {
		if effect.Points == 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE users SET score = score + ?, version = version + 1 WHERE id = ?
		`, effect.Points, effect.UserID); err != nil {
			return false, check.StoreUnavailableError("cas check status: award", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, check.StoreUnavailableError("cas check status: commit", err)
	}
	return true, nil
}

// ListPendingDueBy returns pending checks with deadline <= ts, ordered by
// deadline then id for deterministic sweeps.
func (s *Store) ListPendingDueBy(ctx context.Context, ts time.Time) ([]check.Check, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender, receiver, message, sent_at, deadline, status, COALESCE(resolved_at, 0)
		FROM checks
		WHERE status = ? AND deadline <= ?
		ORDER BY deadline ASC, id ASC
	`, string(check.StatusPending), toMillis(ts))
	if err != nil {
		return nil, check.StoreUnavailableError("list due checks", err)
	}
	return collectChecks(rows)
}

// ListPendingByReceiver returns the user's incoming pending checks.
func (s *Store) ListPendingByReceiver(ctx context.Context, userID string) ([]check.Check, error) {
	return s.listPendingBy(ctx, "receiver", userID)
}

// ListPendingBySender returns the user's outgoing pending checks.
func (s *Store) ListPendingBySender(ctx context.Context, userID string) ([]check.Check, error) {
	return s.listPendingBy(ctx, "sender", userID)
}

func (s *Store) listPendingBy(ctx context.Context, column, userID string) ([]check.Check, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender, receiver, message, sent_at, deadline, status, COALESCE(resolved_at, 0)
		FROM checks
		WHERE status = 'pending' AND `+column+` = ?
		ORDER BY sent_at ASC, id ASC
	`, userID)
	if err != nil {
		return nil, check.StoreUnavailableError("list pending checks", err)
	}
	return collectChecks(rows)
}

// ListByUser returns every check the user participated in, newest first.
// Resolved checks are kept forever, so this is the audit history.
func (s *Store) ListByUser(ctx context.Context, userID string, limit int) ([]check.Check, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender, receiver, message, sent_at, deadline, status, COALESCE(resolved_at, 0)
		FROM checks
		WHERE sender = ? OR receiver = ?
		ORDER BY sent_at DESC, id DESC
		LIMIT ?
	`, userID, userID, limit)
	if err != nil {
		return nil, check.StoreUnavailableError("list checks", err)
	}
	return collectChecks(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCheck(row rowScanner) (check.Check, error) {
	var (
		c          check.Check
		sentAt     int64
		deadline   int64
		status     string
		resolvedAt int64
	)
	if err := row.Scan(&c.ID, &c.Sender, &c.Receiver, &c.Message, &sentAt, &deadline, &status, &resolvedAt); err != nil {
		return check.Check{}, err
	}
	c.SentAt = fromMillis(sentAt)
	c.Deadline = fromMillis(deadline)
	c.Status = check.Status(status)
	c.ResolvedAt = fromMillis(resolvedAt)
	return c, nil
}

func collectChecks(rows *sql.Rows) ([]check.Check, error) {
	defer rows.Close()

	checks := []check.Check{}
	for rows.Next() {
		c, err := scanCheck(rows)
		if err != nil {
			return nil, check.StoreUnavailableError("scan check", err)
		}
		checks = append(checks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, check.StoreUnavailableError("iterate checks", err)
	}
	return checks, nil
}
