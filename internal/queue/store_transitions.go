package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var kinds = []Kind{KindInbound, KindOutbound}

// ResetProcessing returns every processing row in both queues to pending,
// leaving retries untouched. Open calls it so that attempts interrupted by a
// crash or restart are picked up again.
func (s *Store) ResetProcessing(ctx context.Context) (int64, error) {
	return s.resetProcessing(ctx, nil)
}

// ReclaimStuck returns rows that have been processing for longer than
// olderThan to pending. It covers a consumer that hung without the process
// exiting.
func (s *Store) ReclaimStuck(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		olderThan = StuckThreshold
	}
	cutoff := toMillis(s.clock().Add(-olderThan))
	return s.resetProcessing(ctx, &cutoff)
}

func (s *Store) resetProcessing(ctx context.Context, updatedBefore *int64) (int64, error) {
	now := toMillis(s.clock())
	var total int64
	for _, kind := range kinds {
		query := fmt.Sprintf(`UPDATE %s SET status = ?, updated_at = ? WHERE status = ?`, kind.table())
		args := []any{StatusPending, now, StatusProcessing}
		if updatedBefore != nil {
			query += ` AND updated_at < ?`
			args = append(args, *updatedBefore)
		}
		res, err := s.execWithRetry(ctx, query, args...)
		if err != nil {
			return total, fmt.Errorf("reset processing %s: %w", kind, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("reset processing %s rows: %w", kind, err)
		}
		total += affected
	}
	return total, nil
}

func (s *Store) markProcessing(ctx context.Context, kind Kind, id int64) error {
	res, err := s.execWithRetry(
		ctx,
		fmt.Sprintf(`UPDATE %s SET status = ?, updated_at = ? WHERE id = ? AND status = ?`, kind.table()),
		StatusProcessing,
		toMillis(s.clock()),
		id,
		StatusPending,
	)
	if err != nil {
		return fmt.Errorf("mark %s processing: %w", kind, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark %s processing rows: %w", kind, err)
	}
	if affected == 0 {
		return s.explainNoop(ctx, kind, id, StatusProcessing)
	}
	return nil
}

// explainNoop reports why an UPDATE guarded by status matched no rows.
func (s *Store) explainNoop(ctx context.Context, kind Kind, id int64, target Status) error {
	status, err := s.currentStatus(ctx, s.db, kind, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s message %d is %s, cannot move to %s", ErrInvalidTransition, kind, id, status, target)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) currentStatus(ctx context.Context, q queryRower, kind Kind, id int64) (Status, error) {
	var status string
	err := q.QueryRowContext(ctx, fmt.Sprintf(`SELECT status FROM %s WHERE id = ?`, kind.table()), id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s message %d", ErrNotFound, kind, id)
	}
	if err != nil {
		return "", fmt.Errorf("load %s status: %w", kind, err)
	}
	return Status(status), nil
}

func (s *Store) markRetry(ctx context.Context, kind Kind, id int64, errMsg string) (RetryOutcome, error) {
	var outcome RetryOutcome
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		outcome = RetryOutcome{}
		var (
			retries int
			status  string
		)
		err := tx.QueryRowContext(ctx,
			fmt.Sprintf(`SELECT retries, status FROM %s WHERE id = ?`, kind.table()), id,
		).Scan(&retries, &status)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s message %d", ErrNotFound, kind, id)
		}
		if err != nil {
			return err
		}
		if Status(status).IsTerminal() {
			return fmt.Errorf("%w: %s message %d is %s, cannot retry", ErrInvalidTransition, kind, id, status)
		}

		now := s.clock()
		retries++
		outcome.Retries = retries
		if s.policy.Exhausted(retries) {
			outcome.Exhausted = true
			_, err = tx.ExecContext(ctx,
				fmt.Sprintf(`UPDATE %s SET status = ?, retries = ?, next_retry_at = NULL, updated_at = ?, last_error = ? WHERE id = ?`, kind.table()),
				StatusFailedPermanent, retries, toMillis(now), nullableString(errMsg), id,
			)
			return err
		}

		next := now.Add(s.policy.Backoff(retries))
		outcome.NextRetryAt = &next
		_, err = tx.ExecContext(ctx,
			fmt.Sprintf(`UPDATE %s SET status = ?, retries = ?, next_retry_at = ?, updated_at = ?, last_error = ? WHERE id = ?`, kind.table()),
			StatusPending, retries, toMillis(next), toMillis(now), nullableString(errMsg), id,
		)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidTransition) {
			return RetryOutcome{}, err
		}
		return RetryOutcome{}, fmt.Errorf("mark %s retry: %w", kind, err)
	}
	return outcome, nil
}
