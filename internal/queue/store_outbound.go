package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// EnqueueOutbound stores a message for delivery to a chat unless the same
// content was queued or sent to the same chat within the dedup window.
//
// Unresolved rows are checked first (Reason "duplicate_pending"), then the
// sent ledger (Reason "already_sent"). Both lookups and the insert run in one
// transaction.
func (s *Store) EnqueueOutbound(ctx context.Context, req OutboundRequest) (EnqueueResult, error) {
	switch req.QueueType {
	case QueueTypeReply, QueueTypeMirror:
	default:
		return EnqueueResult{}, fmt.Errorf("%w: unknown queue type %q", ErrInvalidInput, req.QueueType)
	}
	chatID := strings.TrimSpace(req.ChatID)
	if chatID == "" {
		return EnqueueResult{}, fmt.Errorf("%w: chat id is required", ErrInvalidInput)
	}

	hash := ContentHash(req.Content)
	var result EnqueueResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result = EnqueueResult{}
		now := s.clock()
		since := toMillis(now.Add(-s.policy.DedupWindow))

		var existing int64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM outbound_messages
            WHERE content_hash = ? AND chat_id = ? AND status IN (?, ?) AND created_at >= ?
            LIMIT 1`,
			hash, chatID, StatusPending, StatusProcessing, since,
		).Scan(&existing)
		switch {
		case err == nil:
			result.Reason = ReasonDuplicatePending
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("check pending duplicates: %w", err)
		}

		err = tx.QueryRowContext(ctx,
			`SELECT id FROM sent_records
            WHERE content_hash = ? AND chat_id = ? AND created_at >= ?
            LIMIT 1`,
			hash, chatID, since,
		).Scan(&existing)
		switch {
		case err == nil:
			result.Reason = ReasonAlreadySent
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("check sent ledger: %w", err)
		}

		ts := toMillis(now)
		res, err := tx.ExecContext(ctx,
			`INSERT INTO outbound_messages (
                queue_type, run_id, session_key, chat_id, content, content_hash,
                status, retries, created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
			req.QueueType,
			nullableString(req.RunID),
			req.SessionKey,
			chatID,
			req.Content,
			hash,
			StatusPending,
			ts,
			ts,
		)
		if err != nil {
			return fmt.Errorf("insert outbound: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		result.Enqueued = true
		result.ID = id
		return nil
	})
	if err != nil {
		return EnqueueResult{}, fmt.Errorf("enqueue outbound: %w", err)
	}
	return result, nil
}

// DequeueOutbound returns up to limit due pending rows, oldest first. It does
// not claim them.
func (s *Store) DequeueOutbound(ctx context.Context, limit int) ([]*OutboundMessage, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+outboundColumns+` FROM outbound_messages
        WHERE status = ? AND (next_retry_at IS NULL OR next_retry_at <= ?)
        ORDER BY created_at ASC, id ASC
        LIMIT ?`,
		StatusPending,
		toMillis(s.clock()),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("dequeue outbound: %w", err)
	}
	defer rows.Close()

	var messages []*OutboundMessage
	for rows.Next() {
		msg, err := scanOutbound(rows)
		if err != nil {
			return nil, fmt.Errorf("scan outbound: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// GetOutbound fetches an outbound row by id.
func (s *Store) GetOutbound(ctx context.Context, id int64) (*OutboundMessage, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+outboundColumns+` FROM outbound_messages WHERE id = ?`, id)
	msg, err := scanOutbound(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: outbound message %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get outbound: %w", err)
	}
	return msg, nil
}

// MarkOutboundProcessing claims a pending outbound row.
func (s *Store) MarkOutboundProcessing(ctx context.Context, id int64) error {
	return s.markProcessing(ctx, KindOutbound, id)
}

// MarkOutboundCompleted finishes the row and appends a sent record for the
// dedup ledger in the same transaction. deliveredMessageID is empty when the
// message was skipped rather than sent.
func (s *Store) MarkOutboundCompleted(ctx context.Context, id int64, deliveredMessageID string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var (
			hash   string
			chatID string
			status string
		)
		err := tx.QueryRowContext(ctx,
			`SELECT content_hash, chat_id, status FROM outbound_messages WHERE id = ?`, id,
		).Scan(&hash, &chatID, &status)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: outbound message %d", ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		if Status(status).IsTerminal() {
			return fmt.Errorf("%w: outbound message %d is %s, cannot move to %s", ErrInvalidTransition, id, status, StatusCompleted)
		}

		now := toMillis(s.clock())
		if _, err := tx.ExecContext(ctx,
			`UPDATE outbound_messages
            SET status = ?, completed_at = ?, updated_at = ?, delivered_message_id = ?, next_retry_at = NULL
            WHERE id = ?`,
			StatusCompleted, now, now, nullableString(deliveredMessageID), id,
		); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO sent_records (content_hash, chat_id, delivered_message_id, created_at) VALUES (?, ?, ?, ?)`,
			hash, chatID, nullableString(deliveredMessageID), now,
		)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidTransition) {
			return err
		}
		return fmt.Errorf("mark outbound completed: %w", err)
	}
	return nil
}

// MarkOutboundRetry records a failed delivery and schedules the next attempt,
// or moves the row to failed_permanent once the retry budget is spent.
func (s *Store) MarkOutboundRetry(ctx context.Context, id int64, errMsg string) (RetryOutcome, error) {
	return s.markRetry(ctx, KindOutbound, id, errMsg)
}
