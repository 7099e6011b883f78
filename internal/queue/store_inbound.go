package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// EnqueueInbound stores a message received from the chat platform. The insert
// is keyed on the external message id; resubmitting the same id is a no-op
// reported as Reason "duplicate".
func (s *Store) EnqueueInbound(ctx context.Context, req InboundRequest) (EnqueueResult, error) {
	// The id is the dedup key and is stored exactly as received.
	externalID := req.ExternalMessageID
	if strings.TrimSpace(externalID) == "" {
		return EnqueueResult{}, fmt.Errorf("%w: external message id is required", ErrInvalidInput)
	}
	chatID := strings.TrimSpace(req.ChatID)
	if chatID == "" {
		return EnqueueResult{}, fmt.Errorf("%w: chat id is required", ErrInvalidInput)
	}
	attachments, err := EncodeAttachments(req.Attachments)
	if err != nil {
		return EnqueueResult{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	now := toMillis(s.clock())
	res, err := s.execWithRetry(
		ctx,
		`INSERT OR IGNORE INTO inbound_messages (
            external_message_id, chat_id, session_key, text, attachments_json,
            status, retries, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		externalID,
		chatID,
		req.SessionKey,
		req.Text,
		nullableString(attachments),
		StatusPending,
		now,
		now,
	)
	if err != nil {
		return EnqueueResult{}, fmt.Errorf("insert inbound: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return EnqueueResult{}, fmt.Errorf("insert inbound rows: %w", err)
	}
	if affected == 0 {
		return EnqueueResult{Enqueued: false, Reason: ReasonDuplicate}, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return EnqueueResult{}, fmt.Errorf("last insert id: %w", err)
	}
	return EnqueueResult{Enqueued: true, ID: id}, nil
}

// DequeueInbound returns up to limit due pending rows, oldest first. It does
// not claim them.
func (s *Store) DequeueInbound(ctx context.Context, limit int) ([]*InboundMessage, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+inboundColumns+` FROM inbound_messages
        WHERE status = ? AND (next_retry_at IS NULL OR next_retry_at <= ?)
        ORDER BY created_at ASC, id ASC
        LIMIT ?`,
		StatusPending,
		toMillis(s.clock()),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("dequeue inbound: %w", err)
	}
	defer rows.Close()

	var messages []*InboundMessage
	for rows.Next() {
		msg, err := scanInbound(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inbound: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// GetInbound fetches an inbound row by id.
func (s *Store) GetInbound(ctx context.Context, id int64) (*InboundMessage, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+inboundColumns+` FROM inbound_messages WHERE id = ?`, id)
	msg, err := scanInbound(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: inbound message %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get inbound: %w", err)
	}
	return msg, nil
}

// MarkInboundProcessing claims a pending inbound row.
func (s *Store) MarkInboundProcessing(ctx context.Context, id int64) error {
	return s.markProcessing(ctx, KindInbound, id)
}

// MarkInboundCompleted records the backend's response and finishes the row.
func (s *Store) MarkInboundCompleted(ctx context.Context, id int64, responseText string) error {
	now := toMillis(s.clock())
	res, err := s.execWithRetry(
		ctx,
		`UPDATE inbound_messages
        SET status = ?, completed_at = ?, updated_at = ?, response_text = ?, next_retry_at = NULL
        WHERE id = ? AND status IN (?, ?)`,
		StatusCompleted,
		now,
		now,
		nullableString(responseText),
		id,
		StatusPending,
		StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("mark inbound completed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark inbound completed rows: %w", err)
	}
	if affected == 0 {
		return s.explainNoop(ctx, KindInbound, id, StatusCompleted)
	}
	return nil
}

// MarkInboundRetry records a failed attempt and schedules the next one, or
// moves the row to failed_permanent once the retry budget is spent.
func (s *Store) MarkInboundRetry(ctx context.Context, id int64, errMsg string) (RetryOutcome, error) {
	return s.markRetry(ctx, KindInbound, id, errMsg)
}
