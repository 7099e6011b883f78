package queue

import (
	"database/sql"
	"time"
	"unicode/utf8"
)

const inboundColumns = "id, external_message_id, chat_id, session_key, text, attachments_json, status, retries, next_retry_at, created_at, updated_at, completed_at, response_text, last_error"

const outboundColumns = "id, queue_type, run_id, session_key, chat_id, content, content_hash, status, retries, next_retry_at, created_at, updated_at, completed_at, delivered_message_id, last_error"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInbound(scanner rowScanner) (*InboundMessage, error) {
	var (
		msg          InboundMessage
		attachments  sql.NullString
		statusStr    string
		nextRetry    sql.NullInt64
		createdMs    int64
		updatedMs    int64
		completedMs  sql.NullInt64
		responseText sql.NullString
		lastError    sql.NullString
	)
	if err := scanner.Scan(
		&msg.ID,
		&msg.ExternalMessageID,
		&msg.ChatID,
		&msg.SessionKey,
		&msg.Text,
		&attachments,
		&statusStr,
		&msg.Retries,
		&nextRetry,
		&createdMs,
		&updatedMs,
		&completedMs,
		&responseText,
		&lastError,
	); err != nil {
		return nil, err
	}
	msg.AttachmentsJSON = attachments.String
	msg.Status = Status(statusStr)
	msg.NextRetryAt = fromNullMillis(nextRetry)
	msg.CreatedAt = fromMillis(createdMs)
	msg.UpdatedAt = fromMillis(updatedMs)
	msg.CompletedAt = fromNullMillis(completedMs)
	msg.ResponseText = responseText.String
	msg.LastError = lastError.String
	return &msg, nil
}

func scanOutbound(scanner rowScanner) (*OutboundMessage, error) {
	var (
		msg         OutboundMessage
		queueType   string
		runID       sql.NullString
		statusStr   string
		nextRetry   sql.NullInt64
		createdMs   int64
		updatedMs   int64
		completedMs sql.NullInt64
		delivered   sql.NullString
		lastError   sql.NullString
	)
	if err := scanner.Scan(
		&msg.ID,
		&queueType,
		&runID,
		&msg.SessionKey,
		&msg.ChatID,
		&msg.Content,
		&msg.ContentHash,
		&statusStr,
		&msg.Retries,
		&nextRetry,
		&createdMs,
		&updatedMs,
		&completedMs,
		&delivered,
		&lastError,
	); err != nil {
		return nil, err
	}
	msg.QueueType = QueueType(queueType)
	msg.RunID = runID.String
	msg.Status = Status(statusStr)
	msg.NextRetryAt = fromNullMillis(nextRetry)
	msg.CreatedAt = fromMillis(createdMs)
	msg.UpdatedAt = fromMillis(updatedMs)
	msg.CompletedAt = fromNullMillis(completedMs)
	msg.DeliveredMessageID = delivered.String
	msg.LastError = lastError.String
	return &msg, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func fromNullMillis(value sql.NullInt64) *time.Time {
	if !value.Valid {
		return nil
	}
	t := fromMillis(value.Int64)
	return &t
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

// preview truncates s to at most n runes for list output.
func preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "…"
}
