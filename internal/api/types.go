package api

import "chatbridge/internal/queue"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Attachment references media carried by an inbound message.
type Attachment struct {
	Kind string `json:"kind" validate:"required,oneof=image file audio video sticker"`
	Key  string `json:"key" validate:"required"`
	Name string `json:"name,omitempty"`
	Path string `json:"path,omitempty"`
}

// InboundRequest is the ingestion payload for a user message.
type InboundRequest struct {
	MessageID   string       `json:"message_id" validate:"required,max=256"`
	ChatID      string       `json:"chat_id" validate:"required,max=256"`
	SessionKey  string       `json:"session_key" validate:"max=512"`
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments,omitempty" validate:"omitempty,dive"`
}

// OutboundRequest is the payload the backend uses to queue a chat message.
type OutboundRequest struct {
	QueueType  string `json:"queue_type" validate:"required,oneof=reply mirror"`
	SessionKey string `json:"session_key" validate:"max=512"`
	ChatID     string `json:"chat_id" validate:"required,max=256"`
	Content    string `json:"content"`
	RunID      string `json:"run_id" validate:"max=256"`
}

// EnqueueResponse reports the outcome of an enqueue call.
type EnqueueResponse struct {
	Account  string `json:"account"`
	Enqueued bool   `json:"enqueued"`
	Reason   string `json:"reason,omitempty"`
	ID       int64  `json:"id,omitempty"`
}

// StatsResponse summarizes one account's queues within the TTL window.
type StatsResponse struct {
	Account     string            `json:"account"`
	Path        string            `json:"path"`
	Inbound     queue.QueueCounts `json:"inbound"`
	Outbound    queue.QueueCounts `json:"outbound"`
	SentRecords int               `json:"sent_records"`
}

// HealthResponse carries database diagnostics for one account.
type HealthResponse struct {
	Account string `json:"account"`
	Healthy bool   `json:"healthy"`
	queue.DatabaseHealth
}

// FailedMessage is a failed_permanent row awaiting manual review.
type FailedMessage struct {
	Queue     string `json:"queue"`
	ID        int64  `json:"id"`
	ChatID    string `json:"chat_id"`
	Preview   string `json:"preview"`
	Retries   int    `json:"retries"`
	LastError string `json:"last_error,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// FailedResponse lists failed messages for one account.
type FailedResponse struct {
	Account  string          `json:"account"`
	Messages []FailedMessage `json:"messages"`
}

// ResendRequest queues fresh copies of failed outbound messages. An empty IDs
// list resends every failed outbound message.
type ResendRequest struct {
	IDs []int64 `json:"ids,omitempty" validate:"omitempty,dive,gt=0"`
}

// ResendResponse lists the ids of the newly queued copies.
type ResendResponse struct {
	Account string  `json:"account"`
	IDs     []int64 `json:"ids"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}
