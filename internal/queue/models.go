package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a queued message.
type Status string

const (
	StatusPending         Status = "pending"
	StatusProcessing      Status = "processing"
	StatusCompleted       Status = "completed"
	StatusFailedPermanent Status = "failed_permanent"
)

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailedPermanent,
}

// ParseStatus converts a string into a Status if recognized.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// IsTerminal reports whether rows in this status never change again.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailedPermanent
}

// Kind selects one of the two message queues held by a Store.
type Kind string

const (
	KindInbound  Kind = "inbound"
	KindOutbound Kind = "outbound"
)

// ParseKind converts a string into a Kind if recognized.
func ParseKind(value string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(value))) {
	case KindInbound:
		return KindInbound, true
	case KindOutbound:
		return KindOutbound, true
	}
	return "", false
}

func (k Kind) table() string {
	if k == KindOutbound {
		return "outbound_messages"
	}
	return "inbound_messages"
}

// QueueType distinguishes agent replies from mirrored transcripts on the
// outbound queue.
type QueueType string

const (
	QueueTypeReply  QueueType = "reply"
	QueueTypeMirror QueueType = "mirror"
)

// Enqueue rejection reasons.
const (
	ReasonDuplicate        = "duplicate"
	ReasonDuplicatePending = "duplicate_pending"
	ReasonAlreadySent      = "already_sent"
)

// InboundRequest carries a chat message received by the ingestion endpoint.
type InboundRequest struct {
	ExternalMessageID string
	ChatID            string
	SessionKey        string
	Text              string
	Attachments       []Attachment
}

// OutboundRequest carries a message the backend wants delivered to a chat.
type OutboundRequest struct {
	QueueType  QueueType
	SessionKey string
	ChatID     string
	Content    string
	RunID      string
}

// EnqueueResult reports whether an enqueue call stored a new row.
type EnqueueResult struct {
	Enqueued bool   `json:"enqueued"`
	Reason   string `json:"reason,omitempty"`
	ID       int64  `json:"id,omitempty"`
}

// RetryOutcome describes the state a row was left in by a retry transition.
type RetryOutcome struct {
	Retries     int
	Exhausted   bool
	NextRetryAt *time.Time
}

// InboundMessage is a persisted inbound row.
type InboundMessage struct {
	ID                int64
	ExternalMessageID string
	ChatID            string
	SessionKey        string
	Text              string
	AttachmentsJSON   string
	Status            Status
	Retries           int
	NextRetryAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
	CompletedAt       *time.Time
	ResponseText      string
	LastError         string
}

// OutboundMessage is a persisted outbound row.
type OutboundMessage struct {
	ID                 int64
	QueueType          QueueType
	RunID              string
	SessionKey         string
	ChatID             string
	Content            string
	ContentHash        string
	Status             Status
	Retries            int
	NextRetryAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
	CompletedAt        *time.Time
	DeliveredMessageID string
	LastError          string
}

// FailedMessage is the manual-review view of a failed_permanent row.
type FailedMessage struct {
	Kind      Kind      `json:"kind"`
	ID        int64     `json:"id"`
	ChatID    string    `json:"chat_id"`
	Preview   string    `json:"preview"`
	Retries   int       `json:"retries"`
	LastError string    `json:"last_error"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// QueueCounts summarizes one queue by status.
type QueueCounts struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// Total returns the sum of all buckets.
func (c QueueCounts) Total() int {
	return c.Pending + c.Processing + c.Completed + c.Failed
}

// Stats reports queue depth within the TTL window.
type Stats struct {
	Path        string      `json:"path"`
	Inbound     QueueCounts `json:"inbound"`
	Outbound    QueueCounts `json:"outbound"`
	SentRecords int         `json:"sent_records"`
}

// PurgeResult counts rows removed by TTL cleanup.
type PurgeResult struct {
	Inbound     int64
	Outbound    int64
	SentRecords int64
}

// Total returns the number of rows removed.
func (p PurgeResult) Total() int64 {
	return p.Inbound + p.Outbound + p.SentRecords
}

// DatabaseHealth captures diagnostic details about the queue database.
type DatabaseHealth struct {
	DBPath           string   `json:"db_path"`
	DatabaseExists   bool     `json:"database_exists"`
	DatabaseReadable bool     `json:"database_readable"`
	SchemaVersion    int      `json:"schema_version"`
	TablesPresent    []string `json:"tables_present"`
	MissingTables    []string `json:"missing_tables,omitempty"`
	IntegrityCheck   bool     `json:"integrity_check"`
	FreeBytes        uint64   `json:"free_bytes"`
	Error            string   `json:"error,omitempty"`
}
