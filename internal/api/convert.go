package api

import (
	"strings"
	"time"

	"chatbridge/internal/queue"
)

// ToInboundRequest converts an ingestion payload to a queue request.
func ToInboundRequest(req InboundRequest) queue.InboundRequest {
	var attachments []queue.Attachment
	if len(req.Attachments) > 0 {
		attachments = make([]queue.Attachment, 0, len(req.Attachments))
		for _, a := range req.Attachments {
			attachments = append(attachments, queue.Attachment{
				Kind: queue.AttachmentKind(strings.ToLower(a.Kind)),
				Key:  a.Key,
				Name: a.Name,
				Path: a.Path,
			})
		}
	}
	return queue.InboundRequest{
		ExternalMessageID: req.MessageID,
		ChatID:            strings.TrimSpace(req.ChatID),
		SessionKey:        strings.TrimSpace(req.SessionKey),
		Text:              req.Text,
		Attachments:       attachments,
	}
}

// ToOutboundRequest converts an outbound payload to a queue request.
func ToOutboundRequest(req OutboundRequest) queue.OutboundRequest {
	return queue.OutboundRequest{
		QueueType:  queue.QueueType(req.QueueType),
		SessionKey: strings.TrimSpace(req.SessionKey),
		ChatID:     strings.TrimSpace(req.ChatID),
		Content:    req.Content,
		RunID:      strings.TrimSpace(req.RunID),
	}
}

// FromEnqueueResult converts a queue enqueue outcome.
func FromEnqueueResult(account string, res queue.EnqueueResult) EnqueueResponse {
	return EnqueueResponse{
		Account:  account,
		Enqueued: res.Enqueued,
		Reason:   res.Reason,
		ID:       res.ID,
	}
}

// FromStats converts queue stats.
func FromStats(account string, stats queue.Stats) StatsResponse {
	return StatsResponse{
		Account:     account,
		Path:        stats.Path,
		Inbound:     stats.Inbound,
		Outbound:    stats.Outbound,
		SentRecords: stats.SentRecords,
	}
}

// FromDatabaseHealth converts database diagnostics. A store is healthy when it
// is readable, passes the integrity check, and has every table.
func FromDatabaseHealth(account string, health queue.DatabaseHealth) HealthResponse {
	return HealthResponse{
		Account:        account,
		Healthy:        health.DatabaseReadable && health.IntegrityCheck && len(health.MissingTables) == 0 && health.Error == "",
		DatabaseHealth: health,
	}
}

// FromFailedMessages converts failed rows for display.
func FromFailedMessages(messages []queue.FailedMessage) []FailedMessage {
	out := make([]FailedMessage, 0, len(messages))
	for _, msg := range messages {
		out = append(out, FailedMessage{
			Queue:     string(msg.Kind),
			ID:        msg.ID,
			ChatID:    msg.ChatID,
			Preview:   msg.Preview,
			Retries:   msg.Retries,
			LastError: msg.LastError,
			CreatedAt: formatTime(msg.CreatedAt),
			UpdatedAt: formatTime(msg.UpdatedAt),
		})
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
