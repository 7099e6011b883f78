package notifications

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"chatbridge/internal/config"
)

const userAgent = "chatbridge/0.1"

// Event identifies the kind of notification being published.
type Event string

const (
	EventMessageFailed Event = "message_failed"
	EventDaemonStarted Event = "daemon_started"
	EventDaemonStopped Event = "daemon_stopped"
	EventTest          Event = "test"
)

// Payload carries event fields. Missing keys render as empty strings.
type Payload map[string]string

// Service publishes events. Unknown events are ignored.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed service, or a no-op when the topic is empty.
func NewService(cfg config.Notifications) Service {
	topic := strings.TrimSpace(cfg.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent)
	return &ntfyService{endpoint: topic, client: client}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *resty.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := render(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func render(event Event, payload Payload) (message, bool) {
	get := func(key string) string {
		return strings.TrimSpace(payload[key])
	}
	switch event {
	case EventMessageFailed:
		queueName := get("queue")
		if queueName == "" {
			queueName = "queue"
		}
		body := fmt.Sprintf("%s message %s for chat %s failed after %s retries", queueName, get("id"), get("chat_id"), get("retries"))
		if errText := get("error"); errText != "" {
			body += ": " + errText
		}
		if account := get("account"); account != "" {
			body = "[" + account + "] " + body
		}
		return message{
			title:    "chatbridge - Message Failed",
			body:     body,
			tags:     []string{"chatbridge", queueName, "failed"},
			priority: "high",
		}, true
	case EventDaemonStarted:
		return message{
			title:    "chatbridge - Started",
			body:     "Relaying for accounts: " + get("accounts"),
			tags:     []string{"chatbridge", "daemon", "started"},
			priority: "low",
		}, true
	case EventDaemonStopped:
		return message{
			title:    "chatbridge - Stopped",
			body:     "Daemon stopped; queued messages wait for the next start",
			tags:     []string{"chatbridge", "daemon", "stopped"},
			priority: "low",
		}, true
	case EventTest:
		return message{
			title:    "chatbridge - Test",
			body:     "Notification system test",
			tags:     []string{"chatbridge", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "text/plain; charset=utf-8").
		SetBody(msg.body)
	if msg.title != "" {
		req.SetHeader("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.SetHeader("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.SetHeader("Priority", msg.priority)
	}
	resp, err := req.Post(n.endpoint)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	if resp.StatusCode() >= 300 {
		body := resp.String()
		if len(body) > 2048 {
			body = body[:2048]
		}
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode(), strings.TrimSpace(body))
	}
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }

// FailedPayload describes a message that exhausted its retry budget.
func FailedPayload(account, queueName string, id int64, chatID string, retries int, cause error) Payload {
	payload := Payload{
		"account": account,
		"queue":   queueName,
		"id":      strconv.FormatInt(id, 10),
		"chat_id": chatID,
		"retries": strconv.Itoa(retries),
	}
	if cause != nil {
		payload["error"] = cause.Error()
	}
	return payload
}
