// Package backend talks to the agent gateway that turns inbound chat messages
// into replies. Every failure is retryable from the inbound consumer's point
// of view; the gateway deduplicates on the idempotency key.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"

	"chatbridge/internal/config"
	"chatbridge/internal/logging"
	"chatbridge/internal/queue"
)

const (
	resolvePath  = "/v1/sessions/resolve"
	messagesPath = "/v1/messages"
)

// Backend resolves routing for a chat and submits messages for processing.
type Backend interface {
	Resolve(ctx context.Context, route Route) (Session, error)
	Submit(ctx context.Context, submission Submission) (Reply, error)
}

// Route identifies where an inbound message came from.
type Route struct {
	Account    string `json:"account"`
	ChatID     string `json:"chat_id"`
	SessionKey string `json:"session_key"`
}

// Session is the backend's view of the conversation a message belongs to.
type Session struct {
	SessionKey string `json:"session_key"`
	AgentID    string `json:"agent_id,omitempty"`
}

// Submission is one inbound message handed to the backend.
type Submission struct {
	Text           string             `json:"text"`
	Attachments    []queue.Attachment `json:"attachments"`
	SessionKey     string             `json:"session_key"`
	ChatID         string             `json:"chat_id"`
	AgentID        string             `json:"agent_id,omitempty"`
	IdempotencyKey string             `json:"-"`
}

// Reply is the backend's terminal response.
type Reply struct {
	Text string `json:"text"`
}

const maxErrorBodyRunes = 200

// StatusError reports a non-2xx response from the backend.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if utf8.RuneCountInString(body) > maxErrorBodyRunes {
		body = string([]rune(body)[:maxErrorBodyRunes])
	}
	return fmt.Sprintf("backend %s: unexpected status %d: %s", e.Op, e.Status, body)
}

// ErrNotConfigured is returned when no backend URL is set.
var ErrNotConfigured = errors.New("processing backend not configured")

// HTTPClient is the resty-backed Backend.
type HTTPClient struct {
	http   *resty.Client
	logger *slog.Logger
}

// NewHTTPClient builds a backend client from configuration.
func NewHTTPClient(cfg config.Backend, logger *slog.Logger) (*HTTPClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, ErrNotConfigured
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(time.Duration(cfg.TimeoutSeconds)*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}
	return &HTTPClient{
		http:   client,
		logger: logging.NewComponentLogger(logger, "backend"),
	}, nil
}

// Resolve asks the backend which session and agent should handle route.
func (c *HTTPClient) Resolve(ctx context.Context, route Route) (Session, error) {
	var session Session
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(route).
		SetResult(&session).
		Post(resolvePath)
	if err != nil {
		return Session{}, fmt.Errorf("backend resolve: %w", err)
	}
	if !resp.IsSuccess() {
		return Session{}, &StatusError{Op: "resolve", Status: resp.StatusCode(), Body: resp.String()}
	}
	if session.SessionKey == "" {
		session.SessionKey = route.SessionKey
	}
	return session, nil
}

// Submit hands a message to the backend and waits for its reply.
func (c *HTTPClient) Submit(ctx context.Context, submission Submission) (Reply, error) {
	if submission.Attachments == nil {
		submission.Attachments = []queue.Attachment{}
	}
	var reply Reply
	req := c.http.R().
		SetContext(ctx).
		SetBody(submission).
		SetResult(&reply)
	if submission.IdempotencyKey != "" {
		req.SetHeader("Idempotency-Key", submission.IdempotencyKey)
	}
	start := time.Now()
	resp, err := req.Post(messagesPath)
	if err != nil {
		return Reply{}, fmt.Errorf("backend submit: %w", err)
	}
	c.logger.Debug("backend submit completed",
		logging.Int("status", resp.StatusCode()),
		logging.Duration("elapsed", time.Since(start)),
		logging.String(logging.FieldEventType, "backend_submit"),
	)
	if !resp.IsSuccess() {
		return Reply{}, &StatusError{Op: "submit", Status: resp.StatusCode(), Body: resp.String()}
	}
	return reply, nil
}
