package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Endpoint paths served by the daemon.
const (
	PathInbound     = "/api/inbound"
	PathOutbound    = "/api/outbound"
	PathStats       = "/api/stats"
	PathHealth      = "/api/health"
	PathQueueFailed = "/api/queue/failed"
	PathQueueResend = "/api/queue/resend"
)

// StatusError reports a non-2xx daemon response.
type StatusError struct {
	Status  int
	Message string
	Details map[string]string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon api: status %d", e.Status)
	}
	return fmt.Sprintf("daemon api: %s (status %d)", e.Message, e.Status)
}

// Client calls the daemon HTTP API.
type Client struct {
	http *resty.Client
}

// NewClient returns a client for the daemon listening on bind. A bind
// without a scheme is treated as host:port over plain HTTP.
func NewClient(bind, token string, timeout time.Duration) *Client {
	base := strings.TrimSpace(bind)
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(base, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if token != "" {
		client.SetAuthToken(token)
	}
	return &Client{http: client}
}

// BaseURL returns the daemon URL the client targets.
func (c *Client) BaseURL() string {
	return c.http.BaseURL
}

// EnqueueInbound posts an inbound message.
func (c *Client) EnqueueInbound(ctx context.Context, account string, req InboundRequest) (EnqueueResponse, error) {
	var out EnqueueResponse
	err := c.do(ctx, "POST", PathInbound, accountQuery(account), req, &out)
	return out, err
}

// EnqueueOutbound posts an outbound message.
func (c *Client) EnqueueOutbound(ctx context.Context, account string, req OutboundRequest) (EnqueueResponse, error) {
	var out EnqueueResponse
	err := c.do(ctx, "POST", PathOutbound, accountQuery(account), req, &out)
	return out, err
}

// Stats fetches queue counts.
func (c *Client) Stats(ctx context.Context, account string) (StatsResponse, error) {
	var out StatsResponse
	err := c.do(ctx, "GET", PathStats, accountQuery(account), nil, &out)
	return out, err
}

// Health fetches database diagnostics.
func (c *Client) Health(ctx context.Context, account string) (HealthResponse, error) {
	var out HealthResponse
	err := c.do(ctx, "GET", PathHealth, accountQuery(account), nil, &out)
	return out, err
}

// Failed lists failed messages. queueName may be empty for both queues.
func (c *Client) Failed(ctx context.Context, account, queueName string) (FailedResponse, error) {
	query := accountQuery(account)
	if queueName != "" {
		query.Set("queue", queueName)
	}
	var out FailedResponse
	err := c.do(ctx, "GET", PathQueueFailed, query, nil, &out)
	return out, err
}

// Resend queues copies of failed outbound messages.
func (c *Client) Resend(ctx context.Context, account string, req ResendRequest) (ResendResponse, error) {
	var out ResendResponse
	err := c.do(ctx, "POST", PathQueueResend, accountQuery(account), req, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, result any) error {
	var apiErr ErrorResponse
	req := c.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(query).
		SetResult(result).
		SetError(&apiErr)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("daemon api %s %s: %w", method, path, err)
	}
	if resp.IsError() {
		return &StatusError{Status: resp.StatusCode(), Message: apiErr.Error, Details: apiErr.Details}
	}
	return nil
}

func accountQuery(account string) url.Values {
	query := url.Values{}
	if account = strings.TrimSpace(account); account != "" {
		query.Set("account", account)
	}
	return query
}

// ParseIDs converts command-line message ids.
func ParseIDs(values []string) ([]int64, error) {
	ids := make([]int64, 0, len(values))
	for _, value := range values {
		id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid message id %q", value)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
