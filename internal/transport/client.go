package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"chatbridge/internal/config"
	"chatbridge/internal/logging"
)

const (
	tokenPath    = "/open-apis/auth/v3/tenant_access_token/internal"
	messagesPath = "/open-apis/im/v1/messages"

	// tokenRefreshMargin renews the tenant token this long before it expires.
	tokenRefreshMargin = 5 * time.Minute
)

// ErrNotConfigured is returned when app credentials are missing.
var ErrNotConfigured = errors.New("chat transport credentials not configured")

// HTTPClient sends messages through the platform's bot HTTP API.
type HTTPClient struct {
	http      *resty.Client
	appID     string
	appSecret string
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker
	logger    *slog.Logger
	now       func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

type tokenRequest struct {
	AppID     string `json:"app_id"`
	AppSecret string `json:"app_secret"`
}

type tokenResponse struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Token  string `json:"tenant_access_token"`
	Expire int    `json:"expire"`
}

type messageRequest struct {
	ReceiveID string `json:"receive_id"`
	MsgType   string `json:"msg_type"`
	Content   string `json:"content"`
}

type messageResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		MessageID string `json:"message_id"`
	} `json:"data"`
}

// NewHTTPClient builds a client from transport configuration.
func NewHTTPClient(cfg config.Transport, logger *slog.Logger) (*HTTPClient, error) {
	if strings.TrimSpace(cfg.AppID) == "" || strings.TrimSpace(cfg.AppSecret) == "" {
		return nil, ErrNotConfigured
	}
	logger = logging.NewComponentLogger(logger, "transport")

	timeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json; charset=utf-8").
		SetHeader("Accept", "application/json")

	limit := rate.Limit(cfg.RatePerSecond)
	if cfg.RatePerSecond <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	failures := uint32(cfg.BreakerFailures)
	if failures == 0 {
		failures = 5
	}
	settings := gobreaker.Settings{
		Name:        "chat-transport",
		MaxRequests: 1,
		Timeout:     time.Duration(cfg.BreakerOpenSeconds) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			attrs := []logging.Attr{
				logging.String("breaker", name),
				logging.String("from", from.String()),
				logging.String("to", to.String()),
				logging.String(logging.FieldEventType, "transport_breaker_state"),
			}
			if to == gobreaker.StateOpen {
				logging.WarnWithContext(logger, "chat transport circuit opened", "transport_breaker_open",
					append(attrs,
						logging.String(logging.FieldErrorHint, "check platform availability and network"),
						logging.String(logging.FieldImpact, "sends fail fast until the breaker half-opens"),
					)...)
				return
			}
			logger.Info("chat transport circuit state changed", logging.Args(attrs...)...)
		},
		// Platform rejections prove the API is reachable.
		IsSuccessful: func(err error) bool {
			return err == nil || !IsRetryable(err)
		},
	}

	return &HTTPClient{
		http:      httpClient,
		appID:     cfg.AppID,
		appSecret: cfg.AppSecret,
		limiter:   rate.NewLimiter(limit, burst),
		breaker:   gobreaker.NewCircuitBreaker(settings),
		logger:    logger,
		now:       time.Now,
	}, nil
}

// SendText posts a plain-text message to chatID.
func (c *HTTPClient) SendText(ctx context.Context, chatID, text string) (Result, error) {
	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return Result{}, fmt.Errorf("encode text content: %w", err)
	}
	return c.send(ctx, chatID, "text", string(content))
}

// SendCard posts an interactive card to chatID.
func (c *HTTPClient) SendCard(ctx context.Context, chatID string, card Card) (Result, error) {
	content, err := json.Marshal(card)
	if err != nil {
		return Result{}, fmt.Errorf("encode card content: %w", err)
	}
	return c.send(ctx, chatID, "interactive", string(content))
}

// BreakerState reports the circuit breaker state ("closed", "half-open", "open").
func (c *HTTPClient) BreakerState() string {
	return c.breaker.State().String()
}

func (c *HTTPClient) send(ctx context.Context, chatID, msgType, content string) (Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Result{}, fmt.Errorf("rate limit wait: %w", err)
	}
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.post(ctx, chatID, msgType, content)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Result{}, fmt.Errorf("chat transport unavailable: %w", err)
		}
		return Result{}, err
	}
	return out.(Result), nil
}

func (c *HTTPClient) post(ctx context.Context, chatID, msgType, content string) (Result, error) {
	token, err := c.tenantToken(ctx)
	if err != nil {
		return Result{}, err
	}

	var body messageResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParam("receive_id_type", "chat_id").
		SetBody(messageRequest{ReceiveID: chatID, MsgType: msgType, Content: content}).
		SetResult(&body).
		SetError(&body).
		Post(messagesPath)
	if err != nil {
		return Result{}, fmt.Errorf("send message: %w", err)
	}
	if body.Code != 0 {
		if body.Code == CodeInvalidToken {
			c.invalidateToken()
		}
		return Result{}, &Error{Code: body.Code, Msg: body.Msg, Status: resp.StatusCode()}
	}
	if !resp.IsSuccess() {
		return Result{}, &Error{Msg: http.StatusText(resp.StatusCode()), Status: resp.StatusCode()}
	}
	return Result{MessageID: body.Data.MessageID}, nil
}

func (c *HTTPClient) tenantToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expiresAt) {
		return c.token, nil
	}

	var body tokenResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(tokenRequest{AppID: c.appID, AppSecret: c.appSecret}).
		SetResult(&body).
		SetError(&body).
		Post(tokenPath)
	if err != nil {
		return "", fmt.Errorf("fetch tenant token: %w", err)
	}
	if body.Code != 0 {
		return "", &Error{Code: body.Code, Msg: body.Msg, Status: resp.StatusCode()}
	}
	if !resp.IsSuccess() || body.Token == "" {
		return "", &Error{Msg: "tenant token unavailable", Status: resp.StatusCode()}
	}

	lifetime := time.Duration(body.Expire) * time.Second
	if lifetime > tokenRefreshMargin {
		lifetime -= tokenRefreshMargin
	}
	c.token = body.Token
	c.expiresAt = c.now().Add(lifetime)
	c.logger.Debug("tenant token refreshed",
		logging.Duration("lifetime", lifetime),
		logging.String(logging.FieldEventType, "transport_token_refreshed"),
	)
	return c.token, nil
}

func (c *HTTPClient) invalidateToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.expiresAt = time.Time{}
}

// CheckCredentials fetches a tenant token to confirm the app credentials are
// accepted. A cached token counts as success.
func (c *HTTPClient) CheckCredentials(ctx context.Context) error {
	_, err := c.tenantToken(ctx)
	return err
}
