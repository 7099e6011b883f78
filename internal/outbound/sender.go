package outbound

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"chatbridge/internal/config"
	"chatbridge/internal/logging"
	"chatbridge/internal/notifications"
	"chatbridge/internal/queue"
	"chatbridge/internal/transport"
)

// Store is the subset of queue.Store the sender drives.
type Store interface {
	DequeueOutbound(ctx context.Context, limit int) ([]*queue.OutboundMessage, error)
	MarkOutboundProcessing(ctx context.Context, id int64) error
	MarkOutboundCompleted(ctx context.Context, id int64, deliveredMessageID string) error
	MarkOutboundRetry(ctx context.Context, id int64, errMsg string) (queue.RetryOutcome, error)
}

// Sender delivers one account's outbound queue through a Transport.
type Sender struct {
	account      string
	store        Store
	transport    transport.Transport
	batchSize    int
	pollInterval time.Duration
	textMaxRunes int
	retry        RetryPolicy
	logger       *slog.Logger
	alerts       notifications.Service

	notify chan struct{}
}

// DrainResult summarizes one pass over the outbound queue.
type DrainResult struct {
	Sent      int
	Skipped   int
	Retried   int
	Exhausted int
}

// Processed returns the number of rows the pass attempted.
func (r DrainResult) Processed() int {
	return r.Sent + r.Skipped + r.Retried + r.Exhausted
}

// Option customizes a Sender.
type Option func(*Sender)

// WithRetryPolicy overrides the transport-level retry policy.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(s *Sender) {
		s.retry = policy
	}
}

// WithNotifier publishes an alert whenever a message fails permanently.
func WithNotifier(svc notifications.Service) Option {
	return func(s *Sender) {
		if svc != nil {
			s.alerts = svc
		}
	}
}

// NewSender builds a sender for account.
func NewSender(account string, store Store, tr transport.Transport, cfg config.Outbound, queueCfg config.Queue, logger *slog.Logger, opts ...Option) *Sender {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 5
	}
	s := &Sender{
		account:      account,
		store:        store,
		transport:    tr,
		batchSize:    batch,
		pollInterval: time.Duration(cfg.PollIntervalSeconds) * time.Second,
		textMaxRunes: cfg.TextMaxRunes,
		retry: RetryPolicy{
			MaxAttempts: cfg.SendMaxRetries,
			BaseBackoff: queueCfg.BaseBackoff(),
			MaxBackoff:  queueCfg.MaxBackoff(),
		},
		logger: logging.NewComponentLogger(logger, "outbound").With(logging.Account(account)),
		alerts: notifications.NewService(config.Notifications{}),
		notify: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Notify wakes Run without blocking.
func (s *Sender) Notify() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Run drains the queue on every notification and at least once per poll
// interval until ctx is cancelled.
func (s *Sender) Run(ctx context.Context) {
	interval := s.pollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.notify:
		case <-timer.C:
		}

		result := s.Drain(ctx)

		next := interval
		if result.Processed() >= s.batchSize {
			next = 0
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(next)
	}
}

// Drain processes one batch of due rows.
func (s *Sender) Drain(ctx context.Context) DrainResult {
	var result DrainResult
	messages, err := s.store.DequeueOutbound(ctx, s.batchSize)
	if err != nil {
		logging.ErrorWithContext(s.logger, "dequeue outbound failed", "outbound_dequeue_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
		return result
	}

	for _, msg := range messages {
		if ctx.Err() != nil {
			return result
		}
		switch s.handle(ctx, msg) {
		case outcomeSent:
			result.Sent++
		case outcomeSkipped:
			result.Skipped++
		case outcomeRetried:
			result.Retried++
		case outcomeExhausted:
			result.Exhausted++
		}
	}
	return result
}

type outcome int

const (
	outcomeNone outcome = iota
	outcomeSent
	outcomeSkipped
	outcomeRetried
	outcomeExhausted
)

func (s *Sender) handle(ctx context.Context, msg *queue.OutboundMessage) outcome {
	ctx = logging.WithCorrelationID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, s.logger).With(
		logging.MessageID(msg.ID),
		logging.String("chat_id", msg.ChatID),
		logging.String("queue_type", string(msg.QueueType)),
	)

	if err := s.store.MarkOutboundProcessing(ctx, msg.ID); err != nil {
		logging.WarnWithContext(logger, "claim outbound message failed", "outbound_claim_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "message stays queued for the next pass"),
		)
		return outcomeNone
	}

	kind := ClassifyWithLimit(msg.Content, s.textMaxRunes)
	if kind == KindSkip {
		if err := s.store.MarkOutboundCompleted(ctx, msg.ID, ""); err != nil {
			logging.ErrorWithContext(logger, "mark skipped outbound completed failed", "outbound_complete_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
			return outcomeNone
		}
		logger.Debug("outbound message skipped",
			logging.String(logging.FieldEventType, "outbound_skipped"),
		)
		return outcomeSkipped
	}

	res, attempts, err := s.deliver(ctx, logger, kind, msg)
	if err == nil {
		if markErr := s.store.MarkOutboundCompleted(context.WithoutCancel(ctx), msg.ID, res.MessageID); markErr != nil {
			logging.ErrorWithContext(logger, "mark outbound completed failed", "outbound_complete_failed",
				logging.Error(markErr),
				logging.String("delivered_message_id", res.MessageID),
				logging.String(logging.FieldErrorHint, "row will be reset to pending and may be sent twice"),
			)
			return outcomeNone
		}
		logger.Info("outbound message sent",
			logging.String("kind", kind.String()),
			logging.String("delivered_message_id", res.MessageID),
			logging.Int("attempts", attempts),
			logging.String(logging.FieldEventType, "outbound_sent"),
		)
		return outcomeSent
	}

	if ctx.Err() != nil {
		// Left in processing; the next Open resets it without spending a retry.
		logger.Info("outbound send interrupted by shutdown",
			logging.Error(err),
			logging.String(logging.FieldEventType, "outbound_interrupted"),
		)
		return outcomeNone
	}

	retry, markErr := s.store.MarkOutboundRetry(ctx, msg.ID, err.Error())
	if markErr != nil {
		logging.ErrorWithContext(logger, "mark outbound retry failed", "outbound_retry_failed",
			logging.Error(markErr),
			logging.String("send_error", err.Error()),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
		return outcomeNone
	}
	if retry.Exhausted {
		logging.ErrorWithContext(logger, "outbound message failed permanently", "outbound_exhausted",
			logging.Error(err),
			logging.Int("retries", retry.Retries),
			logging.String(logging.FieldErrorHint, "inspect with 'chatbridge queue failed' and run 'chatbridge queue resend' after fixing the cause"),
			logging.Alert("outbound_failed_permanent"),
		)
		payload := notifications.FailedPayload(s.account, "outbound", msg.ID, msg.ChatID, retry.Retries, err)
		if alertErr := s.alerts.Publish(context.WithoutCancel(ctx), notifications.EventMessageFailed, payload); alertErr != nil {
			logger.Warn("failure alert not delivered", logging.Error(alertErr))
		}
		return outcomeExhausted
	}

	hint := "check chat platform availability"
	var platformErr *transport.Error
	if errors.As(err, &platformErr) && !transport.IsRetryable(err) {
		hint = fmt.Sprintf("platform rejected the message (code %d); fix bot permissions or content", platformErr.Code)
	}
	logging.WarnWithContext(logger, "outbound send failed; retry scheduled", "outbound_retry_scheduled",
		logging.Error(err),
		logging.Int("attempts", attempts),
		logging.Int("retries", retry.Retries),
		logging.Any("next_retry_at", retry.NextRetryAt),
		logging.String(logging.FieldErrorHint, hint),
		logging.String(logging.FieldImpact, "reply delayed"),
	)
	return outcomeRetried
}

func (s *Sender) deliver(ctx context.Context, logger *slog.Logger, kind Kind, msg *queue.OutboundMessage) (res transport.Result, attempts int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("outbound handler panic: %v", r)
		}
	}()

	var send SendFunc
	switch kind {
	case KindText:
		send = func(ctx context.Context) (transport.Result, error) {
			return s.transport.SendText(ctx, msg.ChatID, msg.Content)
		}
	default:
		card := RenderCard(msg.Content)
		send = func(ctx context.Context) (transport.Result, error) {
			return s.transport.SendCard(ctx, msg.ChatID, card)
		}
	}
	return SendWithRetry(ctx, s.retry, logger, send)
}
