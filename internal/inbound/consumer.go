package inbound

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"chatbridge/internal/backend"
	"chatbridge/internal/config"
	"chatbridge/internal/logging"
	"chatbridge/internal/notifications"
	"chatbridge/internal/queue"
)

// DeliveredMarker is stored as the response text when the backend accepted a
// message without replying inline.
const DeliveredMarker = "delivered"

// Store is the subset of queue.Store the consumer drives.
type Store interface {
	DequeueInbound(ctx context.Context, limit int) ([]*queue.InboundMessage, error)
	MarkInboundProcessing(ctx context.Context, id int64) error
	MarkInboundCompleted(ctx context.Context, id int64, responseText string) error
	MarkInboundRetry(ctx context.Context, id int64, errMsg string) (queue.RetryOutcome, error)
}

// Consumer forwards inbound messages for one account to the backend.
type Consumer struct {
	account       string
	store         Store
	backend       backend.Backend
	batchSize     int
	pollInterval  time.Duration
	submitTimeout time.Duration
	logger        *slog.Logger
	alerts        notifications.Service

	notify  chan struct{}
	running atomic.Bool
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	Ran       bool
	Completed int
	Retried   int
	Exhausted int
}

// Processed returns the number of rows the sweep attempted.
func (r SweepResult) Processed() int {
	return r.Completed + r.Retried + r.Exhausted
}

// Option customizes a Consumer.
type Option func(*Consumer)

// WithSubmitTimeout overrides the per-message backend deadline.
func WithSubmitTimeout(d time.Duration) Option {
	return func(c *Consumer) {
		c.submitTimeout = d
	}
}

// WithNotifier publishes an alert whenever a message fails permanently.
func WithNotifier(svc notifications.Service) Option {
	return func(c *Consumer) {
		if svc != nil {
			c.alerts = svc
		}
	}
}

// NewConsumer builds a consumer for account.
func NewConsumer(account string, store Store, be backend.Backend, cfg config.Inbound, logger *slog.Logger, opts ...Option) *Consumer {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 3
	}
	c := &Consumer{
		account:       account,
		store:         store,
		backend:       be,
		batchSize:     batch,
		pollInterval:  time.Duration(cfg.PollIntervalSeconds) * time.Second,
		submitTimeout: time.Duration(cfg.SubmitTimeoutSeconds) * time.Second,
		logger:        logging.NewComponentLogger(logger, "inbound").With(logging.Account(account)),
		alerts:        notifications.NewService(config.Notifications{}),
		notify:        make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Notify wakes Run without blocking. Signals coalesce while a sweep is
// pending.
func (c *Consumer) Notify() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// Run sweeps on every notification and at least once per poll interval until
// ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	interval := c.pollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.notify:
		case <-timer.C:
		}

		result := c.Sweep(ctx)

		// A full batch likely means more rows are due.
		next := interval
		if result.Processed() >= c.batchSize {
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

// Sweep processes one batch of due rows. It returns immediately with Ran=false
// if another sweep is in progress.
func (c *Consumer) Sweep(ctx context.Context) SweepResult {
	if !c.running.CompareAndSwap(false, true) {
		return SweepResult{}
	}
	defer c.running.Store(false)

	result := SweepResult{Ran: true}
	messages, err := c.store.DequeueInbound(ctx, c.batchSize)
	if err != nil {
		logging.ErrorWithContext(c.logger, "dequeue inbound failed", "inbound_dequeue_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
		return result
	}

	for _, msg := range messages {
		if ctx.Err() != nil {
			return result
		}
		outcome := c.handle(ctx, msg)
		switch outcome {
		case outcomeCompleted:
			result.Completed++
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
	outcomeSkipped outcome = iota
	outcomeCompleted
	outcomeRetried
	outcomeExhausted
)

func (c *Consumer) handle(ctx context.Context, msg *queue.InboundMessage) outcome {
	ctx = logging.WithCorrelationID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, c.logger).With(
		logging.MessageID(msg.ID),
		logging.String("external_message_id", msg.ExternalMessageID),
		logging.String("chat_id", msg.ChatID),
	)

	if err := c.store.MarkInboundProcessing(ctx, msg.ID); err != nil {
		logging.WarnWithContext(logger, "claim inbound message failed", "inbound_claim_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "message stays queued for the next sweep"),
		)
		return outcomeSkipped
	}

	reply, err := c.deliver(ctx, logger, msg)
	if err == nil {
		text := reply.Text
		if text == "" {
			text = DeliveredMarker
		}
		if markErr := c.store.MarkInboundCompleted(context.WithoutCancel(ctx), msg.ID, text); markErr != nil {
			logging.ErrorWithContext(logger, "mark inbound completed failed", "inbound_complete_failed",
				logging.Error(markErr),
				logging.String(logging.FieldErrorHint, "row will be reset to pending and may be submitted again"),
			)
			return outcomeSkipped
		}
		logger.Info("inbound message delivered",
			logging.Int("retries", msg.Retries),
			logging.String(logging.FieldEventType, "inbound_delivered"),
		)
		return outcomeCompleted
	}

	if ctx.Err() != nil {
		// Left in processing; the next Open resets it without spending a retry.
		logger.Info("inbound submit interrupted by shutdown",
			logging.Error(err),
			logging.String(logging.FieldEventType, "inbound_interrupted"),
		)
		return outcomeSkipped
	}

	retry, markErr := c.store.MarkInboundRetry(ctx, msg.ID, err.Error())
	if markErr != nil {
		logging.ErrorWithContext(logger, "mark inbound retry failed", "inbound_retry_failed",
			logging.Error(markErr),
			logging.String("submit_error", err.Error()),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
		return outcomeSkipped
	}
	if retry.Exhausted {
		logging.ErrorWithContext(logger, "inbound message failed permanently", "inbound_exhausted",
			logging.Error(err),
			logging.Int("retries", retry.Retries),
			logging.String(logging.FieldErrorHint, "inspect with 'chatbridge queue failed'; failed inbound messages need manual follow-up"),
			logging.Alert("inbound_failed_permanent"),
		)
		payload := notifications.FailedPayload(c.account, "inbound", msg.ID, msg.ChatID, retry.Retries, err)
		if alertErr := c.alerts.Publish(context.WithoutCancel(ctx), notifications.EventMessageFailed, payload); alertErr != nil {
			logger.Warn("failure alert not delivered", logging.Error(alertErr))
		}
		return outcomeExhausted
	}
	logging.WarnWithContext(logger, "inbound submit failed; retry scheduled", "inbound_retry_scheduled",
		logging.Error(err),
		logging.Int("retries", retry.Retries),
		logging.Any("next_retry_at", retry.NextRetryAt),
		logging.String(logging.FieldErrorHint, "check backend availability"),
		logging.String(logging.FieldImpact, "reply delayed until the backend accepts the message"),
	)
	return outcomeRetried
}

// deliver resolves the session and submits the message under the submit
// deadline. Panics are converted to errors so one bad row cannot stop the
// batch.
func (c *Consumer) deliver(ctx context.Context, logger *slog.Logger, msg *queue.InboundMessage) (reply backend.Reply, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("inbound handler panic: %v", r)
		}
	}()

	attachments, ok, decodeErr := msg.Attachments()
	if !ok {
		logging.WarnWithContext(logger, "malformed attachments ignored", "inbound_attachments_malformed",
			logging.Error(decodeErr),
			logging.String(logging.FieldImpact, "message submitted without attachments"),
		)
		attachments = nil
	}

	submitCtx := ctx
	if c.submitTimeout > 0 {
		var cancel context.CancelFunc
		submitCtx, cancel = context.WithTimeout(ctx, c.submitTimeout)
		defer cancel()
	}

	session, err := c.backend.Resolve(submitCtx, backend.Route{
		Account:    c.account,
		ChatID:     msg.ChatID,
		SessionKey: msg.SessionKey,
	})
	if err != nil {
		return backend.Reply{}, wrapTimeout("resolve session", err)
	}

	reply, err = c.backend.Submit(submitCtx, backend.Submission{
		Text:           msg.Text,
		Attachments:    attachments,
		SessionKey:     session.SessionKey,
		ChatID:         msg.ChatID,
		AgentID:        session.AgentID,
		IdempotencyKey: msg.ExternalMessageID,
	})
	if err != nil {
		return backend.Reply{}, wrapTimeout("submit", err)
	}
	return reply, nil
}

func wrapTimeout(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s timed out: %w", op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
