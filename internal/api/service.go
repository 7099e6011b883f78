package api

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"chatbridge/internal/config"
	"chatbridge/internal/queue"
)

// ErrUnknownAccount is returned for accounts that are not configured.
var ErrUnknownAccount = errors.New("unknown account")

// Notifier wakes the loops serving an account after an enqueue.
type Notifier interface {
	NotifyInbound(account string)
	NotifyOutbound(account string)
}

// StoreProvider resolves an account to its queue store.
type StoreProvider interface {
	Get(account string) (*queue.Store, error)
}

// QueueService exposes queue operations returning API DTOs.
type QueueService struct {
	stores   StoreProvider
	accounts []string
	notifier Notifier
}

// NewQueueService constructs a QueueService limited to accounts. A nil
// notifier disables wakeups; loops still pick rows up on their poll interval.
func NewQueueService(stores StoreProvider, accounts []string, notifier Notifier) *QueueService {
	if stores == nil {
		return nil
	}
	if len(accounts) == 0 {
		accounts = []string{config.DefaultAccount}
	}
	return &QueueService{
		stores:   stores,
		accounts: slices.Clone(accounts),
		notifier: notifier,
	}
}

// Accounts returns the configured accounts.
func (s *QueueService) Accounts() []string {
	return slices.Clone(s.accounts)
}

// ResolveAccount normalizes account, substituting the default account when
// empty, and rejects accounts that are not configured.
func (s *QueueService) ResolveAccount(account string) (string, error) {
	account = strings.TrimSpace(account)
	if account == "" {
		account = config.DefaultAccount
	}
	if !slices.Contains(s.accounts, account) {
		return "", fmt.Errorf("%w: %s", ErrUnknownAccount, account)
	}
	return account, nil
}

func (s *QueueService) store(account string) (string, *queue.Store, error) {
	resolved, err := s.ResolveAccount(account)
	if err != nil {
		return "", nil, err
	}
	store, err := s.stores.Get(resolved)
	if err != nil {
		return "", nil, err
	}
	return resolved, store, nil
}

// EnqueueInbound validates and stores an inbound message.
func (s *QueueService) EnqueueInbound(ctx context.Context, account string, req InboundRequest) (EnqueueResponse, error) {
	if err := Validate(req); err != nil {
		return EnqueueResponse{}, err
	}
	resolved, store, err := s.store(account)
	if err != nil {
		return EnqueueResponse{}, err
	}
	res, err := store.EnqueueInbound(ctx, ToInboundRequest(req))
	if err != nil {
		return EnqueueResponse{}, err
	}
	if res.Enqueued && s.notifier != nil {
		s.notifier.NotifyInbound(resolved)
	}
	return FromEnqueueResult(resolved, res), nil
}

// EnqueueOutbound validates and stores an outbound message.
func (s *QueueService) EnqueueOutbound(ctx context.Context, account string, req OutboundRequest) (EnqueueResponse, error) {
	if err := Validate(req); err != nil {
		return EnqueueResponse{}, err
	}
	resolved, store, err := s.store(account)
	if err != nil {
		return EnqueueResponse{}, err
	}
	res, err := store.EnqueueOutbound(ctx, ToOutboundRequest(req))
	if err != nil {
		return EnqueueResponse{}, err
	}
	if res.Enqueued && s.notifier != nil {
		s.notifier.NotifyOutbound(resolved)
	}
	return FromEnqueueResult(resolved, res), nil
}

// Stats returns queue counts for account.
func (s *QueueService) Stats(ctx context.Context, account string) (StatsResponse, error) {
	resolved, store, err := s.store(account)
	if err != nil {
		return StatsResponse{}, err
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		return StatsResponse{}, err
	}
	return FromStats(resolved, stats), nil
}

// Health returns database diagnostics for account. Diagnostic failures are
// reported in the payload rather than as an error.
func (s *QueueService) Health(ctx context.Context, account string) (HealthResponse, error) {
	resolved, store, err := s.store(account)
	if err != nil {
		return HealthResponse{}, err
	}
	health, err := store.CheckHealth(ctx)
	if err != nil && health.Error == "" {
		health.Error = err.Error()
	}
	return FromDatabaseHealth(resolved, health), nil
}

// Failed lists failed_permanent rows. An empty queue name lists both queues.
func (s *QueueService) Failed(ctx context.Context, account, queueName string) (FailedResponse, error) {
	var kind queue.Kind
	if strings.TrimSpace(queueName) != "" {
		parsed, ok := queue.ParseKind(queueName)
		if !ok {
			return FailedResponse{}, &ValidationError{Fields: map[string]string{"queue": "queue must be one of [inbound outbound]"}}
		}
		kind = parsed
	}
	resolved, store, err := s.store(account)
	if err != nil {
		return FailedResponse{}, err
	}
	messages, err := store.ListFailed(ctx, kind)
	if err != nil {
		return FailedResponse{}, err
	}
	return FailedResponse{Account: resolved, Messages: FromFailedMessages(messages)}, nil
}

// Resend queues copies of failed outbound rows and wakes the sender. Failed
// inbound rows stay review-only.
func (s *QueueService) Resend(ctx context.Context, account string, req ResendRequest) (ResendResponse, error) {
	if err := Validate(req); err != nil {
		return ResendResponse{}, err
	}
	resolved, store, err := s.store(account)
	if err != nil {
		return ResendResponse{}, err
	}
	ids, err := store.ResendFailed(ctx, req.IDs...)
	if err != nil {
		return ResendResponse{}, err
	}
	if len(ids) > 0 && s.notifier != nil {
		s.notifier.NotifyOutbound(resolved)
	}
	if ids == nil {
		ids = []int64{}
	}
	return ResendResponse{Account: resolved, IDs: ids}, nil
}
