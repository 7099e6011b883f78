package testsupport

import (
	"context"
	"sync"
	"testing"
	"time"

	"chatbridge/internal/config"
	"chatbridge/internal/queue"
)

// MustOpenStore opens the default account's queue.Store for tests and
// registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config, opts ...queue.Option) *queue.Store {
	t.Helper()

	all := append([]queue.Option{queue.WithPolicy(queue.PolicyFromConfig(cfg.Queue))}, opts...)
	store, err := queue.Open(cfg.StorePath(config.DefaultAccount), all...)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewRegistry returns a registry rooted at cfg's state directory and closes
// it when the test ends.
func NewRegistry(t testing.TB, cfg *config.Config, opts ...queue.Option) *queue.Registry {
	t.Helper()

	registry := queue.NewRegistryFromConfig(cfg, opts...)
	t.Cleanup(func() {
		registry.Close()
	})
	return registry
}

// EnqueueInbound stores an inbound message and fails the test on error or
// duplicate.
func EnqueueInbound(t testing.TB, store *queue.Store, externalID, chatID, text string) int64 {
	t.Helper()

	res, err := store.EnqueueInbound(context.Background(), queue.InboundRequest{
		ExternalMessageID: externalID,
		ChatID:            chatID,
		SessionKey:        "session-" + chatID,
		Text:              text,
	})
	if err != nil {
		t.Fatalf("store.EnqueueInbound: %v", err)
	}
	if !res.Enqueued {
		t.Fatalf("store.EnqueueInbound: not enqueued (%s)", res.Reason)
	}
	return res.ID
}

// EnqueueReply stores an outbound reply and fails the test on error or
// duplicate.
func EnqueueReply(t testing.TB, store *queue.Store, chatID, content string) int64 {
	t.Helper()

	res, err := store.EnqueueOutbound(context.Background(), queue.OutboundRequest{
		QueueType:  queue.QueueTypeReply,
		SessionKey: "session-" + chatID,
		ChatID:     chatID,
		Content:    content,
	})
	if err != nil {
		t.Fatalf("store.EnqueueOutbound: %v", err)
	}
	if !res.Enqueued {
		t.Fatalf("store.EnqueueOutbound: not enqueued (%s)", res.Reason)
	}
	return res.ID
}

// Clock is a settable time source for stores under test.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock fixed at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
