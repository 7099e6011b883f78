package api_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"chatbridge/internal/api"
	"chatbridge/internal/queue"
	"chatbridge/internal/testsupport"
)

type recordingNotifier struct {
	mu       sync.Mutex
	inbound  []string
	outbound []string
}

func (n *recordingNotifier) NotifyInbound(account string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.inbound = append(n.inbound, account)
}

func (n *recordingNotifier) NotifyOutbound(account string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.outbound = append(n.outbound, account)
}

func newService(t *testing.T, accounts ...string) (*api.QueueService, *queue.Registry, *recordingNotifier) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithAccounts(accounts...))
	registry := testsupport.NewRegistry(t, cfg)
	notifier := &recordingNotifier{}
	return api.NewQueueService(registry, cfg.Accounts, notifier), registry, notifier
}

func TestQueueServiceEnqueueInboundAcksDuplicates(t *testing.T) {
	svc, _, notifier := newService(t, "default")
	ctx := context.Background()
	req := api.InboundRequest{MessageID: "om_1", ChatID: "oc_1", Text: "hi"}

	first, err := svc.EnqueueInbound(ctx, "", req)
	if err != nil {
		t.Fatalf("EnqueueInbound: %v", err)
	}
	if !first.Enqueued || first.ID == 0 || first.Account != "default" {
		t.Fatalf("unexpected first response: %+v", first)
	}

	second, err := svc.EnqueueInbound(ctx, "default", req)
	if err != nil {
		t.Fatalf("duplicate EnqueueInbound: %v", err)
	}
	if second.Enqueued || second.Reason != queue.ReasonDuplicate {
		t.Fatalf("unexpected duplicate response: %+v", second)
	}
	if len(notifier.inbound) != 1 {
		t.Fatalf("expected one wakeup, got %v", notifier.inbound)
	}
}

func TestQueueServiceRejectsUnknownAccount(t *testing.T) {
	svc, registry, _ := newService(t, "default")

	_, err := svc.Stats(context.Background(), "stranger")
	if !errors.Is(err, api.ErrUnknownAccount) {
		t.Fatalf("expected ErrUnknownAccount, got %v", err)
	}
	if _, ok := registry.Lookup("stranger"); ok {
		t.Fatal("unknown account should not open a store")
	}
}

func TestQueueServiceRoutesByAccount(t *testing.T) {
	svc, _, notifier := newService(t, "default", "ops")
	ctx := context.Background()

	if _, err := svc.EnqueueOutbound(ctx, "ops", api.OutboundRequest{QueueType: "reply", ChatID: "oc_1", Content: "done"}); err != nil {
		t.Fatalf("EnqueueOutbound: %v", err)
	}

	ops, err := svc.Stats(ctx, "ops")
	if err != nil {
		t.Fatalf("Stats ops: %v", err)
	}
	def, err := svc.Stats(ctx, "default")
	if err != nil {
		t.Fatalf("Stats default: %v", err)
	}
	if ops.Outbound.Pending != 1 || def.Outbound.Pending != 0 {
		t.Fatalf("unexpected stats: ops=%+v default=%+v", ops, def)
	}
	if ops.Path == def.Path {
		t.Fatalf("accounts should use separate stores: %s", ops.Path)
	}
	if len(notifier.outbound) != 1 || notifier.outbound[0] != "ops" {
		t.Fatalf("unexpected wakeups: %v", notifier.outbound)
	}
}

func TestQueueServiceFailedAndResend(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Queue.MaxRetries = 1
	registry := testsupport.NewRegistry(t, cfg)
	notifier := &recordingNotifier{}
	svc := api.NewQueueService(registry, cfg.Accounts, notifier)
	ctx := context.Background()

	store, err := registry.Get("default")
	if err != nil {
		t.Fatalf("registry.Get: %v", err)
	}
	inID := testsupport.EnqueueInbound(t, store, "om_1", "oc_1", "ping")
	if err := store.MarkInboundProcessing(ctx, inID); err != nil {
		t.Fatalf("MarkInboundProcessing: %v", err)
	}
	if _, err := store.MarkInboundRetry(ctx, inID, "backend down"); err != nil {
		t.Fatalf("MarkInboundRetry: %v", err)
	}
	outID := testsupport.EnqueueReply(t, store, "oc_1", "pong")
	if _, err := store.MarkOutboundRetry(ctx, outID, "bot removed"); err != nil {
		t.Fatalf("MarkOutboundRetry: %v", err)
	}

	failed, err := svc.Failed(ctx, "", "inbound")
	if err != nil {
		t.Fatalf("Failed: %v", err)
	}
	if len(failed.Messages) != 1 || failed.Messages[0].ID != inID || failed.Messages[0].LastError != "backend down" {
		t.Fatalf("unexpected failed list: %+v", failed)
	}

	if _, err := svc.Failed(ctx, "", "sideways"); err == nil {
		t.Fatal("expected validation error for unknown queue")
	}

	resent, err := svc.Resend(ctx, "", api.ResendRequest{})
	if err != nil {
		t.Fatalf("Resend: %v", err)
	}
	if len(resent.IDs) != 1 || resent.IDs[0] == outID {
		t.Fatalf("unexpected resend response: %+v", resent)
	}
	if len(notifier.outbound) != 1 || len(notifier.inbound) != 0 {
		t.Fatalf("expected only the sender to wake, got inbound=%v outbound=%v", notifier.inbound, notifier.outbound)
	}

	in, _ := store.GetInbound(ctx, inID)
	if in.Status != queue.StatusFailedPermanent || in.Retries != 1 {
		t.Fatalf("failed inbound row changed: %+v", in)
	}
	out, _ := store.GetOutbound(ctx, outID)
	if out.Status != queue.StatusFailedPermanent || out.Retries != 1 {
		t.Fatalf("failed outbound row changed: %+v", out)
	}

	if _, err := svc.Resend(ctx, "", api.ResendRequest{IDs: []int64{-1}}); err == nil {
		t.Fatal("expected validation error for non-positive id")
	}
}

func TestQueueServiceHealth(t *testing.T) {
	svc, _, _ := newService(t, "default")

	health, err := svc.Health(context.Background(), "")
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if !health.Healthy || !health.DatabaseExists || !health.IntegrityCheck {
		t.Fatalf("unexpected health: %+v", health)
	}
}
