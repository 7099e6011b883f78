package daemon_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"chatbridge/internal/api"
	"chatbridge/internal/backend"
	"chatbridge/internal/config"
	"chatbridge/internal/daemon"
	"chatbridge/internal/logging"
	"chatbridge/internal/queue"
	"chatbridge/internal/testsupport"
	"chatbridge/internal/transport"
)

type echoBackend struct{}

func (echoBackend) Resolve(_ context.Context, route backend.Route) (backend.Session, error) {
	return backend.Session{SessionKey: route.SessionKey, AgentID: "main"}, nil
}

func (echoBackend) Submit(_ context.Context, s backend.Submission) (backend.Reply, error) {
	return backend.Reply{Text: "echo: " + s.Text}, nil
}

type recordingTransport struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingTransport) SendText(_ context.Context, chatID, text string) (transport.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, chatID+":"+text)
	return transport.Result{MessageID: "om_out"}, nil
}

func (r *recordingTransport) SendCard(ctx context.Context, chatID string, card transport.Card) (transport.Result, error) {
	return r.SendText(ctx, chatID, card.Elements[0].Content)
}

func (r *recordingTransport) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func newDaemon(t *testing.T, cfg *config.Config, opts ...daemon.Option) *daemon.Daemon {
	t.Helper()
	registry := queue.NewRegistryFromConfig(cfg)
	d, err := daemon.New(cfg, registry, logging.NewNop(), opts...)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})
	return d
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	d := newDaemon(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status()
	if !status.Running || status.APIAddress == "" {
		t.Fatalf("unexpected status after start: %+v", status)
	}
	if len(status.Consumers) != 0 || len(status.Senders) != 0 {
		t.Fatalf("loops should be disabled without backend and transport: %+v", status)
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second Start to fail")
	}

	d.Stop()
	if d.Status().Running {
		t.Fatal("daemon still running after Stop")
	}
}

func TestDaemonLockPreventsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	first := newDaemon(t, cfg)
	second := newDaemon(t, cfg)
	ctx := context.Background()

	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := second.Start(ctx); err == nil {
		t.Fatal("expected lock contention error")
	}
	first.Stop()
	if err := second.Start(ctx); err != nil {
		t.Fatalf("second Start after release: %v", err)
	}
	second.Stop()
}

func TestDaemonRelaysInboundAndReplies(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	tr := &recordingTransport{}
	d := newDaemon(t, cfg, daemon.WithBackend(echoBackend{}), daemon.WithTransport(tr))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	client := api.NewClient(d.APIAddress(), "", 2*time.Second)
	resp, err := client.EnqueueInbound(ctx, "", api.InboundRequest{MessageID: "om_1", ChatID: "oc_1", Text: "ping"})
	if err != nil {
		t.Fatalf("EnqueueInbound: %v", err)
	}
	if !resp.Enqueued {
		t.Fatalf("unexpected response: %+v", resp)
	}

	reply, err := client.EnqueueOutbound(ctx, "", api.OutboundRequest{QueueType: "reply", ChatID: "oc_1", Content: "pong"})
	if err != nil {
		t.Fatalf("EnqueueOutbound: %v", err)
	}
	if !reply.Enqueued {
		t.Fatalf("unexpected reply response: %+v", reply)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		stats, err := client.Stats(ctx, "")
		if err != nil {
			t.Fatalf("Stats: %v", err)
		}
		if stats.Inbound.Completed == 1 && stats.Outbound.Completed == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("messages not processed: %+v", stats)
		}
		time.Sleep(20 * time.Millisecond)
	}
	if tr.count() != 1 {
		t.Fatalf("expected one delivery, got %d", tr.count())
	}
}
