package sweeper_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"chatbridge/internal/logging"
	"chatbridge/internal/queue"
	"chatbridge/internal/sweeper"
	"chatbridge/internal/testsupport"
)

func TestSweepReclaimsPurgesAndCleansMedia(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAccounts("alpha", "beta"))
	clock := testsupport.NewClock(time.Now().UTC())
	registry := queue.NewRegistryFromConfig(cfg, queue.WithClock(clock.Now))
	t.Cleanup(func() { registry.Close() })
	ctx := context.Background()

	alpha, err := registry.Get("alpha")
	if err != nil {
		t.Fatalf("Get alpha: %v", err)
	}
	done := testsupport.EnqueueInbound(t, alpha, "done", "c1", "a")
	if err := alpha.MarkInboundCompleted(ctx, done, "ok"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	stuck := testsupport.EnqueueInbound(t, alpha, "stuck", "c1", "b")
	if err := alpha.MarkInboundProcessing(ctx, stuck); err != nil {
		t.Fatalf("mark processing: %v", err)
	}

	testsupport.WriteAgedFile(t, filepath.Join(cfg.Paths.MediaDir, "img_1.png"), 2*cfg.Queue.MessageTTL())

	clock.Advance(cfg.Queue.MessageTTL() + time.Hour)
	sw := sweeper.New(cfg, registry, logging.NewNop(), sweeper.WithClock(clock.Now))
	result := sw.Sweep(ctx)

	if result.Reclaimed != 1 {
		t.Fatalf("Reclaimed = %d, want 1", result.Reclaimed)
	}
	if result.Purged.Inbound != 1 {
		t.Fatalf("Purged = %+v", result.Purged)
	}
	if result.MediaRemoved != 1 || result.Errors != 0 {
		t.Fatalf("unexpected media result: %+v", result)
	}

	if _, err := alpha.GetInbound(ctx, done); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("completed row should be purged, got %v", err)
	}
	msg, err := alpha.GetInbound(ctx, stuck)
	if err != nil || msg.Status != queue.StatusPending {
		t.Fatalf("stuck row should be pending: %+v, %v", msg, err)
	}

	if _, ok := registry.Lookup("beta"); !ok {
		t.Fatal("sweep should open every configured account")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	registry := queue.NewRegistryFromConfig(cfg)
	t.Cleanup(func() { registry.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.New(cfg, registry, logging.NewNop()).Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
