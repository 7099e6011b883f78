package queue_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"chatbridge/internal/queue"
	"chatbridge/internal/testsupport"
)

func TestOpenCreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "queue.db")
	store, err := queue.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()
	if store.Path() != path {
		t.Fatalf("Path = %q, want %q", store.Path(), path)
	}

	// Reopening an existing database is a no-op for the schema.
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	again, err := queue.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	again.Close()
}

func TestOpenRejectsSchemaDrift(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.db")
	store, err := queue.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	store.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	db.Close()

	if _, err := queue.Open(path); !errors.Is(err, queue.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestEnqueueInboundIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	req := queue.InboundRequest{ExternalMessageID: "m1", ChatID: "c1", SessionKey: "s1", Text: "hi"}
	first, err := store.EnqueueInbound(ctx, req)
	if err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if !first.Enqueued || first.ID == 0 {
		t.Fatalf("unexpected first result: %+v", first)
	}

	req.Text = "different text, same id"
	second, err := store.EnqueueInbound(ctx, req)
	if err != nil {
		t.Fatalf("second enqueue: %v", err)
	}
	if second.Enqueued || second.Reason != queue.ReasonDuplicate {
		t.Fatalf("expected duplicate, got %+v", second)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Inbound.Total() != 1 {
		t.Fatalf("expected exactly one inbound row, got %+v", stats.Inbound)
	}
}

func TestEnqueueInboundValidatesInput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	cases := []queue.InboundRequest{
		{ChatID: "c1", Text: "no id"},
		{ExternalMessageID: "  ", ChatID: "c1", Text: "blank id"},
		{ExternalMessageID: "m1", Text: "no chat"},
	}
	for _, req := range cases {
		if _, err := store.EnqueueInbound(ctx, req); !errors.Is(err, queue.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %+v, got %v", req, err)
		}
	}
}

func TestEnqueueInboundKeepsExternalIDVerbatim(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	ids := []string{"m1", " m1", "m1 "}
	seen := make(map[int64]bool, len(ids))
	for _, externalID := range ids {
		res, err := store.EnqueueInbound(ctx, queue.InboundRequest{ExternalMessageID: externalID, ChatID: "c1", Text: "hi"})
		if err != nil {
			t.Fatalf("enqueue %q: %v", externalID, err)
		}
		if !res.Enqueued {
			t.Fatalf("%q treated as %s", externalID, res.Reason)
		}
		seen[res.ID] = true

		msg, err := store.GetInbound(ctx, res.ID)
		if err != nil {
			t.Fatalf("GetInbound: %v", err)
		}
		if msg.ExternalMessageID != externalID {
			t.Fatalf("stored id %q, want %q", msg.ExternalMessageID, externalID)
		}
	}
	if len(seen) != len(ids) {
		t.Fatalf("expected %d distinct rows, got %d", len(ids), len(seen))
	}
}

func TestInboundLifecycleScenario(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := store.EnqueueInbound(ctx, queue.InboundRequest{ExternalMessageID: "m1", ChatID: "c1", SessionKey: "s1", Text: "hi"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	rows, err := store.DequeueInbound(ctx, 10)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if len(rows) != 1 || rows[0].Text != "hi" {
		t.Fatalf("unexpected dequeue result: %+v", rows)
	}
	id := rows[0].ID

	if err := store.MarkInboundProcessing(ctx, id); err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	if err := store.MarkInboundCompleted(ctx, id, "resp"); err != nil {
		t.Fatalf("mark completed: %v", err)
	}

	rows, err = store.DequeueInbound(ctx, 10)
	if err != nil {
		t.Fatalf("dequeue after complete: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no rows after completion, got %d", len(rows))
	}

	msg, err := store.GetInbound(ctx, id)
	if err != nil {
		t.Fatalf("GetInbound: %v", err)
	}
	if msg.Status != queue.StatusCompleted || msg.ResponseText != "resp" || msg.CompletedAt == nil {
		t.Fatalf("unexpected completed row: %+v", msg)
	}

	if err := store.MarkInboundCompleted(ctx, id, "again"); !errors.Is(err, queue.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition completing twice, got %v", err)
	}
}

func TestDequeueOrdersByCreationAndHonorsLimit(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	clock := testsupport.NewClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	store := testsupport.MustOpenStore(t, cfg, queue.WithClock(clock.Now))

	for _, id := range []string{"a", "b", "c"} {
		testsupport.EnqueueInbound(t, store, id, "chat", "text "+id)
		clock.Advance(time.Second)
	}

	rows, err := store.DequeueInbound(context.Background(), 2)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if len(rows) != 2 || rows[0].ExternalMessageID != "a" || rows[1].ExternalMessageID != "b" {
		t.Fatalf("unexpected order: %+v", rows)
	}

	if rows, _ := store.DequeueInbound(context.Background(), 0); rows != nil {
		t.Fatalf("expected nil for zero limit, got %+v", rows)
	}
}

func TestMarkRetrySchedulesBackoffAndHidesRow(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	clock := testsupport.NewClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	store := testsupport.MustOpenStore(t, cfg, queue.WithClock(clock.Now))
	ctx := context.Background()

	id := testsupport.EnqueueInbound(t, store, "m1", "c1", "hi")
	if err := store.MarkInboundProcessing(ctx, id); err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	outcome, err := store.MarkInboundRetry(ctx, id, "backend unavailable")
	if err != nil {
		t.Fatalf("mark retry: %v", err)
	}
	if outcome.Retries != 1 || outcome.Exhausted || outcome.NextRetryAt == nil {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if want := clock.Now().Add(time.Second); !outcome.NextRetryAt.Equal(want) {
		t.Fatalf("NextRetryAt = %v, want %v", outcome.NextRetryAt, want)
	}

	rows, _ := store.DequeueInbound(ctx, 10)
	if len(rows) != 0 {
		t.Fatalf("row should not be due yet, got %d", len(rows))
	}

	clock.Advance(time.Second)
	rows, _ = store.DequeueInbound(ctx, 10)
	if len(rows) != 1 || rows[0].Retries != 1 || rows[0].LastError != "backend unavailable" {
		t.Fatalf("expected due row with retry metadata, got %+v", rows)
	}
}

func TestMarkRetryExhaustsAfterMaxRetries(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	clock := testsupport.NewClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	store := testsupport.MustOpenStore(t, cfg, queue.WithClock(clock.Now))
	ctx := context.Background()

	id := testsupport.EnqueueReply(t, store, "c1", "hello")
	for i := 1; i < queue.MaxRetries; i++ {
		outcome, err := store.MarkOutboundRetry(ctx, id, "send failed")
		if err != nil {
			t.Fatalf("retry %d: %v", i, err)
		}
		if outcome.Exhausted {
			t.Fatalf("retry %d exhausted early", i)
		}
	}

	msg, err := store.GetOutbound(ctx, id)
	if err != nil {
		t.Fatalf("GetOutbound: %v", err)
	}
	if msg.Status != queue.StatusPending || msg.Retries != queue.MaxRetries-1 {
		t.Fatalf("expected pending after %d retries, got %+v", queue.MaxRetries-1, msg)
	}
	if msg.NextRetryAt == nil || !msg.NextRetryAt.After(clock.Now()) {
		t.Fatalf("expected future next retry, got %v", msg.NextRetryAt)
	}

	outcome, err := store.MarkOutboundRetry(ctx, id, "send failed")
	if err != nil {
		t.Fatalf("final retry: %v", err)
	}
	if !outcome.Exhausted || outcome.Retries != queue.MaxRetries || outcome.NextRetryAt != nil {
		t.Fatalf("expected exhaustion, got %+v", outcome)
	}

	msg, err = store.GetOutbound(ctx, id)
	if err != nil {
		t.Fatalf("row should remain queryable: %v", err)
	}
	if msg.Status != queue.StatusFailedPermanent {
		t.Fatalf("status = %s, want failed_permanent", msg.Status)
	}

	if _, err := store.MarkOutboundRetry(ctx, id, "again"); !errors.Is(err, queue.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition retrying a terminal row, got %v", err)
	}

	failed, err := store.ListFailed(ctx, queue.KindOutbound)
	if err != nil {
		t.Fatalf("ListFailed: %v", err)
	}
	if len(failed) != 1 || failed[0].ID != id || failed[0].LastError != "send failed" {
		t.Fatalf("unexpected failed list: %+v", failed)
	}
}

func TestMarkTransitionsReportMissingRows(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if err := store.MarkInboundProcessing(ctx, 404); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.MarkOutboundRetry(ctx, 404, "x"); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.MarkOutboundCompleted(ctx, 404, "om_1"); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetInbound(ctx, 404); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEnqueueOutboundDedup(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	clock := testsupport.NewClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	store := testsupport.MustOpenStore(t, cfg, queue.WithClock(clock.Now))
	ctx := context.Background()

	req := queue.OutboundRequest{QueueType: queue.QueueTypeReply, SessionKey: "s", ChatID: "c1", Content: "hi"}
	first, err := store.EnqueueOutbound(ctx, req)
	if err != nil || !first.Enqueued {
		t.Fatalf("first enqueue: %+v, %v", first, err)
	}

	second, err := store.EnqueueOutbound(ctx, req)
	if err != nil {
		t.Fatalf("second enqueue: %v", err)
	}
	if second.Enqueued || second.Reason != queue.ReasonDuplicatePending {
		t.Fatalf("expected duplicate_pending, got %+v", second)
	}

	other := req
	other.ChatID = "c2"
	if res, err := store.EnqueueOutbound(ctx, other); err != nil || !res.Enqueued {
		t.Fatalf("different chat should enqueue: %+v, %v", res, err)
	}

	if err := store.MarkOutboundProcessing(ctx, first.ID); err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	if res, _ := store.EnqueueOutbound(ctx, req); res.Reason != queue.ReasonDuplicatePending {
		t.Fatalf("processing row should still dedup, got %+v", res)
	}
	if err := store.MarkOutboundCompleted(ctx, first.ID, "om_123"); err != nil {
		t.Fatalf("mark completed: %v", err)
	}

	third, err := store.EnqueueOutbound(ctx, req)
	if err != nil {
		t.Fatalf("third enqueue: %v", err)
	}
	if third.Enqueued || third.Reason != queue.ReasonAlreadySent {
		t.Fatalf("expected already_sent, got %+v", third)
	}

	clock.Advance(queue.DedupWindow + time.Second)
	fourth, err := store.EnqueueOutbound(ctx, req)
	if err != nil {
		t.Fatalf("fourth enqueue: %v", err)
	}
	if !fourth.Enqueued {
		t.Fatalf("expected enqueue once the window passed, got %+v", fourth)
	}
}

func TestEnqueueOutboundNormalizesContentHash(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	composed := "caf\u00e9"
	decomposed := "cafe\u0301"
	testsupport.EnqueueReply(t, store, "c1", composed)
	res, err := store.EnqueueOutbound(ctx, queue.OutboundRequest{QueueType: queue.QueueTypeMirror, ChatID: "c1", Content: decomposed})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if res.Reason != queue.ReasonDuplicatePending {
		t.Fatalf("expected normalized duplicate, got %+v", res)
	}
}

func TestEnqueueOutboundValidatesQueueType(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	_, err := store.EnqueueOutbound(context.Background(), queue.OutboundRequest{QueueType: "broadcast", ChatID: "c1", Content: "x"})
	if !errors.Is(err, queue.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestReopenResetsProcessingRows(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := cfg.StorePath("default")
	store, err := queue.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx := context.Background()

	inID := testsupport.EnqueueInbound(t, store, "m1", "c1", "hi")
	outID := testsupport.EnqueueReply(t, store, "c1", "reply")
	if _, err := store.MarkInboundRetry(ctx, inID, "first failure"); err != nil {
		t.Fatalf("mark retry: %v", err)
	}
	// Simulate a crash in the middle of an attempt.
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec("UPDATE inbound_messages SET status = 'processing', next_retry_at = NULL WHERE id = ?", inID); err != nil {
		t.Fatalf("force processing: %v", err)
	}
	if err := store.MarkOutboundProcessing(ctx, outID); err != nil {
		t.Fatalf("mark outbound processing: %v", err)
	}
	store.Close()

	reopened, err := queue.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	in, err := reopened.GetInbound(ctx, inID)
	if err != nil {
		t.Fatalf("GetInbound: %v", err)
	}
	if in.Status != queue.StatusPending || in.Retries != 1 {
		t.Fatalf("expected pending with retries unchanged, got %+v", in)
	}
	out, err := reopened.GetOutbound(ctx, outID)
	if err != nil {
		t.Fatalf("GetOutbound: %v", err)
	}
	if out.Status != queue.StatusPending || out.Retries != 0 {
		t.Fatalf("expected outbound pending, got %+v", out)
	}
}

func TestReclaimStuckOnlyTouchesOldProcessingRows(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	clock := testsupport.NewClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	store := testsupport.MustOpenStore(t, cfg, queue.WithClock(clock.Now))
	ctx := context.Background()

	stuck := testsupport.EnqueueInbound(t, store, "old", "c1", "a")
	if err := store.MarkInboundProcessing(ctx, stuck); err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	clock.Advance(queue.StuckThreshold + time.Minute)
	fresh := testsupport.EnqueueInbound(t, store, "new", "c1", "b")
	if err := store.MarkInboundProcessing(ctx, fresh); err != nil {
		t.Fatalf("mark processing: %v", err)
	}

	n, err := store.ReclaimStuck(ctx, queue.StuckThreshold)
	if err != nil {
		t.Fatalf("ReclaimStuck: %v", err)
	}
	if n != 1 {
		t.Fatalf("reclaimed %d rows, want 1", n)
	}

	got, _ := store.GetInbound(ctx, stuck)
	if got.Status != queue.StatusPending {
		t.Fatalf("stuck row status = %s", got.Status)
	}
	got, _ = store.GetInbound(ctx, fresh)
	if got.Status != queue.StatusProcessing {
		t.Fatalf("fresh row status = %s", got.Status)
	}
}

func TestPurgeExpiredKeepsFailedRows(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	clock := testsupport.NewClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	policy := queue.DefaultPolicy()
	policy.MaxRetries = 1
	store := testsupport.MustOpenStore(t, cfg, queue.WithClock(clock.Now), queue.WithPolicy(policy))
	ctx := context.Background()

	done := testsupport.EnqueueInbound(t, store, "done", "c1", "a")
	if err := store.MarkInboundCompleted(ctx, done, "ok"); err != nil {
		t.Fatalf("complete inbound: %v", err)
	}
	failed := testsupport.EnqueueInbound(t, store, "failed", "c1", "b")
	if outcome, err := store.MarkInboundRetry(ctx, failed, "boom"); err != nil || !outcome.Exhausted {
		t.Fatalf("exhaust: %+v, %v", outcome, err)
	}
	sent := testsupport.EnqueueReply(t, store, "c1", "reply")
	if err := store.MarkOutboundCompleted(ctx, sent, "om_1"); err != nil {
		t.Fatalf("complete outbound: %v", err)
	}
	pending := testsupport.EnqueueInbound(t, store, "pending", "c1", "c")

	clock.Advance(queue.MessageTTL + time.Hour)
	result, err := store.PurgeExpired(ctx, clock.Now().Add(-queue.MessageTTL))
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if result.Inbound != 1 || result.Outbound != 1 || result.SentRecords != 1 {
		t.Fatalf("unexpected purge result: %+v", result)
	}

	if _, err := store.GetInbound(ctx, done); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("completed row should be gone, got %v", err)
	}
	if msg, err := store.GetInbound(ctx, failed); err != nil || msg.Status != queue.StatusFailedPermanent {
		t.Fatalf("failed row must survive purge: %+v, %v", msg, err)
	}
	if _, err := store.GetInbound(ctx, pending); err != nil {
		t.Fatalf("pending row must survive purge: %v", err)
	}
}

func TestResendFailedLeavesFailedRowUntouched(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	maxRetries := cfg.Queue.MaxRetries

	id := testsupport.EnqueueReply(t, store, "c1", "reply")
	for i := 0; i < maxRetries; i++ {
		if _, err := store.MarkOutboundRetry(ctx, id, "boom"); err != nil {
			t.Fatalf("retry %d: %v", i, err)
		}
	}
	before, err := store.GetOutbound(ctx, id)
	if err != nil {
		t.Fatalf("GetOutbound: %v", err)
	}
	if before.Status != queue.StatusFailedPermanent || before.Retries != maxRetries {
		t.Fatalf("expected failed row with %d retries, got %+v", maxRetries, before)
	}

	resent, err := store.ResendFailed(ctx, id)
	if err != nil {
		t.Fatalf("ResendFailed: %v", err)
	}
	if len(resent) != 1 || resent[0] == id {
		t.Fatalf("expected one new row, got %v", resent)
	}

	after, err := store.GetOutbound(ctx, id)
	if err != nil {
		t.Fatalf("GetOutbound: %v", err)
	}
	if after.Status != queue.StatusFailedPermanent || after.Retries != maxRetries || after.LastError != "boom" {
		t.Fatalf("failed row changed: %+v", after)
	}
	if !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Fatalf("failed row updated_at changed: %v -> %v", before.UpdatedAt, after.UpdatedAt)
	}

	copyRow, err := store.GetOutbound(ctx, resent[0])
	if err != nil {
		t.Fatalf("GetOutbound copy: %v", err)
	}
	if copyRow.Status != queue.StatusPending || copyRow.Retries != 0 {
		t.Fatalf("unexpected copy: %+v", copyRow)
	}
	if copyRow.ChatID != before.ChatID || copyRow.Content != before.Content || copyRow.ContentHash != before.ContentHash ||
		copyRow.SessionKey != before.SessionKey || copyRow.QueueType != before.QueueType {
		t.Fatalf("copy does not match failed row: %+v vs %+v", copyRow, before)
	}

	// The copy is still pending, so a second resend is suppressed.
	again, err := store.ResendFailed(ctx)
	if err != nil {
		t.Fatalf("ResendFailed again: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected pending copy to suppress resend, got %v", again)
	}

	if err := store.MarkOutboundCompleted(ctx, id, "om_x"); !errors.Is(err, queue.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition completing a failed row, got %v", err)
	}
	if _, err := store.MarkOutboundRetry(ctx, id, "again"); !errors.Is(err, queue.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition retrying a failed row, got %v", err)
	}
	final, _ := store.GetOutbound(ctx, id)
	if final.Status != queue.StatusFailedPermanent || final.Retries != maxRetries || final.LastError != "boom" {
		t.Fatalf("failed row changed after rejected transitions: %+v", final)
	}
}

func TestStatsAndHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.EnqueueInbound(t, store, "m1", "c1", "a")
	processing := testsupport.EnqueueInbound(t, store, "m2", "c1", "b")
	if err := store.MarkInboundProcessing(ctx, processing); err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	sent := testsupport.EnqueueReply(t, store, "c1", "reply")
	if err := store.MarkOutboundCompleted(ctx, sent, "om_1"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Path != store.Path() {
		t.Fatalf("stats path = %q", stats.Path)
	}
	if stats.Inbound.Pending != 1 || stats.Inbound.Processing != 1 {
		t.Fatalf("unexpected inbound counts: %+v", stats.Inbound)
	}
	if stats.Outbound.Completed != 1 || stats.SentRecords != 1 {
		t.Fatalf("unexpected outbound counts: %+v sent=%d", stats.Outbound, stats.SentRecords)
	}

	health, err := store.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || !health.IntegrityCheck {
		t.Fatalf("unexpected health: %+v", health)
	}
	if len(health.MissingTables) != 0 || health.SchemaVersion != 1 {
		t.Fatalf("unexpected schema health: %+v", health)
	}
}
