package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"chatbridge/internal/config"
	"chatbridge/internal/logging"
	"chatbridge/internal/queue"
)

// Sweeper periodically reclaims stuck rows and enforces retention.
type Sweeper struct {
	registry       *queue.Registry
	accounts       []string
	mediaDir       string
	interval       time.Duration
	stuckThreshold time.Duration
	ttl            time.Duration
	logger         *slog.Logger
	now            func() time.Time
}

// PassResult summarizes one maintenance pass across all accounts.
type PassResult struct {
	Reclaimed    int64
	Purged       queue.PurgeResult
	MediaRemoved int
	Errors       int
}

// Option customizes a Sweeper.
type Option func(*Sweeper)

// WithClock replaces the wall clock used to compute retention cutoffs.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// New builds a sweeper for the configured accounts.
func New(cfg *config.Config, registry *queue.Registry, logger *slog.Logger, opts ...Option) *Sweeper {
	s := &Sweeper{
		registry:       registry,
		accounts:       append([]string(nil), cfg.Accounts...),
		mediaDir:       cfg.Paths.MediaDir,
		interval:       cfg.Queue.SweepInterval(),
		stuckThreshold: cfg.Queue.StuckThreshold(),
		ttl:            cfg.Queue.MessageTTL(),
		logger:         logging.NewComponentLogger(logger, "sweeper"),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run performs a pass immediately and then once per interval until ctx is
// cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.Sweep(ctx)

	interval := s.interval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs one maintenance pass over every account and the media
// directory.
func (s *Sweeper) Sweep(ctx context.Context) PassResult {
	ctx = logging.WithCorrelationID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, s.logger)
	cutoff := s.now().Add(-s.ttl)

	var result PassResult
	for _, account := range s.accounts {
		if ctx.Err() != nil {
			return result
		}
		store, err := s.registry.Get(account)
		if err != nil {
			result.Errors++
			logging.ErrorWithContext(logger, "sweep skipped account", "sweep_open_failed",
				logging.Account(account),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check paths.state_dir and the queue database"),
			)
			continue
		}

		reclaimed, err := store.ReclaimStuck(ctx, s.stuckThreshold)
		if err != nil {
			result.Errors++
			logging.WarnWithContext(logger, "reclaim stuck rows failed", "sweep_reclaim_failed",
				logging.Account(account),
				logging.Error(err),
				logging.String(logging.FieldImpact, "stuck rows stay in processing until the next pass"),
			)
		}
		result.Reclaimed += reclaimed
		if reclaimed > 0 {
			logger.Warn("reclaimed stuck rows",
				logging.Account(account),
				logging.Int64("count", reclaimed),
				logging.Duration("threshold", s.stuckThreshold),
				logging.String(logging.FieldEventType, "sweep_reclaimed"),
				logging.String(logging.FieldErrorHint, "a consumer may be hung; check inbound/outbound logs"),
				logging.String(logging.FieldImpact, "affected messages are retried"),
			)
		}

		purged, err := store.PurgeExpired(ctx, cutoff)
		if err != nil {
			result.Errors++
			logging.WarnWithContext(logger, "purge expired rows failed", "sweep_purge_failed",
				logging.Account(account),
				logging.Error(err),
				logging.String(logging.FieldImpact, "expired rows remain until the next pass"),
			)
		}
		result.Purged.Inbound += purged.Inbound
		result.Purged.Outbound += purged.Outbound
		result.Purged.SentRecords += purged.SentRecords
	}

	media := CleanMedia(ctx, s.mediaDir, cutoff, logger)
	result.MediaRemoved = len(media.Removed)
	result.Errors += len(media.Errors)

	logger.Info("sweep complete",
		logging.Int64("reclaimed", result.Reclaimed),
		logging.Int64("purged_inbound", result.Purged.Inbound),
		logging.Int64("purged_outbound", result.Purged.Outbound),
		logging.Int64("purged_sent", result.Purged.SentRecords),
		logging.Int("media_removed", result.MediaRemoved),
		logging.Int("errors", result.Errors),
		logging.String(logging.FieldEventType, "sweep_complete"),
	)
	return result
}
