package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"chatbridge/internal/api"
	"chatbridge/internal/backend"
	"chatbridge/internal/config"
	"chatbridge/internal/inbound"
	"chatbridge/internal/logging"
	"chatbridge/internal/notifications"
	"chatbridge/internal/outbound"
	"chatbridge/internal/queue"
	"chatbridge/internal/sweeper"
	"chatbridge/internal/transport"
)

// Daemon coordinates the background loops and enforces single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	registry  *queue.Registry
	backend   backend.Backend
	transport transport.Transport
	alerts    notifications.Service

	lockPath string
	lock     *flock.Flock

	mu        sync.Mutex
	consumers map[string]*inbound.Consumer
	senders   map[string]*outbound.Sender
	api       *apiServer
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	running   atomic.Bool
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool     `json:"running"`
	PID          int      `json:"pid"`
	LockFilePath string   `json:"lock_file_path"`
	APIAddress   string   `json:"api_address,omitempty"`
	Accounts     []string `json:"accounts"`
	Consumers    []string `json:"consumers"`
	Senders      []string `json:"senders"`
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithBackend sets the processing backend used by inbound consumers. Without
// one, inbound messages accumulate in the queue.
func WithBackend(be backend.Backend) Option {
	return func(d *Daemon) {
		d.backend = be
	}
}

// WithTransport sets the chat transport used by outbound senders. Without
// one, outbound messages accumulate in the queue.
func WithTransport(tr transport.Transport) Option {
	return func(d *Daemon) {
		d.transport = tr
	}
}

// WithNotifier sets where permanent-failure and lifecycle alerts go.
func WithNotifier(svc notifications.Service) Option {
	return func(d *Daemon) {
		d.alerts = svc
	}
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, registry *queue.Registry, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || registry == nil || logger == nil {
		return nil, errors.New("daemon requires config, registry, and logger")
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		registry:  registry,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
		alerts:    notifications.NewService(config.Notifications{}),
		consumers: make(map[string]*inbound.Consumer),
		senders:   make(map[string]*outbound.Sender),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Start acquires the daemon lock, opens every account's queue, and launches
// the consumers, senders, sweeper, and API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another chatbridge daemon instance is already running")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	for _, account := range d.cfg.Accounts {
		store, err := d.registry.Get(account)
		if err != nil {
			cancel()
			_ = d.lock.Unlock()
			return fmt.Errorf("open queue for %s: %w", account, err)
		}
		d.startAccount(runCtx, account, store)
	}

	sw := sweeper.New(d.cfg, d.registry, d.logger)
	d.goRun(func() { sw.Run(runCtx) })

	svc := api.NewQueueService(d.registry, d.cfg.Accounts, d)
	d.api = newAPIServer(d.cfg.Paths.APIBind, d.cfg.Paths.APIToken, svc, d, d.logger)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		d.wg.Wait()
		d.api = nil
		_ = d.lock.Unlock()
		return err
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("chatbridge daemon started",
		logging.String("lock", d.lockPath),
		logging.Int("accounts", len(d.cfg.Accounts)),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	d.publish(ctx, notifications.EventDaemonStarted, notifications.Payload{
		"accounts": strings.Join(d.cfg.Accounts, ", "),
	})
	return nil
}

func (d *Daemon) startAccount(ctx context.Context, account string, store *queue.Store) {
	logger := d.logger.With(logging.Account(account))

	if d.backend != nil {
		consumer := inbound.NewConsumer(account, store, d.backend, d.cfg.Inbound, d.logger, inbound.WithNotifier(d.alerts))
		d.consumers[account] = consumer
		d.goRun(func() { consumer.Run(ctx) })
	} else {
		logging.WarnWithContext(logger, "inbound consumer disabled", "inbound_disabled",
			logging.String(logging.FieldErrorHint, "set backend.base_url in config.toml"),
			logging.String(logging.FieldImpact, "inbound messages queue up until a backend is configured"),
		)
	}

	if d.transport != nil {
		sender := outbound.NewSender(account, store, d.transport, d.cfg.Outbound, d.cfg.Queue, d.logger, outbound.WithNotifier(d.alerts))
		d.senders[account] = sender
		d.goRun(func() { sender.Run(ctx) })
	} else {
		logging.WarnWithContext(logger, "outbound sender disabled", "outbound_disabled",
			logging.String(logging.FieldErrorHint, "set transport.app_id and transport.app_secret in config.toml"),
			logging.String(logging.FieldImpact, "replies queue up until the transport is configured"),
		)
	}
}

func (d *Daemon) goRun(fn func()) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		fn()
	}()
}

// Stop cancels background processing, waits for in-flight work to return,
// and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.mu.Lock()
	cancel, srv := d.cancel, d.api
	d.cancel, d.api = nil, nil
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	srv.stop()
	d.wg.Wait()

	d.mu.Lock()
	clear(d.consumers)
	clear(d.senders)
	d.mu.Unlock()

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("chatbridge daemon stopped",
		logging.String(logging.FieldEventType, "daemon_stopped"),
	)
	d.publish(context.Background(), notifications.EventDaemonStopped, nil)
}

func (d *Daemon) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if d.alerts == nil {
		return
	}
	if err := d.alerts.Publish(context.WithoutCancel(ctx), event, payload); err != nil {
		d.logger.Warn("notification failed",
			logging.String("notification_event", string(event)),
			logging.Error(err),
		)
	}
}

// Close stops the daemon and closes every queue store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.registry.Close()
}

// NotifyInbound wakes the consumer for account.
func (d *Daemon) NotifyInbound(account string) {
	d.mu.Lock()
	consumer := d.consumers[account]
	d.mu.Unlock()
	if consumer != nil {
		consumer.Notify()
	}
}

// NotifyOutbound wakes the sender for account.
func (d *Daemon) NotifyOutbound(account string) {
	d.mu.Lock()
	sender := d.senders[account]
	d.mu.Unlock()
	if sender != nil {
		sender.Notify()
	}
}

// APIAddress returns the address the API server is listening on.
func (d *Daemon) APIAddress() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.api.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LockFilePath: d.lockPath,
		APIAddress:   d.api.addr(),
		Accounts:     append([]string(nil), d.cfg.Accounts...),
		Consumers:    sortedKeys(d.consumers),
		Senders:      sortedKeys(d.senders),
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}
