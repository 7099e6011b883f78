package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"chatbridge/internal/backend"
	"chatbridge/internal/config"
	"chatbridge/internal/daemon"
	"chatbridge/internal/logging"
	"chatbridge/internal/notifications"
	"chatbridge/internal/preflight"
	"chatbridge/internal/queue"
	"chatbridge/internal/transport"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the chatbridge daemon and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		cfg.Logging.Level = level
	}
	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("chatbridge-%s.log", runID))
	logger, err := logging.NewFromConfig(cfg, logPath)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update chatbridge.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "chatbridge-*.log", Exclude: []string{logPath}},
	)
	logConfigSnapshot(logger, cfg)
	logPreflight(signalCtx, logger, cfg)

	pidPath := filepath.Join(cfg.Paths.StateDir, "chatbridge.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	registry := queue.NewRegistryFromConfig(cfg)

	daemonOpts := []daemon.Option{daemon.WithNotifier(notifications.NewService(cfg.Notifications))}
	if be, err := backend.NewHTTPClient(cfg.Backend, logger); err == nil {
		daemonOpts = append(daemonOpts, daemon.WithBackend(be))
	} else if !errors.Is(err, backend.ErrNotConfigured) {
		registry.Close()
		return fmt.Errorf("create backend client: %w", err)
	}
	if tr, err := transport.NewHTTPClient(cfg.Transport, logger); err == nil {
		daemonOpts = append(daemonOpts, daemon.WithTransport(tr))
	} else if !errors.Is(err, transport.ErrNotConfigured) {
		registry.Close()
		return fmt.Errorf("create transport client: %w", err)
	}

	d, err := daemon.New(cfg, registry, logger, daemonOpts...)
	if err != nil {
		registry.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check for another running instance and queue database access"),
			logging.String(logging.FieldImpact, "no messages will be processed"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("chatbridge daemon shutting down",
		logging.String(logging.FieldEventType, "daemon_shutdown"),
	)
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "chatbridge.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.Any("accounts", cfg.Accounts),
		logging.String("state_dir", cfg.Paths.StateDir),
		logging.String("api_bind", cfg.Paths.APIBind),
		logging.Bool("api_token_present", strings.TrimSpace(cfg.Paths.APIToken) != ""),
		logging.Bool("backend_configured", strings.TrimSpace(cfg.Backend.BaseURL) != ""),
		logging.Bool("transport_configured", cfg.Transport.AppID != "" && cfg.Transport.AppSecret != ""),
		logging.Int("max_retries", cfg.Queue.MaxRetries),
		logging.Int("message_ttl_days", cfg.Queue.MessageTTLDays),
	)
}

func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	for _, result := range preflight.RunAll(ctx, cfg) {
		if result.Passed {
			logger.Debug("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "run 'chatbridge health' for details"),
			logging.String(logging.FieldImpact, "messages stay queued until the check passes"),
		)
	}
}
