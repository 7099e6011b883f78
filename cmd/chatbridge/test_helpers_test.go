package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"chatbridge/internal/config"
	"chatbridge/internal/daemon"
	"chatbridge/internal/logging"
	"chatbridge/internal/queue"
	"chatbridge/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *queue.Store
	daemon     *daemon.Daemon
	apiAddr    string
	configPath string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	backendSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(backendSrv.Close)

	opts = append([]testsupport.ConfigOption{testsupport.WithBackend(backendSrv.URL)}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	cfg.Queue.MaxRetries = 1
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	registry := queue.NewRegistryFromConfig(cfg)
	d, err := daemon.New(cfg, registry, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon Start: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		d.Close()
	})

	store, err := registry.Get("default")
	if err != nil {
		t.Fatalf("registry.Get: %v", err)
	}

	return &cliTestEnv{
		cfg:        cfg,
		store:      store,
		daemon:     d,
		apiAddr:    d.APIAddress(),
		configPath: configPath,
	}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runCLI(t, append([]string{"--config", e.configPath, "--api", e.apiAddr}, args...))
}

// failInbound drives a fresh inbound message to failed_permanent.
func (e *cliTestEnv) failInbound(t *testing.T, messageID string) int64 {
	t.Helper()
	ctx := context.Background()
	id := testsupport.EnqueueInbound(t, e.store, messageID, "oc_cli", "hello")
	if err := e.store.MarkInboundProcessing(ctx, id); err != nil {
		t.Fatalf("MarkInboundProcessing: %v", err)
	}
	if _, err := e.store.MarkInboundRetry(ctx, id, "backend down"); err != nil {
		t.Fatalf("MarkInboundRetry: %v", err)
	}
	return id
}

// failOutbound drives a fresh reply to failed_permanent.
func (e *cliTestEnv) failOutbound(t *testing.T, chatID, content string) int64 {
	t.Helper()
	id := testsupport.EnqueueReply(t, e.store, chatID, content)
	if _, err := e.store.MarkOutboundRetry(context.Background(), id, "bot removed"); err != nil {
		t.Fatalf("MarkOutboundRetry: %v", err)
	}
	return id
}

func runCLI(t *testing.T, args []string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}
