package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"chatbridge/internal/config"
)

func TestLoadDefaultConfigExpandsPathsAndUsesEnv(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("CHATBRIDGE_APP_ID", "cli_test")
	t.Setenv("CHATBRIDGE_APP_SECRET", "secret")
	t.Setenv("CHATBRIDGE_BACKEND_TOKEN", "backend-token")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "chatbridge", "state")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Transport.AppID != "cli_test" || cfg.Transport.AppSecret != "secret" {
		t.Fatalf("expected transport credentials from env, got %q/%q", cfg.Transport.AppID, cfg.Transport.AppSecret)
	}
	if cfg.Backend.Token != "backend-token" {
		t.Fatalf("expected backend token from env, got %q", cfg.Backend.Token)
	}
	if got := cfg.StorePath("default"); got != filepath.Join(wantState, "queue-default.db") {
		t.Fatalf("unexpected store path %q", got)
	}
}

func TestDefaultRetryConstants(t *testing.T) {
	cfg := config.Default()
	if cfg.Queue.MaxRetries != 120 {
		t.Fatalf("expected 120 max retries, got %d", cfg.Queue.MaxRetries)
	}
	if cfg.Outbound.SendMaxRetries != 120 {
		t.Fatalf("expected 120 send retries, got %d", cfg.Outbound.SendMaxRetries)
	}
	if cfg.Queue.BaseBackoff() != time.Second {
		t.Fatalf("unexpected base backoff %s", cfg.Queue.BaseBackoff())
	}
	if cfg.Queue.MaxBackoff() != 120*time.Minute {
		t.Fatalf("unexpected max backoff %s", cfg.Queue.MaxBackoff())
	}
	if cfg.Queue.DedupWindow() != 10*time.Minute {
		t.Fatalf("unexpected dedup window %s", cfg.Queue.DedupWindow())
	}
	if cfg.Queue.MessageTTL() != 30*24*time.Hour {
		t.Fatalf("unexpected ttl %s", cfg.Queue.MessageTTL())
	}
	if cfg.Queue.StuckThreshold() != 5*time.Minute {
		t.Fatalf("unexpected stuck threshold %s", cfg.Queue.StuckThreshold())
	}
	if cfg.Inbound.BatchSize != 3 || cfg.Outbound.BatchSize != 5 {
		t.Fatalf("unexpected batch sizes %d/%d", cfg.Inbound.BatchSize, cfg.Outbound.BatchSize)
	}
}

func TestLoadCustomConfigFile(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	custom := config.Default()
	custom.Paths.StateDir = "~/bridge/state"
	custom.Paths.LogDir = "~/bridge/logs"
	custom.Queue.DedupWindowMinutes = 15
	custom.Accounts = []string{" Ops ", "ops", "sales"}
	custom.Logging.Format = "JSON"

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(tempHome, "custom.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected config at %q to exist, got %q exists=%v", path, resolved, exists)
	}
	if cfg.Paths.StateDir != filepath.Join(tempHome, "bridge", "state") {
		t.Fatalf("unexpected state dir %q", cfg.Paths.StateDir)
	}
	if cfg.Queue.DedupWindow() != 15*time.Minute {
		t.Fatalf("unexpected dedup window %s", cfg.Queue.DedupWindow())
	}
	if strings.Join(cfg.Accounts, ",") != "ops,sales" {
		t.Fatalf("expected normalized accounts, got %v", cfg.Accounts)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected json log format, got %q", cfg.Logging.Format)
	}
}

func TestValidateRejectsHalfConfiguredTransport(t *testing.T) {
	cfg := config.Default()
	cfg.Transport.AppID = "cli_only"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when app_secret missing")
	}
}

func TestValidateRetryBudgets(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*config.Config) {}},
		{name: "short queue budget", mutate: func(c *config.Config) { c.Queue.MaxRetries = 1 }},
		{name: "zero queue budget", mutate: func(c *config.Config) { c.Queue.MaxRetries = 0 }, wantErr: true},
		{name: "negative send budget", mutate: func(c *config.Config) { c.Outbound.SendMaxRetries = -1 }, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateRejectsBadAccount(t *testing.T) {
	cfg := config.Default()
	cfg.Accounts = []string{"../escape"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for account with path separators")
	}
}

func TestValidateNotificationTopic(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = "chatbridge-alerts"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for bare topic name")
	}
	cfg.Notifications.NtfyTopic = "https://ntfy.sh/chatbridge-alerts"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected URL topic to validate: %v", err)
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("CHATBRIDGE_APP_ID", "")
	t.Setenv("CHATBRIDGE_APP_SECRET", "")
	t.Setenv("CHATBRIDGE_NTFY_TOPIC", "")

	path := filepath.Join(tempHome, "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Queue.MaxRetries != 120 {
		t.Fatalf("unexpected sample max retries %d", cfg.Queue.MaxRetries)
	}
}
