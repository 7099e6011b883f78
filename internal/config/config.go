package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	MediaDir string `toml:"media_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Queue contains durability, retry, and retention settings shared by both queues.
type Queue struct {
	MaxRetries            int `toml:"max_retries"`
	BaseBackoffMillis     int `toml:"base_backoff_ms"`
	MaxBackoffMinutes     int `toml:"max_backoff_minutes"`
	DedupWindowMinutes    int `toml:"dedup_window_minutes"`
	MessageTTLDays        int `toml:"message_ttl_days"`
	StuckThresholdMinutes int `toml:"stuck_threshold_minutes"`
	SweepIntervalMinutes  int `toml:"sweep_interval_minutes"`
}

// Inbound contains configuration for the inbound consumer loop.
type Inbound struct {
	BatchSize            int `toml:"batch_size"`
	PollIntervalSeconds  int `toml:"poll_interval_seconds"`
	SubmitTimeoutSeconds int `toml:"submit_timeout_seconds"`
}

// Outbound contains configuration for the outbound sender loop.
type Outbound struct {
	BatchSize           int `toml:"batch_size"`
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
	SendMaxRetries      int `toml:"send_max_retries"`
	TextMaxRunes        int `toml:"text_max_runes"`
}

// Transport contains chat platform API settings.
type Transport struct {
	BaseURL               string  `toml:"base_url"`
	AppID                 string  `toml:"app_id"`
	AppSecret             string  `toml:"app_secret"`
	RequestTimeoutSeconds int     `toml:"request_timeout_seconds"`
	RatePerSecond         float64 `toml:"rate_per_second"`
	Burst                 int     `toml:"burst"`
	BreakerFailures       int     `toml:"breaker_failures"`
	BreakerOpenSeconds    int     `toml:"breaker_open_seconds"`
}

// Backend contains processing backend connection settings.
type Backend struct {
	BaseURL        string `toml:"base_url"`
	Token          string `toml:"token"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Notifications contains ntfy alert settings. An empty topic disables alerts.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for chatbridge.
//
// Configuration sections by subsystem:
//   - Paths: state/media/log directories and API bind address
//   - Queue: retry ceiling, backoff, dedup window, TTL, stuck threshold
//   - Inbound: consumer batch size, poll interval, submit timeout
//   - Outbound: sender batch size, poll interval, transport retry ceiling
//   - Transport: chat platform credentials, pacing, circuit breaker
//   - Backend: processing backend endpoint and token
//   - Notifications: ntfy topic for permanent-failure alerts
//   - Logging: log format, level, and retention
//   - Accounts: account identifiers, one queue store per account
type Config struct {
	Paths         Paths         `toml:"paths"`
	Queue         Queue         `toml:"queue"`
	Inbound       Inbound       `toml:"inbound"`
	Outbound      Outbound      `toml:"outbound"`
	Transport     Transport     `toml:"transport"`
	Backend       Backend       `toml:"backend"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
	Accounts      []string      `toml:"accounts"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("chatbridge.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// The media directory is created on a best-effort basis; the sweeper tolerates
// its absence.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.MediaDir) != "" {
		_ = os.MkdirAll(c.Paths.MediaDir, 0o755)
	}
	return nil
}

// StorePath returns the queue database file for an account.
func (c *Config) StorePath(account string) string {
	account = strings.TrimSpace(account)
	if account == "" {
		account = DefaultAccount
	}
	return filepath.Join(c.Paths.StateDir, "queue-"+account+".db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "chatbridge.lock")
}

// BaseBackoff returns the first retry delay.
func (q Queue) BaseBackoff() time.Duration {
	return time.Duration(q.BaseBackoffMillis) * time.Millisecond
}

// MaxBackoff returns the retry delay ceiling.
func (q Queue) MaxBackoff() time.Duration {
	return time.Duration(q.MaxBackoffMinutes) * time.Minute
}

// DedupWindow returns the outbound duplicate suppression window.
func (q Queue) DedupWindow() time.Duration {
	return time.Duration(q.DedupWindowMinutes) * time.Minute
}

// MessageTTL returns how long completed rows and sent records are kept.
func (q Queue) MessageTTL() time.Duration {
	return time.Duration(q.MessageTTLDays) * 24 * time.Hour
}

// StuckThreshold returns how long a row may sit in processing before the sweeper reclaims it.
func (q Queue) StuckThreshold() time.Duration {
	return time.Duration(q.StuckThresholdMinutes) * time.Minute
}

// SweepInterval returns the period between maintenance sweeps.
func (q Queue) SweepInterval() time.Duration {
	return time.Duration(q.SweepIntervalMinutes) * time.Minute
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
