package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeQueue()
	c.normalizeLoops()
	c.normalizeTransport()
	c.normalizeBackend()
	c.normalizeNotifications()
	c.normalizeLogging()
	c.normalizeAccounts()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.MediaDir, err = expandPath(strings.TrimSpace(c.Paths.MediaDir)); err != nil {
		return fmt.Errorf("paths.media_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("CHATBRIDGE_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeQueue() {
	if c.Queue.MaxRetries <= 0 {
		c.Queue.MaxRetries = defaultMaxRetries
	}
	if c.Queue.BaseBackoffMillis <= 0 {
		c.Queue.BaseBackoffMillis = defaultBaseBackoffMillis
	}
	if c.Queue.MaxBackoffMinutes <= 0 {
		c.Queue.MaxBackoffMinutes = defaultMaxBackoffMinutes
	}
	if c.Queue.DedupWindowMinutes <= 0 {
		c.Queue.DedupWindowMinutes = defaultDedupWindowMinutes
	}
	if c.Queue.MessageTTLDays <= 0 {
		c.Queue.MessageTTLDays = defaultMessageTTLDays
	}
	if c.Queue.StuckThresholdMinutes <= 0 {
		c.Queue.StuckThresholdMinutes = defaultStuckThresholdMinutes
	}
	if c.Queue.SweepIntervalMinutes <= 0 {
		c.Queue.SweepIntervalMinutes = defaultSweepIntervalMinutes
	}
}

func (c *Config) normalizeLoops() {
	if c.Inbound.BatchSize <= 0 {
		c.Inbound.BatchSize = defaultInboundBatchSize
	}
	if c.Inbound.PollIntervalSeconds <= 0 {
		c.Inbound.PollIntervalSeconds = defaultInboundPollSeconds
	}
	if c.Inbound.SubmitTimeoutSeconds <= 0 {
		c.Inbound.SubmitTimeoutSeconds = defaultInboundSubmitTimeout
	}
	if c.Outbound.BatchSize <= 0 {
		c.Outbound.BatchSize = defaultOutboundBatchSize
	}
	if c.Outbound.PollIntervalSeconds <= 0 {
		c.Outbound.PollIntervalSeconds = defaultOutboundPollSeconds
	}
	if c.Outbound.SendMaxRetries <= 0 {
		c.Outbound.SendMaxRetries = defaultSendMaxRetries
	}
	if c.Outbound.TextMaxRunes <= 0 {
		c.Outbound.TextMaxRunes = defaultTextMaxRunes
	}
}

func (c *Config) normalizeTransport() {
	c.Transport.BaseURL = strings.TrimRight(strings.TrimSpace(c.Transport.BaseURL), "/")
	if c.Transport.BaseURL == "" {
		c.Transport.BaseURL = defaultTransportBaseURL
	}
	c.Transport.AppID = strings.TrimSpace(c.Transport.AppID)
	if c.Transport.AppID == "" {
		if value, ok := os.LookupEnv("CHATBRIDGE_APP_ID"); ok {
			c.Transport.AppID = strings.TrimSpace(value)
		}
	}
	c.Transport.AppSecret = strings.TrimSpace(c.Transport.AppSecret)
	if c.Transport.AppSecret == "" {
		if value, ok := os.LookupEnv("CHATBRIDGE_APP_SECRET"); ok {
			c.Transport.AppSecret = strings.TrimSpace(value)
		}
	}
	if c.Transport.RequestTimeoutSeconds <= 0 {
		c.Transport.RequestTimeoutSeconds = defaultTransportTimeoutSeconds
	}
	if c.Transport.RatePerSecond <= 0 {
		c.Transport.RatePerSecond = defaultTransportRatePerSecond
	}
	if c.Transport.Burst <= 0 {
		c.Transport.Burst = defaultTransportBurst
	}
	if c.Transport.BreakerFailures <= 0 {
		c.Transport.BreakerFailures = defaultTransportBreakerFailures
	}
	if c.Transport.BreakerOpenSeconds <= 0 {
		c.Transport.BreakerOpenSeconds = defaultTransportBreakerOpenSecond
	}
}

func (c *Config) normalizeBackend() {
	c.Backend.BaseURL = strings.TrimRight(strings.TrimSpace(c.Backend.BaseURL), "/")
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = defaultBackendBaseURL
	}
	c.Backend.Token = strings.TrimSpace(c.Backend.Token)
	if c.Backend.Token == "" {
		if value, ok := os.LookupEnv("CHATBRIDGE_BACKEND_TOKEN"); ok {
			c.Backend.Token = strings.TrimSpace(value)
		}
	}
	if c.Backend.TimeoutSeconds <= 0 {
		c.Backend.TimeoutSeconds = defaultBackendTimeoutSeconds
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("CHATBRIDGE_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNotifyTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func (c *Config) normalizeAccounts() {
	accounts := make([]string, 0, len(c.Accounts))
	seen := make(map[string]struct{}, len(c.Accounts))
	for _, account := range c.Accounts {
		normalized := strings.ToLower(strings.TrimSpace(account))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		accounts = append(accounts, normalized)
	}
	if len(accounts) == 0 {
		accounts = []string{DefaultAccount}
	}
	c.Accounts = accounts
}
