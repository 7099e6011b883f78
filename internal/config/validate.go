package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
)

var accountPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateLoops(); err != nil {
		return err
	}
	if err := c.validateTransport(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateAccounts(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateQueue() error {
	if err := ensurePositiveMap(map[string]int{
		"queue.max_retries":             c.Queue.MaxRetries,
		"queue.base_backoff_ms":         c.Queue.BaseBackoffMillis,
		"queue.max_backoff_minutes":     c.Queue.MaxBackoffMinutes,
		"queue.dedup_window_minutes":    c.Queue.DedupWindowMinutes,
		"queue.message_ttl_days":        c.Queue.MessageTTLDays,
		"queue.stuck_threshold_minutes": c.Queue.StuckThresholdMinutes,
		"queue.sweep_interval_minutes":  c.Queue.SweepIntervalMinutes,
	}); err != nil {
		return err
	}
	if c.Queue.MaxBackoff() < c.Queue.BaseBackoff() {
		return errors.New("queue.max_backoff_minutes must not be shorter than queue.base_backoff_ms")
	}
	return nil
}

func (c *Config) validateLoops() error {
	return ensurePositiveMap(map[string]int{
		"inbound.batch_size":             c.Inbound.BatchSize,
		"inbound.poll_interval_seconds":  c.Inbound.PollIntervalSeconds,
		"inbound.submit_timeout_seconds": c.Inbound.SubmitTimeoutSeconds,
		"outbound.batch_size":            c.Outbound.BatchSize,
		"outbound.poll_interval_seconds": c.Outbound.PollIntervalSeconds,
		"outbound.send_max_retries":      c.Outbound.SendMaxRetries,
		"outbound.text_max_runes":        c.Outbound.TextMaxRunes,
		"backend.timeout_seconds":        c.Backend.TimeoutSeconds,
	})
}

func (c *Config) validateTransport() error {
	if (c.Transport.AppID == "") != (c.Transport.AppSecret == "") {
		return errors.New("transport.app_id and transport.app_secret must be set together (or set CHATBRIDGE_APP_ID / CHATBRIDGE_APP_SECRET)")
	}
	if c.Transport.RequestTimeoutSeconds <= 0 {
		return errors.New("transport.request_timeout_seconds must be positive")
	}
	if c.Transport.Burst < 1 {
		return errors.New("transport.burst must be >= 1")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	parsed, err := url.Parse(topic)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("notifications.ntfy_topic: %q must be an http(s) URL", topic)
	}
	return nil
}

func (c *Config) validateAccounts() error {
	for _, account := range c.Accounts {
		if !accountPattern.MatchString(account) {
			return fmt.Errorf("accounts: %q must match %s", account, accountPattern.String())
		}
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
