package config

const (
	defaultConfigPath                 = "~/.config/chatbridge/config.toml"
	defaultStateDir                   = "~/.local/share/chatbridge/state"
	defaultMediaDir                   = "~/.local/share/chatbridge/media"
	defaultLogDir                     = "~/.local/share/chatbridge/logs"
	defaultAPIBind                    = "127.0.0.1:7491"
	defaultLogFormat                  = "console"
	defaultLogLevel                   = "info"
	defaultLogRetentionDays           = 30
	defaultMaxRetries                 = 120
	defaultBaseBackoffMillis          = 1000
	defaultMaxBackoffMinutes          = 120
	defaultDedupWindowMinutes         = 10
	defaultMessageTTLDays             = 30
	defaultStuckThresholdMinutes      = 5
	defaultSweepIntervalMinutes       = 60
	defaultInboundBatchSize           = 3
	defaultInboundPollSeconds         = 5
	defaultInboundSubmitTimeout       = 300
	defaultOutboundBatchSize          = 5
	defaultOutboundPollSeconds        = 2
	defaultSendMaxRetries             = 120
	defaultTextMaxRunes               = 200
	defaultTransportBaseURL           = "https://open.feishu.cn"
	defaultTransportTimeoutSeconds    = 30
	defaultTransportRatePerSecond     = 5
	defaultTransportBurst             = 5
	defaultTransportBreakerFailures   = 5
	defaultTransportBreakerOpenSecond = 30
	defaultBackendBaseURL             = "http://127.0.0.1:18789"
	defaultBackendTimeoutSeconds      = 300
	defaultNotifyTimeoutSeconds       = 10

	// DefaultAccount is the account used when none is configured or requested.
	DefaultAccount = "default"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			MediaDir: defaultMediaDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		Queue: Queue{
			MaxRetries:            defaultMaxRetries,
			BaseBackoffMillis:     defaultBaseBackoffMillis,
			MaxBackoffMinutes:     defaultMaxBackoffMinutes,
			DedupWindowMinutes:    defaultDedupWindowMinutes,
			MessageTTLDays:        defaultMessageTTLDays,
			StuckThresholdMinutes: defaultStuckThresholdMinutes,
			SweepIntervalMinutes:  defaultSweepIntervalMinutes,
		},
		Inbound: Inbound{
			BatchSize:            defaultInboundBatchSize,
			PollIntervalSeconds:  defaultInboundPollSeconds,
			SubmitTimeoutSeconds: defaultInboundSubmitTimeout,
		},
		Outbound: Outbound{
			BatchSize:           defaultOutboundBatchSize,
			PollIntervalSeconds: defaultOutboundPollSeconds,
			SendMaxRetries:      defaultSendMaxRetries,
			TextMaxRunes:        defaultTextMaxRunes,
		},
		Transport: Transport{
			BaseURL:               defaultTransportBaseURL,
			RequestTimeoutSeconds: defaultTransportTimeoutSeconds,
			RatePerSecond:         defaultTransportRatePerSecond,
			Burst:                 defaultTransportBurst,
			BreakerFailures:       defaultTransportBreakerFailures,
			BreakerOpenSeconds:    defaultTransportBreakerOpenSecond,
		},
		Backend: Backend{
			BaseURL:        defaultBackendBaseURL,
			TimeoutSeconds: defaultBackendTimeoutSeconds,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNotifyTimeoutSeconds,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Accounts: []string{DefaultAccount},
	}
}
