package testsupport

import (
	"path/filepath"
	"testing"

	"chatbridge/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.MediaDir = filepath.Join(base, "media")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Inbound.PollIntervalSeconds = 1
	cfgVal.Outbound.PollIntervalSeconds = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithAccounts replaces the configured account list.
func WithAccounts(accounts ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Accounts = append([]string(nil), accounts...)
	}
}

// WithAPIToken sets the bearer token required by the HTTP API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// WithTransport points the chat transport at baseURL with test credentials.
func WithTransport(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Transport.BaseURL = baseURL
		b.cfg.Transport.AppID = "cli_test"
		b.cfg.Transport.AppSecret = "secret"
		b.cfg.Transport.RatePerSecond = 1000
		b.cfg.Transport.Burst = 1000
	}
}

// WithBackend points the processing backend at baseURL.
func WithBackend(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Backend.BaseURL = baseURL
		b.cfg.Backend.Token = "backend-token"
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
