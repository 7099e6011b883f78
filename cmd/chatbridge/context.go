package main

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"chatbridge/internal/api"
	"chatbridge/internal/config"
)

const apiTimeout = 10 * time.Second

type commandContext struct {
	configFlag  *string
	accountFlag *string
	apiFlag     *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, accountFlag, apiFlag *string) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		accountFlag: accountFlag,
		apiFlag:     apiFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) account() string {
	if c.accountFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.accountFlag)
}

func (c *commandContext) apiAddress() (string, error) {
	if c.apiFlag != nil && strings.TrimSpace(*c.apiFlag) != "" {
		return strings.TrimSpace(*c.apiFlag), nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	return dialAddress(cfg.Paths.APIBind), nil
}

func (c *commandContext) apiToken() string {
	cfg, err := c.ensureConfig()
	if err != nil || cfg == nil {
		return ""
	}
	return cfg.Paths.APIToken
}

func (c *commandContext) apiClient() (*api.Client, error) {
	addr, err := c.apiAddress()
	if err != nil {
		return nil, err
	}
	if addr == "" {
		return nil, errors.New("daemon API disabled: set paths.api_bind in config.toml")
	}
	return api.NewClient(addr, c.apiToken(), apiTimeout), nil
}

// dialAddress turns a listen address into one a client can connect to.
// Wildcard hosts are replaced with loopback.
func dialAddress(bind string) string {
	bind = strings.TrimSpace(bind)
	if bind == "" || strings.Contains(bind, "://") {
		return bind
	}
	host, port, err := net.SplitHostPort(bind)
	if err != nil {
		return bind
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

func wrapAPIError(err error, addr string) error {
	if err == nil {
		return nil
	}
	var statusErr *api.StatusError
	switch {
	case errors.As(err, &statusErr):
		return statusErr
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connect to daemon at %s: connection refused; start it with `chatbridge run`", addr)
	default:
		return fmt.Errorf("connect to daemon at %s: %w", addr, err)
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
