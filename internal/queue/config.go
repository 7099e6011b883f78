package queue

import "chatbridge/internal/config"

// PolicyFromConfig converts queue configuration into a Policy.
func PolicyFromConfig(cfg config.Queue) Policy {
	return Policy{
		MaxRetries:  cfg.MaxRetries,
		BaseBackoff: cfg.BaseBackoff(),
		MaxBackoff:  cfg.MaxBackoff(),
		DedupWindow: cfg.DedupWindow(),
		MessageTTL:  cfg.MessageTTL(),
	}.withDefaults()
}

// NewRegistryFromConfig returns a registry that stores each account's queue
// under the configured state directory.
func NewRegistryFromConfig(cfg *config.Config, opts ...Option) *Registry {
	all := append([]Option{WithPolicy(PolicyFromConfig(cfg.Queue))}, opts...)
	return NewRegistry(cfg.StorePath, all...)
}
