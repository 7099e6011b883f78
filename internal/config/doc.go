// Package config loads, normalizes, and validates chatbridge configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks for the
// chat platform secret, the backend token, and the API token. The Config type
// centralizes every knob the daemon and CLI need so the queue store, consumer
// loops, and HTTP clients are configured in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, bounded retry constants, and clear validation errors.
package config
