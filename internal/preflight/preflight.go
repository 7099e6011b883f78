package preflight

import (
	"context"

	"chatbridge/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if cfg.Paths.MediaDir != "" {
		results = append(results, CheckDirectoryAccess("Media directory", cfg.Paths.MediaDir))
	}
	if cfg.Backend.BaseURL != "" {
		results = append(results, CheckBackend(ctx, cfg.Backend.BaseURL, cfg.Backend.Token))
	}
	if cfg.Transport.AppID != "" && cfg.Transport.AppSecret != "" {
		results = append(results, CheckTransport(ctx, cfg.Transport))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
