package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"chatbridge/internal/api"
	"chatbridge/internal/preflight"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check queue database and dependency health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			checks := preflight.RunAll(cmd.Context(), cfg)

			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			health, healthErr := client.Health(cmd.Context(), ctx.account())
			var statusErr *api.StatusError
			if healthErr != nil && !errors.As(healthErr, &statusErr) {
				return wrapAPIError(healthErr, client.BaseURL())
			}

			if jsonOutput {
				return writeJSON(cmd, struct {
					Database  api.HealthResponse `json:"database"`
					Preflight []preflight.Result `json:"preflight"`
				}{health, checks})
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			writeHealth(out, health, checks, colorize)
			if healthErr != nil {
				fmt.Fprintln(out, renderStatusLine("Daemon", statusError, statusErr.Error(), colorize))
				return fmt.Errorf("queue database unhealthy: %w", healthErr)
			}
			if failed := preflight.Failed(checks); len(failed) > 0 {
				return fmt.Errorf("%d preflight check(s) failed", len(failed))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print raw JSON")
	return cmd
}

func writeHealth(out io.Writer, health api.HealthResponse, checks []preflight.Result, colorize bool) {
	for _, line := range healthLines(health, checks, colorize) {
		fmt.Fprintln(out, line)
	}
}

func healthLines(health api.HealthResponse, checks []preflight.Result, colorize bool) []string {
	lines := renderSectionHeader("Queue database", colorize)
	if health.DBPath == "" {
		lines = append(lines, renderStatusLine("Path", statusWarn, "no report from daemon", colorize))
		return appendPreflight(lines, checks, colorize)
	}
	if health.Account != "" {
		lines = append(lines, renderStatusLine("Account", statusInfo, health.Account, colorize))
	}
	lines = append(lines,
		renderStatusLine("Path", statusInfo, health.DBPath, colorize),
		renderStatusLine("Exists", boolStatus(health.DatabaseExists), yesNo(health.DatabaseExists), colorize),
		renderStatusLine("Readable", boolStatus(health.DatabaseReadable), yesNo(health.DatabaseReadable), colorize),
		renderStatusLine("Integrity", boolStatus(health.IntegrityCheck), yesNo(health.IntegrityCheck), colorize),
		renderStatusLine("Schema version", statusInfo, fmt.Sprintf("%d", health.SchemaVersion), colorize),
	)
	if len(health.MissingTables) > 0 {
		lines = append(lines, renderStatusLine("Missing tables", statusError, strings.Join(health.MissingTables, ", "), colorize))
	}
	freeKind := statusOK
	if health.FreeBytes < 100<<20 {
		freeKind = statusWarn
	}
	lines = append(lines, renderStatusLine("Free space", freeKind, formatBytes(health.FreeBytes), colorize))
	if health.Error != "" {
		lines = append(lines, renderStatusLine("Error", statusError, health.Error, colorize))
	}

	return appendPreflight(lines, checks, colorize)
}

func appendPreflight(lines []string, checks []preflight.Result, colorize bool) []string {
	if len(checks) > 0 {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Preflight", colorize)...)
		for _, check := range checks {
			lines = append(lines, renderStatusLine(check.Name, boolStatus(check.Passed), check.Detail, colorize))
		}
	}
	return lines
}
