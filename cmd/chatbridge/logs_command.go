package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"chatbridge/internal/logging"
	"chatbridge/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var event string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the current daemon log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			var matchers []func(string) bool
			if event = strings.TrimSpace(event); event != "" {
				matchers = append(matchers, logs.FieldEquals(logging.FieldEventType, event))
			}
			if account := ctx.account(); account != "" {
				matchers = append(matchers, logs.FieldEquals(logging.FieldAccount, account))
			}

			out := cmd.OutOrStdout()
			path := filepath.Join(cfg.Paths.LogDir, "chatbridge.log")
			opts := logs.TailOptions{Lines: lines, Follow: follow, Match: logs.All(matchers...)}
			return logs.Tail(cmd.Context(), path, opts, func(line string) {
				fmt.Fprintln(out, line)
			})
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines until interrupted")
	cmd.Flags().StringVar(&event, "event", "", "Only show lines with this event_type")
	return cmd
}
