package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"chatbridge/internal/api"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show queue counts for an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			stats, err := client.Stats(cmd.Context(), ctx.account())
			if err != nil {
				return wrapAPIError(err, client.BaseURL())
			}
			if jsonOutput {
				return writeJSON(cmd, stats)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderStats(stats))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print raw JSON")
	return cmd
}

func renderStats(stats api.StatsResponse) string {
	headers := []string{"Queue", "Pending", "Processing", "Completed", "Failed", "Total"}
	rows := [][]string{
		countsRow("inbound", stats.Inbound.Pending, stats.Inbound.Processing, stats.Inbound.Completed, stats.Inbound.Failed),
		countsRow("outbound", stats.Outbound.Pending, stats.Outbound.Processing, stats.Outbound.Completed, stats.Outbound.Failed),
	}
	aligns := []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight}

	out := fmt.Sprintf("Account: %s\nStore:   %s\n", stats.Account, stats.Path)
	out += renderTable(headers, rows, aligns, nil) + "\n"
	out += fmt.Sprintf("Sent records: %d\n", stats.SentRecords)
	return out
}

func countsRow(name string, pending, processing, completed, failed int) []string {
	return []string{
		name,
		strconv.Itoa(pending),
		strconv.Itoa(processing),
		strconv.Itoa(completed),
		strconv.Itoa(failed),
		strconv.Itoa(pending + processing + completed + failed),
	}
}
