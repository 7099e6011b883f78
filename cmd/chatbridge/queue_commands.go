package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"chatbridge/internal/api"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and repair queue state",
	}
	queueCmd.AddCommand(newQueueFailedCommand(ctx))
	queueCmd.AddCommand(newQueueResendCommand(ctx))
	return queueCmd
}

func newQueueFailedCommand(ctx *commandContext) *cobra.Command {
	var queueName string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "failed",
		Short: "List permanently failed messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			resp, err := client.Failed(cmd.Context(), ctx.account(), strings.TrimSpace(queueName))
			if err != nil {
				return wrapAPIError(err, client.BaseURL())
			}
			if jsonOutput {
				return writeJSON(cmd, resp)
			}
			out := cmd.OutOrStdout()
			if len(resp.Messages) == 0 {
				fmt.Fprintf(out, "No failed messages for account %s\n", resp.Account)
				return nil
			}
			fmt.Fprintln(out, renderFailed(resp.Messages))
			return nil
		},
	}

	cmd.Flags().StringVarP(&queueName, "queue", "q", "", "Limit to inbound or outbound")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print raw JSON")
	return cmd
}

func newQueueResendCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resend [id...]",
		Short: "Queue fresh copies of failed outbound messages",
		Long: "Queue a fresh copy of each failed outbound message for delivery. Without ids every failed outbound message is resent.\n" +
			"The failed rows stay in place for review. Failed inbound messages cannot be resent.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := api.ParseIDs(args)
			if err != nil {
				return err
			}
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			resp, err := client.Resend(cmd.Context(), ctx.account(), api.ResendRequest{IDs: ids})
			if err != nil {
				return wrapAPIError(err, client.BaseURL())
			}
			out := cmd.OutOrStdout()
			switch {
			case len(resp.IDs) == 0 && len(ids) > 0:
				return errors.New("no failed outbound messages were resent")
			case len(resp.IDs) == 0:
				fmt.Fprintln(out, "No failed outbound messages to resend")
			case len(resp.IDs) == 1:
				fmt.Fprintf(out, "Resent 1 outbound message (new id %d)\n", resp.IDs[0])
			default:
				fmt.Fprintf(out, "Resent %d outbound messages\n", len(resp.IDs))
			}
			return nil
		},
	}
}

func renderFailed(messages []api.FailedMessage) string {
	headers := []string{"Queue", "ID", "Chat", "Retries", "Updated", "Last error", "Preview"}
	rows := make([][]string, 0, len(messages))
	for _, msg := range messages {
		rows = append(rows, []string{
			msg.Queue,
			strconv.FormatInt(msg.ID, 10),
			msg.ChatID,
			strconv.Itoa(msg.Retries),
			msg.UpdatedAt,
			msg.LastError,
			msg.Preview,
		})
	}
	aligns := []columnAlignment{alignLeft, alignRight, alignLeft, alignRight, alignLeft, alignLeft, alignLeft}
	footer := []string{"", "", "", "", "", "", fmt.Sprintf("%d failed", len(messages))}
	return renderTable(headers, rows, aligns, footer)
}
