package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"ripwatch/internal/ipc"
)

func newOutcomesCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	cmd := &cobra.Command{
		Use:   "outcomes",
		Short: "List detected files and their conversion outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueList(statuses)
				if err != nil {
					return err
				}
				if len(resp.Items) == 0 {
					fmt.Fprintln(stdout, "No items found")
					return nil
				}
				rows := make([][]string, 0, len(resp.Items))
				for _, item := range resp.Items {
					detail := item.OutputPath
					if item.Status == "failed" {
						detail = item.ErrorMessage
					}
					rows = append(rows, []string{
						fmt.Sprintf("%d", item.ID),
						filepath.Base(item.SourcePath),
						item.Status,
						truncate(detail, 60),
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"ID", "Source", "Status", "Output / Error"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status (detected, transcoding, completed, failed)")
	return cmd
}

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Queue maintenance commands",
	}

	queueCmd.AddCommand(&cobra.Command{
		Use:   "describe <id>",
		Short: "Show full details for a queue item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueDescribe(id)
				if err != nil {
					return err
				}
				item := resp.Item
				fmt.Fprintf(stdout, "ID:          %d\n", item.ID)
				fmt.Fprintf(stdout, "Session:     %s\n", item.SessionID)
				fmt.Fprintf(stdout, "Source:      %s\n", item.SourcePath)
				fmt.Fprintf(stdout, "Status:      %s\n", item.Status)
				if item.OutputPath != "" {
					fmt.Fprintf(stdout, "Output:      %s\n", item.OutputPath)
				}
				if item.ErrorMessage != "" {
					fmt.Fprintf(stdout, "Error:       %s\n", item.ErrorMessage)
				}
				if item.DetectedAt != "" {
					fmt.Fprintf(stdout, "Detected at: %s\n", item.DetectedAt)
				}
				if item.StartedAt != "" {
					fmt.Fprintf(stdout, "Started at:  %s\n", item.StartedAt)
				}
				if item.FinishedAt != "" {
					fmt.Fprintf(stdout, "Finished at: %s\n", item.FinishedAt)
				}
				return nil
			})
		},
	})

	queueCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove all queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueClear()
				if err != nil {
					return err
				}
				fmt.Fprintf(stdout, "Removed %d items\n", resp.Removed)
				return nil
			})
		},
	})

	queueCmd.AddCommand(&cobra.Command{
		Use:   "clear-completed",
		Short: "Remove completed queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueClearCompleted()
				if err != nil {
					return err
				}
				fmt.Fprintf(stdout, "Removed %d items\n", resp.Removed)
				return nil
			})
		},
	})

	queueCmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Reset items stuck in transcoding back to detected",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueReset()
				if err != nil {
					return err
				}
				fmt.Fprintf(stdout, "Reset %d items\n", resp.Updated)
				return nil
			})
		},
	})

	queueCmd.AddCommand(&cobra.Command{
		Use:   "health",
		Short: "Show aggregate queue counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueHealth()
				if err != nil {
					return err
				}
				rows := [][]string{
					{"total", fmt.Sprintf("%d", resp.Total)},
					{"detected", fmt.Sprintf("%d", resp.Detected)},
					{"transcoding", fmt.Sprintf("%d", resp.Transcoding)},
					{"completed", fmt.Sprintf("%d", resp.Completed)},
					{"failed", fmt.Sprintf("%d", resp.Failed)},
				}
				fmt.Fprintln(stdout, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	})

	return queueCmd
}

func parseItemID(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	var id int64
	if _, err := fmt.Sscanf(raw, "%d", &id); err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid queue item id %q", raw)
	}
	return id, nil
}

func truncate(s string, max int) string {
	if max <= 3 || len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
