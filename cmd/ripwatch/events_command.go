package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ripwatch/internal/ipc"
)

func newEventsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var limit int
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show recent session events",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Events(ipc.EventsRequest{Limit: limit})
				if err != nil {
					return err
				}
				for _, evt := range resp.Events {
					printEvent(stdout, evt)
				}
				if !follow {
					return nil
				}

				cursor := resp.Next
				for {
					resp, err := client.Events(ipc.EventsRequest{
						Since:      cursor,
						Limit:      limit,
						Wait:       true,
						WaitMillis: 5000,
					})
					if err != nil {
						return err
					}
					cursor = resp.Next
					for _, evt := range resp.Events {
						printEvent(stdout, evt)
					}
					if cmd.Context().Err() != nil {
						return nil
					}
				}
			})
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep streaming new events")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum events per fetch")
	return cmd
}

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification via the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TestNotification()
				if err != nil {
					return err
				}
				if resp.Message != "" {
					fmt.Fprintln(stdout, resp.Message)
				}
				return nil
			})
		},
	}
}
