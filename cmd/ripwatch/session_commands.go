package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ripwatch/internal/ipc"
)

func newStartCommand(ctx *commandContext) *cobra.Command {
	var ripDisc bool
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a watch session on the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.StartSession(ripDisc)
				if err != nil {
					return err
				}
				if !resp.Started {
					if strings.TrimSpace(resp.Message) != "" {
						return fmt.Errorf("session not started: %s", resp.Message)
					}
					return fmt.Errorf("session not started")
				}
				if ripDisc {
					fmt.Fprintln(stdout, "Session started (ripping disc)")
				} else {
					fmt.Fprintln(stdout, "Session started (watch only)")
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&ripDisc, "rip", false, "Rip the loaded disc into the watched directory")
	return cmd
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the active session",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.StopSession(); err != nil {
					return err
				}
				fmt.Fprintln(stdout, "Session stopped")
				return nil
			})
		},
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, session, and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Status()
				if err != nil {
					return err
				}

				fmt.Fprintf(stdout, "Daemon: running (pid %d)\n", resp.PID)
				fmt.Fprintf(stdout, "Disc monitor: %s\n", yesNo(resp.MonitorOn))
				if resp.SessionOn {
					fmt.Fprintf(stdout, "Session: %s active", resp.SessionID)
					if resp.StartedAt != "" {
						fmt.Fprintf(stdout, " since %s", resp.StartedAt)
					}
					fmt.Fprintln(stdout)
					fmt.Fprintf(stdout, "Rip in progress: %s\n", yesNo(resp.RipActive))
				} else {
					fmt.Fprintln(stdout, "Session: none")
				}
				if resp.RipError != "" {
					fmt.Fprintf(stdout, "Rip error: %s\n", resp.RipError)
				}
				if resp.LastError != "" {
					fmt.Fprintf(stdout, "Last error: %s\n", resp.LastError)
				}
				fmt.Fprintln(stdout)

				fmt.Fprintln(stdout, "Dependencies:")
				for _, dep := range resp.Dependencies {
					label := colorizeLabel(dep.Name, dep.Available, colorize)
					if dep.Available {
						fmt.Fprintf(stdout, "  %s: ready (command: %s)\n", label, dep.Command)
						continue
					}
					detail := strings.TrimSpace(dep.Detail)
					if detail == "" {
						detail = "not available"
					}
					if dep.Optional {
						detail += " (optional)"
					}
					fmt.Fprintf(stdout, "  %s: %s\n", label, detail)
				}
				fmt.Fprintln(stdout)

				rows := make([][]string, 0, len(resp.QueueStats))
				for _, name := range []string{"detected", "transcoding", "completed", "failed"} {
					if count := resp.QueueStats[name]; count > 0 {
						rows = append(rows, []string{name, fmt.Sprintf("%d", count)})
					}
				}
				if len(rows) == 0 {
					fmt.Fprintln(stdout, "Queue is empty")
					return nil
				}
				fmt.Fprintln(stdout, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}
