package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ripwatch/internal/logging"
	"ripwatch/internal/queue"
	"ripwatch/internal/session"
	"ripwatch/internal/status"
)

// newRunCommand runs a session in the foreground without the daemon. This is
// the one-shot mode: insert a disc, run `ripwatch run --rip`, press Ctrl-C
// when the converted files are in place.
func newRunCommand(ctx *commandContext) *cobra.Command {
	var ripDisc bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a rip-and-convert session in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			runCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			store, err := queue.Open(cfg)
			if err != nil {
				return fmt.Errorf("open queue store: %w", err)
			}
			defer store.Close()

			hub := status.NewHub(0)
			sessions, err := session.NewManager(cfg, store, logger, hub)
			if err != nil {
				return err
			}

			if err := sessions.Start(runCtx, session.Options{RipDisc: ripDisc}); err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			fmt.Fprintf(stdout, "Watching %s, converting into %s (Ctrl-C to stop)\n", cfg.Paths.RipsDir, cfg.Paths.OutputDir)

			var cursor uint64
			for {
				events, next, err := hub.Fetch(runCtx, cursor, 0, true)
				if err != nil {
					break
				}
				cursor = next
				for _, evt := range events {
					printEvent(stdout, evt)
				}
			}

			sessions.Stop()
			summary := sessions.Status(context.Background())
			fmt.Fprintf(stdout, "Session finished: %d converted, %d failed\n", summary.Completed, summary.Failed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&ripDisc, "rip", false, "Rip the loaded disc into the watched directory")
	return cmd
}

func printEvent(out io.Writer, evt status.Event) {
	line := evt.Type
	if evt.Path != "" {
		line += " " + evt.Path
	}
	if evt.Message != "" && evt.Message != line {
		line += ": " + evt.Message
	}
	fmt.Fprintf(out, "[%s] %s\n", evt.Timestamp.Format("15:04:05"), line)
}
