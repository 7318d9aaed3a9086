// Command ripwatchd runs the ripwatch daemon: it holds the queue store,
// listens for disc insertions, and serves the CLI over a Unix socket.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"ripwatch/internal/config"
	"ripwatch/internal/daemon"
	"ripwatch/internal/ipc"
	"ripwatch/internal/logging"
	"ripwatch/internal/queue"
	"ripwatch/internal/session"
	"ripwatch/internal/status"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("create directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return
	}

	if reset, err := store.ResetStuck(ctx); err != nil {
		logger.Warn("reset stuck items", logging.Error(err))
	} else if reset > 0 {
		logger.Info("reset interrupted items", logging.Int64("count", reset))
	}

	hub := status.NewHub(0)
	sessions, err := session.NewManager(cfg, store, logger, hub)
	if err != nil {
		logger.Error("create session manager", logging.Error(err))
		store.Close()
		return
	}

	d, err := daemon.New(cfg, store, logger, sessions, hub)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		store.Close()
		return
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger)
	if err != nil {
		logger.Error("start IPC server", logging.Error(err))
		return
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("ripwatchd shutting down")
}
