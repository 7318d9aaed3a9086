// Package ripping launches the external disc-ripping tool. Ripped container
// files appear in the watched directory and flow onward through the
// stable-file watcher, so the ripper's only outputs are progress logs, the
// final eject, and an error when MakeMKV fails.
package ripping

import (
	"context"
	"log/slog"
	"time"

	"ripwatch/internal/config"
	"ripwatch/internal/disc"
	"ripwatch/internal/logging"
	"ripwatch/internal/services"
	"ripwatch/internal/services/makemkv"
)

// Ripper manages the MakeMKV ripping workflow.
type Ripper struct {
	cfg     *config.Config
	logger  *slog.Logger
	client  makemkv.Ripper
	ejector disc.Ejector
}

// New constructs the ripper using default dependencies.
func New(cfg *config.Config, logger *slog.Logger) *Ripper {
	client, err := makemkv.New(cfg.MakeMKV.Binary, time.Duration(cfg.MakeMKV.RipTimeout)*time.Second)
	if err != nil {
		logger.Warn("makemkv client unavailable", logging.Error(err))
	}
	return NewWithDependencies(cfg, logger, client, disc.NewEjector())
}

// NewWithDependencies allows injecting all collaborators (used in tests).
func NewWithDependencies(cfg *config.Config, logger *slog.Logger, client makemkv.Ripper, ejector disc.Ejector) *Ripper {
	return &Ripper{
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "ripper"),
		client:  client,
		ejector: ejector,
	}
}

// Available reports whether the rip client could be constructed.
func (r *Ripper) Available() bool {
	return r.client != nil
}

// Execute rips the configured disc into the watched directory and blocks
// until MakeMKV exits.
func (r *Ripper) Execute(ctx context.Context) error {
	logger := logging.WithContext(ctx, r.logger)
	if r.client == nil {
		return services.Wrap(services.ErrConfiguration, "ripping", "client",
			"MakeMKV client unavailable; check makemkv.binary", nil)
	}

	destDir := r.cfg.Paths.RipsDir
	logger.Info("starting disc rip",
		logging.Int("drive_index", r.cfg.MakeMKV.DriveIndex),
		logging.String("destination_dir", destDir),
	)

	lastPercent := -5.0
	progress := func(update makemkv.ProgressUpdate) {
		if update.Percent-lastPercent < 5 {
			return
		}
		lastPercent = update.Percent
		logger.Info("rip progress", logging.Float64("percent", update.Percent))
	}

	if err := r.client.Rip(ctx, r.cfg.MakeMKV.DriveIndex, destDir, progress); err != nil {
		return services.Wrap(services.ErrExternalTool, "ripping", "makemkv rip",
			"MakeMKV rip failed; check the disc for read errors", err)
	}
	logger.Info("disc rip completed", logging.String("destination_dir", destDir))

	if r.cfg.MakeMKV.EjectAfter && r.ejector != nil {
		if err := r.ejector.Eject(ctx, r.cfg.MakeMKV.OpticalDrive); err != nil {
			logger.Warn("failed to eject disc", logging.Error(err))
		}
	}
	return nil
}
