package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"log/slog"

	"github.com/gofrs/flock"

	"ripwatch/internal/config"
	"ripwatch/internal/deps"
	"ripwatch/internal/logging"
	"ripwatch/internal/notifications"
	"ripwatch/internal/queue"
	"ripwatch/internal/session"
	"ripwatch/internal/status"
)

// Daemon coordinates the session manager and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	sessions *session.Manager
	hub      *status.Hub
	monitor  *netlinkMonitor

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Session      session.StatusSummary
	QueueDBPath  string
	LockFilePath string
	MonitorOn    bool
	Dependencies []deps.Status
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, sessions *session.Manager, hub *status.Hub) (*Daemon, error) {
	if cfg == nil || store == nil || sessions == nil {
		return nil, errors.New("daemon requires config, store, and session manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		sessions: sessions,
		hub:      hub,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.monitor = newNetlinkMonitor(cfg, logger, d.handleDiscInserted, sessions.Running)
	return d, nil
}

// Start acquires the daemon lock and begins listening for disc events.
// Sessions are started separately via StartSession or disc insertion.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another ripwatch daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.monitor.Start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start disc monitor: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("ripwatch daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop ends any active session, stops the disc monitor, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.monitor.Stop()
	d.sessions.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("ripwatch daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// StartSession begins a watch (and optionally rip) session.
func (d *Daemon) StartSession(opts session.Options) error {
	if !d.running.Load() {
		return errors.New("daemon not running")
	}
	return d.sessions.Start(d.ctx, opts)
}

// StopSession ends the active session if one is running.
func (d *Daemon) StopSession() {
	d.sessions.Stop()
}

// Status reports current daemon and session state.
func (d *Daemon) Status(ctx context.Context) Status {
	st := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Session:      d.sessions.Status(ctx),
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
		MonitorOn:    d.monitor.Running(),
	}
	st.Dependencies = deps.CheckBinaries(deps.Requirements(d.cfg))
	return st
}

// LogPath returns the daemon log file location.
func (d *Daemon) LogPath() string {
	return d.cfg.LogFilePath()
}

// ListQueue returns queue items filtered by optional statuses.
func (d *Daemon) ListQueue(ctx context.Context, statuses []queue.Status) ([]*queue.Item, error) {
	return d.store.List(ctx, statuses...)
}

// GetQueueItem returns a single queue item by id.
func (d *Daemon) GetQueueItem(ctx context.Context, id int64) (*queue.Item, error) {
	return d.store.GetByID(ctx, id)
}

// ClearQueue removes all queue items.
func (d *Daemon) ClearQueue(ctx context.Context) (int64, error) {
	return d.store.Clear(ctx)
}

// ClearCompleted removes only completed queue items.
func (d *Daemon) ClearCompleted(ctx context.Context) (int64, error) {
	return d.store.ClearCompleted(ctx)
}

// ResetStuck transitions items stuck in transcoding back to detected.
func (d *Daemon) ResetStuck(ctx context.Context) (int64, error) {
	return d.store.ResetStuck(ctx)
}

// QueueHealth returns aggregate queue diagnostics.
func (d *Daemon) QueueHealth(ctx context.Context) (queue.HealthSummary, error) {
	return d.store.Health(ctx)
}

// Events returns session events newer than since from the status hub.
func (d *Daemon) Events(ctx context.Context, since uint64, limit int, wait bool) ([]status.Event, uint64, error) {
	if d.hub == nil {
		return nil, since, nil
	}
	return d.hub.Fetch(ctx, since, limit, wait)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

func (d *Daemon) handleDiscInserted(ctx context.Context, device, title string) error {
	d.logger.Info("disc inserted",
		logging.String("device", device),
		logging.String("title", title),
		logging.String(logging.FieldEventType, "disc_detected"),
	)
	if d.hub != nil {
		d.hub.Publish(status.Event{
			Type:    status.EventDiscDetected,
			Message: title,
			Fields:  map[string]string{"device": device},
		})
	}

	notifier := notifications.NewService(d.cfg)
	if err := notifier.NotifyDiscDetected(ctx, title); err != nil {
		d.logger.Warn("notification failed", logging.Error(err))
	}

	return d.sessions.Start(ctx, session.Options{RipDisc: true})
}
