// Package session coordinates a rip-and-convert session: the directory
// watcher, the optional disc rip, the transcoder hand-off, and queue
// persistence. All cross-goroutine observation goes through the status hub
// and the queue store; nothing outside this package touches session state
// directly.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"ripwatch/internal/config"
	"ripwatch/internal/logging"
	"ripwatch/internal/notifications"
	"ripwatch/internal/queue"
	"ripwatch/internal/ripping"
	"ripwatch/internal/services"
	"ripwatch/internal/status"
	"ripwatch/internal/transcode"
	"ripwatch/internal/watcher"
)

// Options selects what a session does beyond watching.
type Options struct {
	// RipDisc starts a MakeMKV rip into the watched directory when true.
	RipDisc bool
}

// StatusSummary is a point-in-time snapshot of session state.
type StatusSummary struct {
	Running    bool
	SessionID  string
	StartedAt  time.Time
	RipActive  bool
	RipError   string
	Completed  int
	Failed     int
	LastError  string
	QueueStats queue.HealthSummary
}

// Manager owns the lifetime of at most one session at a time.
type Manager struct {
	cfg        *config.Config
	store      *queue.Store
	logger     *slog.Logger
	notifier   notifications.Service
	hub        *status.Hub
	transcoder *transcode.Transcoder
	ripper     *ripping.Ripper

	mu        sync.Mutex
	running   bool
	sessionID string
	startedAt time.Time
	ripActive bool
	ripErr    error
	completed int
	failed    int
	lastErr   error
	cancel    context.CancelFunc
	watch     *watcher.Watcher
	wg        sync.WaitGroup
}

// NewManager constructs a session manager with production dependencies.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger, hub *status.Hub) (*Manager, error) {
	transcoder, err := transcode.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	return NewManagerWithDependencies(cfg, store, logger, hub, notifications.NewService(cfg), transcoder, ripping.New(cfg, logger)), nil
}

// NewManagerWithDependencies constructs a session manager with injected
// collaborators (used in tests).
func NewManagerWithDependencies(
	cfg *config.Config,
	store *queue.Store,
	logger *slog.Logger,
	hub *status.Hub,
	notifier notifications.Service,
	transcoder *transcode.Transcoder,
	ripper *ripping.Ripper,
) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:        cfg,
		store:      store,
		logger:     logging.NewComponentLogger(logger, "session"),
		notifier:   notifier,
		hub:        hub,
		transcoder: transcoder,
		ripper:     ripper,
	}
}

// Start begins a session. It fails when one is already running, when the
// watched directory cannot be observed, or when a rip was requested but the
// MakeMKV binary is unavailable.
func (m *Manager) Start(ctx context.Context, opts Options) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return services.Wrap(services.ErrValidation, "session", "start", "a session is already running", nil)
	}
	if opts.RipDisc && !m.ripper.Available() {
		m.mu.Unlock()
		return services.Wrap(services.ErrConfiguration, "session", "start", "MakeMKV binary not found; rip mode unavailable", nil)
	}
	if err := m.cfg.EnsureDirectories(); err != nil {
		m.mu.Unlock()
		return services.Wrap(services.ErrConfiguration, "session", "start", "create session directories", err)
	}

	sessionID := uuid.NewString()
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	runCtx = services.WithSessionID(runCtx, sessionID)
	logger := m.logger.With(logging.String(logging.FieldSessionID, sessionID))

	watch, err := watcher.New(watcher.Request{
		Dir:           m.cfg.Paths.RipsDir,
		Extension:     m.cfg.WatchExtension(),
		PollInterval:  m.cfg.PollInterval(),
		StableTimeout: m.cfg.StableTimeout(),
	}, func(evt watcher.FileReadyEvent) {
		m.handleFile(runCtx, logger, sessionID, evt)
	}, logger, watcher.WithProbeTimeoutFunc(func(path string, waited time.Duration) {
		m.handleProbeTimeout(runCtx, logger, sessionID, path, waited)
	}))
	if err != nil {
		cancel()
		m.mu.Unlock()
		return err
	}
	if err := watch.Start(runCtx); err != nil {
		cancel()
		m.mu.Unlock()
		return err
	}

	m.running = true
	m.sessionID = sessionID
	m.startedAt = time.Now().UTC()
	m.ripActive = opts.RipDisc
	m.ripErr = nil
	m.completed = 0
	m.failed = 0
	m.lastErr = nil
	m.cancel = cancel
	m.watch = watch

	if opts.RipDisc {
		m.wg.Add(1)
		go m.runRip(runCtx, logger, sessionID)
	}
	m.mu.Unlock()

	logger.Info("session started",
		logging.String("watch_dir", m.cfg.Paths.RipsDir),
		logging.String("output_dir", m.cfg.Paths.OutputDir),
		logging.Bool("rip_disc", opts.RipDisc),
		logging.String(logging.FieldEventType, "session_started"),
	)
	m.publish(status.Event{
		Type:      status.EventSessionStarted,
		SessionID: sessionID,
		Message:   "session started",
		Fields: map[string]string{
			"watch_dir": m.cfg.Paths.RipsDir,
			"rip_disc":  strconv.FormatBool(opts.RipDisc),
		},
	})
	return nil
}

// Stop ends the current session and waits for in-flight work to finish.
// Calling Stop when no session is running is a no-op.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	watch := m.watch
	sessionID := m.sessionID
	startedAt := m.startedAt
	m.running = false
	m.cancel = nil
	m.watch = nil
	m.mu.Unlock()

	cancel()
	watch.Stop()
	m.wg.Wait()

	m.mu.Lock()
	completed := m.completed
	failed := m.failed
	m.mu.Unlock()

	duration := time.Since(startedAt)
	m.logger.Info("session stopped",
		logging.String(logging.FieldSessionID, sessionID),
		logging.Int("completed", completed),
		logging.Int("failed", failed),
		logging.Duration("duration", duration),
		logging.String(logging.FieldEventType, "session_stopped"),
	)
	m.publish(status.Event{
		Type:      status.EventSessionStopped,
		SessionID: sessionID,
		Message:   "session stopped",
		Fields: map[string]string{
			"completed": strconv.Itoa(completed),
			"failed":    strconv.Itoa(failed),
		},
	})
	m.notify(context.Background(), func(ctx context.Context) error {
		return m.notifier.NotifySessionCompleted(ctx, shortID(sessionID), completed, failed, duration)
	})
}

// Running reports whether a session is active.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Status returns the current session snapshot plus queue counts.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.Lock()
	summary := StatusSummary{
		Running:   m.running,
		SessionID: m.sessionID,
		StartedAt: m.startedAt,
		RipActive: m.ripActive,
		Completed: m.completed,
		Failed:    m.failed,
	}
	if m.ripErr != nil {
		summary.RipError = m.ripErr.Error()
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	m.mu.Unlock()

	if m.store != nil {
		stats, err := m.store.Health(ctx)
		if err != nil {
			m.logger.Warn("failed to read queue counts", logging.Error(err))
		} else {
			summary.QueueStats = stats
		}
	}
	return summary
}

func (m *Manager) runRip(ctx context.Context, logger *slog.Logger, sessionID string) {
	defer m.wg.Done()
	defer func() {
		m.mu.Lock()
		m.ripActive = false
		m.mu.Unlock()
	}()

	m.publish(status.Event{
		Type:      status.EventRipStarted,
		SessionID: sessionID,
		Message:   "disc rip started",
	})
	m.notify(ctx, func(ctx context.Context) error {
		return m.notifier.NotifyRipStarted(ctx, shortID(sessionID))
	})

	err := m.ripper.Execute(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		m.mu.Lock()
		m.ripErr = err
		m.mu.Unlock()
		logger.Error("disc rip failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "rip_failed"),
			logging.String(logging.FieldErrorHint, "check the drive and MakeMKV output"),
		)
		m.publish(status.Event{
			Type:      status.EventRipFailed,
			SessionID: sessionID,
			Message:   err.Error(),
		})
		m.notify(ctx, func(ctx context.Context) error {
			return m.notifier.NotifyError(ctx, err, "disc rip")
		})
		return
	}

	logger.Info("disc rip finished", logging.String(logging.FieldEventType, "rip_completed"))
	m.publish(status.Event{
		Type:      status.EventRipCompleted,
		SessionID: sessionID,
		Message:   "disc rip finished",
	})
	m.notify(ctx, func(ctx context.Context) error {
		return m.notifier.NotifyRipCompleted(ctx, shortID(sessionID))
	})
}

func (m *Manager) handleFile(ctx context.Context, logger *slog.Logger, sessionID string, evt watcher.FileReadyEvent) {
	if ctx.Err() != nil {
		return
	}

	item, err := m.store.NewItem(ctx, sessionID, evt.Path, evt.DetectedAt)
	if err != nil {
		m.setLastError(err)
		logger.Error("failed to record detected file",
			logging.String("path", evt.Path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
		return
	}
	itemCtx := services.WithItemID(ctx, item.ID)
	itemLogger := logger.With(logging.Int64(logging.FieldItemID, item.ID))

	m.publish(status.Event{
		Type:      status.EventFileDetected,
		SessionID: sessionID,
		ItemID:    item.ID,
		Path:      evt.Path,
		Message:   "stable file detected",
	})
	m.notify(itemCtx, func(ctx context.Context) error {
		return m.notifier.NotifyFileDetected(ctx, evt.Path)
	})

	if err := m.store.MarkTranscoding(itemCtx, item.ID, time.Now().UTC()); err != nil {
		m.setLastError(err)
		itemLogger.Error("failed to mark item transcoding", logging.Error(err))
		return
	}
	m.publish(status.Event{
		Type:      status.EventTranscodeStarted,
		SessionID: sessionID,
		ItemID:    item.ID,
		Path:      evt.Path,
	})

	outcome := m.transcoder.Process(itemCtx, evt.Path)
	finishedAt := time.Now().UTC()
	if !outcome.Succeeded {
		if markErr := m.store.MarkFailed(itemCtx, item.ID, outcome.ErrorDetail, finishedAt); markErr != nil {
			itemLogger.Error("failed to mark item failed", logging.Error(markErr))
		}
		m.mu.Lock()
		m.failed++
		m.mu.Unlock()
		m.publish(status.Event{
			Type:      status.EventTranscodeFailed,
			SessionID: sessionID,
			ItemID:    item.ID,
			Path:      evt.Path,
			Message:   outcome.ErrorDetail,
		})
		m.notify(itemCtx, func(ctx context.Context) error {
			return m.notifier.NotifyTranscodeFailed(ctx, evt.Path, outcome.ErrorDetail)
		})
		return
	}

	if err := m.store.MarkCompleted(itemCtx, item.ID, outcome.OutputPath, finishedAt); err != nil {
		m.setLastError(err)
		itemLogger.Error("failed to mark item completed", logging.Error(err))
	}
	m.mu.Lock()
	m.completed++
	m.mu.Unlock()
	m.publish(status.Event{
		Type:      status.EventTranscodeCompleted,
		SessionID: sessionID,
		ItemID:    item.ID,
		Path:      outcome.OutputPath,
	})
	m.notify(itemCtx, func(ctx context.Context) error {
		return m.notifier.NotifyTranscodeCompleted(ctx, outcome.OutputPath)
	})
}

func (m *Manager) handleProbeTimeout(ctx context.Context, logger *slog.Logger, sessionID string, path string, waited time.Duration) {
	logger.Warn("file never became stable",
		logging.String("path", path),
		logging.Duration("waited", waited),
		logging.String(logging.FieldEventType, "file_timed_out"),
		logging.String(logging.FieldErrorHint, "the writer may have stalled; remove or re-rip the file"),
	)
	m.publish(status.Event{
		Type:      status.EventFileTimedOut,
		SessionID: sessionID,
		Path:      path,
		Message:   "file never became stable",
		Fields:    map[string]string{"waited": waited.Round(time.Second).String()},
	})
	m.notify(ctx, func(ctx context.Context) error {
		return m.notifier.NotifyError(ctx, errors.New("file never became stable: "+path), "stable-file watch")
	})
}

func (m *Manager) publish(evt status.Event) {
	if m.hub != nil {
		m.hub.Publish(evt)
	}
}

func (m *Manager) notify(ctx context.Context, fn func(context.Context) error) {
	if m.notifier == nil {
		return
	}
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := fn(notifyCtx); err != nil {
		m.logger.Warn("notification failed", logging.Error(err))
	}
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func shortID(sessionID string) string {
	if len(sessionID) > 8 {
		return sessionID[:8]
	}
	return sessionID
}
