package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"ripwatch/internal/logging"
)

// Request describes one watch session. It is immutable once the watcher
// starts.
type Request struct {
	// Dir is the directory to monitor. It must exist when Start is called.
	Dir string
	// Extension filters creation events, leading dot included (".mkv").
	// Matching is case-insensitive.
	Extension string
	// PollInterval is the delay between readiness probes of a growing file.
	PollInterval time.Duration
	// StableTimeout bounds how long a single file is probed. Zero retries
	// forever.
	StableTimeout time.Duration
}

// FileReadyEvent reports a file that has stopped changing and is ready for
// hand-off. Exactly one event is produced per created file.
type FileReadyEvent struct {
	Path       string
	DetectedAt time.Time
}

// ReadyFunc consumes ready files. It is invoked from the watch goroutine and
// blocks further detection until it returns.
type ReadyFunc func(FileReadyEvent)

// TimeoutFunc is notified when a file never became stable within the
// configured bound. The path is dropped afterwards.
type TimeoutFunc func(path string, waited time.Duration)

// Option configures optional watcher behavior.
type Option func(*Watcher)

// WithProbeTimeoutFunc registers a callback for probe-timeout reports.
func WithProbeTimeoutFunc(fn TimeoutFunc) Option {
	return func(w *Watcher) {
		w.onTimeout = fn
	}
}

// Watcher monitors a directory for stable files of a target extension.
type Watcher struct {
	req       Request
	logger    *slog.Logger
	onReady   ReadyFunc
	onTimeout TimeoutFunc
	probe     probeFunc

	mu       sync.Mutex
	running  bool
	quit     chan struct{}
	done     chan struct{}
	fsw      *fsnotify.Watcher
	inflight map[string]struct{}
}

// New validates the request and constructs a watcher. onReady is required.
func New(req Request, onReady ReadyFunc, logger *slog.Logger, opts ...Option) (*Watcher, error) {
	if strings.TrimSpace(req.Dir) == "" {
		return nil, errors.New("watch directory required")
	}
	if onReady == nil {
		return nil, errors.New("ready callback required")
	}
	req.Extension = strings.ToLower(strings.TrimSpace(req.Extension))
	if req.Extension != "" && !strings.HasPrefix(req.Extension, ".") {
		req.Extension = "." + req.Extension
	}
	if req.PollInterval <= 0 {
		req.PollInterval = 10 * time.Second
	}
	if req.StableTimeout < 0 {
		req.StableTimeout = 0
	}

	w := &Watcher{
		req:      req,
		logger:   logging.NewComponentLogger(logger, "watcher"),
		onReady:  onReady,
		probe:    probeOnce,
		inflight: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start validates the watch target and launches the watch goroutine. A
// missing or unreadable directory is fatal and returned to the caller;
// everything after Start is recovered locally.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return errors.New("watcher already running")
	}

	info, err := os.Stat(w.req.Dir)
	if err != nil {
		return fmt.Errorf("watch directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch directory: %s is not a directory", w.req.Dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fs watcher: %w", err)
	}
	if err := fsw.Add(w.req.Dir); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("watch %s: %w", w.req.Dir, err)
	}

	w.fsw = fsw
	w.quit = make(chan struct{})
	w.done = make(chan struct{})
	w.running = true

	go w.watchLoop(ctx, w.quit, w.done)

	w.logger.Info("watching for new files",
		logging.String("dir", w.req.Dir),
		logging.String("extension", w.req.Extension),
		logging.Duration("poll_interval", w.req.PollInterval),
	)
	return nil
}

// Stop halts monitoring and waits for the watch goroutine to exit. It is
// idempotent and safe to call from any goroutine; an in-progress probe
// observes the stop at its next iteration boundary.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.quit)
	_ = w.fsw.Close()
	done := w.done
	w.mu.Unlock()

	<-done
	w.logger.Info("watcher stopped")
}

func (w *Watcher) watchLoop(ctx context.Context, quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-quit:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			w.handleCreate(ctx, quit, event.Name)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("fs watcher error", logging.Error(err))
		}
	}
}

func (w *Watcher) handleCreate(ctx context.Context, quit <-chan struct{}, path string) {
	if !w.matches(path) {
		return
	}
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return
	}

	if !w.claim(path) {
		return
	}
	defer w.release(path)

	w.logger.Info("detected file creation", logging.String("path", path))

	if !w.awaitStable(ctx, quit, path) {
		return
	}

	select {
	case <-ctx.Done():
		return
	case <-quit:
		return
	default:
	}

	w.logger.Info("file is ready for processing", logging.String("path", path))
	w.onReady(FileReadyEvent{Path: path, DetectedAt: time.Now().UTC()})
}

func (w *Watcher) matches(path string) bool {
	if w.req.Extension == "" {
		return true
	}
	return strings.ToLower(filepath.Ext(path)) == w.req.Extension
}

func (w *Watcher) claim(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, busy := w.inflight[path]; busy {
		return false
	}
	w.inflight[path] = struct{}{}
	return true
}

func (w *Watcher) release(path string) {
	w.mu.Lock()
	delete(w.inflight, path)
	w.mu.Unlock()
}

// awaitStable polls the file until it stops changing. Contention is not an
// error; the probe simply retries at the configured interval until the file
// is stable, the bound expires, or the session stops.
func (w *Watcher) awaitStable(ctx context.Context, quit <-chan struct{}, path string) bool {
	start := time.Now()
	lastSize := int64(-1)

	for {
		size, stable, err := w.probe(path, lastSize)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				w.logger.Warn("file vanished before becoming stable", logging.String("path", path))
				return false
			}
			w.logger.Debug("readiness probe failed, retrying",
				logging.String("path", path),
				logging.Error(err),
			)
		}
		if stable {
			return true
		}
		lastSize = size

		if w.req.StableTimeout > 0 {
			if waited := time.Since(start); waited >= w.req.StableTimeout {
				w.logger.Warn("file never became stable",
					logging.String("path", path),
					logging.Duration("waited", waited),
				)
				if w.onTimeout != nil {
					w.onTimeout(path, waited)
				}
				return false
			}
		}

		w.logger.Debug("waiting for file to become stable", logging.String("path", path))
		select {
		case <-ctx.Done():
			return false
		case <-quit:
			return false
		case <-time.After(w.req.PollInterval):
		}
	}
}
