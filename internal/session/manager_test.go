package session_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"ripwatch/internal/config"
	"ripwatch/internal/logging"
	"ripwatch/internal/notifications"
	"ripwatch/internal/queue"
	"ripwatch/internal/ripping"
	"ripwatch/internal/services/ffmpeg"
	"ripwatch/internal/services/makemkv"
	"ripwatch/internal/session"
	"ripwatch/internal/status"
	"ripwatch/internal/testsupport"
	"ripwatch/internal/transcode"
)

type fakeConverter struct {
	mu       sync.Mutex
	failWith string
	calls    int
}

func (f *fakeConverter) Transcode(ctx context.Context, inputPath, outputPath string, progress func(ffmpeg.ProgressUpdate)) error {
	f.mu.Lock()
	f.calls++
	failWith := f.failWith
	f.mu.Unlock()
	if failWith != "" {
		return errors.New(failWith)
	}
	return os.WriteFile(outputPath, []byte("converted"), 0o644)
}

type fakeRipper struct {
	fileName string
}

func (f *fakeRipper) Rip(ctx context.Context, driveIndex int, destDir string, progress func(makemkv.ProgressUpdate)) error {
	if progress != nil {
		progress(makemkv.ProgressUpdate{Percent: 100, Message: "Ripping 100.0%"})
	}
	return os.WriteFile(filepath.Join(destDir, f.fileName), []byte("ripped title payload"), 0o644)
}

type managerHarness struct {
	cfg       *config.Config
	store     *queue.Store
	hub       *status.Hub
	converter *fakeConverter
	manager   *session.Manager
}

func newManagerHarness(t *testing.T, client makemkv.Ripper) *managerHarness {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	hub := status.NewHub(0)
	logger := logging.NewNop()
	converter := &fakeConverter{}

	manager := session.NewManagerWithDependencies(
		cfg,
		store,
		logger,
		hub,
		notifications.NewService(cfg),
		transcode.NewWithClient(cfg, logger, converter),
		ripping.NewWithDependencies(cfg, logger, client, nil),
	)
	return &managerHarness{cfg: cfg, store: store, hub: hub, converter: converter, manager: manager}
}

func (h *managerHarness) waitForItem(t *testing.T, want queue.Status) *queue.Item {
	t.Helper()

	deadline := time.Now().Add(20 * time.Second)
	for time.Now().Before(deadline) {
		items, err := h.store.List(context.Background(), want)
		if err != nil {
			t.Fatalf("list queue: %v", err)
		}
		if len(items) > 0 {
			return items[0]
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("no queue item reached status %q", want)
	return nil
}

func (h *managerHarness) eventTypes() []string {
	events, _ := h.hub.Tail(100)
	types := make([]string, 0, len(events))
	for _, evt := range events {
		types = append(types, evt.Type)
	}
	return types
}

func containsEvent(types []string, want string) bool {
	for _, candidate := range types {
		if candidate == want {
			return true
		}
	}
	return false
}

func TestSessionConvertsDetectedFile(t *testing.T) {
	h := newManagerHarness(t, nil)
	if err := h.manager.Start(context.Background(), session.Options{}); err != nil {
		t.Fatalf("start session: %v", err)
	}
	defer h.manager.Stop()

	source := filepath.Join(h.cfg.Paths.RipsDir, "feature.mkv")
	testsupport.WriteFile(t, source, 4096)

	item := h.waitForItem(t, queue.StatusCompleted)
	if item.SourcePath != source {
		t.Fatalf("unexpected source path %q", item.SourcePath)
	}
	if filepath.Dir(item.OutputPath) != h.cfg.Paths.OutputDir {
		t.Fatalf("output %q not in output dir", item.OutputPath)
	}
	if _, err := os.Stat(item.OutputPath); err != nil {
		t.Fatalf("output file missing: %v", err)
	}

	summary := h.manager.Status(context.Background())
	if !summary.Running || summary.Completed != 1 || summary.Failed != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	types := h.eventTypes()
	for _, want := range []string{
		status.EventSessionStarted,
		status.EventFileDetected,
		status.EventTranscodeStarted,
		status.EventTranscodeCompleted,
	} {
		if !containsEvent(types, want) {
			t.Fatalf("missing %q in events %v", want, types)
		}
	}

	h.manager.Stop()
	if h.manager.Running() {
		t.Fatal("manager still running after Stop")
	}
	if !containsEvent(h.eventTypes(), status.EventSessionStopped) {
		t.Fatal("missing session_stopped event")
	}
}

func TestSessionRecordsConversionFailure(t *testing.T) {
	h := newManagerHarness(t, nil)
	h.converter.failWith = "muxer exploded"
	if err := h.manager.Start(context.Background(), session.Options{}); err != nil {
		t.Fatalf("start session: %v", err)
	}
	defer h.manager.Stop()

	source := filepath.Join(h.cfg.Paths.RipsDir, "broken.mkv")
	testsupport.WriteFile(t, source, 1024)

	item := h.waitForItem(t, queue.StatusFailed)
	if !strings.Contains(item.ErrorMessage, "muxer exploded") {
		t.Fatalf("unexpected error detail %q", item.ErrorMessage)
	}

	summary := h.manager.Status(context.Background())
	if summary.Failed != 1 || summary.Completed != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if !containsEvent(h.eventTypes(), status.EventTranscodeFailed) {
		t.Fatal("missing transcode_failed event")
	}
}

func TestSessionWithRipRunsRipperFirst(t *testing.T) {
	h := newManagerHarness(t, &fakeRipper{fileName: "title00.mkv"})
	if err := h.manager.Start(context.Background(), session.Options{RipDisc: true}); err != nil {
		t.Fatalf("start session: %v", err)
	}
	defer h.manager.Stop()

	h.waitForItem(t, queue.StatusCompleted)

	types := h.eventTypes()
	for _, want := range []string{status.EventRipStarted, status.EventRipCompleted, status.EventTranscodeCompleted} {
		if !containsEvent(types, want) {
			t.Fatalf("missing %q in events %v", want, types)
		}
	}
}

func TestStartRejectsSecondSession(t *testing.T) {
	h := newManagerHarness(t, nil)
	if err := h.manager.Start(context.Background(), session.Options{}); err != nil {
		t.Fatalf("start session: %v", err)
	}
	defer h.manager.Stop()

	err := h.manager.Start(context.Background(), session.Options{})
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected already-running error, got %v", err)
	}
}

func TestStartWithRipRequiresClient(t *testing.T) {
	h := newManagerHarness(t, nil)

	err := h.manager.Start(context.Background(), session.Options{RipDisc: true})
	if err == nil || !strings.Contains(err.Error(), "MakeMKV") {
		t.Fatalf("expected unavailable-ripper error, got %v", err)
	}
	if h.manager.Running() {
		t.Fatal("manager should not be running after failed start")
	}
}

func TestStopWithoutSessionIsNoop(t *testing.T) {
	h := newManagerHarness(t, nil)
	h.manager.Stop()
	if h.manager.Running() {
		t.Fatal("manager should not report running")
	}
}
