package watcher_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"ripwatch/internal/logging"
	"ripwatch/internal/testsupport"
	"ripwatch/internal/watcher"
)

func newTestWatcher(t *testing.T, dir string, timeout time.Duration, ready chan watcher.FileReadyEvent, opts ...watcher.Option) *watcher.Watcher {
	t.Helper()

	w, err := watcher.New(watcher.Request{
		Dir:           dir,
		Extension:     ".mkv",
		PollInterval:  25 * time.Millisecond,
		StableTimeout: timeout,
	}, func(evt watcher.FileReadyEvent) {
		ready <- evt
	}, logging.NewNop(), opts...)
	if err != nil {
		t.Fatalf("watcher.New: %v", err)
	}
	return w
}

func TestWatcherEmitsOneEventPerStableFile(t *testing.T) {
	dir := t.TempDir()
	ready := make(chan watcher.FileReadyEvent, 4)

	w := newTestWatcher(t, dir, 0, ready)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	target := filepath.Join(dir, "title_t00.mkv")
	testsupport.WriteFile(t, target, 4096)

	select {
	case evt := <-ready:
		if evt.Path != target {
			t.Fatalf("unexpected path %q", evt.Path)
		}
		if evt.DetectedAt.IsZero() {
			t.Fatal("expected DetectedAt to be set")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no ready event for stable file")
	}

	select {
	case evt := <-ready:
		t.Fatalf("unexpected second event for %q", evt.Path)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherIgnoresOtherExtensions(t *testing.T) {
	dir := t.TempDir()
	ready := make(chan watcher.FileReadyEvent, 1)

	w := newTestWatcher(t, dir, 0, ready)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	testsupport.WriteFile(t, filepath.Join(dir, "notes.txt"), 128)
	testsupport.WriteFile(t, filepath.Join(dir, "partial.mkv.tmp"), 128)

	select {
	case evt := <-ready:
		t.Fatalf("unexpected event for %q", evt.Path)
	case <-time.After(400 * time.Millisecond):
	}
}

func TestWatcherWaitsForLockRelease(t *testing.T) {
	dir := t.TempDir()
	ready := make(chan watcher.FileReadyEvent, 1)

	target := filepath.Join(dir, "movie.mkv")

	w := newTestWatcher(t, dir, 0, ready)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	// Simulate a writer that still holds the file: taking the lock creates
	// the file, so the watcher sees the creation while the lock is held.
	lock := flock.New(target)
	locked, err := lock.TryLock()
	if err != nil || !locked {
		t.Fatalf("TryLock: locked=%v err=%v", locked, err)
	}
	testsupport.WriteFile(t, target, 1024)

	select {
	case evt := <-ready:
		t.Fatalf("file reported ready while still locked: %q", evt.Path)
	case <-time.After(400 * time.Millisecond):
	}

	if err := lock.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}

	select {
	case evt := <-ready:
		if evt.Path != target {
			t.Fatalf("unexpected path %q", evt.Path)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no event after lock release")
	}
}

func TestWatcherReportsProbeTimeout(t *testing.T) {
	dir := t.TempDir()
	ready := make(chan watcher.FileReadyEvent, 1)
	timedOut := make(chan string, 1)

	target := filepath.Join(dir, "stalled.mkv")

	w := newTestWatcher(t, dir, 200*time.Millisecond, ready,
		watcher.WithProbeTimeoutFunc(func(path string, waited time.Duration) {
			timedOut <- path
		}))
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	lock := flock.New(target)
	locked, err := lock.TryLock()
	if err != nil || !locked {
		t.Fatalf("TryLock: locked=%v err=%v", locked, err)
	}
	defer lock.Unlock()
	testsupport.WriteFile(t, target, 512)

	select {
	case path := <-timedOut:
		if path != target {
			t.Fatalf("unexpected timeout path %q", path)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("expected probe timeout report")
	}

	select {
	case evt := <-ready:
		t.Fatalf("unexpected ready event after timeout: %q", evt.Path)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherStartRequiresDirectory(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does-not-exist")
	ready := make(chan watcher.FileReadyEvent, 1)

	w := newTestWatcher(t, missing, 0, ready)
	if err := w.Start(context.Background()); err == nil {
		w.Stop()
		t.Fatal("expected error for missing directory")
	}
}

func TestWatcherStopDuringProbe(t *testing.T) {
	dir := t.TempDir()
	ready := make(chan watcher.FileReadyEvent, 1)

	target := filepath.Join(dir, "held.mkv")

	w := newTestWatcher(t, dir, 0, ready)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	lock := flock.New(target)
	locked, err := lock.TryLock()
	if err != nil || !locked {
		t.Fatalf("TryLock: locked=%v err=%v", locked, err)
	}
	defer lock.Unlock()
	testsupport.WriteFile(t, target, 2048)

	// Let the watcher pick up the creation and enter the probe loop.
	time.Sleep(150 * time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatal("Stop did not return while probe was in flight")
	}

	// Stop again must be a no-op.
	w.Stop()

	select {
	case evt := <-ready:
		t.Fatalf("unexpected event after stop: %q", evt.Path)
	default:
	}
}

func TestWatcherRejectsBadRequests(t *testing.T) {
	if _, err := watcher.New(watcher.Request{}, func(watcher.FileReadyEvent) {}, logging.NewNop()); err == nil {
		t.Fatal("expected error for empty directory")
	}
	if _, err := watcher.New(watcher.Request{Dir: os.TempDir()}, nil, logging.NewNop()); err == nil {
		t.Fatal("expected error for nil callback")
	}
}
