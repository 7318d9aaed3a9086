package ipc_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ripwatch/internal/config"
	"ripwatch/internal/daemon"
	"ripwatch/internal/ipc"
	"ripwatch/internal/logging"
	"ripwatch/internal/notifications"
	"ripwatch/internal/queue"
	"ripwatch/internal/ripping"
	"ripwatch/internal/services/ffmpeg"
	"ripwatch/internal/session"
	"ripwatch/internal/status"
	"ripwatch/internal/testsupport"
	"ripwatch/internal/transcode"
)

type stubConverter struct{}

func (stubConverter) Transcode(ctx context.Context, inputPath, outputPath string, progress func(ffmpeg.ProgressUpdate)) error {
	return os.WriteFile(outputPath, []byte("converted"), 0o644)
}

type harness struct {
	cfg    *config.Config
	store  *queue.Store
	hub    *status.Hub
	daemon *daemon.Daemon
	client *ipc.Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	hub := status.NewHub(0)

	sessions := session.NewManagerWithDependencies(
		cfg,
		store,
		logger,
		hub,
		notifications.NewService(cfg),
		transcode.NewWithClient(cfg, logger, stubConverter{}),
		ripping.NewWithDependencies(cfg, logger, nil, nil),
	)
	d, err := daemon.New(cfg, store, logger, sessions, hub)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(d.Stop)

	socketPath := filepath.Join(testsupport.BaseDir(cfg), "ripwatch.sock")
	server, err := ipc.NewServer(context.Background(), socketPath, d, logger)
	if err != nil {
		t.Fatalf("ipc.NewServer: %v", err)
	}
	server.Serve()
	t.Cleanup(server.Close)

	client, err := ipc.Dial(socketPath)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return &harness{cfg: cfg, store: store, hub: hub, daemon: d, client: client}
}

func TestStatusRoundTrip(t *testing.T) {
	h := newHarness(t)

	resp, err := h.client.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !resp.Running {
		t.Fatal("daemon should report running")
	}
	if resp.PID != os.Getpid() {
		t.Fatalf("unexpected pid %d", resp.PID)
	}
	if resp.SessionOn {
		t.Fatal("no session should be running yet")
	}
	if resp.QueueDBPath != h.store.Path() {
		t.Fatalf("queue db path %q, want %q", resp.QueueDBPath, h.store.Path())
	}
	if len(resp.Dependencies) == 0 {
		t.Fatal("expected dependency statuses")
	}
	for _, want := range []string{"detected", "transcoding", "completed", "failed"} {
		if _, ok := resp.QueueStats[want]; !ok {
			t.Fatalf("queue stats missing %q: %v", want, resp.QueueStats)
		}
	}
}

func TestStartAndStopSessionOverIPC(t *testing.T) {
	h := newHarness(t)

	start, err := h.client.StartSession(false)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if !start.Started {
		t.Fatalf("session did not start: %s", start.Message)
	}

	again, err := h.client.StartSession(false)
	if err != nil {
		t.Fatalf("second StartSession: %v", err)
	}
	if again.Started || !strings.Contains(again.Message, "already running") {
		t.Fatalf("expected already-running refusal, got %+v", again)
	}

	stop, err := h.client.StopSession()
	if err != nil {
		t.Fatalf("StopSession: %v", err)
	}
	if !stop.Stopped {
		t.Fatal("session did not stop")
	}

	resp, err := h.client.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if resp.SessionOn {
		t.Fatal("session should have stopped")
	}
}

func TestQueueOperationsOverIPC(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	item := testsupport.NewItem(t, h.store, "sess-1", "/rips/one.mkv")
	if err := h.store.MarkTranscoding(ctx, item.ID, time.Now().UTC()); err != nil {
		t.Fatalf("mark transcoding: %v", err)
	}
	done := testsupport.NewItem(t, h.store, "sess-1", "/rips/two.mkv")
	if err := h.store.MarkTranscoding(ctx, done.ID, time.Now().UTC()); err != nil {
		t.Fatalf("mark transcoding: %v", err)
	}
	if err := h.store.MarkCompleted(ctx, done.ID, "/out/two.mov", time.Now().UTC()); err != nil {
		t.Fatalf("mark completed: %v", err)
	}

	list, err := h.client.QueueList(nil)
	if err != nil {
		t.Fatalf("QueueList: %v", err)
	}
	if len(list.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(list.Items))
	}

	filtered, err := h.client.QueueList([]string{"completed", "bogus"})
	if err != nil {
		t.Fatalf("filtered QueueList: %v", err)
	}
	if len(filtered.Items) != 1 || filtered.Items[0].ID != done.ID {
		t.Fatalf("unexpected filtered items %+v", filtered.Items)
	}

	describe, err := h.client.QueueDescribe(done.ID)
	if err != nil {
		t.Fatalf("QueueDescribe: %v", err)
	}
	if describe.Item.OutputPath != "/out/two.mov" {
		t.Fatalf("unexpected item %+v", describe.Item)
	}
	if _, err := h.client.QueueDescribe(0); err == nil {
		t.Fatal("expected error for invalid id")
	}

	health, err := h.client.QueueHealth()
	if err != nil {
		t.Fatalf("QueueHealth: %v", err)
	}
	if health.Total != 2 || health.Transcoding != 1 || health.Completed != 1 {
		t.Fatalf("unexpected health %+v", health)
	}

	reset, err := h.client.QueueReset()
	if err != nil {
		t.Fatalf("QueueReset: %v", err)
	}
	if reset.Updated != 1 {
		t.Fatalf("expected 1 reset item, got %d", reset.Updated)
	}

	cleared, err := h.client.QueueClearCompleted()
	if err != nil {
		t.Fatalf("QueueClearCompleted: %v", err)
	}
	if cleared.Removed != 1 {
		t.Fatalf("expected 1 removed item, got %d", cleared.Removed)
	}

	all, err := h.client.QueueClear()
	if err != nil {
		t.Fatalf("QueueClear: %v", err)
	}
	if all.Removed != 1 {
		t.Fatalf("expected 1 remaining item removed, got %d", all.Removed)
	}
}

func TestEventsCursorOverIPC(t *testing.T) {
	h := newHarness(t)

	h.hub.Publish(status.Event{Type: status.EventFileDetected, Path: "/rips/one.mkv"})
	h.hub.Publish(status.Event{Type: status.EventTranscodeCompleted, Path: "/out/one.mov"})

	first, err := h.client.Events(ipc.EventsRequest{Since: 0, Limit: 10})
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(first.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(first.Events))
	}

	second, err := h.client.Events(ipc.EventsRequest{Since: first.Next, Limit: 10})
	if err != nil {
		t.Fatalf("Events after cursor: %v", err)
	}
	if len(second.Events) != 0 {
		t.Fatalf("expected no new events, got %d", len(second.Events))
	}

	waited, err := h.client.Events(ipc.EventsRequest{Since: first.Next, Limit: 10, Wait: true, WaitMillis: 100})
	if err != nil {
		t.Fatalf("waiting Events: %v", err)
	}
	if len(waited.Events) != 0 {
		t.Fatalf("expected wait timeout with no events, got %d", len(waited.Events))
	}
}

func TestNotificationWithoutTopicOverIPC(t *testing.T) {
	h := newHarness(t)

	resp, err := h.client.TestNotification()
	if err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	if resp.Sent || !strings.Contains(resp.Message, "not configured") {
		t.Fatalf("expected not-configured response, got %+v", resp)
	}
}
