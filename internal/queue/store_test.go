package queue_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"ripwatch/internal/queue"
	"ripwatch/internal/testsupport"
)

func TestOpenCreatesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item, err := store.NewItem(ctx, "session-1", "/rips/movie.mkv", time.Now().UTC())
	if err != nil {
		t.Fatalf("NewItem failed: %v", err)
	}
	if item.ID == 0 {
		t.Fatal("expected item ID to be assigned")
	}
	if item.Status != queue.StatusDetected {
		t.Fatalf("expected detected status, got %s", item.Status)
	}

	fetched, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.SourcePath != "/rips/movie.mkv" || fetched.SessionID != "session-1" {
		t.Fatalf("unexpected fetched item: %#v", fetched)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if _, err := store.GetByID(context.Background(), 42); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLifecycleTransitions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.NewItem(t, store, "session-1", "/rips/a.mkv")

	started := time.Now().UTC()
	if err := store.MarkTranscoding(ctx, item.ID, started); err != nil {
		t.Fatalf("MarkTranscoding: %v", err)
	}
	fetched, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if fetched.Status != queue.StatusTranscoding {
		t.Fatalf("expected transcoding, got %s", fetched.Status)
	}
	if fetched.StartedAt.IsZero() {
		t.Fatal("expected StartedAt to be recorded")
	}

	if err := store.MarkCompleted(ctx, item.ID, "/out/a_20240301102030.mov", time.Now().UTC()); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	fetched, err = store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !fetched.Succeeded() {
		t.Fatalf("expected completed item, got %s", fetched.Status)
	}
	if fetched.OutputPath == "" || fetched.FinishedAt.IsZero() {
		t.Fatalf("completed item missing output metadata: %#v", fetched)
	}
}

func TestMarkFailedRecordsDetail(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.NewItem(t, store, "session-1", "/rips/b.mkv")

	if err := store.MarkFailed(ctx, item.ID, "ffmpeg exited with status 1", time.Now().UTC()); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	fetched, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if fetched.Status != queue.StatusFailed || fetched.ErrorMessage == "" {
		t.Fatalf("unexpected failed item: %#v", fetched)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		testsupport.NewItem(t, store, "session-1", fmt.Sprintf("/rips/file-%d.mkv", i))
	}
	failed := testsupport.NewItem(t, store, "session-1", "/rips/failed.mkv")
	if err := store.MarkFailed(ctx, failed.ID, "boom", time.Now().UTC()); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 items, got %d", len(all))
	}

	failures, err := store.List(ctx, queue.StatusFailed)
	if err != nil {
		t.Fatalf("List(failed): %v", err)
	}
	if len(failures) != 1 || failures[0].ID != failed.ID {
		t.Fatalf("unexpected failed listing: %#v", failures)
	}
}

func TestResetStuckReturnsTranscodingToDetected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	stuck := testsupport.NewItem(t, store, "session-1", "/rips/stuck.mkv")
	if err := store.MarkTranscoding(ctx, stuck.ID, time.Now().UTC()); err != nil {
		t.Fatalf("MarkTranscoding: %v", err)
	}
	done := testsupport.NewItem(t, store, "session-1", "/rips/done.mkv")
	if err := store.MarkCompleted(ctx, done.ID, "/out/done.mov", time.Now().UTC()); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}

	updated, err := store.ResetStuck(ctx)
	if err != nil {
		t.Fatalf("ResetStuck: %v", err)
	}
	if updated != 1 {
		t.Fatalf("expected 1 reset item, got %d", updated)
	}
	fetched, err := store.GetByID(ctx, stuck.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if fetched.Status != queue.StatusDetected {
		t.Fatalf("expected detected after reset, got %s", fetched.Status)
	}
}

func TestHealthCounts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.NewItem(t, store, "session-1", "/rips/one.mkv")
	second := testsupport.NewItem(t, store, "session-1", "/rips/two.mkv")
	if err := store.MarkCompleted(ctx, second.ID, "/out/two.mov", time.Now().UTC()); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Total != 2 || health.Detected != 1 || health.Completed != 1 {
		t.Fatalf("unexpected health summary: %#v", health)
	}
}

func TestClearCompletedKeepsFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	done := testsupport.NewItem(t, store, "session-1", "/rips/done.mkv")
	if err := store.MarkCompleted(ctx, done.ID, "/out/done.mov", time.Now().UTC()); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	failed := testsupport.NewItem(t, store, "session-1", "/rips/failed.mkv")
	if err := store.MarkFailed(ctx, failed.ID, "boom", time.Now().UTC()); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	removed, err := store.ClearCompleted(ctx)
	if err != nil {
		t.Fatalf("ClearCompleted: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	remaining, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != failed.ID {
		t.Fatalf("unexpected remaining items: %#v", remaining)
	}
}

func TestListSessionOrdersAscending(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	first := testsupport.NewItem(t, store, "session-a", "/rips/first.mkv")
	second := testsupport.NewItem(t, store, "session-a", "/rips/second.mkv")
	testsupport.NewItem(t, store, "session-b", "/rips/other.mkv")

	items, err := store.ListSession(ctx, "session-a")
	if err != nil {
		t.Fatalf("ListSession: %v", err)
	}
	if len(items) != 2 || items[0].ID != first.ID || items[1].ID != second.ID {
		t.Fatalf("unexpected session listing: %#v", items)
	}
}
