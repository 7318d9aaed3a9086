package status_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"ripwatch/internal/status"
)

func TestPublishAssignsSequenceAndTimestamp(t *testing.T) {
	hub := status.NewHub(8)
	hub.Publish(status.Event{Type: status.EventFileDetected, Path: "/rips/a.mkv"})
	hub.Publish(status.Event{Type: status.EventTranscodeStarted, Path: "/rips/a.mkv"})

	events, next, err := hub.Fetch(context.Background(), 0, 0, false)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(events) != 2 || next != 2 {
		t.Fatalf("unexpected fetch result: %d events, next=%d", len(events), next)
	}
	if events[0].Sequence != 1 || events[1].Sequence != 2 {
		t.Fatalf("unexpected sequences: %d, %d", events[0].Sequence, events[1].Sequence)
	}
	if events[0].Timestamp.IsZero() {
		t.Fatal("expected timestamp to be assigned")
	}
}

func TestFetchHonorsCursor(t *testing.T) {
	hub := status.NewHub(8)
	for i := 0; i < 5; i++ {
		hub.Publish(status.Event{Type: status.EventFileDetected, Path: fmt.Sprintf("/rips/%d.mkv", i)})
	}

	events, next, err := hub.Fetch(context.Background(), 3, 0, false)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(events) != 2 || events[0].Sequence != 4 || next != 5 {
		t.Fatalf("unexpected cursor fetch: %#v next=%d", events, next)
	}
}

func TestFetchLimitAdvancesCursorToLastReturned(t *testing.T) {
	hub := status.NewHub(8)
	for i := 0; i < 5; i++ {
		hub.Publish(status.Event{Type: status.EventFileDetected, Path: fmt.Sprintf("/rips/%d.mkv", i)})
	}

	events, next, err := hub.Fetch(context.Background(), 0, 2, false)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(events) != 2 || next != 2 {
		t.Fatalf("unexpected truncated fetch: %d events, next=%d", len(events), next)
	}

	rest, next, err := hub.Fetch(context.Background(), next, 0, false)
	if err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	if len(rest) != 3 || rest[0].Sequence != 3 || next != 5 {
		t.Fatalf("unexpected remainder: %#v next=%d", rest, next)
	}
}

func TestBufferEvictsOldest(t *testing.T) {
	hub := status.NewHub(3)
	for i := 0; i < 5; i++ {
		hub.Publish(status.Event{Type: status.EventFileDetected})
	}

	if first := hub.FirstSequence(); first != 3 {
		t.Fatalf("expected first buffered sequence 3, got %d", first)
	}
	events, _, err := hub.Fetch(context.Background(), 0, 0, false)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(events) != 3 || events[0].Sequence != 3 {
		t.Fatalf("unexpected buffer contents: %#v", events)
	}
}

func TestFetchWaitWakesOnPublish(t *testing.T) {
	hub := status.NewHub(8)

	var wg sync.WaitGroup
	wg.Add(1)
	got := make(chan []status.Event, 1)
	go func() {
		defer wg.Done()
		events, _, err := hub.Fetch(context.Background(), 0, 0, true)
		if err != nil {
			t.Errorf("Fetch: %v", err)
			return
		}
		got <- events
	}()

	time.Sleep(50 * time.Millisecond)
	hub.Publish(status.Event{Type: status.EventSessionStarted})

	select {
	case events := <-got:
		if len(events) != 1 || events[0].Type != status.EventSessionStarted {
			t.Fatalf("unexpected events: %#v", events)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiting Fetch never woke")
	}
	wg.Wait()
}

func TestFetchWaitStopsOnContextCancel(t *testing.T) {
	hub := status.NewHub(8)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, _, err := hub.Fetch(ctx, 0, 0, true)
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected context error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Fetch did not observe cancellation")
	}
}

func TestTailReturnsMostRecent(t *testing.T) {
	hub := status.NewHub(8)
	for i := 0; i < 4; i++ {
		hub.Publish(status.Event{Type: status.EventFileDetected})
	}

	events, next := hub.Tail(2)
	if len(events) != 2 || events[0].Sequence != 3 || events[1].Sequence != 4 {
		t.Fatalf("unexpected tail: %#v", events)
	}
	if next != 4 {
		t.Fatalf("unexpected next cursor %d", next)
	}
}
