package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"ripwatch/internal/config"
)

const userAgent = "ripwatch/0.1.0"

// Service defines the notification surface exposed to session components.
type Service interface {
	NotifyDiscDetected(ctx context.Context, title string) error
	NotifyRipStarted(ctx context.Context, title string) error
	NotifyRipCompleted(ctx context.Context, title string) error
	NotifyFileDetected(ctx context.Context, path string) error
	NotifyTranscodeCompleted(ctx context.Context, outputPath string) error
	NotifyTranscodeFailed(ctx context.Context, inputPath, detail string) error
	NotifySessionCompleted(ctx context.Context, title string, completed, failed int, duration time.Duration) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyDiscDetected(ctx context.Context, title string) error {
	return n.send(ctx, payload{
		title:   "ripwatch - Disc Detected",
		message: fmt.Sprintf("Disc detected: %s", strings.TrimSpace(title)),
		tags:    []string{"ripwatch", "disc", "detected"},
	})
}

func (n *ntfyService) NotifyRipStarted(ctx context.Context, title string) error {
	return n.send(ctx, payload{
		title:   "ripwatch - Rip Started",
		message: fmt.Sprintf("Started ripping: %s", strings.TrimSpace(title)),
		tags:    []string{"ripwatch", "rip", "started"},
	})
}

func (n *ntfyService) NotifyRipCompleted(ctx context.Context, title string) error {
	return n.send(ctx, payload{
		title:   "ripwatch - Rip Complete",
		message: fmt.Sprintf("Rip complete: %s", strings.TrimSpace(title)),
		tags:    []string{"ripwatch", "rip", "completed"},
	})
}

func (n *ntfyService) NotifyFileDetected(ctx context.Context, path string) error {
	return n.send(ctx, payload{
		title:   "ripwatch - File Ready",
		message: fmt.Sprintf("Converting: %s", filepath.Base(path)),
		tags:    []string{"ripwatch", "watcher", "detected"},
	})
}

func (n *ntfyService) NotifyTranscodeCompleted(ctx context.Context, outputPath string) error {
	return n.send(ctx, payload{
		title:   "ripwatch - Converted",
		message: fmt.Sprintf("Conversion complete: %s", filepath.Base(outputPath)),
		tags:    []string{"ripwatch", "transcode", "completed"},
	})
}

func (n *ntfyService) NotifyTranscodeFailed(ctx context.Context, inputPath, detail string) error {
	message := fmt.Sprintf("Conversion failed: %s", filepath.Base(inputPath))
	if detail = strings.TrimSpace(detail); detail != "" {
		message = fmt.Sprintf("%s\n%s", message, detail)
	}
	return n.send(ctx, payload{
		title:    "ripwatch - Conversion Failed",
		message:  message,
		tags:     []string{"ripwatch", "transcode", "failed"},
		priority: "high",
	})
}

func (n *ntfyService) NotifySessionCompleted(ctx context.Context, title string, completed, failed int, duration time.Duration) error {
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}

	var heading, message string
	if failed == 0 {
		heading = "ripwatch - Session Complete"
		message = fmt.Sprintf("%s: %d files converted in %s", strings.TrimSpace(title), completed, duration)
	} else {
		heading = "ripwatch - Session Complete (with errors)"
		message = fmt.Sprintf("%s: %d converted, %d failed in %s", strings.TrimSpace(title), completed, failed, duration)
	}
	return n.send(ctx, payload{
		title:   heading,
		message: message,
		tags:    []string{"ripwatch", "session", "completed"},
	})
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}
	return n.send(ctx, payload{
		title:    "ripwatch - Error",
		message:  builder.String(),
		tags:     []string{"ripwatch", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "ripwatch - Test",
		message:  "Notification system test",
		tags:     []string{"ripwatch", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyDiscDetected(context.Context, string) error         { return nil }
func (noopService) NotifyRipStarted(context.Context, string) error           { return nil }
func (noopService) NotifyRipCompleted(context.Context, string) error         { return nil }
func (noopService) NotifyFileDetected(context.Context, string) error         { return nil }
func (noopService) NotifyTranscodeCompleted(context.Context, string) error   { return nil }
func (noopService) NotifyTranscodeFailed(context.Context, string, string) error {
	return nil
}
func (noopService) NotifySessionCompleted(context.Context, string, int, int, time.Duration) error {
	return nil
}
func (noopService) NotifyError(context.Context, error, string) error { return nil }
func (noopService) TestNotification(context.Context) error           { return nil }
