package makemkv

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ProgressUpdate captures MakeMKV progress output.
type ProgressUpdate struct {
	Percent float64
	Message string
}

// Ripper defines the behaviour required by the rip launcher.
type Ripper interface {
	Rip(ctx context.Context, driveIndex int, destDir string, progress func(ProgressUpdate)) error
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onLine func(string)) error
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Client wraps MakeMKV CLI interactions.
type Client struct {
	binary     string
	ripTimeout time.Duration
	exec       Executor
}

// New constructs a MakeMKV client.
func New(binary string, ripTimeout time.Duration, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("makemkv binary required")
	}
	client := &Client{
		binary:     binary,
		ripTimeout: ripTimeout,
		exec:       commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Rip executes a whole-disc rip into destDir.
func (c *Client) Rip(ctx context.Context, driveIndex int, destDir string, progress func(ProgressUpdate)) error {
	if destDir == "" {
		return errors.New("destination directory required")
	}
	if driveIndex < 0 {
		return fmt.Errorf("invalid drive index %d", driveIndex)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	ripCtx := ctx
	if c.ripTimeout > 0 {
		var cancel context.CancelFunc
		ripCtx, cancel = context.WithTimeout(ctx, c.ripTimeout)
		defer cancel()
	}

	args := []string{"--robot"}
	if progress != nil {
		args = append(args, "--progress=-same")
	}
	args = append(args, "mkv", fmt.Sprintf("disc:%d", driveIndex), "all", destDir)

	err := c.exec.Run(ripCtx, c.binary, args, func(line string) {
		if progress == nil {
			return
		}
		if update, ok := parseProgress(line); ok {
			progress(update)
		}
	})
	if err != nil {
		return fmt.Errorf("makemkv rip: %w", err)
	}
	return nil
}

// parseProgress interprets --robot PRGV lines: PRGV:current,total,max.
func parseProgress(line string) (ProgressUpdate, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "PRGV:") {
		return ProgressUpdate{}, false
	}
	parts := strings.Split(strings.TrimPrefix(line, "PRGV:"), ",")
	if len(parts) < 3 {
		return ProgressUpdate{}, false
	}
	total, totalErr := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	maximum, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil || maximum <= 0 {
		return ProgressUpdate{}, false
	}
	if totalErr != nil {
		total = 0
	}
	percent := (total / maximum) * 100
	return ProgressUpdate{
		Percent: percent,
		Message: fmt.Sprintf("Ripping %.1f%%", percent),
	}, true
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onLine func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			if onLine != nil {
				onLine(scanner.Text())
			}
		}
	}

	wg.Add(2)
	go scan(stdout)
	go scan(stderr)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait command: %w", err)
	}
	return nil
}

var _ Ripper = (*Client)(nil)
