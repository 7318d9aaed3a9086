package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ProgressUpdate captures ffmpeg progress output.
type ProgressUpdate struct {
	OutTime time.Duration
	Speed   string
	Done    bool
}

// Transcoder defines the behaviour required by the transcode stage.
type Transcoder interface {
	Transcode(ctx context.Context, inputPath, outputPath string, progress func(ProgressUpdate)) error
}

// Options configure the conversion command.
type Options struct {
	Binary     string
	VideoCodec string
	Profile    int
	Timeout    time.Duration
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

// Client wraps ffmpeg CLI interactions.
type Client struct {
	binary  string
	codec   string
	profile int
	timeout time.Duration
	exec    Executor
}

// New constructs an ffmpeg client.
func New(opts Options, options ...Option) (*Client, error) {
	binary := strings.TrimSpace(opts.Binary)
	if binary == "" {
		return nil, errors.New("ffmpeg binary required")
	}
	codec := strings.TrimSpace(opts.VideoCodec)
	if codec == "" {
		codec = "prores"
	}
	client := &Client{
		binary:  binary,
		codec:   codec,
		profile: opts.Profile,
		timeout: opts.Timeout,
		exec:    commandExecutor{},
	}
	for _, opt := range options {
		opt(client)
	}
	return client, nil
}

// Transcode converts inputPath into outputPath. A non-zero exit is returned
// as an error carrying the tail of ffmpeg's diagnostic output.
func (c *Client) Transcode(ctx context.Context, inputPath, outputPath string, progress func(ProgressUpdate)) error {
	if strings.TrimSpace(inputPath) == "" {
		return errors.New("input path required")
	}
	if strings.TrimSpace(outputPath) == "" {
		return errors.New("output path required")
	}

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := []string{
		"-hide_banner", "-nostdin",
		"-i", inputPath,
		"-c:v", c.codec,
		"-profile:v", strconv.Itoa(c.profile),
		"-progress", "pipe:1",
		"-y",
		outputPath,
	}

	tail := newTailBuffer(12)
	onStdout := func(line string) {
		if update, ok := parseProgress(line); ok && progress != nil {
			progress(update)
		}
	}
	onStderr := func(line string) {
		tail.append(line)
	}

	if err := c.exec.Run(runCtx, c.binary, args, onStdout, onStderr); err != nil {
		if detail := tail.String(); detail != "" {
			return fmt.Errorf("ffmpeg transcode: %w: %s", err, detail)
		}
		return fmt.Errorf("ffmpeg transcode: %w", err)
	}
	return nil
}

// parseProgress interprets the key=value lines produced by -progress pipe:1.
// Only a fraction of the keys matter; everything else is skipped.
func parseProgress(line string) (ProgressUpdate, bool) {
	key, value, found := strings.Cut(strings.TrimSpace(line), "=")
	if !found {
		return ProgressUpdate{}, false
	}
	value = strings.TrimSpace(value)
	switch key {
	case "out_time_us":
		us, err := strconv.ParseInt(value, 10, 64)
		if err != nil || us < 0 {
			return ProgressUpdate{}, false
		}
		return ProgressUpdate{OutTime: time.Duration(us) * time.Microsecond}, true
	case "speed":
		return ProgressUpdate{Speed: value}, true
	case "progress":
		return ProgressUpdate{Done: value == "end"}, value == "end"
	default:
		return ProgressUpdate{}, false
	}
}

type tailBuffer struct {
	limit int
	lines []string
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (b *tailBuffer) append(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	b.lines = append(b.lines, line)
	if len(b.lines) > b.limit {
		b.lines = b.lines[len(b.lines)-b.limit:]
	}
}

func (b *tailBuffer) String() string {
	return strings.Join(b.lines, "; ")
}

var _ Transcoder = (*Client)(nil)
