package ffmpeg_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"ripwatch/internal/services/ffmpeg"
)

type fakeExecutor struct {
	binary      string
	args        []string
	stdoutLines []string
	stderrLines []string
	err         error
}

func (f *fakeExecutor) Run(ctx context.Context, binary string, args []string, onStdout, onStderr func(string)) error {
	f.binary = binary
	f.args = args
	for _, line := range f.stdoutLines {
		onStdout(line)
	}
	for _, line := range f.stderrLines {
		onStderr(line)
	}
	return f.err
}

func newClient(t *testing.T, exec ffmpeg.Executor) *ffmpeg.Client {
	t.Helper()
	client, err := ffmpeg.New(ffmpeg.Options{
		Binary:     "ffmpeg",
		VideoCodec: "prores",
		Profile:    3,
	}, ffmpeg.WithExecutor(exec))
	if err != nil {
		t.Fatalf("ffmpeg.New: %v", err)
	}
	return client
}

func TestTranscodeBuildsProResCommand(t *testing.T) {
	exec := &fakeExecutor{}
	client := newClient(t, exec)

	if err := client.Transcode(context.Background(), "/rips/in.mkv", "/out/.work/out.mov", nil); err != nil {
		t.Fatalf("Transcode: %v", err)
	}

	got := strings.Join(exec.args, " ")
	want := "-hide_banner -nostdin -i /rips/in.mkv -c:v prores -profile:v 3 -progress pipe:1 -y /out/.work/out.mov"
	if got != want {
		t.Fatalf("args = %q, want %q", got, want)
	}
	if exec.binary != "ffmpeg" {
		t.Fatalf("unexpected binary %q", exec.binary)
	}
}

func TestTranscodeForwardsProgress(t *testing.T) {
	exec := &fakeExecutor{
		stdoutLines: []string{
			"frame=100",
			"out_time_us=60000000",
			"speed=4.2x",
			"progress=continue",
			"out_time_us=120000000",
			"progress=end",
		},
	}
	client := newClient(t, exec)

	var updates []ffmpeg.ProgressUpdate
	if err := client.Transcode(context.Background(), "in.mkv", "out.mov", func(update ffmpeg.ProgressUpdate) {
		updates = append(updates, update)
	}); err != nil {
		t.Fatalf("Transcode: %v", err)
	}

	if len(updates) != 4 {
		t.Fatalf("expected 4 updates, got %d: %#v", len(updates), updates)
	}
	if updates[0].OutTime != time.Minute {
		t.Fatalf("unexpected out time %s", updates[0].OutTime)
	}
	if updates[1].Speed != "4.2x" {
		t.Fatalf("unexpected speed %q", updates[1].Speed)
	}
	if !updates[3].Done {
		t.Fatal("expected final update to be done")
	}
}

func TestTranscodeErrorCarriesStderrTail(t *testing.T) {
	exec := &fakeExecutor{
		stderrLines: []string{
			"Input #0, matroska,webm, from 'in.mkv':",
			"Error while opening encoder",
		},
		err: errors.New("exit status 1"),
	}
	client := newClient(t, exec)

	err := client.Transcode(context.Background(), "in.mkv", "out.mov", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Error while opening encoder") {
		t.Fatalf("error %q missing ffmpeg diagnostics", err)
	}
}

func TestTranscodeValidatesPaths(t *testing.T) {
	client := newClient(t, &fakeExecutor{})
	if err := client.Transcode(context.Background(), "", "out.mov", nil); err == nil {
		t.Fatal("expected error for empty input")
	}
	if err := client.Transcode(context.Background(), "in.mkv", "", nil); err == nil {
		t.Fatal("expected error for empty output")
	}
}

func TestNewRequiresBinary(t *testing.T) {
	if _, err := ffmpeg.New(ffmpeg.Options{}); err == nil {
		t.Fatal("expected error for missing binary")
	}
}
