package transcode_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ripwatch/internal/logging"
	"ripwatch/internal/services/ffmpeg"
	"ripwatch/internal/testsupport"
	"ripwatch/internal/transcode"
)

type fakeClient struct {
	err      error
	lastIn   string
	lastOut  string
	progress []ffmpeg.ProgressUpdate
}

func (f *fakeClient) Transcode(ctx context.Context, inputPath, outputPath string, progress func(ffmpeg.ProgressUpdate)) error {
	f.lastIn = inputPath
	f.lastOut = outputPath
	for _, update := range f.progress {
		if progress != nil {
			progress(update)
		}
	}
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(outputPath, []byte("converted"), 0o644)
}

func TestProcessWritesOutputIntoOutputDir(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	client := &fakeClient{}
	tr := transcode.NewWithClient(cfg, logging.NewNop(), client)

	input := filepath.Join(cfg.Paths.RipsDir, "movie.mkv")
	testsupport.WriteFile(t, input, 512)

	outcome := tr.Process(context.Background(), input)
	if !outcome.Succeeded {
		t.Fatalf("expected success, got %#v", outcome)
	}
	if filepath.Dir(outcome.OutputPath) != cfg.Paths.OutputDir {
		t.Fatalf("output %q not in output dir %q", outcome.OutputPath, cfg.Paths.OutputDir)
	}
	name := filepath.Base(outcome.OutputPath)
	if !strings.HasPrefix(name, "movie_") || !strings.HasSuffix(name, ".mov") {
		t.Fatalf("unexpected output name %q", name)
	}
	if _, err := os.Stat(outcome.OutputPath); err != nil {
		t.Fatalf("output file missing: %v", err)
	}
	// Conversion must happen in the work directory, not in place.
	if filepath.Dir(client.lastOut) != filepath.Join(cfg.Paths.OutputDir, ".work") {
		t.Fatalf("conversion ran outside work dir: %q", client.lastOut)
	}
}

func TestProcessReportsClientFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	client := &fakeClient{err: errors.New("muxer exploded")}
	tr := transcode.NewWithClient(cfg, logging.NewNop(), client)

	input := filepath.Join(cfg.Paths.RipsDir, "movie.mkv")
	testsupport.WriteFile(t, input, 512)

	outcome := tr.Process(context.Background(), input)
	if outcome.Succeeded {
		t.Fatal("expected failure outcome")
	}
	if !strings.Contains(outcome.ErrorDetail, "muxer exploded") {
		t.Fatalf("error detail %q does not mention cause", outcome.ErrorDetail)
	}

	entries, err := os.ReadDir(cfg.Paths.OutputDir)
	if err != nil {
		t.Fatalf("read output dir: %v", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			t.Fatalf("unexpected file in output dir after failure: %s", entry.Name())
		}
	}
}
