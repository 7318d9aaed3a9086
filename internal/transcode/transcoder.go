package transcode

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"ripwatch/internal/config"
	"ripwatch/internal/fileutil"
	"ripwatch/internal/logging"
	"ripwatch/internal/services"
	"ripwatch/internal/services/ffmpeg"
)

// workDirName holds in-progress conversions under the output directory.
const workDirName = ".work"

// Outcome reports the result of one conversion.
type Outcome struct {
	InputPath   string
	OutputPath  string
	Succeeded   bool
	ErrorDetail string
}

// Transcoder runs conversions for detected files, one at a time.
type Transcoder struct {
	cfg    *config.Config
	logger *slog.Logger
	client ffmpeg.Transcoder
	now    func() time.Time
}

// New constructs the transcoder using the configured ffmpeg client.
func New(cfg *config.Config, logger *slog.Logger) (*Transcoder, error) {
	client, err := ffmpeg.New(ffmpeg.Options{
		Binary:     cfg.Transcode.Binary,
		VideoCodec: cfg.Transcode.VideoCodec,
		Profile:    cfg.Transcode.Profile,
		Timeout:    time.Duration(cfg.Transcode.Timeout) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("ffmpeg client: %w", err)
	}
	return NewWithClient(cfg, logger, client), nil
}

// NewWithClient allows injecting the conversion client (used in tests).
func NewWithClient(cfg *config.Config, logger *slog.Logger, client ffmpeg.Transcoder) *Transcoder {
	return &Transcoder{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "transcoder"),
		client: client,
		now:    time.Now,
	}
}

// Process converts inputPath and returns the outcome. Conversion failures
// are captured in the outcome, never returned as an error; only the caller
// decides whether the session continues.
func (t *Transcoder) Process(ctx context.Context, inputPath string) Outcome {
	logger := logging.WithContext(ctx, t.logger)

	startedAt := t.now()
	outputName := OutputName(inputPath, t.cfg.TargetExtension(), startedAt)
	outputPath := filepath.Join(t.cfg.Paths.OutputDir, outputName)
	workPath := filepath.Join(t.cfg.Paths.OutputDir, workDirName, outputName)

	logger.Info("starting conversion",
		logging.String("input", inputPath),
		logging.String("output", outputPath),
	)

	if err := os.MkdirAll(filepath.Dir(workPath), 0o755); err != nil {
		return t.failure(logger, inputPath, outputPath,
			services.Wrap(services.ErrConfiguration, "transcode", "ensure work dir",
				"output directory is not writable", err))
	}

	lastLogged := time.Duration(-1)
	progress := func(update ffmpeg.ProgressUpdate) {
		if update.OutTime <= 0 {
			return
		}
		// Progress lines arrive several times a second; sample to one per minute of media.
		if update.OutTime-lastLogged < time.Minute {
			return
		}
		lastLogged = update.OutTime
		logger.Debug("conversion progress",
			logging.String("input", inputPath),
			logging.Duration("out_time", update.OutTime),
		)
	}

	if err := t.client.Transcode(ctx, inputPath, workPath, progress); err != nil {
		_ = os.Remove(workPath)
		return t.failure(logger, inputPath, outputPath,
			services.Wrap(services.ErrExternalTool, "transcode", "ffmpeg", "conversion failed", err))
	}

	if err := fileutil.MoveFile(workPath, outputPath); err != nil {
		_ = os.Remove(workPath)
		return t.failure(logger, inputPath, outputPath,
			services.Wrap(services.ErrTransient, "transcode", "finalize output",
				"could not move converted file into place", err))
	}

	logger.Info("conversion completed",
		logging.String("input", inputPath),
		logging.String("output", outputPath),
		logging.Duration("elapsed", t.now().Sub(startedAt)),
	)
	return Outcome{InputPath: inputPath, OutputPath: outputPath, Succeeded: true}
}

func (t *Transcoder) failure(logger *slog.Logger, inputPath, outputPath string, err error) Outcome {
	logger.Error("conversion failed",
		logging.String("input", inputPath),
		logging.Error(err),
	)
	return Outcome{
		InputPath:   inputPath,
		OutputPath:  outputPath,
		ErrorDetail: err.Error(),
	}
}
