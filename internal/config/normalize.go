package config

import "strings"

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTools()
	c.normalizeWatcher()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	for _, field := range []*string{&c.Paths.RipsDir, &c.Paths.OutputDir, &c.Paths.LogDir} {
		trimmed := strings.TrimSpace(*field)
		if trimmed == "" {
			*field = trimmed
			continue
		}
		expanded, err := expandPath(trimmed)
		if err != nil {
			return err
		}
		*field = expanded
	}
	return nil
}

func (c *Config) normalizeTools() {
	c.MakeMKV.Binary = strings.TrimSpace(c.MakeMKV.Binary)
	if c.MakeMKV.Binary == "" {
		c.MakeMKV.Binary = defaultMakemkvBinary
	}
	c.MakeMKV.OpticalDrive = strings.TrimSpace(c.MakeMKV.OpticalDrive)

	c.Transcode.Binary = strings.TrimSpace(c.Transcode.Binary)
	if c.Transcode.Binary == "" {
		c.Transcode.Binary = defaultFFmpegBinary
	}
	c.Transcode.VideoCodec = strings.TrimSpace(c.Transcode.VideoCodec)
	if c.Transcode.VideoCodec == "" {
		c.Transcode.VideoCodec = defaultVideoCodec
	}
	c.Transcode.TargetExtension = strings.TrimPrefix(strings.TrimSpace(c.Transcode.TargetExtension), ".")
	if c.Transcode.TargetExtension == "" {
		c.Transcode.TargetExtension = defaultTargetExt
	}
}

func (c *Config) normalizeWatcher() {
	c.Watcher.Extension = strings.TrimPrefix(strings.TrimSpace(c.Watcher.Extension), ".")
	if c.Watcher.Extension == "" {
		c.Watcher.Extension = defaultWatchExt
	}
	if c.Watcher.PollInterval <= 0 {
		c.Watcher.PollInterval = defaultPollInterval
	}
	if c.Watcher.StableTimeout < 0 {
		c.Watcher.StableTimeout = 0
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
