package config

const (
	defaultRipsDir       = "~/.local/share/ripwatch/rips"
	defaultOutputDir     = "~/converted"
	defaultLogDir        = "~/.local/share/ripwatch/logs"
	defaultOpticalDrive  = "/dev/sr0"
	defaultMakemkvBinary = "makemkvcon"
	defaultRipTimeout    = 7200
	defaultFFmpegBinary  = "ffmpeg"
	defaultVideoCodec    = "prores"
	defaultProfile       = 3
	defaultTargetExt     = "mov"
	defaultWatchExt      = "mkv"
	defaultPollInterval  = 10
	defaultStableTimeout = 1800
	defaultNtfyTimeout   = 10
	defaultLogFormat     = "console"
	defaultLogLevel      = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			RipsDir:   defaultRipsDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
		},
		MakeMKV: MakeMKV{
			Binary:       defaultMakemkvBinary,
			DriveIndex:   0,
			OpticalDrive: defaultOpticalDrive,
			RipTimeout:   defaultRipTimeout,
			EjectAfter:   true,
		},
		Transcode: Transcode{
			Binary:          defaultFFmpegBinary,
			VideoCodec:      defaultVideoCodec,
			Profile:         defaultProfile,
			TargetExtension: defaultTargetExt,
		},
		Watcher: Watcher{
			Extension:     defaultWatchExt,
			PollInterval:  defaultPollInterval,
			StableTimeout: defaultStableTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
