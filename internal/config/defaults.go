package config

const (
	defaultStateDir            = "~/.local/share/hopper"
	defaultOutputDir           = "~/converted"
	defaultLogDir              = "~/.local/share/hopper/logs"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultStabilityInterval   = 2
	defaultStabilitySamples    = 3
	defaultStabilityTimeout    = 900
	defaultWorkerCount         = 2
	defaultQueuePollInterval   = 5
	defaultShutdownGrace       = 30
	defaultProbeTimeout        = 15
	defaultContainer           = "mkv"
	defaultAudioCodec          = "copy"
	defaultAudioBitrate        = "192k"
	defaultTranscodeTimeout    = 7200
	defaultMaxRetries          = 3
	defaultRetryDelay          = 60
	defaultRetryBackoff        = "fixed"
	defaultRetryMaxDelay       = 3600
	defaultLockStaleAfter      = 86400
	defaultNotifyTimeout       = 10
	defaultEventSubjectPrefix  = "hopper.jobs"
	defaultEventConnectTimeout = 5
	defaultThumbnailOffset     = 10
	defaultThumbnailMaxWidth   = 640
)

func defaultWatchPatterns() []string {
	return []string{"*.mkv", "*.mp4", "*.m4v", "*.avi", "*.mov", "*.ts", "*.m2ts", "*.webm", "*.wmv", "*.mpg", "*.mpeg"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:  defaultStateDir,
			OutputDir: defaultOutputDir,
		},
		Stability: Stability{
			PollInterval:    defaultStabilityInterval,
			RequiredSamples: defaultStabilitySamples,
			Timeout:         defaultStabilityTimeout,
		},
		Workers: Workers{
			Count:             defaultWorkerCount,
			QueuePollInterval: defaultQueuePollInterval,
			ShutdownGrace:     defaultShutdownGrace,
		},
		Encoder: Encoder{
			ProbeTimeout: defaultProbeTimeout,
		},
		Transcode: Transcode{
			Container:          defaultContainer,
			AudioCodec:         defaultAudioCodec,
			AudioBitrate:       defaultAudioBitrate,
			Timeout:            defaultTranscodeTimeout,
			PreserveAttributes: true,
		},
		Retry: Retry{
			MaxRetries: defaultMaxRetries,
			Delay:      defaultRetryDelay,
			Backoff:    defaultRetryBackoff,
			MaxDelay:   defaultRetryMaxDelay,
		},
		Lock: Lock{
			StaleAfter: defaultLockStaleAfter,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			JobSuccess:     true,
			JobFailure:     true,
			QueueDrained:   true,
			DaemonEvents:   true,
		},
		Events: Events{
			SubjectPrefix:  defaultEventSubjectPrefix,
			ConnectTimeout: defaultEventConnectTimeout,
		},
		Thumbnails: Thumbnails{
			Offset:   defaultThumbnailOffset,
			MaxWidth: defaultThumbnailMaxWidth,
		},
		Logging: Logging{
			Format:    defaultLogFormat,
			Level:     defaultLogLevel,
			Directory: defaultLogDir,
		},
	}
}
