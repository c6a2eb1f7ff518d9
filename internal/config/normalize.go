package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeWatch(); err != nil {
		return err
	}
	c.normalizeStability()
	c.normalizeWorkers()
	c.normalizeEncoder()
	c.normalizeTranscode()
	c.normalizeRetry()
	if err := c.normalizeLock(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeEvents()
	c.normalizeThumbnails()
	if err := c.normalizeLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	return nil
}

// normalizeWatch folds the flat watch_roots convenience list into [[watch]]
// entries, drops disabled entries, expands every root, and fills in default
// patterns. Older configs used bare string lists and both shapes stay
// accepted. Downstream consumers only ever see enabled roots.
func (c *Config) normalizeWatch() error {
	entries := make([]WatchPath, 0, len(c.Watch)+len(c.WatchRoots))
	for _, root := range c.WatchRoots {
		if strings.TrimSpace(root) == "" {
			continue
		}
		entries = append(entries, WatchPath{Path: root, Recursive: true})
	}
	entries = append(entries, c.Watch...)

	seen := make(map[string]struct{}, len(entries))
	normalized := make([]WatchPath, 0, len(entries))
	for i, entry := range entries {
		path := strings.TrimSpace(entry.Path)
		if path == "" {
			return fmt.Errorf("watch[%d].path must not be empty", i)
		}
		if !entry.IsEnabled() {
			continue
		}
		expanded, err := expandPath(path)
		if err != nil {
			return fmt.Errorf("watch[%d].path: %w", i, err)
		}
		if _, dup := seen[expanded]; dup {
			continue
		}
		seen[expanded] = struct{}{}

		patterns := make([]string, 0, len(entry.Patterns))
		for _, pattern := range entry.Patterns {
			trimmed := strings.TrimSpace(pattern)
			if trimmed == "" {
				continue
			}
			patterns = append(patterns, strings.ToLower(trimmed))
		}
		if len(patterns) == 0 {
			patterns = defaultWatchPatterns()
		}

		normalized = append(normalized, WatchPath{
			Path:      expanded,
			Recursive: entry.Recursive,
			Patterns:  patterns,
		})
	}

	c.Watch = normalized
	c.WatchRoots = nil
	return nil
}

func (c *Config) normalizeStability() {
	if c.Stability.PollInterval <= 0 {
		c.Stability.PollInterval = defaultStabilityInterval
	}
	if c.Stability.RequiredSamples <= 0 {
		c.Stability.RequiredSamples = defaultStabilitySamples
	}
	if c.Stability.Timeout <= 0 {
		c.Stability.Timeout = defaultStabilityTimeout
	}
}

func (c *Config) normalizeWorkers() {
	if c.Workers.Count <= 0 {
		c.Workers.Count = defaultWorkerCount
	}
	if c.Workers.QueuePollInterval <= 0 {
		c.Workers.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workers.ShutdownGrace < 0 {
		c.Workers.ShutdownGrace = defaultShutdownGrace
	}
}

func (c *Config) normalizeEncoder() {
	c.Encoder.Force = strings.ToLower(strings.TrimSpace(c.Encoder.Force))
	if c.Encoder.ProbeTimeout <= 0 {
		c.Encoder.ProbeTimeout = defaultProbeTimeout
	}
}

func (c *Config) normalizeTranscode() {
	c.Transcode.FFmpegBinary = strings.TrimSpace(c.Transcode.FFmpegBinary)
	c.Transcode.FFprobeBinary = strings.TrimSpace(c.Transcode.FFprobeBinary)
	c.Transcode.Container = strings.ToLower(strings.TrimSpace(c.Transcode.Container))
	if c.Transcode.Container == "" {
		c.Transcode.Container = defaultContainer
	}
	c.Transcode.Container = strings.TrimPrefix(c.Transcode.Container, ".")
	c.Transcode.AudioCodec = strings.ToLower(strings.TrimSpace(c.Transcode.AudioCodec))
	if c.Transcode.AudioCodec == "" {
		c.Transcode.AudioCodec = defaultAudioCodec
	}
	c.Transcode.AudioBitrate = strings.TrimSpace(c.Transcode.AudioBitrate)
	if c.Transcode.AudioBitrate == "" {
		c.Transcode.AudioBitrate = defaultAudioBitrate
	}
	if c.Transcode.Timeout <= 0 {
		c.Transcode.Timeout = defaultTranscodeTimeout
	}
}

func (c *Config) normalizeRetry() {
	if c.Retry.MaxRetries < 0 {
		c.Retry.MaxRetries = 0
	}
	if c.Retry.Delay < 0 {
		c.Retry.Delay = 0
	}
	c.Retry.Backoff = strings.ToLower(strings.TrimSpace(c.Retry.Backoff))
	if c.Retry.Backoff == "" {
		c.Retry.Backoff = defaultRetryBackoff
	}
	if c.Retry.MaxDelay <= 0 {
		c.Retry.MaxDelay = defaultRetryMaxDelay
	}
}

func (c *Config) normalizeLock() error {
	var err error
	if strings.TrimSpace(c.Lock.Path) == "" {
		c.Lock.Path = filepath.Join(c.Paths.StateDir, "hopper.lock")
	}
	if c.Lock.Path, err = expandPath(c.Lock.Path); err != nil {
		return fmt.Errorf("lock.path: %w", err)
	}
	if c.Lock.StaleAfter <= 0 {
		c.Lock.StaleAfter = defaultLockStaleAfter
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.Notifications.NtfyToken = strings.TrimSpace(c.Notifications.NtfyToken)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("HOPPER_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.NtfyToken == "" {
		if value, ok := os.LookupEnv("HOPPER_NTFY_TOKEN"); ok {
			c.Notifications.NtfyToken = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeEvents() {
	c.Events.URL = strings.TrimSpace(c.Events.URL)
	if c.Events.URL == "" {
		if value, ok := os.LookupEnv("HOPPER_EVENTS_URL"); ok {
			c.Events.URL = strings.TrimSpace(value)
		}
	}
	c.Events.SubjectPrefix = strings.TrimSpace(c.Events.SubjectPrefix)
	if c.Events.SubjectPrefix == "" {
		c.Events.SubjectPrefix = defaultEventSubjectPrefix
	}
	c.Events.SubjectPrefix = strings.TrimSuffix(c.Events.SubjectPrefix, ".")
	if c.Events.ConnectTimeout <= 0 {
		c.Events.ConnectTimeout = defaultEventConnectTimeout
	}
}

func (c *Config) normalizeThumbnails() {
	if c.Thumbnails.Offset < 0 {
		c.Thumbnails.Offset = defaultThumbnailOffset
	}
	if c.Thumbnails.MaxWidth <= 0 {
		c.Thumbnails.MaxWidth = defaultThumbnailMaxWidth
	}
}

func (c *Config) normalizeLogging() error {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if strings.TrimSpace(c.Logging.Directory) == "" {
		c.Logging.Directory = defaultLogDir
	}
	var err error
	if c.Logging.Directory, err = expandPath(c.Logging.Directory); err != nil {
		return fmt.Errorf("logging.directory: %w", err)
	}
	return nil
}
