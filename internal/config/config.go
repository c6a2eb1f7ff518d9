package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration for daemon state and output.
type Paths struct {
	StateDir  string `toml:"state_dir"`
	OutputDir string `toml:"output_dir"`
}

// WatchPath describes one watched directory root. Enabled is a pointer so an
// absent key keeps the root active; only an explicit false disables it.
type WatchPath struct {
	Path      string   `toml:"path"`
	Recursive bool     `toml:"recursive"`
	Enabled   *bool    `toml:"enabled"`
	Patterns  []string `toml:"patterns"`
}

// IsEnabled reports whether the entry participates in scanning and watching.
func (w WatchPath) IsEnabled() bool {
	return w.Enabled == nil || *w.Enabled
}

// Stability contains configuration for the size-settling gate applied to
// discovered files before they are queued.
type Stability struct {
	PollInterval    int `toml:"poll_interval"`
	RequiredSamples int `toml:"required_samples"`
	Timeout         int `toml:"timeout"`
}

// Workers contains configuration for the conversion worker pool.
type Workers struct {
	Count             int `toml:"count"`
	QueuePollInterval int `toml:"queue_poll_interval"`
	ShutdownGrace     int `toml:"shutdown_grace"`
}

// Encoder contains configuration for hardware encoder detection.
type Encoder struct {
	Force        string `toml:"force"`
	ProbeTimeout int    `toml:"probe_timeout"`
}

// Transcode contains configuration for the external transcoder invocation.
type Transcode struct {
	FFmpegBinary       string `toml:"ffmpeg_binary"`
	FFprobeBinary      string `toml:"ffprobe_binary"`
	Container          string `toml:"container"`
	AudioCodec         string `toml:"audio_codec"`
	AudioBitrate       string `toml:"audio_bitrate"`
	Timeout            int    `toml:"timeout"`
	DeleteSource       bool   `toml:"delete_source"`
	PreserveAttributes bool   `toml:"preserve_attributes"`
	OverwriteExisting  bool   `toml:"overwrite_existing"`
}

// Retry contains configuration for the retry policy applied to failed jobs.
type Retry struct {
	MaxRetries int    `toml:"max_retries"`
	Delay      int    `toml:"delay"`
	Backoff    string `toml:"backoff"`
	MaxDelay   int    `toml:"max_delay"`
}

// Lock contains configuration for the single-instance lock record.
type Lock struct {
	Path       string `toml:"path"`
	StaleAfter int    `toml:"stale_after"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	NtfyToken      string `toml:"ntfy_token"`
	RequestTimeout int    `toml:"request_timeout"`
	JobSuccess     bool   `toml:"job_success"`
	JobFailure     bool   `toml:"job_failure"`
	QueueDrained   bool   `toml:"queue_drained"`
	DaemonEvents   bool   `toml:"daemon_events"`
}

// Events contains configuration for publishing job lifecycle events to NATS.
type Events struct {
	URL            string `toml:"url"`
	SubjectPrefix  string `toml:"subject_prefix"`
	ConnectTimeout int    `toml:"connect_timeout"`
}

// Thumbnails contains configuration for post-conversion preview extraction.
type Thumbnails struct {
	Enabled  bool `toml:"enabled"`
	Offset   int  `toml:"offset"`
	MaxWidth int  `toml:"max_width"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format    string `toml:"format"`
	Level     string `toml:"level"`
	Directory string `toml:"directory"`
}

// Config encapsulates all configuration values for hopper.
//
// Configuration sections by subsystem:
//   - Paths: daemon state and converted output directories
//   - Watch/WatchRoots: directories scanned and watched for media files
//   - Stability: size-settling gate tuning
//   - Workers: conversion pool size and polling
//   - Encoder: hardware encoder detection and override
//   - Transcode: external transcoder binaries and output policy
//   - Retry: retry budget, delay, and backoff shape
//   - Lock: single-instance lock record location and staleness
//   - Notifications: ntfy push notification settings
//   - Events: NATS job lifecycle publishing
//   - Thumbnails: post-conversion preview extraction
//   - Logging: log format, level, and directory
type Config struct {
	Paths         Paths         `toml:"paths"`
	WatchRoots    []string      `toml:"watch_roots"`
	Watch         []WatchPath   `toml:"watch"`
	Stability     Stability     `toml:"stability"`
	Workers       Workers       `toml:"workers"`
	Encoder       Encoder       `toml:"encoder"`
	Transcode     Transcode     `toml:"transcode"`
	Retry         Retry         `toml:"retry"`
	Lock          Lock          `toml:"lock"`
	Notifications Notifications `toml:"notifications"`
	Events        Events        `toml:"events"`
	Thumbnails    Thumbnails    `toml:"thumbnails"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/hopper/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized; callers downstream of
// Load never re-validate.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("hopper.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// OutputDir is created on a best-effort basis so the daemon can start while
// external storage is temporarily unavailable; conversion fails per job until
// it appears.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Logging.Directory} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.OutputDir) != "" {
		_ = os.MkdirAll(c.Paths.OutputDir, 0o755)
	}
	return nil
}

// QueuePath returns the sqlite database location backing the job queue.
func (c *Config) QueuePath() string {
	return filepath.Join(c.Paths.StateDir, "queue.db")
}

// FFmpegBinary returns the transcoder executable.
func (c *Config) FFmpegBinary() string {
	if strings.TrimSpace(c.Transcode.FFmpegBinary) != "" {
		return c.Transcode.FFmpegBinary
	}
	return "ffmpeg"
}

// FFprobeBinary returns the stream inspection executable.
func (c *Config) FFprobeBinary() string {
	if strings.TrimSpace(c.Transcode.FFprobeBinary) != "" {
		return c.Transcode.FFprobeBinary
	}
	return "ffprobe"
}

// StabilityPollInterval returns the gate sampling cadence as a duration.
func (c *Config) StabilityPollInterval() time.Duration {
	return time.Duration(c.Stability.PollInterval) * time.Second
}

// StabilityTimeout returns the gate deadline as a duration.
func (c *Config) StabilityTimeout() time.Duration {
	return time.Duration(c.Stability.Timeout) * time.Second
}

// QueuePollInterval returns the worker idle poll cadence as a duration.
func (c *Config) QueuePollInterval() time.Duration {
	return time.Duration(c.Workers.QueuePollInterval) * time.Second
}

// ShutdownGrace returns the in-flight job grace window as a duration.
func (c *Config) ShutdownGrace() time.Duration {
	return time.Duration(c.Workers.ShutdownGrace) * time.Second
}

// ProbeTimeout returns the per-probe encoder detection deadline as a duration.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Encoder.ProbeTimeout) * time.Second
}

// TranscodeTimeout returns the per-job subprocess deadline as a duration.
func (c *Config) TranscodeTimeout() time.Duration {
	return time.Duration(c.Transcode.Timeout) * time.Second
}

// RetryDelay returns the base re-enqueue delay as a duration.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Retry.Delay) * time.Second
}

// RetryMaxDelay returns the backoff cap as a duration.
func (c *Config) RetryMaxDelay() time.Duration {
	return time.Duration(c.Retry.MaxDelay) * time.Second
}

// LockStaleAfter returns the lock record staleness threshold as a duration.
func (c *Config) LockStaleAfter() time.Duration {
	return time.Duration(c.Lock.StaleAfter) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
