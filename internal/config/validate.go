package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWatch(); err != nil {
		return err
	}
	if err := c.validateStability(); err != nil {
		return err
	}
	if err := c.validateWorkers(); err != nil {
		return err
	}
	if err := c.validateTranscode(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateWatch() error {
	if len(c.Watch) == 0 {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/hopper/config.toml"
		}
		return fmt.Errorf("at least one [[watch]] entry or watch_roots path is required. Edit %s (create with 'hopper config init')", defaultPath)
	}
	for i, entry := range c.Watch {
		for _, pattern := range entry.Patterns {
			if _, err := filepath.Match(pattern, "probe"); err != nil {
				return fmt.Errorf("watch[%d]: invalid pattern %q: %w", i, pattern, err)
			}
		}
	}
	return nil
}

func (c *Config) validateStability() error {
	if err := ensurePositiveMap(map[string]int{
		"stability.poll_interval":    c.Stability.PollInterval,
		"stability.required_samples": c.Stability.RequiredSamples,
		"stability.timeout":          c.Stability.Timeout,
	}); err != nil {
		return err
	}
	if c.Stability.Timeout <= c.Stability.PollInterval {
		return errors.New("stability.timeout must be greater than stability.poll_interval")
	}
	return nil
}

func (c *Config) validateWorkers() error {
	return ensurePositiveMap(map[string]int{
		"workers.count":               c.Workers.Count,
		"workers.queue_poll_interval": c.Workers.QueuePollInterval,
	})
}

func (c *Config) validateTranscode() error {
	if strings.TrimSpace(c.Transcode.Container) == "" {
		return errors.New("transcode.container must be set")
	}
	if c.Transcode.Timeout <= 0 {
		return errors.New("transcode.timeout must be positive (seconds)")
	}
	if c.Transcode.AudioCodec != "copy" && strings.TrimSpace(c.Transcode.AudioBitrate) == "" {
		return errors.New("transcode.audio_bitrate must be set when transcode.audio_codec is not copy")
	}
	return nil
}

func (c *Config) validateRetry() error {
	switch c.Retry.Backoff {
	case "fixed", "exponential":
	default:
		return fmt.Errorf("retry.backoff must be fixed or exponential, got %q", c.Retry.Backoff)
	}
	if c.Retry.MaxDelay < c.Retry.Delay {
		return errors.New("retry.max_delay must be at least retry.delay")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive (seconds)")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
