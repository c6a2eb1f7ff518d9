package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hopper/internal/config"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsAndExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	path := writeConfig(t, `
[[watch]]
path = "~/incoming"
recursive = true
`)

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved == "" {
		t.Fatalf("expected resolved existing config, got %q exists=%v", resolved, exists)
	}

	wantState := filepath.Join(tempHome, ".local", "share", "hopper")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Paths.OutputDir != filepath.Join(tempHome, "converted") {
		t.Fatalf("unexpected output dir: %q", cfg.Paths.OutputDir)
	}
	if len(cfg.Watch) != 1 {
		t.Fatalf("expected one watch entry, got %d", len(cfg.Watch))
	}
	if cfg.Watch[0].Path != filepath.Join(tempHome, "incoming") {
		t.Fatalf("unexpected watch path: %q", cfg.Watch[0].Path)
	}
	if len(cfg.Watch[0].Patterns) == 0 {
		t.Fatal("expected default patterns to be applied")
	}
	if cfg.Workers.Count != 2 {
		t.Fatalf("unexpected default worker count: %d", cfg.Workers.Count)
	}
	if cfg.Retry.Backoff != "fixed" {
		t.Fatalf("unexpected default backoff: %q", cfg.Retry.Backoff)
	}
	if cfg.Lock.Path != filepath.Join(wantState, "hopper.lock") {
		t.Fatalf("unexpected lock path: %q", cfg.Lock.Path)
	}
	if cfg.QueuePath() != filepath.Join(wantState, "queue.db") {
		t.Fatalf("unexpected queue path: %q", cfg.QueuePath())
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestLoadRequiresWatchEntries(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := writeConfig(t, `
[workers]
count = 1
`)

	_, _, _, err := config.Load(path)
	if err == nil {
		t.Fatal("expected error for missing watch entries")
	}
	if !strings.Contains(err.Error(), "[[watch]]") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadNormalizesFlatWatchRoots(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	path := writeConfig(t, `
watch_roots = ["~/drop", "~/drop", "~/other"]
`)

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(cfg.Watch) != 2 {
		t.Fatalf("expected duplicate roots collapsed to 2 entries, got %d", len(cfg.Watch))
	}
	for _, entry := range cfg.Watch {
		if !entry.Recursive {
			t.Fatalf("expected flat roots to default recursive, got %+v", entry)
		}
		if len(entry.Patterns) == 0 {
			t.Fatalf("expected default patterns, got %+v", entry)
		}
	}
	if cfg.WatchRoots != nil {
		t.Fatal("expected watch_roots to be folded away after normalization")
	}
}

func TestLoadSkipsDisabledWatchEntries(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	path := writeConfig(t, `
[[watch]]
path = "~/active"

[[watch]]
path = "~/paused"
enabled = false

[[watch]]
path = "~/explicit"
enabled = true
`)

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(cfg.Watch) != 2 {
		t.Fatalf("expected disabled entry dropped, got %d entries", len(cfg.Watch))
	}
	want := []string{
		filepath.Join(tempHome, "active"),
		filepath.Join(tempHome, "explicit"),
	}
	for i, entry := range cfg.Watch {
		if entry.Path != want[i] {
			t.Fatalf("watch[%d] = %q, want %q", i, entry.Path, want[i])
		}
		if !entry.IsEnabled() {
			t.Fatalf("watch[%d] should be enabled after normalization", i)
		}
	}
}

func TestLoadRejectsAllWatchEntriesDisabled(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := writeConfig(t, `
[[watch]]
path = "~/paused"
enabled = false
`)

	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error when every watch entry is disabled")
	}
}

func TestLoadRejectsBadRetryBackoff(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := writeConfig(t, `
watch_roots = ["~/drop"]

[retry]
backoff = "quadratic"
`)

	_, _, _, err := config.Load(path)
	if err == nil || !strings.Contains(err.Error(), "retry.backoff") {
		t.Fatalf("expected backoff validation error, got %v", err)
	}
}

func TestLoadRejectsStabilityTimeoutBelowInterval(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := writeConfig(t, `
watch_roots = ["~/drop"]

[stability]
poll_interval = 10
timeout = 5
`)

	_, _, _, err := config.Load(path)
	if err == nil || !strings.Contains(err.Error(), "stability.timeout") {
		t.Fatalf("expected stability validation error, got %v", err)
	}
}

func TestNotificationsEnvFallback(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("HOPPER_NTFY_TOPIC", "hopper-alerts")

	path := writeConfig(t, `
watch_roots = ["~/drop"]
`)

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Notifications.NtfyTopic != "hopper-alerts" {
		t.Fatalf("expected topic from env, got %q", cfg.Notifications.NtfyTopic)
	}
}

func TestTranscodeNormalization(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := writeConfig(t, `
watch_roots = ["~/drop"]

[transcode]
container = ".MKV"
audio_codec = "AAC"
`)

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Transcode.Container != "mkv" {
		t.Fatalf("expected container normalized, got %q", cfg.Transcode.Container)
	}
	if cfg.Transcode.AudioCodec != "aac" {
		t.Fatalf("expected audio codec lowered, got %q", cfg.Transcode.AudioCodec)
	}
	if cfg.Transcode.AudioBitrate == "" {
		t.Fatal("expected default audio bitrate")
	}
	if cfg.FFmpegBinary() != "ffmpeg" || cfg.FFprobeBinary() != "ffprobe" {
		t.Fatalf("unexpected default binaries: %q %q", cfg.FFmpegBinary(), cfg.FFprobeBinary())
	}
}

func TestLoadMissingExplicitPathUsesDefaults(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	missing := filepath.Join(tempHome, "nope", "config.toml")
	// Defaults carry no watch entries, so validation must reject this.
	if _, _, _, err := config.Load(missing); err == nil {
		t.Fatal("expected validation error when config is absent")
	}
}

func TestCreateSampleWritesParseableConfig(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	target := filepath.Join(tempHome, ".config", "hopper", "config.toml")
	if err := config.CreateSample(target); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}

	cfg, _, exists, err := config.Load(target)
	if err != nil {
		t.Fatalf("sample config did not load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if len(cfg.Watch) == 0 {
		t.Fatal("expected sample config to carry a watch entry")
	}
	if cfg.Thumbnails.Enabled {
		t.Fatal("expected thumbnails disabled by default")
	}
	if cfg.Events.URL != "" {
		t.Fatal("expected events disabled by default")
	}
}

func TestEnsureDirectories(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	path := writeConfig(t, `
watch_roots = ["~/drop"]
`)
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories returned error: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.OutputDir, cfg.Logging.Directory} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
	}
}
