package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"hopper/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.OutputDir = filepath.Join(base, "converted")
	cfgVal.Logging.Directory = filepath.Join(base, "logs")
	cfgVal.Lock.Path = filepath.Join(base, "state", "hopper.lock")
	cfgVal.Watch = []config.WatchPath{
		{
			Path:      filepath.Join(base, "incoming"),
			Recursive: true,
			Patterns:  []string{"*.mkv", "*.mp4"},
		},
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithWatchRoot replaces the watched directories with a single root.
func WithWatchRoot(path string, patterns ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(patterns) == 0 {
			patterns = []string{"*.mkv", "*.mp4"}
		}
		b.cfg.Watch = []config.WatchPath{
			{Path: path, Recursive: true, Patterns: patterns},
		}
	}
}

// WithForcedEncoder pins the encoder choice so detection is skipped.
func WithForcedEncoder(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Encoder.Force = name
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg and ffprobe are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}

// WatchDir returns the first watched directory on the config.
func WatchDir(cfg *config.Config) string {
	if len(cfg.Watch) == 0 {
		return ""
	}
	return cfg.Watch[0].Path
}
