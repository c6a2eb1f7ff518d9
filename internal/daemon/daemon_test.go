package daemon_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"hopper/internal/config"
	"hopper/internal/daemon"
	"hopper/internal/services"
	"hopper/internal/testsupport"
)

func startableConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t,
		testsupport.WithForcedEncoder("software"),
		testsupport.WithStubbedBinaries(),
	)
	if err := os.MkdirAll(testsupport.WatchDir(cfg), 0o755); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestDaemonStartStop(t *testing.T) {
	cfg := startableConfig(t)

	d, err := daemon.New(cfg, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	status := d.Status(context.Background())
	if !status.Running {
		t.Error("status should report running")
	}
	if status.Encoder.Name != "software" {
		t.Errorf("encoder = %q, want forced software profile", status.Encoder.Name)
	}

	d.Stop()
	if d.Status(context.Background()).Running {
		t.Error("status should report stopped")
	}
	if _, err := os.Stat(cfg.Lock.Path); !os.IsNotExist(err) {
		t.Error("lock record left behind after stop")
	}
}

func TestSecondDaemonRefusedWhileFirstRuns(t *testing.T) {
	cfg := startableConfig(t)

	first, err := daemon.New(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("start first: %v", err)
	}
	defer first.Stop()

	second, err := daemon.New(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	err = second.Start(context.Background())
	if err == nil {
		second.Stop()
		t.Fatal("second instance must not start")
	}
	if !errors.Is(err, services.ErrStartup) {
		t.Errorf("expected startup classification, got %v", err)
	}
}

func TestDaemonRefusesStartWithoutBinaries(t *testing.T) {
	cfg := startableConfig(t)
	cfg.Transcode.FFmpegBinary = "definitely-not-an-ffmpeg"

	d, err := daemon.New(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	err = d.Start(context.Background())
	if err == nil {
		d.Stop()
		t.Fatal("expected startup failure for missing transcoder")
	}
	if !errors.Is(err, services.ErrStartup) {
		t.Errorf("expected startup classification, got %v", err)
	}
	// The failed start must not leave the lock behind.
	if _, statErr := os.Stat(cfg.Lock.Path); !os.IsNotExist(statErr) {
		t.Error("lock record left behind after failed start")
	}
}
