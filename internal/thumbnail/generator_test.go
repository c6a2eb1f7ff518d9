package thumbnail

import (
	"context"
	"image/color"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"

	"hopper/internal/config"
)

func testConfig(t *testing.T, enabled bool) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Thumbnails.Enabled = enabled
	cfg.Thumbnails.Offset = 5
	cfg.Thumbnails.MaxWidth = 320
	return &cfg
}

func TestNewDisabledReturnsNil(t *testing.T) {
	if gen := New(testConfig(t, false), nil); gen != nil {
		t.Fatal("expected nil generator when thumbnails disabled")
	}
}

func TestGenerateResizesAndSavesJPEG(t *testing.T) {
	fixture := filepath.Join(t.TempDir(), "frame.png")
	wide := imaging.New(800, 450, color.NRGBA{R: 40, G: 80, B: 120, A: 255})
	if err := imaging.Save(wide, fixture); err != nil {
		t.Fatalf("save fixture: %v", err)
	}

	// Stand in for ffmpeg: copy the fixture frame to the requested target.
	restore := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "cp", fixture, args[len(args)-1])
	}
	t.Cleanup(func() { commandContext = restore })

	videoPath := filepath.Join(t.TempDir(), "movie.mkv")
	if err := os.WriteFile(videoPath, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}

	gen := New(testConfig(t, true), nil)
	thumbPath, err := gen.Generate(context.Background(), videoPath)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if want := filepath.Join(filepath.Dir(videoPath), "movie.jpg"); thumbPath != want {
		t.Errorf("thumbnail path = %q, want %q", thumbPath, want)
	}

	saved, err := imaging.Open(thumbPath)
	if err != nil {
		t.Fatalf("open thumbnail: %v", err)
	}
	if got := saved.Bounds().Dx(); got != 320 {
		t.Errorf("thumbnail width = %d, want 320", got)
	}
}

func TestGenerateReportsExtractFailure(t *testing.T) {
	restore := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "false")
	}
	t.Cleanup(func() { commandContext = restore })

	gen := New(testConfig(t, true), nil)
	if _, err := gen.Generate(context.Background(), filepath.Join(t.TempDir(), "movie.mkv")); err == nil {
		t.Fatal("expected extract failure")
	}
}
