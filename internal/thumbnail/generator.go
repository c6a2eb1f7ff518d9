package thumbnail

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"hopper/internal/config"
	"hopper/internal/logging"
)

var commandContext = exec.CommandContext

const extractTimeout = 30 * time.Second

// Generator pulls one frame out of a video and saves a bounded-width JPEG
// beside it.
type Generator struct {
	binary   string
	offset   time.Duration
	maxWidth int
	logger   *slog.Logger
}

// New builds a generator from configuration. Returns nil when thumbnails
// are disabled; callers treat a nil generator as "skip".
func New(cfg *config.Config, logger *slog.Logger) *Generator {
	if !cfg.Thumbnails.Enabled {
		return nil
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	maxWidth := cfg.Thumbnails.MaxWidth
	if maxWidth <= 0 {
		maxWidth = 640
	}
	return &Generator{
		binary:   cfg.FFmpegBinary(),
		offset:   time.Duration(cfg.Thumbnails.Offset) * time.Second,
		maxWidth: maxWidth,
		logger:   logging.NewComponentLogger(logger, "thumbnail"),
	}
}

// Generate extracts a frame from videoPath and writes "<video>.jpg" next to
// it, returning the thumbnail path.
func (g *Generator) Generate(ctx context.Context, videoPath string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, extractTimeout)
	defer cancel()

	frameFile, err := os.CreateTemp("", "hopper-frame-*.png")
	if err != nil {
		return "", fmt.Errorf("create frame file: %w", err)
	}
	framePath := frameFile.Name()
	_ = frameFile.Close()
	defer os.Remove(framePath)

	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-ss", strconv.FormatFloat(g.offset.Seconds(), 'f', -1, 64),
		"-i", videoPath,
		"-frames:v", "1",
		framePath,
	}
	cmd := commandContext(runCtx, g.binary, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("extract frame: %w: %s", err, lastLine(out))
	}

	frame, err := imaging.Open(framePath)
	if err != nil {
		return "", fmt.Errorf("open frame: %w", err)
	}
	if frame.Bounds().Dx() > g.maxWidth {
		// Zero height keeps the aspect ratio.
		frame = imaging.Resize(frame, g.maxWidth, 0, imaging.Lanczos)
	}

	thumbPath := strings.TrimSuffix(videoPath, filepath.Ext(videoPath)) + ".jpg"
	if err := imaging.Save(frame, thumbPath, imaging.JPEGQuality(85)); err != nil {
		return "", fmt.Errorf("save thumbnail: %w", err)
	}

	g.logger.Info("thumbnail written",
		logging.String(logging.FieldOutputPath, thumbPath),
		logging.Int("width", frame.Bounds().Dx()),
	)
	return thumbPath, nil
}

func lastLine(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
