package transcode

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"hopper/internal/config"
	"hopper/internal/encoder"
	"hopper/internal/logging"
	"hopper/internal/media/ffprobe"
	"hopper/internal/services"
)

var (
	commandContext = exec.CommandContext
	inspectSource  = ffprobe.Inspect
)

const (
	stderrTailLines = 40
	killGrace       = 5 * time.Second
	partialSuffix   = ".partial"
)

// Outcome reports one conversion attempt. Err is nil on success; otherwise
// it carries the fatal/retryable classification for the retry policy, and
// Output holds the bounded stderr tail for diagnostics.
type Outcome struct {
	ExitCode int
	Output   string
	Err      error
}

// Executor shells out to ffmpeg to convert one source file into the
// configured container using a detected encoder profile. The conversion
// writes to a temporary name and renames into place on success, so the
// output directory never exposes partial files.
type Executor struct {
	binary  string
	ffprobe string
	timeout time.Duration
	tc      config.Transcode
	logger  *slog.Logger
}

// NewExecutor builds an executor from the daemon configuration.
func NewExecutor(cfg *config.Config, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Executor{
		binary:  cfg.FFmpegBinary(),
		ffprobe: cfg.FFprobeBinary(),
		timeout: cfg.TranscodeTimeout(),
		tc:      cfg.Transcode,
		logger:  logging.NewComponentLogger(logger, "transcoder"),
	}
}

// Execute converts sourcePath into outputPath. Progress callbacks arrive on
// the goroutine draining ffmpeg stdout; onProgress may be nil.
func (e *Executor) Execute(ctx context.Context, sourcePath, outputPath string, profile encoder.Profile, onProgress func(Update)) Outcome {
	probe, err := inspectSource(ctx, e.ffprobe, sourcePath)
	if err != nil {
		kind := classifyStderr(err.Error())
		return Outcome{ExitCode: -1, Err: services.Wrap(markerForKind(kind), "transcoder", "probe", "inspect source", err)}
	}

	tempPath := outputPath + partialSuffix
	invocation, err := buildPlan(profile, probe, sourcePath, tempPath, e.tc)
	if err != nil {
		return Outcome{ExitCode: -1, Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return Outcome{ExitCode: -1, Err: services.Wrap(services.ErrRetryable, "transcoder", "prepare", "create output directory", err)}
	}
	if !e.tc.OverwriteExisting {
		if _, statErr := os.Stat(outputPath); statErr == nil {
			return Outcome{ExitCode: -1, Err: services.Wrap(services.ErrFatal, "transcoder", "prepare", outputPath+" already exists", nil)}
		}
	}

	runCtx := ctx
	cancel := context.CancelFunc(func() {})
	if e.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
	}
	defer cancel()

	e.logger.Info("starting conversion",
		logging.String(logging.FieldSourcePath, sourcePath),
		logging.String(logging.FieldOutputPath, outputPath),
		logging.String(logging.FieldEncoder, profile.Name),
		logging.Int("video_stream", invocation.videoIdx),
		logging.Int("audio_streams", invocation.audio),
	)

	cmd := commandContext(runCtx, e.binary, invocation.args...)
	configureProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Outcome{ExitCode: -1, Err: services.Wrap(services.ErrRetryable, "transcoder", "start", "stdout pipe", err)}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Outcome{ExitCode: -1, Err: services.Wrap(services.ErrRetryable, "transcoder", "start", "stderr pipe", err)}
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Outcome{ExitCode: -1, Err: services.Wrap(services.ErrRetryable, "transcoder", "start", "launch "+e.binary, err)}
	}

	tail := newTailBuffer(stderrTailLines)
	parser := newProgressParser(invocation.duration, onProgress)

	var drained sync.WaitGroup
	drained.Add(2)
	go func() {
		defer drained.Done()
		scanLines(stdout, parser.consume)
	}()
	go func() {
		defer drained.Done()
		scanLines(stderr, tail.Add)
	}()

	// Pipes must be drained before Wait closes them.
	drained.Wait()
	waitErr := cmd.Wait()
	elapsed := time.Since(start)
	output := tail.String()

	if waitErr == nil {
		if err := os.Rename(tempPath, outputPath); err != nil {
			_ = os.Remove(tempPath)
			return Outcome{Output: output, Err: services.Wrap(services.ErrRetryable, "transcoder", "finish", "move output into place", err)}
		}
		e.logger.Info("conversion complete",
			logging.String(logging.FieldSourcePath, sourcePath),
			logging.String(logging.FieldOutputPath, outputPath),
			logging.String(logging.FieldEncoder, profile.Name),
			logging.Duration("elapsed", elapsed),
		)
		return Outcome{ExitCode: 0, Output: output}
	}

	_ = os.Remove(tempPath)

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		exitCode = exitErr.ExitCode()
	}

	switch {
	case runCtx.Err() != nil && ctx.Err() == nil:
		e.logger.Warn("conversion timed out",
			logging.String(logging.FieldSourcePath, sourcePath),
			logging.Duration("timeout", e.timeout),
		)
		return Outcome{
			ExitCode: exitCode,
			Output:   output,
			Err:      services.Wrap(services.ErrRetryable, "transcoder", "execute", fmt.Sprintf("timed out after %s", e.timeout), context.DeadlineExceeded),
		}
	case ctx.Err() != nil:
		return Outcome{
			ExitCode: exitCode,
			Output:   output,
			Err:      services.Wrap(services.ErrRetryable, "transcoder", "execute", "interrupted by shutdown", ctx.Err()),
		}
	}

	kind := classifyStderr(output)
	message := fmt.Sprintf("%s exited with code %d", filepath.Base(e.binary), exitCode)
	if last := tail.Last(); last != "" {
		message += ": " + last
	}
	e.logger.Warn("conversion failed",
		logging.String(logging.FieldSourcePath, sourcePath),
		logging.Int(logging.FieldExitCode, exitCode),
		logging.String(logging.FieldErrorKind, string(kind)),
		logging.Duration("elapsed", elapsed),
	)
	return Outcome{
		ExitCode: exitCode,
		Output:   output,
		Err:      services.Wrap(markerForKind(kind), "transcoder", "execute", message, nil),
	}
}

func scanLines(r io.Reader, fn func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		fn(scanner.Text())
	}
}

// configureProcessGroup isolates ffmpeg in its own process group so a
// timeout or shutdown kills any children it spawned, not just the leader.
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return os.ErrProcessDone
		}
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}
	cmd.WaitDelay = killGrace
}
