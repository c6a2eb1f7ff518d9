package stability

import (
	"context"
	"log/slog"
	"os"
	"time"

	"hopper/internal/config"
	"hopper/internal/logging"
)

// Verdict is the outcome of a stability check.
type Verdict string

const (
	// VerdictStable means the file size held steady across the sampling window.
	VerdictStable Verdict = "stable"
	// VerdictStillWriting means the size kept changing until the timeout.
	VerdictStillWriting Verdict = "still_writing"
	// VerdictVanished means the file disappeared mid-check.
	VerdictVanished Verdict = "vanished"
)

// Result carries the verdict plus sampling detail for logging.
type Result struct {
	Verdict Verdict
	Size    int64
	Samples int
	Elapsed time.Duration
}

var statFile = os.Stat

// Gate decides whether a discovered file has finished being written by
// sampling its size until it holds steady. Partially copied files must not
// reach the transcoder.
type Gate struct {
	interval time.Duration
	required int
	timeout  time.Duration
	logger   *slog.Logger
}

// New builds a gate with explicit tuning.
func New(interval time.Duration, required int, timeout time.Duration, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Gate{
		interval: interval,
		required: required,
		timeout:  timeout,
		logger:   logging.NewComponentLogger(logger, "stability"),
	}
}

// NewFromConfig builds a gate from the stability section.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *Gate {
	return New(cfg.StabilityPollInterval(), cfg.Stability.RequiredSamples, cfg.StabilityTimeout(), logger)
}

// Await samples the file until its size holds for the required number of
// consecutive samples, the timeout elapses, or the file disappears. A size
// change resets the run. When ctx ends mid-wait the verdict is
// StillWriting; callers shutting down should check ctx.Err() before acting
// on it.
func (g *Gate) Await(ctx context.Context, path string) Result {
	start := time.Now()
	deadline := start.Add(g.timeout)

	var (
		lastSize    int64 = -1
		consecutive int
		samples     int
	)

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		info, err := statFile(path)
		switch {
		case err == nil && info.IsDir():
			return Result{Verdict: VerdictVanished, Samples: samples, Elapsed: time.Since(start)}
		case os.IsNotExist(err):
			return Result{Verdict: VerdictVanished, Samples: samples, Elapsed: time.Since(start)}
		case err != nil:
			// Transient stat failure; restart the run and keep sampling.
			g.logger.Debug("stat failed during stability check",
				logging.String(logging.FieldSourcePath, path),
				logging.Error(err),
			)
			lastSize = -1
			consecutive = 0
		default:
			samples++
			if info.Size() == lastSize {
				consecutive++
			} else {
				lastSize = info.Size()
				consecutive = 1
			}
			if consecutive >= g.required {
				return Result{Verdict: VerdictStable, Size: lastSize, Samples: samples, Elapsed: time.Since(start)}
			}
		}

		if time.Now().After(deadline) {
			return Result{Verdict: VerdictStillWriting, Size: lastSize, Samples: samples, Elapsed: time.Since(start)}
		}

		select {
		case <-ctx.Done():
			return Result{Verdict: VerdictStillWriting, Size: lastSize, Samples: samples, Elapsed: time.Since(start)}
		case <-ticker.C:
		}
	}
}
