package encoder

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"hopper/internal/config"
	"hopper/internal/logging"
	"hopper/internal/services"
)

var commandContext = exec.CommandContext

var statDevice = os.Stat

// Detector probes the host for a working hardware encoder, falling back to
// software. The first answer is cached for the life of the process so the
// pipeline never pays the probe cost twice.
type Detector struct {
	binary  string
	timeout time.Duration
	force   string
	logger  *slog.Logger

	mu     sync.Mutex
	cached *Profile
}

// NewDetector builds a detector from configuration.
func NewDetector(cfg *config.Config, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Detector{
		binary:  cfg.FFmpegBinary(),
		timeout: cfg.ProbeTimeout(),
		force:   cfg.Encoder.Force,
		logger:  logging.NewComponentLogger(logger, "encoder"),
	}
}

// Detect returns the encoder profile the pipeline should use. Hardware tiers
// are tried in priority order with a real bounded test encode; the software
// profile always works, so the only error paths are context cancellation and
// an unknown forced name.
func (d *Detector) Detect(ctx context.Context) (Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cached != nil {
		return *d.cached, nil
	}

	if strings.TrimSpace(d.force) != "" {
		profile, ok := ProfileByName(d.force)
		if !ok {
			return Profile{}, services.Wrap(
				services.ErrStartup,
				"encoder",
				"detect",
				fmt.Sprintf("unknown forced encoder %q (valid: %s)", d.force, strings.Join(ProfileNames(), ", ")),
				nil,
			)
		}
		profile.Detected = false
		d.cached = &profile
		d.logger.Info("encoder selection forced",
			logging.String(logging.FieldEncoder, profile.Codec),
			logging.String(logging.FieldTier, profile.Tier.String()),
		)
		return profile, nil
	}

	for _, tier := range hardwareTiers() {
		if err := ctx.Err(); err != nil {
			return Profile{}, err
		}
		if !devicePresent(tier.devices...) {
			d.logger.Debug("encoder tier skipped",
				logging.String(logging.FieldTier, tier.profile.Tier.String()),
				logging.String(logging.FieldEncoder, tier.profile.Codec),
				logging.String("reason", "device node not present"),
			)
			continue
		}

		started := time.Now()
		if err := d.probe(ctx, tier.profile); err != nil {
			if ctx.Err() != nil {
				return Profile{}, ctx.Err()
			}
			d.logger.Info("encoder probe failed",
				logging.String(logging.FieldTier, tier.profile.Tier.String()),
				logging.String(logging.FieldEncoder, tier.profile.Codec),
				logging.Duration("elapsed", time.Since(started)),
				logging.Error(err),
			)
			continue
		}

		profile := tier.profile
		profile.Detected = true
		d.cached = &profile
		d.logger.Info("hardware encoder detected",
			logging.String(logging.FieldTier, profile.Tier.String()),
			logging.String(logging.FieldEncoder, profile.Codec),
			logging.Duration("elapsed", time.Since(started)),
		)
		return profile, nil
	}

	profile := softwareProfile()
	profile.Detected = true
	d.cached = &profile
	d.logger.Info("software encoder selected",
		logging.String(logging.FieldEncoder, profile.Codec),
		logging.String(logging.FieldTier, profile.Tier.String()),
	)
	return profile, nil
}

// Cached returns the detection result without probing, or false when no
// detection has run yet.
func (d *Detector) Cached() (Profile, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cached == nil {
		return Profile{}, false
	}
	return *d.cached, true
}

// probe runs a one-frame synthetic encode through the candidate encoder.
func (d *Detector) probe(ctx context.Context, profile Profile) error {
	probeCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	args := make([]string, 0, len(profile.InputArgs)+len(profile.VideoArgs)+10)
	args = append(args, "-hide_banner")
	args = append(args, profile.InputArgs...)
	args = append(args, "-f", "lavfi", "-i", "testsrc=duration=0.1:size=320x240:rate=30", "-frames:v", "1")
	args = append(args, profile.VideoArgs...)
	args = append(args, "-f", "null", "-")

	cmd := commandContext(probeCtx, d.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := lastStderrLine(stderr.String())
		if detail != "" {
			return fmt.Errorf("probe %s: %w: %s", profile.Codec, err, detail)
		}
		return fmt.Errorf("probe %s: %w", profile.Codec, err)
	}
	return nil
}

func devicePresent(paths ...string) bool {
	if len(paths) == 0 {
		return true
	}
	for _, path := range paths {
		if _, err := statDevice(path); err == nil {
			return true
		}
	}
	return false
}

func lastStderrLine(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
