// Package deps verifies the external binaries the pipeline shells out to.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"hopper/internal/config"
	"hopper/internal/services"
)

// Requirement defines an external dependency hopper relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Required returns the binaries the conversion pipeline cannot run without,
// resolved from the configured overrides.
func Required(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Transcoder and encoder probe binary",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Stream inspection binary",
		},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// Verify checks the required binaries and returns a startup-fatal error
// naming the first one that is missing. The daemon refuses to start without
// its transcoder.
func Verify(cfg *config.Config) error {
	for _, status := range CheckBinaries(Required(cfg)) {
		if status.Available || status.Optional {
			continue
		}
		return services.Wrap(
			services.ErrStartup,
			"deps",
			"verify",
			fmt.Sprintf("%s unavailable: %s", status.Name, status.Detail),
			nil,
		)
	}
	return nil
}
