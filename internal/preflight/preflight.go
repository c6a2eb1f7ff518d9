package preflight

import (
	"context"
	"fmt"

	"hopper/internal/config"
	"hopper/internal/deps"
	"hopper/internal/queue"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every applicable check for the given config. The watch
// roots are checked individually so one missing root reads as a path-level
// warning, not a daemon-wide failure.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))
	results = append(results, CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir))

	for _, root := range cfg.Watch {
		results = append(results, CheckDirectoryAccess(fmt.Sprintf("Watch root %s", root.Path), root.Path))
	}

	for _, status := range deps.CheckBinaries(deps.Required(cfg)) {
		result := Result{Name: status.Name, Passed: status.Available}
		if status.Available {
			result.Detail = status.Command
		} else {
			result.Detail = status.Detail
		}
		results = append(results, result)
	}

	results = append(results, CheckQueueDatabase(ctx, cfg))
	results = append(results, CheckHostResources())

	return results
}

// CheckQueueDatabase opens the job store and runs its integrity diagnostics.
func CheckQueueDatabase(ctx context.Context, cfg *config.Config) Result {
	const name = "Queue database"

	store, err := queue.Open(cfg)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("open: %v", err)}
	}
	defer store.Close()

	health, err := store.CheckHealth(ctx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("health check: %v", err)}
	}
	if health.Error != "" {
		return Result{Name: name, Detail: health.Error}
	}
	if !health.IntegrityCheck {
		return Result{Name: name, Detail: "integrity check failed"}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d jobs)", health.DBPath, health.TotalJobs)}
}
