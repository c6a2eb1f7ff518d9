package queue

import (
	"strings"
	"time"
)

// Status identifies a job's position in the conversion lifecycle.
type Status string

const (
	// StatusPending marks a discovered file that has not yet passed the
	// stability gate.
	StatusPending Status = "pending"
	// StatusStabilizing marks a job whose source file is being size-sampled.
	StatusStabilizing Status = "stabilizing"
	// StatusQueued marks a job waiting for a free worker.
	StatusQueued Status = "queued"
	// StatusRunning marks a job currently held by a worker.
	StatusRunning Status = "running"
	// StatusSucceeded marks a finished conversion.
	StatusSucceeded Status = "succeeded"
	// StatusFailed marks a job stopped by a fatal error.
	StatusFailed Status = "failed"
	// StatusAbandoned marks a job that exhausted its retry budget.
	StatusAbandoned Status = "abandoned"
)

var allStatuses = []Status{
	StatusPending,
	StatusStabilizing,
	StatusQueued,
	StatusRunning,
	StatusSucceeded,
	StatusFailed,
	StatusAbandoned,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var terminalStatuses = map[Status]struct{}{
	StatusSucceeded: {},
	StatusFailed:    {},
	StatusAbandoned: {},
}

// Job is a single source file moving through the conversion pipeline.
// Attempts counts executions: it advances when a worker claims the job, so a
// job that fails on its first run records 1.
type Job struct {
	ID              int64
	SourcePath      string
	OutputPath      string
	Status          Status
	Attempts        int
	ErrorKind       string
	ErrorMessage    string
	SourceSize      int64
	RunAfter        time.Time
	ProgressPercent float64
	ProgressMessage string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	TotalJobs        int
	IntegrityCheck   bool
	SchemaVersion    string
	Error            string
}

// HealthSummary aggregates job counts for status output.
type HealthSummary struct {
	Total     int
	Waiting   int
	Running   int
	Succeeded int
	Failed    int
	Abandoned int
}

// AllStatuses returns the ordered status set.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus normalizes user input into a known status.
func ParseStatus(value string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := statusSet[status]; ok {
		return status, true
	}
	return "", false
}

// IsTerminal reports whether the job has reached a final state.
func (j Job) IsTerminal() bool {
	return IsTerminalStatus(j.Status)
}

// IsTerminalStatus reports whether a status is final.
func IsTerminalStatus(status Status) bool {
	_, ok := terminalStatuses[status]
	return ok
}

// SetProgress updates in-memory progress fields ahead of a persist.
func (j *Job) SetProgress(message string, percent float64) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	j.ProgressPercent = percent
	j.ProgressMessage = message
}

// SetFailed marks the job failed with a sanitized error message.
func (j *Job) SetFailed(kind, message string) {
	j.Status = StatusFailed
	j.ErrorKind = kind
	j.ErrorMessage = strings.TrimSpace(message)
	j.ProgressMessage = "Failed"
}

// SetAbandoned marks the job abandoned after it never stabilized or its
// source vanished before it could be queued.
func (j *Job) SetAbandoned(kind, message string) {
	j.Status = StatusAbandoned
	j.ErrorKind = kind
	j.ErrorMessage = strings.TrimSpace(message)
	j.ProgressMessage = "Abandoned"
}
