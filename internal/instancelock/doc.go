// Package instancelock enforces single-instance execution per lock path.
//
// The lock is a JSON record naming the owning pid, its start time, and the
// hostname. Acquisition refuses when the recorded pid is alive and the
// record is younger than the staleness threshold; dead owners and records
// left behind by crashes are reclaimed with a logged warning. A flock
// sidecar serializes racing acquirers so the read-check-write sequence
// stays atomic.
package instancelock
