package instancelock

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"

	"hopper/internal/config"
	"hopper/internal/logging"
	"hopper/internal/services"
)

// ErrAlreadyRunning reports that a live instance owns the lock record. The
// daemon turns this into a non-zero exit.
var ErrAlreadyRunning = errors.New("another instance is already running")

// pidAlive reports whether a process with the given pid exists. Signal 0
// probes without delivering; EPERM still proves existence.
var pidAlive = func(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}
	return errors.Is(err, unix.EPERM)
}

// Record is the owner descriptor persisted at the lock path.
type Record struct {
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
	Hostname  string    `json:"hostname"`
}

// Lock guards single-instance execution with a JSON record describing the
// owner. A flock sidecar makes the read-check-write sequence atomic between
// racing processes; between acquisitions the record file alone is the
// authority, so a dead owner can always be detected and reclaimed.
type Lock struct {
	path       string
	staleAfter time.Duration
	logger     *slog.Logger
	guard      *flock.Flock
	held       bool
}

// New builds a lock over the configured record path.
func New(cfg *config.Config, logger *slog.Logger) *Lock {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Lock{
		path:       cfg.Lock.Path,
		staleAfter: cfg.LockStaleAfter(),
		logger:     logging.NewComponentLogger(logger, "instancelock"),
		guard:      flock.New(cfg.Lock.Path + ".flock"),
	}
}

// Path returns the lock record location.
func (l *Lock) Path() string {
	return l.path
}

// Acquire claims the lock for this process. A record owned by a live,
// non-stale pid yields ErrAlreadyRunning; an absent, unreadable, dead, or
// stale record is reclaimed with a warning.
func (l *Lock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return services.Wrap(services.ErrStartup, "instancelock", "acquire", "create lock directory", err)
	}

	locked, err := l.guard.TryLock()
	if err != nil {
		return services.Wrap(services.ErrStartup, "instancelock", "acquire", "flock "+l.guard.Path(), err)
	}
	if !locked {
		return fmt.Errorf("%w: lock guard %s is held", ErrAlreadyRunning, l.guard.Path())
	}
	defer func() {
		_ = l.guard.Unlock()
	}()

	existing, readErr := l.readRecord()
	switch {
	case readErr == nil:
		age := time.Since(existing.StartedAt)
		if pidAlive(existing.PID) && (l.staleAfter <= 0 || age < l.staleAfter) {
			return fmt.Errorf("%w: pid %d on %s holds %s", ErrAlreadyRunning, existing.PID, existing.Hostname, l.path)
		}
		l.logger.Warn("reclaiming lock record",
			logging.Int("owner_pid", existing.PID),
			logging.Duration("age", age),
			logging.String("path", l.path),
		)
	case os.IsNotExist(readErr):
		// First instance on this path.
	default:
		l.logger.Warn("replacing unreadable lock record",
			logging.String("path", l.path),
			logging.Error(readErr),
		)
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	record := Record{
		PID:       os.Getpid(),
		StartedAt: time.Now().UTC(),
		Hostname:  hostname,
	}
	if err := l.writeRecord(record); err != nil {
		return services.Wrap(services.ErrStartup, "instancelock", "acquire", "write lock record", err)
	}

	l.held = true
	l.logger.Info("instance lock acquired",
		logging.Int("pid", record.PID),
		logging.String("path", l.path),
	)
	return nil
}

// Release removes the record if this process still owns it. Safe to call
// on every exit path; releasing an unheld lock is a no-op.
func (l *Lock) Release() error {
	if !l.held {
		return nil
	}
	l.held = false

	if err := l.guard.Lock(); err != nil {
		return fmt.Errorf("flock %s: %w", l.guard.Path(), err)
	}
	defer func() {
		_ = l.guard.Unlock()
	}()

	record, err := l.readRecord()
	if os.IsNotExist(err) {
		return nil
	}
	if err == nil && record.PID != os.Getpid() {
		l.logger.Warn("lock record no longer ours; leaving in place",
			logging.Int("owner_pid", record.PID),
			logging.String("path", l.path),
		)
		return nil
	}

	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock record: %w", err)
	}
	l.logger.Info("instance lock released", logging.String("path", l.path))
	return nil
}

func (l *Lock) readRecord() (Record, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return Record{}, err
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return Record{}, fmt.Errorf("parse lock record: %w", err)
	}
	if record.PID <= 0 {
		return Record{}, fmt.Errorf("lock record has no pid")
	}
	return record, nil
}

func (l *Lock) writeRecord(record Record) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, l.path)
}
