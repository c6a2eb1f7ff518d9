package daemon

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"hopper/internal/bus"
	"hopper/internal/config"
	"hopper/internal/deps"
	"hopper/internal/encoder"
	"hopper/internal/instancelock"
	"hopper/internal/logging"
	"hopper/internal/notifications"
	"hopper/internal/preflight"
	"hopper/internal/queue"
	"hopper/internal/services"
	"hopper/internal/stability"
	"hopper/internal/thumbnail"
	"hopper/internal/transcode"
	"hopper/internal/watch"
	"hopper/internal/workflow"
)

// Daemon runs the conversion pipeline as a single system-wide instance.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	lock   *instancelock.Lock

	store     *queue.Store
	manager   *workflow.Manager
	notifier  notifications.Service
	publisher bus.Publisher

	running atomic.Bool
}

// Status is a point-in-time snapshot for logs and diagnostics.
type Status struct {
	Running bool
	Encoder encoder.Profile
	Queue   queue.HealthSummary
}

// New builds a daemon. Nothing is opened or locked until Start.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Daemon{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "daemon"),
		lock:   instancelock.New(cfg, logger),
	}, nil
}

// Start acquires the instance lock, verifies external binaries, opens the
// job store, and launches the pipeline. Failure on any step releases
// whatever was already acquired; errors from this method are startup-fatal
// and the process should exit non-zero.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	// The lock comes first: a second instance must exit before touching the
	// store or the watch roots.
	if err := d.lock.Acquire(); err != nil {
		if errors.Is(err, instancelock.ErrAlreadyRunning) {
			return services.Wrap(services.ErrStartup, "daemon", "start", "another instance holds the lock at "+d.lock.Path(), err)
		}
		return services.Wrap(services.ErrStartup, "daemon", "start", "acquire instance lock", err)
	}

	if err := d.startLocked(ctx); err != nil {
		d.releaseAll()
		return err
	}

	d.running.Store(true)
	d.logger.Info("daemon started", logging.String("lock", d.lock.Path()))
	d.notifyDaemon(ctx, notifications.EventDaemonStarted)
	return nil
}

func (d *Daemon) startLocked(ctx context.Context) error {
	if err := deps.Verify(d.cfg); err != nil {
		return err
	}

	for _, result := range preflight.RunAll(ctx, d.cfg) {
		if result.Passed {
			d.logger.Debug("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
			continue
		}
		d.logger.Warn("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
		)
	}

	store, err := queue.Open(d.cfg)
	if err != nil {
		return services.Wrap(services.ErrStartup, "daemon", "start", "open job store", err)
	}
	d.store = store

	publisher, err := bus.Connect(d.cfg, d.logger)
	if err != nil {
		return services.Wrap(services.ErrStartup, "daemon", "start", "connect event bus", err)
	}
	d.publisher = publisher
	d.notifier = notifications.NewService(d.cfg)

	d.manager = workflow.NewManager(d.cfg, store, d.logger, workflow.Components{
		Detector:    encoder.NewDetector(d.cfg, d.logger),
		Converter:   transcode.NewExecutor(d.cfg, d.logger),
		Gate:        stability.NewFromConfig(d.cfg, d.logger),
		Watcher:     watch.New(d.cfg, d.logger),
		Notifier:    d.notifier,
		Publisher:   publisher,
		Thumbnailer: thumbnailOrNil(d.cfg, d.logger),
	})

	if err := d.manager.Start(ctx); err != nil {
		return services.Wrap(services.ErrStartup, "daemon", "start", "start pipeline", err)
	}
	return nil
}

// thumbnailOrNil keeps the manager's nil-means-skip contract: a typed nil
// *thumbnail.Generator inside the interface would not compare equal to nil.
func thumbnailOrNil(cfg *config.Config, logger *slog.Logger) workflow.ThumbnailGenerator {
	if gen := thumbnail.New(cfg, logger); gen != nil {
		return gen
	}
	return nil
}

// Stop shuts the pipeline down and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Swap(false) {
		return
	}
	if d.manager != nil {
		d.manager.Stop()
	}
	d.notifyDaemon(context.Background(), notifications.EventDaemonStopped)
	d.releaseAll()
	d.logger.Info("daemon stopped")
}

func (d *Daemon) releaseAll() {
	if d.publisher != nil {
		d.publisher.Close()
		d.publisher = nil
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.logger.Warn("close job store", logging.Error(err))
		}
		d.store = nil
	}
	if err := d.lock.Release(); err != nil {
		d.logger.Warn("release instance lock", logging.Error(err))
	}
}

func (d *Daemon) notifyDaemon(ctx context.Context, event notifications.Event) {
	if d.notifier == nil {
		return
	}
	if err := d.notifier.Publish(ctx, event, nil); err != nil {
		d.logger.Warn("notification delivery failed",
			logging.String(logging.FieldEventType, string(event)),
			logging.Error(err),
		)
	}
}

// Status reports the daemon's runtime state.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{Running: d.running.Load()}
	if d.manager != nil {
		status.Encoder = d.manager.Profile()
		if summary, err := d.manager.Health(ctx); err == nil {
			status.Queue = summary
		}
	}
	return status
}
