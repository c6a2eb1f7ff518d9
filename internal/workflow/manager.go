package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"hopper/internal/bus"
	"hopper/internal/config"
	"hopper/internal/encoder"
	"hopper/internal/logging"
	"hopper/internal/notifications"
	"hopper/internal/queue"
	"hopper/internal/stability"
	"hopper/internal/transcode"
	"hopper/internal/watch"
)

// Detector selects the encoder profile the pipeline converts with.
type Detector interface {
	Detect(ctx context.Context) (encoder.Profile, error)
}

// Converter runs one conversion attempt.
type Converter interface {
	Execute(ctx context.Context, sourcePath, outputPath string, profile encoder.Profile, onProgress func(transcode.Update)) transcode.Outcome
}

// Gate decides whether a discovered file has finished being written.
type Gate interface {
	Await(ctx context.Context, path string) stability.Result
}

// Discoverer produces the stream of candidate files.
type Discoverer interface {
	Start(ctx context.Context) error
	Events() <-chan watch.Discovery
}

// Components are the manager's collaborators. Tests substitute stubs; the
// daemon passes the real implementations.
type Components struct {
	Detector    Detector
	Converter   Converter
	Gate        Gate
	Watcher     Discoverer
	Notifier    notifications.Service
	Publisher   bus.Publisher
	Thumbnailer ThumbnailGenerator
}

// ThumbnailGenerator matches thumbnail.Generator; nil means skip.
type ThumbnailGenerator interface {
	Generate(ctx context.Context, videoPath string) (string, error)
}

// Manager owns the conversion pipeline: intake from the watcher, per-file
// stability checks, and the bounded worker pool consuming the queue.
type Manager struct {
	cfg       *config.Config
	store     *queue.Store
	logger    *slog.Logger
	policy    Policy
	poll      time.Duration
	grace     time.Duration
	detector  Detector
	converter Converter
	gate      Gate
	watcher   Discoverer
	notifier  notifications.Service
	publisher bus.Publisher
	thumbs    ThumbnailGenerator

	profile encoder.Profile

	mu         sync.Mutex
	running    bool
	cancelRun  context.CancelFunc
	cancelExec context.CancelFunc
	runCtx     context.Context
	execCtx    context.Context
	wg         sync.WaitGroup
}

// NewManager wires a manager from the real component implementations.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger, components Components) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	if components.Notifier == nil {
		components.Notifier = notifications.NewNop()
	}
	if components.Publisher == nil {
		components.Publisher = bus.NewNop()
	}
	poll := cfg.QueuePollInterval()
	if poll <= 0 {
		poll = 200 * time.Millisecond
	}
	return &Manager{
		cfg:       cfg,
		store:     store,
		logger:    logging.NewComponentLogger(logger, "workflow"),
		policy:    NewPolicy(cfg),
		poll:      poll,
		grace:     cfg.ShutdownGrace(),
		detector:  components.Detector,
		converter: components.Converter,
		gate:      components.Gate,
		watcher:   components.Watcher,
		notifier:  components.Notifier,
		publisher: components.Publisher,
		thumbs:    components.Thumbnailer,
	}
}

// Start reclaims interrupted jobs, runs encoder detection, and launches the
// intake and worker goroutines. The pipeline stops when Stop is called; the
// passed context bounds startup work (detection probes).
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("workflow already running")
	}

	reclaimed, err := m.store.ResetStuckProcessing(ctx)
	if err != nil {
		return err
	}
	if reclaimed > 0 {
		m.logger.Info("reclaimed interrupted jobs", logging.Int64("count", reclaimed))
	}

	profile, err := m.detector.Detect(ctx)
	if err != nil {
		return err
	}
	m.profile = profile

	runCtx, cancelRun := context.WithCancel(ctx)
	// Executions deliberately detach from the caller's context: in-flight
	// conversions get the shutdown grace to finish after a signal instead of
	// dying with the run context.
	execCtx, cancelExec := context.WithCancel(context.Background())

	if err := m.watcher.Start(runCtx); err != nil {
		cancelRun()
		cancelExec()
		return err
	}

	m.runCtx = runCtx
	m.execCtx = execCtx
	m.cancelRun = cancelRun
	m.cancelExec = cancelExec
	m.running = true

	m.wg.Add(1)
	go m.runIntake(runCtx)

	workers := m.cfg.Workers.Count
	if workers < 1 {
		workers = 1
	}
	for i := 1; i <= workers; i++ {
		m.wg.Add(1)
		go m.runWorker(runCtx, i)
	}

	m.logger.Info("pipeline started",
		logging.String(logging.FieldEncoder, profile.Name),
		logging.Int("workers", workers),
	)
	return nil
}

// Stop halts intake and claiming immediately, gives in-flight conversions
// the configured grace to finish, then kills their process groups.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancelRun := m.cancelRun
	cancelExec := m.cancelExec
	m.running = false
	m.cancelRun = nil
	m.cancelExec = nil
	m.mu.Unlock()

	cancelRun()
	killTimer := time.AfterFunc(m.grace, cancelExec)
	m.wg.Wait()
	killTimer.Stop()
	cancelExec()
	m.logger.Info("pipeline stopped")
}

// Profile returns the encoder profile selected at startup.
func (m *Manager) Profile() encoder.Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profile
}

// Running reports whether the pipeline is live.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Health returns aggregate queue counts for status output.
func (m *Manager) Health(ctx context.Context) (queue.HealthSummary, error) {
	return m.store.Health(ctx)
}

// waitForJobOrShutdown sleeps one poll interval or until shutdown.
func (m *Manager) waitForJobOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(m.poll):
	}
}
