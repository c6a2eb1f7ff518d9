package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"hopper/internal/fileutil"
	"hopper/internal/logging"
	"hopper/internal/notifications"
	"hopper/internal/queue"
	"hopper/internal/services"
	"hopper/internal/transcode"
)

// runWorker claims queued jobs one at a time until shutdown. At most
// Workers.Count jobs are ever running because each worker holds one claim.
func (m *Manager) runWorker(ctx context.Context, id int) {
	defer m.wg.Done()
	logger := logging.NewComponentLogger(m.logger, "worker")
	logger = logger.With(logging.Int(logging.FieldWorker, id))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := m.store.ClaimNextQueued(ctx, time.Now())
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("claim next job failed", logging.Error(err))
			m.waitForJobOrShutdown(ctx)
			continue
		}
		if job == nil {
			m.waitForJobOrShutdown(ctx)
			continue
		}

		m.processJob(ctx, logger, job)
	}
}

// processJob runs one conversion attempt and applies the retry decision.
func (m *Manager) processJob(runCtx context.Context, logger *slog.Logger, job *queue.Job) {
	attemptID := uuid.NewString()
	// The claim already counted this execution.
	attempt := job.Attempts
	logger = logger.With(
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldAttemptID, attemptID),
	)

	execCtx := services.WithJobID(m.execCtx, job.ID)
	execCtx = services.WithAttemptID(execCtx, attemptID)

	outputPath := m.outputPathFor(job)
	job.OutputPath = outputPath
	job.SetProgress("Converting", 0)
	if err := m.store.Update(execCtx, job); err != nil {
		logger.Error("persist running job failed", logging.Error(err))
	}

	logger.Info("job started",
		logging.String(logging.FieldSourcePath, job.SourcePath),
		logging.String(logging.FieldOutputPath, outputPath),
		logging.Int(logging.FieldAttempt, attempt),
	)
	m.publisher.PublishJob(job)

	outcome := m.converter.Execute(execCtx, job.SourcePath, outputPath, m.profile, func(update transcode.Update) {
		job.SetProgress(update.Message, update.Percent)
		if err := m.store.UpdateProgress(execCtx, job); err != nil && execCtx.Err() == nil {
			logger.Debug("persist progress failed", logging.Error(err))
		}
	})

	if outcome.Err != nil && runCtx.Err() != nil && errors.Is(outcome.Err, context.Canceled) {
		m.requeueInterrupted(logger, job)
		return
	}

	decision := m.policy.Decide(job.Attempts, outcome.Err)
	switch {
	case decision.Status == queue.StatusSucceeded:
		m.finishSuccess(execCtx, logger, job, attempt)
	case decision.Retry:
		m.scheduleRetry(logger, job, attempt, decision, outcome)
	default:
		m.finishFailed(logger, job, attempt, decision, outcome)
	}
}

// outputPathFor maps a source file into the output directory with the
// configured container extension. The path is uniquified when it would
// collide with an existing file (or the source itself) and overwriting is
// not configured.
func (m *Manager) outputPathFor(job *queue.Job) string {
	base := filepath.Base(job.SourcePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	candidate := filepath.Join(m.cfg.Paths.OutputDir, stem+"."+m.cfg.Transcode.Container)
	if candidate == job.SourcePath || !m.cfg.Transcode.OverwriteExisting {
		candidate = fileutil.UniquePath(candidate)
	}
	return candidate
}

func (m *Manager) requeueInterrupted(logger *slog.Logger, job *queue.Job) {
	// The run context is gone; use a short detached context so the row does
	// not stay stuck in running until the next restart.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	job.Status = queue.StatusQueued
	// Refund the execution charged at claim time; an interrupted run does not
	// count against the retry budget.
	if job.Attempts > 0 {
		job.Attempts--
	}
	job.SetProgress("Interrupted by shutdown", 0)
	if err := m.store.Update(ctx, job); err != nil {
		logger.Warn("requeue interrupted job failed; startup reset will recover it", logging.Error(err))
		return
	}
	logger.Info("job interrupted by shutdown, requeued",
		logging.String(logging.FieldSourcePath, job.SourcePath),
	)
}

func (m *Manager) finishSuccess(ctx context.Context, logger *slog.Logger, job *queue.Job, attempt int) {
	job.Status = queue.StatusSucceeded
	job.ErrorKind = ""
	job.ErrorMessage = ""
	job.SetProgress("Completed", 100)
	if err := m.store.Update(ctx, job); err != nil {
		logger.Error("persist succeeded job failed", logging.Error(err))
		return
	}

	if m.cfg.Transcode.PreserveAttributes {
		if err := fileutil.PreserveAttributes(job.SourcePath, job.OutputPath); err != nil {
			logger.Warn("preserve source attributes failed", logging.Error(err))
		}
	}
	if m.thumbs != nil {
		if _, err := m.thumbs.Generate(ctx, job.OutputPath); err != nil {
			logger.Warn("thumbnail generation failed", logging.Error(err))
		}
	}
	if m.cfg.Transcode.DeleteSource {
		if err := fileutil.RemoveSource(job.SourcePath); err != nil {
			logger.Warn("delete source failed", logging.Error(err))
		} else {
			logger.Info("source deleted", logging.String(logging.FieldSourcePath, job.SourcePath))
		}
	}

	logger.Info("job succeeded",
		logging.String(logging.FieldSourcePath, job.SourcePath),
		logging.String(logging.FieldOutputPath, job.OutputPath),
		logging.Int(logging.FieldAttempt, attempt),
	)
	m.publisher.PublishJob(job)
	m.notify(ctx, notifications.EventJobSucceeded, notifications.Payload{
		"source": filepath.Base(job.SourcePath),
		"output": job.OutputPath,
	})
	m.notifyIfDrained(ctx)
}

func (m *Manager) scheduleRetry(logger *slog.Logger, job *queue.Job, attempt int, decision Decision, outcome transcode.Outcome) {
	// Detached context: a shutdown between Execute and here must not strand
	// the row in running.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	job.ErrorKind = string(decision.Kind)
	job.ErrorMessage = outcome.Err.Error()
	if err := m.store.ReleaseForRetry(ctx, job, decision.Delay); err != nil {
		logger.Error("release for retry failed", logging.Error(err))
		return
	}
	logger.Warn("job failed, retry scheduled",
		logging.String(logging.FieldSourcePath, job.SourcePath),
		logging.Int(logging.FieldAttempt, attempt),
		logging.Int("retries_max", m.policy.MaxRetries),
		logging.Duration("delay", decision.Delay),
		logging.String(logging.FieldErrorKind, string(decision.Kind)),
		logging.Error(outcome.Err),
	)
	m.publisher.PublishJob(job)
}

func (m *Manager) finishFailed(logger *slog.Logger, job *queue.Job, attempt int, decision Decision, outcome transcode.Outcome) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	job.SetFailed(string(decision.Kind), outcome.Err.Error())
	if err := m.store.Update(ctx, job); err != nil {
		logger.Error("persist failed job failed", logging.Error(err))
		return
	}
	logger.Error("job failed",
		logging.String(logging.FieldSourcePath, job.SourcePath),
		logging.Int(logging.FieldAttempt, attempt),
		logging.String(logging.FieldErrorKind, string(decision.Kind)),
		logging.Int(logging.FieldExitCode, outcome.ExitCode),
		logging.Error(outcome.Err),
	)
	m.publisher.PublishJob(job)
	m.notify(ctx, notifications.EventJobFailed, notifications.Payload{
		"source": filepath.Base(job.SourcePath),
		"error":  job.ErrorMessage,
		"kind":   job.ErrorKind,
	})
	m.notifyIfDrained(ctx)
}

func (m *Manager) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := m.notifier.Publish(ctx, event, payload); err != nil {
		m.logger.Warn("notification delivery failed",
			logging.String(logging.FieldEventType, string(event)),
			logging.Error(err),
		)
	}
}

// notifyIfDrained fires the queue-drained event once no active jobs remain.
func (m *Manager) notifyIfDrained(ctx context.Context) {
	summary, err := m.store.Health(ctx)
	if err != nil {
		return
	}
	if summary.Waiting == 0 && summary.Running == 0 {
		m.notify(ctx, notifications.EventQueueDrained, notifications.Payload{
			"succeeded": fmt.Sprintf("%d", summary.Succeeded),
			"failed":    fmt.Sprintf("%d", summary.Failed+summary.Abandoned),
		})
	}
}
