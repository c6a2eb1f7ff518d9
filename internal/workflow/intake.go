package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"hopper/internal/logging"
	"hopper/internal/queue"
	"hopper/internal/stability"
	"hopper/internal/watch"
)

// runIntake consumes watcher discoveries, enqueues pending jobs, and spawns
// one stability check per job so a slow copy never holds up discovery.
func (m *Manager) runIntake(ctx context.Context) {
	defer m.wg.Done()
	logger := logging.NewComponentLogger(m.logger, "intake")

	for {
		select {
		case <-ctx.Done():
			return
		case discovery, ok := <-m.watcher.Events():
			if !ok {
				return
			}
			m.admit(ctx, logger, discovery)
		}
	}
}

func (m *Manager) admit(ctx context.Context, logger *slog.Logger, discovery watch.Discovery) {
	job, created, err := m.store.Enqueue(ctx, discovery.Path, discovery.Size)
	if err != nil {
		if ctx.Err() == nil {
			logger.Error("enqueue discovered file failed",
				logging.String(logging.FieldSourcePath, discovery.Path),
				logging.Error(err),
			)
		}
		return
	}
	if !created {
		// Startup scan and a live event raced on the same path; the store
		// kept one job.
		logger.Debug("discovery already tracked",
			logging.String(logging.FieldSourcePath, discovery.Path),
			logging.Int64(logging.FieldJobID, job.ID),
		)
		return
	}

	logger.Info("file discovered",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldSourcePath, job.SourcePath),
		logging.Int64("size", discovery.Size),
	)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.stabilize(ctx, logger, job)
	}()
}

// stabilize walks one job through the stability gate and either queues it
// or abandons it.
func (m *Manager) stabilize(ctx context.Context, logger *slog.Logger, job *queue.Job) {
	job.Status = queue.StatusStabilizing
	job.ProgressMessage = "Waiting for file to settle"
	if err := m.store.Update(ctx, job); err != nil {
		if ctx.Err() == nil {
			logger.Error("mark stabilizing failed", logging.Int64(logging.FieldJobID, job.ID), logging.Error(err))
		}
		return
	}

	result := m.gate.Await(ctx, job.SourcePath)
	if ctx.Err() != nil {
		// Shutdown mid-check; the startup reset returns the job to pending.
		return
	}

	switch result.Verdict {
	case stability.VerdictStable:
		job.Status = queue.StatusQueued
		job.SourceSize = result.Size
		job.ProgressMessage = "Waiting for worker"
		if err := m.store.Update(ctx, job); err != nil {
			logger.Error("queue stable file failed", logging.Int64(logging.FieldJobID, job.ID), logging.Error(err))
			return
		}
		logger.Info("file queued",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.String(logging.FieldSourcePath, job.SourcePath),
			logging.Int64("size", result.Size),
			logging.Int("samples", result.Samples),
		)
		m.publisher.PublishJob(job)

	case stability.VerdictVanished:
		// Dropped silently per contract; the producer removed the file.
		job.SetAbandoned("vanished", "source file disappeared before it stabilized")
		if err := m.store.Update(ctx, job); err != nil {
			logger.Error("abandon vanished file failed", logging.Int64(logging.FieldJobID, job.ID), logging.Error(err))
			return
		}
		logger.Debug("file vanished during stability check",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.String(logging.FieldSourcePath, job.SourcePath),
		)

	case stability.VerdictStillWriting:
		job.SetAbandoned("still_writing", fmt.Sprintf("size kept changing for %s", result.Elapsed.Round(time.Second)))
		if err := m.store.Update(ctx, job); err != nil {
			logger.Error("abandon unstable file failed", logging.Int64(logging.FieldJobID, job.ID), logging.Error(err))
			return
		}
		logger.Warn("file never stabilized",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.String(logging.FieldSourcePath, job.SourcePath),
			logging.Duration("elapsed", result.Elapsed),
			logging.Int("samples", result.Samples),
		)
		m.publisher.PublishJob(job)
	}
}
