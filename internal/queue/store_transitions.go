package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ClaimNextQueued atomically hands the oldest eligible queued job to a worker.
// Jobs whose retry delay has not elapsed are skipped. The claim charges the
// execution: attempts counts every run started, so a job that fails on its
// first run carries attempts=1. Returns nil when nothing is claimable.
func (s *Store) ClaimNextQueued(ctx context.Context, now time.Time) (*Job, error) {
	ctx = ensureContext(ctx)
	nowUTC := now.UTC()

	var claimed *Job
	err := retryOnBusy(ctx, func() error {
		claimed = nil
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin claim tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		row := tx.QueryRowContext(
			ctx,
			`SELECT `+jobColumns+` FROM jobs
             WHERE status = ? AND (run_after IS NULL OR run_after <= ?)
             ORDER BY id LIMIT 1`,
			StatusQueued,
			nowUTC.UnixNano(),
		)
		job, err := scanJob(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("select claimable job: %w", err)
		}

		updatedAt := nowUTC.Format(time.RFC3339Nano)
		res, err := tx.ExecContext(
			ctx,
			`UPDATE jobs SET status = ?, attempts = attempts + 1, run_after = NULL, updated_at = ? WHERE id = ? AND status = ?`,
			StatusRunning,
			updatedAt,
			job.ID,
			StatusQueued,
		)
		if err != nil {
			return fmt.Errorf("claim job: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("claim rows affected: %w", err)
		}
		if affected == 0 {
			// Lost the race to another worker; the caller polls again.
			return nil
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit claim: %w", err)
		}

		job.Status = StatusRunning
		job.Attempts++
		job.RunAfter = time.Time{}
		job.UpdatedAt = nowUTC
		claimed = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// ReleaseForRetry returns a job to the queue after a retryable failure. The
// failed run was already charged at claim time; the job stays unclaimable
// until the delay elapses. Error fields carried on the job are persisted
// alongside.
func (s *Store) ReleaseForRetry(ctx context.Context, job *Job, delay time.Duration) error {
	if job == nil {
		return errors.New("job is nil")
	}
	now := time.Now().UTC()
	runAfter := now.Add(delay)
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, run_after = ?,
             error_kind = ?, error_message = ?,
             progress_percent = 0, progress_message = ?, updated_at = ?
         WHERE id = ?`,
		StatusQueued,
		runAfter.UnixNano(),
		nullableString(job.ErrorKind),
		nullableString(job.ErrorMessage),
		"Waiting to retry",
		now.Format(time.RFC3339Nano),
		job.ID,
	); err != nil {
		return fmt.Errorf("release for retry: %w", err)
	}
	job.Status = StatusQueued
	job.RunAfter = runAfter
	job.ProgressPercent = 0
	job.ProgressMessage = "Waiting to retry"
	job.UpdatedAt = now
	return nil
}

// ResetStuckProcessing returns in-flight jobs left behind by a previous
// process to a claimable state: running jobs go back to queued, and
// stabilizing jobs go back to pending so the stability gate runs again. The
// interrupted run is refunded so it does not count against the retry budget
// when the job is claimed again.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = CASE status
             WHEN ? THEN ?
             WHEN ? THEN ?
             ELSE status
         END,
             attempts = CASE
                 WHEN status = ? AND attempts > 0 THEN attempts - 1
                 ELSE attempts
             END,
             run_after = NULL, progress_percent = 0,
             progress_message = 'Reset after restart', updated_at = ?
         WHERE status IN (?, ?)`,
		StatusRunning, StatusQueued,
		StatusStabilizing, StatusPending,
		StatusRunning,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusRunning,
		StatusStabilizing,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves failed and abandoned jobs back to pending for another
// pass through the pipeline. With no ids every eligible job is retried.
// Paths that already have an active job are skipped, and only the most
// recent terminal row per path is revived, so the one-active-job-per-path
// rule holds.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	query := `UPDATE jobs
        SET status = ?, attempts = 0, error_kind = NULL, error_message = NULL,
            run_after = NULL, progress_percent = 0,
            progress_message = 'Retry requested', updated_at = ?
        WHERE status IN (?, ?)
          AND id IN (
              SELECT MAX(id) FROM jobs WHERE status IN (?, ?) GROUP BY source_path
          )
          AND source_path NOT IN (
              SELECT source_path FROM jobs WHERE status NOT IN (?, ?, ?)
          )`
	args := []any{
		StatusPending,
		now,
		StatusFailed, StatusAbandoned,
		StatusFailed, StatusAbandoned,
		StatusSucceeded, StatusFailed, StatusAbandoned,
	}

	if len(ids) > 0 {
		query += ` AND id IN (` + makePlaceholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}

	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry failed jobs: %w", err)
	}
	return res.RowsAffected()
}
