package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ClaimNextPending atomically moves the oldest pending job to processing and
// returns it. The queue runs one job at a time: the update refuses to claim
// while another job is already processing, and it is guarded on the pending
// status so concurrent claimers cannot take the same row. Returns nil when
// there is no pending work or a job is already in flight.
func (s *Store) ClaimNextPending(ctx context.Context) (*Job, error) {
	ctx = ensureContext(ctx)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var inFlight int
		row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM jobs WHERE status = ?`, StatusProcessing)
		if err := row.Scan(&inFlight); err != nil {
			return nil, fmt.Errorf("count processing jobs: %w", err)
		}
		if inFlight > 0 {
			return nil, nil
		}

		var id int64
		row = s.db.QueryRowContext(ctx, `SELECT id FROM jobs WHERE status = ? ORDER BY created_at, id LIMIT 1`, StatusPending)
		if err := row.Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil
			}
			return nil, fmt.Errorf("select pending job: %w", err)
		}

		timestamp := time.Now().UTC().Format(time.RFC3339Nano)
		res, err := s.execWithRetry(
			ctx,
			`UPDATE jobs SET status = ?, started_at = ?, updated_at = ?
             WHERE id = ? AND status = ?
               AND NOT EXISTS (SELECT 1 FROM jobs WHERE status = ?)`,
			StatusProcessing,
			timestamp,
			timestamp,
			id,
			StatusPending,
			StatusProcessing,
		)
		if err != nil {
			return nil, fmt.Errorf("claim job %d: %w", id, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			// Lost the race to another claimer; re-check from the top.
			continue
		}
		return s.GetByID(ctx, id)
	}
}

// ProcessingJob returns the job currently being processed, or nil when idle.
func (s *Store) ProcessingJob(ctx context.Context) (*Job, error) {
	jobs, err := s.JobsByStatus(ctx, StatusProcessing)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	return jobs[0], nil
}

// MarkCompleted transitions a processing job to completed and stamps the
// completion time. Any other current status is rejected with
// ErrInvalidTransition.
func (s *Store) MarkCompleted(ctx context.Context, id int64) error {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET status = ?, completed_at = ?, updated_at = ?, last_error = NULL
         WHERE id = ? AND status = ?`,
		StatusCompleted,
		timestamp,
		timestamp,
		id,
		StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("mark job %d completed: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("mark job %d completed: %w", id, ErrInvalidTransition)
	}
	return nil
}

// RequeueWithError returns a processing job to pending after a retryable
// failure, consuming one attempt and recording the error message.
func (s *Store) RequeueWithError(ctx context.Context, id int64, message string) error {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET status = ?, attempts = attempts + 1, last_error = ?, started_at = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusPending,
		nullableString(message),
		timestamp,
		id,
		StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("requeue job %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("requeue job %d: %w", id, ErrInvalidTransition)
	}
	return nil
}

// MarkFailed transitions a processing job to failed, consuming the final
// attempt and recording the reason.
func (s *Store) MarkFailed(ctx context.Context, id int64, message string) error {
	return s.failProcessing(ctx, id, message, true)
}

// MarkFailedPermanent transitions a processing job to failed without
// consuming an attempt. Used for errors that no retry can fix, such as a
// source file that exceeds the size cap.
func (s *Store) MarkFailedPermanent(ctx context.Context, id int64, message string) error {
	return s.failProcessing(ctx, id, message, false)
}

func (s *Store) failProcessing(ctx context.Context, id int64, message string, consumeAttempt bool) error {
	attemptsExpr := "attempts"
	if consumeAttempt {
		attemptsExpr = "attempts + 1"
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET status = ?, attempts = `+attemptsExpr+`, last_error = ?, started_at = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusFailed,
		nullableString(message),
		timestamp,
		id,
		StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("mark job %d failed: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("mark job %d failed: %w", id, ErrInvalidTransition)
	}
	return nil
}

// RecoverStale handles processing jobs whose started_at predates the cutoff,
// which happens when the daemon died mid-job. Jobs with attempt budget left
// are requeued with one attempt consumed; jobs already on their final
// attempt are failed outright. Returns the number of jobs requeued and
// failed.
func (s *Store) RecoverStale(ctx context.Context, cutoff time.Time, maxAttempts int) (requeued, failed int64, err error) {
	cutoffStr := cutoff.UTC().Format(time.RFC3339Nano)
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	// Fail the exhausted jobs first so the requeue update cannot touch them.
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET status = ?, last_error = ?, started_at = NULL, updated_at = ?
         WHERE status = ? AND started_at IS NOT NULL AND started_at < ? AND attempts + 1 >= ?`,
		StatusFailed,
		StaleFailureReason,
		timestamp,
		StatusProcessing,
		cutoffStr,
		maxAttempts,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("fail stale jobs: %w", err)
	}
	failed, err = res.RowsAffected()
	if err != nil {
		return 0, 0, fmt.Errorf("rows affected: %w", err)
	}

	res, err = s.execWithRetry(
		ctx,
		`UPDATE jobs SET status = ?, attempts = attempts + 1, last_error = ?, started_at = NULL, updated_at = ?
         WHERE status = ? AND started_at IS NOT NULL AND started_at < ?`,
		StatusPending,
		StaleRequeueReason,
		timestamp,
		StatusProcessing,
		cutoffStr,
	)
	if err != nil {
		return 0, failed, fmt.Errorf("requeue stale jobs: %w", err)
	}
	requeued, err = res.RowsAffected()
	if err != nil {
		return 0, failed, fmt.Errorf("rows affected: %w", err)
	}
	return requeued, failed, nil
}

// PruneCompleted deletes completed jobs whose completion time predates the
// cutoff. Terminal failed jobs are kept for operator inspection.
func (s *Store) PruneCompleted(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoffStr := cutoff.UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM jobs WHERE status = ? AND completed_at IS NOT NULL AND completed_at < ?`,
		StatusCompleted,
		cutoffStr,
	)
	if err != nil {
		return 0, fmt.Errorf("prune completed: %w", err)
	}
	return res.RowsAffected()
}

// Retry returns failed jobs to pending with a fresh attempt budget. With no
// ids it retries every failed job; otherwise only the named ones. Returns
// the number of jobs requeued.
func (s *Store) Retry(ctx context.Context, ids ...int64) (int64, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	query := `UPDATE jobs SET status = ?, attempts = 0, last_error = NULL, started_at = NULL, updated_at = ?
              WHERE status = ?`
	args := []any{StatusPending, timestamp, StatusFailed}
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
