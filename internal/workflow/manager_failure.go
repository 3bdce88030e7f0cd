package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fieldpress/internal/logging"
	"fieldpress/internal/metrics"
	"fieldpress/internal/queue"
	"fieldpress/internal/services"
)

// handleJobFailure resolves a stage error into a queue transition. Permanent
// errors fail the job without consuming an attempt; transient errors consume
// one and requeue until the budget is spent, then fail. Only terminal
// failures notify the operator.
func (m *Manager) handleJobFailure(ctx context.Context, stageName string, job *queue.Job, stageErr error, duration time.Duration) {
	logger := logging.WithContext(ctx, m.logger)
	message := failureMessage(stageName, stageErr)

	permanent := services.IsPermanent(stageErr)
	exhausted := job.Attempts+1 >= m.cfg.Workflow.MaxAttempts

	var outcome string
	var transitionErr error
	switch {
	case permanent:
		outcome = "failed"
		transitionErr = m.store.MarkFailedPermanent(ctx, job.ID, message)
	case exhausted:
		outcome = "failed"
		transitionErr = m.store.MarkFailed(ctx, job.ID, message)
	default:
		outcome = "requeued"
		transitionErr = m.store.RequeueWithError(ctx, job.ID, message)
	}
	if transitionErr != nil {
		if errors.Is(transitionErr, context.Canceled) {
			logger.Debug("daemon shutting down, could not persist job failure")
		} else {
			logger.Error("failed to persist job failure", logging.Error(transitionErr))
		}
		m.setLastError(transitionErr)
		return
	}

	m.setLastError(stageErr)
	logger.Error("job failed",
		logging.Error(stageErr),
		logging.String("error_message", message),
		logging.String("outcome", outcome),
		logging.Bool("permanent", permanent),
		logging.Int("attempt", job.Attempts+1),
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.Duration("job_duration", duration),
	)
	metrics.ObserveJob(job.Type, outcome, duration.Seconds())

	job.LastError = message
	if !permanent {
		job.Attempts++
	}
	if outcome == "failed" {
		job.Status = queue.StatusFailed
		m.setLastJob(job)
		m.notifyFailure(ctx, job, message)
		return
	}
	job.Status = queue.StatusPending
	m.setLastJob(job)
}

func failureMessage(stageName string, stageErr error) string {
	if stageErr != nil {
		if message := strings.TrimSpace(stageErr.Error()); message != "" {
			return message
		}
	}
	if stageName != "" {
		return fmt.Sprintf("%s stage failed", stageName)
	}
	return "stage failed without error detail"
}
