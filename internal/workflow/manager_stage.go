package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fieldpress/internal/logging"
	"fieldpress/internal/metrics"
	"fieldpress/internal/queue"
	"fieldpress/internal/services"
)

func (m *Manager) processJob(ctx context.Context, job *queue.Job) error {
	binding, ok := m.bindingFor(job.Type)
	if !ok {
		return m.failUnroutableJob(ctx, job)
	}

	requestID := uuid.NewString()
	jobCtx := services.WithJobID(ctx, job.ID)
	jobCtx = services.WithStage(jobCtx, binding.name)
	jobCtx = services.WithRequestID(jobCtx, requestID)
	logger := logging.WithContext(jobCtx, m.logger)

	m.setLastJob(job)
	jobStart := time.Now()
	logger.Info("job started",
		logging.String(logging.FieldEventType, "job_start"),
		logging.String(logging.FieldJobType, string(job.Type)),
		logging.String("source_ref", job.SourceRef),
		logging.Int("attempt", job.Attempts+1),
	)

	err := m.runStage(jobCtx, binding, job)
	duration := time.Since(jobStart)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("job interrupted by shutdown")
			return err
		}
		m.handleJobFailure(jobCtx, binding.name, job, err, duration)
		return err
	}

	if err := m.store.MarkCompleted(jobCtx, job.ID); err != nil {
		wrapped := fmt.Errorf("persist job completion: %w", err)
		logger.Error("failed to persist job completion", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}
	job.Status = queue.StatusCompleted
	m.setLastJob(job)
	metrics.ObserveJob(job.Type, "completed", duration.Seconds())
	logger.Info("job completed",
		logging.String(logging.FieldEventType, "job_complete"),
		logging.String(logging.FieldJobType, string(job.Type)),
		logging.Int64(logging.FieldAssetID, job.AssetID),
		logging.Duration("job_duration", duration),
	)
	m.notifyCompletion(jobCtx, job)
	return nil
}

// runStage drives a claimed job through the handler contract. The update
// between Prepare and Execute persists any cleanup Prepare did; the update
// after Execute persists the fields the stage derived (title, asset id)
// before the completion transition stamps the terminal status. A panicking
// handler is converted into an ordinary attempt failure so one bad job
// cannot take the scheduler down.
func (m *Manager) runStage(ctx context.Context, binding stageBinding, job *queue.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage %s panicked: %v", binding.name, r)
		}
	}()

	if err := binding.handler.Prepare(ctx, job); err != nil {
		return err
	}
	if err := m.store.Update(ctx, job); err != nil {
		return fmt.Errorf("persist stage preparation: %w", err)
	}
	if err := binding.handler.Execute(ctx, job); err != nil {
		return err
	}
	if err := m.store.Update(ctx, job); err != nil {
		return fmt.Errorf("persist stage result: %w", err)
	}
	return nil
}

func (m *Manager) failUnroutableJob(ctx context.Context, job *queue.Job) error {
	message := fmt.Sprintf("no stage registered for job type %s", job.Type)
	m.logger.Error("claimed job has no registered stage",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldJobType, string(job.Type)),
		logging.String(logging.FieldEventType, "job_unroutable"),
	)
	if err := m.store.MarkFailedPermanent(ctx, job.ID, message); err != nil {
		if !errors.Is(err, context.Canceled) {
			m.logger.Error("failed to persist unroutable job failure", logging.Error(err))
		}
		m.setLastError(err)
		return err
	}
	job.Status = queue.StatusFailed
	job.LastError = message
	m.setLastJob(job)
	m.setLastError(errors.New(message))
	metrics.ObserveJob(job.Type, "failed", 0)
	m.notifyFailure(ctx, job, message)
	return nil
}
