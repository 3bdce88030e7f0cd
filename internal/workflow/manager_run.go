package workflow

import (
	"context"
	"errors"
	"strconv"
	"time"

	"fieldpress/internal/logging"
	"fieldpress/internal/metrics"
	"fieldpress/internal/notifications"
)

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		m.runMaintenance(ctx)

		job, err := m.store.ClaimNextPending(ctx)
		if err != nil {
			m.handleClaimError(ctx, err)
			continue
		}
		if job == nil {
			m.waitForJobOrShutdown(ctx)
			continue
		}

		if err := m.processJob(ctx, job); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
		}
	}
}

// runMaintenance performs the per-tick housekeeping: stale job recovery,
// completed job pruning, and queue gauge refresh. All of it is best effort;
// a failure here must never stall job processing.
func (m *Manager) runMaintenance(ctx context.Context) {
	now := m.now()

	staleCutoff := now.Add(-time.Duration(m.cfg.Workflow.StaleJobMinutes) * time.Minute)
	requeued, failed, err := m.store.RecoverStale(ctx, staleCutoff, m.cfg.Workflow.MaxAttempts)
	switch {
	case err != nil:
		if !errors.Is(err, context.Canceled) {
			m.logger.Warn("stale job recovery failed", logging.Error(err))
		}
	case requeued+failed > 0:
		metrics.StaleRecoveries.Add(float64(requeued + failed))
		m.logger.Warn("recovered stale processing jobs",
			logging.Int64("requeued", requeued),
			logging.Int64("failed", failed),
			logging.String(logging.FieldEventType, "stale_recovery"),
		)
		m.notify(ctx, notifications.EventStaleRecovered, notifications.Payload{
			"requeued": strconv.FormatInt(requeued, 10),
			"failed":   strconv.FormatInt(failed, 10),
		})
	}

	if retention := time.Duration(m.cfg.Workflow.CompletedRetentionHours) * time.Hour; retention > 0 {
		pruned, err := m.store.PruneCompleted(ctx, now.Add(-retention))
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				m.logger.Warn("completed job pruning failed", logging.Error(err))
			}
		} else if pruned > 0 {
			m.logger.Debug("pruned completed jobs", logging.Int64("pruned", pruned))
		}
	}

	if stats, err := m.store.Stats(ctx); err == nil {
		metrics.SetQueueGauges(stats)
	}
}

func (m *Manager) handleClaimError(ctx context.Context, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	m.setLastError(err)
	m.logger.Error("failed to claim next queue job",
		logging.Error(err),
		logging.String(logging.FieldEventType, "queue_claim_failed"),
		logging.String(logging.FieldErrorHint, "check queue database access"),
	)
	m.waitForJobOrShutdown(ctx)
}

func (m *Manager) waitForJobOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(m.pollInterval):
	}
}
