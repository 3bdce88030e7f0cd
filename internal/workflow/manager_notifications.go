package workflow

import (
	"context"
	"strconv"

	"fieldpress/internal/logging"
	"fieldpress/internal/notifications"
	"fieldpress/internal/queue"
)

func (m *Manager) notifyCompletion(ctx context.Context, job *queue.Job) {
	kind := "lessons"
	if job.Type == queue.TypeFollowup {
		kind = "workbooks"
	}
	payload := notifications.Payload{
		"title":    job.Title,
		"filename": job.Filename,
		"category": job.Category,
		"kind":     kind,
	}
	if job.AssetID > 0 {
		payload["assetID"] = strconv.FormatInt(job.AssetID, 10)
	}
	m.notify(ctx, notifications.EventJobCompleted, payload)
}

func (m *Manager) notifyFailure(ctx context.Context, job *queue.Job, message string) {
	m.notify(ctx, notifications.EventJobFailed, notifications.Payload{
		"jobID":   strconv.FormatInt(job.ID, 10),
		"jobType": string(job.Type),
		"error":   message,
	})
}

// notify delivers best effort: a notification failure is logged and dropped,
// never surfaced to the pipeline.
func (m *Manager) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Publish(ctx, event, payload); err != nil {
		m.logger.Warn("notification delivery failed",
			logging.Error(err),
			logging.String("event", string(event)),
		)
	}
}
