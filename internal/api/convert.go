package api

import (
	"slices"

	"fieldpress/internal/preflight"
	"fieldpress/internal/queue"
	"fieldpress/internal/stage"
	"fieldpress/internal/workflow"
)

// FromJob converts a queue record to its API representation.
func FromJob(job *queue.Job) QueueItem {
	if job == nil {
		return QueueItem{}
	}

	dto := QueueItem{
		ID:        job.ID,
		Type:      string(job.Type),
		SourceRef: job.SourceRef,
		Category:  job.Category,
		Filename:  job.Filename,
		Title:     job.Title,
		AssetID:   job.AssetID,
		Status:    string(job.Status),
		Attempts:  job.Attempts,
		Reprocess: job.Reprocess,
		LastError: job.LastError,
	}
	if !job.CreatedAt.IsZero() {
		dto.CreatedAt = job.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !job.UpdatedAt.IsZero() {
		dto.UpdatedAt = job.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	if job.StartedAt != nil && !job.StartedAt.IsZero() {
		dto.StartedAt = job.StartedAt.UTC().Format(dateTimeFormat)
	}
	if job.CompletedAt != nil && !job.CompletedAt.IsZero() {
		dto.CompletedAt = job.CompletedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromJobs converts a slice of queue records into API DTOs.
func FromJobs(jobs []*queue.Job) []QueueItem {
	if len(jobs) == 0 {
		return nil
	}
	out := make([]QueueItem, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, FromJob(job))
	}
	return out
}

// FromStatusSummary converts a workflow status summary to an API payload.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	stats := make(map[string]int, len(summary.QueueStats))
	for status, count := range summary.QueueStats {
		stats[string(status)] = count
	}

	wf := WorkflowStatus{
		Running:     summary.Running,
		QueueStats:  stats,
		StageHealth: StageHealthSlice(summary.StageHealth),
	}
	if summary.LastError != "" {
		wf.LastError = summary.LastError
	}
	if summary.LastJob != nil {
		last := FromJob(summary.LastJob)
		wf.LastJob = &last
	}
	return wf
}

// MergeQueueStats flattens typed queue stats into string keys.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	out := make(map[string]int, len(stats))
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

// FromDependencyStatuses maps the external binary checks into DTOs.
func FromDependencyStatuses(deps []preflight.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(deps))
	for _, dep := range deps {
		out = append(out, DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	return out
}

// StageHealthSlice orders the stage health map deterministically by name.
func StageHealthSlice(health map[string]stage.Health) []StageHealth {
	if len(health) == 0 {
		return nil
	}
	names := make([]string, 0, len(health))
	for name := range health {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]StageHealth, 0, len(names))
	for _, name := range names {
		h := health[name]
		out = append(out, StageHealth{Name: name, Ready: h.Ready, Detail: h.Detail})
	}
	return out
}
