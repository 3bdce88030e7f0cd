package api

import (
	"testing"
	"time"

	"fieldpress/internal/queue"
	"fieldpress/internal/stage"
	"fieldpress/internal/workflow"
)

func TestFromJob_MapsFields(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	started := created.Add(2 * time.Minute)
	completed := created.Add(5 * time.Minute)
	job := &queue.Job{
		ID:          12,
		Type:        queue.TypeFollowup,
		SourceRef:   "assets/life-science/3-pond-frog",
		Category:    "life-science",
		Filename:    "frog.jpg",
		Title:       "Pond Frog",
		AssetID:     3,
		Status:      queue.StatusCompleted,
		Attempts:    1,
		LastError:   "",
		CreatedAt:   created,
		UpdatedAt:   completed,
		StartedAt:   &started,
		CompletedAt: &completed,
	}

	dto := FromJob(job)
	if dto.ID != 12 || dto.Type != string(queue.TypeFollowup) {
		t.Fatalf("unexpected identity fields: %#v", dto)
	}
	if dto.Title != "Pond Frog" || dto.AssetID != 3 || dto.Category != "life-science" {
		t.Fatalf("unexpected descriptive fields: %#v", dto)
	}
	if dto.CreatedAt != "2026-03-14T09:30:00.000Z" {
		t.Fatalf("unexpected created timestamp: %q", dto.CreatedAt)
	}
	if dto.StartedAt == "" || dto.CompletedAt == "" {
		t.Fatalf("expected optional timestamps formatted: %#v", dto)
	}
}

func TestFromJob_Nil(t *testing.T) {
	dto := FromJob(nil)
	if dto.ID != 0 || dto.Status != "" {
		t.Fatalf("expected zero DTO for nil job, got %#v", dto)
	}
}

func TestFromStatusSummary_OrdersStageHealth(t *testing.T) {
	lastJob := &queue.Job{ID: 4, Title: "Pond Frog", Status: queue.StatusCompleted}
	summary := workflow.StatusSummary{
		Running:   true,
		LastError: "transient failure",
		LastJob:   lastJob,
		QueueStats: map[queue.Status]int{
			queue.StatusPending: 3,
			queue.StatusFailed:  1,
		},
		StageHealth: map[string]stage.Health{
			"workbook": stage.Healthy("workbook"),
			"lesson":   stage.Unhealthy("lesson", "content service unreachable"),
		},
	}

	wf := FromStatusSummary(summary)
	if !wf.Running || wf.LastError != "transient failure" {
		t.Fatalf("unexpected workflow fields: %#v", wf)
	}
	if wf.QueueStats["pending"] != 3 || wf.QueueStats["failed"] != 1 {
		t.Fatalf("unexpected stats: %#v", wf.QueueStats)
	}
	if wf.LastJob == nil || wf.LastJob.ID != 4 {
		t.Fatalf("expected last job carried over, got %#v", wf.LastJob)
	}
	if len(wf.StageHealth) != 2 {
		t.Fatalf("expected 2 health entries, got %d", len(wf.StageHealth))
	}
	if wf.StageHealth[0].Name != "lesson" || wf.StageHealth[1].Name != "workbook" {
		t.Fatalf("expected alphabetical health order, got %#v", wf.StageHealth)
	}
	if wf.StageHealth[0].Ready || wf.StageHealth[0].Detail != "content service unreachable" {
		t.Fatalf("expected unhealthy lesson entry, got %#v", wf.StageHealth[0])
	}
}
