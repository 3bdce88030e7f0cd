package api

import (
	"context"
	"testing"

	"fieldpress/internal/queue"
)

type mockQueueMutator struct {
	jobs    map[int64]*queue.Job
	retried []int64
	removed []int64
}

func (m *mockQueueMutator) GetByID(_ context.Context, id int64) (*queue.Job, error) {
	return m.jobs[id], nil
}

func (m *mockQueueMutator) Retry(_ context.Context, ids ...int64) (int64, error) {
	var updated int64
	for _, id := range ids {
		job, ok := m.jobs[id]
		if !ok || job.Status != queue.StatusFailed {
			continue
		}
		job.Status = queue.StatusPending
		m.retried = append(m.retried, id)
		updated++
	}
	return updated, nil
}

func (m *mockQueueMutator) Remove(_ context.Context, id int64) (bool, error) {
	if _, ok := m.jobs[id]; !ok {
		return false, nil
	}
	delete(m.jobs, id)
	m.removed = append(m.removed, id)
	return true, nil
}

func TestRetryFailedJobsByID_Outcomes(t *testing.T) {
	mutator := &mockQueueMutator{jobs: map[int64]*queue.Job{
		1: {ID: 1, Status: queue.StatusPending},
		2: {ID: 2, Status: queue.StatusFailed},
	}}

	result, err := RetryFailedJobsByID(context.Background(), mutator, []int64{9, 1, 2})
	if err != nil {
		t.Fatalf("RetryFailedJobsByID returned error: %v", err)
	}
	if result.UpdatedCount != 1 {
		t.Fatalf("expected 1 update, got %d", result.UpdatedCount)
	}
	want := []RetryJobOutcome{RetryJobNotFound, RetryJobNotFailed, RetryJobUpdated}
	if len(result.Jobs) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(result.Jobs))
	}
	for i, outcome := range want {
		if result.Jobs[i].Outcome != outcome {
			t.Fatalf("result %d: expected %s, got %s", i, outcome, result.Jobs[i].Outcome)
		}
	}
	if len(mutator.retried) != 1 || mutator.retried[0] != 2 {
		t.Fatalf("expected only job 2 retried, got %v", mutator.retried)
	}
}

func TestRemoveJobsByID_Outcomes(t *testing.T) {
	mutator := &mockQueueMutator{jobs: map[int64]*queue.Job{
		3: {ID: 3, Status: queue.StatusFailed},
	}}

	result, err := RemoveJobsByID(context.Background(), mutator, []int64{3, 8})
	if err != nil {
		t.Fatalf("RemoveJobsByID returned error: %v", err)
	}
	if result.RemovedCount != 1 {
		t.Fatalf("expected 1 removal, got %d", result.RemovedCount)
	}
	if result.Jobs[0].Outcome != RemoveJobRemoved || result.Jobs[1].Outcome != RemoveJobNotFound {
		t.Fatalf("unexpected outcomes: %#v", result.Jobs)
	}
}
