package api

import (
	"context"

	"fieldpress/internal/queue"
)

// QueueMutator abstracts the queue operations the per-job retry and remove
// workflows need.
type QueueMutator interface {
	GetByID(ctx context.Context, id int64) (*queue.Job, error)
	Retry(ctx context.Context, ids ...int64) (int64, error)
	Remove(ctx context.Context, id int64) (bool, error)
}

type RetryJobOutcome string

const (
	RetryJobUpdated   RetryJobOutcome = "retried"
	RetryJobNotFound  RetryJobOutcome = "not_found"
	RetryJobNotFailed RetryJobOutcome = "not_failed"
)

type RetryJobResult struct {
	ID      int64           `json:"id"`
	Outcome RetryJobOutcome `json:"outcome"`
}

type RetryJobsResult struct {
	UpdatedCount int64            `json:"updatedCount"`
	Jobs         []RetryJobResult `json:"jobs"`
}

// RetryFailedJobsByID validates IDs and retries only failed jobs, so each ID
// can report retried, not found, or not failed individually.
func RetryFailedJobsByID(ctx context.Context, store QueueMutator, ids []int64) (RetryJobsResult, error) {
	result := RetryJobsResult{Jobs: make([]RetryJobResult, 0, len(ids))}
	for _, id := range ids {
		job, err := store.GetByID(ctx, id)
		if err != nil {
			return RetryJobsResult{}, err
		}
		if job == nil {
			result.Jobs = append(result.Jobs, RetryJobResult{ID: id, Outcome: RetryJobNotFound})
			continue
		}
		if job.Status != queue.StatusFailed {
			result.Jobs = append(result.Jobs, RetryJobResult{ID: id, Outcome: RetryJobNotFailed})
			continue
		}
		updated, err := store.Retry(ctx, id)
		if err != nil {
			return RetryJobsResult{}, err
		}
		if updated > 0 {
			result.UpdatedCount += updated
			result.Jobs = append(result.Jobs, RetryJobResult{ID: id, Outcome: RetryJobUpdated})
			continue
		}
		result.Jobs = append(result.Jobs, RetryJobResult{ID: id, Outcome: RetryJobNotFailed})
	}
	return result, nil
}

type RemoveJobOutcome string

const (
	RemoveJobRemoved  RemoveJobOutcome = "removed"
	RemoveJobNotFound RemoveJobOutcome = "not_found"
)

type RemoveJobResult struct {
	ID      int64            `json:"id"`
	Outcome RemoveJobOutcome `json:"outcome"`
}

type RemoveJobsResult struct {
	RemovedCount int64             `json:"removedCount"`
	Jobs         []RemoveJobResult `json:"jobs"`
}

// RemoveJobsByID removes jobs one-by-one so each ID can report removed or
// not found.
func RemoveJobsByID(ctx context.Context, store QueueMutator, ids []int64) (RemoveJobsResult, error) {
	result := RemoveJobsResult{Jobs: make([]RemoveJobResult, 0, len(ids))}
	for _, id := range ids {
		removed, err := store.Remove(ctx, id)
		if err != nil {
			return RemoveJobsResult{}, err
		}
		if removed {
			result.RemovedCount++
			result.Jobs = append(result.Jobs, RemoveJobResult{ID: id, Outcome: RemoveJobRemoved})
			continue
		}
		result.Jobs = append(result.Jobs, RemoveJobResult{ID: id, Outcome: RemoveJobNotFound})
	}
	return result, nil
}
