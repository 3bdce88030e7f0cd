package testsupport

import (
	"context"
	"testing"

	"fieldpress/internal/config"
	"fieldpress/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewPrimaryJob enqueues a primary-generation job for tests using the
// provided store.
func NewPrimaryJob(t testing.TB, store *queue.Store, sourceRef, category, filename string) *queue.Job {
	t.Helper()

	job, err := store.NewPrimary(context.Background(), sourceRef, category, filename, false)
	if err != nil {
		t.Fatalf("store.NewPrimary: %v", err)
	}
	return job
}

// NewFollowupJob enqueues a followup-generation job for tests using the
// provided store.
func NewFollowupJob(t testing.TB, store *queue.Store, sourceRef, category, filename, title string, assetID int64) *queue.Job {
	t.Helper()

	job, err := store.NewFollowup(context.Background(), sourceRef, category, filename, title, assetID)
	if err != nil {
		t.Fatalf("store.NewFollowup: %v", err)
	}
	return job
}
