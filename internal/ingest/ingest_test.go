package ingest_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fieldpress/internal/config"
	"fieldpress/internal/ingest"
	"fieldpress/internal/logging"
	"fieldpress/internal/queue"
	"fieldpress/internal/testsupport"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	return cfg
}

func startIngest(t *testing.T, cfg *config.Config, store *queue.Store, opts ...ingest.Option) *ingest.Service {
	t.Helper()
	svc := ingest.New(cfg, store, logging.NewNop(), opts...)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(svc.Stop)
	return svc
}

func fastOptions() []ingest.Option {
	return []ingest.Option{
		ingest.WithSettleDelay(20 * time.Millisecond),
		ingest.WithRescanInterval(50 * time.Millisecond),
	}
}

func waitForJobs(t *testing.T, store *queue.Store, want int) []*queue.Job {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		jobs, err := store.List(context.Background())
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(jobs) >= want {
			return jobs
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d jobs, found %d", want, len(jobs))
		default:
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func assertJobCount(t *testing.T, store *queue.Store, want int) []*queue.Job {
	t.Helper()
	jobs, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(jobs) != want {
		t.Fatalf("expected %d jobs, found %d", want, len(jobs))
	}
	return jobs
}

func TestRescanEnqueuesExistingFiles(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	source := filepath.Join(cfg.Paths.InboxDir, "life-science", "frog.jpg")
	testsupport.WriteImage(t, source, 2048)

	startIngest(t, cfg, store, fastOptions()...)

	jobs := waitForJobs(t, store, 1)
	job := jobs[0]
	if job.Type != queue.TypePrimary {
		t.Fatalf("expected primary job, got %s", job.Type)
	}
	if job.Status != queue.StatusPending {
		t.Fatalf("expected pending job, got %s", job.Status)
	}
	if job.SourceRef != source {
		t.Fatalf("expected source %s, got %s", source, job.SourceRef)
	}
	if job.Category != "life-science" {
		t.Fatalf("expected category from subdirectory, got %s", job.Category)
	}
	if job.Filename != "frog.jpg" {
		t.Fatalf("expected filename frog.jpg, got %s", job.Filename)
	}
	if job.Reprocess {
		t.Fatal("expected watcher enqueue without reprocess flag")
	}
}

func TestWatcherEnqueuesArrivals(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ingest.DefaultCategory = "earth-space"
	store := testsupport.MustOpenStore(t, cfg)

	// Rescan pushed out so only the watcher can observe the file.
	startIngest(t, cfg, store,
		ingest.WithSettleDelay(20*time.Millisecond),
		ingest.WithRescanInterval(time.Hour),
	)

	source := filepath.Join(cfg.Paths.InboxDir, "lichen.png")
	testsupport.WriteImage(t, source, 2048)

	jobs := waitForJobs(t, store, 1)
	if jobs[0].SourceRef != source {
		t.Fatalf("expected source %s, got %s", source, jobs[0].SourceRef)
	}
	if jobs[0].Category != "earth-space" {
		t.Fatalf("expected default category for root-level file, got %s", jobs[0].Category)
	}
}

func TestWatcherFollowsNewSubdirectories(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	startIngest(t, cfg, store,
		ingest.WithSettleDelay(20*time.Millisecond),
		ingest.WithRescanInterval(time.Hour),
	)

	subdir := filepath.Join(cfg.Paths.InboxDir, "physical-science")
	if err := os.MkdirAll(subdir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	// Give the watcher a moment to register the new directory before the
	// file lands in it.
	time.Sleep(100 * time.Millisecond)

	source := filepath.Join(subdir, "prism.webp")
	testsupport.WriteImage(t, source, 2048)

	jobs := waitForJobs(t, store, 1)
	if jobs[0].Category != "physical-science" {
		t.Fatalf("expected category from new subdirectory, got %s", jobs[0].Category)
	}
}

func TestRescanSkipsUnresolvedJobs(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	source := filepath.Join(cfg.Paths.InboxDir, "life-science", "frog.jpg")
	testsupport.WriteImage(t, source, 2048)
	testsupport.NewPrimaryJob(t, store, source, "life-science", "frog.jpg")

	startIngest(t, cfg, store, fastOptions()...)

	// Several rescan passes must not duplicate the pending job.
	time.Sleep(300 * time.Millisecond)
	assertJobCount(t, store, 1)

	// A failed job parks the file until an operator intervenes.
	claimed, err := store.ClaimNextPending(ctx)
	if err != nil {
		t.Fatalf("ClaimNextPending failed: %v", err)
	}
	if err := store.MarkFailedPermanent(ctx, claimed.ID, "source exceeds size cap"); err != nil {
		t.Fatalf("MarkFailedPermanent failed: %v", err)
	}
	time.Sleep(300 * time.Millisecond)
	jobs := assertJobCount(t, store, 1)
	if jobs[0].Status != queue.StatusFailed {
		t.Fatalf("expected job left failed, got %s", jobs[0].Status)
	}
}

func TestRescanIgnoresNonPhotographs(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	testsupport.WriteFile(t, filepath.Join(cfg.Paths.InboxDir, "notes.txt"), 64)
	testsupport.WriteImage(t, filepath.Join(cfg.Paths.InboxDir, ".partial.jpg"), 2048)
	if err := os.WriteFile(filepath.Join(cfg.Paths.InboxDir, "empty.jpg"), nil, 0o644); err != nil {
		t.Fatalf("write empty file: %v", err)
	}

	startIngest(t, cfg, store, fastOptions()...)

	time.Sleep(300 * time.Millisecond)
	assertJobCount(t, store, 0)
}

func TestServiceLifecycle(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ingest.Watch = false
	store := testsupport.MustOpenStore(t, cfg)

	svc := ingest.New(cfg, store, logging.NewNop(), ingest.WithRescanInterval(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := svc.Start(ctx); err == nil {
		t.Fatal("expected second Start to fail while running")
	}
	svc.Stop()
	svc.Stop()

	if err := svc.Start(ctx); err != nil {
		t.Fatalf("restart after Stop failed: %v", err)
	}
	svc.Stop()
}
