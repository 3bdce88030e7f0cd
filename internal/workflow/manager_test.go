package workflow_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"fieldpress/internal/config"
	"fieldpress/internal/logging"
	"fieldpress/internal/notifications"
	"fieldpress/internal/queue"
	"fieldpress/internal/services"
	"fieldpress/internal/stage"
	"fieldpress/internal/testsupport"
	"fieldpress/internal/workflow"
)

type stubHandler struct {
	name        string
	prepareHook func(*queue.Job)
	executeHook func(*queue.Job) error
	prepareErr  error
	health      stage.Health
}

func newStubHandler(name string) *stubHandler {
	return &stubHandler{name: name, health: stage.Healthy(name)}
}

func (s *stubHandler) Prepare(_ context.Context, job *queue.Job) error {
	if s.prepareHook != nil {
		s.prepareHook(job)
	}
	return s.prepareErr
}

func (s *stubHandler) Execute(_ context.Context, job *queue.Job) error {
	if s.executeHook != nil {
		return s.executeHook(job)
	}
	return nil
}

func (s *stubHandler) HealthCheck(context.Context) stage.Health {
	return s.health
}

type recordingNotifier struct {
	mu       sync.Mutex
	events   []notifications.Event
	payloads []notifications.Payload
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	r.payloads = append(r.payloads, payload)
	return nil
}

func (r *recordingNotifier) byEvent(event notifications.Event) []notifications.Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []notifications.Payload
	for i, recorded := range r.events {
		if recorded == event {
			matched = append(matched, r.payloads[i])
		}
	}
	return matched
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.QueuePollInterval = 0
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	return cfg
}

func startManager(t *testing.T, mgr *workflow.Manager) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(mgr.Stop)
}

func waitForStatus(t *testing.T, store *queue.Store, id int64, want queue.Status) *queue.Job {
	t.Helper()
	deadline := time.After(30 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for job %d to reach %s", id, want)
		default:
		}
		job, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if job != nil && job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func waitFor(t *testing.T, description string, cond func() bool) {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", description)
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func TestManagerProcessesJobs(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	lesson := newStubHandler("lesson")
	lesson.executeHook = func(job *queue.Job) error {
		job.Title = "Pond Frog"
		job.AssetID = 4
		return nil
	}

	notifier := &recordingNotifier{}
	mgr := workflow.NewManager(cfg, store, logging.NewNop(), workflow.WithNotifier(notifier))
	mgr.ConfigureStages(workflow.StageSet{Lesson: lesson})
	startManager(t, mgr)

	job := testsupport.NewPrimaryJob(t, store, filepath.Join(cfg.Paths.InboxDir, "frog.jpg"), "life-science", "frog.jpg")

	updated := waitForStatus(t, store, job.ID, queue.StatusCompleted)
	if updated.Title != "Pond Frog" {
		t.Fatalf("expected derived title persisted, got %q", updated.Title)
	}
	if updated.AssetID != 4 {
		t.Fatalf("expected asset id 4 persisted, got %d", updated.AssetID)
	}
	if updated.CompletedAt == nil {
		t.Fatal("expected completion timestamp")
	}
	if updated.LastError != "" {
		t.Fatalf("expected no error message, got %q", updated.LastError)
	}

	waitFor(t, "completion notification", func() bool {
		return len(notifier.byEvent(notifications.EventJobCompleted)) == 1
	})
	payload := notifier.byEvent(notifications.EventJobCompleted)[0]
	if payload["title"] != "Pond Frog" {
		t.Fatalf("expected title in payload, got %q", payload["title"])
	}
	if payload["kind"] != "lessons" {
		t.Fatalf("expected lessons kind, got %q", payload["kind"])
	}
	if payload["assetID"] != "4" {
		t.Fatalf("expected asset id in payload, got %q", payload["assetID"])
	}
}

func TestManagerStartRequiresStages(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	mgr := workflow.NewManager(cfg, store, logging.NewNop())
	if err := mgr.Start(context.Background()); err == nil {
		mgr.Stop()
		t.Fatal("expected Start to fail without configured stages")
	}

	mgr.ConfigureStages(workflow.StageSet{Lesson: newStubHandler("lesson")})
	startManager(t, mgr)
	if err := mgr.Start(context.Background()); err == nil {
		t.Fatal("expected second Start to fail while running")
	}
}

func TestManagerRetriesTransientFailureUntilBudget(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workflow.MaxAttempts = 2
	store := testsupport.MustOpenStore(t, cfg)

	lesson := newStubHandler("lesson")
	lesson.executeHook = func(*queue.Job) error {
		return services.Wrap(services.ErrTransient, "lesson", "generate lesson", "", errors.New("connection reset"))
	}

	notifier := &recordingNotifier{}
	mgr := workflow.NewManager(cfg, store, logging.NewNop(), workflow.WithNotifier(notifier))
	mgr.ConfigureStages(workflow.StageSet{Lesson: lesson})
	startManager(t, mgr)

	job := testsupport.NewPrimaryJob(t, store, filepath.Join(cfg.Paths.InboxDir, "frog.jpg"), "life-science", "frog.jpg")

	updated := waitForStatus(t, store, job.ID, queue.StatusFailed)
	if updated.Attempts != 2 {
		t.Fatalf("expected both attempts consumed, got %d", updated.Attempts)
	}
	if !strings.Contains(updated.LastError, "connection reset") {
		t.Fatalf("expected cause in error message, got %q", updated.LastError)
	}

	waitFor(t, "failure notification", func() bool {
		return len(notifier.byEvent(notifications.EventJobFailed)) >= 1
	})
	if got := len(notifier.byEvent(notifications.EventJobFailed)); got != 1 {
		t.Fatalf("expected one failure notification for the terminal attempt, got %d", got)
	}
}

func TestManagerFailsValidationErrorImmediately(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	lesson := newStubHandler("lesson")
	lesson.executeHook = func(*queue.Job) error {
		return services.Wrap(services.ErrValidation, "lesson", "validate source", "source exceeds size cap", nil)
	}

	notifier := &recordingNotifier{}
	mgr := workflow.NewManager(cfg, store, logging.NewNop(), workflow.WithNotifier(notifier))
	mgr.ConfigureStages(workflow.StageSet{Lesson: lesson})
	startManager(t, mgr)

	job := testsupport.NewPrimaryJob(t, store, filepath.Join(cfg.Paths.InboxDir, "big.jpg"), "life-science", "big.jpg")

	updated := waitForStatus(t, store, job.ID, queue.StatusFailed)
	if updated.Attempts != 0 {
		t.Fatalf("expected no attempts consumed for validation failure, got %d", updated.Attempts)
	}
	if !strings.Contains(updated.LastError, "size cap") {
		t.Fatalf("expected validation detail in error message, got %q", updated.LastError)
	}

	waitFor(t, "failure notification", func() bool {
		return len(notifier.byEvent(notifications.EventJobFailed)) == 1
	})
}

func TestManagerRecoversStaleJobs(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewPrimaryJob(t, store, filepath.Join(cfg.Paths.InboxDir, "frog.jpg"), "life-science", "frog.jpg")
	claimed, err := store.ClaimNextPending(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNextPending failed: %v %v", claimed, err)
	}

	notifier := &recordingNotifier{}
	mgr := workflow.NewManager(cfg, store, logging.NewNop(),
		workflow.WithNotifier(notifier),
		workflow.WithClock(func() time.Time { return time.Now().Add(20 * time.Minute) }),
	)
	mgr.ConfigureStages(workflow.StageSet{Lesson: newStubHandler("lesson")})
	startManager(t, mgr)

	updated := waitForStatus(t, store, job.ID, queue.StatusCompleted)
	if updated.Attempts != 1 {
		t.Fatalf("expected stale requeue to consume one attempt, got %d", updated.Attempts)
	}

	waitFor(t, "recovery notification", func() bool {
		return len(notifier.byEvent(notifications.EventStaleRecovered)) >= 1
	})
	payload := notifier.byEvent(notifications.EventStaleRecovered)[0]
	if payload["requeued"] != "1" {
		t.Fatalf("expected one requeued job in payload, got %q", payload["requeued"])
	}
}

func TestManagerPrunesCompletedJobs(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := testsupport.NewPrimaryJob(t, store, filepath.Join(cfg.Paths.InboxDir, "frog.jpg"), "life-science", "frog.jpg")
	claimed, err := store.ClaimNextPending(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNextPending failed: %v %v", claimed, err)
	}
	if err := store.MarkCompleted(ctx, job.ID); err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}

	mgr := workflow.NewManager(cfg, store, logging.NewNop(),
		workflow.WithClock(func() time.Time { return time.Now().Add(25 * time.Hour) }),
	)
	mgr.ConfigureStages(workflow.StageSet{Lesson: newStubHandler("lesson")})
	startManager(t, mgr)

	waitFor(t, "completed job pruning", func() bool {
		pruned, err := store.GetByID(ctx, job.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		return pruned == nil
	})
}

func TestManagerFailsUnroutableJob(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	mgr := workflow.NewManager(cfg, store, logging.NewNop())
	mgr.ConfigureStages(workflow.StageSet{Lesson: newStubHandler("lesson")})
	startManager(t, mgr)

	job := testsupport.NewFollowupJob(t, store, "assets/life-science/1-pond-frog", "life-science", "frog.jpg", "Pond Frog", 1)

	updated := waitForStatus(t, store, job.ID, queue.StatusFailed)
	if !strings.Contains(updated.LastError, "no stage registered") {
		t.Fatalf("expected unroutable message, got %q", updated.LastError)
	}
	if updated.Attempts != 0 {
		t.Fatalf("expected no attempts consumed, got %d", updated.Attempts)
	}
}

func TestManagerRecoversPanickingHandler(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workflow.MaxAttempts = 1
	store := testsupport.MustOpenStore(t, cfg)

	lesson := newStubHandler("lesson")
	lesson.executeHook = func(*queue.Job) error {
		panic("boom")
	}

	mgr := workflow.NewManager(cfg, store, logging.NewNop())
	mgr.ConfigureStages(workflow.StageSet{Lesson: lesson})
	startManager(t, mgr)

	job := testsupport.NewPrimaryJob(t, store, filepath.Join(cfg.Paths.InboxDir, "frog.jpg"), "life-science", "frog.jpg")

	updated := waitForStatus(t, store, job.ID, queue.StatusFailed)
	if !strings.Contains(updated.LastError, "panicked") {
		t.Fatalf("expected panic converted to failure message, got %q", updated.LastError)
	}
	if updated.Attempts != 1 {
		t.Fatalf("expected panic to consume the attempt, got %d", updated.Attempts)
	}
}

func TestManagerStatusIncludesStageHealth(t *testing.T) {
	cfg := testConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	lesson := newStubHandler("lesson")
	lesson.health = stage.Unhealthy("lesson", "content service unreachable")

	mgr := workflow.NewManager(cfg, store, logging.NewNop())
	mgr.ConfigureStages(workflow.StageSet{Lesson: lesson, Workbook: newStubHandler("workbook")})

	status := mgr.Status(context.Background())
	if status.Running {
		t.Fatal("expected manager to report not running before Start")
	}
	health, ok := status.StageHealth["lesson"]
	if !ok {
		t.Fatal("expected stage health entry for lesson")
	}
	if health.Ready {
		t.Fatalf("expected not ready health, got %+v", health)
	}
	if health.Detail != "content service unreachable" {
		t.Fatalf("expected detail to survive, got %q", health.Detail)
	}
	if workbook, ok := status.StageHealth["workbook"]; !ok || !workbook.Ready {
		t.Fatalf("expected ready workbook health, got %+v", workbook)
	}
	if status.QueueStats == nil {
		t.Fatal("expected queue stats to be populated")
	}
}
