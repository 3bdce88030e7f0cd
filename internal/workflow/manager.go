package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"fieldpress/internal/config"
	"fieldpress/internal/logging"
	"fieldpress/internal/notifications"
	"fieldpress/internal/queue"
	"fieldpress/internal/stage"
)

// StageSet binds a stage handler to each job type the manager dispatches.
type StageSet struct {
	Lesson   stage.Handler
	Workbook stage.Handler
}

// Manager coordinates queue processing using registered stage handlers.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	logger       *slog.Logger
	notifier     notifications.Service
	pollInterval time.Duration
	now          func() time.Time

	mu       sync.RWMutex
	handlers map[queue.JobType]stageBinding
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	lastErr  error
	lastJob  *queue.Job
}

type stageBinding struct {
	name    string
	handler stage.Handler
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithNotifier overrides the notification service (used in tests).
func WithNotifier(notifier notifications.Service) ManagerOption {
	return func(m *Manager) {
		if notifier != nil {
			m.notifier = notifier
		}
	}
}

// WithClock overrides the scheduler's time source (used in tests).
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager constructs a workflow manager. Stage handlers are registered
// separately through ConfigureStages before Start.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logging.NewComponentLogger(logger, "workflow"),
		notifier:     notifications.NewService(cfg),
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		now:          time.Now,
		handlers:     make(map[queue.JobType]stageBinding),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ConfigureStages registers the handler for each job type. Call before Start;
// a nil handler leaves its job type unroutable.
func (m *Manager) ConfigureStages(set StageSet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = make(map[queue.JobType]stageBinding)
	if set.Lesson != nil {
		m.handlers[queue.TypePrimary] = stageBinding{name: "lesson", handler: set.Lesson}
	}
	if set.Workbook != nil {
		m.handlers[queue.TypeFollowup] = stageBinding{name: "workbook", handler: set.Workbook}
	}
}

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if len(m.handlers) == 0 {
		m.mu.Unlock()
		return errors.New("workflow stages not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	go m.run(runCtx)
	return nil
}

// Stop terminates background processing and waits for completion.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) bindingFor(jobType queue.JobType) (stageBinding, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	binding, ok := m.handlers[jobType]
	return binding, ok
}
