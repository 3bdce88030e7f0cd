package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"fieldpress/internal/config"
	"fieldpress/internal/ingest"
	"fieldpress/internal/logging"
	"fieldpress/internal/preflight"
	"fieldpress/internal/queue"
	"fieldpress/internal/workflow"
)

// Daemon coordinates the background services of a running fieldpress
// instance: ingest producers, the workflow manager, and the HTTP API.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager
	ingest   *ingest.Service

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status reports the daemon runtime state for the status API and CLI.
type Status struct {
	Running      bool
	PID          int
	QueueDBPath  string
	LockFilePath string
	Workflow     workflow.StatusSummary
	Dependencies []preflight.Status
}

// New creates a daemon around an open queue store and configured services.
// The ingest service may be nil, in which case no inbox producers run.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, manager *workflow.Manager, ingestSvc *ingest.Service) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if store == nil {
		return nil, errors.New("queue store is required")
	}
	if manager == nil {
		return nil, errors.New("workflow manager is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.StateDir, "fieldpress.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		workflow: manager,
		ingest:   ingestSvc,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}

	api, err := newAPIServer(cfg.Daemon.APIBind, d, store, d.logger)
	if err != nil {
		return nil, fmt.Errorf("configure api server: %w", err)
	}
	d.api = api
	return d, nil
}

// Start acquires the instance lock and launches the background services. It
// returns an error if another daemon already holds the lock or any service
// fails to come up; a failed start leaves nothing running.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	locked, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !locked {
		return errors.New("another fieldpress daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if d.ingest != nil {
		if err := d.ingest.Start(runCtx); err != nil {
			d.releaseStart(cancel)
			return fmt.Errorf("start ingest: %w", err)
		}
	}
	if err := d.workflow.Start(runCtx); err != nil {
		if d.ingest != nil {
			d.ingest.Stop()
		}
		d.releaseStart(cancel)
		return fmt.Errorf("start workflow: %w", err)
	}
	if d.api != nil {
		if err := d.api.start(runCtx); err != nil {
			d.workflow.Stop()
			if d.ingest != nil {
				d.ingest.Stop()
			}
			d.releaseStart(cancel)
			return fmt.Errorf("start api server: %w", err)
		}
	}

	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.Int("pid", os.Getpid()),
		logging.String("lock_file", d.lockPath),
		logging.String("api_bind", d.APIAddr()),
	)
	return nil
}

func (d *Daemon) releaseStart(cancel context.CancelFunc) {
	cancel()
	d.cancel = nil
	d.unlock()
}

// Stop shuts down the background services in dependency order: producers
// first so no new jobs arrive, then the workflow so in-flight jobs drain,
// then the API. Safe to call multiple times.
func (d *Daemon) Stop() {
	if !d.running.CompareAndSwap(true, false) {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.ingest != nil {
		d.ingest.Stop()
	}
	d.workflow.Stop()
	if d.api != nil {
		d.api.stop()
	}
	d.unlock()
	d.logger.Info("daemon stopped")
}

// Close stops the daemon and closes the queue store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

func (d *Daemon) unlock() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("release instance lock", logging.Error(err))
	}
}

// Running reports whether the daemon services are up.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// APIAddr returns the listen address of the HTTP API, or an empty string when
// the API is disabled or not yet started.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}

// Status gathers the runtime state of the daemon and its services.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		QueueDBPath:  filepath.Join(d.cfg.Paths.StateDir, "queue.db"),
		LockFilePath: d.lockPath,
		Workflow:     d.workflow.Status(ctx),
		Dependencies: preflight.CheckSystemDeps(d.cfg),
	}
}
