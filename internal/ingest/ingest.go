// Package ingest feeds the job queue from the inbox directory.
//
// Two producers run concurrently: an fsnotify watcher that reacts to files
// as they arrive, and a periodic rescan that walks the whole inbox. The
// rescan picks up photographs dropped while the daemon was down and events
// the watcher missed. Both funnel into one enqueue path that filters
// non-photograph files, derives the category from the inbox subdirectory,
// and dedupes against jobs already in the queue, so a file is enqueued once
// no matter how many producers observe it.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"fieldpress/internal/config"
	"fieldpress/internal/logging"
	"fieldpress/internal/queue"
	"fieldpress/internal/standards"
)

const (
	defaultSettleDelay    = 2 * time.Second
	defaultRescanInterval = 5 * time.Minute
)

// Service watches the inbox and enqueues primary jobs for new photographs.
type Service struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger

	settleDelay    time.Duration
	rescanInterval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option adjusts service construction.
type Option func(*Service)

// WithSettleDelay overrides how long the watcher waits after the last write
// event before enqueueing a file. Copies in progress fire many events; the
// delay lets a file finish arriving first.
func WithSettleDelay(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.settleDelay = d
		}
	}
}

// WithRescanInterval overrides the periodic rescan cadence.
func WithRescanInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.rescanInterval = d
		}
	}
}

// New builds an ingest service over the configured inbox directory.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	svc := &Service{
		cfg:            cfg,
		store:          store,
		logger:         logging.NewComponentLogger(logger, "ingest"),
		settleDelay:    defaultSettleDelay,
		rescanInterval: time.Duration(cfg.Ingest.RescanIntervalMinutes) * time.Minute,
	}
	if svc.rescanInterval <= 0 {
		svc.rescanInterval = defaultRescanInterval
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Start launches the producers. The watcher is skipped when ingest.watch is
// disabled; the rescan always runs, with an immediate catch-up pass.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("ingest already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if s.cfg.Ingest.Watch {
		if err := s.startWatcher(runCtx); err != nil {
			cancel()
			return err
		}
	}
	s.wg.Add(1)
	go s.runRescan(runCtx)

	s.cancel = cancel
	s.running = true
	return nil
}

// Stop halts the producers and waits for them to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
}

var sourceExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
}

// eligibleSource reports whether a path names a photograph the pipeline can
// process. Dotfiles and unknown extensions are skipped.
func eligibleSource(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	_, ok := sourceExtensions[strings.ToLower(filepath.Ext(base))]
	return ok
}

// enqueue records a pending primary job for a source file unless the queue
// already holds an unresolved job for it. Empty files are skipped on the
// assumption they are still being copied; a later pass sees the full file.
func (s *Service) enqueue(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	if !eligibleSource(path) {
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Size() == 0 {
		return
	}

	existing, err := s.store.FindUnresolvedBySource(ctx, path)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Warn("enqueue dedupe lookup failed", logging.Error(err), logging.String("source", path))
		}
		return
	}
	if existing != nil {
		return
	}

	category := s.categoryFor(path)
	job, err := s.store.NewPrimary(ctx, path, category, info.Name(), false)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Error("failed to enqueue source", logging.Error(err), logging.String("source", path))
		}
		return
	}
	s.logger.Info("source enqueued",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String("source", path),
		logging.String("category", category),
		logging.String(logging.FieldEventType, "source_enqueued"),
	)
}

// categoryFor reads the category from the first inbox subdirectory on the
// path. Files at the inbox root, or under a directory that is not a known
// category, fall back to the configured default.
func (s *Service) categoryFor(path string) string {
	rel, err := filepath.Rel(s.cfg.Paths.InboxDir, path)
	if err == nil {
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) > 1 && standards.IsCategory(parts[0]) {
			return parts[0]
		}
	}
	if fallback := strings.TrimSpace(s.cfg.Ingest.DefaultCategory); standards.IsCategory(fallback) {
		return fallback
	}
	return standards.CategoryLifeScience
}
