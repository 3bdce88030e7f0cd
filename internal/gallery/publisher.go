package gallery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"fieldpress/internal/logging"
	"fieldpress/internal/services/gitcli"
)

// Git is the slice of the git client the publisher drives.
type Git interface {
	Clone(ctx context.Context, dir string, sparsePaths []string) error
	Add(ctx context.Context, dir string) error
	Commit(ctx context.Context, dir, message string) error
	Push(ctx context.Context, dir string) error
	Fetch(ctx context.Context, dir string) error
	Rebase(ctx context.Context, dir string) error
}

// Publisher acquires scoped working copies of the shared asset library and
// pushes mutations back with bounded optimistic-concurrency retry.
type Publisher struct {
	git             Git
	workDir         string
	logger          *slog.Logger
	pushRetries     int
	onConflictRetry func()
}

// PublisherOption configures the publisher.
type PublisherOption func(*Publisher)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logging.NewComponentLogger(logger, "gallery")
		}
	}
}

// WithPushRetries overrides how many extra push attempts a publish may spend
// resolving conflicts (defaults to 2).
func WithPushRetries(retries int) PublisherOption {
	return func(p *Publisher) {
		if retries >= 0 {
			p.pushRetries = retries
		}
	}
}

// WithConflictHook registers a callback invoked once per conflict-triggered
// retry, used for metrics.
func WithConflictHook(hook func()) PublisherOption {
	return func(p *Publisher) {
		p.onConflictRetry = hook
	}
}

// NewPublisher constructs a publisher that stages working copies under
// workDir.
func NewPublisher(git Git, workDir string, opts ...PublisherOption) (*Publisher, error) {
	if git == nil {
		return nil, errors.New("git client required")
	}
	if strings.TrimSpace(workDir) == "" {
		return nil, errors.New("work directory required")
	}
	pub := &Publisher{
		git:         git,
		workDir:     workDir,
		logger:      logging.NewNop(),
		pushRetries: 2,
	}
	for _, opt := range opts {
		opt(pub)
	}
	return pub, nil
}

// Acquire clones a sparse working copy restricted to the given paths. The
// caller owns the returned copy and must Close it.
func (p *Publisher) Acquire(ctx context.Context, sparsePaths []string) (*WorkingCopy, error) {
	if err := os.MkdirAll(p.workDir, 0o755); err != nil {
		return nil, fmt.Errorf("create work directory: %w", err)
	}
	root, err := os.MkdirTemp(p.workDir, "gallery-")
	if err != nil {
		return nil, fmt.Errorf("create working copy directory: %w", err)
	}
	if err := p.git.Clone(ctx, root, sparsePaths); err != nil {
		os.RemoveAll(root)
		return nil, fmt.Errorf("acquire working copy: %w", err)
	}
	p.logger.Debug("acquired working copy",
		logging.String("path", root),
		logging.Any("sparse_paths", sparsePaths))
	return &WorkingCopy{root: root, pub: p}, nil
}

// WorkingCopy is one checked-out slice of the asset library.
type WorkingCopy struct {
	root string
	pub  *Publisher
}

// Root returns the working copy's directory.
func (w *WorkingCopy) Root() string {
	return w.root
}

// Path joins repository-relative path parts onto the working copy root.
func (w *WorkingCopy) Path(parts ...string) string {
	return filepath.Join(append([]string{w.root}, parts...)...)
}

// Assets loads the asset records from this copy.
func (w *WorkingCopy) Assets() ([]Asset, error) {
	return LoadAssets(w.root)
}

// SaveAssets persists the asset records into this copy.
func (w *WorkingCopy) SaveAssets(assets []Asset) error {
	return SaveAssets(w.root, assets)
}

// Commit stages every change in the copy and records it under the given
// message.
func (w *WorkingCopy) Commit(ctx context.Context, message string) error {
	if err := w.pub.git.Add(ctx, w.root); err != nil {
		return fmt.Errorf("stage changes: %w", err)
	}
	if err := w.pub.git.Commit(ctx, w.root, message); err != nil {
		return fmt.Errorf("commit changes: %w", err)
	}
	return nil
}

// Publish pushes the local commits. When the remote has moved, it fetches and
// rebases the local commits on top, then pushes again, up to the configured
// retry budget. Jobs write disjoint asset directories, so the rebase resolves
// ordering rather than content; a rebase that does conflict fails the publish.
func (w *WorkingCopy) Publish(ctx context.Context) error {
	attempts := w.pub.pushRetries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := w.pub.git.Push(ctx, w.root)
		if err == nil {
			return nil
		}
		if !errors.Is(err, gitcli.ErrPushConflict) {
			return err
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		w.pub.logger.Warn("push conflict, rebasing onto remote",
			logging.Int("attempt", attempt),
			logging.Error(err))
		if w.pub.onConflictRetry != nil {
			w.pub.onConflictRetry()
		}
		if err := w.pub.git.Fetch(ctx, w.root); err != nil {
			return fmt.Errorf("fetch after push conflict: %w", err)
		}
		if err := w.pub.git.Rebase(ctx, w.root); err != nil {
			return fmt.Errorf("rebase after push conflict: %w", err)
		}
	}
	return fmt.Errorf("publish failed after %d attempts: %w", attempts, lastErr)
}

// Close removes the working copy from disk.
func (w *WorkingCopy) Close() error {
	return os.RemoveAll(w.root)
}
