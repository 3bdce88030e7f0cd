package gitcli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ErrPushConflict marks a push rejected because the remote gained commits the
// local copy has not seen. The publisher resolves it with fetch plus rebase.
var ErrPushConflict = errors.New("push rejected: remote has diverged")

// Runner abstracts git execution for testability. Run returns the combined
// trimmed output alongside any execution error.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// Config carries repository connection and authorship settings.
type Config struct {
	Binary         string
	RemoteURL      string
	Branch         string
	AuthorName     string
	AuthorEmail    string
	TimeoutSeconds int
}

// Option configures the client.
type Option func(*Client)

// WithRunner injects a custom runner (primarily for tests).
func WithRunner(runner Runner) Option {
	return func(c *Client) {
		if runner != nil {
			c.run = runner
		}
	}
}

// Client drives the git CLI against the shared asset library remote.
type Client struct {
	remote  string
	branch  string
	author  string
	email   string
	timeout time.Duration
	run     Runner
}

// New constructs a git client for the configured remote.
func New(cfg Config, opts ...Option) (*Client, error) {
	remote := strings.TrimSpace(cfg.RemoteURL)
	if remote == "" {
		return nil, errors.New("gallery remote url required")
	}
	binary := strings.TrimSpace(cfg.Binary)
	if binary == "" {
		binary = "git"
	}
	client := &Client{
		remote:  remote,
		branch:  strings.TrimSpace(cfg.Branch),
		author:  strings.TrimSpace(cfg.AuthorName),
		email:   strings.TrimSpace(cfg.AuthorEmail),
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		run:     commandRunner{binary: binary},
	}
	if client.branch == "" {
		client.branch = "main"
	}
	if client.author == "" {
		client.author = "fieldpress"
	}
	if client.email == "" {
		client.email = "fieldpress@localhost"
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Branch reports the branch the client publishes to.
func (c *Client) Branch() string {
	return c.branch
}

// Clone materializes a sparse, blobless working copy of the remote at dir.
// Only the given sparse paths are checked out; history stays shallow in size
// because blobs outside them are never fetched.
func (c *Client) Clone(ctx context.Context, dir string, sparsePaths []string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("working copy directory required")
	}
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return fmt.Errorf("create working copy parent: %w", err)
	}
	cloneArgs := []string{
		"clone",
		"--filter=blob:none",
		"--no-checkout",
		"--branch", c.branch,
		c.remote,
		dir,
	}
	if _, err := c.git(ctx, "", cloneArgs...); err != nil {
		return err
	}
	if len(sparsePaths) > 0 {
		setArgs := append([]string{"sparse-checkout", "set"}, sparsePaths...)
		if _, err := c.git(ctx, dir, setArgs...); err != nil {
			return err
		}
	}
	_, err := c.git(ctx, dir, "checkout", c.branch)
	return err
}

// Add stages every change in the working copy.
func (c *Client) Add(ctx context.Context, dir string) error {
	_, err := c.git(ctx, dir, "add", "-A")
	return err
}

// Commit records the staged changes under the configured author.
func (c *Client) Commit(ctx context.Context, dir, message string) error {
	if strings.TrimSpace(message) == "" {
		return errors.New("commit message required")
	}
	args := []string{
		"-c", "user.name=" + c.author,
		"-c", "user.email=" + c.email,
		"commit", "-m", message,
	}
	_, err := c.git(ctx, dir, args...)
	return err
}

// Push publishes local commits. A rejection caused by remote divergence comes
// back wrapped in ErrPushConflict so callers can retry after rebasing.
func (c *Client) Push(ctx context.Context, dir string) error {
	output, err := c.git(ctx, dir, "push", "origin", c.branch)
	if err != nil {
		if isPushConflict(output) {
			return fmt.Errorf("%w: %s", ErrPushConflict, condenseOutput(output))
		}
		return err
	}
	return nil
}

// Fetch refreshes the remote tracking ref for the publish branch.
func (c *Client) Fetch(ctx context.Context, dir string) error {
	_, err := c.git(ctx, dir, "fetch", "origin", c.branch)
	return err
}

// Rebase replays local commits on top of the freshly fetched remote branch.
// A rebase that hits content conflicts is aborted before the error returns.
func (c *Client) Rebase(ctx context.Context, dir string) error {
	if _, err := c.git(ctx, dir, "rebase", "origin/"+c.branch); err != nil {
		_, _ = c.git(ctx, dir, "rebase", "--abort")
		return err
	}
	return nil
}

func (c *Client) git(ctx context.Context, dir string, args ...string) (string, error) {
	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.run.Run(runCtx, dir, args...)
}

func isPushConflict(output string) bool {
	lower := strings.ToLower(output)
	return strings.Contains(lower, "non-fast-forward") ||
		strings.Contains(lower, "fetch first") ||
		strings.Contains(lower, "[rejected]")
}

func condenseOutput(output string) string {
	fields := strings.Fields(output)
	condensed := strings.Join(fields, " ")
	const limit = 200
	if len(condensed) > limit {
		condensed = condensed[:limit] + "..."
	}
	return condensed
}

type commandRunner struct {
	binary string
}

func (r commandRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, r.binary, args...) //nolint:gosec
	if dir != "" {
		cmd.Dir = dir
	}
	output, err := cmd.CombinedOutput()
	text := strings.TrimSpace(string(output))
	if err != nil {
		op := "git"
		if len(args) > 0 {
			op = "git " + args[0]
		}
		if text == "" {
			return text, fmt.Errorf("%s: %w", op, err)
		}
		return text, fmt.Errorf("%s: %w: %s", op, err, condenseOutput(text))
	}
	return text, nil
}
