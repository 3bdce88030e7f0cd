package renderer

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

// Document describes one markdown source to render into a PDF.
type Document struct {
	MarkdownPath string
	OutputPath   string
	// ResourceDir is searched for relative image references in the markdown.
	ResourceDir string
	Title       string
	Subtitle    string
}

// Renderer defines the behaviour required by the generation stages.
type Renderer interface {
	Render(ctx context.Context, doc Document) error
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) error
}

// Config carries the pandoc invocation settings.
type Config struct {
	Binary         string
	PDFEngine      string
	TimeoutSeconds int
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Client renders markdown documents to PDF with pandoc.
type Client struct {
	binary    string
	pdfEngine string
	timeout   time.Duration
	exec      Executor
}

// New constructs a renderer client.
func New(cfg Config, opts ...Option) *Client {
	client := &Client{
		binary:    strings.TrimSpace(cfg.Binary),
		pdfEngine: strings.TrimSpace(cfg.PDFEngine),
		timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
		exec:      commandExecutor{},
	}
	if client.binary == "" {
		client.binary = "pandoc"
	}
	if client.pdfEngine == "" {
		client.pdfEngine = "xelatex"
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Render converts doc.MarkdownPath into doc.OutputPath.
func (c *Client) Render(ctx context.Context, doc Document) error {
	if strings.TrimSpace(doc.MarkdownPath) == "" {
		return errors.New("markdown path required")
	}
	if strings.TrimSpace(doc.OutputPath) == "" {
		return errors.New("output path required")
	}
	if _, err := os.Stat(doc.MarkdownPath); err != nil {
		return fmt.Errorf("inspect markdown: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(doc.OutputPath), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := []string{
		doc.MarkdownPath,
		"-o", doc.OutputPath,
		"--standalone",
		"--pdf-engine=" + c.pdfEngine,
		"-V", "geometry:margin=2.5cm",
	}
	if doc.ResourceDir != "" {
		args = append(args, "--resource-path="+doc.ResourceDir)
	}
	if doc.Title != "" {
		args = append(args, "--metadata=title:"+doc.Title)
	}
	if doc.Subtitle != "" {
		args = append(args, "--metadata=subtitle:"+doc.Subtitle)
	}

	if err := c.exec.Run(runCtx, c.binary, args); err != nil {
		return fmt.Errorf("pandoc render: %w", err)
	}

	info, err := os.Stat(doc.OutputPath)
	if errors.Is(err, os.ErrNotExist) {
		return errors.New("pandoc produced no output file")
	}
	if err != nil {
		return fmt.Errorf("inspect output: %w", err)
	}
	if info.Size() == 0 {
		return errors.New("pandoc produced an empty file")
	}
	return nil
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(output))
		if detail == "" {
			return err
		}
		return fmt.Errorf("%w: %s", err, detail)
	}
	return nil
}

var _ Renderer = (*Client)(nil)
