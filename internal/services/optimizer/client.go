package optimizer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Kind names for the generated photo variants. KindPhoto is the web-sized
// rendition stored alongside the thumbnail and the blur-up placeholder.
const (
	KindPhoto       = "photo"
	KindThumb       = "thumb"
	KindPlaceholder = "placeholder"
)

const placeholderQuality = 40

// Variant describes one generated image file.
type Variant struct {
	Kind  string
	Path  string
	Width int
}

// Generator defines the behaviour required by the lesson stage.
type Generator interface {
	Generate(ctx context.Context, sourcePath, destDir string, onError func(kind string, err error)) ([]Variant, error)
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) error
}

// Config carries the ImageMagick invocation settings.
type Config struct {
	Binary           string
	TimeoutSeconds   int
	ThumbWidth       int
	WebWidth         int
	PlaceholderWidth int
	WebQuality       int
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

// Client generates resized photo variants with ImageMagick.
type Client struct {
	binary           string
	timeout          time.Duration
	thumbWidth       int
	webWidth         int
	placeholderWidth int
	webQuality       int
	exec             Executor
}

// New constructs an optimizer client. Zero-valued settings fall back to the
// stock variant dimensions.
func New(cfg Config, opts ...Option) *Client {
	client := &Client{
		binary:           strings.TrimSpace(cfg.Binary),
		timeout:          time.Duration(cfg.TimeoutSeconds) * time.Second,
		thumbWidth:       cfg.ThumbWidth,
		webWidth:         cfg.WebWidth,
		placeholderWidth: cfg.PlaceholderWidth,
		webQuality:       cfg.WebQuality,
		exec:             commandExecutor{},
	}
	if client.binary == "" {
		client.binary = "magick"
	}
	if client.thumbWidth <= 0 {
		client.thumbWidth = 320
	}
	if client.webWidth <= 0 {
		client.webWidth = 1280
	}
	if client.placeholderWidth <= 0 {
		client.placeholderWidth = 24
	}
	if client.webQuality <= 0 {
		client.webQuality = 82
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type variantPlan struct {
	kind    string
	width   int
	quality int
}

// Generate renders the configured variants for sourcePath into destDir.
// Individual variant failures are reported through onError and skipped; the
// returned slice holds only the variants that were produced.
func (c *Client) Generate(ctx context.Context, sourcePath, destDir string, onError func(kind string, err error)) ([]Variant, error) {
	if strings.TrimSpace(sourcePath) == "" {
		return nil, errors.New("source path required")
	}
	if strings.TrimSpace(destDir) == "" {
		return nil, errors.New("destination directory required")
	}
	if _, err := os.Stat(sourcePath); err != nil {
		return nil, fmt.Errorf("inspect source: %w", err)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("create destination: %w", err)
	}

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	plans := []variantPlan{
		{kind: KindPhoto, width: c.webWidth, quality: c.webQuality},
		{kind: KindThumb, width: c.thumbWidth, quality: c.webQuality},
		{kind: KindPlaceholder, width: c.placeholderWidth, quality: placeholderQuality},
	}

	variants := make([]Variant, 0, len(plans))
	for _, plan := range plans {
		if err := runCtx.Err(); err != nil {
			return variants, err
		}
		destPath := filepath.Join(destDir, plan.kind+".jpg")
		if err := c.renderVariant(runCtx, sourcePath, destPath, plan); err != nil {
			if onError != nil {
				onError(plan.kind, err)
			}
			continue
		}
		variants = append(variants, Variant{Kind: plan.kind, Path: destPath, Width: plan.width})
	}
	return variants, nil
}

func (c *Client) renderVariant(ctx context.Context, sourcePath, destPath string, plan variantPlan) error {
	// The trailing > makes ImageMagick shrink-only, so small sources pass
	// through at their native size.
	args := []string{
		sourcePath,
		"-auto-orient",
		"-strip",
		"-resize", fmt.Sprintf("%dx%d>", plan.width, plan.width),
		"-quality", strconv.Itoa(plan.quality),
		destPath,
	}
	if err := c.exec.Run(ctx, c.binary, args); err != nil {
		return fmt.Errorf("magick resize: %w", err)
	}
	info, err := os.Stat(destPath)
	if errors.Is(err, os.ErrNotExist) {
		return errors.New("magick produced no output file")
	}
	if err != nil {
		return fmt.Errorf("inspect output: %w", err)
	}
	if info.Size() == 0 {
		return errors.New("magick produced an empty file")
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

var _ Generator = (*Client)(nil)
