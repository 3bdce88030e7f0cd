package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"fieldpress/internal/config"
	"fieldpress/internal/services/llm"
)

// MinFreeBytes is the free-space floor the work filesystem is checked
// against. A sparse checkout plus one asset's rendered PDFs stays far below
// this; running under it risks failures mid-publish.
const MinFreeBytes = 1 << 30

// CheckDirectoryAccess verifies that the directory exists and is readable
// and writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckDiskSpace verifies the filesystem holding path has at least min bytes
// free for the current user.
func CheckDiskSpace(name, path string, min uint64) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	detail := fmt.Sprintf("%s free on %s", humanize.IBytes(free), path)
	if free < min {
		return Result{Name: name, Detail: fmt.Sprintf("%s (need at least %s)", detail, humanize.IBytes(min))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckGalleryRemote verifies the publish remote and commit authorship are
// configured. Connectivity is left to the first publish; a remote that needs
// credentials would make this check hang on a prompt otherwise.
func CheckGalleryRemote(cfg *config.Config) Result {
	const name = "Gallery remote"
	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	remote := strings.TrimSpace(cfg.Gallery.RemoteURL)
	if remote == "" {
		return Result{Name: name, Detail: "missing gallery.remote_url"}
	}
	if strings.TrimSpace(cfg.Gallery.AuthorName) == "" || strings.TrimSpace(cfg.Gallery.AuthorEmail) == "" {
		return Result{Name: name, Detail: "missing commit author (gallery.author_name, gallery.author_email)"}
	}
	return Result{Name: name, Passed: true, Detail: remote}
}

// CheckLLM verifies that the content generation API is reachable and the key
// is valid. It uses a 30-second timeout and a single attempt (no retries).
func CheckLLM(ctx context.Context, name string, cfg config.LLMConfig) Result {
	if cfg.APIKey == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Referer: cfg.Referer,
		Title:   cfg.Title,
	}, llm.WithRetryMaxAttempts(1))

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeLLMError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// summarizeLLMError produces a human-readable summary for content service
// health check failures.
func summarizeLLMError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (content API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (content API unreachable)"
	}
	return err.Error()
}
