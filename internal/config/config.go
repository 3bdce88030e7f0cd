package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// ErrConfigNotFound reports that no configuration file exists at any searched
// location. Load itself treats a missing file as "use defaults"; strict
// callers use LoadExisting.
var ErrConfigNotFound = errors.New("config file not found")

// Paths contains directory configuration.
type Paths struct {
	InboxDir      string `toml:"inbox_dir"`
	ProcessedDir  string `toml:"processed_dir"`
	DuplicatesDir string `toml:"duplicates_dir"`
	StateDir      string `toml:"state_dir"`
	LogDir        string `toml:"log_dir"`
	WorkDir       string `toml:"work_dir"`
}

// Ingest contains configuration for inbox scanning and enqueue limits.
type Ingest struct {
	Watch                 bool   `toml:"watch"`
	RescanIntervalMinutes int    `toml:"rescan_interval_minutes"`
	MaxSourceMiB          int    `toml:"max_source_mib"`
	DefaultCategory       string `toml:"default_category"`
}

// Workflow contains configuration for scheduler timing and retry budgets.
type Workflow struct {
	QueuePollInterval       int `toml:"queue_poll_interval"`
	StaleJobMinutes         int `toml:"stale_job_minutes"`
	MaxAttempts             int `toml:"max_attempts"`
	CompletedRetentionHours int `toml:"completed_retention_hours"`
}

// LLM contains connection settings for the generative content service.
type LLM struct {
	APIKey                 string  `toml:"api_key"`
	BaseURL                string  `toml:"base_url"`
	Model                  string  `toml:"model"`
	Referer                string  `toml:"referer"`
	Title                  string  `toml:"title"`
	TimeoutSeconds         int     `toml:"timeout_seconds"`
	RequestIntervalSeconds int     `toml:"request_interval_seconds"`
	PromptCostPerMTok      float64 `toml:"prompt_cost_per_mtok"`
	CompletionCostPerMTok  float64 `toml:"completion_cost_per_mtok"`
}

// Optimizer contains configuration for image variant generation.
type Optimizer struct {
	Binary           string `toml:"binary"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
	ThumbWidth       int    `toml:"thumb_width"`
	WebWidth         int    `toml:"web_width"`
	PlaceholderWidth int    `toml:"placeholder_width"`
	WebQuality       int    `toml:"web_quality"`
}

// Renderer contains configuration for PDF rendering.
type Renderer struct {
	Binary         string `toml:"binary"`
	PDFEngine      string `toml:"pdf_engine"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Gallery contains configuration for the shared asset library repository.
type Gallery struct {
	RemoteURL      string `toml:"remote_url"`
	Branch         string `toml:"branch"`
	AuthorName     string `toml:"author_name"`
	AuthorEmail    string `toml:"author_email"`
	PushRetries    int    `toml:"push_retries"`
	GitBinary      string `toml:"git_binary"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Daemon contains configuration for the daemon's local status API.
type Daemon struct {
	APIBind string `toml:"api_bind"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Completed      bool   `toml:"completed"`
	Failed         bool   `toml:"failed"`
	Recovery       bool   `toml:"recovery"`
}

// Config encapsulates all configuration values for Fieldpress.
//
// Configuration sections by subsystem:
//   - Paths: inbox, processed, duplicates, state, log, and scratch directories
//   - Ingest: inbox watching, rescan cadence, source size cap, default category
//   - Workflow: scheduler poll interval, stale threshold, attempt budget, pruning
//   - LLM: generative content service connection and cost accounting
//   - Optimizer: ImageMagick binary and variant dimensions
//   - Renderer: pandoc binary and PDF engine
//   - Gallery: asset library remote, authorship, push retry budget
//   - Daemon: local status API bind address
//   - Logging: log format and level
//   - Notifications: ntfy push notification settings
type Config struct {
	Paths         Paths         `toml:"paths"`
	Ingest        Ingest        `toml:"ingest"`
	Workflow      Workflow      `toml:"workflow"`
	LLM           LLM           `toml:"llm"`
	Optimizer     Optimizer     `toml:"optimizer"`
	Renderer      Renderer      `toml:"renderer"`
	Gallery       Gallery       `toml:"gallery"`
	Daemon        Daemon        `toml:"daemon"`
	Logging       Logging       `toml:"logging"`
	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/fieldpress/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// LoadExisting behaves like Load but requires a configuration file on disk.
func LoadExisting(path string) (*Config, string, error) {
	cfg, resolvedPath, exists, err := Load(path)
	if err != nil {
		return nil, "", err
	}
	if !exists {
		return nil, resolvedPath, fmt.Errorf("%w: %s", ErrConfigNotFound, resolvedPath)
	}
	return cfg, resolvedPath, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/fieldpress/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("fieldpress.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.InboxDir,
		c.Paths.ProcessedDir,
		c.Paths.DuplicatesDir,
		c.Paths.StateDir,
		c.Paths.LogDir,
		c.Paths.WorkDir,
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// MaxSourceBytes returns the ingest size cap in bytes.
func (c *Config) MaxSourceBytes() int64 {
	return int64(c.Ingest.MaxSourceMiB) * 1024 * 1024
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// ResolvePath reports the configuration file the given path would resolve to
// and whether it exists, without parsing or validating it.
func ResolvePath(path string) (string, bool, error) {
	return resolveConfigPath(path)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains generative service settings in resolved form.
type LLMConfig struct {
	APIKey                 string
	BaseURL                string
	Model                  string
	Referer                string
	Title                  string
	TimeoutSeconds         int
	RequestIntervalSeconds int
	PromptCostPerMTok      float64
	CompletionCostPerMTok  float64
}

// GetLLM returns the generative content service connection settings.
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		APIKey:                 strings.TrimSpace(c.LLM.APIKey),
		BaseURL:                strings.TrimSpace(c.LLM.BaseURL),
		Model:                  strings.TrimSpace(c.LLM.Model),
		Referer:                strings.TrimSpace(c.LLM.Referer),
		Title:                  strings.TrimSpace(c.LLM.Title),
		TimeoutSeconds:         c.LLM.TimeoutSeconds,
		RequestIntervalSeconds: c.LLM.RequestIntervalSeconds,
		PromptCostPerMTok:      c.LLM.PromptCostPerMTok,
		CompletionCostPerMTok:  c.LLM.CompletionCostPerMTok,
	}
}
