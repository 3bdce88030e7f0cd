package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeIngest()
	c.normalizeLLM()
	c.normalizeOptimizer()
	c.normalizeRenderer()
	c.normalizeGallery()
	c.normalizeDaemon()
	c.normalizeLogging()
	c.normalizeNotifications()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.InboxDir, err = expandPath(c.Paths.InboxDir); err != nil {
		return fmt.Errorf("paths.inbox_dir: %w", err)
	}
	if c.Paths.ProcessedDir, err = expandPath(c.Paths.ProcessedDir); err != nil {
		return fmt.Errorf("paths.processed_dir: %w", err)
	}
	if c.Paths.DuplicatesDir, err = expandPath(c.Paths.DuplicatesDir); err != nil {
		return fmt.Errorf("paths.duplicates_dir: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeIngest() {
	c.Ingest.DefaultCategory = strings.ToLower(strings.TrimSpace(c.Ingest.DefaultCategory))
	if c.Ingest.DefaultCategory == "" {
		c.Ingest.DefaultCategory = defaultCategory
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	if c.LLM.Referer == "" {
		c.LLM.Referer = defaultLLMReferer
	}
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.Title == "" {
		c.LLM.Title = defaultLLMTitle
	}
	// Zero means no pacing between generation calls; only negatives are nonsense.
	if c.LLM.RequestIntervalSeconds < 0 {
		c.LLM.RequestIntervalSeconds = 0
	}
	if c.LLM.PromptCostPerMTok < 0 {
		c.LLM.PromptCostPerMTok = 0
	}
	if c.LLM.CompletionCostPerMTok < 0 {
		c.LLM.CompletionCostPerMTok = 0
	}
}

func (c *Config) normalizeOptimizer() {
	c.Optimizer.Binary = strings.TrimSpace(c.Optimizer.Binary)
	if c.Optimizer.Binary == "" {
		c.Optimizer.Binary = defaultOptimizerBinary
	}
}

func (c *Config) normalizeRenderer() {
	c.Renderer.Binary = strings.TrimSpace(c.Renderer.Binary)
	if c.Renderer.Binary == "" {
		c.Renderer.Binary = defaultRendererBinary
	}
	c.Renderer.PDFEngine = strings.TrimSpace(c.Renderer.PDFEngine)
	if c.Renderer.PDFEngine == "" {
		c.Renderer.PDFEngine = defaultPDFEngine
	}
}

func (c *Config) normalizeGallery() {
	c.Gallery.RemoteURL = strings.TrimSpace(c.Gallery.RemoteURL)
	c.Gallery.Branch = strings.TrimSpace(c.Gallery.Branch)
	if c.Gallery.Branch == "" {
		c.Gallery.Branch = defaultGalleryBranch
	}
	c.Gallery.AuthorName = strings.TrimSpace(c.Gallery.AuthorName)
	if c.Gallery.AuthorName == "" {
		c.Gallery.AuthorName = defaultGalleryAuthorName
	}
	c.Gallery.AuthorEmail = strings.TrimSpace(c.Gallery.AuthorEmail)
	if c.Gallery.AuthorEmail == "" {
		c.Gallery.AuthorEmail = defaultGalleryAuthorEmail
	}
	if c.Gallery.PushRetries < 0 {
		c.Gallery.PushRetries = 0
	}
	c.Gallery.GitBinary = strings.TrimSpace(c.Gallery.GitBinary)
	if c.Gallery.GitBinary == "" {
		c.Gallery.GitBinary = defaultGitBinary
	}
}

func (c *Config) normalizeDaemon() {
	c.Daemon.APIBind = strings.TrimSpace(c.Daemon.APIBind)
	if c.Daemon.APIBind == "" {
		c.Daemon.APIBind = defaultAPIBind
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
}
