package config

import (
	"errors"
	"fmt"
	"strings"

	"fieldpress/internal/standards"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateIngest(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateOptimizer(); err != nil {
		return err
	}
	if err := c.validateRenderer(); err != nil {
		return err
	}
	if err := c.validateGallery(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.InboxDir) == "" {
		return errors.New("paths.inbox_dir must be set")
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func (c *Config) validateIngest() error {
	if !standards.IsCategory(c.Ingest.DefaultCategory) {
		return fmt.Errorf("ingest.default_category %q is not a known category (one of: %s)",
			c.Ingest.DefaultCategory, strings.Join(standards.Categories(), ", "))
	}
	return ensurePositiveMap(map[string]int{
		"ingest.rescan_interval_minutes": c.Ingest.RescanIntervalMinutes,
		"ingest.max_source_mib":          c.Ingest.MaxSourceMiB,
	})
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.queue_poll_interval":       c.Workflow.QueuePollInterval,
		"workflow.stale_job_minutes":         c.Workflow.StaleJobMinutes,
		"workflow.max_attempts":              c.Workflow.MaxAttempts,
		"workflow.completed_retention_hours": c.Workflow.CompletedRetentionHours,
	}); err != nil {
		return err
	}
	if c.Workflow.StaleJobMinutes*60 <= c.Workflow.QueuePollInterval {
		return errors.New("workflow.stale_job_minutes must exceed workflow.queue_poll_interval")
	}
	return nil
}

func (c *Config) validateLLM() error {
	if c.LLM.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/fieldpress/config.toml"
		}
		return fmt.Errorf("llm.api_key is required. Set OPENROUTER_API_KEY env var or edit %s (create with 'fieldpress config init')", defaultPath)
	}
	return ensurePositiveMap(map[string]int{
		"llm.timeout_seconds": c.LLM.TimeoutSeconds,
	})
}

func (c *Config) validateOptimizer() error {
	if err := ensurePositiveMap(map[string]int{
		"optimizer.timeout_seconds":   c.Optimizer.TimeoutSeconds,
		"optimizer.thumb_width":       c.Optimizer.ThumbWidth,
		"optimizer.web_width":         c.Optimizer.WebWidth,
		"optimizer.placeholder_width": c.Optimizer.PlaceholderWidth,
	}); err != nil {
		return err
	}
	if c.Optimizer.WebQuality < 1 || c.Optimizer.WebQuality > 100 {
		return errors.New("optimizer.web_quality must be between 1 and 100")
	}
	return nil
}

func (c *Config) validateRenderer() error {
	return ensurePositiveMap(map[string]int{
		"renderer.timeout_seconds": c.Renderer.TimeoutSeconds,
	})
}

func (c *Config) validateGallery() error {
	if c.Gallery.RemoteURL == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/fieldpress/config.toml"
		}
		return fmt.Errorf("gallery.remote_url is required. Edit %s (create with 'fieldpress config init')", defaultPath)
	}
	if c.Gallery.Branch == "" {
		return errors.New("gallery.branch must be set")
	}
	return ensurePositiveMap(map[string]int{
		"gallery.timeout_seconds": c.Gallery.TimeoutSeconds,
	})
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
