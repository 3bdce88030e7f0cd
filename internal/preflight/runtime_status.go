package preflight

import (
	"context"
	"fmt"
	"strings"

	"fieldpress/internal/config"
)

// CheckLLMFromConfig evaluates content service status from config and
// connectivity. Used by the status command; the daemon startup path skips it.
func CheckLLMFromConfig(cfg *config.Config) Result {
	const name = "Content service"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	llmCfg := cfg.GetLLM()
	if llmCfg.APIKey == "" {
		return Result{Name: name, Detail: "Missing API key"}
	}
	check := CheckLLM(context.Background(), name, llmCfg)
	if check.Passed {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", check.Detail, llmCfg.Model)}
	}
	return Result{Name: name, Detail: check.Detail}
}

// CheckNotificationsFromConfig evaluates notification status from config.
// Reachability is not probed: a test POST would push a visible notification.
func CheckNotificationsFromConfig(cfg *config.Config) Result {
	const name = "Notifications"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	return Result{Name: name, Passed: true, Detail: topic}
}
