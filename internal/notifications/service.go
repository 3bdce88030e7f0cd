package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fieldpress/internal/config"
)

const userAgent = "Fieldpress/0.1.0"

// Event identifies a pipeline milestone worth pushing to the operator.
type Event string

const (
	EventJobCompleted   Event = "job-completed"
	EventJobFailed      Event = "job-failed"
	EventStaleRecovered Event = "stale-recovered"
)

// Payload carries the event-specific fields used to format the message.
//
// Recognized keys by event:
//   - EventJobCompleted: title, category, assetID, kind ("lessons" or "workbooks")
//   - EventJobFailed: jobID, jobType, error
//   - EventStaleRecovered: requeued, failed
type Payload map[string]string

// Service defines the notification surface exposed to workflow components.
type Service interface {
	Publish(ctx context.Context, event Event, data Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventJobCompleted:   cfg.Notifications.Completed,
			EventJobFailed:      cfg.Notifications.Failed,
			EventStaleRecovered: cfg.Notifications.Recovery,
		},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

// Publish formats the event and posts it to the configured topic. Events the
// operator disabled in config, and events this service does not recognize,
// are dropped without error.
func (n *ntfyService) Publish(ctx context.Context, event Event, data Payload) error {
	if !n.enabled[event] {
		return nil
	}
	msg, ok := formatEvent(event, data)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func formatEvent(event Event, data Payload) (message, bool) {
	switch event {
	case EventJobCompleted:
		subject := firstNonEmpty(data["title"], data["filename"], "asset")
		category := strings.TrimSpace(data["category"])
		assetID := strings.TrimSpace(data["assetID"])
		if category != "" && assetID != "" {
			subject = fmt.Sprintf("%s (%s #%s)", subject, category, assetID)
		}
		verb := "Published"
		if strings.TrimSpace(data["kind"]) == "workbooks" {
			verb = "Workbooks ready"
		}
		return message{
			title: "Fieldpress - Job Complete",
			body:  fmt.Sprintf("✅ %s: %s", verb, subject),
			tags:  []string{"fieldpress", "job", "completed"},
		}, true
	case EventJobFailed:
		reason := firstNonEmpty(data["error"], "unknown")
		var builder strings.Builder
		builder.WriteString("❌ Job")
		if jobID := strings.TrimSpace(data["jobID"]); jobID != "" {
			builder.WriteString(" #")
			builder.WriteString(jobID)
		}
		if jobType := strings.TrimSpace(data["jobType"]); jobType != "" {
			builder.WriteString(" (")
			builder.WriteString(jobType)
			builder.WriteString(")")
		}
		builder.WriteString(" failed: ")
		builder.WriteString(reason)
		return message{
			title:    "Fieldpress - Job Failed",
			body:     builder.String(),
			tags:     []string{"fieldpress", "job", "failed"},
			priority: "high",
		}, true
	case EventStaleRecovered:
		requeued := firstNonEmpty(data["requeued"], "0")
		failed := firstNonEmpty(data["failed"], "0")
		return message{
			title: "Fieldpress - Stale Jobs Recovered",
			body:  fmt.Sprintf("♻️ Recovered stale jobs: %s requeued, %s failed", requeued, failed),
			tags:  []string{"fieldpress", "queue", "recovered"},
		}, true
	}
	return message{}, false
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
