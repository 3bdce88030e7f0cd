package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"fieldpress/internal/api"
)

func buildQueueStatusRows(stats map[string]int) [][]string {
	if len(stats) == 0 {
		return nil
	}
	keys := make([]string, 0, len(stats))
	for key := range stats {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{formatStatusLabel(key), fmt.Sprintf("%d", stats[key])})
	}
	return rows
}

func buildQueueListRows(items []api.QueueItem) [][]string {
	if len(items) == 0 {
		return nil
	}
	sorted := api.SortJobsNewestFirst(items)

	rows := make([][]string, 0, len(sorted))
	for _, item := range sorted {
		rows = append(rows, []string{
			fmt.Sprintf("%d", item.ID),
			formatStatusLabel(item.Type),
			jobDisplayName(item),
			item.Category,
			formatStatusLabel(item.Status),
			formatRelativeTime(item.CreatedAt),
		})
	}
	return rows
}

// jobDisplayName prefers the generated title over the uploaded filename.
func jobDisplayName(item api.QueueItem) string {
	if title := strings.TrimSpace(item.Title); title != "" {
		return title
	}
	if name := strings.TrimSpace(item.Filename); name != "" {
		return name
	}
	if source := strings.TrimSpace(item.SourceRef); source != "" {
		return filepath.Base(source)
	}
	return "Unknown"
}

func formatStatusLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	parts := strings.FieldsFunc(value, func(r rune) bool {
		return r == '_' || r == '-'
	})
	for i, part := range parts {
		lower := strings.ToLower(part)
		if lower == "" {
			continue
		}
		parts[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(parts, " ")
}

func formatRelativeTime(value string) string {
	parsed := api.ParseQueueTime(value)
	if parsed.IsZero() {
		return strings.TrimSpace(value)
	}
	return humanize.Time(parsed)
}

func formatDisplayTime(value string) string {
	parsed := api.ParseQueueTime(value)
	if parsed.IsZero() {
		return strings.TrimSpace(value)
	}
	return parsed.UTC().Format("2006-01-02 15:04")
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	return d.Round(time.Second).String()
}
