package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fieldpress/internal/api"
	"fieldpress/internal/config"
	"fieldpress/internal/preflight"
	"fieldpress/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency, and queue status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			snapshot := fetchDaemonStatus(cmd.Context(), cfg)

			renderSectionHeader(stdout, "Daemon", colorize)
			if snapshot != nil && snapshot.Running {
				fmt.Fprintln(stdout, renderStatusLine("State", statusOK, fmt.Sprintf("running (pid %d)", snapshot.PID), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Queue database", statusInfo, snapshot.QueueDBPath, colorize))
				fmt.Fprintln(stdout, renderStatusLine("Workflow", workflowKind(snapshot.Workflow), workflowDetail(snapshot.Workflow), colorize))
			} else {
				fmt.Fprintln(stdout, renderStatusLine("State", statusWarn, "not running (start it with `fieldpress start`)", colorize))
			}
			fmt.Fprintln(stdout)

			renderSectionHeader(stdout, "Checks", colorize)
			results := preflight.RunAll(cfg)
			if full {
				results = append(results,
					preflight.CheckLLMFromConfig(cfg),
					preflight.CheckNotificationsFromConfig(cfg),
				)
			}
			for _, result := range results {
				fmt.Fprintln(stdout, renderStatusLine(result.Name, passKind(result.Passed), result.Detail, colorize))
			}
			fmt.Fprintln(stdout)

			renderSectionHeader(stdout, "Dependencies", colorize)
			deps := snapshotDependencies(snapshot, cfg)
			for _, line := range dependencyLines(deps, colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout)

			if snapshot != nil && len(snapshot.Workflow.StageHealth) > 0 {
				renderSectionHeader(stdout, "Stages", colorize)
				for _, health := range snapshot.Workflow.StageHealth {
					kind, detail := statusOK, "ready"
					if !health.Ready {
						kind = statusWarn
						detail = strings.TrimSpace(health.Detail)
						if detail == "" {
							detail = "not ready"
						}
					}
					fmt.Fprintln(stdout, renderStatusLine(health.Name, kind, detail, colorize))
				}
				fmt.Fprintln(stdout)
			}

			renderSectionHeader(stdout, "Queue", colorize)
			stats, err := queueStats(cmd.Context(), ctx, snapshot)
			if err != nil {
				return err
			}
			rows := buildQueueStatusRows(stats)
			if len(rows) == 0 {
				fmt.Fprintln(stdout, "Queue is empty")
				return nil
			}
			fmt.Fprintln(stdout, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "Include content service and notification checks")
	return cmd
}

// fetchDaemonStatus queries the daemon HTTP API, returning nil when no
// daemon is reachable. Status degrades to config-derived checks in that case
// rather than failing.
func fetchDaemonStatus(ctx context.Context, cfg *config.Config) *api.DaemonStatus {
	bind := strings.TrimSpace(cfg.Daemon.APIBind)
	if bind == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+bind+"/api/status", nil)
	if err != nil {
		return nil
	}
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}
	var status api.DaemonStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil
	}
	return &status
}

func workflowKind(wf api.WorkflowStatus) statusKind {
	if !wf.Running || strings.TrimSpace(wf.LastError) != "" {
		return statusWarn
	}
	return statusOK
}

func workflowDetail(wf api.WorkflowStatus) string {
	detail := "running"
	if !wf.Running {
		detail = "stopped"
	}
	if msg := strings.TrimSpace(wf.LastError); msg != "" {
		detail = fmt.Sprintf("%s (last error: %s)", detail, msg)
	}
	return detail
}

func snapshotDependencies(snapshot *api.DaemonStatus, cfg *config.Config) []api.DependencyStatus {
	if snapshot != nil {
		return snapshot.Dependencies
	}
	return api.FromDependencyStatuses(preflight.CheckSystemDeps(cfg))
}

func dependencyLines(deps []api.DependencyStatus, colorize bool) []string {
	lines := make([]string, 0, len(deps)+1)
	missing := make([]string, 0)
	for _, dep := range deps {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
		missing = append(missing, dep.Name)
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing", statusWarn, strings.Join(missing, ", "), colorize))
	}
	return lines
}

func queueStats(runCtx context.Context, ctx *commandContext, snapshot *api.DaemonStatus) (map[string]int, error) {
	if snapshot != nil && snapshot.Workflow.QueueStats != nil {
		return snapshot.Workflow.QueueStats, nil
	}
	var stats map[string]int
	err := ctx.withStore(func(store *queue.Store) error {
		raw, err := store.Stats(runCtx)
		if err != nil {
			return err
		}
		stats = api.MergeQueueStats(raw)
		return nil
	})
	return stats, err
}
