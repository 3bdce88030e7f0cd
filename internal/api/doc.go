// Package api defines wire-format types and converters for the daemon's HTTP
// status API. It translates internal queue models into transport-friendly
// DTOs so the CLI and other consumers never couple to internal types.
//
// # Key Types
//
// QueueItem: transport representation of a job with timestamps formatted for
// display.
//
// WorkflowStatus: scheduler running state, queue stats, stage health, and
// the last processed job.
//
// DaemonStatus: aggregated runtime information including external binary
// dependencies.
//
// # Converters
//
// FromJob: queue.Job -> QueueItem.
//
// FromStatusSummary: workflow.StatusSummary -> WorkflowStatus with
// deterministic stage health ordering.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Internal enums (queue.Status, queue.JobType)
// are exposed as their lowercase string forms. Timestamps use RFC3339 with
// milliseconds.
package api
