// Package notifications delivers pipeline events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when no topic is set.
// Enumerated event types cover the pipeline milestones operators care about
// (job completed, job failed, stale recovery) so the workflow manager can emit
// consistent messages without duplicating HTTP glue, and per-event config
// flags suppress the ones an operator does not want.
//
// Extend this package if you need alternative transports; all workflow code
// depends only on the simple Service interface.
package notifications
