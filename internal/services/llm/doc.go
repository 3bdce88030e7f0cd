// Package llm provides an OpenRouter chat client for content generation.
//
// This package is used by:
//   - Lesson stage: per-band lesson markdown and keyword generation from a
//     photograph attached as a base64 data URL
//   - Workbook stage: structured activity-workbook JSON per grade band
//   - Preflight: API reachability ping
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.Complete: free-form completion, optional image attachment.
// Client.CompleteJSON: JSON-only completion, optional image attachment.
// Client.HealthCheck: verify API key and model availability.
// DecodeLLMJSON / DecodeValidatedJSON: parse model payloads, the latter
// checking them against a compiled JSON Schema first.
//
// # Accounting
//
// Every completion returns the provider's token usage; Usage.Cost converts
// counts into dollars using the configured per-million-token rates so stages
// can record processing cost on the asset.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors and network timeouts with
// exponential backoff (base 1s, max 10s, up to 5 attempts by default),
// honoring Retry-After when the provider sends one. Context cancellation
// aborts retries immediately. A configured request interval additionally
// paces successive calls to stay under provider rate limits.
package llm
