// Package metrics exposes the daemon's Prometheus collectors. Collectors are
// registered on the default registry at init and served by the status API's
// /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"fieldpress/internal/queue"
	"fieldpress/internal/services/llm"
)

var (
	// JobsProcessed counts finished jobs by type and outcome
	// (completed, requeued, failed).
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldpress_jobs_processed_total",
		Help: "Total number of processed pipeline jobs.",
	}, []string{"type", "outcome"})

	// JobDuration observes wall-clock job execution time per job type.
	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fieldpress_job_duration_seconds",
		Help:    "Duration of pipeline job execution.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"type"})

	// PublishRetries counts push conflicts that forced a fetch and rebase.
	PublishRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fieldpress_publish_retries_total",
		Help: "Total number of gallery push retries after remote conflicts.",
	})

	// LLMTokens counts tokens exchanged with the content service by kind
	// (prompt, completion).
	LLMTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldpress_llm_tokens_total",
		Help: "Total tokens exchanged with the generative content service.",
	}, []string{"kind"})

	// LLMCost accumulates the estimated content generation spend in dollars.
	LLMCost = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fieldpress_llm_cost_dollars_total",
		Help: "Estimated cumulative content generation cost in dollars.",
	})

	// QueueJobs tracks the current number of queue jobs per status.
	QueueJobs = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fieldpress_queue_jobs",
		Help: "Current number of queue jobs by status.",
	}, []string{"status"})

	// StaleRecoveries counts processing jobs reclaimed by the scheduler.
	StaleRecoveries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fieldpress_stale_recoveries_total",
		Help: "Total number of stale processing jobs recovered.",
	})
)

// ObserveJob records one finished job execution.
func ObserveJob(jobType queue.JobType, outcome string, seconds float64) {
	JobsProcessed.WithLabelValues(string(jobType), outcome).Inc()
	JobDuration.WithLabelValues(string(jobType)).Observe(seconds)
}

// ObserveLLMUsage records token counts and estimated cost for one content
// service call.
func ObserveLLMUsage(usage llm.Usage, cost float64) {
	LLMTokens.WithLabelValues("prompt").Add(float64(usage.PromptTokens))
	LLMTokens.WithLabelValues("completion").Add(float64(usage.CompletionTokens))
	if cost > 0 {
		LLMCost.Add(cost)
	}
}

// SetQueueGauges publishes current queue depths. Statuses absent from counts
// are reset to zero so completed drains show up.
func SetQueueGauges(counts map[queue.Status]int) {
	for _, status := range queue.AllStatuses() {
		QueueJobs.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}
