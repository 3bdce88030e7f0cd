// Package workflow drives the processing pipeline over the job queue.
//
// The Manager owns a single scheduler goroutine. Each pass recovers stale
// processing jobs, prunes old completed ones, claims the oldest pending job,
// and dispatches it to the stage handler registered for its type. The queue
// store enforces single-in-flight claims, so one goroutine is all the
// concurrency the pipeline needs; everything the scheduler knows about a job
// between restarts lives in the store, never in memory.
//
// Stage handlers implement the stage.Handler contract. A handler error is
// classified through the services sentinel markers: permanent errors fail the
// job immediately, everything else consumes one attempt and requeues until
// the attempt budget runs out.
package workflow
