// Package queue persists pipeline jobs in SQLite and exposes helpers for
// driving their lifecycle.
//
// The Store manages database connections, schema initialization, stats
// queries, stale-job recovery, retention pruning, and the status transitions
// pending, processing, completed, and failed. Claiming is a compare-and-swap
// update guarded on the pending status and on the absence of any other
// processing job, so the pipeline runs strictly one job at a time. Timestamps
// are stamped by the store in UTC RFC 3339 form; callers never supply their
// own.
//
// The database is treated as transient storage for in-flight jobs rather than
// a long-term archive. Schema changes bump the version in schema.go; users
// clear the database to adopt the new schema.
//
// Treat this package as the single source of truth for queue semantics; when
// you add new statuses or job fields, update schema.sql and bump
// schemaVersion.
package queue
