package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a queue job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// JobType distinguishes the two pipeline stages a job can run.
type JobType string

const (
	TypePrimary  JobType = "primary-generation"
	TypeFollowup JobType = "followup-generation"
)

// StaleFailureReason is the error message recorded when a stale job has no
// attempt budget left.
const StaleFailureReason = "exceeded max attempts (stale)"

// StaleRequeueReason is the error message recorded when a stale job is
// returned to pending.
const StaleRequeueReason = "stale processing job recovered"

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var allTypes = []JobType{TypePrimary, TypeFollowup}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalJobs        int
	Error            string
}

// HealthSummary describes aggregated queue counts per lifecycle state.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Completed  int
	Failed     int
}

// Job represents a pipeline job persisted in SQLite.
//
// Lifecycle fields (Status, Attempts, CreatedAt, StartedAt, CompletedAt) are
// owned by the store and move only through its transition methods; Update
// persists the remaining fields.
type Job struct {
	ID          int64
	Type        JobType
	SourceRef   string
	Category    string
	Filename    string
	Title       string
	AssetID     int64
	Status      Status
	Attempts    int
	Reprocess   bool
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// AllTypes returns the known job types.
func AllTypes() []JobType {
	cp := make([]JobType, len(allTypes))
	copy(cp, allTypes)
	return cp
}

// ParseType converts a string into a known JobType.
func ParseType(value string) (JobType, bool) {
	normalized := JobType(strings.ToLower(strings.TrimSpace(value)))
	for _, t := range allTypes {
		if t == normalized {
			return t, true
		}
	}
	return "", false
}

// IsProcessing reports whether the job is currently in flight.
func (j Job) IsProcessing() bool {
	return j.Status == StatusProcessing
}

// IsTerminal reports whether the job reached a final state.
func (j Job) IsTerminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}
