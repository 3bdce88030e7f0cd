package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// NewPrimary inserts a pending primary-generation job for an uploaded source file.
func (s *Store) NewPrimary(ctx context.Context, sourceRef, category, filename string, reprocess bool) (*Job, error) {
	if strings.TrimSpace(sourceRef) == "" {
		return nil, errors.New("source ref is required")
	}
	if strings.TrimSpace(category) == "" {
		return nil, errors.New("category is required")
	}
	if strings.TrimSpace(filename) == "" {
		return nil, errors.New("filename is required")
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (
            type, source_ref, category, filename, status, reprocess, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		TypePrimary,
		sourceRef,
		category,
		filename,
		StatusPending,
		boolToInt(reprocess),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert primary job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// NewFollowup inserts a pending followup-generation job carrying the
// identifiers the primary stage derived.
func (s *Store) NewFollowup(ctx context.Context, sourceRef, category, filename, title string, assetID int64) (*Job, error) {
	if strings.TrimSpace(sourceRef) == "" {
		return nil, errors.New("source ref is required")
	}
	if strings.TrimSpace(category) == "" {
		return nil, errors.New("category is required")
	}
	if strings.TrimSpace(filename) == "" {
		return nil, errors.New("filename is required")
	}
	if assetID <= 0 {
		return nil, errors.New("asset id is required")
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (
            type, source_ref, category, filename, title, asset_id, status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		TypeFollowup,
		sourceRef,
		category,
		filename,
		nullableString(title),
		assetID,
		StatusPending,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert followup job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a job by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// FindActiveBySource returns the first pending or processing job for a source
// reference. The lesson stage uses it to avoid enqueueing a second follow-up
// for an asset whose first follow-up has not finished.
func (s *Store) FindActiveBySource(ctx context.Context, sourceRef string) (*Job, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE source_ref = ? AND status IN (?, ?) ORDER BY id LIMIT 1`,
		sourceRef,
		StatusPending,
		StatusProcessing,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by source: %w", err)
	}
	return job, nil
}

// FindUnresolvedBySource returns the newest pending, processing, or failed
// job for a source reference. The ingest producers use it so a file sitting
// in the inbox is enqueued once: a failed job keeps its file parked until an
// operator retries or removes the job, rather than being re-enqueued on
// every rescan.
func (s *Store) FindUnresolvedBySource(ctx context.Context, sourceRef string) (*Job, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE source_ref = ? AND status IN (?, ?, ?) ORDER BY id DESC LIMIT 1`,
		sourceRef,
		StatusPending,
		StatusProcessing,
		StatusFailed,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by source: %w", err)
	}
	return job, nil
}

// Update persists the non-lifecycle fields of a job. Status, attempts, and
// the created/completed timestamps move only through transition methods.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE jobs
         SET source_ref = ?, category = ?, filename = ?, title = ?, asset_id = ?,
             reprocess = ?, last_error = ?, started_at = ?, updated_at = ?
         WHERE id = ?`,
		nullableString(job.SourceRef),
		job.Category,
		job.Filename,
		nullableString(job.Title),
		job.AssetID,
		boolToInt(job.Reprocess),
		nullableString(job.LastError),
		nullableTime(job.StartedAt),
		job.UpdatedAt.Format(time.RFC3339Nano),
		job.ID,
	); err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// JobsByStatus returns jobs matching a status ordered by creation time.
func (s *Store) JobsByStatus(ctx context.Context, status Status) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY created_at, id`, status)
	if err != nil {
		return nil, fmt.Errorf("query by status: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// List returns jobs filtered by status set (or all jobs when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY created_at, id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Remove deletes a job by identifier.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Clear removes all jobs from the queue.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs`)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}

// ClearCompleted removes only completed jobs from the queue.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed removes only failed jobs from the queue.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE status = ?`, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}

const jobColumns = "id, type, source_ref, category, filename, title, asset_id, status, attempts, reprocess, last_error, created_at, updated_at, started_at, completed_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id           int64
		jobType      string
		sourceRef    sql.NullString
		category     string
		filename     string
		title        sql.NullString
		assetID      sql.NullInt64
		statusStr    string
		attempts     int
		reprocess    sql.NullInt64
		lastError    sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
		startedRaw   sql.NullString
		completedRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&jobType,
		&sourceRef,
		&category,
		&filename,
		&title,
		&assetID,
		&statusStr,
		&attempts,
		&reprocess,
		&lastError,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:        id,
		Type:      JobType(jobType),
		SourceRef: sourceRef.String,
		Category:  category,
		Filename:  filename,
		Title:     title.String,
		AssetID:   assetID.Int64,
		Status:    Status(statusStr),
		Attempts:  attempts,
		LastError: lastError.String,
	}
	if reprocess.Valid {
		job.Reprocess = reprocess.Int64 != 0
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			job.StartedAt = &started
		}
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			job.CompletedAt = &completed
		}
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	v := value.UTC().Format(time.RFC3339Nano)
	return v
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
