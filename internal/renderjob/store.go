package renderjob

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// schemaVersion is bumped when the schema changes incompatibly.
const schemaVersion = 1

const schemaSQL = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);

CREATE TABLE IF NOT EXISTS render_jobs (
    id              TEXT PRIMARY KEY,
    project_id      TEXT NOT NULL,
    idempotency_key TEXT NOT NULL,
    status          TEXT NOT NULL,
    attempt         INTEGER NOT NULL DEFAULT 1,
    spec_hash       TEXT,
    remote_id       TEXT,
    output_url      TEXT,
    error_message   TEXT,
    progress        REAL NOT NULL DEFAULT 0,
    next_retry_at   TEXT,
    created_at      TEXT NOT NULL,
    updated_at      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_render_jobs_project ON render_jobs(project_id, created_at);
CREATE INDEX IF NOT EXISTS idx_render_jobs_status ON render_jobs(status, created_at);

-- One non-terminal job per project, enforced by the database itself so two
-- concurrent build requests cannot both insert.
CREATE UNIQUE INDEX IF NOT EXISTS idx_render_jobs_active
    ON render_jobs(project_id)
    WHERE status NOT IN ('completed', 'failed', 'cancelled');
`

// ConflictError rejects a build request while a non-terminal job exists for
// the project. It carries the in-flight job's id so clients can poll it
// instead of retrying the build.
type ConflictError struct {
	ProjectID     string
	ExistingJobID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("project %s already has an in-flight render job %s", e.ProjectID, e.ExistingJobID)
}

// ErrNotFound indicates the requested job does not exist.
var ErrNotFound = errors.New("render job not found")

// Store manages render job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the job database.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure job db directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	var version int
	err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("job database has schema version %d, expected %d (delete %s to rebuild)", version, schemaVersion, s.path)
	}
	return nil
}

// Create inserts a queued job for the project. While any non-terminal job
// exists for the same project the insert fails with a ConflictError carrying
// the in-flight job id; the partial unique index makes the check atomic even
// across concurrent callers.
func (s *Store) Create(ctx context.Context, projectID, idempotencyKey string) (*Job, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, errors.New("project id is required")
	}
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}

	job := &Job{
		ID:             uuid.NewString(),
		ProjectID:      projectID,
		IdempotencyKey: idempotencyKey,
		Status:         StatusQueued,
		Attempt:        1,
		CreatedAt:      time.Now().UTC(),
	}
	job.UpdatedAt = job.CreatedAt

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO render_jobs (
            id, project_id, idempotency_key, status, attempt, progress, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.ProjectID,
		job.IdempotencyKey,
		job.Status,
		job.Attempt,
		0.0,
		job.CreatedAt.Format(time.RFC3339Nano),
		job.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueViolation(err) {
			existing, lookupErr := s.ActiveForProject(ctx, projectID)
			if lookupErr == nil && existing != nil {
				return nil, &ConflictError{ProjectID: projectID, ExistingJobID: existing.ID}
			}
			return nil, &ConflictError{ProjectID: projectID}
		}
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return job, nil
}

// GetByID fetches a job by identifier.
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM render_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ActiveForProject returns the project's non-terminal job, if any.
func (s *Store) ActiveForProject(ctx context.Context, projectID string) (*Job, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM render_jobs
         WHERE project_id = ? AND status NOT IN ('completed', 'failed', 'cancelled')
         ORDER BY created_at LIMIT 1`,
		projectID,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active job lookup: %w", err)
	}
	return job, nil
}

// Transition moves a job to a new status, applying mutate to the loaded job
// first. The update is compare-and-set on the current status so a stale
// caller loses instead of clobbering; terminal jobs are never modified.
func (s *Store) Transition(ctx context.Context, id string, to Status, mutate func(*Job)) (*Job, error) {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(job.Status, to) {
		return nil, fmt.Errorf("invalid transition %s -> %s for job %s", job.Status, to, id)
	}

	from := job.Status
	if mutate != nil {
		mutate(job)
	}
	// mutate may not pick its own status
	job.Status = to
	job.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE render_jobs
         SET status = ?, attempt = ?, spec_hash = ?, remote_id = ?, output_url = ?,
             error_message = ?, progress = ?, next_retry_at = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		job.Status,
		job.Attempt,
		nullableString(job.SpecHash),
		nullableString(job.RemoteID),
		nullableString(job.OutputURL),
		nullableString(job.ErrorMessage),
		job.Progress,
		nullableTime(job.NextRetryAt),
		job.UpdatedAt.Format(time.RFC3339Nano),
		id,
		from,
	)
	if err != nil {
		return nil, fmt.Errorf("transition job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("job %s changed concurrently during %s -> %s", id, from, to)
	}
	return job, nil
}

// UpdateProgress persists progress without a status change.
func (s *Store) UpdateProgress(ctx context.Context, id string, progress float64) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE render_jobs SET progress = ?, updated_at = ?
         WHERE id = ? AND status NOT IN ('completed', 'failed', 'cancelled')`,
		progress,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// List returns jobs filtered by status set (or all jobs), newest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	baseQuery := `SELECT ` + jobColumns + ` FROM render_jobs`
	orderClause := ` ORDER BY created_at DESC`

	var (
		rows *sql.Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
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

// NextRunnable returns the oldest job ready for the worker: queued, or in
// retry_wait with an elapsed cooldown.
func (s *Store) NextRunnable(ctx context.Context, now time.Time) (*Job, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM render_jobs
         WHERE status = ? OR (status = ? AND (next_retry_at IS NULL OR next_retry_at <= ?))
         ORDER BY created_at LIMIT 1`,
		StatusQueued,
		StatusRetryWait,
		now.UTC().Format(time.RFC3339Nano),
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next runnable: %w", err)
	}
	return job, nil
}

// InFlight returns jobs awaiting renderer progress.
func (s *Store) InFlight(ctx context.Context) ([]*Job, error) {
	return s.List(ctx, StatusSubmitted, StatusRendering, StatusUploading)
}

const jobColumns = "id, project_id, idempotency_key, status, attempt, spec_hash, remote_id, output_url, error_message, progress, next_retry_at, created_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id           string
		projectID    string
		idemKey      string
		statusStr    string
		attempt      int
		specHash     sql.NullString
		remoteID     sql.NullString
		outputURL    sql.NullString
		errorMessage sql.NullString
		progress     sql.NullFloat64
		nextRetryRaw sql.NullString
		createdRaw   string
		updatedRaw   string
	)

	if err := scanner.Scan(
		&id,
		&projectID,
		&idemKey,
		&statusStr,
		&attempt,
		&specHash,
		&remoteID,
		&outputURL,
		&errorMessage,
		&progress,
		&nextRetryRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:             id,
		ProjectID:      projectID,
		IdempotencyKey: idemKey,
		Status:         Status(statusStr),
		Attempt:        attempt,
		SpecHash:       specHash.String,
		RemoteID:       remoteID.String,
		OutputURL:      outputURL.String,
		ErrorMessage:   errorMessage.String,
		Progress:       progress.Float64,
	}
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	if nextRetryRaw.Valid {
		if next, err := time.Parse(time.RFC3339Nano, nextRetryRaw.String); err == nil {
			job.NextRetryAt = &next
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
	return value.UTC().Format(time.RFC3339Nano)
}

// isUniqueViolation matches only the active-job unique index, so other
// constraint failures surface as plain errors instead of conflicts.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed: render_jobs.project_id")
}
