// Package jobs provides a SQLite-backed tracker for ingestion job lifecycle
// state. A job is created PENDING at submission, moves to PROCESSING when a
// worker picks it up, and ends COMPLETED or FAILED exactly once. Terminal
// transitions are idempotent no-ops when the job is already terminal, so a
// late-arriving failure handler can never overwrite a success.
package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Status is the lifecycle state of an ingestion job.
type Status string

const (
	// StatusPending means the job is created but no worker has started it.
	StatusPending Status = "PENDING"
	// StatusProcessing means a worker is executing the job.
	StatusProcessing Status = "PROCESSING"
	// StatusCompleted means the job finished successfully.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed means the job ended with an error.
	StatusFailed Status = "FAILED"
)

// ErrNotFound is returned when no job exists for the given id.
var ErrNotFound = errors.New("jobs: job not found")

// Job is a tracked asynchronous ingestion request. The ID doubles as the task
// queue handle, so the token returned at submission is also the status key.
type Job struct {
	// ID is the job identifier (UUID), shared with the queue task.
	ID string `json:"id"`
	// URL is the page being ingested.
	URL string `json:"url"`
	// Status is the current lifecycle state.
	Status Status `json:"status"`
	// CreatedAt is when the job was submitted.
	CreatedAt time.Time `json:"created_at"`
	// FinishedAt is when the job reached a terminal state; nil until then.
	FinishedAt *time.Time `json:"finished_at"`
	// Result is the human-readable outcome summary; empty until terminal.
	Result string `json:"result"`
}

// Tracker records and transitions ingestion job lifecycle state.
// Implementations must be safe for concurrent use; distinct jobs never
// contend on the same record.
type Tracker interface {
	// Create records a new PENDING job for the URL and returns it.
	Create(ctx context.Context, url string) (Job, error)
	// MarkProcessing transitions a PENDING job to PROCESSING.
	MarkProcessing(ctx context.Context, id string) error
	// MarkCompleted transitions a non-terminal job to COMPLETED with the
	// given result summary. No-op if the job is already terminal.
	MarkCompleted(ctx context.Context, id, result string) error
	// MarkFailed transitions a non-terminal job to FAILED with the given
	// error summary. No-op if the job is already terminal.
	MarkFailed(ctx context.Context, id, errSummary string) error
	// Get returns the job for id, or ErrNotFound.
	Get(ctx context.Context, id string) (Job, error)
	// ListRecent returns up to limit jobs, most recent first.
	ListRecent(ctx context.Context, limit int) ([]Job, error)
	// Close releases any resources held by the tracker.
	Close() error
}

// SQLiteTracker is a Tracker backed by a local SQLite database.
type SQLiteTracker struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the jobs database.
// It resolves to ~/.pulse/jobs.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("jobs: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".pulse")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("jobs: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "jobs.db"), nil
}

// Open opens (or creates) a SQLiteTracker at the given path and runs the
// schema migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteTracker, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("jobs: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	t := &SQLiteTracker{db: db}
	if err := t.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return t, nil
}

// migrate creates the schema if it does not already exist.
func (t *SQLiteTracker) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS jobs (
    id           TEXT    PRIMARY KEY,
    url          TEXT    NOT NULL,
    status       TEXT    NOT NULL CHECK(status IN ('PENDING','PROCESSING','COMPLETED','FAILED')),
    created_at   INTEGER NOT NULL,  -- Unix timestamp (seconds)
    finished_at  INTEGER,           -- NULL until terminal
    result       TEXT               -- NULL until terminal
);
CREATE INDEX IF NOT EXISTS idx_jobs_created ON jobs (created_at DESC);
`
	if _, err := t.db.Exec(ddl); err != nil {
		return fmt.Errorf("jobs: migrate: %w", err)
	}
	return nil
}

// Create records a new PENDING job for the URL and returns it.
func (t *SQLiteTracker) Create(ctx context.Context, url string) (Job, error) {
	job := Job{
		ID:        uuid.NewString(),
		URL:       url,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}

	const q = `INSERT INTO jobs (id, url, status, created_at) VALUES (?, ?, ?, ?)`
	if _, err := t.db.ExecContext(ctx, q, job.ID, job.URL, string(job.Status), job.CreatedAt.Unix()); err != nil {
		return Job{}, fmt.Errorf("jobs: create: %w", err)
	}
	return job, nil
}

// MarkProcessing transitions a PENDING job to PROCESSING. Jobs already past
// PENDING are left untouched; an unknown id returns ErrNotFound.
func (t *SQLiteTracker) MarkProcessing(ctx context.Context, id string) error {
	const q = `UPDATE jobs SET status = ? WHERE id = ? AND status = ?`
	res, err := t.db.ExecContext(ctx, q, string(StatusProcessing), id, string(StatusPending))
	if err != nil {
		return fmt.Errorf("jobs: mark processing: %w", err)
	}
	return t.checkTransition(ctx, res, id)
}

// MarkCompleted transitions a non-terminal job to COMPLETED, setting
// finished_at and result together exactly once.
func (t *SQLiteTracker) MarkCompleted(ctx context.Context, id, result string) error {
	return t.finish(ctx, id, StatusCompleted, result)
}

// MarkFailed transitions a non-terminal job to FAILED, setting finished_at
// and result together exactly once.
func (t *SQLiteTracker) MarkFailed(ctx context.Context, id, errSummary string) error {
	return t.finish(ctx, id, StatusFailed, errSummary)
}

// finish performs a terminal transition. The status guard in the WHERE clause
// makes the operation a no-op on already-terminal jobs, which is what keeps
// completion and failure handlers from racing each other.
func (t *SQLiteTracker) finish(ctx context.Context, id string, status Status, result string) error {
	const q = `
UPDATE jobs SET status = ?, finished_at = ?, result = ?
WHERE  id = ? AND status NOT IN ('COMPLETED','FAILED')`
	res, err := t.db.ExecContext(ctx, q, string(status), time.Now().Unix(), result, id)
	if err != nil {
		return fmt.Errorf("jobs: mark %s: %w", status, err)
	}
	return t.checkTransition(ctx, res, id)
}

// checkTransition distinguishes "guarded no-op" from "unknown job" when an
// UPDATE matched zero rows.
func (t *SQLiteTracker) checkTransition(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("jobs: rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := t.Get(ctx, id); err != nil {
		return err
	}
	// Job exists but the status guard rejected the transition — idempotent no-op.
	return nil
}

// Get returns the job for id, or ErrNotFound.
func (t *SQLiteTracker) Get(ctx context.Context, id string) (Job, error) {
	const q = `SELECT id, url, status, created_at, finished_at, result FROM jobs WHERE id = ?`
	job, err := scanJob(t.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, fmt.Errorf("jobs: get: %w", err)
	}
	return job, nil
}

// ListRecent returns up to limit jobs, most recent first.
func (t *SQLiteTracker) ListRecent(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 20
	}

	const q = `
SELECT id, url, status, created_at, finished_at, result
FROM   jobs
ORDER  BY created_at DESC, id DESC
LIMIT  ?`
	rows, err := t.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("jobs: list recent: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("jobs: list recent scan: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("jobs: list recent rows: %w", err)
	}
	return jobs, nil
}

// DB exposes the underlying handle for health probes.
func (t *SQLiteTracker) DB() *sql.DB {
	return t.db
}

// Close releases the database connection pool.
func (t *SQLiteTracker) Close() error {
	if err := t.db.Close(); err != nil {
		return fmt.Errorf("jobs: close: %w", err)
	}
	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanJob.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanJob reads one job row, converting Unix timestamps and NULLs.
func scanJob(row rowScanner) (Job, error) {
	var (
		job        Job
		status     string
		createdAt  int64
		finishedAt sql.NullInt64
		result     sql.NullString
	)
	if err := row.Scan(&job.ID, &job.URL, &status, &createdAt, &finishedAt, &result); err != nil {
		return Job{}, err
	}
	job.Status = Status(status)
	job.CreatedAt = time.Unix(createdAt, 0).UTC()
	if finishedAt.Valid {
		ts := time.Unix(finishedAt.Int64, 0).UTC()
		job.FinishedAt = &ts
	}
	job.Result = result.String
	return job, nil
}
