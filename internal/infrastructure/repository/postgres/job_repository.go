package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/archive-assistant/internal/core/domain"
)

type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(ctx context.Context, job *domain.IngestJob) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO ingest_jobs (
	id, source_ref, filename, mode, remote_job_id, status, pages_expected, error_message, last_checked_at, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`,
		job.ID, job.SourceRef, job.Filename, string(job.Mode), nullableString(job.RemoteJobID),
		string(job.Status), job.PagesExpected, job.Error, nullableTime(job.LastCheckedAt),
		job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ingest job: %w", err)
	}
	return nil
}

func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.IngestJob, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, source_ref, filename, mode, remote_job_id, status, pages_expected, error_message, last_checked_at, created_at, updated_at
FROM ingest_jobs
WHERE id = $1
`, id)

	var job domain.IngestJob
	var mode, status string
	var remoteJobID, errMessage sql.NullString
	var lastCheckedAt sql.NullTime

	err := row.Scan(
		&job.ID, &job.SourceRef, &job.Filename, &mode, &remoteJobID, &status,
		&job.PagesExpected, &errMessage, &lastCheckedAt, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrJobNotFound, "get ingest job", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan ingest job: %w", err)
	}

	job.Mode = domain.OCRMode(mode)
	job.Status = domain.JobStatus(status)
	job.RemoteJobID = remoteJobID.String
	job.Error = errMessage.String
	if lastCheckedAt.Valid {
		job.LastCheckedAt = lastCheckedAt.Time
	}
	return &job, nil
}

func (r *JobRepository) SetRemoteJob(ctx context.Context, id, remoteJobID string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE ingest_jobs
SET remote_job_id = $2, updated_at = $3
WHERE id = $1
`, id, remoteJobID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set remote job: %w", err)
	}
	return r.checkAffected(ctx, result, id, "set remote job")
}

// UpdateStatus refuses to move a job out of a terminal state. The guard is
// in the WHERE clause so concurrent workers cannot race past it.
func (r *JobRepository) UpdateStatus(ctx context.Context, id string, status domain.JobStatus, errMessage string, checkedAt time.Time) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE ingest_jobs
SET status = $2, error_message = $3, last_checked_at = $4, updated_at = $5
WHERE id = $1 AND status NOT IN ('SUCCEEDED','FAILED','PARTIAL_SUCCESS')
`, id, string(status), errMessage, nullableTime(checkedAt), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return r.checkAffected(ctx, result, id, "update job status")
}

func (r *JobRepository) checkAffected(ctx context.Context, result sql.Result, id, operation string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if affected > 0 {
		return nil
	}

	job, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return domain.WrapError(domain.ErrTerminalState, operation, fmt.Errorf("job %s is %s", id, job.Status))
	}
	return domain.WrapError(domain.ErrJobNotFound, operation, fmt.Errorf("id %s", id))
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
