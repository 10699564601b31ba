package jobstore

import (
	"context"
	"database/sql"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	jobsmodel "github.com/hitesh22rana/provisioner/internal/model/jobs"
)

// timeLayout is fixed width so that stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLite journals jobs to a local SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite creates a SQLite backed journal; it takes ownership of db.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

// Upsert inserts the job or updates its mutable fields.
func (s *SQLite) Upsert(ctx context.Context, job *jobsmodel.Job) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO provisioning_jobs (id, tool, target_host, status, message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET status = excluded.status, message = excluded.message, updated_at = excluded.updated_at`,
		job.ID,
		job.Tool.ToString(),
		job.TargetHost,
		job.Status.ToString(),
		job.Message,
		job.CreatedAt.UTC().Format(timeLayout),
		job.UpdatedAt.UTC().Format(timeLayout),
	); err != nil {
		return status.Errorf(codes.Internal, "failed to upsert job: %v", err)
	}

	return nil
}

// List returns every journaled job, oldest first.
func (s *SQLite) List(ctx context.Context) ([]*jobsmodel.Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tool, target_host, status, message, created_at, updated_at
		FROM provisioning_jobs
		ORDER BY created_at`)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to list jobs: %v", err)
	}
	defer rows.Close()

	var jobs []*jobsmodel.Job
	for rows.Next() {
		var (
			job                                   jobsmodel.Job
			tool, jobStatus, createdAt, updatedAt string
		)
		if err := rows.Scan(&job.ID, &tool, &job.TargetHost, &jobStatus, &job.Message, &createdAt, &updatedAt); err != nil {
			return nil, statusErr("failed to scan job", err)
		}

		if job.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, statusErr("invalid created_at", err)
		}
		if job.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
			return nil, statusErr("invalid updated_at", err)
		}
		job.Tool = jobsmodel.Tool(tool)
		job.Status = jobsmodel.JobStatus(jobStatus)
		jobs = append(jobs, &job)
	}

	if err := rows.Err(); err != nil {
		return nil, statusErr("failed to read jobs", err)
	}

	return jobs, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
