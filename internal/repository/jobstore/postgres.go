package jobstore

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	jobsmodel "github.com/hitesh22rana/provisioner/internal/model/jobs"
	"github.com/hitesh22rana/provisioner/internal/pkg/postgres"
	svcpkg "github.com/hitesh22rana/provisioner/internal/pkg/svc"
)

// Postgres journals jobs to PostgreSQL.
type Postgres struct {
	tp trace.Tracer
	pg postgres.Store
}

// NewPostgres creates a PostgreSQL backed journal.
func NewPostgres(pg postgres.Store) *Postgres {
	return &Postgres{
		tp: otel.Tracer(svcpkg.Info().GetName()),
		pg: pg,
	}
}

// Upsert inserts the job or updates its mutable fields.
func (p *Postgres) Upsert(ctx context.Context, job *jobsmodel.Job) (err error) {
	ctx, span := p.tp.Start(ctx, "Postgres.Upsert")
	defer func() {
		if err != nil {
			span.SetStatus(otelcodes.Error, err.Error())
			span.RecordError(err)
		}
		span.End()
	}()

	query := fmt.Sprintf(`
		INSERT INTO %s (id, tool, target_host, status, message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status, message = EXCLUDED.message, updated_at = EXCLUDED.updated_at;
	`, postgres.TableProvisioningJobs)

	if _, err = p.pg.Exec(ctx, query,
		job.ID,
		job.Tool.ToString(),
		job.TargetHost,
		job.Status.ToString(),
		job.Message,
		job.CreatedAt,
		job.UpdatedAt,
	); err != nil {
		err = status.Errorf(codes.Internal, "failed to upsert job: %v", err)
		return err
	}

	return nil
}

// List returns every journaled job, oldest first.
func (p *Postgres) List(ctx context.Context) (jobs []*jobsmodel.Job, err error) {
	ctx, span := p.tp.Start(ctx, "Postgres.List")
	defer func() {
		if err != nil {
			span.SetStatus(otelcodes.Error, err.Error())
			span.RecordError(err)
		}
		span.End()
	}()

	query := fmt.Sprintf(`
		SELECT id, tool, target_host, status, message, created_at, updated_at
		FROM %s
		ORDER BY created_at;
	`, postgres.TableProvisioningJobs)

	rows, err := p.pg.Query(ctx, query)
	if err != nil {
		err = status.Errorf(codes.Internal, "failed to list jobs: %v", err)
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			job             jobsmodel.Job
			tool, jobStatus string
		)
		if err = rows.Scan(&job.ID, &tool, &job.TargetHost, &jobStatus, &job.Message, &job.CreatedAt, &job.UpdatedAt); err != nil {
			err = statusErr("failed to scan job", err)
			return nil, err
		}
		job.Tool = jobsmodel.Tool(tool)
		job.Status = jobsmodel.JobStatus(jobStatus)
		jobs = append(jobs, &job)
	}

	if err = rows.Err(); err != nil {
		err = statusErr("failed to read jobs", err)
		return nil, err
	}

	return jobs, nil
}

// Close is a no-op, the pool is owned by the caller.
func (*Postgres) Close() error {
	return nil
}

func statusErr(msg string, err error) error {
	return status.Errorf(codes.Internal, "%s: %v", msg, err)
}
