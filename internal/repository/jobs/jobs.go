package jobs

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	jobsmodel "github.com/hitesh22rana/provisioner/internal/model/jobs"
	"github.com/hitesh22rana/provisioner/internal/pkg/inventory"
	loggerpkg "github.com/hitesh22rana/provisioner/internal/pkg/logger"
	svcpkg "github.com/hitesh22rana/provisioner/internal/pkg/svc"
)

// Hosts resolves the known target hosts.
type Hosts interface {
	Lookup(name string) (inventory.Host, bool)
}

// Config represents the repository configuration.
type Config struct {
	// Now returns the current time, defaults to time.Now.
	Now func() time.Time
}

type entry struct {
	job *jobsmodel.Job
	seq uint64
}

// Repository is the authoritative in-memory registry of provisioning jobs.
type Repository struct {
	tp      trace.Tracer
	hosts   Hosts
	now     func() time.Time
	created metric.Int64Counter
	dropped metric.Int64Counter

	mu   sync.RWMutex
	jobs map[string]*entry
	seq  uint64
}

// New creates a new jobs repository.
func New(cfg *Config, hosts Hosts) *Repository {
	meter := otel.Meter(svcpkg.Info().GetName())

	//nolint:errcheck // the global meter never fails to create instruments
	created, _ := meter.Int64Counter(
		"provisioner.jobs.created",
		metric.WithDescription("Number of provisioning jobs created."),
	)
	//nolint:errcheck // the global meter never fails to create instruments
	dropped, _ := meter.Int64Counter(
		"provisioner.jobs.transitions.dropped",
		metric.WithDescription("Number of transitions reported for jobs already in a terminal state."),
	)

	now := time.Now
	if cfg != nil && cfg.Now != nil {
		now = cfg.Now
	}

	return &Repository{
		tp:      otel.Tracer(svcpkg.Info().GetName()),
		hosts:   hosts,
		now:     now,
		created: created,
		dropped: dropped,
		jobs:    make(map[string]*entry),
	}
}

// CreateJob validates the request and registers a new PENDING job.
func (r *Repository) CreateJob(ctx context.Context, tool jobsmodel.Tool, targetHost string) (job *jobsmodel.Job, err error) {
	ctx, span := r.tp.Start(ctx, "Repository.CreateJob")
	defer func() {
		if err != nil {
			span.SetStatus(otelcodes.Error, err.Error())
			span.RecordError(err)
		}
		span.End()
	}()

	if _, err = jobsmodel.ParseTool(tool.ToString()); err != nil {
		return nil, err
	}

	targetHost = strings.TrimSpace(targetHost)
	if targetHost == "" {
		err = jobsmodel.ValidationError("target host is required")
		return nil, err
	}

	if _, ok := r.hosts.Lookup(targetHost); !ok {
		err = jobsmodel.ValidationError("unknown target host: %q", targetHost)
		return nil, err
	}

	now := r.now()
	job = &jobsmodel.Job{
		ID:         uuid.NewString(),
		Tool:       tool,
		TargetHost: targetHost,
		Status:     jobsmodel.JobStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	r.mu.Lock()
	r.seq++
	r.jobs[job.ID] = &entry{job: job, seq: r.seq}
	r.mu.Unlock()

	r.created.Add(ctx, 1, metric.WithAttributes(attribute.String("tool", tool.ToString())))
	span.SetAttributes(attribute.String("job_id", job.ID))

	return job.Clone(), nil
}

// Transition moves the job to the next status.
// A job already in a terminal state is returned unchanged.
func (r *Repository) Transition(ctx context.Context, jobID string, next jobsmodel.JobStatus, message string) (job *jobsmodel.Job, err error) {
	ctx, span := r.tp.Start(ctx, "Repository.Transition")
	defer func() {
		if err != nil {
			span.SetStatus(otelcodes.Error, err.Error())
			span.RecordError(err)
		}
		span.End()
	}()

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.jobs[jobID]
	if !ok {
		err = jobsmodel.NotFoundError(jobID)
		return nil, err
	}

	current := e.job.Status
	if current.IsTerminal() {
		r.dropped.Add(ctx, 1, metric.WithAttributes(
			attribute.String("status", current.ToString()),
			attribute.String("requested_status", next.ToString()),
		))
		loggerpkg.FromContext(ctx).Warn("dropping transition of job in terminal state",
			zap.String("job_id", jobID),
			zap.String("status", current.ToString()),
			zap.String("requested_status", next.ToString()),
		)
		return e.job.Clone(), nil
	}

	if !current.CanTransitionTo(next) {
		err = jobsmodel.IllegalTransitionError(current, next)
		return nil, err
	}

	e.job.Status = next
	if message != "" {
		e.job.Message = message
	}
	if now := r.now(); now.After(e.job.UpdatedAt) {
		e.job.UpdatedAt = now
	}

	return e.job.Clone(), nil
}

// GetJob returns a copy of the job.
func (r *Repository) GetJob(_ context.Context, jobID string) (*jobsmodel.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.jobs[jobID]
	if !ok {
		return nil, jobsmodel.NotFoundError(jobID)
	}

	return e.job.Clone(), nil
}

// ListJobs returns a copy of every job, newest first.
func (r *Repository) ListJobs(_ context.Context) []*jobsmodel.Job {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.jobs))
	for _, e := range r.jobs {
		entries = append(entries, &entry{job: e.job.Clone(), seq: e.seq})
	}
	r.mu.RUnlock()

	slices.SortFunc(entries, func(a, b *entry) int {
		if c := b.job.CreatedAt.Compare(a.job.CreatedAt); c != 0 {
			return c
		}
		if a.seq > b.seq {
			return -1
		}
		return 1
	})

	jobs := make([]*jobsmodel.Job, len(entries))
	for i, e := range entries {
		jobs[i] = e.job
	}

	return jobs
}

// Restore seeds the registry with previously journaled jobs.
// Jobs already present are left untouched.
func (r *Repository) Restore(_ context.Context, jobs []*jobsmodel.Job) {
	sorted := slices.Clone(jobs)
	slices.SortStableFunc(sorted, func(a, b *jobsmodel.Job) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, job := range sorted {
		if _, ok := r.jobs[job.ID]; ok {
			continue
		}
		r.seq++
		r.jobs[job.ID] = &entry{job: job.Clone(), seq: r.seq}
	}
}
