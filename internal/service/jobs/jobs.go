//go:generate mockgen -source=$GOFILE -package=$GOPACKAGE -destination=./mock/$GOFILE

package jobs

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	jobsmodel "github.com/hitesh22rana/provisioner/internal/model/jobs"
	loggerpkg "github.com/hitesh22rana/provisioner/internal/pkg/logger"
	svcpkg "github.com/hitesh22rana/provisioner/internal/pkg/svc"
	"github.com/hitesh22rana/provisioner/internal/repository/joblogs"
)

const interruptedMessage = "interrupted by server restart"

// Registry holds the jobs and enforces their lifecycle.
type Registry interface {
	CreateJob(ctx context.Context, tool jobsmodel.Tool, targetHost string) (*jobsmodel.Job, error)
	Transition(ctx context.Context, jobID string, next jobsmodel.JobStatus, message string) (*jobsmodel.Job, error)
	GetJob(ctx context.Context, jobID string) (*jobsmodel.Job, error)
	ListJobs(ctx context.Context) []*jobsmodel.Job
	Restore(ctx context.Context, jobs []*jobsmodel.Job)
}

// Broker holds the log stream of every job.
type Broker interface {
	Open(jobID string)
	Append(ctx context.Context, jobID, text string) (*jobsmodel.LogLine, error)
	Close(ctx context.Context, jobID string) error
	Subscribe(ctx context.Context, jobID string) (*joblogs.Subscription, error)
	Lines(ctx context.Context, jobID string) ([]*jobsmodel.LogLine, error)
	Restore(jobID string, lines []*jobsmodel.LogLine)
}

// Store journals jobs across restarts.
type Store interface {
	Upsert(ctx context.Context, job *jobsmodel.Job) error
	List(ctx context.Context) ([]*jobsmodel.Job, error)
}

// Archive reads back the logs of jobs run before a restart.
type Archive interface {
	Fetch(ctx context.Context, jobID string) ([]*jobsmodel.LogLine, error)
}

// Publisher announces applied transitions.
type Publisher interface {
	PublishJobEvent(ctx context.Context, job *jobsmodel.Job)
}

// Options holds the optional collaborators of the service.
type Options struct {
	Store     Store
	Archive   Archive
	Publisher Publisher
}

// Service applies job requests and runner events.
// Events of one job are serialized; different jobs proceed in parallel.
type Service struct {
	validator *validator.Validate
	tp        trace.Tracer
	registry  Registry
	broker    Broker
	store     Store
	archive   Archive
	publisher Publisher

	locks    sync.Map
	restored sync.Map
}

// New creates a new jobs-service.
func New(validator *validator.Validate, registry Registry, broker Broker, opts *Options) *Service {
	s := &Service{
		validator: validator,
		tp:        otel.Tracer(svcpkg.Info().GetName()),
		registry:  registry,
		broker:    broker,
	}

	if opts != nil {
		s.store = opts.Store
		s.archive = opts.Archive
		s.publisher = opts.Publisher
	}

	return s
}

// lock returns the mutex serializing the events of the job.
func (s *Service) lock(jobID string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(jobID, &sync.Mutex{})
	//nolint:forcetypeassert // only *sync.Mutex values are stored
	return mu.(*sync.Mutex)
}

// forget drops the mutex of a finished or unknown job, so the map only holds live jobs.
// Every later event of such a job is a no-op, so a fresh mutex cannot reorder anything.
func (s *Service) forget(jobID string) {
	s.locks.Delete(jobID)
}

// CreateJobRequest holds the request parameters for creating a new job.
type CreateJobRequest struct {
	Tool       string `validate:"required,oneof=jenkins nexus harbor sonarqube"`
	TargetHost string `validate:"required,hostname_rfc1123"`
}

// CreateJob registers a new PENDING job and opens its log stream.
func (s *Service) CreateJob(ctx context.Context, tool, targetHost string) (job *jobsmodel.Job, err error) {
	ctx, span := s.tp.Start(ctx, "Service.CreateJob")
	defer func() {
		if err != nil {
			span.SetStatus(otelcodes.Error, err.Error())
			span.RecordError(err)
		}
		span.End()
	}()

	targetHost = strings.TrimSpace(targetHost)

	// Validate the request
	err = s.validator.Struct(&CreateJobRequest{
		Tool:       tool,
		TargetHost: targetHost,
	})
	if err != nil {
		err = status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
		return nil, err
	}

	job, err = s.registry.CreateJob(ctx, jobsmodel.Tool(tool), targetHost)
	if err != nil {
		return nil, err
	}

	s.broker.Open(job.ID)
	s.persist(ctx, job)

	span.SetAttributes(attribute.String("job_id", job.ID))
	loggerpkg.FromContext(ctx).Info("job created",
		zap.String("job_id", job.ID),
		zap.String("tool", job.Tool.ToString()),
		zap.String("target_host", job.TargetHost),
	)

	return job, nil
}

// GetJobRequest holds the request parameters for getting a job.
type GetJobRequest struct {
	ID string `validate:"required"`
}

// GetJob returns the job.
func (s *Service) GetJob(ctx context.Context, jobID string) (job *jobsmodel.Job, err error) {
	ctx, span := s.tp.Start(ctx, "Service.GetJob")
	defer func() {
		if err != nil {
			span.SetStatus(otelcodes.Error, err.Error())
			span.RecordError(err)
		}
		span.End()
	}()

	// Validate the request
	err = s.validator.Struct(&GetJobRequest{ID: jobID})
	if err != nil {
		err = status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
		return nil, err
	}

	return s.registry.GetJob(ctx, jobID)
}

// ListJobsRequest holds the request parameters for listing jobs.
type ListJobsRequest struct {
	Status string `validate:"omitempty,oneof=PENDING RUNNING SUCCESS FAILED"`
}

// ListJobs returns the jobs, newest first, optionally filtered by status.
func (s *Service) ListJobs(ctx context.Context, jobStatus string) (jobs []*jobsmodel.Job, err error) {
	ctx, span := s.tp.Start(ctx, "Service.ListJobs")
	defer func() {
		if err != nil {
			span.SetStatus(otelcodes.Error, err.Error())
			span.RecordError(err)
		}
		span.End()
	}()

	// Validate the request
	err = s.validator.Struct(&ListJobsRequest{Status: jobStatus})
	if err != nil {
		err = status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
		return nil, err
	}

	jobs = s.registry.ListJobs(ctx)
	if jobStatus == "" {
		return jobs, nil
	}

	filtered := jobs[:0]
	for _, job := range jobs {
		if job.Status.ToString() == jobStatus {
			filtered = append(filtered, job)
		}
	}

	return filtered, nil
}

// StreamJobLogs subscribes to the job's log stream.
func (s *Service) StreamJobLogs(ctx context.Context, jobID string) (sub *joblogs.Subscription, err error) {
	ctx, span := s.tp.Start(ctx, "Service.StreamJobLogs")
	defer func() {
		if err != nil {
			span.SetStatus(otelcodes.Error, err.Error())
			span.RecordError(err)
		}
		span.End()
	}()

	if _, err = s.GetJob(ctx, jobID); err != nil {
		return nil, err
	}

	if err = s.hydrate(ctx, jobID); err != nil {
		return nil, err
	}

	return s.broker.Subscribe(ctx, jobID)
}

// GetJobLogs returns the full log of a finished job.
func (s *Service) GetJobLogs(ctx context.Context, jobID string) (lines []*jobsmodel.LogLine, err error) {
	ctx, span := s.tp.Start(ctx, "Service.GetJobLogs")
	defer func() {
		if err != nil {
			span.SetStatus(otelcodes.Error, err.Error())
			span.RecordError(err)
		}
		span.End()
	}()

	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if !job.Status.IsTerminal() {
		err = status.Errorf(codes.FailedPrecondition, "job %s is still %s", jobID, job.Status)
		return nil, err
	}

	if err = s.hydrate(ctx, jobID); err != nil {
		return nil, err
	}

	return s.broker.Lines(ctx, jobID)
}

// Transition applies a status change reported for the job.
// Changes to a finished job are dropped. A runner reporting an illegal final status
// fails the job; other illegal changes are ignored and returned.
func (s *Service) Transition(ctx context.Context, jobID string, next jobsmodel.JobStatus, message string) (err error) {
	ctx, span := s.tp.Start(ctx, "Service.Transition", trace.WithAttributes(
		attribute.String("job_id", jobID),
		attribute.String("status", next.ToString()),
	))
	defer func() {
		if err != nil {
			span.SetStatus(otelcodes.Error, err.Error())
			span.RecordError(err)
		}
		span.End()
	}()

	logger := loggerpkg.FromContext(ctx).With(zap.String("job_id", jobID))

	mu := s.lock(jobID)
	mu.Lock()
	defer mu.Unlock()

	prev, err := s.registry.GetJob(ctx, jobID)
	if err != nil {
		if jobsmodel.IsNotFound(err) {
			s.forget(jobID)
		}
		return err
	}

	if prev.Status.IsTerminal() {
		s.forget(jobID)
		// The registry drops and counts it
		_, err = s.registry.Transition(ctx, jobID, next, message)
		return err
	}

	job, err := s.registry.Transition(ctx, jobID, next, message)
	if err != nil {
		if !jobsmodel.IsIllegalTransition(err) {
			return err
		}

		if !next.IsTerminal() {
			logger.Warn("ignoring illegal transition",
				zap.String("status", prev.Status.ToString()),
				zap.String("requested_status", next.ToString()),
			)
			return err
		}

		logger.Error("runner reported an illegal final status, failing the job",
			zap.String("status", prev.Status.ToString()),
			zap.String("requested_status", next.ToString()),
		)
		job, err = s.registry.Transition(ctx, jobID, jobsmodel.JobStatusFailed,
			fmt.Sprintf("runner reported illegal transition from %s to %s", prev.Status, next),
		)
		if err != nil {
			return err
		}
	}

	s.persist(ctx, job)

	if job.Status.IsTerminal() {
		if cerr := s.broker.Close(ctx, jobID); cerr != nil && !jobsmodel.IsNotFound(cerr) {
			logger.Error("failed to close log stream", zap.Error(cerr))
		}
		s.forget(jobID)
	}

	logger.Info("job transitioned",
		zap.String("status", job.Status.ToString()),
		zap.String("message", job.Message),
	)

	return nil
}

// AppendLog appends a line to the job's log stream.
// Lines reported after the job finished are dropped.
func (s *Service) AppendLog(ctx context.Context, jobID, text string) error {
	mu := s.lock(jobID)
	mu.Lock()
	defer mu.Unlock()

	if _, err := s.broker.Append(ctx, jobID, text); err != nil {
		switch {
		case jobsmodel.IsIllegalTransition(err):
			s.forget(jobID)
			loggerpkg.FromContext(ctx).Warn("dropping log line of finished job", zap.String("job_id", jobID))
			return nil
		case jobsmodel.IsNotFound(err):
			s.forget(jobID)
		}
		return err
	}

	return nil
}

// Restore reloads journaled jobs. Jobs that were still in flight are failed,
// their runner did not survive the restart.
func (s *Service) Restore(ctx context.Context) (err error) {
	ctx, span := s.tp.Start(ctx, "Service.Restore")
	defer func() {
		if err != nil {
			span.SetStatus(otelcodes.Error, err.Error())
			span.RecordError(err)
		}
		span.End()
	}()

	if s.store == nil {
		return nil
	}

	logger := loggerpkg.FromContext(ctx)

	jobs, err := s.store.List(ctx)
	if err != nil {
		return err
	}

	s.registry.Restore(ctx, jobs)
	for _, job := range jobs {
		s.restored.Store(job.ID, struct{}{})
	}

	interrupted := 0
	for _, job := range jobs {
		if job.Status.IsTerminal() {
			continue
		}

		if terr := s.Transition(ctx, job.ID, jobsmodel.JobStatusFailed, interruptedMessage); terr != nil {
			logger.Error("failed to fail interrupted job", zap.String("job_id", job.ID), zap.Error(terr))
			continue
		}
		interrupted++
	}

	logger.Info("restored journaled jobs",
		zap.Int("jobs", len(jobs)),
		zap.Int("interrupted", interrupted),
	)

	return nil
}

// hydrate rebuilds the log stream of a restored job from the archive, once.
func (s *Service) hydrate(ctx context.Context, jobID string) error {
	if _, ok := s.restored.Load(jobID); !ok {
		return nil
	}

	mu := s.lock(jobID)
	mu.Lock()
	defer mu.Unlock()

	if _, ok := s.restored.Load(jobID); !ok {
		return nil
	}

	var lines []*jobsmodel.LogLine
	if s.archive != nil {
		var err error
		if lines, err = s.archive.Fetch(ctx, jobID); err != nil {
			return status.Errorf(codes.Unavailable, "failed to load archived logs: %v", err)
		}
	}

	s.broker.Restore(jobID, lines)
	s.restored.Delete(jobID)
	// Restored jobs are all finished
	s.forget(jobID)

	return nil
}

// persist journals and announces the job's new state.
// Journal failures are logged, the registry stays authoritative.
func (s *Service) persist(ctx context.Context, job *jobsmodel.Job) {
	if s.store != nil {
		if err := s.store.Upsert(ctx, job); err != nil {
			loggerpkg.FromContext(ctx).Error("failed to journal job",
				zap.String("job_id", job.ID),
				zap.String("status", job.Status.ToString()),
				zap.Error(err),
			)
		}
	}

	if s.publisher != nil {
		s.publisher.PublishJobEvent(ctx, job)
	}
}
