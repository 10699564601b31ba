//go:generate mockgen -source=$GOFILE -package=$GOPACKAGE -destination=./mock/$GOFILE

package dispatcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/eapache/go-resiliency/breaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	jobsmodel "github.com/hitesh22rana/provisioner/internal/model/jobs"
	loggerpkg "github.com/hitesh22rana/provisioner/internal/pkg/logger"
	svcpkg "github.com/hitesh22rana/provisioner/internal/pkg/svc"
)

const exitedMessage = "runner exited without reporting a terminal status"

// Runner performs the installation of a job.
// Start returns once the work is under way; the returned channel is closed when it is over.
type Runner interface {
	Start(ctx context.Context, job *jobsmodel.Job, reporter jobsmodel.Reporter) (<-chan struct{}, error)
}

// JobsService creates jobs and applies the progress reported by runners.
type JobsService interface {
	CreateJob(ctx context.Context, tool, targetHost string) (*jobsmodel.Job, error)
	GetJob(ctx context.Context, jobID string) (*jobsmodel.Job, error)
	Transition(ctx context.Context, jobID string, next jobsmodel.JobStatus, message string) error
	AppendLog(ctx context.Context, jobID, text string) error
}

// Config represents the dispatcher configuration.
type Config struct {
	MaxConcurrentRunners    int64
	StartTimeout            time.Duration
	BreakerErrorThreshold   int
	BreakerSuccessThreshold int
	BreakerTimeout          time.Duration
}

// Service hands created jobs to the runner, at most once per job.
type Service struct {
	tp            trace.Tracer
	cfg           *Config
	jobs          JobsService
	runner        Runner
	sem           *semaphore.Weighted
	cb            *breaker.Breaker
	startFailures metric.Int64Counter

	started sync.Map
	wg      sync.WaitGroup
}

// New creates a new dispatcher.
func New(cfg *Config, jobs JobsService, runner Runner) *Service {
	//nolint:errcheck // the global meter never fails to create instruments
	startFailures, _ := otel.Meter(svcpkg.Info().GetName()).Int64Counter(
		"provisioner.jobs.runner.start_failures",
		metric.WithDescription("Number of jobs failed because their runner could not be started."),
	)

	return &Service{
		tp:            otel.Tracer(svcpkg.Info().GetName()),
		cfg:           cfg,
		jobs:          jobs,
		runner:        runner,
		sem:           semaphore.NewWeighted(cfg.MaxConcurrentRunners),
		cb:            breaker.New(cfg.BreakerErrorThreshold, cfg.BreakerSuccessThreshold, cfg.BreakerTimeout),
		startFailures: startFailures,
	}
}

// Submit creates a job and dispatches it.
// The job is returned as created, before its runner starts.
func (s *Service) Submit(ctx context.Context, tool, targetHost string) (job *jobsmodel.Job, err error) {
	ctx, span := s.tp.Start(ctx, "Service.Submit")
	defer func() {
		if err != nil {
			span.SetStatus(otelcodes.Error, err.Error())
			span.RecordError(err)
		}
		span.End()
	}()

	job, err = s.jobs.CreateJob(ctx, tool, targetHost)
	if err != nil {
		return nil, err
	}

	s.Dispatch(ctx, job)

	return job, nil
}

// Dispatch starts the runner of the job in the background.
// A job already dispatched is ignored.
func (s *Service) Dispatch(ctx context.Context, job *jobsmodel.Job) {
	if _, loaded := s.started.LoadOrStore(job.ID, struct{}{}); loaded {
		loggerpkg.FromContext(ctx).Warn("job already dispatched", zap.String("job_id", job.ID))
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// The job outlives the request that created it
		s.run(context.WithoutCancel(ctx), job.Clone())
	}()
}

// Wait blocks until every dispatched runner is over.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) run(ctx context.Context, job *jobsmodel.Job) {
	logger := loggerpkg.FromContext(ctx).With(
		zap.String("job_id", job.ID),
		zap.String("tool", job.Tool.ToString()),
		zap.String("target_host", job.TargetHost),
	)

	done, err := s.start(ctx, job)
	if err != nil {
		s.startFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("tool", job.Tool.ToString())))
		logger.Error("failed to start runner", zap.Error(err))

		message := status.Convert(err).Message()
		if terr := s.jobs.Transition(ctx, job.ID, jobsmodel.JobStatusFailed, message); terr != nil {
			logger.Error("failed to fail job", zap.Error(terr))
		}
		return
	}
	defer s.sem.Release(1)

	if done != nil {
		<-done
	}

	current, err := s.jobs.GetJob(ctx, job.ID)
	if err != nil {
		logger.Error("failed to get job after runner exit", zap.Error(err))
		return
	}

	if current.Status.IsTerminal() {
		return
	}

	logger.Warn(exitedMessage, zap.String("status", current.Status.ToString()))
	if terr := s.jobs.Transition(ctx, job.ID, jobsmodel.JobStatusFailed, exitedMessage); terr != nil {
		logger.Error("failed to fail job", zap.Error(terr))
	}
}

// start acquires a runner slot and starts the runner through the circuit breaker.
// The slot is held on success.
func (s *Service) start(ctx context.Context, job *jobsmodel.Job) (done <-chan struct{}, err error) {
	ctx, span := s.tp.Start(ctx, "Service.start", trace.WithAttributes(attribute.String("job_id", job.ID)))
	defer func() {
		if err != nil {
			span.SetStatus(otelcodes.Error, err.Error())
			span.RecordError(err)
		}
		span.End()
	}()

	acquireCtx, cancel := context.WithTimeout(ctx, s.cfg.StartTimeout)
	err = s.sem.Acquire(acquireCtx, 1)
	cancel()
	if err != nil {
		err = jobsmodel.RunnerStartError(
			status.Errorf(codes.ResourceExhausted, "no runner slot freed up within %s", s.cfg.StartTimeout),
		)
		return nil, err
	}

	var startErr error
	cbErr := s.cb.Run(func() error {
		done, startErr = s.runner.Start(ctx, job, s.jobs)
		if isCircuitBreakerError(startErr) {
			return startErr
		}
		return nil
	})

	switch {
	case startErr != nil:
		err = startErr
	case errors.Is(cbErr, breaker.ErrBreakerOpen):
		err = status.Error(codes.Unavailable, "runner is unavailable, too many recent start failures")
	case cbErr != nil:
		err = cbErr
	}

	if err != nil {
		s.sem.Release(1)
		err = jobsmodel.RunnerStartError(err)
		return nil, err
	}

	return done, nil
}

// isCircuitBreakerError reports whether the start failure hints at an unhealthy runner
// rather than at a bad job.
func isCircuitBreakerError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	//nolint:exhaustive // Only treating some codes as circuit-breaker errors
	switch status.Code(err) {
	case codes.InvalidArgument, codes.NotFound, codes.FailedPrecondition:
		return false
	default:
		return true
	}
}
