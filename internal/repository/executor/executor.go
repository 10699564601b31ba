//go:generate mockgen -source=$GOFILE -package=$GOPACKAGE -destination=./mock/$GOFILE

package executor

import (
	"context"
	"maps"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	jobsmodel "github.com/hitesh22rana/provisioner/internal/model/jobs"
	"github.com/hitesh22rana/provisioner/internal/pkg/inventory"
	"github.com/hitesh22rana/provisioner/internal/pkg/kind/container"
	"github.com/hitesh22rana/provisioner/internal/pkg/kind/heartbeat"
	loggerpkg "github.com/hitesh22rana/provisioner/internal/pkg/logger"
	"github.com/hitesh22rana/provisioner/internal/pkg/recipe"
	svcpkg "github.com/hitesh22rana/provisioner/internal/pkg/svc"
)

// Runner kinds.
const (
	KindContainer = "container"
	KindSimulated = "simulated"
)

const (
	defaultReadinessAttempts = 30
	defaultReadinessInterval = 2 * time.Second
)

// Recipes resolves the recipe of a tool.
type Recipes interface {
	Get(tool jobsmodel.Tool) (*recipe.Recipe, error)
}

// Hosts resolves the known target hosts.
type Hosts interface {
	Lookup(name string) (inventory.Host, bool)
}

// ContainerSvc runs provisioning containers.
type ContainerSvc interface {
	Pull(ctx context.Context, imageName string) error
	Run(ctx context.Context, spec *container.Spec) (<-chan string, <-chan error, error)
}

// HeartBeatSvc waits for a provisioned tool to answer.
type HeartBeatSvc interface {
	WaitReady(ctx context.Context, attempts int, interval time.Duration, p *heartbeat.Probe) error
}

// Services represents the services used by the container runner.
type Services struct {
	Csvc ContainerSvc
	Hsvc HeartBeatSvc
}

// Config represents the runner configuration.
type Config struct {
	Kind               string
	SimulatedStepDelay time.Duration
	SimulatedFailHosts []string
	ReadinessAttempts  int
	ReadinessInterval  time.Duration
}

// Repository runs provisioning jobs, either in containers or simulated.
type Repository struct {
	tp      trace.Tracer
	cfg     *Config
	recipes Recipes
	hosts   Hosts
	svc     *Services
}

// New creates a new executor repository.
// Services are only required by the container kind.
func New(cfg *Config, recipes Recipes, hosts Hosts, svc *Services) (*Repository, error) {
	switch cfg.Kind {
	case KindContainer:
		if svc == nil || svc.Csvc == nil || svc.Hsvc == nil {
			return nil, status.Error(codes.InvalidArgument, "container runner requires the container and heartbeat services")
		}
	case KindSimulated:
	default:
		return nil, status.Errorf(codes.InvalidArgument, "unknown runner kind: %q", cfg.Kind)
	}

	if cfg.ReadinessAttempts <= 0 {
		cfg.ReadinessAttempts = defaultReadinessAttempts
	}
	if cfg.ReadinessInterval <= 0 {
		cfg.ReadinessInterval = defaultReadinessInterval
	}

	return &Repository{
		tp:      otel.Tracer(svcpkg.Info().GetName()),
		cfg:     cfg,
		recipes: recipes,
		hosts:   hosts,
		svc:     svc,
	}, nil
}

// Start launches the installation of the job.
// RUNNING is reported once the work is under way; the returned channel is closed
// after the final status has been reported.
func (r *Repository) Start(ctx context.Context, job *jobsmodel.Job, reporter jobsmodel.Reporter) (<-chan struct{}, error) {
	rcp, err := r.recipes.Get(job.Tool)
	if err != nil {
		return nil, err
	}

	host, ok := r.hosts.Lookup(job.TargetHost)
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "unknown target host: %q", job.TargetHost)
	}

	vars := map[string]string{
		"JOB_ID":         job.ID,
		"TOOL":           job.Tool.ToString(),
		"TARGET_HOST":    host.Name,
		"TARGET_ADDRESS": host.Address,
	}

	if r.cfg.Kind == KindSimulated {
		return r.startSimulated(ctx, job, rcp, host, vars, reporter)
	}

	return r.startContainer(ctx, job, rcp, host, vars, reporter)
}

// run reports RUNNING, then hands over to fn and closes the returned channel when it is over.
func (r *Repository) run(ctx context.Context, job *jobsmodel.Job, reporter jobsmodel.Reporter, fn func(ctx context.Context)) <-chan struct{} {
	report(ctx, reporter, job.ID, jobsmodel.JobStatusRunning, "")

	done := make(chan struct{})
	go func() {
		defer close(done)

		ctx, span := r.tp.Start(ctx, "Repository.run")
		defer span.End()

		fn(ctx)
	}()

	return done
}

// report applies a status change; a rejected change is logged, the job is the dispatcher's concern.
func report(ctx context.Context, reporter jobsmodel.Reporter, jobID string, next jobsmodel.JobStatus, message string) {
	if err := reporter.Transition(ctx, jobID, next, message); err != nil {
		loggerpkg.FromContext(ctx).Warn("failed to report job status",
			zap.String("job_id", jobID),
			zap.String("status", next.ToString()),
			zap.Error(err),
		)
	}
}

func appendLog(ctx context.Context, reporter jobsmodel.Reporter, jobID, text string) {
	if err := reporter.AppendLog(ctx, jobID, text); err != nil {
		loggerpkg.FromContext(ctx).Warn("failed to report job log",
			zap.String("job_id", jobID),
			zap.Error(err),
		)
	}
}

// environment renders the container environment: the job variables, then the recipe's own.
func environment(rcp *recipe.Recipe, vars map[string]string) []string {
	env := make([]string, 0, len(vars)+len(rcp.Env))
	for _, key := range slices.Sorted(maps.Keys(vars)) {
		env = append(env, key+"="+vars[key])
	}
	for _, key := range slices.Sorted(maps.Keys(rcp.Env)) {
		env = append(env, key+"="+recipe.Expand(rcp.Env[key], vars))
	}

	return env
}
