//go:generate mockgen -source=$GOFILE -package=$GOPACKAGE -destination=./mock/$GOFILE

package databasemigration

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc/status"

	loggerpkg "github.com/hitesh22rana/provisioner/internal/pkg/logger"
	svcpkg "github.com/hitesh22rana/provisioner/internal/pkg/svc"
)

// Repository applies the schema migrations of each store.
type Repository interface {
	MigratePostgres(ctx context.Context) error
	MigrateClickHouse(ctx context.Context) error
}

// step is one store to bring up to date.
type step struct {
	name string
	run  func(ctx context.Context) error
}

// Service applies the migrations in order.
type Service struct {
	tp    trace.Tracer
	steps []step
}

// New creates a service migrating the job journal first, then the log archive.
func New(repo Repository) *Service {
	return &Service{
		tp: otel.Tracer(svcpkg.Info().GetName()),
		steps: []step{
			{name: "journal", run: repo.MigratePostgres},
			{name: "archive", run: repo.MigrateClickHouse},
		},
	}
}

// Run applies every step, stopping at the first failure.
// The returned error keeps the code of the failed step.
func (s *Service) Run(ctx context.Context) (err error) {
	ctx, span := s.tp.Start(ctx, "Service.Run")
	defer func() {
		if err != nil {
			span.SetStatus(otelcodes.Error, err.Error())
			span.RecordError(err)
		}
		span.End()
	}()

	logger := loggerpkg.FromContext(ctx)
	for _, st := range s.steps {
		start := time.Now()
		if err = st.run(ctx); err != nil {
			logger.Error("migration step failed", zap.String("step", st.name), zap.Error(err))
			return status.Errorf(status.Code(err), "%s: %s", st.name, status.Convert(err).Message())
		}
		logger.Info("migration step done", zap.String("step", st.name), zap.Duration("took", time.Since(start)))
	}

	return nil
}
