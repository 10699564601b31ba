package databasemigration

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/eapache/go-resiliency/retrier"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.opentelemetry.io/otel"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	clickhousepkg "github.com/hitesh22rana/provisioner/internal/pkg/clickhouse"
	loggerpkg "github.com/hitesh22rana/provisioner/internal/pkg/logger"
	postgrespkg "github.com/hitesh22rana/provisioner/internal/pkg/postgres"
	svcpkg "github.com/hitesh22rana/provisioner/internal/pkg/svc"
)

const (
	// Database operation retry configuration.
	defaultMaxRetries   = 5
	defaultInitialDelay = 1 * time.Second
)

var (
	// Network-related errors that are typically retryable.
	retryablePatterns = []string{
		"connection reset by peer",
		"connection refused",
		"timeout",
		"temporary failure",
		"network is unreachable",
		"no route to host",
		"i/o timeout",
		"dial tcp",
		"broken pipe",
		"connection lost",
		"server closed",
		"connection aborted",
	}

	// Non-retryable errors (authentication, certificate validation, syntax errors).
	nonRetryablePatterns = []string{
		"certificate",
		"authentication",
		"permission denied",
		"access denied",
		"invalid credentials",
		"tls",
		"ssl",
		"syntax error",
		"invalid query",
		"already exists",
		"duplicate key",
		"constraint",
	}
)

// ClickHouse is the ClickHouse client used to apply migrations.
type ClickHouse interface {
	Exec(ctx context.Context, query string, args ...any) error
	Query(ctx context.Context, query string, args ...any) (driver.Rows, error)
}

// Config holds the database migration configuration.
type Config struct {
	// PostgresDSN is the journal database, skipped when empty.
	PostgresDSN string
	// ClickHouse is the log archive, skipped when nil.
	ClickHouse ClickHouse

	// PostgresMigrations and ClickHouseMigrations default to the embedded migrations.
	PostgresMigrations   fs.FS
	ClickHouseMigrations fs.FS

	MaxRetries   int
	InitialDelay time.Duration
}

// Repository provides database migration repository.
type Repository struct {
	tp  trace.Tracer
	cfg *Config
}

// New creates a new database migration repository.
func New(cfg *Config) *Repository {
	if cfg.PostgresMigrations == nil {
		cfg.PostgresMigrations = postgrespkg.MigrationsFS
	}
	if cfg.ClickHouseMigrations == nil {
		cfg.ClickHouseMigrations = clickhousepkg.MigrationsFS
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = defaultInitialDelay
	}

	return &Repository{
		tp:  otel.Tracer(svcpkg.Info().GetName()),
		cfg: cfg,
	}
}

// MigratePostgres migrates the PostgreSQL database.
func (r *Repository) MigratePostgres(ctx context.Context) (err error) {
	ctx, span := r.tp.Start(ctx, "Repository.MigratePostgres")
	defer func() {
		if err != nil {
			span.SetStatus(otelcodes.Error, err.Error())
			span.RecordError(err)
		}
		span.End()
	}()

	if r.cfg.PostgresDSN == "" {
		loggerpkg.FromContext(ctx).Info("PostgreSQL journal not configured, skipping migration")
		return nil
	}

	if err = r.withRetry(ctx, "PostgreSQL", r.runPostgresMigration); err != nil {
		err = status.Errorf(codes.Internal, "postgres migration failed after retries: %v", err)
		return err
	}

	return nil
}

// runPostgresMigration executes PostgreSQL migrations using the migrate library.
func (r *Repository) runPostgresMigration(ctx context.Context) error {
	// IOFS source instance for embedded migrations
	sourceInstance, err := iofs.New(r.cfg.PostgresMigrations, "migrations")
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "failed to create IOFS source instance: %v", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", sourceInstance, r.cfg.PostgresDSN)
	if err != nil {
		return status.Errorf(codes.Unavailable, "failed to create migrate instance: %v", err)
	}

	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			loggerpkg.FromContext(ctx).Error("failed to close PostgreSQL migrate instance",
				zap.NamedError("source_error", sourceErr),
				zap.NamedError("database_error", dbErr),
			)
		}
	}()

	// Stop between migrations when the job is interrupted
	go func() {
		<-ctx.Done()
		select {
		case m.GracefulStop <- true:
		default:
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return status.Errorf(codes.Internal, "failed to run postgres migration: %v", err)
	}

	return nil
}

// MigrateClickHouse migrates the ClickHouse database.
func (r *Repository) MigrateClickHouse(ctx context.Context) (err error) {
	ctx, span := r.tp.Start(ctx, "Repository.MigrateClickHouse")
	defer func() {
		if err != nil {
			span.SetStatus(otelcodes.Error, err.Error())
			span.RecordError(err)
		}
		span.End()
	}()

	if r.cfg.ClickHouse == nil {
		loggerpkg.FromContext(ctx).Info("ClickHouse log archive not configured, skipping migration")
		return nil
	}

	if err = r.withRetry(ctx, "ClickHouse", r.runClickHouseMigration); err != nil {
		err = status.Errorf(codes.Internal, "clickhouse migration failed after retries: %v", err)
		return err
	}

	return nil
}

// withRetry executes a database operation with exponential backoff, retrying only network errors.
func (r *Repository) withRetry(ctx context.Context, dbType string, operation func(ctx context.Context) error) error {
	logger := loggerpkg.FromContext(ctx).With(zap.String("database_type", dbType))

	attempt := 0
	err := retrier.New(
		retrier.ExponentialBackoff(r.cfg.MaxRetries-1, r.cfg.InitialDelay),
		retryClassifier{},
	).RunCtx(ctx, func(ctx context.Context) error {
		attempt++
		logger.Info("attempting database operation", zap.Int("attempt", attempt))

		err := operation(ctx)
		if err != nil && isRetryable(err) {
			logger.Warn("database operation failed", zap.Int("attempt", attempt), zap.Error(err))
		}
		return err
	})
	if err != nil {
		logger.Error("database operation failed", zap.Int("attempts", attempt), zap.Error(err))
		return err
	}

	if attempt > 1 {
		logger.Info("database operation succeeded after retries", zap.Int("attempts", attempt))
	}
	return nil
}

// retryClassifier retries the errors isRetryable accepts.
type retryClassifier struct{}

func (retryClassifier) Classify(err error) retrier.Action {
	switch {
	case err == nil:
		return retrier.Succeed
	case isRetryable(err):
		return retrier.Retry
	default:
		return retrier.Fail
	}
}

// isRetryable determines if a database error is retryable.
func isRetryable(err error) bool {
	if status.Code(err) == codes.Canceled || errors.Is(err, context.Canceled) {
		return false
	}

	errStr := strings.ToLower(err.Error())

	for _, pattern := range nonRetryablePatterns {
		if strings.Contains(errStr, pattern) {
			return false
		}
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return status.Code(err) == codes.Unavailable
}
