package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"

	_ "github.com/KimMachineGun/automemlimit"
	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap"

	"github.com/hitesh22rana/provisioner/internal/app/databasemigration"
	"github.com/hitesh22rana/provisioner/internal/config"
	"github.com/hitesh22rana/provisioner/internal/pkg/clickhouse"
	loggerpkg "github.com/hitesh22rana/provisioner/internal/pkg/logger"
	"github.com/hitesh22rana/provisioner/internal/pkg/postgres"
	svcpkg "github.com/hitesh22rana/provisioner/internal/pkg/svc"
	databasemigrationrepo "github.com/hitesh22rana/provisioner/internal/repository/databasemigration"
	databasemigrationsvc "github.com/hitesh22rana/provisioner/internal/service/databasemigration"
)

const (
	// ExitOk and ExitError are the exit codes.
	ExitOk = iota
	// ExitError is the exit code for errors.
	ExitError
)

var (
	// version is the job version.
	version string

	// name is the name of the job.
	name = "database-migration"
)

func main() {
	os.Exit(run())
}

func run() int {
	svcpkg.SetVersion(version)
	svcpkg.SetName(name)

	// Initialize the job with, all necessary components
	ctx, cancel := svcpkg.Init()
	defer cancel()

	// Load the database migration configuration
	cfg, err := config.InitDatabaseMigrationConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitError
	}

	pgCfg := &postgres.Config{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		Database: cfg.Postgres.Database,
		SSLMode:  cfg.Postgres.SSLMode,
	}

	repoCfg := &databasemigrationrepo.Config{
		MaxRetries:   cfg.Migration.MaxRetries,
		InitialDelay: cfg.Migration.InitialDelay,
	}
	if cfg.Migration.PostgresEnabled {
		repoCfg.PostgresDSN = pgCfg.DSN()
	}

	// The log archive is optional
	if cfg.ClickHouse.Enabled {
		cdb, err := clickhouse.NewClient(ctx, &clickhouse.Config{
			Hosts:            cfg.ClickHouse.Hosts,
			Database:         cfg.ClickHouse.Database,
			Username:         cfg.ClickHouse.Username,
			Password:         cfg.ClickHouse.Password,
			MaxOpenConns:     cfg.ClickHouse.MaxOpenConns,
			MaxIdleConns:     cfg.ClickHouse.MaxIdleConns,
			ConnMaxLifetime:  cfg.ClickHouse.ConnMaxLifetime,
			DialTimeout:      cfg.ClickHouse.DialTimeout,
			MaxExecutionTime: cfg.ClickHouse.MaxExecutionTime,
			Debug:            cfg.ClickHouse.Debug,
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return ExitError
		}
		defer cdb.Close()

		repoCfg.ClickHouse = cdb
	}

	// Initialize the database migration components
	repo := databasemigrationrepo.New(repoCfg)
	svc := databasemigrationsvc.New(repo)
	app := databasemigration.New(ctx, &databasemigration.Config{Timeout: cfg.Migration.Timeout}, svc)

	// Log the job information
	loggerpkg.FromContext(ctx).Info(
		"starting job",
		zap.String("name", svcpkg.Info().GetName()),
		zap.String("version", svcpkg.Info().GetVersion()),
		zap.String("environment", cfg.Environment.Env),
		zap.Bool("postgres_enabled", cfg.Migration.PostgresEnabled),
		zap.Bool("clickhouse_enabled", cfg.ClickHouse.Enabled),
		zap.Int("max_retries", cfg.Migration.MaxRetries),
		zap.Int("gomaxprocs", runtime.GOMAXPROCS(0)),
		zap.Int64("gomemlimit", debug.SetMemoryLimit(0)),
	)

	// Run the migrations
	if err := app.Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitError
	}

	return ExitOk
}
