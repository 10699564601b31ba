package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"

	_ "github.com/KimMachineGun/automemlimit"
	"github.com/go-playground/validator/v10"
	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap"

	"github.com/hitesh22rana/provisioner/internal/app/provisioner"
	"github.com/hitesh22rana/provisioner/internal/config"
	"github.com/hitesh22rana/provisioner/internal/pkg/clickhouse"
	"github.com/hitesh22rana/provisioner/internal/pkg/inventory"
	"github.com/hitesh22rana/provisioner/internal/pkg/kafka"
	"github.com/hitesh22rana/provisioner/internal/pkg/kind/container"
	"github.com/hitesh22rana/provisioner/internal/pkg/kind/heartbeat"
	loggerpkg "github.com/hitesh22rana/provisioner/internal/pkg/logger"
	"github.com/hitesh22rana/provisioner/internal/pkg/postgres"
	"github.com/hitesh22rana/provisioner/internal/pkg/recipe"
	"github.com/hitesh22rana/provisioner/internal/pkg/redis"
	"github.com/hitesh22rana/provisioner/internal/pkg/sqlite"
	svcpkg "github.com/hitesh22rana/provisioner/internal/pkg/svc"
	"github.com/hitesh22rana/provisioner/internal/repository/events"
	"github.com/hitesh22rana/provisioner/internal/repository/executor"
	"github.com/hitesh22rana/provisioner/internal/repository/joblogs"
	jobsrepo "github.com/hitesh22rana/provisioner/internal/repository/jobs"
	"github.com/hitesh22rana/provisioner/internal/repository/jobstore"
	"github.com/hitesh22rana/provisioner/internal/server"
	"github.com/hitesh22rana/provisioner/internal/service/dispatcher"
	jobssvc "github.com/hitesh22rana/provisioner/internal/service/jobs"
)

const (
	// ExitOk and ExitError are the exit codes.
	ExitOk = iota
	// ExitError is the exit code for errors.
	ExitError
)

var (
	// version is the service version.
	version string

	// name is the name of the service.
	name = "provisioner-server"
)

func main() {
	os.Exit(run())
}

//nolint:gocyclo // wiring of the optional backends
func run() int {
	svcpkg.SetVersion(version)
	svcpkg.SetName(name)

	// Initialize the service with, all necessary components
	ctx, cancel := svcpkg.Init()
	defer cancel()

	// Load the provisioner server configuration
	cfg, err := config.InitProvisionerServerConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitError
	}

	// Load the host inventory and the tool recipes
	hosts, err := inventory.New(cfg.Inventory.Hosts, cfg.Inventory.Path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitError
	}
	book, err := recipe.Load(cfg.Runner.RecipesPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitError
	}

	var (
		sinks   []joblogs.Sink
		workers []provisioner.Worker
		opts    = &jobssvc.Options{}
	)

	// Archive the log lines to ClickHouse
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

		archive := joblogs.NewArchive(&joblogs.ArchiveConfig{
			BatchSize:     cfg.ClickHouse.BatchSize,
			BatchInterval: cfg.ClickHouse.BatchInterval,
			QueueSize:     cfg.ClickHouse.BatchQueueSize,
			MaxAttempts:   cfg.ClickHouse.BatchMaxAttempts,
			RetryBackoff:  cfg.ClickHouse.BatchRetryBackoff,
		}, cdb)
		sinks = append(sinks, archive)
		workers = append(workers, archive)
		opts.Archive = archive
	}

	// Publish job events to Kafka and log lines to Redis
	if cfg.Kafka.Enabled || cfg.Redis.Enabled {
		var (
			producer  events.Producer
			publisher events.Publisher
		)

		if cfg.Kafka.Enabled {
			kfk, err := kafka.New(ctx,
				kafka.WithBrokers(cfg.Kafka.Brokers...),
				kafka.WithClientID(cfg.Kafka.ClientID),
				kafka.WithProduceLinger(cfg.Kafka.ProduceLinger),
			)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return ExitError
			}
			defer kfk.Close()
			producer = kfk
		}

		if cfg.Redis.Enabled {
			rdb, err := redis.New(ctx, &redis.Config{
				Host:         cfg.Redis.Host,
				Port:         cfg.Redis.Port,
				Password:     cfg.Redis.Password,
				DB:           cfg.Redis.DB,
				PoolSize:     cfg.Redis.PoolSize,
				MinIdleConns: cfg.Redis.MinIdleConns,
				ReadTimeout:  cfg.Redis.ReadTimeout,
				WriteTimeout: cfg.Redis.WriteTimeout,
			})
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return ExitError
			}
			defer rdb.Close()
			publisher = rdb
		}

		publisherRepo := events.New(&events.Config{QueueSize: cfg.Redis.QueueSize}, producer, publisher)
		sinks = append(sinks, publisherRepo)
		workers = append(workers, publisherRepo)
		opts.Publisher = publisherRepo
	}

	// Journal the jobs across restarts
	switch jobstore.Driver(cfg.Store.Driver) {
	case jobstore.DriverMemory:
	case jobstore.DriverSQLite:
		db, err := sqlite.Open(ctx, &sqlite.Config{Path: cfg.SQLite.Path})
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return ExitError
		}
		store := jobstore.NewSQLite(db)
		defer store.Close()
		opts.Store = store
	case jobstore.DriverPostgres:
		pdb, err := postgres.New(ctx, &postgres.Config{
			Host:        cfg.Postgres.Host,
			Port:        cfg.Postgres.Port,
			User:        cfg.Postgres.User,
			Password:    cfg.Postgres.Password,
			Database:    cfg.Postgres.Database,
			MaxConns:    cfg.Postgres.MaxConns,
			MinConns:    cfg.Postgres.MinConns,
			MaxConnLife: cfg.Postgres.MaxConnLife,
			MaxConnIdle: cfg.Postgres.MaxConnIdle,
			DialTimeout: cfg.Postgres.DialTimeout,
			SSLMode:     cfg.Postgres.SSLMode,
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return ExitError
		}
		defer pdb.Close()
		opts.Store = jobstore.NewPostgres(pdb)
	default:
		fmt.Fprintf(os.Stderr, "unknown store driver: %q\n", cfg.Store.Driver)
		return ExitError
	}

	// Initialize the jobs service
	registry := jobsrepo.New(&jobsrepo.Config{}, hosts)
	broker := joblogs.New(&joblogs.Config{SubscriberBuffer: cfg.Broker.SubscriberBuffer}, sinks...)
	svc := jobssvc.New(validator.New(), registry, broker, opts)

	// Initialize the runner
	var services *executor.Services
	if cfg.Runner.Kind == executor.KindContainer {
		docker, err := container.New(ctx, &container.Config{
			Host:       cfg.Docker.Host,
			Network:    cfg.Docker.Network,
			PullImages: cfg.Docker.PullImages,
			StopGrace:  cfg.Docker.StopGrace,
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return ExitError
		}
		defer docker.Close()

		services = &executor.Services{
			Csvc: docker,
			Hsvc: heartbeat.New(),
		}
	}

	runner, err := executor.New(&executor.Config{
		Kind:               cfg.Runner.Kind,
		SimulatedStepDelay: cfg.Runner.SimulatedStepDelay,
		SimulatedFailHosts: cfg.Runner.SimulatedFailHosts,
	}, book, hosts, services)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitError
	}

	// Initialize the dispatcher
	d := dispatcher.New(&dispatcher.Config{
		MaxConcurrentRunners:    cfg.Dispatcher.MaxConcurrentRunners,
		StartTimeout:            cfg.Dispatcher.StartTimeout,
		BreakerErrorThreshold:   cfg.Dispatcher.BreakerErrorThreshold,
		BreakerSuccessThreshold: cfg.Dispatcher.BreakerSuccessThreshold,
		BreakerTimeout:          cfg.Dispatcher.BreakerTimeout,
	}, svc, runner)

	// Initialize the HTTP server
	srv := server.New(ctx, &server.Config{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		RequestTimeout:    cfg.Server.RequestTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
		RequestBodyLimit:  cfg.Server.RequestBodyLimit,
		CORSOrigin:        cfg.Server.CORSOrigin,
		SSEKeepAlive:      cfg.Server.SSEKeepAlive,
	}, svc, d, hosts)

	app := provisioner.New(ctx, svc, srv, d, workers...)

	// Log the service information
	loggerpkg.FromContext(ctx).Info(
		"starting service",
		zap.String("name", svcpkg.Info().GetName()),
		zap.String("version", svcpkg.Info().GetVersion()),
		zap.String("address", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)),
		zap.String("environment", cfg.Environment.Env),
		zap.String("runner", cfg.Runner.Kind),
		zap.String("store", cfg.Store.Driver),
		zap.Strings("hosts", hosts.Names()),
		zap.Int("gomaxprocs", runtime.GOMAXPROCS(0)),
		zap.Int64("gomemlimit", debug.SetMemoryLimit(0)),
	)

	// Serve until a shutdown signal
	if err := app.Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitError
	}

	return ExitOk
}
