package postgres

import (
	"cmp"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/eapache/go-resiliency/retrier"
	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	svcpkg "github.com/hitesh22rana/provisioner/internal/pkg/svc"
)

const (
	// MaxHealthCheckRetries is the maximum number of retries for the health check.
	MaxHealthCheckRetries = 3

	healthCheckBackoff = 100 * time.Millisecond

	defaultMaxConns    int32 = 10
	defaultMinConns    int32 = 2
	defaultMaxConnLife       = time.Hour
	defaultMaxConnIdle       = 30 * time.Minute
	defaultDialTimeout       = 5 * time.Second
)

// Config holds PostgreSQL connection configuration.
type Config struct {
	Host        string
	Port        int
	User        string
	Password    string
	Database    string
	MaxConns    int32
	MinConns    int32
	MaxConnLife time.Duration
	MaxConnIdle time.Duration
	DialTimeout time.Duration
	SSLMode     string
}

// DSN returns the connection URL of the configuration.
func (cfg *Config) DSN() string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:     cfg.Database,
		RawQuery: url.Values{"sslmode": []string{sslMode}}.Encode(),
	}

	return u.String()
}

// Store is the interface for the postgres store.
type Store interface {
	Close()
	Ping(ctx context.Context) error
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
}

// Postgres represents a PostgreSQL connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// healthCheck pings the database until it answers or the attempts run out.
func healthCheck(ctx context.Context, pool *pgxpool.Pool) error {
	r := retrier.New(retrier.ExponentialBackoff(MaxHealthCheckRetries-1, healthCheckBackoff), nil)
	return r.RunCtx(ctx, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
}

// PoolConfig builds the pool configuration, filling in defaults for the unset limits.
// Connections report the service name as their application_name.
func (cfg *Config) PoolConfig() (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "failed to parse connection string: %v", err)
	}

	pc.MaxConns = cmp.Or(cfg.MaxConns, defaultMaxConns)
	pc.MinConns = min(cmp.Or(cfg.MinConns, defaultMinConns), pc.MaxConns)
	pc.MaxConnLifetime = cmp.Or(cfg.MaxConnLife, defaultMaxConnLife)
	pc.MaxConnIdleTime = cmp.Or(cfg.MaxConnIdle, defaultMaxConnIdle)
	pc.ConnConfig.ConnectTimeout = cmp.Or(cfg.DialTimeout, defaultDialTimeout)
	pc.ConnConfig.Tracer = otelpgx.NewTracer()

	if name := svcpkg.Info().GetName(); name != "" {
		pc.ConnConfig.RuntimeParams["application_name"] = name
	}

	return pc, nil
}

// New opens the connection pool and waits for the database to answer.
func New(ctx context.Context, cfg *Config) (*Postgres, error) {
	pc, err := cfg.PoolConfig()
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to create PostgreSQL pool: %v", err)
	}

	if err := healthCheck(ctx, pool); err != nil {
		pool.Close()
		return nil, status.Errorf(codes.Unavailable, "failed to check PostgreSQL health: %v", err)
	}

	if err := otelpgx.RecordStats(pool); err != nil {
		pool.Close()
		return nil, status.Errorf(codes.Internal, "failed to record PostgreSQL stats: %v", err)
	}

	return &Postgres{pool: pool}, nil
}

// Close closes the connection pool.
func (db *Postgres) Close() {
	db.pool.Close()
}

// Ping checks that the database is reachable.
func (db *Postgres) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// QueryRow executes a query that returns a single row.
func (db *Postgres) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return db.pool.QueryRow(ctx, query, args...)
}

// Query executes a query that returns multiple rows.
func (db *Postgres) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return db.pool.Query(ctx, query, args...)
}

// Exec executes a query that doesn't return rows.
func (db *Postgres) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	return db.pool.Exec(ctx, query, args...)
}
