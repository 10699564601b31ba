package clickhouse

import (
	"context"
	"errors"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/eapache/go-resiliency/retrier"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	loggerpkg "github.com/hitesh22rana/provisioner/internal/pkg/logger"
	svcpkg "github.com/hitesh22rana/provisioner/internal/pkg/svc"
)

const (
	// MaxHealthCheckRetries is the maximum number of retries for the health check.
	MaxHealthCheckRetries = 3

	healthCheckBackoff = 100 * time.Millisecond

	defaultMaxExecutionTime = time.Minute
	defaultDialTimeout      = 5 * time.Second
)

// Config represents the configuration for the ClickHouse client.
type Config struct {
	Hosts            []string
	Database         string
	Username         string
	Password         string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	DialTimeout      time.Duration
	// MaxExecutionTime bounds every query on the server side.
	MaxExecutionTime time.Duration
	Debug            bool
}

// options translates the configuration into driver options, filling in defaults.
func (cfg *Config) options(ctx context.Context) *clickhouse.Options {
	maxExec := cfg.MaxExecutionTime
	if maxExec <= 0 {
		maxExec = defaultMaxExecutionTime
	}
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}

	opts := &clickhouse.Options{
		Addr: cfg.Hosts,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings:        clickhouse.Settings{"max_execution_time": int(maxExec.Seconds())},
		Compression:     &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
		DialTimeout:     dialTimeout,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}
	opts.ClientInfo.Products = append(opts.ClientInfo.Products, struct {
		Name    string
		Version string
	}{Name: svcpkg.Info().GetName(), Version: svcpkg.Info().GetVersion()})

	if cfg.Debug {
		sugar := loggerpkg.FromContext(ctx).Sugar().Named("clickhouse")
		opts.Debug = true
		opts.Debugf = sugar.Debugf
	}

	return opts
}

// Client represents a ClickHouse client.
type Client struct {
	conn driver.Conn
}

// healthCheck pings the server until it answers or the attempts run out.
func healthCheck(ctx context.Context, conn driver.Conn) error {
	r := retrier.New(retrier.ExponentialBackoff(MaxHealthCheckRetries-1, healthCheckBackoff), nil)
	return r.RunCtx(ctx, func(ctx context.Context) error {
		return conn.Ping(ctx)
	})
}

// NewClient opens the connection pool and waits for the server to answer.
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	if len(cfg.Hosts) == 0 {
		return nil, status.Error(codes.InvalidArgument, "clickhouse hosts are required")
	}

	conn, err := clickhouse.Open(cfg.options(ctx))
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to open clickhouse connection: %v", err)
	}

	if err := healthCheck(ctx, conn); err != nil {
		//nolint:errcheck // the health check error is the one worth reporting
		conn.Close()
		return nil, status.Errorf(codes.Unavailable, "initial health check failed: %v", err)
	}

	return &Client{conn: conn}, nil
}

// classify tells a query the server rejected, which will fail again, from a transport failure.
func classify(err error, msg string) error {
	var exception *clickhouse.Exception
	if errors.As(err, &exception) {
		return status.Errorf(codes.InvalidArgument, "%s: %v", msg, err)
	}
	return status.Errorf(codes.Unavailable, "%s: %v", msg, err)
}

// Close closes the ClickHouse connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Ping checks that the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

// Exec executes a query without returning any rows.
func (c *Client) Exec(ctx context.Context, query string, args ...any) error {
	return c.conn.Exec(ctx, query, args...)
}

// Query executes a query that returns rows.
func (c *Client) Query(ctx context.Context, query string, args ...any) (driver.Rows, error) {
	return c.conn.Query(ctx, query, args...)
}

// BatchInsert prepares the query, lets prepareFn append the rows and sends the batch.
func (c *Client) BatchInsert(ctx context.Context, query string, prepareFn func(batch driver.Batch) error) error {
	batch, err := c.conn.PrepareBatch(ctx, query)
	if err != nil {
		return classify(err, "failed to prepare batch")
	}

	if err := prepareFn(batch); err != nil {
		//nolint:errcheck // the prepare error is the one worth reporting
		batch.Abort()
		return status.Errorf(codes.Internal, "failed to prepare batch data: %v", err)
	}

	if err := batch.Send(); err != nil {
		return classify(err, "failed to send batch")
	}

	return nil
}
