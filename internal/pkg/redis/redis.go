package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/eapache/go-resiliency/retrier"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	// MaxHealthCheckRetries is the maximum number of retries for the health check.
	MaxHealthCheckRetries = 3

	healthCheckBackoff = 100 * time.Millisecond

	jobLogsChannelPrefix = "job_logs:"
)

// JobLogsChannel returns the channel a job's log lines are published on.
func JobLogsChannel(jobID string) string {
	return jobLogsChannelPrefix + jobID
}

// Config is the configuration for the Redis store.
type Config struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Store wraps a Redis client.
type Store struct {
	client *redis.Client
}

// healthCheck pings the server until it answers or the attempts run out.
func healthCheck(ctx context.Context, client *redis.Client) error {
	r := retrier.New(retrier.ExponentialBackoff(MaxHealthCheckRetries-1, healthCheckBackoff), nil)
	return r.RunCtx(ctx, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
}

// New creates a new Redis store instance.
func New(ctx context.Context, cfg *Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, status.Errorf(codes.Internal, "failed to instrument redis tracing: %v", err)
	}
	if err := redisotel.InstrumentMetrics(client); err != nil {
		return nil, status.Errorf(codes.Internal, "failed to instrument redis metrics: %v", err)
	}

	if err := healthCheck(ctx, client); err != nil {
		//nolint:errcheck // the health check error is the one worth reporting
		client.Close()
		return nil, status.Errorf(codes.Unavailable, "failed to connect to redis: %v", err)
	}

	return &Store{client: client}, nil
}

// NewFromClient wraps an existing client.
func NewFromClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Close closes the Redis store.
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping checks that the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Publish publishes the payload on the channel.
func (s *Store) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := s.client.Publish(ctx, channel, payload).Err(); err != nil {
		return status.Errorf(codes.Unavailable, "failed to publish to %s: %v", channel, err)
	}

	return nil
}

// Subscribe subscribes to the channels; the caller closes the returned PubSub.
func (s *Store) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return s.client.Subscribe(ctx, channels...)
}
