package kafka

import (
	"context"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	initTimeout time.Duration = 10 * time.Second
)

// Config represents the configuration for a Kafka client.
type Config struct {
	Brokers       []string
	ClientID      string
	ProduceLinger time.Duration
}

// Option is a functional option type that allows us to configure the Kafka client.
type Option func(*Config)

// New creates a new Kafka client and checks that a broker answers.
func New(ctx context.Context, options ...Option) (*kgo.Client, error) {
	c := &Config{}
	for _, opt := range options {
		opt(c)
	}

	if len(c.Brokers) == 0 {
		return nil, status.Errorf(codes.InvalidArgument, "failed to initialize Kafka client: missing brokers")
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(c.Brokers...),
		kgo.AllowAutoTopicCreation(),
	}

	if c.ClientID != "" {
		opts = append(opts, kgo.ClientID(c.ClientID))
	}

	if c.ProduceLinger > 0 {
		opts = append(opts, kgo.ProducerLinger(c.ProduceLinger))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "failed to initialize Kafka client: %v", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, initTimeout)
	defer cancel()

	if err := client.Ping(pingCtx); err != nil {
		client.Close()
		return nil, status.Errorf(codes.Unavailable, "failed to reach Kafka brokers: %v", err)
	}

	return client, nil
}

// WithBrokers sets the Kafka brokers.
func WithBrokers(brokers ...string) Option {
	return func(c *Config) {
		c.Brokers = brokers
	}
}

// WithClientID sets the client id reported to the brokers.
func WithClientID(id string) Option {
	return func(c *Config) {
		c.ClientID = id
	}
}

// WithProduceLinger sets how long the producer waits to fill a batch.
func WithProduceLinger(d time.Duration) Option {
	return func(c *Config) {
		c.ProduceLinger = d
	}
}
