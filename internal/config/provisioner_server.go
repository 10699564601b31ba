package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// ProvisionerServerConfig holds the configuration for the provisioner server.
type ProvisionerServerConfig struct {
	Environment

	Server
	Broker
	Dispatcher
	Runner
	Inventory
	Store
	Postgres
	SQLite
	Redis
	ClickHouse
	Kafka
	Docker
}

// Server holds the configuration for the HTTP server.
type Server struct {
	Host              string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port              int           `envconfig:"SERVER_PORT" default:"8080"`
	RequestTimeout    time.Duration `envconfig:"SERVER_REQUEST_TIMEOUT" default:"5s"`
	ReadTimeout       time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"2s"`
	ReadHeaderTimeout time.Duration `envconfig:"SERVER_READ_HEADER_TIMEOUT" default:"1s"`
	WriteTimeout      time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"5s"`
	IdleTimeout       time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"30s"`
	ShutdownTimeout   time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"10s"`
	RequestBodyLimit  int64         `envconfig:"SERVER_REQUEST_BODY_LIMIT" default:"65536"`
	CORSOrigin        string        `envconfig:"SERVER_CORS_ORIGIN" default:"*"`
	SSEKeepAlive      time.Duration `envconfig:"SERVER_SSE_KEEPALIVE" default:"15s"`
}

// Broker holds the log stream broker configuration.
type Broker struct {
	SubscriberBuffer int `envconfig:"BROKER_SUBSCRIBER_BUFFER" default:"256"`
}

// Dispatcher holds the job dispatcher configuration.
type Dispatcher struct {
	MaxConcurrentRunners    int64         `envconfig:"RUNNER_MAX_CONCURRENT" default:"4"`
	StartTimeout            time.Duration `envconfig:"RUNNER_START_TIMEOUT" default:"30s"`
	BreakerErrorThreshold   int           `envconfig:"RUNNER_BREAKER_ERROR_THRESHOLD" default:"5"`
	BreakerSuccessThreshold int           `envconfig:"RUNNER_BREAKER_SUCCESS_THRESHOLD" default:"1"`
	BreakerTimeout          time.Duration `envconfig:"RUNNER_BREAKER_TIMEOUT" default:"30s"`
}

// Runner holds the job runner configuration.
type Runner struct {
	Kind               string        `envconfig:"RUNNER_KIND" default:"simulated"`
	RecipesPath        string        `envconfig:"RECIPES_PATH" default:""`
	SimulatedStepDelay time.Duration `envconfig:"RUNNER_SIMULATED_STEP_DELAY" default:"750ms"`
	SimulatedFailHosts []string      `envconfig:"RUNNER_SIMULATED_FAIL_HOSTS" default:""`
}

// Inventory holds the known hosts configuration.
type Inventory struct {
	Hosts []string `envconfig:"INVENTORY_HOSTS" default:"ci-vm-01,ci-vm-02"`
	Path  string   `envconfig:"INVENTORY_PATH" default:""`
}

// Store holds the job journal configuration.
type Store struct {
	Driver string `envconfig:"STORE_DRIVER" default:"memory"`
}

// InitProvisionerServerConfig initializes the provisioner server configuration.
func InitProvisionerServerConfig() (*ProvisionerServerConfig, error) {
	var cfg ProvisionerServerConfig
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
