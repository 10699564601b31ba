package config

import (
	"time"
)

const envPrefix = ""

// Environment holds the deployment environment.
type Environment struct {
	Env string `envconfig:"ENV" default:"development"`
}

// Postgres holds the PostgreSQL connection configuration.
type Postgres struct {
	Host        string        `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port        int           `envconfig:"POSTGRES_PORT" default:"5432"`
	User        string        `envconfig:"POSTGRES_USER" default:"postgres"`
	Password    string        `envconfig:"POSTGRES_PASSWORD" default:"postgres"`
	Database    string        `envconfig:"POSTGRES_DB" default:"provisioner"`
	MaxConns    int32         `envconfig:"POSTGRES_MAX_CONNS" default:"10"`
	MinConns    int32         `envconfig:"POSTGRES_MIN_CONNS" default:"2"`
	MaxConnLife time.Duration `envconfig:"POSTGRES_MAX_CONN_LIFE" default:"1h"`
	MaxConnIdle time.Duration `envconfig:"POSTGRES_MAX_CONN_IDLE" default:"30m"`
	DialTimeout time.Duration `envconfig:"POSTGRES_DIAL_TIMEOUT" default:"5s"`
	SSLMode     string        `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
}

// SQLite holds the embedded SQLite database configuration.
type SQLite struct {
	Path string `envconfig:"SQLITE_PATH" default:"provisioner.db"`
}

// Redis holds the Redis connection configuration.
type Redis struct {
	Enabled      bool          `envconfig:"REDIS_ENABLED" default:"false"`
	Host         string        `envconfig:"REDIS_HOST" default:"localhost"`
	Port         int           `envconfig:"REDIS_PORT" default:"6379"`
	Password     string        `envconfig:"REDIS_PASSWORD" default:""`
	DB           int           `envconfig:"REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"REDIS_MIN_IDLE_CONNS" default:"2"`
	ReadTimeout  time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"REDIS_WRITE_TIMEOUT" default:"5s"`
	QueueSize    int           `envconfig:"REDIS_PUBLISH_QUEUE_SIZE" default:"10000"`
}

// ClickHouse holds the ClickHouse connection configuration.
type ClickHouse struct {
	Enabled           bool          `envconfig:"CLICKHOUSE_ENABLED" default:"false"`
	Hosts             []string      `envconfig:"CLICKHOUSE_HOSTS" default:"localhost:9000"`
	Database          string        `envconfig:"CLICKHOUSE_DATABASE" default:"default"`
	Username          string        `envconfig:"CLICKHOUSE_USERNAME" default:"default"`
	Password          string        `envconfig:"CLICKHOUSE_PASSWORD" default:""`
	MaxOpenConns      int           `envconfig:"CLICKHOUSE_MAX_OPEN_CONNS" default:"5"`
	MaxIdleConns      int           `envconfig:"CLICKHOUSE_MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime   time.Duration `envconfig:"CLICKHOUSE_CONN_MAX_LIFETIME" default:"1h"`
	DialTimeout       time.Duration `envconfig:"CLICKHOUSE_DIAL_TIMEOUT" default:"5s"`
	MaxExecutionTime  time.Duration `envconfig:"CLICKHOUSE_MAX_EXECUTION_TIME" default:"60s"`
	Debug             bool          `envconfig:"CLICKHOUSE_DEBUG" default:"false"`
	BatchSize         int           `envconfig:"CLICKHOUSE_BATCH_SIZE" default:"500"`
	BatchInterval     time.Duration `envconfig:"CLICKHOUSE_BATCH_INTERVAL" default:"2s"`
	BatchQueueSize    int           `envconfig:"CLICKHOUSE_BATCH_QUEUE_SIZE" default:"10000"`
	BatchMaxAttempts  int           `envconfig:"CLICKHOUSE_BATCH_MAX_ATTEMPTS" default:"3"`
	BatchRetryBackoff time.Duration `envconfig:"CLICKHOUSE_BATCH_RETRY_BACKOFF" default:"200ms"`
}

// Kafka holds the Kafka producer configuration.
type Kafka struct {
	Enabled       bool          `envconfig:"KAFKA_ENABLED" default:"false"`
	Brokers       []string      `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	ClientID      string        `envconfig:"KAFKA_CLIENT_ID" default:"provisioner-server"`
	ProduceLinger time.Duration `envconfig:"KAFKA_PRODUCE_LINGER" default:"10ms"`
}

// Docker holds the container runner configuration.
type Docker struct {
	Host       string        `envconfig:"DOCKER_HOST" default:""`
	Network    string        `envconfig:"DOCKER_NETWORK" default:""`
	PullImages bool          `envconfig:"DOCKER_PULL_IMAGES" default:"true"`
	StopGrace  time.Duration `envconfig:"DOCKER_STOP_GRACE" default:"10s"`
}
