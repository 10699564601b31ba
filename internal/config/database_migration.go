package config

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Migration tunes how the migrations are applied.
type Migration struct {
	// PostgresEnabled is turned off for deployments whose journal is not PostgreSQL.
	PostgresEnabled bool          `envconfig:"MIGRATION_POSTGRES_ENABLED" default:"true"`
	MaxRetries      int           `envconfig:"MIGRATION_MAX_RETRIES" default:"5"`
	InitialDelay    time.Duration `envconfig:"MIGRATION_INITIAL_DELAY" default:"1s"`
	Timeout         time.Duration `envconfig:"MIGRATION_TIMEOUT" default:"5m"`
}

// DatabaseMigration holds the configuration of the migration job.
type DatabaseMigration struct {
	Environment
	Migration

	Postgres
	ClickHouse
}

// InitDatabaseMigrationConfig loads the migration job configuration from the environment.
func InitDatabaseMigrationConfig() (*DatabaseMigration, error) {
	cfg := &DatabaseMigration{}
	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, err
	}

	if !cfg.Migration.PostgresEnabled && !cfg.ClickHouse.Enabled {
		return nil, errors.New("nothing to migrate: both postgres and clickhouse are disabled")
	}
	return cfg, nil
}
