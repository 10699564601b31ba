package jobstore

import (
	"context"

	jobsmodel "github.com/hitesh22rana/provisioner/internal/model/jobs"
)

// Driver names a journal backend.
type Driver string

const (
	// DriverMemory keeps nothing beyond the process lifetime.
	DriverMemory Driver = "memory"
	// DriverPostgres journals jobs to PostgreSQL.
	DriverPostgres Driver = "postgres"
	// DriverSQLite journals jobs to a local SQLite file.
	DriverSQLite Driver = "sqlite"
)

// Memory is the journal used when no database is configured.
type Memory struct{}

// NewMemory creates a journal that records nothing.
func NewMemory() *Memory {
	return &Memory{}
}

// Upsert does nothing.
func (*Memory) Upsert(context.Context, *jobsmodel.Job) error {
	return nil
}

// List returns no jobs.
func (*Memory) List(context.Context) ([]*jobsmodel.Job, error) {
	return nil, nil
}

// Close does nothing.
func (*Memory) Close() error {
	return nil
}
