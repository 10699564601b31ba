package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	// registers the sqlite3 driver.
	_ "github.com/mattn/go-sqlite3"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const schema = `
CREATE TABLE IF NOT EXISTS provisioning_jobs (
	id TEXT PRIMARY KEY,
	tool TEXT NOT NULL,
	target_host TEXT NOT NULL,
	status TEXT NOT NULL,
	message TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_provisioning_jobs_created_at ON provisioning_jobs(created_at);
`

// Config holds the SQLite configuration.
type Config struct {
	Path string
}

// Open opens the database file, creating its directory and schema when missing.
func Open(ctx context.Context, cfg *Config) (*sql.DB, error) {
	if cfg.Path == "" {
		return nil, status.Error(codes.InvalidArgument, "sqlite path is required")
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, status.Errorf(codes.Internal, "failed to create data directory: %v", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to open database: %v", err)
	}

	// SQLite serializes writers; a single connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		//nolint:errcheck // the schema error is the one worth reporting
		db.Close()
		return nil, status.Errorf(codes.Internal, "failed to initialize schema: %v", err)
	}

	return db, nil
}
