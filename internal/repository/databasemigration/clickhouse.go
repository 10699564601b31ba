package databasemigration

import (
	"context"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	loggerpkg "github.com/hitesh22rana/provisioner/internal/pkg/logger"
)

const createSchemaMigrations = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version UInt32 NOT NULL,
		dirty UInt8 NOT NULL DEFAULT 0,
		applied_at DateTime DEFAULT now()
	) ENGINE = MergeTree()
	ORDER BY version
`

// Migration represents a database migration.
type Migration struct {
	Version int
	Name    string
	Content string
}

// runClickHouseMigration applies the pending ClickHouse migrations in version order.
func (r *Repository) runClickHouseMigration(ctx context.Context) error {
	logger := loggerpkg.FromContext(ctx)

	if err := r.cfg.ClickHouse.Exec(ctx, createSchemaMigrations); err != nil {
		return status.Errorf(codes.Unavailable, "failed to create schema_migrations table: %v", err)
	}

	applied, err := r.appliedMigrations(ctx)
	if err != nil {
		return status.Errorf(codes.Unavailable, "failed to get applied migrations: %v", err)
	}

	pending, err := PendingMigrations(r.cfg.ClickHouseMigrations, applied)
	if err != nil {
		return err
	}

	if len(pending) == 0 {
		logger.Info("no pending ClickHouse migrations")
		return nil
	}

	for _, migration := range pending {
		logger.Info("applying ClickHouse migration", zap.String("file", migration.Name))

		if err := r.applyMigration(ctx, migration); err != nil {
			return err
		}

		logger.Info("applied ClickHouse migration", zap.String("file", migration.Name))
	}

	return nil
}

// appliedMigrations returns the set of cleanly applied migration versions.
func (r *Repository) appliedMigrations(ctx context.Context) (map[int]bool, error) {
	applied := make(map[int]bool)

	rows, err := r.cfg.ClickHouse.Query(ctx, "SELECT version FROM schema_migrations WHERE dirty = 0")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var version uint32
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[int(version)] = true
	}

	return applied, rows.Err()
}

// applyMigration runs one migration, flagging it dirty until it completed.
func (r *Repository) applyMigration(ctx context.Context, migration Migration) error {
	if err := r.cfg.ClickHouse.Exec(ctx, "INSERT INTO schema_migrations (version, dirty) VALUES (?, 1)", migration.Version); err != nil {
		return status.Errorf(codes.Unavailable, "failed to mark migration %s as dirty: %v", migration.Name, err)
	}

	if err := r.cfg.ClickHouse.Exec(ctx, migration.Content); err != nil {
		return status.Errorf(codes.Internal, "failed to apply migration %s: %v", migration.Name, err)
	}

	if err := r.cfg.ClickHouse.Exec(ctx, "ALTER TABLE schema_migrations UPDATE dirty = 0 WHERE version = ?", migration.Version); err != nil {
		return status.Errorf(codes.Unavailable, "failed to mark migration %s as clean: %v", migration.Name, err)
	}

	return nil
}

// PendingMigrations returns the up migrations under migrations/ not yet applied, by version.
// File names follow the golang-migrate layout, e.g. 000001_table_job_logs_create.up.sql.
func PendingMigrations(fsys fs.FS, applied map[int]bool) ([]Migration, error) {
	var migrations []Migration

	err := fs.WalkDir(fsys, "migrations", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || !strings.HasSuffix(p, ".up.sql") {
			return nil
		}

		filename := path.Base(p)
		prefix, _, ok := strings.Cut(filename, "_")
		if !ok {
			return status.Errorf(codes.InvalidArgument, "invalid migration filename format: %s", filename)
		}

		version, err := strconv.Atoi(prefix)
		if err != nil {
			return status.Errorf(codes.InvalidArgument, "invalid version in filename %s: %v", filename, err)
		}

		if applied[version] {
			return nil
		}

		content, err := fs.ReadFile(fsys, p)
		if err != nil {
			return status.Errorf(codes.Internal, "failed to read migration file %s: %v", p, err)
		}

		migrations = append(migrations, Migration{
			Version: version,
			Name:    filename,
			Content: string(content),
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(migrations, func(a, b Migration) int {
		return a.Version - b.Version
	})

	return migrations, nil
}
