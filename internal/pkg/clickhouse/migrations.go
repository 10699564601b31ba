package clickhouse

import "embed"

// MigrationsFS holds the embedded ClickHouse migrations.
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS
