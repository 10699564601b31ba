package postgres

import "embed"

// MigrationsFS holds the embedded golang-migrate migrations.
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS
