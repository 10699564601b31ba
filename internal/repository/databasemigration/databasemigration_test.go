package databasemigration_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	clickhousepkg "github.com/hitesh22rana/provisioner/internal/pkg/clickhouse"
	"github.com/hitesh22rana/provisioner/internal/repository/databasemigration"
)

type fakeRows struct {
	driver.Rows
	versions []uint32
	i        int
}

func (r *fakeRows) Next() bool {
	r.i++
	return r.i <= len(r.versions)
}

func (r *fakeRows) Scan(dest ...any) error {
	*dest[0].(*uint32) = r.versions[r.i-1]
	return nil
}

func (r *fakeRows) Close() error { return nil }
func (r *fakeRows) Err() error   { return nil }

type fakeClickHouse struct {
	applied   []uint32
	failures  []error
	execs     []string
	execCalls int
}

func (c *fakeClickHouse) Exec(_ context.Context, query string, _ ...any) error {
	c.execCalls++
	if len(c.failures) > 0 {
		err := c.failures[0]
		c.failures = c.failures[1:]
		if err != nil {
			return err
		}
	}
	c.execs = append(c.execs, strings.TrimSpace(query))
	return nil
}

func (c *fakeClickHouse) Query(_ context.Context, _ string, _ ...any) (driver.Rows, error) {
	return &fakeRows{versions: c.applied}, nil
}

var migrations = fstest.MapFS{
	"migrations/000002_table_b_create.up.sql":   {Data: []byte("CREATE TABLE b")},
	"migrations/000002_table_b_create.down.sql": {Data: []byte("DROP TABLE b")},
	"migrations/000001_table_a_create.up.sql":   {Data: []byte("CREATE TABLE a")},
	"migrations/000001_table_a_create.down.sql": {Data: []byte("DROP TABLE a")},
}

func TestPendingMigrations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		fsys    fstest.MapFS
		applied map[int]bool
		want    []string
		isErr   bool
	}{
		{
			name: "success: ordered by version",
			fsys: migrations,
			want: []string{"000001_table_a_create.up.sql", "000002_table_b_create.up.sql"},
		},
		{
			name:    "success: applied skipped",
			fsys:    migrations,
			applied: map[int]bool{1: true},
			want:    []string{"000002_table_b_create.up.sql"},
		},
		{
			name: "error: invalid version",
			fsys: fstest.MapFS{
				"migrations/first_table_create.up.sql": {Data: []byte("CREATE TABLE a")},
			},
			isErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := databasemigration.PendingMigrations(tt.fsys, tt.applied)
			if tt.isErr {
				assert.Equal(t, codes.InvalidArgument, status.Code(err))
				return
			}
			require.NoError(t, err)

			names := make([]string, 0, len(got))
			for _, m := range got {
				names = append(names, m.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestPendingMigrations_Embedded(t *testing.T) {
	t.Parallel()

	got, err := databasemigration.PendingMigrations(clickhousepkg.MigrationsFS, nil)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Contains(t, got[0].Content, "job_logs")
}

func TestMigrateClickHouse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		ch        *fakeClickHouse
		wantExecs []string
		code      codes.Code
	}{
		{
			name:      "success: pending migration applied",
			ch:        &fakeClickHouse{applied: []uint32{1}},
			wantExecs: []string{"INSERT INTO schema_migrations (version, dirty) VALUES (?, 1)", "CREATE TABLE b", "ALTER TABLE schema_migrations UPDATE dirty = 0 WHERE version = ?"},
		},
		{
			name: "success: transient failure retried",
			ch: &fakeClickHouse{
				applied:  []uint32{1, 2},
				failures: []error{errors.New("dial tcp 127.0.0.1:9000: connect: connection refused")},
			},
			wantExecs: []string{},
		},
		{
			name: "error: syntax error not retried",
			ch: &fakeClickHouse{
				applied:  []uint32{1},
				failures: []error{nil, nil, errors.New("code: 62, message: Syntax error")},
			},
			wantExecs: []string{"INSERT INTO schema_migrations (version, dirty) VALUES (?, 1)"},
			code:      codes.Internal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := databasemigration.New(&databasemigration.Config{
				ClickHouse:           tt.ch,
				ClickHouseMigrations: migrations,
				InitialDelay:         time.Millisecond,
			})

			err := repo.MigrateClickHouse(t.Context())
			assert.Equal(t, tt.code, status.Code(err))

			// The schema table creation always comes first
			require.NotEmpty(t, tt.ch.execs)
			assert.Contains(t, tt.ch.execs[0], "CREATE TABLE IF NOT EXISTS schema_migrations")
			assert.Equal(t, tt.wantExecs, tt.ch.execs[1:])
		})
	}
}

func TestMigrate_Skipped(t *testing.T) {
	t.Parallel()

	repo := databasemigration.New(&databasemigration.Config{})
	assert.NoError(t, repo.MigratePostgres(t.Context()))
	assert.NoError(t, repo.MigrateClickHouse(t.Context()))
}
