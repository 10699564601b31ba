package jobstore_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobsmodel "github.com/hitesh22rana/provisioner/internal/model/jobs"
	"github.com/hitesh22rana/provisioner/internal/pkg/sqlite"
	"github.com/hitesh22rana/provisioner/internal/repository/jobstore"
)

func TestMemory(t *testing.T) {
	t.Parallel()

	store := jobstore.NewMemory()
	require.NoError(t, store.Upsert(t.Context(), &jobsmodel.Job{ID: "job-1"}))

	jobs, err := store.List(t.Context())
	require.NoError(t, err)
	assert.Empty(t, jobs)
	assert.NoError(t, store.Close())
}

func TestSQLite(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	path := filepath.Join(t.TempDir(), "data", "provisioner.db")

	db, err := sqlite.Open(ctx, &sqlite.Config{Path: path})
	require.NoError(t, err)

	store := jobstore.NewSQLite(db)
	t.Cleanup(func() { store.Close() })

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	older := &jobsmodel.Job{
		ID:         "job-older",
		Tool:       jobsmodel.ToolJenkins,
		TargetHost: "ci-vm-01",
		Status:     jobsmodel.JobStatusPending,
		CreatedAt:  base,
		UpdatedAt:  base,
	}
	newer := &jobsmodel.Job{
		ID:         "job-newer",
		Tool:       jobsmodel.ToolSonarQube,
		TargetHost: "ci-vm-02",
		Status:     jobsmodel.JobStatusRunning,
		CreatedAt:  base.Add(500 * time.Millisecond),
		UpdatedAt:  base.Add(500 * time.Millisecond),
	}

	require.NoError(t, store.Upsert(ctx, newer))
	require.NoError(t, store.Upsert(ctx, older))

	// Updating keeps the immutable fields
	older.Status = jobsmodel.JobStatusFailed
	older.Message = "interrupted by server restart"
	older.UpdatedAt = base.Add(time.Hour)
	require.NoError(t, store.Upsert(ctx, older))

	jobs, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	assert.Equal(t, "job-older", jobs[0].ID)
	assert.Equal(t, jobsmodel.ToolJenkins, jobs[0].Tool)
	assert.Equal(t, "ci-vm-01", jobs[0].TargetHost)
	assert.Equal(t, jobsmodel.JobStatusFailed, jobs[0].Status)
	assert.Equal(t, "interrupted by server restart", jobs[0].Message)
	assert.True(t, base.Equal(jobs[0].CreatedAt))
	assert.True(t, base.Add(time.Hour).Equal(jobs[0].UpdatedAt))

	assert.Equal(t, "job-newer", jobs[1].ID)
	assert.Equal(t, jobsmodel.JobStatusRunning, jobs[1].Status)
	assert.True(t, newer.CreatedAt.Equal(jobs[1].CreatedAt))
}
