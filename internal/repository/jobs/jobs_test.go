package jobs_test

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	jobsmodel "github.com/hitesh22rana/provisioner/internal/model/jobs"
	"github.com/hitesh22rana/provisioner/internal/pkg/inventory"
	"github.com/hitesh22rana/provisioner/internal/repository/jobs"
)

// clock is a manually advanced time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newRepository(t *testing.T) (*jobs.Repository, *clock) {
	t.Helper()

	hosts, err := inventory.New([]string{"ci-vm-01", "ci-vm-02"}, "")
	require.NoError(t, err)

	c := &clock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	return jobs.New(&jobs.Config{Now: c.Now}, hosts), c
}

func TestCreateJob(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		tool       jobsmodel.Tool
		targetHost string
		code       codes.Code
	}{
		{name: "success", tool: jobsmodel.ToolJenkins, targetHost: "ci-vm-01", code: codes.OK},
		{name: "success: surrounding whitespace", tool: jobsmodel.ToolHarbor, targetHost: " ci-vm-02 ", code: codes.OK},
		{name: "error: empty host", tool: jobsmodel.ToolJenkins, targetHost: "", code: codes.InvalidArgument},
		{name: "error: unknown host", tool: jobsmodel.ToolJenkins, targetHost: "prod-db-01", code: codes.InvalidArgument},
		{name: "error: unsupported tool", tool: jobsmodel.Tool("gitlab"), targetHost: "ci-vm-01", code: codes.InvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo, c := newRepository(t)
			job, err := repo.CreateJob(t.Context(), tt.tool, tt.targetHost)
			if tt.code != codes.OK {
				require.Error(t, err)
				assert.Equal(t, tt.code, status.Code(err))
				assert.Empty(t, repo.ListJobs(t.Context()))
				return
			}

			require.NoError(t, err)
			assert.NotEmpty(t, job.ID)
			assert.Equal(t, tt.tool, job.Tool)
			assert.Equal(t, strings.TrimSpace(tt.targetHost), job.TargetHost)
			assert.Equal(t, jobsmodel.JobStatusPending, job.Status)
			assert.Equal(t, c.Now(), job.CreatedAt)
			assert.Equal(t, job.CreatedAt, job.UpdatedAt)
			assert.Empty(t, job.Message)
		})
	}
}

func TestTransition(t *testing.T) {
	t.Parallel()

	repo, c := newRepository(t)
	ctx := t.Context()

	job, err := repo.CreateJob(ctx, jobsmodel.ToolNexus, "ci-vm-01")
	require.NoError(t, err)

	// Unknown job
	_, err = repo.Transition(ctx, "missing", jobsmodel.JobStatusRunning, "")
	assert.Equal(t, codes.NotFound, status.Code(err))

	// Illegal transition from a non-terminal state
	_, err = repo.Transition(ctx, job.ID, jobsmodel.JobStatusSuccess, "")
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	c.Set(c.Now().Add(time.Second))
	running, err := repo.Transition(ctx, job.ID, jobsmodel.JobStatusRunning, "")
	require.NoError(t, err)
	assert.Equal(t, jobsmodel.JobStatusRunning, running.Status)
	assert.True(t, running.UpdatedAt.After(job.UpdatedAt))

	// RUNNING -> RUNNING is not a legal successor
	_, err = repo.Transition(ctx, job.ID, jobsmodel.JobStatusRunning, "")
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	// A clock going backwards never decreases updatedAt
	c.Set(c.Now().Add(-time.Hour))
	failed, err := repo.Transition(ctx, job.ID, jobsmodel.JobStatusFailed, "disk full")
	require.NoError(t, err)
	assert.Equal(t, jobsmodel.JobStatusFailed, failed.Status)
	assert.Equal(t, "disk full", failed.Message)
	assert.Equal(t, running.UpdatedAt, failed.UpdatedAt)

	// Terminal jobs accept nothing and stay untouched
	c.Set(c.Now().Add(2 * time.Hour))
	late, err := repo.Transition(ctx, job.ID, jobsmodel.JobStatusSuccess, "late")
	require.NoError(t, err)
	assert.Equal(t, failed, late)

	got, err := repo.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, failed, got)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, job.Tool, got.Tool)
	assert.Equal(t, job.TargetHost, got.TargetHost)
}

func TestTransition_PendingToFailed(t *testing.T) {
	t.Parallel()

	repo, _ := newRepository(t)
	job, err := repo.CreateJob(t.Context(), jobsmodel.ToolSonarQube, "ci-vm-02")
	require.NoError(t, err)

	failed, err := repo.Transition(t.Context(), job.ID, jobsmodel.JobStatusFailed, "runner unavailable")
	require.NoError(t, err)
	assert.Equal(t, jobsmodel.JobStatusFailed, failed.Status)
	assert.Equal(t, "runner unavailable", failed.Message)

	// Message is kept when a later mutation carries none
	_, err = repo.Transition(t.Context(), job.ID, jobsmodel.JobStatusFailed, "")
	require.NoError(t, err)
	got, err := repo.GetJob(t.Context(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, "runner unavailable", got.Message)
}

func TestGetJob(t *testing.T) {
	t.Parallel()

	repo, _ := newRepository(t)

	_, err := repo.GetJob(t.Context(), "missing")
	assert.Equal(t, codes.NotFound, status.Code(err))

	job, err := repo.CreateJob(t.Context(), jobsmodel.ToolJenkins, "ci-vm-01")
	require.NoError(t, err)

	got, err := repo.GetJob(t.Context(), job.ID)
	require.NoError(t, err)

	// Returned jobs are copies
	got.Status = jobsmodel.JobStatusSuccess
	again, err := repo.GetJob(t.Context(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobsmodel.JobStatusPending, again.Status)
}

func TestListJobs(t *testing.T) {
	t.Parallel()

	repo, c := newRepository(t)
	ctx := t.Context()

	a, err := repo.CreateJob(ctx, jobsmodel.ToolJenkins, "ci-vm-01")
	require.NoError(t, err)

	// Same timestamp: creation order breaks the tie
	b, err := repo.CreateJob(ctx, jobsmodel.ToolNexus, "ci-vm-01")
	require.NoError(t, err)

	c.Set(c.Now().Add(time.Minute))
	d, err := repo.CreateJob(ctx, jobsmodel.ToolHarbor, "ci-vm-02")
	require.NoError(t, err)

	list := repo.ListJobs(ctx)
	require.Len(t, list, 3)
	assert.Equal(t, []string{d.ID, b.ID, a.ID}, []string{list[0].ID, list[1].ID, list[2].ID})

	// Mutating the returned copies does not affect the registry
	list[0].Status = jobsmodel.JobStatusFailed
	assert.Equal(t, jobsmodel.JobStatusPending, repo.ListJobs(ctx)[0].Status)
}

func TestListJobs_ConsistentUnderConcurrency(t *testing.T) {
	t.Parallel()

	repo, _ := newRepository(t)
	ctx := t.Context()

	job, err := repo.CreateJob(ctx, jobsmodel.ToolJenkins, "ci-vm-01")
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		//nolint:errcheck // the outcome is asserted below
		repo.Transition(ctx, job.ID, jobsmodel.JobStatusRunning, "")
		//nolint:errcheck // the outcome is asserted below
		repo.Transition(ctx, job.ID, jobsmodel.JobStatusSuccess, "installed")
	}()

	for range 100 {
		for _, j := range repo.ListJobs(ctx) {
			if j.Status == jobsmodel.JobStatusSuccess {
				assert.Equal(t, "installed", j.Message)
			}
		}
	}
	wg.Wait()

	got, err := repo.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobsmodel.JobStatusSuccess, got.Status)
}

func TestRestore(t *testing.T) {
	t.Parallel()

	repo, _ := newRepository(t)
	ctx := t.Context()

	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	older := &jobsmodel.Job{ID: "older", Tool: jobsmodel.ToolJenkins, TargetHost: "ci-vm-01", Status: jobsmodel.JobStatusSuccess, CreatedAt: base, UpdatedAt: base}
	newer := &jobsmodel.Job{ID: "newer", Tool: jobsmodel.ToolNexus, TargetHost: "ci-vm-02", Status: jobsmodel.JobStatusFailed, CreatedAt: base.Add(time.Hour), UpdatedAt: base.Add(time.Hour)}

	repo.Restore(ctx, []*jobsmodel.Job{newer, older})
	repo.Restore(ctx, []*jobsmodel.Job{{ID: "older", Status: jobsmodel.JobStatusPending}})

	list := repo.ListJobs(ctx)
	require.Len(t, list, 2)
	assert.Equal(t, "newer", list[0].ID)
	assert.Equal(t, "older", list[1].ID)
	assert.Equal(t, jobsmodel.JobStatusSuccess, list[1].Status)
}
