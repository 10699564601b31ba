package jobs_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	jobsmodel "github.com/hitesh22rana/provisioner/internal/model/jobs"
)

func TestJobStatus_CanTransitionTo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		from jobsmodel.JobStatus
		to   jobsmodel.JobStatus
		want bool
	}{
		{name: "pending to running", from: jobsmodel.JobStatusPending, to: jobsmodel.JobStatusRunning, want: true},
		{name: "pending to failed", from: jobsmodel.JobStatusPending, to: jobsmodel.JobStatusFailed, want: true},
		{name: "pending to success", from: jobsmodel.JobStatusPending, to: jobsmodel.JobStatusSuccess, want: false},
		{name: "pending to pending", from: jobsmodel.JobStatusPending, to: jobsmodel.JobStatusPending, want: false},
		{name: "running to success", from: jobsmodel.JobStatusRunning, to: jobsmodel.JobStatusSuccess, want: true},
		{name: "running to failed", from: jobsmodel.JobStatusRunning, to: jobsmodel.JobStatusFailed, want: true},
		{name: "running to running", from: jobsmodel.JobStatusRunning, to: jobsmodel.JobStatusRunning, want: false},
		{name: "running to pending", from: jobsmodel.JobStatusRunning, to: jobsmodel.JobStatusPending, want: false},
		{name: "success to failed", from: jobsmodel.JobStatusSuccess, to: jobsmodel.JobStatusFailed, want: false},
		{name: "failed to running", from: jobsmodel.JobStatusFailed, to: jobsmodel.JobStatusRunning, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestJobStatus_IsTerminal(t *testing.T) {
	t.Parallel()

	assert.False(t, jobsmodel.JobStatusPending.IsTerminal())
	assert.False(t, jobsmodel.JobStatusRunning.IsTerminal())
	assert.True(t, jobsmodel.JobStatusSuccess.IsTerminal())
	assert.True(t, jobsmodel.JobStatusFailed.IsTerminal())
}

func TestParseTool(t *testing.T) {
	t.Parallel()

	for _, tool := range jobsmodel.Tools {
		got, err := jobsmodel.ParseTool(tool.ToString())
		require.NoError(t, err)
		assert.Equal(t, tool, got)
		assert.NotEmpty(t, got.Label())
	}

	_, err := jobsmodel.ParseTool("gitlab")
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = jobsmodel.ParseTool("")
	require.Error(t, err)
}

func TestParseJobStatus(t *testing.T) {
	t.Parallel()

	got, err := jobsmodel.ParseJobStatus("RUNNING")
	require.NoError(t, err)
	assert.Equal(t, jobsmodel.JobStatusRunning, got)

	_, err = jobsmodel.ParseJobStatus("COMPLETED")
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestJob_JSON(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	job := &jobsmodel.Job{
		ID:         "job-1",
		Tool:       jobsmodel.ToolJenkins,
		TargetHost: "ci-vm-01",
		Status:     jobsmodel.JobStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	data, err := json.Marshal(job)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "job-1", raw["id"])
	assert.Equal(t, "jenkins", raw["tool"])
	assert.Equal(t, "ci-vm-01", raw["targetHost"])
	assert.Equal(t, "PENDING", raw["status"])
	assert.Equal(t, "2026-01-02T03:04:05Z", raw["createdAt"])
	assert.NotContains(t, raw, "message")

	clone := job.Clone()
	clone.Status = jobsmodel.JobStatusFailed
	assert.Equal(t, jobsmodel.JobStatusPending, job.Status)
}

func TestErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		code codes.Code
		is   func(error) bool
	}{
		{name: "validation", err: jobsmodel.ValidationError("unsupported tool: %q", "gitlab"), code: codes.InvalidArgument, is: jobsmodel.IsValidation},
		{name: "not found", err: jobsmodel.NotFoundError("job-1"), code: codes.NotFound, is: jobsmodel.IsNotFound},
		{
			name: "illegal transition",
			err:  jobsmodel.IllegalTransitionError(jobsmodel.JobStatusPending, jobsmodel.JobStatusSuccess),
			code: codes.FailedPrecondition,
			is:   jobsmodel.IsIllegalTransition,
		},
		{name: "runner start", err: jobsmodel.RunnerStartError(assert.AnError), code: codes.Unavailable, is: jobsmodel.IsRunnerStart},
		{name: "transport", err: jobsmodel.TransportError("stream ended before the job finished"), code: codes.Unavailable, is: jobsmodel.IsTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.code, status.Code(tt.err))
			assert.True(t, tt.is(tt.err))
		})
	}

	assert.Equal(t,
		"illegal transition from PENDING to SUCCESS",
		status.Convert(jobsmodel.IllegalTransitionError(jobsmodel.JobStatusPending, jobsmodel.JobStatusSuccess)).Message(),
	)
	assert.Equal(t,
		"failed to start runner: docker daemon unreachable",
		status.Convert(jobsmodel.RunnerStartError(status.Error(codes.Unavailable, "docker daemon unreachable"))).Message(),
	)
	assert.False(t, jobsmodel.IsNotFound(jobsmodel.ValidationError("bad")))
}
