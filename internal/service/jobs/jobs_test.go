package jobs_test

import (
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	jobsmodel "github.com/hitesh22rana/provisioner/internal/model/jobs"
	"github.com/hitesh22rana/provisioner/internal/repository/joblogs"
	"github.com/hitesh22rana/provisioner/internal/service/jobs"
	jobsmock "github.com/hitesh22rana/provisioner/internal/service/jobs/mock"
)

type mocks struct {
	registry  *jobsmock.MockRegistry
	broker    *jobsmock.MockBroker
	store     *jobsmock.MockStore
	archive   *jobsmock.MockArchive
	publisher *jobsmock.MockPublisher
}

func newService(t *testing.T) (*jobs.Service, *mocks) {
	t.Helper()

	ctrl := gomock.NewController(t)
	m := &mocks{
		registry:  jobsmock.NewMockRegistry(ctrl),
		broker:    jobsmock.NewMockBroker(ctrl),
		store:     jobsmock.NewMockStore(ctrl),
		archive:   jobsmock.NewMockArchive(ctrl),
		publisher: jobsmock.NewMockPublisher(ctrl),
	}

	s := jobs.New(validator.New(), m.registry, m.broker, &jobs.Options{
		Store:     m.store,
		Archive:   m.archive,
		Publisher: m.publisher,
	})

	return s, m
}

func job(id string, jobStatus jobsmodel.JobStatus) *jobsmodel.Job {
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return &jobsmodel.Job{
		ID:         id,
		Tool:       jobsmodel.ToolJenkins,
		TargetHost: "ci-vm-01",
		Status:     jobStatus,
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}
}

func TestCreateJob(t *testing.T) {
	t.Parallel()

	type args struct {
		tool       string
		targetHost string
	}

	tests := []struct {
		name  string
		args  args
		mock  func(m *mocks)
		code  codes.Code
		isErr bool
	}{
		{
			name: "success",
			args: args{tool: "jenkins", targetHost: "ci-vm-01"},
			mock: func(m *mocks) {
				created := job("job-1", jobsmodel.JobStatusPending)
				m.registry.EXPECT().CreateJob(gomock.Any(), jobsmodel.ToolJenkins, "ci-vm-01").Return(created, nil)
				m.broker.EXPECT().Open("job-1")
				m.store.EXPECT().Upsert(gomock.Any(), created).Return(nil)
				m.publisher.EXPECT().PublishJobEvent(gomock.Any(), created)
			},
		},
		{
			name: "success: journal failure does not fail the request",
			args: args{tool: "harbor", targetHost: "ci-vm-01"},
			mock: func(m *mocks) {
				created := job("job-1", jobsmodel.JobStatusPending)
				created.Tool = jobsmodel.ToolHarbor
				m.registry.EXPECT().CreateJob(gomock.Any(), jobsmodel.ToolHarbor, "ci-vm-01").Return(created, nil)
				m.broker.EXPECT().Open("job-1")
				m.store.EXPECT().Upsert(gomock.Any(), created).Return(errors.New("disk full"))
				m.publisher.EXPECT().PublishJobEvent(gomock.Any(), created)
			},
		},
		{
			name:  "error: unsupported tool",
			args:  args{tool: "gitlab", targetHost: "ci-vm-01"},
			mock:  func(_ *mocks) {},
			code:  codes.InvalidArgument,
			isErr: true,
		},
		{
			name:  "error: missing target host",
			args:  args{tool: "nexus"},
			mock:  func(_ *mocks) {},
			code:  codes.InvalidArgument,
			isErr: true,
		},
		{
			name: "error: unknown target host",
			args: args{tool: "nexus", targetHost: "prod-db-01"},
			mock: func(m *mocks) {
				m.registry.EXPECT().CreateJob(gomock.Any(), jobsmodel.ToolNexus, "prod-db-01").
					Return(nil, status.Error(codes.InvalidArgument, "unknown target host"))
			},
			code:  codes.InvalidArgument,
			isErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s, m := newService(t)
			tt.mock(m)

			got, err := s.CreateJob(t.Context(), tt.args.tool, tt.args.targetHost)
			if tt.isErr {
				assert.Equal(t, tt.code, status.Code(err))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "job-1", got.ID)
			assert.Equal(t, jobsmodel.JobStatusPending, got.Status)
		})
	}
}

func TestListJobs(t *testing.T) {
	t.Parallel()

	all := []*jobsmodel.Job{
		job("job-3", jobsmodel.JobStatusRunning),
		job("job-2", jobsmodel.JobStatusSuccess),
		job("job-1", jobsmodel.JobStatusRunning),
	}

	tests := []struct {
		name   string
		status string
		want   []string
		isErr  bool
	}{
		{name: "success: no filter", want: []string{"job-3", "job-2", "job-1"}},
		{name: "success: filter by status", status: "RUNNING", want: []string{"job-3", "job-1"}},
		{name: "success: nothing matches", status: "PENDING", want: []string{}},
		{name: "error: invalid status", status: "DONE", isErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s, m := newService(t)
			if !tt.isErr {
				listed := make([]*jobsmodel.Job, len(all))
				for i, j := range all {
					listed[i] = j.Clone()
				}
				m.registry.EXPECT().ListJobs(gomock.Any()).Return(listed)
			}

			got, err := s.ListJobs(t.Context(), tt.status)
			if tt.isErr {
				assert.Equal(t, codes.InvalidArgument, status.Code(err))
				return
			}
			require.NoError(t, err)

			ids := []string{}
			for _, j := range got {
				ids = append(ids, j.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestGetJobLogs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		mock func(m *mocks)
		want int
		code codes.Code
	}{
		{
			name: "success",
			mock: func(m *mocks) {
				m.registry.EXPECT().GetJob(gomock.Any(), "job-1").Return(job("job-1", jobsmodel.JobStatusSuccess), nil)
				m.broker.EXPECT().Lines(gomock.Any(), "job-1").Return([]*jobsmodel.LogLine{
					{JobID: "job-1", Seq: 1, Text: "Starting install"},
					{JobID: "job-1", Seq: 2, Text: "Done"},
				}, nil)
			},
			want: 2,
		},
		{
			name: "error: job still running",
			mock: func(m *mocks) {
				m.registry.EXPECT().GetJob(gomock.Any(), "job-1").Return(job("job-1", jobsmodel.JobStatusRunning), nil)
			},
			code: codes.FailedPrecondition,
		},
		{
			name: "error: job not found",
			mock: func(m *mocks) {
				m.registry.EXPECT().GetJob(gomock.Any(), "job-1").Return(nil, status.Error(codes.NotFound, "job not found"))
			},
			code: codes.NotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s, m := newService(t)
			tt.mock(m)

			lines, err := s.GetJobLogs(t.Context(), "job-1")
			if tt.code != codes.OK {
				assert.Equal(t, tt.code, status.Code(err))
				return
			}
			require.NoError(t, err)
			assert.Len(t, lines, tt.want)
		})
	}
}

func TestStreamJobLogs(t *testing.T) {
	t.Parallel()

	ctx := t.Context()

	// Subscriptions come from a real broker
	broker := joblogs.New(nil)
	broker.Open("job-1")
	_, err := broker.Append(ctx, "job-1", "Starting install")
	require.NoError(t, err)
	sub, err := broker.Subscribe(ctx, "job-1")
	require.NoError(t, err)
	defer sub.Cancel()

	s, m := newService(t)
	m.registry.EXPECT().GetJob(gomock.Any(), "job-1").Return(job("job-1", jobsmodel.JobStatusRunning), nil)
	m.broker.EXPECT().Subscribe(gomock.Any(), "job-1").Return(sub, nil)

	got, err := s.StreamJobLogs(ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, got.Replay(), 1)
	assert.Equal(t, "Starting install", got.Replay()[0].Text)

	// Unknown jobs are rejected before subscribing
	m.registry.EXPECT().GetJob(gomock.Any(), "missing").Return(nil, status.Error(codes.NotFound, "job not found"))
	_, err = s.StreamJobLogs(ctx, "missing")
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = s.StreamJobLogs(ctx, "")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestTransition(t *testing.T) {
	t.Parallel()

	type args struct {
		next    jobsmodel.JobStatus
		message string
	}

	tests := []struct {
		name  string
		args  args
		mock  func(m *mocks)
		code  codes.Code
		isErr bool
		// locks is how many job mutexes remain afterwards
		locks int
	}{
		{
			name: "success: running",
			args: args{next: jobsmodel.JobStatusRunning},
			mock: func(m *mocks) {
				running := job("job-1", jobsmodel.JobStatusRunning)
				m.registry.EXPECT().GetJob(gomock.Any(), "job-1").Return(job("job-1", jobsmodel.JobStatusPending), nil)
				m.registry.EXPECT().Transition(gomock.Any(), "job-1", jobsmodel.JobStatusRunning, "").Return(running, nil)
				m.store.EXPECT().Upsert(gomock.Any(), running).Return(nil)
				m.publisher.EXPECT().PublishJobEvent(gomock.Any(), running)
			},
			locks: 1,
		},
		{
			name: "success: final status closes the log stream",
			args: args{next: jobsmodel.JobStatusSuccess, message: "Jenkins is up"},
			mock: func(m *mocks) {
				done := job("job-1", jobsmodel.JobStatusSuccess)
				done.Message = "Jenkins is up"
				m.registry.EXPECT().GetJob(gomock.Any(), "job-1").Return(job("job-1", jobsmodel.JobStatusRunning), nil)
				m.registry.EXPECT().Transition(gomock.Any(), "job-1", jobsmodel.JobStatusSuccess, "Jenkins is up").Return(done, nil)
				m.store.EXPECT().Upsert(gomock.Any(), done).Return(nil)
				m.publisher.EXPECT().PublishJobEvent(gomock.Any(), done)
				m.broker.EXPECT().Close(gomock.Any(), "job-1").Return(nil)
			},
		},
		{
			name: "success: late event for a finished job is dropped",
			args: args{next: jobsmodel.JobStatusFailed, message: "timeout"},
			mock: func(m *mocks) {
				done := job("job-1", jobsmodel.JobStatusSuccess)
				m.registry.EXPECT().GetJob(gomock.Any(), "job-1").Return(done, nil)
				m.registry.EXPECT().Transition(gomock.Any(), "job-1", jobsmodel.JobStatusFailed, "timeout").Return(done, nil)
			},
		},
		{
			name: "success: illegal final status fails the job",
			args: args{next: jobsmodel.JobStatusSuccess},
			mock: func(m *mocks) {
				failed := job("job-1", jobsmodel.JobStatusFailed)
				m.registry.EXPECT().GetJob(gomock.Any(), "job-1").Return(job("job-1", jobsmodel.JobStatusPending), nil)
				m.registry.EXPECT().Transition(gomock.Any(), "job-1", jobsmodel.JobStatusSuccess, "").
					Return(nil, status.Error(codes.FailedPrecondition, "illegal transition from PENDING to SUCCESS"))
				m.registry.EXPECT().Transition(gomock.Any(), "job-1", jobsmodel.JobStatusFailed,
					"runner reported illegal transition from PENDING to SUCCESS").Return(failed, nil)
				m.store.EXPECT().Upsert(gomock.Any(), failed).Return(nil)
				m.publisher.EXPECT().PublishJobEvent(gomock.Any(), failed)
				m.broker.EXPECT().Close(gomock.Any(), "job-1").Return(nil)
			},
		},
		{
			name: "error: illegal non-final status is ignored",
			args: args{next: jobsmodel.JobStatusRunning},
			mock: func(m *mocks) {
				m.registry.EXPECT().GetJob(gomock.Any(), "job-1").Return(job("job-1", jobsmodel.JobStatusRunning), nil)
				m.registry.EXPECT().Transition(gomock.Any(), "job-1", jobsmodel.JobStatusRunning, "").
					Return(nil, status.Error(codes.FailedPrecondition, "illegal transition from RUNNING to RUNNING"))
			},
			code:  codes.FailedPrecondition,
			isErr: true,
			locks: 1,
		},
		{
			name: "error: job not found",
			args: args{next: jobsmodel.JobStatusRunning},
			mock: func(m *mocks) {
				m.registry.EXPECT().GetJob(gomock.Any(), "job-1").Return(nil, status.Error(codes.NotFound, "job not found"))
			},
			code:  codes.NotFound,
			isErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s, m := newService(t)
			tt.mock(m)

			err := s.Transition(t.Context(), "job-1", tt.args.next, tt.args.message)
			assert.Equal(t, tt.locks, s.TrackedLocks())
			if tt.isErr {
				assert.Equal(t, tt.code, status.Code(err))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestAppendLog(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		err   error
		isErr bool
		locks int
	}{
		{name: "success", locks: 1},
		{name: "success: line after the job finished is dropped", err: status.Error(codes.FailedPrecondition, "log stream is closed")},
		{name: "error: unknown job", err: status.Error(codes.NotFound, "log stream not found"), isErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s, m := newService(t)
			var line *jobsmodel.LogLine
			if tt.err == nil {
				line = &jobsmodel.LogLine{JobID: "job-1", Seq: 1, Text: "Pulling image"}
			}
			m.broker.EXPECT().Append(gomock.Any(), "job-1", "Pulling image").Return(line, tt.err)

			err := s.AppendLog(t.Context(), "job-1", "Pulling image")
			assert.Equal(t, tt.locks, s.TrackedLocks())
			if tt.isErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRestore(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	s, m := newService(t)

	running := job("job-1", jobsmodel.JobStatusRunning)
	done := job("job-2", jobsmodel.JobStatusSuccess)
	failed := job("job-1", jobsmodel.JobStatusFailed)
	failed.Message = "interrupted by server restart"

	archived := []*jobsmodel.LogLine{
		{JobID: "job-2", Seq: 1, Text: "Starting install"},
		{JobID: "job-2", Seq: 2, Text: "Done"},
	}

	gomock.InOrder(
		m.store.EXPECT().List(gomock.Any()).Return([]*jobsmodel.Job{running, done}, nil),
		m.registry.EXPECT().Restore(gomock.Any(), []*jobsmodel.Job{running, done}),
		m.registry.EXPECT().GetJob(gomock.Any(), "job-1").Return(running, nil),
		m.registry.EXPECT().Transition(gomock.Any(), "job-1", jobsmodel.JobStatusFailed, "interrupted by server restart").Return(failed, nil),
		m.store.EXPECT().Upsert(gomock.Any(), failed).Return(nil),
		m.publisher.EXPECT().PublishJobEvent(gomock.Any(), failed),
		m.broker.EXPECT().Close(gomock.Any(), "job-1").Return(status.Error(codes.NotFound, "log stream not found")),
	)

	require.NoError(t, s.Restore(ctx))

	// The archived log is loaded once, on first read
	m.registry.EXPECT().GetJob(gomock.Any(), "job-2").Return(done, nil).Times(2)
	m.archive.EXPECT().Fetch(gomock.Any(), "job-2").Return(archived, nil)
	m.broker.EXPECT().Restore("job-2", archived)
	m.broker.EXPECT().Lines(gomock.Any(), "job-2").Return(archived, nil).Times(2)

	for range 2 {
		lines, err := s.GetJobLogs(ctx, "job-2")
		require.NoError(t, err)
		assert.Len(t, lines, 2)
	}
}

func TestRestore_ArchiveUnavailable(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	s, m := newService(t)

	done := job("job-2", jobsmodel.JobStatusSuccess)
	m.store.EXPECT().List(gomock.Any()).Return([]*jobsmodel.Job{done}, nil)
	m.registry.EXPECT().Restore(gomock.Any(), []*jobsmodel.Job{done})
	require.NoError(t, s.Restore(ctx))

	m.registry.EXPECT().GetJob(gomock.Any(), "job-2").Return(done, nil).Times(2)
	gomock.InOrder(
		m.archive.EXPECT().Fetch(gomock.Any(), "job-2").Return(nil, errors.New("dial tcp: connection refused")),
		m.archive.EXPECT().Fetch(gomock.Any(), "job-2").Return(nil, nil),
	)
	m.broker.EXPECT().Restore("job-2", nil)
	m.broker.EXPECT().Lines(gomock.Any(), "job-2").Return(nil, nil)

	// The first read fails, the next one retries the archive
	_, err := s.GetJobLogs(ctx, "job-2")
	assert.Equal(t, codes.Unavailable, status.Code(err))

	_, err = s.GetJobLogs(ctx, "job-2")
	require.NoError(t, err)
}

func TestRestore_WithoutStore(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	s := jobs.New(validator.New(), jobsmock.NewMockRegistry(ctrl), jobsmock.NewMockBroker(ctrl), nil)

	assert.NoError(t, s.Restore(t.Context()))
}
