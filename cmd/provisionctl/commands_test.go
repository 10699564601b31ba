package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	jobsmodel "github.com/hitesh22rana/provisioner/internal/model/jobs"
)

func execute(t *testing.T, h http.Handler, args ...string) (string, error) {
	t.Helper()

	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--server", ts.URL}, args...))

	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func TestListCmd(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	out, err := execute(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/jobs", r.URL.Path)
		assert.Equal(t, "RUNNING", r.URL.Query().Get("status"))
		w.Header().Set("Content-Type", "application/json")
		//nolint:errcheck // test server
		json.NewEncoder(w).Encode([]*jobsmodel.Job{{
			ID:         "job-1",
			Tool:       jobsmodel.ToolNexus,
			TargetHost: "ci-vm-01",
			Status:     jobsmodel.JobStatusRunning,
			CreatedAt:  ts,
			UpdatedAt:  ts,
		}})
	}), "list", "--status", "RUNNING")
	require.NoError(t, err)

	assert.Contains(t, out, "job-1")
	assert.Contains(t, out, "nexus")
	assert.Contains(t, out, "RUNNING")
}

func TestCreateCmd(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		code     int
		body     string
		want     string
		wantCode codes.Code
	}{
		{
			name: "success",
			code: http.StatusCreated,
			body: `{"id":"job-1","tool":"jenkins","targetHost":"ci-vm-01","status":"PENDING"}`,
			want: "job-1 PENDING",
		},
		{
			name:     "error: unknown host",
			code:     http.StatusBadRequest,
			body:     "unknown target host: \"ci-vm-09\"\n",
			wantCode: codes.InvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			out, err := execute(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/api/v1/tools/jenkins/jobs", r.URL.Path)
				w.WriteHeader(tt.code)
				fmt.Fprint(w, tt.body)
			}), "create", "jenkins", "ci-vm-01")

			if tt.wantCode != codes.OK {
				assert.Equal(t, tt.wantCode, status.Code(err))
				return
			}
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestLogsCmd_Follow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		final    string
		wantCode codes.Code
	}{
		{name: "success", final: "SUCCESS"},
		{name: "error: job failed", final: "FAILED", wantCode: codes.Aborted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			out, err := execute(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/v1/jobs/job-1/logs", r.URL.Path)
				w.Header().Set("Content-Type", "text/event-stream")
				fmt.Fprint(w, "event: connected\ndata: {\"status\":\"connected\"}\n\n")
				fmt.Fprint(w, "id: 1\ndata: Installing Jenkins\n\n")
				fmt.Fprintf(w, "event: end\ndata: %s\n\n", tt.final)
			}), "logs", "job-1", "--follow")

			assert.Contains(t, out, "Installing Jenkins")
			assert.Contains(t, out, tt.final)
			assert.Equal(t, tt.wantCode, status.Code(err))
		})
	}
}
