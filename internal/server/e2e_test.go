package server_test

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobsmodel "github.com/hitesh22rana/provisioner/internal/model/jobs"
	"github.com/hitesh22rana/provisioner/internal/pkg/inventory"
	"github.com/hitesh22rana/provisioner/internal/pkg/recipe"
	"github.com/hitesh22rana/provisioner/internal/repository/executor"
	"github.com/hitesh22rana/provisioner/internal/repository/joblogs"
	jobsrepo "github.com/hitesh22rana/provisioner/internal/repository/jobs"
	"github.com/hitesh22rana/provisioner/internal/server"
	"github.com/hitesh22rana/provisioner/internal/service/dispatcher"
	"github.com/hitesh22rana/provisioner/internal/service/jobs"
)

type sseEvent struct {
	id    string
	event string
	data  string
}

// readEvents reads the stream until it ends.
func readEvents(t *testing.T, resp *http.Response) []sseEvent {
	t.Helper()

	var (
		events []sseEvent
		cur    sseEvent
		data   []string
	)

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data != nil || cur.event != "" {
				cur.data = strings.Join(data, "\n")
				events = append(events, cur)
			}
			cur, data = sseEvent{}, nil
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "id: "):
			cur.id = strings.TrimPrefix(line, "id: ")
		case strings.HasPrefix(line, "event: "):
			cur.event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = append(data, strings.TrimPrefix(line, "data: "))
		}
	}
	require.NoError(t, scanner.Err())

	return events
}

func newStack(t *testing.T) *httptest.Server {
	t.Helper()

	hosts, err := inventory.New([]string{"ci-vm-01", "ci-vm-02"}, "")
	require.NoError(t, err)

	book, err := recipe.Load("")
	require.NoError(t, err)

	registry := jobsrepo.New(&jobsrepo.Config{}, hosts)
	broker := joblogs.New(&joblogs.Config{SubscriberBuffer: 64})
	svc := jobs.New(validator.New(), registry, broker, nil)

	runner, err := executor.New(&executor.Config{
		Kind:               executor.KindSimulated,
		SimulatedStepDelay: 20 * time.Millisecond,
		SimulatedFailHosts: []string{"ci-vm-02"},
	}, book, hosts, nil)
	require.NoError(t, err)

	d := dispatcher.New(&dispatcher.Config{
		MaxConcurrentRunners:    4,
		StartTimeout:            time.Second,
		BreakerErrorThreshold:   5,
		BreakerSuccessThreshold: 1,
		BreakerTimeout:          time.Second,
	}, svc, runner)

	srv := server.New(t.Context(), &server.Config{
		RequestTimeout:   5 * time.Second,
		RequestBodyLimit: 1 << 10,
		CORSOrigin:       "*",
		SSEKeepAlive:     10 * time.Millisecond,
	}, svc, d, hosts)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		d.Wait()
	})

	return ts
}

func createJob(t *testing.T, baseURL, tool, host string) *jobsmodel.Job {
	t.Helper()

	resp, err := http.Post(baseURL+"/api/v1/tools/"+tool+"/jobs", "application/json",
		strings.NewReader(`{"targetHost":"`+host+`"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var j jobsmodel.Job
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&j))
	return &j
}

func TestEndToEnd(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		host       string
		wantStatus string
		wantFirst  string
		wantLast   string
	}{
		{
			name:       "success",
			host:       "ci-vm-01",
			wantStatus: "SUCCESS",
			wantFirst:  "Connecting to ci-vm-01",
		},
		{
			name:       "failure",
			host:       "ci-vm-02",
			wantStatus: "FAILED",
			wantFirst:  "Connecting to ci-vm-02",
			wantLast:   "failed on ci-vm-02",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ts := newStack(t)
			j := createJob(t, ts.URL, "jenkins", tt.host)
			assert.Equal(t, jobsmodel.JobStatusPending, j.Status)

			req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, ts.URL+"/api/v1/jobs/"+j.ID+"/logs", http.NoBody)
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, http.StatusOK, resp.StatusCode)

			events := readEvents(t, resp)
			require.GreaterOrEqual(t, len(events), 3)
			assert.Equal(t, "connected", events[0].event)

			end := events[len(events)-1]
			assert.Equal(t, sseEvent{event: "end", data: tt.wantStatus}, end)

			lines := events[1 : len(events)-1]
			assert.Equal(t, tt.wantFirst, lines[0].data)
			for i, e := range lines {
				// Sequence numbers are gapless and start at one
				assert.Equal(t, strconv.Itoa(i+1), e.id)
			}
			if tt.wantLast != "" {
				assert.Contains(t, lines[len(lines)-1].data, tt.wantLast)
			}

			// A late subscriber replays the same log and ends the same way
			late, err := http.Get(ts.URL + "/api/v1/jobs/" + j.ID + "/logs")
			require.NoError(t, err)
			defer late.Body.Close()
			assert.Equal(t, events, readEvents(t, late))

			got, err := http.Get(ts.URL + "/api/v1/jobs/" + j.ID)
			require.NoError(t, err)
			defer got.Body.Close()
			var final jobsmodel.Job
			require.NoError(t, json.NewDecoder(got.Body).Decode(&final))
			assert.Equal(t, tt.wantStatus, final.Status.ToString())
		})
	}
}

func TestEndToEnd_UnknownJob(t *testing.T) {
	t.Parallel()

	ts := newStack(t)

	resp, err := http.Get(ts.URL + "/api/v1/jobs/missing/logs")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	create, err := http.Post(ts.URL+"/api/v1/tools/jenkins/jobs", "application/json",
		strings.NewReader(`{"targetHost":"prod-db-01"}`))
	require.NoError(t, err)
	defer create.Body.Close()
	assert.Equal(t, http.StatusBadRequest, create.StatusCode)
}
