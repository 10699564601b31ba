package heartbeat_test

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hitesh22rana/provisioner/internal/pkg/kind/heartbeat"
)

func TestHeartBeat_Check(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name               string
		timeout            time.Duration
		endpoint           string
		expectedStatusCode int
		header             http.Header
		code               codes.Code
		setup              func(t *testing.T) *httptest.Server
	}{
		{
			name:               "success",
			timeout:            30 * time.Second,
			expectedStatusCode: http.StatusOK,
			header:             http.Header{"Accept": {"application/json", "text/plain"}},
			setup: func(t *testing.T) *httptest.Server {
				return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					assert.Equal(t, []string{"application/json", "text/plain"}, r.Header["Accept"])
					w.WriteHeader(http.StatusOK)
				}))
			},
		},
		{
			name:               "success: redirect to login page",
			timeout:            30 * time.Second,
			expectedStatusCode: http.StatusOK,
			setup: func(_ *testing.T) *httptest.Server {
				mux := http.NewServeMux()
				mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
					http.Redirect(w, r, "/login", http.StatusFound)
				})
				mux.HandleFunc("/login", func(w http.ResponseWriter, _ *http.Request) {
					w.WriteHeader(http.StatusOK)
				})
				return httptest.NewServer(mux)
			},
		},
		{
			name:               "error: unexpected status code",
			timeout:            30 * time.Second,
			expectedStatusCode: http.StatusOK,
			code:               codes.FailedPrecondition,
			setup: func(_ *testing.T) *httptest.Server {
				return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
					w.WriteHeader(http.StatusServiceUnavailable)
				}))
			},
		},
		{
			name:               "error: invalid endpoint",
			timeout:            30 * time.Second,
			endpoint:           "://invalid-url",
			expectedStatusCode: http.StatusOK,
			code:               codes.InvalidArgument,
		},
		{
			name:               "error: timeout",
			timeout:            time.Millisecond,
			expectedStatusCode: http.StatusOK,
			code:               codes.Unavailable,
			setup: func(_ *testing.T) *httptest.Server {
				return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
					time.Sleep(50 * time.Millisecond)
					w.WriteHeader(http.StatusOK)
				}))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			endpoint := tt.endpoint
			if tt.setup != nil {
				server := tt.setup(t)
				defer server.Close()
				if endpoint == "" {
					endpoint = server.URL
				}
			}

			err := heartbeat.New().Check(t.Context(), &heartbeat.Probe{
				Endpoint: endpoint,
				Status:   tt.expectedStatusCode,
				Timeout:  tt.timeout,
				Header:   tt.header,
			})
			assert.Equal(t, tt.code, status.Code(err))
		})
	}
}

func TestHeartBeat_WaitReady(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		readyAt   int32
		attempts  int
		wantCalls int32
		code      codes.Code
	}{
		{name: "success: ready at once", readyAt: 1, attempts: 5, wantCalls: 1},
		{name: "success: ready after booting", readyAt: 3, attempts: 5, wantCalls: 3},
		{name: "error: never ready", readyAt: 100, attempts: 3, wantCalls: 3, code: codes.FailedPrecondition},
		{name: "success: zero attempts still probes once", readyAt: 1, attempts: 0, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				if calls.Add(1) < tt.readyAt {
					w.WriteHeader(http.StatusServiceUnavailable)
					return
				}
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			err := heartbeat.New().WaitReady(t.Context(), tt.attempts, time.Millisecond, &heartbeat.Probe{
				Endpoint: server.URL,
				Status:   http.StatusOK,
				Timeout:  time.Second,
			})
			assert.Equal(t, tt.code, status.Code(err))
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}
