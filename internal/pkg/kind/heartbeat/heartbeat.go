package heartbeat

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/eapache/go-resiliency/retrier"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// maxDrain is how much of a probe response body is read so the connection can be reused.
const maxDrain = 4 << 10

// Probe is a single readiness request against a provisioned tool.
type Probe struct {
	Endpoint string
	// Status is the status code a ready tool answers with.
	Status  int
	Timeout time.Duration
	Header  http.Header
}

// HeartBeat probes the HTTP endpoint of a provisioned tool.
type HeartBeat struct {
	client *http.Client
}

// New creates a new HeartBeat.
func New() *HeartBeat {
	return &HeartBeat{
		client: &http.Client{},
	}
}

// Check sends the probe once. Redirects are followed, so a tool answering / with a
// redirect to its login page is judged by the login page.
func (h *HeartBeat) Check(ctx context.Context, p *Probe) error {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.Endpoint, http.NoBody)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "failed to create request: %v", err)
	}
	if p.Header != nil {
		req.Header = p.Header.Clone()
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return status.Errorf(codes.Unavailable, "failed to execute request: %v", err)
	}
	defer resp.Body.Close()
	//nolint:errcheck // draining is best effort
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))

	if resp.StatusCode != p.Status {
		return status.Errorf(codes.FailedPrecondition, "unexpected status code: got %d, want %d", resp.StatusCode, p.Status)
	}

	return nil
}

// WaitReady repeats the probe up to attempts times, interval apart, until it passes.
func (h *HeartBeat) WaitReady(ctx context.Context, attempts int, interval time.Duration, p *Probe) error {
	r := retrier.New(retrier.ConstantBackoff(max(attempts, 1)-1, interval), probeClassifier{})

	return r.RunCtx(ctx, func(ctx context.Context) error {
		return h.Check(ctx, p)
	})
}

type probeClassifier struct{}

// Classify gives up on malformed endpoints only; anything else may heal as the tool boots.
func (probeClassifier) Classify(err error) retrier.Action {
	switch {
	case err == nil:
		return retrier.Succeed
	case status.Code(err) == codes.InvalidArgument:
		return retrier.Fail
	default:
		return retrier.Retry
	}
}
