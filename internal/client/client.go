// Package client talks to the provisioning server over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/eapache/go-resiliency/breaker"
	"github.com/eapache/go-resiliency/retrier"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	jobsmodel "github.com/hitesh22rana/provisioner/internal/model/jobs"
	"github.com/hitesh22rana/provisioner/internal/pkg/inventory"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// CircuitBreakerConfig contains circuit breaker configuration.
type CircuitBreakerConfig struct {
	ErrorThreshold   int           // Number of errors before opening
	SuccessThreshold int           // Number of successes needed to close
	Timeout          time.Duration // How long to stay open
}

// DefaultCircuitBreakerConfig returns default circuit breaker config.
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		ErrorThreshold:   10,               // Open after 10 errors
		SuccessThreshold: 2,                // Close after 2 successes
		Timeout:          30 * time.Second, // Stay open for 30s
	}
}

// RetryConfig contains the configuration for retry behavior.
// Only reads are retried.
type RetryConfig struct {
	// MaxRetries is the maximum number of retries for a single request.
	MaxRetries int
	// BackoffExponential is the base duration for exponential backoff.
	BackoffExponential time.Duration
	// RetryableCodes is a list of status codes that are retryable.
	RetryableCodes []codes.Code
}

// DefaultRetryConfig returns a default retry configuration.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:         3,
		BackoffExponential: 100 * time.Millisecond,
		RetryableCodes: []codes.Code{
			codes.Unavailable,
			codes.ResourceExhausted,
		},
	}
}

// Config represents the client configuration.
type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
	CircuitBreaker *CircuitBreakerConfig
	Retry          *RetryConfig
}

// Tool is a provisionable tool as listed by the server.
type Tool struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// Client is the HTTP client of the provisioning server.
type Client struct {
	baseURL string
	http    *http.Client
	stream  *http.Client
	cb      *breaker.Breaker
	retry   *retrier.Retrier
}

// New creates a new client.
func New(cfg *Config) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, status.Errorf(codes.InvalidArgument, "invalid server url: %q", cfg.BaseURL)
	}

	cbCfg := cfg.CircuitBreaker
	if cbCfg == nil {
		cbCfg = DefaultCircuitBreakerConfig()
	}

	retryCfg := cfg.Retry
	if retryCfg == nil {
		retryCfg = DefaultRetryConfig()
	}

	transport := otelhttp.NewTransport(http.DefaultTransport)

	return &Client{
		baseURL: strings.TrimSuffix(base.String(), "/"),
		http: &http.Client{
			Transport: transport,
			Timeout:   cfg.RequestTimeout,
		},
		// Log streams stay open for as long as the job runs
		stream: &http.Client{
			Transport: transport,
		},
		cb: breaker.New(
			cbCfg.ErrorThreshold,
			cbCfg.SuccessThreshold,
			cbCfg.Timeout,
		),
		retry: retrier.New(
			retrier.ExponentialBackoff(retryCfg.MaxRetries, retryCfg.BackoffExponential),
			retryableCodes(retryCfg.RetryableCodes),
		),
	}, nil
}

// ListTools returns the supported tools.
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	var tools []Tool
	if err := c.do(ctx, http.MethodGet, "/api/v1/tools", nil, &tools); err != nil {
		return nil, err
	}
	return tools, nil
}

// ListHosts returns the known target hosts.
func (c *Client) ListHosts(ctx context.Context) ([]inventory.Host, error) {
	var hosts []inventory.Host
	if err := c.do(ctx, http.MethodGet, "/api/v1/hosts", nil, &hosts); err != nil {
		return nil, err
	}
	return hosts, nil
}

// CreateJob requests the installation of tool on targetHost.
func (c *Client) CreateJob(ctx context.Context, tool, targetHost string) (*jobsmodel.Job, error) {
	var job jobsmodel.Job
	body := map[string]string{"targetHost": targetHost}
	if err := c.do(ctx, http.MethodPost, "/api/v1/tools/"+url.PathEscape(tool)+"/jobs", body, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// ListJobs returns the jobs, newest first, optionally filtered by status.
func (c *Client) ListJobs(ctx context.Context, jobStatus string) ([]*jobsmodel.Job, error) {
	path := "/api/v1/jobs"
	if jobStatus != "" {
		path += "?" + url.Values{"status": {jobStatus}}.Encode()
	}

	var jobs []*jobsmodel.Job
	if err := c.do(ctx, http.MethodGet, path, nil, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// GetJob returns the job.
func (c *Client) GetJob(ctx context.Context, jobID string) (*jobsmodel.Job, error) {
	var job jobsmodel.Job
	if err := c.do(ctx, http.MethodGet, "/api/v1/jobs/"+url.PathEscape(jobID), nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// DownloadLogs returns the full log of a finished job.
func (c *Client) DownloadLogs(ctx context.Context, jobID string) (string, error) {
	var raw string
	if err := c.do(ctx, http.MethodGet, "/api/v1/jobs/"+url.PathEscape(jobID)+"/logs/raw", nil, &raw); err != nil {
		return "", err
	}
	return raw, nil
}

// do sends the request through the circuit breaker, retrying reads.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	call := func(ctx context.Context) error {
		var reqErr error

		cbErr := c.cb.Run(func() error {
			reqErr = c.roundTrip(ctx, method, path, body, out)
			if isCircuitBreakerError(reqErr) {
				return reqErr
			}
			return nil
		})

		// If breaker returned an error, prefer the request error if it exists.
		if cbErr != nil {
			if reqErr != nil {
				return reqErr
			}
			if errors.Is(cbErr, breaker.ErrBreakerOpen) {
				return jobsmodel.TransportError("server is unavailable, too many recent failures")
			}
			return cbErr
		}

		return reqErr
	}

	if method != http.MethodGet {
		return call(ctx)
	}

	return c.retry.RunCtx(ctx, call)
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return status.Errorf(codes.InvalidArgument, "failed to marshal request: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "failed to build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return errorFromResponse(resp)
	}

	if raw, ok := out.(*string); ok {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return transportError(ctx, err)
		}
		*raw = string(data)
		return nil
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return status.Errorf(codes.Internal, "failed to decode response: %v", err)
	}

	return nil
}

// transportError reports a failed exchange, telling the caller's own cancellation apart.
func transportError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return status.FromContextError(ctx.Err()).Err()
	}
	return jobsmodel.TransportError("failed to reach server: %v", err)
}

// errorFromResponse maps an error response onto a status error carrying its message.
func errorFromResponse(resp *http.Response) error {
	//nolint:errcheck // a partial message is still useful
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(data))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	var code codes.Code
	switch resp.StatusCode {
	case http.StatusBadRequest:
		code = codes.InvalidArgument
	case http.StatusNotFound:
		code = codes.NotFound
	case http.StatusConflict:
		code = codes.AlreadyExists
	case http.StatusPreconditionFailed:
		code = codes.FailedPrecondition
	case http.StatusTooManyRequests:
		code = codes.ResourceExhausted
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		code = codes.Unavailable
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		code = codes.DeadlineExceeded
	case http.StatusNotImplemented, http.StatusMethodNotAllowed:
		code = codes.Unimplemented
	default:
		code = codes.Internal
	}

	return status.Error(code, msg)
}

// retryableCodes classifies errors for the retrier.
type retryableCodes []codes.Code

func (r retryableCodes) Classify(err error) retrier.Action {
	if err == nil {
		return retrier.Succeed
	}
	if slices.Contains(r, status.Code(err)) {
		return retrier.Retry
	}
	return retrier.Fail
}

// isCircuitBreakerError determines whether an error should be counted against the circuit
// breaker. Only treat server errors, timeouts and an unreachable server as circuit-breaker errors.
func isCircuitBreakerError(err error) bool {
	if err == nil {
		return false
	}

	//nolint:exhaustive // Only treating some codes as circuit-breaker errors
	switch status.Code(err) {
	case codes.DeadlineExceeded,
		codes.ResourceExhausted,
		codes.Internal,
		codes.Unavailable:
		return true
	case codes.Unknown:
		// Network-level timeouts (net.Error)
		var ne net.Error
		return errors.As(err, &ne) && ne.Timeout()
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (t Tool) String() string {
	return fmt.Sprintf("%s (%s)", t.Name, t.Label)
}
