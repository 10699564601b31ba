//go:generate mockgen -source=$GOFILE -package=$GOPACKAGE -destination=./mock/$GOFILE

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	jobsmodel "github.com/hitesh22rana/provisioner/internal/model/jobs"
	"github.com/hitesh22rana/provisioner/internal/pkg/inventory"
	loggerpkg "github.com/hitesh22rana/provisioner/internal/pkg/logger"
	svcpkg "github.com/hitesh22rana/provisioner/internal/pkg/svc"
	"github.com/hitesh22rana/provisioner/internal/repository/joblogs"
)

const (
	defaultShutdownTimeout = 10 * time.Second
	defaultSSEKeepAlive    = 15 * time.Second
)

// JobsService reads jobs and their logs.
type JobsService interface {
	GetJob(ctx context.Context, jobID string) (*jobsmodel.Job, error)
	ListJobs(ctx context.Context, jobStatus string) ([]*jobsmodel.Job, error)
	StreamJobLogs(ctx context.Context, jobID string) (*joblogs.Subscription, error)
	GetJobLogs(ctx context.Context, jobID string) ([]*jobsmodel.LogLine, error)
}

// Dispatcher creates jobs and starts their runner.
type Dispatcher interface {
	Submit(ctx context.Context, tool, targetHost string) (*jobsmodel.Job, error)
}

// Hosts lists the known target hosts.
type Hosts interface {
	List() []inventory.Host
}

// Config represents the configuration of the HTTP server.
type Config struct {
	Host              string
	Port              int
	RequestTimeout    time.Duration
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	RequestBodyLimit  int64
	CORSOrigin        string
	SSEKeepAlive      time.Duration
}

// Server implements the HTTP server.
type Server struct {
	tp         trace.Tracer
	logger     *zap.Logger
	cfg        *Config
	jobs       JobsService
	dispatcher Dispatcher
	hosts      Hosts
	httpServer *http.Server
}

// New creates a new HTTP server.
func New(ctx context.Context, cfg *Config, jobs JobsService, dispatcher Dispatcher, hosts Hosts) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	if cfg.SSEKeepAlive <= 0 {
		cfg.SSEKeepAlive = defaultSSEKeepAlive
	}

	srv := &Server{
		tp:         otel.Tracer(svcpkg.Info().GetName()),
		logger:     loggerpkg.FromContext(ctx),
		cfg:        cfg,
		jobs:       jobs,
		dispatcher: dispatcher,
		hosts:      hosts,
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
		},
	}

	router := http.NewServeMux()
	srv.registerRoutes(router)
	srv.httpServer.Handler = chain(router,
		srv.withRequestID,
		srv.withTracing,
		srv.withCORS,
		srv.withCompression,
	)

	return srv
}

// Handler returns the root HTTP handler, middlewares included.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// registerRoutes registers the HTTP routes.
func (s *Server) registerRoutes(router *http.ServeMux) {
	routes := []route{
		{pattern: "/healthz", method: http.MethodGet, handler: s.handleHealthz},
		{pattern: "/api/v1/tools", method: http.MethodGet, handler: s.handleListTools},
		{pattern: "/api/v1/hosts", method: http.MethodGet, handler: s.handleListHosts},
		{pattern: "/api/v1/tools/{tool}/jobs", method: http.MethodPost, handler: s.handleCreateJob, bounded: true},
		{pattern: "/api/v1/jobs", method: http.MethodGet, handler: s.handleListJobs, bounded: true},
		{pattern: "/api/v1/jobs/{id}", method: http.MethodGet, handler: s.handleGetJob, bounded: true},
		// Streams stay open until the job ends or the client leaves
		{pattern: "/api/v1/jobs/{id}/logs", method: http.MethodGet, handler: s.handleStreamJobLogs},
		{pattern: "/api/v1/jobs/{id}/logs/raw", method: http.MethodGet, handler: s.handleDownloadJobLogs},
	}

	for _, rt := range routes {
		router.Handle(rt.pattern, s.handle(rt))
	}
}

// Start serves HTTP until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("server shutdown failed", zap.Error(err))
		return err
	}

	s.logger.Info("server gracefully stopped")
	return nil
}
