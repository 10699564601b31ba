package svc

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	loggerpkg "github.com/hitesh22rana/provisioner/internal/pkg/logger"
	otelpkg "github.com/hitesh22rana/provisioner/internal/pkg/otel"
)

const shutdownTimeout = 5 * time.Second

// Svc contains the service information.
type Svc struct {
	// Version is the service version.
	Version string

	// Name is the name of the service.
	Name string
}

// Svc represents the service.
var svc Svc

// GetVersion returns the service version.
func (s Svc) GetVersion() string {
	return s.Version
}

// GetName returns the service name.
func (s Svc) GetName() string {
	return s.Name
}

// SetVersion sets the service version.
func SetVersion(version string) {
	if svc.Version != "" {
		return
	}
	svc.Version = version
}

// SetName sets the service name.
func SetName(name string) {
	if svc.Name != "" {
		return
	}
	svc.Name = name
}

// Info returns the service information.
func Info() Svc {
	return svc
}

// bootstrap holds the process level settings read before the service configuration.
type bootstrap struct {
	Env         string `envconfig:"ENV" default:"production"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	OtelEnabled bool   `envconfig:"OTEL_ENABLED" default:"false"`

	OtelSampleRatio    float64       `envconfig:"OTEL_SAMPLE_RATIO" default:"1"`
	OtelMetricInterval time.Duration `envconfig:"OTEL_METRIC_INTERVAL" default:"30s"`
}

// Init initializes the service with, a signal aware context, telemetry providers and the logger.
// The returned cancel function flushes the telemetry providers.
func Init() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	var b bootstrap
	if err := envconfig.Process("", &b); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load bootstrap configuration: %v\n", err)
	}

	var providers *otelpkg.Providers
	if b.OtelEnabled {
		var err error
		providers, err = otelpkg.Init(ctx, &otelpkg.Config{
			ServiceName:    svc.Name,
			ServiceVersion: svc.Version,
			SampleRatio:    b.OtelSampleRatio,
			MetricInterval: b.OtelMetricInterval,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to initialize telemetry, continuing without it: %v\n", err)
		}
	}

	lcfg := &loggerpkg.Config{
		Level:       b.LogLevel,
		Development: b.Env == "development",
	}

	var lp *sdklog.LoggerProvider
	if providers != nil {
		lp = providers.LoggerProvider
	}
	ctx, logger := loggerpkg.Init(ctx, svc.Name, lp, lcfg)

	return ctx, func() {
		stop()

		//nolint:errcheck // stdout sync errors are expected on some platforms
		logger.Sync()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "failed to shutdown telemetry: %v\n", err)
		}
	}
}
