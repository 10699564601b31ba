package otel

import (
	"context"
	"errors"
	"os"
	"time"

	hostmetrics "go.opentelemetry.io/contrib/instrumentation/host"
	runtimemetrics "go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const defaultMetricInterval = 30 * time.Second

// Config selects what the process exports and how often.
type Config struct {
	ServiceName    string
	ServiceVersion string
	// SampleRatio is the share of root traces kept, in [0, 1]. Zero keeps everything.
	SampleRatio float64
	// MetricInterval is the metric export period.
	MetricInterval time.Duration
}

// Providers bundles the telemetry providers of a process.
type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	LoggerProvider *sdklog.LoggerProvider

	shutdowns []func(context.Context) error
}

// Init builds the tracer, meter and logger providers, exporting over OTLP gRPC, and
// installs them globally. Anything built before a failure is shut down again.
func Init(ctx context.Context, cfg *Config) (p *Providers, err error) {
	res, err := Resource(ctx, cfg.ServiceName, cfg.ServiceVersion)
	if err != nil {
		return nil, err
	}

	p = &Providers{}
	defer func() {
		if err != nil {
			//nolint:errcheck // the build error is the one worth reporting
			p.Shutdown(ctx)
			p = nil
		}
	}()

	if p.TracerProvider, err = newTracerProvider(ctx, res, cfg.SampleRatio); err != nil {
		return p, err
	}
	p.shutdowns = append(p.shutdowns, p.TracerProvider.Shutdown)

	if p.MeterProvider, err = newMeterProvider(ctx, res, cfg.MetricInterval); err != nil {
		return p, err
	}
	p.shutdowns = append(p.shutdowns, p.MeterProvider.Shutdown)

	if p.LoggerProvider, err = newLoggerProvider(ctx, res); err != nil {
		return p, err
	}
	p.shutdowns = append(p.shutdowns, p.LoggerProvider.Shutdown)

	otel.SetTracerProvider(p.TracerProvider)
	otel.SetMeterProvider(p.MeterProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return p, nil
}

// Shutdown flushes and stops every provider, last built first.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}

	var errs []error
	for i := len(p.shutdowns) - 1; i >= 0; i-- {
		errs = append(errs, p.shutdowns[i](ctx))
	}
	p.shutdowns = nil

	return errors.Join(errs...)
}

// Resource describes the process: service identity, host, process and container.
func Resource(ctx context.Context, serviceName, serviceVersion string) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(serviceVersion),
	}
	if hostName, err := os.Hostname(); err == nil {
		attrs = append(attrs, semconv.HostName(hostName))
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithContainer(),
		resource.WithAttributes(attrs...),
	)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to create resource: %v", err)
	}

	return res, nil
}

func newTracerProvider(ctx context.Context, res *resource.Resource, ratio float64) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracegrpc.New(ctx)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to create OTLP trace exporter: %v", err)
	}

	sampler := sdktrace.AlwaysSample()
	if ratio > 0 && ratio < 1 {
		sampler = sdktrace.TraceIDRatioBased(ratio)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	), nil
}

func newMeterProvider(ctx context.Context, res *resource.Resource, interval time.Duration) (*sdkmetric.MeterProvider, error) {
	exporter, err := otlpmetricgrpc.New(ctx)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to create OTLP metric exporter: %v", err)
	}

	if interval <= 0 {
		interval = defaultMetricInterval
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)

	// Host and runtime metrics ride on the same provider
	if err := hostmetrics.Start(hostmetrics.WithMeterProvider(mp)); err != nil {
		//nolint:errcheck // the start error is the one worth reporting
		mp.Shutdown(ctx)
		return nil, status.Errorf(codes.Internal, "failed to start host metrics: %v", err)
	}
	if err := runtimemetrics.Start(runtimemetrics.WithMeterProvider(mp)); err != nil {
		//nolint:errcheck // the start error is the one worth reporting
		mp.Shutdown(ctx)
		return nil, status.Errorf(codes.Internal, "failed to start runtime metrics: %v", err)
	}

	return mp, nil
}

func newLoggerProvider(ctx context.Context, res *resource.Resource) (*sdklog.LoggerProvider, error) {
	exporter, err := otlploggrpc.New(ctx)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to create OTLP log exporter: %v", err)
	}

	return sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	), nil
}
