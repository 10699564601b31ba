package events

import (
	"context"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	jobsmodel "github.com/hitesh22rana/provisioner/internal/model/jobs"
	"github.com/hitesh22rana/provisioner/internal/pkg/kafka"
	loggerpkg "github.com/hitesh22rana/provisioner/internal/pkg/logger"
	"github.com/hitesh22rana/provisioner/internal/pkg/redis"
	svcpkg "github.com/hitesh22rana/provisioner/internal/pkg/svc"
)

const publishTimeout = 2 * time.Second

// Producer produces records asynchronously.
type Producer interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
}

// Publisher publishes payloads on a Pub/Sub channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Config represents the repository configuration.
type Config struct {
	// QueueSize bounds the log lines waiting to be published.
	QueueSize int
}

// Repository publishes job lifecycle events to Kafka and log lines to Redis.
// Either sink may be nil.
type Repository struct {
	tp      trace.Tracer
	kfk     Producer
	rdb     Publisher
	queue   chan *jobsmodel.LogLine
	dropped metric.Int64Counter
}

// New creates a new events repository.
func New(cfg *Config, kfk Producer, rdb Publisher) *Repository {
	//nolint:errcheck // the global meter never fails to create instruments
	dropped, _ := otel.Meter(svcpkg.Info().GetName()).Int64Counter(
		"provisioner.joblogs.publish.dropped",
		metric.WithDescription("Number of log lines not published because the queue was full."),
	)

	return &Repository{
		tp:      otel.Tracer(svcpkg.Info().GetName()),
		kfk:     kfk,
		rdb:     rdb,
		queue:   make(chan *jobsmodel.LogLine, cfg.QueueSize),
		dropped: dropped,
	}
}

// PublishJobEvent produces the job's current state to the provisioning jobs topic, keyed by job id.
func (r *Repository) PublishJobEvent(ctx context.Context, job *jobsmodel.Job) {
	if r.kfk == nil {
		return
	}

	logger := loggerpkg.FromContext(ctx)

	data, err := jobsmodel.NewJobEvent(job).Bytes()
	if err != nil {
		logger.Error("failed to marshal job event", zap.String("job_id", job.ID), zap.Error(err))
		return
	}

	record := &kgo.Record{
		Topic: kafka.TopicProvisioningJobs,
		Key:   []byte(job.ID),
		Value: data,
	}

	r.kfk.Produce(context.WithoutCancel(ctx), record, func(_ *kgo.Record, err error) {
		if err != nil {
			logger.Error("failed to produce job event",
				zap.String("job_id", job.ID),
				zap.String("status", job.Status.ToString()),
				zap.Error(err),
			)
		}
	})
}

// Enqueue queues the line for publishing; the line is dropped when the queue is full.
func (r *Repository) Enqueue(ctx context.Context, line *jobsmodel.LogLine) {
	if r.rdb == nil {
		return
	}

	select {
	case r.queue <- line:
	default:
		r.dropped.Add(ctx, 1)
		loggerpkg.FromContext(ctx).Warn("publish queue is full, dropping log line",
			zap.String("job_id", line.JobID),
			zap.Uint64("seq", line.Seq),
		)
	}
}

// Run publishes queued log lines on their job channel until ctx is canceled.
// Lines still queued at that point are published before returning.
func (r *Repository) Run(ctx context.Context) error {
	pctx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case line := <-r.queue:
					r.publishLogLine(pctx, line)
				default:
					return nil
				}
			}
		case line := <-r.queue:
			r.publishLogLine(pctx, line)
		}
	}
}

func (r *Repository) publishLogLine(ctx context.Context, line *jobsmodel.LogLine) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	ctx, span := r.tp.Start(ctx, "Repository.publishLogLine", trace.WithAttributes(
		attribute.String("job_id", line.JobID),
	))
	defer span.End()

	data, err := jobsmodel.NewJobLogEvent(line).Bytes()
	if err == nil {
		err = r.rdb.Publish(ctx, redis.JobLogsChannel(line.JobID), data)
	}

	if err != nil {
		span.SetStatus(otelcodes.Error, err.Error())
		span.RecordError(err)
		loggerpkg.FromContext(ctx).Warn("failed to publish log line",
			zap.String("job_id", line.JobID),
			zap.Uint64("seq", line.Seq),
			zap.Error(err),
		)
	}
}
