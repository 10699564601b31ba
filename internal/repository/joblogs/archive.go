package joblogs

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/eapache/go-resiliency/retrier"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	jobsmodel "github.com/hitesh22rana/provisioner/internal/model/jobs"
	"github.com/hitesh22rana/provisioner/internal/pkg/clickhouse"
	loggerpkg "github.com/hitesh22rana/provisioner/internal/pkg/logger"
	svcpkg "github.com/hitesh22rana/provisioner/internal/pkg/svc"
)

// ClickHouse is the subset of the ClickHouse client used by the archive.
type ClickHouse interface {
	BatchInsert(ctx context.Context, query string, prepareFn func(batch driver.Batch) error) error
	Query(ctx context.Context, query string, args ...any) (driver.Rows, error)
}

// ArchiveConfig represents the archive configuration.
type ArchiveConfig struct {
	BatchSize     int
	BatchInterval time.Duration
	QueueSize     int
	MaxAttempts   int
	RetryBackoff  time.Duration
}

// Archive batches appended lines into ClickHouse and reads them back for finished jobs.
type Archive struct {
	tp      trace.Tracer
	cfg     *ArchiveConfig
	ch      ClickHouse
	queue   chan *jobsmodel.LogLine
	dropped metric.Int64Counter
}

// NewArchive creates a new ClickHouse log archive.
func NewArchive(cfg *ArchiveConfig, ch ClickHouse) *Archive {
	//nolint:errcheck // the global meter never fails to create instruments
	dropped, _ := otel.Meter(svcpkg.Info().GetName()).Int64Counter(
		"provisioner.joblogs.archive.dropped",
		metric.WithDescription("Number of log lines dropped because the archive queue was full."),
	)

	return &Archive{
		tp:      otel.Tracer(svcpkg.Info().GetName()),
		cfg:     cfg,
		ch:      ch,
		queue:   make(chan *jobsmodel.LogLine, cfg.QueueSize),
		dropped: dropped,
	}
}

// Enqueue queues the line for archiving; the line is dropped when the queue is full.
func (a *Archive) Enqueue(ctx context.Context, line *jobsmodel.LogLine) {
	select {
	case a.queue <- line:
	default:
		a.dropped.Add(ctx, 1)
		loggerpkg.FromContext(ctx).Warn("archive queue is full, dropping log line",
			zap.String("job_id", line.JobID),
			zap.Uint64("seq", line.Seq),
		)
	}
}

// Run flushes queued lines whenever a batch fills up or the batch interval elapses.
// Queued lines are flushed one last time when ctx is canceled.
func (a *Archive) Run(ctx context.Context) error {
	logger := loggerpkg.FromContext(ctx)

	ticker := time.NewTicker(a.cfg.BatchInterval)
	defer ticker.Stop()

	batch := make([]*jobsmodel.LogLine, 0, a.cfg.BatchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := a.flush(ctx, batch); err != nil {
			logger.Error("failed to archive log lines",
				zap.Int("batch_size", len(batch)),
				zap.Error(err),
			)
		}
		batch = make([]*jobsmodel.LogLine, 0, a.cfg.BatchSize)
	}

	for {
		select {
		case <-ctx.Done():
		drain:
			for {
				select {
				case line := <-a.queue:
					batch = append(batch, line)
				default:
					break drain
				}
			}
			flush(context.WithoutCancel(ctx))
			return nil

		case line := <-a.queue:
			batch = append(batch, line)
			if len(batch) >= a.cfg.BatchSize {
				flush(ctx)
			}

		case <-ticker.C:
			flush(ctx)
		}
	}
}

// flush inserts the batch, retrying transient failures.
func (a *Archive) flush(ctx context.Context, batch []*jobsmodel.LogLine) (err error) {
	ctx, span := a.tp.Start(ctx, "Archive.flush", trace.WithAttributes(attribute.Int("batch_size", len(batch))))
	defer func() {
		if err != nil {
			span.SetStatus(otelcodes.Error, err.Error())
			span.RecordError(err)
		}
		span.End()
	}()

	r := retrier.New(retrier.ExponentialBackoff(a.cfg.MaxAttempts, a.cfg.RetryBackoff), retryClassifier{})
	err = r.RunCtx(ctx, func(ctx context.Context) error {
		return a.insert(ctx, batch)
	})

	return err
}

func (a *Archive) insert(ctx context.Context, batch []*jobsmodel.LogLine) error {
	stmt := fmt.Sprintf(`
		INSERT INTO %s
		(job_id, seq, timestamp, text)
		VALUES (?, ?, ?, ?);
	`, clickhouse.TableJobLogs)

	return a.ch.BatchInsert(ctx, stmt, func(b driver.Batch) error {
		for _, line := range batch {
			if err := b.Append(line.JobID, line.Seq, line.Timestamp, line.Text); err != nil {
				return err
			}
		}
		return nil
	})
}

// Fetch returns the archived lines of the job in sequence order.
func (a *Archive) Fetch(ctx context.Context, jobID string) (lines []*jobsmodel.LogLine, err error) {
	ctx, span := a.tp.Start(ctx, "Archive.Fetch", trace.WithAttributes(attribute.String("job_id", jobID)))
	defer func() {
		if err != nil {
			span.SetStatus(otelcodes.Error, err.Error())
			span.RecordError(err)
		}
		span.End()
	}()

	rows, err := a.ch.Query(ctx, fmt.Sprintf(`
		SELECT job_id, seq, timestamp, text
		FROM %s
		WHERE job_id = ?
		ORDER BY seq
		LIMIT 1 BY seq;
	`, clickhouse.TableJobLogs), jobID)
	if err != nil {
		err = status.Errorf(codes.Unavailable, "failed to query archived logs: %v", err)
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		line := &jobsmodel.LogLine{}
		if err = rows.Scan(&line.JobID, &line.Seq, &line.Timestamp, &line.Text); err != nil {
			err = status.Errorf(codes.Internal, "failed to scan archived log: %v", err)
			return nil, err
		}
		lines = append(lines, line)
	}

	if err = rows.Err(); err != nil {
		err = status.Errorf(codes.Internal, "failed to read archived logs: %v", err)
		return nil, err
	}

	return lines, nil
}

type retryClassifier struct{}

// Classify does not retry errors a second attempt cannot fix.
func (retryClassifier) Classify(err error) retrier.Action {
	if err == nil {
		return retrier.Succeed
	}

	switch status.Code(err) {
	case codes.InvalidArgument, codes.FailedPrecondition, codes.Canceled:
		return retrier.Fail
	default:
		return retrier.Retry
	}
}
