package joblogs

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	jobsmodel "github.com/hitesh22rana/provisioner/internal/model/jobs"
	loggerpkg "github.com/hitesh22rana/provisioner/internal/pkg/logger"
	svcpkg "github.com/hitesh22rana/provisioner/internal/pkg/svc"
)

const defaultSubscriberBuffer = 256

// Sink receives every appended line, in order, for every job.
// Implementations must not block.
type Sink interface {
	Enqueue(ctx context.Context, line *jobsmodel.LogLine)
}

// Config represents the broker configuration.
type Config struct {
	// SubscriberBuffer is the per-subscriber live queue capacity.
	SubscriberBuffer int
	// Now returns the current time, defaults to time.Now.
	Now func() time.Time
}

type stream struct {
	mu     sync.Mutex
	lines  []*jobsmodel.LogLine
	closed bool
	subs   map[uint64]*Subscription
}

// Repository is the per-job log stream broker.
// Each job owns an append-only sequence of lines fanned out to any number of subscribers.
type Repository struct {
	buffer int
	now    func() time.Time
	sinks  []Sink

	appended   metric.Int64Counter
	overflowed metric.Int64Counter
	active     metric.Int64UpDownCounter

	mu      sync.RWMutex
	streams map[string]*stream
	nextSub atomic.Uint64
}

// New creates a new log stream broker.
func New(cfg *Config, sinks ...Sink) *Repository {
	meter := otel.Meter(svcpkg.Info().GetName())

	//nolint:errcheck // the global meter never fails to create instruments
	appended, _ := meter.Int64Counter(
		"provisioner.joblogs.lines.appended",
		metric.WithDescription("Number of log lines appended to job streams."),
	)
	//nolint:errcheck // the global meter never fails to create instruments
	overflowed, _ := meter.Int64Counter(
		"provisioner.joblogs.subscribers.overflowed",
		metric.WithDescription("Number of subscribers disconnected because their queue was full."),
	)
	//nolint:errcheck // the global meter never fails to create instruments
	active, _ := meter.Int64UpDownCounter(
		"provisioner.joblogs.subscribers.active",
		metric.WithDescription("Number of attached live subscribers."),
	)

	r := &Repository{
		buffer:     defaultSubscriberBuffer,
		now:        time.Now,
		sinks:      slices.DeleteFunc(slices.Clone(sinks), func(s Sink) bool { return s == nil }),
		appended:   appended,
		overflowed: overflowed,
		active:     active,
		streams:    make(map[string]*stream),
	}

	if cfg != nil {
		if cfg.SubscriberBuffer > 0 {
			r.buffer = cfg.SubscriberBuffer
		}
		if cfg.Now != nil {
			r.now = cfg.Now
		}
	}

	return r
}

func (r *Repository) get(jobID string) (*stream, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.streams[jobID]
	return s, ok
}

// Open creates the stream of the job; opening an existing stream is a no-op.
func (r *Repository) Open(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.streams[jobID]; !ok {
		r.streams[jobID] = &stream{subs: make(map[uint64]*Subscription)}
	}
}

// Restore seeds an already finished stream with archived lines.
// It is a no-op when the stream exists.
func (r *Repository) Restore(jobID string, lines []*jobsmodel.LogLine) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.streams[jobID]; ok {
		return
	}

	sorted := slices.Clone(lines)
	slices.SortFunc(sorted, func(a, b *jobsmodel.LogLine) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		default:
			return 0
		}
	})

	r.streams[jobID] = &stream{
		lines:  sorted,
		closed: true,
		subs:   make(map[uint64]*Subscription),
	}
}

// Append appends a line to the job's stream and fans it out to the live subscribers.
// A subscriber whose queue is full is disconnected with EndReasonOverflow.
func (r *Repository) Append(ctx context.Context, jobID, text string) (*jobsmodel.LogLine, error) {
	s, ok := r.get(jobID)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "log stream not found: %s", jobID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, status.Errorf(codes.FailedPrecondition, "log stream is closed: %s", jobID)
	}

	line := &jobsmodel.LogLine{
		JobID:     jobID,
		Seq:       uint64(len(s.lines)) + 1,
		Text:      text,
		Timestamp: r.now(),
	}
	s.lines = append(s.lines, line)

	for id, sub := range s.subs {
		select {
		case sub.ch <- *line:
		default:
			delete(s.subs, id)
			sub.end(EndReasonOverflow)
			r.overflowed.Add(ctx, 1)
			r.active.Add(ctx, -1)
			loggerpkg.FromContext(ctx).Warn("disconnecting slow log subscriber",
				zap.String("job_id", jobID),
				zap.Uint64("subscriber_id", id),
				zap.Uint64("seq", line.Seq),
			)
		}
	}

	for _, sink := range r.sinks {
		sink.Enqueue(ctx, line)
	}

	r.appended.Add(ctx, 1)

	return line, nil
}

// Close marks the job's stream finished and ends every live subscription
// once it has received all the lines. Closing twice is a no-op.
func (r *Repository) Close(ctx context.Context, jobID string) error {
	s, ok := r.get(jobID)
	if !ok {
		return status.Errorf(codes.NotFound, "log stream not found: %s", jobID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	for id, sub := range s.subs {
		delete(s.subs, id)
		sub.end(EndReasonCompleted)
		r.active.Add(ctx, -1)
	}

	return nil
}

// Subscribe attaches to the job's stream.
// The subscription replays every line appended so far and then delivers later lines live,
// with no gap nor duplicate in between. Subscribing to a closed stream yields the full
// replay and an already ended live feed.
func (r *Repository) Subscribe(ctx context.Context, jobID string) (*Subscription, error) {
	s, ok := r.get(jobID)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "log stream not found: %s", jobID)
	}

	id := r.nextSub.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()

	replay := make([]jobsmodel.LogLine, len(s.lines))
	for i, line := range s.lines {
		replay[i] = *line
	}

	sub := &Subscription{
		id:     id,
		replay: replay,
		ch:     make(chan jobsmodel.LogLine, r.buffer),
	}

	if s.closed {
		sub.end(EndReasonCompleted)
		return sub, nil
	}

	sub.detach = func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if _, ok := s.subs[id]; !ok {
			return
		}
		delete(s.subs, id)
		sub.end(EndReasonCanceled)
		r.active.Add(context.WithoutCancel(ctx), -1)
	}

	s.subs[id] = sub
	r.active.Add(ctx, 1)

	return sub, nil
}

// Lines returns a copy of every line of the job's stream.
func (r *Repository) Lines(_ context.Context, jobID string) ([]*jobsmodel.LogLine, error) {
	s, ok := r.get(jobID)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "log stream not found: %s", jobID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lines := make([]*jobsmodel.LogLine, len(s.lines))
	for i, line := range s.lines {
		l := *line
		lines[i] = &l
	}

	return lines, nil
}

// Closed reports whether the job's stream is finished.
func (r *Repository) Closed(jobID string) bool {
	s, ok := r.get(jobID)
	if !ok {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}
