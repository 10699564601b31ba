//go:generate mockgen -source=$GOFILE -package=$GOPACKAGE -destination=./mock/$GOFILE

// Package clientsync keeps a client-side view of the jobs and of one followed log in step with the server.
package clientsync

import (
	"context"
	"slices"
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hitesh22rana/provisioner/internal/client"
	jobsmodel "github.com/hitesh22rana/provisioner/internal/model/jobs"
)

// StreamState is the state of the followed log.
type StreamState string

// StreamStates of the followed log.
const (
	StreamStateIdle       StreamState = "idle"
	StreamStateConnecting StreamState = "connecting"
	StreamStateStreaming  StreamState = "streaming"
	StreamStateCompleted  StreamState = "completed"
	StreamStateStalled    StreamState = "stalled"
)

// Client is the server API used by the layer.
type Client interface {
	ListJobs(ctx context.Context, jobStatus string) ([]*jobsmodel.Job, error)
	CreateJob(ctx context.Context, tool, targetHost string) (*jobsmodel.Job, error)
	StreamLogs(ctx context.Context, jobID string, h client.StreamHandler) (jobsmodel.JobStatus, error)
}

// Snapshot is a consistent copy of the view.
type Snapshot struct {
	Jobs          []*jobsmodel.Job
	SelectedJobID string
	Lines         []jobsmodel.LogLine
	State         StreamState
	FinalStatus   jobsmodel.JobStatus
	Err           error
}

// Layer holds the view. It is safe for concurrent use.
type Layer struct {
	client Client

	mu         sync.Mutex
	jobs       []*jobsmodel.Job
	selected   string
	lines      []jobsmodel.LogLine
	state      StreamState
	final      jobsmodel.JobStatus
	lastErr    error
	generation uint64
	cancel     context.CancelFunc
	listeners  []func()
}

// New creates a new layer with an empty view.
func New(c Client) *Layer {
	return &Layer{
		client: c,
		state:  StreamStateIdle,
	}
}

// OnChange registers fn to be called after every change of the view.
// fn runs on the goroutine that made the change and must not block.
func (l *Layer) OnChange(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.listeners = append(l.listeners, fn)
}

// RefreshList fetches the full job list and swaps it in.
// On failure the previous list is kept.
func (l *Layer) RefreshList(ctx context.Context) error {
	jobs, err := l.client.ListJobs(ctx, "")

	l.mu.Lock()
	if err != nil {
		l.lastErr = err
	} else {
		l.jobs = jobs
	}
	l.mu.Unlock()

	l.notify()
	return err
}

// CreateJob creates a job and refreshes the list.
func (l *Layer) CreateJob(ctx context.Context, tool, targetHost string) (*jobsmodel.Job, error) {
	job, err := l.client.CreateJob(ctx, tool, targetHost)
	if err != nil {
		l.mu.Lock()
		l.lastErr = err
		l.mu.Unlock()
		l.notify()
		return nil, err
	}

	return job, l.RefreshList(ctx)
}

// AttachToJob follows the job's log, replacing any followed log.
// The subscription lives until Detach, another AttachToJob, the end of the log or ctx is done.
func (l *Layer) AttachToJob(ctx context.Context, jobID string) {
	streamCtx, cancel := context.WithCancel(ctx)

	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	l.generation++
	gen := l.generation
	l.cancel = cancel
	l.selected = jobID
	l.lines = nil
	l.state = StreamStateConnecting
	l.final = ""
	l.lastErr = nil
	l.mu.Unlock()

	l.notify()

	go l.follow(streamCtx, cancel, gen, jobID)
}

// Detach stops following the log. It is safe to call more than once.
func (l *Layer) Detach() {
	l.mu.Lock()
	if l.cancel == nil && l.selected == "" {
		l.mu.Unlock()
		return
	}
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.generation++
	l.selected = ""
	l.lines = nil
	l.state = StreamStateIdle
	l.final = ""
	l.mu.Unlock()

	l.notify()
}

// Snapshot returns a copy of the view.
func (l *Layer) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	jobs := make([]*jobsmodel.Job, len(l.jobs))
	for i, job := range l.jobs {
		jobs[i] = job.Clone()
	}

	return Snapshot{
		Jobs:          jobs,
		SelectedJobID: l.selected,
		Lines:         slices.Clone(l.lines),
		State:         l.state,
		FinalStatus:   l.final,
		Err:           l.lastErr,
	}
}

// follow streams the job's log into the view. The stream context is released once the
// stream ends, however it ends.
func (l *Layer) follow(ctx context.Context, cancel context.CancelFunc, gen uint64, jobID string) {
	defer cancel()

	jobStatus, err := l.client.StreamLogs(ctx, jobID, client.StreamHandler{
		Connected: func() {
			l.update(gen, func() {
				l.state = StreamStateStreaming
			})
		},
		Line: func(line jobsmodel.LogLine) {
			l.update(gen, func() {
				l.lines = append(l.lines, line)
			})
		},
	})

	l.update(gen, func() {
		l.cancel = nil

		switch {
		case err == nil:
			l.state = StreamStateCompleted
			l.final = jobStatus
			for _, job := range l.jobs {
				if job.ID == jobID {
					job.Status = jobStatus
				}
			}
		case status.Code(err) == codes.Canceled:
			l.state = StreamStateIdle
		case jobsmodel.IsTransport(err):
			l.state = StreamStateStalled
			l.lastErr = err
		default:
			l.state = StreamStateIdle
			l.lastErr = err
		}
	})
}

// update applies fn unless the view moved on to another subscription.
func (l *Layer) update(gen uint64, fn func()) {
	l.mu.Lock()
	if gen != l.generation {
		l.mu.Unlock()
		return
	}
	fn()
	l.mu.Unlock()

	l.notify()
}

func (l *Layer) notify() {
	l.mu.Lock()
	listeners := slices.Clone(l.listeners)
	l.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}
