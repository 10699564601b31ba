package joblogs

import (
	"sync"
	"sync/atomic"

	jobsmodel "github.com/hitesh22rana/provisioner/internal/model/jobs"
)

// EndReason tells why a subscription's live feed ended.
type EndReason int32

const (
	// EndReasonNone means the live feed is still open.
	EndReasonNone EndReason = iota
	// EndReasonCompleted means the job finished and every line was delivered.
	EndReasonCompleted
	// EndReasonCanceled means the subscriber detached.
	EndReasonCanceled
	// EndReasonOverflow means the subscriber fell too far behind and was disconnected.
	EndReasonOverflow
)

// ToString returns the string representation of the reason.
func (r EndReason) ToString() string {
	switch r {
	case EndReasonCompleted:
		return "completed"
	case EndReasonCanceled:
		return "canceled"
	case EndReasonOverflow:
		return "overflow"
	default:
		return "none"
	}
}

// Subscription is one reader of a job's log stream.
type Subscription struct {
	id     uint64
	replay []jobsmodel.LogLine
	ch     chan jobsmodel.LogLine
	detach func()

	once   sync.Once
	reason atomic.Int32
}

// ID returns the subscriber id.
func (s *Subscription) ID() uint64 {
	return s.id
}

// Replay returns the lines appended before the subscription was made.
func (s *Subscription) Replay() []jobsmodel.LogLine {
	return s.replay
}

// Live returns the feed of lines appended after the replay.
// The channel is closed when the feed ends, see Reason.
func (s *Subscription) Live() <-chan jobsmodel.LogLine {
	return s.ch
}

// Reason returns why the live feed ended, EndReasonNone while it is open.
func (s *Subscription) Reason() EndReason {
	return EndReason(s.reason.Load())
}

// Cancel detaches the subscription and discards undelivered lines.
// It is safe to call more than once.
func (s *Subscription) Cancel() {
	if s.detach != nil {
		s.detach()
	}

	//nolint:revive // draining
	for range s.ch {
	}
}

// end closes the live feed; callers hold the stream lock.
func (s *Subscription) end(reason EndReason) {
	s.once.Do(func() {
		s.reason.Store(int32(reason))
		close(s.ch)
	})
}
