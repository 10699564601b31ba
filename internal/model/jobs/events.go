package jobs

import (
	"encoding/json"
	"time"
)

// JobEvent represents a lifecycle change of a job, published to the job events topic.
type JobEvent struct {
	JobID      string    `json:"job_id"`
	Tool       string    `json:"tool"`
	TargetHost string    `json:"target_host"`
	Status     string    `json:"status"`
	Message    string    `json:"message,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewJobEvent creates a new job event from the job.
func NewJobEvent(job *Job) *JobEvent {
	return &JobEvent{
		JobID:      job.ID,
		Tool:       job.Tool.ToString(),
		TargetHost: job.TargetHost,
		Status:     job.Status.ToString(),
		Message:    job.Message,
		CreatedAt:  job.CreatedAt,
		UpdatedAt:  job.UpdatedAt,
	}
}

// Bytes returns the JSON encoding of the event.
func (e *JobEvent) Bytes() ([]byte, error) {
	return json.Marshal(e)
}

// JobLogEvent represents a log line, published to the job-specific log channel.
type JobLogEvent struct {
	JobID       string    `json:"job_id"`
	Message     string    `json:"message"`
	TimeStamp   time.Time `json:"timestamp"`
	SequenceNum uint64    `json:"sequence_num"`
}

// NewJobLogEvent creates a new job log event from the log line.
func NewJobLogEvent(line *LogLine) *JobLogEvent {
	return &JobLogEvent{
		JobID:       line.JobID,
		Message:     line.Text,
		TimeStamp:   line.Timestamp,
		SequenceNum: line.Seq,
	}
}

// Bytes returns the JSON encoding of the event.
func (e *JobLogEvent) Bytes() ([]byte, error) {
	return json.Marshal(e)
}
