package jobs

import (
	"context"
	"slices"
	"time"
)

// Tool represents a CI/CD tool that can be provisioned.
type Tool string

// Supported tools.
const (
	ToolJenkins   Tool = "jenkins"
	ToolNexus     Tool = "nexus"
	ToolHarbor    Tool = "harbor"
	ToolSonarQube Tool = "sonarqube"
)

// Tools lists every supported tool in display order.
var Tools = []Tool{
	ToolJenkins,
	ToolNexus,
	ToolHarbor,
	ToolSonarQube,
}

var toolLabels = map[Tool]string{
	ToolJenkins:   "Install Jenkins",
	ToolNexus:     "Install Nexus",
	ToolHarbor:    "Install Harbor",
	ToolSonarQube: "Install SonarQube",
}

// ToString converts the Tool to its string representation.
func (t Tool) ToString() string {
	return string(t)
}

// Label returns the human readable action label of the tool.
func (t Tool) Label() string {
	return toolLabels[t]
}

// ParseTool parses a tool name, rejecting unsupported tools.
func ParseTool(s string) (Tool, error) {
	t := Tool(s)
	if !slices.Contains(Tools, t) {
		return "", ValidationError("unsupported tool: %q", s)
	}

	return t, nil
}

// JobStatus represents the status of a provisioning job.
type JobStatus string

// JobStatuses for the provisioning job.
const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// successors holds the legal next states of every non-terminal status.
var successors = map[JobStatus][]JobStatus{
	JobStatusPending: {JobStatusRunning, JobStatusFailed},
	JobStatusRunning: {JobStatusSuccess, JobStatusFailed},
}

// ToString converts the JobStatus to its string representation.
func (s JobStatus) ToString() string {
	return string(s)
}

// IsTerminal reports whether the status will no longer change.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSuccess || s == JobStatusFailed
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	return slices.Contains(successors[s], next)
}

// ParseJobStatus parses a job status.
func ParseJobStatus(s string) (JobStatus, error) {
	switch js := JobStatus(s); js {
	case JobStatusPending, JobStatusRunning, JobStatusSuccess, JobStatusFailed:
		return js, nil
	default:
		return "", ValidationError("invalid job status: %q", s)
	}
}

// Job represents a single provisioning request and its lifecycle.
type Job struct {
	ID         string    `json:"id"`
	Tool       Tool      `json:"tool"`
	TargetHost string    `json:"targetHost"`
	Status     JobStatus `json:"status"`
	Message    string    `json:"message,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Clone returns a copy of the job.
func (j *Job) Clone() *Job {
	c := *j
	return &c
}

// LogLine represents a single line of a job's output.
type LogLine struct {
	JobID     string    `json:"jobId"`
	Seq       uint64    `json:"seq"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Reporter receives the progress of a running job.
// Calls for the same job are applied in the order they are made.
type Reporter interface {
	Transition(ctx context.Context, jobID string, status JobStatus, message string) error
	AppendLog(ctx context.Context, jobID, text string) error
}
