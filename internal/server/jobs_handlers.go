package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	jobsmodel "github.com/hitesh22rana/provisioner/internal/model/jobs"
	loggerpkg "github.com/hitesh22rana/provisioner/internal/pkg/logger"
	"github.com/hitesh22rana/provisioner/internal/repository/joblogs"
)

type createJobRequest struct {
	TargetHost string `json:"targetHost"`
}

// handleCreateJob handles the create job request.
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	job, err := s.dispatcher.Submit(r.Context(), r.PathValue("tool"), req.TargetHost)
	if err != nil {
		handleError(w, err, "failed to create job")
		return
	}

	writeJSON(w, http.StatusCreated, job)
}

// handleListJobs handles the list jobs request.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.jobs.ListJobs(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		handleError(w, err, "failed to list jobs")
		return
	}

	if jobs == nil {
		jobs = []*jobsmodel.Job{}
	}

	writeJSON(w, http.StatusOK, jobs)
}

// handleGetJob handles the get job by ID request.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, err, "failed to get job")
		return
	}

	// A finished job will no longer change
	if job.Status.IsTerminal() {
		w.Header().Set("Cache-Control", terminalCacheControl)
	}

	writeJSON(w, http.StatusOK, job)
}

// handleDownloadJobLogs handles the download of the full log of a finished job.
func (s *Server) handleDownloadJobLogs(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	lines, err := s.jobs.GetJobLogs(r.Context(), jobID)
	if err != nil {
		handleError(w, err, "failed to get job logs")
		return
	}

	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line.Text)
		b.WriteByte('\n')
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+jobID+`-logs.txt"`)
	w.Header().Set("Cache-Control", terminalCacheControl)
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // the client may have gone away
	_, _ = io.WriteString(w, b.String())
}

// handleStreamJobLogs streams the job's log as server-sent events.
// Lines appended before the request are replayed first, then later lines follow live.
//
//nolint:gocyclo // the select loop handles every way a stream can end
func (s *Server) handleStreamJobLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := r.PathValue("id")
	logger := loggerpkg.FromContext(ctx).With(
		zap.String("job_id", jobID),
		zap.String("remote_addr", r.RemoteAddr),
	)

	// Resume after the last delivered line when the client reconnects
	var lastSeq uint64
	if v := r.Header.Get("Last-Event-ID"); v != "" {
		seq, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			http.Error(w, "invalid Last-Event-ID header", http.StatusBadRequest)
			return
		}
		lastSeq = seq
	}

	sub, err := s.jobs.StreamJobLogs(ctx, jobID)
	if err != nil {
		handleError(w, err, "failed to stream job logs")
		return
	}
	defer sub.Cancel()

	rc := http.NewResponseController(w)

	// The stream outlives the server's write timeout
	if err = rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		logger.Warn("failed to clear write deadline", zap.Error(err))
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	send := func(frame string) bool {
		if _, err := io.WriteString(w, frame); err != nil {
			return false
		}
		return rc.Flush() == nil
	}

	logger.Info("log stream opened", zap.Uint64("subscriber_id", sub.ID()))
	defer logger.Info("log stream closed", zap.Uint64("subscriber_id", sub.ID()))

	if !send("event: connected\ndata: {\"status\":\"connected\"}\n\n") {
		return
	}

	for i := range sub.Replay() {
		line := &sub.Replay()[i]
		if line.Seq <= lastSeq {
			continue
		}
		if !send(formatLine(line)) {
			return
		}
	}

	ticker := time.NewTicker(s.cfg.SSEKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Client disconnected
			return

		case <-ticker.C:
			if !send(": ping\n\n") {
				return
			}

		case line, ok := <-sub.Live():
			if !ok {
				send(s.endFrame(r, sub.Reason(), jobID))
				return
			}
			if line.Seq <= lastSeq {
				continue
			}
			if !send(formatLine(&line)) {
				return
			}
		}
	}
}

// endFrame returns the last event of a stream whose live feed ended.
func (s *Server) endFrame(r *http.Request, reason joblogs.EndReason, jobID string) string {
	switch reason {
	case joblogs.EndReasonCompleted:
		job, err := s.jobs.GetJob(r.Context(), jobID)
		if err != nil {
			return formatEvent("error", "failed to get job status")
		}
		return formatEvent("end", job.Status.ToString())
	case joblogs.EndReasonOverflow:
		return formatEvent("error", "subscriber overflow")
	default:
		return formatEvent("error", "log stream "+reason.ToString())
	}
}

// formatLine renders a log line as a default event carrying its sequence number.
func formatLine(line *jobsmodel.LogLine) string {
	return "id: " + strconv.FormatUint(line.Seq, 10) + "\n" + formatData(line.Text) + "\n"
}

// formatEvent renders a named event.
func formatEvent(name, data string) string {
	return fmt.Sprintf("event: %s\n%s\n", name, formatData(data))
}

// lineBreaks folds every SSE line terminator into a newline.
var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// formatData splits the payload over data fields. CR, LF and CRLF all end an SSE line,
// so each of them starts a new field.
func formatData(data string) string {
	var b strings.Builder
	for part := range strings.SplitSeq(lineBreaks.Replace(data), "\n") {
		b.WriteString("data: ")
		b.WriteString(part)
		b.WriteByte('\n')
	}
	return b.String()
}
