package client

import (
	"bufio"
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	jobsmodel "github.com/hitesh22rana/provisioner/internal/model/jobs"
)

// maxEventSize bounds a single server-sent event.
const maxEventSize = 1 << 20

// StreamHandler receives the events of a log stream. Nil callbacks are skipped.
type StreamHandler struct {
	// Connected is called once the server accepted the subscription.
	Connected func()
	// Line is called for every log line, in sequence order.
	Line func(line jobsmodel.LogLine)
}

// StreamLogs follows the job's log until the job finishes and returns its final status.
// A connection lost before the end of the stream yields a TransportError.
//
//nolint:gocyclo // event dispatch
func (c *Client) StreamLogs(ctx context.Context, jobID string, h StreamHandler) (jobsmodel.JobStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/jobs/"+url.PathEscape(jobID)+"/logs", http.NoBody)
	if err != nil {
		return "", status.Errorf(codes.InvalidArgument, "failed to build request: %v", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		return "", transportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errorFromResponse(resp)
	}

	var (
		id    string
		event string
		data  []string
	)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)
	scanner.Split(scanEventLines)
	for scanner.Scan() {
		field, value, _ := strings.Cut(scanner.Text(), ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "id":
			id = value
			continue
		case "event":
			event = value
			continue
		case "data":
			data = append(data, value)
			continue
		case "":
			// Blank line dispatches the event, a leading colon is a comment
			if scanner.Text() != "" {
				continue
			}
		default:
			continue
		}

		if event == "" && data == nil {
			id = ""
			continue
		}

		payload := strings.Join(data, "\n")
		name := event
		lineID := id
		id, event, data = "", "", nil

		switch name {
		case "connected":
			if h.Connected != nil {
				h.Connected()
			}

		case "end":
			jobStatus, err := jobsmodel.ParseJobStatus(payload)
			if err != nil {
				return "", status.Errorf(codes.Internal, "unexpected final status: %q", payload)
			}
			return jobStatus, nil

		case "error":
			return "", jobsmodel.TransportError("log stream interrupted: %s", payload)

		case "", "message":
			seq, err := strconv.ParseUint(lineID, 10, 64)
			if err != nil {
				return "", status.Errorf(codes.Internal, "invalid log line id: %q", lineID)
			}
			if h.Line != nil {
				h.Line(jobsmodel.LogLine{JobID: jobID, Seq: seq, Text: payload})
			}
		}
	}

	if ctx.Err() != nil {
		return "", status.FromContextError(ctx.Err()).Err()
	}
	if err := scanner.Err(); err != nil {
		return "", jobsmodel.TransportError("log stream broken: %v", err)
	}

	return "", jobsmodel.TransportError("log stream ended before the job finished")
}

// scanEventLines splits an event stream into lines ended by CR, LF or CRLF.
func scanEventLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		// A CR at the end of the buffer may be the first half of a CRLF
		if i+1 == len(data) && !atEOF {
			return 0, nil, nil
		}
		if i+1 < len(data) && data[i+1] == '\n' {
			return i + 2, data[:i], nil
		}
		return i + 1, data[:i], nil
	}

	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
