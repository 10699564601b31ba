package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzip"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// terminalCacheControl is set on responses that will no longer change.
const terminalCacheControl = "public, max-age=7200"

// httpStatusByCode maps status codes onto HTTP statuses; anything unlisted is a 500.
var httpStatusByCode = map[codes.Code]int{
	codes.NotFound:           http.StatusNotFound,
	codes.AlreadyExists:      http.StatusConflict,
	codes.InvalidArgument:    http.StatusBadRequest,
	codes.Unimplemented:      http.StatusNotImplemented,
	codes.Unavailable:        http.StatusServiceUnavailable,
	codes.FailedPrecondition: http.StatusPreconditionFailed,
	codes.ResourceExhausted:  http.StatusTooManyRequests,
	codes.Canceled:           http.StatusRequestTimeout,
	codes.DeadlineExceeded:   http.StatusGatewayTimeout,
}

func httpStatus(code codes.Code) int {
	if s, ok := httpStatusByCode[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// handleError writes err as a plain text response, prefixed by the optional context words.
func handleError(w http.ResponseWriter, err error, prefix ...string) {
	st := status.Convert(err)
	if st.Code() == codes.OK {
		return
	}

	msg := st.Message()
	if len(prefix) > 0 {
		msg = strings.Join(prefix, " ") + ": " + msg
	}

	http.Error(w, msg, httpStatus(st.Code()))
}

// writeJSON writes v with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to marshal response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	//nolint:errcheck // the client may have gone away
	_, _ = w.Write(data)
}

// statusRecorder remembers the response status and optionally gzips the body.
type statusRecorder struct {
	http.ResponseWriter
	gz          *gzip.Writer
	status      int
	wroteHeader bool
}

func (w *statusRecorder) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.status = code

	if w.gz != nil {
		h := w.Header()
		h.Set("Content-Encoding", "gzip")
		// The compressed length is not known up front
		h.Del("Content-Length")
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if w.gz != nil {
		return w.gz.Write(b)
	}
	return w.ResponseWriter.Write(b)
}

// finish terminates the gzip stream, if anything was written through it.
func (w *statusRecorder) finish() error {
	if w.gz == nil || !w.wroteHeader {
		return nil
	}
	return w.gz.Close()
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// recordedStatus reports the status written so far, 200 when the handler wrote nothing.
func (w *statusRecorder) recordedStatus() int {
	if !w.wroteHeader {
		return http.StatusOK
	}
	return w.status
}
