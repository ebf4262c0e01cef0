package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/okian/pinta/pkg/metrics"
)

// errorClass labels a failed response for the error counters.
type errorClass struct {
	kind     string
	severity string
}

// statusClasses covers the statuses the handlers emit on purpose.
var statusClasses = map[int]errorClass{ //nolint:gochecknoglobals // lookup table
	http.StatusBadRequest:          {"bad_request", "low"},
	http.StatusNotFound:            {"not_found", "low"},
	http.StatusMethodNotAllowed:    {"bad_request", "low"},
	http.StatusGone:                {"challenge_closed", "medium"},
	http.StatusUnprocessableEntity: {"unverifiable", "medium"},
	http.StatusServiceUnavailable:  {"data_unavailable", "high"},
}

func classify(status int) errorClass {
	if c, ok := statusClasses[status]; ok {
		return c
	}
	if status >= http.StatusInternalServerError {
		return errorClass{"server_error", "high"}
	}
	return errorClass{"client_error", "medium"}
}

// MetricsMiddleware records request count, latency and, for failed
// responses, the error class of next under the endpoint label.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		elapsedMs := float64(time.Since(start).Microseconds()) / 1000
		status := strconv.Itoa(rec.status)
		metrics.RecordHTTPRequest(endpoint, r.Method, status)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, status, elapsedMs)

		if rec.status < http.StatusBadRequest {
			return
		}
		c := classify(rec.status)
		metrics.RecordErrorByEndpoint(endpoint, r.Method, c.kind)
		metrics.RecordErrorByType(c.kind, c.severity)
		if c.severity == "high" {
			metrics.RecordErrorByComponent("http", c.kind)
		}
	}
}

// statusRecorder remembers the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rw *statusRecorder) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// Flush lets streaming handlers such as promhttp flush through the recorder.
func (rw *statusRecorder) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
