package api

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/pacer/pkg/logger"
	"github.com/okian/pacer/pkg/metrics"
)

const (
	maxBodyBytes   = 1 << 20
	maxLoggedBytes = 4 << 10
)

// MetricsMiddleware wraps HTTP handlers to record Prometheus metrics.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		durationMs := float64(time.Since(start).Milliseconds())
		statusCode := strconv.Itoa(wrapped.statusCode)
		metrics.RecordHTTPRequest(endpoint, r.Method, statusCode)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, statusCode, durationMs)
	}
}

// LoggingMiddleware logs every request body and the response it got. Bodies
// above maxBodyBytes are rejected; logged bodies are truncated.
func LoggingMiddleware(next http.HandlerFunc, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
		if err != nil || len(body) > maxBodyBytes {
			if err == nil {
				err = fmt.Errorf("body exceeds %d bytes", maxBodyBytes)
			}
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind("api.read_body", ErrBadRequest, err))
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		log.Info(r.Context(), "request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.String("body", truncate(body)),
		)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK, capture: true}
		start := time.Now()
		next.ServeHTTP(wrapped, r)

		log.Info(r.Context(), "response",
			logger.String("path", r.URL.Path),
			logger.Int("status", wrapped.statusCode),
			logger.String("body", truncate(wrapped.body.Bytes())),
			logger.String("duration", time.Since(start).String()),
		)
	}
}

func truncate(b []byte) string {
	b = bytes.TrimSpace(b)
	if len(b) > maxLoggedBytes {
		return string(b[:maxLoggedBytes]) + "..."
	}
	return string(b)
}

// responseWriter wraps http.ResponseWriter to capture status code and,
// when asked, the start of the body.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	capture    bool
	body       bytes.Buffer
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.capture && rw.body.Len() < maxLoggedBytes {
		rw.body.Write(b[:min(len(b), maxLoggedBytes-rw.body.Len())])
	}
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("failed to write response: %w", err)
	}
	return n, nil
}
