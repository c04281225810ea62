package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// ResponseRecorder wraps http.ResponseWriter to capture the status code.
type ResponseRecorder struct {
	http.ResponseWriter
	StatusCode int
}

func NewResponseRecorder(w http.ResponseWriter) *ResponseRecorder {
	return &ResponseRecorder{
		ResponseWriter: w,
		StatusCode:     http.StatusOK,
	}
}

func (r *ResponseRecorder) WriteHeader(statusCode int) {
	r.StatusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

// LoggingMiddleware logs request and response lines separately, useful when
// tailing a dev server.
func LoggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		logger.Info("request started",
			"method", r.Method,
			"path", r.URL.Path,
			"remoteAddr", r.RemoteAddr)

		recorder := NewResponseRecorder(w)
		next.ServeHTTP(recorder, r)

		logger.Info("request finished",
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.StatusCode,
			"duration", time.Since(start))
	})
}

// CompactLoggingMiddleware logs one line per request (like nginx).
func CompactLoggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		recorder := NewResponseRecorder(w)
		next.ServeHTTP(recorder, r)

		logger.Info(r.Method+" "+r.URL.Path,
			"status", recorder.StatusCode,
			"duration", time.Since(start),
			"remoteAddr", r.RemoteAddr)
	})
}

// StructuredLoggingMiddleware logs full request metadata, no bodies.
func StructuredLoggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		recorder := NewResponseRecorder(w)
		next.ServeHTTP(recorder, r)

		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.StatusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"remoteAddr", r.RemoteAddr,
			"userAgent", r.UserAgent(),
			"contentLength", r.ContentLength)
	})
}
