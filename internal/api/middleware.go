package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/brouie/team-microservices-factory/observability"
)

// statusRecorder captures the status code and body size written through a
// http.ResponseWriter
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	// WriteHeader is optional; an untouched handler response is a 200
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	n, err := rec.ResponseWriter.Write(b)
	rec.bytes += n
	return n, err
}

// routePattern returns the chi route pattern for the request, so metrics
// label by "/services/{id}" rather than one series per concrete id. Falls
// back to the raw path outside a chi route context.
func routePattern(r *http.Request) string {
	if pattern := chi.RouteContext(r.Context()).RoutePattern(); pattern != "" {
		return pattern
	}
	return r.URL.Path
}

// MetricsMiddleware records request count, duration, and response size for
// every request
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := newStatusRecorder(w)

		next.ServeHTTP(rec, r)

		observability.GetMetrics().RecordHTTPRequest(
			r.Method, routePattern(r), strconv.Itoa(rec.status),
			time.Since(start), rec.bytes)
	})
}
