package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Dan9191/cashflow-risk/internal/metrics"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// responseWriter captures the status code written by a handler
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs each request and records its latency
func LoggingMiddleware(logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)
			elapsed := time.Since(start)

			metrics.RequestDuration.
				WithLabelValues(routeTemplate(r), r.Method, strconv.Itoa(rw.statusCode)).
				Observe(elapsed.Seconds())

			logger.WithFields(logrus.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      rw.statusCode,
				"duration_ms": elapsed.Milliseconds(),
				"remote_addr": r.RemoteAddr,
			}).Info("request")
		})
	}
}

// routeTemplate keeps metric labels bounded by using the matched mux pattern
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}
