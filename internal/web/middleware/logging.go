// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/smoky1337/PfotenRegister/internal/logging"
)

// Logger logs one structured line per request through logging.FromContext,
// so the entry carries the chi request id.
//
// Log fields: method, path, status, bytes, duration_ms, ip, user_agent.
// Health checks are logged at debug level.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", ClientIP(r),
			"user_agent", r.UserAgent(),
		}

		logger := logging.FromContext(r.Context())
		if r.URL.Path == "/healthz" {
			logger.Debug("request", attrs...)
			return
		}
		logger.Info("request", attrs...)
	})
}
