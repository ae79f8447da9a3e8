package middleware

import (
	"net/http"
	"time"

	"github.com/platinummonkey/plugin-portal/pkg/observability"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// RequestLogger stores logger and an empty request field set in the request
// context, then writes one access line per request carrying whatever fields
// inner handlers recorded. Server errors log at Error, client errors at Warn.
func RequestLogger(logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			ctx := observability.WithLogger(r.Context(), observability.UpdateLoggerWithTraceContext(r.Context(), logger))
			ctx = observability.WithRequestFields(ctx)
			next.ServeHTTP(rec, r.WithContext(ctx))

			entry := observability.FromContext(ctx).WithFields(map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      rec.status,
				"duration_ms": time.Since(start).Milliseconds(),
				"remote_ip":   getClientIP(r),
			})
			switch {
			case rec.status >= http.StatusInternalServerError:
				entry.Error("Request failed")
			case rec.status >= http.StatusBadRequest:
				entry.Warn("Request rejected")
			default:
				entry.Debug("Request served")
			}
		})
	}
}
