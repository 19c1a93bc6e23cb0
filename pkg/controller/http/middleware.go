package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bssprx/data-platform-containers/pkg/utils/logging"
)

// LoggingMiddleware logs every request and hands the logger to handlers
func LoggingMiddleware(ctx context.Context) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			logger := logging.From(ctx).With("request_id", middleware.GetReqID(r.Context()))

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Info("HTTP request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"duration_ms", time.Since(start).Milliseconds(),
				)
			}()

			next.ServeHTTP(ww, r.WithContext(logging.With(r.Context(), logger)))
		})
	}
}

// writeError writes a {"detail": ...} response. Server errors are logged and
// sent to Sentry when a hub is attached to the request.
func writeError(w http.ResponseWriter, r *http.Request, detail string, err error, status int) {
	if status >= http.StatusInternalServerError && err != nil {
		logging.From(r.Context()).Error("Request failed", "error", err, "status", status)
		if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
			hub.CaptureException(err)
		}
	}
	writeJSON(w, r, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.From(r.Context()).Error("Failed to encode response", "error", err)
	}
}
