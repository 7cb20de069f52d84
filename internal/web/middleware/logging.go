// Package middleware provides HTTP middleware for the web server.
package middleware

import (
	"context"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/masterfile/internal/logging"
)

type operatorSlotKey struct{}

// recordOperator reports the authenticated operator to Logger, which runs
// before authentication and cannot see contexts derived after it.
func recordOperator(ctx context.Context, operator string) {
	if slot, ok := ctx.Value(operatorSlotKey{}).(*string); ok {
		*slot = operator
	}
}

// Logger logs one structured entry per request, tagged with chi's request ID.
//
// Log fields: method, path, status, bytes, duration_ms, ip, operator
// (when authenticated) and user_agent. Server errors log at error level,
// client errors at warn.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		var operator string
		next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), operatorSlotKey{}, &operator)))

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
			"ip", r.RemoteAddr,
			"user_agent", r.UserAgent(),
		}
		if operator != "" {
			attrs = append(attrs, "operator", operator)
		}

		logger := logging.FromContext(r.Context())
		switch {
		case status >= 500:
			logger.Error("request", attrs...)
		case status >= 400:
			logger.Warn("request", attrs...)
		default:
			logger.Info("request", attrs...)
		}
	})
}
