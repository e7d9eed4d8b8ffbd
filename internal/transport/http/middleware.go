package http

import (
	"net/http"
	"time"

	"ai-quiz-service/internal/logger"
	"github.com/go-chi/chi/v5/middleware"
)

// requestLogger logs every request with its id, status and duration.
func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			reqLog := log.With(
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"size", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
			)
			switch {
			case ww.Status() >= 500:
				reqLog.Error("request completed with server error")
			case ww.Status() >= 400:
				reqLog.Warn("request completed with client error")
			default:
				reqLog.Debug("request completed")
			}
		})
	}
}
