package httpapi

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// NewLogger - JSON в production, текст с уровнем Debug в остальных окружениях.
func NewLogger(env string) *slog.Logger {
	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	return slog.New(handler)
}

// Logging пишет по строке на запрос. 5xx - Error, 4xx - Warn, остальное - Info.
// Должен стоять после middleware.RequestID и внутри Recoverer.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"latency_ms", time.Since(start).Milliseconds(),
				"size", ww.BytesWritten(),
				"request_id", middleware.GetReqID(r.Context()),
			}
			if caller := CallerFrom(r.Context()); caller.Authenticated() {
				attrs = append(attrs, "user_id", caller.UserID)
			}

			switch {
			case status >= 500:
				logger.ErrorContext(r.Context(), "http request", attrs...)
			case status >= 400:
				logger.WarnContext(r.Context(), "http request", attrs...)
			default:
				logger.InfoContext(r.Context(), "http request", attrs...)
			}
		})
	}
}
