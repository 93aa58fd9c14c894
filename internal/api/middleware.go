package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/ironcrew/ironcrew-server/internal/logger"
)

// requestLogger writes one access line per request and hands handlers a
// logger tagged with the request and user IDs. It runs after authMiddleware
// so the user is already known.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		log := s.logger.With(slog.String("request_id", middleware.GetReqID(r.Context())))
		if userID, err := GetUserID(r.Context()); err == nil {
			log = log.With(slog.String("user_id", userID))
		}
		ctx := logger.WithContext(r.Context(), log)

		next.ServeHTTP(ww, r.WithContext(ctx))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case quietPath(r.URL.Path):
			level = slog.LevelDebug
		}

		log.LogAttrs(ctx, level, "request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("took", time.Since(start)),
		)
	})
}

// quietPath marks polling endpoints whose successes only log at debug.
func quietPath(path string) bool {
	return path == "/metrics" || strings.HasPrefix(path, "/health")
}
