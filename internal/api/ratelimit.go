package api

import (
	"net"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/ironcrew/ironcrew-server/internal/errors"
	"github.com/ironcrew/ironcrew-server/internal/logger"
)

// rateLimitMiddleware limits mutating operations per user. Anonymous callers
// are keyed by client IP; they are rejected by the handler anyway, but should
// not be able to hammer token verification.
func (s *Server) rateLimitMiddleware(ctx huma.Context, next func(huma.Context)) {
	if s.limiter == nil || !isMutating(ctx.Method()) {
		next(ctx)
		return
	}

	key, err := GetUserID(ctx.Context())
	if err != nil {
		key = "ip:" + clientIP(ctx.RemoteAddr())
	}

	if !s.limiter.Allow(key) {
		logger.FromContext(ctx.Context(), s.logger).Warn("rate limit exceeded",
			"key", key,
			"path", ctx.URL().Path,
		)
		_ = huma.WriteErr(s.api, ctx, http.StatusTooManyRequests,
			"Too many requests. Please try again later.",
			domainerrors.RateLimited("Too many requests. Please try again later."))
		return
	}

	next(ctx)
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

// clientIP strips the port from a RemoteAddr. middleware.RealIP has already
// applied X-Forwarded-For and X-Real-IP.
func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
