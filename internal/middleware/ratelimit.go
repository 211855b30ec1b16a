package middleware

import (
	"net"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"playergate/internal/metrics"
	"playergate/internal/ratelimit"
	"playergate/pkg/logging/logging"
	"playergate/pkg/types"
)

// ClientIP returns the host part of RemoteAddr, which chi's RealIP has
// already replaced with the forwarded client address when present.
func ClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// RateLimit allows rpm requests per minute per client IP. rpm <= 0 disables it.
func RateLimit(registry *ratelimit.Registry, rpm int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if registry == nil || rpm <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := registry.GetOrCreate(ClientIP(r), rpm).Allow()

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(res.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))

			if !res.Allowed {
				metrics.RecordRateLimited()
				logging.L(r.Context()).Warn("rate_limited", zap.Int64("rpm", rpm))
				w.Header().Set("Retry-After", strconv.Itoa(res.RetryAfter()))
				writeError(w, http.StatusTooManyRequests, types.CodeRateLimited, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
