package server

import (
	"math"
	"net"
	"net/http"
	"strconv"
)

// rateLimit bounds mutating control requests per client address.
func (s *server) rateLimit(next http.Handler) http.Handler {
	if s.deps.Limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := s.deps.Limiter.Allow(clientKey(r))
		if res.Allowed {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfterSeconds))))
		e := errorResponse(http.StatusTooManyRequests, "rate limit exceeded")
		e.Error.Type = "rate_limit_error"
		writeJSON(w, http.StatusTooManyRequests, e)
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
