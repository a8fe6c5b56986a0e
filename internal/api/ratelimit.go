package api

import (
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// hostRateLimiter is a token bucket per client host, the way
// _examples/bobmcallan-vire/internal/clients/asx/client.go wraps an
// outbound call in a golang.org/x/time/rate.Limiter — here applied inbound,
// one bucket per remote host. Each bucket holds up to perMin tokens and
// refills at perMin/60 tokens per second; it is not a fixed per-minute
// window, so a host that drains its burst can still pass further requests
// within the same clock minute as tokens refill. perMin <= 0 disables the
// limiter entirely.
type hostRateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*rate.Limiter
	perMin   int
}

func newHostRateLimiter(perMin int) *hostRateLimiter {
	return &hostRateLimiter{
		buckets: make(map[string]*rate.Limiter),
		perMin:  perMin,
	}
}

func (h *hostRateLimiter) allow(host string) bool {
	if h.perMin <= 0 {
		return true
	}
	h.mu.Lock()
	limiter, ok := h.buckets[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(float64(h.perMin)/60.0), h.perMin)
		h.buckets[host] = limiter
	}
	h.mu.Unlock()
	return limiter.Allow()
}

func (h *hostRateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := clientHost(r)
		if !h.allow(host) {
			writeError(w, r, &AppError{Code: CodeRateLimited, Message: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
