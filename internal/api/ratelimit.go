package api

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/juju/ratelimit"
)

// clientLimiter keeps one token bucket per client IP. Buckets that
// refill completely are dropped by the background sweep.
type clientLimiter struct {
	mu      sync.RWMutex
	clients map[string]*ratelimit.Bucket
	rate    float64
	burst   int64
}

func newClientLimiter(requestsPerSecond int) *clientLimiter {
	cl := &clientLimiter{
		clients: make(map[string]*ratelimit.Bucket),
		rate:    float64(requestsPerSecond),
		burst:   int64(requestsPerSecond) * 10,
	}
	go cl.sweep(30 * time.Minute)
	return cl
}

func (cl *clientLimiter) bucket(clientIP string) *ratelimit.Bucket {
	cl.mu.RLock()
	b, ok := cl.clients[clientIP]
	cl.mu.RUnlock()
	if ok {
		return b
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()
	if b, ok = cl.clients[clientIP]; ok {
		return b
	}
	b = ratelimit.NewBucketWithRate(cl.rate, cl.burst)
	cl.clients[clientIP] = b
	return b
}

func (cl *clientLimiter) sweep(interval time.Duration) {
	for range time.Tick(interval) {
		cl.mu.Lock()
		for ip, b := range cl.clients {
			if b.Available() == b.Capacity() {
				delete(cl.clients, ip)
			}
		}
		cl.mu.Unlock()
	}
}

// RateLimit returns middleware enforcing a per-client request budget.
// Health and metrics probes are exempt so monitoring never competes
// with API traffic.
func RateLimit(requestsPerSecond int) func(http.Handler) http.Handler {
	limiter := newClientLimiter(requestsPerSecond)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}

			b := limiter.bucket(ip)
			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(b.Capacity(), 10))
			if b.TakeAvailable(1) < 1 {
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Retry-After", "1")
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(b.Available(), 10))

			next.ServeHTTP(w, r)
		})
	}
}
