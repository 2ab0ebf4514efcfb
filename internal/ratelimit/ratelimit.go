// Package ratelimit throttles requests per client address with a token
// bucket for every client. Buckets live in an expiring LRU so that idle
// clients are forgotten and the number of tracked clients stays bounded.
package ratelimit

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/MrWong99/glyphcmd/internal/observe"
)

const (
	// DefaultMaxClients bounds the number of tracked client buckets.
	DefaultMaxClients = 4096

	// DefaultIdleTTL is how long an untouched bucket is kept.
	DefaultIdleTTL = 5 * time.Minute
)

// Limiter hands out one token bucket per key. A nil *Limiter allows
// everything. It is safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	limiters *expirable.LRU[string, *rate.Limiter]
	rate     rate.Limit
	burst    int
	metrics  *observe.Metrics
}

// Option configures a Limiter.
type Option func(*options)

type options struct {
	maxClients int
	idleTTL    time.Duration
	metrics    *observe.Metrics
}

// WithMaxClients bounds the number of tracked clients. The least recently
// seen client is evicted first.
func WithMaxClients(n int) Option {
	return func(o *options) { o.maxClients = n }
}

// WithIdleTTL sets how long an idle client's bucket is remembered.
func WithIdleTTL(d time.Duration) Option {
	return func(o *options) { o.idleTTL = d }
}

// WithMetrics records rejections on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// New returns a Limiter refilling rps tokens per second up to burst. It
// returns nil when rps is not positive, which disables limiting.
func New(rps float64, burst int, opts ...Option) *Limiter {
	if rps <= 0 {
		return nil
	}
	o := options{maxClients: DefaultMaxClients, idleTTL: DefaultIdleTTL}
	for _, opt := range opts {
		opt(&o)
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiters: expirable.NewLRU[string, *rate.Limiter](o.maxClients, nil, o.idleTTL),
		rate:     rate.Limit(rps),
		burst:    burst,
		metrics:  o.metrics,
	}
}

// Allow reports whether one more request from key may proceed now.
func (l *Limiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	limiter, ok := l.limiters.Get(key)
	if !ok {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters.Add(key, limiter)
	}
	l.mu.Unlock()
	return limiter.Allow()
}

// Reject records a rejected request for endpoint.
func (l *Limiter) Reject(ctx context.Context, endpoint string) {
	if l != nil && l.metrics != nil {
		l.metrics.RecordRateLimited(ctx, endpoint)
	}
}

// RetryAfter is the whole number of seconds until one token is available
// again, at least 1.
func (l *Limiter) RetryAfter() int {
	if l == nil || l.rate <= 0 {
		return 1
	}
	return max(1, int(time.Duration(float64(time.Second)/float64(l.rate)).Round(time.Second)/time.Second))
}

// Middleware rejects requests beyond the client's budget with 429 and a
// JSON {"detail": ...} body. endpoint labels the rejection metric.
func (l *Limiter) Middleware(endpoint string, next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.Allow(ClientIP(r)) {
			next.ServeHTTP(w, r)
			return
		}
		l.Reject(r.Context(), endpoint)
		observe.Logger(r.Context()).Warn("ratelimit: request rejected", "client", ClientIP(r), "endpoint", endpoint)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Retry-After", strconv.Itoa(l.RetryAfter()))
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": "rate limit exceeded"})
	})
}

// ClientIP returns the originating client address of r: the first
// X-Forwarded-For entry, then X-Real-IP, then the host part of RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
