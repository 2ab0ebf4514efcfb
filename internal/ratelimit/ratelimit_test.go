package ratelimit_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MrWong99/glyphcmd/internal/ratelimit"
)

func TestNew_DisabledIsNil(t *testing.T) {
	t.Parallel()

	l := ratelimit.New(0, 10)
	if l != nil {
		t.Fatalf("New(0, 10) = %v, want nil", l)
	}
	for range 100 {
		if !l.Allow("a") {
			t.Fatal("nil limiter rejected a request")
		}
	}
	h := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	if got := l.Middleware("x", h); got == nil {
		t.Fatal("Middleware on nil limiter returned nil")
	}
}

func TestAllow_PerKeyBurst(t *testing.T) {
	t.Parallel()

	// One token per hour: only the burst is available during the test.
	l := ratelimit.New(1.0/3600, 2)
	for i := range 2 {
		if !l.Allow("a") {
			t.Fatalf("request %d from a rejected within burst", i)
		}
	}
	if l.Allow("a") {
		t.Error("third request from a allowed beyond burst")
	}
	if !l.Allow("b") {
		t.Error("first request from b rejected; buckets must be per key")
	}
}

func TestAllow_EvictedClientStartsFresh(t *testing.T) {
	t.Parallel()

	l := ratelimit.New(1.0/3600, 1, ratelimit.WithMaxClients(1))
	if !l.Allow("a") {
		t.Fatal("first request from a rejected")
	}
	if !l.Allow("b") {
		t.Fatal("first request from b rejected")
	}
	// b pushed a out of the LRU, so a gets a new bucket.
	if !l.Allow("a") {
		t.Error("a should have been forgotten after eviction")
	}
}

func TestAllow_IdleTTL(t *testing.T) {
	t.Parallel()

	l := ratelimit.New(1.0/3600, 1, ratelimit.WithIdleTTL(20*time.Millisecond))
	if !l.Allow("a") {
		t.Fatal("first request rejected")
	}
	if l.Allow("a") {
		t.Fatal("second request allowed beyond burst")
	}
	time.Sleep(60 * time.Millisecond)
	if !l.Allow("a") {
		t.Error("bucket should have expired after the idle TTL")
	}
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	l := ratelimit.New(1.0/3600, 1)
	calls := 0
	h := l.Middleware("recognize", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := send("10.0.0.1:5000"); rec.Code != http.StatusNoContent {
		t.Fatalf("first status = %d", rec.Code)
	}
	rec := send("10.0.0.1:5001")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
	if rec := send("10.0.0.2:5000"); rec.Code != http.StatusNoContent {
		t.Errorf("other client status = %d", rec.Code)
	}
	if calls != 2 {
		t.Errorf("handler calls = %d, want 2", calls)
	}
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "remote addr", remote: "192.0.2.1:1234", want: "192.0.2.1"},
		{name: "remote without port", remote: "192.0.2.1", want: "192.0.2.1"},
		{name: "forwarded for", headers: map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, remote: "10.0.0.1:80", want: "203.0.113.5"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": "198.51.100.7"}, remote: "10.0.0.1:80", want: "198.51.100.7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := ratelimit.ClientIP(req); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRetryAfter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rps  float64
		want int
	}{
		{rps: 10, want: 1},
		{rps: 0.5, want: 2},
		{rps: 0.1, want: 10},
	}
	for _, tt := range tests {
		if got := ratelimit.New(tt.rps, 1).RetryAfter(); got != tt.want {
			t.Errorf("RetryAfter() at %v rps = %d, want %d", tt.rps, got, tt.want)
		}
	}
}
