package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestAuth(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		path   string
		header map[string]string
		want   int
	}{
		{name: "disabled", key: "", want: http.StatusOK},
		{name: "missing token", key: "secret", want: http.StatusUnauthorized},
		{name: "bearer", key: "secret", header: map[string]string{"Authorization": "Bearer secret"}, want: http.StatusOK},
		{name: "api key header", key: "secret", header: map[string]string{"X-API-Key": "secret"}, want: http.StatusOK},
		{name: "wrong token", key: "secret", header: map[string]string{"X-API-Key": "nope"}, want: http.StatusUnauthorized},
		{name: "query key ignored without upgrade", key: "secret", path: "/signals?api_key=secret", want: http.StatusUnauthorized},
		{name: "query key on websocket", key: "secret", path: "/ws?api_key=secret", header: map[string]string{"Upgrade": "websocket"}, want: http.StatusOK},
		{name: "health is public", key: "secret", path: "/api/health", want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.path
			if path == "" {
				path = "/signals"
			}
			req := httptest.NewRequest(http.MethodGet, path, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			Auth(tt.key)(okHandler).ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://desk.example"})(okHandler)

	req := httptest.NewRequest(http.MethodOptions, "/buy", nil)
	req.Header.Set("Origin", "https://desk.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://desk.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/buy", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	h = CORS(nil)(okHandler)
	req = httptest.NewRequest(http.MethodGet, "/signals", nil)
	req.Header.Set("Origin", "https://any.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://any.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, RequestIDHeader, rec.Header().Get("Access-Control-Expose-Headers"))
}

func TestRateLimit_SkipsHealth(t *testing.T) {
	limiter := &fakeLimiter{allow: false}
	rec := httptest.NewRecorder()
	RateLimit(limiter, 1, time.Second, nil)(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, limiter.keys)
}

func TestLogging_RequestID(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var seen string
	h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/signals", nil))
	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/signals", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

type fakeLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (f *fakeLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	f.keys = append(f.keys, key)
	return f.allow, f.err
}

func TestRateLimit(t *testing.T) {
	tests := []struct {
		name    string
		limiter *fakeLimiter
		want    int
	}{
		{name: "allowed", limiter: &fakeLimiter{allow: true}, want: http.StatusOK},
		{name: "denied", limiter: &fakeLimiter{allow: false}, want: http.StatusTooManyRequests},
		{name: "limiter down fails open", limiter: &fakeLimiter{err: errors.New("redis down")}, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/buy", nil)
			req.RemoteAddr = "10.0.0.7:5555"
			rec := httptest.NewRecorder()
			RateLimit(tt.limiter, 10, time.Minute, nil)(okHandler).ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusTooManyRequests {
				assert.Equal(t, "60", rec.Header().Get("Retry-After"))
				assert.JSONEq(t, `{"error":"rate limited"}`, rec.Body.String())
			}
			assert.Equal(t, []string{"ratelimit:api:10.0.0.7"}, tt.limiter.keys)
		})
	}
}

func TestClientIP(t *testing.T) {
	proxies, err := ParseTrustedProxies([]string{"10.0.0.0/8", "192.0.2.9"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		trusted TrustedProxies
		remote  string
		xff     string
		realIP  string
		want    string
	}{
		{name: "no headers", remote: "10.0.0.7:5555", want: "10.0.0.7"},
		{name: "untrusted peer ignores xff", remote: "203.0.113.4:5555", xff: "198.51.100.2", trusted: proxies, want: "203.0.113.4"},
		{name: "no proxies configured ignores headers", remote: "10.0.0.7:5555", xff: "198.51.100.2", realIP: "192.0.2.1", want: "10.0.0.7"},
		{name: "trusted peer uses xff", remote: "10.0.0.7:5555", xff: "198.51.100.2", trusted: proxies, want: "198.51.100.2"},
		{name: "spoofed left entry skipped", remote: "10.0.0.7:5555", xff: "1.2.3.4, 198.51.100.2, 10.0.0.3", trusted: proxies, want: "198.51.100.2"},
		{name: "all hops trusted", remote: "10.0.0.7:5555", xff: "10.1.1.1, 192.0.2.9", trusted: proxies, want: "10.1.1.1"},
		{name: "trusted peer uses x-real-ip", remote: "192.0.2.9:80", realIP: "198.51.100.8", trusted: proxies, want: "198.51.100.8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			assert.Equal(t, tt.want, tt.trusted.ClientIP(req))
		})
	}
}

func TestRateLimit_RotatingForwardedForSharesBucket(t *testing.T) {
	limiter := &fakeLimiter{allow: true}
	mw := RateLimit(limiter, 10, time.Minute, nil)(okHandler)
	for _, xff := range []string{"1.1.1.1", "2.2.2.2", "3.3.3.3"} {
		req := httptest.NewRequest(http.MethodGet, "/signals", nil)
		req.RemoteAddr = "203.0.113.4:4000"
		req.Header.Set("X-Forwarded-For", xff)
		mw.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Equal(t, []string{
		"ratelimit:api:203.0.113.4",
		"ratelimit:api:203.0.113.4",
		"ratelimit:api:203.0.113.4",
	}, limiter.keys)
}

func TestParseTrustedProxies(t *testing.T) {
	got, err := ParseTrustedProxies([]string{" 10.0.0.0/8 ", "", "::1"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = ParseTrustedProxies([]string{"proxy.local"})
	assert.Error(t, err)
}

func TestRequestLevel(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, requestLevel("/signals", http.StatusOK))
	assert.Equal(t, slog.LevelDebug, requestLevel("/api/health", http.StatusOK))
	assert.Equal(t, slog.LevelWarn, requestLevel("/sell", http.StatusBadRequest))
	assert.Equal(t, slog.LevelError, requestLevel("/api/profits/archive", http.StatusInternalServerError))
}
