package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibeproxy/vibeproxy-go/pkg/logging"
)

func TestRateLimiter_Bucket(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	now := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "buckets are per key")

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))

	now = now.Add(time.Hour)
	assert.Equal(t, 0, rl.Sweep(now.Add(-idleCutoff)))
}

func TestRateLimit_Middleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := RateLimit(NewRateLimiter(1, 1))(next)

	req := httptest.NewRequest(http.MethodPost, "/chat", nil)
	req.RemoteAddr = "10.0.0.1:1000"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestRateLimit_KeysOnHostNotPort(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := RateLimit(NewRateLimiter(0.001, 1))(next)

	codes := make([]int, 0, 3)
	for _, addr := range []string{"10.0.0.1:1000", "10.0.0.1:1001", "10.0.0.1:1002"} {
		req := httptest.NewRequest(http.MethodPost, "/chat", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest(http.MethodPost, "/chat", nil)
	req.RemoteAddr = "10.0.0.2:1000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "other hosts keep their own bucket")
}

func TestRateLimit_IgnoresSpoofedRealIPHeader(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := RateLimit(NewRateLimiter(0, 1))(next)

	for i, spoof := range []string{"1.1.1.1", "2.2.2.2"} {
		req := httptest.NewRequest(http.MethodPost, "/chat", nil)
		req.RemoteAddr = "10.0.0.1:1000"
		req.Header.Set("X-Real-Ip", spoof)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if i == 0 {
			assert.Equal(t, http.StatusOK, rec.Code)
		} else {
			assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		}
	}
}

func TestRateLimit_BehindRealIP(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := chimw.RealIP(RateLimit(NewRateLimiter(0, 1))(next))

	send := func(clientIP, proxyAddr string) int {
		req := httptest.NewRequest(http.MethodPost, "/chat", nil)
		req.RemoteAddr = proxyAddr
		req.Header.Set("X-Real-Ip", clientIP)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, send("203.0.113.7", "10.0.0.9:4000"))
	assert.Equal(t, http.StatusTooManyRequests, send("203.0.113.7", "10.0.0.9:4001"))
	assert.Equal(t, http.StatusOK, send("203.0.113.8", "10.0.0.9:4002"))
}

func TestRateLimiter_RetryAfter(t *testing.T) {
	tests := []struct {
		rate float64
		want time.Duration
	}{
		{rate: 5, want: time.Second},
		{rate: 1, want: time.Second},
		{rate: 0.1, want: 10 * time.Second},
		{rate: 0.3, want: 4 * time.Second},
		{rate: 0, want: idleCutoff},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NewRateLimiter(tt.rate, 1).RetryAfter(), "rate %v", tt.rate)
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := RateLimit(NewRateLimiter(0.1, 1))(next)
	req := httptest.NewRequest(http.MethodPost, "/chat", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "10", rec.Header().Get("Retry-After"))
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter("info", "json", &buf)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	})
	h := chimw.RequestID(RequestLogger(logger)(next))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "req-123")
	h.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "request completed", entry["msg"])
	assert.Equal(t, "WARN", entry["level"])
	assert.EqualValues(t, http.StatusBadGateway, entry["status"])
	assert.Equal(t, "req-123", entry["request_id"])
	assert.Equal(t, "/health", entry["path"])
}
