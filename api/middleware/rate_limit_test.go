package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	pkgerrors "github.com/angelmondragon/salesrank-backend/pkg/errors"
	"github.com/angelmondragon/salesrank-backend/pkg/logger"
	"github.com/angelmondragon/salesrank-backend/pkg/redis"
)

type fakeRateStore struct {
	mu      sync.Mutex
	counts  map[string]int64
	resetIn time.Duration
	err     error
}

func newFakeRateStore() *fakeRateStore {
	return &fakeRateStore{counts: map[string]int64{}}
}

func (f *fakeRateStore) FixedWindow(_ context.Context, scope string, limit int64, _ time.Duration) (redis.Window, error) {
	if f.err != nil {
		return redis.Window{}, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[scope]++
	count := f.counts[scope]
	return redis.Window{Allowed: count <= limit, Count: count, Limit: limit, ResetIn: f.resetIn}, nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimit_BlocksAfterLimit(t *testing.T) {
	store := newFakeRateStore()
	handler := RateLimit(NewRateLimitPolicy("rankings", time.Minute, 2), store, nil)(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/analytics/rankings", nil)
		req.RemoteAddr = "1.2.3.4:5678"
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if i < 2 {
			if rec.Code != http.StatusOK {
				t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
			}
			if got := rec.Header().Get("X-RateLimit-Remaining"); got != strconv.Itoa(1-i) {
				t.Fatalf("request %d: unexpected remaining %q", i, got)
			}
			continue
		}
		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d", rec.Code)
		}
		if rec.Header().Get("Retry-After") != "60" {
			t.Fatalf("unexpected Retry-After %q", rec.Header().Get("Retry-After"))
		}
		var payload struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if payload.Error.Code != string(pkgerrors.CodeRateLimit) {
			t.Fatalf("unexpected code %s", payload.Error.Code)
		}
	}

	if _, ok := store.counts["ip:rankings:1.2.3.4"]; !ok {
		t.Fatalf("expected ip scope key, got %v", store.counts)
	}
}

func TestRateLimit_RetryAfterFollowsWindowReset(t *testing.T) {
	store := newFakeRateStore()
	store.resetIn = 12500 * time.Millisecond
	handler := RateLimit(NewRateLimitPolicy("rankings", time.Minute, 1), store, nil)(okHandler())

	var rec *httptest.ResponseRecorder
	for i := 0; i < 2; i++ {
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	}
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "13" {
		t.Fatalf("expected Retry-After rounded up to 13, got %q", got)
	}
}

func TestRateLimit_SeparatesClients(t *testing.T) {
	store := newFakeRateStore()
	handler := RateLimit(NewRateLimitPolicy("rankings", time.Minute, 1), store, nil)(okHandler())

	for _, ip := range []string{"203.0.113.1", "203.0.113.2"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.5:443"
		req.Header.Set("X-Forwarded-For", ip+", 172.16.0.1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s, got %d", ip, rec.Code)
		}
	}
}

func TestRateLimit_SpoofedForwardedForSharesBucket(t *testing.T) {
	store := newFakeRateStore()
	handler := RateLimit(NewRateLimitPolicy("rankings", time.Minute, 1), store, nil)(okHandler())

	codes := []int{}
	for _, spoofed := range []string{"1.1.1.1", "8.8.8.8"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.5:443"
		req.Header.Set("X-Forwarded-For", spoofed+", 203.0.113.9")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}
	if _, ok := store.counts["ip:rankings:203.0.113.9"]; !ok {
		t.Fatalf("expected proxy-appended address as key, got %v", store.counts)
	}
}

func TestRateLimit_DisabledWithoutStore(t *testing.T) {
	handler := RateLimit(NewRateLimitPolicy("rankings", time.Minute, 1), nil, nil)(okHandler())
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	}
}

func TestRateLimit_StoreErrorFailsOpen(t *testing.T) {
	store := newFakeRateStore()
	store.err = errors.New("redis down")
	var out bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &out})
	handler := RateLimit(NewRateLimitPolicy("rankings", time.Minute, 5), store, logg)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(out.String(), "rate_limit.store_unavailable") || !strings.Contains(out.String(), "redis down") {
		t.Fatalf("expected warn log, got %s", out.String())
	}
}

func TestClientIP(t *testing.T) {
	cases := []struct {
		name   string
		remote string
		xff    string
		realIP string
		want   string
	}{
		{name: "remote only", remote: "192.0.2.1:1234", want: "192.0.2.1"},
		{name: "public peer ignores headers", remote: "198.51.100.20:1234", xff: "1.1.1.1", realIP: "1.1.1.2", want: "198.51.100.20"},
		{name: "proxy real ip", remote: "127.0.0.1:1234", realIP: "198.51.100.7", want: "198.51.100.7"},
		{name: "rightmost public hop", remote: "10.0.0.5:443", xff: "1.1.1.1, 203.0.113.9, 10.0.0.9", want: "203.0.113.9"},
		{name: "all private hops", remote: "10.0.0.5:443", xff: "192.168.1.4, 10.0.0.9", want: "192.168.1.4"},
		{name: "garbage hop stops walk", remote: "10.0.0.5:443", xff: "203.0.113.9, not-an-ip", realIP: "198.51.100.7", want: "198.51.100.7"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			if tc.xff != "" {
				req.Header.Set("X-Forwarded-For", tc.xff)
			}
			if tc.realIP != "" {
				req.Header.Set("X-Real-IP", tc.realIP)
			}
			if got := clientIP(req); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
