package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/salesrank-backend/api/controllers"
	"github.com/angelmondragon/salesrank-backend/api/middleware"
	"github.com/angelmondragon/salesrank-backend/internal/analytics"
	"github.com/angelmondragon/salesrank-backend/internal/analytics/types"
	"github.com/angelmondragon/salesrank-backend/pkg/config"
	"github.com/angelmondragon/salesrank-backend/pkg/logger"
	"github.com/angelmondragon/salesrank-backend/pkg/metrics"
	"github.com/angelmondragon/salesrank-backend/pkg/redis"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubRankingService struct {
	calls int
}

func (s *stubRankingService) Rank(context.Context, types.RankingQuery) (*types.RankedLists, error) {
	return &types.RankedLists{}, nil
}

func (s *stubRankingService) RankAndEnrich(context.Context, types.RankingQuery) (*types.RankingResult, error) {
	s.calls++
	return &types.RankingResult{Top: []types.EnrichedEntity{}, Bottom: []types.EnrichedEntity{}}, nil
}

type countingLimiter struct {
	count int64
}

func (c *countingLimiter) FixedWindow(_ context.Context, _ string, limit int64, window time.Duration) (redis.Window, error) {
	c.count++
	return redis.Window{Allowed: c.count <= limit, Count: c.count, Limit: limit, ResetIn: window}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App:       config.AppConfig{Env: "dev", CORSOrigins: []string{"http://localhost:3000"}},
		RateLimit: config.RateLimitConfig{Window: time.Minute, IPLimit: 1},
	}
}

func newTestRouter(t *testing.T, svc analytics.Service, limiter *countingLimiter) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics.NewPipelineMetrics(reg)

	var store middleware.RateLimitStore
	if limiter != nil {
		store = limiter
	}
	return NewRouter(
		testConfig(),
		logger.New(logger.Options{ServiceName: "test"}),
		map[string]controllers.Pinger{"db": stubPinger{}},
		store,
		reg,
		svc,
		analytics.DefaultDefaults(),
	)
}

func TestRouterServesRankings(t *testing.T) {
	svc := &stubRankingService{}
	router := newTestRouter(t, svc, nil)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/rankings?productTypeName=Vest%20top", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if svc.calls != 1 {
		t.Fatalf("expected one service call, got %d", svc.calls)
	}
	if resp.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected request id header")
	}
}

func TestRouterRateLimitsRankings(t *testing.T) {
	svc := &stubRankingService{}
	router := newTestRouter(t, svc, &countingLimiter{})

	codes := []int{}
	for i := 0; i < 2; i++ {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/rankings?productTypeNo=253", nil))
		codes = append(codes, resp.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("health should not be rate limited, got %d", resp.Code)
	}
}

func TestRouterHealthAndMetrics(t *testing.T) {
	router := newTestRouter(t, &stubRankingService{}, nil)

	for _, path := range []string{"/health/live", "/health/ready"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: unexpected status %d", path, resp.Code)
		}
	}

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected metrics status %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "ranking_failures_total") {
		t.Fatalf("expected pipeline metrics in exposition, got %s", resp.Body.String())
	}
}

func TestRouterUnknownRoute(t *testing.T) {
	router := newTestRouter(t, &stubRankingService{}, nil)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/analytics/rankings", nil))
	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.Code)
	}
}
