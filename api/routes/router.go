package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/salesrank-backend/api/controllers"
	analyticscontrollers "github.com/angelmondragon/salesrank-backend/api/controllers/analytics"
	"github.com/angelmondragon/salesrank-backend/api/middleware"
	"github.com/angelmondragon/salesrank-backend/internal/analytics"
	"github.com/angelmondragon/salesrank-backend/pkg/config"
	"github.com/angelmondragon/salesrank-backend/pkg/logger"
)

// NewRouter wires the HTTP surface. limiter may be nil, which disables rate
// limiting; readiness holds the dependencies pinged by /health/ready.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	readiness map[string]controllers.Pinger,
	limiter middleware.RateLimitStore,
	gatherer prometheus.Gatherer,
	analyticsService analytics.Service,
	defaults analytics.Defaults,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Recoverer(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	rankingsPolicy := middleware.NewRateLimitPolicy("rankings", cfg.RateLimit.Window, cfg.RateLimit.IPLimit)

	r.Route("/api/v1/analytics", func(r chi.Router) {
		r.Use(middleware.RateLimit(rankingsPolicy, limiter, logg))
		r.Get("/rankings", analyticscontrollers.Rankings(analyticsService, defaults, logg))
	})

	return r
}
