package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/salesrank-backend/api/controllers"
	"github.com/angelmondragon/salesrank-backend/api/middleware"
	"github.com/angelmondragon/salesrank-backend/api/routes"
	"github.com/angelmondragon/salesrank-backend/internal/analytics"
	"github.com/angelmondragon/salesrank-backend/internal/analytics/query"
	"github.com/angelmondragon/salesrank-backend/internal/media"
	"github.com/angelmondragon/salesrank-backend/pkg/bigquery"
	"github.com/angelmondragon/salesrank-backend/pkg/config"
	"github.com/angelmondragon/salesrank-backend/pkg/db"
	"github.com/angelmondragon/salesrank-backend/pkg/enums"
	"github.com/angelmondragon/salesrank-backend/pkg/instance"
	"github.com/angelmondragon/salesrank-backend/pkg/logger"
	"github.com/angelmondragon/salesrank-backend/pkg/metrics"
	"github.com/angelmondragon/salesrank-backend/pkg/migrate"
	"github.com/angelmondragon/salesrank-backend/pkg/redis"
	"github.com/angelmondragon/salesrank-backend/pkg/storage/gcs"
	"github.com/angelmondragon/salesrank-backend/pkg/storage/s3"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		InstanceID:  instance.GetID(),
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(runCtx, cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	var closers closerStack
	defer func() {
		if err := closers.Close(); err != nil {
			logg.Error(context.Background(), "error closing dependencies", err)
		}
	}()

	readiness := map[string]controllers.Pinger{}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	closers.push("database", dbClient.Close)
	readiness["db"] = dbClient

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	var limiter middleware.RateLimitStore
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		closers.push("redis", redisClient.Close)
		readiness["redis"] = redisClient
		limiter = redisClient
	} else {
		logg.Warn(ctx, "redis not configured, rate limiting disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	pipelineMetrics := metrics.NewPipelineMetrics(registry)

	source, err := buildSource(ctx, cfg, dbClient, logg, &closers, readiness)
	if err != nil {
		return err
	}

	locator, err := buildLocator(ctx, cfg, logg, &closers, readiness)
	if err != nil {
		return err
	}

	enricher, err := media.NewEnricher(media.EnricherParams{
		Keys:           media.NewKeyScheme(cfg.Storage.ShardPrefixLen, cfg.Storage.FileExtension),
		Locator:        locator,
		TTL:            cfg.Storage.URLTTL,
		MaxConcurrency: cfg.Storage.MaxConcurrency,
		Logger:         logg,
		Metrics:        pipelineMetrics,
	})
	if err != nil {
		return err
	}

	service, err := analytics.NewService(analytics.ServiceParams{
		Source:   source,
		Enricher: enricher,
		Logger:   logg,
		Metrics:  pipelineMetrics,
	})
	if err != nil {
		return err
	}

	defaults := analytics.Defaults{
		Limit:            cfg.Ranking.DefaultLimit,
		Metric:           enums.RankingMetric(cfg.Ranking.DefaultMetric),
		IncludeZeroSales: cfg.Ranking.IncludeZeroSales,
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":       cfg.App.Env,
		"addr":      addr,
		"strategy":  locator.Strategy().String(),
		"aggregate": cfg.Ranking.Backend,
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, readiness, limiter, registry, service, defaults),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildSource(ctx context.Context, cfg *config.Config, dbClient *db.Client, logg *logger.Logger, closers *closerStack, readiness map[string]controllers.Pinger) (query.Source, error) {
	if !strings.EqualFold(strings.TrimSpace(cfg.Ranking.Backend), config.AggregateBackendBigQuery) {
		return query.NewSQLSource(dbClient.DB())
	}

	bq, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
	if err != nil {
		return nil, err
	}
	closers.push("bigquery", bq.Close)
	readiness["bigquery"] = bq

	return query.NewBigQuerySource(bq, cfg.BigQuery.ArticlesTable, cfg.BigQuery.TransactionsTable)
}

func buildLocator(ctx context.Context, cfg *config.Config, logg *logger.Logger, closers *closerStack, readiness map[string]controllers.Pinger) (media.Locator, error) {
	strategy, err := enums.ParseStorageStrategy(cfg.Storage.Strategy)
	if err != nil {
		return nil, err
	}

	locatorCfg := media.LocatorConfig{
		Strategy:      strategy,
		PublicBaseURL: cfg.Storage.PublicBaseURL,
		Bucket:        cfg.Storage.Bucket,
		DefaultTTL:    cfg.Storage.URLTTL,
	}

	if strategy == enums.StorageStrategyPresigned {
		switch strings.ToLower(strings.TrimSpace(cfg.Storage.Provider)) {
		case config.StorageProviderGCS:
			client, err := gcs.NewClient(ctx, cfg.Storage.Bucket, cfg.GCP, logg)
			if err != nil {
				return nil, err
			}
			closers.push("gcs", client.Close)
			readiness["storage"] = client
			locatorCfg.Signer = client
		default:
			client, err := s3.NewClient(ctx, cfg.Storage, logg)
			if err != nil {
				return nil, err
			}
			closers.push("s3", client.Close)
			readiness["storage"] = client
			locatorCfg.Signer = client
		}
	}

	return media.NewLocator(locatorCfg)
}
