package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/realty-ai-platform/cmd/mainconfig"
	"github.com/wolfman30/realty-ai-platform/internal/actions"
	"github.com/wolfman30/realty-ai-platform/internal/api/router"
	"github.com/wolfman30/realty-ai-platform/internal/app/bootstrap"
	appconfig "github.com/wolfman30/realty-ai-platform/internal/config"
	httpmiddleware "github.com/wolfman30/realty-ai-platform/internal/http/middleware"
	"github.com/wolfman30/realty-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/realty-ai-platform/pkg/logging"
)

const rateLimiterIdle = 10 * time.Minute

func main() {
	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting realty-ai-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)
	if cfg.AgentJWTSecret == "" {
		logger.Error("AGENT_JWT_SECRET is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := bootstrap.BuildPostgresPool(ctx, cfg.DatabaseURL, logger)
	if pool != nil {
		defer pool.Close()
	}
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	metricsHandler, actionMetrics := setupMetrics()
	limiter := httpmiddleware.NewRateLimiter(cfg.ChatRatePerSec, cfg.ChatBurst)
	go evictIdleBuckets(ctx, limiter)

	chatHandler, err := buildChatHandler(ctx, cfg, pool, redisClient, actionMetrics, logger)
	if err != nil {
		logger.Error("failed to build chat engine", "error", err)
		os.Exit(1)
	}

	// Setup router
	r := router.New(&router.Config{
		Logger:             logger,
		ChatHandler:        chatHandler,
		AgentJWTSecret:     cfg.AgentJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        limiter,
		MetricsHandler:     metricsHandler,
		HealthChecks:       healthChecks(pool, redisClient),
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// setupMetrics registers process and action metrics on a private registry.
func setupMetrics() (http.Handler, *metrics.ActionMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	actionMetrics := metrics.NewActionMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), actionMetrics
}

func buildChatHandler(ctx context.Context, cfg *appconfig.Config, pool *pgxpool.Pool, redisClient *redis.Client, m *metrics.ActionMetrics, logger *logging.Logger) (*actions.Handler, error) {
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	llmClient, err := bootstrap.BuildLLMClient(ctx, cfg, awsCfg, logger)
	if err != nil {
		return nil, err
	}

	engine, _, err := bootstrap.BuildEngine(bootstrap.EngineOptions{
		Config:     cfg,
		Repo:       bootstrap.BuildRepository(pool, logger),
		Redis:      redisClient,
		Classifier: bootstrap.BuildClassifier(cfg, llmClient, logger, m),
		Logger:     logger,
		Metrics:    m,
	})
	if err != nil {
		return nil, err
	}
	return actions.NewHandler(engine, logger), nil
}

func healthChecks(pool *pgxpool.Pool, redisClient *redis.Client) map[string]router.HealthCheck {
	checks := map[string]router.HealthCheck{}
	if pool != nil {
		checks["postgres"] = pool.Ping
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	return checks
}

func evictIdleBuckets(ctx context.Context, limiter *httpmiddleware.RateLimiter) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			limiter.Evict(now.Add(-rateLimiterIdle))
		}
	}
}
