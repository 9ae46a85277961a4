package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
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
	"github.com/wolfman30/realty-ai-platform/internal/app/bootstrap"
	appconfig "github.com/wolfman30/realty-ai-platform/internal/config"
	"github.com/wolfman30/realty-ai-platform/internal/notify"
	"github.com/wolfman30/realty-ai-platform/internal/nurture"
	"github.com/wolfman30/realty-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/realty-ai-platform/pkg/logging"
)

func main() {
	once := flag.Bool("once", false, "run a single nurture scan and exit")
	metricsAddr := flag.String("metrics-addr", ":9091", "address for the /metrics listener (empty disables it)")
	flag.Parse()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting nurture worker",
		"env", cfg.Env,
		"schedule", cfg.NurtureSchedule,
		"once", *once,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := bootstrap.BuildPostgresPool(ctx, cfg.DatabaseURL, logger)
	if pool == nil {
		// An in-memory repository has no leads to scan.
		logger.Error("DATABASE_URL is required for the nurture worker")
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient == nil {
		// Suggestions must land in the store the API reads from.
		logger.Error("REDIS_ADDR is required for the nurture worker")
		os.Exit(1)
	}
	defer func() { _ = redisClient.Close() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	runner, err := buildRunner(ctx, cfg, pool, redisClient, reg, logger)
	if err != nil {
		logger.Error("failed to build nurture runner", "error", err)
		os.Exit(1)
	}

	if *once {
		report, err := runner.RunOnce(ctx)
		_ = json.NewEncoder(os.Stdout).Encode(report)
		if err != nil {
			logger.Error("nurture scan failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if *metricsAddr != "" {
		srv := &http.Server{
			Addr:              *metricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics listener failed", "error", err)
			}
		}()
		defer func() { _ = srv.Close() }()
	}

	logger.Info("nurture worker scheduled", "next_run", runner.Next(time.Now()))
	if err := runner.Start(ctx); err != nil {
		logger.Error("nurture runner stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("nurture worker stopped")
}

func buildRunner(ctx context.Context, cfg *appconfig.Config, pool *pgxpool.Pool, redisClient *redis.Client, reg prometheus.Registerer, logger *logging.Logger) (*nurture.Runner, error) {
	loc, err := time.LoadLocation(cfg.DefaultTimezone)
	if err != nil {
		return nil, fmt.Errorf("default timezone %q: %w", cfg.DefaultTimezone, err)
	}
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	repo := bootstrap.BuildRepository(pool, logger)
	engine, planner, err := bootstrap.BuildEngine(bootstrap.EngineOptions{
		Config:  cfg,
		Repo:    repo,
		Redis:   redisClient,
		Logger:  logger,
		Metrics: metrics.NewActionMetrics(reg),
	})
	if err != nil {
		return nil, err
	}

	notifier := notify.NewService(bootstrap.BuildEmailSender(cfg, awsCfg, logger), logger)
	scheduler := nurture.NewScheduler(repo, planner, engine, notifier, nurture.Config{
		StaleAfter:  cfg.NurtureStaleAfter,
		Concurrency: cfg.NurtureConcurrency,
		BatchLimit:  cfg.NurtureBatchLimit,
	}, logger, metrics.NewNurtureMetrics(reg))

	return nurture.NewRunner(scheduler, cfg.NurtureSchedule, loc, logger)
}
