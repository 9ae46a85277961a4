package main

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/realty-ai-platform/internal/config"
	"github.com/wolfman30/realty-ai-platform/pkg/logging"
)

func workerConfig() *appconfig.Config {
	return &appconfig.Config{
		AWSRegion:          "us-east-1",
		AWSAccessKeyID:     "test",
		AWSSecretAccessKey: "test",
		DefaultTimezone:    "America/New_York",
		ActionPlanTTL:      5 * time.Minute,
		NurtureSchedule:    "0 8 * * *",
		NurtureStaleAfter:  14 * 24 * time.Hour,
		NurtureConcurrency: 2,
		NurtureBatchLimit:  10,
		EmailProvider:      "stub",
	}
}

func workerDeps(t *testing.T) (*pgxpool.Pool, *redis.Client) {
	t.Helper()
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	// The pool connects lazily, so no database is needed to wire the runner.
	pool, err := pgxpool.New(context.Background(), "postgres://realty@127.0.0.1:1/realty")
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return pool, client
}

func TestBuildRunner(t *testing.T) {
	pool, client := workerDeps(t)

	runner, err := buildRunner(context.Background(), workerConfig(), pool, client, prometheus.NewRegistry(), logging.New("error"))
	require.NoError(t, err)

	from := time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 16, 13, 0, 0, 0, time.UTC), runner.Next(from).UTC())
}

func TestBuildRunnerRejectsBadConfig(t *testing.T) {
	pool, client := workerDeps(t)

	cfg := workerConfig()
	cfg.NurtureSchedule = "every morning"
	_, err := buildRunner(context.Background(), cfg, pool, client, prometheus.NewRegistry(), logging.New("error"))
	assert.ErrorContains(t, err, "parse schedule")

	cfg = workerConfig()
	cfg.DefaultTimezone = "Nowhere/Special"
	_, err = buildRunner(context.Background(), cfg, pool, client, prometheus.NewRegistry(), logging.New("error"))
	assert.ErrorContains(t, err, "default timezone")
}
