package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("BEDROCK_MODEL_ID", "")
	t.Setenv("ACTION_PLAN_TTL", "")
	t.Setenv("CLASSIFIER_CONFIDENCE_THRESHOLD", "")
	t.Setenv("NURTURE_SCHEDULE", "")
	t.Setenv("NURTURE_STALE_AFTER", "")
	t.Setenv("EMAIL_PROVIDER", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.BedrockModelID != "" {
		t.Fatalf("expected default bedrock model empty, got %s", cfg.BedrockModelID)
	}
	if cfg.ActionPlanTTL != 5*time.Minute {
		t.Fatalf("expected 5m plan ttl, got %s", cfg.ActionPlanTTL)
	}
	if cfg.ClassifierConfidenceThreshold != 0.6 {
		t.Fatalf("expected 0.6 threshold, got %v", cfg.ClassifierConfidenceThreshold)
	}
	if cfg.NurtureSchedule != "0 8 * * *" {
		t.Fatalf("unexpected nurture schedule %q", cfg.NurtureSchedule)
	}
	if cfg.NurtureStaleAfter != 14*24*time.Hour {
		t.Fatalf("unexpected stale threshold %s", cfg.NurtureStaleAfter)
	}
	if cfg.EmailProvider != "stub" {
		t.Fatalf("expected stub email provider, got %s", cfg.EmailProvider)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("REDIS_TLS", "true")
	t.Setenv("CLASSIFIER_CONFIDENCE_THRESHOLD", "0.75")
	t.Setenv("CLASSIFIER_LLM_TIMEOUT", "1500ms")
	t.Setenv("ACTION_PLAN_TTL", "10m")
	t.Setenv("NURTURE_CONCURRENCY", "8")
	t.Setenv("EMAIL_PROVIDER", " SendGrid ")

	cfg := Load()
	if cfg.Port != "9090" || cfg.Env != "production" || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected basic overrides: %#v", cfg)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("unexpected database url %s", cfg.DatabaseURL)
	}
	if !cfg.RedisTLS {
		t.Fatalf("expected redis tls enabled")
	}
	if cfg.ClassifierConfidenceThreshold != 0.75 {
		t.Fatalf("unexpected threshold %v", cfg.ClassifierConfidenceThreshold)
	}
	if cfg.ClassifierLLMTimeout != 1500*time.Millisecond {
		t.Fatalf("unexpected llm timeout %s", cfg.ClassifierLLMTimeout)
	}
	if cfg.ActionPlanTTL != 10*time.Minute {
		t.Fatalf("unexpected plan ttl %s", cfg.ActionPlanTTL)
	}
	if cfg.NurtureConcurrency != 8 {
		t.Fatalf("unexpected concurrency %d", cfg.NurtureConcurrency)
	}
	if cfg.EmailProvider != "sendgrid" {
		t.Fatalf("expected normalized provider, got %q", cfg.EmailProvider)
	}
}

func TestInvalidValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("NURTURE_BATCH_LIMIT", "lots")
	t.Setenv("NURTURE_SUGGESTION_TTL", "a day")
	t.Setenv("CLASSIFIER_LLM_RATE_PER_SEC", "fast")

	cfg := Load()
	if cfg.NurtureBatchLimit != 50 {
		t.Fatalf("expected default batch limit, got %d", cfg.NurtureBatchLimit)
	}
	if cfg.NurtureSuggestionTTL != 24*time.Hour {
		t.Fatalf("expected default suggestion ttl, got %s", cfg.NurtureSuggestionTTL)
	}
	if cfg.ClassifierLLMRatePerSec != 5 {
		t.Fatalf("expected default rate, got %v", cfg.ClassifierLLMRatePerSec)
	}
}

func TestLoadCORSOrigins(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://app.example.com, ,https://admin.example.com ")
	t.Setenv("CHAT_BURST", "")

	cfg := Load()
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("expected 2 origins, got %v", cfg.CORSAllowedOrigins)
	}
	if cfg.CORSAllowedOrigins[0] != "https://app.example.com" || cfg.CORSAllowedOrigins[1] != "https://admin.example.com" {
		t.Fatalf("unexpected origins %v", cfg.CORSAllowedOrigins)
	}
	if cfg.ChatBurst != 10 {
		t.Fatalf("expected default chat burst, got %d", cfg.ChatBurst)
	}
}
