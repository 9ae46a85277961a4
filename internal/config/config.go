package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// LLM-assisted intent classification
	BedrockModelID                string
	GeminiAPIKey                  string
	GeminiModelID                 string
	ClassifierConfidenceThreshold float64
	ClassifierLLMTimeout          time.Duration
	ClassifierLLMRatePerSec       float64
	ClassifierLLMBurst            int

	// Confirmation and date resolution
	ActionPlanTTL   time.Duration
	DefaultTimezone string

	// Nurture scheduler
	NurtureSchedule      string
	NurtureStaleAfter    time.Duration
	NurtureSuggestionTTL time.Duration
	NurtureConcurrency   int
	NurtureBatchLimit    int

	// Chat API
	AgentJWTSecret     string
	CORSAllowedOrigins []string
	ChatRatePerSec     float64
	ChatBurst          int

	// Nurture digest email
	EmailProvider    string
	SendGridAPIKey   string
	EmailFromAddress string
	EmailFromName    string
}

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first when present; real environment values win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		BedrockModelID:                getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:                  getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:                 getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		ClassifierConfidenceThreshold: getEnvAsFloat("CLASSIFIER_CONFIDENCE_THRESHOLD", 0.6),
		ClassifierLLMTimeout:          getEnvAsDuration("CLASSIFIER_LLM_TIMEOUT", 3*time.Second),
		ClassifierLLMRatePerSec:       getEnvAsFloat("CLASSIFIER_LLM_RATE_PER_SEC", 5),
		ClassifierLLMBurst:            getEnvAsInt("CLASSIFIER_LLM_BURST", 10),

		ActionPlanTTL:   getEnvAsDuration("ACTION_PLAN_TTL", 5*time.Minute),
		DefaultTimezone: getEnv("DEFAULT_TIMEZONE", "America/New_York"),

		NurtureSchedule:      getEnv("NURTURE_SCHEDULE", "0 8 * * *"),
		NurtureStaleAfter:    getEnvAsDuration("NURTURE_STALE_AFTER", 14*24*time.Hour),
		NurtureSuggestionTTL: getEnvAsDuration("NURTURE_SUGGESTION_TTL", 24*time.Hour),
		NurtureConcurrency:   getEnvAsInt("NURTURE_CONCURRENCY", 4),
		NurtureBatchLimit:    getEnvAsInt("NURTURE_BATCH_LIMIT", 50),

		AgentJWTSecret:     getEnv("AGENT_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		ChatRatePerSec:     getEnvAsFloat("CHAT_RATE_PER_SEC", 2),
		ChatBurst:          getEnvAsInt("CHAT_BURST", 10),

		EmailProvider:    strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "stub"))),
		SendGridAPIKey:   getEnv("SENDGRID_API_KEY", ""),
		EmailFromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),
		EmailFromName:    getEnv("EMAIL_FROM_NAME", "Realty Assistant"),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
