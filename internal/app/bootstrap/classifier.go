package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/wolfman30/realty-ai-platform/internal/actions"
	appconfig "github.com/wolfman30/realty-ai-platform/internal/config"
	"github.com/wolfman30/realty-ai-platform/internal/llm"
	"github.com/wolfman30/realty-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/realty-ai-platform/pkg/logging"
)

// BuildLLMClient wires Bedrock as the primary model and Gemini as the
// fallback, behind a shared rate limit. It returns nil when neither provider
// is configured.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (llm.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var primary, fallback llm.Client
	if model := strings.TrimSpace(cfg.BedrockModelID); model != "" {
		primary = llm.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg), model)
		logger.Info("bedrock classifier model configured", "model", model)
	}
	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: gemini client: %w", err)
		}
		fallback = gemini
		logger.Info("gemini classifier model configured", "model", cfg.GeminiModelID)
	}

	var client llm.Client
	switch {
	case primary != nil && fallback != nil:
		client = llm.NewFallbackClient(primary, fallback, logger)
	case primary != nil:
		client = primary
	case fallback != nil:
		client = fallback
	default:
		logger.Warn("no LLM configured; intent classification is rule-based only")
		return nil, nil
	}
	return llm.NewRateLimitedClient(client, cfg.ClassifierLLMRatePerSec, cfg.ClassifierLLMBurst), nil
}

// BuildClassifier returns the hybrid rule/LLM classifier. A nil client leaves
// the rules as the only source.
func BuildClassifier(cfg *appconfig.Config, client llm.Client, logger *logging.Logger, m *metrics.ActionMetrics) *actions.HybridClassifier {
	var fallback actions.Classifier
	if client != nil {
		fallback = actions.NewLLMClassifier(client, "")
	}
	hybrid := actions.HybridConfig{}
	if cfg != nil {
		hybrid.Threshold = cfg.ClassifierConfidenceThreshold
		hybrid.Timeout = cfg.ClassifierLLMTimeout
	}
	return actions.NewHybridClassifier(actions.NewRuleClassifier(), fallback, hybrid, logger, m)
}
