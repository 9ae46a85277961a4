package actions

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/wolfman30/realty-ai-platform/internal/crm"
	"github.com/wolfman30/realty-ai-platform/internal/llm"
	"github.com/wolfman30/realty-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/realty-ai-platform/internal/tenancy"
	"github.com/wolfman30/realty-ai-platform/pkg/logging"
)

// Classifier maps an utterance onto an intent. The identity is passed for
// future personalization and is not used to decide the intent.
type Classifier interface {
	Classify(ctx context.Context, text string, id tenancy.Identity) (Classification, error)
}

type intentRule struct {
	intent     Intent
	confidence float64
	re         *regexp.Regexp
	needsDate  bool
}

var statusWord = func() string {
	phrases := crm.StatusPhrases()
	quoted := make([]string, len(phrases))
	for i, p := range phrases {
		quoted[i] = strings.ReplaceAll(regexp.QuoteMeta(p), " ", `[\s_-]+`)
	}
	return `(?:` + strings.Join(quoted, "|") + `)`
}()

var intentRules = []intentRule{
	{IntentUpdateLeadStatus, 0.9, regexp.MustCompile(`(?i)\b(?:update|change|set|move|mark|switch)\b.*\b(?:status|stage)\b`), false},
	{IntentUpdateLeadStatus, 0.85, regexp.MustCompile(`(?i)\bmark\b.+\bas\b\s+` + statusWord + `\b`), false},
	{IntentUpdateLeadStatus, 0.85, regexp.MustCompile(`(?i)\b(?:move|set|change|update|switch|put)\b.+\b(?:to|into)\s+` + statusWord + `\s*[.!]?$`), false},
	{IntentUpdateLeadStatus, 0.7, regexp.MustCompile(`(?i)\b(?:is now|has become|became)\s+` + statusWord + `\s*[.!]?$`), false},

	{IntentLogInteraction, 0.9, regexp.MustCompile(`(?i)\b(?:log|record|note)\b.*\b(?:call|meeting|viewing|showing|email|interaction|conversation|chat)\b`), false},
	{IntentLogInteraction, 0.85, regexp.MustCompile(`(?i)\b(?:add|make|jot down|save)\s+(?:a\s+)?note\b`), false},
	{IntentLogInteraction, 0.8, regexp.MustCompile(`(?i)^(?:i\s+)?(?:just\s+)?(?:called|phoned|emailed|met with|showed|toured|spoke (?:to|with)|talked (?:to|with))\b`), false},
	{IntentLogInteraction, 0.8, regexp.MustCompile(`(?i)^note\b`), false},

	{IntentScheduleFollowUp, 0.9, regexp.MustCompile(`(?i)\b(?:schedule|book|set up|arrange|add)\b.*\b(?:follow[\s-]?up|meeting|call|appointment|viewing|showing|reminder)\b`), false},
	{IntentScheduleFollowUp, 0.85, regexp.MustCompile(`(?i)\bremind me\b`), false},
	{IntentScheduleFollowUp, 0.8, regexp.MustCompile(`(?i)\b(?:follow[\s-]?up|check in|reach out)\s+(?:with|to)\b`), true},
}

var reQuestion = regexp.MustCompile(`(?i)^(?:what|who|whom|which|when|where|why|how|show|list|tell|find|give|do|does|did|is|are|can|could)\b|\?\s*$`)

// RuleClassifier scores utterances with keyword patterns. It never errors.
type RuleClassifier struct{}

func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{}
}

func (c *RuleClassifier) Classify(ctx context.Context, text string, id tenancy.Identity) (Classification, error) {
	text = strings.TrimSpace(text)
	best := Classification{Intent: IntentNone, Source: SourceRule}
	for _, rule := range intentRules {
		if rule.confidence <= best.Confidence || !rule.re.MatchString(text) {
			continue
		}
		if rule.needsDate && !HasDateCue(text) {
			continue
		}
		best.Intent = rule.intent
		best.Confidence = rule.confidence
	}
	// Questions about leads are informational even when they mention actions.
	if best.Intent != IntentNone && reQuestion.MatchString(text) {
		best.Confidence /= 2
	}
	return best, nil
}

const classifierPrompt = `You classify messages a real-estate agent types into their CRM assistant.
Return only JSON: {"intent": "<intent>", "confidence": <0..1>}
Intents:
- update_lead_status: change a lead's pipeline status (new, contacted, qualified, negotiating, closed won, closed lost, follow up)
- log_interaction: record a call, meeting, viewing, email or note that already happened with a lead
- schedule_follow_up: schedule a future follow-up, reminder or appointment with a lead
- none: a question or anything that is not one of the actions above`

// LLMClassifier asks a language model for the intent.
type LLMClassifier struct {
	client llm.Client
	model  string
}

func NewLLMClassifier(client llm.Client, model string) *LLMClassifier {
	return &LLMClassifier{client: client, model: model}
}

func (c *LLMClassifier) Classify(ctx context.Context, text string, id tenancy.Identity) (Classification, error) {
	if c.client == nil {
		return Classification{}, errors.New("actions: llm classifier has no client")
	}
	resp, err := c.client.Complete(ctx, llm.Request{
		Model:       c.model,
		System:      []string{classifierPrompt},
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: text}},
		MaxTokens:   64,
		Temperature: 0,
	})
	if err != nil {
		return Classification{}, fmt.Errorf("actions: llm classify: %w", err)
	}

	var parsed struct {
		Intent     string  `json:"intent"`
		Confidence float64 `json:"confidence"`
	}
	if err := llm.DecodeJSON(resp.Text, &parsed); err != nil {
		return Classification{}, fmt.Errorf("actions: llm classify: %w", err)
	}
	intent, ok := ParseIntent(parsed.Intent)
	if !ok {
		return Classification{}, fmt.Errorf("actions: llm returned unknown intent %q", parsed.Intent)
	}
	return Classification{Intent: intent, Confidence: clamp01(parsed.Confidence), Source: SourceLLM}, nil
}

// HybridClassifier accepts confident rule matches and otherwise consults the
// LLM classifier under a timeout. Any LLM failure degrades to IntentNone.
type HybridClassifier struct {
	rules     Classifier
	llm       Classifier
	threshold float64
	timeout   time.Duration
	logger    *logging.Logger
	metrics   *metrics.ActionMetrics
}

type HybridConfig struct {
	Threshold float64
	Timeout   time.Duration
}

// NewHybridClassifier wires rules with an optional LLM fallback (nil disables it).
func NewHybridClassifier(rules, fallback Classifier, cfg HybridConfig, logger *logging.Logger, m *metrics.ActionMetrics) *HybridClassifier {
	if rules == nil {
		rules = NewRuleClassifier()
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.6
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	return &HybridClassifier{
		rules:     rules,
		llm:       fallback,
		threshold: cfg.Threshold,
		timeout:   cfg.Timeout,
		logger:    logger,
		metrics:   m,
	}
}

func (c *HybridClassifier) Classify(ctx context.Context, text string, id tenancy.Identity) (Classification, error) {
	result := c.classify(ctx, text, id)
	c.metrics.ObserveClassification(string(result.Intent), string(result.Source))
	return result, nil
}

func (c *HybridClassifier) classify(ctx context.Context, text string, id tenancy.Identity) Classification {
	rule, err := c.rules.Classify(ctx, text, id)
	if err == nil && rule.Intent.IsAction() && rule.Confidence >= c.threshold {
		return rule
	}
	none := Classification{Intent: IntentNone, Confidence: rule.Confidence, Source: SourceRule}
	if c.llm == nil {
		return none
	}

	llmCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	res, err := c.llm.Classify(llmCtx, text, id)
	if err != nil {
		c.logger.Warn("llm classification unavailable, treating as no action",
			"agent_id", id.AgentID,
			"error", err,
			"timed_out", errors.Is(err, context.DeadlineExceeded) || errors.Is(llmCtx.Err(), context.DeadlineExceeded),
		)
		return Classification{Intent: IntentNone, Source: SourceFallback}
	}
	if !res.Intent.IsAction() || res.Confidence < c.threshold {
		return Classification{Intent: IntentNone, Confidence: res.Confidence, Source: SourceLLM}
	}
	return res
}
