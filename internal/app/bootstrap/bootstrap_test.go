package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/realty-ai-platform/internal/actions"
	appconfig "github.com/wolfman30/realty-ai-platform/internal/config"
	"github.com/wolfman30/realty-ai-platform/internal/crm"
	"github.com/wolfman30/realty-ai-platform/internal/notify"
	"github.com/wolfman30/realty-ai-platform/internal/tenancy"
	"github.com/wolfman30/realty-ai-platform/pkg/logging"
)

func testConfig() *appconfig.Config {
	return &appconfig.Config{
		DefaultTimezone:               "America/New_York",
		ActionPlanTTL:                 5 * time.Minute,
		NurtureSuggestionTTL:          24 * time.Hour,
		ClassifierConfidenceThreshold: 0.6,
		ClassifierLLMTimeout:          time.Second,
		ClassifierLLMRatePerSec:       5,
		ClassifierLLMBurst:            5,
	}
}

func TestBuildRedisClientDisabled(t *testing.T) {
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{}, nil, true))
	assert.Nil(t, BuildRedisClient(context.Background(), nil, nil, true))
}

func TestBuildRedisClientVerifies(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	cfg := &appconfig.Config{RedisAddr: mr.Addr()}

	client := BuildRedisClient(context.Background(), cfg, logging.New("error"), true)
	require.NotNil(t, client)
	t.Cleanup(func() { _ = client.Close() })

	mr.Close()
	assert.Nil(t, BuildRedisClient(context.Background(), cfg, logging.New("error"), true))
}

func TestBuildPostgresPoolEmptyURLReturnsNil(t *testing.T) {
	assert.Nil(t, BuildPostgresPool(context.Background(), "", logging.New("error")))
	assert.Nil(t, BuildPostgresPool(context.Background(), "postgres://realty@127.0.0.1:1/realty?connect_timeout=1", logging.New("error")))
}

func TestBuildRepositoryWithoutPoolIsInMemory(t *testing.T) {
	repo := BuildRepository(nil, logging.New("error"))
	_, ok := repo.(*crm.MemoryRepository)
	assert.True(t, ok, "expected in-memory repository, got %T", repo)
}

func TestBuildLLMClientUnconfigured(t *testing.T) {
	client, err := BuildLLMClient(context.Background(), testConfig(), aws.Config{}, logging.New("error"))
	require.NoError(t, err)
	assert.Nil(t, client)

	_, err = BuildLLMClient(context.Background(), nil, aws.Config{}, nil)
	assert.Error(t, err)
}

func TestBuildLLMClientBedrockOnly(t *testing.T) {
	cfg := testConfig()
	cfg.BedrockModelID = "anthropic.claude-3-haiku"

	client, err := BuildLLMClient(context.Background(), cfg, aws.Config{Region: "us-east-1"}, logging.New("error"))
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestBuildClassifierRulesOnly(t *testing.T) {
	classifier := BuildClassifier(testConfig(), nil, logging.New("error"), nil)

	got, err := classifier.Classify(context.Background(), "Mark John Doe as qualified", tenancy.Identity{AgentID: "agent-a"})
	require.NoError(t, err)
	assert.Equal(t, actions.IntentUpdateLeadStatus, got.Intent)
}

func TestBuildEmailSender(t *testing.T) {
	logger := logging.New("error")
	cases := []struct {
		name   string
		cfg    *appconfig.Config
		expect any
	}{
		{"nil config", nil, &notify.StubEmailSender{}},
		{"stub", &appconfig.Config{EmailProvider: "stub"}, &notify.StubEmailSender{}},
		{"sendgrid", &appconfig.Config{EmailProvider: "sendgrid", SendGridAPIKey: "SG.key", EmailFromAddress: "a@example.com"}, &notify.SendGridSender{}},
		{"sendgrid without key", &appconfig.Config{EmailProvider: "sendgrid"}, &notify.StubEmailSender{}},
		{"ses", &appconfig.Config{EmailProvider: "ses", EmailFromAddress: "a@example.com"}, &notify.SESSender{}},
		{"unknown", &appconfig.Config{EmailProvider: "carrier-pigeon"}, &notify.StubEmailSender{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sender := BuildEmailSender(tc.cfg, aws.Config{Region: "us-east-1"}, logger)
			require.NotNil(t, sender)
			assert.IsType(t, tc.expect, sender)
		})
	}
}

func TestBuildEngineValidates(t *testing.T) {
	_, _, err := BuildEngine(EngineOptions{})
	assert.Error(t, err)

	_, _, err = BuildEngine(EngineOptions{Config: testConfig()})
	assert.Error(t, err)

	cfg := testConfig()
	cfg.DefaultTimezone = "Mars/Olympus_Mons"
	_, _, err = BuildEngine(EngineOptions{Config: cfg, Repo: crm.NewMemoryRepository()})
	assert.ErrorContains(t, err, "default timezone")
}

func TestBuildEngineWithRedisPendingStore(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.RedisAddr = mr.Addr()
	logger := logging.New("error")

	repo := crm.NewMemoryRepository()
	repo.AddAgent(crm.Agent{ID: "agent-a", Name: "Ana", Timezone: "UTC"})
	lead := &crm.Lead{Name: "John Doe", Status: crm.StatusContacted, CreatedAt: time.Now().AddDate(0, -1, 0)}
	require.NoError(t, repo.CreateLead(context.Background(), crm.AgentScope("agent-a"), lead))

	redisClient := BuildRedisClient(context.Background(), cfg, logger, true)
	require.NotNil(t, redisClient)
	t.Cleanup(func() { _ = redisClient.Close() })

	engine, planner, err := BuildEngine(EngineOptions{
		Config:     cfg,
		Repo:       repo,
		Redis:      redisClient,
		Classifier: BuildClassifier(cfg, nil, logger, nil),
		Logger:     logger,
	})
	require.NoError(t, err)
	require.NotNil(t, planner)

	agent := tenancy.Identity{AgentID: "agent-a", Role: tenancy.RoleAgent}
	resp, err := engine.HandleUtterance(context.Background(), actions.Utterance{
		Text:       "Mark John Doe as qualified",
		SessionID:  "s1",
		Identity:   agent,
		ReceivedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, actions.KindConfirmationPrompt, resp.Kind)
	assert.True(t, mr.Exists("actions:pending:agent-a:s1"))

	resp, err = engine.ConfirmPending(context.Background(), "s1", agent, true)
	require.NoError(t, err)
	assert.Equal(t, actions.KindResult, resp.Kind)

	got, err := repo.GetLead(context.Background(), crm.AgentScope("agent-a"), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, crm.StatusQualified, got.Status)
	assert.False(t, mr.Exists("actions:pending:agent-a:s1"))
}
