package bootstrap

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/realty-ai-platform/internal/actions"
	appconfig "github.com/wolfman30/realty-ai-platform/internal/config"
	"github.com/wolfman30/realty-ai-platform/internal/crm"
	"github.com/wolfman30/realty-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/realty-ai-platform/pkg/logging"
)

// EngineOptions carries the shared dependencies of the action engine.
type EngineOptions struct {
	Config     *appconfig.Config
	Repo       crm.Repository
	Redis      *redis.Client
	Classifier actions.Classifier
	Logger     *logging.Logger
	Metrics    *metrics.ActionMetrics
	Now        func() time.Time
}

// BuildEngine wires planner, confirmation state machine and executor into an
// engine. The planner is returned as well so the nurture scheduler can share it.
func BuildEngine(opts EngineOptions) (*actions.Engine, *actions.Planner, error) {
	if opts.Config == nil {
		return nil, nil, fmt.Errorf("bootstrap: config is required")
	}
	if opts.Repo == nil {
		return nil, nil, fmt.Errorf("bootstrap: repository is required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	loc, err := time.LoadLocation(opts.Config.DefaultTimezone)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: default timezone %q: %w", opts.Config.DefaultTimezone, err)
	}

	var store actions.PendingStore
	if opts.Redis != nil {
		store = actions.NewRedisPendingStore(opts.Redis, nil)
	} else {
		opts.Logger.Warn("redis not configured; pending plans are kept in process memory")
		store = actions.NewMemoryPendingStore()
	}

	planner := actions.NewPlanner(opts.Repo, actions.NewDateTimeResolver(), actions.PlannerConfig{
		TTL:             opts.Config.ActionPlanTTL,
		NurtureTTL:      opts.Config.NurtureSuggestionTTL,
		DefaultLocation: loc,
		Now:             opts.Now,
	})
	engine := actions.NewEngine(actions.EngineDeps{
		Classifier: opts.Classifier,
		Extractor:  actions.NewRuleExtractor(),
		Planner:    planner,
		Machine:    actions.NewConfirmationStateMachine(store, opts.Now, opts.Logger, opts.Metrics),
		Executor:   actions.NewExecutor(opts.Repo, opts.Now, opts.Logger, opts.Metrics),
		Logger:     opts.Logger,
		Metrics:    opts.Metrics,
	})
	return engine, planner, nil
}
