package actions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/realty-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/realty-ai-platform/internal/tenancy"
	"github.com/wolfman30/realty-ai-platform/pkg/logging"
)

// Utterance is one message typed by an authenticated agent.
type Utterance struct {
	Text       string
	SessionID  string
	Identity   tenancy.Identity
	ReceivedAt time.Time
}

type ResponseKind string

const (
	KindConfirmationPrompt ResponseKind = "confirmation_prompt"
	KindResult             ResponseKind = "result"
	KindClarification      ResponseKind = "clarification_needed"
	KindPassthrough        ResponseKind = "passthrough"
	KindCancelled          ResponseKind = "cancelled"
	KindNothingPending     ResponseKind = "nothing_pending"
	KindError              ResponseKind = "error"
)

// Response is what the chat surface renders for a turn.
type Response struct {
	Kind      ResponseKind  `json:"kind"`
	Message   string        `json:"message,omitempty"`
	Summary   string        `json:"summary,omitempty"`
	PlanID    string        `json:"plan_id,omitempty"`
	Code      Code          `json:"code,omitempty"`
	ExpiresAt *time.Time    `json:"expires_at,omitempty"`
	Result    *ActionResult `json:"result,omitempty"`
}

// Engine wires the classification, planning, confirmation and execution steps.
type Engine struct {
	classifier Classifier
	extractor  EntityExtractor
	planner    *Planner
	machine    *ConfirmationStateMachine
	executor   *Executor
	logger     *logging.Logger
	metrics    *metrics.ActionMetrics
}

type EngineDeps struct {
	Classifier Classifier
	Extractor  EntityExtractor
	Planner    *Planner
	Machine    *ConfirmationStateMachine
	Executor   *Executor
	Logger     *logging.Logger
	Metrics    *metrics.ActionMetrics
}

func NewEngine(deps EngineDeps) *Engine {
	if deps.Planner == nil || deps.Machine == nil || deps.Executor == nil {
		panic("actions: planner, confirmation machine and executor are required")
	}
	if deps.Classifier == nil {
		deps.Classifier = NewRuleClassifier()
	}
	if deps.Extractor == nil {
		deps.Extractor = NewRuleExtractor()
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	return &Engine{
		classifier: deps.Classifier,
		extractor:  deps.Extractor,
		planner:    deps.Planner,
		machine:    deps.Machine,
		executor:   deps.Executor,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
	}
}

// HandleUtterance runs one chat turn. Recoverable problems come back as a
// clarification response; the returned error is reserved for execution and
// infrastructure failures.
func (e *Engine) HandleUtterance(ctx context.Context, u Utterance) (Response, error) {
	if !u.Identity.Valid() || strings.TrimSpace(u.SessionID) == "" {
		return Response{}, errors.New("actions: utterance requires an agent identity and session id")
	}
	log := e.logger.With("session_id", u.SessionID, "agent_id", u.Identity.AgentID)
	log.Debug("utterance received", "length", len(u.Text))

	if accept, ok := ParseReply(u.Text); ok {
		if pending, err := e.machine.holds(ctx, u.SessionID, u.Identity.AgentID); err != nil {
			return Response{}, err
		} else if pending {
			return e.ConfirmPending(ctx, u.SessionID, u.Identity, accept)
		}
	}

	cls, err := e.classifier.Classify(ctx, u.Text, u.Identity)
	if err != nil {
		log.Warn("classification failed, passing through", "error", err)
		return Response{Kind: KindPassthrough}, nil
	}
	if !cls.Intent.IsAction() {
		return Response{Kind: KindPassthrough}, nil
	}
	log = log.With("intent", cls.Intent)

	slots, err := e.extractor.Extract(u.Text, cls.Intent)
	if err != nil {
		return e.clarify(log, cls.Intent, err)
	}
	plan, err := e.planner.Plan(ctx, cls.Intent, slots, u.Identity)
	if err != nil {
		return e.clarify(log, cls.Intent, err)
	}
	e.metrics.ObservePlan(string(cls.Intent), "planned")
	return e.SurfacePlan(ctx, u.SessionID, plan)
}

// SurfacePlan makes plan the session's pending plan and returns the prompt.
// Nurture suggestions enter the conversation through here.
func (e *Engine) SurfacePlan(ctx context.Context, sessionID string, plan ActionPlan) (Response, error) {
	prompt, err := e.machine.Propose(ctx, sessionID, plan)
	if err != nil {
		return Response{}, err
	}
	return promptResponse(prompt.Plan), nil
}

// ConfirmPending resolves the session's pending plan and executes it when accepted.
func (e *Engine) ConfirmPending(ctx context.Context, sessionID string, id tenancy.Identity, accept bool) (Response, error) {
	decision, err := e.machine.Resolve(ctx, sessionID, id, accept)
	switch {
	case errors.Is(err, ErrNoPendingPlan):
		return Response{Kind: KindNothingPending, Message: "There's nothing waiting for confirmation."}, nil
	case err != nil:
		if c, ok := Clarify(err); ok {
			return Response{Kind: KindClarification, Code: c.Code, Message: c.Message, PlanID: decision.Plan.ID}, nil
		}
		return Response{}, err
	}

	if decision.Outcome == OutcomeDeclined {
		return Response{Kind: KindCancelled, Message: "Okay, I won't do that.", PlanID: decision.Plan.ID}, nil
	}

	result, err := e.executor.Execute(ctx, *decision.Confirmed)
	if err != nil {
		return Response{
			Kind:    KindError,
			Code:    CodeExecutionFailed,
			Message: "Sorry, I couldn't complete that. Nothing was changed.",
			PlanID:  decision.Plan.ID,
		}, err
	}
	return Response{Kind: KindResult, Message: result.Message, PlanID: result.PlanID, Result: &result}, nil
}

// Pending reports the caller's pending prompt in the session, if any.
func (e *Engine) Pending(ctx context.Context, sessionID string, id tenancy.Identity) (Response, error) {
	plan, ok, err := e.machine.Pending(ctx, sessionID, id.AgentID)
	if err != nil {
		return Response{}, err
	}
	if !ok {
		return Response{Kind: KindNothingPending}, nil
	}
	return promptResponse(plan), nil
}

// Suggestion is a live nurture plan waiting in its own session.
type Suggestion struct {
	SessionID   string    `json:"session_id"`
	PlanID      string    `json:"plan_id"`
	LeadID      string    `json:"lead_id"`
	LeadName    string    `json:"lead_name"`
	Summary     string    `json:"summary"`
	ScheduledAt time.Time `json:"scheduled_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Suggestions lists the caller's unexpired nurture suggestions.
func (e *Engine) Suggestions(ctx context.Context, id tenancy.Identity) ([]Suggestion, error) {
	if !id.Valid() {
		return nil, errors.New("actions: suggestions require an agent identity")
	}
	pending, err := e.machine.PendingFor(ctx, id.AgentID)
	if err != nil {
		return nil, err
	}
	out := make([]Suggestion, 0, len(pending))
	for _, p := range pending {
		if p.Plan.Origin != OriginNurture || p.Plan.FollowUp == nil {
			continue
		}
		out = append(out, Suggestion{
			SessionID:   p.SessionID,
			PlanID:      p.Plan.ID,
			LeadID:      p.Plan.Lead.ID,
			LeadName:    p.Plan.Lead.Name,
			Summary:     p.Plan.Summary,
			ScheduledAt: p.Plan.FollowUp.ScheduledAt,
			ExpiresAt:   p.Plan.ExpiresAt,
		})
	}
	return out, nil
}

func (e *Engine) clarify(log *logging.Logger, intent Intent, err error) (Response, error) {
	c, ok := Clarify(err)
	if !ok {
		e.metrics.ObservePlan(string(intent), "error")
		return Response{}, err
	}
	e.metrics.ObservePlan(string(intent), string(c.Code))
	log.Info("clarification needed", "code", c.Code)
	return Response{Kind: KindClarification, Code: c.Code, Message: c.Message}, nil
}

func promptResponse(plan ActionPlan) Response {
	expires := plan.ExpiresAt
	return Response{
		Kind:      KindConfirmationPrompt,
		Summary:   plan.Summary,
		Message:   fmt.Sprintf("%s. Reply yes to confirm or no to cancel.", plan.Summary),
		PlanID:    plan.ID,
		ExpiresAt: &expires,
	}
}
