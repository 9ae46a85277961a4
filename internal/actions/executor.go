package actions

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/realty-ai-platform/internal/crm"
	"github.com/wolfman30/realty-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/realty-ai-platform/pkg/logging"
)

// Executor applies confirmed plans in a single repository transaction.
type Executor struct {
	repo    crm.Repository
	now     func() time.Time
	logger  *logging.Logger
	metrics *metrics.ActionMetrics
	tracer  trace.Tracer
}

func NewExecutor(repo crm.Repository, now func() time.Time, logger *logging.Logger, m *metrics.ActionMetrics) *Executor {
	if repo == nil {
		panic("actions: repository cannot be nil")
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Executor{
		repo:    repo,
		now:     now,
		logger:  logger,
		metrics: m,
		tracer:  otel.Tracer("realty.internal.actions.executor"),
	}
}

// Execute re-validates ownership of the target lead under a row lock, applies
// the mutation and commits. Any failure rolls back and is returned as an
// *ExecutionError; it is never retried.
func (e *Executor) Execute(ctx context.Context, confirmed ConfirmedPlan) (ActionResult, error) {
	plan := confirmed.Plan()
	ctx, span := e.tracer.Start(ctx, "actions.execute", trace.WithAttributes(
		attribute.String("plan.id", plan.ID),
		attribute.String("plan.intent", string(plan.Intent)),
		attribute.String("agent.id", plan.AgentID),
	))
	defer span.End()

	start := time.Now()
	result, err := e.execute(ctx, plan, confirmed.ConfirmedBy())
	elapsed := time.Since(start).Seconds()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "execution failed")
		e.metrics.ObserveExecution(string(plan.Intent), "error", elapsed)
		e.logger.Error("plan execution failed",
			"plan_id", plan.ID,
			"intent", plan.Intent,
			"agent_id", plan.AgentID,
			"lead_id", plan.Lead.ID,
			"origin", plan.Origin,
			"summary", plan.Summary,
			"error", err,
		)
		return ActionResult{}, &ExecutionError{PlanID: plan.ID, Intent: plan.Intent, Err: err}
	}
	e.metrics.ObserveExecution(string(plan.Intent), "success", elapsed)
	e.logger.Info("plan executed", "plan_id", plan.ID, "intent", plan.Intent, "agent_id", plan.AgentID, "lead_id", plan.Lead.ID)
	return result, nil
}

func (e *Executor) execute(ctx context.Context, plan ActionPlan, actorID string) (ActionResult, error) {
	if err := plan.Validate(); err != nil {
		return ActionResult{}, err
	}
	result := ActionResult{PlanID: plan.ID, Intent: plan.Intent, LeadID: plan.Lead.ID, LeadName: plan.Lead.Name}

	err := e.repo.WithinTx(ctx, plan.Scope(), func(tx crm.Tx) error {
		lead, err := tx.LockLead(ctx, plan.Lead.ID)
		if err != nil {
			return err
		}
		if lead.AgentID != plan.Lead.AgentID {
			return crm.ErrLeadNotFound
		}
		result.LeadName = lead.Name
		now := e.now().UTC()

		switch plan.Intent {
		case IntentUpdateLeadStatus:
			return e.applyStatus(ctx, tx, plan, lead, actorID, now, &result)
		case IntentLogInteraction:
			return e.applyInteraction(ctx, tx, plan, lead, &result)
		case IntentScheduleFollowUp:
			return e.applyFollowUp(ctx, tx, plan, lead, &result)
		}
		return fmt.Errorf("actions: no executor for intent %q", plan.Intent)
	})
	if err != nil {
		return ActionResult{}, err
	}
	return result, nil
}

func (e *Executor) applyStatus(ctx context.Context, tx crm.Tx, plan ActionPlan, lead *crm.Lead, actorID string, now time.Time, result *ActionResult) error {
	to := plan.Status.To
	// The lead may have moved since planning; the audit row records what was
	// actually replaced.
	from := lead.Status
	if from == to {
		result.StatusFrom, result.StatusTo = from, to
		result.Message = fmt.Sprintf("%s is already %s.", lead.Name, to.Label())
		return nil
	}
	if err := tx.UpdateLeadStatus(ctx, lead.ID, to, now); err != nil {
		return err
	}
	entry := &crm.AuditEntry{
		LeadID:           lead.ID,
		AgentID:          lead.AgentID,
		PlanID:           plan.ID,
		StatusFrom:       from,
		StatusTo:         to,
		ChangedByAgentID: actorID,
		ChangedAt:        now,
	}
	if err := tx.InsertAuditEntry(ctx, entry); err != nil {
		return err
	}
	result.StatusFrom, result.StatusTo, result.AuditEntryID = from, to, entry.ID
	result.Message = fmt.Sprintf("Updated %s: %s → %s.", lead.Name, from, to)
	return nil
}

func (e *Executor) applyInteraction(ctx context.Context, tx crm.Tx, plan ActionPlan, lead *crm.Lead, result *ActionResult) error {
	p := plan.Interaction
	interaction := &crm.Interaction{
		LeadID:     lead.ID,
		AgentID:    lead.AgentID,
		PlanID:     plan.ID,
		Type:       p.Type,
		Note:       p.Note,
		OccurredAt: p.OccurredAt,
	}
	if err := tx.InsertInteraction(ctx, interaction); err != nil {
		return err
	}
	if err := tx.TouchLead(ctx, lead.ID, p.OccurredAt); err != nil {
		return err
	}
	result.InteractionID = interaction.ID
	result.Message = fmt.Sprintf("Logged %s with %s.", p.Type, lead.Name)
	return nil
}

func (e *Executor) applyFollowUp(ctx context.Context, tx crm.Tx, plan ActionPlan, lead *crm.Lead, result *ActionResult) error {
	p := plan.FollowUp
	followUp := &crm.FollowUp{
		LeadID:      lead.ID,
		AgentID:     lead.AgentID,
		PlanID:      plan.ID,
		ScheduledAt: p.ScheduledAt,
		Note:        p.Note,
		Status:      crm.FollowUpPending,
	}
	if err := tx.InsertFollowUp(ctx, followUp); err != nil {
		return err
	}
	result.FollowUpID = followUp.ID
	result.Message = fmt.Sprintf("Scheduled a follow-up with %s.", lead.Name)
	return nil
}
