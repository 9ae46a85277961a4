// Package nurture scans each agent's stale leads on a schedule and surfaces a
// follow-up suggestion for each one through the normal confirmation flow.
package nurture

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/realty-ai-platform/internal/actions"
	"github.com/wolfman30/realty-ai-platform/internal/crm"
	"github.com/wolfman30/realty-ai-platform/internal/notify"
	"github.com/wolfman30/realty-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/realty-ai-platform/internal/tenancy"
	"github.com/wolfman30/realty-ai-platform/pkg/logging"
)

// Surfacer makes a plan pending in a session. *actions.Engine implements it.
type Surfacer interface {
	SurfacePlan(ctx context.Context, sessionID string, plan actions.ActionPlan) (actions.Response, error)
	Pending(ctx context.Context, sessionID string, id tenancy.Identity) (actions.Response, error)
}

// Notifier delivers the per-agent digest. *notify.Service implements it.
type Notifier interface {
	NotifyNurtureDigest(ctx context.Context, d notify.Digest) error
}

type Config struct {
	StaleAfter  time.Duration
	Concurrency int
	BatchLimit  int
}

// Suggestion is one surfaced follow-up plan.
type Suggestion struct {
	AgentID     string    `json:"agent_id"`
	SessionID   string    `json:"session_id"`
	PlanID      string    `json:"plan_id"`
	LeadID      string    `json:"lead_id"`
	LeadName    string    `json:"lead_name"`
	Summary     string    `json:"summary"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

// Report summarizes one tick.
type Report struct {
	Agents       int               `json:"agents"`
	Suggestions  []Suggestion      `json:"suggestions"`
	Skipped      int               `json:"skipped"`
	FailedAgents map[string]string `json:"failed_agents,omitempty"`
}

// Scheduler holds no state between ticks; everything it needs comes from the
// repository and the tick's reference time.
type Scheduler struct {
	repo     crm.Repository
	planner  *actions.Planner
	surfacer Surfacer
	notifier Notifier
	cfg      Config
	logger   *logging.Logger
	metrics  *metrics.NurtureMetrics
}

func NewScheduler(repo crm.Repository, planner *actions.Planner, surfacer Surfacer, notifier Notifier, cfg Config, logger *logging.Logger, m *metrics.NurtureMetrics) *Scheduler {
	if repo == nil || planner == nil || surfacer == nil {
		panic("nurture: repository, planner and surfacer are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 14 * 24 * time.Hour
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 50
	}
	return &Scheduler{
		repo:     repo,
		planner:  planner,
		surfacer: surfacer,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
	}
}

// SessionID is the conversation session a lead's nurture suggestion lives in.
func SessionID(agentID, leadID string) string {
	return fmt.Sprintf("nurture:%s:%s", agentID, leadID)
}

// Tick scans every agent once. A failing agent is recorded in the report and
// does not stop the others; only failing to list agents fails the tick.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (Report, error) {
	start := time.Now()
	agents, err := s.repo.ListAgents(ctx, crm.SystemScope("nurture"))
	if err != nil {
		s.metrics.ObserveTick("error", time.Since(start).Seconds())
		return Report{}, fmt.Errorf("nurture: list agents: %w", err)
	}

	var (
		mu     sync.Mutex
		report = Report{Agents: len(agents)}
		g      errgroup.Group
	)
	g.SetLimit(s.cfg.Concurrency)
	for _, agent := range agents {
		g.Go(func() error {
			suggestions, skipped, err := s.scanAgent(ctx, agent, now)
			mu.Lock()
			defer mu.Unlock()
			report.Suggestions = append(report.Suggestions, suggestions...)
			report.Skipped += skipped
			if err != nil {
				if report.FailedAgents == nil {
					report.FailedAgents = make(map[string]string)
				}
				report.FailedAgents[agent.ID] = err.Error()
				s.metrics.IncAgentFailure()
				s.logger.Error("nurture scan failed for agent", "agent_id", agent.ID, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(report.Suggestions, func(i, j int) bool {
		a, b := report.Suggestions[i], report.Suggestions[j]
		if a.AgentID != b.AgentID {
			return a.AgentID < b.AgentID
		}
		return a.LeadName < b.LeadName
	})

	result := "ok"
	if len(report.FailedAgents) > 0 {
		result = "partial"
	}
	s.metrics.ObserveTick(result, time.Since(start).Seconds())
	s.metrics.AddSuggestions(len(report.Suggestions))
	s.logger.Info("nurture tick completed",
		"agents", report.Agents,
		"suggestions", len(report.Suggestions),
		"skipped", report.Skipped,
		"failed_agents", len(report.FailedAgents),
	)
	return report, ctx.Err()
}

// scanAgent surfaces suggestions for one agent's stale leads. Leads that
// already have a live suggestion are skipped so it is not replaced.
func (s *Scheduler) scanAgent(ctx context.Context, agent crm.Agent, now time.Time) ([]Suggestion, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	leads, err := s.repo.ListStaleLeads(ctx, crm.AgentScope(agent.ID), now.Add(-s.cfg.StaleAfter), s.cfg.BatchLimit)
	if err != nil {
		return nil, 0, fmt.Errorf("list stale leads: %w", err)
	}

	id := tenancy.Identity{AgentID: agent.ID, Role: tenancy.RoleAgent, Timezone: agent.Timezone}
	var (
		out     []Suggestion
		skipped int
		errs    []error
	)
	for _, lead := range leads {
		sessionID := SessionID(agent.ID, lead.ID)
		current, err := s.surfacer.Pending(ctx, sessionID, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("lead %s: %w", lead.ID, err))
			continue
		}
		if current.Kind == actions.KindConfirmationPrompt {
			skipped++
			continue
		}

		plan, err := s.planner.PlanNurture(lead, agent, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("lead %s: %w", lead.ID, err))
			continue
		}
		if _, err := s.surfacer.SurfacePlan(ctx, sessionID, plan); err != nil {
			errs = append(errs, fmt.Errorf("lead %s: %w", lead.ID, err))
			continue
		}
		out = append(out, Suggestion{
			AgentID:     agent.ID,
			SessionID:   sessionID,
			PlanID:      plan.ID,
			LeadID:      lead.ID,
			LeadName:    lead.Name,
			Summary:     plan.Summary,
			ScheduledAt: plan.FollowUp.ScheduledAt,
		})
	}

	s.sendDigest(ctx, agent, out)
	return out, skipped, errors.Join(errs...)
}

func (s *Scheduler) sendDigest(ctx context.Context, agent crm.Agent, suggestions []Suggestion) {
	if s.notifier == nil || len(suggestions) == 0 {
		return
	}
	digest := notify.Digest{AgentName: agent.Name, AgentEmail: agent.Email, Timezone: agent.Timezone}
	for _, sg := range suggestions {
		digest.Items = append(digest.Items, notify.DigestItem{SessionID: sg.SessionID, LeadName: sg.LeadName, Summary: sg.Summary, ScheduledAt: sg.ScheduledAt})
	}
	if err := s.notifier.NotifyNurtureDigest(ctx, digest); err != nil {
		s.logger.Warn("nurture digest failed", "agent_id", agent.ID, "error", err)
	}
}
