package actions

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/realty-ai-platform/internal/crm"
	"github.com/wolfman30/realty-ai-platform/internal/tenancy"
)

const (
	// MatchThreshold is the minimum name similarity for a lead to count as a match.
	MatchThreshold = 0.75

	defaultPlanTTL = 5 * time.Minute
	scoreEpsilon   = 1e-9
)

type PlannerConfig struct {
	TTL             time.Duration
	NurtureTTL      time.Duration
	DefaultLocation *time.Location
	Now             func() time.Time
}

// Planner resolves slots against the acting agent's leads and produces plans.
type Planner struct {
	repo       crm.Repository
	resolver   *DateTimeResolver
	ttl        time.Duration
	nurtureTTL time.Duration
	loc        *time.Location
	now        func() time.Time
}

func NewPlanner(repo crm.Repository, resolver *DateTimeResolver, cfg PlannerConfig) *Planner {
	if resolver == nil {
		resolver = NewDateTimeResolver()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultPlanTTL
	}
	if cfg.NurtureTTL <= 0 {
		cfg.NurtureTTL = 24 * time.Hour
	}
	if cfg.DefaultLocation == nil {
		cfg.DefaultLocation = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Planner{
		repo:       repo,
		resolver:   resolver,
		ttl:        cfg.TTL,
		nurtureTTL: cfg.NurtureTTL,
		loc:        cfg.DefaultLocation,
		now:        cfg.Now,
	}
}

// Plan builds an ActionPlan for intent. Slot values are validated before any
// lead lookup so an invalid status never reaches the repository.
func (p *Planner) Plan(ctx context.Context, intent Intent, slots Slots, id tenancy.Identity) (ActionPlan, error) {
	if !id.Valid() {
		return ActionPlan{}, crm.ErrUnscopedQuery
	}
	now := p.now()
	local := now.In(id.Location(p.loc))

	plan := ActionPlan{
		ID:        uuid.NewString(),
		Intent:    intent,
		AgentID:   id.AgentID,
		Admin:     id.IsAdmin(),
		Origin:    OriginChat,
		CreatedAt: now.UTC(),
		ExpiresAt: now.UTC().Add(p.ttl),
	}

	var (
		status crm.LeadStatus
		when   time.Time
	)
	switch intent {
	case IntentUpdateLeadStatus:
		if strings.TrimSpace(slots.Status) == "" {
			return ActionPlan{}, &ExtractionError{Intent: intent, Missing: SlotStatus}
		}
		var ok bool
		if status, ok = crm.ParseLeadStatus(slots.Status); !ok {
			return ActionPlan{}, &InvalidStatusError{Value: slots.Status}
		}
	case IntentLogInteraction:
		if slots.InteractionType == "" {
			slots.InteractionType = crm.InteractionNote
		}
		if !slots.InteractionType.Valid() {
			return ActionPlan{}, &ExtractionError{Intent: intent, Missing: SlotInteractionType}
		}
		if strings.TrimSpace(slots.Note) == "" {
			return ActionPlan{}, &ExtractionError{Intent: intent, Missing: SlotNote}
		}
	case IntentScheduleFollowUp:
		if strings.TrimSpace(slots.DatePhrase) == "" {
			return ActionPlan{}, &ExtractionError{Intent: intent, Missing: SlotDateTime}
		}
		at, err := p.resolver.Resolve(slots.DatePhrase, local)
		if err != nil {
			return ActionPlan{}, err
		}
		when = at
	default:
		return ActionPlan{}, fmt.Errorf("actions: cannot plan intent %q", intent)
	}

	lead, err := p.resolveSubject(ctx, intent, slots.Subject, id)
	if err != nil {
		return ActionPlan{}, err
	}
	plan.Lead = LeadRef{ID: lead.ID, Name: lead.Name, AgentID: lead.AgentID}

	switch intent {
	case IntentUpdateLeadStatus:
		if lead.Status == status {
			return ActionPlan{}, &StatusUnchangedError{LeadName: lead.Name, Status: status}
		}
		plan.Status = &StatusChange{From: lead.Status, To: status}
		plan.Summary = fmt.Sprintf("Update %s: %s → %s", lead.Name, lead.Status, status)
	case IntentLogInteraction:
		note := strings.TrimSpace(slots.Note)
		plan.Interaction = &InteractionParams{Type: slots.InteractionType, Note: note, OccurredAt: now.UTC()}
		plan.Summary = fmt.Sprintf("Log %s with %s: %s", slots.InteractionType, lead.Name, note)
	case IntentScheduleFollowUp:
		note := strings.TrimSpace(slots.Note)
		plan.FollowUp = &FollowUpParams{ScheduledAt: when.UTC(), Note: note}
		plan.Summary = followUpSummary(lead.Name, when, note)
	}
	return plan, plan.Validate()
}

// PlanNurture builds the follow-up suggestion for a stale lead: the next
// weekday at the default hour in the agent's timezone.
func (p *Planner) PlanNurture(lead crm.Lead, agent crm.Agent, now time.Time) (ActionPlan, error) {
	if lead.AgentID != agent.ID {
		return ActionPlan{}, crm.ErrLeadNotFound
	}
	id := tenancy.Identity{AgentID: agent.ID, Role: tenancy.RoleAgent, Timezone: agent.Timezone}
	local := now.In(id.Location(p.loc))

	day := time.Date(local.Year(), local.Month(), local.Day(), p.resolver.DefaultHour, 0, 0, 0, local.Location()).AddDate(0, 0, 1)
	for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
		day = day.AddDate(0, 0, 1)
	}

	note := "Check in: never contacted"
	if lead.LastContactedAt != nil {
		note = "Check in: no contact since " + lead.LastContactedAt.In(local.Location()).Format("Jan 2")
	}
	plan := ActionPlan{
		ID:        uuid.NewString(),
		Intent:    IntentScheduleFollowUp,
		AgentID:   agent.ID,
		Lead:      LeadRef{ID: lead.ID, Name: lead.Name, AgentID: lead.AgentID},
		FollowUp:  &FollowUpParams{ScheduledAt: day.UTC(), Note: note},
		Summary:   followUpSummary(lead.Name, day, note),
		Origin:    OriginNurture,
		CreatedAt: now.UTC(),
		ExpiresAt: now.UTC().Add(p.nurtureTTL),
	}
	return plan, plan.Validate()
}

// resolveSubject picks the single best-scoring lead visible to id.
func (p *Planner) resolveSubject(ctx context.Context, intent Intent, name string, id tenancy.Identity) (crm.Lead, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return crm.Lead{}, &ExtractionError{Intent: intent, Missing: SlotSubject}
	}
	scope := crm.AgentScope(id.AgentID)
	if id.IsAdmin() {
		scope = crm.AdminScope(id.AgentID)
	}
	candidates, err := p.repo.SearchLeadsByName(ctx, scope, name)
	if err != nil {
		return crm.Lead{}, fmt.Errorf("actions: search leads: %w", err)
	}

	best := 0.0
	var matches []crm.Lead
	for _, lead := range candidates {
		score := crm.NameSimilarity(name, lead.Name)
		switch {
		case score < MatchThreshold:
		case math.Abs(score-best) < scoreEpsilon:
			matches = append(matches, lead)
		case score > best:
			best = score
			matches = []crm.Lead{lead}
		}
	}
	switch len(matches) {
	case 0:
		return crm.Lead{}, &SubjectNotFoundError{Name: name}
	case 1:
		return matches[0], nil
	}
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = m.Name
	}
	return crm.Lead{}, &AmbiguousSubjectError{Name: name, Candidates: names}
}

func followUpSummary(name string, at time.Time, note string) string {
	s := fmt.Sprintf("Schedule follow-up with %s on %s", name, at.Format("Mon Jan 2 at 3:04 PM MST"))
	if note != "" {
		s += ": " + note
	}
	return s
}
