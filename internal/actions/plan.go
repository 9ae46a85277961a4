package actions

import (
	"fmt"
	"time"

	"github.com/wolfman30/realty-ai-platform/internal/crm"
)

// Origin records what produced a plan.
type Origin string

const (
	OriginChat    Origin = "chat"
	OriginNurture Origin = "nurture"
)

// LeadRef is the resolved target of a plan.
type LeadRef struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	AgentID string `json:"agent_id"`
}

type StatusChange struct {
	From crm.LeadStatus `json:"from"`
	To   crm.LeadStatus `json:"to"`
}

type InteractionParams struct {
	Type       crm.InteractionType `json:"type"`
	Note       string              `json:"note"`
	OccurredAt time.Time           `json:"occurred_at"`
}

type FollowUpParams struct {
	ScheduledAt time.Time `json:"scheduled_at"`
	Note        string    `json:"note,omitempty"`
}

// ActionPlan describes one proposed mutation. Exactly one parameter block is
// set and it matches Intent. Plans are values: a new utterance makes a new plan.
type ActionPlan struct {
	ID          string             `json:"id"`
	Intent      Intent             `json:"intent"`
	AgentID     string             `json:"agent_id"`
	Admin       bool               `json:"admin,omitempty"`
	Lead        LeadRef            `json:"lead"`
	Status      *StatusChange      `json:"status,omitempty"`
	Interaction *InteractionParams `json:"interaction,omitempty"`
	FollowUp    *FollowUpParams    `json:"follow_up,omitempty"`
	Summary     string             `json:"summary"`
	Origin      Origin             `json:"origin"`
	CreatedAt   time.Time          `json:"created_at"`
	ExpiresAt   time.Time          `json:"expires_at"`
}

// Expired reports whether now is past the plan's expiry.
func (p ActionPlan) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// Scope is the repository scope the plan executes under.
func (p ActionPlan) Scope() crm.Scope {
	if p.Admin {
		return crm.AdminScope(p.AgentID)
	}
	return crm.AgentScope(p.AgentID)
}

// Validate checks the plan's shape.
func (p ActionPlan) Validate() error {
	if p.ID == "" || p.AgentID == "" || p.Lead.ID == "" {
		return fmt.Errorf("actions: plan is missing id, agent or lead")
	}
	if !p.ExpiresAt.After(p.CreatedAt) {
		return fmt.Errorf("actions: plan %s expires before it is created", p.ID)
	}
	set := 0
	for _, ok := range []bool{p.Status != nil, p.Interaction != nil, p.FollowUp != nil} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("actions: plan %s must carry exactly one parameter block", p.ID)
	}
	switch p.Intent {
	case IntentUpdateLeadStatus:
		if p.Status == nil || !p.Status.To.Valid() {
			return &InvalidStatusError{Value: statusValue(p.Status)}
		}
	case IntentLogInteraction:
		if p.Interaction == nil || !p.Interaction.Type.Valid() {
			return fmt.Errorf("actions: plan %s has no valid interaction", p.ID)
		}
	case IntentScheduleFollowUp:
		if p.FollowUp == nil || p.FollowUp.ScheduledAt.IsZero() {
			return fmt.Errorf("actions: plan %s has no follow-up time", p.ID)
		}
	default:
		return fmt.Errorf("actions: plan %s has non-action intent %q", p.ID, p.Intent)
	}
	return nil
}

func statusValue(s *StatusChange) string {
	if s == nil {
		return ""
	}
	return string(s.To)
}

// ActionResult reports what an executed plan changed.
type ActionResult struct {
	PlanID        string         `json:"plan_id"`
	Intent        Intent         `json:"intent"`
	LeadID        string         `json:"lead_id"`
	LeadName      string         `json:"lead_name"`
	Message       string         `json:"message"`
	StatusFrom    crm.LeadStatus `json:"status_from,omitempty"`
	StatusTo      crm.LeadStatus `json:"status_to,omitempty"`
	AuditEntryID  string         `json:"audit_entry_id,omitempty"`
	InteractionID string         `json:"interaction_id,omitempty"`
	FollowUpID    string         `json:"follow_up_id,omitempty"`
}
