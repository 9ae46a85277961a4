package crm

import (
	"sort"
	"strings"
	"time"
)

// LeadStatus is the pipeline stage of a lead. Only the enumerated values are valid.
type LeadStatus string

const (
	StatusNew         LeadStatus = "new"
	StatusContacted   LeadStatus = "contacted"
	StatusQualified   LeadStatus = "qualified"
	StatusNegotiating LeadStatus = "negotiating"
	StatusClosedWon   LeadStatus = "closed_won"
	StatusClosedLost  LeadStatus = "closed_lost"
	StatusFollowUp    LeadStatus = "follow_up"
)

// LeadStatuses lists every valid status in pipeline order.
var LeadStatuses = []LeadStatus{
	StatusNew,
	StatusContacted,
	StatusQualified,
	StatusNegotiating,
	StatusClosedWon,
	StatusClosedLost,
	StatusFollowUp,
}

var statusAliases = map[string]LeadStatus{
	"new":               StatusNew,
	"fresh":             StatusNew,
	"contacted":         StatusContacted,
	"reached out":       StatusContacted,
	"in contact":        StatusContacted,
	"qualified":         StatusQualified,
	"qualify":           StatusQualified,
	"negotiating":       StatusNegotiating,
	"negotiation":       StatusNegotiating,
	"in negotiation":    StatusNegotiating,
	"under negotiation": StatusNegotiating,
	"negotiate":         StatusNegotiating,
	"closed won":        StatusClosedWon,
	"won":               StatusClosedWon,
	"closed":            StatusClosedWon,
	"sold":              StatusClosedWon,
	"closed lost":       StatusClosedLost,
	"lost":              StatusClosedLost,
	"dead":              StatusClosedLost,
	"follow up":         StatusFollowUp,
	"followup":          StatusFollowUp,
	"needs follow up":   StatusFollowUp,
}

// ParseLeadStatus maps free text ("Negotiating", "closed-won", "follow up")
// onto the status enumeration.
func ParseLeadStatus(raw string) (LeadStatus, bool) {
	key := normalizePhrase(raw)
	key = strings.TrimSuffix(strings.TrimPrefix(key, "status "), " status")
	key = strings.TrimSuffix(key, " stage")
	if status, ok := statusAliases[key]; ok {
		return status, true
	}
	return "", false
}

// Valid reports whether s is one of the enumerated statuses.
func (s LeadStatus) Valid() bool {
	for _, candidate := range LeadStatuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// Label renders the status for chat output ("closed_won" → "closed won").
func (s LeadStatus) Label() string {
	return strings.ReplaceAll(string(s), "_", " ")
}

// InteractionType classifies a logged client touchpoint.
type InteractionType string

const (
	InteractionCall    InteractionType = "call"
	InteractionMeeting InteractionType = "meeting"
	InteractionViewing InteractionType = "viewing"
	InteractionEmail   InteractionType = "email"
	InteractionNote    InteractionType = "note"
)

// InteractionTypes lists every valid interaction type.
var InteractionTypes = []InteractionType{
	InteractionCall,
	InteractionMeeting,
	InteractionViewing,
	InteractionEmail,
	InteractionNote,
}

// Valid reports whether t is one of the enumerated interaction types.
func (t InteractionType) Valid() bool {
	for _, candidate := range InteractionTypes {
		if t == candidate {
			return true
		}
	}
	return false
}

// FollowUpStatus tracks the lifecycle of a scheduled follow-up.
type FollowUpStatus string

const (
	FollowUpPending   FollowUpStatus = "pending"
	FollowUpCompleted FollowUpStatus = "completed"
	FollowUpCancelled FollowUpStatus = "cancelled"
)

// Agent is a CRM user who owns leads.
type Agent struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Timezone string `json:"timezone"`
}

// Lead is a prospective client owned by exactly one agent.
type Lead struct {
	ID              string     `json:"id"`
	AgentID         string     `json:"agent_id"`
	Name            string     `json:"name"`
	Email           string     `json:"email,omitempty"`
	Phone           string     `json:"phone,omitempty"`
	Status          LeadStatus `json:"status"`
	LastContactedAt *time.Time `json:"last_contacted_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Interaction is an append-only record of a client touchpoint.
type Interaction struct {
	ID         string          `json:"id"`
	LeadID     string          `json:"lead_id"`
	AgentID    string          `json:"agent_id"`
	PlanID     string          `json:"plan_id"`
	Type       InteractionType `json:"type"`
	Note       string          `json:"note"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// FollowUp is a scheduled appointment or reminder for a lead.
type FollowUp struct {
	ID          string         `json:"id"`
	LeadID      string         `json:"lead_id"`
	AgentID     string         `json:"agent_id"`
	PlanID      string         `json:"plan_id"`
	ScheduledAt time.Time      `json:"scheduled_at"`
	Note        string         `json:"note,omitempty"`
	Status      FollowUpStatus `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
}

// AuditEntry (lead_history) records one status change. Never edited.
type AuditEntry struct {
	ID               string     `json:"id"`
	LeadID           string     `json:"lead_id"`
	AgentID          string     `json:"agent_id"`
	PlanID           string     `json:"plan_id"`
	StatusFrom       LeadStatus `json:"status_from"`
	StatusTo         LeadStatus `json:"status_to"`
	ChangedByAgentID string     `json:"changed_by_agent_id"`
	ChangedAt        time.Time  `json:"changed_at"`
}

func normalizePhrase(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	raw = strings.NewReplacer("_", " ", "-", " ", ".", " ", "!", " ", "'", "", "\"", "").Replace(raw)
	return strings.Join(strings.Fields(raw), " ")
}

// StatusPhrases returns every phrase ParseLeadStatus recognizes, longest first.
func StatusPhrases() []string {
	out := make([]string, 0, len(statusAliases))
	for phrase := range statusAliases {
		out = append(out, phrase)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) == len(out[j]) {
			return out[i] < out[j]
		}
		return len(out[i]) > len(out[j])
	})
	return out
}
