package crm

import (
	"context"
	"sort"
	"strings"
	"time"
)

// Repository is the only gateway to persistent CRM state. Every method takes a
// Scope and filters by its agent id unless the scope is an explicit admin grant.
type Repository interface {
	CreateLead(ctx context.Context, scope Scope, lead *Lead) error
	GetLead(ctx context.Context, scope Scope, id string) (*Lead, error)
	// SearchLeadsByName returns candidate leads for a free-text name. Matching is
	// deliberately loose; callers rank candidates themselves.
	SearchLeadsByName(ctx context.Context, scope Scope, name string) ([]Lead, error)
	// ListStaleLeads returns open leads last contacted before staleBefore (or
	// never contacted and created before it) that have no pending follow-up.
	ListStaleLeads(ctx context.Context, scope Scope, staleBefore time.Time, limit int) ([]Lead, error)
	ListAgents(ctx context.Context, scope Scope) ([]Agent, error)
	ListAuditEntries(ctx context.Context, scope Scope, leadID string) ([]AuditEntry, error)
	ListInteractions(ctx context.Context, scope Scope, leadID string) ([]Interaction, error)
	ListFollowUps(ctx context.Context, scope Scope, leadID string) ([]FollowUp, error)
	// WithinTx runs fn inside one transaction. Any error rolls back everything fn did.
	WithinTx(ctx context.Context, scope Scope, fn func(tx Tx) error) error
}

// Tx is a scoped unit of work. It inherits the scope of the WithinTx call.
type Tx interface {
	// LockLead loads the lead and holds a row lock until the transaction ends.
	LockLead(ctx context.Context, id string) (*Lead, error)
	UpdateLeadStatus(ctx context.Context, id string, status LeadStatus, at time.Time) error
	TouchLead(ctx context.Context, id string, contactedAt time.Time) error
	InsertInteraction(ctx context.Context, interaction *Interaction) error
	InsertFollowUp(ctx context.Context, followUp *FollowUp) error
	InsertAuditEntry(ctx context.Context, entry *AuditEntry) error
}

// isOpen reports whether a lead still belongs in the nurture pipeline.
func isOpen(status LeadStatus) bool {
	return status != StatusClosedWon && status != StatusClosedLost
}

// normalizedName is the form a stored name must equal to count as exact.
func normalizedName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// rankSearchResults orders candidates exact name first, then by how many
// search fragments the name contains, then by name and id, and keeps at most
// limit of them.
func rankSearchResults(leads []Lead, query string, fragments []string, limit int) []Lead {
	exact := normalizedName(query)
	type ranked struct {
		lead  Lead
		exact bool
		hits  int
	}
	rs := make([]ranked, len(leads))
	for i, lead := range leads {
		lower := strings.ToLower(lead.Name)
		rs[i] = ranked{lead: lead, exact: strings.ToLower(strings.TrimSpace(lead.Name)) == exact}
		for _, f := range fragments {
			if strings.Contains(lower, f) {
				rs[i].hits++
			}
		}
	}
	sort.SliceStable(rs, func(i, j int) bool {
		a, b := rs[i], rs[j]
		switch {
		case a.exact != b.exact:
			return a.exact
		case a.hits != b.hits:
			return a.hits > b.hits
		case a.lead.Name != b.lead.Name:
			return a.lead.Name < b.lead.Name
		}
		return a.lead.ID < b.lead.ID
	})
	if len(rs) > limit {
		rs = rs[:limit]
	}
	out := make([]Lead, len(rs))
	for i, r := range rs {
		out[i] = r.lead
	}
	return out
}

func searchPrefixes(name string) []string {
	tokens := nameTokens(name)
	prefixes := make([]string, 0, len(tokens))
	seen := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		if runes := []rune(tok); len(runes) > 2 {
			tok = string(runes[:2])
		}
		if !seen[tok] {
			seen[tok] = true
			prefixes = append(prefixes, tok)
		}
	}
	return prefixes
}
