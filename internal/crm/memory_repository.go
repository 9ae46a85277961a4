package crm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process Repository used by tests and local
// development. Transactions are serialized and applied to a staged copy that
// replaces the live data only when fn succeeds.
type MemoryRepository struct {
	mu           sync.Mutex
	data         memoryData
	failInsertOn string
}

type memoryData struct {
	agents       map[string]Agent
	leads        map[string]Lead
	interactions []Interaction
	followUps    []FollowUp
	audit        []AuditEntry
	planIDs      map[string]bool
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{data: memoryData{
		agents:  make(map[string]Agent),
		leads:   make(map[string]Lead),
		planIDs: make(map[string]bool),
	}}
}

// AddAgent registers an agent. Agents are provisioned by the auth layer, so
// this is only exposed on the in-memory implementation.
func (r *MemoryRepository) AddAgent(agent Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data.agents[agent.ID] = agent
}

// FailInsertsFor makes every subsequent insert into table fail. Tests use it to
// exercise rollback.
func (r *MemoryRepository) FailInsertsFor(table string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failInsertOn = table
}

func (r *MemoryRepository) CreateLead(ctx context.Context, scope Scope, lead *Lead) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	if lead == nil || strings.TrimSpace(lead.Name) == "" {
		return fmt.Errorf("crm: lead name is required")
	}
	if lead.AgentID == "" {
		lead.AgentID = scope.AgentID()
	}
	if lead.AgentID == "" {
		return fmt.Errorf("crm: lead owner is required")
	}
	if !scope.Permits(lead.AgentID) {
		return ErrLeadNotFound
	}
	if lead.Status == "" {
		lead.Status = StatusNew
	}
	if !lead.Status.Valid() {
		return ErrInvalidStatus
	}
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}
	lead.UpdatedAt = now

	r.mu.Lock()
	defer r.mu.Unlock()
	r.data.leads[lead.ID] = *lead
	return nil
}

func (r *MemoryRepository) GetLead(ctx context.Context, scope Scope, id string) (*Lead, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	lead, ok := r.data.leads[id]
	if !ok || !scope.Permits(lead.AgentID) {
		return nil, ErrLeadNotFound
	}
	return &lead, nil
}

func (r *MemoryRepository) SearchLeadsByName(ctx context.Context, scope Scope, name string) ([]Lead, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	prefixes := searchPrefixes(name)
	if len(prefixes) == 0 {
		return nil, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Lead
	for _, lead := range r.data.leads {
		if !scope.Permits(lead.AgentID) {
			continue
		}
		lower := strings.ToLower(lead.Name)
		for _, p := range prefixes {
			if strings.Contains(lower, p) {
				out = append(out, lead)
				break
			}
		}
	}
	return rankSearchResults(out, name, prefixes, searchLimit), nil
}

func (r *MemoryRepository) ListStaleLeads(ctx context.Context, scope Scope, staleBefore time.Time, limit int) ([]Lead, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	pending := make(map[string]bool)
	for _, f := range r.data.followUps {
		if f.Status == FollowUpPending {
			pending[f.LeadID] = true
		}
	}
	var out []Lead
	for _, lead := range r.data.leads {
		if !scope.Permits(lead.AgentID) || !isOpen(lead.Status) || pending[lead.ID] {
			continue
		}
		last := lead.CreatedAt
		if lead.LastContactedAt != nil {
			last = *lead.LastContactedAt
		}
		if last.Before(staleBefore) {
			out = append(out, lead)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return lastTouch(out[i]).Before(lastTouch(out[j]))
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) ListAgents(ctx context.Context, scope Scope) ([]Agent, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Agent
	for _, agent := range r.data.agents {
		if scope.Permits(agent.ID) {
			out = append(out, agent)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepository) ListAuditEntries(ctx context.Context, scope Scope, leadID string) ([]AuditEntry, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []AuditEntry
	for _, e := range r.data.audit {
		if e.LeadID == leadID && scope.Permits(e.AgentID) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *MemoryRepository) ListInteractions(ctx context.Context, scope Scope, leadID string) ([]Interaction, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Interaction
	for _, i := range r.data.interactions {
		if i.LeadID == leadID && scope.Permits(i.AgentID) {
			out = append(out, i)
		}
	}
	return out, nil
}

func (r *MemoryRepository) ListFollowUps(ctx context.Context, scope Scope, leadID string) ([]FollowUp, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []FollowUp
	for _, f := range r.data.followUps {
		if f.LeadID == leadID && scope.Permits(f.AgentID) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *MemoryRepository) WithinTx(ctx context.Context, scope Scope, fn func(tx Tx) error) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	tx := &memoryTx{scope: scope, data: r.data.clone(), failInsertOn: r.failInsertOn}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("crm: commit: %w", err)
	}
	r.data = tx.data
	return nil
}

type memoryTx struct {
	scope        Scope
	data         memoryData
	failInsertOn string
}

func (t *memoryTx) LockLead(ctx context.Context, id string) (*Lead, error) {
	lead, ok := t.data.leads[id]
	if !ok || !t.scope.Permits(lead.AgentID) {
		return nil, ErrLeadNotFound
	}
	return &lead, nil
}

func (t *memoryTx) UpdateLeadStatus(ctx context.Context, id string, status LeadStatus, at time.Time) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	lead, ok := t.data.leads[id]
	if !ok || !t.scope.Permits(lead.AgentID) {
		return ErrLeadNotFound
	}
	lead.Status = status
	lead.UpdatedAt = at
	t.data.leads[id] = lead
	return nil
}

func (t *memoryTx) TouchLead(ctx context.Context, id string, contactedAt time.Time) error {
	lead, ok := t.data.leads[id]
	if !ok || !t.scope.Permits(lead.AgentID) {
		return ErrLeadNotFound
	}
	if lead.LastContactedAt == nil || contactedAt.After(*lead.LastContactedAt) {
		ts := contactedAt
		lead.LastContactedAt = &ts
	}
	lead.UpdatedAt = contactedAt
	t.data.leads[id] = lead
	return nil
}

func (t *memoryTx) InsertInteraction(ctx context.Context, interaction *Interaction) error {
	if err := t.checkInsert("interactions", interaction.AgentID, interaction.PlanID); err != nil {
		return err
	}
	if !interaction.Type.Valid() {
		return fmt.Errorf("crm: invalid interaction type %q", interaction.Type)
	}
	if interaction.ID == "" {
		interaction.ID = uuid.NewString()
	}
	t.data.interactions = append(t.data.interactions, *interaction)
	t.data.planIDs["interactions:"+interaction.PlanID] = true
	return nil
}

func (t *memoryTx) InsertFollowUp(ctx context.Context, followUp *FollowUp) error {
	if err := t.checkInsert("follow_ups", followUp.AgentID, followUp.PlanID); err != nil {
		return err
	}
	if followUp.ID == "" {
		followUp.ID = uuid.NewString()
	}
	if followUp.Status == "" {
		followUp.Status = FollowUpPending
	}
	if followUp.CreatedAt.IsZero() {
		followUp.CreatedAt = time.Now().UTC()
	}
	t.data.followUps = append(t.data.followUps, *followUp)
	t.data.planIDs["follow_ups:"+followUp.PlanID] = true
	return nil
}

func (t *memoryTx) InsertAuditEntry(ctx context.Context, entry *AuditEntry) error {
	if err := t.checkInsert("lead_history", entry.AgentID, entry.PlanID); err != nil {
		return err
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	t.data.audit = append(t.data.audit, *entry)
	t.data.planIDs["lead_history:"+entry.PlanID] = true
	return nil
}

func (t *memoryTx) checkInsert(table, ownerID, planID string) error {
	if t.failInsertOn == table {
		return fmt.Errorf("crm: insert into %s failed", table)
	}
	if !t.scope.Permits(ownerID) {
		return ErrLeadNotFound
	}
	if planID != "" && t.data.planIDs[table+":"+planID] {
		return ErrDuplicatePlan
	}
	return nil
}

func (d memoryData) clone() memoryData {
	out := memoryData{
		agents:       make(map[string]Agent, len(d.agents)),
		leads:        make(map[string]Lead, len(d.leads)),
		interactions: append([]Interaction(nil), d.interactions...),
		followUps:    append([]FollowUp(nil), d.followUps...),
		audit:        append([]AuditEntry(nil), d.audit...),
		planIDs:      make(map[string]bool, len(d.planIDs)),
	}
	for k, v := range d.agents {
		out.agents[k] = v
	}
	for k, v := range d.leads {
		out.leads[k] = v
	}
	for k, v := range d.planIDs {
		out.planIDs[k] = v
	}
	return out
}

func lastTouch(l Lead) time.Time {
	if l.LastContactedAt != nil {
		return *l.LastContactedAt
	}
	return l.CreatedAt
}

