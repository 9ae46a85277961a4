package actions

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wolfman30/realty-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/realty-ai-platform/internal/tenancy"
	"github.com/wolfman30/realty-ai-platform/pkg/logging"
)

// PendingStore holds at most one plan per conversation session.
type PendingStore interface {
	// Put stores plan for the session, replacing any existing plan.
	Put(ctx context.Context, sessionID string, plan ActionPlan) error
	Get(ctx context.Context, sessionID string) (ActionPlan, bool, error)
	// Take atomically removes and returns the session's plan.
	Take(ctx context.Context, sessionID string) (ActionPlan, bool, error)
	// List returns every stored plan whose key starts with prefix, keyed by
	// the full key.
	List(ctx context.Context, prefix string) (map[string]ActionPlan, error)
}

// MemoryPendingStore is a process-local PendingStore.
type MemoryPendingStore struct {
	mu    sync.Mutex
	plans map[string]ActionPlan
}

func NewMemoryPendingStore() *MemoryPendingStore {
	return &MemoryPendingStore{plans: make(map[string]ActionPlan)}
}

func (s *MemoryPendingStore) Put(ctx context.Context, sessionID string, plan ActionPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[sessionID] = plan
	return nil
}

func (s *MemoryPendingStore) Get(ctx context.Context, sessionID string) (ActionPlan, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	plan, ok := s.plans[sessionID]
	return plan, ok, nil
}

func (s *MemoryPendingStore) Take(ctx context.Context, sessionID string) (ActionPlan, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	plan, ok := s.plans[sessionID]
	delete(s.plans, sessionID)
	return plan, ok, nil
}

func (s *MemoryPendingStore) List(ctx context.Context, prefix string) (map[string]ActionPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]ActionPlan)
	for key, plan := range s.plans {
		if strings.HasPrefix(key, prefix) {
			out[key] = plan
		}
	}
	return out, nil
}

// Outcome is the terminal state of a resolved plan.
type Outcome string

const (
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeDeclined  Outcome = "declined"
	OutcomeExpired   Outcome = "expired"
	OutcomeReplaced  Outcome = "replaced"
)

// ConfirmedPlan is a plan the agent accepted. Only ConfirmationStateMachine
// can construct one, so the executor cannot be reached with unconfirmed input.
type ConfirmedPlan struct {
	plan        ActionPlan
	confirmedBy string
	confirmedAt time.Time
}

func (c ConfirmedPlan) Plan() ActionPlan       { return c.plan }
func (c ConfirmedPlan) ConfirmedBy() string    { return c.confirmedBy }
func (c ConfirmedPlan) ConfirmedAt() time.Time { return c.confirmedAt }

// Prompt is emitted when a plan becomes pending.
type Prompt struct {
	Plan       ActionPlan
	ReplacedID string
}

// PendingPlan is a live plan together with the session holding it.
type PendingPlan struct {
	SessionID string
	Plan      ActionPlan
}

// Decision is the result of resolving a pending plan.
type Decision struct {
	Outcome   Outcome
	Plan      ActionPlan
	Confirmed *ConfirmedPlan
}

const sessionLockStripes = 64

// ConfirmationStateMachine tracks NoPending → Pending → Confirmed/Declined/Expired
// per agent and session. Each agent has its own slot in a session, so one
// agent can neither see nor replace another agent's plan. Expiry is checked
// lazily whenever the slot is touched.
type ConfirmationStateMachine struct {
	store   PendingStore
	locks   [sessionLockStripes]sync.Mutex
	now     func() time.Time
	logger  *logging.Logger
	metrics *metrics.ActionMetrics
}

func NewConfirmationStateMachine(store PendingStore, now func() time.Time, logger *logging.Logger, m *metrics.ActionMetrics) *ConfirmationStateMachine {
	if store == nil {
		store = NewMemoryPendingStore()
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ConfirmationStateMachine{store: store, now: now, logger: logger, metrics: m}
}

// slotKey is the store key of agentID's plan in sessionID.
func slotKey(agentID, sessionID string) string {
	return agentID + ":" + sessionID
}

func (m *ConfirmationStateMachine) lock(slot string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(slot))
	mu := &m.locks[h.Sum32()%sessionLockStripes]
	mu.Lock()
	return mu.Unlock
}

// Propose makes plan the session's pending plan. A plan already pending is
// implicitly declined.
func (m *ConfirmationStateMachine) Propose(ctx context.Context, sessionID string, plan ActionPlan) (Prompt, error) {
	if sessionID == "" {
		return Prompt{}, fmt.Errorf("actions: session id is required")
	}
	if err := plan.Validate(); err != nil {
		return Prompt{}, err
	}
	slot := slotKey(plan.AgentID, sessionID)
	defer m.lock(slot)()

	prompt := Prompt{Plan: plan}
	if old, ok, err := m.store.Get(ctx, slot); err != nil {
		return Prompt{}, fmt.Errorf("actions: load pending plan: %w", err)
	} else if ok && old.ID != plan.ID {
		prompt.ReplacedID = old.ID
		m.metrics.ObserveConfirmation(string(OutcomeReplaced))
		m.logger.Info("pending plan replaced", "session_id", sessionID, "plan_id", old.ID, "replaced_by", plan.ID)
	}
	if err := m.store.Put(ctx, slot, plan); err != nil {
		return Prompt{}, fmt.Errorf("actions: store pending plan: %w", err)
	}
	return prompt, nil
}

// Resolve applies the agent's reply. The plan leaves the store before a
// confirmation is returned, so a second Resolve finds nothing pending.
func (m *ConfirmationStateMachine) Resolve(ctx context.Context, sessionID string, actor tenancy.Identity, accept bool) (Decision, error) {
	slot := slotKey(actor.AgentID, sessionID)
	defer m.lock(slot)()

	plan, ok, err := m.store.Take(ctx, slot)
	if err != nil {
		return Decision{}, fmt.Errorf("actions: take pending plan: %w", err)
	}
	if !ok {
		return Decision{}, ErrNoPendingPlan
	}
	if plan.AgentID != actor.AgentID {
		m.logger.Warn("pending slot held a foreign plan", "session_id", sessionID, "plan_id", plan.ID, "agent_id", actor.AgentID)
		return Decision{}, ErrPlanNotOwned
	}

	now := m.now()
	if plan.Expired(now) {
		m.metrics.ObserveConfirmation(string(OutcomeExpired))
		m.logger.Info("pending plan expired", "session_id", sessionID, "plan_id", plan.ID)
		return Decision{Outcome: OutcomeExpired, Plan: plan}, ErrPlanExpired
	}
	if !accept {
		m.metrics.ObserveConfirmation(string(OutcomeDeclined))
		return Decision{Outcome: OutcomeDeclined, Plan: plan}, nil
	}
	m.metrics.ObserveConfirmation(string(OutcomeConfirmed))
	return Decision{
		Outcome:   OutcomeConfirmed,
		Plan:      plan,
		Confirmed: &ConfirmedPlan{plan: plan, confirmedBy: actor.AgentID, confirmedAt: now},
	}, nil
}

// holds reports whether agentID has any plan, expired or not, in the session
// so a late reply still resolves to an expiry notice.
func (m *ConfirmationStateMachine) holds(ctx context.Context, sessionID, agentID string) (bool, error) {
	slot := slotKey(agentID, sessionID)
	defer m.lock(slot)()
	_, ok, err := m.store.Get(ctx, slot)
	if err != nil {
		return false, fmt.Errorf("actions: load pending plan: %w", err)
	}
	return ok, nil
}

// Pending returns agentID's live plan in the session, discarding it if it has
// expired.
func (m *ConfirmationStateMachine) Pending(ctx context.Context, sessionID, agentID string) (ActionPlan, bool, error) {
	slot := slotKey(agentID, sessionID)
	defer m.lock(slot)()

	plan, ok, err := m.store.Get(ctx, slot)
	if err != nil {
		return ActionPlan{}, false, fmt.Errorf("actions: load pending plan: %w", err)
	}
	if !ok {
		return ActionPlan{}, false, nil
	}
	if plan.Expired(m.now()) {
		if _, _, err := m.store.Take(ctx, slot); err != nil {
			return ActionPlan{}, false, fmt.Errorf("actions: discard expired plan: %w", err)
		}
		m.metrics.ObserveConfirmation(string(OutcomeExpired))
		return ActionPlan{}, false, nil
	}
	return plan, true, nil
}

// PendingFor lists agentID's live plans across all sessions, soonest expiry
// first. Expired plans are left for the next touch of their slot.
func (m *ConfirmationStateMachine) PendingFor(ctx context.Context, agentID string) ([]PendingPlan, error) {
	prefix := slotKey(agentID, "")
	stored, err := m.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("actions: list pending plans: %w", err)
	}
	now := m.now()
	out := make([]PendingPlan, 0, len(stored))
	for key, plan := range stored {
		if plan.AgentID != agentID || plan.Expired(now) {
			continue
		}
		out = append(out, PendingPlan{SessionID: strings.TrimPrefix(key, prefix), Plan: plan})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Plan.ExpiresAt.Equal(out[j].Plan.ExpiresAt) {
			return out[i].Plan.ExpiresAt.Before(out[j].Plan.ExpiresAt)
		}
		return out[i].SessionID < out[j].SessionID
	})
	return out, nil
}
