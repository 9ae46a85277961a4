package actions

import (
	"context"
	"testing"
	"time"

	"github.com/wolfman30/realty-ai-platform/internal/crm"
	"github.com/wolfman30/realty-ai-platform/internal/tenancy"
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

func (c *fixedClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func agentA() tenancy.Identity {
	return tenancy.Identity{AgentID: "agent-a", Role: tenancy.RoleAgent}
}

func agentB() tenancy.Identity {
	return tenancy.Identity{AgentID: "agent-b", Role: tenancy.RoleAgent}
}

func adminIdentity() tenancy.Identity {
	return tenancy.Identity{AgentID: "admin-1", Role: tenancy.RoleAdmin}
}

func ctxBG() context.Context { return context.Background() }

type testEnv struct {
	clock    *fixedClock
	repo     *crm.MemoryRepository
	planner  *Planner
	machine  *ConfirmationStateMachine
	executor *Executor
	engine   *Engine
	leads    map[string]*crm.Lead
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := &fixedClock{now: monday0900}
	repo := crm.NewMemoryRepository()
	repo.AddAgent(crm.Agent{ID: "agent-a", Name: "Ana", Timezone: "UTC"})
	repo.AddAgent(crm.Agent{ID: "agent-b", Name: "Ben", Timezone: "UTC"})

	env := &testEnv{clock: clock, repo: repo, leads: map[string]*crm.Lead{}}
	env.addLead(t, "agent-a", "John Doe", crm.StatusContacted)
	env.addLead(t, "agent-a", "Sarah Smith", crm.StatusNew)
	env.addLead(t, "agent-b", "John Doe", crm.StatusQualified)

	env.planner = NewPlanner(repo, NewDateTimeResolver(), PlannerConfig{TTL: 5 * time.Minute, Now: clock.Now})
	env.machine = NewConfirmationStateMachine(NewMemoryPendingStore(), clock.Now, nil, nil)
	env.executor = NewExecutor(repo, clock.Now, nil, nil)
	env.engine = NewEngine(EngineDeps{
		Classifier: NewRuleClassifier(),
		Extractor:  NewRuleExtractor(),
		Planner:    env.planner,
		Machine:    env.machine,
		Executor:   env.executor,
	})
	return env
}

func (e *testEnv) addLead(t *testing.T, agentID, name string, status crm.LeadStatus) *crm.Lead {
	t.Helper()
	lead := &crm.Lead{Name: name, Status: status, CreatedAt: e.clock.now.AddDate(0, -1, 0)}
	if err := e.repo.CreateLead(ctxBG(), crm.AgentScope(agentID), lead); err != nil {
		t.Fatalf("create lead: %v", err)
	}
	e.leads[agentID+"/"+name] = lead
	return lead
}

func (e *testEnv) lead(t *testing.T, agentID, name string) *crm.Lead {
	t.Helper()
	ref, ok := e.leads[agentID+"/"+name]
	if !ok {
		t.Fatalf("unknown lead %s/%s", agentID, name)
	}
	lead, err := e.repo.GetLead(ctxBG(), crm.AgentScope(agentID), ref.ID)
	if err != nil {
		t.Fatalf("get lead: %v", err)
	}
	return lead
}

func tenancyFor(plan ActionPlan) tenancy.Identity {
	if plan.Admin {
		return tenancy.Identity{AgentID: plan.AgentID, Role: tenancy.RoleAdmin}
	}
	return tenancy.Identity{AgentID: plan.AgentID, Role: tenancy.RoleAgent}
}
