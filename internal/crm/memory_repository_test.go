package crm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedRepo(t *testing.T) (*MemoryRepository, *Lead, *Lead) {
	t.Helper()
	repo := NewMemoryRepository()
	repo.AddAgent(Agent{ID: "agent-1", Name: "Ana", Timezone: "America/New_York"})
	repo.AddAgent(Agent{ID: "agent-2", Name: "Ben", Timezone: "America/Chicago"})

	ctx := context.Background()
	mine := &Lead{Name: "John Doe"}
	require.NoError(t, repo.CreateLead(ctx, AgentScope("agent-1"), mine))
	theirs := &Lead{Name: "John Smith"}
	require.NoError(t, repo.CreateLead(ctx, AgentScope("agent-2"), theirs))
	return repo, mine, theirs
}

func TestMemoryRepositoryRejectsUnscopedCalls(t *testing.T) {
	repo, mine, _ := seedRepo(t)
	ctx := context.Background()

	_, err := repo.GetLead(ctx, Scope{}, mine.ID)
	assert.ErrorIs(t, err, ErrUnscopedQuery)
	_, err = repo.SearchLeadsByName(ctx, Scope{}, "john")
	assert.ErrorIs(t, err, ErrUnscopedQuery)
	err = repo.WithinTx(ctx, Scope{}, func(Tx) error { return nil })
	assert.ErrorIs(t, err, ErrUnscopedQuery)
}

func TestMemoryRepositoryAgentIsolation(t *testing.T) {
	repo, mine, theirs := seedRepo(t)
	ctx := context.Background()

	_, err := repo.GetLead(ctx, AgentScope("agent-1"), theirs.ID)
	assert.ErrorIs(t, err, ErrLeadNotFound)

	leads, err := repo.SearchLeadsByName(ctx, AgentScope("agent-1"), "John")
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, mine.ID, leads[0].ID)

	leads, err = repo.SearchLeadsByName(ctx, AdminScope("admin-1"), "John")
	require.NoError(t, err)
	assert.Len(t, leads, 2)

	err = repo.WithinTx(ctx, AgentScope("agent-1"), func(tx Tx) error {
		_, err := tx.LockLead(ctx, theirs.ID)
		return err
	})
	assert.ErrorIs(t, err, ErrLeadNotFound)

	agents, err := repo.ListAgents(ctx, AgentScope("agent-2"))
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, "agent-2", agents[0].ID)
}

func TestMemoryRepositoryTxCommitsAtomically(t *testing.T) {
	repo, mine, _ := seedRepo(t)
	ctx := context.Background()
	scope := AgentScope("agent-1")
	at := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

	err := repo.WithinTx(ctx, scope, func(tx Tx) error {
		if err := tx.UpdateLeadStatus(ctx, mine.ID, StatusNegotiating, at); err != nil {
			return err
		}
		return tx.InsertAuditEntry(ctx, &AuditEntry{
			LeadID: mine.ID, AgentID: "agent-1", PlanID: "plan-1",
			StatusFrom: StatusNew, StatusTo: StatusNegotiating,
			ChangedByAgentID: "agent-1", ChangedAt: at,
		})
	})
	require.NoError(t, err)

	lead, err := repo.GetLead(ctx, scope, mine.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusNegotiating, lead.Status)

	entries, err := repo.ListAuditEntries(ctx, scope, mine.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, StatusNew, entries[0].StatusFrom)
}

func TestMemoryRepositoryTxRollsBackOnError(t *testing.T) {
	repo, mine, _ := seedRepo(t)
	ctx := context.Background()
	scope := AgentScope("agent-1")
	repo.FailInsertsFor("lead_history")

	err := repo.WithinTx(ctx, scope, func(tx Tx) error {
		if err := tx.UpdateLeadStatus(ctx, mine.ID, StatusQualified, time.Now()); err != nil {
			return err
		}
		return tx.InsertAuditEntry(ctx, &AuditEntry{LeadID: mine.ID, AgentID: "agent-1", PlanID: "plan-1"})
	})
	require.Error(t, err)

	lead, err := repo.GetLead(ctx, scope, mine.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusNew, lead.Status)

	entries, err := repo.ListAuditEntries(ctx, scope, mine.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMemoryRepositoryRejectsDuplicatePlan(t *testing.T) {
	repo, mine, _ := seedRepo(t)
	ctx := context.Background()
	scope := AgentScope("agent-1")

	insert := func() error {
		return repo.WithinTx(ctx, scope, func(tx Tx) error {
			return tx.InsertInteraction(ctx, &Interaction{
				LeadID: mine.ID, AgentID: "agent-1", PlanID: "plan-7",
				Type: InteractionCall, OccurredAt: time.Now(),
			})
		})
	}
	require.NoError(t, insert())
	err := insert()
	assert.True(t, errors.Is(err, ErrDuplicatePlan), "got %v", err)

	rows, err := repo.ListInteractions(ctx, scope, mine.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestMemoryRepositoryTouchLeadKeepsLatest(t *testing.T) {
	repo, mine, _ := seedRepo(t)
	ctx := context.Background()
	scope := AgentScope("agent-1")
	later := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	earlier := later.Add(-48 * time.Hour)

	require.NoError(t, repo.WithinTx(ctx, scope, func(tx Tx) error {
		if err := tx.TouchLead(ctx, mine.ID, later); err != nil {
			return err
		}
		return tx.TouchLead(ctx, mine.ID, earlier)
	}))

	lead, err := repo.GetLead(ctx, scope, mine.ID)
	require.NoError(t, err)
	require.NotNil(t, lead.LastContactedAt)
	assert.True(t, lead.LastContactedAt.Equal(later))
}

func TestMemoryRepositoryListStaleLeads(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	scope := AgentScope("agent-1")
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	old := now.AddDate(0, 0, -30)
	recent := now.AddDate(0, 0, -2)

	stale := &Lead{Name: "Stale Sam", CreatedAt: old.AddDate(0, 0, -10), LastContactedAt: &old}
	fresh := &Lead{Name: "Fresh Fay", CreatedAt: old, LastContactedAt: &recent}
	closed := &Lead{Name: "Closed Cal", Status: StatusClosedWon, CreatedAt: old}
	booked := &Lead{Name: "Booked Bo", CreatedAt: old}
	never := &Lead{Name: "Never Nia", CreatedAt: old.AddDate(0, 0, -20)}
	for _, l := range []*Lead{stale, fresh, closed, booked, never} {
		require.NoError(t, repo.CreateLead(ctx, scope, l))
	}
	require.NoError(t, repo.CreateLead(ctx, AgentScope("agent-2"), &Lead{Name: "Other Oz", CreatedAt: old}))
	require.NoError(t, repo.WithinTx(ctx, scope, func(tx Tx) error {
		return tx.InsertFollowUp(ctx, &FollowUp{LeadID: booked.ID, AgentID: "agent-1", ScheduledAt: now.Add(24 * time.Hour)})
	}))

	leads, err := repo.ListStaleLeads(ctx, scope, now.AddDate(0, 0, -14), 10)
	require.NoError(t, err)
	require.Len(t, leads, 2)
	assert.Equal(t, never.ID, leads[0].ID)
	assert.Equal(t, stale.ID, leads[1].ID)

	leads, err = repo.ListStaleLeads(ctx, scope, now.AddDate(0, 0, -14), 1)
	require.NoError(t, err)
	assert.Len(t, leads, 1)
}

func TestMemoryRepositoryCreateLeadValidation(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	assert.Error(t, repo.CreateLead(ctx, AgentScope("agent-1"), &Lead{}))
	assert.ErrorIs(t, repo.CreateLead(ctx, AgentScope("agent-1"), &Lead{Name: "X", AgentID: "agent-2"}), ErrLeadNotFound)
	assert.ErrorIs(t, repo.CreateLead(ctx, AgentScope("agent-1"), &Lead{Name: "X", Status: "archived"}), ErrInvalidStatus)
	assert.Error(t, repo.CreateLead(ctx, AdminScope("admin"), &Lead{Name: "X"}))
}

func TestSearchLeadsByNameRanksExactMatchBeforeLimit(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	for i := 0; i < searchLimit+50; i++ {
		agent := fmt.Sprintf("agent-%d", i%7)
		require.NoError(t, repo.CreateLead(ctx, AgentScope(agent), &Lead{Name: fmt.Sprintf("Abe Johansson %03d", i)}))
	}
	jon := &Lead{Name: "Jon Doe"}
	require.NoError(t, repo.CreateLead(ctx, AgentScope("agent-1"), jon))
	john := &Lead{Name: "John Doe"}
	require.NoError(t, repo.CreateLead(ctx, AgentScope("agent-2"), john))

	leads, err := repo.SearchLeadsByName(ctx, AdminScope("admin-1"), "john  doe")
	require.NoError(t, err)
	require.Len(t, leads, searchLimit)
	assert.Equal(t, john.ID, leads[0].ID, "exact name first")
	assert.Equal(t, jon.ID, leads[1].ID, "more matching fragments next")
	assert.Equal(t, "Abe Johansson 000", leads[2].Name)
}
