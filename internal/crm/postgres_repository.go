package crm

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	leadColumns = `id, agent_id, name, email, phone, status, last_contacted_at, created_at, updated_at`

	searchLimit    = 200
	uniqueViolated = "23505"
)

// DB abstracts the pgx pool so tests can substitute pgxmock.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores CRM state in Postgres. Every statement is built
// with the scope's agent filter appended.
type PostgresRepository struct {
	db DB
}

// NewPostgresRepository initializes a repo backed by a pgx pool.
func NewPostgresRepository(db DB) *PostgresRepository {
	if db == nil {
		panic("crm: pgx pool required")
	}
	return &PostgresRepository{db: db}
}

// ownerFilter returns the agent predicate for scope using placeholder $pos.
func ownerFilter(scope Scope, column string, pos int) (string, []any) {
	if scope.IsAdmin() {
		return "", nil
	}
	return fmt.Sprintf(" AND %s = $%s", column, strconv.Itoa(pos)), []any{scope.AgentID()}
}

func (r *PostgresRepository) CreateLead(ctx context.Context, scope Scope, lead *Lead) error {
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

	err := r.db.QueryRow(ctx, `
		INSERT INTO leads (id, agent_id, name, email, phone, status, last_contacted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		lead.ID, lead.AgentID, lead.Name, lead.Email, lead.Phone, string(lead.Status), lead.LastContactedAt,
	).Scan(&lead.CreatedAt, &lead.UpdatedAt)
	if err != nil {
		return fmt.Errorf("crm: insert lead: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetLead(ctx context.Context, scope Scope, id string) (*Lead, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	filter, args := ownerFilter(scope, "agent_id", 2)
	row := r.db.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`+filter, append([]any{id}, args...)...)
	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("crm: get lead: %w", err)
	}
	return lead, nil
}

func (r *PostgresRepository) SearchLeadsByName(ctx context.Context, scope Scope, name string) ([]Lead, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	prefixes := searchPrefixes(name)
	if len(prefixes) == 0 {
		return nil, nil
	}
	patterns := make([]string, len(prefixes))
	for i, p := range prefixes {
		patterns[i] = "%" + p + "%"
	}

	// Ranked like rankSearchResults so the limit never cuts an exact match.
	filter, args := ownerFilter(scope, "agent_id", 4)
	rows, err := r.db.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE lower(name) LIKE ANY($1)`+filter+`
		ORDER BY lower(btrim(name)) = $3 DESC,
			(SELECT count(*) FROM unnest($1::text[]) AS p(pattern) WHERE lower(name) LIKE p.pattern) DESC,
			name, id
		LIMIT $2`,
		append([]any{patterns, searchLimit, normalizedName(name)}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("crm: search leads: %w", err)
	}
	defer rows.Close()
	return scanLeads(rows)
}

func (r *PostgresRepository) ListStaleLeads(ctx context.Context, scope Scope, staleBefore time.Time, limit int) ([]Lead, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	filter, args := ownerFilter(scope, "l.agent_id", 3)
	rows, err := r.db.Query(ctx, `
		SELECT l.id, l.agent_id, l.name, l.email, l.phone, l.status, l.last_contacted_at, l.created_at, l.updated_at
		FROM leads l
		WHERE l.status NOT IN ('closed_won', 'closed_lost')
		  AND COALESCE(l.last_contacted_at, l.created_at) < $1
		  AND NOT EXISTS (
			SELECT 1 FROM follow_ups f WHERE f.lead_id = l.id AND f.status = 'pending'
		  )`+filter+`
		ORDER BY COALESCE(l.last_contacted_at, l.created_at) ASC
		LIMIT $2`,
		append([]any{staleBefore, limit}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("crm: list stale leads: %w", err)
	}
	defer rows.Close()
	return scanLeads(rows)
}

func (r *PostgresRepository) ListAgents(ctx context.Context, scope Scope) ([]Agent, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	query := `SELECT id, name, email, timezone FROM agents`
	var args []any
	if !scope.IsAdmin() {
		query += ` WHERE id = $1`
		args = append(args, scope.AgentID())
	}
	rows, err := r.db.Query(ctx, query+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("crm: list agents: %w", err)
	}
	defer rows.Close()

	var agents []Agent
	for rows.Next() {
		var a Agent
		if err := rows.Scan(&a.ID, &a.Name, &a.Email, &a.Timezone); err != nil {
			return nil, fmt.Errorf("crm: scan agent: %w", err)
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

func (r *PostgresRepository) ListAuditEntries(ctx context.Context, scope Scope, leadID string) ([]AuditEntry, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	filter, args := ownerFilter(scope, "agent_id", 2)
	rows, err := r.db.Query(ctx, `
		SELECT id, lead_id, agent_id, plan_id, status_from, status_to, changed_by_agent_id, changed_at
		FROM lead_history
		WHERE lead_id = $1`+filter+`
		ORDER BY changed_at`,
		append([]any{leadID}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("crm: list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var from, to string
		if err := rows.Scan(&e.ID, &e.LeadID, &e.AgentID, &e.PlanID, &from, &to, &e.ChangedByAgentID, &e.ChangedAt); err != nil {
			return nil, fmt.Errorf("crm: scan audit entry: %w", err)
		}
		e.StatusFrom = LeadStatus(from)
		e.StatusTo = LeadStatus(to)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *PostgresRepository) ListInteractions(ctx context.Context, scope Scope, leadID string) ([]Interaction, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	filter, args := ownerFilter(scope, "agent_id", 2)
	rows, err := r.db.Query(ctx, `
		SELECT id, lead_id, agent_id, plan_id, type, note, occurred_at
		FROM interactions
		WHERE lead_id = $1`+filter+`
		ORDER BY occurred_at`,
		append([]any{leadID}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("crm: list interactions: %w", err)
	}
	defer rows.Close()

	var out []Interaction
	for rows.Next() {
		var i Interaction
		var typ string
		if err := rows.Scan(&i.ID, &i.LeadID, &i.AgentID, &i.PlanID, &typ, &i.Note, &i.OccurredAt); err != nil {
			return nil, fmt.Errorf("crm: scan interaction: %w", err)
		}
		i.Type = InteractionType(typ)
		out = append(out, i)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) ListFollowUps(ctx context.Context, scope Scope, leadID string) ([]FollowUp, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	filter, args := ownerFilter(scope, "agent_id", 2)
	rows, err := r.db.Query(ctx, `
		SELECT id, lead_id, agent_id, plan_id, scheduled_at, note, status, created_at
		FROM follow_ups
		WHERE lead_id = $1`+filter+`
		ORDER BY scheduled_at`,
		append([]any{leadID}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("crm: list follow-ups: %w", err)
	}
	defer rows.Close()

	var out []FollowUp
	for rows.Next() {
		var f FollowUp
		var status string
		if err := rows.Scan(&f.ID, &f.LeadID, &f.AgentID, &f.PlanID, &f.ScheduledAt, &f.Note, &status, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("crm: scan follow-up: %w", err)
		}
		f.Status = FollowUpStatus(status)
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) WithinTx(ctx context.Context, scope Scope, fn func(tx Tx) error) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("crm: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx, scope: scope}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("crm: commit: %w", err)
	}
	return nil
}

type pgTx struct {
	tx    pgx.Tx
	scope Scope
}

func (t *pgTx) LockLead(ctx context.Context, id string) (*Lead, error) {
	filter, args := ownerFilter(t.scope, "agent_id", 2)
	row := t.tx.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`+filter+` FOR UPDATE`, append([]any{id}, args...)...)
	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("crm: lock lead: %w", err)
	}
	return lead, nil
}

func (t *pgTx) UpdateLeadStatus(ctx context.Context, id string, status LeadStatus, at time.Time) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	filter, args := ownerFilter(t.scope, "agent_id", 4)
	tag, err := t.tx.Exec(ctx, `UPDATE leads SET status = $1, updated_at = $2 WHERE id = $3`+filter,
		append([]any{string(status), at, id}, args...)...)
	if err != nil {
		return fmt.Errorf("crm: update lead status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLeadNotFound
	}
	return nil
}

func (t *pgTx) TouchLead(ctx context.Context, id string, contactedAt time.Time) error {
	filter, args := ownerFilter(t.scope, "agent_id", 3)
	tag, err := t.tx.Exec(ctx, `
		UPDATE leads
		SET last_contacted_at = GREATEST(COALESCE(last_contacted_at, $1), $1), updated_at = $1
		WHERE id = $2`+filter,
		append([]any{contactedAt, id}, args...)...)
	if err != nil {
		return fmt.Errorf("crm: touch lead: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLeadNotFound
	}
	return nil
}

func (t *pgTx) InsertInteraction(ctx context.Context, interaction *Interaction) error {
	if !t.scope.Permits(interaction.AgentID) {
		return ErrLeadNotFound
	}
	if !interaction.Type.Valid() {
		return fmt.Errorf("crm: invalid interaction type %q", interaction.Type)
	}
	if interaction.ID == "" {
		interaction.ID = uuid.NewString()
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO interactions (id, lead_id, agent_id, plan_id, type, note, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		interaction.ID, interaction.LeadID, interaction.AgentID, interaction.PlanID,
		string(interaction.Type), interaction.Note, interaction.OccurredAt,
	)
	return insertError("interaction", err)
}

func (t *pgTx) InsertFollowUp(ctx context.Context, followUp *FollowUp) error {
	if !t.scope.Permits(followUp.AgentID) {
		return ErrLeadNotFound
	}
	if followUp.ID == "" {
		followUp.ID = uuid.NewString()
	}
	if followUp.Status == "" {
		followUp.Status = FollowUpPending
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO follow_ups (id, lead_id, agent_id, plan_id, scheduled_at, note, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		followUp.ID, followUp.LeadID, followUp.AgentID, followUp.PlanID,
		followUp.ScheduledAt, followUp.Note, string(followUp.Status),
	).Scan(&followUp.CreatedAt)
	return insertError("follow-up", err)
}

func (t *pgTx) InsertAuditEntry(ctx context.Context, entry *AuditEntry) error {
	if !t.scope.Permits(entry.AgentID) {
		return ErrLeadNotFound
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO lead_history (id, lead_id, agent_id, plan_id, status_from, status_to, changed_by_agent_id, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.LeadID, entry.AgentID, entry.PlanID,
		string(entry.StatusFrom), string(entry.StatusTo), entry.ChangedByAgentID, entry.ChangedAt,
	)
	return insertError("audit entry", err)
}

func insertError(what string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolated {
		return ErrDuplicatePlan
	}
	return fmt.Errorf("crm: insert %s: %w", what, err)
}

func scanLead(row pgx.Row) (*Lead, error) {
	var lead Lead
	var status string
	if err := row.Scan(
		&lead.ID,
		&lead.AgentID,
		&lead.Name,
		&lead.Email,
		&lead.Phone,
		&status,
		&lead.LastContactedAt,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	); err != nil {
		return nil, err
	}
	lead.Status = LeadStatus(status)
	return &lead, nil
}

func scanLeads(rows pgx.Rows) ([]Lead, error) {
	var leads []Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("crm: scan lead: %w", err)
		}
		leads = append(leads, *lead)
	}
	return leads, rows.Err()
}
