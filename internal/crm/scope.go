package crm

import (
	"fmt"
	"strings"
)

// Scope is the agent filter every repository call carries. The zero value is
// invalid and rejected with ErrUnscopedQuery. Admin scopes are only produced by
// AdminScope and SystemScope, never by default.
type Scope struct {
	agentID string
	actorID string
	admin   bool
}

// AgentScope restricts every read and write to rows owned by agentID.
func AgentScope(agentID string) Scope {
	agentID = strings.TrimSpace(agentID)
	return Scope{agentID: agentID, actorID: agentID}
}

// AdminScope lifts the owner filter for an authenticated admin. actorID is
// recorded as the changing agent on audit rows.
func AdminScope(actorID string) Scope {
	return Scope{actorID: strings.TrimSpace(actorID), admin: true}
}

// SystemScope is the admin scope used by background jobs.
func SystemScope(job string) Scope {
	return AdminScope("system:" + strings.TrimSpace(job))
}

// AgentID returns the owner filter; empty for admin scopes.
func (s Scope) AgentID() string { return s.agentID }

// ActorID returns the identity performing the operation.
func (s Scope) ActorID() string { return s.actorID }

// IsAdmin reports whether the owner filter is lifted.
func (s Scope) IsAdmin() bool { return s.admin }

// Validate rejects scopes that would produce an unfiltered query.
func (s Scope) Validate() error {
	if s.admin {
		if s.actorID == "" {
			return fmt.Errorf("%w: admin scope without actor", ErrUnscopedQuery)
		}
		return nil
	}
	if s.agentID == "" {
		return ErrUnscopedQuery
	}
	return nil
}

// Permits reports whether a row owned by ownerID is visible in this scope.
func (s Scope) Permits(ownerID string) bool {
	if s.admin {
		return true
	}
	return s.agentID != "" && s.agentID == ownerID
}

func (s Scope) String() string {
	if s.admin {
		return "admin:" + s.actorID
	}
	return "agent:" + s.agentID
}
