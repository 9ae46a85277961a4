package tenancy

import (
	"context"
	"strings"
	"time"
)

type ctxKey string

const identityKey ctxKey = "realty.agent_identity"

// Role is the authorization role the authentication layer assigned to a caller.
type Role string

const (
	RoleAgent Role = "agent"
	RoleAdmin Role = "admin"
)

// Identity is the authenticated caller the action engine acts for. It is
// supplied by the authentication layer and trusted as-is.
type Identity struct {
	AgentID  string `json:"agent_id"`
	Role     Role   `json:"role"`
	Timezone string `json:"timezone,omitempty"`
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Valid reports whether the identity names an agent.
func (i Identity) Valid() bool {
	return strings.TrimSpace(i.AgentID) != ""
}

// Location returns the identity's timezone, or fallback when unset or invalid.
func (i Identity) Location(fallback *time.Location) *time.Location {
	if fallback == nil {
		fallback = time.UTC
	}
	if strings.TrimSpace(i.Timezone) == "" {
		return fallback
	}
	loc, err := time.LoadLocation(i.Timezone)
	if err != nil {
		return fallback
	}
	return loc
}

// ParseRole maps a claim value onto a known role. Unknown values become RoleAgent.
func ParseRole(raw string) Role {
	if strings.EqualFold(strings.TrimSpace(raw), string(RoleAdmin)) {
		return RoleAdmin
	}
	return RoleAgent
}

// WithIdentity stores the identity in context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext extracts the identity if present.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id.Valid()
}
