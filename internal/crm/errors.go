package crm

import "errors"

var (
	// ErrLeadNotFound is returned when a lead does not exist within the caller's scope.
	ErrLeadNotFound = errors.New("crm: lead not found")

	// ErrAgentNotFound is returned when an agent id is unknown.
	ErrAgentNotFound = errors.New("crm: agent not found")

	// ErrUnscopedQuery is returned when a repository call carries no agent filter
	// and no explicit admin grant.
	ErrUnscopedQuery = errors.New("crm: query requires an agent scope")

	// ErrAdminScopeRequired is returned by operations reserved for admin/system scopes.
	ErrAdminScopeRequired = errors.New("crm: admin scope required")

	// ErrDuplicatePlan is returned when a plan id has already been applied.
	ErrDuplicatePlan = errors.New("crm: plan already applied")

	// ErrInvalidStatus is returned when a status is outside the enumeration.
	ErrInvalidStatus = errors.New("crm: invalid lead status")
)
