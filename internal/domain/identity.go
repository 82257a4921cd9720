// Package domain holds types shared across modules.
package domain

// Role is the capability level attached to a caller identity.
type Role int

const (
	// RoleObserver may only call read operations.
	RoleObserver Role = iota
	// RoleDAO may execute rebalancing batches and governance actions.
	RoleDAO
	// RoleOwner may manage the asset registry, toggle rebalancing and
	// perform emergency withdrawals.
	RoleOwner
)

// String returns the role name
func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleDAO:
		return "dao"
	default:
		return "observer"
	}
}

// Caller is an explicit capability passed into every mutating treasury
// operation. It replaces the source environment's implicit caller-identity
// checks: handlers resolve the transport-level identity into a Caller once,
// and services only ever look at the role.
type Caller struct {
	ID   string
	Role Role
}

// IsOwner reports whether the caller holds the owner capability.
func (c Caller) IsOwner() bool {
	return c.Role == RoleOwner
}

// IsDAO reports whether the caller holds the DAO capability.
func (c Caller) IsDAO() bool {
	return c.Role == RoleDAO
}

// Resolver maps raw caller identities to Callers.
type Resolver struct {
	ownerID string
	daoID   string
}

// NewResolver creates a resolver for the configured privileged identities.
func NewResolver(ownerID, daoID string) *Resolver {
	return &Resolver{ownerID: ownerID, daoID: daoID}
}

// Resolve returns the Caller for a raw identity string. Unknown identities
// (including the empty string) resolve to observers.
func (r *Resolver) Resolve(id string) Caller {
	switch {
	case id != "" && id == r.ownerID:
		return Caller{ID: id, Role: RoleOwner}
	case id != "" && id == r.daoID:
		return Caller{ID: id, Role: RoleDAO}
	default:
		return Caller{ID: id, Role: RoleObserver}
	}
}
