package groupaccess

import (
	"context"
	"time"
)

// ============================================================================
// DOMAIN OBJECTS
// ============================================================================

// Principal represents the identity performing an operation. Ownership of the
// record stays with the caller; the engine never persists or mutates it.
type Principal struct {
	ID          string   `json:"id"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	Anonymous   bool     `json:"anonymous"`
}

// HasPermission reports whether the principal holds a site-wide permission.
func (p *Principal) HasPermission(permission string) bool {
	if p == nil {
		return false
	}
	for _, perm := range p.Permissions {
		if perm == permission {
			return true
		}
	}
	return false
}

// Operation is the action being attempted on an entity.
type Operation string

const (
	OpView      Operation = "view"
	OpViewLabel Operation = "view label"
	OpUpdate    Operation = "update"
	OpDelete    Operation = "delete"
	OpDownload  Operation = "download"
)

// PublishState is the tri-state publication status of an entity.
type PublishState uint8

const (
	// PublishStateNone means the entity type has no publication concept.
	// It is treated as published for permission resolution.
	PublishStateNone PublishState = iota
	PublishStatePublished
	PublishStateUnpublished
)

// Entity is the content record a decision is made about. Capability flags
// replace a type hierarchy: Published is a tri-state, OwnerID may be empty,
// and IsPrincipal marks entities that are themselves principal identities
// (user accounts), whose owner is the entity itself.
type Entity struct {
	ID          string       `json:"id"`
	Type        string       `json:"type"`
	Bundle      string       `json:"bundle"`
	Label       string       `json:"label"`
	OwnerID     string       `json:"owner_id,omitempty"`
	Published   PublishState `json:"published"`
	IsPrincipal bool         `json:"is_principal,omitempty"`
	// Roles carries the roles of a principal entity, used by privilege checks.
	Roles []string `json:"roles,omitempty"`
}

// Owner returns the ID of the entity's owner. A principal entity owns itself;
// IsPrincipal takes precedence over any OwnerID the caller set.
func (e *Entity) Owner() string {
	if e.IsPrincipal {
		return e.ID
	}
	return e.OwnerID
}

// Cache contexts attached to decisions. They tell the caller's response cache
// what a decision varies by; the engine itself stores nothing.
const (
	CacheContextPermissions = "principal.permissions"
	CacheContextPrincipal   = "principal"
	CacheContextEntity      = "entity"
)

// Decision is the outcome of an access check. It is always total: the absence
// of a granting rule is Forbidden, never "unknown".
type Decision struct {
	Allowed       bool      `json:"allowed"`
	Reason        string    `json:"reason"`
	MatchedBy     string    `json:"matched_by"` // special case ID or group ID
	CacheContexts []string  `json:"cache_contexts"`
	TraceID       string    `json:"trace_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// ============================================================================
// COLLABORATOR CONTRACTS
// ============================================================================

// Group is a reference to a group in the external group store, carrying its
// own permission evaluation capability.
type Group interface {
	ID() string
	// BundleType is the group's own type (used for type filters and
	// diagnostics, never for permission strings).
	BundleType() string
	Label() string
	// HasPermission reports whether the principal holds the permission inside
	// this group. Implementations must be side-effect-free and must not fail;
	// store lookups happen when the group is loaded, not here.
	HasPermission(permission string, principal *Principal) bool
}

// GroupStore looks up the groups a principal belongs to. The returned order
// must be deterministic for a fixed input so decisions are reproducible.
// Lookup failures wrap ErrStoreUnavailable.
type GroupStore interface {
	GroupsOf(ctx context.Context, principalID string, typeFilter string) ([]Group, error)
}

// ContentEnablerRegistry enumerates the installed content-enabler descriptors
// used to build the plugin-to-entity mapping.
type ContentEnablerRegistry interface {
	Installed() []ContentEnabler
}

// DiagnosticsSink receives human-readable debug messages when message
// debugging is enabled. Implementations must not fail.
type DiagnosticsSink interface {
	Emit(message string, keyvals ...any)
}

// DiagnosticsSinkFunc adapts a function to the DiagnosticsSink interface.
type DiagnosticsSinkFunc func(message string, keyvals ...any)

func (f DiagnosticsSinkFunc) Emit(message string, keyvals ...any) { f(message, keyvals...) }
