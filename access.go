package groupaccess

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/oarkflow/groupaccess/logger"
)

// AccessManager orchestrates the special-case registry, the group membership
// store and the content-enabler mapping into one decision per
// (entity, operation, principal) triple. Decisions are pure functions of
// their inputs; concurrent calls share no mutable state beyond the immutable
// registries and the optional decision cache.
type AccessManager struct {
	groups   GroupStore
	enablers *EnablerIndex
	cases    *SpecialCaseRegistry
	diag     diagnostics
	log      logger.Logger
	cache    *decisionCache
	traceID  logger.TraceIDFunc
}

// Option configures an AccessManager at construction time.
type Option func(*AccessManager) error

// WithLogger installs a structured logger. Default is the null logger.
func WithLogger(l logger.Logger) Option {
	return func(m *AccessManager) error {
		m.log = l
		return nil
	}
}

// WithDiagnostics enables decision debugging: messages to the sink, entries
// to the logger, per the flag pair.
func WithDiagnostics(flags DebugFlags, sink DiagnosticsSink) Option {
	return func(m *AccessManager) error {
		m.diag.flags = flags
		m.diag.sink = sink
		return nil
	}
}

// WithDecisionCache memoizes successful decisions for a short TTL. Callers
// must invalidate on membership or permission changes.
func WithDecisionCache(cfg DecisionCacheConfig) Option {
	return func(m *AccessManager) error {
		c, err := newDecisionCache(cfg)
		if err != nil {
			return err
		}
		m.cache = c
		return nil
	}
}

// WithTraceIDFunc replaces the default UUID trace-ID generator.
func WithTraceIDFunc(f logger.TraceIDFunc) Option {
	return func(m *AccessManager) error {
		m.traceID = f
		return nil
	}
}

// NewAccessManager wires a manager from its collaborators. The special-case
// registry must be fully populated; it is treated as immutable from here on.
func NewAccessManager(groups GroupStore, enablers *EnablerIndex, cases *SpecialCaseRegistry, opts ...Option) (*AccessManager, error) {
	if groups == nil {
		return nil, fmt.Errorf("group store is required")
	}
	if enablers == nil {
		return nil, fmt.Errorf("enabler index is required")
	}
	if cases == nil {
		cases = NewSpecialCaseRegistry()
	}
	m := &AccessManager{
		groups:   groups,
		enablers: enablers,
		cases:    cases,
		log:      logger.NewNullLogger(),
		traceID:  uuid.NewString,
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	m.diag.log = m.log
	return m, nil
}

// Enablers exposes the content-enabler index (shared with the predicate
// compiler).
func (m *AccessManager) Enablers() *EnablerIndex { return m.enablers }

// Applicable reports whether the entity falls under group access logic at
// all. Callers must guard Decide with this; entities outside the mapping
// belong to their host's default access checks.
func (m *AccessManager) Applicable(entity *Entity) bool {
	return m.enablers.Applicable(entity)
}

// ApplicableEntityType reports whether the entity type has any enabler.
func (m *AccessManager) ApplicableEntityType(entityType string) bool {
	return m.enablers.ApplicableEntityType(entityType)
}

// InvalidateDecisions drops all cached decisions.
func (m *AccessManager) InvalidateDecisions() {
	if m.cache != nil {
		m.cache.clear()
	}
}

// RebuildEnablers recomputes the plugin-to-entity mapping from the registry
// and invalidates cached decisions, using copy-then-swap so concurrent
// decisions never see a partial mapping.
func (m *AccessManager) RebuildEnablers() error {
	if err := m.enablers.Rebuild(); err != nil {
		return err
	}
	m.InvalidateDecisions()
	return nil
}

// Decide makes the access decision for one triple. Forbidden special cases
// are checked first and are terminal, then allowed special cases, then the
// shared-group permission resolution. Store or evaluation failures surface as
// errors, never as a Forbidden decision.
func (m *AccessManager) Decide(ctx context.Context, entity *Entity, op Operation, principal *Principal) (*Decision, error) {
	var key string
	if m.cache != nil {
		key = decisionKey(entity, op, principal)
		if dec, ok := m.cache.get(key); ok {
			return dec, nil
		}
	}
	trace := m.traceID()

	matched, caseID, err := m.checkSpecialCases(ctx, entity, op, principal, CaseForbidden, trace)
	if err != nil {
		return nil, err
	}
	if matched {
		return m.finish(key, false, "forbidden special case", caseID, trace), nil
	}

	matched, caseID, err = m.checkSpecialCases(ctx, entity, op, principal, CaseAllowed, trace)
	if err != nil {
		return nil, err
	}
	if matched {
		return m.finish(key, true, "allowed special case", caseID, trace), nil
	}

	granted, groupID, err := m.resolveGroupPermission(ctx, entity, op, principal, trace)
	if err != nil {
		return nil, err
	}
	if granted {
		return m.finish(key, true, "group permission", groupID, trace), nil
	}
	return m.finish(key, false, "no group granted permission", "", trace), nil
}

func (m *AccessManager) finish(key string, allowed bool, reason, matchedBy, trace string) *Decision {
	dec := &Decision{
		Allowed:       allowed,
		Reason:        reason,
		MatchedBy:     matchedBy,
		CacheContexts: []string{CacheContextPermissions, CacheContextPrincipal, CacheContextEntity},
		TraceID:       trace,
		Timestamp:     time.Now(),
	}
	if m.cache != nil {
		m.cache.set(key, dec)
	}
	return dec
}

// checkSpecialCases evaluates the registered cases of one kind in
// registration order and short-circuits on the first match. A case failure
// aborts the whole decision.
func (m *AccessManager) checkSpecialCases(ctx context.Context, entity *Entity, op Operation, principal *Principal, kind SpecialCaseKind, trace string) (bool, string, error) {
	for _, c := range m.cases.ForEntityType(entity.Type, kind) {
		hit, err := c.Evaluate(ctx, entity, op, principal)
		if err != nil {
			return false, "", fmt.Errorf("%w: case %s: %v", ErrEvaluationFailed, c.ID(), err)
		}
		if m.diag.flags.enabled() {
			m.diag.emit("special case acted on entity",
				"case", c.ID(), "kind", string(kind), "entity", entity.Label,
				"operation", string(op), "result", hit, "trace_id", trace)
		}
		if hit {
			return true, c.ID(), nil
		}
	}
	return false, "", nil
}

// GroupsOf returns every group the principal belongs to, optionally filtered
// by group type. Failures wrap ErrStoreUnavailable.
func (m *AccessManager) GroupsOf(ctx context.Context, principalID string, typeFilter string) ([]Group, error) {
	groups, err := m.groups.GroupsOf(ctx, principalID, typeFilter)
	if err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return groups, nil
}

// SharedGroups computes the intersection of the principal's and the entity
// owner's group memberships, keyed by group ID. The viewer-side order is
// preserved, keeping the result deterministic for fixed inputs.
func (m *AccessManager) SharedGroups(ctx context.Context, principal *Principal, entity *Entity, typeFilter string) ([]Group, error) {
	owner := entity.Owner()
	if owner == "" {
		return nil, nil
	}
	viewerGroups, err := m.GroupsOf(ctx, principal.ID, typeFilter)
	if err != nil {
		return nil, err
	}
	ownerGroups, err := m.GroupsOf(ctx, owner, typeFilter)
	if err != nil {
		return nil, err
	}
	ownerIDs := make(map[string]struct{}, len(ownerGroups))
	for _, g := range ownerGroups {
		ownerIDs[g.ID()] = struct{}{}
	}
	var shared []Group
	for _, g := range viewerGroups {
		if _, ok := ownerIDs[g.ID()]; ok {
			shared = append(shared, g)
		}
	}
	return shared, nil
}

// resolveGroupPermission walks the shared groups and grants as soon as any
// one of them grants the operation's permission. Any single granting group is
// sufficient; the outcome is independent of iteration order.
func (m *AccessManager) resolveGroupPermission(ctx context.Context, entity *Entity, op Operation, principal *Principal, trace string) (bool, string, error) {
	shared, err := m.SharedGroups(ctx, principal, entity, "")
	if err != nil {
		return false, "", err
	}
	if len(shared) == 0 {
		// No shared groups means no applicable permission, which is an
		// ordinary "not permitted", not an error.
		return false, "", nil
	}

	enabler, ok := m.enablers.ResolveEntity(entity)
	if !ok {
		return false, "", fmt.Errorf("%w: %s:%s", ErrNotApplicable, entity.Type, entity.Bundle)
	}

	for _, group := range shared {
		permission, granted := grantsOperation(group, enabler.ID, entity, op, principal)
		if !granted {
			continue
		}
		if m.diag.flags.enabled() {
			m.diag.emit("group access allowed",
				"entity", entity.Label, "operation", string(op),
				"permission", permission, "group_type", group.BundleType(),
				"group", group.Label(), "trace_id", trace)
		}
		return true, group.ID(), nil
	}

	if m.diag.flags.enabled() {
		m.diag.emit("group access forbidden, no group granted permission",
			"entity", entity.Label, "operation", string(op), "trace_id", trace)
	}
	return false, "", nil
}

// grantsOperation resolves the permission string for the operation and asks
// the group whether the principal holds it. Operations without a defined
// permission string are never granted by a group.
func grantsOperation(group Group, pluginID string, entity *Entity, op Operation, principal *Principal) (string, bool) {
	switch op {
	case OpView, OpDownload:
		if entity.Published == PublishStateUnpublished {
			permission := fmt.Sprintf("view unpublished %s entity", pluginID)
			return permission, group.HasPermission(permission, principal)
		}
		permission := fmt.Sprintf("view %s entity", pluginID)
		if group.HasPermission(permission, principal) {
			return permission, true
		}
		// Fall back to the "own" variant when the acting principal is the
		// entity's owner.
		if owner := entity.Owner(); owner != "" && owner == principal.ID {
			permission = fmt.Sprintf("view own %s entity", pluginID)
			return permission, group.HasPermission(permission, principal)
		}
		return permission, false

	case OpUpdate, OpDelete:
		permission := fmt.Sprintf("%s any %s entity", op, pluginID)
		return permission, group.HasPermission(permission, principal)

	default:
		return "", false
	}
}
