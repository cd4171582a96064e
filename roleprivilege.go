package groupaccess

import (
	"context"
	"fmt"
)

// RoleRanking is a total privilege ordering over non-baseline roles: index 0
// is the highest privilege. Baseline roles (those every account carries, like
// "anonymous" and "authenticated") are excluded from ranking entirely.
type RoleRanking struct {
	ranked   []string
	baseline map[string]struct{}
	index    map[string]int
}

// NewRoleRanking builds a ranking. Ranked roles must be unique and must not
// appear in the baseline set.
func NewRoleRanking(ranked []string, baseline []string) (*RoleRanking, error) {
	r := &RoleRanking{
		ranked:   append([]string(nil), ranked...),
		baseline: make(map[string]struct{}, len(baseline)),
		index:    make(map[string]int, len(ranked)),
	}
	for _, b := range baseline {
		r.baseline[b] = struct{}{}
	}
	for i, role := range r.ranked {
		if _, dup := r.index[role]; dup {
			return nil, fmt.Errorf("role %q ranked twice", role)
		}
		if _, isBaseline := r.baseline[role]; isBaseline {
			return nil, fmt.Errorf("role %q is baseline and cannot be ranked", role)
		}
		r.index[role] = i
	}
	return r, nil
}

// SentinelRank is the rank assigned when a principal holds no ranked role.
// It is one past the last real index, so it stays strictly worse than every
// real rank however long the list grows.
func (r *RoleRanking) SentinelRank() int { return len(r.ranked) }

// BestRank returns the lowest index (highest privilege) among the given
// roles, ignoring baseline and unranked roles. With no ranked role held, the
// sentinel rank is returned.
func (r *RoleRanking) BestRank(roles []string) int {
	best := r.SentinelRank()
	for _, role := range roles {
		if _, isBaseline := r.baseline[role]; isBaseline {
			continue
		}
		if idx, ok := r.index[role]; ok && idx < best {
			best = idx
		}
	}
	return best
}

// RolePrivilege is the forbidden special case preventing a lower-privileged
// principal from updating a higher-privileged principal identity. Group
// permissions alone would let any member with "update any" edit every account
// in a shared group, including administrators; this rule restores the role
// hierarchy on top of that.
type RolePrivilege struct {
	ranking     *RoleRanking
	entityTypes []string
}

// NewRolePrivilege scopes the rule to the given principal-identity entity
// types; with none given it defaults to "user".
func NewRolePrivilege(ranking *RoleRanking, entityTypes ...string) *RolePrivilege {
	if len(entityTypes) == 0 {
		entityTypes = []string{"user"}
	}
	return &RolePrivilege{ranking: ranking, entityTypes: entityTypes}
}

func (p *RolePrivilege) ID() string                    { return "role_privilege" }
func (p *RolePrivilege) Label() string                 { return "Role privilege" }
func (p *RolePrivilege) Kind() SpecialCaseKind         { return CaseForbidden }
func (p *RolePrivilege) EntityTypes() []string         { return p.entityTypes }
func (p *RolePrivilege) ExcludedEntityTypes() []string { return nil }

// Evaluate denies when the acting principal's best rank is numerically worse
// than the target identity's best rank. Only the update operation is covered.
func (p *RolePrivilege) Evaluate(_ context.Context, entity *Entity, op Operation, principal *Principal) (bool, error) {
	if op != OpUpdate {
		return false, nil
	}
	actingRank := p.ranking.BestRank(principal.Roles)
	targetRank := p.ranking.BestRank(entity.Roles)
	return actingRank > targetRank, nil
}
