package groupaccess

import (
	"context"
	"fmt"
)

// PredicateCompiler translates the point-decision policy into a declarative
// filter for bulk search queries, and extracts the denormalized per-item
// fields the filter is evaluated against. Both sides read the same membership
// and enabler state as AccessManager.Decide, so a query returns exactly the
// item set the per-item checks would allow.
//
// Known gap, kept on purpose: the index carries no publication signal, so the
// compiled filter cannot reproduce the "view unpublished" permission branch.
// Point checks and bulk filtering can disagree for unpublished items.
type PredicateCompiler struct {
	manager *AccessManager
}

func NewPredicateCompiler(manager *AccessManager) *PredicateCompiler {
	return &PredicateCompiler{manager: manager}
}

// Compile builds the access predicate for one querying principal over the
// index's datasources.
//
// A nil group with a nil error means "match everything" (the principal holds
// the bypass permission). ErrNoVisibleResults means the query must abort with
// an explanation instead of returning an empty page.
func (c *PredicateCompiler) Compile(ctx context.Context, principal *Principal, datasources []Datasource) (*ConditionGroup, error) {
	if principal == nil {
		c.manager.log.Warn("search access filter requested without a principal")
		return nil, fmt.Errorf("principal is required to compile an access predicate")
	}
	if principal.HasPermission(BypassPermission) {
		return nil, nil
	}

	// Partition the datasources into the ones our enabler mapping covers and
	// the rest, preserving order.
	var affectedTypes []string
	affected := make(map[string]bool)
	var unaffected []string
	for _, ds := range datasources {
		if c.manager.ApplicableEntityType(ds.EntityType) {
			if !affected[ds.EntityType] {
				affected[ds.EntityType] = true
				affectedTypes = append(affectedTypes, ds.EntityType)
			}
		} else {
			unaffected = append(unaffected, ds.ID)
		}
	}

	// The shape is:
	//   [belongs to an unaffected datasource]
	//   OR ([shares a group with the item's owner] AND [holds the bundle permission there])
	// Without unaffected datasources the access disjunction stands alone.
	root := NewConditionGroup(ConjunctionOr, "group_access")
	access := root
	if len(unaffected) > 0 {
		for _, id := range unaffected {
			root.AddCondition(FieldDatasource, id, OperatorEquals)
		}
		access = NewConditionGroup(ConjunctionOr)
		root.AddGroup(access)
	}

	if len(affectedTypes) == 0 {
		if len(unaffected) == 0 {
			return nil, ErrNoVisibleResults
		}
		// The datasource conditions already exclude every covered item.
		return root, nil
	}

	groups, err := c.manager.GroupsOf(ctx, principal.ID, "")
	if err != nil {
		return nil, err
	}

	enablers := c.manager.Enablers().Enablers()
	for _, entityType := range affectedTypes {
		for _, group := range groups {
			for _, enabler := range enablers {
				// The membership enabler never resolves for point checks, so
				// it must not grant visibility in bulk either.
				if enabler.ID == MembershipEnablerID || enabler.EntityType != entityType {
					continue
				}
				viewOwn := group.HasPermission(fmt.Sprintf("view own %s entity", enabler.ID), principal)
				viewAny := group.HasPermission(fmt.Sprintf("view %s entity", enabler.ID), principal)
				if !viewOwn && !viewAny {
					continue
				}
				conditions := NewConditionGroup(ConjunctionAnd, "group_access_group").
					AddCondition(FieldGroupIDs, []string{group.ID()}, OperatorIn).
					AddCondition(FieldBundle, enabler.PermissionBundle(), OperatorEquals)
				if viewOwn && !viewAny {
					conditions.AddCondition(FieldOwner, principal.ID, OperatorEquals)
				}
				access.AddGroup(conditions)
			}
		}
	}
	return root, nil
}

// IndexFields computes the denormalized fields for one item at index time:
// the owner's group memberships, the bundle, and the owner ID. Entities the
// enabler mapping does not cover return nil; the index stores nothing for
// them. The bundle is the governing enabler's, resolved exactly as point
// decisions resolve it.
func (c *PredicateCompiler) IndexFields(ctx context.Context, entity *Entity) (*IndexedFields, error) {
	enabler, ok := c.manager.Enablers().ResolveEntity(entity)
	if !ok {
		return nil, nil
	}
	fields := &IndexedFields{Bundle: enabler.PermissionBundle(), OwnerID: entity.Owner()}
	if fields.OwnerID != "" {
		groups, err := c.manager.GroupsOf(ctx, fields.OwnerID, "")
		if err != nil {
			return nil, err
		}
		for _, g := range groups {
			fields.GroupIDs = append(fields.GroupIDs, g.ID())
		}
	}
	return fields, nil
}
