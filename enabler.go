package groupaccess

import (
	"fmt"
	"sync/atomic"
)

// MembershipEnablerID is the descriptor that attaches principal identities to
// groups as plain members. It must be skipped when resolving the enabler for
// a content entity, otherwise principal entities would resolve to membership
// permissions instead of their own content permissions.
const MembershipEnablerID = "group_membership"

// ContentEnabler describes one installed content-enabler: the stable plugin
// identifier that permission strings are derived from, and the entity
// type/bundle it governs. An empty Bundle covers the whole entity type.
type ContentEnabler struct {
	ID         string `json:"id" yaml:"id"`
	EntityType string `json:"entity_type" yaml:"entity_type"`
	Bundle     string `json:"bundle,omitempty" yaml:"bundle,omitempty"`
}

// PermissionBundle is the bundle segment used in search predicates: the
// declared bundle, or the entity type for unbundled enablers.
func (c ContentEnabler) PermissionBundle() string {
	if c.Bundle != "" {
		return c.Bundle
	}
	return c.EntityType
}

// StaticEnablers is a fixed, in-memory ContentEnablerRegistry.
type StaticEnablers []ContentEnabler

func (s StaticEnablers) Installed() []ContentEnabler { return s }

// enablerTable is the immutable lookup structure behind an EnablerIndex.
type enablerTable struct {
	enablers []ContentEnabler
	byKey    map[string]ContentEnabler // entityType + "\x00" + bundle, membership excluded
	byType   map[string][]string       // entityType -> bundles (membership excluded)
	types    []string
}

func enablerKey(entityType, bundle string) string {
	return entityType + "\x00" + bundle
}

func buildEnablerTable(enablers []ContentEnabler) (*enablerTable, error) {
	t := &enablerTable{
		enablers: append([]ContentEnabler(nil), enablers...),
		byKey:    make(map[string]ContentEnabler),
		byType:   make(map[string][]string),
	}
	for _, e := range t.enablers {
		if e.ID == "" || e.EntityType == "" {
			return nil, fmt.Errorf("content enabler needs id and entity type: %+v", e)
		}
		if e.ID == MembershipEnablerID {
			continue
		}
		key := enablerKey(e.EntityType, e.Bundle)
		if prev, ok := t.byKey[key]; ok {
			return nil, fmt.Errorf("content enablers %q and %q both cover %s:%s",
				prev.ID, e.ID, e.EntityType, e.PermissionBundle())
		}
		t.byKey[key] = e
		if _, seen := t.byType[e.EntityType]; !seen {
			t.types = append(t.types, e.EntityType)
		}
		t.byType[e.EntityType] = append(t.byType[e.EntityType], e.PermissionBundle())
	}
	return t, nil
}

// EnablerIndex holds the plugin-to-entity mapping. It is read-mostly and
// process-wide; Rebuild swaps in a freshly built table atomically so in-flight
// readers never observe a partial map.
type EnablerIndex struct {
	registry ContentEnablerRegistry
	table    atomic.Pointer[enablerTable]
}

// NewEnablerIndex builds the mapping from the registry's installed
// descriptors. It fails if two non-membership descriptors cover the same
// (entity type, bundle) pair.
func NewEnablerIndex(registry ContentEnablerRegistry) (*EnablerIndex, error) {
	idx := &EnablerIndex{registry: registry}
	if err := idx.Rebuild(); err != nil {
		return nil, err
	}
	return idx, nil
}

// Rebuild recomputes the mapping from the registry. Call it whenever the set
// of installed content enablers changes.
func (idx *EnablerIndex) Rebuild() error {
	table, err := buildEnablerTable(idx.registry.Installed())
	if err != nil {
		return err
	}
	idx.table.Store(table)
	return nil
}

// Resolve returns the enabler governing (entityType, bundle). The membership
// enabler never resolves. A bundled descriptor wins over nothing: when no
// exact (type, bundle) descriptor exists, an unbundled descriptor for the
// type applies.
func (idx *EnablerIndex) Resolve(entityType, bundle string) (ContentEnabler, bool) {
	t := idx.table.Load()
	if e, ok := t.byKey[enablerKey(entityType, bundle)]; ok {
		return e, true
	}
	if bundle != "" {
		if e, ok := t.byKey[enablerKey(entityType, "")]; ok {
			return e, true
		}
	}
	return ContentEnabler{}, false
}

// ResolveEntity resolves the enabler for a concrete entity.
func (idx *EnablerIndex) ResolveEntity(entity *Entity) (ContentEnabler, bool) {
	return idx.Resolve(entity.Type, entity.Bundle)
}

// EntityTypes lists the entity types covered by installed enablers, in
// registration order.
func (idx *EnablerIndex) EntityTypes() []string {
	return idx.table.Load().types
}

// EntityBundles lists the bundles covered for one entity type.
func (idx *EnablerIndex) EntityBundles(entityType string) []string {
	return idx.table.Load().byType[entityType]
}

// Enablers returns every installed descriptor, membership included.
func (idx *EnablerIndex) Enablers() []ContentEnabler {
	return idx.table.Load().enablers
}

// Applicable reports whether the entity's bundle is governed by an enabler.
// Callers must check this before asking for a decision on the entity.
func (idx *EnablerIndex) Applicable(entity *Entity) bool {
	_, ok := idx.ResolveEntity(entity)
	return ok
}

// ApplicableEntityType reports whether any enabler covers the entity type.
func (idx *EnablerIndex) ApplicableEntityType(entityType string) bool {
	_, ok := idx.table.Load().byType[entityType]
	return ok
}
