package groupaccess

import (
	"context"
	"fmt"
)

// SpecialCaseKind tags an override rule as granting or denying.
type SpecialCaseKind string

const (
	CaseAllowed   SpecialCaseKind = "allowed"
	CaseForbidden SpecialCaseKind = "forbidden"
)

// SpecialCase is a named override rule that can force an outcome independent
// of group permissions. A case scopes itself to entity types (empty = all)
// minus an excluded set.
type SpecialCase interface {
	ID() string
	Label() string
	Kind() SpecialCaseKind
	EntityTypes() []string
	ExcludedEntityTypes() []string
	// Evaluate reports whether the case applies to this triple. An error from
	// the case's own logic aborts the whole decision.
	Evaluate(ctx context.Context, entity *Entity, op Operation, principal *Principal) (bool, error)
}

// SpecialCaseRegistry is an ordered, startup-time collection of special
// cases. Registration order is evaluation order and must be stable; register
// everything before handing the registry to an AccessManager.
type SpecialCaseRegistry struct {
	cases []SpecialCase
	ids   map[string]struct{}
}

func NewSpecialCaseRegistry() *SpecialCaseRegistry {
	return &SpecialCaseRegistry{ids: make(map[string]struct{})}
}

// Register appends a case. Duplicate IDs are rejected so evaluation order
// stays unambiguous.
func (r *SpecialCaseRegistry) Register(cases ...SpecialCase) error {
	for _, c := range cases {
		if c.ID() == "" {
			return fmt.Errorf("special case needs an id")
		}
		if _, dup := r.ids[c.ID()]; dup {
			return fmt.Errorf("special case %q already registered", c.ID())
		}
		if c.Kind() != CaseAllowed && c.Kind() != CaseForbidden {
			return fmt.Errorf("special case %q has unknown kind %q", c.ID(), c.Kind())
		}
		r.ids[c.ID()] = struct{}{}
		r.cases = append(r.cases, c)
	}
	return nil
}

// ForEntityType returns the cases of the given kind that apply to the entity
// type, in registration order. A case applies when the type is listed or the
// list is empty, and the type is not excluded.
func (r *SpecialCaseRegistry) ForEntityType(entityType string, kind SpecialCaseKind) []SpecialCase {
	var out []SpecialCase
	for _, c := range r.cases {
		if c.Kind() != kind {
			continue
		}
		if !caseCoversType(c, entityType) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func caseCoversType(c SpecialCase, entityType string) bool {
	for _, excluded := range c.ExcludedEntityTypes() {
		if excluded == entityType {
			return false
		}
	}
	types := c.EntityTypes()
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if t == entityType {
			return true
		}
	}
	return false
}

// Len reports how many cases are registered.
func (r *SpecialCaseRegistry) Len() int { return len(r.cases) }

// SpecialCaseFunc builds a SpecialCase from a plain function, for cases with
// no state of their own.
type SpecialCaseFunc struct {
	CaseID       string
	CaseLabel    string
	CaseKind     SpecialCaseKind
	Types        []string
	ExcludeTypes []string
	Check        func(ctx context.Context, entity *Entity, op Operation, principal *Principal) (bool, error)
}

func (s *SpecialCaseFunc) ID() string                    { return s.CaseID }
func (s *SpecialCaseFunc) Label() string                 { return s.CaseLabel }
func (s *SpecialCaseFunc) Kind() SpecialCaseKind         { return s.CaseKind }
func (s *SpecialCaseFunc) EntityTypes() []string         { return s.Types }
func (s *SpecialCaseFunc) ExcludedEntityTypes() []string { return s.ExcludeTypes }

func (s *SpecialCaseFunc) Evaluate(ctx context.Context, entity *Entity, op Operation, principal *Principal) (bool, error) {
	return s.Check(ctx, entity, op, principal)
}
