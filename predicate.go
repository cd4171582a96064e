package groupaccess

import (
	"fmt"
	"strings"
)

// Field names the compiler emits conditions over. A search executor denormalizes
// these per item at index time (IndexFields) and stores them alongside it.
const (
	FieldDatasource = "datasource"
	FieldGroupIDs   = "group_access_ids"
	FieldBundle     = "group_access_bundle"
	FieldOwner      = "group_access_owner"
)

// Operator is a condition comparison operator.
type Operator string

const (
	OperatorEquals Operator = "="
	OperatorIn     Operator = "IN"
)

// Conjunctions for condition groups.
const (
	ConjunctionAnd = "AND"
	ConjunctionOr  = "OR"
)

// Condition compares one named field against a value. With OperatorIn the
// value is a []string of accepted values; with OperatorEquals a single
// string. A condition on FieldGroupIDs matches when any of the item's group
// IDs matches.
type Condition struct {
	Field    string   `json:"field"`
	Value    any      `json:"value"`
	Operator Operator `json:"operator"`
}

// ConditionGroup is a node in the predicate tree a search executor receives:
// a conjunction over leaf conditions and nested groups. Tags carry no
// matching semantics; they label subtrees for executors and debugging.
type ConditionGroup struct {
	Conjunction string            `json:"conjunction"`
	Tags        []string          `json:"tags,omitempty"`
	Conditions  []Condition       `json:"conditions,omitempty"`
	Groups      []*ConditionGroup `json:"groups,omitempty"`
}

// NewConditionGroup returns an empty group with the given conjunction.
func NewConditionGroup(conjunction string, tags ...string) *ConditionGroup {
	return &ConditionGroup{Conjunction: conjunction, Tags: tags}
}

// AddCondition appends a leaf condition and returns the group for chaining.
func (g *ConditionGroup) AddCondition(field string, value any, operator Operator) *ConditionGroup {
	g.Conditions = append(g.Conditions, Condition{Field: field, Value: value, Operator: operator})
	return g
}

// AddGroup nests a child group.
func (g *ConditionGroup) AddGroup(child *ConditionGroup) *ConditionGroup {
	g.Groups = append(g.Groups, child)
	return g
}

// IndexedFields are the denormalized per-item fields the predicate is
// evaluated against. GroupIDs must equal the groups of the item's owner at
// index time for the predicate to agree with per-item decisions.
type IndexedFields struct {
	Datasource string   `json:"datasource"`
	GroupIDs   []string `json:"group_access_ids"`
	Bundle     string   `json:"group_access_bundle"`
	OwnerID    string   `json:"group_access_owner"`
}

// Match evaluates the predicate against one item's fields. An empty OR group
// matches nothing and an empty AND group matches everything, so a principal
// with no groups is filtered out rather than let through unfiltered.
func (g *ConditionGroup) Match(fields *IndexedFields) bool {
	or := g.Conjunction == ConjunctionOr
	for _, c := range g.Conditions {
		hit := c.match(fields)
		if or && hit {
			return true
		}
		if !or && !hit {
			return false
		}
	}
	for _, child := range g.Groups {
		hit := child.Match(fields)
		if or && hit {
			return true
		}
		if !or && !hit {
			return false
		}
	}
	return !or
}

func (c Condition) match(fields *IndexedFields) bool {
	switch c.Field {
	case FieldGroupIDs:
		for _, accepted := range c.acceptedValues() {
			for _, gid := range fields.GroupIDs {
				if gid == accepted {
					return true
				}
			}
		}
		return false
	case FieldDatasource:
		return c.accepts(fields.Datasource)
	case FieldBundle:
		return c.accepts(fields.Bundle)
	case FieldOwner:
		return c.accepts(fields.OwnerID)
	default:
		return false
	}
}

func (c Condition) accepts(value string) bool {
	for _, accepted := range c.acceptedValues() {
		if accepted == value {
			return true
		}
	}
	return false
}

func (c Condition) acceptedValues() []string {
	switch v := c.Value.(type) {
	case string:
		return []string{v}
	case []string:
		return v
	default:
		return nil
	}
}

// String renders the tree for logs and test failure messages. Prefix form,
// so the conjunction shows even for groups with a single member.
func (g *ConditionGroup) String() string {
	parts := make([]string, 0, len(g.Conditions)+len(g.Groups))
	for _, c := range g.Conditions {
		parts = append(parts, fmt.Sprintf("%s %s %v", c.Field, c.Operator, c.Value))
	}
	for _, child := range g.Groups {
		parts = append(parts, child.String())
	}
	return g.Conjunction + "(" + strings.Join(parts, ", ") + ")"
}

// Datasource describes one indexable source of a search index.
type Datasource struct {
	ID         string `json:"id"`
	EntityType string `json:"entity_type"`
}
