package stores

import (
	"context"
	"fmt"
	"sync"

	"github.com/oarkflow/groupaccess"
)

// MemoryGroupStore implements the GroupStore contract in-memory, for tests
// and demos. Memberships keep insertion order so GroupsOf stays deterministic
// for a fixed input.
type MemoryGroupStore struct {
	mu          sync.RWMutex
	groups      map[string]*memoryGroup
	memberships map[string][]string // principalID -> ordered group IDs
	failure     error
}

type memoryGroup struct {
	id          string
	bundleType  string
	label       string
	rolePerms   map[string]map[string]struct{} // role -> permission set
	memberRoles map[string][]string            // principalID -> roles in this group
}

func NewMemoryGroupStore() *MemoryGroupStore {
	return &MemoryGroupStore{
		groups:      make(map[string]*memoryGroup),
		memberships: make(map[string][]string),
	}
}

// AddGroup registers a group of the given type.
func (s *MemoryGroupStore) AddGroup(id, bundleType, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.groups[id]; dup {
		return fmt.Errorf("group %q already exists", id)
	}
	s.groups[id] = &memoryGroup{
		id:          id,
		bundleType:  bundleType,
		label:       label,
		rolePerms:   make(map[string]map[string]struct{}),
		memberRoles: make(map[string][]string),
	}
	return nil
}

// GrantToRole attaches permissions to a group-scoped role.
func (s *MemoryGroupStore) GrantToRole(groupID, role string, permissions ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return fmt.Errorf("group not found: %s", groupID)
	}
	set := g.rolePerms[role]
	if set == nil {
		set = make(map[string]struct{})
		g.rolePerms[role] = set
	}
	for _, p := range permissions {
		set[p] = struct{}{}
	}
	return nil
}

// AddMember joins a principal to a group with the given group-scoped roles.
func (s *MemoryGroupStore) AddMember(principalID, groupID string, roles ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return fmt.Errorf("group not found: %s", groupID)
	}
	g.memberRoles[principalID] = append(g.memberRoles[principalID], roles...)
	for _, existing := range s.memberships[principalID] {
		if existing == groupID {
			return nil
		}
	}
	s.memberships[principalID] = append(s.memberships[principalID], groupID)
	return nil
}

// RemoveMember drops a principal from a group.
func (s *MemoryGroupStore) RemoveMember(principalID, groupID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.groups[groupID]; ok {
		delete(g.memberRoles, principalID)
	}
	ids := s.memberships[principalID]
	for i, id := range ids {
		if id == groupID {
			s.memberships[principalID] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
}

// FailWith makes every following GroupsOf call fail, simulating a store
// outage. Pass nil to recover.
func (s *MemoryGroupStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = err
}

// GroupsOf returns immutable snapshots of the principal's groups in
// membership order, optionally restricted to one group type.
func (s *MemoryGroupStore) GroupsOf(_ context.Context, principalID string, typeFilter string) ([]groupaccess.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failure != nil {
		return nil, fmt.Errorf("%w: %v", groupaccess.ErrStoreUnavailable, s.failure)
	}
	var out []groupaccess.Group
	for _, groupID := range s.memberships[principalID] {
		g, ok := s.groups[groupID]
		if !ok {
			continue
		}
		if typeFilter != "" && g.bundleType != typeFilter {
			continue
		}
		out = append(out, g.snapshot())
	}
	return out, nil
}

// snapshot deep-copies the group so evaluation never races with mutations.
func (g *memoryGroup) snapshot() *GroupSnapshot {
	snap := &GroupSnapshot{
		GroupID:     g.id,
		GroupType:   g.bundleType,
		GroupLabel:  g.label,
		RolePerms:   make(map[string]map[string]struct{}, len(g.rolePerms)),
		MemberRoles: make(map[string][]string, len(g.memberRoles)),
	}
	for role, perms := range g.rolePerms {
		set := make(map[string]struct{}, len(perms))
		for p := range perms {
			set[p] = struct{}{}
		}
		snap.RolePerms[role] = set
	}
	for member, roles := range g.memberRoles {
		snap.MemberRoles[member] = append([]string(nil), roles...)
	}
	return snap
}

// GroupSnapshot is a detached, read-only view of a group: role permission
// sets plus per-member role assignments. Permission evaluation is pure and
// cannot fail after the snapshot is taken. Shared by the memory and SQL
// stores.
type GroupSnapshot struct {
	GroupID     string
	GroupType   string
	GroupLabel  string
	RolePerms   map[string]map[string]struct{}
	MemberRoles map[string][]string
}

func (g *GroupSnapshot) ID() string         { return g.GroupID }
func (g *GroupSnapshot) BundleType() string { return g.GroupType }
func (g *GroupSnapshot) Label() string      { return g.GroupLabel }

// HasPermission checks the permission against the roles the principal holds
// inside this group.
func (g *GroupSnapshot) HasPermission(permission string, principal *groupaccess.Principal) bool {
	if principal == nil {
		return false
	}
	for _, role := range g.MemberRoles[principal.ID] {
		if _, ok := g.RolePerms[role][permission]; ok {
			return true
		}
	}
	return false
}
