package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oarkflow/squealx"

	"github.com/oarkflow/groupaccess"
)

// SQLGroupStore serves the GroupStore contract from SQL (squealx). Each
// GroupsOf call snapshots the role permission sets and member roles of the
// principal's groups, so permission evaluation cannot fail mid-decision; a
// store outage surfaces only here, as ErrStoreUnavailable.
//
// The membership listing hop goes through a MembershipLister, so it can be
// served from the same database (SQLMembershipStore) or a faster index
// (RedisMembershipStore) while role data stays in SQL.
type SQLGroupStore struct {
	db          *squealx.DB
	memberships MembershipLister
}

func NewSQLGroupStore(db *squealx.DB, memberships MembershipLister) *SQLGroupStore {
	if memberships == nil {
		memberships = NewSQLMembershipStore(db)
	}
	return &SQLGroupStore{db: db, memberships: memberships}
}

// GroupRecord is the stored form of a group.
type GroupRecord struct {
	ID         string
	BundleType string
	Label      string
	CreatedAt  time.Time
}

// CreateGroup inserts a group row.
func (s *SQLGroupStore) CreateGroup(ctx context.Context, g *GroupRecord) error {
	q := `INSERT INTO groups(id, bundle_type, label, created_at) VALUES(:id, :bundle_type, :label, :created_at)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":          g.ID,
		"bundle_type": g.BundleType,
		"label":       g.Label,
		"created_at":  time.Now(),
	})
	return err
}

// GetGroup loads one group row.
func (s *SQLGroupStore) GetGroup(ctx context.Context, id string) (*GroupRecord, error) {
	q := `SELECT id, bundle_type, label, created_at FROM groups WHERE id = :id`
	rows, err := s.db.NamedQueryContext(ctx, q, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", groupaccess.ErrStoreUnavailable, err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, fmt.Errorf("group not found: %s", id)
	}
	var rec GroupRecord
	var createdRaw any
	if err := rows.Scan(&rec.ID, &rec.BundleType, &rec.Label, &createdRaw); err != nil {
		return nil, fmt.Errorf("%w: %v", groupaccess.ErrStoreUnavailable, err)
	}
	rec.CreatedAt = scanTime(createdRaw)
	return &rec, nil
}

// GrantToRole attaches permissions to a group-scoped role.
func (s *SQLGroupStore) GrantToRole(ctx context.Context, groupID, roleID string, permissions ...string) error {
	q := `INSERT INTO group_role_permissions(group_id, role_id, permission) VALUES(:group_id, :role_id, :permission)`
	for _, permission := range permissions {
		_, err := s.db.NamedExecContext(ctx, q, map[string]any{
			"group_id":   groupID,
			"role_id":    roleID,
			"permission": permission,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// GroupsOf loads snapshots of the principal's groups in listing order,
// optionally restricted to one group type.
func (s *SQLGroupStore) GroupsOf(ctx context.Context, principalID string, typeFilter string) ([]groupaccess.Group, error) {
	ids, err := s.memberships.ListGroups(ctx, principalID)
	if err != nil {
		return nil, err
	}
	var out []groupaccess.Group
	for _, id := range ids {
		rec, err := s.GetGroup(ctx, id)
		if err != nil {
			return nil, err
		}
		if typeFilter != "" && rec.BundleType != typeFilter {
			continue
		}
		snap, err := s.snapshotGroup(ctx, rec)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

func (s *SQLGroupStore) snapshotGroup(ctx context.Context, rec *GroupRecord) (*GroupSnapshot, error) {
	snap := &GroupSnapshot{
		GroupID:     rec.ID,
		GroupType:   rec.BundleType,
		GroupLabel:  rec.Label,
		RolePerms:   make(map[string]map[string]struct{}),
		MemberRoles: make(map[string][]string),
	}

	q := `SELECT role_id, permission FROM group_role_permissions WHERE group_id = :group_id`
	rows, err := s.db.NamedQueryContext(ctx, q, map[string]any{"group_id": rec.ID})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", groupaccess.ErrStoreUnavailable, err)
	}
	for rows.Next() {
		var roleID, permission string
		if err := rows.Scan(&roleID, &permission); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%w: %v", groupaccess.ErrStoreUnavailable, err)
		}
		set := snap.RolePerms[roleID]
		if set == nil {
			set = make(map[string]struct{})
			snap.RolePerms[roleID] = set
		}
		set[permission] = struct{}{}
	}
	rows.Close()

	q = `SELECT principal_id, roles_json FROM group_memberships WHERE group_id = :group_id`
	rows, err = s.db.NamedQueryContext(ctx, q, map[string]any{"group_id": rec.ID})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", groupaccess.ErrStoreUnavailable, err)
	}
	defer rows.Close()
	for rows.Next() {
		var principalID, rolesJSON string
		if err := rows.Scan(&principalID, &rolesJSON); err != nil {
			return nil, fmt.Errorf("%w: %v", groupaccess.ErrStoreUnavailable, err)
		}
		var roles []string
		if err := json.Unmarshal([]byte(rolesJSON), &roles); err != nil {
			return nil, fmt.Errorf("%w: group %s member %s roles: %v",
				groupaccess.ErrStoreUnavailable, rec.ID, principalID, err)
		}
		snap.MemberRoles[principalID] = roles
	}
	return snap, nil
}
