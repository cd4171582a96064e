package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oarkflow/squealx"

	"github.com/oarkflow/groupaccess"
)

// MembershipLister is the read side of a membership index: the ordered group
// IDs a principal belongs to. SQLGroupStore consumes it, so the listing hop
// can be served from SQL or from a faster index like Redis.
type MembershipLister interface {
	ListGroups(ctx context.Context, principalID string) ([]string, error)
}

// SQLMembershipStore persists memberships in the group_memberships table and
// serves ordered listings from it.
type SQLMembershipStore struct {
	db *squealx.DB
}

func NewSQLMembershipStore(db *squealx.DB) *SQLMembershipStore {
	return &SQLMembershipStore{db: db}
}

// AddMember joins a principal to a group with group-scoped roles. Position
// fixes the listing order; reusing a position is allowed, ties order by
// group ID.
func (s *SQLMembershipStore) AddMember(ctx context.Context, principalID, groupID string, position int, roles ...string) error {
	rolesJSON, err := json.Marshal(roles)
	if err != nil {
		return err
	}
	q := `INSERT INTO group_memberships(principal_id, group_id, roles_json, position, created_at)
	      VALUES(:principal_id, :group_id, :roles_json, :position, :created_at)`
	_, err = s.db.NamedExecContext(ctx, q, map[string]any{
		"principal_id": principalID,
		"group_id":     groupID,
		"roles_json":   string(rolesJSON),
		"position":     position,
		"created_at":   time.Now(),
	})
	return err
}

// RemoveMember drops a principal from a group.
func (s *SQLMembershipStore) RemoveMember(ctx context.Context, principalID, groupID string) error {
	q := `DELETE FROM group_memberships WHERE principal_id = :principal_id AND group_id = :group_id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"principal_id": principalID,
		"group_id":     groupID,
	})
	return err
}

// ListGroups returns the principal's group IDs ordered by position then
// group ID.
func (s *SQLMembershipStore) ListGroups(ctx context.Context, principalID string) ([]string, error) {
	q := `SELECT group_id FROM group_memberships WHERE principal_id = :principal_id ORDER BY position, group_id`
	rows, err := s.db.NamedQueryContext(ctx, q, map[string]any{"principal_id": principalID})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", groupaccess.ErrStoreUnavailable, err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: %v", groupaccess.ErrStoreUnavailable, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
