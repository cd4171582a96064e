package stores

import (
	"context"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/oarkflow/groupaccess"
)

// RedisMembershipStore keeps principal->group memberships in Redis sets
// (key: groupmem:{principalID}). It serves the MembershipLister hop in front
// of an SQLGroupStore; group and role data stay in SQL.
type RedisMembershipStore struct {
	client *redis.Client
	keyFmt string // format string, e.g. "groupmem:%s"
}

func NewRedisMembershipStore(client *redis.Client) *RedisMembershipStore {
	return &RedisMembershipStore{client: client, keyFmt: "groupmem:%s"}
}

func (r *RedisMembershipStore) key(principalID string) string {
	return fmt.Sprintf(r.keyFmt, principalID)
}

func (r *RedisMembershipStore) AddMember(ctx context.Context, principalID, groupID string) error {
	return r.client.SAdd(ctx, r.key(principalID), groupID).Err()
}

func (r *RedisMembershipStore) RemoveMember(ctx context.Context, principalID, groupID string) error {
	return r.client.SRem(ctx, r.key(principalID), groupID).Err()
}

// ListGroups returns the principal's group IDs. Redis sets are unordered, so
// the result is sorted to keep the GroupsOf contract deterministic.
func (r *RedisMembershipStore) ListGroups(ctx context.Context, principalID string) ([]string, error) {
	ids, err := r.client.SMembers(ctx, r.key(principalID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", groupaccess.ErrStoreUnavailable, err)
	}
	sort.Strings(ids)
	return ids, nil
}
