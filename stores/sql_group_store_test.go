package stores

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/oarkflow/squealx"
	_ "modernc.org/sqlite"

	"github.com/oarkflow/groupaccess"
)

func newTestDB(t *testing.T) *squealx.DB {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	db := squealx.NewDb(sqlDB, "sqlite", "testdb")
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestSQLGroupStoreRoundtrip(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := NewSQLGroupStore(db, nil)

	if err := store.CreateGroup(ctx, &GroupRecord{ID: "g1", BundleType: "department", Label: "Engineering"}); err != nil {
		t.Fatalf("create group: %v", err)
	}
	rec, err := store.GetGroup(ctx, "g1")
	if err != nil {
		t.Fatalf("get group: %v", err)
	}
	if rec.BundleType != "department" || rec.Label != "Engineering" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.CreatedAt.IsZero() {
		t.Fatalf("created_at must survive the roundtrip")
	}
	if _, err := store.GetGroup(ctx, "missing"); err == nil {
		t.Fatalf("expected not-found error")
	}
}

func TestSQLGroupStoreGroupsOf(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	memberships := NewSQLMembershipStore(db)
	store := NewSQLGroupStore(db, memberships)

	_ = store.CreateGroup(ctx, &GroupRecord{ID: "g1", BundleType: "department", Label: "Engineering"})
	_ = store.CreateGroup(ctx, &GroupRecord{ID: "g2", BundleType: "project", Label: "Skunkworks"})
	if err := store.GrantToRole(ctx, "g1", "member", "view news entity", "view own news entity"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	_ = store.GrantToRole(ctx, "g2", "editor", "update any news entity")

	// Positions reverse the insertion order on purpose.
	if err := memberships.AddMember(ctx, "u1", "g1", 2, "member"); err != nil {
		t.Fatalf("add member: %v", err)
	}
	_ = memberships.AddMember(ctx, "u1", "g2", 1, "editor")
	_ = memberships.AddMember(ctx, "u2", "g1", 1, "member")

	groups, err := store.GroupsOf(ctx, "u1", "")
	if err != nil {
		t.Fatalf("groups of: %v", err)
	}
	if len(groups) != 2 || groups[0].ID() != "g2" || groups[1].ID() != "g1" {
		t.Fatalf("expected position order [g2 g1], got %d groups", len(groups))
	}

	eng := groups[1]
	if eng.Label() != "Engineering" || eng.BundleType() != "department" {
		t.Fatalf("group metadata lost: %s %s", eng.Label(), eng.BundleType())
	}
	if !eng.HasPermission("view news entity", &groupaccess.Principal{ID: "u1"}) {
		t.Fatalf("u1's member role must carry the view permission")
	}
	if eng.HasPermission("update any news entity", &groupaccess.Principal{ID: "u1"}) {
		t.Fatalf("the editor permission lives in g2, not g1")
	}
	if !groups[0].HasPermission("update any news entity", &groupaccess.Principal{ID: "u1"}) {
		t.Fatalf("u1's editor role in g2 must carry the update permission")
	}

	filtered, err := store.GroupsOf(ctx, "u1", "department")
	if err != nil {
		t.Fatalf("groups of filtered: %v", err)
	}
	if len(filtered) != 1 || filtered[0].ID() != "g1" {
		t.Fatalf("type filter failed: %d groups", len(filtered))
	}
}

func TestSQLGroupStoreCorruptRolesRow(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := NewSQLGroupStore(db, nil)

	_ = store.CreateGroup(ctx, &GroupRecord{ID: "g1", BundleType: "department", Label: "Engineering"})
	// Bypass the store API to plant a malformed roles_json row.
	_, err := db.ExecContext(ctx,
		`INSERT INTO group_memberships(principal_id, group_id, roles_json, position, created_at)
		 VALUES('u1', 'g1', '{not json', 1, CURRENT_TIMESTAMP)`)
	if err != nil {
		t.Fatalf("plant corrupt row: %v", err)
	}

	if _, err := store.GroupsOf(ctx, "u1", ""); !errors.Is(err, groupaccess.ErrStoreUnavailable) {
		t.Fatalf("corrupt roles_json must surface as ErrStoreUnavailable, got %v", err)
	}
}

func TestSQLMembershipStoreRemove(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	memberships := NewSQLMembershipStore(db)

	_ = memberships.AddMember(ctx, "u1", "g1", 1, "member")
	_ = memberships.AddMember(ctx, "u1", "g2", 2, "member")
	if err := memberships.RemoveMember(ctx, "u1", "g1"); err != nil {
		t.Fatalf("remove member: %v", err)
	}
	ids, err := memberships.ListGroups(ctx, "u1")
	if err != nil {
		t.Fatalf("list groups: %v", err)
	}
	if len(ids) != 1 || ids[0] != "g2" {
		t.Fatalf("expected [g2], got %v", ids)
	}
}

// The SQL store plugs straight into the decision pipeline.
func TestSQLGroupStoreDrivesDecisions(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	memberships := NewSQLMembershipStore(db)
	store := NewSQLGroupStore(db, memberships)

	_ = store.CreateGroup(ctx, &GroupRecord{ID: "g1", BundleType: "department", Label: "Engineering"})
	_ = store.GrantToRole(ctx, "g1", "member", "view news entity")
	_ = memberships.AddMember(ctx, "owner", "g1", 1, "member")
	_ = memberships.AddMember(ctx, "viewer", "g1", 2, "member")

	enablers, err := groupaccess.NewEnablerIndex(groupaccess.StaticEnablers{
		{ID: "news", EntityType: "node", Bundle: "news"},
	})
	if err != nil {
		t.Fatalf("enabler index: %v", err)
	}
	m, err := groupaccess.NewAccessManager(store, enablers, nil)
	if err != nil {
		t.Fatalf("new access manager: %v", err)
	}

	entity := &groupaccess.Entity{
		ID: "n1", Type: "node", Bundle: "news",
		OwnerID: "owner", Published: groupaccess.PublishStatePublished,
	}
	dec, err := m.Decide(ctx, entity, groupaccess.OpView, &groupaccess.Principal{ID: "viewer"})
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if !dec.Allowed || dec.MatchedBy != "g1" {
		t.Fatalf("expected allow via g1, got %+v", dec)
	}

	dec, err = m.Decide(ctx, entity, groupaccess.OpView, &groupaccess.Principal{ID: "stranger"})
	if err != nil {
		t.Fatalf("decide stranger: %v", err)
	}
	if dec.Allowed {
		t.Fatalf("strangers share no group and must be denied")
	}
}
