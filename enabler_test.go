package groupaccess

import (
	"sync"
	"testing"
)

// mutableRegistry lets tests change the installed set between rebuilds.
type mutableRegistry struct {
	mu       sync.Mutex
	enablers []ContentEnabler
}

func (r *mutableRegistry) Installed() []ContentEnabler {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ContentEnabler(nil), r.enablers...)
}

func (r *mutableRegistry) set(enablers []ContentEnabler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enablers = enablers
}

func TestEnablerIndexResolution(t *testing.T) {
	idx, err := NewEnablerIndex(StaticEnablers{
		{ID: MembershipEnablerID, EntityType: "user"},
		{ID: "news", EntityType: "node", Bundle: "news"},
		{ID: "any_media", EntityType: "media"},
	})
	if err != nil {
		t.Fatalf("new enabler index: %v", err)
	}

	e, ok := idx.Resolve("node", "news")
	if !ok || e.ID != "news" {
		t.Fatalf("exact bundle resolution failed: %+v %v", e, ok)
	}
	if _, ok = idx.Resolve("node", "article"); ok {
		t.Fatalf("uncovered bundle must not resolve")
	}
	// An unbundled descriptor covers every bundle of its type.
	e, ok = idx.Resolve("media", "image")
	if !ok || e.ID != "any_media" {
		t.Fatalf("unbundled fallback failed: %+v %v", e, ok)
	}
	if e.PermissionBundle() != "media" {
		t.Fatalf("unbundled permission bundle must be the entity type, got %q", e.PermissionBundle())
	}

	// The membership descriptor never resolves content entities.
	if _, ok = idx.Resolve("user", ""); ok {
		t.Fatalf("membership enabler must be skipped")
	}
	if idx.ApplicableEntityType("user") {
		t.Fatalf("membership-only types are not applicable")
	}
	if !idx.ApplicableEntityType("media") {
		t.Fatalf("covered type must be applicable")
	}
}

func TestEnablerIndexRejectsOverlap(t *testing.T) {
	_, err := NewEnablerIndex(StaticEnablers{
		{ID: "news_a", EntityType: "node", Bundle: "news"},
		{ID: "news_b", EntityType: "node", Bundle: "news"},
	})
	if err == nil {
		t.Fatalf("expected overlapping coverage rejection")
	}

	_, err = NewEnablerIndex(StaticEnablers{{ID: "", EntityType: "node"}})
	if err == nil {
		t.Fatalf("expected empty ID rejection")
	}
}

func TestEnablerIndexRebuild(t *testing.T) {
	reg := &mutableRegistry{}
	reg.set([]ContentEnabler{{ID: "news", EntityType: "node", Bundle: "news"}})
	idx, err := NewEnablerIndex(reg)
	if err != nil {
		t.Fatalf("new enabler index: %v", err)
	}

	reg.set([]ContentEnabler{
		{ID: "news", EntityType: "node", Bundle: "news"},
		{ID: "event", EntityType: "node", Bundle: "event"},
	})
	// Until the rebuild, the old mapping stays visible.
	if _, ok := idx.Resolve("node", "event"); ok {
		t.Fatalf("new descriptor visible before rebuild")
	}
	if err := idx.Rebuild(); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if _, ok := idx.Resolve("node", "event"); !ok {
		t.Fatalf("new descriptor missing after rebuild")
	}

	// A failing rebuild keeps the previous table intact.
	reg.set([]ContentEnabler{
		{ID: "a", EntityType: "node", Bundle: "event"},
		{ID: "b", EntityType: "node", Bundle: "event"},
	})
	if err := idx.Rebuild(); err == nil {
		t.Fatalf("expected rebuild failure on overlap")
	}
	if _, ok := idx.Resolve("node", "news"); !ok {
		t.Fatalf("failed rebuild must not clobber the live mapping")
	}
}

func TestEnablerIndexEnumeration(t *testing.T) {
	idx, err := NewEnablerIndex(StaticEnablers{
		{ID: MembershipEnablerID, EntityType: "user"},
		{ID: "news", EntityType: "node", Bundle: "news"},
		{ID: "event", EntityType: "node", Bundle: "event"},
		{ID: "any_media", EntityType: "media"},
	})
	if err != nil {
		t.Fatalf("new enabler index: %v", err)
	}

	types := idx.EntityTypes()
	if len(types) != 2 || types[0] != "node" || types[1] != "media" {
		t.Fatalf("unexpected entity types: %v", types)
	}
	bundles := idx.EntityBundles("node")
	if len(bundles) != 2 || bundles[0] != "news" || bundles[1] != "event" {
		t.Fatalf("unexpected node bundles: %v", bundles)
	}
	// Enablers keeps the raw installed set, membership included.
	if got := idx.Enablers(); len(got) != 4 {
		t.Fatalf("expected 4 installed descriptors, got %d", len(got))
	}
}
