package groupaccess

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

// fakeGroup and fakeStore are the minimal in-package test doubles; the full
// store implementations live in the stores package.
type fakeGroup struct {
	id         string
	bundleType string
	label      string
	perms      map[string]bool
}

func (g *fakeGroup) ID() string         { return g.id }
func (g *fakeGroup) BundleType() string { return g.bundleType }
func (g *fakeGroup) Label() string      { return g.label }
func (g *fakeGroup) HasPermission(permission string, _ *Principal) bool {
	return g.perms[permission]
}

type fakeStore struct {
	groups map[string][]Group
	err    error
	calls  int
}

func (s *fakeStore) GroupsOf(_ context.Context, principalID string, typeFilter string) ([]Group, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	var out []Group
	for _, g := range s.groups[principalID] {
		if typeFilter != "" && g.BundleType() != typeFilter {
			continue
		}
		out = append(out, g)
	}
	return out, nil
}

const configYAML = `principal_entity_type: user
enablers:
  - id: group_membership
    entity_type: user
  - id: news
    entity_type: node
    bundle: news
  - id: any_media
    entity_type: media
role_ranking: [admin, editor, viewer]
baseline_roles: [anonymous, authenticated]
debug:
  messages: true
  log: false
cache:
  decision_ttl_ms: 500
  max_cost: 2048
`

func TestConfigLoadYAML(t *testing.T) {
	cfg, err := NewConfigLoader().LoadYAML([]byte(configYAML))
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(cfg.Enablers) != 3 || cfg.Enablers[1].ID != "news" {
		t.Fatalf("enablers lost: %+v", cfg.Enablers)
	}
	if len(cfg.RoleRanking) != 3 || cfg.RoleRanking[0] != "admin" {
		t.Fatalf("ranking lost: %v", cfg.RoleRanking)
	}
	if !cfg.Debug.Messages || cfg.Debug.Log {
		t.Fatalf("debug flags lost: %+v", cfg.Debug)
	}
	if !cfg.Cache.enabled() || cfg.Cache.DecisionTTLMillis != 500 {
		t.Fatalf("cache config lost: %+v", cfg.Cache)
	}
	cc := cfg.Cache.decisionCacheConfig()
	if cc.MaxCost != 2048 || cc.NumCounters != DefaultDecisionCacheConfig().NumCounters {
		t.Fatalf("cache sizing: %+v", cc)
	}
}

func TestConfigLoadFileDispatch(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "access.yaml")
	if err := os.WriteFile(yamlPath, []byte(configYAML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	jsonPath := filepath.Join(dir, "access.json")
	if err := os.WriteFile(jsonPath, []byte(`{"enablers":[{"id":"news","entity_type":"node","bundle":"news"}]}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	loader := NewConfigLoader()
	if _, err := loader.LoadFile(yamlPath); err != nil {
		t.Fatalf("load yaml file: %v", err)
	}
	cfg, err := loader.LoadFile(jsonPath)
	if err != nil {
		t.Fatalf("load json file: %v", err)
	}
	if len(cfg.Enablers) != 1 {
		t.Fatalf("json enablers lost: %+v", cfg.Enablers)
	}
	if _, err := loader.LoadFile(filepath.Join(dir, "access.toml")); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
}

func TestConfigValidateFailures(t *testing.T) {
	empty := &Config{}
	if err := empty.Validate(); err == nil {
		t.Fatalf("expected failure with no enablers")
	}

	overlap := &Config{Enablers: []ContentEnabler{
		{ID: "a", EntityType: "node", Bundle: "news"},
		{ID: "b", EntityType: "node", Bundle: "news"},
	}}
	if err := overlap.Validate(); err == nil {
		t.Fatalf("expected failure on overlapping enablers")
	}

	badRanking := &Config{
		Enablers:      []ContentEnabler{{ID: "news", EntityType: "node", Bundle: "news"}},
		RoleRanking:   []string{"admin", "authenticated"},
		BaselineRoles: []string{"authenticated"},
	}
	if err := badRanking.Validate(); err == nil {
		t.Fatalf("expected failure on baseline role in ranking")
	}
}

func TestNewAccessManagerFromConfig(t *testing.T) {
	ctx := context.Background()
	cfg, err := NewConfigLoader().LoadYAML([]byte(configYAML))
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	store := &fakeStore{groups: map[string][]Group{}}
	m, err := NewAccessManagerFromConfig(cfg, store, nil)
	if err != nil {
		t.Fatalf("from config: %v", err)
	}

	// The bypass case is wired.
	dec, err := m.Decide(ctx, &Entity{ID: "n1", Type: "node", Bundle: "news"},
		OpView, &Principal{ID: "admin", Permissions: []string{BypassPermission}})
	if err != nil {
		t.Fatalf("decide bypass: %v", err)
	}
	if !dec.Allowed || dec.MatchedBy != "permission_bypass" {
		t.Fatalf("bypass case missing: %+v", dec)
	}

	// The role privilege case is wired against the configured ranking.
	admin := &Entity{ID: "u-admin", Type: "user", IsPrincipal: true, Roles: []string{"admin"}}
	dec, err = m.Decide(ctx, admin, OpUpdate, &Principal{ID: "p-editor", Roles: []string{"editor"}})
	if err != nil {
		t.Fatalf("decide privilege: %v", err)
	}
	if dec.Allowed || dec.MatchedBy != "role_privilege" {
		t.Fatalf("role privilege case missing: %+v", dec)
	}

	// The decision cache is on, per the config TTL.
	if m.cache == nil {
		t.Fatalf("expected the decision cache to be configured")
	}
}

func TestNewAccessManagerFromConfigRejectsInvalid(t *testing.T) {
	cfg := &Config{}
	if _, err := NewAccessManagerFromConfig(cfg, &fakeStore{}, nil); err == nil {
		t.Fatalf("expected validation failure")
	}
}
