package groupaccess

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config describes everything an AccessManager needs besides the backing
// stores: the installed content enablers, the role privilege ordering, and
// the debug/cache knobs.
type Config struct {
	// PrincipalEntityType is the entity type representing principal
	// identities (the RolePrivilege scope). Defaults to "user".
	PrincipalEntityType string           `json:"principal_entity_type,omitempty" yaml:"principal_entity_type,omitempty"`
	Enablers            []ContentEnabler `json:"enablers" yaml:"enablers"`
	// RoleRanking lists non-baseline roles from highest privilege to lowest.
	RoleRanking   []string    `json:"role_ranking,omitempty" yaml:"role_ranking,omitempty"`
	BaselineRoles []string    `json:"baseline_roles,omitempty" yaml:"baseline_roles,omitempty"`
	Debug         DebugFlags  `json:"debug" yaml:"debug"`
	Cache         CacheConfig `json:"cache" yaml:"cache"`
}

type CacheConfig struct {
	DecisionTTLMillis int64 `json:"decision_ttl_ms" yaml:"decision_ttl_ms"`
	NumCounters       int64 `json:"num_counters" yaml:"num_counters"`
	MaxCost           int64 `json:"max_cost" yaml:"max_cost"`
	BufferItems       int64 `json:"buffer_items" yaml:"buffer_items"`
}

func (c CacheConfig) enabled() bool { return c.DecisionTTLMillis > 0 }

func (c CacheConfig) decisionCacheConfig() DecisionCacheConfig {
	cfg := DefaultDecisionCacheConfig()
	cfg.TTL = time.Duration(c.DecisionTTLMillis) * time.Millisecond
	if c.NumCounters > 0 {
		cfg.NumCounters = c.NumCounters
	}
	if c.MaxCost > 0 {
		cfg.MaxCost = c.MaxCost
	}
	if c.BufferItems > 0 {
		cfg.BufferItems = c.BufferItems
	}
	return cfg
}

// Validate checks internal consistency: enabler collisions and the role
// ranking's uniqueness/baseline separation.
func (c *Config) Validate() error {
	if len(c.Enablers) == 0 {
		return fmt.Errorf("config needs at least one content enabler")
	}
	if _, err := buildEnablerTable(c.Enablers); err != nil {
		return err
	}
	if _, err := NewRoleRanking(c.RoleRanking, c.BaselineRoles); err != nil {
		return err
	}
	return nil
}

func (c *Config) principalEntityType() string {
	if c.PrincipalEntityType != "" {
		return c.PrincipalEntityType
	}
	return "user"
}

// ConfigLoader parses configuration from YAML or JSON.
type ConfigLoader struct{}

func NewConfigLoader() *ConfigLoader { return &ConfigLoader{} }

func (l *ConfigLoader) LoadYAML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *ConfigLoader) LoadJSON(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile dispatches on the file extension (.yaml/.yml/.json).
func (l *ConfigLoader) LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return l.LoadYAML(data)
	case ".json":
		return l.LoadJSON(data)
	default:
		return nil, fmt.Errorf("unsupported config extension: %s", path)
	}
}

// NewAccessManagerFromConfig wires a full manager from config plus the group
// store: the enabler index, the built-in special cases (permission bypass,
// role privilege when a ranking is configured), diagnostics and the decision
// cache. Extra options apply last.
func NewAccessManagerFromConfig(cfg *Config, groups GroupStore, sink DiagnosticsSink, opts ...Option) (*AccessManager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	enablers, err := NewEnablerIndex(StaticEnablers(cfg.Enablers))
	if err != nil {
		return nil, err
	}
	registry := NewSpecialCaseRegistry()
	if err := registry.Register(NewPermissionBypass()); err != nil {
		return nil, err
	}
	if len(cfg.RoleRanking) > 0 {
		ranking, err := NewRoleRanking(cfg.RoleRanking, cfg.BaselineRoles)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(NewRolePrivilege(ranking, cfg.principalEntityType())); err != nil {
			return nil, err
		}
	}

	managerOpts := []Option{WithDiagnostics(cfg.Debug, sink)}
	if cfg.Cache.enabled() {
		managerOpts = append(managerOpts, WithDecisionCache(cfg.Cache.decisionCacheConfig()))
	}
	managerOpts = append(managerOpts, opts...)
	return NewAccessManager(groups, enablers, registry, managerOpts...)
}
