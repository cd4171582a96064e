package groupaccess

import (
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"
)

// DecisionCacheConfig sizes the ristretto cache behind WithDecisionCache.
type DecisionCacheConfig struct {
	TTL         time.Duration
	NumCounters int64
	MaxCost     int64
	BufferItems int64
}

// DefaultDecisionCacheConfig suits a service handling a few thousand distinct
// (entity, principal) pairs between invalidations.
func DefaultDecisionCacheConfig() DecisionCacheConfig {
	return DecisionCacheConfig{
		TTL:         time.Second,
		NumCounters: 100_000,
		MaxCost:     10_000,
		BufferItems: 64,
	}
}

// decisionCache memoizes successful decisions for a short TTL. Errors are
// never cached. The key covers the triple's identity (entity, publish state,
// operation, principal ID) but not the principal's permission or role sets:
// membership, role or permission changes require InvalidateDecisions, with
// the TTL bounding how long a stale decision can otherwise survive.
type decisionCache struct {
	cache *ristretto.Cache
	ttl   time.Duration
}

func newDecisionCache(cfg DecisionCacheConfig) (*decisionCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
	})
	if err != nil {
		return nil, err
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Second
	}
	return &decisionCache{cache: c, ttl: ttl}, nil
}

func decisionKey(entity *Entity, op Operation, principal *Principal) string {
	var b strings.Builder
	b.Grow(len(entity.Type) + len(entity.ID) + len(entity.Bundle) + len(op) + len(principal.ID) + 8)
	b.WriteString(entity.Type)
	b.WriteByte(0)
	b.WriteString(entity.ID)
	b.WriteByte(0)
	b.WriteString(entity.Bundle)
	b.WriteByte(0)
	b.WriteString(strconv.Itoa(int(entity.Published)))
	b.WriteByte(0)
	b.WriteString(string(op))
	b.WriteByte(0)
	b.WriteString(principal.ID)
	return b.String()
}

func (d *decisionCache) get(key string) (*Decision, bool) {
	v, ok := d.cache.Get(key)
	if !ok {
		return nil, false
	}
	dec, ok := v.(*Decision)
	return dec, ok
}

func (d *decisionCache) set(key string, dec *Decision) {
	d.cache.SetWithTTL(key, dec, 1, d.ttl)
}

func (d *decisionCache) clear() {
	d.cache.Clear()
}

// wait drains ristretto's set buffer; tests use it to make cached entries
// visible deterministically.
func (d *decisionCache) wait() {
	d.cache.Wait()
}
