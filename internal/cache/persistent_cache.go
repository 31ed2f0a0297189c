// Package cache implements a two-tier cache with a memory-bounded,
// TTL-aware, dependency-tracking persistent tier (NamedCache, grouped
// under a Coordinator) and a request-scoped tier with no eviction.
//
// The persistent tier's LRU bookkeeping (container/list + mutex, move to
// front on access, evict from back) follows the same shape the engine
// already used for its small in-memory caches; its atomic hit/miss/
// eviction counters and health-status buckets follow the engine's
// higher-volume metrics cache. Keys are content hashes computed with
// xxhash, the engine's existing fast-hash choice.
package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	cerrors "github.com/Zmaroo/RepoAnalyzer/internal/errors"
)

// Sizeable is the contract a cached value must satisfy so the cache can
// enforce its byte budget without knowing the value's concrete type.
type Sizeable interface {
	SizeBytes() int
}

// ContentHash returns the engine's standard cache-key hash for a byte slice.
func ContentHash(b []byte) uint64 { return xxhash.Sum64(b) }

type entry struct {
	key         string
	value       Sizeable
	sizeBytes   int
	insertedAt  time.Time
	lastAccess  int64 // unix nano, atomic
	accessCount int64 // atomic
	baseTTL     time.Duration
	dependents  map[string]struct{} // keys that depend on this one
	dependsOn   []string
}

// NamedCache is one budgeted, LRU-evicted, TTL-aware persistent cache (one
// of "ast", "pattern", "classification" in the Coordinator).
type NamedCache struct {
	name   string
	mu     sync.Mutex
	items  map[string]*list.Element
	order  *list.List // front = most recently used
	budget int
	used   int

	defaultTTL time.Duration
	adaptive   bool

	hits      int64
	misses    int64
	evictions int64
}

// NewNamedCache creates a cache bounded to budgetBytes with defaultTTL
// applied to entries that don't specify their own.
func NewNamedCache(name string, budgetBytes int, defaultTTL time.Duration, adaptiveTTL bool) *NamedCache {
	return &NamedCache{
		name:       name,
		items:      make(map[string]*list.Element),
		order:      list.New(),
		budget:     budgetBytes,
		defaultTTL: defaultTTL,
		adaptive:   adaptiveTTL,
	}
}

func (c *NamedCache) effectiveTTL(e *entry) time.Duration {
	if !c.adaptive {
		return e.baseTTL
	}
	// Adaptive TTL: scale the base TTL by a factor in [0.5, 4.0] derived
	// from this entry's own access frequency — no cross-cache coordinator
	// state, only key-local statistics.
	accesses := atomic.LoadInt64(&e.accessCount)
	age := time.Since(e.insertedAt)
	if age <= 0 {
		age = time.Millisecond
	}
	freq := float64(accesses) / age.Hours()
	factor := 0.5 + freq
	if factor > 4.0 {
		factor = 4.0
	}
	if factor < 0.5 {
		factor = 0.5
	}
	return time.Duration(float64(e.baseTTL) * factor)
}

// Get returns the value for key, or (nil, false) on miss or expiry.
func (c *NamedCache) Get(key string) (Sizeable, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}
	e := el.Value.(*entry)
	if c.expired(e) {
		c.removeLocked(el)
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}
	c.order.MoveToFront(el)
	atomic.AddInt64(&e.accessCount, 1)
	atomic.StoreInt64(&e.lastAccess, time.Now().UnixNano())
	atomic.AddInt64(&c.hits, 1)
	return e.value, true
}

func (c *NamedCache) expired(e *entry) bool {
	if e.baseTTL <= 0 {
		return false
	}
	return time.Since(e.insertedAt) > c.effectiveTTL(e)
}

// Set inserts key/value with an optional ttl (0 = cache default) and an
// optional list of dependency keys. If the entry alone exceeds the
// budget, Set rejects the insert and returns false (a miss signal).
//
// Eviction is lazy: the new entry is always admitted first, then LRU
// entries are evicted from the back only until the *rest* of the cache
// (excluding the entry just inserted) fits the budget. This tolerates
// resident bytes exceeding budget by up to the size of the newest entry,
// matching the documented memory-bound invariant, rather than evicting
// proactively to keep resident bytes strictly under budget at all times.
func (c *NamedCache) Set(key string, value Sizeable, ttl time.Duration, deps []string) bool {
	size := value.SizeBytes()
	if size > c.budget {
		return false
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.removeLocked(el)
	}

	e := &entry{
		key:        key,
		value:      value,
		sizeBytes:  size,
		insertedAt: time.Now(),
		lastAccess: time.Now().UnixNano(),
		baseTTL:    ttl,
		dependsOn:  append([]string(nil), deps...),
	}
	el := c.order.PushFront(e)
	c.items[key] = el
	c.used += size

	for c.used-size > c.budget && c.order.Len() > 1 {
		back := c.order.Back()
		if back == el {
			break
		}
		c.removeLocked(back)
	}

	for _, dep := range deps {
		if depEl, ok := c.items[dep]; ok {
			depEntry := depEl.Value.(*entry)
			if depEntry.dependents == nil {
				depEntry.dependents = make(map[string]struct{})
			}
			depEntry.dependents[key] = struct{}{}
		}
	}
	return true
}

// removeLocked evicts an element; caller holds c.mu.
func (c *NamedCache) removeLocked(el *list.Element) {
	e := el.Value.(*entry)
	c.order.Remove(el)
	delete(c.items, e.key)
	c.used -= e.sizeBytes
	atomic.AddInt64(&c.evictions, 1)
}

// Invalidate removes key and transitively invalidates every entry that
// (directly or indirectly) depends on it. Traversal is depth-bounded to
// 64 to stay safe against cycles.
func (c *NamedCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked(key, 0, make(map[string]struct{}))
}

const maxInvalidationDepth = 64

func (c *NamedCache) invalidateLocked(key string, depth int, visited map[string]struct{}) {
	if depth >= maxInvalidationDepth {
		return
	}
	if _, seen := visited[key]; seen {
		return
	}
	visited[key] = struct{}{}

	el, ok := c.items[key]
	if !ok {
		return
	}
	e := el.Value.(*entry)
	dependents := make([]string, 0, len(e.dependents))
	for d := range e.dependents {
		dependents = append(dependents, d)
	}
	c.removeLocked(el)

	for _, d := range dependents {
		c.invalidateLocked(d, depth+1, visited)
	}
}

// InvalidateMatching removes every key with the given prefix.
func (c *NamedCache) InvalidateMatching(prefix string) {
	c.mu.Lock()
	var keys []string
	for k := range c.items {
		if len(prefix) == 0 || (len(k) >= len(prefix) && k[:len(prefix)] == prefix) {
			keys = append(keys, k)
		}
	}
	c.mu.Unlock()

	for _, k := range keys {
		c.Invalidate(k)
	}
}

// Clear empties the cache and resets eviction bookkeeping, keeping hit/miss
// counters (they describe the cache's lifetime, not its contents).
func (c *NamedCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.order = list.New()
	c.used = 0
}

// NamedCacheStats mirrors the Coordinator's aggregated metrics, per-cache.
type NamedCacheStats struct {
	Name         string
	Hits         int64
	Misses       int64
	Evictions    int64
	ResidentBytes int
	Entries      int
	HealthStatus string
}

func (c *NamedCache) Stats() NamedCacheStats {
	c.mu.Lock()
	resident, entries := c.used, c.order.Len()
	c.mu.Unlock()

	hits := atomic.LoadInt64(&c.hits)
	misses := atomic.LoadInt64(&c.misses)
	total := hits + misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	return NamedCacheStats{
		Name:          c.name,
		Hits:          hits,
		Misses:        misses,
		Evictions:     atomic.LoadInt64(&c.evictions),
		ResidentBytes: resident,
		Entries:       entries,
		HealthStatus:  healthStatus(hitRate),
	}
}

func healthStatus(hitRate float64) string {
	switch {
	case hitRate >= 0.95:
		return "excellent"
	case hitRate >= 0.85:
		return "good"
	case hitRate >= 0.70:
		return "fair"
	default:
		return "poor"
	}
}

// Coordinator is the process-wide registry of NamedCaches (ast, pattern,
// classification). Bulk operations and metrics aggregation are
// read-mostly and safe under concurrent use; mutation of the registry
// itself (adding a cache) is serialized by mu.
type Coordinator struct {
	mu     sync.RWMutex
	caches map[string]*NamedCache
}

// NewCoordinator builds a Coordinator with the engine's three standard
// persistent caches pre-registered.
func NewCoordinator(astBudget, patternBudget, classificationBudget int, ttl time.Duration) *Coordinator {
	co := &Coordinator{caches: make(map[string]*NamedCache)}
	co.Register(NewNamedCache("ast", astBudget, ttl, true))
	co.Register(NewNamedCache("pattern", patternBudget, ttl, true))
	co.Register(NewNamedCache("classification", classificationBudget, ttl, false))
	return co
}

// Register adds or replaces a named cache.
func (co *Coordinator) Register(nc *NamedCache) {
	co.mu.Lock()
	defer co.mu.Unlock()
	co.caches[nc.name] = nc
}

// Cache returns the named cache, or (nil, false) if unregistered.
func (co *Coordinator) Cache(name string) (*NamedCache, bool) {
	co.mu.RLock()
	defer co.mu.RUnlock()
	nc, ok := co.caches[name]
	return nc, ok
}

// Get is a CacheError-producing convenience wrapper: an unregistered
// cache name is reported as a CacheError and treated as a miss.
func (co *Coordinator) Get(cacheName, key string) (Sizeable, bool, error) {
	nc, ok := co.Cache(cacheName)
	if !ok {
		return nil, false, cerrors.NewCacheError(cerrors.CacheCorruptEntry, key)
	}
	v, ok := nc.Get(key)
	return v, ok, nil
}

// InvalidatePrefix purges the given key prefix from every registered cache
// — the hook file watchers use when source files change.
func (co *Coordinator) InvalidatePrefix(prefix string) {
	co.mu.RLock()
	caches := make([]*NamedCache, 0, len(co.caches))
	for _, nc := range co.caches {
		caches = append(caches, nc)
	}
	co.mu.RUnlock()

	for _, nc := range caches {
		nc.InvalidateMatching(prefix)
	}
}

// Stats aggregates per-cache metrics across the coordinator.
func (co *Coordinator) Stats() map[string]NamedCacheStats {
	co.mu.RLock()
	defer co.mu.RUnlock()
	out := make(map[string]NamedCacheStats, len(co.caches))
	for name, nc := range co.caches {
		out[name] = nc.Stats()
	}
	return out
}
