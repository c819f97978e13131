// Package coordinator layers the dashboard's cache policy on top of
// the raw query cache: stats, expiry sweeps, memory-bound eviction,
// invalidation schedules, cache warming and slice preloading. It never
// holds a second copy of cached payloads, it only reads entry metadata
// and issues invalidate/remove calls.
package coordinator

import (
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/cadms/dashcache/gateway"
	"github.com/cadms/dashcache/querycache"
)

// evictShare is the share of remaining entries removed by a memory
// optimization pass, oldest fetch first.
const evictShare = 0.3

// New returns a new Coordinator instance
func New(cache *querycache.Cache, gw *gateway.Client) *Coordinator {
	return &Coordinator{
		cache:     cache,
		gw:        gw,
		preloads:  make(map[string]*PreloadStatus),
		schedules: make(map[string]*schedule),
	}
}

// Coordinator owns the policy objects layered on the query cache.
type Coordinator struct {
	cache *querycache.Cache
	gw    *gateway.Client

	m              sync.Mutex
	expiredCleared int
	preloads       map[string]*PreloadStatus
	schedules      map[string]*schedule
}

// CacheStats is a derived snapshot of cache state. Only
// ExpiredEntriesCleared carries memory across calls, everything else
// is recomputed from the live cache.
type CacheStats struct {
	TotalEntries          int           `json:"totalEntries"`
	MemoryUsage           int           `json:"memoryUsage"`
	ExpiredEntriesCleared int           `json:"expiredEntriesCleared"`
	DefaultStaleTime      time.Duration `json:"defaultStaleTime"`
	CacheHitRate          float64       `json:"cacheHitRate"`
}

// OptimizeConfig configures an Optimize pass.
type OptimizeConfig struct {
	// MemoryLimit is the serialized-size budget in bytes
	MemoryLimit int `json:"memoryLimit"`
	// EnableMemoryOptimization enables eviction when over the limit
	EnableMemoryOptimization bool `json:"enableMemoryOptimization"`
}

// Stats returns a derived snapshot of the cache. Memory usage is the
// sum of serialized entry sizes; hit rate is the share of entries
// holding successfully fetched data.
func (c *Coordinator) Stats() CacheStats {
	entries := c.cache.Entries()

	usage := 0
	hits := 0
	for _, e := range entries {
		usage += e.Size
		if e.Status == querycache.StatusSuccess {
			hits++
		}
	}
	hitRate := 0.0
	if len(entries) > 0 {
		hitRate = float64(hits) / float64(len(entries))
	}

	c.m.Lock()
	cleared := c.expiredCleared
	c.m.Unlock()

	return CacheStats{
		TotalEntries:          len(entries),
		MemoryUsage:           usage,
		ExpiredEntriesCleared: cleared,
		DefaultStaleTime:      c.cache.DefaultStaleTime(),
		CacheHitRate:          hitRate,
	}
}

// ClearExpired removes every entry past its stale time and returns
// the number removed by this call. The monotonic cleared counter
// reported by Stats is bumped by the same amount.
func (c *Coordinator) ClearExpired() int {
	now := time.Now()
	count := 0
	for _, e := range c.cache.Entries() {
		if e.Stale(now) {
			if c.cache.Remove(e.Key) {
				count++
			}
		}
	}

	c.m.Lock()
	c.expiredCleared += count
	c.m.Unlock()

	log.Debugf("cleared %d expired cache entries", count)
	return count
}

// ClearAll unconditionally empties the cache. The monotonic cleared
// counter is left untouched, it counts expiry sweeps only.
func (c *Coordinator) ClearAll() {
	c.cache.Clear()
	log.Debug("cleared all cache entries")
}

// Optimize clears expired entries, then if memory optimization is
// enabled and usage still exceeds the limit, evicts the
// least-recently-fetched 30% of remaining entries (at least one).
func (c *Coordinator) Optimize(cfg OptimizeConfig) {
	c.ClearExpired()

	if !cfg.EnableMemoryOptimization {
		return
	}

	entries := c.cache.Entries()
	usage := 0
	for _, e := range entries {
		usage += e.Size
	}
	if usage <= cfg.MemoryLimit || len(entries) == 0 {
		return
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].FetchedAt.Before(entries[j].FetchedAt)
	})

	evict := int(float64(len(entries)) * evictShare)
	if evict == 0 {
		evict = 1
	}
	for _, e := range entries[:evict] {
		c.cache.Remove(e.Key)
	}
	log.Debugf("evicted %d entries to reduce memory usage from %d bytes", evict, usage)
}

// InvalidateByPattern invalidates every entry whose serialized key
// contains the given substring and returns the number invalidated.
// Invalidated entries stay servable until their next read refetches
// them.
func (c *Coordinator) InvalidateByPattern(substr string) int {
	count := c.cache.InvalidateMatching(substr)
	log.Debugf("invalidated %d entries matching %q", count, substr)
	return count
}

// InvalidateStale invalidates every entry older than maxAge without
// removing it.
func (c *Coordinator) InvalidateStale(maxAge time.Duration) int {
	now := time.Now()
	count := 0
	for _, e := range c.cache.Entries() {
		if now.Sub(e.FetchedAt) > maxAge {
			if c.cache.Invalidate(e.Key) {
				count++
			}
		}
	}

	log.Debugf("invalidated %d entries older than %s", count, maxAge)
	return count
}
