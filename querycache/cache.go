package querycache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrEntryNotFound represents an error where a cache entry was not found
	ErrEntryNotFound = errors.New("cache entry not found")
)

// Fetcher loads a payload for a key on a cache miss or refresh.
type Fetcher func(ctx context.Context) (any, error)

// Options configures a Cache instance.
type Options struct {
	// DefaultStaleTime is applied when a fetch does not pass its own
	DefaultStaleTime time.Duration
	// RetentionTime is how long entries are kept past their last
	// successful fetch before the sweep removes them (0 keeps forever)
	RetentionTime time.Duration
	// SweepInterval is how often the retention sweep runs (0 disables)
	SweepInterval time.Duration
}

// New returns a new Cache instance
func New(opts Options) *Cache {
	if opts.DefaultStaleTime == 0 {
		opts.DefaultStaleTime = 5 * time.Minute
	}

	return &Cache{
		opts:    opts,
		entries: make(map[string]*entry),
		quit:    make(chan struct{}),
	}
}

// Cache is a key-indexed store of query results with per-entry
// freshness and retention windows. It owns the cached payloads;
// policy layers on top of it only read metadata and issue
// invalidate/remove calls.
type Cache struct {
	opts    Options
	m       sync.Mutex
	entries map[string]*entry
	sf      singleflight.Group
	quit    chan struct{}
	once    sync.Once
}

// DefaultStaleTime returns the stale time applied to entries that do
// not set their own.
func (c *Cache) DefaultStaleTime() time.Duration {
	return c.opts.DefaultStaleTime
}

// Fetch returns the cached payload for key if it is fresh, otherwise
// it loads it through fn and stores the result. Concurrent fetches of
// the same key are collapsed into a single fn call. A failed refresh
// of an entry that already holds data serves the stale data instead
// of surfacing the error.
func (c *Cache) Fetch(ctx context.Context, key Key, staleTime time.Duration, fn Fetcher) (any, error) {
	if staleTime == 0 {
		staleTime = c.opts.DefaultStaleTime
	}
	id := key.String()

	c.m.Lock()
	if e, ok := c.entries[id]; ok && e.fresh(time.Now()) {
		data := e.data
		c.m.Unlock()
		return data, nil
	}
	c.m.Unlock()

	return c.load(ctx, key, staleTime, fn)
}

// Refresh loads the key through fn regardless of freshness and stores
// the result. Concurrent refreshes of the same key are collapsed.
func (c *Cache) Refresh(ctx context.Context, key Key, staleTime time.Duration, fn Fetcher) (any, error) {
	if staleTime == 0 {
		staleTime = c.opts.DefaultStaleTime
	}
	return c.load(ctx, key, staleTime, fn)
}

func (c *Cache) load(ctx context.Context, key Key, staleTime time.Duration, fn Fetcher) (any, error) {
	id := key.String()

	// a first fetch publishes a pending placeholder so the entry is
	// observable while the load is in flight; refreshes keep serving
	// the existing entry instead
	c.m.Lock()
	if _, ok := c.entries[id]; !ok {
		c.entries[id] = &entry{
			key:           key,
			staleTime:     staleTime,
			retentionTime: c.opts.RetentionTime,
			status:        StatusPending,
		}
	}
	c.m.Unlock()

	data, err, _ := c.sf.Do(id, func() (any, error) {
		return fn(ctx)
	})
	if err != nil {
		c.m.Lock()
		defer c.m.Unlock()
		if e, ok := c.entries[id]; ok && e.status == StatusSuccess {
			// failed refresh, keep serving the stale data
			log.Debugf("refresh of %s failed, serving stale data: %s", id, err)
			return e.data, nil
		}
		c.entries[id] = &entry{
			key:           key,
			staleTime:     staleTime,
			retentionTime: c.opts.RetentionTime,
			status:        StatusError,
			err:           err,
		}
		return nil, err
	}

	c.m.Lock()
	c.entries[id] = &entry{
		key:           key,
		data:          data,
		size:          dataSize(data),
		fetchedAt:     time.Now(),
		staleTime:     staleTime,
		retentionTime: c.opts.RetentionTime,
		status:        StatusSuccess,
	}
	c.m.Unlock()

	return data, nil
}

// Set stores a payload directly, marking it freshly fetched.
func (c *Cache) Set(key Key, data any, staleTime time.Duration) {
	c.Restore(key, data, staleTime, time.Now())
}

// Restore stores a payload with an explicit fetch timestamp. Used when
// republishing persisted entries that keep their original age.
func (c *Cache) Restore(key Key, data any, staleTime time.Duration, fetchedAt time.Time) {
	if staleTime == 0 {
		staleTime = c.opts.DefaultStaleTime
	}

	c.m.Lock()
	defer c.m.Unlock()
	c.entries[key.String()] = &entry{
		key:           key,
		data:          data,
		size:          dataSize(data),
		fetchedAt:     fetchedAt,
		staleTime:     staleTime,
		retentionTime: c.opts.RetentionTime,
		status:        StatusSuccess,
	}
}

// Peek returns a snapshot of the entry for key without triggering a
// fetch.
func (c *Cache) Peek(key Key) (Snapshot, bool) {
	c.m.Lock()
	defer c.m.Unlock()

	e, ok := c.entries[key.String()]
	if !ok {
		return Snapshot{}, false
	}
	return e.snapshot(), true
}

// Invalidate marks the entry for key as needing a refetch on its next
// read. The data stays servable until then.
func (c *Cache) Invalidate(key Key) bool {
	c.m.Lock()
	defer c.m.Unlock()

	e, ok := c.entries[key.String()]
	if !ok {
		return false
	}
	e.invalidated = true
	return true
}

// InvalidateMatching invalidates every entry whose serialized key
// contains the given substring and returns the number invalidated.
func (c *Cache) InvalidateMatching(substr string) int {
	c.m.Lock()
	defer c.m.Unlock()

	count := 0
	for id, e := range c.entries {
		if strings.Contains(id, substr) {
			e.invalidated = true
			count++
		}
	}
	return count
}

// Remove deletes the entry for key.
func (c *Cache) Remove(key Key) bool {
	c.m.Lock()
	defer c.m.Unlock()

	id := key.String()
	if _, ok := c.entries[id]; !ok {
		return false
	}
	delete(c.entries, id)
	return true
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.m.Lock()
	defer c.m.Unlock()
	c.entries = make(map[string]*entry)
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.m.Lock()
	defer c.m.Unlock()
	return len(c.entries)
}

// Entries returns a snapshot of every live entry.
func (c *Cache) Entries() []Snapshot {
	c.m.Lock()
	defer c.m.Unlock()

	snaps := make([]Snapshot, 0, len(c.entries))
	for _, e := range c.entries {
		snaps = append(snaps, e.snapshot())
	}
	return snaps
}
