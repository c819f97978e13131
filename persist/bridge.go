// Package persist mirrors a configured subset of cache entries into
// durable storage and restores them at startup. Storage faults are
// contained at this boundary: they disable persistence and are
// reported through a getter, never thrown past it, so a storage
// failure can not block the in-memory dashboard.
package persist

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/cadms/dashcache/client"
	"github.com/cadms/dashcache/gateway"
	"github.com/cadms/dashcache/querycache"
)

const (
	// dataKey is the fixed storage key of the serialized cache blob
	dataKey = "cadms_cache_data"
	// configKey is the fixed storage key of the persistence config
	configKey = "cadms_cache_config"
)

// Config specifies which slices to persist, how old a persisted entry
// may be before it is discarded on load, and whether the blob is
// gzip-compressed.
type Config struct {
	Slices   []string      `json:"slices"`
	MaxAge   time.Duration `json:"maxAge"`
	Compress bool          `json:"compress"`
}

func (c Config) includes(slice string) bool {
	for _, s := range c.Slices {
		if s == slice {
			return true
		}
	}
	return false
}

// PersistedQuery is one entry of the persisted blob.
type PersistedQuery struct {
	QueryKey  querycache.Key  `json:"queryKey"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

type blob struct {
	Queries   []PersistedQuery `json:"queries"`
	Timestamp int64            `json:"timestamp"`
}

// NewBridge returns a Bridge. A persistence config left behind by a
// previous run re-enables persistence with the stored settings.
func NewBridge(cache *querycache.Cache, store Store) *Bridge {
	b := &Bridge{
		cache: cache,
		store: store,
	}

	raw, err := store.Read(configKey)
	if err == nil {
		var cfg Config
		if err := json.Unmarshal(raw, &cfg); err == nil {
			b.cfg = cfg
			b.enabled = true
		} else {
			log.Debugf("discarding corrupt persistence config: %s", err)
		}
	}

	return b
}

// Bridge mirrors selected cache entries to a durable Store.
type Bridge struct {
	cache   *querycache.Cache
	store   Store
	m       sync.Mutex
	cfg     Config
	enabled bool
	lastErr string
}

// Enable turns persistence on with the given config and stores the
// config for the next run. A storage failure leaves persistence off
// and is reported through StorageError.
func (b *Bridge) Enable(cfg Config) {
	b.m.Lock()
	defer b.m.Unlock()

	raw, err := json.Marshal(cfg)
	if err == nil {
		err = b.store.Write(configKey, raw)
	}
	if err != nil {
		b.enabled = false
		b.lastErr = err.Error()
		log.Errorf("failed to enable persistence: %s", err)
		return
	}

	b.cfg = cfg
	b.enabled = true
	b.lastErr = ""
}

// Enabled reports whether persistence is currently on.
func (b *Bridge) Enabled() bool {
	b.m.Lock()
	defer b.m.Unlock()
	return b.enabled
}

// Config returns the active persistence config.
func (b *Bridge) Config() Config {
	b.m.Lock()
	defer b.m.Unlock()
	return b.cfg
}

// StorageError returns the identifying string of the last contained
// storage failure, empty when none occurred.
func (b *Bridge) StorageError() string {
	b.m.Lock()
	defer b.m.Unlock()
	return b.lastErr
}

// Save serializes the configured entries into one blob under the
// fixed data key and returns the number persisted. On write failure
// persistence is disabled and the failure recorded; no error escapes.
func (b *Bridge) Save() int {
	b.m.Lock()
	defer b.m.Unlock()
	if !b.enabled {
		return 0
	}

	queries := []PersistedQuery{}
	for _, e := range b.cache.Entries() {
		if e.Status != querycache.StatusSuccess || !b.cfg.includes(e.Key.Slice()) {
			continue
		}
		raw, err := json.Marshal(e.Data)
		if err != nil {
			log.Debugf("skipping unserializable entry %s: %s", e.Key, err)
			continue
		}
		queries = append(queries, PersistedQuery{
			QueryKey:  e.Key,
			Data:      raw,
			Timestamp: e.FetchedAt.UnixMilli(),
		})
	}

	raw, err := json.Marshal(blob{
		Queries:   queries,
		Timestamp: time.Now().UnixMilli(),
	})
	if err == nil && b.cfg.Compress {
		raw, err = compress(raw)
	}
	if err == nil {
		err = b.store.Write(dataKey, raw)
	}
	if err != nil {
		b.enabled = false
		b.lastErr = err.Error()
		log.Errorf("failed to save cache to storage, persistence disabled: %s", err)
		return 0
	}

	log.Debugf("persisted %d cache entries", len(queries))
	return len(queries)
}

// Load restores persisted entries into the cache and returns the
// number restored. Entries older than the configured max age are
// discarded. A corrupt blob is discarded silently, leaving the cache
// empty, never fatal. Restored data is republished as-is without
// revalidating it against the slice schema.
func (b *Bridge) Load() int {
	b.m.Lock()
	defer b.m.Unlock()

	raw, err := b.store.Read(dataKey)
	if errors.Cause(err) == ErrNotFound {
		return 0
	}
	if err != nil {
		b.lastErr = err.Error()
		log.Errorf("failed to read persisted cache: %s", err)
		return 0
	}

	raw, err = maybeDecompress(raw)
	if err != nil {
		log.Debugf("discarding corrupt persisted cache: %s", err)
		return 0
	}
	var stored blob
	if err := json.Unmarshal(raw, &stored); err != nil {
		log.Debugf("discarding corrupt persisted cache: %s", err)
		return 0
	}

	now := time.Now()
	count := 0
	for _, q := range stored.Queries {
		fetchedAt := time.UnixMilli(q.Timestamp)
		if b.cfg.MaxAge > 0 && now.Sub(fetchedAt) > b.cfg.MaxAge {
			continue
		}
		slice := q.QueryKey.Slice()
		data, err := decodeSlice(slice, q.Data)
		if err != nil {
			log.Debugf("skipping persisted entry %s: %s", q.QueryKey, err)
			continue
		}
		b.cache.Restore(q.QueryKey, data, client.StaleTimeFor(slice), fetchedAt)
		count++
	}

	log.Debugf("restored %d persisted cache entries", count)
	return count
}

// Clear removes both the data and the config blob and turns
// persistence off.
func (b *Bridge) Clear() {
	b.m.Lock()
	defer b.m.Unlock()

	if err := b.store.Delete(dataKey); err != nil {
		log.Errorf("failed to delete persisted cache: %s", err)
	}
	if err := b.store.Delete(configKey); err != nil {
		log.Errorf("failed to delete persistence config: %s", err)
	}
	b.enabled = false
	b.lastErr = ""
}

// PersistedQueries reads back the persisted blob, used to verify what
// a save wrote. Returns nil when nothing is persisted or the blob is
// corrupt.
func (b *Bridge) PersistedQueries() []PersistedQuery {
	raw, err := b.store.Read(dataKey)
	if err != nil {
		return nil
	}
	raw, err = maybeDecompress(raw)
	if err != nil {
		return nil
	}
	var stored blob
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil
	}
	return stored.Queries
}

// decodeSlice decodes a persisted payload into its slice's canonical
// type. The decode is shape-only, required-field validation is not
// re-run on restore.
func decodeSlice(slice string, raw json.RawMessage) (any, error) {
	switch slice {
	case client.SliceDashboard:
		data := &gateway.DashboardData{}
		return data, json.Unmarshal(raw, data)
	case client.SliceSystemOverview:
		data := &gateway.SystemOverview{}
		return data, json.Unmarshal(raw, data)
	case client.SliceUserStats:
		data := &gateway.UserStatistics{}
		return data, json.Unmarshal(raw, data)
	case client.SliceActionableItems:
		data := []gateway.ActionableItem{}
		return data, json.Unmarshal(raw, &data)
	case client.SliceActivityFeed:
		data := []gateway.ActivityEntry{}
		return data, json.Unmarshal(raw, &data)
	case client.SlicePersonalization:
		data := &gateway.Personalization{}
		return data, json.Unmarshal(raw, data)
	default:
		return nil, errors.Errorf("unknown slice %q", slice)
	}
}

func compress(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		return nil, errors.Wrap(err, "failed to compress persisted cache")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to compress persisted cache")
	}
	return buf.Bytes(), nil
}

func maybeDecompress(raw []byte) ([]byte, error) {
	if len(raw) < 2 || raw[0] != 0x1f || raw[1] != 0x8b {
		return raw, nil
	}
	r, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrap(err, "failed to decompress persisted cache")
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decompress persisted cache")
	}
	return data, nil
}
