package persist

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadms/dashcache/client"
	"github.com/cadms/dashcache/gateway"
	"github.com/cadms/dashcache/querycache"
)

// memStore is an in-memory Store with injectable write failures.
type memStore struct {
	data     map[string][]byte
	writeErr error
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (s *memStore) Read(key string) ([]byte, error) {
	raw, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return raw, nil
}

func (s *memStore) Write(key string, data []byte) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.data[key] = data
	return nil
}

func (s *memStore) Delete(key string) error {
	delete(s.data, key)
	return nil
}

func testConfig() Config {
	return Config{
		Slices: []string{client.SliceDashboard, client.SliceSystemOverview},
		MaxAge: time.Hour,
	}
}

func populate(cache *querycache.Cache) {
	cache.Set(client.DashboardKey("user-123"), &gateway.DashboardData{
		UserID:         "user-123",
		LastUpdated:    time.Now(),
		UserStatistics: gateway.UserStatistics{DocumentCount: 42},
	}, 5*time.Minute)
	cache.Set(client.SystemOverviewKey(), &gateway.SystemOverview{TotalDocuments: 7}, 2*time.Minute)
	// not in the persistence config, must not be saved
	cache.Set(client.ActivityFeedKey("user-123"), []gateway.ActivityEntry{}, time.Minute)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	assert := assert.New(t)
	store := newMemStore()

	cache := querycache.New(querycache.Options{})
	populate(cache)

	b := NewBridge(cache, store)
	b.Enable(testConfig())
	require.True(t, b.Enabled())

	saved := b.Save()
	assert.Equal(2, saved)

	// a fresh bridge over a fresh cache restores the saved entries
	cache2 := querycache.New(querycache.Options{})
	b2 := NewBridge(cache2, store)
	assert.True(b2.Enabled(), "stored config re-enables persistence")

	restored := b2.Load()
	assert.Equal(2, restored)

	snap, ok := cache2.Peek(client.DashboardKey("user-123"))
	require.True(t, ok)
	data := snap.Data.(*gateway.DashboardData)
	assert.Equal("user-123", data.UserID)
	assert.Equal(42, data.UserStatistics.DocumentCount)

	snap, ok = cache2.Peek(client.SystemOverviewKey())
	require.True(t, ok)
	assert.Equal(7, snap.Data.(*gateway.SystemOverview).TotalDocuments)

	// the excluded slice stayed out
	_, ok = cache2.Peek(client.ActivityFeedKey("user-123"))
	assert.False(ok)

	queries := b2.PersistedQueries()
	assert.Len(queries, 2)
}

func TestCompressedRoundTrip(t *testing.T) {
	assert := assert.New(t)
	store := newMemStore()

	cache := querycache.New(querycache.Options{})
	populate(cache)

	cfg := testConfig()
	cfg.Compress = true
	b := NewBridge(cache, store)
	b.Enable(cfg)

	assert.Equal(2, b.Save())

	// blob is gzip-framed
	raw := store.data[dataKey]
	require.True(t, len(raw) > 2)
	assert.Equal(byte(0x1f), raw[0])
	assert.Equal(byte(0x8b), raw[1])

	cache2 := querycache.New(querycache.Options{})
	b2 := NewBridge(cache2, store)
	assert.Equal(2, b2.Load())
}

func TestQuotaExceededContainment(t *testing.T) {
	assert := assert.New(t)
	store := newMemStore()

	cache := querycache.New(querycache.Options{})
	populate(cache)

	b := NewBridge(cache, store)
	b.Enable(testConfig())
	require.True(t, b.Enabled())

	store.writeErr = errors.New("QuotaExceededError: storage quota exceeded")

	assert.NotPanics(func() {
		saved := b.Save()
		assert.Equal(0, saved)
	})
	assert.False(b.Enabled())
	assert.NotEmpty(b.StorageError())
	assert.Contains(b.StorageError(), "QuotaExceededError")
}

func TestLoadDiscardsCorruptBlob(t *testing.T) {
	assert := assert.New(t)
	store := newMemStore()
	store.data[dataKey] = []byte("{not json")

	cache := querycache.New(querycache.Options{})
	b := NewBridge(cache, store)
	b.Enable(testConfig())

	assert.NotPanics(func() {
		assert.Equal(0, b.Load())
	})
	assert.Equal(0, cache.Len())
}

func TestLoadDropsEntriesPastMaxAge(t *testing.T) {
	assert := assert.New(t)
	store := newMemStore()

	cache := querycache.New(querycache.Options{})
	cache.Restore(client.SystemOverviewKey(), &gateway.SystemOverview{TotalDocuments: 7},
		2*time.Minute, time.Now().Add(-2*time.Hour))
	cache.Set(client.DashboardKey("user-123"), &gateway.DashboardData{UserID: "user-123"}, 5*time.Minute)

	b := NewBridge(cache, store)
	b.Enable(testConfig())
	assert.Equal(2, b.Save())

	cache2 := querycache.New(querycache.Options{})
	b2 := NewBridge(cache2, store)
	// only the entry younger than MaxAge comes back
	assert.Equal(1, b2.Load())
	_, ok := cache2.Peek(client.DashboardKey("user-123"))
	assert.True(ok)
}

func TestClearRemovesBlobsAndDisables(t *testing.T) {
	assert := assert.New(t)
	store := newMemStore()

	cache := querycache.New(querycache.Options{})
	populate(cache)

	b := NewBridge(cache, store)
	b.Enable(testConfig())
	b.Save()

	b.Clear()
	assert.False(b.Enabled())
	assert.Empty(b.StorageError())
	assert.Nil(b.PersistedQueries())

	_, err := store.Read(dataKey)
	assert.Equal(ErrNotFound, errors.Cause(err))
	_, err = store.Read(configKey)
	assert.Equal(ErrNotFound, errors.Cause(err))
}

func TestRestoredEntryKeepsOriginalAge(t *testing.T) {
	assert := assert.New(t)
	store := newMemStore()

	fetchedAt := time.Now().Add(-10 * time.Minute)
	cache := querycache.New(querycache.Options{})
	cache.Restore(client.DashboardKey("user-123"), &gateway.DashboardData{UserID: "user-123"},
		5*time.Minute, fetchedAt)

	b := NewBridge(cache, store)
	b.Enable(testConfig())
	require.Equal(t, 1, b.Save())

	cache2 := querycache.New(querycache.Options{})
	b2 := NewBridge(cache2, store)
	require.Equal(t, 1, b2.Load())

	snap, ok := cache2.Peek(client.DashboardKey("user-123"))
	require.True(t, ok)
	// restored entries keep their fetch time, a stale one stays stale
	assert.Equal(fetchedAt.UnixMilli(), snap.FetchedAt.UnixMilli())
	assert.True(snap.Stale(time.Now()))
}
