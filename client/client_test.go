package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadms/dashcache/gateway"
	"github.com/cadms/dashcache/querycache"
)

func TestStaleTimeVolatilityOrdering(t *testing.T) {
	assert := assert.New(t)

	// more volatile data gets a shorter stale time
	assert.LessOrEqual(StaleActivityFeed, StaleActionableItems)
	assert.LessOrEqual(StaleActionableItems, StaleSystemOverview)
	assert.LessOrEqual(StaleSystemOverview, StaleDashboard)
}

func TestStaleTimeFor(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(StaleDashboard, StaleTimeFor(SliceDashboard))
	assert.Equal(StaleActivityFeed, StaleTimeFor(SliceActivityFeed))
	assert.Equal(time.Duration(0), StaleTimeFor("unknown"))
}

// testBackend is a fake CA-DMS backend counting calls per slice.
type testBackend struct {
	m     sync.Mutex
	calls map[string]int
}

func (b *testBackend) count(slice string) {
	b.m.Lock()
	b.calls[slice]++
	b.m.Unlock()
}

func (b *testBackend) callCount(slice string) int {
	b.m.Lock()
	defer b.m.Unlock()
	return b.calls[slice]
}

func (b *testBackend) totalCalls() int {
	b.m.Lock()
	defer b.m.Unlock()
	total := 0
	for _, c := range b.calls {
		total += c
	}
	return total
}

func newTestBackend(t *testing.T) (*testBackend, *Client, *querycache.Cache) {
	t.Helper()
	b := &testBackend{calls: make(map[string]int)}

	r := mux.NewRouter()
	r.HandleFunc("/api/v1/dashboard/{userID}", func(res http.ResponseWriter, req *http.Request) {
		b.count(SliceDashboard)
		json.NewEncoder(res).Encode(map[string]any{
			"user_id":      mux.Vars(req)["userID"],
			"last_updated": "2026-08-30T12:00:00Z",
			"user_statistics": map[string]any{
				"document_count": 42,
				"last_login":     "2026-08-30T09:30:00Z",
			},
			"system_overview": map[string]any{"total_documents": 1284},
		})
	})
	r.HandleFunc("/api/v1/overview", func(res http.ResponseWriter, req *http.Request) {
		b.count(SliceSystemOverview)
		json.NewEncoder(res).Encode(map[string]any{"total_documents": 1284, "active_users": 56})
	})
	r.HandleFunc("/api/v1/stats/{userID}", func(res http.ResponseWriter, req *http.Request) {
		b.count(SliceUserStats)
		json.NewEncoder(res).Encode(map[string]any{"document_count": 42})
	})
	r.HandleFunc("/api/v1/actionable/{userID}", func(res http.ResponseWriter, req *http.Request) {
		b.count(SliceActionableItems)
		json.NewEncoder(res).Encode([]map[string]any{{"id": "item-1", "title": "Review minutes"}})
	})
	r.HandleFunc("/api/v1/activity/{userID}", func(res http.ResponseWriter, req *http.Request) {
		b.count(SliceActivityFeed)
		json.NewEncoder(res).Encode([]map[string]any{{"id": "act-1", "action": "document.updated"}})
	})
	r.HandleFunc("/api/v1/personalization/{userID}", func(res http.ResponseWriter, req *http.Request) {
		b.count(SlicePersonalization)
		json.NewEncoder(res).Encode(map[string]any{"user_id": mux.Vars(req)["userID"], "theme": "light"})
	}).Methods("GET")
	r.HandleFunc("/api/v1/personalization/{userID}", func(res http.ResponseWriter, req *http.Request) {
		res.WriteHeader(http.StatusOK)
	}).Methods("PUT")

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	gw, err := gateway.New(gateway.Config{
		BaseURL: srv.URL,
		Sleep:   func(time.Duration) {},
	})
	require.NoError(t, err)

	cache := querycache.New(querycache.Options{})
	return b, New(cache, gw), cache
}

func TestDashboardEndToEnd(t *testing.T) {
	assert := assert.New(t)
	backend, cl, _ := newTestBackend(t)

	data, err := cl.Dashboard(context.Background(), "user-123")
	require.NoError(t, err)
	assert.Equal("user-123", data.UserID)
	assert.Equal(42, data.UserStatistics.DocumentCount)
	assert.Equal(1, backend.callCount(SliceDashboard))

	// a second read within the stale time is served from cache
	data, err = cl.Dashboard(context.Background(), "user-123")
	assert.NoError(err)
	assert.Equal(42, data.UserStatistics.DocumentCount)
	assert.Equal(1, backend.callCount(SliceDashboard))
}

func TestRefreshAllTriggersOneCallPerSlice(t *testing.T) {
	assert := assert.New(t)
	backend, cl, _ := newTestBackend(t)

	// settle every slice once
	_, err := cl.Dashboard(context.Background(), "user-123")
	require.NoError(t, err)
	_, err = cl.SystemOverview(context.Background())
	require.NoError(t, err)
	_, err = cl.UserStatistics(context.Background(), "user-123")
	require.NoError(t, err)
	_, err = cl.ActionableItems(context.Background(), "user-123")
	require.NoError(t, err)
	_, err = cl.ActivityFeed(context.Background(), "user-123")
	require.NoError(t, err)
	_, err = cl.Personalization(context.Background(), "user-123")
	require.NoError(t, err)

	before := backend.totalCalls()
	assert.Equal(6, before)

	assert.NoError(cl.RefreshAll(context.Background(), "user-123"))

	// exactly one additional gateway call per slice
	assert.Equal(before+6, backend.totalCalls())
	for _, slice := range []string{
		SliceDashboard, SliceSystemOverview, SliceUserStats,
		SliceActionableItems, SliceActivityFeed, SlicePersonalization,
	} {
		assert.Equal(2, backend.callCount(slice), slice)
	}
}

func TestRefetchBypassesFreshness(t *testing.T) {
	assert := assert.New(t)
	backend, cl, _ := newTestBackend(t)

	_, err := cl.SystemOverview(context.Background())
	require.NoError(t, err)
	_, err = cl.RefetchSystemOverview(context.Background())
	require.NoError(t, err)

	assert.Equal(2, backend.callCount(SliceSystemOverview))
}

func TestRefetchPerSliceBypassesFreshness(t *testing.T) {
	assert := assert.New(t)
	backend, cl, _ := newTestBackend(t)

	// settle each slice, then force a second fetch while still fresh
	_, err := cl.UserStatistics(context.Background(), "user-123")
	require.NoError(t, err)
	_, err = cl.RefetchUserStatistics(context.Background(), "user-123")
	require.NoError(t, err)

	_, err = cl.ActionableItems(context.Background(), "user-123")
	require.NoError(t, err)
	_, err = cl.RefetchActionableItems(context.Background(), "user-123")
	require.NoError(t, err)

	_, err = cl.ActivityFeed(context.Background(), "user-123")
	require.NoError(t, err)
	_, err = cl.RefetchActivityFeed(context.Background(), "user-123")
	require.NoError(t, err)

	_, err = cl.Personalization(context.Background(), "user-123")
	require.NoError(t, err)
	_, err = cl.RefetchPersonalization(context.Background(), "user-123")
	require.NoError(t, err)

	for _, slice := range []string{
		SliceUserStats, SliceActionableItems, SliceActivityFeed, SlicePersonalization,
	} {
		assert.Equal(2, backend.callCount(slice), slice)
	}
}

func TestUpdatePersonalizationWritesThrough(t *testing.T) {
	assert := assert.New(t)
	backend, cl, cache := newTestBackend(t)

	p := &gateway.Personalization{UserID: "user-123", Theme: "dark"}
	require.NoError(t, cl.UpdatePersonalization(context.Background(), "user-123", p))

	// the updated settings land in the cache without a refetch
	got, err := cl.Personalization(context.Background(), "user-123")
	assert.NoError(err)
	assert.Equal("dark", got.Theme)
	assert.Equal(0, backend.callCount(SlicePersonalization))

	snap, ok := cache.Peek(PersonalizationKey("user-123"))
	assert.True(ok)
	assert.Equal("dark", snap.Data.(*gateway.Personalization).Theme)
}

func TestParameterErrorSurfacesWithoutRetry(t *testing.T) {
	assert := assert.New(t)
	backend, cl, _ := newTestBackend(t)

	_, err := cl.Dashboard(context.Background(), "")
	assert.Error(err)
	assert.True(gateway.IsParameter(err))
	assert.Equal(0, backend.totalCalls())
}
