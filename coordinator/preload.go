package coordinator

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/cadms/dashcache/client"
)

// Preload slice names, the keys of the preload status map.
const (
	PreloadIntroPage      = "introPage"
	PreloadSystemOverview = "systemOverview"
	PreloadPersonalStats  = "personalStats"
)

// PreloadStatus records the outcome of one slice's preload.
type PreloadStatus struct {
	Loaded   bool          `json:"loaded"`
	LoadTime time.Duration `json:"loadTime"`
	Error    string        `json:"error,omitempty"`
}

// PreloadIntroPage proactively fetches the aggregate dashboard payload
// for a user and records timing and outcome under the introPage slot.
// Concurrent preloads of different slices are independent; a preload
// of a slice already in flight is not deduplicated here, the query
// cache collapses identical in-flight fetches.
func (c *Coordinator) PreloadIntroPage(ctx context.Context, userID string) error {
	start := time.Now()
	_, err := c.cache.Refresh(ctx, client.DashboardKey(userID), client.StaleDashboard,
		func(ctx context.Context) (any, error) {
			return c.gw.Dashboard(ctx, userID)
		})
	c.recordPreload(PreloadIntroPage, start, err)

	return err
}

// PreloadCriticalData proactively fetches the system overview.
func (c *Coordinator) PreloadCriticalData(ctx context.Context) error {
	start := time.Now()
	_, err := c.cache.Refresh(ctx, client.SystemOverviewKey(), client.StaleSystemOverview,
		func(ctx context.Context) (any, error) {
			return c.gw.SystemOverview(ctx)
		})
	c.recordPreload(PreloadSystemOverview, start, err)

	return err
}

// PreloadUserData proactively fetches a user's statistics.
func (c *Coordinator) PreloadUserData(ctx context.Context, userID string) error {
	start := time.Now()
	_, err := c.cache.Refresh(ctx, client.UserStatsKey(userID), client.StaleUserStats,
		func(ctx context.Context) (any, error) {
			return c.gw.UserStatistics(ctx, userID)
		})
	c.recordPreload(PreloadPersonalStats, start, err)

	return err
}

func (c *Coordinator) recordPreload(slot string, start time.Time, err error) {
	status := &PreloadStatus{
		Loaded:   err == nil,
		LoadTime: time.Since(start),
	}
	if err != nil {
		status.Error = err.Error()
		log.Errorf("preload of %s failed: %s", slot, err)
	} else {
		log.Debugf("preloaded %s in %s", slot, status.LoadTime)
	}

	c.m.Lock()
	c.preloads[slot] = status
	c.m.Unlock()
}

// PreloadStatuses returns a copy of every recorded preload outcome.
func (c *Coordinator) PreloadStatuses() map[string]PreloadStatus {
	c.m.Lock()
	defer c.m.Unlock()

	statuses := make(map[string]PreloadStatus, len(c.preloads))
	for slot, s := range c.preloads {
		statuses[slot] = *s
	}
	return statuses
}
