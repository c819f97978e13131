// Package client is the typed read/refresh surface over the query
// cache, one accessor per dashboard data slice.
package client

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/cadms/dashcache/gateway"
	"github.com/cadms/dashcache/querycache"
)

// New returns a new Client instance
func New(cache *querycache.Cache, gw *gateway.Client) *Client {
	return &Client{
		cache: cache,
		gw:    gw,
	}
}

// Client reads dashboard slices through the query cache, fetching
// from the gateway on miss or staleness. Retry of transient failures
// happens inside the gateway; validation and parameter errors surface
// here unretried.
type Client struct {
	cache *querycache.Cache
	gw    *gateway.Client
}

// Dashboard returns the aggregate dashboard payload for a user.
func (c *Client) Dashboard(ctx context.Context, userID string) (*gateway.DashboardData, error) {
	data, err := c.cache.Fetch(ctx, DashboardKey(userID), StaleDashboard, func(ctx context.Context) (any, error) {
		return c.gw.Dashboard(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return data.(*gateway.DashboardData), nil
}

// RefetchDashboard forces a gateway call regardless of staleness.
func (c *Client) RefetchDashboard(ctx context.Context, userID string) (*gateway.DashboardData, error) {
	data, err := c.cache.Refresh(ctx, DashboardKey(userID), StaleDashboard, func(ctx context.Context) (any, error) {
		return c.gw.Dashboard(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return data.(*gateway.DashboardData), nil
}

// SystemOverview returns the system-wide overview slice.
func (c *Client) SystemOverview(ctx context.Context) (*gateway.SystemOverview, error) {
	data, err := c.cache.Fetch(ctx, SystemOverviewKey(), StaleSystemOverview, func(ctx context.Context) (any, error) {
		return c.gw.SystemOverview(ctx)
	})
	if err != nil {
		return nil, err
	}
	return data.(*gateway.SystemOverview), nil
}

// RefetchSystemOverview forces a gateway call regardless of staleness.
func (c *Client) RefetchSystemOverview(ctx context.Context) (*gateway.SystemOverview, error) {
	data, err := c.cache.Refresh(ctx, SystemOverviewKey(), StaleSystemOverview, func(ctx context.Context) (any, error) {
		return c.gw.SystemOverview(ctx)
	})
	if err != nil {
		return nil, err
	}
	return data.(*gateway.SystemOverview), nil
}

// UserStatistics returns a user's statistics slice.
func (c *Client) UserStatistics(ctx context.Context, userID string) (*gateway.UserStatistics, error) {
	data, err := c.cache.Fetch(ctx, UserStatsKey(userID), StaleUserStats, func(ctx context.Context) (any, error) {
		return c.gw.UserStatistics(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return data.(*gateway.UserStatistics), nil
}

// RefetchUserStatistics forces a gateway call regardless of staleness.
func (c *Client) RefetchUserStatistics(ctx context.Context, userID string) (*gateway.UserStatistics, error) {
	data, err := c.cache.Refresh(ctx, UserStatsKey(userID), StaleUserStats, func(ctx context.Context) (any, error) {
		return c.gw.UserStatistics(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return data.(*gateway.UserStatistics), nil
}

// ActionableItems returns the items awaiting action from a user.
func (c *Client) ActionableItems(ctx context.Context, userID string) ([]gateway.ActionableItem, error) {
	data, err := c.cache.Fetch(ctx, ActionableItemsKey(userID), StaleActionableItems, func(ctx context.Context) (any, error) {
		return c.gw.ActionableItems(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return data.([]gateway.ActionableItem), nil
}

// RefetchActionableItems forces a gateway call regardless of staleness.
func (c *Client) RefetchActionableItems(ctx context.Context, userID string) ([]gateway.ActionableItem, error) {
	data, err := c.cache.Refresh(ctx, ActionableItemsKey(userID), StaleActionableItems, func(ctx context.Context) (any, error) {
		return c.gw.ActionableItems(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return data.([]gateway.ActionableItem), nil
}

// ActivityFeed returns a user's recent activity slice.
func (c *Client) ActivityFeed(ctx context.Context, userID string) ([]gateway.ActivityEntry, error) {
	data, err := c.cache.Fetch(ctx, ActivityFeedKey(userID), StaleActivityFeed, func(ctx context.Context) (any, error) {
		return c.gw.ActivityFeed(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return data.([]gateway.ActivityEntry), nil
}

// RefetchActivityFeed forces a gateway call regardless of staleness.
func (c *Client) RefetchActivityFeed(ctx context.Context, userID string) ([]gateway.ActivityEntry, error) {
	data, err := c.cache.Refresh(ctx, ActivityFeedKey(userID), StaleActivityFeed, func(ctx context.Context) (any, error) {
		return c.gw.ActivityFeed(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return data.([]gateway.ActivityEntry), nil
}

// Personalization returns a user's dashboard settings.
func (c *Client) Personalization(ctx context.Context, userID string) (*gateway.Personalization, error) {
	data, err := c.cache.Fetch(ctx, PersonalizationKey(userID), StalePersonalization, func(ctx context.Context) (any, error) {
		return c.gw.Personalization(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return data.(*gateway.Personalization), nil
}

// RefetchPersonalization forces a gateway call regardless of staleness.
func (c *Client) RefetchPersonalization(ctx context.Context, userID string) (*gateway.Personalization, error) {
	data, err := c.cache.Refresh(ctx, PersonalizationKey(userID), StalePersonalization, func(ctx context.Context) (any, error) {
		return c.gw.Personalization(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return data.(*gateway.Personalization), nil
}

// UpdatePersonalization pushes updated settings to the backend and
// writes them through into the cache.
func (c *Client) UpdatePersonalization(ctx context.Context, userID string, p *gateway.Personalization) error {
	if err := c.gw.UpdatePersonalization(ctx, userID, p); err != nil {
		return err
	}
	c.cache.Set(PersonalizationKey(userID), p, StalePersonalization)

	return nil
}

// RefreshAll forces one gateway call per slice for the given user.
// Failing slices are logged and skipped so one degraded slice does
// not block the others; the first error is returned.
func (c *Client) RefreshAll(ctx context.Context, userID string) error {
	var firstErr error
	record := func(slice string, err error) {
		if err == nil {
			return
		}
		log.Errorf("failed to refresh %s: %s", slice, err)
		if firstErr == nil {
			firstErr = err
		}
	}

	_, err := c.RefetchDashboard(ctx, userID)
	record(SliceDashboard, err)

	_, err = c.RefetchSystemOverview(ctx)
	record(SliceSystemOverview, err)

	_, err = c.RefetchUserStatistics(ctx, userID)
	record(SliceUserStats, err)

	_, err = c.RefetchActionableItems(ctx, userID)
	record(SliceActionableItems, err)

	_, err = c.RefetchActivityFeed(ctx, userID)
	record(SliceActivityFeed, err)

	_, err = c.RefetchPersonalization(ctx, userID)
	record(SlicePersonalization, err)

	return firstErr
}
