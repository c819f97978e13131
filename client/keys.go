package client

import (
	"time"

	"github.com/cadms/dashcache/querycache"
)

// Slice names, the first part of every canonical query key.
const (
	SliceDashboard       = "dashboard"
	SliceSystemOverview  = "systemOverview"
	SliceUserStats       = "userStats"
	SliceActionableItems = "actionableItems"
	SliceActivityFeed    = "activityFeed"
	SlicePersonalization = "personalization"
)

// Per-slice stale times. More volatile data gets a shorter stale
// time: activity feed <= actionable items <= system overview <=
// aggregate dashboard.
const (
	StaleDashboard       = 5 * time.Minute
	StaleSystemOverview  = 2 * time.Minute
	StaleUserStats       = 5 * time.Minute
	StaleActionableItems = 2 * time.Minute
	StaleActivityFeed    = time.Minute
	StalePersonalization = 5 * time.Minute
)

// DashboardKey returns the canonical key of a user's aggregate
// dashboard payload.
func DashboardKey(userID string) querycache.Key {
	return querycache.NewKey(SliceDashboard, userID)
}

// SystemOverviewKey returns the canonical key of the system overview.
func SystemOverviewKey() querycache.Key {
	return querycache.NewKey(SliceSystemOverview)
}

// UserStatsKey returns the canonical key of a user's statistics.
func UserStatsKey(userID string) querycache.Key {
	return querycache.NewKey(SliceUserStats, userID)
}

// ActionableItemsKey returns the canonical key of a user's actionable
// items.
func ActionableItemsKey(userID string) querycache.Key {
	return querycache.NewKey(SliceActionableItems, userID)
}

// ActivityFeedKey returns the canonical key of a user's activity feed.
func ActivityFeedKey(userID string) querycache.Key {
	return querycache.NewKey(SliceActivityFeed, userID)
}

// PersonalizationKey returns the canonical key of a user's dashboard
// settings.
func PersonalizationKey(userID string) querycache.Key {
	return querycache.NewKey(SlicePersonalization, userID)
}

// StaleTimeFor returns the stale time assigned to a slice.
func StaleTimeFor(slice string) time.Duration {
	switch slice {
	case SliceDashboard:
		return StaleDashboard
	case SliceSystemOverview:
		return StaleSystemOverview
	case SliceUserStats:
		return StaleUserStats
	case SliceActionableItems:
		return StaleActionableItems
	case SliceActivityFeed:
		return StaleActivityFeed
	case SlicePersonalization:
		return StalePersonalization
	default:
		return 0
	}
}
