package gateway

import "time"

// DashboardData is the aggregate per-user dashboard payload.
type DashboardData struct {
	UserID         string          `json:"userId"`
	LastUpdated    time.Time       `json:"lastUpdated"`
	UserStatistics UserStatistics  `json:"userStatistics"`
	SystemOverview SystemOverview  `json:"systemOverview"`
	RecentActivity []ActivityEntry `json:"recentActivity"`
	// FallbackMode is set when the payload is the degraded default
	// returned while the backend is unavailable
	FallbackMode bool `json:"fallbackMode"`
}

// UserStatistics summarizes one user's document activity.
type UserStatistics struct {
	DocumentCount    int       `json:"documentCount"`
	PendingApprovals int       `json:"pendingApprovals"`
	CompletedReviews int       `json:"completedReviews"`
	LastLogin        time.Time `json:"lastLogin"`
}

// SystemOverview summarizes system-wide document state.
type SystemOverview struct {
	TotalDocuments   int   `json:"totalDocuments"`
	ActiveUsers      int   `json:"activeUsers"`
	PendingReviews   int   `json:"pendingReviews"`
	StorageUsedBytes int64 `json:"storageUsedBytes"`
}

// ActionableItem is one item awaiting action from the user.
type ActionableItem struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"documentId"`
	Title      string    `json:"title"`
	Type       string    `json:"type"`
	Priority   string    `json:"priority"`
	DueDate    time.Time `json:"dueDate"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ActivityEntry is one row of the activity feed.
type ActivityEntry struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Action     string    `json:"action"`
	DocumentID string    `json:"documentId"`
	Timestamp  time.Time `json:"timestamp"`
}

// Personalization holds a user's dashboard settings.
type Personalization struct {
	UserID               string `json:"userId"`
	Theme                string `json:"theme"`
	DashboardLayout      string `json:"dashboardLayout"`
	NotificationsEnabled bool   `json:"notificationsEnabled"`
	ItemsPerPage         int    `json:"itemsPerPage"`
}
