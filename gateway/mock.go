package gateway

import "time"

// Fixed payloads served in dev mode so the dashboard can be worked on
// without a running backend.

func mockDashboard(userID string) *DashboardData {
	return &DashboardData{
		UserID:         userID,
		LastUpdated:    time.Now(),
		UserStatistics: *mockUserStatistics(),
		SystemOverview: *mockSystemOverview(),
		RecentActivity: mockActivityFeed(userID),
	}
}

func mockUserStatistics() *UserStatistics {
	return &UserStatistics{
		DocumentCount:    42,
		PendingApprovals: 3,
		CompletedReviews: 17,
		LastLogin:        time.Now().Add(-2 * time.Hour),
	}
}

func mockSystemOverview() *SystemOverview {
	return &SystemOverview{
		TotalDocuments:   1284,
		ActiveUsers:      56,
		PendingReviews:   23,
		StorageUsedBytes: 734003200,
	}
}

func mockActionableItems(userID string) []ActionableItem {
	now := time.Now()
	return []ActionableItem{
		{
			ID:         "item-1",
			DocumentID: "doc-100",
			Title:      "Review board meeting minutes",
			Type:       "review",
			Priority:   "high",
			DueDate:    now.Add(24 * time.Hour),
			CreatedAt:  now.Add(-48 * time.Hour),
		},
		{
			ID:         "item-2",
			DocumentID: "doc-101",
			Title:      "Approve policy revision",
			Type:       "approval",
			Priority:   "medium",
			DueDate:    now.Add(72 * time.Hour),
			CreatedAt:  now.Add(-24 * time.Hour),
		},
	}
}

func mockActivityFeed(userID string) []ActivityEntry {
	now := time.Now()
	return []ActivityEntry{
		{
			ID:         "act-1",
			UserID:     userID,
			Action:     "document.updated",
			DocumentID: "doc-100",
			Timestamp:  now.Add(-30 * time.Minute),
		},
		{
			ID:         "act-2",
			UserID:     userID,
			Action:     "document.created",
			DocumentID: "doc-102",
			Timestamp:  now.Add(-2 * time.Hour),
		},
	}
}

func mockPersonalization(userID string) *Personalization {
	return &Personalization{
		UserID:               userID,
		Theme:                "light",
		DashboardLayout:      "grid",
		NotificationsEnabled: true,
		ItemsPerPage:         25,
	}
}
