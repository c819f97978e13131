package gateway

import (
	"time"

	"github.com/pkg/errors"
)

// Server payloads use snake_case fields and ISO-8601 timestamps. The
// transforms below map them into the client-canonical shapes and are
// pure, a failed transform never mutates cache state.

type dashboardDTO struct {
	UserID         string             `json:"user_id"`
	LastUpdated    string             `json:"last_updated"`
	UserStatistics userStatisticsDTO  `json:"user_statistics"`
	SystemOverview systemOverviewDTO  `json:"system_overview"`
	RecentActivity []activityEntryDTO `json:"recent_activity"`
}

type userStatisticsDTO struct {
	DocumentCount    int    `json:"document_count"`
	PendingApprovals int    `json:"pending_approvals"`
	CompletedReviews int    `json:"completed_reviews"`
	LastLogin        string `json:"last_login"`
}

type systemOverviewDTO struct {
	TotalDocuments   int   `json:"total_documents"`
	ActiveUsers      int   `json:"active_users"`
	PendingReviews   int   `json:"pending_reviews"`
	StorageUsedBytes int64 `json:"storage_used_bytes"`
}

type actionableItemDTO struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Type       string `json:"type"`
	Priority   string `json:"priority"`
	DueDate    string `json:"due_date"`
	CreatedAt  string `json:"created_at"`
}

type activityEntryDTO struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	Action     string `json:"action"`
	DocumentID string `json:"document_id"`
	Timestamp  string `json:"timestamp"`
}

type personalizationDTO struct {
	UserID               string `json:"user_id"`
	Theme                string `json:"theme"`
	DashboardLayout      string `json:"dashboard_layout"`
	NotificationsEnabled bool   `json:"notifications_enabled"`
	ItemsPerPage         int    `json:"items_per_page"`
}

// parseTime parses an ISO-8601 timestamp, tolerating an absent value.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "failed to parse timestamp %q", s)
	}
	return t, nil
}

func (d *dashboardDTO) transform() (*DashboardData, error) {
	if d.UserID == "" {
		return nil, &ValidationError{Slice: "dashboard", Field: "user_id"}
	}
	if d.LastUpdated == "" {
		return nil, &ValidationError{Slice: "dashboard", Field: "last_updated"}
	}
	lastUpdated, err := parseTime(d.LastUpdated)
	if err != nil {
		return nil, &ValidationError{Slice: "dashboard", Field: "last_updated"}
	}
	stats, err := d.UserStatistics.transform()
	if err != nil {
		return nil, err
	}

	activity := make([]ActivityEntry, 0, len(d.RecentActivity))
	for _, a := range d.RecentActivity {
		entry, err := a.transform()
		if err != nil {
			return nil, err
		}
		activity = append(activity, entry)
	}

	return &DashboardData{
		UserID:         d.UserID,
		LastUpdated:    lastUpdated,
		UserStatistics: *stats,
		SystemOverview: d.SystemOverview.transform(),
		RecentActivity: activity,
	}, nil
}

func (d *userStatisticsDTO) transform() (*UserStatistics, error) {
	lastLogin, err := parseTime(d.LastLogin)
	if err != nil {
		return nil, &ValidationError{Slice: "userStats", Field: "last_login"}
	}

	return &UserStatistics{
		DocumentCount:    d.DocumentCount,
		PendingApprovals: d.PendingApprovals,
		CompletedReviews: d.CompletedReviews,
		LastLogin:        lastLogin,
	}, nil
}

func (d systemOverviewDTO) transform() SystemOverview {
	return SystemOverview{
		TotalDocuments:   d.TotalDocuments,
		ActiveUsers:      d.ActiveUsers,
		PendingReviews:   d.PendingReviews,
		StorageUsedBytes: d.StorageUsedBytes,
	}
}

func (d *actionableItemDTO) transform() (ActionableItem, error) {
	if d.ID == "" {
		return ActionableItem{}, &ValidationError{Slice: "actionableItems", Field: "id"}
	}
	dueDate, err := parseTime(d.DueDate)
	if err != nil {
		return ActionableItem{}, &ValidationError{Slice: "actionableItems", Field: "due_date"}
	}
	createdAt, err := parseTime(d.CreatedAt)
	if err != nil {
		return ActionableItem{}, &ValidationError{Slice: "actionableItems", Field: "created_at"}
	}

	return ActionableItem{
		ID:         d.ID,
		DocumentID: d.DocumentID,
		Title:      d.Title,
		Type:       d.Type,
		Priority:   d.Priority,
		DueDate:    dueDate,
		CreatedAt:  createdAt,
	}, nil
}

func (d *activityEntryDTO) transform() (ActivityEntry, error) {
	if d.ID == "" {
		return ActivityEntry{}, &ValidationError{Slice: "activityFeed", Field: "id"}
	}
	ts, err := parseTime(d.Timestamp)
	if err != nil {
		return ActivityEntry{}, &ValidationError{Slice: "activityFeed", Field: "timestamp"}
	}

	return ActivityEntry{
		ID:         d.ID,
		UserID:     d.UserID,
		Action:     d.Action,
		DocumentID: d.DocumentID,
		Timestamp:  ts,
	}, nil
}

func (d *personalizationDTO) transform() (*Personalization, error) {
	if d.UserID == "" {
		return nil, &ValidationError{Slice: "personalization", Field: "user_id"}
	}

	return &Personalization{
		UserID:               d.UserID,
		Theme:                d.Theme,
		DashboardLayout:      d.DashboardLayout,
		NotificationsEnabled: d.NotificationsEnabled,
		ItemsPerPage:         d.ItemsPerPage,
	}, nil
}

func (p *Personalization) toDTO() personalizationDTO {
	return personalizationDTO{
		UserID:               p.UserID,
		Theme:                p.Theme,
		DashboardLayout:      p.DashboardLayout,
		NotificationsEnabled: p.NotificationsEnabled,
		ItemsPerPage:         p.ItemsPerPage,
	}
}
