package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/dastanaron/bookaimark/internal/models"
	"github.com/dastanaron/bookaimark/internal/repository"
)

const (
	dashboardTopCategories = 5
	dashboardTopTags       = 10
	dashboardRecent        = 5
)

// DashboardCounts are the headline numbers of the dashboard.
type DashboardCounts struct {
	Bookmarks           int `json:"bookmarks"`
	Favorites           int `json:"favorites"`
	Folders             int `json:"folders"`
	Deleted             int `json:"deleted"`
	UnreadNotifications int `json:"unread_notifications"`
}

// Dashboard is the summary shown by the API and the terminal UI.
type Dashboard struct {
	Counts        DashboardCounts     `json:"counts"`
	TopCategories []models.LabelCount `json:"top_categories"`
	TopTags       []models.LabelCount `json:"top_tags"`
	Recent        []models.Bookmark   `json:"recent"`
}

// DashboardService aggregates counts for the dashboard view.
type DashboardService struct {
	repo   repository.Repository
	labels *LabelService
	notify *NotificationService
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(repo repository.Repository, labels *LabelService, notify *NotificationService) *DashboardService {
	return &DashboardService{repo: repo, labels: labels, notify: notify}
}

// Summary builds the user's dashboard.
func (s *DashboardService) Summary(ctx context.Context, userID string) (*Dashboard, error) {
	userID = userOrDefault(userID)

	live, err := s.repo.Bookmarks().List(ctx, models.BookmarkFilter{UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}
	deleted, err := s.repo.Bookmarks().List(ctx, models.BookmarkFilter{UserID: userID, DeletedOnly: true})
	if err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}
	folders, err := s.repo.Folders().List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}
	unread, err := s.notify.UnreadCount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}
	categories, err := s.labels.Categories(ctx, userID)
	if err != nil {
		return nil, err
	}
	tags, err := s.labels.Tags(ctx, userID)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{
		Counts: DashboardCounts{
			Bookmarks:           len(live),
			Folders:             len(folders),
			Deleted:             len(deleted),
			UnreadNotifications: unread,
		},
		TopCategories: top(categories, dashboardTopCategories),
		TopTags:       top(tags, dashboardTopTags),
	}
	for _, b := range live {
		if b.Favorite {
			d.Counts.Favorites++
		}
	}

	recent := append([]models.Bookmark(nil), live...)
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].CreatedAt.After(recent[j].CreatedAt) })
	if len(recent) > dashboardRecent {
		recent = recent[:dashboardRecent]
	}
	d.Recent = recent
	return d, nil
}
