package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dastanaron/bookaimark/internal/models"
	"github.com/dastanaron/bookaimark/internal/repository"
)

// LabelService derives category and tag views from live bookmarks.
type LabelService struct {
	repo repository.Repository
}

// NewLabelService creates a new label service
func NewLabelService(repo repository.Repository) *LabelService {
	return &LabelService{repo: repo}
}

// Categories returns the distinct categories with usage counts, most used first.
func (s *LabelService) Categories(ctx context.Context, userID string) ([]models.LabelCount, error) {
	bookmarks, err := s.live(ctx, userID)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	display := make(map[string]string)
	for _, b := range bookmarks {
		name := strings.TrimSpace(b.Category)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, ok := display[key]; !ok {
			display[key] = name
		}
		counts[key]++
	}
	return rank(counts, display), nil
}

// Tags returns the distinct tags with usage counts, most used first.
func (s *LabelService) Tags(ctx context.Context, userID string) ([]models.LabelCount, error) {
	bookmarks, err := s.live(ctx, userID)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, b := range bookmarks {
		for _, tag := range b.Tags {
			counts[tag]++
		}
	}
	return rank(counts, nil), nil
}

func (s *LabelService) live(ctx context.Context, userID string) ([]models.Bookmark, error) {
	bookmarks, err := s.repo.Bookmarks().List(ctx, models.BookmarkFilter{UserID: userOrDefault(userID)})
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	return bookmarks, nil
}

func rank(counts map[string]int, display map[string]string) []models.LabelCount {
	out := make([]models.LabelCount, 0, len(counts))
	for key, n := range counts {
		name := key
		if d, ok := display[key]; ok {
			name = d
		}
		out = append(out, models.LabelCount{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

func top(labels []models.LabelCount, n int) []models.LabelCount {
	if len(labels) > n {
		return labels[:n]
	}
	return labels
}
