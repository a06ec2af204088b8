package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dastanaron/bookaimark/internal/apperr"
	"github.com/dastanaron/bookaimark/internal/config"
	"github.com/dastanaron/bookaimark/internal/logging"
	"github.com/dastanaron/bookaimark/internal/models"
	"github.com/dastanaron/bookaimark/internal/notifications"
	"github.com/dastanaron/bookaimark/internal/repository"
)

// NotificationService stores inbox notifications and pushes them through
// the configured notifier when the kind is enabled.
type NotificationService struct {
	repo     repository.Repository
	notifier notifications.Notifier
	cfg      config.Notifications
	logger   *slog.Logger
	now      func() time.Time
}

// NewNotificationService creates a new notification service
func NewNotificationService(repo repository.Repository, opts Options) *NotificationService {
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.New(config.Notifications{})
	}
	return &NotificationService{
		repo:     repo,
		notifier: notifier,
		cfg:      opts.Notify,
		logger:   logging.NewComponentLogger(opts.Logger, "notifications"),
		now:      opts.clock(),
	}
}

// Notify stores n in the user's inbox and attempts push delivery. Failures
// are logged; the stored notification is returned when storage succeeded.
func (s *NotificationService) Notify(ctx context.Context, n models.Notification) *models.Notification {
	n.UserID = userOrDefault(n.UserID)
	if n.Kind == "" {
		n.Kind = models.NotificationSystem
	}
	n.CreatedAt = s.now()
	if err := s.repo.Notifications().Create(ctx, &n); err != nil {
		s.logger.Warn("store notification failed", "kind", n.Kind, "user_id", n.UserID, "error", err)
		return nil
	}

	if !s.notifier.Enabled() || !notifications.KindEnabled(s.cfg, n.Kind) {
		return &n
	}
	if err := s.notifier.Send(ctx, n); err != nil {
		s.logger.Warn("push notification failed", "kind", n.Kind, "notification_id", n.ID, "error", err)
		return &n
	}
	delivered := s.now()
	n.DeliveredAt = &delivered
	if err := s.repo.Notifications().Update(ctx, &n); err != nil {
		s.logger.Warn("mark notification delivered failed", "notification_id", n.ID, "error", err)
	}
	return &n
}

// List returns the user's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error) {
	return s.repo.Notifications().List(ctx, userOrDefault(userID), unreadOnly)
}

// UnreadCount returns how many notifications the user has not read.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	unread, err := s.List(ctx, userID, true)
	if err != nil {
		return 0, err
	}
	return len(unread), nil
}

func (s *NotificationService) get(ctx context.Context, op, userID, id string) (*models.Notification, error) {
	n, err := s.repo.Notifications().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if n == nil || n.UserID != userOrDefault(userID) {
		return nil, apperr.NotFound(op, "notification")
	}
	return n, nil
}

// MarkRead marks one notification as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) (*models.Notification, error) {
	n, err := s.get(ctx, "mark notification read", userID, id)
	if err != nil {
		return nil, err
	}
	if n.Read {
		return n, nil
	}
	n.Read = true
	if err := s.repo.Notifications().Update(ctx, n); err != nil {
		return nil, fmt.Errorf("mark notification read: %w", err)
	}
	return n, nil
}

// MarkAllRead marks every unread notification and returns how many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return s.repo.Notifications().MarkAllRead(ctx, userOrDefault(userID))
}

// Delete removes a notification from the inbox.
func (s *NotificationService) Delete(ctx context.Context, userID, id string) error {
	n, err := s.get(ctx, "delete notification", userID, id)
	if err != nil {
		return err
	}
	return s.repo.Notifications().Delete(ctx, n.ID)
}

// Test sends a test push through the configured notifier.
func (s *NotificationService) Test(ctx context.Context) error {
	if !s.notifier.Enabled() {
		return apperr.Validation("test notification", "no ntfy topic configured")
	}
	if err := s.notifier.Test(ctx); err != nil {
		return apperr.Wrap(apperr.ErrUnavailable, "test notification", "delivery failed", err)
	}
	return nil
}
