package models

import "time"

// NotificationKind classifies notifications for per-kind delivery toggles.
type NotificationKind string

const (
	NotificationPlaybookComment  NotificationKind = "playbook_comment"
	NotificationPlaybookAcquired NotificationKind = "playbook_acquired"
	NotificationPlaybookLiked    NotificationKind = "playbook_liked"
	NotificationAnalysisComplete NotificationKind = "analysis_complete"
	NotificationSystem           NotificationKind = "system"
)

// Notification is a user-facing message stored for the in-app inbox and
// optionally pushed to an external channel.
type Notification struct {
	ID          string           `json:"id"`
	UserID      string           `json:"user_id"`
	Kind        NotificationKind `json:"kind"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	Link        string           `json:"link,omitempty"`
	Read        bool             `json:"read"`
	CreatedAt   time.Time        `json:"created_at"`
	DeliveredAt *time.Time       `json:"delivered_at,omitempty"`
}
