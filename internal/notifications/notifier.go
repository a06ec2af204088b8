package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dastanaron/bookaimark/internal/config"
	"github.com/dastanaron/bookaimark/internal/models"
)

const (
	userAgent     = "BookAIMark/1.0"
	defaultServer = "https://ntfy.sh/"
	titlePrefix   = "BookAIMark - "
)

// Notifier delivers a stored notification to an external channel.
type Notifier interface {
	Send(ctx context.Context, n models.Notification) error
	Test(ctx context.Context) error
	// Enabled reports whether a push channel is configured.
	Enabled() bool
}

// New builds an ntfy notifier when a topic is configured, otherwise a noop.
// A bare topic name is published to ntfy.sh.
func New(cfg config.Notifications) Notifier {
	topic := strings.TrimSpace(cfg.NtfyTopic)
	if topic == "" {
		return noopNotifier{}
	}
	if !strings.Contains(topic, "://") {
		topic = defaultServer + strings.TrimPrefix(topic, "/")
	}

	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyNotifier{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

// KindEnabled reports whether push delivery is switched on for kind.
func KindEnabled(cfg config.Notifications, kind models.NotificationKind) bool {
	switch kind {
	case models.NotificationPlaybookComment:
		return cfg.Comments
	case models.NotificationPlaybookAcquired:
		return cfg.Acquisitions
	case models.NotificationPlaybookLiked:
		return cfg.Likes
	case models.NotificationAnalysisComplete:
		return cfg.Analysis
	default:
		return true
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
	click    string
}

func payloadFor(n models.Notification) payload {
	p := payload{
		title:   titlePrefix + strings.TrimSpace(n.Title),
		message: strings.TrimSpace(n.Message),
		click:   strings.TrimSpace(n.Link),
	}
	switch n.Kind {
	case models.NotificationPlaybookComment:
		p.tags = []string{"bookaimark", "playbook", "comment"}
	case models.NotificationPlaybookAcquired:
		p.tags = []string{"bookaimark", "playbook", "acquired"}
		p.priority = "high"
	case models.NotificationPlaybookLiked:
		p.tags = []string{"bookaimark", "playbook", "liked"}
		p.priority = "low"
	case models.NotificationAnalysisComplete:
		p.tags = []string{"bookaimark", "analysis", "completed"}
		p.priority = "low"
	default:
		p.tags = []string{"bookaimark", "system"}
	}
	if p.message == "" {
		p.message = strings.TrimSpace(n.Title)
	}
	return p
}

type ntfyNotifier struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyNotifier) Enabled() bool { return true }

func (n *ntfyNotifier) Send(ctx context.Context, notification models.Notification) error {
	return n.send(ctx, payloadFor(notification))
}

func (n *ntfyNotifier) Test(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    titlePrefix + "Test",
		message:  "Notification system test",
		tags:     []string{"bookaimark", "test"},
		priority: "low",
	})
}

func (n *ntfyNotifier) send(ctx context.Context, data payload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}
	if data.click != "" {
		req.Header.Set("Click", data.click)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopNotifier struct{}

func (noopNotifier) Send(context.Context, models.Notification) error { return nil }
func (noopNotifier) Test(context.Context) error                      { return nil }
func (noopNotifier) Enabled() bool                                   { return false }
