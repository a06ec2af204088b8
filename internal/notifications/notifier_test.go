package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dastanaron/bookaimark/internal/config"
	"github.com/dastanaron/bookaimark/internal/models"
	"github.com/dastanaron/bookaimark/internal/notifications"
)

func TestNewReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = "  "
	n := notifications.New(cfg.Notifications)
	if n.Enabled() {
		t.Fatal("expected noop notifier to report disabled")
	}
	if err := n.Send(context.Background(), models.Notification{Title: "x"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

type captured struct {
	title, body, tags, priority, click, contentType string
}

func newNtfyServer(t *testing.T, status int, got *captured) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		data, _ := io.ReadAll(r.Body)
		*got = captured{
			title:       r.Header.Get("Title"),
			body:        string(data),
			tags:        r.Header.Get("Tags"),
			priority:    r.Header.Get("Priority"),
			click:       r.Header.Get("Click"),
			contentType: r.Header.Get("Content-Type"),
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte("topic closed"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNtfyFormatsNotifications(t *testing.T) {
	tests := []struct {
		name           string
		notification   models.Notification
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
		expectClick    string
	}{
		{
			name: "comment",
			notification: models.Notification{
				Kind:    models.NotificationPlaybookComment,
				Title:   "New comment",
				Message: "alice commented on Go Reading List",
				Link:    "/api/playbooks/p1",
			},
			expectTitle:   "BookAIMark - New comment",
			expectMessage: "alice commented on Go Reading List",
			expectTags:    "bookaimark,playbook,comment",
			expectClick:   "/api/playbooks/p1",
		},
		{
			name: "acquired",
			notification: models.Notification{
				Kind:    models.NotificationPlaybookAcquired,
				Title:   "Playbook acquired",
				Message: "bob acquired Go Reading List",
			},
			expectTitle:    "BookAIMark - Playbook acquired",
			expectMessage:  "bob acquired Go Reading List",
			expectTags:     "bookaimark,playbook,acquired",
			expectPriority: "high",
		},
		{
			name: "system without message",
			notification: models.Notification{
				Kind:  models.NotificationSystem,
				Title: "Import finished",
			},
			expectTitle:   "BookAIMark - Import finished",
			expectMessage: "Import finished",
			expectTags:    "bookaimark,system",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got captured
			srv := newNtfyServer(t, http.StatusOK, &got)
			n := notifications.New(config.Notifications{NtfyTopic: srv.URL, RequestTimeout: 5})

			if err := n.Send(context.Background(), tt.notification); err != nil {
				t.Fatalf("send: %v", err)
			}
			if got.title != tt.expectTitle {
				t.Errorf("title = %q, want %q", got.title, tt.expectTitle)
			}
			if got.body != tt.expectMessage {
				t.Errorf("message = %q, want %q", got.body, tt.expectMessage)
			}
			if got.tags != tt.expectTags {
				t.Errorf("tags = %q, want %q", got.tags, tt.expectTags)
			}
			if got.priority != tt.expectPriority {
				t.Errorf("priority = %q, want %q", got.priority, tt.expectPriority)
			}
			if got.click != tt.expectClick {
				t.Errorf("click = %q, want %q", got.click, tt.expectClick)
			}
			if !strings.HasPrefix(got.contentType, "text/plain") {
				t.Errorf("content type = %q", got.contentType)
			}
		})
	}
}

func TestNtfyReportsHTTPErrors(t *testing.T) {
	var got captured
	srv := newNtfyServer(t, http.StatusForbidden, &got)
	n := notifications.New(config.Notifications{NtfyTopic: srv.URL})

	err := n.Test(context.Background())
	if err == nil {
		t.Fatal("expected error for 403 response")
	}
	if !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "topic closed") {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.title != "BookAIMark - Test" {
		t.Fatalf("unexpected test title %q", got.title)
	}
}

func TestKindEnabled(t *testing.T) {
	cfg := config.Default().Notifications
	cases := map[models.NotificationKind]bool{
		models.NotificationPlaybookComment:  true,
		models.NotificationPlaybookAcquired: true,
		models.NotificationPlaybookLiked:    false,
		models.NotificationAnalysisComplete: false,
		models.NotificationSystem:           true,
	}
	for kind, want := range cases {
		if got := notifications.KindEnabled(cfg, kind); got != want {
			t.Errorf("KindEnabled(%s) = %v, want %v", kind, got, want)
		}
	}
}
