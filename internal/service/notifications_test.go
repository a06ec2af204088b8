package service_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dastanaron/bookaimark/internal/apperr"
	"github.com/dastanaron/bookaimark/internal/config"
	"github.com/dastanaron/bookaimark/internal/models"
	"github.com/dastanaron/bookaimark/internal/notifications"
	"github.com/dastanaron/bookaimark/internal/service"
)

func TestNotifyPushesEnabledKinds(t *testing.T) {
	var pushes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		pushes.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := config.Default().Notifications
	cfg.NtfyTopic = srv.URL
	svc, _ := newServices(t, func(o *service.Options) {
		o.Notify = cfg
		o.Notifier = notifications.New(cfg)
	})
	ctx := context.Background()

	comment := svc.Notifications.Notify(ctx, models.Notification{UserID: "alice", Kind: models.NotificationPlaybookComment, Title: "New comment"})
	require.NotNil(t, comment)
	assert.NotNil(t, comment.DeliveredAt)

	like := svc.Notifications.Notify(ctx, models.Notification{UserID: "alice", Kind: models.NotificationPlaybookLiked, Title: "Liked"})
	require.NotNil(t, like)
	assert.Nil(t, like.DeliveredAt, "likes are not pushed by default")
	assert.Equal(t, int32(1), pushes.Load())

	stored, err := svc.Notifications.List(ctx, "alice", false)
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	require.NoError(t, svc.Notifications.Test(ctx))
	assert.Equal(t, int32(2), pushes.Load())
}

func TestNotifyKeepsInboxWhenPushFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := config.Notifications{NtfyTopic: srv.URL, Acquisitions: true}
	svc, _ := newServices(t, func(o *service.Options) {
		o.Notify = cfg
		o.Notifier = notifications.New(cfg)
	})

	n := svc.Notifications.Notify(context.Background(), models.Notification{UserID: "alice", Kind: models.NotificationPlaybookAcquired, Title: "Sold"})
	require.NotNil(t, n)
	assert.Nil(t, n.DeliveredAt)

	assert.ErrorIs(t, svc.Notifications.Test(context.Background()), apperr.ErrUnavailable)
}

func TestNotificationInboxState(t *testing.T) {
	svc, _ := newServices(t)
	ctx := context.Background()

	first := svc.Notifications.Notify(ctx, models.Notification{UserID: "alice", Title: "one"})
	second := svc.Notifications.Notify(ctx, models.Notification{UserID: "alice", Title: "two"})
	svc.Notifications.Notify(ctx, models.Notification{UserID: "alice", Title: "three"})
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, models.NotificationSystem, first.Kind)

	_, err := svc.Notifications.MarkRead(ctx, "bob", first.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	read, err := svc.Notifications.MarkRead(ctx, "alice", first.ID)
	require.NoError(t, err)
	assert.True(t, read.Read)

	unread, err := svc.Notifications.UnreadCount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	changed, err := svc.Notifications.MarkAllRead(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, changed)

	require.NoError(t, svc.Notifications.Delete(ctx, "alice", second.ID))
	all, err := svc.Notifications.List(ctx, "alice", false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "three", all[0].Title)

	assert.ErrorIs(t, svc.Notifications.Test(ctx), apperr.ErrValidation)
}
