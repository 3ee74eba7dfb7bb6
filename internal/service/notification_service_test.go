package service

import (
	"context"
	"testing"
	"time"

	"wisefido-callcenter/internal/domain"
	"wisefido-callcenter/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newNotificationFixture(t *testing.T, retention time.Duration) (NotificationService, *repository.MemoryNotificationsRepo, *busRecorder) {
	t.Helper()

	repo := repository.NewMemoryNotificationsRepo()
	bus := &busRecorder{}
	svc := NewNotificationService(repo, bus, retention, time.Hour, zap.NewNop())
	return svc, repo, bus
}

func seedNotification(t *testing.T, repo *repository.MemoryNotificationsRepo, owner string, age time.Duration, read bool) string {
	t.Helper()

	n := &domain.Notification{
		NotificationID: owner + "-" + age.String(),
		OwnerID:        owner,
		Message:        "customer called again",
		Type:           domain.NotificationTypeRepeatCall,
		IsRead:         read,
		CreatedAt:      time.Now().Add(-age),
	}
	require.NoError(t, repo.CreateNotifications(context.Background(), []*domain.Notification{n}))
	return n.NotificationID
}

func TestCreateNotificationsPublishTargeted(t *testing.T) {
	svc, repo, bus := newNotificationFixture(t, 24*time.Hour)
	ctx := context.Background()

	err := svc.Create(ctx, []NotificationInput{
		{OwnerID: "alice", Message: "call assigned to you", Type: domain.NotificationTypeAssignment, CallID: "c1"},
		{OwnerID: "bob", Message: "call assigned to you", Type: domain.NotificationTypeAssignment},
	})
	require.NoError(t, err)

	ns, err := repo.ListByOwner(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, ns, 1)
	assert.False(t, ns[0].IsRead)
	assert.Equal(t, "c1", ns[0].CallID.String)

	// 每条通知一个定向事件
	require.Len(t, bus.events, 2)
	targets := map[string]bool{}
	for _, ev := range bus.events {
		assert.Equal(t, domain.EventNotificationCreated, ev.Name)
		targets[ev.Target] = true
	}
	assert.True(t, targets["alice"])
	assert.True(t, targets["bob"])
}

func TestCreateNotificationsValidation(t *testing.T) {
	svc, _, bus := newNotificationFixture(t, 24*time.Hour)
	ctx := context.Background()

	err := svc.Create(ctx, []NotificationInput{{OwnerID: "", Message: "m"}})
	assert.ErrorIs(t, err, ErrValidation)

	err = svc.Create(ctx, []NotificationInput{{OwnerID: "alice", Message: ""}})
	assert.ErrorIs(t, err, ErrValidation)

	assert.Empty(t, bus.names())
}

func TestGetUserNotificationsPurgesExpired(t *testing.T) {
	svc, repo, _ := newNotificationFixture(t, 24*time.Hour)
	ctx := context.Background()

	fresh := seedNotification(t, repo, "alice", time.Hour, false)
	seedNotification(t, repo, "alice", 25*time.Hour, false)

	ns, err := svc.GetUserNotifications(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, ns, 1)
	assert.Equal(t, fresh, ns[0].NotificationID)
}

func TestGetUserNotificationsOwnerScoped(t *testing.T) {
	svc, repo, _ := newNotificationFixture(t, 24*time.Hour)
	ctx := context.Background()

	seedNotification(t, repo, "alice", time.Hour, false)
	seedNotification(t, repo, "bob", time.Hour, false)

	ns, err := svc.GetUserNotifications(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, ns, 1)
	assert.Equal(t, "alice", ns[0].OwnerID)
}

func TestGetUnreadCount(t *testing.T) {
	svc, repo, _ := newNotificationFixture(t, 24*time.Hour)
	ctx := context.Background()

	seedNotification(t, repo, "alice", time.Hour, false)
	seedNotification(t, repo, "alice", 2*time.Hour, true)
	// 过期未读不计入
	seedNotification(t, repo, "alice", 30*time.Hour, false)

	count, err := svc.GetUnreadCount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMarkAsRead(t *testing.T) {
	svc, repo, _ := newNotificationFixture(t, 24*time.Hour)
	ctx := context.Background()

	id := seedNotification(t, repo, "alice", time.Hour, false)

	require.NoError(t, svc.MarkAsRead(ctx, id, "alice"))
	count, err := svc.GetUnreadCount(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, count)

	// 重复标记幂等
	require.NoError(t, svc.MarkAsRead(ctx, id, "alice"))
}

func TestMarkAsReadWrongOwner(t *testing.T) {
	svc, repo, _ := newNotificationFixture(t, 24*time.Hour)
	ctx := context.Background()

	id := seedNotification(t, repo, "alice", time.Hour, false)

	err := svc.MarkAsRead(ctx, id, "bob")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkAllAsRead(t *testing.T) {
	svc, repo, _ := newNotificationFixture(t, 24*time.Hour)
	ctx := context.Background()

	seedNotification(t, repo, "alice", time.Hour, false)
	seedNotification(t, repo, "alice", 2*time.Hour, false)
	seedNotification(t, repo, "bob", time.Hour, false)

	n, err := svc.MarkAllAsRead(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := svc.GetUnreadCount(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDeleteNotification(t *testing.T) {
	svc, repo, _ := newNotificationFixture(t, 24*time.Hour)
	ctx := context.Background()

	id := seedNotification(t, repo, "alice", time.Hour, false)

	require.NoError(t, svc.DeleteNotification(ctx, id, "alice"))
	err := svc.DeleteNotification(ctx, id, "alice")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteNotificationWrongOwner(t *testing.T) {
	svc, repo, _ := newNotificationFixture(t, 24*time.Hour)
	ctx := context.Background()

	id := seedNotification(t, repo, "alice", time.Hour, false)

	err := svc.DeleteNotification(ctx, id, "bob")
	assert.ErrorIs(t, err, ErrNotFound)

	ns, err := svc.GetUserNotifications(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, ns, 1)
}

func TestBulkDeleteSkipsOtherOwners(t *testing.T) {
	svc, repo, _ := newNotificationFixture(t, 24*time.Hour)
	ctx := context.Background()

	mine := seedNotification(t, repo, "alice", time.Hour, false)
	other := seedNotification(t, repo, "bob", time.Hour, false)

	n, err := svc.BulkDeleteNotifications(ctx, []string{mine, other, "no-such-id"}, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ns, err := svc.GetUserNotifications(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, ns, 1)
}

func TestSweeperPurgesExpired(t *testing.T) {
	repo := repository.NewMemoryNotificationsRepo()
	bus := &busRecorder{}
	svc := NewNotificationService(repo, bus, 24*time.Hour, 10*time.Millisecond, zap.NewNop())

	seedNotification(t, repo, "alice", 25*time.Hour, false)
	seedNotification(t, repo, "alice", time.Hour, false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		ns, err := repo.ListByOwner(context.Background(), "alice")
		return err == nil && len(ns) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
