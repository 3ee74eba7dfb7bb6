package repository

import (
	"context"
	"time"

	"wisefido-callcenter/internal/domain"
)

// NotificationsRepository 通知Repository接口
// 变更操作均以 (notification_id, owner_id) 对为作用域：
// 非 owner 的变更不命中任何行（sql.ErrNoRows），绝不跨 owner 生效
type NotificationsRepository interface {
	CreateNotifications(ctx context.Context, ns []*domain.Notification) error

	ListByOwner(ctx context.Context, ownerID string) ([]*domain.Notification, error)
	CountUnread(ctx context.Context, ownerID string) (int, error)

	MarkRead(ctx context.Context, notificationID, ownerID string) error
	MarkAllRead(ctx context.Context, ownerID string) (int, error)
	Delete(ctx context.Context, notificationID, ownerID string) error
	BulkDelete(ctx context.Context, notificationIDs []string, ownerID string) (int, error)

	// PurgeOlderThan 纯年龄谓词删除（全量 owner），幂等：
	// 懒清理（读路径）与周期兜底可重复执行
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
