package domain

import (
	"database/sql"
	"time"
)

// 通知类型
const (
	NotificationTypeAssignment = "assignment"  // 工单被分配给你
	NotificationTypeRepeatCall = "repeat_call" // 客户再次来电
	NotificationTypeCompletion = "completion"  // 工单已完成
)

// Notification 站内通知（对应 notifications 表）
// 仅 owner 可变更（已读/删除）；超过保留期的通知被清理（懒清理 + 周期兜底）
type Notification struct {
	NotificationID string         `db:"notification_id"`
	OwnerID        string         `db:"owner_id"` // 目标用户 username
	Message        string         `db:"message"`
	Type           string         `db:"type"`
	CallID         sql.NullString `db:"call_id"` // 可选关联工单
	IsRead         bool           `db:"is_read"`
	CreatedAt      time.Time      `db:"created_at"`
}
