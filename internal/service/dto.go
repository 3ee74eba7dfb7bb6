package service

import (
	"database/sql"

	"wisefido-callcenter/internal/domain"
)

// ============================================
// DTO（对外 JSON 形状，领域模型不直接出网）
// ============================================

// CallDTO 工单 DTO（实时事件与 HTTP 响应共用）
type CallDTO struct {
	CallID       string `json:"call_id"`
	CustomerID   string `json:"customer_id"`
	CustomerName string `json:"customer_name"`
	Phone        string `json:"phone"`
	Problem      string `json:"problem"`
	Category     string `json:"category"`
	Status       string `json:"status"`

	AssignedTo *string `json:"assigned_to,omitempty"`
	AssignedBy *string `json:"assigned_by,omitempty"`
	AssignedAt *int64  `json:"assigned_at,omitempty"` // timestamp

	CreatedBy string `json:"created_by"`

	CompletedBy *string `json:"completed_by,omitempty"`
	CompletedAt *int64  `json:"completed_at,omitempty"` // timestamp
	Remark      *string `json:"remark,omitempty"`

	EngineerRemark *string `json:"engineer_remark,omitempty"`

	CallCount    int    `json:"call_count"`
	LastCalledAt *int64 `json:"last_called_at,omitempty"` // timestamp

	CreatedAt int64 `json:"created_at"` // timestamp
	UpdatedAt int64 `json:"updated_at"` // timestamp
}

// NotificationDTO 通知 DTO
type NotificationDTO struct {
	NotificationID string  `json:"notification_id"`
	OwnerID        string  `json:"owner_id"`
	Message        string  `json:"message"`
	Type           string  `json:"type"`
	CallID         *string `json:"call_id,omitempty"`
	IsRead         bool    `json:"is_read"`
	CreatedAt      int64   `json:"created_at"` // timestamp
}

// ForceLogoutDTO 强制下线事件载荷
type ForceLogoutDTO struct {
	Reason string `json:"reason"`
}

func nullStrPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullTimePtr(v sql.NullTime) *int64 {
	if !v.Valid {
		return nil
	}
	ts := v.Time.Unix()
	return &ts
}

// toCallDTO 领域模型 -> DTO
func toCallDTO(c *domain.Call) *CallDTO {
	return &CallDTO{
		CallID:         c.CallID,
		CustomerID:     c.CustomerID,
		CustomerName:   c.CustomerName,
		Phone:          c.Phone,
		Problem:        c.Problem,
		Category:       c.Category,
		Status:         string(c.Status),
		AssignedTo:     nullStrPtr(c.AssignedTo),
		AssignedBy:     nullStrPtr(c.AssignedBy),
		AssignedAt:     nullTimePtr(c.AssignedAt),
		CreatedBy:      c.CreatedBy,
		CompletedBy:    nullStrPtr(c.CompletedBy),
		CompletedAt:    nullTimePtr(c.CompletedAt),
		Remark:         nullStrPtr(c.Remark),
		EngineerRemark: nullStrPtr(c.EngineerRemark),
		CallCount:      c.CallCount,
		LastCalledAt:   nullTimePtr(c.LastCalledAt),
		CreatedAt:      c.CreatedAt.Unix(),
		UpdatedAt:      c.UpdatedAt.Unix(),
	}
}

// toNotificationDTO 领域模型 -> DTO
func toNotificationDTO(n *domain.Notification) *NotificationDTO {
	return &NotificationDTO{
		NotificationID: n.NotificationID,
		OwnerID:        n.OwnerID,
		Message:        n.Message,
		Type:           n.Type,
		CallID:         nullStrPtr(n.CallID),
		IsRead:         n.IsRead,
		CreatedAt:      n.CreatedAt.Unix(),
	}
}
