package domain

import (
	"database/sql"
	"time"
)

// CallStatus 工单状态（闭集枚举，避免非法状态值）
type CallStatus string

const (
	CallStatusPending   CallStatus = "PENDING"
	CallStatusAssigned  CallStatus = "ASSIGNED"
	CallStatusCompleted CallStatus = "COMPLETED"
)

// Valid 状态值是否合法
func (s CallStatus) Valid() bool {
	switch s {
	case CallStatusPending, CallStatusAssigned, CallStatusCompleted:
		return true
	}
	return false
}

// Call 客服工单领域模型（对应 calls 表）
// 状态机：PENDING -> ASSIGNED -> COMPLETED（终态）；ASSIGNED 可重新分配或
// 清空分配回到 PENDING；COMPLETED 后不再变更
type Call struct {
	CallID     string `db:"call_id"`
	CustomerID string `db:"customer_id"`

	// 冗余客户字段：查重与通知只需读单行（见 customers 表）
	CustomerName string `db:"customer_name"`
	Phone        string `db:"phone"`

	Problem  string     `db:"problem"`
	Category string     `db:"category"`
	Status   CallStatus `db:"status"` // NOT NULL

	// 分配信息（整组可空：要么全有要么全无）
	AssignedTo sql.NullString `db:"assigned_to"`
	AssignedBy sql.NullString `db:"assigned_by"`
	AssignedAt sql.NullTime   `db:"assigned_at"`

	CreatedBy string `db:"created_by"` // NOT NULL（匿名创建写入 "system"）

	// 完成信息（整组可空，completed_by 非空 <=> status = COMPLETED）
	CompletedBy sql.NullString `db:"completed_by"`
	CompletedAt sql.NullTime   `db:"completed_at"`
	Remark      sql.NullString `db:"remark"`

	EngineerRemark sql.NullString `db:"engineer_remark"` // nullable

	CallCount    int          `db:"call_count"` // >= 1
	LastCalledAt sql.NullTime `db:"last_called_at"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// IsCompleted 工单是否处于终态
func (c *Call) IsCompleted() bool {
	return c.Status == CallStatusCompleted
}

// IsOpen 工单是否未了结（PENDING 或 ASSIGNED），用于查重
func (c *Call) IsOpen() bool {
	return c.Status == CallStatusPending || c.Status == CallStatusAssigned
}
