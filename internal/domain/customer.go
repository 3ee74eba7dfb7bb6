package domain

import (
	"database/sql"
	"time"
)

// Customer 客户领域模型（对应 customers 表）
// phone 唯一；工单创建路径按 phone upsert（不存在则建，存在则更新联系信息）
type Customer struct {
	CustomerID   string         `db:"customer_id"`
	Phone        string         `db:"phone"` // UNIQUE NOT NULL
	CustomerName string         `db:"customer_name"`
	Email        sql.NullString `db:"email"`
	Address      sql.NullString `db:"address"`

	// 聚合计数：该客户名下累计工单联系次数
	TotalCalls int `db:"total_calls"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
