package repository

import (
	"context"

	"wisefido-callcenter/internal/domain"
)

// CallsRepository 工单Repository接口
// 使用强类型领域模型，不使用map[string]any
//
// 所有带状态守卫的更新（Assign/Complete/Update/ClearAssignment）都是
// 单条 conditional UPDATE：守卫不满足或行不存在时返回 sql.ErrNoRows，
// 由 service 层回读区分 NotFound / Conflict。并发更新由行级原子性保证。
type CallsRepository interface {
	// CreateCall 客户 upsert（按 phone）+ 工单创建，同一事务
	CreateCall(ctx context.Context, customer *domain.Customer, call *domain.Call) (*domain.Call, error)

	GetCall(ctx context.Context, callID string) (*domain.Call, error)
	ListCalls(ctx context.Context, filters CallFilters, page, size int) ([]*domain.Call, int, error)

	// AssignCall 分配/重新分配；守卫 status <> COMPLETED
	// remark 为 nil 时保留原 engineer_remark
	AssignCall(ctx context.Context, callID, assignee, assignedBy string, remark *string) (*domain.Call, error)

	// CompleteCall 完成工单；守卫 status <> COMPLETED
	CompleteCall(ctx context.Context, callID, completedBy string, remark *string) (*domain.Call, error)

	// UpdateCall 编辑工单字段；守卫 status <> COMPLETED
	UpdateCall(ctx context.Context, callID string, upd CallUpdate) (*domain.Call, error)

	// IncrementCallCount 重复来电计数 +1 并刷新 last_called_at（无状态守卫）
	IncrementCallCount(ctx context.Context, callID string) (*domain.Call, error)

	// FindOpenCall 查重：同 phone+category 且未了结的最近工单
	FindOpenCall(ctx context.Context, phone, category string) (*domain.Call, error)

	// ListAssignedTo 某个用户名下的全部已分配工单（unassignAll 用）
	ListAssignedTo(ctx context.Context, username string) ([]*domain.Call, error)

	// ClearAssignment 清空分配组并回到 PENDING；守卫 status <> COMPLETED
	ClearAssignment(ctx context.Context, callID string) (*domain.Call, error)
}

// CallFilters 工单查询过滤器
type CallFilters struct {
	Status     domain.CallStatus // 可选
	AssignedTo string            // 可选
	CreatedBy  string            // 可选
	Category   string            // 可选
	Search     string            // 模糊搜索：customer_name, phone, problem
}

// CallUpdate 工单编辑字段集（nil 表示不更新）
// AssignedTo 的三态：nil 不动分配组；空串清空分配组（状态回 PENDING）；
// 非空重新分配（状态置 ASSIGNED，分配组整组写入）
type CallUpdate struct {
	CustomerName   *string
	Phone          *string
	Problem        *string
	Category       *string
	EngineerRemark *string

	AssignedTo *string
	AssignedBy string // AssignedTo 非空时写入
	Status     *domain.CallStatus
}
