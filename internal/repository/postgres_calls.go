package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"wisefido-callcenter/internal/domain"

	"github.com/google/uuid"
)

// PostgresCallsRepository 工单Repository实现
// 状态守卫通过 conditional UPDATE（WHERE status <> 'COMPLETED'）落在单条
// SQL 上，由数据库行级原子性保证并发 read-modify-write 的完整性
type PostgresCallsRepository struct {
	db *sql.DB
}

// NewPostgresCallsRepository 创建工单Repository
func NewPostgresCallsRepository(db *sql.DB) *PostgresCallsRepository {
	return &PostgresCallsRepository{db: db}
}

// 确保实现了接口
var _ CallsRepository = (*PostgresCallsRepository)(nil)

// callColumns calls 表查询列（与 scanCall 的 Scan 顺序一致）
const callColumns = `
	call_id::text,
	customer_id::text,
	customer_name,
	phone,
	problem,
	category,
	status,
	assigned_to,
	assigned_by,
	assigned_at,
	created_by,
	completed_by,
	completed_at,
	remark,
	engineer_remark,
	call_count,
	last_called_at,
	created_at,
	updated_at`

// rowScanner *sql.Row 和 *sql.Rows 的公共 Scan 接口
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (*domain.Call, error) {
	var c domain.Call
	err := row.Scan(
		&c.CallID,
		&c.CustomerID,
		&c.CustomerName,
		&c.Phone,
		&c.Problem,
		&c.Category,
		&c.Status,
		&c.AssignedTo,
		&c.AssignedBy,
		&c.AssignedAt,
		&c.CreatedBy,
		&c.CompletedBy,
		&c.CompletedAt,
		&c.Remark,
		&c.EngineerRemark,
		&c.CallCount,
		&c.LastCalledAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCall 客户 upsert + 工单创建（同一事务，避免孤儿客户/无主工单）
func (r *PostgresCallsRepository) CreateCall(ctx context.Context, customer *domain.Customer, call *domain.Call) (*domain.Call, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	// 按 phone upsert 客户：不存在则建，存在则刷新联系信息并累加计数
	var customerID string
	err = tx.QueryRowContext(ctx, `
		INSERT INTO customers (customer_id, phone, customer_name, email, address, total_calls)
		VALUES ($1, $2, $3, $4, $5, 1)
		ON CONFLICT (phone) DO UPDATE
		SET customer_name = EXCLUDED.customer_name,
		    email = COALESCE(EXCLUDED.email, customers.email),
		    address = COALESCE(EXCLUDED.address, customers.address),
		    total_calls = customers.total_calls + 1,
		    updated_at = NOW()
		RETURNING customer_id::text`,
		uuid.NewString(),
		customer.Phone,
		customer.CustomerName,
		customer.Email,
		customer.Address,
	).Scan(&customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert customer: %w", err)
	}

	created, err := scanCall(tx.QueryRowContext(ctx, `
		INSERT INTO calls (
			call_id, customer_id, customer_name, phone, problem, category,
			status, assigned_to, assigned_by, assigned_at, created_by, call_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1)
		RETURNING `+callColumns,
		uuid.NewString(),
		customerID,
		customer.CustomerName,
		customer.Phone,
		call.Problem,
		call.Category,
		call.Status,
		call.AssignedTo,
		call.AssignedBy,
		call.AssignedAt,
		call.CreatedBy,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to insert call: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return created, nil
}

// GetCall 按 ID 获取工单
func (r *PostgresCallsRepository) GetCall(ctx context.Context, callID string) (*domain.Call, error) {
	if callID == "" {
		return nil, sql.ErrNoRows
	}
	return scanCall(r.db.QueryRowContext(ctx,
		`SELECT `+callColumns+` FROM calls WHERE call_id = $1`, callID))
}

// ListCalls 按过滤器分页查询
func (r *PostgresCallsRepository) ListCalls(ctx context.Context, filters CallFilters, page, size int) ([]*domain.Call, int, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}

	where := []string{"1=1"}
	args := []any{}
	idx := 1

	if filters.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", idx))
		args = append(args, filters.Status)
		idx++
	}
	if filters.AssignedTo != "" {
		where = append(where, fmt.Sprintf("assigned_to = $%d", idx))
		args = append(args, filters.AssignedTo)
		idx++
	}
	if filters.CreatedBy != "" {
		where = append(where, fmt.Sprintf("created_by = $%d", idx))
		args = append(args, filters.CreatedBy)
		idx++
	}
	if filters.Category != "" {
		where = append(where, fmt.Sprintf("category = $%d", idx))
		args = append(args, filters.Category)
		idx++
	}
	if filters.Search != "" {
		where = append(where, fmt.Sprintf(
			"(customer_name ILIKE $%d OR phone ILIKE $%d OR problem ILIKE $%d)", idx, idx, idx))
		args = append(args, "%"+filters.Search+"%")
		idx++
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM calls WHERE `+whereClause, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count calls: %w", err)
	}

	query := fmt.Sprintf(
		`SELECT %s FROM calls WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		callColumns, whereClause, idx, idx+1)
	args = append(args, size, (page-1)*size)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list calls: %w", err)
	}
	defer rows.Close()

	var calls []*domain.Call
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, 0, err
		}
		calls = append(calls, c)
	}
	return calls, total, rows.Err()
}

// AssignCall 分配/重新分配（status <> COMPLETED 守卫）
func (r *PostgresCallsRepository) AssignCall(ctx context.Context, callID, assignee, assignedBy string, remark *string) (*domain.Call, error) {
	return scanCall(r.db.QueryRowContext(ctx, `
		UPDATE calls
		SET assigned_to = $2,
		    assigned_by = $3,
		    assigned_at = NOW(),
		    status = 'ASSIGNED',
		    engineer_remark = COALESCE($4, engineer_remark),
		    updated_at = NOW()
		WHERE call_id = $1 AND status <> 'COMPLETED'
		RETURNING `+callColumns,
		callID, assignee, assignedBy, remark))
}

// CompleteCall 完成工单（status <> COMPLETED 守卫，终态不可再完成）
func (r *PostgresCallsRepository) CompleteCall(ctx context.Context, callID, completedBy string, remark *string) (*domain.Call, error) {
	return scanCall(r.db.QueryRowContext(ctx, `
		UPDATE calls
		SET status = 'COMPLETED',
		    completed_by = $2,
		    completed_at = NOW(),
		    remark = $3,
		    updated_at = NOW()
		WHERE call_id = $1 AND status <> 'COMPLETED'
		RETURNING `+callColumns,
		callID, completedBy, remark))
}

// UpdateCall 编辑工单字段（status <> COMPLETED 守卫）
func (r *PostgresCallsRepository) UpdateCall(ctx context.Context, callID string, upd CallUpdate) (*domain.Call, error) {
	set := []string{"updated_at = NOW()"}
	args := []any{callID}
	idx := 2

	addSet := func(col string, val any) {
		set = append(set, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, val)
		idx++
	}

	if upd.CustomerName != nil {
		addSet("customer_name", *upd.CustomerName)
	}
	if upd.Phone != nil {
		addSet("phone", *upd.Phone)
	}
	if upd.Problem != nil {
		addSet("problem", *upd.Problem)
	}
	if upd.Category != nil {
		addSet("category", *upd.Category)
	}
	if upd.EngineerRemark != nil {
		addSet("engineer_remark", *upd.EngineerRemark)
	}
	if upd.AssignedTo != nil {
		if *upd.AssignedTo == "" {
			// 清空分配组
			set = append(set,
				"assigned_to = NULL", "assigned_by = NULL", "assigned_at = NULL")
		} else {
			addSet("assigned_to", *upd.AssignedTo)
			addSet("assigned_by", upd.AssignedBy)
			set = append(set, "assigned_at = NOW()")
		}
	}
	if upd.Status != nil {
		addSet("status", *upd.Status)
	}

	query := fmt.Sprintf(
		`UPDATE calls SET %s WHERE call_id = $1 AND status <> 'COMPLETED' RETURNING %s`,
		strings.Join(set, ", "), callColumns)
	return scanCall(r.db.QueryRowContext(ctx, query, args...))
}

// IncrementCallCount 重复来电：call_count +1，同步客户聚合计数
func (r *PostgresCallsRepository) IncrementCallCount(ctx context.Context, callID string) (*domain.Call, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	call, err := scanCall(tx.QueryRowContext(ctx, `
		UPDATE calls
		SET call_count = call_count + 1,
		    last_called_at = NOW(),
		    updated_at = NOW()
		WHERE call_id = $1
		RETURNING `+callColumns, callID))
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE customers
		SET total_calls = total_calls + 1, updated_at = NOW()
		WHERE customer_id = $1`, call.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("failed to update customer counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return call, nil
}

// FindOpenCall 查重：同 phone+category 的最近未了结工单
// COMPLETED 不算重复
func (r *PostgresCallsRepository) FindOpenCall(ctx context.Context, phone, category string) (*domain.Call, error) {
	return scanCall(r.db.QueryRowContext(ctx, `
		SELECT `+callColumns+`
		FROM calls
		WHERE phone = $1 AND category = $2 AND status IN ('PENDING', 'ASSIGNED')
		ORDER BY created_at DESC
		LIMIT 1`,
		phone, category))
}

// ListAssignedTo 某用户名下全部已分配工单
func (r *PostgresCallsRepository) ListAssignedTo(ctx context.Context, username string) ([]*domain.Call, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+callColumns+`
		FROM calls
		WHERE assigned_to = $1
		ORDER BY created_at ASC`, username)
	if err != nil {
		return nil, fmt.Errorf("failed to list assigned calls: %w", err)
	}
	defer rows.Close()

	var calls []*domain.Call
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, c)
	}
	return calls, rows.Err()
}

// ClearAssignment 清空分配组并回到 PENDING（status <> COMPLETED 守卫）
func (r *PostgresCallsRepository) ClearAssignment(ctx context.Context, callID string) (*domain.Call, error) {
	return scanCall(r.db.QueryRowContext(ctx, `
		UPDATE calls
		SET assigned_to = NULL,
		    assigned_by = NULL,
		    assigned_at = NULL,
		    engineer_remark = NULL,
		    status = 'PENDING',
		    updated_at = NOW()
		WHERE call_id = $1 AND status <> 'COMPLETED'
		RETURNING `+callColumns, callID))
}
