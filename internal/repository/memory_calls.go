package repository

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"wisefido-callcenter/internal/domain"

	"github.com/google/uuid"
)

// MemoryCallsRepo supports local dev and unit tests when DB is disabled.
// 语义与 PostgresCallsRepository 对齐：守卫不满足 / 行不存在返回 sql.ErrNoRows
type MemoryCallsRepo struct {
	mu        sync.RWMutex
	calls     map[string]*domain.Call     // callID -> call
	customers map[string]*domain.Customer // phone -> customer
}

func NewMemoryCallsRepo() *MemoryCallsRepo {
	return &MemoryCallsRepo{
		calls:     map[string]*domain.Call{},
		customers: map[string]*domain.Customer{},
	}
}

// 确保实现了接口
var _ CallsRepository = (*MemoryCallsRepo)(nil)

func cloneCall(c *domain.Call) *domain.Call {
	cp := *c
	return &cp
}

func (r *MemoryCallsRepo) CreateCall(_ context.Context, customer *domain.Customer, call *domain.Call) (*domain.Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	existing, ok := r.customers[customer.Phone]
	if ok {
		existing.CustomerName = customer.CustomerName
		if customer.Email.Valid {
			existing.Email = customer.Email
		}
		if customer.Address.Valid {
			existing.Address = customer.Address
		}
		existing.TotalCalls++
		existing.UpdatedAt = now
	} else {
		existing = &domain.Customer{
			CustomerID:   uuid.NewString(),
			Phone:        customer.Phone,
			CustomerName: customer.CustomerName,
			Email:        customer.Email,
			Address:      customer.Address,
			TotalCalls:   1,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		r.customers[customer.Phone] = existing
	}

	created := cloneCall(call)
	created.CallID = uuid.NewString()
	created.CustomerID = existing.CustomerID
	created.CustomerName = existing.CustomerName
	created.Phone = existing.Phone
	created.CallCount = 1
	created.CreatedAt = now
	created.UpdatedAt = now
	r.calls[created.CallID] = created
	return cloneCall(created), nil
}

func (r *MemoryCallsRepo) GetCall(_ context.Context, callID string) (*domain.Call, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.calls[callID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return cloneCall(c), nil
}

// GetCustomerByPhone 测试辅助：按 phone 读客户
func (r *MemoryCallsRepo) GetCustomerByPhone(phone string) (*domain.Customer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.customers[phone]
	if !ok {
		return nil, false
	}
	cp := *c
	return &cp, true
}

func (r *MemoryCallsRepo) ListCalls(_ context.Context, filters CallFilters, page, size int) ([]*domain.Call, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*domain.Call, 0, len(r.calls))
	for _, c := range r.calls {
		if filters.Status != "" && c.Status != filters.Status {
			continue
		}
		if filters.AssignedTo != "" && (!c.AssignedTo.Valid || c.AssignedTo.String != filters.AssignedTo) {
			continue
		}
		if filters.CreatedBy != "" && c.CreatedBy != filters.CreatedBy {
			continue
		}
		if filters.Category != "" && c.Category != filters.Category {
			continue
		}
		if filters.Search != "" {
			s := strings.ToLower(filters.Search)
			if !strings.Contains(strings.ToLower(c.CustomerName), s) &&
				!strings.Contains(strings.ToLower(c.Phone), s) &&
				!strings.Contains(strings.ToLower(c.Problem), s) {
				continue
			}
		}
		all = append(all, cloneCall(c))
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (r *MemoryCallsRepo) AssignCall(_ context.Context, callID, assignee, assignedBy string, remark *string) (*domain.Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.calls[callID]
	if !ok || c.IsCompleted() {
		return nil, sql.ErrNoRows
	}
	now := time.Now()
	c.AssignedTo = sql.NullString{String: assignee, Valid: true}
	c.AssignedBy = sql.NullString{String: assignedBy, Valid: true}
	c.AssignedAt = sql.NullTime{Time: now, Valid: true}
	c.Status = domain.CallStatusAssigned
	if remark != nil {
		c.EngineerRemark = sql.NullString{String: *remark, Valid: true}
	}
	c.UpdatedAt = now
	return cloneCall(c), nil
}

func (r *MemoryCallsRepo) CompleteCall(_ context.Context, callID, completedBy string, remark *string) (*domain.Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.calls[callID]
	if !ok || c.IsCompleted() {
		return nil, sql.ErrNoRows
	}
	now := time.Now()
	c.Status = domain.CallStatusCompleted
	c.CompletedBy = sql.NullString{String: completedBy, Valid: true}
	c.CompletedAt = sql.NullTime{Time: now, Valid: true}
	if remark != nil {
		c.Remark = sql.NullString{String: *remark, Valid: true}
	} else {
		c.Remark = sql.NullString{}
	}
	c.UpdatedAt = now
	return cloneCall(c), nil
}

func (r *MemoryCallsRepo) UpdateCall(_ context.Context, callID string, upd CallUpdate) (*domain.Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.calls[callID]
	if !ok || c.IsCompleted() {
		return nil, sql.ErrNoRows
	}
	now := time.Now()
	if upd.CustomerName != nil {
		c.CustomerName = *upd.CustomerName
	}
	if upd.Phone != nil {
		c.Phone = *upd.Phone
	}
	if upd.Problem != nil {
		c.Problem = *upd.Problem
	}
	if upd.Category != nil {
		c.Category = *upd.Category
	}
	if upd.EngineerRemark != nil {
		c.EngineerRemark = sql.NullString{String: *upd.EngineerRemark, Valid: true}
	}
	if upd.AssignedTo != nil {
		if *upd.AssignedTo == "" {
			c.AssignedTo = sql.NullString{}
			c.AssignedBy = sql.NullString{}
			c.AssignedAt = sql.NullTime{}
		} else {
			c.AssignedTo = sql.NullString{String: *upd.AssignedTo, Valid: true}
			c.AssignedBy = sql.NullString{String: upd.AssignedBy, Valid: true}
			c.AssignedAt = sql.NullTime{Time: now, Valid: true}
		}
	}
	if upd.Status != nil {
		c.Status = *upd.Status
	}
	c.UpdatedAt = now
	return cloneCall(c), nil
}

func (r *MemoryCallsRepo) IncrementCallCount(_ context.Context, callID string) (*domain.Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.calls[callID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	now := time.Now()
	c.CallCount++
	c.LastCalledAt = sql.NullTime{Time: now, Valid: true}
	c.UpdatedAt = now
	if cust, ok := r.customers[c.Phone]; ok {
		cust.TotalCalls++
		cust.UpdatedAt = now
	}
	return cloneCall(c), nil
}

func (r *MemoryCallsRepo) FindOpenCall(_ context.Context, phone, category string) (*domain.Call, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *domain.Call
	for _, c := range r.calls {
		if c.Phone != phone || c.Category != category || !c.IsOpen() {
			continue
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
			latest = c
		}
	}
	if latest == nil {
		return nil, sql.ErrNoRows
	}
	return cloneCall(latest), nil
}

func (r *MemoryCallsRepo) ListAssignedTo(_ context.Context, username string) ([]*domain.Call, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var calls []*domain.Call
	for _, c := range r.calls {
		if c.AssignedTo.Valid && c.AssignedTo.String == username {
			calls = append(calls, cloneCall(c))
		}
	}
	sort.Slice(calls, func(i, j int) bool {
		return calls[i].CreatedAt.Before(calls[j].CreatedAt)
	})
	return calls, nil
}

func (r *MemoryCallsRepo) ClearAssignment(_ context.Context, callID string) (*domain.Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.calls[callID]
	if !ok || c.IsCompleted() {
		return nil, sql.ErrNoRows
	}
	c.AssignedTo = sql.NullString{}
	c.AssignedBy = sql.NullString{}
	c.AssignedAt = sql.NullTime{}
	c.EngineerRemark = sql.NullString{}
	c.Status = domain.CallStatusPending
	c.UpdatedAt = time.Now()
	return cloneCall(c), nil
}
