package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"wisefido-callcenter/internal/domain"
	"wisefido-callcenter/internal/repository"

	"go.uber.org/zap"
)

// actorSystem 匿名创建时记录的操作者标签
const actorSystem = "system"

// CallService 工单服务接口
// 状态机：PENDING -> ASSIGNED -> COMPLETED（终态）；所有变更先过权限门，
// 成功后发布领域事件（见 EventBus，推送与提交解耦）
type CallService interface {
	CreateCall(ctx context.Context, req CreateCallRequest) (*CallDTO, error)
	AssignCall(ctx context.Context, req AssignCallRequest) (*CallDTO, error)
	CompleteCall(ctx context.Context, req CompleteCallRequest) (*CallDTO, error)
	EditCall(ctx context.Context, req EditCallRequest) (*CallDTO, error)

	// UnassignAll 外部用户移除/降级工作流入口：清空某用户的全部分配
	UnassignAll(ctx context.Context, username string) (int, error)

	// CheckDuplicate 查重（只读）：同 phone+category 的未了结工单，无则返回 nil
	CheckDuplicate(ctx context.Context, req CheckDuplicateRequest) (*CallDTO, error)
	IncrementCallCount(ctx context.Context, req IncrementCallRequest) (*CallDTO, error)

	GetCall(ctx context.Context, callID string) (*CallDTO, error)
	ListCalls(ctx context.Context, req ListCallsRequest) (*ListCallsResponse, error)
}

// callService 实现
type callService struct {
	callsRepo repository.CallsRepository
	usersRepo repository.UsersRepository
	notifier  NotificationService
	bus       EventPublisher
	logger    *zap.Logger
}

// NewCallService 创建 CallService 实例
func NewCallService(
	callsRepo repository.CallsRepository,
	usersRepo repository.UsersRepository,
	notifier NotificationService,
	bus EventPublisher,
	logger *zap.Logger,
) CallService {
	return &callService{
		callsRepo: callsRepo,
		usersRepo: usersRepo,
		notifier:  notifier,
		bus:       bus,
		logger:    logger,
	}
}

// ============================================
// Request/Response DTOs
// ============================================

// CreateCallRequest 创建工单请求
type CreateCallRequest struct {
	Actor *Actor // nil 表示匿名（记录为 "system"）

	CustomerName string // 必填
	Phone        string // 必填
	Problem      string // 必填
	Category     string // 必填
	Email        string // 可选
	Address      string // 可选

	AssignedTo     string // 可选：创建即分配
	EngineerRemark string // 可选
}

// AssignCallRequest 分配工单请求
type AssignCallRequest struct {
	Actor    *Actor // 必须 HOST/ADMIN
	CallID   string
	Assignee string
	Remark   *string // nil 保留原 engineer_remark
}

// CompleteCallRequest 完成工单请求
type CompleteCallRequest struct {
	Actor  *Actor // 被分配人或 HOST/ADMIN
	CallID string
	Remark *string
}

// EditCallRequest 编辑工单请求（nil 表示不更新）
type EditCallRequest struct {
	Actor  *Actor // 必须 HOST/ADMIN
	CallID string

	CustomerName   *string
	Phone          *string
	Problem        *string
	Category       *string
	EngineerRemark *string
	// AssignedTo 三态：nil 不动；空串清空（状态回 PENDING）；非空重新分配
	AssignedTo *string
}

// CheckDuplicateRequest 查重请求
type CheckDuplicateRequest struct {
	Phone    string
	Category string
}

// IncrementCallRequest 重复来电请求
type IncrementCallRequest struct {
	Actor  *Actor // 必须已认证
	CallID string
}

// ListCallsRequest 工单列表请求
type ListCallsRequest struct {
	Status     string
	AssignedTo string
	CreatedBy  string
	Category   string
	Search     string
	Page       int
	Size       int
}

// ListCallsResponse 工单列表响应
type ListCallsResponse struct {
	Items []*CallDTO `json:"items"`
	Total int        `json:"total"`
}

// ============================================
// 操作实现
// ============================================

// CreateCall 创建工单：客户按 phone upsert + 工单创建（一个逻辑单元）
func (s *callService) CreateCall(ctx context.Context, req CreateCallRequest) (*CallDTO, error) {
	if err := Authorize(req.Actor, ActionCreateCall, nil); err != nil {
		return nil, err
	}
	if req.CustomerName == "" {
		return nil, fmt.Errorf("customer_name is required: %w", ErrValidation)
	}
	if req.Phone == "" {
		return nil, fmt.Errorf("phone is required: %w", ErrValidation)
	}
	if req.Problem == "" {
		return nil, fmt.Errorf("problem is required: %w", ErrValidation)
	}
	if req.Category == "" {
		return nil, fmt.Errorf("category is required: %w", ErrValidation)
	}

	actorName := actorSystem
	if req.Actor != nil && req.Actor.Username != "" {
		actorName = req.Actor.Username
	}

	customer := &domain.Customer{
		Phone:        req.Phone,
		CustomerName: req.CustomerName,
	}
	if req.Email != "" {
		customer.Email = sql.NullString{String: req.Email, Valid: true}
	}
	if req.Address != "" {
		customer.Address = sql.NullString{String: req.Address, Valid: true}
	}

	call := &domain.Call{
		Problem:   req.Problem,
		Category:  req.Category,
		Status:    domain.CallStatusPending,
		CreatedBy: actorName,
	}
	if req.AssignedTo != "" {
		now := time.Now()
		call.Status = domain.CallStatusAssigned
		call.AssignedTo = sql.NullString{String: req.AssignedTo, Valid: true}
		call.AssignedBy = sql.NullString{String: actorName, Valid: true}
		call.AssignedAt = sql.NullTime{Time: now, Valid: true}
	}
	if req.EngineerRemark != "" {
		call.EngineerRemark = sql.NullString{String: req.EngineerRemark, Valid: true}
	}

	created, err := s.callsRepo.CreateCall(ctx, customer, call)
	if err != nil {
		return nil, fmt.Errorf("failed to create call: %w", err)
	}

	dto := toCallDTO(created)
	s.bus.Publish(domain.Event{Name: domain.EventCallCreated, Payload: dto})

	// 创建即分配时通知被分配人
	if created.AssignedTo.Valid && created.AssignedTo.String != actorName {
		s.createNotifications(ctx, []NotificationInput{{
			OwnerID: created.AssignedTo.String,
			Message: fmt.Sprintf("New call from %s (%s) about %s assigned to you",
				created.CustomerName, created.Phone, created.Category),
			Type:   domain.NotificationTypeAssignment,
			CallID: created.CallID,
		}})
	}

	s.logger.Info("call created",
		zap.String("call_id", created.CallID),
		zap.String("status", string(created.Status)),
		zap.String("created_by", actorName),
	)
	return dto, nil
}

// AssignCall 分配/重新分配工单
func (s *callService) AssignCall(ctx context.Context, req AssignCallRequest) (*CallDTO, error) {
	if req.Assignee == "" {
		return nil, fmt.Errorf("assignee is required: %w", ErrValidation)
	}
	call, err := s.fetchCall(ctx, req.CallID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(req.Actor, ActionAssignCall, call); err != nil {
		return nil, err
	}

	updated, err := s.callsRepo.AssignCall(ctx, req.CallID, req.Assignee, req.Actor.Username, req.Remark)
	if err != nil {
		return nil, s.classifyUpdateErr(ctx, req.CallID, err)
	}

	dto := toCallDTO(updated)
	s.bus.Publish(domain.Event{Name: domain.EventCallAssigned, Payload: dto})

	if req.Assignee != req.Actor.Username {
		s.createNotifications(ctx, []NotificationInput{{
			OwnerID: req.Assignee,
			Message: fmt.Sprintf("Call from %s (%s) about %s assigned to you by %s",
				updated.CustomerName, updated.Phone, updated.Category, req.Actor.Username),
			Type:   domain.NotificationTypeAssignment,
			CallID: updated.CallID,
		}})
	}

	s.logger.Info("call assigned",
		zap.String("call_id", updated.CallID),
		zap.String("assignee", req.Assignee),
		zap.String("assigned_by", req.Actor.Username),
	)
	return dto, nil
}

// CompleteCall 完成工单（终态）
func (s *callService) CompleteCall(ctx context.Context, req CompleteCallRequest) (*CallDTO, error) {
	call, err := s.fetchCall(ctx, req.CallID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(req.Actor, ActionCompleteCall, call); err != nil {
		return nil, err
	}

	updated, err := s.callsRepo.CompleteCall(ctx, req.CallID, req.Actor.Username, req.Remark)
	if err != nil {
		return nil, s.classifyUpdateErr(ctx, req.CallID, err)
	}

	dto := toCallDTO(updated)
	s.bus.Publish(domain.Event{Name: domain.EventCallCompleted, Payload: dto})

	// 通知创建人（完成人自己除外；匿名创建的 "system" 不是可达用户）
	if updated.CreatedBy != req.Actor.Username && updated.CreatedBy != actorSystem {
		s.createNotifications(ctx, []NotificationInput{{
			OwnerID: updated.CreatedBy,
			Message: fmt.Sprintf("Call from %s (%s) about %s completed by %s",
				updated.CustomerName, updated.Phone, updated.Category, req.Actor.Username),
			Type:   domain.NotificationTypeCompletion,
			CallID: updated.CallID,
		}})
	}

	s.logger.Info("call completed",
		zap.String("call_id", updated.CallID),
		zap.String("completed_by", req.Actor.Username),
	)
	return dto, nil
}

// EditCall 编辑工单字段并重算状态
func (s *callService) EditCall(ctx context.Context, req EditCallRequest) (*CallDTO, error) {
	call, err := s.fetchCall(ctx, req.CallID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(req.Actor, ActionEditCall, call); err != nil {
		return nil, err
	}
	if req.Phone != nil && *req.Phone == "" {
		return nil, fmt.Errorf("phone may not be cleared: %w", ErrValidation)
	}
	if req.CustomerName != nil && *req.CustomerName == "" {
		return nil, fmt.Errorf("customer_name may not be cleared: %w", ErrValidation)
	}

	upd := repository.CallUpdate{
		CustomerName:   req.CustomerName,
		Phone:          req.Phone,
		Problem:        req.Problem,
		Category:       req.Category,
		EngineerRemark: req.EngineerRemark,
		AssignedTo:     req.AssignedTo,
	}
	// 状态重算：编辑指定了非空被分配人 => ASSIGNED；显式清空 => PENDING；
	// 否则维持原状态
	if req.AssignedTo != nil {
		var status domain.CallStatus
		if *req.AssignedTo == "" {
			status = domain.CallStatusPending
		} else {
			status = domain.CallStatusAssigned
			upd.AssignedBy = req.Actor.Username
		}
		upd.Status = &status
	}

	updated, err := s.callsRepo.UpdateCall(ctx, req.CallID, upd)
	if err != nil {
		return nil, s.classifyUpdateErr(ctx, req.CallID, err)
	}

	dto := toCallDTO(updated)
	s.bus.Publish(domain.Event{Name: domain.EventCallUpdated, Payload: dto})

	s.logger.Info("call updated",
		zap.String("call_id", updated.CallID),
		zap.String("status", string(updated.Status)),
		zap.String("updated_by", req.Actor.Username),
	)
	return dto, nil
}

// UnassignAll 清空某用户的全部分配（外部移除/降级工作流调用）
// 每张工单单独更新并各自发布 call_updated（不做批量事件）；
// 已完成的工单保持不变（终态不可回退）
func (s *callService) UnassignAll(ctx context.Context, username string) (int, error) {
	if username == "" {
		return 0, fmt.Errorf("username is required: %w", ErrValidation)
	}

	calls, err := s.callsRepo.ListAssignedTo(ctx, username)
	if err != nil {
		return 0, fmt.Errorf("failed to list assigned calls: %w", err)
	}

	count := 0
	for _, call := range calls {
		updated, err := s.callsRepo.ClearAssignment(ctx, call.CallID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				// 终态守卫：已完成的工单不回退
				continue
			}
			return count, fmt.Errorf("failed to clear assignment for call %s: %w", call.CallID, err)
		}
		count++
		s.bus.Publish(domain.Event{Name: domain.EventCallUpdated, Payload: toCallDTO(updated)})
	}

	s.logger.Info("assignments cleared",
		zap.String("username", username),
		zap.Int("count", count),
	)
	return count, nil
}

// CheckDuplicate 查重（只读）：调用方据此引导「更新已有」还是「新建」
func (s *callService) CheckDuplicate(ctx context.Context, req CheckDuplicateRequest) (*CallDTO, error) {
	if req.Phone == "" {
		return nil, fmt.Errorf("phone is required: %w", ErrValidation)
	}
	if req.Category == "" {
		return nil, fmt.Errorf("category is required: %w", ErrValidation)
	}

	call, err := s.callsRepo.FindOpenCall(ctx, req.Phone, req.Category)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to check duplicate: %w", err)
	}
	return toCallDTO(call), nil
}

// IncrementCallCount 重复来电：计数 +1 并通知相关人
func (s *callService) IncrementCallCount(ctx context.Context, req IncrementCallRequest) (*CallDTO, error) {
	if err := Authorize(req.Actor, ActionIncrementCall, nil); err != nil {
		return nil, err
	}
	if _, err := s.fetchCall(ctx, req.CallID); err != nil {
		return nil, err
	}

	updated, err := s.callsRepo.IncrementCallCount(ctx, req.CallID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("call %s: %w", req.CallID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to increment call count: %w", err)
	}

	dto := toCallDTO(updated)
	s.bus.Publish(domain.Event{Name: domain.EventCallUpdated, Payload: dto})

	s.notifyRepeatCall(ctx, updated, req.Actor)
	return dto, nil
}

// GetCall 按 ID 获取工单
func (s *callService) GetCall(ctx context.Context, callID string) (*CallDTO, error) {
	call, err := s.fetchCall(ctx, callID)
	if err != nil {
		return nil, err
	}
	return toCallDTO(call), nil
}

// ListCalls 按过滤器分页查询
func (s *callService) ListCalls(ctx context.Context, req ListCallsRequest) (*ListCallsResponse, error) {
	filters := repository.CallFilters{
		AssignedTo: req.AssignedTo,
		CreatedBy:  req.CreatedBy,
		Category:   req.Category,
		Search:     req.Search,
	}
	if req.Status != "" {
		status := domain.CallStatus(req.Status)
		if !status.Valid() {
			return nil, fmt.Errorf("invalid status %q: %w", req.Status, ErrValidation)
		}
		filters.Status = status
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	size := req.Size
	if size < 1 {
		size = 20
	}
	if size > 100 {
		size = 100
	}

	calls, total, err := s.callsRepo.ListCalls(ctx, filters, page, size)
	if err != nil {
		return nil, fmt.Errorf("failed to list calls: %w", err)
	}

	items := make([]*CallDTO, 0, len(calls))
	for _, c := range calls {
		items = append(items, toCallDTO(c))
	}
	return &ListCallsResponse{Items: items, Total: total}, nil
}

// ============================================
// 内部辅助
// ============================================

// fetchCall 读工单并把缺失归类为 ErrNotFound
func (s *callService) fetchCall(ctx context.Context, callID string) (*domain.Call, error) {
	if callID == "" {
		return nil, fmt.Errorf("call_id is required: %w", ErrValidation)
	}
	call, err := s.callsRepo.GetCall(ctx, callID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("call %s: %w", callID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get call: %w", err)
	}
	return call, nil
}

// classifyUpdateErr 条件更新零命中的归类：回读区分「不存在」与「已完成」
// （读-改之间被并发完成的工单在这里归为 ErrConflict）
func (s *callService) classifyUpdateErr(ctx context.Context, callID string, err error) error {
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to update call: %w", err)
	}
	call, getErr := s.callsRepo.GetCall(ctx, callID)
	if getErr != nil {
		return fmt.Errorf("call %s: %w", callID, ErrNotFound)
	}
	if call.IsCompleted() {
		return fmt.Errorf("call %s is completed: %w", callID, ErrConflict)
	}
	return fmt.Errorf("failed to update call %s: %w", callID, err)
}

// notifyRepeatCall 重复来电通知：创建人、被分配人、全部 HOST/ADMIN（操作者除外）
func (s *callService) notifyRepeatCall(ctx context.Context, call *domain.Call, actor *Actor) {
	message := fmt.Sprintf("%s (%s) called again about %s, call count %d",
		call.CustomerName, call.Phone, call.Category, call.CallCount)

	seen := map[string]bool{actor.Username: true}
	var inputs []NotificationInput
	add := func(owner string) {
		if owner == "" || owner == actorSystem || seen[owner] {
			return
		}
		seen[owner] = true
		inputs = append(inputs, NotificationInput{
			OwnerID: owner,
			Message: message,
			Type:    domain.NotificationTypeRepeatCall,
			CallID:  call.CallID,
		})
	}

	add(call.CreatedBy)
	if call.AssignedTo.Valid {
		add(call.AssignedTo.String)
	}

	managers, err := s.usersRepo.ListByRoles(ctx, []domain.Role{domain.RoleHost, domain.RoleAdmin})
	if err != nil {
		s.logger.Warn("failed to enumerate manager recipients", zap.Error(err))
	} else {
		for _, m := range managers {
			add(m.Username)
		}
	}

	s.createNotifications(ctx, inputs)
}

// createNotifications 通知创建失败只记日志：工单变更已提交，不回滚
func (s *callService) createNotifications(ctx context.Context, inputs []NotificationInput) {
	if len(inputs) == 0 {
		return
	}
	if err := s.notifier.Create(ctx, inputs); err != nil {
		s.logger.Error("failed to create notifications", zap.Error(err))
	}
}
