package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"wisefido-callcenter/internal/domain"
	"wisefido-callcenter/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NotificationInput 通知创建输入
type NotificationInput struct {
	OwnerID string
	Message string
	Type    string
	CallID  string // 可选关联工单
}

// NotificationService 通知服务接口
// 持久化为主，实时推送为 best-effort 补充：推送失败/无在线连接不影响
// 已持久化的通知，客户端轮询补偿
type NotificationService interface {
	// Create 批量持久化并交给事件总线推送（notification_created 定向事件）
	Create(ctx context.Context, inputs []NotificationInput) error

	// GetUserNotifications / GetUnreadCount 读取前先做全量懒清理
	GetUserNotifications(ctx context.Context, ownerID string) ([]*NotificationDTO, error)
	GetUnreadCount(ctx context.Context, ownerID string) (int, error)

	MarkAsRead(ctx context.Context, notificationID, ownerID string) error
	MarkAllAsRead(ctx context.Context, ownerID string) (int, error)
	DeleteNotification(ctx context.Context, notificationID, ownerID string) error
	BulkDeleteNotifications(ctx context.Context, notificationIDs []string, ownerID string) (int, error)

	// Run 周期清理兜底循环，直到 ctx 取消
	Run(ctx context.Context)
}

// notificationService 实现
type notificationService struct {
	repo          repository.NotificationsRepository
	bus           EventPublisher
	retention     time.Duration
	sweepInterval time.Duration
	logger        *zap.Logger
}

// NewNotificationService 创建 NotificationService 实例
func NewNotificationService(
	repo repository.NotificationsRepository,
	bus EventPublisher,
	retention time.Duration,
	sweepInterval time.Duration,
	logger *zap.Logger,
) NotificationService {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	if sweepInterval <= 0 {
		sweepInterval = time.Hour
	}
	return &notificationService{
		repo:          repo,
		bus:           bus,
		retention:     retention,
		sweepInterval: sweepInterval,
		logger:        logger,
	}
}

// Create 持久化通知并逐条发布 notification_created 定向事件
func (s *notificationService) Create(ctx context.Context, inputs []NotificationInput) error {
	if len(inputs) == 0 {
		return nil
	}

	now := time.Now()
	ns := make([]*domain.Notification, 0, len(inputs))
	for _, in := range inputs {
		if in.OwnerID == "" {
			return fmt.Errorf("owner_id is required: %w", ErrValidation)
		}
		if in.Message == "" {
			return fmt.Errorf("message is required: %w", ErrValidation)
		}
		n := &domain.Notification{
			NotificationID: uuid.NewString(),
			OwnerID:        in.OwnerID,
			Message:        in.Message,
			Type:           in.Type,
			IsRead:         false,
			CreatedAt:      now,
		}
		if in.CallID != "" {
			n.CallID = sql.NullString{String: in.CallID, Valid: true}
		}
		ns = append(ns, n)
	}

	if err := s.repo.CreateNotifications(ctx, ns); err != nil {
		return fmt.Errorf("failed to persist notifications: %w", err)
	}

	// 持久化已完成，推送是独立阶段
	for _, n := range ns {
		s.bus.Publish(domain.Event{
			Name:    domain.EventNotificationCreated,
			Target:  n.OwnerID,
			Payload: toNotificationDTO(n),
		})
	}
	return nil
}

// GetUserNotifications 读取某用户通知（先懒清理）
func (s *notificationService) GetUserNotifications(ctx context.Context, ownerID string) ([]*NotificationDTO, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("owner_id is required: %w", ErrValidation)
	}
	cutoff := s.purge(ctx)

	ns, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	dtos := make([]*NotificationDTO, 0, len(ns))
	for _, n := range ns {
		// 清理失败时读取侧仍按保留期过滤
		if n.CreatedAt.Before(cutoff) {
			continue
		}
		dtos = append(dtos, toNotificationDTO(n))
	}
	return dtos, nil
}

// GetUnreadCount 未读数量（先懒清理）
func (s *notificationService) GetUnreadCount(ctx context.Context, ownerID string) (int, error) {
	if ownerID == "" {
		return 0, fmt.Errorf("owner_id is required: %w", ErrValidation)
	}
	s.purge(ctx)

	count, err := s.repo.CountUnread(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread: %w", err)
	}
	return count, nil
}

// MarkAsRead 标记已读（仅 owner）
func (s *notificationService) MarkAsRead(ctx context.Context, notificationID, ownerID string) error {
	if err := s.repo.MarkRead(ctx, notificationID, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("notification %s: %w", notificationID, ErrNotFound)
		}
		return fmt.Errorf("failed to mark as read: %w", err)
	}
	return nil
}

// MarkAllAsRead 全部标记已读
func (s *notificationService) MarkAllAsRead(ctx context.Context, ownerID string) (int, error) {
	if ownerID == "" {
		return 0, fmt.Errorf("owner_id is required: %w", ErrValidation)
	}
	count, err := s.repo.MarkAllRead(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark all as read: %w", err)
	}
	return count, nil
}

// DeleteNotification 删除单条（仅 owner）
func (s *notificationService) DeleteNotification(ctx context.Context, notificationID, ownerID string) error {
	if err := s.repo.Delete(ctx, notificationID, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("notification %s: %w", notificationID, ErrNotFound)
		}
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	return nil
}

// BulkDeleteNotifications 批量删除（仅 owner 名下的 ID 生效）
func (s *notificationService) BulkDeleteNotifications(ctx context.Context, notificationIDs []string, ownerID string) (int, error) {
	if ownerID == "" {
		return 0, fmt.Errorf("owner_id is required: %w", ErrValidation)
	}
	count, err := s.repo.BulkDelete(ctx, notificationIDs, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to bulk delete: %w", err)
	}
	return count, nil
}

// Run 周期清理兜底：懒清理覆盖活跃用户，这里兜住长期无人读取的存量
func (s *notificationService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	s.logger.Info("notification sweeper started",
		zap.Duration("retention", s.retention),
		zap.Duration("interval", s.sweepInterval),
	)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("notification sweeper stopped")
			return
		case <-ticker.C:
			s.purge(ctx)
		}
	}
}

// purge 纯年龄谓词删除，幂等；返回本次保留期界限
func (s *notificationService) purge(ctx context.Context) time.Time {
	cutoff := time.Now().Add(-s.retention)
	count, err := s.repo.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Warn("notification purge failed", zap.Error(err))
		return cutoff
	}
	if count > 0 {
		s.logger.Debug("purged expired notifications", zap.Int("count", count))
	}
	return cutoff
}
