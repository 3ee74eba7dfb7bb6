package repository

import (
	"context"

	"wisefido-callcenter/internal/domain"
)

// UsersRepository 用户Repository接口（只读）
// users 表由外部用户管理子系统维护；本服务仅用于权限门与通知收件人枚举
type UsersRepository interface {
	GetByUsername(ctx context.Context, username string) (*domain.Principal, error)
	// ListByRoles 枚举指定角色的活跃用户（HOST/ADMIN 通知收件人）
	ListByRoles(ctx context.Context, roles []domain.Role) ([]*domain.Principal, error)
}
