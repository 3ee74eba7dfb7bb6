package repository

import (
	"context"
	"database/sql"
	"sort"
	"sync"

	"wisefido-callcenter/internal/domain"

	"github.com/google/uuid"
)

// MemoryUsersRepo supports local dev and unit tests when DB is disabled.
// Seed 数据通过 AddUser 写入（users 表生产环境由外部子系统维护）
type MemoryUsersRepo struct {
	mu    sync.RWMutex
	users map[string]*domain.Principal // username -> principal
}

func NewMemoryUsersRepo() *MemoryUsersRepo {
	return &MemoryUsersRepo{
		users: map[string]*domain.Principal{},
	}
}

// 确保实现了接口
var _ UsersRepository = (*MemoryUsersRepo)(nil)

// AddUser seed 用户
func (r *MemoryUsersRepo) AddUser(username string, role domain.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.users[username] = &domain.Principal{
		UserID:   uuid.NewString(),
		Username: username,
		Role:     role,
		Status:   "active",
	}
}

func (r *MemoryUsersRepo) GetByUsername(_ context.Context, username string) (*domain.Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.users[username]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func (r *MemoryUsersRepo) ListByRoles(_ context.Context, roles []domain.Role) ([]*domain.Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	want := map[domain.Role]bool{}
	for _, role := range roles {
		want[role] = true
	}

	var principals []*domain.Principal
	for _, p := range r.users {
		if want[p.Role] && p.Status == "active" {
			cp := *p
			principals = append(principals, &cp)
		}
	}
	sort.Slice(principals, func(i, j int) bool {
		return principals[i].Username < principals[j].Username
	})
	return principals, nil
}
