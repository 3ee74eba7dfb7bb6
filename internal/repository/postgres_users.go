package repository

import (
	"context"
	"database/sql"
	"fmt"

	"wisefido-callcenter/internal/domain"

	"github.com/lib/pq"
)

// PostgresUsersRepository 用户Repository实现（只读）
type PostgresUsersRepository struct {
	db *sql.DB
}

// NewPostgresUsersRepository 创建用户Repository
func NewPostgresUsersRepository(db *sql.DB) *PostgresUsersRepository {
	return &PostgresUsersRepository{db: db}
}

// 确保实现了接口
var _ UsersRepository = (*PostgresUsersRepository)(nil)

// GetByUsername 按用户名获取用户
func (r *PostgresUsersRepository) GetByUsername(ctx context.Context, username string) (*domain.Principal, error) {
	if username == "" {
		return nil, sql.ErrNoRows
	}
	var p domain.Principal
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id::text, username, role, status
		FROM users
		WHERE username = $1`, username).
		Scan(&p.UserID, &p.Username, &p.Role, &p.Status)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListByRoles 枚举指定角色的活跃用户
func (r *PostgresUsersRepository) ListByRoles(ctx context.Context, roles []domain.Role) ([]*domain.Principal, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	roleStrs := make([]string, 0, len(roles))
	for _, role := range roles {
		roleStrs = append(roleStrs, string(role))
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id::text, username, role, status
		FROM users
		WHERE role = ANY($1) AND status = 'active'
		ORDER BY username`, pq.Array(roleStrs))
	if err != nil {
		return nil, fmt.Errorf("failed to list users by roles: %w", err)
	}
	defer rows.Close()

	var principals []*domain.Principal
	for rows.Next() {
		var p domain.Principal
		if err := rows.Scan(&p.UserID, &p.Username, &p.Role, &p.Status); err != nil {
			return nil, err
		}
		principals = append(principals, &p)
	}
	return principals, rows.Err()
}
