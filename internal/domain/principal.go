package domain

// Role 用户角色（闭集枚举）
// 用户表由外部用户管理子系统维护，本服务只读
type Role string

const (
	RoleHost     Role = "HOST"     // 前台
	RoleAdmin    Role = "ADMIN"    // 管理员
	RoleEngineer Role = "ENGINEER" // 工程师
)

// ParseRole 解析角色字符串；非法值返回 false
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleHost, RoleAdmin, RoleEngineer:
		return Role(s), true
	}
	return "", false
}

// IsManager HOST/ADMIN 拥有工单分配与编辑权限
func (r Role) IsManager() bool {
	return r == RoleHost || r == RoleAdmin
}

// Principal 操作者（对应 users 表，外部子系统所有）
type Principal struct {
	UserID   string `db:"user_id"`
	Username string `db:"username"` // UNIQUE NOT NULL
	Role     Role   `db:"role"`
	Status   string `db:"status"`
}
