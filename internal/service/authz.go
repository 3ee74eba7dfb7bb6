package service

import (
	"fmt"

	"wisefido-callcenter/internal/domain"
)

// Actor 当前操作者（来自外部认证子系统的 token 校验结果）
// nil *Actor 表示匿名请求
type Actor struct {
	PrincipalID string
	Username    string
	Role        domain.Role
}

// Action 权限门动作
type Action string

const (
	ActionCreateCall    Action = "create_call"
	ActionAssignCall    Action = "assign_call"
	ActionEditCall      Action = "edit_call"
	ActionCompleteCall  Action = "complete_call"
	ActionIncrementCall Action = "increment_call"
)

// Authorize 权限门：对 (operator, action, 工单状态) 三元组分类
//
// 能力表：
//
//	create     任何已认证用户，或匿名（记 "system"）
//	assign     HOST/ADMIN，且工单未完成
//	edit       HOST/ADMIN，且工单未完成
//	complete   被分配人或 HOST/ADMIN，且工单未完成
//	increment  任何已认证用户
//
// 拒绝时区分 ErrUnauthenticated（无/非法身份）与 ErrForbidden（角色或
// 条件不满足）；对终态工单的迁移返回 ErrConflict
func Authorize(actor *Actor, action Action, call *domain.Call) error {
	if action == ActionCreateCall {
		// 匿名创建是放行的（记录为 "system"）
		return nil
	}
	if actor == nil || actor.Username == "" {
		return fmt.Errorf("%s requires an authenticated user: %w", action, ErrUnauthenticated)
	}

	switch action {
	case ActionAssignCall, ActionEditCall:
		if !actor.Role.IsManager() {
			return fmt.Errorf("role %s may not %s: %w", actor.Role, action, ErrForbidden)
		}
		if call != nil && call.IsCompleted() {
			return fmt.Errorf("call %s is completed: %w", call.CallID, ErrConflict)
		}
		return nil

	case ActionCompleteCall:
		if call == nil {
			return fmt.Errorf("call is required for %s: %w", action, ErrNotFound)
		}
		if call.IsCompleted() {
			return fmt.Errorf("call %s is already completed: %w", call.CallID, ErrConflict)
		}
		isAssignee := call.AssignedTo.Valid && call.AssignedTo.String == actor.Username
		if !isAssignee && !actor.Role.IsManager() {
			return fmt.Errorf("user %s is neither assignee nor manager: %w", actor.Username, ErrForbidden)
		}
		return nil

	case ActionIncrementCall:
		return nil

	default:
		return fmt.Errorf("unknown action %s: %w", action, ErrForbidden)
	}
}
