package service

import "errors"

// 错误分类（handler 据此映射 HTTP 状态码）
// 所有错误同步返回给调用方，不做静默重试
var (
	// ErrValidation 输入缺失/非法，任何变更发生前拒绝
	ErrValidation = errors.New("validation failed")
	// ErrNotFound 引用的工单/通知不存在，未尝试任何变更
	ErrNotFound = errors.New("not found")
	// ErrUnauthenticated 缺失或非法的操作者身份
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden 身份有效但角色/条件不满足
	ErrForbidden = errors.New("forbidden")
	// ErrConflict 当前状态下非法的状态迁移（如完成已完成的工单）
	ErrConflict = errors.New("conflict")
)
