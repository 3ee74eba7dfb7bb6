package domain

// 实时事件名（与前端约定的 wire 协议）
const (
	EventCallCreated         = "call_created"
	EventCallUpdated         = "call_updated"
	EventCallAssigned        = "call_assigned"
	EventCallCompleted       = "call_completed"
	EventNotificationCreated = "notification_created"
	EventForceLogout         = "force_logout"
)

// Event 领域事件
// 状态提交与推送解耦：service 只负责 Publish，分发由事件总线完成。
// Target 为空时广播给所有在线连接，否则定向推送给该 principal。
// 推送是 best-effort：无在线连接或发送失败不影响已完成的状态变更。
type Event struct {
	Name    string
	Target  string
	Payload any
}
