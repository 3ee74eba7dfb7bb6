package service

import (
	"context"

	"wisefido-callcenter/internal/domain"

	"go.uber.org/zap"
)

// EventPublisher service 层发布领域事件的窄接口
type EventPublisher interface {
	Publish(ev domain.Event)
}

// EventSink 事件消费端（实时会话目录 hub）
type EventSink interface {
	EmitToAll(event string, payload any)
	EmitToUser(principalID string, event string, payload any)
}

// EventBus 进程内 outbox：状态提交与事件推送解耦
// Publish 非阻塞（缓冲满则丢弃并告警），持久化结果与推送结果互不影响。
// 推送本身是 best-effort：丢失的事件客户端通过轮询补偿。
type EventBus struct {
	ch     chan domain.Event
	logger *zap.Logger
}

// NewEventBus 创建事件总线
func NewEventBus(buffer int, logger *zap.Logger) *EventBus {
	if buffer <= 0 {
		buffer = 256
	}
	return &EventBus{
		ch:     make(chan domain.Event, buffer),
		logger: logger,
	}
}

// 确保实现了接口
var _ EventPublisher = (*EventBus)(nil)

// Publish 发布事件；绝不阻塞调用方的变更路径
func (b *EventBus) Publish(ev domain.Event) {
	select {
	case b.ch <- ev:
	default:
		// 缓冲满：丢弃（best-effort 交付，客户端轮询兜底）
		b.logger.Warn("event bus full, dropping event",
			zap.String("event", ev.Name),
			zap.String("target", ev.Target),
		)
	}
}

// Run 分发循环：把事件推给 sink，直到 ctx 取消
// 由 main 持有生命周期；分发失败只记日志，不回滚任何状态
func (b *EventBus) Run(ctx context.Context, sink EventSink) {
	b.logger.Info("event bus dispatcher started")
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("event bus dispatcher stopped")
			return
		case ev := <-b.ch:
			if ev.Target == "" {
				sink.EmitToAll(ev.Name, ev.Payload)
			} else {
				sink.EmitToUser(ev.Target, ev.Name, ev.Payload)
			}
		}
	}
}
