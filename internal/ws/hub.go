package ws

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// wsConn 连接写侧的最小接口（gorilla *websocket.Conn 满足；测试用替身）
type wsConn interface {
	WriteJSON(v any) error
	Close() error
}

// Envelope 推送事件的 wire 格式
type Envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// Conn 一条已注册的客户端连接
type Conn struct {
	ID          string
	principalID string

	mu sync.Mutex // 串行化单连接写
	ws wsConn
}

func (c *Conn) send(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(Envelope{Event: event, Payload: payload})
}

// Hub 实时会话目录：principal -> 当前唯一连接
// 重连语义 last-write-wins；进程内组件，显式创建/注销生命周期，
// 不做跨进程共享。所有推送均为 best-effort 单次尝试。
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]*Conn // principalID -> 当前绑定连接
	logger *zap.Logger
}

// NewHub 创建会话目录
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		conns:  map[string]*Conn{},
		logger: logger,
	}
}

// Register 绑定 principal 的唯一连接；覆盖并关闭旧连接（重连语义）
func (h *Hub) Register(principalID string, ws wsConn) *Conn {
	conn := &Conn{
		ID:          uuid.NewString(),
		principalID: principalID,
		ws:          ws,
	}

	h.mu.Lock()
	old := h.conns[principalID]
	h.conns[principalID] = conn
	h.mu.Unlock()

	if old != nil {
		// 被替代的连接直接关闭；其滞后到达的 Unregister 不会命中新绑定
		_ = old.ws.Close()
	}

	h.logger.Info("session registered",
		zap.String("principal", principalID),
		zap.String("conn_id", conn.ID),
	)
	return conn
}

// Unregister 断开回收：仅当该 principal 的当前绑定仍指向这条连接时移除
// 滞后到达的旧连接断开不能驱逐重连后的新绑定
func (h *Hub) Unregister(conn *Conn) {
	h.mu.Lock()
	cur, ok := h.conns[conn.principalID]
	if ok && cur.ID == conn.ID {
		delete(h.conns, conn.principalID)
		ok = true
	} else {
		ok = false
	}
	h.mu.Unlock()

	if ok {
		h.logger.Info("session unregistered",
			zap.String("principal", conn.principalID),
			zap.String("conn_id", conn.ID),
		)
	}
}

// EmitToAll 无条件广播给所有在线连接
func (h *Hub) EmitToAll(event string, payload any) {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.send(event, payload); err != nil {
			// 单次尝试，失败吞掉：客户端轮询补偿
			h.logger.Debug("broadcast send failed",
				zap.String("principal", c.principalID),
				zap.String("event", event),
				zap.Error(err),
			)
		}
	}
}

// EmitToUser 定向推送；无在线连接时 no-op（持久化已独立完成）
func (h *Hub) EmitToUser(principalID string, event string, payload any) {
	h.mu.RLock()
	c, ok := h.conns[principalID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	if err := c.send(event, payload); err != nil {
		h.logger.Debug("targeted send failed",
			zap.String("principal", principalID),
			zap.String("event", event),
			zap.Error(err),
		)
	}
}

// ForceLogout 外部凭证/角色变更：通知客户端立即失效会话并断开
func (h *Hub) ForceLogout(principalID string, reason string) {
	h.mu.Lock()
	c, ok := h.conns[principalID]
	if ok {
		delete(h.conns, principalID)
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	if err := c.send("force_logout", map[string]string{"reason": reason}); err != nil {
		h.logger.Debug("force_logout send failed",
			zap.String("principal", principalID),
			zap.Error(err),
		)
	}
	_ = c.ws.Close()
	h.logger.Info("session force-logged-out",
		zap.String("principal", principalID),
		zap.String("reason", reason),
	)
}

// Online 某 principal 当前是否有绑定连接
func (h *Hub) Online(principalID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.conns[principalID]
	return ok
}

// Close 关闭全部连接（进程退出）
func (h *Hub) Close() {
	h.mu.Lock()
	conns := h.conns
	h.conns = map[string]*Conn{}
	h.mu.Unlock()

	for _, c := range conns {
		_ = c.ws.Close()
	}
}
