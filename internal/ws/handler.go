package ws

import (
	"net/http"
	"strings"

	"wisefido-callcenter/internal/service"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler websocket 升级入口：token 校验通过后把连接注册进会话目录
type Handler struct {
	hub      *Hub
	verifier service.TokenVerifier
	logger   *zap.Logger
}

// NewHandler 创建 websocket Handler
func NewHandler(hub *Hub, verifier service.TokenVerifier, logger *zap.Logger) *Handler {
	return &Handler{hub: hub, verifier: verifier, logger: logger}
}

// ServeHTTP 实现 http.Handler 接口
// token 取自 query（浏览器 WebSocket API 不能带自定义 header）或
// Authorization: Bearer
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}

	actor, err := h.verifier.Verify(r.Context(), token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	wsc, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := h.hub.Register(actor.Username, wsc)
	defer func() {
		h.hub.Unregister(conn)
		_ = wsc.Close()
	}()

	// 读循环只用于探活：客户端消息被忽略，连接错误即断开
	for {
		if _, _, err := wsc.ReadMessage(); err != nil {
			return
		}
	}
}
