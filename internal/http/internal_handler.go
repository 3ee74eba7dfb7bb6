package httpapi

import (
	"net/http"

	"wisefido-callcenter/internal/service"
	"wisefido-callcenter/internal/ws"

	"go.uber.org/zap"
)

// InternalHandler 内部入口：由账号管理工作流调用（用户移除/降级）。
// 部署时只应暴露在内网，不做 token 校验。
type InternalHandler struct {
	callService service.CallService
	hub         *ws.Hub
	logger      *zap.Logger
}

// NewInternalHandler 创建内部入口 Handler
func NewInternalHandler(callService service.CallService, hub *ws.Hub, logger *zap.Logger) *InternalHandler {
	return &InternalHandler{
		callService: callService,
		hub:         hub,
		logger:      logger,
	}
}

// ServeHTTP 实现 http.Handler 接口
func (h *InternalHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	switch r.URL.Path {
	case "/internal/api/v1/unassign-all":
		h.UnassignAll(w, r)
	case "/internal/api/v1/force-logout":
		h.ForceLogout(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// unassignAllBody 移除分配请求体
type unassignAllBody struct {
	Username string `json:"username"`
	// Logout 为 true 时同时断开该用户的实时会话
	Logout bool   `json:"logout"`
	Reason string `json:"reason"`
}

// UnassignAll 清空某用户的全部未了结分配（工单回 PENDING），可选强制下线
func (h *InternalHandler) UnassignAll(w http.ResponseWriter, r *http.Request) {
	var body unassignAllBody
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid JSON body"))
		return
	}
	if body.Username == "" {
		writeJSON(w, http.StatusBadRequest, Fail("username is required"))
		return
	}

	n, err := h.callService.UnassignAll(r.Context(), body.Username)
	if err != nil {
		failWithErr(w, h.logger, err)
		return
	}

	if body.Logout {
		reason := body.Reason
		if reason == "" {
			reason = "account updated"
		}
		h.hub.ForceLogout(body.Username, reason)
	}

	h.logger.Info("unassigned all calls",
		zap.String("username", body.Username),
		zap.Int("count", n),
		zap.Bool("logout", body.Logout))
	writeJSON(w, http.StatusOK, Ok(map[string]int{"unassigned": n}))
}

// forceLogoutBody 强制下线请求体
type forceLogoutBody struct {
	Username string `json:"username"`
	Reason   string `json:"reason"`
}

// ForceLogout 断开某用户的实时会话（不在线则为 no-op）
func (h *InternalHandler) ForceLogout(w http.ResponseWriter, r *http.Request) {
	var body forceLogoutBody
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid JSON body"))
		return
	}
	if body.Username == "" {
		writeJSON(w, http.StatusBadRequest, Fail("username is required"))
		return
	}

	reason := body.Reason
	if reason == "" {
		reason = "session terminated"
	}
	h.hub.ForceLogout(body.Username, reason)
	writeJSON(w, http.StatusOK, Ok[any](nil))
}
