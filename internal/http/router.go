package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

// HandleHandler 支持 http.Handler 接口（websocket 升级等）
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterCallRoutes 注册工单路由
func (r *Router) RegisterCallRoutes(h *CallHandler) {
	r.HandleHandler("/callcenter/api/v1/calls", h)
	r.HandleHandler("/callcenter/api/v1/calls/", h)
}

// RegisterNotificationRoutes 注册通知路由
func (r *Router) RegisterNotificationRoutes(h *NotificationHandler) {
	r.HandleHandler("/callcenter/api/v1/notifications", h)
	r.HandleHandler("/callcenter/api/v1/notifications/", h)
}

// RegisterInternalRoutes 注册内部入口（外部用户管理工作流调用）
func (r *Router) RegisterInternalRoutes(h *InternalHandler) {
	r.HandleHandler("/internal/api/v1/unassign-all", h)
	r.HandleHandler("/internal/api/v1/force-logout", h)
}

// RegisterWSRoute 注册 websocket 升级入口
func (r *Router) RegisterWSRoute(h http.Handler) {
	r.HandleHandler("/callcenter/ws", h)
}
