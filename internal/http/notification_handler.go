package httpapi

import (
	"net/http"
	"strings"

	"wisefido-callcenter/internal/service"

	"go.uber.org/zap"
)

const notificationsBasePath = "/callcenter/api/v1/notifications"

// NotificationHandler 通知 Handler（所有操作限定当前用户自己的通知）
type NotificationHandler struct {
	notificationService service.NotificationService
	verifier            service.TokenVerifier
	logger              *zap.Logger
}

// NewNotificationHandler 创建通知 Handler
func NewNotificationHandler(notificationService service.NotificationService, verifier service.TokenVerifier, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
		verifier:            verifier,
		logger:              logger,
	}
}

// ServeHTTP 实现 http.Handler 接口
func (h *NotificationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromReq(r, h.verifier)
	if err != nil {
		failWithErr(w, h.logger, err)
		return
	}

	path := r.URL.Path
	switch {
	case path == notificationsBasePath && r.Method == http.MethodGet:
		h.List(w, r, actor)
	case path == notificationsBasePath && r.Method == http.MethodDelete:
		h.BulkDelete(w, r, actor)
	case path == notificationsBasePath+"/unread-count" && r.Method == http.MethodGet:
		h.UnreadCount(w, r, actor)
	case path == notificationsBasePath+"/read-all" && r.Method == http.MethodPost:
		h.ReadAll(w, r, actor)

	case strings.HasSuffix(path, "/read") && r.Method == http.MethodPost:
		id := strings.TrimPrefix(strings.TrimSuffix(path, "/read"), notificationsBasePath+"/")
		h.MarkRead(w, r, actor, id)
	case r.Method == http.MethodDelete:
		id := strings.TrimPrefix(path, notificationsBasePath+"/")
		h.Delete(w, r, actor, id)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// List 当前用户全部通知（读取前懒清理过期项）
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request, actor *service.Actor) {
	items, err := h.notificationService.GetUserNotifications(r.Context(), actor.Username)
	if err != nil {
		failWithErr(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(items))
}

// UnreadCount 未读数
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request, actor *service.Actor) {
	count, err := h.notificationService.GetUnreadCount(r.Context(), actor.Username)
	if err != nil {
		failWithErr(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]int{"count": count}))
}

// ReadAll 全部标记已读
func (h *NotificationHandler) ReadAll(w http.ResponseWriter, r *http.Request, actor *service.Actor) {
	n, err := h.notificationService.MarkAllAsRead(r.Context(), actor.Username)
	if err != nil {
		failWithErr(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]int{"updated": n}))
}

// MarkRead 单条标记已读（仅限本人通知）
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request, actor *service.Actor, id string) {
	if id == "" || strings.Contains(id, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err := h.notificationService.MarkAsRead(r.Context(), id, actor.Username); err != nil {
		failWithErr(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok[any](nil))
}

// Delete 单条删除（仅限本人通知）
func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request, actor *service.Actor, id string) {
	if id == "" || strings.Contains(id, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err := h.notificationService.DeleteNotification(r.Context(), id, actor.Username); err != nil {
		failWithErr(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok[any](nil))
}

// bulkDeleteBody 批量删除请求体
type bulkDeleteBody struct {
	IDs []string `json:"ids"`
}

// BulkDelete 批量删除（跳过不属于本人的 ID）
func (h *NotificationHandler) BulkDelete(w http.ResponseWriter, r *http.Request, actor *service.Actor) {
	var body bulkDeleteBody
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid JSON body"))
		return
	}
	n, err := h.notificationService.BulkDeleteNotifications(r.Context(), body.IDs, actor.Username)
	if err != nil {
		failWithErr(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]int{"deleted": n}))
}
