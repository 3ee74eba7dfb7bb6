package httpapi

import (
	"net/http"
	"strings"

	"wisefido-callcenter/internal/service"

	"go.uber.org/zap"
)

const callsBasePath = "/callcenter/api/v1/calls"

// CallHandler 工单 Handler
type CallHandler struct {
	callService service.CallService
	verifier    service.TokenVerifier
	logger      *zap.Logger
}

// NewCallHandler 创建工单 Handler
func NewCallHandler(callService service.CallService, verifier service.TokenVerifier, logger *zap.Logger) *CallHandler {
	return &CallHandler{
		callService: callService,
		verifier:    verifier,
		logger:      logger,
	}
}

// ServeHTTP 实现 http.Handler 接口
func (h *CallHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// 路由分发
	path := r.URL.Path
	switch {
	case path == callsBasePath && r.Method == http.MethodPost:
		h.CreateCall(w, r)
	case path == callsBasePath && r.Method == http.MethodGet:
		h.ListCalls(w, r)
	case path == callsBasePath+"/check-duplicate" && r.Method == http.MethodGet:
		h.CheckDuplicate(w, r)

	case strings.HasSuffix(path, "/assign") && r.Method == http.MethodPost:
		h.withCallID(w, r, strings.TrimSuffix(path, "/assign"), h.AssignCall)
	case strings.HasSuffix(path, "/complete") && r.Method == http.MethodPost:
		h.withCallID(w, r, strings.TrimSuffix(path, "/complete"), h.CompleteCall)
	case strings.HasSuffix(path, "/increment") && r.Method == http.MethodPost:
		h.withCallID(w, r, strings.TrimSuffix(path, "/increment"), h.IncrementCall)

	case r.Method == http.MethodGet:
		h.withCallID(w, r, path, h.GetCall)
	case r.Method == http.MethodPut:
		h.withCallID(w, r, path, h.EditCall)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// withCallID 提取路径末段的工单 ID
func (h *CallHandler) withCallID(w http.ResponseWriter, r *http.Request, prefix string, fn func(http.ResponseWriter, *http.Request, string)) {
	id := strings.TrimPrefix(prefix, callsBasePath+"/")
	if id == "" || strings.Contains(id, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	fn(w, r, id)
}

// createCallBody 创建工单请求体
type createCallBody struct {
	CustomerName   string `json:"customer_name"`
	Phone          string `json:"phone"`
	Problem        string `json:"problem"`
	Category       string `json:"category"`
	Email          string `json:"email"`
	Address        string `json:"address"`
	AssignedTo     string `json:"assigned_to"`
	EngineerRemark string `json:"engineer_remark"`
}

// CreateCall 创建工单（允许匿名：无/非法 token 记为 "system"）
func (h *CallHandler) CreateCall(w http.ResponseWriter, r *http.Request) {
	var body createCallBody
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid JSON body"))
		return
	}

	actor := optionalActorFromReq(r, h.verifier)
	dto, err := h.callService.CreateCall(r.Context(), service.CreateCallRequest{
		Actor:          actor,
		CustomerName:   body.CustomerName,
		Phone:          body.Phone,
		Problem:        body.Problem,
		Category:       body.Category,
		Email:          body.Email,
		Address:        body.Address,
		AssignedTo:     body.AssignedTo,
		EngineerRemark: body.EngineerRemark,
	})
	if err != nil {
		failWithErr(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(dto))
}

// ListCalls 工单列表
func (h *CallHandler) ListCalls(w http.ResponseWriter, r *http.Request) {
	if _, err := actorFromReq(r, h.verifier); err != nil {
		failWithErr(w, h.logger, err)
		return
	}

	q := r.URL.Query()
	resp, err := h.callService.ListCalls(r.Context(), service.ListCallsRequest{
		Status:     strings.TrimSpace(q.Get("status")),
		AssignedTo: strings.TrimSpace(q.Get("assigned_to")),
		CreatedBy:  strings.TrimSpace(q.Get("created_by")),
		Category:   strings.TrimSpace(q.Get("category")),
		Search:     strings.TrimSpace(q.Get("search")),
		Page:       parseInt(q.Get("page"), 1),
		Size:       parseInt(q.Get("size"), 20),
	})
	if err != nil {
		failWithErr(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

// CheckDuplicate 查重：result 为 null 表示无未了结的重复来电
func (h *CallHandler) CheckDuplicate(w http.ResponseWriter, r *http.Request) {
	if _, err := actorFromReq(r, h.verifier); err != nil {
		failWithErr(w, h.logger, err)
		return
	}

	dto, err := h.callService.CheckDuplicate(r.Context(), service.CheckDuplicateRequest{
		Phone:    strings.TrimSpace(r.URL.Query().Get("phone")),
		Category: strings.TrimSpace(r.URL.Query().Get("category")),
	})
	if err != nil {
		failWithErr(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(dto))
}

// GetCall 工单详情
func (h *CallHandler) GetCall(w http.ResponseWriter, r *http.Request, callID string) {
	if _, err := actorFromReq(r, h.verifier); err != nil {
		failWithErr(w, h.logger, err)
		return
	}

	dto, err := h.callService.GetCall(r.Context(), callID)
	if err != nil {
		failWithErr(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(dto))
}

// assignCallBody 分配请求体
type assignCallBody struct {
	Assignee string  `json:"assignee"`
	Remark   *string `json:"remark"`
}

// AssignCall 分配/重新分配
func (h *CallHandler) AssignCall(w http.ResponseWriter, r *http.Request, callID string) {
	actor, err := actorFromReq(r, h.verifier)
	if err != nil {
		failWithErr(w, h.logger, err)
		return
	}

	var body assignCallBody
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid JSON body"))
		return
	}

	dto, err := h.callService.AssignCall(r.Context(), service.AssignCallRequest{
		Actor:    actor,
		CallID:   callID,
		Assignee: body.Assignee,
		Remark:   body.Remark,
	})
	if err != nil {
		failWithErr(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(dto))
}

// completeCallBody 完成请求体
type completeCallBody struct {
	Remark *string `json:"remark"`
}

// CompleteCall 完成工单
func (h *CallHandler) CompleteCall(w http.ResponseWriter, r *http.Request, callID string) {
	actor, err := actorFromReq(r, h.verifier)
	if err != nil {
		failWithErr(w, h.logger, err)
		return
	}

	var body completeCallBody
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid JSON body"))
		return
	}

	dto, err := h.callService.CompleteCall(r.Context(), service.CompleteCallRequest{
		Actor:  actor,
		CallID: callID,
		Remark: body.Remark,
	})
	if err != nil {
		failWithErr(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(dto))
}

// editCallBody 编辑请求体（nil 表示不更新；assigned_to 空串显式清空）
type editCallBody struct {
	CustomerName   *string `json:"customer_name"`
	Phone          *string `json:"phone"`
	Problem        *string `json:"problem"`
	Category       *string `json:"category"`
	EngineerRemark *string `json:"engineer_remark"`
	AssignedTo     *string `json:"assigned_to"`
}

// EditCall 编辑工单字段
func (h *CallHandler) EditCall(w http.ResponseWriter, r *http.Request, callID string) {
	actor, err := actorFromReq(r, h.verifier)
	if err != nil {
		failWithErr(w, h.logger, err)
		return
	}

	var body editCallBody
	if err := readBodyJSON(r, 1<<20, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid JSON body"))
		return
	}

	dto, err := h.callService.EditCall(r.Context(), service.EditCallRequest{
		Actor:          actor,
		CallID:         callID,
		CustomerName:   body.CustomerName,
		Phone:          body.Phone,
		Problem:        body.Problem,
		Category:       body.Category,
		EngineerRemark: body.EngineerRemark,
		AssignedTo:     body.AssignedTo,
	})
	if err != nil {
		failWithErr(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(dto))
}

// IncrementCall 重复来电计数
func (h *CallHandler) IncrementCall(w http.ResponseWriter, r *http.Request, callID string) {
	actor, err := actorFromReq(r, h.verifier)
	if err != nil {
		failWithErr(w, h.logger, err)
		return
	}

	dto, err := h.callService.IncrementCallCount(r.Context(), service.IncrementCallRequest{
		Actor:  actor,
		CallID: callID,
	})
	if err != nil {
		failWithErr(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(dto))
}
