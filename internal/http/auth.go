package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"wisefido-callcenter/internal/service"
)

// bearerToken 提取 Authorization: Bearer <token>
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	return strings.TrimPrefix(auth, "Bearer ")
}

// actorFromReq 必须有有效身份；缺失/非法 token 归为 ErrUnauthenticated
func actorFromReq(r *http.Request, verifier service.TokenVerifier) (*service.Actor, error) {
	token := bearerToken(r)
	if token == "" {
		return nil, fmt.Errorf("missing bearer token: %w", service.ErrUnauthenticated)
	}
	return verifier.Verify(r.Context(), token)
}

// optionalActorFromReq 匿名路径（工单创建）：无 token 或校验失败都按匿名处理
func optionalActorFromReq(r *http.Request, verifier service.TokenVerifier) *service.Actor {
	token := bearerToken(r)
	if token == "" {
		return nil
	}
	actor, err := verifier.Verify(r.Context(), token)
	if err != nil {
		return nil
	}
	return actor
}
