package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"wisefido-callcenter/internal/domain"
	"wisefido-callcenter/internal/store"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// TokenVerifier 外部认证子系统接口
// token 非法/过期时返回 ErrUnauthenticated
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Actor, error)
}

// verifyRequest 认证子系统 verify 请求
type verifyRequest struct {
	Token string `json:"token"`
}

// verifyResponse 认证子系统 verify 响应
type verifyResponse struct {
	Valid       bool   `json:"valid"`
	PrincipalID string `json:"principal_id"`
	Username    string `json:"username"`
	Role        string `json:"role"`
}

// AuthClient 外部认证子系统客户端
// 校验结果短 TTL 缓存在 Redis（按 token 哈希做键，不落原始 token）
type AuthClient struct {
	httpClient *resty.Client
	cache      store.KV
	cacheTTL   time.Duration
	logger     *zap.Logger
}

// NewAuthClient 创建认证客户端
// cache 可为 nil（禁用缓存，每次请求都打认证服务）
func NewAuthClient(baseURL string, timeout time.Duration, cache store.KV, cacheTTL time.Duration, logger *zap.Logger) *AuthClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &AuthClient{
		httpClient: client,
		cache:      cache,
		cacheTTL:   cacheTTL,
		logger:     logger,
	}
}

// 确保实现了接口
var _ TokenVerifier = (*AuthClient)(nil)

// Verify 校验 token，返回操作者身份
func (c *AuthClient) Verify(ctx context.Context, token string) (*Actor, error) {
	if token == "" {
		return nil, fmt.Errorf("empty token: %w", ErrUnauthenticated)
	}

	cacheKey := "authtoken:" + hashToken(token)
	if c.cache != nil {
		if cached, err := c.cache.Get(ctx, cacheKey); err == nil {
			var actor Actor
			if err := json.Unmarshal([]byte(cached), &actor); err == nil {
				return &actor, nil
			}
		}
	}

	var resp verifyResponse
	httpResp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(verifyRequest{Token: token}).
		SetResult(&resp).
		Post("/auth/api/v1/verify")
	if err != nil {
		return nil, fmt.Errorf("auth service unreachable: %w", err)
	}
	if httpResp.StatusCode() == 401 || !resp.Valid {
		return nil, fmt.Errorf("invalid token: %w", ErrUnauthenticated)
	}
	if httpResp.IsError() {
		return nil, fmt.Errorf("auth service error: status %d", httpResp.StatusCode())
	}

	role, ok := domain.ParseRole(resp.Role)
	if !ok {
		return nil, fmt.Errorf("unknown role %q: %w", resp.Role, ErrUnauthenticated)
	}
	actor := &Actor{
		PrincipalID: resp.PrincipalID,
		Username:    resp.Username,
		Role:        role,
	}

	if c.cache != nil {
		if data, err := json.Marshal(actor); err == nil {
			if err := c.cache.Set(ctx, cacheKey, string(data), c.cacheTTL); err != nil {
				c.logger.Warn("failed to cache token verification", zap.Error(err))
			}
		}
	}
	return actor, nil
}

// InvalidateToken 失效缓存（外部账号变更/删除时由 force-logout 流程调用）
func (c *AuthClient) InvalidateToken(ctx context.Context, token string) {
	if c.cache == nil || token == "" {
		return
	}
	if err := c.cache.Delete(ctx, "authtoken:"+hashToken(token)); err != nil {
		c.logger.Warn("failed to invalidate cached token", zap.Error(err))
	}
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
