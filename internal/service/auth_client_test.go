package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"wisefido-callcenter/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAuthTestServer(t *testing.T, calls *int64, valid map[string]verifyResponse) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(calls, 1)
		require.Equal(t, "/auth/api/v1/verify", r.URL.Path)

		var req verifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		w.Header().Set("Content-Type", "application/json")
		resp, ok := valid[req.Token]
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(verifyResponse{Valid: false})
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestKV(t *testing.T) store.KV {
	t.Helper()

	mr := miniredis.RunT(t)
	return store.NewRedisKV(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
}

func TestAuthClientVerify(t *testing.T) {
	var calls int64
	srv := newAuthTestServer(t, &calls, map[string]verifyResponse{
		"good-token": {Valid: true, PrincipalID: "p1", Username: "alice", Role: "ADMIN"},
	})

	client := NewAuthClient(srv.URL, time.Second, nil, time.Minute, zap.NewNop())

	actor, err := client.Verify(context.Background(), "good-token")
	require.NoError(t, err)
	assert.Equal(t, "alice", actor.Username)
	assert.True(t, actor.Role.IsManager())
}

func TestAuthClientVerifyInvalidToken(t *testing.T) {
	var calls int64
	srv := newAuthTestServer(t, &calls, nil)

	client := NewAuthClient(srv.URL, time.Second, nil, time.Minute, zap.NewNop())

	_, err := client.Verify(context.Background(), "bad-token")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestAuthClientVerifyEmptyToken(t *testing.T) {
	client := NewAuthClient("http://unused", time.Second, nil, time.Minute, zap.NewNop())

	_, err := client.Verify(context.Background(), "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestAuthClientVerifyUnknownRole(t *testing.T) {
	var calls int64
	srv := newAuthTestServer(t, &calls, map[string]verifyResponse{
		"odd-token": {Valid: true, PrincipalID: "p1", Username: "alice", Role: "SUPERUSER"},
	})

	client := NewAuthClient(srv.URL, time.Second, nil, time.Minute, zap.NewNop())

	_, err := client.Verify(context.Background(), "odd-token")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestAuthClientCachesVerification(t *testing.T) {
	var calls int64
	srv := newAuthTestServer(t, &calls, map[string]verifyResponse{
		"good-token": {Valid: true, PrincipalID: "p1", Username: "alice", Role: "ENGINEER"},
	})

	client := NewAuthClient(srv.URL, time.Second, newTestKV(t), time.Minute, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		actor, err := client.Verify(ctx, "good-token")
		require.NoError(t, err)
		assert.Equal(t, "alice", actor.Username)
	}
	// 后两次命中缓存，认证服务只被调用一次
	assert.EqualValues(t, 1, atomic.LoadInt64(&calls))
}

func TestAuthClientInvalidateToken(t *testing.T) {
	var calls int64
	srv := newAuthTestServer(t, &calls, map[string]verifyResponse{
		"good-token": {Valid: true, PrincipalID: "p1", Username: "alice", Role: "ENGINEER"},
	})

	client := NewAuthClient(srv.URL, time.Second, newTestKV(t), time.Minute, zap.NewNop())
	ctx := context.Background()

	_, err := client.Verify(ctx, "good-token")
	require.NoError(t, err)

	client.InvalidateToken(ctx, "good-token")

	_, err = client.Verify(ctx, "good-token")
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt64(&calls))
}
