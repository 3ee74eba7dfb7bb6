package ws

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeConn 仅用于单元测试（记录发送的事件）
type fakeConn struct {
	mu     sync.Mutex
	sent   []Envelope
	closed bool
}

func (f *fakeConn) WriteJSON(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, v.(Envelope))
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) events() []Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Envelope(nil), f.sent...)
}

func TestRegister_LastWriteWins(t *testing.T) {
	hub := NewHub(zap.NewNop())

	first := &fakeConn{}
	second := &fakeConn{}

	c1 := hub.Register("alice", first)
	c2 := hub.Register("alice", second)

	assert.NotEqual(t, c1.ID, c2.ID)
	assert.True(t, first.closed, "superseded connection should be closed")

	hub.EmitToUser("alice", "ping", nil)
	assert.Empty(t, first.events())
	require.Len(t, second.events(), 1)
	assert.Equal(t, "ping", second.events()[0].Event)
}

func TestUnregister_StaleDisconnectKeepsNewBinding(t *testing.T) {
	hub := NewHub(zap.NewNop())

	first := &fakeConn{}
	second := &fakeConn{}

	c1 := hub.Register("alice", first)
	hub.Register("alice", second)

	// 旧连接的断开事件晚于重连到达：不能驱逐新绑定
	hub.Unregister(c1)

	assert.True(t, hub.Online("alice"))
	hub.EmitToUser("alice", "ping", nil)
	require.Len(t, second.events(), 1)
}

func TestUnregister_CurrentBindingRemoved(t *testing.T) {
	hub := NewHub(zap.NewNop())

	conn := hub.Register("alice", &fakeConn{})
	hub.Unregister(conn)

	assert.False(t, hub.Online("alice"))
}

func TestEmitToAll_Broadcast(t *testing.T) {
	hub := NewHub(zap.NewNop())

	a := &fakeConn{}
	b := &fakeConn{}
	hub.Register("alice", a)
	hub.Register("bob", b)

	hub.EmitToAll("call_updated", map[string]string{"call_id": "c-1"})

	require.Len(t, a.events(), 1)
	require.Len(t, b.events(), 1)
	assert.Equal(t, "call_updated", a.events()[0].Event)
}

func TestEmitToUser_NoBindingIsNoop(t *testing.T) {
	hub := NewHub(zap.NewNop())

	// 无绑定时不 panic、不报错（持久化已独立完成）
	hub.EmitToUser("ghost", "notification_created", nil)
}

func TestForceLogout_SendsReasonAndDisconnects(t *testing.T) {
	hub := NewHub(zap.NewNop())

	conn := &fakeConn{}
	hub.Register("alice", conn)

	hub.ForceLogout("alice", "role changed")

	events := conn.events()
	require.Len(t, events, 1)
	assert.Equal(t, "force_logout", events[0].Event)
	assert.Equal(t, map[string]string{"reason": "role changed"}, events[0].Payload)
	assert.True(t, conn.closed)
	assert.False(t, hub.Online("alice"))
}

func TestClose_DisconnectsAll(t *testing.T) {
	hub := NewHub(zap.NewNop())

	a := &fakeConn{}
	b := &fakeConn{}
	hub.Register("alice", a)
	hub.Register("bob", b)

	hub.Close()

	assert.True(t, a.closed)
	assert.True(t, b.closed)
	assert.False(t, hub.Online("alice"))
	assert.False(t, hub.Online("bob"))
}

func TestRegister_ConcurrentReconnects(t *testing.T) {
	hub := NewHub(zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn := hub.Register("alice", &fakeConn{})
			hub.Unregister(conn)
		}()
	}
	wg.Wait()

	// 并发连接/断开之后不能留下悬挂绑定也不能 panic
	hub.EmitToUser("alice", "ping", nil)
}
