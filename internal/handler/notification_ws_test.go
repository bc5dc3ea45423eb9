package handler

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"notification-hub-be/internal/realtime"

	fastws "github.com/fasthttp/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// listen serves the test app on a real socket; WebSocket upgrades cannot go
// through app.Test.
func (e *testEnv) listen(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = e.app.Listener(ln) }()
	t.Cleanup(func() { _ = e.app.Shutdown() })
	return ln.Addr().String()
}

func dialWs(t *testing.T, addr, bearer string) *fastws.Conn {
	t.Helper()
	ws, _, err := fastws.DefaultDialer.Dial("ws://"+addr+"/api/ws?token="+bearer, nil)
	require.NoError(t, err)
	return ws
}

func readFrame(t *testing.T, ws *fastws.Conn) wsFrame {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame wsFrame
	require.NoError(t, ws.ReadJSON(&frame))
	return frame
}

func TestWebSocketDeliversAndCleansUp(t *testing.T) {
	env := newTestEnv(t)
	addr := env.listen(t)

	ws := dialWs(t, addr, token(t, "User1", "user"))
	assert.Equal(t, realtime.EventConnected, readFrame(t, ws).Event)

	result, err := env.svc.SendToUser(context.Background(), "admin", "user1", "T", "B")
	require.NoError(t, err)
	assert.True(t, result.Delivered)
	assert.Equal(t, realtime.EventNotification, readFrame(t, ws).Event)

	unread := readFrame(t, ws)
	assert.Equal(t, realtime.EventUnreadCount, unread.Event)
	assert.JSONEq(t, "1", string(unread.Data))

	require.NoError(t, ws.WriteMessage(fastws.CloseMessage, fastws.FormatCloseMessage(fastws.CloseNormalClosure, "")))
	_ = ws.Close()

	assert.Eventually(t, func() bool { return env.registry.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestWebSocketRepeatedReconnects(t *testing.T) {
	env := newTestEnv(t)
	addr := env.listen(t)
	bearer := token(t, "user1", "user")

	for i := 0; i < 25; i++ {
		ws := dialWs(t, addr, bearer)
		assert.Equal(t, realtime.EventConnected, readFrame(t, ws).Event)
		_ = ws.WriteMessage(fastws.CloseMessage, fastws.FormatCloseMessage(fastws.CloseNormalClosure, ""))
		_ = ws.Close()
		require.Eventually(t, func() bool { return env.registry.Len() == 0 }, 2*time.Second, 5*time.Millisecond, "iteration %d", i)
	}
}

func TestWebSocketServerSideEndClosesSocket(t *testing.T) {
	env := newTestEnv(t)
	addr := env.listen(t)

	ws := dialWs(t, addr, token(t, "user1", "user"))
	defer ws.Close()
	assert.Equal(t, realtime.EventConnected, readFrame(t, ws).Event)

	env.registry.Unregister("user1")

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := ws.ReadMessage()
	require.Error(t, err)
	assert.True(t, fastws.IsCloseError(err, fastws.CloseNoStatusReceived, fastws.CloseNormalClosure, fastws.CloseAbnormalClosure), err.Error())
}
