package realtime

import (
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 512
)

type wsFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ServeWebSocket runs the write pump in its own goroutine and the read pump in
// the caller's. It returns only after both pumps have stopped: the handler's
// return hands ws back to the upgrader's pool.
func ServeWebSocket(conn *Connection, ws *websocket.Conn, heartbeat time.Duration) {
	heartbeat = heartbeatInterval(heartbeat)
	// The peer must answer a ping within one period plus slack.
	pongWait := heartbeat * 10 / 9

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		writePump(conn, ws, heartbeat)
	}()
	readPump(conn, ws, pongWait)
	<-pumpDone
}

// readPump only exists to notice pongs and the peer closing; clients have
// nothing to say on this channel. Every exit ends conn, which stops the
// write pump.
func readPump(conn *Connection, ws *websocket.Conn, pongWait time.Duration) {
	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				conn.Fail(err)
			} else {
				conn.Complete()
			}
			return
		}
	}
}

// writePump owns every write and the single Close, which also unblocks a
// read pump still waiting on the peer.
func writePump(conn *Connection, ws *websocket.Conn, pingPeriod time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = ws.Close()
	}()

	for {
		select {
		case evt := <-conn.Events():
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteJSON(wsFrame{Event: evt.Name, Data: evt.Data}); err != nil {
				conn.Fail(err)
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Fail(err)
				return
			}
		case <-conn.Done():
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = ws.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
