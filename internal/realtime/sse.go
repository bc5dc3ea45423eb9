package realtime

import (
	"bufio"
	"time"
)

// DefaultHeartbeat applies to both transports when no positive interval is
// configured; without a heartbeat a silent dead peer stays registered.
const DefaultHeartbeat = 25 * time.Second

func heartbeatInterval(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultHeartbeat
	}
	return d
}

// StreamSSE pumps the connection's events into w as text/event-stream frames
// until the connection ends. A failed write or flush is reported through the
// on-error hook; heartbeats keep proxies from idling the stream out and
// surface dead peers.
func StreamSSE(conn *Connection, w *bufio.Writer, heartbeat time.Duration) {
	ticker := time.NewTicker(heartbeatInterval(heartbeat))
	defer ticker.Stop()

	for {
		select {
		case evt := <-conn.Events():
			if err := writeSSE(w, evt); err != nil {
				conn.Fail(err)
				return
			}
		case <-ticker.C:
			if err := writeHeartbeat(w); err != nil {
				conn.Fail(err)
				return
			}
		case <-conn.Done():
			drainSSE(conn, w)
			return
		}
	}
}

// drainSSE flushes whatever was queued before the connection ended.
func drainSSE(conn *Connection, w *bufio.Writer) {
	for {
		select {
		case evt := <-conn.Events():
			if err := writeSSE(w, evt); err != nil {
				return
			}
		default:
			return
		}
	}
}

func writeSSE(w *bufio.Writer, evt Event) error {
	if _, err := w.WriteString("event: " + evt.Name + "\n"); err != nil {
		return err
	}
	// json.Marshal never emits raw newlines, so one data line is enough.
	if _, err := w.WriteString("data: "); err != nil {
		return err
	}
	if _, err := w.Write(evt.Data); err != nil {
		return err
	}
	if _, err := w.WriteString("\n\n"); err != nil {
		return err
	}
	return w.Flush()
}

func writeHeartbeat(w *bufio.Writer) error {
	if _, err := w.WriteString(": ping\n\n"); err != nil {
		return err
	}
	return w.Flush()
}
