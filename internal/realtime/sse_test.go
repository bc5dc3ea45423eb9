package realtime

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("client went away") }

func TestStreamSSEWritesFramesUntilCompletion(t *testing.T) {
	r := newTestRegistry(Options{})
	conn := r.Register("user1", ConnectedEvent())
	require.True(t, r.Send("user1", EventUnreadCount, 2))
	conn.Complete()

	var buf bytes.Buffer
	StreamSSE(conn, bufio.NewWriter(&buf), 0)

	assert.Equal(t,
		"event: connected\ndata: \"ok\"\n\n"+
			"event: unreadCount\ndata: 2\n\n",
		buf.String())
}

func TestStreamSSEWriteFailureRemovesChannel(t *testing.T) {
	r := newTestRegistry(Options{})
	conn := r.Register("user1", ConnectedEvent())

	done := make(chan struct{})
	go func() {
		StreamSSE(conn, bufio.NewWriterSize(failingWriter{}, 16), 0)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream did not stop after a failed flush")
	}

	assert.Equal(t, ReasonError, conn.Reason())
	assert.Equal(t, 0, r.Len())
}

func TestStreamSSEHeartbeatDetectsDeadPeer(t *testing.T) {
	r := newTestRegistry(Options{})
	conn := r.Register("user1")

	done := make(chan struct{})
	go func() {
		StreamSSE(conn, bufio.NewWriterSize(failingWriter{}, 16), 10*time.Millisecond)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("heartbeat never hit the broken writer")
	}
	assert.Equal(t, ReasonError, conn.Reason())
	assert.Equal(t, 0, r.Len())
}

func TestStreamSSEHeartbeatFormat(t *testing.T) {
	r := newTestRegistry(Options{})
	conn := r.Register("user1")

	var buf safeBuffer
	done := make(chan struct{})
	go func() {
		StreamSSE(conn, bufio.NewWriter(&buf), 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return strings.Contains(buf.String(), ": ping\n\n") }, time.Second, 5*time.Millisecond)
	r.Unregister("user1")
	<-done
}

func TestHeartbeatIntervalFallsBackToDefault(t *testing.T) {
	assert.Equal(t, DefaultHeartbeat, heartbeatInterval(0))
	assert.Equal(t, DefaultHeartbeat, heartbeatInterval(-time.Second))
	assert.Equal(t, 3*time.Second, heartbeatInterval(3*time.Second))
}
