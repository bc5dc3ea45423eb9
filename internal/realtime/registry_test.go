package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"notification-hub-be/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(opts Options) *Registry {
	return NewRegistry(opts, logger.NewNopLogger())
}

func nextEvent(t *testing.T, conn *Connection) Event {
	t.Helper()
	select {
	case evt := <-conn.Events():
		return evt
	case <-time.After(time.Second):
		t.Fatal("expected an event")
		return Event{}
	}
}

func TestRegisterNormalizesIdentity(t *testing.T) {
	r := newTestRegistry(Options{})

	r.Register("Admin ")
	r.Register("admin")
	last := r.Register(" ADMIN")

	assert.Equal(t, []string{"admin"}, r.ActiveIdentities())
	assert.Equal(t, 1, r.Len())
	assert.True(t, r.Send("aDmIn", EventUnreadCount, 1))
	assert.Equal(t, EventUnreadCount, nextEvent(t, last).Name)
}

func TestRegisterReplacesWithoutClosingPrevious(t *testing.T) {
	r := newTestRegistry(Options{})

	first := r.Register("user1")
	second := r.Register("user1")

	assert.Equal(t, 1, r.Len())
	select {
	case <-first.Done():
		t.Fatal("replaced connection must not be closed by the registry")
	default:
	}

	require.True(t, r.Send("user1", EventNotification, "x"))
	assert.Equal(t, EventNotification, nextEvent(t, second).Name)
	assert.Len(t, first.Events(), 0)
}

func TestStaleLifecycleDoesNotEvictNewerChannel(t *testing.T) {
	tests := []struct {
		name  string
		close func(c *Connection)
	}{
		{name: "completion", close: func(c *Connection) { c.Complete() }},
		{name: "error", close: func(c *Connection) { c.Fail(errors.New("broken pipe")) }},
		{name: "timeout", close: func(c *Connection) { c.expire() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRegistry(Options{})
			stale := r.Register("user1")
			fresh := r.Register("user1")

			tt.close(stale)

			assert.Equal(t, []string{"user1"}, r.ActiveIdentities())
			assert.True(t, r.Send("user1", EventUnreadCount, 0))
			assert.Equal(t, EventUnreadCount, nextEvent(t, fresh).Name)
		})
	}
}

func TestLifecycleSignalsRemoveEntry(t *testing.T) {
	tests := []struct {
		name   string
		close  func(c *Connection)
		reason CloseReason
	}{
		{name: "completion", close: func(c *Connection) { c.Complete() }, reason: ReasonCompleted},
		{name: "error", close: func(c *Connection) { c.Fail(errors.New("reset by peer")) }, reason: ReasonError},
		{name: "timeout", close: func(c *Connection) { c.expire() }, reason: ReasonTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRegistry(Options{})
			conn := r.Register("user1")

			tt.close(conn)

			assert.Equal(t, 0, r.Len())
			assert.False(t, r.Send("user1", EventUnreadCount, 1))
			assert.Equal(t, tt.reason, conn.Reason())
		})
	}
}

func TestOnlyFirstLifecycleSignalCounts(t *testing.T) {
	r := newTestRegistry(Options{})
	conn := r.Register("user1")

	assert.True(t, conn.Complete())
	assert.False(t, conn.Fail(errors.New("late")))
	assert.Equal(t, ReasonCompleted, conn.Reason())
	assert.NoError(t, conn.Err())
}

func TestTimeoutRemovesChannel(t *testing.T) {
	r := newTestRegistry(Options{Timeout: 20 * time.Millisecond})
	conn := r.Register("user1")

	select {
	case <-conn.Done():
	case <-time.After(time.Second):
		t.Fatal("timeout hook did not fire")
	}

	assert.Equal(t, ReasonTimeout, conn.Reason())
	assert.Eventually(t, func() bool { return r.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestUnregisterIsIdempotent(t *testing.T) {
	r := newTestRegistry(Options{})
	conn := r.Register("User1")

	r.Unregister(" user1 ")
	r.Unregister("user1")
	r.Unregister("nobody")

	assert.Equal(t, 0, r.Len())
	assert.Equal(t, ReasonUnregistered, conn.Reason())
	assert.False(t, r.Send("user1", EventUnreadCount, 1))
}

func TestSendToAbsentIdentity(t *testing.T) {
	r := newTestRegistry(Options{})
	assert.False(t, r.Send("ghost", EventNotification, map[string]string{"title": "hi"}))
}

func TestSendFailureRemovesChannel(t *testing.T) {
	r := newTestRegistry(Options{BufferSize: 1})
	conn := r.Register("user1")

	assert.True(t, r.Send("user1", EventUnreadCount, 1))
	// Nobody drains the queue: the next write overflows.
	assert.False(t, r.Send("user1", EventUnreadCount, 2))

	assert.Equal(t, 0, r.Len())
	assert.Equal(t, ReasonError, conn.Reason())
	assert.ErrorIs(t, conn.Err(), ErrSlowConsumer)
}

func TestUnencodablePayloadIsNotDelivered(t *testing.T) {
	r := newTestRegistry(Options{})
	r.Register("user1")

	assert.False(t, r.Send("user1", EventNotification, make(chan int)))
	assert.Equal(t, 1, r.Len(), "encoding errors are not transport failures")
}

func TestInitialEventsComeFirst(t *testing.T) {
	r := newTestRegistry(Options{BufferSize: 4})
	conn := r.Register("user1", ConnectedEvent())
	require.True(t, r.Send("user1", EventUnreadCount, 3))

	first := nextEvent(t, conn)
	assert.Equal(t, EventConnected, first.Name)
	assert.JSONEq(t, `"ok"`, string(first.Data))

	second := nextEvent(t, conn)
	assert.Equal(t, EventUnreadCount, second.Name)
	assert.JSONEq(t, `3`, string(second.Data))
}

func TestBroadcastRemovesFailedChannels(t *testing.T) {
	r := newTestRegistry(Options{BufferSize: 1})
	healthy := r.Register("user1")
	stuck := r.Register("user2")
	require.True(t, r.Send("user2", EventUnreadCount, 0)) // fills user2's queue

	r.Broadcast(EventNotification, map[string]string{"title": "Hi"})

	assert.Equal(t, []string{"user1"}, r.ActiveIdentities())
	assert.Equal(t, ReasonError, stuck.Reason())

	evt := nextEvent(t, healthy)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(evt.Data, &payload))
	assert.Equal(t, "Hi", payload["title"])
}

func TestShutdownCompletesEverything(t *testing.T) {
	r := newTestRegistry(Options{})
	a := r.Register("a")
	b := r.Register("b")

	r.Shutdown()

	assert.Equal(t, 0, r.Len())
	assert.Equal(t, ReasonCompleted, a.Reason())
	assert.Equal(t, ReasonCompleted, b.Reason())
}

func TestConcurrentRegisterSendRemove(t *testing.T) {
	r := newTestRegistry(Options{Shards: 4, BufferSize: 8})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("user%d", i%10)
			conn := r.Register(name)
			r.Send(name, EventUnreadCount, i)
			r.Broadcast(EventNotification, i)
			_ = r.ActiveIdentities()
			if i%3 == 0 {
				conn.Complete()
			}
			if i%5 == 0 {
				r.Unregister(name)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, r.Len(), 10)
	for _, id := range r.ActiveIdentities() {
		assert.Regexp(t, `^user\d$`, id)
	}
}
