package realtime

import (
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"notification-hub-be/internal/pkg/logger"
	"notification-hub-be/pkg/utils"
)

const logModule = "Registry"

type Options struct {
	// Shards splits the map so lookups and sends on different users never
	// contend on the same lock.
	Shards int
	// BufferSize is the per-connection outbound queue length.
	BufferSize int
	// Timeout fires the on-timeout hook this long after registration. Zero
	// disables it.
	Timeout time.Duration
}

type shard struct {
	mu    sync.RWMutex
	conns map[string]*Connection
}

// Registry maps a normalized identity to its single live Connection. A new
// registration for the same identity replaces the old entry; the replaced
// connection is not closed and its later lifecycle signals cannot evict the
// newer one.
type Registry struct {
	shards []*shard
	opts   Options
	logger logger.ILogger
}

func NewRegistry(opts Options, log logger.ILogger) *Registry {
	if opts.Shards < 1 {
		opts.Shards = 32
	}
	if opts.BufferSize < 1 {
		opts.BufferSize = 64
	}

	shards := make([]*shard, opts.Shards)
	for i := range shards {
		shards[i] = &shard{conns: make(map[string]*Connection)}
	}

	return &Registry{shards: shards, opts: opts, logger: log}
}

func (r *Registry) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return r.shards[h.Sum32()%uint32(len(r.shards))]
}

// Register opens a channel for identity. Initial events are queued before the
// connection becomes visible, so nothing can be delivered ahead of them.
func (r *Registry) Register(identity string, initial ...Event) *Connection {
	key := utils.NormalizeUsername(identity)

	conn := newConnection(key, max(r.opts.BufferSize, len(initial)))
	for _, evt := range initial {
		_ = conn.enqueue(evt)
	}

	conn.onComplete = func() { r.release(conn, ReasonCompleted, nil) }
	conn.onTimeout = func() { r.release(conn, ReasonTimeout, nil) }
	conn.onError = func(err error) { r.release(conn, ReasonError, err) }

	s := r.shardFor(key)
	s.mu.Lock()
	prev, replaced := s.conns[key]
	s.conns[key] = conn
	s.mu.Unlock()

	if r.opts.Timeout > 0 {
		conn.armTimeout(r.opts.Timeout)
	}

	details := map[string]interface{}{"username": key, "connection_id": conn.ID.String(), "active": r.Len()}
	if replaced {
		details["replaced_connection_id"] = prev.ID.String()
	}
	r.logger.Info(logModule, "Channel registered", details)

	return conn
}

// Unregister drops whatever channel identity holds and ends it. Absent
// identities are a no-op.
func (r *Registry) Unregister(identity string) {
	key := utils.NormalizeUsername(identity)

	s := r.shardFor(key)
	s.mu.Lock()
	conn, ok := s.conns[key]
	if ok {
		delete(s.conns, key)
	}
	s.mu.Unlock()

	if !ok {
		return
	}

	conn.close(ReasonUnregistered, nil)
	r.logger.Info(logModule, "Channel unregistered", map[string]interface{}{"username": key, "connection_id": conn.ID.String(), "active": r.Len()})
}

// release is the single removal path behind all three lifecycle hooks.
func (r *Registry) release(conn *Connection, reason CloseReason, cause error) {
	removed := r.removeIfCurrent(conn)

	details := map[string]interface{}{
		"username":      conn.Username,
		"connection_id": conn.ID.String(),
		"reason":        string(reason),
		"removed":       removed,
		"active":        r.Len(),
	}
	if cause != nil {
		details["error"] = cause.Error()
	}
	r.logger.Info(logModule, "Channel closed", details)
}

// removeIfCurrent deletes the entry only while it still points at conn.
func (r *Registry) removeIfCurrent(conn *Connection) bool {
	s := r.shardFor(conn.Username)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns[conn.Username] != conn {
		return false
	}
	delete(s.conns, conn.Username)
	return true
}

func (r *Registry) lookup(key string) *Connection {
	s := r.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conns[key]
}

// Send pushes one event to identity. False means nobody is connected or the
// write failed; a failed channel is removed before returning.
func (r *Registry) Send(identity, eventName string, payload interface{}) bool {
	key := utils.NormalizeUsername(identity)

	conn := r.lookup(key)
	if conn == nil {
		r.logger.Debug(logModule, "Send skipped, no channel", map[string]interface{}{"username": key, "event": eventName})
		return false
	}

	evt, err := NewEvent(eventName, payload)
	if err != nil {
		r.logger.Error(logModule, "Event encoding failed", map[string]interface{}{"event": eventName, "error": err})
		return false
	}

	return r.deliver(conn, evt)
}

// Broadcast pushes one event to every live channel. Channels that fail are
// removed along the way.
func (r *Registry) Broadcast(eventName string, payload interface{}) {
	evt, err := NewEvent(eventName, payload)
	if err != nil {
		r.logger.Error(logModule, "Event encoding failed", map[string]interface{}{"event": eventName, "error": err})
		return
	}

	delivered := 0
	conns := r.snapshot()
	for _, conn := range conns {
		if r.deliver(conn, evt) {
			delivered++
		}
	}

	r.logger.Debug(logModule, "Broadcast pushed", map[string]interface{}{"event": eventName, "delivered": delivered, "attempted": len(conns)})
}

func (r *Registry) deliver(conn *Connection, evt Event) bool {
	if err := conn.enqueue(evt); err != nil {
		// Fail runs the on-error hook; if the connection was already closed
		// the hook has run once and the entry may still need clearing.
		if !conn.Fail(err) {
			r.removeIfCurrent(conn)
		}
		r.logger.Warn(logModule, "Send failed", map[string]interface{}{"username": conn.Username, "event": evt.Name, "error": err.Error()})
		return false
	}
	return true
}

func (r *Registry) snapshot() []*Connection {
	var conns []*Connection
	for _, s := range r.shards {
		s.mu.RLock()
		for _, conn := range s.conns {
			conns = append(conns, conn)
		}
		s.mu.RUnlock()
	}
	return conns
}

// ActiveIdentities returns the currently registered identities, sorted.
func (r *Registry) ActiveIdentities() []string {
	var keys []string
	for _, s := range r.shards {
		s.mu.RLock()
		for key := range s.conns {
			keys = append(keys, key)
		}
		s.mu.RUnlock()
	}
	sort.Strings(keys)
	return keys
}

// Len counts registered channels.
func (r *Registry) Len() int {
	n := 0
	for _, s := range r.shards {
		s.mu.RLock()
		n += len(s.conns)
		s.mu.RUnlock()
	}
	return n
}

// Shutdown completes every channel, letting transports finish their streams.
func (r *Registry) Shutdown() {
	for _, conn := range r.snapshot() {
		conn.Complete()
	}
}
