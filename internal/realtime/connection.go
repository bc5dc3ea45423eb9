package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CloseReason records which lifecycle signal ended a connection.
type CloseReason string

const (
	ReasonCompleted    CloseReason = "completion"
	ReasonTimeout      CloseReason = "timeout"
	ReasonError        CloseReason = "error"
	ReasonUnregistered CloseReason = "unregister"
)

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSlowConsumer     = errors.New("connection send buffer full")
)

// Connection is one open push channel owned by the Registry. Transports read
// Events until Done closes and report how the peer went away through
// Complete or Fail.
type Connection struct {
	ID       uuid.UUID
	Username string
	OpenedAt time.Time

	send chan Event
	done chan struct{}
	once sync.Once

	mu     sync.Mutex
	reason CloseReason
	err    error
	timer  *time.Timer

	onComplete func()
	onTimeout  func()
	onError    func(error)
}

func newConnection(username string, buffer int) *Connection {
	if buffer < 1 {
		buffer = 1
	}
	return &Connection{
		ID:       uuid.New(),
		Username: username,
		OpenedAt: time.Now().UTC(),
		send:     make(chan Event, buffer),
		done:     make(chan struct{}),
	}
}

// Events is the outbound queue. It is never closed; watch Done instead.
func (c *Connection) Events() <-chan Event {
	return c.send
}

// Done is closed once the connection has ended for any reason.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Reason reports why the connection ended, empty while it is open.
func (c *Connection) Reason() CloseReason {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// Err is the transport error behind ReasonError.
func (c *Connection) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Complete signals a clean end of stream (peer closed, server shutdown).
func (c *Connection) Complete() bool {
	if !c.close(ReasonCompleted, nil) {
		return false
	}
	if c.onComplete != nil {
		c.onComplete()
	}
	return true
}

// Fail signals a transport error. Only the first lifecycle signal counts.
func (c *Connection) Fail(err error) bool {
	if !c.close(ReasonError, err) {
		return false
	}
	if c.onError != nil {
		c.onError(err)
	}
	return true
}

func (c *Connection) expire() {
	if !c.close(ReasonTimeout, nil) {
		return
	}
	if c.onTimeout != nil {
		c.onTimeout()
	}
}

func (c *Connection) armTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reason != "" {
		return
	}
	c.timer = time.AfterFunc(d, c.expire)
}

// close ends the connection and reports whether this call was the one that
// did it.
func (c *Connection) close(reason CloseReason, err error) bool {
	closed := false
	c.once.Do(func() {
		c.mu.Lock()
		c.reason = reason
		c.err = err
		if c.timer != nil {
			c.timer.Stop()
		}
		c.mu.Unlock()
		close(c.done)
		closed = true
	})
	return closed
}

// enqueue never blocks: a full buffer means the peer is not keeping up and
// is treated as a failed write.
func (c *Connection) enqueue(evt Event) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- evt:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	default:
		return ErrSlowConsumer
	}
}
