// Package sockettest provides a scripted socket.Conn for tests.
package sockettest

import (
	"context"
	"errors"
	"sync"
	"time"

	"anywhere-shell/pkg/socket"
)

// ErrClosed is returned by SendText after Close.
var ErrClosed = errors.New("sockettest: connection closed")

// Conn is an in-memory socket.Conn. Frames queued with Push are returned by
// Receive in order; once the queue is empty Receive blocks until a new frame
// arrives, the connection is closed or ctx is cancelled.
type Conn struct {
	queue  chan socket.Message
	closed chan struct{}

	mu         sync.Mutex
	sent       []string
	sentSignal chan struct{}
	receives   int
	closeCalls int
	sendErr    error
	terminal   *socket.Message
}

// NewConn returns a Conn with frames already queued.
func NewConn(frames ...string) *Conn {
	c := &Conn{
		queue:      make(chan socket.Message, 1024),
		closed:     make(chan struct{}),
		sentSignal: make(chan struct{}, 1024),
	}
	for _, f := range frames {
		c.Push(f)
	}
	return c
}

// Push queues a text frame.
func (c *Conn) Push(data string) {
	c.queue <- socket.Message{Type: socket.MessageText, Data: data}
}

// PushMessage queues an arbitrary message, e.g. a transport error.
func (c *Conn) PushMessage(msg socket.Message) {
	c.queue <- msg
}

// FailSends makes every later SendText return err.
func (c *Conn) FailSends(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErr = err
}

// Receive implements socket.Conn.
func (c *Conn) Receive(ctx context.Context) socket.Message {
	c.mu.Lock()
	c.receives++
	if c.terminal != nil {
		msg := *c.terminal
		c.mu.Unlock()
		return msg
	}
	c.mu.Unlock()

	var msg socket.Message
	select {
	case <-c.closed:
		msg = socket.Message{Type: socket.MessageClosed}
	default:
		select {
		case msg = <-c.queue:
		case <-c.closed:
			msg = socket.Message{Type: socket.MessageClosed}
		case <-ctx.Done():
			msg = socket.Message{Type: socket.MessageClosed, Err: ctx.Err()}
		}
	}

	if msg.Type != socket.MessageText {
		c.mu.Lock()
		c.terminal = &msg
		c.mu.Unlock()
	}
	return msg
}

// SendText implements socket.Conn.
func (c *Conn) SendText(ctx context.Context, data string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, data)
	select {
	case c.sentSignal <- struct{}{}:
	default:
	}
	return nil
}

// Close implements socket.Conn.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeCalls++
	if c.closeCalls == 1 {
		close(c.closed)
	}
	return nil
}

// Sent returns a copy of every frame sent so far.
func (c *Conn) Sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

// WaitSent blocks until at least n frames were sent or timeout elapses, and
// reports whether the count was reached.
func (c *Conn) WaitSent(n int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		c.mu.Lock()
		count := len(c.sent)
		c.mu.Unlock()
		if count >= n {
			return true
		}
		select {
		case <-c.sentSignal:
		case <-deadline:
			return false
		}
	}
}

// Receives returns how many times Receive was called.
func (c *Conn) Receives() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.receives
}

// CloseCalls returns how many times Close was called.
func (c *Conn) CloseCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCalls
}

// Closed is closed once Close has been called.
func (c *Conn) Closed() <-chan struct{} {
	return c.closed
}

var _ socket.Conn = (*Conn)(nil)
