// Package socket provides the full-duplex text socket used to talk to a
// console backend.
package socket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// MessageType distinguishes what a Receive call observed.
type MessageType int

const (
	// MessageText carries a text frame in Data.
	MessageText MessageType = iota
	// MessageError reports a transport failure in Err.
	MessageError
	// MessageClosed reports that the socket is closed, by either side.
	MessageClosed
)

func (t MessageType) String() string {
	switch t {
	case MessageText:
		return "TEXT"
	case MessageError:
		return "ERROR"
	case MessageClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Message is the result of one Receive call.
type Message struct {
	Type MessageType
	Data string
	Err  error
}

func (m Message) String() string {
	switch m.Type {
	case MessageText:
		return fmt.Sprintf("Message(type=TEXT, data=%q)", m.Data)
	default:
		if m.Err != nil {
			return fmt.Sprintf("Message(type=%s, err=%v)", m.Type, m.Err)
		}
		return fmt.Sprintf("Message(type=%s)", m.Type)
	}
}

// Conn is a text-message socket shared by one reader and any number of
// writers.
type Conn interface {
	// Receive blocks for the next message. Transport failures and closes are
	// reported as MessageError and MessageClosed rather than as errors, and
	// once one is returned every later call returns it again. Cancelling ctx
	// aborts a pending read.
	Receive(ctx context.Context) Message

	// SendText writes one text message.
	SendText(ctx context.Context, data string) error

	// Close starts the closing handshake and releases the connection. A
	// pending Receive returns MessageClosed. Close is safe to call more than
	// once.
	Close() error
}

const (
	// DefaultHandshakeTimeout bounds the WebSocket upgrade.
	DefaultHandshakeTimeout = 45 * time.Second

	// closeWriteTimeout bounds writing the close control frame.
	closeWriteTimeout = time.Second
)

// Dialer opens console sockets.
type Dialer struct {
	HandshakeTimeout time.Duration

	// Origin, when set, is sent as the Origin header of the upgrade request.
	Origin string

	// Header holds extra upgrade request headers.
	Header http.Header
}

// Dial connects to a ws:// or wss:// URL.
func (d *Dialer) Dial(ctx context.Context, url string) (*WebSocketConn, error) {
	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: timeout,
	}

	headers := http.Header{}
	for k, v := range d.Header {
		headers[k] = append([]string(nil), v...)
	}
	if d.Origin != "" {
		headers.Set("Origin", d.Origin)
	}

	conn, resp, err := dialer.DialContext(ctx, url, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake failed with HTTP %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to dial websocket: %w", err)
	}

	log.Debug().Str("url", url).Msg("Socket connected")
	return NewWebSocketConn(conn), nil
}

// WebSocketConn implements Conn on a gorilla websocket connection.
type WebSocketConn struct {
	conn *websocket.Conn

	// writeMu serialises writers; gorilla allows one concurrent writer.
	writeMu sync.Mutex

	closeOnce sync.Once
	closing   atomic.Bool
	closeErr  error

	// readMu guards terminal; gorilla panics on repeated reads after a
	// failure, so the first non-text result is remembered.
	readMu   sync.Mutex
	terminal *Message
}

// NewWebSocketConn wraps an established connection.
func NewWebSocketConn(conn *websocket.Conn) *WebSocketConn {
	return &WebSocketConn{conn: conn}
}

// Receive implements Conn.
func (c *WebSocketConn) Receive(ctx context.Context) Message {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	if c.terminal != nil {
		return *c.terminal
	}

	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	_, data, err := c.conn.ReadMessage()
	stop()

	if err == nil {
		return Message{Type: MessageText, Data: string(data)}
	}

	msg := Message{Type: MessageError, Err: err}
	switch {
	case c.closing.Load(), websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived):
		msg.Type = MessageClosed
	case ctx.Err() != nil:
		msg.Type = MessageClosed
		msg.Err = ctx.Err()
	case errors.Is(err, websocket.ErrCloseSent):
		msg.Type = MessageClosed
	}
	c.terminal = &msg

	log.Debug().Stringer("type", msg.Type).Err(err).Msg("Socket receive ended")
	return msg
}

// SendText implements Conn.
func (c *WebSocketConn) SendText(ctx context.Context, data string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.closing.Load() {
		return websocket.ErrCloseSent
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
		defer c.conn.SetWriteDeadline(time.Time{})
	}
	return c.conn.WriteMessage(websocket.TextMessage, []byte(data))
}

// Close implements Conn.
func (c *WebSocketConn) Close() error {
	c.closeOnce.Do(func() {
		c.closing.Store(true)

		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteTimeout))

		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
