package socket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newEchoServer starts a websocket server that sends greeting on connect and
// then echoes every text message back prefixed with "a".
func newEchoServer(t *testing.T, greeting string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if greeting != "" {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(greeting)); err != nil {
				return
			}
		}
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if string(data) == "quit" {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, append([]byte("a"), data...)); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func dialTest(t *testing.T, server *httptest.Server) *WebSocketConn {
	t.Helper()
	d := &Dialer{HandshakeTimeout: 5 * time.Second, Origin: "https://www.example.com"}
	conn, err := d.Dial(context.Background(), wsURL(server))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestWebSocketConn_ReceiveAndSend(t *testing.T) {
	server := newEchoServer(t, "o")
	conn := dialTest(t, server)
	ctx := context.Background()

	msg := conn.Receive(ctx)
	require.Equal(t, MessageText, msg.Type)
	assert.Equal(t, "o", msg.Data)

	require.NoError(t, conn.SendText(ctx, `["ls\r\n"]`))
	msg = conn.Receive(ctx)
	require.Equal(t, MessageText, msg.Type)
	assert.Equal(t, `a["ls\r\n"]`, msg.Data)
}

func TestWebSocketConn_CloseUnblocksReceive(t *testing.T) {
	server := newEchoServer(t, "")
	conn := dialTest(t, server)

	result := make(chan Message, 1)
	go func() {
		result <- conn.Receive(context.Background())
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close(), "second close should be a no-op")

	select {
	case msg := <-result:
		assert.Equal(t, MessageClosed, msg.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("Receive did not return after Close")
	}

	// Terminal results are sticky.
	assert.Equal(t, MessageClosed, conn.Receive(context.Background()).Type)
	assert.Error(t, conn.SendText(context.Background(), "x"))
}

func TestWebSocketConn_RemoteClose(t *testing.T) {
	server := newEchoServer(t, "")
	conn := dialTest(t, server)

	require.NoError(t, conn.SendText(context.Background(), "quit"))
	msg := conn.Receive(context.Background())
	assert.Equal(t, MessageClosed, msg.Type)
	assert.Error(t, msg.Err)
}

func TestWebSocketConn_ContextCancelAbortsReceive(t *testing.T) {
	server := newEchoServer(t, "")
	conn := dialTest(t, server)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	msg := conn.Receive(ctx)
	assert.Equal(t, MessageClosed, msg.Type)
	assert.ErrorIs(t, msg.Err, context.DeadlineExceeded)
}

func TestDialer_HandshakeFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no console", http.StatusForbidden)
	}))
	defer server.Close()

	d := &Dialer{HandshakeTimeout: time.Second}
	_, err := d.Dial(context.Background(), wsURL(server))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 403")
}

func TestMessageString(t *testing.T) {
	assert.Equal(t, `Message(type=TEXT, data="o")`, Message{Type: MessageText, Data: "o"}.String())
	assert.Equal(t, "Message(type=CLOSED)", Message{Type: MessageClosed}.String())
}
