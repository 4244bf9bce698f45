package websocket

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	gws "github.com/gorilla/websocket"
)

// conn adapts a gorilla connection to session.Conn. gorilla allows one
// concurrent writer, so data writes are serialized here.
type conn struct {
	ws           *gws.Conn
	writeTimeout time.Duration

	mu     sync.Mutex
	closed atomic.Bool
}

func newConn(ws *gws.Conn, writeTimeout time.Duration) *conn {
	return &conn{ws: ws, writeTimeout: writeTimeout}
}

func (c *conn) SendText(data []byte) error {
	return c.write(gws.TextMessage, data)
}

func (c *conn) SendBinary(data []byte) error {
	return c.write(gws.BinaryMessage, data)
}

func (c *conn) write(kind int, data []byte) error {
	if c.closed.Load() {
		return net.ErrClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeTimeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.ws.WriteMessage(kind, data)
}

// Close sends a close frame and closes the socket. WriteControl and Close
// are safe alongside a blocked data write, which then fails.
func (c *conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	_ = c.ws.WriteControl(gws.CloseMessage,
		gws.FormatCloseMessage(gws.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.ws.Close()
}
