package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Connection is one stream subscriber. Frames are queued on Send and written
// by the connection's write pump only.
type Connection struct {
	Conn *websocket.Conn
	Send chan []byte

	closeOnce sync.Once
}

func newConnection(ws *websocket.Conn) *Connection {
	return &Connection{
		Conn: ws,
		Send: make(chan []byte, 16),
	}
}

// enqueue blocks until the frame is queued or ctx is done, so a slow reader
// slows down its own watcher and nobody else.
func (c *Connection) enqueue(ctx context.Context, frame []byte) error {
	select {
	case c.Send <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// closeSend tells the write pump to send a close frame and stop.
func (c *Connection) closeSend() {
	c.closeOnce.Do(func() { close(c.Send) })
}

func (c *Connection) write(messageType int, data []byte, timeout time.Duration) error {
	c.Conn.SetWriteDeadline(time.Now().Add(timeout))
	return c.Conn.WriteMessage(messageType, data)
}
