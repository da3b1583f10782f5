package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn wraps a gorilla connection with a write lock. The response stream
// writes events from its forward loop while the read loop answers pings,
// and gorilla allows at most one concurrent writer per connection.
type Conn struct {
	raw *websocket.Conn
	mu  sync.Mutex
}

// Wrap takes ownership of an upgraded connection.
func Wrap(raw *websocket.Conn) *Conn {
	return &Conn{raw: raw}
}

// WriteTyped sends a strongly-typed payload over the WebSocket.
func (c *Conn) WriteTyped(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.raw.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.raw.WriteJSON(v)
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func (c *Conn) WriteError(errMsg string) error {
	return c.WriteTyped(ErrorResponse{
		Event: EventError,
		Error: errMsg,
	})
}

// ReadJSON reads and decodes a message into the provided structure.
// Reads stay on a single goroutine, so only writes take the lock.
func (c *Conn) ReadJSON(v interface{}) error {
	c.raw.SetReadDeadline(time.Now().Add(5 * time.Minute))
	return c.raw.ReadJSON(v)
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.raw.Close()
}
