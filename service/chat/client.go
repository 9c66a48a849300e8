package chat

import (
	"encoding/json"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeDeadline = 5 * time.Second

// Client represents one authenticated user connection on the gateway.
// Writes are serialized: presence broadcasts and receipts may arrive
// from other connections' read loops.
type Client struct {
	ConnID string // Unique connection ID (unique within the local gateway)
	UserID string // User ID (determined during the handshake)
	Role   string
	Email  string
	Remote net.Addr

	mu sync.Mutex
	ws *websocket.Conn
}

// NewClient creates a new client connection object.
func NewClient(connID, userID, role, email string, ws *websocket.Conn) *Client {
	c := &Client{
		ConnID: connID,
		UserID: userID,
		Role:   role,
		Email:  email,
		ws:     ws,
	}
	if ra := ws.RemoteAddr(); ra != nil {
		c.Remote = ra
	}
	return c
}

// Emit sends one named event to this connection.
func (c *Client) Emit(event string, data any) error {
	raw, err := json.Marshal(outFrame{Event: event, Data: data})
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, raw)
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.Close()
}
