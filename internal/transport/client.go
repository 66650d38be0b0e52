package transport

import (
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client is one websocket connection. The outbound queue is bounded; a full
// queue drops the frame rather than blocking a broadcast on a slow reader.
type Client struct {
	ID     string
	UserID string // set by user:authenticate, guarded by the transport mutex

	ws   *websocket.Conn // nil for in-memory test clients
	send chan []byte
	// done is closed by Disconnect; send itself is never closed, so a
	// broadcast racing a disconnect drops the frame instead of panicking.
	done   chan struct{}
	closed bool // guarded by the transport mutex
}

func newClient(id string, ws *websocket.Conn, buffer int) *Client {
	return &Client{
		ID:   id,
		ws:   ws,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

// writePump drains the outbound queue onto the socket. It exits on
// disconnect or write failure, closing the socket with it.
func (c *Client) writePump(writeTimeout time.Duration, log *zap.Logger) {
	defer c.ws.Close()

	for {
		select {
		case raw := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, raw); err != nil {
				log.Debug("write failed", zap.String("conn_id", c.ID), zap.Error(err))
				return
			}
		case <-c.done:
			return
		}
	}
}

// readPump feeds inbound frames into the dispatcher until the connection
// drops, then runs the disconnect path.
func (t *Transport) readPump(c *Client) {
	defer t.Disconnect(c)

	c.ws.SetReadLimit(t.cfg.Transport.MaxMessageSize)
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		t.HandleFrame(c, raw)
	}
}
