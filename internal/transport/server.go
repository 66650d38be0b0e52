package transport

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Browser clients connect from the web frontend's origin; cross-origin
	// checks happen at the gateway.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades an HTTP request to a websocket connection and starts its
// read and write pumps. The connection stays anonymous until it sends a
// user:authenticate frame.
func (t *Transport) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		t.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := newClient(uuid.NewString(), ws, t.cfg.Transport.SendBuffer)

	t.mu.Lock()
	t.clients[c.ID] = c
	t.mu.Unlock()

	t.log.Info("connection opened", zap.String("conn_id", c.ID))

	go c.writePump(time.Duration(t.cfg.Transport.WriteTimeout)*time.Second, t.log)
	go t.readPump(c)
}
