package handlers

import (
	"net/http"
	"time"

	"advising/api/middleware"
	"advising/logger"
	"advising/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	wsPongWait       = 60 * time.Second
	wsWriteWait      = 5 * time.Second
	wsMaxMessageSize = 4 << 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type WSHandlers struct {
	conns    *services.WSConnManager
	pongWait time.Duration
}

func NewWSHandlers(conns *services.WSConnManager) *WSHandlers {
	return &WSHandlers{conns: conns, pongWait: wsPongWait}
}

// Connect upgrades the request and registers the connection for pushes
// addressed to the caller. Incoming frames are read and discarded. A client
// that stops answering pings is dropped once no pong arrives within pongWait.
func (h *WSHandlers) Connect(c *gin.Context) {
	caller, ok := middleware.MustCaller(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err = conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"connected"}`)); err != nil {
		return
	}
	h.conns.Add(caller.Role, caller.ID, conn)
	defer h.conns.Remove(caller.Role, caller.ID, conn)

	conn.SetReadLimit(wsMaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go keepAlive(conn, h.pongWait*9/10, done)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// keepAlive pings the client until done is closed. WriteControl may run
// concurrently with the pushes written by WSConnManager.
func keepAlive(conn *websocket.Conn, period time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}
