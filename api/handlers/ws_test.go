package handlers

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"advising/api/middleware"
	"advising/models"
	"advising/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticAuth struct {
	caller services.Caller
}

func (a staticAuth) Authenticate(context.Context, string) (services.Caller, error) {
	return a.caller, nil
}

func newWSServer(t *testing.T, h *WSHandlers, caller services.Caller) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", middleware.AuthMiddleware(staticAuth{caller: caller}), h.Connect)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=t"
}

func TestConnectRegistersUntilClientLeaves(t *testing.T) {
	conns := services.NewWSConnManager()
	wsURL := newWSServer(t, NewWSHandlers(conns), services.Caller{Role: models.RoleStudent, ID: 7})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	_, greeting, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"connected"}`, string(greeting))
	require.Eventually(t, func() bool { return conns.Count(models.RoleStudent, 7) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return conns.Count(models.RoleStudent, 7) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestConnectDropsOversizedFrames(t *testing.T) {
	conns := services.NewWSConnManager()
	wsURL := newWSServer(t, NewWSHandlers(conns), services.Caller{Role: models.RoleAdvisor, ID: 3})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return conns.Count(models.RoleAdvisor, 3) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, make([]byte, wsMaxMessageSize*4)))
	assert.Eventually(t, func() bool { return conns.Count(models.RoleAdvisor, 3) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestConnectDropsClientThatStopsAnsweringPings(t *testing.T) {
	conns := services.NewWSConnManager()
	h := NewWSHandlers(conns)
	h.pongWait = 300 * time.Millisecond
	wsURL := newWSServer(t, h, services.Caller{Role: models.RoleAdvisor, ID: 3})

	// The client never reads, so it never answers a ping.
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return conns.Count(models.RoleAdvisor, 3) == 1 }, 2*time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool { return conns.Count(models.RoleAdvisor, 3) == 0 }, 3*time.Second, 20*time.Millisecond)
}
