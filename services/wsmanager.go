package services

import (
	"fmt"
	"sync"
	"time"

	"advising/logger"
	"advising/models"

	"github.com/gorilla/websocket"
)

const defaultWSWriteTimeout = 5 * time.Second

// wsClient guards one connection. gorilla/websocket allows a single
// concurrent writer per connection.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) write(data []byte, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// WSConnManager tracks open websocket connections per participant. A
// participant is identified by role and id since student and advisor ids
// overlap.
type WSConnManager struct {
	mu           sync.Mutex
	users        map[string][]*wsClient
	writeTimeout time.Duration
}

func NewWSConnManager() *WSConnManager {
	return &WSConnManager{
		users:        make(map[string][]*wsClient),
		writeTimeout: defaultWSWriteTimeout,
	}
}

func connKey(role models.Role, userID int64) string {
	return fmt.Sprintf("%s:%d", role, userID)
}

func (m *WSConnManager) Add(role models.Role, userID int64, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := connKey(role, userID)
	m.users[key] = append(m.users[key], &wsClient{conn: conn})
}

func (m *WSConnManager) Remove(role models.Role, userID int64, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := connKey(role, userID)
	clients := m.users[key]
	for i, c := range clients {
		if c.conn == conn {
			m.users[key] = append(clients[:i:i], clients[i+1:]...)
			break
		}
	}
	if len(m.users[key]) == 0 {
		delete(m.users, key)
	}
}

func (m *WSConnManager) clients(role models.Role, userID int64) []*wsClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*wsClient(nil), m.users[connKey(role, userID)]...)
}

// Send writes the payload to every connection of the participant. The
// registry lock is not held while writing, and a connection that cannot
// take the write before the deadline is closed and dropped.
func (m *WSConnManager) Send(role models.Role, userID int64, message []byte) {
	for _, client := range m.clients(role, userID) {
		if err := client.write(message, m.writeTimeout); err != nil {
			logger.Debug().Err(err).
				Str("role", string(role)).
				Int64("user_id", userID).
				Msg("dropping websocket connection after failed write")
			_ = client.conn.Close()
			m.Remove(role, userID, client.conn)
		}
	}
}

func (m *WSConnManager) Count(role models.Role, userID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users[connKey(role, userID)])
}
