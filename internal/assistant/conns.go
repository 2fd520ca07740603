package assistant

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// ConnRegistry tracks the open chat sockets of each user so they can be
// closed when the user's session goes away.
type ConnRegistry struct {
	mu     sync.RWMutex
	active map[string]map[string]*websocket.Conn
}

// NewConnRegistry creates an empty registry.
func NewConnRegistry() *ConnRegistry {
	return &ConnRegistry{
		active: make(map[string]map[string]*websocket.Conn),
	}
}

// Register adds conn for userID and returns its connection ID.
func (m *ConnRegistry) Register(userID string, conn *websocket.Conn) string {
	connID := uuid.NewString()

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.active[userID]; !exists {
		m.active[userID] = make(map[string]*websocket.Conn)
	}
	m.active[userID][connID] = conn
	slog.Info("Chat socket registered", "user_id", userID, "conn_id", connID)
	return connID
}

// Unregister removes a connection if it is still the one registered.
func (m *ConnRegistry) Unregister(userID, connID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conns, ok := m.active[userID]
	if !ok {
		return
	}
	if current, exists := conns[connID]; exists && current == conn {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(m.active, userID)
		}
		slog.Info("Chat socket unregistered", "user_id", userID, "conn_id", connID)
	}
}

// Count returns the number of open sockets for userID.
func (m *ConnRegistry) Count(userID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active[userID])
}

// CloseUser closes every socket of userID.
func (m *ConnRegistry) CloseUser(userID string) {
	m.mu.Lock()
	conns, ok := m.active[userID]
	delete(m.active, userID)
	m.mu.Unlock()
	if !ok {
		return
	}

	for connID, conn := range conns {
		_ = conn.Close(websocket.StatusNormalClosure, "session expired")
		slog.Info("Chat socket closed", "user_id", userID, "conn_id", connID)
	}
}

// CloseAll closes every registered socket, used on shutdown.
func (m *ConnRegistry) CloseAll() {
	m.mu.Lock()
	all := m.active
	m.active = make(map[string]map[string]*websocket.Conn)
	m.mu.Unlock()

	for _, conns := range all {
		for _, conn := range conns {
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		}
	}
}
